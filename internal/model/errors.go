package model

import (
	"fmt"
	"net/http"
)

// ErrorKind はAPIエラーの分類。HTTPステータスコードと1対1に対応する。
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindAuth       ErrorKind = "auth"
	KindOwnership  ErrorKind = "ownership"
	KindForbidden  ErrorKind = "forbidden"
	KindNotFound   ErrorKind = "not_found"
	KindConflict   ErrorKind = "conflict"
	KindRateLimit  ErrorKind = "rate_limit"
	KindInternal   ErrorKind = "internal"
)

// HTTPStatus はエラー分類に対応するHTTPステータスコードを返す。
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindOwnership, KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// APIError は統一エラーフォーマットを表す。
// Messageはそのままレスポンスの{"error": ...}に載る。
type APIError struct {
	Kind    ErrorKind // 分類
	Code    string    // エラーコード
	Message string    // エラーメッセージ
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// HTTPStatus はエラーに対応するHTTPステータスコードを返す。
func (e *APIError) HTTPStatus() int {
	return e.Kind.HTTPStatus()
}

// 定義済みエラーコード
const (
	ErrCodeMissingFields       = "MISSING_FIELDS"
	ErrCodeInvalidEmail        = "INVALID_EMAIL"
	ErrCodePasswordTooShort    = "PASSWORD_TOO_SHORT"
	ErrCodePasswordTooLong     = "PASSWORD_TOO_LONG"
	ErrCodeMissingCredentials  = "MISSING_CREDENTIALS"
	ErrCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeEmailTaken          = "EMAIL_TAKEN"
	ErrCodeEmailRequired       = "EMAIL_REQUIRED"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeInvalidListingType  = "INVALID_PROPERTY_TYPE"
	ErrCodeInvalidPrice        = "INVALID_PRICE"
	ErrCodeInvalidBedrooms     = "INVALID_BEDROOMS"
	ErrCodeInvalidBathrooms    = "INVALID_BATHROOMS"
	ErrCodeInvalidImageURL     = "INVALID_IMAGE_URL"
	ErrCodeInvalidListingID    = "INVALID_PROPERTY_ID"
	ErrCodeListingNotFound     = "PROPERTY_NOT_FOUND"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeInvalidBody         = "INVALID_BODY"
	ErrCodeRateLimited         = "RATE_LIMITED"
	ErrCodeCSRFInvalid         = "CSRF_TOKEN_INVALID"
	ErrCodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// NewMissingFieldsError は必須項目が不足している場合のエラーを生成する。
func NewMissingFieldsError() *APIError {
	return &APIError{Kind: KindValidation, Code: ErrCodeMissingFields, Message: "Missing required fields"}
}

// NewInvalidEmailError はメールアドレスの形式が不正な場合のエラーを生成する。
func NewInvalidEmailError() *APIError {
	return &APIError{Kind: KindValidation, Code: ErrCodeInvalidEmail, Message: "Invalid email format"}
}

// NewPasswordTooShortError はパスワードが最小長未満の場合のエラーを生成する。
func NewPasswordTooShortError(min int) *APIError {
	return &APIError{
		Kind:    KindValidation,
		Code:    ErrCodePasswordTooShort,
		Message: fmt.Sprintf("Password must be at least %d characters long", min),
	}
}

// NewPasswordTooLongError はパスワードがbcryptの入力上限を超える場合のエラーを生成する。
func NewPasswordTooLongError(max int) *APIError {
	return &APIError{
		Kind:    KindValidation,
		Code:    ErrCodePasswordTooLong,
		Message: fmt.Sprintf("Password must be at most %d bytes long", max),
	}
}

// NewMissingCredentialsError はログイン時にメールアドレスまたはパスワードが空の場合のエラーを生成する。
func NewMissingCredentialsError() *APIError {
	return &APIError{Kind: KindValidation, Code: ErrCodeMissingCredentials, Message: "Please enter your email and password"}
}

// NewInvalidCredentialsError はログイン失敗時のエラーを生成する。
// アカウントの有無を区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{Kind: KindAuth, Code: ErrCodeInvalidCredentials, Message: "Invalid email or password"}
}

// NewUnauthorizedError はセッションが無い場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{Kind: KindAuth, Code: ErrCodeUnauthorized, Message: "Unauthorized"}
}

// NewEmailTakenError はメールアドレスが登録済みの場合のエラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{Kind: KindConflict, Code: ErrCodeEmailTaken, Message: "User with this email already exists"}
}

// NewEmailRequiredError はメールアドレスが指定されていない場合のエラーを生成する。
func NewEmailRequiredError() *APIError {
	return &APIError{Kind: KindValidation, Code: ErrCodeEmailRequired, Message: "Email is required"}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{Kind: KindNotFound, Code: ErrCodeUserNotFound, Message: "User not found"}
}

// NewInvalidListingTypeError は取引種別が不正な場合のエラーを生成する。
func NewInvalidListingTypeError() *APIError {
	return &APIError{
		Kind:    KindValidation,
		Code:    ErrCodeInvalidListingType,
		Message: `Invalid property type. Must be "rent" or "sell"`,
	}
}

// NewInvalidPriceError は価格が正の数でない場合のエラーを生成する。
func NewInvalidPriceError() *APIError {
	return &APIError{Kind: KindValidation, Code: ErrCodeInvalidPrice, Message: "Price must be a positive number"}
}

// NewInvalidBedroomsError は寝室数が不正な場合のエラーを生成する。
func NewInvalidBedroomsError() *APIError {
	return &APIError{Kind: KindValidation, Code: ErrCodeInvalidBedrooms, Message: "Bedrooms must be a non-negative number"}
}

// NewInvalidBathroomsError は浴室数が不正な場合のエラーを生成する。
func NewInvalidBathroomsError() *APIError {
	return &APIError{Kind: KindValidation, Code: ErrCodeInvalidBathrooms, Message: "Bathrooms must be a non-negative number"}
}

// NewInvalidImageURLError は画像URLが許可されない場合のエラーを生成する。
func NewInvalidImageURLError() *APIError {
	return &APIError{Kind: KindValidation, Code: ErrCodeInvalidImageURL, Message: "Invalid image URL"}
}

// NewInvalidListingIDError は物件IDの形式が不正な場合のエラーを生成する。
func NewInvalidListingIDError() *APIError {
	return &APIError{Kind: KindValidation, Code: ErrCodeInvalidListingID, Message: "Invalid property ID"}
}

// NewListingNotFoundError は物件が見つからない場合のエラーを生成する。
func NewListingNotFoundError() *APIError {
	return &APIError{Kind: KindNotFound, Code: ErrCodeListingNotFound, Message: "Property not found"}
}

// NewForbiddenError は所有者以外による操作を拒否するエラーを生成する。
// actionには"edit"や"delete"を渡す。
func NewForbiddenError(action string) *APIError {
	return &APIError{
		Kind:    KindOwnership,
		Code:    ErrCodeForbidden,
		Message: fmt.Sprintf("Forbidden: You can only %s your own properties", action),
	}
}

// NewInvalidBodyError はリクエストボディがJSONとして解釈できない場合のエラーを生成する。
func NewInvalidBodyError() *APIError {
	return &APIError{Kind: KindValidation, Code: ErrCodeInvalidBody, Message: "Invalid request body"}
}

// NewRateLimitedError はレート制限超過時のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{Kind: KindRateLimit, Code: ErrCodeRateLimited, Message: "Too many requests"}
}

// NewCSRFInvalidError はCSRFトークン検証失敗時のエラーを生成する。
func NewCSRFInvalidError() *APIError {
	return &APIError{Kind: KindForbidden, Code: ErrCodeCSRFInvalid, Message: "Invalid CSRF token"}
}

// NewProviderUnavailableError は未設定のOAuthプロバイダが指定された場合のエラーを生成する。
func NewProviderUnavailableError() *APIError {
	return &APIError{Kind: KindNotFound, Code: ErrCodeProviderUnavailable, Message: "Provider not available"}
}

// NewNotFoundError はルートが存在しない場合のエラーを生成する。
func NewNotFoundError() *APIError {
	return &APIError{Kind: KindNotFound, Code: ErrCodeNotFound, Message: "Not found"}
}

// NewInternalError は予期しないエラーを表す。詳細はログにのみ残す。
func NewInternalError() *APIError {
	return &APIError{Kind: KindInternal, Code: ErrCodeInternal, Message: "Internal server error"}
}
