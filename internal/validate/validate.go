// Package validate は入力検証ルールを提供する。
// go-playground/validatorにアプリケーション固有のタグを登録したValidatorを返す。
package validate

import (
	"errors"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/net/idna"
)

// emailPattern はlocal@domain.tld形式のメールアドレス。
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// FieldError は最初に失敗したフィールドと検証タグ。
type FieldError struct {
	Field string
	Tag   string
}

// Error はerrorインターフェースを実装する。
func (e *FieldError) Error() string {
	return "validation failed on field " + e.Field + " (" + e.Tag + ")"
}

// Validator はgo-playground/validatorのラッパー。
// 独自タグ:
//   - email_shape: local@domain.tld形式で、ドメインがIDNAとして有効
//   - maxbytes=N: 文字列のバイト長がN以下
//   - finite: NaN・Infでない数値
//   - integral: 小数部を持たない数値
type Validator struct {
	validate *validator.Validate
}

// New は独自タグを登録したValidatorを生成する。
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// レスポンスにはJSONのフィールド名を使う
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	mustRegister(v, "email_shape", func(fl validator.FieldLevel) bool {
		return IsEmail(fl.Field().String())
	})
	mustRegister(v, "maxbytes", func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return len(fl.Field().String()) <= limit
	})
	mustRegister(v, "finite", func(fl validator.FieldLevel) bool {
		f, ok := floatValue(fl.Field())
		return ok && !math.IsNaN(f) && !math.IsInf(f, 0)
	})
	mustRegister(v, "integral", func(fl validator.FieldLevel) bool {
		f, ok := floatValue(fl.Field())
		return ok && !math.IsNaN(f) && !math.IsInf(f, 0) && f == math.Trunc(f)
	})

	return &Validator{validate: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic("validate: failed to register " + tag + ": " + err.Error())
	}
}

// Struct は構造体のvalidateタグを検証し、最初に失敗したフィールドを返す。
// 検証はフィールドの宣言順に行われる。
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &FieldError{Field: verrs[0].Field(), Tag: verrs[0].Tag()}
	}
	return err
}

// Var は単一の値をタグで検証し、成功したかを返す。
func (v *Validator) Var(value any, tag string) bool {
	return v.validate.Var(value, tag) == nil
}

// IsEmail はメールアドレスがlocal@domain.tld形式で、ドメインがIDNAとして有効かを返す。
func IsEmail(email string) bool {
	if !emailPattern.MatchString(email) {
		return false
	}
	domain := email[strings.LastIndex(email, "@")+1:]
	_, err := idna.Lookup.ToASCII(strings.ToLower(domain))
	return err == nil
}

// floatValue はint/uint/float系のreflect.Valueをfloat64として取り出す。
func floatValue(v reflect.Value) (float64, bool) {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	default:
		return 0, false
	}
}
