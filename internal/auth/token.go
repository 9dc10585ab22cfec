// Package auth は資格情報の照合、アカウント登録、OAuthアカウント連携、
// セッショントークンの発行と同期を提供する。
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/estatehub/internal/model"
)

// ErrInvalidToken はセッショントークンの署名・形式・有効期限が不正なことを表す。
var ErrInvalidToken = errors.New("auth: invalid session token")

// Claims はセッショントークンに載せるユーザー情報。
// Subjectにはアカウントの正規化済みIDが入る。
// Syncedがfalseの間は次のリクエストでDBのアカウントと同期される。
type Claims struct {
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	Synced  bool   `json:"synced"`
	jwt.RegisteredClaims
}

// UserID はアカウントIDを返す。
func (c *Claims) UserID() string {
	return c.Subject
}

// Identity はClaimsを公開用のIdentityに変換する。
func (c *Claims) Identity() model.Identity {
	return model.Identity{
		ID:    c.Subject,
		Email: c.Email,
		Name:  c.Name,
		Image: c.Picture,
	}
}

// Expiry はトークンの有効期限を返す。未設定の場合はゼロ値。
func (c *Claims) Expiry() time.Time {
	if c.RegisteredClaims.ExpiresAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.ExpiresAt.Time
}

// Changed は同期で書き換わる項目がbeforeから変化したかを返す。
func (c *Claims) Changed(before Claims) bool {
	return c.Subject != before.Subject ||
		c.Email != before.Email ||
		c.Name != before.Name ||
		c.Picture != before.Picture ||
		c.Synced != before.Synced
}

// TokenCodec はHS256でセッショントークンを署名・検証する。
type TokenCodec struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

// NewTokenCodec はTokenCodecを生成する。lifetimeはトークンの絶対有効期間。
func NewTokenCodec(secret string, lifetime time.Duration) *TokenCodec {
	return &TokenCodec{
		secret:   []byte(secret),
		lifetime: lifetime,
		now:      time.Now,
	}
}

// Lifetime はトークンの有効期間を返す。
func (c *TokenCodec) Lifetime() time.Duration {
	return c.lifetime
}

// NewClaims はサインイン直後のClaimsを生成する。
// 有効期限は発行時刻からlifetime後で、以後の再署名でも延長しない。
func (c *TokenCodec) NewClaims(identity model.Identity) Claims {
	now := c.now()
	return Claims{
		Email:   identity.Email,
		Name:    identity.Name,
		Picture: identity.Image,
		Synced:  false,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.lifetime)),
		},
	}
}

// Sign はClaimsを署名したトークン文字列を返す。
func (c *TokenCodec) Sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Parse はトークン文字列を検証してClaimsを返す。
// HS256以外の署名方式、期限切れ、有効期限の無いトークンはErrInvalidTokenになる。
func (c *TokenCodec) Parse(tokenString string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(t *jwt.Token) (any, error) {
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}
