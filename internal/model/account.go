// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// Account はサービス利用ユーザー（usersテーブル）を表す。
// PasswordHashが空のアカウントはOAuth専用で、パスワードログインは常に失敗する。
type Account struct {
	ID            string     `db:"id"`
	FullName      string     `db:"full_name"`
	Email         string     `db:"email"`
	PasswordHash  string     `db:"password_hash"`
	Image         *string    `db:"image"`
	EmailVerified *time.Time `db:"email_verified"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

// ImageURL はアバターURLを返す。未設定の場合は空文字列。
func (a *Account) ImageURL() string {
	if a.Image == nil {
		return ""
	}
	return *a.Image
}

// Identity はセッションやログイン応答に載せる公開用のユーザー情報。
// パスワードハッシュは含まない。
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

// Identity はAccountから公開用のIdentityを生成する。
func (a *Account) Identity() Identity {
	return Identity{
		ID:    a.ID,
		Email: a.Email,
		Name:  a.FullName,
		Image: a.ImageURL(),
	}
}

// AccountSummary は登録完了時に返すユーザー情報。
type AccountSummary struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

// ProfileUpdate はプロフィール更新の入力を表す。
// nilのフィールドは更新しない。
type ProfileUpdate struct {
	FullName *string
	Image    *string
}

// NormalizeEmail はメールアドレスを比較・保存用の正規形にする。
// 前後の空白を除いて小文字化する。国際化ドメイン名はクライアントが送った表記のまま保持する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailLocalPart はメールアドレスの@より前の部分を返す。
func EmailLocalPart(email string) string {
	if i := strings.Index(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}
