// Package repository はデータ永続化のインターフェースとPostgreSQL実装を提供する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/estatehub/internal/model"
)

// ErrDuplicateEmail はlower(email)のユニーク制約違反を表す。
// 登録やOAuth初回ログインの競合で発生する。
var ErrDuplicateEmail = errors.New("repository: email already exists")

// ErrNotFound は更新・削除対象の行が存在しなかったことを表す。
// 参照系メソッドは見つからない場合にnilを返し、このエラーは使わない。
var ErrNotFound = errors.New("repository: not found")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Account, error)

	// FindByEmail は小文字化したメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Account, error)

	// Create はユーザーを作成する。IDと作成日時は呼び出し側で設定する。
	// メールアドレスが重複する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, account *model.Account) error

	// UpdateProfile は氏名とアバターを部分更新し、更新後のユーザーを返す。
	// 見つからない場合はnilを返す。
	UpdateProfile(ctx context.Context, id string, update model.ProfileUpdate) (*model.Account, error)
}

// ListingRepository は物件データの永続化インターフェース。
type ListingRepository interface {
	// FindByID は指定IDの物件を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Listing, error)

	// Create は物件を作成する。
	Create(ctx context.Context, listing *model.Listing) error

	// Update は物件の属性とupdated_atを更新する。対象が無い場合はErrNotFoundを返す。
	Update(ctx context.Context, listing *model.Listing) error

	// Delete は物件を削除する。対象が無い場合はErrNotFoundを返す。
	Delete(ctx context.Context, id string) error

	// List はフィルタ条件に一致する物件をcreated_at降順で返す。
	List(ctx context.Context, filter ListingFilter) ([]*model.Listing, error)
}

// Pinger はDB疎通確認のインターフェース。
type Pinger interface {
	PingContext(ctx context.Context) error
}
