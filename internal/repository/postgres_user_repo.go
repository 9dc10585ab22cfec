package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/estatehub/internal/model"
)

const accountColumns = `id, full_name, email, password_hash, image, email_verified, created_at, updated_at`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sqlx.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sqlx.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
// UUIDとして解釈できないIDも見つからないものとして扱う。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	canonical, ok := NormalizeID(id)
	if !ok {
		return nil, nil
	}

	var account model.Account
	err := r.db.GetContext(ctx, &account,
		`SELECT `+accountColumns+` FROM users WHERE id = $1`, canonical)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	return &account, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。大文字小文字は区別しない。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	var account model.Account
	err := r.db.GetContext(ctx, &account,
		`SELECT `+accountColumns+` FROM users WHERE lower(email) = $1`, model.NormalizeEmail(email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	return &account, nil
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, account *model.Account) error {
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO users (id, full_name, email, password_hash, image, email_verified, created_at, updated_at)
		 VALUES (:id, :full_name, :email, :password_hash, :image, :email_verified, :created_at, :updated_at)`,
		account,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// UpdateProfile は氏名とアバターを部分更新する。
// update.FullNameがnilなら氏名を維持し、update.Imageがnilならアバターを維持する。
func (r *PostgresUserRepo) UpdateProfile(ctx context.Context, id string, update model.ProfileUpdate) (*model.Account, error) {
	canonical, ok := NormalizeID(id)
	if !ok {
		return nil, nil
	}

	var account model.Account
	err := r.db.GetContext(ctx, &account,
		`UPDATE users SET
		     full_name = COALESCE($2::text, full_name),
		     image = CASE WHEN $3::boolean THEN $4::text ELSE image END,
		     updated_at = now()
		 WHERE id = $1
		 RETURNING `+accountColumns,
		canonical, update.FullName, update.Image != nil, update.Image,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user profile: %w", err)
	}

	return &account, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
