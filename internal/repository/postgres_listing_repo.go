package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/estatehub/internal/model"
)

const listingColumns = `id, user_id, title, description, type, price, location, bedrooms, bathrooms, image_url, status, created_at, updated_at`

// PostgresListingRepo はPostgreSQLを使用した物件リポジトリ。
type PostgresListingRepo struct {
	db *sqlx.DB
}

// NewPostgresListingRepo はPostgresListingRepoを生成する。
func NewPostgresListingRepo(db *sqlx.DB) *PostgresListingRepo {
	return &PostgresListingRepo{db: db}
}

// FindByID は指定IDの物件を取得する。見つからない場合はnilを返す。
func (r *PostgresListingRepo) FindByID(ctx context.Context, id string) (*model.Listing, error) {
	canonical, ok := NormalizeID(id)
	if !ok {
		return nil, nil
	}

	var listing model.Listing
	err := r.db.GetContext(ctx, &listing,
		`SELECT `+listingColumns+` FROM properties WHERE id = $1`, canonical)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find listing by ID: %w", err)
	}

	return &listing, nil
}

// Create は物件を作成する。
func (r *PostgresListingRepo) Create(ctx context.Context, listing *model.Listing) error {
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO properties (id, user_id, title, description, type, price, location,
		                         bedrooms, bathrooms, image_url, status, created_at, updated_at)
		 VALUES (:id, :user_id, :title, :description, :type, :price, :location,
		         :bedrooms, :bathrooms, :image_url, :status, :created_at, :updated_at)`,
		listing,
	)
	if err != nil {
		return fmt.Errorf("failed to insert listing: %w", err)
	}
	return nil
}

// Update は物件の属性を上書きし、updated_atを更新する。
// 所有者とステータス、作成日時は変更しない。
func (r *PostgresListingRepo) Update(ctx context.Context, listing *model.Listing) error {
	result, err := r.db.NamedExecContext(ctx,
		`UPDATE properties SET
		     title = :title,
		     description = :description,
		     type = :type,
		     price = :price,
		     location = :location,
		     bedrooms = :bedrooms,
		     bathrooms = :bathrooms,
		     image_url = :image_url,
		     updated_at = :updated_at
		 WHERE id = :id`,
		listing,
	)
	if err != nil {
		return fmt.Errorf("failed to update listing: %w", err)
	}
	return expectAffected(result)
}

// Delete は物件を削除する。
func (r *PostgresListingRepo) Delete(ctx context.Context, id string) error {
	canonical, ok := NormalizeID(id)
	if !ok {
		return ErrNotFound
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM properties WHERE id = $1`, canonical)
	if err != nil {
		return fmt.Errorf("failed to delete listing: %w", err)
	}
	return expectAffected(result)
}

// List はフィルタ条件に一致する物件をcreated_at降順で返す。
// 該当が無い場合は空スライスを返す。
func (r *PostgresListingRepo) List(ctx context.Context, filter ListingFilter) ([]*model.Listing, error) {
	q := buildListingQuery(filter)
	if q.empty {
		return []*model.Listing{}, nil
	}

	listings := []*model.Listing{}
	if err := r.db.SelectContext(ctx, &listings, q.sql, q.args...); err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	return listings, nil
}

// expectAffected は更新系SQLの影響行数が0の場合にErrNotFoundを返す。
func expectAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// compile-time interface check
var _ ListingRepository = (*PostgresListingRepo)(nil)
