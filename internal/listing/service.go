// Package listing は物件掲載の作成・参照・更新・削除を提供する。
package listing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/hitoshi/estatehub/internal/metrics"
	"github.com/hitoshi/estatehub/internal/model"
	"github.com/hitoshi/estatehub/internal/repository"
	"github.com/hitoshi/estatehub/internal/security"
	"github.com/hitoshi/estatehub/internal/validate"
)

// Input は物件の作成・更新リクエスト。
type Input struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Price       Number `json:"price"`
	Location    string `json:"location"`
	Bedrooms    Number `json:"bedrooms"`
	Bathrooms   Number `json:"bathrooms"`
	ImageURL    string `json:"imageUrl"`
}

// requiredFields は必須項目の検証用。数値はSetの場合のみ非nilになる。
type requiredFields struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description" validate:"required"`
	Type        string   `json:"type" validate:"required"`
	Price       *float64 `json:"price" validate:"required"`
	Location    string   `json:"location" validate:"required"`
	Bedrooms    *float64 `json:"bedrooms" validate:"required"`
	Bathrooms   *float64 `json:"bathrooms" validate:"required"`
	ImageURL    string   `json:"imageUrl" validate:"required"`
}

// 数値項目の検証タグ
var (
	priceRule     = "finite,gt=0"
	bedroomsRule  = fmt.Sprintf("integral,gte=0,lte=%d", math.MaxInt32)
	bathroomsRule = "finite,gte=0"
)

// ListQuery は公開一覧のクエリパラメータ。
type ListQuery struct {
	Type   string
	UserID string
}

// Service は物件掲載のサービス層。
type Service struct {
	repo      repository.ListingRepository
	sanitizer security.TextSanitizer
	urlGuard  security.URLGuard
	validator *validate.Validator
	metrics   metrics.Recorder
	now       func() time.Time
}

// NewService はServiceを生成する。recorderがnilの場合はメトリクスを記録しない。
func NewService(
	repo repository.ListingRepository,
	sanitizer security.TextSanitizer,
	urlGuard security.URLGuard,
	validator *validate.Validator,
	recorder metrics.Recorder,
) *Service {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		urlGuard:  urlGuard,
		validator: validator,
		metrics:   recorder,
		now:       time.Now,
	}
}

// Create は物件を掲載状態（active）で作成する。
func (s *Service) Create(ctx context.Context, ownerID string, input Input) (*model.Listing, error) {
	fields, err := s.validateInput(input)
	if err != nil {
		s.metrics.RecordListingOperation("create", metrics.OutcomeRejected)
		return nil, err
	}

	now := s.now()
	listing := &model.Listing{
		ID:        repository.NewID(),
		OwnerID:   ownerID,
		Status:    model.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	listing.Apply(fields)

	if err := s.repo.Create(ctx, listing); err != nil {
		s.metrics.RecordListingOperation("create", metrics.OutcomeError)
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}

	s.metrics.RecordListingOperation("create", metrics.OutcomeSuccess)
	slog.Info("listing created",
		slog.String("listing_id", listing.ID),
		slog.String("user_id", ownerID),
	)
	return listing, nil
}

// Get は物件を1件取得する。
func (s *Service) Get(ctx context.Context, rawID string) (*model.Listing, error) {
	id, ok := repository.NormalizeID(rawID)
	if !ok {
		return nil, model.NewInvalidListingIDError()
	}

	listing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	if listing == nil {
		return nil, model.NewListingNotFoundError()
	}
	return listing, nil
}

// List は公開一覧を返す。userIDを指定した場合は全ステータスが対象になる。
func (s *Service) List(ctx context.Context, q ListQuery) ([]*model.Listing, error) {
	filter := repository.ListingFilter{
		Category: model.Category(q.Type),
		OwnerID:  q.UserID,
		Limit:    repository.PublicListLimit,
	}
	if q.UserID == "" {
		filter.Status = model.StatusActive
	}

	listings, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	return listings, nil
}

// ListMine はログイン中ユーザーの物件を全ステータスで返す。
func (s *Service) ListMine(ctx context.Context, ownerID string) ([]*model.Listing, error) {
	listings, err := s.repo.List(ctx, repository.ListingFilter{
		OwnerID: ownerID,
		Limit:   repository.OwnerListLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list own listings: %w", err)
	}
	return listings, nil
}

// Update は所有者による物件の更新を行う。
// 検査順はID形式、存在、所有者、本文の順で、decodeは所有者確認の後に呼ばれる。
func (s *Service) Update(ctx context.Context, callerID, rawID string, decode func(*Input) error) error {
	listing, err := s.authorize(ctx, callerID, rawID, "edit")
	if err != nil {
		s.metrics.RecordListingOperation("update", outcomeOf(err))
		return err
	}

	var input Input
	if err := decode(&input); err != nil {
		s.metrics.RecordListingOperation("update", metrics.OutcomeRejected)
		return model.NewInvalidBodyError()
	}

	fields, err := s.validateInput(input)
	if err != nil {
		s.metrics.RecordListingOperation("update", metrics.OutcomeRejected)
		return err
	}

	listing.Apply(fields)
	listing.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, listing); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.RecordListingOperation("update", metrics.OutcomeRejected)
			return model.NewListingNotFoundError()
		}
		s.metrics.RecordListingOperation("update", metrics.OutcomeError)
		return fmt.Errorf("failed to update listing: %w", err)
	}

	s.metrics.RecordListingOperation("update", metrics.OutcomeSuccess)
	slog.Info("listing updated",
		slog.String("listing_id", listing.ID),
		slog.String("user_id", callerID),
	)
	return nil
}

// Delete は所有者による物件の削除を行う。
func (s *Service) Delete(ctx context.Context, callerID, rawID string) error {
	listing, err := s.authorize(ctx, callerID, rawID, "delete")
	if err != nil {
		s.metrics.RecordListingOperation("delete", outcomeOf(err))
		return err
	}

	if err := s.repo.Delete(ctx, listing.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.RecordListingOperation("delete", metrics.OutcomeRejected)
			return model.NewListingNotFoundError()
		}
		s.metrics.RecordListingOperation("delete", metrics.OutcomeError)
		return fmt.Errorf("failed to delete listing: %w", err)
	}

	s.metrics.RecordListingOperation("delete", metrics.OutcomeSuccess)
	slog.Info("listing deleted",
		slog.String("listing_id", listing.ID),
		slog.String("user_id", callerID),
	)
	return nil
}

// authorize は物件を取得し、呼び出し元が所有者であることを確認する。
func (s *Service) authorize(ctx context.Context, callerID, rawID, action string) (*model.Listing, error) {
	listing, err := s.Get(ctx, rawID)
	if err != nil {
		return nil, err
	}

	caller, ok := repository.NormalizeID(callerID)
	if !ok || listing.OwnerID == "" || caller != listing.OwnerID {
		slog.Warn("listing ownership check failed",
			slog.String("listing_id", listing.ID),
			slog.String("user_id", callerID),
			slog.String("action", action),
		)
		return nil, model.NewForbiddenError(action)
	}
	return listing, nil
}

// validateInput は入力を検証し、タグ除去済みの属性を返す。
func (s *Service) validateInput(input Input) (model.ListingFields, error) {
	req := requiredFields{
		Title:       s.sanitizer.Sanitize(input.Title),
		Description: s.sanitizer.Sanitize(input.Description),
		Type:        input.Type,
		Price:       numberPtr(input.Price),
		Location:    s.sanitizer.Sanitize(input.Location),
		Bedrooms:    numberPtr(input.Bedrooms),
		Bathrooms:   numberPtr(input.Bathrooms),
		ImageURL:    strings.TrimSpace(input.ImageURL),
	}

	if err := s.validator.Struct(req); err != nil {
		return model.ListingFields{}, model.NewMissingFieldsError()
	}
	if !model.Category(req.Type).Valid() {
		return model.ListingFields{}, model.NewInvalidListingTypeError()
	}
	if !s.validator.Var(*req.Price, priceRule) {
		return model.ListingFields{}, model.NewInvalidPriceError()
	}
	if !s.validator.Var(*req.Bedrooms, bedroomsRule) {
		return model.ListingFields{}, model.NewInvalidBedroomsError()
	}
	if !s.validator.Var(*req.Bathrooms, bathroomsRule) {
		return model.ListingFields{}, model.NewInvalidBathroomsError()
	}
	if err := s.urlGuard.ValidateURL(req.ImageURL); err != nil {
		slog.Debug("listing image URL rejected", slog.String("reason", err.Error()))
		return model.ListingFields{}, model.NewInvalidImageURLError()
	}

	return model.ListingFields{
		Title:       req.Title,
		Description: req.Description,
		Category:    model.Category(req.Type),
		Price:       *req.Price,
		Location:    req.Location,
		Bedrooms:    int(*req.Bedrooms),
		Bathrooms:   *req.Bathrooms,
		ImageURL:    req.ImageURL,
	}, nil
}

func numberPtr(n Number) *float64 {
	if !n.Set {
		return nil
	}
	v := n.Value
	return &v
}

// outcomeOf は想定内のAPIErrorをrejected、それ以外をerrorに分類する。
func outcomeOf(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return metrics.OutcomeRejected
	}
	return metrics.OutcomeError
}
