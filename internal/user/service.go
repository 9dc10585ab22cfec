// Package user はプロフィールの参照・更新とメールアドレスの登録確認を提供する。
package user

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/estatehub/internal/model"
	"github.com/hitoshi/estatehub/internal/repository"
	"github.com/hitoshi/estatehub/internal/security"
)

// OptionalString はJSONでキーが存在したかを区別する文字列。
// nullも「存在する」として扱い、Valueは空文字列になる。
type OptionalString struct {
	Set   bool
	Value string
}

// UnmarshalJSON はjson.Unmarshalerを実装する。
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = ""
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

// ProfileInput はプロフィール更新の入力。
type ProfileInput struct {
	FullName string         `json:"fullName"`
	Image    OptionalString `json:"image"`
}

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo  repository.UserRepository
	sanitizer security.TextSanitizer
	urlGuard  security.URLGuard
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	sanitizer security.TextSanitizer,
	urlGuard security.URLGuard,
) *Service {
	return &Service{
		userRepo:  userRepo,
		sanitizer: sanitizer,
		urlGuard:  urlGuard,
	}
}

// GetProfile はログイン中ユーザーのアカウントを返す。
func (s *Service) GetProfile(ctx context.Context, userID string) (*model.Account, error) {
	account, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if account == nil {
		return nil, model.NewUserNotFoundError()
	}
	return account, nil
}

// UpdateProfile は氏名とアバター画像を更新する。
// 氏名は空（タグ除去後を含む）なら変更しない。
// 画像はキーが存在すれば空文字列でも置き換え、空でなければURL検証を行う。
func (s *Service) UpdateProfile(ctx context.Context, userID string, input ProfileInput) (*model.Account, error) {
	var update model.ProfileUpdate

	if name := s.sanitizer.Sanitize(input.FullName); name != "" {
		update.FullName = &name
	}

	if input.Image.Set {
		image := strings.TrimSpace(input.Image.Value)
		if image != "" {
			if err := s.urlGuard.ValidateURL(image); err != nil {
				slog.Debug("プロフィール画像URLを拒否しました",
					slog.String("user_id", userID),
					slog.String("reason", err.Error()),
				)
				return nil, model.NewInvalidImageURLError()
			}
		}
		update.Image = &image
	}

	account, err := s.userRepo.UpdateProfile(ctx, userID, update)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}
	if account == nil {
		return nil, model.NewUserNotFoundError()
	}

	slog.Info("プロフィールを更新しました", slog.String("user_id", userID))
	return account, nil
}

// EmailExists はメールアドレスが登録済みかを返す。
func (s *Service) EmailExists(ctx context.Context, email string) (bool, error) {
	if strings.TrimSpace(email) == "" {
		return false, model.NewEmailRequiredError()
	}

	account, err := s.userRepo.FindByEmail(ctx, model.NormalizeEmail(email))
	if err != nil {
		return false, fmt.Errorf("メールアドレスの確認に失敗しました: %w", err)
	}
	return account != nil, nil
}
