package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/estatehub/internal/metrics"
	"github.com/hitoshi/estatehub/internal/model"
	"github.com/hitoshi/estatehub/internal/repository"
	"github.com/hitoshi/estatehub/internal/security"
	"github.com/hitoshi/estatehub/internal/validate"
)

// MinPasswordLength はパスワードの最小文字数。
const MinPasswordLength = 6

// RegisterInput はアカウント登録の入力。
type RegisterInput struct {
	FullName string `json:"fullName" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	users     repository.UserRepository
	hasher    security.PasswordHasher
	sanitizer security.TextSanitizer
	validator *validate.Validator
	verifier  *CredentialVerifier
	metrics   metrics.Recorder
	now       func() time.Time
}

// NewService はServiceを生成する。recorderがnilの場合はメトリクスを記録しない。
func NewService(
	users repository.UserRepository,
	hasher security.PasswordHasher,
	sanitizer security.TextSanitizer,
	validator *validate.Validator,
	recorder metrics.Recorder,
) *Service {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Service{
		users:     users,
		hasher:    hasher,
		sanitizer: sanitizer,
		validator: validator,
		verifier:  NewCredentialVerifier(users, hasher),
		metrics:   recorder,
		now:       time.Now,
	}
}

// Register はメールアドレスとパスワードでアカウントを作成する。
// 検証は必須項目、メール形式、パスワード長の順に行い、最初の違反を返す。
func (s *Service) Register(ctx context.Context, input RegisterInput) (*model.AccountSummary, error) {
	input.FullName = s.sanitizer.Sanitize(input.FullName)
	input.Email = strings.TrimSpace(input.Email)

	if err := s.validateRegistration(input); err != nil {
		s.metrics.RecordAuthEvent(metrics.EventRegister, metrics.OutcomeRejected)
		return nil, err
	}

	email := model.NormalizeEmail(input.Email)

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		s.metrics.RecordAuthEvent(metrics.EventRegister, metrics.OutcomeError)
		return nil, fmt.Errorf("failed to check existing account: %w", err)
	}
	if existing != nil {
		s.metrics.RecordAuthEvent(metrics.EventRegister, metrics.OutcomeRejected)
		return nil, model.NewEmailTakenError()
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		s.metrics.RecordAuthEvent(metrics.EventRegister, metrics.OutcomeError)
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	account := &model.Account{
		ID:           repository.NewID(),
		FullName:     input.FullName,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			s.metrics.RecordAuthEvent(metrics.EventRegister, metrics.OutcomeRejected)
			return nil, model.NewEmailTakenError()
		}
		s.metrics.RecordAuthEvent(metrics.EventRegister, metrics.OutcomeError)
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.metrics.RecordAuthEvent(metrics.EventRegister, metrics.OutcomeSuccess)
	slog.Info("account registered", slog.String("user_id", account.ID))

	return &model.AccountSummary{
		ID:       account.ID,
		FullName: account.FullName,
		Email:    account.Email,
	}, nil
}

func (s *Service) validateRegistration(input RegisterInput) error {
	if err := s.validator.Struct(input); err != nil {
		return model.NewMissingFieldsError()
	}
	if !s.validator.Var(input.Email, "email_shape") {
		return model.NewInvalidEmailError()
	}
	if !s.validator.Var(input.Password, fmt.Sprintf("min=%d", MinPasswordLength)) {
		return model.NewPasswordTooShortError(MinPasswordLength)
	}
	if !s.validator.Var(input.Password, fmt.Sprintf("maxbytes=%d", security.MaxPasswordBytes)) {
		return model.NewPasswordTooLongError(security.MaxPasswordBytes)
	}
	return nil
}

// Login は資格情報を照合し、アカウントの公開情報を返す。
// アカウントが存在しない場合とパスワード不一致は同じエラーになる。
func (s *Service) Login(ctx context.Context, email, password string) (*model.Identity, error) {
	identity, err := s.verifier.Authenticate(ctx, email, password)
	switch {
	case err == nil:
		s.metrics.RecordAuthEvent(metrics.EventLogin, metrics.OutcomeSuccess)
		slog.Info("user logged in", slog.String("user_id", identity.ID))
		return identity, nil
	case errors.Is(err, ErrMissingCredentials):
		s.metrics.RecordAuthEvent(metrics.EventLogin, metrics.OutcomeRejected)
		return nil, model.NewMissingCredentialsError()
	case errors.Is(err, ErrAccountNotFound), errors.Is(err, ErrInvalidPassword):
		s.metrics.RecordAuthEvent(metrics.EventLogin, metrics.OutcomeRejected)
		slog.Debug("login rejected", slog.String("reason", err.Error()))
		return nil, model.NewInvalidCredentialsError()
	default:
		s.metrics.RecordAuthEvent(metrics.EventLogin, metrics.OutcomeError)
		return nil, err
	}
}

// LinkOAuthAccount はOAuthプロバイダのユーザー情報をアカウントに対応付ける。
// 同じメールアドレスのアカウントが無ければパスワード無しで作成する。
// 初回サインインが競合してユニーク制約に違反した場合は既存アカウントを読み直す。
func (s *Service) LinkOAuthAccount(ctx context.Context, info *OAuthUserInfo) (*model.Identity, error) {
	email := model.NormalizeEmail(info.Email)
	if email == "" {
		s.metrics.RecordAuthEvent(metrics.EventOAuth, metrics.OutcomeRejected)
		return nil, ErrProviderEmailMissing
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		s.metrics.RecordAuthEvent(metrics.EventOAuth, metrics.OutcomeError)
		return nil, fmt.Errorf("failed to find account for oauth user: %w", err)
	}
	if existing != nil {
		s.metrics.RecordAuthEvent(metrics.EventOAuth, metrics.OutcomeSuccess)
		slog.Info("oauth account signed in",
			slog.String("user_id", existing.ID),
			slog.String("provider", info.Provider),
		)
		identity := existing.Identity()
		return &identity, nil
	}

	now := s.now()
	account := &model.Account{
		ID:            repository.NewID(),
		FullName:      s.sanitizer.Sanitize(info.Name),
		Email:         email,
		EmailVerified: &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if info.Picture != "" {
		picture := info.Picture
		account.Image = &picture
	}

	if err := s.users.Create(ctx, account); err != nil {
		if !errors.Is(err, repository.ErrDuplicateEmail) {
			s.metrics.RecordAuthEvent(metrics.EventOAuth, metrics.OutcomeError)
			return nil, fmt.Errorf("failed to create oauth account: %w", err)
		}

		winner, findErr := s.users.FindByEmail(ctx, email)
		if findErr != nil || winner == nil {
			s.metrics.RecordAuthEvent(metrics.EventOAuth, metrics.OutcomeError)
			return nil, fmt.Errorf("failed to re-read account after duplicate email: %w", errors.Join(err, findErr))
		}
		account = winner
	} else {
		slog.Info("oauth account linked",
			slog.String("user_id", account.ID),
			slog.String("provider", info.Provider),
		)
	}

	s.metrics.RecordAuthEvent(metrics.EventOAuth, metrics.OutcomeSuccess)
	identity := account.Identity()
	return &identity, nil
}
