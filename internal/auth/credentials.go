package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hitoshi/estatehub/internal/model"
	"github.com/hitoshi/estatehub/internal/security"
)

// 資格情報照合のエラー。HTTP層ではErrAccountNotFoundとErrInvalidPasswordを区別しない。
var (
	ErrMissingCredentials = errors.New("auth: email and password are required")
	ErrAccountNotFound    = errors.New("auth: no account with this email")
	ErrInvalidPassword    = errors.New("auth: invalid password")
)

// CredentialVerifier はメールアドレスとパスワードでアカウントを照合する。
// 読み取り専用で、アカウントを変更しない。
type CredentialVerifier struct {
	accounts AccountLookup
	hasher   security.PasswordHasher
}

// NewCredentialVerifier はCredentialVerifierを生成する。
func NewCredentialVerifier(accounts AccountLookup, hasher security.PasswordHasher) *CredentialVerifier {
	return &CredentialVerifier{accounts: accounts, hasher: hasher}
}

// Authenticate は資格情報を照合し、一致したアカウントの公開情報を返す。
func (v *CredentialVerifier) Authenticate(ctx context.Context, email, password string) (*model.Identity, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	account, err := v.accounts.FindByEmail(ctx, model.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to find account by email: %w", err)
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}

	if err := v.hasher.Compare(account.PasswordHash, password); err != nil {
		return nil, ErrInvalidPassword
	}

	identity := account.Identity()
	return &identity, nil
}
