package user

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/hitoshi/estatehub/internal/model"
	"github.com/hitoshi/estatehub/internal/repository"
	"github.com/hitoshi/estatehub/internal/security"
)

// --- モック ---

type mockUserRepo struct {
	findByIDFn      func(ctx context.Context, id string) (*model.Account, error)
	findByEmailFn   func(ctx context.Context, email string) (*model.Account, error)
	updateProfileFn func(ctx context.Context, id string, update model.ProfileUpdate) (*model.Account, error)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, account *model.Account) error {
	return nil
}

func (m *mockUserRepo) UpdateProfile(ctx context.Context, id string, update model.ProfileUpdate) (*model.Account, error) {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, id, update)
	}
	return nil, nil
}

var _ repository.UserRepository = (*mockUserRepo)(nil)

func newTestService(repo *mockUserRepo) *Service {
	return NewService(repo, security.NewTextSanitizer(), security.NewURLGuard())
}

func apiErrorCode(t *testing.T, err error) string {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T (%v)", err, err)
	}
	return apiErr.Code
}

// --- テスト ---

func TestService_GetProfile(t *testing.T) {
	now := time.Now()
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Account, error) {
			if id == "acc-1" {
				return &model.Account{ID: id, FullName: "Hana", Email: "hana@example.com", CreatedAt: now}, nil
			}
			return nil, nil
		},
	}
	svc := newTestService(repo)

	account, err := svc.GetProfile(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if account.FullName != "Hana" {
		t.Errorf("FullName = %q", account.FullName)
	}

	_, err = svc.GetProfile(context.Background(), "missing")
	if code := apiErrorCode(t, err); code != model.ErrCodeUserNotFound {
		t.Errorf("code = %q, want %q", code, model.ErrCodeUserNotFound)
	}
}

func TestService_UpdateProfile(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		wantFullName *string
		wantImage    *string
	}{
		{
			name:         "name and image",
			body:         `{"fullName":"Hana Sato","image":"https://cdn.example.com/a.png"}`,
			wantFullName: ptr("Hana Sato"),
			wantImage:    ptr("https://cdn.example.com/a.png"),
		},
		{
			name:         "empty name is ignored",
			body:         `{"fullName":"","image":"https://cdn.example.com/a.png"}`,
			wantFullName: nil,
			wantImage:    ptr("https://cdn.example.com/a.png"),
		},
		{
			name:         "markup is stripped from name",
			body:         `{"fullName":"<i>Hana</i>"}`,
			wantFullName: ptr("Hana"),
			wantImage:    nil,
		},
		{
			name:         "empty image clears avatar",
			body:         `{"image":""}`,
			wantFullName: nil,
			wantImage:    ptr(""),
		},
		{
			name:         "null image clears avatar",
			body:         `{"image":null}`,
			wantFullName: nil,
			wantImage:    ptr(""),
		},
		{
			name:         "absent image is left alone",
			body:         `{"fullName":"Hana"}`,
			wantFullName: ptr("Hana"),
			wantImage:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got model.ProfileUpdate
			repo := &mockUserRepo{
				updateProfileFn: func(ctx context.Context, id string, update model.ProfileUpdate) (*model.Account, error) {
					got = update
					return &model.Account{ID: id}, nil
				},
			}
			svc := newTestService(repo)

			var input ProfileInput
			if err := json.Unmarshal([]byte(tt.body), &input); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}

			if _, err := svc.UpdateProfile(context.Background(), "acc-1", input); err != nil {
				t.Fatalf("UpdateProfile() error = %v", err)
			}
			assertStringPtr(t, "FullName", got.FullName, tt.wantFullName)
			assertStringPtr(t, "Image", got.Image, tt.wantImage)
		})
	}
}

func TestService_UpdateProfile_RejectsUnsafeImage(t *testing.T) {
	repo := &mockUserRepo{
		updateProfileFn: func(ctx context.Context, id string, update model.ProfileUpdate) (*model.Account, error) {
			t.Fatal("UpdateProfile should not be called for an unsafe image URL")
			return nil, nil
		},
	}
	svc := newTestService(repo)

	for _, image := range []string{"javascript:alert(1)", "http://169.254.169.254/latest/meta-data", "http://localhost/a.png"} {
		input := ProfileInput{Image: OptionalString{Set: true, Value: image}}
		_, err := svc.UpdateProfile(context.Background(), "acc-1", input)
		if code := apiErrorCode(t, err); code != model.ErrCodeInvalidImageURL {
			t.Errorf("%s: code = %q, want %q", image, code, model.ErrCodeInvalidImageURL)
		}
	}
}

func TestService_UpdateProfile_MissingAccount(t *testing.T) {
	svc := newTestService(&mockUserRepo{})

	_, err := svc.UpdateProfile(context.Background(), "gone", ProfileInput{FullName: "Hana"})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.HTTPStatus() != http.StatusNotFound {
		t.Errorf("expected 404 APIError, got %v", err)
	}
}

func TestService_EmailExists(t *testing.T) {
	repo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.Account, error) {
			if email == "hana@example.com" {
				return &model.Account{ID: "acc-1", Email: email}, nil
			}
			return nil, nil
		},
	}
	svc := newTestService(repo)

	exists, err := svc.EmailExists(context.Background(), "HANA@example.com")
	if err != nil || !exists {
		t.Errorf("EmailExists(registered) = %v, %v; want true, nil", exists, err)
	}

	exists, err = svc.EmailExists(context.Background(), "new@example.com")
	if err != nil || exists {
		t.Errorf("EmailExists(new) = %v, %v; want false, nil", exists, err)
	}

	_, err = svc.EmailExists(context.Background(), " ")
	if code := apiErrorCode(t, err); code != model.ErrCodeEmailRequired {
		t.Errorf("code = %q, want %q", code, model.ErrCodeEmailRequired)
	}
}

func TestService_EmailExists_RepositoryError(t *testing.T) {
	dbErr := errors.New("connection refused")
	repo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.Account, error) {
			return nil, dbErr
		},
	}
	svc := newTestService(repo)

	if _, err := svc.EmailExists(context.Background(), "a@b.co"); !errors.Is(err, dbErr) {
		t.Errorf("expected wrapped error, got %v", err)
	}
}

func ptr(s string) *string { return &s }

func assertStringPtr(t *testing.T, field string, got, want *string) {
	t.Helper()
	switch {
	case got == nil && want == nil:
	case got == nil || want == nil:
		t.Errorf("%s = %v, want %v", field, got, want)
	case *got != *want:
		t.Errorf("%s = %q, want %q", field, *got, *want)
	}
}
