package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/estatehub/internal/model"
	"github.com/hitoshi/estatehub/internal/user"
)

func sampleAccount() *model.Account {
	image := "https://images.example.com/me.png"
	return &model.Account{
		ID:           "u1",
		FullName:     "Hanako",
		Email:        "hanako@example.com",
		PasswordHash: "$2a$12$secret",
		Image:        &image,
		CreatedAt:    testTime,
		UpdatedAt:    testTime,
	}
}

func TestUserHandler_CheckEmail(t *testing.T) {
	svc := &mockUserService{
		emailExistsFn: func(ctx context.Context, email string) (bool, error) {
			return email == "taken@example.com", nil
		},
	}
	h := NewUserHandler(svc, &mockSessionIssuer{})

	for email, want := range map[string]bool{"taken@example.com": true, "free@example.com": false} {
		w := httptest.NewRecorder()
		h.CheckEmail(w, jsonRequest(http.MethodPost, "/user/check-email", `{"email":"`+email+`"}`))

		var body map[string]bool
		decodeBody(t, w, &body)
		if body["exists"] != want {
			t.Errorf("exists(%s) = %v, want %v", email, body["exists"], want)
		}
	}
}

func TestUserHandler_CheckEmail_Missing(t *testing.T) {
	svc := &mockUserService{
		emailExistsFn: func(ctx context.Context, email string) (bool, error) {
			return false, model.NewEmailRequiredError()
		},
	}

	w := httptest.NewRecorder()
	NewUserHandler(svc, &mockSessionIssuer{}).CheckEmail(w, jsonRequest(http.MethodPost, "/user/check-email", `{}`))
	assertError(t, w, http.StatusBadRequest, "Email is required")
}

func TestUserHandler_GetProfile(t *testing.T) {
	svc := &mockUserService{
		getProfileFn: func(ctx context.Context, userID string) (*model.Account, error) {
			if userID != "u1" {
				t.Errorf("userID = %q", userID)
			}
			return sampleAccount(), nil
		},
	}

	w := httptest.NewRecorder()
	NewUserHandler(svc, &mockSessionIssuer{}).GetProfile(w, withSession(httptest.NewRequest(http.MethodGet, "/user/profile", nil), "u1"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if strings.Contains(w.Body.String(), "secret") {
		t.Error("password hash must not be exposed")
	}
	var body profileResponse
	decodeBody(t, w, &body)
	if body.FullName != "Hanako" || body.Image == nil || body.EmailVerified != nil {
		t.Errorf("profile = %+v", body)
	}
}

func TestUserHandler_GetProfile_NotFound(t *testing.T) {
	svc := &mockUserService{
		getProfileFn: func(ctx context.Context, userID string) (*model.Account, error) {
			return nil, model.NewUserNotFoundError()
		},
	}

	w := httptest.NewRecorder()
	NewUserHandler(svc, &mockSessionIssuer{}).GetProfile(w, withSession(httptest.NewRequest(http.MethodGet, "/user/profile", nil), "u1"))
	assertError(t, w, http.StatusNotFound, "User not found")
}

func TestUserHandler_UpdateProfile_RefreshesSession(t *testing.T) {
	var got user.ProfileInput
	svc := &mockUserService{
		updateProfileFn: func(ctx context.Context, userID string, input user.ProfileInput) (*model.Account, error) {
			got = input
			account := sampleAccount()
			account.FullName = input.FullName
			account.Image = nil
			return account, nil
		},
	}
	sessions := &mockSessionIssuer{}

	req := withSession(jsonRequest(http.MethodPatch, "/user/profile", `{"fullName":"Renamed","image":null}`), "u1")
	w := httptest.NewRecorder()
	NewUserHandler(svc, sessions).UpdateProfile(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if got.FullName != "Renamed" || !got.Image.Set || got.Image.Value != "" {
		t.Errorf("input = %+v", got)
	}
	if sessions.refreshed != 1 {
		t.Errorf("refreshed = %d, want 1", sessions.refreshed)
	}

	var body updateProfileResponse
	decodeBody(t, w, &body)
	if body.Message != "Profile updated successfully" || body.User.FullName != "Renamed" || body.User.Image != nil {
		t.Errorf("body = %+v", body)
	}
}

func TestUserHandler_UpdateProfile_NoSession(t *testing.T) {
	w := httptest.NewRecorder()
	NewUserHandler(&mockUserService{}, &mockSessionIssuer{}).
		UpdateProfile(w, jsonRequest(http.MethodPatch, "/user/profile", `{"fullName":"x"}`))
	assertError(t, w, http.StatusUnauthorized, "Unauthorized")
}

func TestUserHandler_UpdateProfile_InvalidImage_NoRefresh(t *testing.T) {
	svc := &mockUserService{
		updateProfileFn: func(ctx context.Context, userID string, input user.ProfileInput) (*model.Account, error) {
			return nil, model.NewInvalidImageURLError()
		},
	}
	sessions := &mockSessionIssuer{}

	req := withSession(jsonRequest(http.MethodPatch, "/user/profile", `{"image":"http://127.0.0.1/x.png"}`), "u1")
	w := httptest.NewRecorder()
	NewUserHandler(svc, sessions).UpdateProfile(w, req)

	assertError(t, w, http.StatusBadRequest, "Invalid image URL")
	if sessions.refreshed != 0 {
		t.Error("session must not be refreshed when the update fails")
	}
}
