package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/estatehub/internal/middleware"
	"github.com/hitoshi/estatehub/internal/model"
	"github.com/hitoshi/estatehub/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	GetProfile(ctx context.Context, userID string) (*model.Account, error)
	UpdateProfile(ctx context.Context, userID string, input user.ProfileInput) (*model.Account, error)
	EmailExists(ctx context.Context, email string) (bool, error)
}

// UserHandler はプロフィールとメールアドレス確認のHTTPハンドラー。
type UserHandler struct {
	service  UserServiceInterface
	sessions SessionIssuer
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, sessions SessionIssuer) *UserHandler {
	return &UserHandler{
		service:  service,
		sessions: sessions,
	}
}

type checkEmailRequest struct {
	Email string `json:"email"`
}

type updateProfileResponse struct {
	Message string          `json:"message"`
	User    profileResponse `json:"user"`
}

// CheckEmail はメールアドレスが登録済みかを返す。
// POST /user/check-email
func (h *UserHandler) CheckEmail(w http.ResponseWriter, r *http.Request) {
	var req checkEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	exists, err := h.service.EmailExists(r.Context(), req.Email)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"exists": exists})
}

// GetProfile はログインユーザーのプロフィールを返す。
// GET /user/profile
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, model.NewUnauthorizedError())
		return
	}

	account, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, toProfileResponse(account))
}

// UpdateProfile は氏名とアバターを更新し、同じリクエスト内でセッションを再同期する。
// PATCH /user/profile
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok || claims.UserID() == "" {
		middleware.WriteErrorResponse(w, model.NewUnauthorizedError())
		return
	}

	var input user.ProfileInput
	if err := decodeJSON(r, &input); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	account, err := h.service.UpdateProfile(r.Context(), claims.UserID(), input)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	// 更新自体は成功しているため、セッションの再発行に失敗しても応答は変えない
	if _, err := h.sessions.Refresh(r.Context(), w, claims); err != nil {
		slog.Warn("failed to refresh session after profile update",
			slog.String("user_id", account.ID),
			slog.String("error", err.Error()),
		)
	}

	middleware.WriteJSON(w, http.StatusOK, updateProfileResponse{
		Message: "Profile updated successfully",
		User:    toProfileResponse(account),
	})
}
