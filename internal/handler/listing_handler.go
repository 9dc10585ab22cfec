package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/estatehub/internal/listing"
	"github.com/hitoshi/estatehub/internal/middleware"
	"github.com/hitoshi/estatehub/internal/model"
)

// ListingServiceInterface は物件ハンドラーが必要とするサービスインターフェース。
type ListingServiceInterface interface {
	Create(ctx context.Context, ownerID string, input listing.Input) (*model.Listing, error)
	Get(ctx context.Context, rawID string) (*model.Listing, error)
	List(ctx context.Context, q listing.ListQuery) ([]*model.Listing, error)
	ListMine(ctx context.Context, ownerID string) ([]*model.Listing, error)
	// Update は所有者確認の後でdecodeを呼び、リクエストボディを読み込む。
	Update(ctx context.Context, callerID, rawID string, decode func(*listing.Input) error) error
	Delete(ctx context.Context, callerID, rawID string) error
}

// ListingHandler は物件掲載のHTTPハンドラー。
type ListingHandler struct {
	service ListingServiceInterface
}

// NewListingHandler はListingHandlerを生成する。
func NewListingHandler(service ListingServiceInterface) *ListingHandler {
	return &ListingHandler{service: service}
}

type createListingResponse struct {
	Message    string `json:"message"`
	PropertyID string `json:"propertyId"`
}

type listingsResponse struct {
	Properties []listingResponse `json:"properties"`
}

// Create は物件を登録する。
// POST /properties
func (h *ListingHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, model.NewUnauthorizedError())
		return
	}

	var input listing.Input
	if err := decodeJSON(r, &input); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	created, err := h.service.Create(r.Context(), userID, input)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, createListingResponse{
		Message:    "Property created successfully",
		PropertyID: created.ID,
	})
}

// Get は物件の詳細を返す。
// GET /properties/{id}
func (h *ListingHandler) Get(w http.ResponseWriter, r *http.Request) {
	l, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]listingResponse{
		"property": toListingResponse(l),
	})
}

// List は公開中の物件一覧を返す。
// GET /properties?type=rent|sell&userId=xxx
func (h *ListingHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	listings, err := h.service.List(r.Context(), listing.ListQuery{
		Type:   q.Get("type"),
		UserID: q.Get("userId"),
	})
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, listingsResponse{Properties: toListingResponses(listings)})
}

// Mine はログインユーザーの物件を全ステータスで返す。
// GET /properties/mine
func (h *ListingHandler) Mine(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, model.NewUnauthorizedError())
		return
	}

	listings, err := h.service.ListMine(r.Context(), userID)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, listingsResponse{Properties: toListingResponses(listings)})
}

// Update は物件を更新する。所有者のみ実行できる。
// PUT /properties/{id}
func (h *ListingHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, model.NewUnauthorizedError())
		return
	}

	decode := func(input *listing.Input) error {
		return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(input)
	}
	if err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), decode); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, messageResponse{Message: "Property updated successfully"})
}

// Delete は物件を削除する。所有者のみ実行できる。
// DELETE /properties/{id}
func (h *ListingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, model.NewUnauthorizedError())
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, messageResponse{Message: "Property deleted successfully"})
}
