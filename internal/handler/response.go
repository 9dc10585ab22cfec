package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/hitoshi/estatehub/internal/model"
)

// maxBodyBytes はJSONリクエストボディの読み込み上限。
const maxBodyBytes = 1 << 20

// decodeJSON はリクエストボディをvに読み込む。
// 解釈できない場合はInvalidBodyのAPIErrorを返す。
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		return model.NewInvalidBodyError()
	}
	return nil
}

// messageResponse は処理結果のメッセージのみを返すレスポンス。
type messageResponse struct {
	Message string `json:"message"`
}

// listingResponse は物件情報のAPIレスポンス。
type listingResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Type        string    `json:"type"`
	Price       float64   `json:"price"`
	Location    string    `json:"location"`
	Bedrooms    int       `json:"bedrooms"`
	Bathrooms   float64   `json:"bathrooms"`
	ImageURL    string    `json:"imageUrl"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toListingResponse(l *model.Listing) listingResponse {
	return listingResponse{
		ID:          l.ID,
		UserID:      l.OwnerID,
		Title:       l.Title,
		Description: l.Description,
		Type:        string(l.Category),
		Price:       l.Price,
		Location:    l.Location,
		Bedrooms:    l.Bedrooms,
		Bathrooms:   l.Bathrooms,
		ImageURL:    l.ImageURL,
		Status:      string(l.Status),
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

func toListingResponses(listings []*model.Listing) []listingResponse {
	out := make([]listingResponse, 0, len(listings))
	for _, l := range listings {
		out = append(out, toListingResponse(l))
	}
	return out
}

// profileResponse はプロフィールのAPIレスポンス。パスワードハッシュは含まない。
type profileResponse struct {
	ID            string     `json:"id"`
	FullName      string     `json:"fullName"`
	Email         string     `json:"email"`
	Image         *string    `json:"image"`
	EmailVerified *time.Time `json:"emailVerified"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func toProfileResponse(a *model.Account) profileResponse {
	return profileResponse{
		ID:            a.ID,
		FullName:      a.FullName,
		Email:         a.Email,
		Image:         a.Image,
		EmailVerified: a.EmailVerified,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

// sessionBody はGET/POST /auth/sessionのsessionフィールド。
type sessionBody struct {
	User    model.Identity `json:"user"`
	Expires time.Time      `json:"expires"`
}

// sessionResponse はセッションが無い場合にsession: nullとなる。
type sessionResponse struct {
	Session *sessionBody `json:"session"`
}
