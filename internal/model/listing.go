package model

import "time"

// Category は物件の取引種別（賃貸/売買）。
type Category string

const (
	CategoryRent Category = "rent"
	CategorySell Category = "sell"
)

// Valid は取引種別が定義済みの値かを返す。
func (c Category) Valid() bool {
	return c == CategoryRent || c == CategorySell
}

// ListingStatus は物件の掲載状態。
type ListingStatus string

const (
	StatusActive  ListingStatus = "active"
	StatusPending ListingStatus = "pending"
	StatusSold    ListingStatus = "sold"
	StatusRented  ListingStatus = "rented"
)

// Listing は掲載物件（propertiesテーブル）を表す。
type Listing struct {
	ID          string        `db:"id"`
	OwnerID     string        `db:"user_id"`
	Title       string        `db:"title"`
	Description string        `db:"description"`
	Category    Category      `db:"type"`
	Price       float64       `db:"price"`
	Location    string        `db:"location"`
	Bedrooms    int           `db:"bedrooms"`
	Bathrooms   float64       `db:"bathrooms"`
	ImageURL    string        `db:"image_url"`
	Status      ListingStatus `db:"status"`
	CreatedAt   time.Time     `db:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at"`
}

// ListingFields は作成・更新で受け付ける検証済みの物件属性。
type ListingFields struct {
	Title       string
	Description string
	Category    Category
	Price       float64
	Location    string
	Bedrooms    int
	Bathrooms   float64
	ImageURL    string
}

// Apply は検証済み属性をListingに反映する。
func (l *Listing) Apply(f ListingFields) {
	l.Title = f.Title
	l.Description = f.Description
	l.Category = f.Category
	l.Price = f.Price
	l.Location = f.Location
	l.Bedrooms = f.Bedrooms
	l.Bathrooms = f.Bathrooms
	l.ImageURL = f.ImageURL
}
