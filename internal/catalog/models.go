package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type NewCategory struct {
	Name     string `json:"name" validate:"required,max=80"`
	ImageURL string `json:"image_url" validate:"omitempty,url"`
}

type Product struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Slug         string          `json:"slug"`
	Description  string          `json:"description,omitempty"`
	CategoryID   string          `json:"category_id"`
	CategoryName string          `json:"category"`
	Price        decimal.Decimal `json:"price"`
	BaseGrams    int             `json:"base_grams"`
	Stock        int             `json:"stock"`
	ImageURLs    []string        `json:"image_urls"`
	Sizes        []PackSize      `json:"sizes"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// PackSize is one purchasable package of a product with its own price.
type PackSize struct {
	Label string          `json:"label"`
	Grams int             `json:"grams"`
	Price decimal.Decimal `json:"price"`
}

// NewProduct is the admin payload for creating or replacing a product. Pack prices are
// always derived from Price and BaseGrams; PackGrams defaults to DefaultPackGrams.
type NewProduct struct {
	Name        string          `json:"name" validate:"required,max=120"`
	Description string          `json:"description" validate:"max=4000"`
	CategoryID  string          `json:"category_id" validate:"required"`
	Price       decimal.Decimal `json:"price"`
	BaseGrams   int             `json:"base_grams" validate:"omitempty,min=1"`
	Stock       int             `json:"stock" validate:"min=0"`
	ImageURLs   []string        `json:"image_urls" validate:"dive,url"`
	PackGrams   []int           `json:"pack_grams" validate:"dive,min=1"`
}

// StockLine is one product quantity to take out of stock.
type StockLine struct {
	ProductID string
	Quantity  int
}
