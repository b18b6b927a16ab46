// Package store provides the keyed record store for products, sales, and
// vendors, plus durable session snapshots. It uses modernc.org/sqlite for
// pure-Go, CGO-free database access.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a record with the given id does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when creating a record whose id already exists.
	ErrConflict = errors.New("record id already exists")
)

// Product is a catalogue entry.
type Product struct {
	ID          string    `json:"id"`
	CompanyID   string    `json:"company_id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Brand       string    `json:"brand"`
	Description string    `json:"description"`
	Rating      float64   `json:"rating"`
	Variants    []Variant `json:"variants"`
}

// Variant is a sellable variation of a product.
type Variant struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	RetailPrice float64 `json:"retail_price"`
	Stock       int     `json:"stock"`
}

// Sale is a recorded transaction.
type Sale struct {
	ID            string     `json:"id"`
	CompanyID     string     `json:"company_id"`
	CustomerID    string     `json:"customer_id"`
	InvoiceNumber string     `json:"invoice_number"`
	Total         float64    `json:"total"`
	Discount      float64    `json:"discount"`
	PaymentStatus string     `json:"payment_status"`
	PaymentMethod string     `json:"payment_method"`
	CreatedAt     time.Time  `json:"created_at"`
	Items         []SaleItem `json:"items"`
}

// SaleItem is a line item within a sale.
type SaleItem struct {
	VariantID string  `json:"variant_id"`
	Qty       int     `json:"qty"`
	Price     float64 `json:"price"`
}

// Vendor is a supplier record.
type Vendor struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Contact string `json:"contact"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
}

// ProductFilter selects products in a search.
type ProductFilter struct {
	Query     string  // substring match over name, brand, category, description
	Category  string  // exact category
	Brand     string  // exact brand (case-insensitive)
	PriceMin  float64 // any variant retail price >= PriceMin (0 = unset)
	PriceMax  float64 // any variant retail price <= PriceMax (0 = unset)
	RatingMin float64
	Limit     int
}

// SaleFilter selects sales in a search.
type SaleFilter struct {
	CustomerID string
	Status     string
	DateFrom   time.Time
	DateTo     time.Time
	Limit      int
}

// Store is the keyed CRUD interface consumed by validation and the domain
// handlers. Implementations must provide read-your-writes consistency within
// one call sequence, reject duplicate ids on create with ErrConflict, and
// reject updates of absent ids with ErrNotFound.
type Store interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
	SearchProducts(ctx context.Context, f ProductFilter) ([]Product, error)
	CreateProduct(ctx context.Context, p *Product) error
	UpdateProduct(ctx context.Context, p *Product) error
	VariantExists(ctx context.Context, variantID string) (bool, error)
	GetVariant(ctx context.Context, variantID string) (*Variant, error)

	GetSale(ctx context.Context, id string) (*Sale, error)
	SearchSales(ctx context.Context, f SaleFilter) ([]Sale, error)
	CreateSale(ctx context.Context, s *Sale) error
	UpdateSale(ctx context.Context, s *Sale) error

	GetVendor(ctx context.Context, id string) (*Vendor, error)
	ListVendors(ctx context.Context) ([]Vendor, error)
	SearchVendors(ctx context.Context, query string) ([]Vendor, error)
}

// SnapshotStore persists per-session conversational state across restarts.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, sessionID string, payload []byte) error
	LoadSnapshot(ctx context.Context, sessionID string) ([]byte, error)
	DeleteSnapshot(ctx context.Context, sessionID string) error
}
