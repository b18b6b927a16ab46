package store

import (
	"context"
	"errors"
	"time"
)

// Seed populates the store with the starter catalogue when it is empty.
// Existing records are left untouched.
func (s *DB) Seed(ctx context.Context) error {
	for _, p := range SampleProducts() {
		p := p
		if err := s.CreateProduct(ctx, &p); err != nil && !errors.Is(err, ErrConflict) {
			return err
		}
	}
	for _, sale := range SampleSales() {
		sale := sale
		if err := s.CreateSale(ctx, &sale); err != nil && !errors.Is(err, ErrConflict) {
			return err
		}
	}
	for _, v := range SampleVendors() {
		_, err := s.GetVendor(ctx, v.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		if _, err := s.db.ExecContext(ctx,
			"INSERT INTO vendors (id, name, contact, email, phone) VALUES (?, ?, ?, ?, ?)",
			v.ID, v.Name, v.Contact, v.Email, v.Phone); err != nil {
			return err
		}
	}
	return nil
}

// SampleProducts returns the starter product catalogue.
func SampleProducts() []Product {
	return []Product{
		{
			ID: "prod_001", CompanyID: "comp_001", Name: "Apple iPhone 15 Pro",
			Category: "Electronics", Brand: "Apple", Rating: 4.8,
			Description: "Latest flagship smartphone with A17 Pro chip and titanium design",
			Variants: []Variant{
				{ID: "var_001a", Name: "128GB Natural Titanium", RetailPrice: 134900, Stock: 12},
				{ID: "var_001b", Name: "256GB Blue Titanium", RetailPrice: 144900, Stock: 8},
			},
		},
		{
			ID: "prod_002", CompanyID: "comp_001", Name: "Samsung Galaxy S24 Ultra",
			Category: "Electronics", Brand: "Samsung", Rating: 4.7,
			Description: "Premium Android smartphone with S Pen and 200MP camera",
			Variants: []Variant{
				{ID: "var_002a", Name: "256GB Titanium Gray", RetailPrice: 129999, Stock: 15},
			},
		},
		{
			ID: "prod_003", CompanyID: "comp_001", Name: "Nike Air Max 270",
			Category: "Sports", Brand: "Nike", Rating: 4.5,
			Description: "Comfortable running shoes with Max Air cushioning",
			Variants: []Variant{
				{ID: "var_003a", Name: "UK 9 Black", RetailPrice: 12995, Stock: 30},
				{ID: "var_003b", Name: "UK 10 White", RetailPrice: 12995, Stock: 22},
			},
		},
		{
			ID: "prod_004", CompanyID: "comp_001", Name: "Sony WH-1000XM5",
			Category: "Electronics", Brand: "Sony", Rating: 4.9,
			Description: "Premium noise-cancelling wireless headphones",
			Variants: []Variant{
				{ID: "var_004a", Name: "Black", RetailPrice: 29990, Stock: 18},
			},
		},
		{
			ID: "prod_005", CompanyID: "comp_001", Name: "Levi's 501 Original Jeans",
			Category: "Fashion", Brand: "Levi's", Rating: 4.6,
			Description: "Classic straight fit denim jeans",
			Variants: []Variant{
				{ID: "var_005a", Name: "32x32 Indigo", RetailPrice: 4999, Stock: 40},
			},
		},
	}
}

// SampleSales returns the starter sales records.
func SampleSales() []Sale {
	return []Sale{
		{
			ID: "sale_001", CompanyID: "comp_001", CustomerID: "cust_001",
			InvoiceNumber: "INV-2025-001", Total: 79999, PaymentStatus: "PAID",
			PaymentMethod: "CARD",
			CreatedAt:     time.Date(2025, 2, 15, 14, 22, 0, 0, time.UTC),
			Items:         []SaleItem{{VariantID: "var_002a", Qty: 1, Price: 79999}},
		},
		{
			ID: "sale_002", CompanyID: "comp_001", CustomerID: "cust_002",
			InvoiceNumber: "INV-2025-002", Total: 24999, Discount: 1000,
			PaymentStatus: "PENDING", PaymentMethod: "UPI",
			CreatedAt: time.Date(2025, 2, 16, 10, 15, 0, 0, time.UTC),
			Items:     []SaleItem{{VariantID: "var_004a", Qty: 1, Price: 24999}},
		},
	}
}

// SampleVendors returns the starter vendor records.
func SampleVendors() []Vendor {
	return []Vendor{
		{ID: "vendor_001", Name: "Tech Supplies India", Contact: "Rajesh Kumar",
			Email: "rajesh@techsupplies.in", Phone: "+91-9876543210"},
		{ID: "vendor_002", Name: "Fashion Wholesale Co", Contact: "Priya Sharma",
			Email: "priya@fashionwholesale.com", Phone: "+91-9876543211"},
	}
}
