package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// GetProduct returns a product by id, or ErrNotFound.
func (s *DB) GetProduct(ctx context.Context, id string) (*Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, company_id, name, category, brand, description, rating, variants
		FROM products WHERE id = ?`, id)
	return scanProduct(row)
}

// SearchProducts returns products matching the filter. Free-text query
// matches name, brand, category, and description, case-insensitively.
func (s *DB) SearchProducts(ctx context.Context, f ProductFilter) ([]Product, error) {
	where := []string{"1=1"}
	args := []any{}

	if f.Query != "" {
		q := "%" + strings.ToLower(f.Query) + "%"
		where = append(where, `(lower(name) LIKE ? OR lower(brand) LIKE ? OR lower(category) LIKE ? OR lower(description) LIKE ?)`)
		args = append(args, q, q, q, q)
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if f.Brand != "" {
		where = append(where, "lower(brand) = lower(?)")
		args = append(args, f.Brand)
	}
	if f.RatingMin > 0 {
		where = append(where, "rating >= ?")
		args = append(args, f.RatingMin)
	}

	query := fmt.Sprintf(`
		SELECT id, company_id, name, category, brand, description, rating, variants
		FROM products WHERE %s ORDER BY rating DESC, id`, strings.Join(where, " AND "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProductRows(rows)
		if err != nil {
			return nil, err
		}
		if !priceInRange(p, f.PriceMin, f.PriceMax) {
			continue
		}
		out = append(out, *p)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, rows.Err()
}

// priceInRange reports whether any variant falls inside the price bounds.
// A product with no variants passes unless a bound is set.
func priceInRange(p *Product, min, max float64) bool {
	if min <= 0 && max <= 0 {
		return true
	}
	if len(p.Variants) == 0 {
		return false
	}
	for _, v := range p.Variants {
		if min > 0 && v.RetailPrice < min {
			continue
		}
		if max > 0 && v.RetailPrice > max {
			continue
		}
		return true
	}
	return false
}

// CreateProduct inserts a new product. Returns ErrConflict if the id exists.
func (s *DB) CreateProduct(ctx context.Context, p *Product) error {
	variants, err := json.Marshal(p.Variants)
	if err != nil {
		return fmt.Errorf("marshal variants: %w", err)
	}

	return s.WithTx(ctx, func(tx *sql.Tx) error {
		var existing string
		err := tx.QueryRowContext(ctx, "SELECT id FROM products WHERE id = ?", p.ID).Scan(&existing)
		if err == nil {
			return fmt.Errorf("product %q: %w", p.ID, ErrConflict)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check product id: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO products (id, company_id, name, category, brand, description, rating, variants)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.CompanyID, p.Name, p.Category, p.Brand, p.Description, p.Rating, string(variants))
		if err != nil {
			return fmt.Errorf("insert product: %w", err)
		}
		return nil
	})
}

// UpdateProduct replaces an existing product. Returns ErrNotFound if absent.
func (s *DB) UpdateProduct(ctx context.Context, p *Product) error {
	variants, err := json.Marshal(p.Variants)
	if err != nil {
		return fmt.Errorf("marshal variants: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products SET company_id = ?, name = ?, category = ?, brand = ?,
			description = ?, rating = ?, variants = ?
		WHERE id = ?`,
		p.CompanyID, p.Name, p.Category, p.Brand, p.Description, p.Rating, string(variants), p.ID)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("product %q: %w", p.ID, ErrNotFound)
	}
	return nil
}

// VariantExists reports whether any product carries the given variant id.
func (s *DB) VariantExists(ctx context.Context, variantID string) (bool, error) {
	_, err := s.GetVariant(ctx, variantID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetVariant returns the variant with the given id across all products,
// or ErrNotFound.
func (s *DB) GetVariant(ctx context.Context, variantID string) (*Variant, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT variants FROM products")
	if err != nil {
		return nil, fmt.Errorf("scan variants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan variants row: %w", err)
		}
		var variants []Variant
		if err := json.Unmarshal([]byte(raw), &variants); err != nil {
			continue
		}
		for _, v := range variants {
			if v.ID == variantID {
				out := v
				return &out, nil
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return nil, ErrNotFound
}

// GetSale returns a sale by id, or ErrNotFound.
func (s *DB) GetSale(ctx context.Context, id string) (*Sale, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, company_id, customer_id, invoice_number, total, discount,
			payment_status, payment_method, created_at, items
		FROM sales WHERE id = ?`, id)
	return scanSale(row)
}

// SearchSales returns sales matching the filter, newest first.
func (s *DB) SearchSales(ctx context.Context, f SaleFilter) ([]Sale, error) {
	where := []string{"1=1"}
	args := []any{}

	if f.CustomerID != "" {
		where = append(where, "customer_id = ?")
		args = append(args, f.CustomerID)
	}
	if f.Status != "" {
		where = append(where, "payment_status = ?")
		args = append(args, f.Status)
	}
	if !f.DateFrom.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, f.DateFrom.UTC().Format(time.RFC3339))
	}
	if !f.DateTo.IsZero() {
		where = append(where, "created_at <= ?")
		args = append(args, f.DateTo.UTC().Format(time.RFC3339))
	}

	query := fmt.Sprintf(`
		SELECT id, company_id, customer_id, invoice_number, total, discount,
			payment_status, payment_method, created_at, items
		FROM sales WHERE %s ORDER BY created_at DESC`, strings.Join(where, " AND "))
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search sales: %w", err)
	}
	defer rows.Close()

	var out []Sale
	for rows.Next() {
		sale, err := scanSaleRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sale)
	}
	return out, rows.Err()
}

// CreateSale inserts a new sale. Returns ErrConflict if the id exists.
func (s *DB) CreateSale(ctx context.Context, sale *Sale) error {
	items, err := json.Marshal(sale.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	return s.WithTx(ctx, func(tx *sql.Tx) error {
		var existing string
		err := tx.QueryRowContext(ctx, "SELECT id FROM sales WHERE id = ?", sale.ID).Scan(&existing)
		if err == nil {
			return fmt.Errorf("sale %q: %w", sale.ID, ErrConflict)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check sale id: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO sales (id, company_id, customer_id, invoice_number, total,
				discount, payment_status, payment_method, created_at, items)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sale.ID, sale.CompanyID, sale.CustomerID, sale.InvoiceNumber, sale.Total,
			sale.Discount, sale.PaymentStatus, sale.PaymentMethod,
			sale.CreatedAt.UTC().Format(time.RFC3339), string(items))
		if err != nil {
			return fmt.Errorf("insert sale: %w", err)
		}
		return nil
	})
}

// UpdateSale replaces an existing sale. Returns ErrNotFound if absent.
func (s *DB) UpdateSale(ctx context.Context, sale *Sale) error {
	items, err := json.Marshal(sale.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE sales SET company_id = ?, customer_id = ?, invoice_number = ?,
			total = ?, discount = ?, payment_status = ?, payment_method = ?, items = ?
		WHERE id = ?`,
		sale.CompanyID, sale.CustomerID, sale.InvoiceNumber, sale.Total,
		sale.Discount, sale.PaymentStatus, sale.PaymentMethod, string(items), sale.ID)
	if err != nil {
		return fmt.Errorf("update sale: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("sale %q: %w", sale.ID, ErrNotFound)
	}
	return nil
}

// GetVendor returns a vendor by id, or ErrNotFound.
func (s *DB) GetVendor(ctx context.Context, id string) (*Vendor, error) {
	var v Vendor
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, contact, email, phone FROM vendors WHERE id = ?", id).
		Scan(&v.ID, &v.Name, &v.Contact, &v.Email, &v.Phone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("vendor %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get vendor: %w", err)
	}
	return &v, nil
}

// ListVendors returns all vendors ordered by id.
func (s *DB) ListVendors(ctx context.Context) ([]Vendor, error) {
	return s.queryVendors(ctx, "SELECT id, name, contact, email, phone FROM vendors ORDER BY id")
}

// SearchVendors returns vendors whose name contains the query.
func (s *DB) SearchVendors(ctx context.Context, query string) ([]Vendor, error) {
	return s.queryVendors(ctx,
		"SELECT id, name, contact, email, phone FROM vendors WHERE lower(name) LIKE ? ORDER BY id",
		"%"+strings.ToLower(query)+"%")
}

func (s *DB) queryVendors(ctx context.Context, query string, args ...any) ([]Vendor, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query vendors: %w", err)
	}
	defer rows.Close()

	var out []Vendor
	for rows.Next() {
		var v Vendor
		if err := rows.Scan(&v.ID, &v.Name, &v.Contact, &v.Email, &v.Phone); err != nil {
			return nil, fmt.Errorf("scan vendor: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// SaveSnapshot upserts a serialized session state document.
func (s *DB) SaveSnapshot(ctx context.Context, sessionID string, payload []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_snapshots (session_id, payload, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(session_id) DO UPDATE SET payload = excluded.payload,
			updated_at = CURRENT_TIMESTAMP`,
		sessionID, string(payload))
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the serialized state for a session, or ErrNotFound.
func (s *DB) LoadSnapshot(ctx context.Context, sessionID string) ([]byte, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM session_snapshots WHERE session_id = ?", sessionID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot %q: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return []byte(payload), nil
}

// DeleteSnapshot removes a session's persisted state. Absent ids are a no-op.
func (s *DB) DeleteSnapshot(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM session_snapshots WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row *sql.Row) (*Product, error) {
	p, err := scanProductFrom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product: %w", ErrNotFound)
	}
	return p, err
}

func scanProductRows(rows *sql.Rows) (*Product, error) {
	return scanProductFrom(rows)
}

func scanProductFrom(r rowScanner) (*Product, error) {
	var p Product
	var variants string
	if err := r.Scan(&p.ID, &p.CompanyID, &p.Name, &p.Category, &p.Brand,
		&p.Description, &p.Rating, &variants); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(variants), &p.Variants); err != nil {
		return nil, fmt.Errorf("decode variants for %s: %w", p.ID, err)
	}
	return &p, nil
}

func scanSale(row *sql.Row) (*Sale, error) {
	s, err := scanSaleFrom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sale: %w", ErrNotFound)
	}
	return s, err
}

func scanSaleRows(rows *sql.Rows) (*Sale, error) {
	return scanSaleFrom(rows)
}

func scanSaleFrom(r rowScanner) (*Sale, error) {
	var s Sale
	var items, createdAt string
	if err := r.Scan(&s.ID, &s.CompanyID, &s.CustomerID, &s.InvoiceNumber, &s.Total,
		&s.Discount, &s.PaymentStatus, &s.PaymentMethod, &createdAt, &items); err != nil {
		return nil, err
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		s.CreatedAt = t
	}
	if err := json.Unmarshal([]byte(items), &s.Items); err != nil {
		return nil, fmt.Errorf("decode items for %s: %w", s.ID, err)
	}
	return &s, nil
}
