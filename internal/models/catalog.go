package models

import "time"

// Catalog records carry ImportJobID when an import created them; rollback deletes by it.
// Values returns the mutable fields keyed by their import field key.

type Product struct {
	ID            string    `json:"id" db:"id"`
	TenantID      string    `json:"tenant_id" db:"tenant_id"`
	SKU           string    `json:"sku" db:"sku"`
	Name          string    `json:"name" db:"name"`
	Description   string    `json:"description" db:"description"`
	Category      string    `json:"category" db:"category"`
	Subcategory   string    `json:"subcategory" db:"subcategory"`
	Brand         string    `json:"brand" db:"brand"`
	UnitOfMeasure string    `json:"unit_of_measure" db:"unit_of_measure"`
	Price         float64   `json:"price" db:"price"`
	Cost          float64   `json:"cost" db:"cost"`
	Taxable       bool      `json:"taxable" db:"taxable"`
	Barcode       string    `json:"barcode" db:"barcode"`
	MinimumStock  float64   `json:"minimum_stock" db:"minimum_stock"`
	IsActive      bool      `json:"is_active" db:"is_active"`
	Tags          []string  `json:"tags" db:"tags"`
	ImportJobID   string    `json:"import_job_id,omitempty" db:"import_job_id"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

func (p *Product) Values() map[string]interface{} {
	return map[string]interface{}{
		"name":          p.Name,
		"description":   p.Description,
		"category":      p.Category,
		"subcategory":   p.Subcategory,
		"brand":         p.Brand,
		"unitOfMeasure": p.UnitOfMeasure,
		"price":         p.Price,
		"cost":          p.Cost,
		"taxable":       p.Taxable,
		"barcode":       p.Barcode,
		"minimumStock":  p.MinimumStock,
		"isActive":      p.IsActive,
		"tags":          p.Tags,
	}
}

type InventoryRecord struct {
	ID             string     `json:"id" db:"id"`
	TenantID       string     `json:"tenant_id" db:"tenant_id"`
	ProductID      string     `json:"product_id" db:"product_id"`
	ProductSKU     string     `json:"product_sku" db:"product_sku"`
	Quantity       float64    `json:"quantity" db:"quantity"`
	Location       string     `json:"location" db:"location"`
	LotNumber      string     `json:"lot_number" db:"lot_number"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty" db:"expiration_date"`
	UnitCost       float64    `json:"unit_cost" db:"unit_cost"`
	ImportJobID    string     `json:"import_job_id,omitempty" db:"import_job_id"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

func (r *InventoryRecord) Values() map[string]interface{} {
	var exp interface{}
	if r.ExpirationDate != nil {
		exp = *r.ExpirationDate
	}
	return map[string]interface{}{
		"quantity":       r.Quantity,
		"location":       r.Location,
		"lotNumber":      r.LotNumber,
		"expirationDate": exp,
		"unitCost":       r.UnitCost,
	}
}

type Customer struct {
	ID           string    `json:"id" db:"id"`
	TenantID     string    `json:"tenant_id" db:"tenant_id"`
	Name         string    `json:"name" db:"name"`
	CustomerType string    `json:"customer_type" db:"customer_type"`
	TaxID        string    `json:"tax_id" db:"tax_id"`
	Email        string    `json:"email" db:"email"`
	Phone        string    `json:"phone" db:"phone"`
	Address      string    `json:"address" db:"address"`
	City         string    `json:"city" db:"city"`
	State        string    `json:"state" db:"state"`
	CreditLimit  float64   `json:"credit_limit" db:"credit_limit"`
	Notes        string    `json:"notes" db:"notes"`
	Tags         []string  `json:"tags" db:"tags"`
	ImportJobID  string    `json:"import_job_id,omitempty" db:"import_job_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

func (c *Customer) Values() map[string]interface{} {
	return map[string]interface{}{
		"name":         c.Name,
		"customerType": c.CustomerType,
		"email":        c.Email,
		"phone":        c.Phone,
		"address":      c.Address,
		"city":         c.City,
		"state":        c.State,
		"creditLimit":  c.CreditLimit,
		"notes":        c.Notes,
		"tags":         c.Tags,
	}
}

type Supplier struct {
	ID               string    `json:"id" db:"id"`
	TenantID         string    `json:"tenant_id" db:"tenant_id"`
	Name             string    `json:"name" db:"name"`
	TaxID            string    `json:"tax_id" db:"tax_id"`
	ContactName      string    `json:"contact_name" db:"contact_name"`
	Email            string    `json:"email" db:"email"`
	Phone            string    `json:"phone" db:"phone"`
	Address          string    `json:"address" db:"address"`
	PaymentTermsDays int       `json:"payment_terms_days" db:"payment_terms_days"`
	Notes            string    `json:"notes" db:"notes"`
	CustomerID       string    `json:"customer_id,omitempty" db:"customer_id"`
	ImportJobID      string    `json:"import_job_id,omitempty" db:"import_job_id"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

func (s *Supplier) Values() map[string]interface{} {
	return map[string]interface{}{
		"name":             s.Name,
		"contactName":      s.ContactName,
		"email":            s.Email,
		"phone":            s.Phone,
		"address":          s.Address,
		"paymentTermsDays": s.PaymentTermsDays,
		"notes":            s.Notes,
	}
}

type Category struct {
	ID          string    `json:"id" db:"id"`
	TenantID    string    `json:"tenant_id" db:"tenant_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	ParentName  string    `json:"parent_name" db:"parent_name"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	ImportJobID string    `json:"import_job_id,omitempty" db:"import_job_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

func (c *Category) Values() map[string]interface{} {
	return map[string]interface{}{
		"name":        c.Name,
		"description": c.Description,
		"parentName":  c.ParentName,
		"isActive":    c.IsActive,
	}
}

type Tenant struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	ProductCount int       `json:"product_count" db:"product_count"`
	MaxProducts  int       `json:"max_products" db:"max_products"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// ProductHeadroom returns how many more products the tenant may hold; -1 means unlimited.
func (t *Tenant) ProductHeadroom() int {
	if t.MaxProducts <= 0 {
		return -1
	}
	if left := t.MaxProducts - t.ProductCount; left > 0 {
		return left
	}
	return 0
}
