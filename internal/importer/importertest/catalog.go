// Package importertest provides in-memory stores and recorders for import pipeline tests.
package importertest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/smartkubik/import-api/internal/importer"
	"github.com/smartkubik/import-api/internal/importer/entities"
	"github.com/smartkubik/import-api/internal/models"
)

// Catalog is an in-memory tenant catalog backing every entity store.
type Catalog struct {
	mu         sync.Mutex
	tenants    map[string]*models.Tenant
	products   map[string]*models.Product
	inventory  map[string]*models.InventoryRecord
	customers  map[string]*models.Customer
	suppliers  map[string]*models.Supplier
	categories map[string]*models.Category

	// FailOn makes the named operation return an error, e.g. "products.create".
	FailOn map[string]error
}

func NewCatalog() *Catalog {
	return &Catalog{
		tenants:    make(map[string]*models.Tenant),
		products:   make(map[string]*models.Product),
		inventory:  make(map[string]*models.InventoryRecord),
		customers:  make(map[string]*models.Customer),
		suppliers:  make(map[string]*models.Supplier),
		categories: make(map[string]*models.Category),
		FailOn:     make(map[string]error),
	}
}

// Stores exposes the catalog through the handler store interfaces.
func (c *Catalog) Stores() entities.Stores {
	return entities.Stores{
		Tenants:    tenantStore{c},
		Products:   productStore{c},
		Inventory:  inventoryStore{c},
		Customers:  customerStore{c},
		Suppliers:  supplierStore{c},
		Categories: categoryStore{c},
	}
}

func (c *Catalog) AddTenant(t models.Tenant) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tenants[t.ID] = &t
}

func (c *Catalog) Tenant(id string) models.Tenant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.tenants[id]
}

func (c *Catalog) AddProduct(p models.Product) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	c.products[p.ID] = &p
	return p.ID
}

func (c *Catalog) AddInventory(r models.InventoryRecord) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	c.inventory[r.ID] = &r
	return r.ID
}

func (c *Catalog) AddCustomer(cu models.Customer) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cu.ID == "" {
		cu.ID = uuid.NewString()
	}
	c.customers[cu.ID] = &cu
	return cu.ID
}

func (c *Catalog) AddCategory(cat models.Category) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cat.ID == "" {
		cat.ID = uuid.NewString()
	}
	c.categories[cat.ID] = &cat
	return cat.ID
}

// Products returns the tenant's products sorted by SKU.
func (c *Catalog) Products(tenantID string) []models.Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.Product
	for _, p := range c.products {
		if p.TenantID == tenantID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out
}

func (c *Catalog) Product(tenantID, sku string) *models.Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.products {
		if p.TenantID == tenantID && strings.EqualFold(p.SKU, sku) {
			cp := *p
			return &cp
		}
	}
	return nil
}

func (c *Catalog) InventoryFor(tenantID, productID string) *models.InventoryRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.inventory {
		if r.TenantID == tenantID && r.ProductID == productID {
			cp := *r
			return &cp
		}
	}
	return nil
}

func (c *Catalog) Customers(tenantID string) []models.Customer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.Customer
	for _, cu := range c.customers {
		if cu.TenantID == tenantID {
			out = append(out, *cu)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (c *Catalog) Suppliers(tenantID string) []models.Supplier {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.Supplier
	for _, s := range c.suppliers {
		if s.TenantID == tenantID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (c *Catalog) Categories(tenantID string) []models.Category {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.Category
	for _, cat := range c.categories {
		if cat.TenantID == tenantID {
			out = append(out, *cat)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (c *Catalog) fail(op string) error {
	if err, ok := c.FailOn[op]; ok {
		return err
	}
	return nil
}

// setFields applies import field keys to a record.
func setFields(target interface{}, fields map[string]interface{}) error {
	for k, v := range fields {
		if err := setField(target, k, v); err != nil {
			return err
		}
	}
	return nil
}

func setField(target interface{}, key string, v interface{}) error {
	str := func() string { return asString(v) }
	num := func() float64 { return asFloat(v) }
	flag := func() bool { return asBool(v) }
	list := func() []string { return asStrings(v) }

	switch t := target.(type) {
	case *models.Product:
		switch key {
		case "name":
			t.Name = str()
		case "description":
			t.Description = str()
		case "category":
			t.Category = str()
		case "subcategory":
			t.Subcategory = str()
		case "brand":
			t.Brand = str()
		case "unitOfMeasure":
			t.UnitOfMeasure = str()
		case "price":
			t.Price = num()
		case "cost":
			t.Cost = num()
		case "taxable":
			t.Taxable = flag()
		case "barcode":
			t.Barcode = str()
		case "minimumStock":
			t.MinimumStock = num()
		case "isActive":
			t.IsActive = flag()
		case "tags":
			t.Tags = list()
		default:
			return errors.Errorf("product field %q is not updatable", key)
		}
	case *models.InventoryRecord:
		switch key {
		case "quantity":
			t.Quantity = num()
		case "location":
			t.Location = str()
		case "lotNumber":
			t.LotNumber = str()
		case "unitCost":
			t.UnitCost = num()
		case "expirationDate":
			if ts, ok := v.(time.Time); ok {
				t.ExpirationDate = &ts
			} else {
				t.ExpirationDate = nil
			}
		default:
			return errors.Errorf("inventory field %q is not updatable", key)
		}
	case *models.Customer:
		switch key {
		case "name":
			t.Name = str()
		case "customerType":
			t.CustomerType = str()
		case "email":
			t.Email = str()
		case "phone":
			t.Phone = str()
		case "address":
			t.Address = str()
		case "city":
			t.City = str()
		case "state":
			t.State = str()
		case "creditLimit":
			t.CreditLimit = num()
		case "notes":
			t.Notes = str()
		case "tags":
			t.Tags = list()
		default:
			return errors.Errorf("customer field %q is not updatable", key)
		}
	case *models.Supplier:
		switch key {
		case "name":
			t.Name = str()
		case "contactName":
			t.ContactName = str()
		case "email":
			t.Email = str()
		case "phone":
			t.Phone = str()
		case "address":
			t.Address = str()
		case "paymentTermsDays":
			t.PaymentTermsDays = int(num())
		case "notes":
			t.Notes = str()
		default:
			return errors.Errorf("supplier field %q is not updatable", key)
		}
	case *models.Category:
		switch key {
		case "name":
			t.Name = str()
		case "description":
			t.Description = str()
		case "parentName":
			t.ParentName = str()
		case "isActive":
			t.IsActive = flag()
		default:
			return errors.Errorf("category field %q is not updatable", key)
		}
	}
	return nil
}

type tenantStore struct{ c *Catalog }

func (s tenantStore) Get(_ context.Context, tenantID string) (*models.Tenant, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if err := s.c.fail("tenants.get"); err != nil {
		return nil, err
	}
	t, ok := s.c.tenants[tenantID]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (s tenantStore) IncrementProductCount(_ context.Context, tenantID string, delta int) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if t, ok := s.c.tenants[tenantID]; ok {
		t.ProductCount += delta
		if t.ProductCount < 0 {
			t.ProductCount = 0
		}
	}
	return nil
}

type productStore struct{ c *Catalog }

func (s productStore) FindBySKU(_ context.Context, tenantID, sku string) (*models.Product, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if err := s.c.fail("products.find"); err != nil {
		return nil, err
	}
	for _, p := range s.c.products {
		if p.TenantID == tenantID && strings.EqualFold(p.SKU, sku) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (s productStore) CountExistingSKUs(_ context.Context, tenantID string, skus []string) (int, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	n := 0
	for _, sku := range skus {
		for _, p := range s.c.products {
			if p.TenantID == tenantID && strings.EqualFold(p.SKU, sku) {
				n++
				break
			}
		}
	}
	return n, nil
}

func (s productStore) Create(_ context.Context, p *models.Product) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if err := s.c.fail("products.create"); err != nil {
		return err
	}
	p.ID = uuid.NewString()
	cp := *p
	s.c.products[p.ID] = &cp
	return nil
}

func (s productStore) Update(_ context.Context, tenantID, id string, fields map[string]interface{}) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if err := s.c.fail("products.update"); err != nil {
		return err
	}
	p, ok := s.c.products[id]
	if !ok || p.TenantID != tenantID {
		return errors.Wrapf(importer.ErrRecordNotFound, "product %s", id)
	}
	return setFields(p, fields)
}

func (s productStore) DeleteByImportJob(_ context.Context, tenantID, importJobID string) (int, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	n := 0
	for id, p := range s.c.products {
		if p.TenantID == tenantID && p.ImportJobID == importJobID {
			delete(s.c.products, id)
			n++
		}
	}
	return n, nil
}

func (s productStore) RenameCategory(_ context.Context, tenantID, from, to string) (int, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	n := 0
	for _, p := range s.c.products {
		if p.TenantID == tenantID && strings.EqualFold(p.Category, from) {
			p.Category = to
			n++
		}
	}
	return n, nil
}

type inventoryStore struct{ c *Catalog }

func (s inventoryStore) FindByProduct(_ context.Context, tenantID, productID string) (*models.InventoryRecord, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	for _, r := range s.c.inventory {
		if r.TenantID == tenantID && r.ProductID == productID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (s inventoryStore) Create(_ context.Context, r *models.InventoryRecord) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if err := s.c.fail("inventory.create"); err != nil {
		return err
	}
	r.ID = uuid.NewString()
	cp := *r
	s.c.inventory[r.ID] = &cp
	return nil
}

func (s inventoryStore) Update(_ context.Context, tenantID, id string, fields map[string]interface{}) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	r, ok := s.c.inventory[id]
	if !ok || r.TenantID != tenantID {
		return errors.Wrapf(importer.ErrRecordNotFound, "inventory record %s", id)
	}
	return setFields(r, fields)
}

func (s inventoryStore) DeleteByImportJob(_ context.Context, tenantID, importJobID string) (int, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	n := 0
	for id, r := range s.c.inventory {
		if r.TenantID == tenantID && r.ImportJobID == importJobID {
			delete(s.c.inventory, id)
			n++
		}
	}
	return n, nil
}

type customerStore struct{ c *Catalog }

func (s customerStore) find(tenantID string, match func(*models.Customer) bool) *models.Customer {
	for _, cu := range s.c.customers {
		if cu.TenantID == tenantID && match(cu) {
			cp := *cu
			return &cp
		}
	}
	return nil
}

func (s customerStore) FindByTaxID(_ context.Context, tenantID, taxID string) (*models.Customer, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	return s.find(tenantID, func(cu *models.Customer) bool { return strings.EqualFold(cu.TaxID, taxID) }), nil
}

func (s customerStore) FindByEmail(_ context.Context, tenantID, email string) (*models.Customer, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	return s.find(tenantID, func(cu *models.Customer) bool { return strings.EqualFold(cu.Email, email) }), nil
}

func (s customerStore) Create(_ context.Context, cu *models.Customer) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	if err := s.c.fail("customers.create"); err != nil {
		return err
	}
	cu.ID = uuid.NewString()
	cp := *cu
	s.c.customers[cu.ID] = &cp
	return nil
}

func (s customerStore) Update(_ context.Context, tenantID, id string, fields map[string]interface{}) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	cu, ok := s.c.customers[id]
	if !ok || cu.TenantID != tenantID {
		return errors.Wrapf(importer.ErrRecordNotFound, "customer %s", id)
	}
	return setFields(cu, fields)
}

func (s customerStore) DeleteByImportJob(_ context.Context, tenantID, importJobID string) (int, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	n := 0
	for id, cu := range s.c.customers {
		if cu.TenantID == tenantID && cu.ImportJobID == importJobID {
			delete(s.c.customers, id)
			n++
		}
	}
	return n, nil
}

type supplierStore struct{ c *Catalog }

func (s supplierStore) FindByTaxID(_ context.Context, tenantID, taxID string) (*models.Supplier, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	for _, sp := range s.c.suppliers {
		if sp.TenantID == tenantID && strings.EqualFold(sp.TaxID, taxID) {
			cp := *sp
			return &cp, nil
		}
	}
	return nil, nil
}

func (s supplierStore) Create(_ context.Context, sp *models.Supplier) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	sp.ID = uuid.NewString()
	cp := *sp
	s.c.suppliers[sp.ID] = &cp
	return nil
}

func (s supplierStore) Update(_ context.Context, tenantID, id string, fields map[string]interface{}) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	sp, ok := s.c.suppliers[id]
	if !ok || sp.TenantID != tenantID {
		return errors.Wrapf(importer.ErrRecordNotFound, "supplier %s", id)
	}
	return setFields(sp, fields)
}

func (s supplierStore) DeleteByImportJob(_ context.Context, tenantID, importJobID string) (int, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	n := 0
	for id, sp := range s.c.suppliers {
		if sp.TenantID == tenantID && sp.ImportJobID == importJobID {
			delete(s.c.suppliers, id)
			n++
		}
	}
	return n, nil
}

type categoryStore struct{ c *Catalog }

func (s categoryStore) FindByName(_ context.Context, tenantID, name string) (*models.Category, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	for _, cat := range s.c.categories {
		if cat.TenantID == tenantID && strings.EqualFold(cat.Name, name) {
			cp := *cat
			return &cp, nil
		}
	}
	return nil, nil
}

func (s categoryStore) Get(_ context.Context, tenantID, id string) (*models.Category, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	cat, ok := s.c.categories[id]
	if !ok || cat.TenantID != tenantID {
		return nil, nil
	}
	cp := *cat
	return &cp, nil
}

func (s categoryStore) Create(_ context.Context, cat *models.Category) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	cat.ID = uuid.NewString()
	cp := *cat
	s.c.categories[cat.ID] = &cp
	return nil
}

func (s categoryStore) Update(_ context.Context, tenantID, id string, fields map[string]interface{}) error {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	cat, ok := s.c.categories[id]
	if !ok || cat.TenantID != tenantID {
		return errors.Wrapf(importer.ErrRecordNotFound, "category %s", id)
	}
	return setFields(cat, fields)
}

func (s categoryStore) RenameParent(_ context.Context, tenantID, from, to string) (int, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	n := 0
	for _, cat := range s.c.categories {
		if cat.TenantID == tenantID && strings.EqualFold(cat.ParentName, from) {
			cat.ParentName = to
			n++
		}
	}
	return n, nil
}

func (s categoryStore) DeleteByImportJob(_ context.Context, tenantID, importJobID string) (int, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	n := 0
	for id, cat := range s.c.categories {
		if cat.TenantID == tenantID && cat.ImportJobID == importJobID {
			delete(s.c.categories, id)
			n++
		}
	}
	return n, nil
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}

func asBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func asStrings(v interface{}) []string {
	switch l := v.(type) {
	case []string:
		return l
	case []interface{}:
		out := make([]string, 0, len(l))
		for _, item := range l {
			out = append(out, fmt.Sprint(item))
		}
		return out
	}
	return nil
}
