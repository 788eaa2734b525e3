package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"vendarapida/backend/internal/domain"
	"vendarapida/backend/internal/store"
	"vendarapida/backend/internal/xid"
)

type Store struct {
	mu           sync.RWMutex
	products     map[string]domain.Product
	customers    map[string]domain.Customer
	sales        map[string]domain.Sale
	saleSeq      map[string]int64
	nextSeq      int64
	savedReports map[string]domain.SavedReport
	reportSeq    map[string]int64
	settings     *domain.CompanySettings
}

func New() *Store {
	return &Store{
		products:     make(map[string]domain.Product),
		customers:    make(map[string]domain.Customer),
		sales:        make(map[string]domain.Sale),
		saleSeq:      make(map[string]int64),
		savedReports: make(map[string]domain.SavedReport),
		reportSeq:    make(map[string]int64),
	}
}

// NewSeeded returns a store preloaded with a small tarp/tent catalog for
// dev/demo mode. Sales and customers start empty.
func NewSeeded() *Store {
	now := time.Now().UTC()
	products := []domain.Product{
		{ID: "prod-lona-4x4", Name: "Lona 4x4", Category: domain.CategoryLona, PriceCents: 28000, CreatedAt: now},
		{ID: "prod-lona-6x8", Name: "Lona 6x8", Category: domain.CategoryLona, PriceCents: 76000, CreatedAt: now},
		{ID: "prod-lona-medida", Name: "Lona sob medida", Category: domain.CategoryLona, PriceCents: 1200, PricePerSquareMeter: true, CreatedAt: now},
		{ID: "prod-tenda-3x3", Name: "Tenda 3x3", Category: domain.CategoryTenda, PriceCents: 45000, IsRentable: true, CreatedAt: now},
		{ID: "prod-tenda-6x6", Name: "Tenda 6x6", Category: domain.CategoryTenda, PriceCents: 120000, IsRentable: true, CreatedAt: now},
		{ID: "prod-ilhos", Name: "Ilhós (pacote 50)", Category: domain.CategoryFerragem, PriceCents: 2500, CreatedAt: now},
		{ID: "prod-corda-10m", Name: "Corda 10m", Category: domain.CategoryFerragem, PriceCents: 1800, CreatedAt: now},
		{ID: "prod-estaca", Name: "Estaca de ferro", Category: domain.CategoryFerragem, PriceCents: 900, CreatedAt: now},
	}

	s := New()
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return cmpString(a.Name, b.Name)
		}
		return cmpString(a.Category, b.Category)
	})

	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Name == "" || product.Category == "" || product.PriceCents < 1 {
		return nil, store.ErrInvalidRecord
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrInvalidRecord
	}

	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" || product.Name == "" || product.Category == "" || product.PriceCents < 1 {
		return nil, store.ErrInvalidRecord
	}
	existing, exists := s.products[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}

	product.CreatedAt = existing.CreatedAt
	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.products, id)
	return nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		customers = append(customers, cloneCustomer(c))
	}

	slices.SortFunc(customers, func(a, b domain.Customer) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})

	return customers, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, exists := s.customers[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyCustomer := cloneCustomer(customer)
	return &copyCustomer, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.Name == "" {
		return nil, store.ErrInvalidRecord
	}
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	if _, exists := s.customers[customer.ID]; exists {
		return nil, store.ErrInvalidRecord
	}

	s.customers[customer.ID] = cloneCustomer(customer)
	created := cloneCustomer(customer)
	return &created, nil
}

func (s *Store) UpdateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.ID == "" || customer.Name == "" {
		return nil, store.ErrInvalidRecord
	}
	existing, exists := s.customers[customer.ID]
	if !exists {
		return nil, store.ErrNotFound
	}

	customer.CreatedAt = existing.CreatedAt
	s.customers[customer.ID] = cloneCustomer(customer)
	updated := cloneCustomer(customer)
	return &updated, nil
}

func (s *Store) DeleteCustomer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.customers, id)
	return nil
}

func (s *Store) ListSales(_ context.Context) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		sales = append(sales, cloneSale(sale))
	}

	// Newest first; on equal timestamps the later insert wins.
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			switch {
			case s.saleSeq[a.ID] > s.saleSeq[b.ID]:
				return -1
			case s.saleSeq[a.ID] < s.saleSeq[b.ID]:
				return 1
			}
			return 0
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})

	return sales, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.sales[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copySale := cloneSale(sale)
	return &copySale, nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.ProductID == "" || sale.TotalCents < 1 || sale.Payment.Method == "" {
		return nil, store.ErrInvalidRecord
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	if _, exists := s.sales[sale.ID]; exists {
		return nil, store.ErrInvalidRecord
	}

	s.nextSeq++
	s.saleSeq[sale.ID] = s.nextSeq
	s.sales[sale.ID] = cloneSale(sale)
	created := cloneSale(sale)
	return &created, nil
}

func (s *Store) UpdateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.ID == "" {
		return nil, store.ErrInvalidRecord
	}
	existing, exists := s.sales[sale.ID]
	if !exists {
		return nil, store.ErrNotFound
	}

	// Payment and creation metadata never change after the fact.
	sale.Payment = existing.Payment
	sale.CreatedAt = existing.CreatedAt
	sale.SettledAt = existing.SettledAt
	s.sales[sale.ID] = cloneSale(sale)
	updated := cloneSale(sale)
	return &updated, nil
}

func (s *Store) DeleteSale(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sales, id)
	delete(s.saleSeq, id)
	return nil
}

func (s *Store) SettleSale(_ context.Context, id string, at time.Time) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.sales[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	if sale.Payment.Method != domain.PaymentCredit {
		return nil, store.ErrInvalidRecord
	}
	if sale.SettledAt == nil {
		at = at.UTC()
		sale.SettledAt = &at
		s.sales[id] = cloneSale(sale)
	}
	settled := cloneSale(sale)
	return &settled, nil
}

func (s *Store) ListSavedReports(_ context.Context) ([]domain.SavedReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reports := make([]domain.SavedReport, 0, len(s.savedReports))
	for _, r := range s.savedReports {
		reports = append(reports, cloneReport(r))
	}

	slices.SortFunc(reports, func(a, b domain.SavedReport) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			switch {
			case s.reportSeq[a.ID] > s.reportSeq[b.ID]:
				return -1
			case s.reportSeq[a.ID] < s.reportSeq[b.ID]:
				return 1
			}
			return 0
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})

	return reports, nil
}

func (s *Store) CreateSavedReport(_ context.Context, report domain.SavedReport) (*domain.SavedReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if report.Title == "" || report.Type == "" {
		return nil, store.ErrInvalidRecord
	}
	if report.ID == "" {
		report.ID = xid.New("rep")
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}

	s.nextSeq++
	s.reportSeq[report.ID] = s.nextSeq
	s.savedReports[report.ID] = cloneReport(report)
	created := cloneReport(report)
	return &created, nil
}

func (s *Store) DeleteSavedReport(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.savedReports, id)
	delete(s.reportSeq, id)
	return nil
}

func (s *Store) GetSettings(_ context.Context) (*domain.CompanySettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.settings == nil {
		return nil, store.ErrNotFound
	}
	copySettings := *s.settings
	return &copySettings, nil
}

func (s *Store) SaveSettings(_ context.Context, settings domain.CompanySettings) (*domain.CompanySettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if s.settings != nil {
		settings.CreatedAt = s.settings.CreatedAt
	} else if settings.CreatedAt.IsZero() {
		settings.CreatedAt = now
	}
	settings.UpdatedAt = now

	saved := settings
	s.settings = &saved
	copySettings := saved
	return &copySettings, nil
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cloneCustomer(c domain.Customer) domain.Customer {
	clone := c
	if c.Address != nil {
		address := *c.Address
		clone.Address = &address
	}
	return clone
}

func cloneSale(s domain.Sale) domain.Sale {
	clone := s
	if s.Payment.DueDate != nil {
		due := *s.Payment.DueDate
		clone.Payment.DueDate = &due
	}
	if s.SettledAt != nil {
		settled := *s.SettledAt
		clone.SettledAt = &settled
	}
	return clone
}

func cloneReport(r domain.SavedReport) domain.SavedReport {
	clone := r
	if r.Data != nil {
		clone.Data = append([]byte(nil), r.Data...)
	}
	return clone
}
