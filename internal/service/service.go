package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"vendarapida/backend/internal/cache"
	"vendarapida/backend/internal/currency"
	"vendarapida/backend/internal/domain"
	"vendarapida/backend/internal/metrics"
	"vendarapida/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo         store.Repository
	metricsCache cache.MetricsCache
	metricsTTL   time.Duration
}

func New(repo store.Repository, metricsCache cache.MetricsCache, metricsTTL time.Duration) *Service {
	if metricsCache == nil {
		metricsCache = cache.NoopMetricsCache{}
	}
	if metricsTTL <= 0 {
		metricsTTL = 60 * time.Second
	}

	return &Service{
		repo:         repo,
		metricsCache: metricsCache,
		metricsTTL:   metricsTTL,
	}
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)

	if req.Name == "" || req.PriceCents < 1 {
		return domain.Product{}, store.ErrInvalidRecord
	}
	if !isKnownCategory(req.Category) {
		return domain.Product{}, store.ErrInvalidRecord
	}
	if req.PricePerSquareMeter && req.Category != domain.CategoryLona {
		return domain.Product{}, store.ErrInvalidRecord
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Name:                req.Name,
		Category:            req.Category,
		PriceCents:          req.PriceCents,
		PricePerSquareMeter: req.PricePerSquareMeter,
		IsRentable:          req.IsRentable,
		Description:         strings.TrimSpace(req.Description),
	})
	if err != nil {
		return domain.Product{}, err
	}
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, store.ErrInvalidRecord
	}

	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrInvalidRecord
		}
		updated.Name = name
	}
	if req.Category != nil {
		category := strings.TrimSpace(*req.Category)
		if !isKnownCategory(category) {
			return domain.Product{}, store.ErrInvalidRecord
		}
		updated.Category = category
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 1 {
			return domain.Product{}, store.ErrInvalidRecord
		}
		updated.PriceCents = *req.PriceCents
	}
	if req.PricePerSquareMeter != nil {
		updated.PricePerSquareMeter = *req.PricePerSquareMeter
	}
	if req.IsRentable != nil {
		updated.IsRentable = *req.IsRentable
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if updated.PricePerSquareMeter && updated.Category != domain.CategoryLona {
		return domain.Product{}, store.ErrInvalidRecord
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}
	return *saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return store.ErrInvalidRecord
	}
	return s.repo.DeleteProduct(ctx, id)
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	customer, err := s.repo.GetCustomer(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Customer{}, store.ErrInvalidRecord
	}

	customer := domain.Customer{
		Name:    req.Name,
		Phone:   strings.TrimSpace(req.Phone),
		Email:   strings.TrimSpace(req.Email),
		CPFCNPJ: strings.TrimSpace(req.CPFCNPJ),
		Address: normalizeAddress(req.Address),
	}

	created, err := s.repo.CreateCustomer(ctx, customer)
	if err != nil {
		return domain.Customer{}, err
	}
	return *created, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, id string, req domain.CustomerUpdateRequest) (domain.Customer, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Customer{}, store.ErrInvalidRecord
	}

	existing, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Customer{}, store.ErrInvalidRecord
		}
		updated.Name = name
	}
	if req.Phone != nil {
		updated.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Email != nil {
		updated.Email = strings.TrimSpace(*req.Email)
	}
	if req.CPFCNPJ != nil {
		updated.CPFCNPJ = strings.TrimSpace(*req.CPFCNPJ)
	}
	if req.Address != nil {
		updated.Address = normalizeAddress(*req.Address)
	}

	saved, err := s.repo.UpdateCustomer(ctx, updated)
	if err != nil {
		return domain.Customer{}, err
	}
	return *saved, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return store.ErrInvalidRecord
	}
	return s.repo.DeleteCustomer(ctx, id)
}

func (s *Service) ListSales(ctx context.Context) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx)
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.GetSale(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

// CreateSale validates a submission, resolves product and customer
// snapshots, and writes the record. The ledger only sees confirmed
// writes: nothing is kept on validation or store failure.
func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest) (domain.Sale, error) {
	req.ProductID = strings.TrimSpace(req.ProductID)
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	if req.ProductID == "" {
		return domain.Sale{}, ErrProductRequired
	}

	product, err := s.repo.GetProduct(ctx, req.ProductID)
	if err != nil {
		return domain.Sale{}, err
	}

	var customer *domain.Customer
	if req.CustomerID != "" {
		customer, err = s.repo.GetCustomer(ctx, req.CustomerID)
		if err != nil {
			return domain.Sale{}, err
		}
	}

	now := time.Now().UTC()
	today := dateOnly(now)

	saleDate := today
	if strings.TrimSpace(req.SaleDate) != "" {
		parsed, err := time.Parse("2006-01-02", strings.TrimSpace(req.SaleDate))
		if err != nil {
			return domain.Sale{}, store.ErrInvalidRecord
		}
		saleDate = parsed.UTC()
	}

	quantity, squareMeters, totalCents := saleAmounts(*product, req)
	if err := validateSale(*product, customer != nil, req, totalCents, saleDate, today); err != nil {
		return domain.Sale{}, err
	}

	sale := domain.Sale{
		ProductID:    product.ID,
		ProductName:  product.Name,
		Category:     product.Category,
		Quantity:     quantity,
		WidthM:       req.WidthM,
		LengthM:      req.LengthM,
		SquareMeters: squareMeters,
		BaseCents:    product.PriceCents,
		TotalCents:   totalCents,
		IsRental:     req.IsRental,
		Payment:      req.Payment,
		SaleDate:     saleDate,
		Notes:        strings.TrimSpace(req.Notes),
		CreatedAt:    now,
	}
	if customer != nil {
		sale.CustomerID = customer.ID
		sale.CustomerName = customer.Name
	}

	created, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		return domain.Sale{}, err
	}

	if actor, ok := ActorFromContext(ctx); ok {
		log.Printf("[service] INFO: sale %s recorded by %s total=%d method=%s", created.ID, actor.Email, created.TotalCents, created.Payment.Method)
	}
	s.purgeMetrics(ctx)
	return *created, nil
}

// UpdateSale overwrites the core fields of a sale with whatever the patch
// carries. Product or measurement changes re-derive the snapshot and the
// totals through the same rules as creation. Payment stays frozen at the
// store layer no matter what arrives here.
func (s *Service) UpdateSale(ctx context.Context, id string, req domain.SaleUpdateRequest) (domain.Sale, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Sale{}, store.ErrInvalidRecord
	}

	existing, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}

	updated := *existing
	if req.CustomerID != nil {
		customerID := strings.TrimSpace(*req.CustomerID)
		if customerID == "" {
			if existing.IsCredit() {
				return domain.Sale{}, ErrCustomerRequired
			}
			updated.CustomerID = ""
			updated.CustomerName = ""
		} else {
			customer, err := s.repo.GetCustomer(ctx, customerID)
			if err != nil {
				return domain.Sale{}, err
			}
			updated.CustomerID = customer.ID
			updated.CustomerName = customer.Name
		}
	}
	if req.SaleDate != nil {
		parsed, err := time.Parse("2006-01-02", strings.TrimSpace(*req.SaleDate))
		if err != nil {
			return domain.Sale{}, store.ErrInvalidRecord
		}
		if parsed.UTC().After(dateOnly(time.Now().UTC())) {
			return domain.Sale{}, ErrSaleDateFuture
		}
		updated.SaleDate = parsed.UTC()
	}
	if req.Notes != nil {
		updated.Notes = strings.TrimSpace(*req.Notes)
	}
	if req.IsRental != nil {
		updated.IsRental = *req.IsRental
	}

	// Only a patch that touches the product or a measurement reprices the
	// sale; otherwise the snapshot and totals stay as they were recorded.
	reprice := req.ProductID != nil || req.Quantity != nil || req.WidthM != nil ||
		req.LengthM != nil || req.CustomCents != nil
	if reprice || req.IsRental != nil {
		productID := updated.ProductID
		if req.ProductID != nil {
			productID = strings.TrimSpace(*req.ProductID)
			if productID == "" {
				return domain.Sale{}, ErrProductRequired
			}
		}
		product, err := s.repo.GetProduct(ctx, productID)
		if err != nil {
			return domain.Sale{}, err
		}

		eff := domain.SaleCreateRequest{
			ProductID: product.ID,
			Quantity:  updated.Quantity,
			WidthM:    updated.WidthM,
			LengthM:   updated.LengthM,
			IsRental:  updated.IsRental,
			Payment:   existing.Payment,
		}
		if req.Quantity != nil {
			eff.Quantity = *req.Quantity
		}
		if req.WidthM != nil {
			eff.WidthM = *req.WidthM
		}
		if req.LengthM != nil {
			eff.LengthM = *req.LengthM
		}
		if req.CustomCents != nil {
			eff.CustomCents = *req.CustomCents
		}

		// The due-date window is a submission rule, not an update rule: an
		// old fiado sale stays editable after its due date has passed. Only
		// the rules the patch can break are re-checked here.
		if eff.IsRental && !product.IsRentable {
			return domain.Sale{}, ErrProductNotRentable
		}
		if reprice {
			if product.Category != domain.CategoryLona && eff.Quantity < 1 {
				return domain.Sale{}, ErrQuantityRequired
			}
			if product.Category == domain.CategoryLona && product.PricePerSquareMeter && (eff.WidthM <= 0 || eff.LengthM <= 0) {
				return domain.Sale{}, ErrDimensionsRequired
			}

			quantity, squareMeters, totalCents := saleAmounts(*product, eff)
			if totalCents <= 0 {
				return domain.Sale{}, ErrValueRequired
			}
			if existing.Payment.EntryCents > totalCents {
				return domain.Sale{}, ErrEntryExceedsTotal
			}

			updated.ProductID = product.ID
			updated.ProductName = product.Name
			updated.Category = product.Category
			updated.Quantity = quantity
			updated.WidthM = eff.WidthM
			updated.LengthM = eff.LengthM
			updated.SquareMeters = squareMeters
			updated.BaseCents = product.PriceCents
			updated.TotalCents = totalCents
		}
	}

	saved, err := s.repo.UpdateSale(ctx, updated)
	if err != nil {
		return domain.Sale{}, err
	}

	s.purgeMetrics(ctx)
	return *saved, nil
}

// DeleteSale removes a sale. Deleting an id that is already gone is not
// an error; the ledger converges either way.
func (s *Service) DeleteSale(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return store.ErrInvalidRecord
	}
	if err := s.repo.DeleteSale(ctx, id); err != nil {
		return err
	}
	if actor, ok := ActorFromContext(ctx); ok {
		log.Printf("[service] INFO: sale %s deleted by %s", id, actor.Email)
	}
	s.purgeMetrics(ctx)
	return nil
}

func (s *Service) SettleSale(ctx context.Context, id string) (domain.Sale, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Sale{}, store.ErrInvalidRecord
	}
	settled, err := s.repo.SettleSale(ctx, id, time.Now().UTC())
	if err != nil {
		return domain.Sale{}, err
	}
	s.purgeMetrics(ctx)
	return *settled, nil
}

// Dashboard aggregates the selected month, the previous one, the growth
// rates between them, and the live credit buckets. Results are cached
// per month and basis; ledger writes purge the cache.
func (s *Service) Dashboard(ctx context.Context, monthKey string, basis metrics.DateBasis) (domain.DashboardMetrics, error) {
	monthKey = strings.TrimSpace(monthKey)
	if monthKey == "" {
		monthKey = metrics.MonthKey(time.Now().UTC())
	}
	if _, err := metrics.ParseMonth(monthKey); err != nil {
		return domain.DashboardMetrics{}, store.ErrInvalidRecord
	}
	if basis != metrics.ByBusinessDate {
		basis = metrics.ByEntryDate
	}

	cacheKey := monthKey + ":" + string(basis)
	if cached, hit, err := s.metricsCache.Get(ctx, cacheKey); err != nil {
		log.Printf("[service] WARN: metrics cache get failed key=%s: %v", cacheKey, err)
	} else if hit {
		return *cached, nil
	}

	sales, err := s.repo.ListSales(ctx)
	if err != nil {
		return domain.DashboardMetrics{}, err
	}

	previousKey, err := metrics.PreviousMonth(monthKey)
	if err != nil {
		return domain.DashboardMetrics{}, store.ErrInvalidRecord
	}

	current := metrics.Monthly(sales, monthKey, basis)
	previous := metrics.Monthly(sales, previousKey, basis)
	result := domain.DashboardMetrics{
		Month:              current,
		PreviousMonth:      previous,
		RevenueGrowth:      metrics.Growth(current.RevenueCents, previous.RevenueCents),
		SalesGrowth:        metrics.Growth(int64(current.SaleCount), int64(previous.SaleCount)),
		SquareMetersGrowth: metrics.GrowthFloat(current.SquareMeters, previous.SquareMeters),
		Credit:             metrics.CreditSummary(sales, time.Now().UTC()),
	}

	if err := s.metricsCache.Set(ctx, cacheKey, &result, s.metricsTTL); err != nil {
		log.Printf("[service] WARN: metrics cache set failed key=%s: %v", cacheKey, err)
	}
	return result, nil
}

func (s *Service) ListSavedReports(ctx context.Context) ([]domain.SavedReport, error) {
	return s.repo.ListSavedReports(ctx)
}

func (s *Service) CreateSavedReport(ctx context.Context, req domain.SavedReportCreateRequest) (domain.SavedReport, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Type = strings.TrimSpace(req.Type)
	if req.Title == "" {
		return domain.SavedReport{}, store.ErrInvalidRecord
	}
	if req.Type != domain.ReportTypeSales && req.Type != domain.ReportTypeProducts && req.Type != domain.ReportTypeCustomers {
		return domain.SavedReport{}, store.ErrInvalidRecord
	}

	start, err := time.Parse("2006-01-02", strings.TrimSpace(req.StartDate))
	if err != nil {
		return domain.SavedReport{}, store.ErrInvalidRecord
	}
	end, err := time.Parse("2006-01-02", strings.TrimSpace(req.EndDate))
	if err != nil {
		return domain.SavedReport{}, store.ErrInvalidRecord
	}
	if end.Before(start) {
		return domain.SavedReport{}, store.ErrInvalidRecord
	}

	// The payload is stored verbatim and never recomputed; a saved report
	// is a snapshot of what the operator was looking at.
	created, err := s.repo.CreateSavedReport(ctx, domain.SavedReport{
		Title:     req.Title,
		Type:      req.Type,
		StartDate: start.UTC(),
		EndDate:   end.UTC(),
		Data:      req.Data,
	})
	if err != nil {
		return domain.SavedReport{}, err
	}
	return *created, nil
}

func (s *Service) DeleteSavedReport(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return store.ErrInvalidRecord
	}
	return s.repo.DeleteSavedReport(ctx, id)
}

// GetSettings returns the stored company settings or the defaults when
// nothing was saved yet.
func (s *Service) GetSettings(ctx context.Context) (domain.CompanySettings, error) {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.CompanySettings{
				CompanyName: domain.DefaultCompanyName,
				Theme:       "light",
			}, nil
		}
		return domain.CompanySettings{}, err
	}
	return *settings, nil
}

func (s *Service) SaveSettings(ctx context.Context, settings domain.CompanySettings) (domain.CompanySettings, error) {
	settings.CompanyName = strings.TrimSpace(settings.CompanyName)
	if settings.CompanyName == "" {
		settings.CompanyName = domain.DefaultCompanyName
	}
	if settings.Theme == "" {
		settings.Theme = "light"
	}

	saved, err := s.repo.SaveSettings(ctx, settings)
	if err != nil {
		return domain.CompanySettings{}, err
	}
	return *saved, nil
}

// BuildReceipt renders a plain-text receipt for a sale, suitable for a
// thermal printer bridge or a copy-paste into a message.
func (s *Service) BuildReceipt(ctx context.Context, saleID string) (domain.ReceiptDocument, error) {
	sale, err := s.GetSale(ctx, saleID)
	if err != nil {
		return domain.ReceiptDocument{}, err
	}
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return domain.ReceiptDocument{}, err
	}

	lines := []string{
		settings.CompanyName,
		"========================",
		"Recibo: " + sale.ID,
		"Data: " + sale.SaleDate.Format("02/01/2006"),
		"------------------------",
		sale.ProductName,
	}
	if sale.IsRental {
		lines = append(lines, "  Locacao")
	}
	switch {
	case sale.SquareMeters > 0:
		lines = append(lines, fmt.Sprintf("  %.2fm x %.2fm = %.2fm2", sale.WidthM, sale.LengthM, sale.SquareMeters))
	case sale.Quantity > 0:
		lines = append(lines, fmt.Sprintf("  %d x %s", sale.Quantity, currency.Format(sale.BaseCents)))
	}
	if sale.CustomerName != "" {
		lines = append(lines, "Cliente: "+sale.CustomerName)
	}
	lines = append(lines,
		"------------------------",
		"Total    : "+currency.Format(sale.TotalCents),
		"Pagamento: "+paymentLabel(sale.Payment),
	)
	switch sale.Payment.Method {
	case domain.PaymentCard:
		if sale.Payment.EntryCents > 0 {
			lines = append(lines, "Entrada  : "+currency.Format(sale.Payment.EntryCents))
			lines = append(lines, fmt.Sprintf("Parcelas : %dx", sale.Payment.Installments))
		}
	case domain.PaymentCredit:
		if sale.Payment.DueDate != nil {
			lines = append(lines, "Vencimento: "+sale.Payment.DueDate.Format("02/01/2006"))
		}
		if sale.SettledAt != nil {
			lines = append(lines, "Quitado em: "+sale.SettledAt.Format("02/01/2006"))
		}
	}
	lines = append(lines,
		"========================",
		"Obrigado pela preferencia",
		"",
	)

	return domain.ReceiptDocument{
		SaleID:      sale.ID,
		PreviewText: strings.Join(lines, "\n"),
		FileName:    fmt.Sprintf("recibo-%s.txt", sale.ID),
	}, nil
}

func (s *Service) purgeMetrics(ctx context.Context) {
	if err := s.metricsCache.Purge(ctx); err != nil {
		log.Printf("[service] WARN: metrics cache purge failed: %v", err)
	}
}

func isKnownCategory(category string) bool {
	switch category {
	case domain.CategoryLona, domain.CategoryTenda, domain.CategoryFerragem:
		return true
	}
	return false
}

func normalizeAddress(address domain.Address) *domain.Address {
	address.Street = strings.TrimSpace(address.Street)
	address.Number = strings.TrimSpace(address.Number)
	address.Neighborhood = strings.TrimSpace(address.Neighborhood)
	address.City = strings.TrimSpace(address.City)
	address.State = strings.TrimSpace(address.State)
	address.ZipCode = strings.TrimSpace(address.ZipCode)
	if address.Empty() {
		return nil
	}
	return &address
}

func paymentLabel(pay domain.PaymentInfo) string {
	switch pay.Method {
	case domain.PaymentCash:
		return "Dinheiro"
	case domain.PaymentPix:
		return "Pix"
	case domain.PaymentCard:
		return "Cartão"
	case domain.PaymentCredit:
		return "Fiado"
	}
	return pay.Method
}
