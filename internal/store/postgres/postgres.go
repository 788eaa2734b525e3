package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"vendarapida/backend/internal/domain"
	"vendarapida/backend/internal/store"
	"vendarapida/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, price_cents, price_per_square_meter, is_rentable, description, created_at
		FROM products
		ORDER BY category, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		var p domain.Product
		var description sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.PriceCents, &p.PricePerSquareMeter, &p.IsRentable, &description, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Description = description.String
		p.CreatedAt = p.CreatedAt.UTC()
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	var description sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, category, price_cents, price_per_square_meter, is_rentable, description, created_at
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Category, &p.PriceCents, &p.PricePerSquareMeter, &p.IsRentable, &description, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	p.Description = description.String
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.Category == "" || product.PriceCents < 1 {
		return nil, store.ErrInvalidRecord
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category, price_cents, price_per_square_meter, is_rentable, description, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, product.ID, product.Name, product.Category, product.PriceCents, product.PricePerSquareMeter, product.IsRentable, nullIfEmpty(product.Description), product.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidRecord
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Name == "" || product.Category == "" || product.PriceCents < 1 {
		return nil, store.ErrInvalidRecord
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, category = $3, price_cents = $4, price_per_square_meter = $5, is_rentable = $6, description = $7
		WHERE id = $1
	`, product.ID, product.Name, product.Category, product.PriceCents, product.PricePerSquareMeter, product.IsRentable, nullIfEmpty(product.Description))
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	return err
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, email, cpf_cnpj,
		       street, number, neighborhood, city, state, zip_code, created_at
		FROM customers
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, customer)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return customers, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, email, cpf_cnpj,
		       street, number, neighborhood, city, state, zip_code, created_at
		FROM customers
		WHERE id = $1
	`, id)
	customer, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &customer, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.Name == "" {
		return nil, store.ErrInvalidRecord
	}
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}

	address := customer.Address
	if address == nil {
		address = &domain.Address{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, phone, email, cpf_cnpj, street, number, neighborhood, city, state, zip_code, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, customer.ID, customer.Name, nullIfEmpty(customer.Phone), nullIfEmpty(customer.Email), nullIfEmpty(customer.CPFCNPJ),
		nullIfEmpty(address.Street), nullIfEmpty(address.Number), nullIfEmpty(address.Neighborhood),
		nullIfEmpty(address.City), nullIfEmpty(address.State), nullIfEmpty(address.ZipCode), customer.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidRecord
		}
		return nil, err
	}

	created := customer
	return &created, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID == "" || customer.Name == "" {
		return nil, store.ErrInvalidRecord
	}

	address := customer.Address
	if address == nil {
		address = &domain.Address{}
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE customers
		SET name = $2, phone = $3, email = $4, cpf_cnpj = $5,
		    street = $6, number = $7, neighborhood = $8, city = $9, state = $10, zip_code = $11
		WHERE id = $1
	`, customer.ID, customer.Name, nullIfEmpty(customer.Phone), nullIfEmpty(customer.Email), nullIfEmpty(customer.CPFCNPJ),
		nullIfEmpty(address.Street), nullIfEmpty(address.Number), nullIfEmpty(address.Neighborhood),
		nullIfEmpty(address.City), nullIfEmpty(address.State), nullIfEmpty(address.ZipCode))
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := customer
	return &updated, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	return err
}

const saleColumns = `
	id, product_id, product_name, category, customer_id, customer_name,
	quantity, width_m, length_m, square_meters, base_cents, total_cents, is_rental,
	payment_method, entry_cents, installments, due_date,
	sale_date, notes, settled_at, created_at
`

func (s *Store) ListSales(ctx context.Context) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		ORDER BY created_at DESC, seq DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 128)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sales, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE id = $1
	`, id)
	sale, err := scanSale(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &sale, nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.ProductID == "" || sale.TotalCents < 1 || sale.Payment.Method == "" {
		return nil, store.ErrInvalidRecord
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sales (
			id, product_id, product_name, category, customer_id, customer_name,
			quantity, width_m, length_m, square_meters, base_cents, total_cents, is_rental,
			payment_method, entry_cents, installments, due_date,
			sale_date, notes, settled_at, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
	`, sale.ID, sale.ProductID, sale.ProductName, sale.Category, nullIfEmpty(sale.CustomerID), nullIfEmpty(sale.CustomerName),
		sale.Quantity, sale.WidthM, sale.LengthM, sale.SquareMeters, sale.BaseCents, sale.TotalCents, sale.IsRental,
		sale.Payment.Method, sale.Payment.EntryCents, sale.Payment.Installments, nullDate(sale.Payment.DueDate),
		sale.SaleDate, nullIfEmpty(sale.Notes), nullTime(sale.SettledAt), sale.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidRecord
		}
		return nil, err
	}

	created := sale
	return &created, nil
}

func (s *Store) UpdateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.ID == "" {
		return nil, store.ErrInvalidRecord
	}

	// Payment columns and created_at are deliberately absent from the SET.
	res, err := s.db.ExecContext(ctx, `
		UPDATE sales
		SET product_id = $2, product_name = $3, category = $4,
		    customer_id = $5, customer_name = $6,
		    quantity = $7, width_m = $8, length_m = $9, square_meters = $10,
		    base_cents = $11, total_cents = $12, is_rental = $13,
		    sale_date = $14, notes = $15
		WHERE id = $1
	`, sale.ID, sale.ProductID, sale.ProductName, sale.Category,
		nullIfEmpty(sale.CustomerID), nullIfEmpty(sale.CustomerName),
		sale.Quantity, sale.WidthM, sale.LengthM, sale.SquareMeters,
		sale.BaseCents, sale.TotalCents, sale.IsRental,
		sale.SaleDate, nullIfEmpty(sale.Notes))
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	return s.GetSale(ctx, sale.ID)
}

func (s *Store) DeleteSale(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id)
	return err
}

func (s *Store) SettleSale(ctx context.Context, id string, at time.Time) (*domain.Sale, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sales
		SET settled_at = $2
		WHERE id = $1 AND payment_method = $3 AND settled_at IS NULL
	`, id, at.UTC(), domain.PaymentCredit)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		existing, err := s.GetSale(ctx, id)
		if err != nil {
			return nil, err
		}
		if existing.Payment.Method != domain.PaymentCredit {
			return nil, store.ErrInvalidRecord
		}
		// Already settled; keep the first timestamp.
		return existing, nil
	}

	return s.GetSale(ctx, id)
}

func (s *Store) ListSavedReports(ctx context.Context) ([]domain.SavedReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, type, start_date, end_date, data, created_at
		FROM saved_reports
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := make([]domain.SavedReport, 0, 32)
	for rows.Next() {
		var r domain.SavedReport
		var data []byte
		if err := rows.Scan(&r.ID, &r.Title, &r.Type, &r.StartDate, &r.EndDate, &data, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Data = data
		r.StartDate = r.StartDate.UTC()
		r.EndDate = r.EndDate.UTC()
		r.CreatedAt = r.CreatedAt.UTC()
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return reports, nil
}

func (s *Store) CreateSavedReport(ctx context.Context, report domain.SavedReport) (*domain.SavedReport, error) {
	if report.Title == "" || report.Type == "" {
		return nil, store.ErrInvalidRecord
	}
	if report.ID == "" {
		report.ID = xid.New("rep")
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	if report.Data == nil {
		report.Data = []byte("null")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO saved_reports (id, title, type, start_date, end_date, data, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, report.ID, report.Title, report.Type, report.StartDate, report.EndDate, []byte(report.Data), report.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidRecord
		}
		return nil, err
	}

	created := report
	return &created, nil
}

func (s *Store) DeleteSavedReport(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM saved_reports WHERE id = $1`, id)
	return err
}

func (s *Store) GetSettings(ctx context.Context) (*domain.CompanySettings, error) {
	var cfg domain.CompanySettings
	var cnpj, phone sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT company_name, cnpj, phone, theme, notifications_enabled, created_at, updated_at
		FROM company_settings
		WHERE singleton = true
	`).Scan(&cfg.CompanyName, &cnpj, &phone, &cfg.Theme, &cfg.NotificationsEnabled, &cfg.CreatedAt, &cfg.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	cfg.CNPJ = cnpj.String
	cfg.Phone = phone.String
	cfg.CreatedAt = cfg.CreatedAt.UTC()
	cfg.UpdatedAt = cfg.UpdatedAt.UTC()
	return &cfg, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings domain.CompanySettings) (*domain.CompanySettings, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO company_settings (singleton, company_name, cnpj, phone, theme, notifications_enabled, created_at, updated_at)
		VALUES (true, $1, $2, $3, $4, $5, now(), now())
		ON CONFLICT (singleton)
		DO UPDATE SET company_name = EXCLUDED.company_name, cnpj = EXCLUDED.cnpj, phone = EXCLUDED.phone,
		              theme = EXCLUDED.theme, notifications_enabled = EXCLUDED.notifications_enabled, updated_at = now()
	`, settings.CompanyName, nullIfEmpty(settings.CNPJ), nullIfEmpty(settings.Phone), settings.Theme, settings.NotificationsEnabled)
	if err != nil {
		return nil, err
	}

	return s.GetSettings(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (domain.Customer, error) {
	var c domain.Customer
	var phone, email, cpfCnpj sql.NullString
	var street, number, neighborhood, city, state, zipCode sql.NullString
	err := row.Scan(&c.ID, &c.Name, &phone, &email, &cpfCnpj,
		&street, &number, &neighborhood, &city, &state, &zipCode, &c.CreatedAt)
	if err != nil {
		return domain.Customer{}, err
	}
	c.Phone = phone.String
	c.Email = email.String
	c.CPFCNPJ = cpfCnpj.String
	c.CreatedAt = c.CreatedAt.UTC()

	address := domain.Address{
		Street:       street.String,
		Number:       number.String,
		Neighborhood: neighborhood.String,
		City:         city.String,
		State:        state.String,
		ZipCode:      zipCode.String,
	}
	if !address.Empty() {
		c.Address = &address
	}
	return c, nil
}

func scanSale(row rowScanner) (domain.Sale, error) {
	var sale domain.Sale
	var customerID, customerName, notes sql.NullString
	var dueDate, settledAt sql.NullTime
	err := row.Scan(&sale.ID, &sale.ProductID, &sale.ProductName, &sale.Category, &customerID, &customerName,
		&sale.Quantity, &sale.WidthM, &sale.LengthM, &sale.SquareMeters, &sale.BaseCents, &sale.TotalCents, &sale.IsRental,
		&sale.Payment.Method, &sale.Payment.EntryCents, &sale.Payment.Installments, &dueDate,
		&sale.SaleDate, &notes, &settledAt, &sale.CreatedAt)
	if err != nil {
		return domain.Sale{}, err
	}
	sale.CustomerID = customerID.String
	sale.CustomerName = customerName.String
	sale.Notes = notes.String
	if dueDate.Valid {
		due := dueDate.Time.UTC()
		sale.Payment.DueDate = &due
	}
	if settledAt.Valid {
		settled := settledAt.Time.UTC()
		sale.SettledAt = &settled
	}
	sale.SaleDate = sale.SaleDate.UTC()
	sale.CreatedAt = sale.CreatedAt.UTC()
	return sale, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nowDateUTC(t time.Time) time.Time {
	return time.Date(t.UTC().Year(), t.UTC().Month(), t.UTC().Day(), 0, 0, 0, 0, time.UTC)
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullDate(val *time.Time) any {
	if val == nil {
		return nil
	}
	return nowDateUTC(*val)
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}
