package domain

import (
	"encoding/json"
	"time"
)

// Product categories. A "lona" can be flat priced or per square meter;
// "tenda" and "ferragem" are always quantity priced.
const (
	CategoryLona     = "lona"
	CategoryTenda    = "tenda"
	CategoryFerragem = "ferragem"
)

// Payment methods accepted by the ledger.
const (
	PaymentCash   = "dinheiro"
	PaymentPix    = "pix"
	PaymentCard   = "cartao"
	PaymentCredit = "fiado"
)

// Saved report types.
const (
	ReportTypeSales     = "sales"
	ReportTypeProducts  = "products"
	ReportTypeCustomers = "customers"
)

const RoleOperator = "operator"

const DefaultCompanyName = "Tendas & Lonas"

type Actor struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type Product struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Category            string    `json:"category"`
	PriceCents          int64     `json:"price_cents"`
	PricePerSquareMeter bool      `json:"price_per_square_meter"`
	IsRentable          bool      `json:"is_rentable"`
	Description         string    `json:"description,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

type ProductCreateRequest struct {
	Name                string `json:"name"`
	Category            string `json:"category"`
	PriceCents          int64  `json:"price_cents"`
	PricePerSquareMeter bool   `json:"price_per_square_meter"`
	IsRentable          bool   `json:"is_rentable"`
	Description         string `json:"description"`
}

type ProductUpdateRequest struct {
	Name                *string `json:"name,omitempty"`
	Category            *string `json:"category,omitempty"`
	PriceCents          *int64  `json:"price_cents,omitempty"`
	PricePerSquareMeter *bool   `json:"price_per_square_meter,omitempty"`
	IsRentable          *bool   `json:"is_rentable,omitempty"`
	Description         *string `json:"description,omitempty"`
}

// Address is attached to a customer only when at least one field is set.
type Address struct {
	Street       string `json:"street,omitempty"`
	Number       string `json:"number,omitempty"`
	Neighborhood string `json:"neighborhood,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	ZipCode      string `json:"zip_code,omitempty"`
}

// Empty reports whether every address field is blank.
func (a Address) Empty() bool {
	return a.Street == "" && a.Number == "" && a.Neighborhood == "" &&
		a.City == "" && a.State == "" && a.ZipCode == ""
}

type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	CPFCNPJ   string    `json:"cpf_cnpj,omitempty"`
	Address   *Address  `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type CustomerCreateRequest struct {
	Name    string  `json:"name"`
	Phone   string  `json:"phone"`
	Email   string  `json:"email"`
	CPFCNPJ string  `json:"cpf_cnpj"`
	Address Address `json:"address"`
}

type CustomerUpdateRequest struct {
	Name    *string  `json:"name,omitempty"`
	Phone   *string  `json:"phone,omitempty"`
	Email   *string  `json:"email,omitempty"`
	CPFCNPJ *string  `json:"cpf_cnpj,omitempty"`
	Address *Address `json:"address,omitempty"`
}

// PaymentInfo carries the method plus the fields that only exist for that
// method. EntryCents/Installments are card-only, DueDate is credit-only;
// the validator rejects any other combination before a sale is stored.
type PaymentInfo struct {
	Method       string     `json:"method"`
	EntryCents   int64      `json:"entry_cents,omitempty"`
	Installments int        `json:"installments,omitempty"`
	DueDate      *time.Time `json:"due_date,omitempty"`
}

func CashPayment() PaymentInfo {
	return PaymentInfo{Method: PaymentCash}
}

func PixPayment() PaymentInfo {
	return PaymentInfo{Method: PaymentPix}
}

func CardPayment(entryCents int64, installments int) PaymentInfo {
	return PaymentInfo{Method: PaymentCard, EntryCents: entryCents, Installments: installments}
}

func CreditPayment(dueDate time.Time) PaymentInfo {
	return PaymentInfo{Method: PaymentCredit, DueDate: &dueDate}
}

type Sale struct {
	ID           string      `json:"id"`
	ProductID    string      `json:"product_id"`
	ProductName  string      `json:"product_name"`
	Category     string      `json:"category"`
	CustomerID   string      `json:"customer_id,omitempty"`
	CustomerName string      `json:"customer_name,omitempty"`
	Quantity     int         `json:"quantity,omitempty"`
	WidthM       float64     `json:"width_m,omitempty"`
	LengthM      float64     `json:"length_m,omitempty"`
	SquareMeters float64     `json:"square_meters,omitempty"`
	BaseCents    int64       `json:"base_cents"`
	TotalCents   int64       `json:"total_cents"`
	IsRental     bool        `json:"is_rental"`
	Payment      PaymentInfo `json:"payment"`
	SaleDate     time.Time   `json:"sale_date"`
	Notes        string      `json:"notes,omitempty"`
	SettledAt    *time.Time  `json:"settled_at,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// IsCredit reports whether the sale was made on fiado, settled or not.
func (s Sale) IsCredit() bool {
	return s.Payment.Method == PaymentCredit
}

type SaleCreateRequest struct {
	ProductID   string      `json:"product_id"`
	CustomerID  string      `json:"customer_id,omitempty"`
	Quantity    int         `json:"quantity,omitempty"`
	WidthM      float64     `json:"width_m,omitempty"`
	LengthM     float64     `json:"length_m,omitempty"`
	CustomCents int64       `json:"custom_cents,omitempty"`
	IsRental    bool        `json:"is_rental,omitempty"`
	Payment     PaymentInfo `json:"payment"`
	SaleDate    string      `json:"sale_date,omitempty"`
	Notes       string      `json:"notes,omitempty"`
}

// SaleUpdateRequest overwrites the core fields of a stored sale; fields
// left nil keep their current value. Product changes re-derive the
// snapshot name, category and totals. Payment fields are immutable after
// creation; a wrong payment is fixed by deleting the sale and
// re-entering it.
type SaleUpdateRequest struct {
	ProductID   *string  `json:"product_id,omitempty"`
	CustomerID  *string  `json:"customer_id,omitempty"`
	Quantity    *int     `json:"quantity,omitempty"`
	WidthM      *float64 `json:"width_m,omitempty"`
	LengthM     *float64 `json:"length_m,omitempty"`
	CustomCents *int64   `json:"custom_cents,omitempty"`
	IsRental    *bool    `json:"is_rental,omitempty"`
	SaleDate    *string  `json:"sale_date,omitempty"`
	Notes       *string  `json:"notes,omitempty"`
}

type SavedReport struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Type      string          `json:"type"`
	StartDate time.Time       `json:"start_date"`
	EndDate   time.Time       `json:"end_date"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
}

type SavedReportCreateRequest struct {
	Title     string          `json:"title"`
	Type      string          `json:"type"`
	StartDate string          `json:"start_date"`
	EndDate   string          `json:"end_date"`
	Data      json.RawMessage `json:"data"`
}

// CompanySettings is a singleton row; saving upserts it.
type CompanySettings struct {
	CompanyName          string    `json:"company_name"`
	CNPJ                 string    `json:"cnpj,omitempty"`
	Phone                string    `json:"phone,omitempty"`
	Theme                string    `json:"theme"`
	NotificationsEnabled bool      `json:"notifications_enabled"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

type MonthlyMetrics struct {
	Month        string  `json:"month"`
	RevenueCents int64   `json:"revenue_cents"`
	SaleCount    int     `json:"sale_count"`
	LonasSold    int     `json:"lonas_sold"`
	TendasSold   int     `json:"tendas_sold"`
	SquareMeters float64 `json:"square_meters"`
}

type CreditMetrics struct {
	TotalCents   int64 `json:"total_cents"`
	Count        int   `json:"count"`
	OverdueCents int64 `json:"overdue_cents"`
	OverdueCount int   `json:"overdue_count"`
	DueSoonCents int64 `json:"due_soon_cents"`
	DueSoonCount int   `json:"due_soon_count"`
	CurrentCents int64 `json:"current_cents"`
	CurrentCount int   `json:"current_count"`
}

// DashboardMetrics is the month-selector dashboard payload: the selected
// month, the month before it, and the growth rates between the two.
type DashboardMetrics struct {
	Month              MonthlyMetrics `json:"month"`
	PreviousMonth      MonthlyMetrics `json:"previous_month"`
	RevenueGrowth      float64        `json:"revenue_growth"`
	SalesGrowth        float64        `json:"sales_growth"`
	SquareMetersGrowth float64        `json:"square_meters_growth"`
	Credit             CreditMetrics  `json:"credit"`
}

type ReceiptDocument struct {
	SaleID      string `json:"sale_id"`
	PreviewText string `json:"preview_text"`
	FileName    string `json:"file_name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
}
