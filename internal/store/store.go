package store

import (
	"context"
	"errors"
	"time"

	"vendarapida/backend/internal/domain"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidRecord = errors.New("invalid record")
)

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error

	ListSales(ctx context.Context) ([]domain.Sale, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	UpdateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	DeleteSale(ctx context.Context, id string) error
	SettleSale(ctx context.Context, id string, at time.Time) (*domain.Sale, error)

	ListSavedReports(ctx context.Context) ([]domain.SavedReport, error)
	CreateSavedReport(ctx context.Context, report domain.SavedReport) (*domain.SavedReport, error)
	DeleteSavedReport(ctx context.Context, id string) error

	GetSettings(ctx context.Context) (*domain.CompanySettings, error)
	SaveSettings(ctx context.Context, settings domain.CompanySettings) (*domain.CompanySettings, error)
}
