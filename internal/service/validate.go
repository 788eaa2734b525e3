package service

import (
	"errors"
	"math"
	"time"

	"vendarapida/backend/internal/domain"
)

// Validation failures for a sale submission. The first failing rule wins;
// handlers map these to 422 with the message as the body.
var (
	ErrProductRequired      = errors.New("selecione um produto")
	ErrQuantityRequired     = errors.New("informe a quantidade")
	ErrDimensionsRequired   = errors.New("informe largura e comprimento")
	ErrPaymentMethodInvalid = errors.New("forma de pagamento invalida")
	ErrPaymentFieldsInvalid = errors.New("campos de pagamento incompativeis com a forma escolhida")
	ErrEntryExceedsTotal    = errors.New("entrada nao pode ser maior que o valor total")
	ErrInstallmentsRequired = errors.New("informe o numero de parcelas")
	ErrCustomerRequired     = errors.New("selecione um cliente para venda fiado")
	ErrDueDateRequired      = errors.New("informe a data de vencimento")
	ErrDueDatePast          = errors.New("data de vencimento nao pode ser anterior a hoje")
	ErrDueDateTooFar        = errors.New("data de vencimento nao pode ser superior a 30 dias")
	ErrValueRequired        = errors.New("valor da venda deve ser maior que zero")
	ErrSaleDateFuture       = errors.New("data da venda nao pode ser futura")
	ErrProductNotRentable   = errors.New("produto nao disponivel para locacao")
)

// MaxCreditDays bounds how far out a fiado due date may land.
const MaxCreditDays = 30

// IsValidationError reports whether err is one of the sale submission
// rule failures.
func IsValidationError(err error) bool {
	for _, rule := range []error{
		ErrProductRequired, ErrQuantityRequired, ErrDimensionsRequired,
		ErrPaymentMethodInvalid, ErrPaymentFieldsInvalid,
		ErrEntryExceedsTotal, ErrInstallmentsRequired,
		ErrCustomerRequired, ErrDueDateRequired, ErrDueDatePast, ErrDueDateTooFar,
		ErrValueRequired, ErrSaleDateFuture, ErrProductNotRentable,
	} {
		if errors.Is(err, rule) {
			return true
		}
	}
	return false
}

// saleAmounts computes the derived measurement fields and the final value
// of a submission against the selected product. The operator can override
// the computed value with a custom one; zero means "use the computed".
func saleAmounts(product domain.Product, req domain.SaleCreateRequest) (quantity int, squareMeters float64, totalCents int64) {
	switch {
	case product.Category == domain.CategoryLona && product.PricePerSquareMeter:
		squareMeters = req.WidthM * req.LengthM
		totalCents = int64(math.Round(squareMeters * float64(product.PriceCents)))
	case product.Category == domain.CategoryLona:
		totalCents = product.PriceCents
	default:
		quantity = req.Quantity
		totalCents = int64(quantity) * product.PriceCents
	}
	if req.CustomCents > 0 {
		totalCents = req.CustomCents
	}
	return quantity, squareMeters, totalCents
}

// validateSale applies the submission rules in order and returns the first
// failure. today is already truncated to day granularity.
func validateSale(product domain.Product, hasCustomer bool, req domain.SaleCreateRequest, totalCents int64, saleDate time.Time, today time.Time) error {
	if product.ID == "" {
		return ErrProductRequired
	}
	if req.IsRental && !product.IsRentable {
		return ErrProductNotRentable
	}
	if product.Category != domain.CategoryLona && req.Quantity < 1 {
		return ErrQuantityRequired
	}
	if product.Category == domain.CategoryLona && product.PricePerSquareMeter && (req.WidthM <= 0 || req.LengthM <= 0) {
		return ErrDimensionsRequired
	}

	pay := req.Payment
	switch pay.Method {
	case domain.PaymentCash, domain.PaymentPix:
		if pay.EntryCents != 0 || pay.Installments != 0 || pay.DueDate != nil {
			return ErrPaymentFieldsInvalid
		}
	case domain.PaymentCard:
		if pay.DueDate != nil {
			return ErrPaymentFieldsInvalid
		}
		if pay.EntryCents < 0 {
			return ErrPaymentFieldsInvalid
		}
		if pay.EntryCents > totalCents {
			return ErrEntryExceedsTotal
		}
		if pay.EntryCents > 0 && pay.Installments < 2 {
			return ErrInstallmentsRequired
		}
	case domain.PaymentCredit:
		if pay.EntryCents != 0 || pay.Installments != 0 {
			return ErrPaymentFieldsInvalid
		}
		if !hasCustomer {
			return ErrCustomerRequired
		}
		if pay.DueDate == nil {
			return ErrDueDateRequired
		}
		due := dateOnly(*pay.DueDate)
		if due.Before(today) {
			return ErrDueDatePast
		}
		if due.After(today.AddDate(0, 0, MaxCreditDays)) {
			return ErrDueDateTooFar
		}
	default:
		return ErrPaymentMethodInvalid
	}

	if totalCents <= 0 {
		return ErrValueRequired
	}
	if dateOnly(saleDate).After(today) {
		return ErrSaleDateFuture
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
