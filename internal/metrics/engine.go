// Package metrics computes dashboard aggregates from the sales ledger.
// Everything here is a pure function over a sale slice; callers decide
// where the slice comes from and whether the result gets cached.
package metrics

import (
	"time"

	"vendarapida/backend/internal/domain"
)

// DateBasis selects which timestamp a monthly aggregation groups by.
type DateBasis string

const (
	// ByEntryDate groups by when the sale was recorded in the ledger.
	ByEntryDate DateBasis = "entry_date"
	// ByBusinessDate groups by the sale date the operator entered,
	// which can be backdated.
	ByBusinessDate DateBasis = "sale_date"
)

const monthKeyLayout = "2006-01"

// MonthKey returns the "YYYY-MM" key for a point in time.
func MonthKey(t time.Time) string {
	return t.Format(monthKeyLayout)
}

// ParseMonth parses a "YYYY-MM" key into the first instant of that month.
func ParseMonth(key string) (time.Time, error) {
	return time.Parse(monthKeyLayout, key)
}

// PreviousMonth returns the key of the month before the given one.
// January rolls over to December of the prior year.
func PreviousMonth(key string) (string, error) {
	month, err := ParseMonth(key)
	if err != nil {
		return "", err
	}
	return MonthKey(month.AddDate(0, -1, 0)), nil
}

// Monthly aggregates the sales whose basis date falls in the keyed month:
// revenue, sale count, lona and tenda counts, and total square meters
// (sales without dimensions contribute zero).
func Monthly(sales []domain.Sale, key string, basis DateBasis) domain.MonthlyMetrics {
	result := domain.MonthlyMetrics{Month: key}
	for _, sale := range sales {
		if MonthKey(basisDate(sale, basis)) != key {
			continue
		}
		result.RevenueCents += sale.TotalCents
		result.SaleCount++
		switch sale.Category {
		case domain.CategoryLona:
			result.LonasSold++
		case domain.CategoryTenda:
			result.TendasSold++
		}
		result.SquareMeters += sale.SquareMeters
	}
	return result
}

// Growth returns the percentage change from previous to current revenue.
// A zero baseline yields 0, not a division error or an infinite jump.
func Growth(currentCents int64, previousCents int64) float64 {
	return GrowthFloat(float64(currentCents), float64(previousCents))
}

// GrowthFloat is Growth over fractional quantities such as square meters.
func GrowthFloat(current float64, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return (current - previous) / previous * 100
}

func basisDate(sale domain.Sale, basis DateBasis) time.Time {
	if basis == ByBusinessDate {
		return sale.SaleDate
	}
	return sale.CreatedAt
}
