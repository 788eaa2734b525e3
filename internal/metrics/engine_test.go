package metrics

import (
	"testing"
	"time"

	"vendarapida/backend/internal/domain"
)

func saleAt(created time.Time, saleDate time.Time, category string, totalCents int64) domain.Sale {
	return domain.Sale{
		Category:   category,
		TotalCents: totalCents,
		Payment:    domain.CashPayment(),
		SaleDate:   saleDate,
		CreatedAt:  created,
	}
}

func TestPreviousMonth(t *testing.T) {
	cases := []struct {
		key  string
		want string
	}{
		{"2026-08", "2026-07"},
		{"2026-01", "2025-12"},
		{"2024-03", "2024-02"},
	}
	for _, tc := range cases {
		got, err := PreviousMonth(tc.key)
		if err != nil {
			t.Fatalf("PreviousMonth(%q): %v", tc.key, err)
		}
		if got != tc.want {
			t.Fatalf("PreviousMonth(%q) = %q, want %q", tc.key, got, tc.want)
		}
	}
	if _, err := PreviousMonth("not-a-month"); err == nil {
		t.Fatal("expected error for malformed month key")
	}
}

func TestMonthlyRevenueAndGrowth(t *testing.T) {
	aug := time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)
	jul := time.Date(2026, 7, 10, 10, 0, 0, 0, time.UTC)
	sales := []domain.Sale{
		saleAt(aug, aug, domain.CategoryLona, 10000),
		saleAt(aug, aug, domain.CategoryTenda, 25050),
		saleAt(aug, aug, domain.CategoryFerragem, 4950),
		saleAt(jul, jul, domain.CategoryLona, 20000),
	}

	current := Monthly(sales, "2026-08", ByEntryDate)
	if current.RevenueCents != 40000 {
		t.Fatalf("current revenue = %d, want 40000", current.RevenueCents)
	}
	if current.SaleCount != 3 || current.LonasSold != 1 || current.TendasSold != 1 {
		t.Fatalf("unexpected counts: %+v", current)
	}

	previous := Monthly(sales, "2026-07", ByEntryDate)
	if previous.RevenueCents != 20000 {
		t.Fatalf("previous revenue = %d, want 20000", previous.RevenueCents)
	}

	if growth := Growth(current.RevenueCents, previous.RevenueCents); growth != 100.0 {
		t.Fatalf("growth = %v, want 100.0", growth)
	}
}

func TestGrowthZeroBaseline(t *testing.T) {
	if got := Growth(40000, 0); got != 0 {
		t.Fatalf("growth with zero baseline = %v, want 0", got)
	}
	if got := Growth(0, 0); got != 0 {
		t.Fatalf("growth of nothing = %v, want 0", got)
	}
	if got := Growth(5000, 10000); got != -50.0 {
		t.Fatalf("shrinking growth = %v, want -50", got)
	}
}

func TestGrowthFloat(t *testing.T) {
	if got := GrowthFloat(30, 10); got != 200.0 {
		t.Fatalf("growth = %v, want 200", got)
	}
	if got := GrowthFloat(7.5, 0); got != 0 {
		t.Fatalf("growth with zero baseline = %v, want 0", got)
	}
	if got := GrowthFloat(5, 20); got != -75.0 {
		t.Fatalf("shrinking growth = %v, want -75", got)
	}
}

func TestMonthlyDateBases(t *testing.T) {
	// Recorded in August, backdated to July.
	created := time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC)
	business := time.Date(2026, 7, 28, 0, 0, 0, 0, time.UTC)
	sales := []domain.Sale{saleAt(created, business, domain.CategoryLona, 5000)}

	if m := Monthly(sales, "2026-08", ByEntryDate); m.SaleCount != 1 {
		t.Fatalf("entry-date view missed the sale: %+v", m)
	}
	if m := Monthly(sales, "2026-08", ByBusinessDate); m.SaleCount != 0 {
		t.Fatalf("business-date view should not include the sale: %+v", m)
	}
	if m := Monthly(sales, "2026-07", ByBusinessDate); m.SaleCount != 1 {
		t.Fatalf("business-date view missed the backdated sale: %+v", m)
	}
}

func TestMonthlySquareMeters(t *testing.T) {
	aug := time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)
	withArea := saleAt(aug, aug, domain.CategoryLona, 12000)
	withArea.SquareMeters = 12.5
	withoutArea := saleAt(aug, aug, domain.CategoryLona, 8000)

	m := Monthly([]domain.Sale{withArea, withoutArea}, "2026-08", ByEntryDate)
	if m.SquareMeters != 12.5 {
		t.Fatalf("square meters = %v, want 12.5", m.SquareMeters)
	}
}
