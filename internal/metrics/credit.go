package metrics

import (
	"time"

	"vendarapida/backend/internal/domain"
)

// DueSoonWindowDays is how far ahead a due date still counts as "due soon".
const DueSoonWindowDays = 7

// CreditSummary buckets the open fiado sales by due date at day
// granularity: overdue (due before today), due soon (today through
// today+7), current (later than that). The three buckets are disjoint and
// together cover every open credit sale. Settled sales are skipped, and
// the summary is recomputed from the ledger on every call.
func CreditSummary(sales []domain.Sale, now time.Time) domain.CreditMetrics {
	today := dateOnly(now)
	horizon := today.AddDate(0, 0, DueSoonWindowDays)

	var result domain.CreditMetrics
	for _, sale := range sales {
		if !sale.IsCredit() || sale.SettledAt != nil || sale.Payment.DueDate == nil {
			continue
		}
		result.TotalCents += sale.TotalCents
		result.Count++

		due := dateOnly(*sale.Payment.DueDate)
		switch {
		case due.Before(today):
			result.OverdueCents += sale.TotalCents
			result.OverdueCount++
		case !due.After(horizon):
			result.DueSoonCents += sale.TotalCents
			result.DueSoonCount++
		default:
			result.CurrentCents += sale.TotalCents
			result.CurrentCount++
		}
	}
	return result
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
