package services

import (
	"time"

	"github.com/shopspring/decimal"

	"biblio/internal/models"
)

// Fine policy defaults.
var (
	DefaultFixedFee     = decimal.NewFromInt(10)
	DefaultDailyPercent = decimal.RequireFromString("0.05")
)

const day = 24 * time.Hour

// FinePolicy computes late fees and the derived overdue status of open
// reservations.
type FinePolicy struct {
	FixedFee     decimal.Decimal
	DailyPercent decimal.Decimal
	Now          func() time.Time
}

func NewFinePolicy(fixedFee, dailyPercent decimal.Decimal) FinePolicy {
	return FinePolicy{
		FixedFee:     fixedFee,
		DailyPercent: dailyPercent,
		Now:          time.Now,
	}
}

// CalculateFine returns the amount owed for a return daysLate days after the
// due date:
//
//	fixedFee + fixedFee * dailyPercent * daysLate
//
// rounded to cents, half away from zero. Non-positive daysLate yields the
// fixed fee alone.
func (p FinePolicy) CalculateFine(daysLate int) decimal.Decimal {
	if daysLate <= 0 {
		return p.FixedFee.Round(2)
	}
	surcharge := p.FixedFee.Mul(p.DailyPercent).Mul(decimal.NewFromInt(int64(daysLate)))
	return p.FixedFee.Add(surcharge).Round(2)
}

// Enrich returns r with its effective status and fine as of today. Stored
// data is never modified. Completed reservations come back untouched.
//
// Both dates are compared on their UTC calendar day, so a reservation due
// today is not late until the UTC date rolls over.
func (p FinePolicy) Enrich(r models.Reservation) models.Reservation {
	return p.EnrichAt(r, p.now())
}

// EnrichAt is Enrich with an explicit current time.
func (p FinePolicy) EnrichAt(r models.Reservation, now time.Time) models.Reservation {
	if r.Status == models.ReservationCompleted {
		return r
	}

	today := utcDate(now)
	due := utcDate(r.DueAt)
	if !today.After(due) {
		r.Fine = nil
		return r
	}

	daysLate := int(today.Sub(due) / day)
	r.Status = models.ReservationOverdue
	r.Fine = &models.Fine{
		FixedFee: p.FixedFee,
		DaysLate: daysLate,
		Total:    p.CalculateFine(daysLate),
	}
	return r
}

// startOfToday is the UTC midnight that opens the current day.
func (p FinePolicy) startOfToday() time.Time {
	return utcDate(p.now())
}

func (p FinePolicy) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

func utcDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
