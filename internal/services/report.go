package services

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"biblio/internal/models"
	"biblio/internal/repositories"
)

const (
	reportDateLayout = "02/01/2006"
	notAvailable     = "N/A"
	notReturned      = "-"
)

var reportHeader = []string{
	"Reserved On", "Client", "CPF", "Book", "Due On", "Returned On", "Status", "Days Late", "Fine",
}

// CashReportRow is one reservation as it appears in the cash report.
type CashReportRow struct {
	ReservedOn time.Time
	ClientName string
	ClientCPF  string
	BookTitle  string
	DueOn      time.Time
	ReturnedOn *time.Time
	Status     models.ReservationStatus
	DaysLate   int
	Fine       decimal.Decimal
}

// CashReport is the fine ledger over a range of reservation creation dates.
type CashReport struct {
	Rows  []CashReportRow
	Total decimal.Decimal
}

// CashReport folds every reservation created in [from, to] into report rows,
// newest first. from matches from the start of its UTC day and to through the
// end of its UTC day; either may be nil.
func (s *reservationService) CashReport(ctx context.Context, from, to *time.Time) (*CashReport, error) {
	filter := repositories.ReservationFilter{NewestFirst: true}
	if from != nil {
		start := utcDate(*from)
		filter.CreatedFrom = &start
	}
	if to != nil {
		end := utcDate(*to).Add(day - time.Millisecond)
		filter.CreatedTo = &end
	}

	items, _, err := s.reservationRepo.List(s.db.WithContext(ctx), filter)
	if err != nil {
		return nil, s.fail("cash_report", wrapStorage("list reservations for report", err))
	}

	now := s.policy.now()
	report := &CashReport{Rows: make([]CashReportRow, 0, len(items)), Total: decimal.Zero}
	for _, r := range items {
		e := s.policy.EnrichAt(r, now)
		row := CashReportRow{
			ReservedOn: e.CreatedAt,
			ClientName: notAvailable,
			ClientCPF:  notAvailable,
			BookTitle:  notAvailable,
			DueOn:      e.DueAt,
			ReturnedOn: e.ReturnedAt,
			Status:     e.Status,
			Fine:       decimal.Zero,
		}
		if e.Client.ID != uuid.Nil {
			row.ClientName = e.Client.Name
			row.ClientCPF = e.Client.CPF
		}
		if e.Book.ID != uuid.Nil {
			row.BookTitle = e.Book.Title
		}
		if e.Fine != nil {
			row.DaysLate = e.Fine.DaysLate
			row.Fine = e.Fine.Total
		}
		report.Total = report.Total.Add(row.Fine)
		report.Rows = append(report.Rows, row)
	}
	return report, nil
}

// WriteCSV renders the report with a trailing total row. Dates are
// dd/mm/yyyy in UTC and amounts are written as "R$ 12,50".
func (r *CashReport) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(reportHeader); err != nil {
		return err
	}
	for _, row := range r.Rows {
		returned := notReturned
		if row.ReturnedOn != nil {
			returned = row.ReturnedOn.UTC().Format(reportDateLayout)
		}
		rec := []string{
			row.ReservedOn.UTC().Format(reportDateLayout),
			row.ClientName,
			row.ClientCPF,
			row.BookTitle,
			row.DueOn.UTC().Format(reportDateLayout),
			returned,
			string(row.Status),
			strconv.Itoa(row.DaysLate),
			formatMoney(row.Fine),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	if err := cw.Write([]string{"", "", "", "", "", "", "Total:", "", formatMoney(r.Total)}); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func formatMoney(d decimal.Decimal) string {
	return "R$ " + strings.Replace(d.StringFixed(2), ".", ",", 1)
}
