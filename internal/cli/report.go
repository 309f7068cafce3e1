package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"biblio/internal/services"
)

func newReportCommand() *cobra.Command {
	var from, to, out string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write the cash report as CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fromDate, err := parseDateFlag("from", from)
			if err != nil {
				return err
			}
			toDate, err := parseDateFlag("to", to)
			if err != nil {
				return err
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return writeReport(cmd.Context(), a.reservations, fromDate, toDate, w)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first creation date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last creation date, YYYY-MM-DD")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func writeReport(ctx context.Context, reservations services.ReservationService, from, to *time.Time, w io.Writer) error {
	report, err := reservations.CashReport(ctx, from, to)
	if err != nil {
		return err
	}
	return report.WriteCSV(w)
}

func parseDateFlag(name, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return &t, nil
}
