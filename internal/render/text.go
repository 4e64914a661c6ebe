// Package render prints usage reports to a terminal.
package render

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/jgoulah/energytracker/pkg/models"
)

// UploadPrompt is shown when no input file was given
const UploadPrompt = "Please upload a CSV file to begin."

const (
	PreviewHeading = "📄 Raw Data Preview"
	SummaryHeading = "📊 Monthly Energy Summary"
	ChartHeading   = "📈 Monthly Usage by Appliance"
)

const rule = "----------------------------------------"

// SummaryColumns are the columns of the summary table, in display order
var SummaryColumns = []string{"device_type", "monthly_kWh", "estimated_cost", "Energy Tip"}

// TotalUsageLine formats the total monthly kWh to two decimals
func TotalUsageLine(r *models.Report) string {
	return fmt.Sprintf("🌍 Total Monthly Usage: %.2f kWh", r.TotalKWh)
}

// TotalCostLine formats the total estimated cost to two decimals
func TotalCostLine(r *models.Report) string {
	return fmt.Sprintf("💸 Estimated Monthly Cost: %s%.2f", r.Currency, r.TotalCost)
}

// FormatKWh formats a kWh cell
func FormatKWh(v float64) string {
	return fmt.Sprintf("%.3f", v)
}

// FormatCost formats a cost cell
func FormatCost(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// Prompt prints the upload prompt
func Prompt(w io.Writer) {
	fmt.Fprintln(w, "ℹ "+UploadPrompt)
}

// Warning prints a warning line
func Warning(w io.Writer, msg string) {
	fmt.Fprintln(w, "⚠ "+msg)
}

// Preview prints the header and leading raw rows
func Preview(w io.Writer, p models.Preview) error {
	fmt.Fprintf(w, "\n%s\n", PreviewHeading)
	fmt.Fprintln(w, rule)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(p.Header, "\t"))
	for _, row := range p.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Showing %d of %s rows\n", len(p.Rows), humanize.Comma(int64(p.TotalRows)))
	return nil
}

// Summary prints the per-device summary table
func Summary(w io.Writer, r *models.Report) error {
	fmt.Fprintf(w, "\n%s\n", SummaryHeading)
	fmt.Fprintln(w, rule)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(SummaryColumns, "\t"))
	for _, s := range r.Summaries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			s.DeviceType, FormatKWh(s.MonthlyKWh), FormatCost(s.EstimatedCost), s.Tip)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w, rule)
	return nil
}

// Totals prints the two total lines
func Totals(w io.Writer, r *models.Report) {
	fmt.Fprintln(w, "✓ "+TotalUsageLine(r))
	fmt.Fprintln(w, "✓ "+TotalCostLine(r))
}

// Report prints the summary table, chart location and totals. chartPath may
// be empty when no chart was written.
func Report(w io.Writer, r *models.Report, chartPath string) error {
	if err := Summary(w, r); err != nil {
		return err
	}

	if chartPath != "" {
		fmt.Fprintf(w, "\n%s\n", ChartHeading)
		fmt.Fprintf(w, "Chart written to %s\n", chartPath)
	}

	fmt.Fprintln(w)
	Totals(w, r)
	return nil
}
