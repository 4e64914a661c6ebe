// Package tracker runs the usage pipeline: filter the "on" records, group them
// by device type, then derive monthly kWh, cost and a tip for each device.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/jgoulah/energytracker/internal/ctxlog"
	"github.com/jgoulah/energytracker/internal/database"
	"github.com/jgoulah/energytracker/internal/ingest"
	"github.com/jgoulah/energytracker/pkg/models"
)

const (
	// ActiveStatus is the only status value counted as usage
	ActiveStatus = "on"
	// DefaultRate is the electricity rate per kWh when none is given
	DefaultRate = 8.0
	// DefaultCurrency prefixes cost figures
	DefaultCurrency = "₹"
	// DefaultPreviewRows is how many raw rows the preview shows
	DefaultPreviewRows = 5

	// NoActiveDevicesWarning is shown instead of a report when nothing is "on"
	NoActiveDevicesWarning = "No devices are marked 'on' in the dataset."

	wattsPerKilowatt = 1000.0
)

var (
	// ErrNoActiveDevices means no record has status "on"
	ErrNoActiveDevices = errors.New("no devices are marked 'on' in the dataset")
	// ErrInvalidRate means the electricity rate is negative, NaN or infinite
	ErrInvalidRate = errors.New("electricity rate must be a non-negative, finite number")
	// ErrOverflow means a summed kWh or cost figure is too large to represent
	ErrOverflow = errors.New("usage totals overflow")
)

// Options controls a single pipeline run
type Options struct {
	Rate        float64
	Currency    string
	PreviewRows int
}

// ValidateRate rejects negative, NaN and infinite rates. Zero is valid.
func ValidateRate(rate float64) error {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 {
		return fmt.Errorf("%w (got %v)", ErrInvalidRate, rate)
	}
	return nil
}

// MonthlyKWh converts summed watts into the monthly kWh figure
func MonthlyKWh(watts float64) float64 {
	return watts / wattsPerKilowatt
}

// EstimateCost prices a kWh figure at the given rate
func EstimateCost(kwh, rate float64) float64 {
	return kwh * rate
}

// Analyze runs the pipeline over a parsed dataset. It returns
// ErrNoActiveDevices when nothing is "on"; in that case no report is built.
func Analyze(ctx context.Context, ds *ingest.Dataset, opts Options) (*models.Report, error) {
	if err := ValidateRate(opts.Rate); err != nil {
		return nil, err
	}
	if opts.Currency == "" {
		opts.Currency = DefaultCurrency
	}
	if opts.PreviewRows == 0 {
		opts.PreviewRows = DefaultPreviewRows
	}

	log := ctxlog.FromContext(ctx)

	frame, err := database.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening frame: %w", err)
	}
	defer frame.Close()

	if err := frame.InsertRecords(ctx, ds.Records); err != nil {
		return nil, fmt.Errorf("loading records: %w", err)
	}

	active, err := frame.CountByStatus(ctx, ActiveStatus)
	if err != nil {
		return nil, err
	}
	log.Debug("filtered records",
		"total", humanize.Comma(int64(len(ds.Records))),
		"active", humanize.Comma(int64(active)))
	if active == 0 {
		return nil, ErrNoActiveDevices
	}

	aggregates, err := frame.AggregateByDevice(ctx, ActiveStatus)
	if err != nil {
		return nil, fmt.Errorf("aggregating usage: %w", err)
	}

	report := &models.Report{
		ID:          uuid.NewString(),
		Rate:        opts.Rate,
		Currency:    opts.Currency,
		Preview:     ds.Preview(opts.PreviewRows),
		Summaries:   make([]models.DeviceSummary, 0, len(aggregates)),
		GeneratedAt: time.Now().UTC(),
	}

	for _, a := range aggregates {
		kwh := MonthlyKWh(a.PowerWatt)
		summary := models.DeviceSummary{
			DeviceType:    a.DeviceType,
			PowerWatt:     a.PowerWatt,
			MonthlyKWh:    kwh,
			HoursOn:       a.HoursOn,
			EstimatedCost: EstimateCost(kwh, opts.Rate),
			Tip:           Tip(a.DeviceType),
		}
		if !finite(summary.PowerWatt, summary.EstimatedCost) {
			return nil, fmt.Errorf("%w: device type %q", ErrOverflow, a.DeviceType)
		}
		report.Summaries = append(report.Summaries, summary)
		report.TotalKWh += summary.MonthlyKWh
		report.TotalCost += summary.EstimatedCost
	}
	if !finite(report.TotalKWh, report.TotalCost) {
		return nil, fmt.Errorf("%w: report totals", ErrOverflow)
	}

	log.Info("built usage report",
		"report_id", report.ID,
		"devices", len(report.Summaries),
		"total_kwh", fmt.Sprintf("%.2f", report.TotalKWh),
		"rate", opts.Rate)

	return report, nil
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return false
		}
	}
	return true
}
