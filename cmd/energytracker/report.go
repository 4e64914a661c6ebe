package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/jgoulah/energytracker/internal/chart"
	"github.com/jgoulah/energytracker/internal/ctxlog"
	"github.com/jgoulah/energytracker/internal/ingest"
	"github.com/jgoulah/energytracker/internal/publisher"
	"github.com/jgoulah/energytracker/internal/render"
	"github.com/jgoulah/energytracker/internal/tracker"
	"github.com/jgoulah/energytracker/pkg/models"
	"github.com/spf13/cobra"
)

var (
	reportRate    float64
	reportChart   string
	reportFormat  string
	reportPublish bool
	reportSave    bool
)

var reportCmd = &cobra.Command{
	Use:   "report [file.csv]",
	Short: "Summarize monthly usage and cost from a usage CSV",
	Long: `Reads a usage CSV with device_type, power_watt and status columns, keeps the
records that are on, and prints monthly kWh, estimated cost and a tip per device type.
A bar chart of monthly kWh per device type is written as PNG.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().Float64Var(&reportRate, "rate", tracker.DefaultRate, "Electricity rate per kWh (default from config, else 8.0)")
	reportCmd.Flags().StringVar(&reportChart, "chart", "usage_chart.png", "Chart output path (empty to skip the chart)")
	reportCmd.Flags().StringVar(&reportFormat, "format", "text", "Output format (text or json)")
	reportCmd.Flags().BoolVar(&reportSave, "save-rate", false, "Store the --rate value as the default in the config file")
	reportCmd.Flags().BoolVar(&reportPublish, "publish", false, "Publish the summary to MQTT (requires mqtt.enabled in config)")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	if reportFormat != "text" && reportFormat != "json" {
		return fmt.Errorf("unknown format: %s (available: text, json)", reportFormat)
	}

	cfg := appConfig
	rate := cfg.GetRate()
	if cmd.Flags().Changed("rate") {
		rate = reportRate
	}
	if err := tracker.ValidateRate(rate); err != nil {
		return err
	}

	if reportSave {
		if !cmd.Flags().Changed("rate") {
			return errors.New("--save-rate requires --rate")
		}
		if err := saveRate(rate); err != nil {
			return fmt.Errorf("saving rate: %w", err)
		}
		status(cmd, fmt.Sprintf("✓ Saved rate %.2f to %s", rate, getConfigPath()))
	}

	if len(args) == 0 {
		if reportFormat == "json" {
			return writeJSON(out, map[string]string{"prompt": render.UploadPrompt})
		}
		render.Prompt(out)
		return nil
	}

	ds, err := ingest.ParseFile(args[0])
	if err != nil {
		return fmt.Errorf("reading usage data: %w", err)
	}

	preview := ds.Preview(cfg.GetPreviewRows())
	if reportFormat == "text" {
		if err := render.Preview(out, preview); err != nil {
			return err
		}
	}

	report, err := tracker.Analyze(ctx, ds, tracker.Options{
		Rate:        rate,
		Currency:    cfg.GetCurrency(),
		PreviewRows: cfg.GetPreviewRows(),
	})
	if errors.Is(err, tracker.ErrNoActiveDevices) {
		if reportFormat == "json" {
			return writeJSON(out, warningOutput{Warning: tracker.NoActiveDevicesWarning, Preview: preview})
		}
		fmt.Fprintln(out)
		render.Warning(out, tracker.NoActiveDevicesWarning)
		return nil
	}
	if err != nil {
		return fmt.Errorf("analyzing usage: %w", err)
	}

	if reportChart != "" {
		if err := chart.WriteFile(reportChart, report); err != nil {
			return fmt.Errorf("writing chart: %w", err)
		}
		ctxlog.FromContext(ctx).Debug("wrote chart", "path", reportChart)
	}

	if reportFormat == "json" {
		if err := writeJSON(out, report); err != nil {
			return err
		}
	} else if err := render.Report(out, report, reportChart); err != nil {
		return err
	}

	if reportPublish {
		if err := publishReport(cmd, report); err != nil {
			return fmt.Errorf("publishing summary: %w", err)
		}
	}

	return nil
}

func publishReport(cmd *cobra.Command, report *models.Report) error {
	cfg := appConfig
	pub, err := publisher.New(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}
	defer pub.Close()

	n, err := pub.Publish(cmd.Context(), report)
	if err != nil {
		return err
	}

	status(cmd, fmt.Sprintf("✓ Published %d messages to %s", n, cfg.MQTT.Broker))
	return nil
}

// status prints a progress line, keeping stdout clean for JSON consumers
func status(cmd *cobra.Command, msg string) {
	if reportFormat == "json" {
		fmt.Fprintln(cmd.ErrOrStderr(), msg)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), msg)
	}
}

// warningOutput matches the warning shape of POST /api/report
type warningOutput struct {
	Warning string         `json:"warning"`
	Preview models.Preview `json:"preview"`
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding json: %w", err)
	}
	return nil
}
