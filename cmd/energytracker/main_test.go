package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/energytracker/internal/config"
	"github.com/jgoulah/energytracker/internal/ingest"
	"github.com/jgoulah/energytracker/internal/render"
	"github.com/jgoulah/energytracker/internal/tracker"
	"github.com/jgoulah/energytracker/pkg/models"
)

// execute runs the root command with fresh flag state and captures stdout.
// A fresh config path is used unless args name one.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	for _, c := range []*cobra.Command{rootCmd, reportCmd, serveCmd, tipsCmd} {
		reset := func(f *pflag.Flag) {
			f.Value.Set(f.DefValue)
			f.Changed = false
		}
		c.Flags().VisitAll(reset)
		c.PersistentFlags().VisitAll(reset)
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	if !slices.Contains(args, "--config") {
		args = append(args, "--config", filepath.Join(t.TempDir(), "config.yaml"))
	}
	rootCmd.SetArgs(append(args, "--log-level", "error"))

	err := rootCmd.Execute()
	return out.String(), err
}

func writeCSV(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "usage.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestReportCommand(t *testing.T) {
	t.Run("no file shows prompt", func(t *testing.T) {
		out, err := execute(t, "report")
		require.NoError(t, err)
		assert.Contains(t, out, render.UploadPrompt)
		assert.NotContains(t, out, render.PreviewHeading)
	})

	t.Run("summarizes on devices and writes chart", func(t *testing.T) {
		csv := writeCSV(t, "device_type,power_watt,status\nlight,60,on\nlight,40,on\nfan,75,off\n")
		chartPath := filepath.Join(t.TempDir(), "chart.png")

		out, err := execute(t, "report", csv, "--rate", "10", "--chart", chartPath)
		require.NoError(t, err)

		assert.Contains(t, out, render.PreviewHeading)
		assert.Contains(t, out, render.SummaryHeading)
		assert.Contains(t, out, "LED bulbs")
		assert.Contains(t, out, "Total Monthly Usage: 0.10 kWh")
		assert.Contains(t, out, "Estimated Monthly Cost: ₹1.00")
		assert.FileExists(t, chartPath)
	})

	t.Run("all off warns without table or chart", func(t *testing.T) {
		csv := writeCSV(t, "device_type,power_watt,status\nlight,60,off\nfan,75,off\n")
		chartPath := filepath.Join(t.TempDir(), "chart.png")

		out, err := execute(t, "report", csv, "--chart", chartPath)
		require.NoError(t, err)

		assert.Contains(t, out, render.PreviewHeading)
		assert.Contains(t, out, tracker.NoActiveDevicesWarning)
		assert.NotContains(t, out, render.SummaryHeading)
		assert.NoFileExists(t, chartPath)
	})

	t.Run("json output", func(t *testing.T) {
		csv := writeCSV(t, "device_type,power_watt,status\nfridge,150,on\ntv,120,on\n")

		out, err := execute(t, "report", csv, "--format", "json", "--chart", "")
		require.NoError(t, err)

		var report models.Report
		require.NoError(t, json.Unmarshal([]byte(out), &report))
		assert.Equal(t, []string{"fridge", "tv"}, report.DeviceTypes())
		assert.InDelta(t, 0.27*tracker.DefaultRate, report.TotalCost, 1e-9)
	})

	t.Run("json without file is the prompt", func(t *testing.T) {
		out, err := execute(t, "report", "--format", "json")
		require.NoError(t, err)

		var resp map[string]string
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		assert.Equal(t, render.UploadPrompt, resp["prompt"])
	})

	t.Run("json warning carries the preview", func(t *testing.T) {
		csv := writeCSV(t, "device_type,power_watt,status\nlight,60,off\n")

		out, err := execute(t, "report", csv, "--format", "json", "--chart", "")
		require.NoError(t, err)

		var resp struct {
			Warning string         `json:"warning"`
			Preview models.Preview `json:"preview"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		assert.Equal(t, tracker.NoActiveDevicesWarning, resp.Warning)
		assert.Equal(t, []string{"device_type", "power_watt", "status"}, resp.Preview.Header)
		assert.Equal(t, [][]string{{"light", "60", "off"}}, resp.Preview.Rows)
	})

	t.Run("infinite rate is rejected before the chart", func(t *testing.T) {
		csv := writeCSV(t, "device_type,power_watt,status\nfridge,150,on\n")
		chartPath := filepath.Join(t.TempDir(), "chart.png")

		_, err := execute(t, "report", csv, "--rate=Inf", "--format", "json", "--chart", chartPath)
		assert.ErrorIs(t, err, tracker.ErrInvalidRate)
		assert.NoFileExists(t, chartPath)
	})

	t.Run("infinite power is malformed", func(t *testing.T) {
		csv := writeCSV(t, "device_type,power_watt,status\nfridge,inf,on\n")
		chartPath := filepath.Join(t.TempDir(), "chart.png")

		_, err := execute(t, "report", csv, "--chart", chartPath)
		assert.ErrorIs(t, err, ingest.ErrMalformed)
		assert.NoFileExists(t, chartPath)
	})

	t.Run("negative rate is rejected", func(t *testing.T) {
		csv := writeCSV(t, "device_type,power_watt,status\nfridge,150,on\n")
		_, err := execute(t, "report", csv, "--rate=-2", "--chart", "")
		assert.ErrorIs(t, err, tracker.ErrInvalidRate)
	})

	t.Run("malformed csv is an error", func(t *testing.T) {
		csv := writeCSV(t, "device,watts\nfridge,150\n")
		_, err := execute(t, "report", csv, "--chart", "")
		assert.ErrorContains(t, err, "missing required column(s)")
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := execute(t, "report", "--format", "xml")
		assert.ErrorContains(t, err, "unknown format")
	})
}

func TestReportUsesConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("rate: 20\ncurrency: \"$\"\n"), 0600))
	csv := writeCSV(t, "device_type,power_watt,status\nlight,100,on\n")

	out, err := execute(t, "report", csv, "--chart", "", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Estimated Monthly Cost: $2.00")
}

func TestReportSaveRate(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	csv := writeCSV(t, "device_type,power_watt,status\nlight,100,on\n")

	out, err := execute(t, "report", "--rate", "12", "--save-rate", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Saved rate 12.00")
	assert.Contains(t, out, render.UploadPrompt)

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, 12.0, cfg.GetRate())

	// The saved rate is the default on the next run
	out, err = execute(t, "report", csv, "--chart", "", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Estimated Monthly Cost: ₹1.20")

	t.Run("requires rate", func(t *testing.T) {
		_, err := execute(t, "report", "--save-rate")
		assert.ErrorContains(t, err, "--save-rate requires --rate")
	})

	t.Run("invalid rate is not saved", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		_, err := execute(t, "report", "--rate=-1", "--save-rate", "--config", path)
		assert.ErrorIs(t, err, tracker.ErrInvalidRate)
		assert.NoFileExists(t, path)
	})
}

func TestTipsCommand(t *testing.T) {
	out, err := execute(t, "tips")
	require.NoError(t, err)

	for _, tip := range tracker.Tips() {
		assert.Contains(t, out, tip.Tip)
	}
	assert.Contains(t, out, tracker.FallbackTip)
}
