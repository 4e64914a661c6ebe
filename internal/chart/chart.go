// Package chart draws the monthly usage bar chart.
package chart

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"

	"github.com/jgoulah/energytracker/pkg/models"
)

const (
	Title  = "Monthly Energy Usage per Appliance"
	XLabel = "Appliance"
	YLabel = "Monthly Usage (kWh)"

	width  = 10 * vg.Inch
	height = 5 * vg.Inch
)

// SkyBlue is the bar fill color
var SkyBlue = color.RGBA{R: 135, G: 206, B: 235, A: 255}

// New builds the bar chart of monthly kWh per device type
func New(report *models.Report) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = Title
	p.X.Label.Text = XLabel
	p.Y.Label.Text = YLabel
	p.Y.Min = 0

	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = text.XRight
	p.X.Tick.Label.YAlign = text.YCenter

	values := plotter.Values(report.MonthlyKWh())
	if len(values) == 0 {
		return p, nil
	}

	bars, err := plotter.NewBarChart(values, barWidth(len(values)))
	if err != nil {
		return nil, fmt.Errorf("building bar chart: %w", err)
	}
	bars.Color = SkyBlue
	bars.LineStyle.Width = 0

	p.Add(bars)
	p.NominalX(report.DeviceTypes()...)

	return p, nil
}

// barWidth narrows bars as the device count grows so they never overlap
func barWidth(n int) vg.Length {
	w := vg.Points(600 / float64(n+1))
	if w > vg.Points(48) {
		return vg.Points(48)
	}
	return w
}

// WritePNG renders the chart as PNG to w
func WritePNG(w io.Writer, report *models.Report) error {
	p, err := New(report)
	if err != nil {
		return err
	}

	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("creating png canvas: %w", err)
	}

	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("writing png: %w", err)
	}
	return nil
}

// PNG renders the chart as PNG bytes
func PNG(report *models.Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := WritePNG(&buf, report); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile renders the chart as a PNG file at path
func WriteFile(path string, report *models.Report) error {
	data, err := PNG(report)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing chart file: %w", err)
	}
	return nil
}
