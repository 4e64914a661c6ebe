package models

import "time"

// UsageRecord represents a single row of the uploaded usage CSV
type UsageRecord struct {
	DeviceType string  `json:"device_type"`
	PowerWatt  float64 `json:"power_watt"`
	HasPower   bool    `json:"-"` // false when the power_watt cell was empty
	Status     string  `json:"status"`
}

// DeviceSummary is one aggregated row per device type with at least one "on" record
type DeviceSummary struct {
	DeviceType    string  `json:"device_type"`
	PowerWatt     float64 `json:"power_watt"`
	MonthlyKWh    float64 `json:"monthly_kWh"`
	HoursOn       int     `json:"hours_on"`
	EstimatedCost float64 `json:"estimated_cost"`
	Tip           string  `json:"energy_tip"`
}

// Preview holds the header and leading raw rows of the input, unparsed
type Preview struct {
	Header    []string   `json:"header"`
	Rows      [][]string `json:"rows"`
	TotalRows int        `json:"total_rows"`
}

// Report is the result of one pipeline run
type Report struct {
	ID          string          `json:"id"`
	Rate        float64         `json:"rate"`
	Currency    string          `json:"currency"`
	Preview     Preview         `json:"preview"`
	Summaries   []DeviceSummary `json:"summaries"`
	TotalKWh    float64         `json:"total_kwh"`
	TotalCost   float64         `json:"total_cost"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// DeviceTypes returns the device types of the summary rows, in order
func (r *Report) DeviceTypes() []string {
	types := make([]string, 0, len(r.Summaries))
	for _, s := range r.Summaries {
		types = append(types, s.DeviceType)
	}
	return types
}

// MonthlyKWh returns the monthly kWh of the summary rows, in order
func (r *Report) MonthlyKWh() []float64 {
	values := make([]float64, 0, len(r.Summaries))
	for _, s := range r.Summaries {
		values = append(values, s.MonthlyKWh)
	}
	return values
}
