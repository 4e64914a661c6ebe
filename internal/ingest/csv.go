// Package ingest reads appliance usage CSV files into typed records while
// keeping the raw rows around for preview.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/jgoulah/energytracker/pkg/models"
)

// Required column names
const (
	ColDeviceType = "device_type"
	ColPowerWatt  = "power_watt"
	ColStatus     = "status"
)

var (
	// ErrMissingFile is returned when no input file was supplied at all
	ErrMissingFile = errors.New("no CSV file supplied")
	// ErrMalformed wraps every parse failure caused by the file contents
	ErrMalformed = errors.New("malformed usage CSV")
)

// naValues are the cell values read as missing, the same set spreadsheet
// and dataframe tools treat as NA by default
var naValues = map[string]bool{
	"": true, "#N/A": true, "#N/A N/A": true, "#NA": true,
	"-1.#IND": true, "-1.#QNAN": true, "-NaN": true, "-nan": true,
	"1.#IND": true, "1.#QNAN": true, "<NA>": true, "N/A": true,
	"NA": true, "NULL": true, "NaN": true, "None": true,
	"n/a": true, "nan": true, "null": true,
}

// missing returns "" for NA values and the value unchanged otherwise
func missing(v string) string {
	if naValues[v] {
		return ""
	}
	return v
}

// Dataset is a parsed usage file
type Dataset struct {
	Header  []string
	Rows    [][]string
	Records []models.UsageRecord
}

// Preview returns the header and the first n raw rows
func (d *Dataset) Preview(n int) models.Preview {
	if n < 0 || n > len(d.Rows) {
		n = len(d.Rows)
	}
	return models.Preview{
		Header:    d.Header,
		Rows:      d.Rows[:n],
		TotalRows: len(d.Rows),
	}
}

// ParseFile opens and parses the CSV at path
func ParseFile(path string) (*Dataset, error) {
	if path == "" {
		return nil, ErrMissingFile
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening usage file: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads a usage CSV from r. The header row must name device_type,
// power_watt and status; any other columns are carried into the raw rows only.
func Parse(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	// Short rows are padded as missing values, long rows are rejected below
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: file is empty", ErrMalformed)
		}
		return nil, fmt.Errorf("%w: reading header: %v", ErrMalformed, err)
	}

	for i, col := range header {
		col = strings.TrimSpace(col)
		if i == 0 {
			col = strings.TrimPrefix(col, "\ufeff")
		}
		header[i] = col
	}

	idx, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{Header: header}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		line, _ := reader.FieldPos(0)
		if len(row) > len(header) {
			return nil, fmt.Errorf("%w: line %d: expected %d fields, saw %d", ErrMalformed, line, len(header), len(row))
		}

		record, err := parseRecord(row, idx)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
		}

		ds.Rows = append(ds.Rows, row)
		ds.Records = append(ds.Records, record)
	}

	return ds, nil
}

type columns struct {
	deviceType int
	powerWatt  int
	status     int
}

func columnIndex(header []string) (columns, error) {
	idx := columns{deviceType: -1, powerWatt: -1, status: -1}
	for i, col := range header {
		// A repeated name keeps its first column
		switch {
		case col == ColDeviceType && idx.deviceType == -1:
			idx.deviceType = i
		case col == ColPowerWatt && idx.powerWatt == -1:
			idx.powerWatt = i
		case col == ColStatus && idx.status == -1:
			idx.status = i
		}
	}

	var missing []string
	if idx.deviceType == -1 {
		missing = append(missing, ColDeviceType)
	}
	if idx.powerWatt == -1 {
		missing = append(missing, ColPowerWatt)
	}
	if idx.status == -1 {
		missing = append(missing, ColStatus)
	}
	if len(missing) > 0 {
		return idx, fmt.Errorf("%w: missing required column(s): %s", ErrMalformed, strings.Join(missing, ", "))
	}
	return idx, nil
}

func parseRecord(row []string, idx columns) (models.UsageRecord, error) {
	get := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}

	record := models.UsageRecord{
		DeviceType: missing(get(idx.deviceType)),
		Status:     missing(get(idx.status)),
	}

	raw := missing(strings.TrimSpace(get(idx.powerWatt)))
	if raw == "" {
		return record, nil
	}

	watts, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return record, fmt.Errorf("power_watt %q is not a number", raw)
	}
	if math.IsNaN(watts) {
		return record, nil
	}
	if math.IsInf(watts, 0) {
		return record, fmt.Errorf("power_watt %q is not a finite number", raw)
	}
	record.PowerWatt = watts
	record.HasPower = true

	return record, nil
}
