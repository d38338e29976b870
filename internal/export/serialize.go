package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/xuri/excelize/v2"
)

// Serialize renders a built table into the requested format.
func Serialize(table Table, format string) ([]byte, string, error) {
	switch format {
	case FormatCSV:
		data, err := encodeCSV(table)
		return data, "text/csv", err
	case FormatJSON:
		data, err := encodeJSON(table)
		return data, "application/json", err
	case FormatXLSX:
		data, err := encodeXLSX(table)
		return data, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", err
	case FormatPNG:
		data, err := encodePNG(table)
		return data, "image/png", err
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrInvalidFormat, format)
	}
}

// Filename derives a download name like trades_20260830T120000.csv.
func Filename(typ, format string, at time.Time) string {
	return fmt.Sprintf("%s_%s.%s", typ, at.UTC().Format("20060102T150405"), format)
}

func encodeCSV(table Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(table.Headers); err != nil {
		return nil, err
	}
	if err := w.WriteAll(table.Rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeJSON(table Table) ([]byte, error) {
	out := make([]map[string]string, 0, len(table.Rows))
	for _, row := range table.Rows {
		obj := make(map[string]string, len(table.Headers))
		for i, h := range table.Headers {
			if i < len(row) {
				obj[h] = row[i]
			}
		}
		out = append(out, obj)
	}
	return json.Marshal(out)
}

func encodeXLSX(table Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	header := make([]interface{}, len(table.Headers))
	for i, h := range table.Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}
	for i, row := range table.Rows {
		cells := make([]interface{}, len(row))
		for j, c := range row {
			cells[j] = c
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return nil, err
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodePNG renders the equity curve. It expects the chartEquity table shape
// (day, equity).
func encodePNG(table Table) ([]byte, error) {
	if len(table.Rows) < 2 {
		return nil, fmt.Errorf("equity chart needs at least 2 points, have %d", len(table.Rows))
	}
	xs := make([]time.Time, 0, len(table.Rows))
	ys := make([]float64, 0, len(table.Rows))
	for _, row := range table.Rows {
		if len(row) < 2 {
			continue
		}
		day, err := time.Parse("2006-01-02", row[0])
		if err != nil {
			return nil, fmt.Errorf("bad day %q: %w", row[0], err)
		}
		v, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, fmt.Errorf("bad equity %q: %w", row[1], err)
		}
		xs = append(xs, day)
		ys = append(ys, v)
	}

	graph := chart.Chart{
		Title:  "Equity Curve",
		Width:  1024,
		Height: 512,
		XAxis:  chart.XAxis{ValueFormatter: chart.TimeDateValueFormatter},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "equity",
				XValues: xs,
				YValues: ys,
			},
		},
	}
	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
