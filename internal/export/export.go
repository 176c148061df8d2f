// Package export serializes invoice data maps for download.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/zombor/invoice-vision/internal/generic"
	"github.com/zombor/invoice-vision/internal/invoice"
)

// Format is an export file format.
type Format string

const (
	JSON Format = "json"
	CSV  Format = "csv"
	YAML Format = "yaml"
)

var (
	// ErrNoLineItems is returned by CSV when there are no line items to write.
	ErrNoLineItems = errors.New("no line items found to export")

	ErrUnknownFormat = errors.New("unknown export format")
)

// ParseFormat reads a format name, case-insensitively. An empty name is JSON.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "":
		return JSON, nil
	case JSON, CSV, YAML:
		return f, nil
	case "yml":
		return YAML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// ContentType is the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case CSV:
		return "text/csv"
	case YAML:
		return "application/yaml"
	}
	return "application/json"
}

// Filename builds the timestamped download name for the format.
func Filename(f Format, now time.Time) string {
	timestamp := now.Format("20060102_150405")
	switch f {
	case JSON:
		return fmt.Sprintf("invoice_data_%s.json", timestamp)
	case CSV:
		return fmt.Sprintf("invoice_items_%s.csv", timestamp)
	}
	return fmt.Sprintf("invoice_export_%s.%s", timestamp, f)
}

// Write serializes data in the given format.
func Write(w io.Writer, f Format, data generic.Value) error {
	switch f {
	case JSON:
		return WriteJSON(w, data)
	case CSV:
		return WriteCSV(w, data)
	case YAML:
		return WriteYAML(w, data)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
}

// WriteJSON writes data indented by two spaces, keeping key order and
// non-ASCII text as-is.
func WriteJSON(w io.Writer, data generic.Value) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	return nil
}

// WriteYAML writes data as a YAML document in key order.
func WriteYAML(w io.Writer, data generic.Value) error {
	out, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding YAML: %w", err)
	}
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("writing YAML: %w", err)
	}
	return nil
}

// invoiceColumns are appended to every line item row.
var invoiceColumns = []string{"invoice_number", "invoice_date", "vendor_name", "total_amount", "currency"}

// WriteCSV writes one row per line item. Columns are the item keys in
// first-seen order followed by the invoice columns, which repeat on every
// row. An item key that collides with an invoice column keeps its position
// but takes the invoice value.
func WriteCSV(w io.Writer, data generic.Value) error {
	var items []generic.Value
	for _, item := range data.Get(invoice.KeyLineItems).Items() {
		if item.Kind() == generic.MapKind {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return ErrNoLineItems
	}

	invoiceValues := map[string]string{
		"invoice_number": data.Get(invoice.KeyInvoiceNumber).Text(),
		"invoice_date":   data.Get(invoice.KeyInvoiceDate).Text(),
		"vendor_name":    data.Get(invoice.KeyVendor).Get(invoice.KeyName).Text(),
		"total_amount":   data.Get(invoice.KeyTotalAmount).Text(),
		"currency":       data.Get(invoice.KeyCurrency).Text(),
	}

	var columns []string
	for _, item := range items {
		for _, key := range item.Keys() {
			if !slices.Contains(columns, key) {
				columns = append(columns, key)
			}
		}
	}
	for _, col := range invoiceColumns {
		if !slices.Contains(columns, col) {
			columns = append(columns, col)
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for _, item := range items {
		row := make([]string, len(columns))
		for i, col := range columns {
			if v, ok := invoiceValues[col]; ok {
				row[i] = v
			} else {
				row[i] = item.Get(col).Text()
			}
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing CSV row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing CSV: %w", err)
	}
	return nil
}
