package scanning

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zombor/invoice-vision/internal/generic"
	"github.com/zombor/invoice-vision/internal/invoice"
	"github.com/zombor/invoice-vision/internal/normalize"
)

// Kind tells callers how much of a model response could be used.
type Kind string

const (
	// Structured results hold the cleaned projection of a built record.
	Structured Kind = "structured"
	// RawText results found no JSON object and hold only the model text.
	RawText Kind = "raw"
	// Unmapped results hold the decoded JSON as-is because mapping failed.
	Unmapped Kind = "unmapped"
)

// Result is the outcome of parsing one model response.
type Result struct {
	Kind Kind
	// Data is the generic map handed to exporters and the UI.
	Data generic.Value
	// Warning explains why a result is not Structured.
	Warning error
}

// Record rebuilds the canonical record behind a Structured result.
func (r Result) Record() (*invoice.Record, bool) {
	if r.Kind != Structured {
		return nil, false
	}
	return invoice.FromMap(r.Data), true
}

// DecodeError means the response contained a brace-delimited span that is
// not valid JSON. No record can be produced for the attempt.
type DecodeError struct {
	Span string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding JSON in model response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ShapeError means a decoded field holds a value of the wrong shape.
type ShapeError struct {
	Field string
	Got   generic.Kind
	Want  generic.Kind
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("field %q is a %s, expected a %s", e.Field, e.Got, e.Want)
}

// ErrNoJSON is the warning attached to RawText results.
var ErrNoJSON = errors.New("no JSON structure found in the response")

// Parser turns model output into invoice data.
type Parser struct {
	mapRecord func(generic.Value) (*invoice.Record, error)
}

// NewParser creates a Parser with the standard field mapping.
func NewParser() *Parser {
	return &Parser{mapRecord: mapRecord}
}

// ParseResponse parses text with the standard Parser.
func ParseResponse(text string) (Result, error) {
	return NewParser().Parse(text)
}

// Parse locates the JSON object in text, decodes it and maps it onto the
// canonical record. The span runs from the first '{' to the last '}'.
// Only a span that fails to decode is an error; a missing span or a failed
// mapping degrade to RawText and Unmapped results.
func (p *Parser) Parse(text string) (Result, error) {
	span, ok := locateJSON(text)
	if !ok {
		data := generic.NewMap()
		data.Set(invoice.KeyRawResponse, generic.Str(text))
		return Result{Kind: RawText, Data: data, Warning: ErrNoJSON}, nil
	}

	decoded, err := generic.Parse([]byte(span))
	if err != nil {
		return Result{}, &DecodeError{Span: span, Err: err}
	}

	record, err := p.safeMap(decoded)
	if err != nil {
		return Result{Kind: Unmapped, Data: decoded, Warning: fmt.Errorf("data validation warning: %w", err)}, nil
	}
	return Result{Kind: Structured, Data: record.ToMap()}, nil
}

func (p *Parser) safeMap(decoded generic.Value) (record *invoice.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			record, err = nil, fmt.Errorf("mapping response: %v", r)
		}
	}()
	return p.mapRecord(decoded)
}

func locateJSON(text string) (string, bool) {
	start := strings.Index(text, "{")
	if start == -1 {
		return "", false
	}
	end := strings.LastIndex(text, "}")
	if end < start {
		return "", false
	}
	return text[start : end+1], true
}

// mapRecord cleans every field of a decoded response. Parties are built only
// when the response carries a non-empty value for them. Line items that are
// not objects are skipped; empty ones are kept here and dropped on ToMap.
func mapRecord(data generic.Value) (*invoice.Record, error) {
	if data.Kind() != generic.MapKind {
		return nil, &ShapeError{Field: "response", Got: data.Kind(), Want: generic.MapKind}
	}

	text := func(v generic.Value, key string) string {
		return normalize.CleanText(v.Get(key).Scalar())
	}
	amount := func(v generic.Value, key string) string {
		return normalize.CleanCurrency(v.Get(key).Scalar())
	}

	r := &invoice.Record{
		InvoiceNumber: text(data, invoice.KeyInvoiceNumber),
		InvoiceDate:   text(data, invoice.KeyInvoiceDate),
		DueDate:       text(data, invoice.KeyDueDate),
		Currency:      text(data, invoice.KeyCurrency),
		Subtotal:      amount(data, invoice.KeySubtotal),
		TaxAmount:     amount(data, invoice.KeyTaxAmount),
		TaxRate:       text(data, invoice.KeyTaxRate),
		TotalAmount:   amount(data, invoice.KeyTotalAmount),
	}

	if v := data.Get(invoice.KeyVendor); v.Truthy() {
		if v.Kind() != generic.MapKind {
			return nil, &ShapeError{Field: invoice.KeyVendor, Got: v.Kind(), Want: generic.MapKind}
		}
		r.Vendor = invoice.Vendor{
			Name:    text(v, invoice.KeyName),
			Address: text(v, invoice.KeyAddress),
			Phone:   text(v, invoice.KeyPhone),
			Email:   text(v, invoice.KeyEmail),
		}
	}

	if b := data.Get(invoice.KeyBillingTo); b.Truthy() {
		if b.Kind() != generic.MapKind {
			return nil, &ShapeError{Field: invoice.KeyBillingTo, Got: b.Kind(), Want: generic.MapKind}
		}
		r.BillingTo = invoice.Billing{
			Name:    text(b, invoice.KeyName),
			Address: text(b, invoice.KeyAddress),
		}
	}

	if items := data.Get(invoice.KeyLineItems); items.Truthy() {
		if items.Kind() != generic.ListKind {
			return nil, &ShapeError{Field: invoice.KeyLineItems, Got: items.Kind(), Want: generic.ListKind}
		}
		for _, item := range items.Items() {
			if item.Kind() != generic.MapKind {
				continue
			}
			r.LineItems = append(r.LineItems, invoice.LineItem{
				Description: text(item, invoice.KeyDescription),
				Quantity:    text(item, invoice.KeyQuantity),
				UnitPrice:   amount(item, invoice.KeyUnitPrice),
				Total:       amount(item, invoice.KeyTotal),
			})
		}
	}
	return r, nil
}
