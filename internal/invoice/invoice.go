// Package invoice defines the canonical invoice record produced by an
// extraction attempt, its generic-map projection and its diagnostics.
package invoice

import "strings"

// Vendor is the party that issued the invoice.
type Vendor struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
}

// IsEmpty reports whether every field is blank.
func (v Vendor) IsEmpty() bool {
	return allBlank(v.Name, v.Address, v.Phone, v.Email)
}

// Billing is the party being invoiced.
type Billing struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

func (b Billing) IsEmpty() bool {
	return allBlank(b.Name, b.Address)
}

// LineItem is one row of the invoice. Prices stay strings so locale
// formatting survives for display.
type LineItem struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Total       string `json:"total"`
}

func (l LineItem) IsEmpty() bool {
	return allBlank(l.Description, l.Quantity, l.UnitPrice, l.Total)
}

// Record is one extraction attempt's invoice. Vendor and BillingTo are
// always present; an unextracted party is simply empty.
type Record struct {
	InvoiceNumber string
	InvoiceDate   string
	DueDate       string
	Currency      string

	Subtotal    string
	TaxAmount   string
	TaxRate     string
	TotalAmount string

	Vendor    Vendor
	BillingTo Billing
	LineItems []LineItem

	// RawResponse is the model text the record was built from.
	RawResponse          string
	ExtractionConfidence float64
	// ProcessingTime is the model round trip in seconds.
	ProcessingTime float64
}

// Summary is a lightweight view for listings.
type Summary struct {
	InvoiceNumber  string  `json:"invoice_number"`
	VendorName     string  `json:"vendor_name"`
	TotalAmount    string  `json:"total_amount"`
	Currency       string  `json:"currency"`
	LineItemsCount int     `json:"line_items_count"`
	HasVendorInfo  bool    `json:"has_vendor_info"`
	HasBillingInfo bool    `json:"has_billing_info"`
	CompletionRate float64 `json:"completion_rate"`
}

func (r *Record) Summary() Summary {
	return Summary{
		InvoiceNumber:  r.InvoiceNumber,
		VendorName:     r.Vendor.Name,
		TotalAmount:    r.TotalAmount,
		Currency:       r.Currency,
		LineItemsCount: len(r.LineItems),
		HasVendorInfo:  !r.Vendor.IsEmpty(),
		HasBillingInfo: !r.BillingTo.IsEmpty(),
		CompletionRate: r.CompletionRate(),
	}
}

// CompletionRate is the percentage of tracked fields that are filled in.
//
// Tracked fields are the invoice number, invoice date, total amount and
// whether any line item exists. The four vendor fields are tracked only when
// a vendor was extracted at all, so a missing vendor shrinks the denominator
// instead of lowering the score.
func (r *Record) CompletionRate() float64 {
	fields := []string{r.InvoiceNumber, r.InvoiceDate, r.TotalAmount}
	if !r.Vendor.IsEmpty() {
		fields = append(fields, r.Vendor.Name, r.Vendor.Address, r.Vendor.Phone, r.Vendor.Email)
	}

	total := len(fields) + 1
	completed := 0
	for _, f := range fields {
		if !blank(f) {
			completed++
		}
	}
	if len(r.LineItems) > 0 {
		completed++
	}
	return float64(completed) / float64(total) * 100
}

// IsComplete is a coarse usability gate: an invoice number and total, plus
// either vendor details or at least one line item.
func (r *Record) IsComplete() bool {
	if blank(r.InvoiceNumber) || blank(r.TotalAmount) {
		return false
	}
	return !r.Vendor.IsEmpty() || len(r.LineItems) > 0
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func allBlank(values ...string) bool {
	for _, v := range values {
		if !blank(v) {
			return false
		}
	}
	return true
}
