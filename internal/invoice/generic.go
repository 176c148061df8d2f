package invoice

import "github.com/zombor/invoice-vision/internal/generic"

// Keys of the generic map projection.
const (
	KeyInvoiceNumber = "invoice_number"
	KeyInvoiceDate   = "invoice_date"
	KeyDueDate       = "due_date"
	KeyCurrency      = "currency"
	KeySubtotal      = "subtotal"
	KeyTaxAmount     = "tax_amount"
	KeyTaxRate       = "tax_rate"
	KeyTotalAmount   = "total_amount"
	KeyVendor        = "vendor"
	KeyBillingTo     = "billing_to"
	KeyLineItems     = "line_items"
	KeyMetadata      = "_metadata"

	KeyName        = "name"
	KeyAddress     = "address"
	KeyPhone       = "phone"
	KeyEmail       = "email"
	KeyDescription = "description"
	KeyQuantity    = "quantity"
	KeyUnitPrice   = "unit_price"
	KeyTotal       = "total"

	KeyRawResponse          = "raw_response"
	KeyExtractionConfidence = "extraction_confidence"
	KeyProcessingTime       = "processing_time"
)

// ToMap projects the record onto the generic map exchanged with exporters
// and the UI. Empty parties and empty line items are left out, as is the
// metadata block when there is no raw response.
func (r *Record) ToMap() generic.Value {
	m := generic.NewMap()
	m.Set(KeyInvoiceNumber, generic.Str(r.InvoiceNumber))
	m.Set(KeyInvoiceDate, generic.Str(r.InvoiceDate))
	m.Set(KeyDueDate, generic.Str(r.DueDate))
	m.Set(KeyCurrency, generic.Str(r.Currency))
	m.Set(KeySubtotal, generic.Str(r.Subtotal))
	m.Set(KeyTaxAmount, generic.Str(r.TaxAmount))
	m.Set(KeyTaxRate, generic.Str(r.TaxRate))
	m.Set(KeyTotalAmount, generic.Str(r.TotalAmount))

	if !r.Vendor.IsEmpty() {
		v := generic.NewMap()
		v.Set(KeyName, generic.Str(r.Vendor.Name))
		v.Set(KeyAddress, generic.Str(r.Vendor.Address))
		v.Set(KeyPhone, generic.Str(r.Vendor.Phone))
		v.Set(KeyEmail, generic.Str(r.Vendor.Email))
		m.Set(KeyVendor, v)
	}

	if !r.BillingTo.IsEmpty() {
		b := generic.NewMap()
		b.Set(KeyName, generic.Str(r.BillingTo.Name))
		b.Set(KeyAddress, generic.Str(r.BillingTo.Address))
		m.Set(KeyBillingTo, b)
	}

	var items []generic.Value
	for _, item := range r.LineItems {
		if item.IsEmpty() {
			continue
		}
		li := generic.NewMap()
		li.Set(KeyDescription, generic.Str(item.Description))
		li.Set(KeyQuantity, generic.Str(item.Quantity))
		li.Set(KeyUnitPrice, generic.Str(item.UnitPrice))
		li.Set(KeyTotal, generic.Str(item.Total))
		items = append(items, li)
	}
	if len(items) > 0 {
		m.Set(KeyLineItems, generic.ListOf(items...))
	}

	if r.RawResponse != "" {
		meta := generic.NewMap()
		meta.Set(KeyRawResponse, generic.Str(r.RawResponse))
		meta.Set(KeyExtractionConfidence, generic.Float(r.ExtractionConfidence))
		meta.Set(KeyProcessingTime, generic.Float(r.ProcessingTime))
		m.Set(KeyMetadata, meta)
	}
	return m
}

// FromMap rebuilds a record from a generic map, typically a reloaded export.
// Missing keys and values of the wrong type read as empty.
func FromMap(m generic.Value) *Record {
	r := &Record{
		InvoiceNumber: str(m, KeyInvoiceNumber),
		InvoiceDate:   str(m, KeyInvoiceDate),
		DueDate:       str(m, KeyDueDate),
		Currency:      str(m, KeyCurrency),
		Subtotal:      str(m, KeySubtotal),
		TaxAmount:     str(m, KeyTaxAmount),
		TaxRate:       str(m, KeyTaxRate),
		TotalAmount:   str(m, KeyTotalAmount),
	}

	if v := m.Get(KeyVendor); v.Kind() == generic.MapKind {
		r.Vendor = Vendor{
			Name:    str(v, KeyName),
			Address: str(v, KeyAddress),
			Phone:   str(v, KeyPhone),
			Email:   str(v, KeyEmail),
		}
	}

	if b := m.Get(KeyBillingTo); b.Kind() == generic.MapKind {
		r.BillingTo = Billing{
			Name:    str(b, KeyName),
			Address: str(b, KeyAddress),
		}
	}

	for _, item := range m.Get(KeyLineItems).Items() {
		if item.Kind() != generic.MapKind {
			continue
		}
		r.LineItems = append(r.LineItems, LineItem{
			Description: str(item, KeyDescription),
			Quantity:    str(item, KeyQuantity),
			UnitPrice:   str(item, KeyUnitPrice),
			Total:       str(item, KeyTotal),
		})
	}

	if meta := m.Get(KeyMetadata); meta.Kind() == generic.MapKind {
		r.RawResponse = str(meta, KeyRawResponse)
		r.ExtractionConfidence, _ = meta.Get(KeyExtractionConfidence).AsFloat()
		r.ProcessingTime, _ = meta.Get(KeyProcessingTime).AsFloat()
	}
	return r
}

func str(m generic.Value, key string) string {
	s, _ := m.Get(key).AsString()
	return s
}
