package invoice

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

// datePattern accepts D/M/YY(YY) or YYYY/M/D with '/' or '-'. Only the
// start of the value is checked, so trailing text such as a time is allowed.
var datePattern = regexp.MustCompile(`^(?:\d{1,2}[/-]\d{1,2}[/-]\d{2,4}|\d{4}[/-]\d{1,2}[/-]\d{1,2})`)

var nonNumeric = regexp.MustCompile(`[^\d.]`)

// Validate reports problems with the record. It never blocks anything:
// callers decide whether to show, store or export a record with findings.
func (r *Record) Validate() []string {
	errs := make([]string, 0)

	if blank(r.InvoiceNumber) {
		errs = append(errs, "Invoice number is required")
	}
	if blank(r.TotalAmount) {
		errs = append(errs, "Total amount is required")
	}

	if !blank(r.InvoiceDate) && !datePattern.MatchString(r.InvoiceDate) {
		errs = append(errs, "Invoice date format may be invalid")
	}
	if !blank(r.DueDate) && !datePattern.MatchString(r.DueDate) {
		errs = append(errs, "Due date format may be invalid")
	}

	if !blank(r.TotalAmount) && !isNumber(r.TotalAmount) {
		errs = append(errs, "Total amount is not a valid number")
	}

	for i, item := range r.LineItems {
		if blank(item.Description) {
			errs = append(errs, fmt.Sprintf("Line item %d: Description is missing", i+1))
		}
		if !blank(item.UnitPrice) && !isNumber(item.UnitPrice) {
			errs = append(errs, fmt.Sprintf("Line item %d: Unit price is not a valid number", i+1))
		}
	}
	return errs
}

// isNumber drops everything but digits and points, then checks what is left parses.
func isNumber(s string) bool {
	_, err := decimal.NewFromString(nonNumeric.ReplaceAllString(s, ""))
	return err == nil
}
