package scanning

import (
	"fmt"
	"strings"
)

const invoiceTemplate = `{
    "invoice_number": "",
    "invoice_date": "",
    "due_date": "",
    "vendor": {
        "name": "",
        "address": "",
        "phone": "",
        "email": ""
    },
    "billing_to": {
        "name": "",
        "address": ""
    },
    "line_items": [
        {
            "description": "",
            "quantity": "",
            "unit_price": "",
            "total": ""
        }
    ],
    "subtotal": "",
    "tax_amount": "",
    "tax_rate": "",
    "total_amount": "",
    "currency": ""
}`

const promptFormat = `Please analyze this invoice image and extract the following information in a structured JSON format:

Extract: %s

Return the data in this exact JSON structure:
%s

Important instructions:
- If any field is not found, leave it as an empty string
- Be precise with numerical values and maintain proper formatting
- Only extract the fields that were specifically requested above
- Return only the JSON object, no additional text or formatting
- Ensure all currency amounts are in decimal format (e.g., "123.45")
- For dates, use a consistent format (e.g., "MM/DD/YYYY" or "YYYY-MM-DD")`

// BuildPrompt renders the extraction prompt for the selected field groups.
// The JSON template always lists every key so replies keep one shape.
func BuildPrompt(opts Options) string {
	var groups []string
	if opts.Vendor {
		groups = append(groups, "vendor/supplier information")
	}
	if opts.Dates {
		groups = append(groups, "invoice date and due date")
	}
	if opts.Totals {
		groups = append(groups, "subtotal, tax, and total amounts")
	}
	if opts.Items {
		groups = append(groups, "line items with descriptions, quantities, and prices")
	}
	return fmt.Sprintf(promptFormat, strings.Join(groups, ", "), invoiceTemplate)
}
