// Package tool exposes invoice parsing and validation as MCP tools.
package tool

import (
	"bytes"
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/zombor/invoice-vision/internal/generic"
	"github.com/zombor/invoice-vision/internal/invoice"
	"github.com/zombor/invoice-vision/internal/scanning"
)

// MetadataParseInvoiceResponse describes the parse_invoice_response tool.
var MetadataParseInvoiceResponse = &mcp.Tool{
	Name: "parse_invoice_response",
	Description: "Parse the text a vision model returned for an invoice image. " +
		"The first JSON object in the text is decoded and normalized into the canonical invoice " +
		"(amounts reduced to digits and a decimal point, empty vendor, billing and line items dropped). " +
		"status is structured when the invoice was mapped, raw when the text held no JSON and " +
		"unmapped when the JSON had an unexpected shape. Malformed JSON is reported as an error.",
	InputSchema: map[string]interface{}{
		"type":     "object",
		"required": []string{"content"},
		"properties": map[string]interface{}{
			"content": map[string]interface{}{
				"type":        "string",
				"description": "Full text of the model response, prose and code fences included",
			},
		},
	},
}

// InputParseInvoiceResponse is the input for the ParseInvoiceResponse tool.
type InputParseInvoiceResponse struct {
	Content string `json:"content"`
}

// OutputParseInvoiceResponse is the output for the ParseInvoiceResponse tool.
type OutputParseInvoiceResponse struct {
	// Status is one of structured, raw or unmapped.
	Status string `json:"status"`
	// Data is the normalized invoice, or the fallback data for raw and unmapped results.
	Data             any             `json:"data"`
	ValidationErrors []string        `json:"validation_errors"`
	Summary          invoice.Summary `json:"summary"`
	Complete         bool            `json:"complete"`
	Warning          string          `json:"warning,omitempty"`
}

// ParseInvoiceResponse runs the response parser over a model reply.
func ParseInvoiceResponse(ctx context.Context, _ *mcp.CallToolRequest, input InputParseInvoiceResponse) (*mcp.CallToolResult, OutputParseInvoiceResponse, error) {
	if input.Content == "" {
		return nil, OutputParseInvoiceResponse{}, fmt.Errorf("content is required")
	}

	result, err := scanning.ParseResponse(input.Content)
	if err != nil {
		return nil, OutputParseInvoiceResponse{}, err
	}

	out := OutputParseInvoiceResponse{
		Status:           string(result.Kind),
		Data:             result.Data.Interface(),
		ValidationErrors: []string{},
	}
	if result.Warning != nil {
		out.Warning = result.Warning.Error()
	}

	if record, ok := result.Record(); ok {
		record.RawResponse = input.Content
		record.ExtractionConfidence = record.CompletionRate() / 100
		out.Data = record.ToMap().Interface()
		out.ValidationErrors = record.Validate()
		out.Summary = record.Summary()
		out.Complete = record.IsComplete()
	}
	return nil, out, nil
}

// MetadataValidateInvoice describes the validate_invoice tool.
var MetadataValidateInvoice = &mcp.Tool{
	Name: "validate_invoice",
	Description: "Validate an invoice JSON document in the canonical layout (invoice_number, dates, " +
		"totals, vendor, billing_to, line_items). Returns advisory validation findings, a summary " +
		"and whether the invoice is complete. Findings never reject the invoice.",
	InputSchema: map[string]interface{}{
		"type":     "object",
		"required": []string{"invoice_json"},
		"properties": map[string]interface{}{
			"invoice_json": map[string]interface{}{
				"type":        "string",
				"description": "The invoice as a JSON object encoded in a string",
			},
		},
	},
}

// InputValidateInvoice is the input for the ValidateInvoice tool.
type InputValidateInvoice struct {
	InvoiceJSON string `json:"invoice_json"`
}

// OutputValidateInvoice is the output for the ValidateInvoice tool.
type OutputValidateInvoice struct {
	ValidationErrors []string        `json:"validation_errors"`
	Summary          invoice.Summary `json:"summary"`
	Complete         bool            `json:"complete"`
}

// ValidateInvoice checks an invoice document without storing it.
func ValidateInvoice(ctx context.Context, _ *mcp.CallToolRequest, input InputValidateInvoice) (*mcp.CallToolResult, OutputValidateInvoice, error) {
	doc := bytes.TrimSpace([]byte(input.InvoiceJSON))
	if len(doc) == 0 {
		return nil, OutputValidateInvoice{}, fmt.Errorf("invoice_json is required")
	}

	m, err := generic.Parse(doc)
	if err != nil {
		return nil, OutputValidateInvoice{}, fmt.Errorf("decoding invoice JSON: %w", err)
	}
	if m.Kind() != generic.MapKind {
		return nil, OutputValidateInvoice{}, fmt.Errorf("decoding invoice JSON: expected an object, got %s", m.Kind())
	}

	record := invoice.FromMap(m)
	return nil, OutputValidateInvoice{
		ValidationErrors: record.Validate(),
		Summary:          record.Summary(),
		Complete:         record.IsComplete(),
	}, nil
}
