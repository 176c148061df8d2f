// Package extraction runs extraction attempts end to end: upload storage,
// the model call, response parsing, persistence and the current-attempt
// session, plus the HTTP API in front of them.
package extraction

import (
	"time"

	"github.com/zombor/invoice-vision/internal/generic"
	"github.com/zombor/invoice-vision/internal/invoice"
	"github.com/zombor/invoice-vision/internal/scanning"
)

// Attempt is the stored outcome of one extraction attempt.
type Attempt struct {
	ID          string        `json:"id"`
	Filename    string        `json:"filename,omitempty"`     // stored upload, empty for text and imports
	ContentType string        `json:"content_type,omitempty"` // MIME type of the upload
	Kind        scanning.Kind `json:"kind"`
	// Data is the generic invoice map, or the raw fallback for degraded results.
	Data             generic.Value    `json:"data"`
	ValidationErrors []string         `json:"validation_errors"`
	Warning          string           `json:"warning,omitempty"`
	Summary          *invoice.Summary `json:"summary,omitempty"`
	Complete         bool             `json:"complete"`
	CreatedAt        time.Time        `json:"created_at"`
}

// Record rebuilds the invoice record of a structured attempt.
func (a *Attempt) Record() (*invoice.Record, bool) {
	if a.Kind != scanning.Structured {
		return nil, false
	}
	return invoice.FromMap(a.Data), true
}

// describe fills the attempt's diagnostics from record.
func (a *Attempt) describe(record *invoice.Record) {
	a.Kind = scanning.Structured
	a.Data = record.ToMap()
	a.ValidationErrors = record.Validate()
	summary := record.Summary()
	a.Summary = &summary
	a.Complete = record.IsComplete()
}
