package scanning

import "context"

// Scanner sends an invoice image to a vision model and returns its raw reply.
type Scanner interface {
	// Scan runs prompt against the image and returns the model text untouched.
	Scan(ctx context.Context, imageData []byte, contentType string, prompt string) (string, error)
	// Close closes the scanner and releases resources
	Close() error
}

// Options selects which field groups the model is asked to extract.
type Options struct {
	Vendor bool
	Dates  bool
	Totals bool
	Items  bool
}

// DefaultOptions asks for every field group.
func DefaultOptions() Options {
	return Options{Vendor: true, Dates: true, Totals: true, Items: true}
}

// Sampling holds generation parameters shared by all providers.
type Sampling struct {
	Temperature float32
	MaxTokens   int
}

const (
	DefaultTemperature = 0.4
	DefaultMaxTokens   = 2000
	MinMaxTokens       = 500
	MaxMaxTokens       = 4000
)

// DefaultSampling returns the standard generation parameters.
func DefaultSampling() Sampling {
	return Sampling{Temperature: DefaultTemperature, MaxTokens: DefaultMaxTokens}
}

// normalized clamps temperature to [0,1] and max tokens to the supported range.
func (s Sampling) normalized() Sampling {
	if s.Temperature < 0 {
		s.Temperature = 0
	}
	if s.Temperature > 1 {
		s.Temperature = 1
	}
	if s.MaxTokens < MinMaxTokens {
		s.MaxTokens = MinMaxTokens
	}
	if s.MaxTokens > MaxMaxTokens {
		s.MaxTokens = MaxMaxTokens
	}
	return s
}
