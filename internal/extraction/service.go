package extraction

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/invoice-vision/internal/export"
	"github.com/zombor/invoice-vision/internal/generic"
	"github.com/zombor/invoice-vision/internal/invoice"
	"github.com/zombor/invoice-vision/internal/scanning"
)

var (
	// ErrNoCurrentRecord is returned when the session holds no attempt.
	ErrNoCurrentRecord = errors.New("no current invoice")

	// ErrNotStructured is returned when exporting an attempt that found no invoice data.
	ErrNotStructured = errors.New("attempt holds no invoice data")

	// ErrNoFile is returned for attempts that were not made from an upload.
	ErrNoFile = errors.New("attempt has no uploaded file")
)

// IDGenerator generates unique IDs for attempts
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles extraction attempts
type Service struct {
	db          DB
	scanner     scanning.Scanner
	storage     Storage
	session     *Session
	parser      *scanning.Parser
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with UUID attempt IDs and the wall clock
func NewService(db DB, scanner scanning.Scanner, storage Storage, session *Session) *Service {
	return NewServiceWithDeps(db, scanner, storage, session, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, storage Storage, session *Session, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		session:     session,
		parser:      scanning.NewParser(),
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	spaceRuns   = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	ext = unsafeChars.ReplaceAllString(strings.TrimPrefix(ext, "."), "")
	if ext != "" {
		ext = "." + ext
	}

	base = unsafeChars.ReplaceAllString(base, "")
	base = spaceRuns.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	// Phone cameras produce long names; 50 characters is plenty
	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "invoice"
	}
	return base + ext
}

// ProcessInvoice stores an upload, asks the model to read it and parses the
// reply into a new current attempt. The previous current attempt is dropped
// as soon as processing starts. A reply whose JSON cannot be decoded fails
// the attempt: nothing is stored and a *scanning.DecodeError is returned.
func (s *Service) ProcessInvoice(ctx context.Context, filename string, data []byte, contentType string, opts scanning.Options) (*Attempt, error) {
	s.session.Clear()

	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	start := s.timeSource.Now()
	text, err := s.scanner.Scan(ctx, data, contentType, scanning.BuildPrompt(opts))
	elapsed := s.timeSource.Now().Sub(start)
	if err != nil {
		slog.Error("Failed to scan invoice",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		s.removeFile(savedPath)
		return nil, fmt.Errorf("scanning invoice: %w", err)
	}

	attempt, err := s.parse(id, text, elapsed, now)
	if err != nil {
		slog.Error("Failed to parse model response", "filename", filename, "error", err)
		s.removeFile(savedPath)
		return nil, err
	}
	attempt.Filename = savedPath
	attempt.ContentType = contentType

	if err := s.db.SaveAttempt(attempt); err != nil {
		s.removeFile(savedPath)
		return nil, fmt.Errorf("saving attempt to database: %w", err)
	}
	s.session.Replace(attempt)

	slog.Info("Processed invoice",
		"id", attempt.ID,
		"kind", attempt.Kind,
		"complete", attempt.Complete,
		"validation_errors", len(attempt.ValidationErrors),
		"processing_time", elapsed,
	)
	return attempt, nil
}

// ParseResponse runs a model reply obtained elsewhere through the same
// pipeline as ProcessInvoice, without an upload or a model call.
func (s *Service) ParseResponse(text string) (*Attempt, error) {
	s.session.Clear()

	attempt, err := s.parse(s.idGenerator.Generate(), text, 0, s.timeSource.Now())
	if err != nil {
		return nil, err
	}
	if err := s.db.SaveAttempt(attempt); err != nil {
		return nil, fmt.Errorf("saving attempt to database: %w", err)
	}
	s.session.Replace(attempt)
	return attempt, nil
}

// ImportRecord reloads a previously exported invoice JSON document as a new
// current attempt.
func (s *Service) ImportRecord(data []byte) (*Attempt, error) {
	m, err := generic.Parse(bytes.TrimSpace(data))
	if err != nil {
		return nil, fmt.Errorf("decoding invoice JSON: %w", err)
	}
	if m.Kind() != generic.MapKind {
		return nil, fmt.Errorf("decoding invoice JSON: expected an object, got %s", m.Kind())
	}

	s.session.Clear()

	attempt := &Attempt{
		ID:        s.idGenerator.Generate(),
		CreatedAt: s.timeSource.Now(),
	}
	attempt.describe(invoice.FromMap(m))

	if err := s.db.SaveAttempt(attempt); err != nil {
		return nil, fmt.Errorf("saving attempt to database: %w", err)
	}
	s.session.Replace(attempt)
	return attempt, nil
}

// parse turns a model reply into an unsaved attempt.
func (s *Service) parse(id, text string, elapsed time.Duration, now time.Time) (*Attempt, error) {
	result, err := s.parser.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parsing model response: %w", err)
	}

	attempt := &Attempt{
		ID:               id,
		Kind:             result.Kind,
		Data:             result.Data,
		ValidationErrors: []string{},
		CreatedAt:        now,
	}
	if result.Warning != nil {
		attempt.Warning = result.Warning.Error()
		slog.Warn("Model response was not fully usable", "id", id, "kind", result.Kind, "warning", result.Warning)
	}

	if record, ok := result.Record(); ok {
		record.RawResponse = text
		record.ProcessingTime = elapsed.Seconds()
		record.ExtractionConfidence = record.CompletionRate() / 100
		attempt.describe(record)
	}
	return attempt, nil
}

func (s *Service) removeFile(name string) {
	if err := s.storage.Delete(name); err != nil {
		slog.Warn("Failed to delete file", "filename", name, "error", err)
	}
}

// GetAttempt retrieves an attempt by ID
func (s *Service) GetAttempt(id string) (*Attempt, error) {
	attempt, err := s.db.GetAttempt(id)
	if err != nil {
		return nil, fmt.Errorf("getting attempt: %w", err)
	}
	return attempt, nil
}

// ListAttempts returns all attempts, newest first
func (s *Service) ListAttempts() ([]*Attempt, error) {
	attempts, err := s.db.ListAttempts()
	if err != nil {
		return nil, fmt.Errorf("listing attempts: %w", err)
	}
	slices.SortStableFunc(attempts, func(a, b *Attempt) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return attempts, nil
}

// DeleteAttempt removes an attempt and its file
func (s *Service) DeleteAttempt(id string) error {
	attempt, err := s.db.GetAttempt(id)
	if err != nil {
		return fmt.Errorf("getting attempt for deletion: %w", err)
	}

	if attempt.Filename != "" {
		// Log error but continue with database deletion
		s.removeFile(attempt.Filename)
	}

	if err := s.db.DeleteAttempt(id); err != nil {
		return fmt.Errorf("deleting attempt from database: %w", err)
	}
	s.session.ClearIf(id)
	return nil
}

// GetAttemptFile retrieves the uploaded file of an attempt
func (s *Service) GetAttemptFile(id string) ([]byte, string, error) {
	attempt, err := s.db.GetAttempt(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting attempt: %w", err)
	}
	if attempt.Filename == "" {
		return nil, "", ErrNoFile
	}

	data, err := s.storage.Get(attempt.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting attempt file: %w", err)
	}
	return data, attempt.ContentType, nil
}

// Current returns the session's current attempt
func (s *Service) Current() (*Attempt, error) {
	attempt, ok := s.session.Current()
	if !ok {
		return nil, ErrNoCurrentRecord
	}
	return attempt, nil
}

// ClearCurrent forgets the current attempt. Stored history is kept.
func (s *Service) ClearCurrent() {
	s.session.Clear()
}

// Export serializes an attempt's data and names the download. Attempts
// without invoice data cannot be exported.
func (s *Service) Export(id string, format export.Format) ([]byte, string, error) {
	attempt, err := s.db.GetAttempt(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting attempt: %w", err)
	}
	if attempt.Kind == scanning.RawText {
		return nil, "", ErrNotStructured
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, attempt.Data); err != nil {
		return nil, "", fmt.Errorf("exporting attempt: %w", err)
	}
	return buf.Bytes(), export.Filename(format, s.timeSource.Now()), nil
}
