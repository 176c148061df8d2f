package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zombor/invoice-vision/internal/export"
	"github.com/zombor/invoice-vision/internal/scanning"
)

const (
	// High-resolution phone photos run large
	maxUploadSize = int64(50 << 20)
	// Model replies and exported invoices are small
	maxBodySize = int64(10 << 20)

	fileTooLarge = "File is too large. Maximum size is 50MB. Please compress or resize your image."
)

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// writeJSON writes v with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// jsonError writes {"error": message}
func jsonError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"error": message})
}

// attemptError maps service errors onto responses. A reply that could not be
// decoded is reported as unprocessable so clients can tell a failed attempt
// from a bad request.
func attemptError(w http.ResponseWriter, err error) {
	var decodeErr *scanning.DecodeError
	switch {
	case errors.As(err, &decodeErr):
		jsonError(w, "Could not parse the model response as JSON: "+decodeErr.Err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, ErrNotFound):
		jsonError(w, "Invoice not found", http.StatusNotFound)
	default:
		jsonError(w, err.Error(), http.StatusBadRequest)
	}
}

// formBool reads a checkbox-style form value
func formBool(r *http.Request, key string) bool {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "on" {
		return true
	}
	b, _ := strconv.ParseBool(v)
	return b
}

// uploadOptions reads skip_* form fields; every group is extracted by default
func uploadOptions(r *http.Request) scanning.Options {
	opts := scanning.DefaultOptions()
	opts.Vendor = !formBool(r, "skip_vendor")
	opts.Dates = !formBool(r, "skip_dates")
	opts.Totals = !formBool(r, "skip_totals")
	opts.Items = !formBool(r, "skip_items")
	return opts
}

// detectContentType falls back to the file extension when the part has no
// specific type. Browsers and multipart writers send octet-stream for unknown files.
func detectContentType(header string, filename string) string {
	contentType := strings.ToLower(strings.TrimSpace(header))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	}
	return "application/octet-stream"
}

// handleUploadInvoice handles invoice upload and extraction
func (s *Server) handleUploadInvoice(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.uploadLimit)
	if err := r.ParseMultipartForm(s.uploadLimit); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		if tooLarge := new(http.MaxBytesError); errors.As(err, &tooLarge) {
			errorMsg = fileTooLarge
		}
		jsonError(w, errorMsg, http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		errorMsg := "No file provided"
		if errors.Is(err, http.ErrMissingFile) {
			errorMsg = "No file was selected. Please choose a file to upload."
		}
		jsonError(w, errorMsg, http.StatusBadRequest)
		return
	}
	defer f.Close()

	if header.Size > s.uploadLimit {
		jsonError(w, fileTooLarge, http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	contentType := detectContentType(header.Header.Get("Content-Type"), header.Filename)

	attempt, err := s.service.ProcessInvoice(r.Context(), header.Filename, data, contentType, uploadOptions(r))
	if err != nil {
		slog.Error("Error processing invoice", "filename", header.Filename, "error", err)
		attemptError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, attempt)
}

// handleParseResponse parses a model reply sent as the request body
func (s *Server) handleParseResponse(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	attempt, err := s.service.ParseResponse(string(body))
	if err != nil {
		attemptError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, attempt)
}

// handleImportRecord reloads an exported invoice JSON document
func (s *Server) handleImportRecord(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	attempt, err := s.service.ImportRecord(body)
	if err != nil {
		attemptError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, attempt)
}

// handleListAttempts returns all attempts
func (s *Server) handleListAttempts(w http.ResponseWriter, r *http.Request) {
	attempts, err := s.service.ListAttempts()
	if err != nil {
		slog.Error("Error listing attempts", "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, attempts)
}

// handleGetAttempt returns a single attempt
func (s *Server) handleGetAttempt(w http.ResponseWriter, r *http.Request) {
	attempt, err := s.service.GetAttempt(r.PathValue("id"))
	if err != nil {
		jsonError(w, "Invoice not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

// handleGetAttemptFile returns the uploaded file of an attempt
func (s *Server) handleGetAttemptFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetAttemptFile(r.PathValue("id"))
	if err != nil {
		jsonError(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteAttempt deletes an attempt
func (s *Server) handleDeleteAttempt(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteAttempt(r.PathValue("id")); err != nil {
		if errors.Is(err, ErrNotFound) {
			jsonError(w, "Invoice not found", http.StatusNotFound)
			return
		}
		jsonError(w, "Error deleting invoice", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExportAttempt downloads an attempt as JSON, CSV or YAML
func (s *Server) handleExportAttempt(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, filename, err := s.service.Export(r.PathValue("id"), format)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		jsonError(w, "Invoice not found", http.StatusNotFound)
		return
	case errors.Is(err, ErrNotStructured), errors.Is(err, export.ErrNoLineItems):
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	default:
		slog.Error("Error exporting invoice", "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Write(data)
}

// handleGetCurrent returns the current attempt
func (s *Server) handleGetCurrent(w http.ResponseWriter, r *http.Request) {
	attempt, err := s.service.Current()
	if err != nil {
		jsonError(w, "No invoice has been processed yet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

// handleClearCurrent forgets the current attempt
func (s *Server) handleClearCurrent(w http.ResponseWriter, r *http.Request) {
	s.service.ClearCurrent()
	w.WriteHeader(http.StatusNoContent)
}
