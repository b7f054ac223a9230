package invoice

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// jsonError writes a JSON error body with CORS headers set
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// sessionErrorStatus maps session errors onto HTTP status codes.
func sessionErrorStatus(err error) int {
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrInvoiceNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrSessionBusy), errors.Is(err, ErrDuplicateInvoiceNumber):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInvoice):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleCreateSession opens a capture session. The optional "invoice" query
// parameter opens an edit session for a saved record.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.NewSession(r.URL.Query().Get("invoice"))
	if err != nil {
		slog.Error("Error creating session", "error", err)
		jsonError(w, err.Error(), sessionErrorStatus(err))
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// handleGetSession returns an open session
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.GetSession(r.PathValue("id"))
	if err != nil {
		jsonError(w, err.Error(), sessionErrorStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handleAddPage accepts one captured page image as multipart form data
func (s *Server) handleAddPage(w http.ResponseWriter, r *http.Request) {
	// 50MB to handle high-resolution phone photos
	maxFormSize := int64(50 << 20)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		if err.Error() == "http: request body too large" {
			errorMsg = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		jsonError(w, errorMsg, http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		jsonError(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer f.Close()

	if header.Size > maxFormSize {
		jsonError(w, "File is too large. Maximum size is 50MB.", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = contentTypeFromName(header.Filename)
	}

	sess, err := s.service.AddPage(r.PathValue("id"), data, contentType)
	if err != nil {
		slog.Error("Error adding page", "session", r.PathValue("id"), "error", err)
		jsonError(w, err.Error(), sessionErrorStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// contentTypeFromName guesses a MIME type from the upload's extension.
func contentTypeFromName(filename string) string {
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
	default:
		return "application/octet-stream"
	}
}

// handleExtract re-runs field extraction over a session's pages
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Extract(r.PathValue("id"))
	if err != nil {
		jsonError(w, err.Error(), sessionErrorStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handleUpdateSession applies field edits to a session
func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	var edits FieldEdits
	if err := json.NewDecoder(r.Body).Decode(&edits); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	sess, err := s.service.UpdateFields(r.PathValue("id"), edits)
	if err != nil {
		jsonError(w, err.Error(), sessionErrorStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handleSaveSession persists a session as an invoice record
func (s *Server) handleSaveSession(w http.ResponseWriter, r *http.Request) {
	inv, err := s.service.SaveSession(r.PathValue("id"))
	if err != nil {
		slog.Error("Error saving session", "session", r.PathValue("id"), "error", err)
		jsonError(w, err.Error(), sessionErrorStatus(err))
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

// handleDiscardSession abandons a session
func (s *Server) handleDiscardSession(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Discard(r.PathValue("id")); err != nil {
		jsonError(w, err.Error(), sessionErrorStatus(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListInvoices returns all saved invoices, most recent first
func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.ListInvoices())
}

// handleDeleteInvoice deletes an invoice record and its files
func (s *Server) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteInvoice(r.PathValue("id")); err != nil {
		slog.Error("Error deleting invoice", "invoice", r.PathValue("id"), "error", err)
		corsError(w, "Error deleting invoice", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetDocument returns the rendered PDF for an invoice
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetDocument(r.PathValue("id"))
	if err != nil {
		corsError(w, "Document not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleListVendors returns the vendor quick-pick list
func (s *Server) handleListVendors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Vendors())
}

// handleExportPreview returns the rows and total without sending anything
func (s *Server) handleExportPreview(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.ExportAll())
}

// handleEmailExport mails the export batch and clears the store on success
func (s *Server) handleEmailExport(w http.ResponseWriter, r *http.Request) {
	export, err := s.service.EmailExport()
	switch {
	case errors.Is(err, ErrNothingToExport):
		jsonError(w, "There are no saved invoices to email", http.StatusBadRequest)
	case errors.Is(err, ErrMailUnavailable):
		slog.Error("Export mail failed", "error", err)
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
	case err != nil:
		slog.Error("Export failed", "error", err)
		jsonError(w, err.Error(), http.StatusInternalServerError)
	default:
		writeJSON(w, http.StatusOK, export)
	}
}
