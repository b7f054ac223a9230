package invoice

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/scanify/scanify/internal/scanning"
)

// IDGenerator generates unique tokens for invoices and sessions
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates IDs using UnixNano timestamp
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrSessionBusy is reported when an action arrives while another one
	// is still in flight for the same session. Triggers are rejected, not
	// queued.
	ErrSessionBusy = errors.New("session is busy")
)

// Service orchestrates capture sessions, the record store and the export
// collaborators.
type Service struct {
	store    *RecordStore
	files    FileStore
	scanner  scanning.Scanner
	renderer Renderer
	mailer   Mailer

	idGenerator IDGenerator
	timeSource  TimeSource

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewService creates a new Service with default ID generator and time source
func NewService(store *RecordStore, files FileStore, scanner scanning.Scanner, renderer Renderer, mailer Mailer) *Service {
	return NewServiceWithDeps(store, files, scanner, renderer, mailer, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(store *RecordStore, files FileStore, scanner scanning.Scanner, renderer Renderer, mailer Mailer, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		store:       store,
		files:       files,
		scanner:     scanner,
		renderer:    renderer,
		mailer:      mailer,
		idGenerator: idGen,
		timeSource:  timeSrc,
		sessions:    make(map[string]*Session),
	}
}

// acquireSession looks a session up and claims its busy flag.
func (s *Service) acquireSession(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if sess.busy {
		return nil, ErrSessionBusy
	}
	sess.busy = true
	return sess, nil
}

func (s *Service) releaseSession(sess *Session) {
	s.mu.Lock()
	sess.busy = false
	s.mu.Unlock()
}

func (s *Service) dropSession(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// NewSession opens a capture session. With a non-empty invoiceID the
// session is pre-filled from the stored record and treated as an edit.
func (s *Service) NewSession(invoiceID string) (Session, error) {
	sess := &Session{
		ID:      s.idGenerator.Generate(),
		State:   StateEmpty,
		DateISO: s.timeSource.Now().Format("2006-01-02"),
	}

	if invoiceID != "" {
		inv, err := s.findInvoice(invoiceID)
		if err != nil {
			return Session{}, err
		}
		sess.InvoiceID = inv.ID
		sess.Vendor = inv.Vendor
		sess.DateISO = inv.DateISO
		sess.Total = strconv.FormatFloat(inv.Total, 'f', -1, 64)
		sess.InvoiceNumber = inv.InvoiceNumber
		if inv.ItemCount != 0 {
			sess.ItemCount = strconv.Itoa(inv.ItemCount)
		}
		sess.Pages = append([]string(nil), inv.SourceImages...)
		sess.State = StateEditable
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	return sess.snapshot(), nil
}

// GetSession returns a snapshot of an open session.
func (s *Service) GetSession(id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return sess.snapshot(), nil
}

// AddPage normalizes and stores one captured page and appends it to the
// session in capture order. The first page of a brand-new session triggers
// extraction automatically; edit sessions only extract on explicit request.
func (s *Service) AddPage(sessionID string, data []byte, contentType string) (Session, error) {
	sess, err := s.acquireSession(sessionID)
	if err != nil {
		return Session{}, err
	}
	defer s.releaseSession(sess)

	page, _, err := scanning.PreparePage(data, contentType)
	if err != nil {
		return Session{}, fmt.Errorf("preparing page: %w", err)
	}

	name := fmt.Sprintf("%s_page_%d.png", sess.ID, len(sess.Pages)+1)
	if _, err := s.files.Save(name, page); err != nil {
		return Session{}, fmt.Errorf("saving page: %w", err)
	}
	sess.addPage(name)

	if !sess.editing() && !sess.extracted {
		s.extract(sess)
	} else {
		sess.State = StateEditable
	}

	return sess.snapshot(), nil
}

// Extract re-runs extraction over all captured pages on explicit request.
func (s *Service) Extract(sessionID string) (Session, error) {
	sess, err := s.acquireSession(sessionID)
	if err != nil {
		return Session{}, err
	}
	defer s.releaseSession(sess)

	s.extract(sess)
	return sess.snapshot(), nil
}

// extract runs OCR over every page sequentially and applies the field
// extractor to the joined text. Fields the extractor found overwrite the
// session's current values; everything else is left for the user to fill.
func (s *Service) extract(sess *Session) {
	sess.State = StateExtracting

	pages := make([][]byte, 0, len(sess.Pages))
	for _, name := range sess.Pages {
		data, err := s.files.Get(name)
		if err != nil {
			slog.Warn("Failed to read page for extraction", "page", name, "error", err)
			continue
		}
		pages = append(pages, data)
	}

	fields := scanning.ExtractFields(scanning.ScanPages(s.scanner, pages))
	if fields.Vendor != "" {
		sess.Vendor = fields.Vendor
	}
	if fields.Total != "" {
		sess.Total = fields.Total
	}
	if fields.Date != "" {
		sess.DateISO = fields.Date
	}

	sess.extracted = true
	sess.State = StateEditable
}

// FieldEdits carries the user's corrections; a nil pointer leaves the
// corresponding field untouched.
type FieldEdits struct {
	Vendor        *string `json:"vendor"`
	DateISO       *string `json:"dateISO"`
	Total         *string `json:"total"`
	InvoiceNumber *string `json:"invoiceNumber"`
	ItemCount     *string `json:"itemCount"`
}

// UpdateFields applies the user's corrections to an open session.
func (s *Service) UpdateFields(sessionID string, edits FieldEdits) (Session, error) {
	sess, err := s.acquireSession(sessionID)
	if err != nil {
		return Session{}, err
	}
	defer s.releaseSession(sess)

	if edits.Vendor != nil {
		sess.Vendor = *edits.Vendor
	}
	if edits.DateISO != nil {
		sess.DateISO = *edits.DateISO
	}
	if edits.Total != nil {
		sess.Total = *edits.Total
	}
	if edits.InvoiceNumber != nil {
		sess.InvoiceNumber = *edits.InvoiceNumber
	}
	if edits.ItemCount != nil {
		sess.ItemCount = *edits.ItemCount
	}
	sess.State = StateEditable

	return sess.snapshot(), nil
}

// SaveSession validates and persists the session's record. A validation or
// duplicate-number failure leaves the session editable with nothing
// written. On success the rendered document is rebuilt, the record is
// upserted, the vendor is remembered and the session is terminal.
func (s *Service) SaveSession(sessionID string) (Invoice, error) {
	sess, err := s.acquireSession(sessionID)
	if err != nil {
		return Invoice{}, err
	}
	defer s.releaseSession(sess)

	record, err := sess.buildRecord(sess.InvoiceID)
	if err != nil {
		sess.State = StateEditable
		return Invoice{}, err
	}

	if want := normalizeInvoiceNumber(record.InvoiceNumber); want != "" {
		list, _ := s.store.Load()
		for _, other := range list {
			if other.ID != sess.InvoiceID && normalizeInvoiceNumber(other.InvoiceNumber) == want {
				sess.State = StateEditable
				return Invoice{}, ErrDuplicateInvoiceNumber
			}
		}
	}

	if record.ID == "" {
		record.ID = s.idGenerator.Generate()
	}

	pages := make([][]byte, 0, len(sess.Pages))
	for _, name := range sess.Pages {
		data, err := s.files.Get(name)
		if err != nil {
			slog.Warn("Failed to read page for document", "page", name, "error", err)
			continue
		}
		pages = append(pages, data)
	}

	doc, err := s.renderer.RenderInvoiceDocument(record, pages)
	if err != nil {
		sess.State = StateEditable
		return Invoice{}, fmt.Errorf("rendering invoice document: %w", err)
	}
	record.RenderedDocument = doc

	if err := s.store.Save(record); err != nil {
		sess.State = StateEditable
		return Invoice{}, fmt.Errorf("saving invoice: %w", err)
	}
	if err := s.store.RememberVendor(record.Vendor); err != nil {
		slog.Warn("Failed to remember vendor", "vendor", record.Vendor, "error", err)
	}

	sess.State = StateSaved
	s.dropSession(sessionID)
	return record, nil
}

// Discard abandons a session. Pages captured for a brand-new invoice are
// deleted; pages belonging to a previously saved record are kept. No
// record store interaction either way.
func (s *Service) Discard(sessionID string) error {
	sess, err := s.acquireSession(sessionID)
	if err != nil {
		return err
	}
	defer s.releaseSession(sess)

	if !sess.editing() {
		for _, name := range sess.Pages {
			if err := s.files.Delete(name); err != nil {
				slog.Warn("Failed to delete page", "page", name, "error", err)
			}
		}
	}

	sess.State = StateDiscarded
	s.dropSession(sessionID)
	return nil
}

// ListInvoices returns all saved invoices, most recently saved first. A
// degraded store read comes back as an empty list.
func (s *Service) ListInvoices() []Invoice {
	list, _ := s.store.Load()
	return list
}

// Vendors returns the vendor quick-pick list.
func (s *Service) Vendors() []string {
	vendors, _ := s.store.LoadVendors()
	return vendors
}

// DeleteInvoice removes an invoice record along with its page images and
// rendered document.
func (s *Service) DeleteInvoice(id string) error {
	inv, err := s.findInvoice(id)
	if err == nil {
		for _, name := range inv.SourceImages {
			if err := s.files.Delete(name); err != nil {
				slog.Warn("Failed to delete page image", "file", name, "error", err)
			}
		}
		if inv.RenderedDocument != "" {
			if err := s.files.Delete(inv.RenderedDocument); err != nil {
				slog.Warn("Failed to delete rendered document", "file", inv.RenderedDocument, "error", err)
			}
		}
	}
	return s.store.Delete(id)
}

// GetDocument returns the rendered PDF for an invoice.
func (s *Service) GetDocument(id string) ([]byte, string, error) {
	inv, err := s.findInvoice(id)
	if err != nil {
		return nil, "", err
	}
	if inv.RenderedDocument == "" {
		return nil, "", fmt.Errorf("invoice %s has no rendered document", id)
	}

	data, err := s.files.Get(inv.RenderedDocument)
	if err != nil {
		return nil, "", fmt.Errorf("reading rendered document: %w", err)
	}
	return data, "application/pdf", nil
}

func (s *Service) findInvoice(id string) (Invoice, error) {
	list, _ := s.store.Load()
	for _, inv := range list {
		if inv.ID == id {
			return inv, nil
		}
	}
	return Invoice{}, ErrInvoiceNotFound
}

// Close releases the scanner.
func (s *Service) Close() error {
	return s.scanner.Close()
}
