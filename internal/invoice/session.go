package invoice

import (
	"errors"
	"strconv"
	"strings"
)

// SessionState tracks where an in-progress capture is in its lifecycle.
type SessionState string

const (
	StateEmpty      SessionState = "empty"
	StateCapturing  SessionState = "capturing"
	StateExtracting SessionState = "extracting"
	StateEditable   SessionState = "editable"
	StateSaved      SessionState = "saved"
	StateDiscarded  SessionState = "discarded"
)

var (
	// ErrInvalidInvoice is reported when the save preconditions fail: the
	// vendor must be non-empty and the total must parse as a number.
	ErrInvalidInvoice = errors.New("vendor and a numeric total are required")

	// ErrDuplicateInvoiceNumber is reported when another stored record
	// already carries the same invoice number.
	ErrDuplicateInvoiceNumber = errors.New("invoice number already used by another invoice")
)

// Session is the transient accumulation of one invoice's pages and edits
// before persistence. Field values are held exactly as entered; parsing
// happens at save time. A session with a non-empty InvoiceID edits a
// previously saved record and never auto-extracts.
type Session struct {
	ID            string       `json:"id"`
	InvoiceID     string       `json:"invoiceId,omitempty"`
	State         SessionState `json:"state"`
	Vendor        string       `json:"vendor"`
	DateISO       string       `json:"dateISO"`
	Total         string       `json:"total"`
	InvoiceNumber string       `json:"invoiceNumber"`
	ItemCount     string       `json:"itemCount"`
	Pages         []string     `json:"pages"`

	extracted bool
	busy      bool
}

// editing reports whether the session is an edit of a saved record.
func (sess *Session) editing() bool {
	return sess.InvoiceID != ""
}

// addPage appends one captured page reference in physical page order.
func (sess *Session) addPage(name string) {
	sess.Pages = append(sess.Pages, name)
	sess.State = StateCapturing
}

// snapshot returns a copy safe to hand outside the service's lock.
func (sess *Session) snapshot() Session {
	c := *sess
	c.Pages = append([]string(nil), sess.Pages...)
	return c
}

// buildRecord parses the edited fields into a persistable record. A blank
// or unparsable item count defaults to zero; an invalid vendor or total is
// a validation error.
func (sess *Session) buildRecord(id string) (Invoice, error) {
	total, err := strconv.ParseFloat(strings.TrimSpace(sess.Total), 64)
	if sess.Vendor == "" || err != nil {
		return Invoice{}, ErrInvalidInvoice
	}

	itemCount, _ := strconv.Atoi(strings.TrimSpace(sess.ItemCount))

	return Invoice{
		ID:            id,
		Vendor:        sess.Vendor,
		DateISO:       sess.DateISO,
		Total:         total,
		InvoiceNumber: sess.InvoiceNumber,
		ItemCount:     itemCount,
		SourceImages:  append([]string(nil), sess.Pages...),
	}, nil
}

// normalizeInvoiceNumber lowers and trims so the uniqueness check ignores
// case and surrounding whitespace.
func normalizeInvoiceNumber(n string) string {
	return strings.ToLower(strings.TrimSpace(n))
}
