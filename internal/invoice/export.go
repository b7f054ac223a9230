package invoice

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	// ErrNothingToExport means the store is empty; there is nothing to
	// send, which callers should treat as an outcome, not a failure.
	ErrNothingToExport = errors.New("no invoices to export")

	// ErrMailUnavailable means the mail collaborator is not configured or
	// cannot send. The export aborts with local records untouched.
	ErrMailUnavailable = errors.New("mail is not available")
)

// ExportRow is one spreadsheet line in an export batch.
type ExportRow struct {
	Vendor        string  `json:"vendor"`
	Date          string  `json:"date"`
	InvoiceNumber string  `json:"invoiceNumber"`
	ItemCount     int     `json:"itemCount"`
	Total         float64 `json:"total"`
}

// Export is the read-only aggregate over every stored invoice.
type Export struct {
	Rows        []ExportRow `json:"rows"`
	Total       float64     `json:"total"`
	Attachments []string    `json:"attachments"`
}

// ExportAll maps every stored record to a row, sums the totals and collects
// the rendered documents as attachments. An empty store yields an empty
// export; deciding that nothing should be sent is the caller's job.
// ExportAll never mutates the store, so repeated calls without intervening
// saves return identical results.
func (s *Service) ExportAll() Export {
	list, _ := s.store.Load()

	export := Export{Rows: make([]ExportRow, 0, len(list))}
	for _, inv := range list {
		export.Rows = append(export.Rows, ExportRow{
			Vendor:        inv.Vendor,
			Date:          formatExportDate(inv.DateISO),
			InvoiceNumber: inv.InvoiceNumber,
			ItemCount:     inv.ItemCount,
			Total:         inv.Total,
		})
		export.Total += inv.Total
		if inv.RenderedDocument != "" {
			export.Attachments = append(export.Attachments, inv.RenderedDocument)
		}
	}
	return export
}

// formatExportDate renders an ISO date as M/D/YYYY for the spreadsheet;
// free-form dates pass through unchanged.
func formatExportDate(dateISO string) string {
	t, err := time.Parse("2006-01-02", dateISO)
	if err != nil {
		return dateISO
	}
	return t.Format("1/2/2006")
}

// EmailExport renders the summary spreadsheet, mails it together with every
// invoice document, and clears the record store once the send is confirmed.
// Any failure before confirmation leaves the records untouched.
func (s *Service) EmailExport() (Export, error) {
	export := s.ExportAll()
	if len(export.Rows) == 0 {
		return export, ErrNothingToExport
	}
	if !s.mailer.Available() {
		return export, ErrMailUnavailable
	}

	sheet, err := s.renderer.RenderSummarySheet(export.Rows, export.Total)
	if err != nil {
		return export, fmt.Errorf("rendering summary sheet: %w", err)
	}

	attachments := make([]string, 0, len(export.Attachments)+1)
	for _, name := range export.Attachments {
		attachments = append(attachments, s.files.Path(name))
	}
	attachments = append(attachments, s.files.Path(sheet))

	subject := fmt.Sprintf("Daily Invoices - %s", s.timeSource.Now().Format("1/2/2006"))
	body := fmt.Sprintf(
		"Attached are %d invoice documents and a daily summary spreadsheet.\n\nTotal: $%.2f",
		len(export.Rows), export.Total,
	)
	if err := s.mailer.Send(subject, body, attachments); err != nil {
		return export, fmt.Errorf("%w: %v", ErrMailUnavailable, err)
	}

	if err := s.store.Clear(); err != nil {
		slog.Warn("Failed to clear invoices after export", "error", err)
	}
	return export, nil
}
