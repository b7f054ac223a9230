package scanning

import (
	"log/slog"
	"strings"
	"time"
)

// scanTimeout bounds a single OCR call. A page that exceeds it is treated
// as unreadable; the remaining pages of a capture are still scanned.
const scanTimeout = 25 * time.Second

// Scanner defines the interface for turning one captured page into text.
type Scanner interface {
	// ScanPage runs OCR on a single page image and returns its raw text.
	// An empty string with a nil error means the service found no text.
	ScanPage(image []byte, contentType string) (string, error)
	// Close releases any resources held by the scanner.
	Close() error
}

// ScanPages runs the scanner over each page in capture order and joins the
// page texts with PageBreak. A page that fails contributes nothing.
func ScanPages(s Scanner, pages [][]byte) string {
	texts := make([]string, 0, len(pages))
	for i, page := range pages {
		text, err := s.ScanPage(page, "image/png")
		if err != nil {
			slog.Warn("Failed to scan page", "page", i+1, "error", err)
			continue
		}
		if text != "" {
			texts = append(texts, text)
		}
	}
	return strings.Join(texts, PageBreak)
}
