package invoice

// Invoice is the canonical persisted unit representing one scanned invoice
// and its user-confirmed fields. ID is immutable after the first save.
// SourceImages holds page image references in physical page order; older
// records may lack the optional fields entirely.
type Invoice struct {
	ID               string   `json:"id"`
	Vendor           string   `json:"vendor"`
	DateISO          string   `json:"dateISO"`
	Total            float64  `json:"total"`
	InvoiceNumber    string   `json:"invoiceNumber,omitempty"`
	ItemCount        int      `json:"itemCount,omitempty"`
	SourceImages     []string `json:"sourceImages,omitempty"`
	RenderedDocument string   `json:"renderedDocument,omitempty"`
}
