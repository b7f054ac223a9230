package invoice

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

// Renderer produces the export artifacts: one PDF per invoice assembled
// from its captured pages, and one spreadsheet summarizing an export batch.
type Renderer interface {
	// RenderInvoiceDocument assembles the page images into a single PDF
	// and returns its file reference. With no pages it renders a typed
	// summary of the confirmed fields instead.
	RenderInvoiceDocument(inv Invoice, pages [][]byte) (string, error)

	// RenderSummarySheet writes the export rows and grand total to a
	// spreadsheet and returns its file reference.
	RenderSummarySheet(rows []ExportRow, total float64) (string, error)
}

// DocumentRenderer implements Renderer with gofpdf and excelize, writing
// artifacts through the file store.
type DocumentRenderer struct {
	files FileStore
}

// NewDocumentRenderer creates a DocumentRenderer on the given file store.
func NewDocumentRenderer(files FileStore) *DocumentRenderer {
	return &DocumentRenderer{files: files}
}

// RenderInvoiceDocument builds an A4 PDF with one captured page image per
// PDF page, in capture order.
func (r *DocumentRenderer) RenderInvoiceDocument(inv Invoice, pages [][]byte) (string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")

	if len(pages) == 0 {
		r.renderFieldSummary(pdf, inv)
	} else {
		pageWidth, _ := pdf.GetPageSize()
		for i, page := range pages {
			imageName := fmt.Sprintf("page-%d", i+1)
			opts := gofpdf.ImageOptions{ImageType: "PNG"}
			pdf.RegisterImageOptionsReader(imageName, opts, bytes.NewReader(page))
			pdf.AddPage()
			pdf.ImageOptions(imageName, 10, 10, pageWidth-20, 0, false, opts, 0, "")
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return "", fmt.Errorf("rendering invoice document: %w", err)
	}

	name := documentName(inv)
	if _, err := r.files.Save(name, buf.Bytes()); err != nil {
		return "", fmt.Errorf("saving invoice document: %w", err)
	}
	return name, nil
}

// renderFieldSummary types the confirmed fields onto a single page for
// invoices saved without a photo.
func (r *DocumentRenderer) renderFieldSummary(pdf *gofpdf.Fpdf, inv Invoice) {
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Invoice Summary")
	pdf.Ln(14)

	invoiceNumber := inv.InvoiceNumber
	if invoiceNumber == "" {
		invoiceNumber = "-"
	}

	pdf.SetFont("Helvetica", "", 12)
	for _, line := range []string{
		fmt.Sprintf("Vendor: %s", inv.Vendor),
		fmt.Sprintf("Date: %s", inv.DateISO),
		fmt.Sprintf("Invoice No.: %s", invoiceNumber),
		fmt.Sprintf("Items: %d", inv.ItemCount),
		fmt.Sprintf("Total: $%.2f", inv.Total),
	} {
		pdf.Cell(0, 8, line)
		pdf.Ln(8)
	}
}

// documentName keys the artifact on vendor, date and id so a mailbox full
// of attachments stays readable and re-saves overwrite the old artifact.
func documentName(inv Invoice) string {
	vendor := strings.Join(strings.Fields(inv.Vendor), "_")
	if vendor == "" {
		vendor = "Invoice"
	}
	date := strings.NewReplacer(":", "-", " ", "-").Replace(inv.DateISO)
	return fmt.Sprintf("%s_%s_%s.pdf", vendor, date, inv.ID)
}

// RenderSummarySheet writes one row per invoice plus a grand total row.
func (r *DocumentRenderer) RenderSummarySheet(rows []ExportRow, total float64) (string, error) {
	sheet := excelize.NewFile()
	defer sheet.Close()

	const sheetName = "Invoices"
	if err := sheet.SetSheetName("Sheet1", sheetName); err != nil {
		return "", fmt.Errorf("naming sheet: %w", err)
	}

	header := []any{"Vendor", "Date", "InvoiceNo", "Items", "Total"}
	if err := sheet.SetSheetRow(sheetName, "A1", &header); err != nil {
		return "", fmt.Errorf("writing sheet header: %w", err)
	}

	for i, row := range rows {
		values := []any{row.Vendor, row.Date, row.InvoiceNumber, row.ItemCount, row.Total}
		cell := fmt.Sprintf("A%d", i+2)
		if err := sheet.SetSheetRow(sheetName, cell, &values); err != nil {
			return "", fmt.Errorf("writing sheet row: %w", err)
		}
	}

	totalRow := []any{"Total", "", "", "", total}
	cell := fmt.Sprintf("A%d", len(rows)+2)
	if err := sheet.SetSheetRow(sheetName, cell, &totalRow); err != nil {
		return "", fmt.Errorf("writing total row: %w", err)
	}

	buf, err := sheet.WriteToBuffer()
	if err != nil {
		return "", fmt.Errorf("rendering summary sheet: %w", err)
	}

	name := fmt.Sprintf("daily_summary_%d.xlsx", time.Now().UnixNano())
	if _, err := r.files.Save(name, buf.Bytes()); err != nil {
		return "", fmt.Errorf("saving summary sheet: %w", err)
	}
	return name, nil
}
