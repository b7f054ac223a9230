package invoice

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Export", func() {
	var (
		blob     *mockBlobStore
		store    *RecordStore
		files    *mockFileStore
		renderer *mockRenderer
		mailer   *mockMailer
		service  *Service
	)

	BeforeEach(func() {
		blob = newMockBlobStore()
		store = NewRecordStore(blob)
		files = newMockFileStore()
		renderer = &mockRenderer{}
		mailer = &mockMailer{available: true}
		service = NewServiceWithDeps(
			store, files, &mockScanner{}, renderer, mailer,
			&seqIDGenerator{},
			&fixedTimeSource{t: time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)},
		)
	})

	seedInvoices := func() {
		// Saved oldest first; the store keeps the list most-recent-first
		Expect(store.Save(Invoice{
			ID: "inv-1", Vendor: "Acme Corp", DateISO: "2024-03-10",
			Total: 10.50, InvoiceNumber: "INV-1", ItemCount: 2,
			RenderedDocument: "doc_inv-1.pdf",
		})).To(Succeed())
		Expect(store.Save(Invoice{
			ID: "inv-2", Vendor: "Fresh Mart", DateISO: "2024-03-11",
			Total: 4.25, RenderedDocument: "doc_inv-2.pdf",
		})).To(Succeed())
	}

	Describe("ExportAll", func() {
		When("the store has invoices", func() {
			var export Export

			BeforeEach(func() {
				seedInvoices()
				export = service.ExportAll()
			})

			It("should map one row per record, most recent first", func() {
				Expect(export.Rows).To(Equal([]ExportRow{
					{Vendor: "Fresh Mart", Date: "3/11/2024", Total: 4.25},
					{Vendor: "Acme Corp", Date: "3/10/2024", InvoiceNumber: "INV-1", ItemCount: 2, Total: 10.50},
				}))
			})

			It("should sum the totals", func() {
				Expect(export.Total).To(Equal(14.75))
			})

			It("should collect the rendered documents", func() {
				Expect(export.Attachments).To(Equal([]string{"doc_inv-2.pdf", "doc_inv-1.pdf"}))
			})

			It("should be repeatable without changing the store", func() {
				Expect(service.ExportAll()).To(Equal(export))
				list, err := store.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(list).To(HaveLen(2))
			})
		})

		When("a record has a free-form date", func() {
			BeforeEach(func() {
				Expect(store.Save(Invoice{ID: "inv-1", Vendor: "Acme Corp", DateISO: "12/03/2024", Total: 1})).To(Succeed())
			})

			It("should pass the date through unchanged", func() {
				Expect(service.ExportAll().Rows[0].Date).To(Equal("12/03/2024"))
			})
		})

		When("the store is empty", func() {
			It("should return an empty export", func() {
				export := service.ExportAll()
				Expect(export.Rows).To(BeEmpty())
				Expect(export.Total).To(BeZero())
			})
		})
	})

	Describe("EmailExport", func() {
		When("there are no invoices", func() {
			It("should return ErrNothingToExport without sending", func() {
				_, err := service.EmailExport()
				Expect(err).To(MatchError(ErrNothingToExport))
				Expect(mailer.sends).To(BeZero())
			})
		})

		When("mail is not configured", func() {
			BeforeEach(func() {
				seedInvoices()
				mailer.available = false
			})

			It("should return ErrMailUnavailable", func() {
				_, err := service.EmailExport()
				Expect(err).To(MatchError(ErrMailUnavailable))
			})

			It("should keep the records", func() {
				service.EmailExport()
				list, err := store.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(list).To(HaveLen(2))
			})
		})

		When("the send fails", func() {
			BeforeEach(func() {
				seedInvoices()
				mailer.sendErr = errors.New("smtp down")
			})

			It("should wrap ErrMailUnavailable", func() {
				_, err := service.EmailExport()
				Expect(err).To(MatchError(ErrMailUnavailable))
			})

			It("should keep the records", func() {
				service.EmailExport()
				list, err := store.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(list).To(HaveLen(2))
			})
		})

		When("the summary sheet cannot be rendered", func() {
			BeforeEach(func() {
				seedInvoices()
				renderer.sheetErr = errors.New("disk full")
			})

			It("should fail before sending", func() {
				_, err := service.EmailExport()
				Expect(err).To(HaveOccurred())
				Expect(mailer.sends).To(BeZero())
			})
		})

		When("the send succeeds", func() {
			var (
				export Export
				err    error
			)

			BeforeEach(func() {
				seedInvoices()
				Expect(store.RememberVendor("Acme Corp")).To(Succeed())
				export, err = service.EmailExport()
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(export.Rows).To(HaveLen(2))
			})

			It("should render the summary sheet from the rows", func() {
				Expect(renderer.sheetRows).To(Equal(export.Rows))
				Expect(renderer.sheetTotal).To(Equal(14.75))
			})

			It("should attach every document plus the sheet", func() {
				Expect(mailer.attachments).To(Equal([]string{
					"/store/doc_inv-2.pdf",
					"/store/doc_inv-1.pdf",
					"/store/summary.xlsx",
				}))
			})

			It("should date the subject line", func() {
				Expect(mailer.subject).To(Equal("Daily Invoices - 3/12/2024"))
			})

			It("should clear the invoices", func() {
				list, loadErr := store.Load()
				Expect(loadErr).NotTo(HaveOccurred())
				Expect(list).To(BeEmpty())
			})

			It("should keep the vendor list", func() {
				vendors, loadErr := store.LoadVendors()
				Expect(loadErr).NotTo(HaveOccurred())
				Expect(vendors).To(Equal([]string{"Acme Corp"}))
			})
		})
	})
})
