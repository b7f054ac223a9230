package invoice

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Server", func() {
	var (
		blob    *mockBlobStore
		store   *RecordStore
		files   *mockFileStore
		scanner *mockScanner
		mailer  *mockMailer
		server  *Server
	)

	BeforeEach(func() {
		blob = newMockBlobStore()
		store = NewRecordStore(blob)
		files = newMockFileStore()
		scanner = &mockScanner{}
		mailer = &mockMailer{available: true}
		service := NewServiceWithDeps(
			store, files, scanner, &mockRenderer{}, mailer,
			&seqIDGenerator{},
			&fixedTimeSource{t: time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)},
		)
		server = NewServer(service, BasicAuth{})
	})

	do := func(req *http.Request) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)
		return rec
	}

	createSession := func() Session {
		rec := do(httptest.NewRequest("POST", "/api/sessions", nil))
		Expect(rec.Code).To(Equal(http.StatusCreated))

		var sess Session
		Expect(json.Unmarshal(rec.Body.Bytes(), &sess)).To(Succeed())
		return sess
	}

	uploadPage := func(sessionID string) *httptest.ResponseRecorder {
		var body bytes.Buffer
		writer := multipart.NewWriter(&body)
		part, err := writer.CreateFormFile("file", "page.png")
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(pagePNG())
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		req := httptest.NewRequest("POST", fmt.Sprintf("/api/sessions/%s/pages", sessionID), &body)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		return do(req)
	}

	updateSession := func(sessionID string, edits string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("PUT", "/api/sessions/"+sessionID, strings.NewReader(edits))
		req.Header.Set("Content-Type", "application/json")
		return do(req)
	}

	Describe("POST /api/sessions", func() {
		It("should create an empty session", func() {
			sess := createSession()
			Expect(sess.ID).NotTo(BeEmpty())
			Expect(sess.State).To(Equal(StateEmpty))
		})

		It("should return 404 when the invoice to edit does not exist", func() {
			rec := do(httptest.NewRequest("POST", "/api/sessions?invoice=missing", nil))
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("POST /api/sessions/{id}/pages", func() {
		BeforeEach(func() {
			scanner.text = "Fresh Mart\nTOTAL: 45.67"
		})

		It("should accept a page and return the extracted session", func() {
			sess := createSession()
			rec := uploadPage(sess.ID)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var updated Session
			Expect(json.Unmarshal(rec.Body.Bytes(), &updated)).To(Succeed())
			Expect(updated.Pages).To(HaveLen(1))
			Expect(updated.Vendor).To(Equal("Fresh Mart"))
			Expect(updated.State).To(Equal(StateEditable))
		})

		It("should return 400 when no file is provided", func() {
			sess := createSession()
			var body bytes.Buffer
			writer := multipart.NewWriter(&body)
			Expect(writer.Close()).To(Succeed())

			req := httptest.NewRequest("POST", fmt.Sprintf("/api/sessions/%s/pages", sess.ID), &body)
			req.Header.Set("Content-Type", writer.FormDataContentType())
			Expect(do(req).Code).To(Equal(http.StatusBadRequest))
		})

		It("should return 404 for an unknown session", func() {
			Expect(uploadPage("missing").Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("PUT /api/sessions/{id}", func() {
		It("should apply field edits", func() {
			sess := createSession()
			rec := updateSession(sess.ID, `{"vendor":"Acme Corp","total":"10.00"}`)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var updated Session
			Expect(json.Unmarshal(rec.Body.Bytes(), &updated)).To(Succeed())
			Expect(updated.Vendor).To(Equal("Acme Corp"))
			Expect(updated.Total).To(Equal("10.00"))
		})

		It("should return 400 for a malformed body", func() {
			sess := createSession()
			Expect(updateSession(sess.ID, "{not json").Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("POST /api/sessions/{id}/save", func() {
		It("should persist a valid session", func() {
			sess := createSession()
			updateSession(sess.ID, `{"vendor":"Acme Corp","total":"10.00"}`)

			rec := do(httptest.NewRequest("POST", fmt.Sprintf("/api/sessions/%s/save", sess.ID), nil))
			Expect(rec.Code).To(Equal(http.StatusCreated))

			var inv Invoice
			Expect(json.Unmarshal(rec.Body.Bytes(), &inv)).To(Succeed())
			Expect(inv.Vendor).To(Equal("Acme Corp"))
			Expect(inv.Total).To(Equal(10.00))
		})

		It("should return 422 when validation fails", func() {
			sess := createSession()
			rec := do(httptest.NewRequest("POST", fmt.Sprintf("/api/sessions/%s/save", sess.ID), nil))
			Expect(rec.Code).To(Equal(http.StatusUnprocessableEntity))
		})

		It("should return 409 for a duplicate invoice number", func() {
			Expect(store.Save(Invoice{ID: "other", Vendor: "Other Co", Total: 5, InvoiceNumber: "INV-77"})).To(Succeed())

			sess := createSession()
			updateSession(sess.ID, `{"vendor":"Acme Corp","total":"10.00","invoiceNumber":"inv-77"}`)

			rec := do(httptest.NewRequest("POST", fmt.Sprintf("/api/sessions/%s/save", sess.ID), nil))
			Expect(rec.Code).To(Equal(http.StatusConflict))
		})
	})

	Describe("DELETE /api/sessions/{id}", func() {
		It("should discard the session", func() {
			sess := createSession()
			rec := do(httptest.NewRequest("DELETE", "/api/sessions/"+sess.ID, nil))
			Expect(rec.Code).To(Equal(http.StatusNoContent))

			rec = do(httptest.NewRequest("GET", "/api/sessions/"+sess.ID, nil))
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("GET /api/invoices", func() {
		It("should list saved invoices most recent first", func() {
			Expect(store.Save(Invoice{ID: "a", Vendor: "Acme Corp", Total: 1})).To(Succeed())
			Expect(store.Save(Invoice{ID: "b", Vendor: "Fresh Mart", Total: 2})).To(Succeed())

			rec := do(httptest.NewRequest("GET", "/api/invoices", nil))
			Expect(rec.Code).To(Equal(http.StatusOK))

			var list []Invoice
			Expect(json.Unmarshal(rec.Body.Bytes(), &list)).To(Succeed())
			Expect(list).To(HaveLen(2))
			Expect(list[0].ID).To(Equal("b"))
		})
	})

	Describe("DELETE /api/invoices/{id}", func() {
		It("should delete the record", func() {
			Expect(store.Save(Invoice{ID: "a", Vendor: "Acme Corp", Total: 1})).To(Succeed())

			rec := do(httptest.NewRequest("DELETE", "/api/invoices/a", nil))
			Expect(rec.Code).To(Equal(http.StatusNoContent))

			list, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(BeEmpty())
		})
	})

	Describe("GET /api/invoices/{id}/document", func() {
		It("should serve the rendered PDF", func() {
			Expect(store.Save(Invoice{ID: "a", Vendor: "Acme Corp", Total: 1, RenderedDocument: "doc_a.pdf"})).To(Succeed())
			files.files["doc_a.pdf"] = []byte("%PDF-1.4 fake")

			rec := do(httptest.NewRequest("GET", "/api/invoices/a/document", nil))
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal("application/pdf"))
			Expect(rec.Body.String()).To(Equal("%PDF-1.4 fake"))
		})

		It("should return 404 for an unknown invoice", func() {
			rec := do(httptest.NewRequest("GET", "/api/invoices/missing/document", nil))
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("GET /api/vendors", func() {
		It("should return the quick-pick list", func() {
			Expect(store.RememberVendor("Acme Corp")).To(Succeed())

			rec := do(httptest.NewRequest("GET", "/api/vendors", nil))
			Expect(rec.Code).To(Equal(http.StatusOK))

			var vendors []string
			Expect(json.Unmarshal(rec.Body.Bytes(), &vendors)).To(Succeed())
			Expect(vendors).To(Equal([]string{"Acme Corp"}))
		})
	})

	Describe("GET /api/export", func() {
		It("should preview the export without sending mail", func() {
			Expect(store.Save(Invoice{ID: "a", Vendor: "Acme Corp", DateISO: "2024-03-10", Total: 10.50})).To(Succeed())

			rec := do(httptest.NewRequest("GET", "/api/export", nil))
			Expect(rec.Code).To(Equal(http.StatusOK))

			var export Export
			Expect(json.Unmarshal(rec.Body.Bytes(), &export)).To(Succeed())
			Expect(export.Rows).To(HaveLen(1))
			Expect(export.Total).To(Equal(10.50))
			Expect(mailer.sends).To(BeZero())
		})
	})

	Describe("POST /api/export", func() {
		It("should return 400 when there is nothing to export", func() {
			rec := do(httptest.NewRequest("POST", "/api/export", nil))
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("should return 503 when mail is not configured", func() {
			Expect(store.Save(Invoice{ID: "a", Vendor: "Acme Corp", Total: 1})).To(Succeed())
			mailer.available = false

			rec := do(httptest.NewRequest("POST", "/api/export", nil))
			Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
		})

		It("should mail the batch and clear the store", func() {
			Expect(store.Save(Invoice{ID: "a", Vendor: "Acme Corp", Total: 1})).To(Succeed())

			rec := do(httptest.NewRequest("POST", "/api/export", nil))
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(mailer.sends).To(Equal(1))

			list, err := store.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(BeEmpty())
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			service := NewServiceWithDeps(
				store, files, scanner, &mockRenderer{}, mailer,
				&seqIDGenerator{},
				&fixedTimeSource{t: time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)},
			)
			server = NewServer(service, BasicAuth{Username: "user", Password: "secret"})
		})

		It("should reject requests without credentials", func() {
			rec := do(httptest.NewRequest("GET", "/api/invoices", nil))
			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
			Expect(rec.Header().Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
		})

		It("should reject bad credentials", func() {
			req := httptest.NewRequest("GET", "/api/invoices", nil)
			req.SetBasicAuth("user", "wrong")
			Expect(do(req).Code).To(Equal(http.StatusUnauthorized))
		})

		It("should accept valid credentials", func() {
			req := httptest.NewRequest("GET", "/api/invoices", nil)
			req.SetBasicAuth("user", "secret")
			Expect(do(req).Code).To(Equal(http.StatusOK))
		})
	})
})
