package invoice

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BoltStore", func() {
	var store *BoltStore

	BeforeEach(func() {
		var err error
		store, err = NewBoltStore(filepath.Join(GinkgoT().TempDir(), "test.db"))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(store.Close()).To(Succeed())
	})

	Describe("Get", func() {
		When("the key is absent", func() {
			It("should report not found without an error", func() {
				_, found, err := store.Get("missing")
				Expect(err).NotTo(HaveOccurred())
				Expect(found).To(BeFalse())
			})
		})

		When("the key was set", func() {
			BeforeEach(func() {
				Expect(store.Set("invoices", `[{"id":"a"}]`)).To(Succeed())
			})

			It("should return the stored value", func() {
				value, found, err := store.Get("invoices")
				Expect(err).NotTo(HaveOccurred())
				Expect(found).To(BeTrue())
				Expect(value).To(Equal(`[{"id":"a"}]`))
			})
		})
	})

	Describe("Set", func() {
		It("should overwrite an existing value", func() {
			Expect(store.Set("invoices", "first")).To(Succeed())
			Expect(store.Set("invoices", "second")).To(Succeed())

			value, found, err := store.Get("invoices")
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(value).To(Equal("second"))
		})
	})

	Describe("Remove", func() {
		It("should delete the key", func() {
			Expect(store.Set("invoices", "value")).To(Succeed())
			Expect(store.Remove("invoices")).To(Succeed())

			_, found, err := store.Get("invoices")
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeFalse())
		})

		It("should tolerate removing an absent key", func() {
			Expect(store.Remove("missing")).To(Succeed())
		})
	})
})
