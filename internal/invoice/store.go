package invoice

import (
	"encoding/json"
	"log/slog"
)

const (
	invoicesKey = "invoices"
	vendorsKey  = "vendors"

	// maxVendors caps the vendor quick-pick list.
	maxVendors = 5
)

// RecordStore exclusively owns the persisted invoice list and the vendor
// recency list, both serialized as JSON arrays under fixed blob keys.
//
// Backing failures are logged and degraded to an empty result or a no-op so
// a flaky disk never takes the capture flow down. The error is still
// returned so callers can distinguish "nothing saved yet" from a failed
// read, but no caller treats it as fatal.
type RecordStore struct {
	blob BlobStore
}

// NewRecordStore creates a RecordStore on the given blob collaborator.
func NewRecordStore(blob BlobStore) *RecordStore {
	return &RecordStore{blob: blob}
}

// Load returns all persisted invoices, most-recently-saved first. On any
// backing or decoding failure the returned list is empty and usable.
func (s *RecordStore) Load() ([]Invoice, error) {
	raw, found, err := s.blob.Get(invoicesKey)
	if err != nil {
		slog.Error("Failed to load invoices", "error", err)
		return []Invoice{}, err
	}
	if !found {
		return []Invoice{}, nil
	}

	var list []Invoice
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		slog.Error("Failed to decode invoice list", "error", err)
		return []Invoice{}, err
	}
	return list, nil
}

// Save upserts by id: an existing record is replaced in place, a new one is
// prepended so the list stays most-recent-first. The whole list is written
// back as one blob, so concurrent saves are last-write-wins.
func (s *RecordStore) Save(inv Invoice) error {
	list, _ := s.Load()

	replaced := false
	for i := range list {
		if list[i].ID == inv.ID {
			list[i] = inv
			replaced = true
			break
		}
	}
	if !replaced {
		list = append([]Invoice{inv}, list...)
	}

	return s.storeInvoices(list)
}

// Delete removes the invoice with the given id. Deleting an absent id is a
// no-op.
func (s *RecordStore) Delete(id string) error {
	list, _ := s.Load()

	kept := make([]Invoice, 0, len(list))
	for _, inv := range list {
		if inv.ID != id {
			kept = append(kept, inv)
		}
	}

	return s.storeInvoices(kept)
}

// Clear removes every invoice record. Called after a confirmed export send;
// the vendor list survives.
func (s *RecordStore) Clear() error {
	if err := s.blob.Remove(invoicesKey); err != nil {
		slog.Error("Failed to clear invoices", "error", err)
		return err
	}
	return nil
}

func (s *RecordStore) storeInvoices(list []Invoice) error {
	data, err := json.Marshal(list)
	if err != nil {
		slog.Error("Failed to encode invoice list", "error", err)
		return err
	}
	if err := s.blob.Set(invoicesKey, string(data)); err != nil {
		slog.Error("Failed to store invoices", "error", err)
		return err
	}
	return nil
}

// RememberVendor records a vendor name for the quick-pick list. An empty
// name is ignored. A vendor already on the list keeps its position; there
// is deliberately no promotion on reuse.
func (s *RecordStore) RememberVendor(name string) error {
	if name == "" {
		return nil
	}

	vendors, _ := s.LoadVendors()
	for _, v := range vendors {
		if v == name {
			return nil
		}
	}

	vendors = append([]string{name}, vendors...)
	if len(vendors) > maxVendors {
		vendors = vendors[:maxVendors]
	}

	data, err := json.Marshal(vendors)
	if err != nil {
		slog.Error("Failed to encode vendor list", "error", err)
		return err
	}
	if err := s.blob.Set(vendorsKey, string(data)); err != nil {
		slog.Error("Failed to store vendors", "error", err)
		return err
	}
	return nil
}

// LoadVendors returns up to five vendor names, most recently added first.
// Degrades to an empty list like Load.
func (s *RecordStore) LoadVendors() ([]string, error) {
	raw, found, err := s.blob.Get(vendorsKey)
	if err != nil {
		slog.Error("Failed to load vendors", "error", err)
		return []string{}, err
	}
	if !found {
		return []string{}, nil
	}

	var vendors []string
	if err := json.Unmarshal([]byte(raw), &vendors); err != nil {
		slog.Error("Failed to decode vendor list", "error", err)
		return []string{}, err
	}
	return vendors, nil
}
