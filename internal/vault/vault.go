// Package vault owns the persisted collection of named 2FA secrets.
//
// The on-disk format is a UTF-8 JSON array of {"name", "key"} objects,
// in insertion order. The same format is used for export and import,
// so a vault file round-trips through both. Secrets are stored in
// cleartext; encryption at rest is out of scope.
package vault

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/keyfob/keyfob/internal/b32"
)

var (
	// ErrInvalidName is returned when a record's display label is empty.
	ErrInvalidName = errors.New("name must not be empty")

	// ErrInvalidSecret is returned when a record's secret is empty or
	// does not decode.
	ErrInvalidSecret = errors.New("invalid secret format")

	// ErrStorageUnavailable is returned when the backing file cannot be
	// read or written (permissions, missing directory, disk errors).
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrCorruptStorage is returned when the backing file exists but is
	// not a JSON array of {name, key} objects. The store never treats
	// unreadable data as an empty collection.
	ErrCorruptStorage = errors.New("corrupt storage")

	// ErrImportValidation is returned by ReplaceAll when any incoming
	// record fails validation; the store is left unchanged.
	ErrImportValidation = errors.New("import validation failed")

	// ErrIndexOutOfRange is returned by Remove for a bad position.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrNotFound is returned by RemoveByID for an unknown record ID.
	ErrNotFound = errors.New("record not found")

	// ErrEmpty is returned by Clear when there is nothing to clear.
	ErrEmpty = errors.New("store is empty")
)

// Record is one named secret. ID is an opaque identifier assigned when
// the record enters the store; it is never persisted, the wire format
// is exactly {name, key}.
type Record struct {
	ID     string `json:"-"`
	Name   string `json:"name"`
	Secret string `json:"key"`
}

// Store is the ordered collection of records backed by a JSON file.
// Every successful mutation is persisted before it becomes visible.
type Store struct {
	mu      sync.Mutex
	path    string
	records []Record
}

// Open loads the store at path. A missing file yields an empty store;
// an unreadable file yields ErrStorageUnavailable; a file that does
// not parse as the expected schema yields ErrCorruptStorage.
func Open(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	records, err := DecodeRecords(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptStorage, err)
	}
	for i := range records {
		records[i].ID = uuid.New().String()
	}
	s.records = records
	return s, nil
}

// DecodeRecords parses data as the vault schema: a JSON array whose
// elements are objects carrying string "name" and "key" fields. Any
// deviation fails the whole parse.
func DecodeRecords(data []byte) ([]Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errors.New("top-level value is not a JSON array")
	}

	var elems []map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return nil, fmt.Errorf("expected a JSON array of objects: %w", err)
	}

	records := make([]Record, 0, len(elems))
	for i, elem := range elems {
		var rec Record
		for field, dst := range map[string]*string{"name": &rec.Name, "key": &rec.Secret} {
			raw, ok := elem[field]
			if !ok {
				return nil, fmt.Errorf("record %d: missing field %q", i, field)
			}
			if err := json.Unmarshal(raw, dst); err != nil {
				return nil, fmt.Errorf("record %d: field %q is not a string: %w", i, field, err)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// Path returns the backing file location.
func (s *Store) Path() string { return s.path }

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Records returns a copy of the collection in insertion order.
func (s *Store) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Get returns the record at position i.
func (s *Store) Get(i int) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.records) {
		return Record{}, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(s.records))
	}
	return s.records[i], nil
}

// Add validates and appends a record, persisting the grown collection.
// On validation failure nothing changes.
func (s *Store) Add(name, secret string) (Record, error) {
	if err := validate(name, secret); err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := Record{ID: uuid.New().String(), Name: name, Secret: secret}
	next := append(append([]Record{}, s.records...), rec)
	if err := s.persist(next); err != nil {
		return Record{}, err
	}
	s.records = next
	return rec, nil
}

// Remove deletes the record at position i and persists the shortened
// collection. i must be in [0, Len()).
func (s *Store) Remove(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.records) {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(s.records))
	}
	next := append(append([]Record{}, s.records[:i]...), s.records[i+1:]...)
	if err := s.persist(next); err != nil {
		return err
	}
	s.records = next
	return nil
}

// RemoveByID deletes the record with the given opaque identifier.
// Unlike positional removal it cannot be retargeted by a concurrent
// reordering of the list.
func (s *Store) RemoveByID(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, rec := range s.records {
		if rec.ID == id {
			next := append(append([]Record{}, s.records[:i]...), s.records[i+1:]...)
			if err := s.persist(next); err != nil {
				return err
			}
			s.records = next
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// ReplaceAll swaps the whole collection for the incoming records, used
// for import. Every record is validated up front; if any fails, the
// operation aborts with ErrImportValidation and the store is unchanged.
func (s *Store) ReplaceAll(records []Record) error {
	for i, rec := range records {
		if err := validate(rec.Name, rec.Secret); err != nil {
			return fmt.Errorf("%w: record %d (%q): %w", ErrImportValidation, i, rec.Name, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]Record, len(records))
	copy(next, records)
	for i := range next {
		next[i].ID = uuid.New().String()
	}
	if err := s.persist(next); err != nil {
		return err
	}
	s.records = next
	return nil
}

// Clear empties the store and persists the empty collection. Clearing
// an already empty store reports ErrEmpty.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.records) == 0 {
		return ErrEmpty
	}
	next := []Record{}
	if err := s.persist(next); err != nil {
		return err
	}
	s.records = next
	return nil
}

// Export writes the collection to w in the wire format, indented for
// readability (the indentation is cosmetic, not contractual).
func (s *Store) Export(w io.Writer) error {
	s.mu.Lock()
	records := s.records
	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// validate applies the add/import rules: non-blank name, non-empty
// decodable secret. The codec itself accepts the empty string, but an
// empty secret is rejected here at the store boundary.
func validate(name, secret string) error {
	if strings.TrimSpace(name) == "" {
		return ErrInvalidName
	}
	if strings.TrimSpace(secret) == "" {
		return ErrInvalidSecret
	}
	if _, err := b32.Decode(secret); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSecret, err)
	}
	return nil
}

// persist writes records to the backing file as one atomic operation:
// the content goes to a temp file in the same directory, then renames
// over the target. A crash mid-write never corrupts existing data.
func (s *Store) persist(records []Record) error {
	if records == nil {
		records = []Record{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp) // Best effort cleanup
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}
