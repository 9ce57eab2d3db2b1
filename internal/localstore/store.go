// Package localstore persists the locally simulated task history and credit
// balance of the standalone variant. Both live as JSON under fixed keys with
// no schema versioning; corrupt data reads as the empty/default value.
package localstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

// Fixed storage keys, one file per key.
const (
	historyKey = "voxclone_tasks"
	balanceKey = "voxclone_balance"
)

const (
	// DefaultBalance is the credit balance granted before any persisted
	// value exists.
	DefaultBalance = 10.00

	filePermissions = 0o600
	dirPermissions  = 0o750
)

// Static errors.
var (
	ErrStateDirEmpty       = errors.New("state directory cannot be empty")
	ErrInsufficientBalance = errors.New("余额不足")
	ErrDeductNonPositive   = errors.New("deduction amount must be positive")
)

// Record is one entry of the simulated task history. Field names mirror the
// persisted payloads of the storage it replaces.
type Record struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Script       string `json:"script"`
	AudioPath    string `json:"audioUrl,omitempty"`
	CreatedAt    int64  `json:"createdAt"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// Store is a file-backed history and balance store. Multiple call sites may
// read and write without coordination; the last writer wins.
type Store struct {
	dir string
}

// New creates a local store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, ErrStateDirEmpty
	}

	err := os.MkdirAll(dir, dirPermissions)
	if err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	return &Store{dir: dir}, nil
}

// History returns the persisted task history, newest first. Absent or
// corrupt data reads as empty.
func (s *Store) History() []Record {
	data, err := os.ReadFile(s.keyPath(historyKey))
	if err != nil {
		return nil
	}

	var records []Record

	err = json.Unmarshal(data, &records)
	if err != nil {
		return nil
	}

	return records
}

// SaveHistory replaces the persisted history.
func (s *Store) SaveHistory(records []Record) error {
	if records == nil {
		records = []Record{}
	}

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	err = os.WriteFile(s.keyPath(historyKey), data, filePermissions)
	if err != nil {
		return fmt.Errorf("failed to persist history: %w", err)
	}

	return nil
}

// Append prepends a record, keeping the history newest first.
func (s *Store) Append(record Record) error {
	records := append([]Record{record}, s.History()...)

	return s.SaveHistory(records)
}

// Update replaces the record with the same id, if present.
func (s *Store) Update(record Record) error {
	records := s.History()
	for i := range records {
		if records[i].ID == record.ID {
			records[i] = record
		}
	}

	return s.SaveHistory(records)
}

// Delete removes the record with the given id. Deleting an absent id is not
// an error.
func (s *Store) Delete(id string) error {
	records := s.History()
	kept := records[:0]

	for _, r := range records {
		if r.ID != id {
			kept = append(kept, r)
		}
	}

	return s.SaveHistory(kept)
}

// ClearHistory removes the entire persisted history.
func (s *Store) ClearHistory() error {
	return s.removeKey(historyKey)
}

// Balance returns the persisted credit balance, or DefaultBalance when none
// is stored or the stored value is corrupt.
func (s *Store) Balance() float64 {
	data, err := os.ReadFile(s.keyPath(balanceKey))
	if err != nil {
		return DefaultBalance
	}

	balance, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return DefaultBalance
	}

	return balance
}

// SetBalance persists the credit balance.
func (s *Store) SetBalance(balance float64) error {
	value := strconv.FormatFloat(balance, 'f', -1, 64)

	err := os.WriteFile(s.keyPath(balanceKey), []byte(value), filePermissions)
	if err != nil {
		return fmt.Errorf("failed to persist balance: %w", err)
	}

	return nil
}

// Deduct subtracts amount from the balance and returns the new balance. It
// fails without persisting anything when the balance would go negative.
func (s *Store) Deduct(amount float64) (float64, error) {
	if amount <= 0 {
		return 0, ErrDeductNonPositive
	}

	balance := s.Balance()
	if balance < amount {
		return balance, ErrInsufficientBalance
	}

	balance -= amount

	err := s.SetBalance(balance)
	if err != nil {
		return balance, err
	}

	return balance, nil
}

func (s *Store) keyPath(key string) string {
	return filepath.Join(s.dir, key)
}

func (s *Store) removeKey(key string) error {
	err := os.Remove(s.keyPath(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to clear %s: %w", key, err)
	}

	return nil
}
