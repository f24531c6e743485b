package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"podtext/internal/fileutil"
)

// Store persists the ledger as a single JSON document.
type Store struct {
	path string
}

// NewStore binds a store to the ledger file location.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the ledger from disk. A missing file yields an empty ledger,
// never an error; a present but unreadable or malformed file is an error.
func (s *Store) Load() (*Ledger, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewLedger(), nil
		}
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	var l Ledger
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parse ledger %s: %w", s.path, err)
	}
	l.normalize()
	return &l, nil
}

// Save writes the ledger with write-then-replace semantics so a crash during
// save never leaves a truncated ledger behind.
func (s *Store) Save(l *Ledger) error {
	if l == nil {
		return errors.New("ledger is nil")
	}
	l.normalize()
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	data = append(data, '\n')
	if err := fileutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}
