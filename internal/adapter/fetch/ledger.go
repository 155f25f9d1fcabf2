package fetch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
)

// LedgerFile is the ledger's file name inside the download directory.
const LedgerFile = "downloads.toml"

// dateLayout is the access date format used in citations.
const dateLayout = "2006-01-02"

// Download is one ledger entry.
type Download struct {
	Filename string `toml:"filename"`
	Variable string `toml:"variable"`
	Date     string `toml:"date"`
}

type ledgerDoc struct {
	Downloads []Download `toml:"download"`
}

// Ledger records which archives were downloaded and when.
type Ledger struct {
	path string
	mu   sync.Mutex
}

// NewLedger returns the ledger kept in dir.
func NewLedger(dir string) *Ledger {
	return &Ledger{path: filepath.Join(dir, LedgerFile)}
}

// Path returns the ledger file path.
func (l *Ledger) Path() string {
	return l.path
}

// Record inserts or replaces the entry for filename.
func (l *Ledger) Record(filename, variable string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.read()
	if err != nil {
		return err
	}

	entry := Download{Filename: filename, Variable: variable, Date: at.Format(dateLayout)}
	replaced := false
	for i := range doc.Downloads {
		if doc.Downloads[i].Filename == filename {
			doc.Downloads[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		doc.Downloads = append(doc.Downloads, entry)
	}

	return l.write(doc)
}

// LatestDate returns the most recent download date recorded for variable.
func (l *Ledger) LatestDate(variable string) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.read()
	if err != nil {
		return "", false, err
	}

	latest := ""
	for _, d := range doc.Downloads {
		// ISO dates order lexically.
		if d.Variable == variable && d.Date > latest {
			latest = d.Date
		}
	}
	return latest, latest != "", nil
}

// Entries returns all recorded downloads.
func (l *Ledger) Entries() ([]Download, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.read()
	if err != nil {
		return nil, err
	}
	return doc.Downloads, nil
}

func (l *Ledger) read() (ledgerDoc, error) {
	var doc ledgerDoc
	if _, err := toml.DecodeFile(l.path, &doc); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ledgerDoc{}, nil
		}
		return ledgerDoc{}, fmt.Errorf("failed to read ledger %s: %w", l.path, err)
	}
	return doc, nil
}

func (l *Ledger) write(doc ledgerDoc) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), LedgerFile+".*")
	if err != nil {
		return fmt.Errorf("failed to create ledger: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := toml.NewEncoder(tmp).Encode(doc); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to encode ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		return fmt.Errorf("failed to replace ledger: %w", err)
	}
	return nil
}
