package download

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Ledger is an append-only presence store of completed download URLs.
// It is what makes re-runs idempotent: a URL recorded here is never
// fetched again.
type Ledger interface {
	// Contains reports whether the URL was already recorded.
	Contains(url string) bool

	// Record marks the URL as downloaded. Recording the same URL twice
	// is a no-op; the backing store holds it at most once per run.
	Record(url string) error
}

// FileLedger is the default Ledger backing: one URL per line in a text
// file that outlives the process. The file is read fully at open and
// appended on each Record.
type FileLedger struct {
	path string
	seen map[string]struct{}
}

// OpenFileLedger loads (creating if absent) the ledger file at path.
func OpenFileLedger(path string) (*FileLedger, error) {
	f, err := os.OpenFile(path, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}
	defer f.Close()

	l := &FileLedger{path: path, seen: make(map[string]struct{})}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			l.seen[line] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ledger: read %s: %w", path, err)
	}
	return l, nil
}

// Contains implements Ledger.
func (l *FileLedger) Contains(url string) bool {
	_, ok := l.seen[url]
	return ok
}

// Record implements Ledger. The URL hits the file before the in-memory
// set, so a crash between the two leaves the durable state correct.
func (l *FileLedger) Record(url string) error {
	if l.Contains(url) {
		return nil
	}
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("ledger: append %s: %w", l.path, err)
	}
	if _, err := fmt.Fprintln(f, url); err != nil {
		f.Close()
		return fmt.Errorf("ledger: write %s: %w", l.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("ledger: close %s: %w", l.path, err)
	}
	l.seen[url] = struct{}{}
	return nil
}

// MemoryLedger is a Ledger with no persistence, for tests and dry runs.
type MemoryLedger struct {
	seen map[string]struct{}
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{seen: make(map[string]struct{})}
}

// Contains implements Ledger.
func (l *MemoryLedger) Contains(url string) bool {
	_, ok := l.seen[url]
	return ok
}

// Record implements Ledger.
func (l *MemoryLedger) Record(url string) error {
	l.seen[url] = struct{}{}
	return nil
}
