package vertretung

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

const ledgerSeparator = " - "

// Ledger is the durable set of already-notified event fingerprints: an
// append-only text file with one `fingerprint - serialized event` line per
// entry, mirrored in memory. A single writer process is assumed.
type Ledger struct {
	path    string
	file    *os.File
	entries map[string]string
}

func OpenLedger(path string) (*Ledger, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger %q: %w", path, err)
	}

	entries := map[string]string{}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		parts := strings.SplitN(line, ledgerSeparator, 2)
		if len(parts) != 2 {
			continue
		}
		entries[parts[0]] = parts[1]
	}
	if err := scanner.Err(); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to read ledger %q: %w", path, err)
	}

	return &Ledger{path: path, file: file, entries: entries}, nil
}

func (l *Ledger) Known(fingerprint string) bool {
	_, ok := l.entries[fingerprint]
	return ok
}

func (l *Ledger) Len() int {
	return len(l.entries)
}

// Add appends the entry to the backing file first and only then updates
// the in-memory map. On a write failure the event stays unknown and will
// be reconsidered next cycle.
func (l *Ledger) Add(fingerprint, value string) error {
	if strings.Contains(fingerprint, ledgerSeparator) {
		return fmt.Errorf("fingerprint %q contains the ledger separator", fingerprint)
	}
	value = strings.ReplaceAll(value, "\n", " ")

	_, err := fmt.Fprintf(l.file, "%s%s%s\n", fingerprint, ledgerSeparator, value)
	if err != nil {
		return fmt.Errorf("failed to append to ledger: %w", err)
	}
	err = l.file.Sync()
	if err != nil {
		return fmt.Errorf("failed to sync ledger: %w", err)
	}

	l.entries[fingerprint] = value
	return nil
}

func (l *Ledger) Close() error {
	return l.file.Close()
}
