package ledger

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"runbook/internal/security"
)

// Ledger is an append-only, hash-chained JSONL log of executed steps.
type Ledger struct {
	mu      sync.Mutex
	entries []*Entry
	path    string
	priv    ed25519.PrivateKey
	pub     ed25519.PublicKey
}

// Open loads an existing ledger file or creates an empty one.
// File format: JSON lines (one entry per line).
func Open(path string) (*Ledger, error) {
	l := &Ledger{path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		return l, f.Close()
	}
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var e Entry
		if err := dec.Decode(&e); err != nil {
			return nil, fmt.Errorf("decode ledger entry %d: %w", len(l.entries), err)
		}
		l.entries = append(l.entries, &e)
	}
	return l, nil
}

// SetSigner makes Append sign every new entry with priv.
func (l *Ledger) SetSigner(priv ed25519.PrivateKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.priv = priv
	l.pub = priv.Public().(ed25519.PublicKey)
}

// Append chains e to the last entry, signs it when a signer is set, persists
// it and keeps it in memory. Index and PrevHash are assigned here so that
// concurrent callers always produce a valid chain.
func (l *Ledger) Append(e *Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.Index = len(l.entries)
	e.PrevHash = ""
	if n := len(l.entries); n > 0 {
		e.PrevHash = l.entries[n-1].Hash
	}
	h, err := e.ComputeHash()
	if err != nil {
		return fmt.Errorf("compute entry hash: %w", err)
	}
	e.Hash = h

	e.Signature, e.PubKey = "", ""
	if len(l.priv) > 0 {
		e.Signature = security.SignData(l.priv, []byte(e.Hash))
		e.PubKey = hex.EncodeToString(l.pub)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger file: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(e); err != nil {
		return fmt.Errorf("write ledger file: %w", err)
	}

	l.entries = append(l.entries, e)
	return nil
}

// Entries returns the entries in order. The slice is a copy; the entries are not.
func (l *Ledger) Entries() []*Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// LastHash returns the last entry hash (or empty if none)
func (l *Ledger) LastHash() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return ""
	}
	return l.entries[len(l.entries)-1].Hash
}
