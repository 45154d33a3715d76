package ledger

import (
	"fmt"

	"runbook/internal/security"
)

// VerifyChain recomputes each entry hash and link, and checks signatures
// where present, to detect tampering.
func (l *Ledger) VerifyChain() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, e := range l.entries {
		if e.Index != i {
			return fmt.Errorf("index mismatch: expected %d, got %d", i, e.Index)
		}
		h, err := e.ComputeHash()
		if err != nil {
			return fmt.Errorf("compute hash for index %d: %w", i, err)
		}
		if h != e.Hash {
			return fmt.Errorf("hash mismatch at index %d", i)
		}
		if i > 0 && e.PrevHash != l.entries[i-1].Hash {
			return fmt.Errorf("prev hash mismatch at index %d", i)
		}
		if i == 0 && e.PrevHash != "" {
			return fmt.Errorf("first entry has a prev hash")
		}
		if e.Signature != "" {
			ok, err := security.VerifySignatureFromHex(e.PubKey, []byte(e.Hash), e.Signature)
			if err != nil {
				return fmt.Errorf("signature at index %d: %w", i, err)
			}
			if !ok {
				return fmt.Errorf("bad signature at index %d", i)
			}
		}
	}
	return nil
}

// VerifyLogs checks that every saved step log still matches its recorded hash.
func (l *Ledger) VerifyLogs() error {
	for _, e := range l.Entries() {
		if e.LogPath == "" {
			continue
		}
		h, err := HashFile(e.LogPath)
		if err != nil {
			return fmt.Errorf("log for index %d: %w", e.Index, err)
		}
		if h != e.LogHash {
			return fmt.Errorf("log hash mismatch at index %d (%s)", e.Index, e.LogPath)
		}
	}
	return nil
}
