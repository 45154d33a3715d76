package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Step status values recorded in an Entry.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Entry is a tamper-evident record of one executed step.
type Entry struct {
	Index     int    `json:"index"`
	Timestamp string `json:"timestamp"`
	RunID     string `json:"runId"`
	Step      string `json:"step"`
	Command   string `json:"command"`
	Status    string `json:"status"`
	ExitCode  int    `json:"exitCode"`
	LogPath   string `json:"logPath,omitempty"`
	LogHash   string `json:"logHash"`
	PrevHash  string `json:"prevHash"`
	Hash      string `json:"hash"`
	Signature string `json:"signature,omitempty"`
	PubKey    string `json:"pubKey,omitempty"`
}

// NewEntry builds an unchained entry for a step. Index, PrevHash and Hash are
// filled in by Ledger.Append.
func NewEntry(runID, step, command, status string, exitCode int, logPath, output string) *Entry {
	return &Entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RunID:     runID,
		Step:      step,
		Command:   command,
		Status:    status,
		ExitCode:  exitCode,
		LogPath:   logPath,
		LogHash:   HashString(output),
	}
}

// canonicalData returns the JSON bytes the hash is computed over.
// Hash, Signature and PubKey are excluded.
func (e *Entry) canonicalData() ([]byte, error) {
	view := struct {
		Index     int    `json:"index"`
		Timestamp string `json:"timestamp"`
		RunID     string `json:"runId"`
		Step      string `json:"step"`
		Command   string `json:"command"`
		Status    string `json:"status"`
		ExitCode  int    `json:"exitCode"`
		LogPath   string `json:"logPath"`
		LogHash   string `json:"logHash"`
		PrevHash  string `json:"prevHash"`
	}{
		Index:     e.Index,
		Timestamp: e.Timestamp,
		RunID:     e.RunID,
		Step:      e.Step,
		Command:   e.Command,
		Status:    e.Status,
		ExitCode:  e.ExitCode,
		LogPath:   e.LogPath,
		LogHash:   e.LogHash,
		PrevHash:  e.PrevHash,
	}
	return json.Marshal(view)
}

// ComputeHash calculates SHA-256 over the canonical form.
func (e *Entry) ComputeHash() (string, error) {
	data, err := e.canonicalData()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
