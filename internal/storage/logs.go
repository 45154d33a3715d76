package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LogStorage saves step output to one file per step under BaseDir.
type LogStorage struct {
	BaseDir string
}

// NewLogStorage creates a new log storage handler
func NewLogStorage(baseDir string) *LogStorage {
	return &LogStorage{BaseDir: baseDir}
}

// SaveLog writes the output of step number index (zero-based) of run runID
// and returns the file path.
func (ls *LogStorage) SaveLog(runID string, index int, name, output string) (string, error) {
	if err := os.MkdirAll(ls.BaseDir, 0o775); err != nil {
		return "", fmt.Errorf("create log dir: %w", err)
	}

	if runID == "" {
		runID = time.Now().Format("20060102_150405")
	}
	filename := fmt.Sprintf("%s_%02d_%s.log", sanitize(runID), index+1, sanitize(name))
	path := filepath.Join(ls.BaseDir, filename)

	if err := os.WriteFile(path, []byte(output), 0o644); err != nil {
		return "", fmt.Errorf("write step log: %w", err)
	}
	return path, nil
}

// sanitize keeps letters, digits, '-' and '_' and turns spaces into '_'.
func sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "step"
	}
	return b.String()
}
