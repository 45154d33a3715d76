package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"runbook/internal/security"
)

// helper to create a step log file for hashing
func createTempLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "step.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp log: %v", err)
	}
	return path
}

func openTemp(t *testing.T) (*Ledger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open ledger: %v", err)
	}
	return l, path
}

func TestEntryHashIsStable(t *testing.T) {
	e := NewEntry("run-1", "Build", "go build ./...", StatusSucceeded, 0, "", "ok")
	h1, err := e.ComputeHash()
	if err != nil {
		t.Fatalf("compute hash: %v", err)
	}
	h2, _ := e.ComputeHash()
	if h1 != h2 {
		t.Errorf("hash not deterministic: %s vs %s", h1, h2)
	}

	e.Signature = "anything"
	if h3, _ := e.ComputeHash(); h3 != h1 {
		t.Errorf("signature must not affect the hash")
	}
}

func TestAppendChainsAndVerifies(t *testing.T) {
	l, _ := openTemp(t)

	b1 := NewEntry("run-1", "Build", "go build", StatusSucceeded, 0, "", "built")
	if err := l.Append(b1); err != nil {
		t.Fatalf("append 1: %v", err)
	}
	b2 := NewEntry("run-1", "Test", "go test ./...", StatusFailed, 1, "", "FAIL")
	if err := l.Append(b2); err != nil {
		t.Fatalf("append 2: %v", err)
	}

	if b1.Index != 0 || b2.Index != 1 {
		t.Errorf("indexes = %d, %d; want 0, 1", b1.Index, b2.Index)
	}
	if b2.PrevHash != b1.Hash {
		t.Errorf("entry 2 not linked to entry 1")
	}
	if l.LastHash() != b2.Hash {
		t.Errorf("LastHash = %s, want %s", l.LastHash(), b2.Hash)
	}
	if err := l.VerifyChain(); err != nil {
		t.Errorf("chain verification failed: %v", err)
	}
}

func TestTamperingDetection(t *testing.T) {
	l, _ := openTemp(t)
	if err := l.Append(NewEntry("run-1", "Deploy", "echo deploy", StatusSucceeded, 0, "", "deployed")); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	l.Entries()[0].LogHash = "fakehash"

	if err := l.VerifyChain(); err == nil {
		t.Errorf("expected verification failure, got success")
	}
}

func TestSignedEntries(t *testing.T) {
	l, _ := openTemp(t)
	_, priv, err := security.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate keys: %v", err)
	}
	l.SetSigner(priv)

	e := NewEntry("run-1", "Build", "make", StatusSucceeded, 0, "", "")
	if err := l.Append(e); err != nil {
		t.Fatalf("append: %v", err)
	}
	if e.Signature == "" || e.PubKey == "" {
		t.Fatalf("entry was not signed")
	}
	if err := l.VerifyChain(); err != nil {
		t.Fatalf("verify signed chain: %v", err)
	}

	// A valid hash with a signature from another key must be rejected.
	_, other, _ := security.GenerateKeyPair()
	e.Signature = security.SignData(other, []byte(e.Hash))
	if err := l.VerifyChain(); err == nil {
		t.Errorf("expected bad signature to be detected")
	}
}

func TestLedgerPersistence(t *testing.T) {
	l, path := openTemp(t)
	for _, name := range []string{"one", "two", "three"} {
		if err := l.Append(NewEntry("run-1", name, "echo "+name, StatusSucceeded, 0, "", name)); err != nil {
			t.Fatalf("append %s: %v", name, err)
		}
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("failed to reopen ledger: %v", err)
	}
	if reopened.Len() != 3 {
		t.Fatalf("reopened ledger has %d entries, want 3", reopened.Len())
	}
	if err := reopened.VerifyChain(); err != nil {
		t.Errorf("reloaded ledger verification failed: %v", err)
	}

	// Appending after reopen continues the same chain.
	if err := reopened.Append(NewEntry("run-2", "four", "echo four", StatusSucceeded, 0, "", "four")); err != nil {
		t.Fatalf("append after reopen: %v", err)
	}
	if err := reopened.VerifyChain(); err != nil {
		t.Errorf("chain broken after reopen: %v", err)
	}
}

func TestOpenRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	if err := os.WriteFile(path, []byte("{not json\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil {
		t.Errorf("expected decode error")
	}
}

func TestConcurrentAppendKeepsChainValid(t *testing.T) {
	l, _ := openTemp(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Append(NewEntry("run-1", "parallel", "true", StatusSucceeded, 0, "", "")); err != nil {
				t.Errorf("append: %v", err)
			}
		}()
	}
	wg.Wait()

	if l.Len() != 20 {
		t.Fatalf("len = %d, want 20", l.Len())
	}
	if err := l.VerifyChain(); err != nil {
		t.Errorf("concurrent appends broke the chain: %v", err)
	}
}

func TestVerifyLogs(t *testing.T) {
	l, _ := openTemp(t)
	logPath := createTempLog(t, "step output")

	if err := l.Append(NewEntry("run-1", "Build", "make", StatusSucceeded, 0, logPath, "step output")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := l.VerifyLogs(); err != nil {
		t.Fatalf("VerifyLogs: %v", err)
	}

	if err := os.WriteFile(logPath, []byte("rewritten"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := l.VerifyLogs(); err == nil {
		t.Errorf("expected modified log to be detected")
	}
}

func TestFileIsJSONLines(t *testing.T) {
	l, path := openTemp(t)
	if err := l.Append(NewEntry("run-1", "Build", "make", StatusSucceeded, 0, "", "")); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		t.Fatalf("ledger line is not JSON: %v", err)
	}
	if e.Step != "Build" || e.Hash == "" {
		t.Errorf("unexpected entry on disk: %+v", e)
	}
}

func TestHashFileMatchesHashString(t *testing.T) {
	path := createTempLog(t, "hello ledger")
	h, err := HashFile(path)
	if err != nil {
		t.Fatalf("hash file: %v", err)
	}
	if h != HashString("hello ledger") {
		t.Errorf("HashFile and HashString disagree")
	}
}
