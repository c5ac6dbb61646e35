package policyfs

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aegis-gate/aegisgate/internal/domain/policy"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func evalCtx(agent, toolName, action string, params map[string]interface{}) policy.EvaluationContext {
	return policy.EvaluationContext{
		AgentID: agent,
		Tool:    toolName,
		Action:  action,
		Params:  params,
	}
}

const goodPolicy = `version: 1
agents:
  - id: billing_bot
    allow:
      - tool: payments
        actions: [create]
        conditions:
          max_amount: 1000
          currencies: [USD]
`

const otherPolicy = `version: 4
agents:
  - id: doc_bot
    allow:
      - tool: files
        actions: [read, write]
        conditions:
          folder_prefix: /hr-docs/
`

const badPolicy = `version: 0
agents: []
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestStore_Load(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "payments.yaml", goodPolicy)
	writeFile(t, dir, "files.yml", otherPolicy)
	writeFile(t, dir, "notes.txt", "not a policy")

	s := NewStore(dir, testLogger())
	if err := s.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	stats := s.Stats()
	if stats.PolicyFiles != 2 {
		t.Errorf("PolicyFiles = %d, want 2 (txt file must be ignored)", stats.PolicyFiles)
	}
	if stats.TotalAgents != 2 {
		t.Errorf("TotalAgents = %d, want 2", stats.TotalAgents)
	}
}

// A malformed file is logged and skipped; valid files still publish.
func TestStore_Load_BadFileIsolation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "good.yaml", goodPolicy)
	writeFile(t, dir, "bad.yaml", "version: [not an int")

	s := NewStore(dir, testLogger())
	if err := s.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if got := s.Stats().PolicyFiles; got != 1 {
		t.Errorf("PolicyFiles = %d, want 1", got)
	}

	snap := s.Snapshot()
	d := snap.Evaluate(evalCtx("billing_bot", "payments", "create",
		map[string]interface{}{"amount": 10.0, "currency": "USD"}))
	if !d.Allow {
		t.Errorf("evaluation against surviving file denied: %s", d.Reason)
	}
}

// When every file fails, the previous snapshot is retained so a bad edit
// does not take the gateway down.
func TestStore_Load_AllFailRetainsPrevious(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "only.yaml", goodPolicy)

	s := NewStore(dir, testLogger())
	if err := s.Load(); err != nil {
		t.Fatalf("initial Load() error: %v", err)
	}
	before := s.Snapshot()

	writeFile(t, dir, filepath.Base(path), badPolicy)
	if err := s.Load(); err == nil {
		t.Fatal("Load() with all files invalid returned nil error")
	}

	if s.Snapshot() != before {
		t.Error("snapshot was replaced even though every file failed")
	}
	if got := s.Stats().PolicyFiles; got != 1 {
		t.Errorf("PolicyFiles = %d, want 1 (previous snapshot)", got)
	}
}

func TestStore_Load_ValidationRejectsWholeFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "good.yaml", goodPolicy)
	writeFile(t, dir, "invalid.yaml", badPolicy) // parses, fails validation

	s := NewStore(dir, testLogger())
	if err := s.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got := s.Stats().PolicyFiles; got != 1 {
		t.Errorf("PolicyFiles = %d, want 1", got)
	}
}

func TestStore_Load_EmptyDir(t *testing.T) {
	t.Parallel()

	s := NewStore(t.TempDir(), testLogger())
	if err := s.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	d := s.Snapshot().Evaluate(evalCtx("anyone", "files", "read", nil))
	if d.Allow {
		t.Error("empty snapshot allowed a call")
	}
	if d.Reason != "No policies loaded" {
		t.Errorf("Reason = %q", d.Reason)
	}
}

// Reload swaps the whole snapshot: a reader holding the old pointer keeps
// a consistent view while new evaluations see the new one.
func TestStore_Reload_SnapshotSwap(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "p.yaml", goodPolicy)

	s := NewStore(dir, testLogger())
	if err := s.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	old := s.Snapshot()

	writeFile(t, dir, "p.yaml", otherPolicy)
	if err := s.Load(); err != nil {
		t.Fatalf("reload error: %v", err)
	}

	if s.Snapshot() == old {
		t.Fatal("snapshot pointer unchanged after content change")
	}

	// The held snapshot still evaluates against the old content.
	d := old.Evaluate(evalCtx("billing_bot", "payments", "create",
		map[string]interface{}{"amount": 10.0, "currency": "USD"}))
	if !d.Allow || d.Version != 1 {
		t.Errorf("old snapshot changed under reader: allow=%v version=%d", d.Allow, d.Version)
	}

	d = s.Snapshot().Evaluate(evalCtx("doc_bot", "files", "read",
		map[string]interface{}{"path": "/hr-docs/a.txt"}))
	if !d.Allow || d.Version != 4 {
		t.Errorf("new snapshot: allow=%v version=%d, want allow v4", d.Allow, d.Version)
	}
}

// Identical content republishes nothing: the fingerprint short-circuits.
func TestStore_Reload_NoChangeKeepsSnapshot(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "p.yaml", goodPolicy)

	s := NewStore(dir, testLogger())
	if err := s.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	old := s.Snapshot()

	if err := s.Load(); err != nil {
		t.Fatalf("reload error: %v", err)
	}
	if s.Snapshot() != old {
		t.Error("identical reload replaced the snapshot")
	}
}

// Concurrent evaluations during reloads always see a complete snapshot,
// never a mix of old and new files.
func TestStore_ConcurrentReload(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "p.yaml", goodPolicy)

	s := NewStore(dir, testLogger())
	if err := s.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := s.Snapshot()
				d := snap.Evaluate(evalCtx("billing_bot", "payments", "create",
					map[string]interface{}{"amount": 10.0, "currency": "USD"}))
				// Version must match exactly one published file version.
				if d.Version != 1 && d.Version != 2 {
					t.Errorf("decision version %d not from any snapshot", d.Version)
					return
				}
			}
		}()
	}

	for i := 0; i < 20; i++ {
		content := goodPolicy
		if i%2 == 1 {
			content = "version: 2\nagents:\n  - id: billing_bot\n    allow:\n      - tool: payments\n        actions: [create]\n"
		}
		writeFile(t, dir, "p.yaml", content)
		if err := s.Load(); err != nil {
			t.Errorf("reload %d: %v", i, err)
		}
	}
	close(stop)
	wg.Wait()
}
