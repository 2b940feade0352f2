package verifier

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/haasonsaas/nexus/internal/agentic/core"
)

func TestVerifyActionFailsWhenToolReportedFailure(t *testing.T) {
	v := New(t.TempDir(), nil)
	result := v.VerifyAction("write_file", map[string]any{"path": "a.txt"}, core.ToolResult{Success: false, Error: "disk full"})
	if result.Verified {
		t.Fatal("expected unverified result when tool reported failure")
	}
	if result.Suggestion == "" {
		t.Fatal("expected a suggestion")
	}
}

func TestVerifyWriteFileChecksExistence(t *testing.T) {
	dir := t.TempDir()
	v := New(dir, nil)

	result := v.VerifyAction("write_file", map[string]any{"path": "missing.txt", "content": "x"}, core.ToolResult{Success: true})
	if result.Verified {
		t.Fatal("expected verification to fail for a file that was never written")
	}

	if err := os.WriteFile(filepath.Join(dir, "present.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	result = v.VerifyAction("write_file", map[string]any{"path": "present.txt", "content": "hello"}, core.ToolResult{Success: true})
	if !result.Verified {
		t.Fatalf("expected verification to pass: %v", result.Issues)
	}
}

func TestVerifyDeleteFileChecksAbsence(t *testing.T) {
	dir := t.TempDir()
	v := New(dir, nil)

	if err := os.WriteFile(filepath.Join(dir, "still-here.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := v.VerifyAction("delete_file", map[string]any{"path": "still-here.txt"}, core.ToolResult{Success: true})
	if result.Verified {
		t.Fatal("expected verification to fail when the deleted file still exists")
	}

	result = v.VerifyAction("delete_file", map[string]any{"path": "gone.txt"}, core.ToolResult{Success: true})
	if !result.Verified {
		t.Fatalf("expected verification to pass for an absent file: %v", result.Issues)
	}
}

func TestVerifyCreateFolderRejectsFileAtPath(t *testing.T) {
	dir := t.TempDir()
	v := New(dir, nil)

	if err := os.WriteFile(filepath.Join(dir, "not-a-dir"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := v.VerifyAction("create_folder", map[string]any{"path": "not-a-dir"}, core.ToolResult{Success: true})
	if result.Verified {
		t.Fatal("expected verification to fail when path is a file, not a folder")
	}
}

func TestVerifyBatchAggregatesIssues(t *testing.T) {
	dir := t.TempDir()
	v := New(dir, nil)

	calls := []core.ToolCall{
		{Name: "write_file", Params: map[string]any{"path": "ok.txt", "content": "x"}},
		{Name: "write_file", Params: map[string]any{"path": "missing.txt", "content": "x"}},
	}
	if err := os.WriteFile(filepath.Join(dir, "ok.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	results := []core.ToolResult{{Success: true}, {Success: true}}

	batch := v.VerifyBatch(calls, results)
	if batch.AllVerified {
		t.Fatal("expected AllVerified=false")
	}
	if batch.Verified != 1 || batch.Failed != 1 {
		t.Fatalf("unexpected counts: verified=%d failed=%d", batch.Verified, batch.Failed)
	}
	if len(batch.Issues) != 1 || batch.Issues[0].Tool != "write_file" {
		t.Fatalf("unexpected issues: %+v", batch.Issues)
	}
}

type stubSyntaxChecker struct {
	ok bool
	msg string
}

func (s stubSyntaxChecker) CheckSyntax(path, content string) (bool, string) {
	return s.ok, s.msg
}

func TestVerifyWriteFileUsesSyntaxChecker(t *testing.T) {
	dir := t.TempDir()
	v := New(dir, stubSyntaxChecker{ok: false, msg: "unexpected indent"})

	if err := os.WriteFile(filepath.Join(dir, "bad.py"), []byte("def f():\npass"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := v.VerifyAction("write_file", map[string]any{"path": "bad.py", "content": "def f():\npass"}, core.ToolResult{Success: true})
	if result.Verified {
		t.Fatal("expected syntax checker failure to fail verification")
	}
}
