// Package verifier implements the Action Verifier (C11): post-execution
// checks that a tool call's declared side effects actually happened.
// Grounded on original_source/tools/verifier.py's ActionVerifier.
package verifier

import (
	"os"
	"path/filepath"

	"github.com/haasonsaas/nexus/internal/agentic/core"
)

// SyntaxChecker is the optional capability the embedder may pass for
// language-specific syntax validation of written/edited files. Per
// SPEC_FULL.md's design notes, this is a capability, not a required
// dependency: a nil SyntaxChecker simply skips the check.
type SyntaxChecker interface {
	// CheckSyntax validates content for the language implied by path.
	// ok is true when either the language is unrecognized (nothing to
	// check) or the content is syntactically valid.
	CheckSyntax(path, content string) (ok bool, message string)
}

// Verifier checks tool-call side effects against the workspace
// filesystem.
type Verifier struct {
	workspace string
	syntax    SyntaxChecker
}

// New creates a Verifier rooted at workspace. syntax may be nil.
func New(workspace string, syntax SyntaxChecker) *Verifier {
	return &Verifier{workspace: workspace, syntax: syntax}
}

// BatchResult aggregates VerifyAction outcomes across many tool calls.
type BatchResult struct {
	AllVerified bool
	Total       int
	Verified    int
	Failed      int
	Issues      []BatchIssue
}

// BatchIssue is one failed verification within a BatchResult.
type BatchIssue struct {
	Tool       string
	Params     map[string]any
	Issues     []string
	Suggestion string
}

// VerifyAction checks one tool call's result against its documented
// post-condition. A tool result that already reports failure is never
// independently verified: the Tool reported failure issue is returned as-is.
func (v *Verifier) VerifyAction(toolName string, params map[string]any, result core.ToolResult) core.VerificationResult {
	if !result.Success {
		msg := result.Error
		if msg == "" {
			msg = "unknown"
		}
		return core.VerificationResult{
			Issues:     []string{"tool reported failure: " + msg},
			Suggestion: "retry with corrected parameters",
		}
	}

	switch toolName {
	case "write_file":
		return v.verifyWriteFile(params)
	case "edit_file":
		return v.verifyEditFile(params)
	case "create_folder":
		return v.verifyCreateFolder(params)
	case "delete_file":
		return v.verifyDeleteFile(params)
	default:
		return core.VerificationResult{Verified: true}
	}
}

func (v *Verifier) verifyWriteFile(params map[string]any) core.VerificationResult {
	path, _ := params["path"].(string)
	if path == "" {
		return failure("no file path provided", "")
	}

	full := v.resolve(path)
	info, err := os.Stat(full)
	if err != nil {
		return failure("file not found after write: "+path, "retry write_file with same parameters")
	}

	expectedContent, _ := params["content"].(string)
	if expectedContent != "" && info.Size() == 0 {
		return failure("file is empty: "+path, "content may not have been written")
	}

	if v.syntax != nil {
		if ok, msg := v.checkFile(full, path); !ok {
			return failure("syntax error: "+msg, "fix syntax and rewrite file")
		}
	}

	return core.VerificationResult{Verified: true}
}

func (v *Verifier) verifyEditFile(params map[string]any) core.VerificationResult {
	path, _ := params["path"].(string)
	if path == "" {
		return failure("no file path provided", "")
	}

	full := v.resolve(path)
	if _, err := os.Stat(full); err != nil {
		return failure("file not found after edit: "+path, "file may have been deleted accidentally")
	}

	if v.syntax != nil {
		if ok, msg := v.checkFile(full, path); !ok {
			return failure("edit broke syntax: "+msg, "revert edit or fix syntax error")
		}
	}

	return core.VerificationResult{Verified: true}
}

func (v *Verifier) verifyCreateFolder(params map[string]any) core.VerificationResult {
	path, _ := params["path"].(string)
	if path == "" {
		return failure("no folder path provided", "")
	}

	full := v.resolve(path)
	info, err := os.Stat(full)
	if err != nil {
		return failure("folder not found after creation: "+path, "retry create_folder")
	}
	if !info.IsDir() {
		return failure("path exists but is not a folder: "+path, "delete file and retry create_folder")
	}

	return core.VerificationResult{Verified: true}
}

func (v *Verifier) verifyDeleteFile(params map[string]any) core.VerificationResult {
	path, _ := params["path"].(string)
	if path == "" {
		return failure("no file path provided", "")
	}

	full := v.resolve(path)
	if _, err := os.Stat(full); err == nil {
		return failure("file still exists after delete: "+path, "retry delete_file")
	}

	return core.VerificationResult{Verified: true}
}

func (v *Verifier) checkFile(full, path string) (bool, string) {
	content, err := os.ReadFile(full)
	if err != nil {
		return true, ""
	}
	return v.syntax.CheckSyntax(path, string(content))
}

func (v *Verifier) resolve(path string) string {
	if v.workspace == "" {
		return path
	}
	return filepath.Join(v.workspace, path)
}

func failure(issue, suggestion string) core.VerificationResult {
	return core.VerificationResult{Issues: []string{issue}, Suggestion: suggestion}
}

// VerifyBatch verifies a set of tool calls and their results, reported in
// (toolName, params, result) triples matching the source order they were
// dispatched.
func (v *Verifier) VerifyBatch(calls []core.ToolCall, results []core.ToolResult) BatchResult {
	br := BatchResult{AllVerified: true, Total: len(calls)}

	for i, call := range calls {
		var result core.ToolResult
		if i < len(results) {
			result = results[i]
		}

		verification := v.VerifyAction(call.Name, call.Params, result)
		if verification.Verified {
			br.Verified++
			continue
		}

		br.Failed++
		br.AllVerified = false
		br.Issues = append(br.Issues, BatchIssue{
			Tool:       call.Name,
			Params:     call.Params,
			Issues:     verification.Issues,
			Suggestion: verification.Suggestion,
		})
	}

	return br
}
