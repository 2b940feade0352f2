// Package tools implements the built-in filesystem and search tool
// handlers the Context Gatherer, Action Verifier, and executors dispatch
// against by name (read_file, write_file, edit_file, create_folder,
// delete_file, list_directory, search_content). Grounded on
// original_source/tools/filesystem.py's FileSystemTools and
// original_source/tools/search.py's SearchTools, registered through
// internal/agentic/toolrouter.Registry the way
// internal/agent/tool_registry.go registers its built-ins.
package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/haasonsaas/nexus/internal/agentic/core"
	"github.com/haasonsaas/nexus/internal/agentic/toolrouter"
)

// Filesystem binds the built-in tool handlers to a workspace root.
type Filesystem struct {
	workspace   string
	maxFileSize int64
}

// NewFilesystem creates a Filesystem rooted at workspace. maxFileSize
// bounds read_file/write_file content size (0 disables the check).
func NewFilesystem(workspace string, maxFileSize int64) *Filesystem {
	return &Filesystem{workspace: workspace, maxFileSize: maxFileSize}
}

// Register adds every built-in handler to reg.
func (f *Filesystem) Register(reg *toolrouter.Registry) {
	reg.Register(toolrouter.Spec{Name: "read_file", Handler: f.readFile, SideEffect: toolrouter.SideEffectRead})
	reg.Register(toolrouter.Spec{Name: "write_file", Handler: f.writeFile, SideEffect: toolrouter.SideEffectWrite})
	reg.Register(toolrouter.Spec{Name: "edit_file", Handler: f.editFile, SideEffect: toolrouter.SideEffectWrite})
	reg.Register(toolrouter.Spec{Name: "create_folder", Handler: f.createFolder, SideEffect: toolrouter.SideEffectWrite})
	reg.Register(toolrouter.Spec{Name: "delete_file", Handler: f.deleteFile, SideEffect: toolrouter.SideEffectWrite})
	reg.Register(toolrouter.Spec{Name: "list_directory", Handler: f.listDirectory, SideEffect: toolrouter.SideEffectRead})
	reg.Register(toolrouter.Spec{Name: "search_content", Handler: f.searchContent, SideEffect: toolrouter.SideEffectRead})
}

// safePath resolves relative against the workspace and rejects any
// result that escapes it, matching _get_safe_path.
func (f *Filesystem) safePath(relative string) (string, error) {
	full := filepath.Join(f.workspace, relative)
	full = filepath.Clean(full)

	rel, err := filepath.Rel(f.workspace, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside workspace", relative)
	}
	return full, nil
}

func fail(err string) core.ToolResult {
	return core.ToolResult{Success: false, Error: err}
}

func (f *Filesystem) readFile(_ context.Context, params map[string]any) core.ToolResult {
	path, _ := params["path"].(string)
	if path == "" {
		return fail("path is required")
	}

	full, err := f.safePath(path)
	if err != nil {
		return fail(err.Error())
	}

	info, err := os.Stat(full)
	if err != nil {
		return fail(fmt.Sprintf("File not found: %s", path))
	}
	if info.IsDir() {
		return fail(fmt.Sprintf("Not a file: %s", path))
	}
	if f.maxFileSize > 0 && info.Size() > f.maxFileSize {
		return fail(fmt.Sprintf("File too large (%d bytes, max: %d)", info.Size(), f.maxFileSize))
	}

	content, err := os.ReadFile(full)
	if err != nil {
		return fail(err.Error())
	}

	return core.ToolResult{
		Success: true,
		Fields: map[string]any{
			"content": string(content),
			"path":    full,
			"size":    info.Size(),
		},
	}
}

func (f *Filesystem) writeFile(_ context.Context, params map[string]any) core.ToolResult {
	path, _ := params["path"].(string)
	content, _ := params["content"].(string)
	if path == "" {
		return fail("path is required")
	}

	if f.maxFileSize > 0 && int64(len(content)) > f.maxFileSize {
		return fail(fmt.Sprintf("Content size (%d) exceeds maximum (%d)", len(content), f.maxFileSize))
	}

	full, err := f.safePath(path)
	if err != nil {
		return fail(err.Error())
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fail(err.Error())
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return fail(err.Error())
	}

	return core.ToolResult{
		Success: true,
		Fields:  map[string]any{"message": fmt.Sprintf("File written: %s", path), "path": full, "size": len(content)},
	}
}

// editFile supports append (default) and replace modes, matching the
// two most common edit_file modes from filesystem.py's edit_file.
func (f *Filesystem) editFile(_ context.Context, params map[string]any) core.ToolResult {
	path, _ := params["path"].(string)
	if path == "" {
		return fail("path is required")
	}
	mode, _ := params["mode"].(string)
	if mode == "" {
		mode = "append"
	}

	full, err := f.safePath(path)
	if err != nil {
		return fail(err.Error())
	}

	existing, readErr := os.ReadFile(full)
	if readErr != nil {
		return fail(fmt.Sprintf("File not found: %s", path))
	}

	var updated string
	switch mode {
	case "append":
		content, _ := params["content"].(string)
		updated = string(existing) + content
	case "replace":
		search, _ := params["search"].(string)
		replace, _ := params["replace"].(string)
		if search == "" {
			return fail("search is required for replace mode")
		}
		updated = strings.ReplaceAll(string(existing), search, replace)
	default:
		return fail(fmt.Sprintf("unsupported edit mode: %s", mode))
	}

	if err := os.WriteFile(full, []byte(updated), 0o644); err != nil {
		return fail(err.Error())
	}

	return core.ToolResult{
		Success: true,
		Fields:  map[string]any{"message": fmt.Sprintf("File edited: %s", path), "path": full},
	}
}

func (f *Filesystem) createFolder(_ context.Context, params map[string]any) core.ToolResult {
	path, _ := params["path"].(string)
	if path == "" {
		return fail("path is required")
	}

	full, err := f.safePath(path)
	if err != nil {
		return fail(err.Error())
	}
	if err := os.MkdirAll(full, 0o755); err != nil {
		return fail(err.Error())
	}

	return core.ToolResult{
		Success: true,
		Fields:  map[string]any{"message": fmt.Sprintf("Folder created: %s", path), "path": full},
	}
}

func (f *Filesystem) deleteFile(_ context.Context, params map[string]any) core.ToolResult {
	path, _ := params["path"].(string)
	if path == "" {
		return fail("path is required")
	}

	full, err := f.safePath(path)
	if err != nil {
		return fail(err.Error())
	}
	if _, err := os.Stat(full); err != nil {
		return fail(fmt.Sprintf("File not found: %s", path))
	}
	if err := os.Remove(full); err != nil {
		return fail(err.Error())
	}

	return core.ToolResult{
		Success: true,
		Fields:  map[string]any{"message": fmt.Sprintf("File deleted: %s", path)},
	}
}

func (f *Filesystem) listDirectory(_ context.Context, params map[string]any) core.ToolResult {
	path, _ := params["path"].(string)
	if path == "" {
		path = "."
	}

	full, err := f.safePath(path)
	if err != nil {
		return fail(err.Error())
	}

	entries, err := os.ReadDir(full)
	if err != nil {
		return fail(fmt.Sprintf("Directory not found: %s", path))
	}

	var dirs, files []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		} else {
			files = append(files, e.Name())
		}
	}
	sort.Strings(dirs)
	sort.Strings(files)

	return core.ToolResult{
		Success: true,
		Fields: map[string]any{
			"path":  full,
			"dirs":  dirs,
			"files": files,
			"count": len(dirs) + len(files),
		},
	}
}

// searchContent greps for query as a case-insensitive regex across files
// under path (default ".") matching glob (default "*"), matching
// search.py's grep_content. When no regex-special characters are
// present, query is also usable directly as a literal substring test.
func (f *Filesystem) searchContent(_ context.Context, params map[string]any) core.ToolResult {
	query, _ := params["query"].(string)
	if query == "" {
		return fail("query is required")
	}
	path, _ := params["path"].(string)
	if path == "" {
		path = "."
	}
	glob, _ := params["glob"].(string)
	if glob == "" {
		glob = "*"
	}

	full, err := f.safePath(path)
	if err != nil {
		return fail(err.Error())
	}

	re, err := regexp.Compile("(?i)" + query)
	if err != nil {
		return fail(fmt.Sprintf("Invalid regex pattern: %s", err))
	}

	var paths []string
	seen := map[string]bool{}
	_ = filepath.Walk(full, func(p string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if ok, _ := filepath.Match(glob, info.Name()); !ok && glob != "*" {
			return nil
		}
		content, readErr := os.ReadFile(p)
		if readErr != nil || !re.Match(content) {
			return nil
		}
		rel, _ := filepath.Rel(f.workspace, p)
		if !seen[rel] {
			seen[rel] = true
			paths = append(paths, rel)
		}
		return nil
	})

	return core.ToolResult{
		Success: true,
		Fields:  map[string]any{"paths": paths, "count": len(paths)},
	}
}
