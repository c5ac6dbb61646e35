package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/aegis-gate/aegisgate/internal/domain/tool"
)

// Files simulates a document store with read and write actions. It ships
// seeded with a small corpus so folder_prefix policies have something to
// gate.
type Files struct {
	mu    sync.RWMutex
	files map[string]string
}

// NewFiles creates the simulated file adapter with its seed corpus.
func NewFiles() *Files {
	return &Files{
		files: map[string]string{
			"/hr-docs/employee-handbook.txt": "Employee Handbook Version 2.0\n\nWelcome to the company...",
			"/hr-docs/benefits.txt":          "Benefits Information\n\nHealth Insurance: ...",
			"/legal/contract.docx":           "CONFIDENTIAL LEGAL CONTRACT\n\nThis agreement...",
		},
	}
}

// Name implements tool.Handler.
func (f *Files) Name() string { return "files" }

// Call implements tool.Handler.
func (f *Files) Call(_ context.Context, action string, params map[string]interface{}) (map[string]interface{}, error) {
	switch action {
	case "read":
		return f.read(params)
	case "write":
		return f.write(params)
	default:
		return nil, fmt.Errorf("%w: files.%s", tool.ErrUnknownAction, action)
	}
}

func (f *Files) read(params map[string]interface{}) (map[string]interface{}, error) {
	path, _ := params["path"].(string)
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}

	f.mu.RLock()
	content, ok := f.files[path]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("file '%s' not found", path)
	}

	return map[string]interface{}{
		"path":    path,
		"content": content,
	}, nil
}

func (f *Files) write(params map[string]interface{}) (map[string]interface{}, error) {
	path, _ := params["path"].(string)
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	content, _ := params["content"].(string)

	f.mu.Lock()
	f.files[path] = content
	f.mu.Unlock()

	return map[string]interface{}{
		"path":   path,
		"status": "written",
	}, nil
}
