package ingest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const workspacePrefix = "soundwatch-"

// workspace is a per-run scratch directory. Its name embeds a fresh UUID so
// concurrent runs never share files.
type workspace struct {
	id  string
	dir string
}

func newWorkspace(root string) (*workspace, error) {
	if root == "" {
		root = os.TempDir()
	}
	id := uuid.NewString()
	dir := filepath.Join(root, workspacePrefix+id)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("ingest: create workspace: %w", err)
	}
	return &workspace{id: id, dir: dir}, nil
}

func (w *workspace) path(name string) string {
	return filepath.Join(w.dir, name)
}

func (w *workspace) remove() error {
	if err := os.RemoveAll(w.dir); err != nil {
		return fmt.Errorf("ingest: remove workspace %s: %w", w.dir, err)
	}
	return nil
}
