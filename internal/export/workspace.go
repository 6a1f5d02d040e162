package export

import (
	"fmt"
	"os"
	"path/filepath"
)

// Workspace is the scratch directory shared by successive per-voice
// transforms. It is cleared on acquisition and must be cleared again before
// the next voice starts; Transform resets it on every exit path, so at most
// one voice occupies it at a time.
type Workspace struct {
	dir string
}

// OpenWorkspace creates dir if needed and clears any leftover contents from a
// previous run.
func OpenWorkspace(dir string) (*Workspace, error) {
	if dir == "" {
		return nil, fmt.Errorf("workspace dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	ws := &Workspace{dir: dir}
	if err := ws.Reset(); err != nil {
		return nil, err
	}
	return ws, nil
}

// Dir returns the workspace root.
func (w *Workspace) Dir() string { return w.dir }

// Path joins elements under the workspace root.
func (w *Workspace) Path(elem ...string) string {
	return filepath.Join(append([]string{w.dir}, elem...)...)
}

// Reset removes every entry inside the workspace, keeping the directory
// itself.
func (w *Workspace) Reset() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("read workspace: %w", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(w.dir, e.Name())); err != nil {
			return fmt.Errorf("clear workspace entry %s: %w", e.Name(), err)
		}
	}
	return nil
}
