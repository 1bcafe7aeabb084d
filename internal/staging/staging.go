// Package staging manages the run-scoped directory tree entries are
// downloaded into before packaging.
package staging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Area hands out fresh per-entry staging directories under one validated
// root. Directories are never reused or merged; re-running an entry always
// starts from an empty tree.
type Area struct {
	root string
}

// New validates that root exists (creating it if needed) and is writable.
func New(root string) (*Area, error) {
	if root == "" {
		return nil, fmt.Errorf("staging root must not be empty")
	}
	info, err := os.Stat(root)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(root, 0o750); err != nil {
			return nil, fmt.Errorf("create staging root %s: %w", root, err)
		}
	case err != nil:
		return nil, fmt.Errorf("stat staging root %s: %w", root, err)
	case !info.IsDir():
		return nil, fmt.Errorf("staging root %s is not a directory", root)
	}

	probe := filepath.Join(root, ".write-probe-"+uuid.NewString())
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return nil, fmt.Errorf("staging root %s is not writable: %w", root, err)
	}
	_ = os.Remove(probe)

	return &Area{root: root}, nil
}

// Root returns the staging root directory.
func (a *Area) Root() string {
	return a.root
}

// Allocate creates and returns a new empty directory for one entry. The
// uuid suffix keeps concurrent allocations for the same entry id apart.
func (a *Area) Allocate(entryID string) (string, error) {
	dir := filepath.Join(a.root, sanitize(entryID)+"-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("allocate staging dir for %s: %w", entryID, err)
	}
	return dir, nil
}

// sanitize strips path-hostile characters from an entry id so it can be
// used as a directory name component.
func sanitize(entryID string) string {
	if entryID == "" {
		return "entry"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, entryID)
}
