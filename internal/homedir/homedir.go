// Package homedir provisions per-user working directories for spawned
// services.
package homedir

import (
	"fmt"
	"os"
	"path/filepath"
)

// SharedLinkName is the symlink created inside each home pointing at the
// shared directory, when one is configured.
const SharedLinkName = "Shared"

// Ensure normalizes dir, creates it when missing (mode 0755) and, when
// sharedDir is non-empty, links <dir>/Shared to it. The normalized absolute
// path is returned.
func Ensure(dir, sharedDir string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("home directory is required")
	}

	// Strip trailing separators, except for the root directory itself.
	if dir != string(os.PathSeparator) {
		for len(dir) > 1 && os.IsPathSeparator(dir[len(dir)-1]) {
			dir = dir[:len(dir)-1]
		}
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}

	info, err := os.Stat(abs)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(abs, 0o755); err != nil {
			return "", fmt.Errorf("create home directory: %w", err)
		}
	case err != nil:
		return "", fmt.Errorf("stat home directory: %w", err)
	case !info.IsDir():
		return "", fmt.Errorf("home path %s is not a directory", abs)
	}

	if sharedDir != "" {
		link := filepath.Join(abs, SharedLinkName)
		if _, err := os.Lstat(link); os.IsNotExist(err) {
			if err := os.Symlink(sharedDir, link); err != nil {
				return "", fmt.Errorf("link shared directory: %w", err)
			}
		} else if err != nil {
			return "", fmt.Errorf("stat shared link: %w", err)
		}
	}

	return abs, nil
}
