//go:build !windows

package homedir

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureCreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "alice")

	got, err := Ensure(dir+string(os.PathSeparator), "")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if got != dir {
		t.Fatalf("normalized path = %q, want %q", got, dir)
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("stat created dir: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("expected a directory")
	}
	if perm := info.Mode().Perm(); perm != 0o755 {
		t.Fatalf("directory mode = %o, want 755", perm)
	}
}

func TestEnsureCreatesSharedLink(t *testing.T) {
	shared := t.TempDir()
	dir := filepath.Join(t.TempDir(), "bob")

	if _, err := Ensure(dir, shared); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	link := filepath.Join(dir, SharedLinkName)
	target, err := os.Readlink(link)
	if err != nil {
		t.Fatalf("readlink: %v", err)
	}
	if target != shared {
		t.Fatalf("link target = %q, want %q", target, shared)
	}

	// A second call must not fail on the existing link.
	if _, err := Ensure(dir, shared); err != nil {
		t.Fatalf("ensure (idempotent): %v", err)
	}
}

func TestEnsureRejectsFiles(t *testing.T) {
	file := filepath.Join(t.TempDir(), "occupied")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := Ensure(file, ""); err == nil {
		t.Fatal("expected error when home path is a file")
	}
}

func TestEnsureEmptyPath(t *testing.T) {
	if _, err := Ensure("", ""); err == nil {
		t.Fatal("expected error for empty path")
	}
}
