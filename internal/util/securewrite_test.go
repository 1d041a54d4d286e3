package util

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	sb, _ := NewStateBoxAt(dir)
	path := filepath.Join(dir, "preferences", "alice.json")

	for _, content := range []string{"first", "second"} {
		if err := WriteFileAtomic(sb, path, []byte(content)); err != nil {
			t.Fatalf("WriteFileAtomic(%q) failed: %v", content, err)
		}
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("content = %q, want %q", got, "second")
	}

	info, _ := os.Stat(path)
	if info.Mode().Perm() != PrivateFileMode {
		t.Errorf("mode = %o, want %o", info.Mode().Perm(), PrivateFileMode)
	}

	leftovers, _ := filepath.Glob(path + ".tmp.*")
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestWriteFileAtomic_ReadOnly(t *testing.T) {
	dir := t.TempDir()
	sb, _ := NewStateBoxAt(dir)
	sb.SetReadOnly(true)
	path := filepath.Join(dir, "alice.json")

	if err := WriteFileAtomic(sb, path, []byte("x")); !errors.Is(err, ErrReadOnlyMode) {
		t.Fatalf("expected ErrReadOnlyMode, got %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file should not exist in read-only mode")
	}
}

func TestWriteJSONAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	in := map[string]string{"model.selected": "claude-3-5-sonnet"}

	if err := WriteJSONAtomic(nil, path, in); err != nil {
		t.Fatalf("WriteJSONAtomic failed: %v", err)
	}

	data, _ := os.ReadFile(path)
	var out map[string]string
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("invalid JSON written: %v", err)
	}
	if out["model.selected"] != "claude-3-5-sonnet" {
		t.Errorf("unexpected document: %v", out)
	}
}

func TestQuarantine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "alice.json")

	moved, err := Quarantine(nil, path)
	if err != nil || moved != "" {
		t.Fatalf("missing file: got %q, %v", moved, err)
	}

	if err := os.WriteFile(path, []byte("{broken"), 0o600); err != nil {
		t.Fatal(err)
	}
	moved, err = Quarantine(nil, path)
	if err != nil {
		t.Fatalf("Quarantine failed: %v", err)
	}
	if moved != path+".corrupt" {
		t.Errorf("moved to %q", moved)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("original should be gone")
	}
}
