package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFixOwnershipLeavesFileReadable(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(p, []byte("{}"), 0600); err != nil {
		t.Fatal(err)
	}
	FixOwnership(p)

	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "{}" {
		t.Errorf("unexpected content: %q", data)
	}
}

func TestFixOwnershipMissingPath(t *testing.T) {
	FixOwnership(filepath.Join(t.TempDir(), "missing", "config.json"))
}

func TestFixOwnershipAfterSave(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if err := Save(defaults()); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(home, ".config", "hexit")); err != nil {
		t.Fatal(err)
	}
}
