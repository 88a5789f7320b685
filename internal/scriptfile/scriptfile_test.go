package scriptfile

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"
)

func defaultMatcher() *Matcher {
	return NewMatcher([]string{".gs", ".js", ".html"}, []string{"appsscript.json", "publish.js", "new_publish.js"})
}

func TestIsScriptFile(t *testing.T) {
	m := defaultMatcher()

	tests := []struct {
		path string
		want bool
	}{
		{"Code.gs", true},
		{"index.html", true},
		{"/project/src/util.js", true},
		{"appsscript.json", false},
		{"README.md", false},
		{"Code.GS", false},
		{"gs", false},
		{".gs.bak", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := m.IsScriptFile(tt.path); got != tt.want {
				t.Errorf("IsScriptFile(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestIsExcluded(t *testing.T) {
	m := defaultMatcher()

	if !m.IsExcluded("/project/publish.js") {
		t.Error("publish.js should be excluded")
	}
	if !m.IsExcluded("appsscript.json") {
		t.Error("appsscript.json should be excluded")
	}
	if m.IsExcluded("Code.gs") {
		t.Error("Code.gs should not be excluded")
	}
	if m.IsExcluded("my_publish.js") {
		t.Error("exclusion must match the exact name")
	}
}

func TestNewMatcher_CopiesInput(t *testing.T) {
	exts := []string{".gs"}
	m := NewMatcher(exts, nil)
	exts[0] = ".txt"

	if !m.IsScriptFile("Code.gs") {
		t.Error("matcher should not alias the caller's slice")
	}
}

func TestListEntries(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.gs", "a.html"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(filepath.Join(dir, "nested", "deep"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "nested", "inner.gs"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	entries, err := ListEntries(dir)
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}

	if len(entries) != 3 {
		t.Fatalf("expected 3 entries (non-recursive), got %d: %+v", len(entries), entries)
	}

	// Sorted by name
	wantNames := []string{"a.html", "b.gs", "nested"}
	for i, want := range wantNames {
		if entries[i].Name != want {
			t.Errorf("entries[%d].Name = %s, want %s", i, entries[i].Name, want)
		}
	}
	if !entries[2].IsDir {
		t.Error("nested should be classified as a directory")
	}
	if entries[0].Path != filepath.Join(dir, "a.html") {
		t.Errorf("unexpected path %s", entries[0].Path)
	}
}

func TestListEntries_SymlinkToDir(t *testing.T) {
	dir := t.TempDir()
	target := t.TempDir()
	if err := os.Symlink(target, filepath.Join(dir, "linked")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	entries, err := ListEntries(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || !entries[0].IsDir {
		t.Errorf("symlinked directory should be classified as a directory: %+v", entries)
	}
}

func TestListEntries_MissingDir(t *testing.T) {
	_, err := ListEntries(filepath.Join(t.TempDir(), "missing"))
	if !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestDiscoverScripts(t *testing.T) {
	dir := t.TempDir()
	files := []string{"Code.gs", "index.html", "appsscript.json", "publish.js", "notes.txt", "util.js"}
	for _, name := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0644); err != nil {
			t.Fatal(err)
		}
	}
	// A directory with a script-like name is never a candidate
	if err := os.Mkdir(filepath.Join(dir, "lib.js"), 0755); err != nil {
		t.Fatal(err)
	}

	scripts, err := defaultMatcher().DiscoverScripts(dir)
	if err != nil {
		t.Fatalf("DiscoverScripts: %v", err)
	}

	got := make(map[string]bool)
	for _, s := range scripts {
		got[s.Name] = true
	}

	for _, want := range []string{"Code.gs", "index.html", "util.js"} {
		if !got[want] {
			t.Errorf("expected %s to be discovered", want)
		}
	}
	for _, unwanted := range []string{"appsscript.json", "publish.js", "notes.txt", "lib.js"} {
		if got[unwanted] {
			t.Errorf("did not expect %s to be discovered", unwanted)
		}
	}
}

func TestListEntries_SkipsSpecialFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Code.gs"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := syscall.Mkfifo(filepath.Join(dir, "pipe.gs"), 0644); err != nil {
		t.Skipf("mkfifo not supported: %v", err)
	}
	// A symlink to the FIFO resolves to a non-regular file as well
	if err := os.Symlink(filepath.Join(dir, "pipe.gs"), filepath.Join(dir, "linked.gs")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	entries, err := ListEntries(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name != "Code.gs" {
		t.Errorf("entries = %+v, want only Code.gs", entries)
	}
}

func TestListEntries_KeepsDanglingSymlink(t *testing.T) {
	dir := t.TempDir()
	if err := os.Symlink(filepath.Join(dir, "missing"), filepath.Join(dir, "broken.gs")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	entries, err := ListEntries(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].IsDir {
		t.Errorf("dangling symlink should be listed as a file: %+v", entries)
	}
}
