package scriptfile

import (
	"os"
	"path/filepath"
	"slices"
)

// Matcher decides which files clasp treats as script sources
type Matcher struct {
	extensions []string
	exclude    []string
}

// NewMatcher creates a matcher for the given extensions (".gs") and excluded
// base names ("appsscript.json")
func NewMatcher(extensions, exclude []string) *Matcher {
	return &Matcher{
		extensions: append([]string(nil), extensions...),
		exclude:    append([]string(nil), exclude...),
	}
}

// IsScriptFile returns true if the file has a recognized extension
func (m *Matcher) IsScriptFile(path string) bool {
	return slices.Contains(m.extensions, filepath.Ext(path))
}

// IsExcluded returns true if the base name is in the exclusion set
func (m *Matcher) IsExcluded(path string) bool {
	return slices.Contains(m.exclude, filepath.Base(path))
}

// Entry is one directory entry observed at listing time
type Entry struct {
	Name  string
	Path  string
	IsDir bool
}

// ListEntries returns the directories and regular files directly inside dir,
// sorted by name. Symlinks are resolved; FIFOs, sockets and device nodes are
// skipped. A dangling symlink is kept as a file so that copying it fails
// loudly. It does not recurse.
func ListEntries(dir string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		mode := de.Type()
		if mode&os.ModeSymlink != 0 {
			info, err := os.Stat(filepath.Join(dir, de.Name()))
			if err != nil {
				mode = 0
			} else {
				mode = info.Mode().Type()
			}
		}
		if !mode.IsDir() && !mode.IsRegular() {
			continue
		}
		isDir := mode.IsDir()
		entries = append(entries, Entry{
			Name:  de.Name(),
			Path:  filepath.Join(dir, de.Name()),
			IsDir: isDir,
		})
	}
	return entries, nil
}

// DiscoverScripts lists the non-directory entries directly inside dir that
// have a recognized extension and are not excluded
func (m *Matcher) DiscoverScripts(dir string) ([]Entry, error) {
	entries, err := ListEntries(dir)
	if err != nil {
		return nil, err
	}

	var scripts []Entry
	for _, e := range entries {
		if e.IsDir {
			continue
		}
		if !m.IsScriptFile(e.Name) || m.IsExcluded(e.Name) {
			continue
		}
		scripts = append(scripts, e)
	}
	return scripts, nil
}
