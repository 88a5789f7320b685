package stage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/schaermu/claspsync/internal/scriptfile"
)

// Stager moves script files between the source directory and the project
// root, where clasp expects them
type Stager struct {
	root         string
	sourceDir    string
	manifestPath string
	matcher      *scriptfile.Matcher
	logger       *slog.Logger
}

// Options configures a Stager
type Options struct {
	ProjectRoot  string
	SourceDir    string
	ManifestPath string // empty disables the staging manifest
	Matcher      *scriptfile.Matcher
}

// New creates a new Stager
func New(opts Options, logger *slog.Logger) *Stager {
	return &Stager{
		root:         opts.ProjectRoot,
		sourceDir:    opts.SourceDir,
		manifestPath: opts.ManifestPath,
		matcher:      opts.Matcher,
		logger:       logger,
	}
}

// Plan lists the source directory without touching the filesystem
func (s *Stager) Plan() (*StagedSet, error) {
	entries, err := scriptfile.ListEntries(s.sourceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list source directory: %w", err)
	}

	set := &StagedSet{Files: make([]StagedFile, 0, len(entries))}
	for _, e := range entries {
		set.Files = append(set.Files, StagedFile{
			Name:       e.Name,
			SourcePath: e.Path,
			DestPath:   filepath.Join(s.root, e.Name),
			IsDir:      e.IsDir,
		})
	}
	return set, nil
}

// Stage copies every regular file directly inside the source directory into
// the project root, overwriting same-named files. Directories are skipped.
// The returned set is also written to the manifest when one is configured.
func (s *Stager) Stage() (*StagedSet, error) {
	set, err := s.Plan()
	if err != nil {
		return nil, err
	}

	for i := range set.Files {
		f := &set.Files[i]
		if f.IsDir {
			s.logger.Debug("skipping directory", "name", f.Name)
			continue
		}
		if err := copyFile(f.SourcePath, f.DestPath); err != nil {
			// Record what was already copied so --clean can undo it
			if mErr := s.saveManifest(set); mErr != nil {
				s.logger.Warn("failed to save staging manifest", "error", mErr)
			}
			return set, fmt.Errorf("failed to stage %s: %w", f.Name, err)
		}
		f.Copied = true
		s.logger.Info("copied to root directory", "file", f.Name)
	}

	if err := s.saveManifest(set); err != nil {
		return set, fmt.Errorf("failed to save staging manifest: %w", err)
	}

	return set, nil
}

// Cleanup removes staged copies from the project root. For each listed entry,
// a same-named regular file in the root with a recognized extension is
// deleted; anything else is left alone. It returns the removed names.
func (s *Stager) Cleanup(set *StagedSet) ([]string, error) {
	var removed []string
	for _, f := range set.Files {
		if !s.matcher.IsScriptFile(f.Name) {
			continue
		}

		dest := filepath.Join(s.root, f.Name)
		info, err := os.Lstat(dest)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				s.logger.Debug("staged copy already gone", "file", f.Name)
				continue
			}
			return removed, fmt.Errorf("failed to inspect %s: %w", dest, err)
		}
		if !info.Mode().IsRegular() {
			continue
		}

		if err := os.Remove(dest); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("failed to remove %s: %w", dest, err)
		}
		removed = append(removed, f.Name)
		s.logger.Info("removed from root directory", "file", f.Name)
	}

	if err := s.removeManifest(); err != nil {
		return removed, fmt.Errorf("failed to remove staging manifest: %w", err)
	}

	return removed, nil
}

// PlanRelocation lists the root files a relocation would move
func (s *Stager) PlanRelocation() (*PulledSet, error) {
	scripts, err := s.matcher.DiscoverScripts(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list project root: %w", err)
	}

	set := &PulledSet{Files: make([]PulledFile, 0, len(scripts))}
	for _, e := range scripts {
		set.Files = append(set.Files, PulledFile{
			Name:     e.Name,
			FromPath: e.Path,
			ToPath:   filepath.Join(s.sourceDir, e.Name),
		})
	}
	return set, nil
}

// Relocate moves recognized, non-excluded files from the project root into
// the source directory, creating it when missing. Existing files of the same
// name in the source directory are overwritten.
func (s *Stager) Relocate() (*PulledSet, error) {
	set, err := s.PlanRelocation()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(s.sourceDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create source directory: %w", err)
	}

	for i, f := range set.Files {
		if err := os.Rename(f.FromPath, f.ToPath); err != nil {
			return &PulledSet{Files: set.Files[:i]}, fmt.Errorf("failed to move %s: %w", f.Name, err)
		}
		s.logger.Info("moved to source directory", "file", f.Name)
	}

	return set, nil
}

// LoadManifest returns the staged set recorded by an earlier Stage call, or
// nil when there is none
func (s *Stager) LoadManifest() (*Manifest, error) {
	if s.manifestPath == "" {
		return nil, nil
	}

	data, err := os.ReadFile(s.manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse staging manifest: %w", err)
	}
	if m.ProjectRoot != "" && filepath.Clean(m.ProjectRoot) != filepath.Clean(s.root) {
		return nil, fmt.Errorf("staging manifest belongs to %s, not %s", m.ProjectRoot, s.root)
	}

	return &m, nil
}

// saveManifest persists the staged set
func (s *Stager) saveManifest(set *StagedSet) error {
	if s.manifestPath == "" {
		return nil
	}

	m := Manifest{
		ProjectRoot: s.root,
		StagedAt:    time.Now().UTC(),
		Set:         *set,
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.manifestPath), 0755); err != nil {
		return err
	}
	return os.WriteFile(s.manifestPath, data, 0644)
}

func (s *Stager) removeManifest() error {
	if s.manifestPath == "" {
		return nil
	}
	if err := os.Remove(s.manifestPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// errNotRegular rejects sources that would block or copy garbage on open
var errNotRegular = errors.New("not a regular file")

// copyFile writes src to a temp file next to dst and renames it into place,
// keeping the source permissions. Only regular files (after resolving
// symlinks) are accepted; opening a FIFO would block forever.
func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s: %w", src, errNotRegular)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = in.Close()
	}()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".claspsync-tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	// No-op once the rename succeeded
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	_, err = io.Copy(tmp, in)
	if err == nil {
		err = tmp.Chmod(info.Mode().Perm())
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}

	return os.Rename(tmpPath, dst)
}
