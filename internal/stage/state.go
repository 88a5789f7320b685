package stage

import "time"

// StagedFile is one entry listed from the source directory at staging time
type StagedFile struct {
	Name       string `json:"name"`
	SourcePath string `json:"source_path"` // absolute path in the source dir
	DestPath   string `json:"dest_path"`   // absolute path in the project root
	IsDir      bool   `json:"is_dir"`      // directories are listed but never copied
	Copied     bool   `json:"copied"`
}

// StagedSet is the ordered set of source entries for one push
type StagedSet struct {
	Files []StagedFile `json:"files"`
}

// Copied returns the entries that were actually copied into the root
func (s *StagedSet) Copied() []StagedFile {
	var out []StagedFile
	for _, f := range s.Files {
		if f.Copied {
			out = append(out, f)
		}
	}
	return out
}

// Manifest is the on-disk record of a staged set awaiting cleanup
type Manifest struct {
	ProjectRoot string    `json:"project_root"`
	StagedAt    time.Time `json:"staged_at"`
	Set         StagedSet `json:"set"`
}

// PulledFile is one root file relocated into the source directory
type PulledFile struct {
	Name     string
	FromPath string
	ToPath   string
}

// PulledSet is the ordered set of files relocated after a pull
type PulledSet struct {
	Files []PulledFile
}
