package schema

import (
	"io/fs"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"time"
)

// FileEntry describes one indexed file. Path is slash-separated and relative to the root.
type FileEntry struct {
	Path string      `json:"path"`
	Size int64       `json:"size"`
	Ext  string      `json:"ext"`
	Mode fs.FileMode `json:"mode"`
}

// ExcludedDir is a conventional vendor or build directory that was not traversed.
type ExcludedDir struct {
	Path      string `json:"path"`
	GitIgnore bool   `json:"gitignored"` // covered by the root .gitignore
}

// RepositorySnapshot is the immutable record of a scanned tree.
// It is created once by the collector and only read afterwards.
type RepositorySnapshot struct {
	Root            string               `json:"root"`
	Files           []FileEntry          `json:"files"` // sorted by path
	TotalFiles      int                  `json:"total_files"`
	SourceFiles     int                  `json:"source_files"`
	TotalBytes      int64                `json:"total_bytes"`
	Markers         map[string]Ecosystem `json:"markers"`    // marker path -> ecosystem
	Ecosystems      []Ecosystem          `json:"ecosystems"` // in EcosystemPriority order
	Primary         Ecosystem            `json:"primary"`
	Extensions      map[string]int       `json:"extensions"`
	SourceShares    map[Ecosystem]int    `json:"source_shares"`
	ExcludedDirs    []ExcludedDir        `json:"excluded_dirs"`
	SkippedSymlinks []string             `json:"skipped_symlinks"`
	Unreadable      []string             `json:"unreadable"`
	CollectedAt     time.Time            `json:"collected_at"`

	index map[string]int
}

// NewRepositorySnapshot finalizes a snapshot: files are sorted and indexed for lookups.
func NewRepositorySnapshot(root string, files []FileEntry) *RepositorySnapshot {
	sorted := slices.Clone(files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	snap := &RepositorySnapshot{
		Root:         root,
		Files:        sorted,
		TotalFiles:   len(sorted),
		Markers:      make(map[string]Ecosystem),
		Extensions:   make(map[string]int),
		SourceShares: make(map[Ecosystem]int),
		index:        make(map[string]int, len(sorted)),
	}
	for i, f := range sorted {
		snap.index[f.Path] = i
		snap.TotalBytes += f.Size
		if f.Ext != "" {
			snap.Extensions[f.Ext]++
		}
	}
	return snap
}

// Has reports whether an ecosystem was detected.
func (s *RepositorySnapshot) Has(eco Ecosystem) bool {
	return slices.Contains(s.Ecosystems, eco)
}

// HasFile reports whether the relative path was indexed.
func (s *RepositorySnapshot) HasFile(rel string) bool {
	_, ok := s.Lookup(rel)
	return ok
}

// Lookup returns the entry for a relative path.
func (s *RepositorySnapshot) Lookup(rel string) (FileEntry, bool) {
	if s.index == nil {
		for _, f := range s.Files {
			if f.Path == rel {
				return f, true
			}
		}
		return FileEntry{}, false
	}
	i, ok := s.index[rel]
	if !ok {
		return FileEntry{}, false
	}
	return s.Files[i], true
}

// FilesByExt returns the entries whose extension is one of exts (with leading dot).
func (s *RepositorySnapshot) FilesByExt(exts ...string) []FileEntry {
	var out []FileEntry
	for _, f := range s.Files {
		if slices.Contains(exts, f.Ext) {
			out = append(out, f)
		}
	}
	return out
}

// FilesNamed returns the entries whose base name is one of names, at any depth.
func (s *RepositorySnapshot) FilesNamed(names ...string) []FileEntry {
	var out []FileEntry
	for _, f := range s.Files {
		if slices.Contains(names, path.Base(f.Path)) {
			out = append(out, f)
		}
	}
	return out
}

// MarkersFor returns the marker paths of one ecosystem, sorted.
func (s *RepositorySnapshot) MarkersFor(eco Ecosystem) []string {
	var out []string
	for p, e := range s.Markers {
		if e == eco {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// Abs converts a snapshot-relative path into an absolute filesystem path.
func (s *RepositorySnapshot) Abs(rel string) string {
	return filepath.Join(s.Root, filepath.FromSlash(rel))
}
