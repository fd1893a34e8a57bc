// Package collect walks a repository and builds the RepositorySnapshot every analyzer reads.
package collect

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/huangsam/repohealth/internal/contract"
	"github.com/huangsam/repohealth/schema"
	ignore "github.com/sabhiram/go-gitignore"
	log "github.com/sirupsen/logrus"
)

// Options tune a collection run.
type Options struct {
	Excludes []string // user patterns, see contract.ShouldIgnore
}

// DefaultExcludedDirs are dependency caches and build outputs. They are never traversed,
// but their presence is recorded on the snapshot.
var DefaultExcludedDirs = []string{
	"node_modules", "vendor", "dist", "build", "target", "out", "bin", "obj",
	".venv", "venv", "__pycache__", ".tox", ".gradle", ".next", "coverage",
}

// Collect produces a snapshot of root. Only a missing, unreadable or non-directory root
// is an error; anything below the root that cannot be read is recorded and skipped.
func Collect(ctx context.Context, root string, opts Options) (*schema.RepositorySnapshot, error) {
	start := time.Now()

	// 1. Validate the root itself
	resolvedRoot, err := checkRoot(root)
	if err != nil {
		return nil, err
	}

	// 2. Load the root .gitignore
	matcher := loadGitIgnore(root)

	// 3. Walk the tree
	w := &walker{
		root:         root,
		resolvedRoot: resolvedRoot,
		matcher:      matcher,
		excludes:     opts.Excludes,
	}
	if err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return w.visit(p, d, err)
	}); err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	// 4. Build the snapshot and detect ecosystems
	snap := schema.NewRepositorySnapshot(root, w.files)
	snap.ExcludedDirs = w.excludedDirs
	snap.SkippedSymlinks = w.skippedSymlinks
	snap.Unreadable = w.unreadable
	snap.CollectedAt = time.Now()
	detectEcosystems(snap)

	log.WithFields(log.Fields{
		"root":       root,
		"files":      snap.TotalFiles,
		"sources":    snap.SourceFiles,
		"bytes":      snap.TotalBytes,
		"primary":    snap.Primary,
		"ecosystems": snap.Ecosystems,
		"excluded":   len(snap.ExcludedDirs),
		"duration":   time.Since(start),
	}).Debug("Collected repository snapshot")

	return snap, nil
}

// checkRoot maps root failures onto the collector error taxonomy and returns the
// symlink-resolved root used for containment checks.
func checkRoot(root string) (string, error) {
	info, err := os.Stat(root)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("%w: %s", contract.ErrPathNotFound, root)
	case errors.Is(err, fs.ErrPermission):
		return "", fmt.Errorf("%w: %s", contract.ErrPermissionDenied, root)
	case err != nil:
		return "", fmt.Errorf("stat %s: %w", root, err)
	case !info.IsDir():
		return "", fmt.Errorf("%w: %s", contract.ErrNotDirectory, root)
	}

	if _, err := os.ReadDir(root); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return "", fmt.Errorf("%w: %s", contract.ErrPermissionDenied, root)
		}
		return "", fmt.Errorf("read %s: %w", root, err)
	}

	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", root, err)
	}
	return resolved, nil
}

func loadGitIgnore(root string) *ignore.GitIgnore {
	content, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return ignore.CompileIgnoreLines(strings.Split(string(content), "\n")...)
}

type walker struct {
	root         string
	resolvedRoot string
	matcher      *ignore.GitIgnore
	excludes     []string

	files           []schema.FileEntry
	excludedDirs    []schema.ExcludedDir
	skippedSymlinks []string
	unreadable      []string
}

func (w *walker) gitIgnored(rel string, isDir bool) bool {
	if w.matcher == nil {
		return false
	}
	if w.matcher.MatchesPath(rel) {
		return true
	}
	return isDir && w.matcher.MatchesPath(rel+"/")
}

func (w *walker) visit(p string, d fs.DirEntry, walkErr error) error {
	rel, err := filepath.Rel(w.root, p)
	if err != nil {
		return err
	}
	rel = filepath.ToSlash(rel)

	if walkErr != nil {
		if rel == "." {
			return walkErr
		}
		w.unreadable = append(w.unreadable, rel)
		log.WithError(walkErr).WithField("path", rel).Debug("Skipping unreadable path")
		if d != nil && d.IsDir() {
			return filepath.SkipDir
		}
		return nil
	}
	if rel == "." {
		return nil
	}

	name := d.Name()
	switch {
	case d.IsDir():
		return w.visitDir(rel, name)
	case d.Type()&fs.ModeSymlink != 0:
		return w.visitSymlink(p, rel)
	case !d.Type().IsRegular():
		return nil
	}

	if w.gitIgnored(rel, false) || contract.ShouldIgnore(rel, w.excludes) {
		return nil
	}
	info, err := d.Info()
	if err != nil {
		w.unreadable = append(w.unreadable, rel)
		return nil
	}
	w.files = append(w.files, newEntry(rel, info))
	return nil
}

func (w *walker) visitDir(rel, name string) error {
	if name == ".git" {
		return filepath.SkipDir
	}
	if slices.Contains(DefaultExcludedDirs, name) {
		w.excludedDirs = append(w.excludedDirs, schema.ExcludedDir{
			Path:      rel,
			GitIgnore: w.gitIgnored(rel, true),
		})
		return filepath.SkipDir
	}
	if w.gitIgnored(rel, true) || contract.ShouldIgnore(rel+"/", w.excludes) {
		return filepath.SkipDir
	}
	return nil
}

// visitSymlink indexes in-root links to regular files. Links leaving the root and
// dangling links are recorded; directory links are never followed.
func (w *walker) visitSymlink(p, rel string) error {
	target, err := filepath.EvalSymlinks(p)
	if err != nil || !within(w.resolvedRoot, target) {
		w.skippedSymlinks = append(w.skippedSymlinks, rel)
		return nil
	}
	info, err := os.Stat(target)
	if err != nil || !info.Mode().IsRegular() {
		return nil
	}
	if w.gitIgnored(rel, false) || contract.ShouldIgnore(rel, w.excludes) {
		return nil
	}
	w.files = append(w.files, newEntry(rel, info))
	return nil
}

func within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

func newEntry(rel string, info fs.FileInfo) schema.FileEntry {
	return schema.FileEntry{
		Path: rel,
		Size: info.Size(),
		Ext:  strings.ToLower(path.Ext(rel)),
		Mode: info.Mode(),
	}
}
