package ingest

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pwalhed/photodex/internal/errors"
)

// defaultExtensions is the built-in set of ingestable file extensions,
// lowercase with leading dot. Matches the formats the decoder understands.
var defaultExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// resolveFolders resolves every requested folder against the catalog root
// and enforces the scope invariant: each one must lie inside the root.
// Relative folders resolve against the root; absolute folders must already
// be under it. Fails before any other work so a violation has zero side
// effects.
func resolveFolders(root string, folders []string) ([]string, error) {
	if len(folders) == 0 {
		return nil, errors.NewInvalidRequest("at least one folder is required")
	}

	resolved := make([]string, 0, len(folders))
	for _, folder := range folders {
		path := folder
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}
		path = filepath.Clean(path)

		// Resolve symlinks so a link pointing outside the root cannot
		// smuggle a folder past the prefix check.
		if real, err := filepath.EvalSymlinks(path); err == nil {
			path = real
		}

		if !isUnderRoot(root, path) {
			return nil, errors.NewScopeViolation(folder, root)
		}
		resolved = append(resolved, path)
	}
	return resolved, nil
}

// isUnderRoot reports whether path equals root or is nested inside it.
func isUnderRoot(root, path string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}

// enumerate lists eligible image files under the resolved folders in a
// fully deterministic order: folders in the given order, lexicographic
// within a folder, recursion depth-first in the same order. Checkpoints
// index into exactly this ordering, so it must be reproducible across runs
// for the same folders and flags. Missing or empty folders contribute
// nothing; they are not errors.
func enumerate(folders []string, recursive bool, extensions map[string]bool) []string {
	var files []string
	for _, folder := range folders {
		if recursive {
			// WalkDir visits entries in lexical order
			_ = filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return nil
				}
				if !d.IsDir() && eligible(path, extensions) {
					files = append(files, path)
				}
				return nil
			})
			continue
		}

		// ReadDir returns entries sorted by filename
		entries, err := os.ReadDir(folder)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			path := filepath.Join(folder, entry.Name())
			if eligible(path, extensions) {
				files = append(files, path)
			}
		}
	}
	return files
}

// eligible checks the file extension against the configured set.
func eligible(path string, extensions map[string]bool) bool {
	return extensions[strings.ToLower(filepath.Ext(path))]
}

// subFolderOf extracts the first path segment of a root-relative path,
// used for grouping. Root-level files have no sub-folder.
func subFolderOf(relPath string) string {
	rel := filepath.ToSlash(relPath)
	if i := strings.Index(rel, "/"); i >= 0 {
		return rel[:i]
	}
	return ""
}
