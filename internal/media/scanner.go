// Package media finds uploaded files referenced from stored HTML fragments.
//
// Fragments reference uploads through src attributes whose value starts with a
// public mount prefix ("/uploads/..." or "/media/..."). The Scanner maps those
// values back to files on disk, and only ever returns paths that stay inside
// the permitted upload roots after normalization.
package media

import (
	"net/url"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
)

// MountPrefixes are the public URL prefixes uploaded files are served under.
var MountPrefixes = []string{"/uploads/", "/media/"}

// Scanner resolves media references against a base directory.
type Scanner struct {
	baseDir string
	roots   []string
}

// NewScanner creates a Scanner. Relative roots are resolved against baseDir.
func NewScanner(baseDir string, roots ...string) *Scanner {
	base := absClean(baseDir)
	s := &Scanner{baseDir: base}
	for _, r := range roots {
		if !filepath.IsAbs(r) {
			r = filepath.Join(base, r)
		}
		s.roots = append(s.roots, filepath.Clean(r))
	}
	return s
}

// ExtractMediaPaths returns the absolute paths of every permitted media file
// referenced by fragment. It never fails; malformed input yields no paths.
func ExtractMediaPaths(fragment, baseDir string, roots []string) []string {
	return NewScanner(baseDir, roots...).Extract(fragment)
}

// BaseDir returns the directory public paths are resolved against.
func (s *Scanner) BaseDir() string {
	return s.baseDir
}

// Roots returns the permitted upload roots.
func (s *Scanner) Roots() []string {
	return append([]string(nil), s.roots...)
}

// Extract returns the de-duplicated absolute paths referenced by src
// attributes in fragment, in document order.
func (s *Scanner) Extract(fragment string) []string {
	if strings.TrimSpace(fragment) == "" {
		return nil
	}

	var paths []string
	seen := make(map[string]struct{})
	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return paths
		case html.StartTagToken, html.SelfClosingTagToken:
			_, hasAttr := z.TagName()
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				if string(key) != "src" {
					continue
				}
				p, ok := s.Resolve(string(val))
				if !ok {
					continue
				}
				if _, dup := seen[p]; dup {
					continue
				}
				seen[p] = struct{}{}
				paths = append(paths, p)
			}
		}
	}
}

// Resolve maps a public src value to an absolute path. ok is false when the
// value has no mount prefix, is malformed, or resolves outside every root.
func (s *Scanner) Resolve(src string) (string, bool) {
	src = strings.TrimSpace(src)
	if i := strings.IndexAny(src, "?#"); i >= 0 {
		src = src[:i]
	}
	if !HasMountPrefix(src) {
		return "", false
	}
	rel, err := url.PathUnescape(src)
	if err != nil || strings.ContainsRune(rel, 0) {
		return "", false
	}
	full := filepath.Join(s.baseDir, filepath.FromSlash(rel))
	if !s.Contains(full) {
		return "", false
	}
	return full, true
}

// Contains reports whether path, once cleaned, is a strict descendant of one
// of the roots.
func (s *Scanner) Contains(path string) bool {
	path = filepath.Clean(path)
	for _, root := range s.roots {
		if isDescendant(root, path) {
			return true
		}
	}
	return false
}

// HasMountPrefix reports whether src starts with one of the public mount prefixes.
func HasMountPrefix(src string) bool {
	for _, prefix := range MountPrefixes {
		if strings.HasPrefix(src, prefix) {
			return true
		}
	}
	return false
}

func isDescendant(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return !filepath.IsAbs(rel)
}

func absClean(dir string) string {
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return filepath.Clean(dir)
	}
	return abs
}
