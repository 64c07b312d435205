// Package scanner finds the archives a classpath entry stands for.
package scanner

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// Archive extensions a classpath wildcard expands to.
var Archives = []string{".jar", ".zip"}

type FileInfo struct {
	Path string
	Size int64
}

type Scanner struct {
	rootDir    string
	extensions []string
	recursive  bool
}

// New returns a scanner over the direct children of rootDir.
func New(rootDir string, extensions ...string) *Scanner {
	return &Scanner{
		rootDir:    rootDir,
		extensions: extensions,
	}
}

// Recursive makes Scan descend into subdirectories.
func (s *Scanner) Recursive() *Scanner {
	s.recursive = true
	return s
}

// Scan returns the matching files sorted by path.
func (s *Scanner) Scan() ([]FileInfo, error) {
	var files []FileInfo
	err := filepath.WalkDir(s.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != s.rootDir && !s.recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !s.isTargetFile(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, FileInfo{Path: path, Size: info.Size()})
		return nil
	})
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, err
}

func (s *Scanner) isTargetFile(path string) bool {
	if len(s.extensions) == 0 {
		return true
	}

	ext := strings.ToLower(filepath.Ext(path))
	for _, targetExt := range s.extensions {
		if ext == targetExt {
			return true
		}
	}
	return false
}

// Expand resolves one classpath entry. "dir/*" stands for the archives
// directly inside dir and "dir/**" for every archive below it; any other
// entry is returned as is.
func Expand(entry string) ([]string, error) {
	var s *Scanner
	switch {
	case strings.HasSuffix(entry, "/**"):
		s = New(strings.TrimSuffix(entry, "/**"), Archives...).Recursive()
	case strings.HasSuffix(entry, "/*"):
		s = New(strings.TrimSuffix(entry, "/*"), Archives...)
	default:
		return []string{entry}, nil
	}
	files, err := s.Scan()
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	return paths, nil
}
