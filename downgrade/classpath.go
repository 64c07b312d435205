package downgrade

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	classSuffix     = ".class"
	versionedPrefix = "META-INF/versions/"
)

// classRoot is a read-only set of classes: a directory tree or a jar.
type classRoot interface {
	// names returns the internal names of every class in the root.
	names() []string
	open(name string) ([]byte, bool, error)
	Close() error
}

func openClassRoot(path string) (classRoot, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing %s: %w", path, err)
	}
	if info.IsDir() {
		return dirRoot(path), nil
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return newJarRoot(zr), nil
}

type dirRoot string

func (d dirRoot) names() []string {
	var out []string
	_ = filepath.WalkDir(string(d), func(path string, e fs.DirEntry, err error) error {
		if err != nil || e.IsDir() || !strings.HasSuffix(path, classSuffix) {
			return nil
		}
		rel, err := filepath.Rel(string(d), path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, versionedPrefix) {
			return nil
		}
		out = append(out, strings.TrimSuffix(rel, classSuffix))
		return nil
	})
	sort.Strings(out)
	return out
}

func (d dirRoot) open(name string) ([]byte, bool, error) {
	data, err := os.ReadFile(filepath.Join(string(d), filepath.FromSlash(name)+classSuffix))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (dirRoot) Close() error { return nil }

type jarRoot struct {
	closer  io.Closer
	entries map[string]*zip.File
}

func newJarRoot(zr *zip.ReadCloser) *jarRoot {
	j := &jarRoot{closer: zr, entries: make(map[string]*zip.File)}
	for _, f := range zr.File {
		if name, ok := classEntryName(f.Name); ok {
			j.entries[name] = f
		}
	}
	return j
}

// classEntryName returns the internal class name of a jar entry, skipping
// multi-release variants.
func classEntryName(entry string) (string, bool) {
	if !strings.HasSuffix(entry, classSuffix) || strings.HasPrefix(entry, versionedPrefix) {
		return "", false
	}
	return strings.TrimSuffix(entry, classSuffix), true
}

func (j *jarRoot) names() []string {
	out := make([]string, 0, len(j.entries))
	for name := range j.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (j *jarRoot) open(name string) ([]byte, bool, error) {
	f, ok := j.entries[name]
	if !ok {
		return nil, false, nil
	}
	data, err := readEntry(f)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (j *jarRoot) Close() error {
	return j.closer.Close()
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.Name, err)
	}
	return data, nil
}
