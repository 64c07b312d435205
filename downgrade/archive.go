package downgrade

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	tt "github.com/gnolang/jdowngrader/internal/types"
	"go.uber.org/zap"
)

// signatureFile reports whether entry is part of a jar signature, which no
// longer matches once classes are rewritten.
func signatureFile(entry string) bool {
	if !strings.HasPrefix(entry, "META-INF/") || strings.Count(entry, "/") != 1 {
		return false
	}
	switch strings.ToUpper(path.Ext(entry)) {
	case ".SF", ".RSA", ".DSA", ".EC":
		return true
	}
	return false
}

// ProcessJar lowers every class of the jar at in and writes a new jar to
// out. Resources are copied as they are, multi-release variants under
// META-INF/versions/ and signature files are dropped, and the shim classes
// the rewritten code needs are bundled from the runtime root.
func ProcessJar(ctx context.Context, logger *zap.Logger, t *Transformer, in, out string) (*Report, error) {
	if logger == nil {
		logger = t.logger
	}
	start := time.Now()
	before := t.Replaced()
	report := &Report{Input: in, Output: out}

	zr, err := zip.OpenReader(in)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", in, err)
	}
	defer zr.Close()

	results := make([][]byte, len(zr.File))
	present := make(map[string]bool)
	var tasks []classTask
	for i, f := range zr.File {
		name, ok := classEntryName(f.Name)
		if !ok {
			continue
		}
		f, i := f, i
		present[name] = true
		read := func() ([]byte, error) { return readEntry(f) }
		t.hierarchy.AddSource(name, read)
		tasks = append(tasks, classTask{
			name: name,
			read: read,
			write: func(data []byte) error {
				results[i] = data
				return nil
			},
		})
	}

	var deps tt.DepSet
	if err := t.transformAll(ctx, logger, filepath.Base(in), tasks, &deps, report); err != nil {
		return report, err
	}
	shims := t.collectShims(sortedDeps(&deps), present, report)

	tmp, err := os.CreateTemp(filepath.Dir(out), ".jdowngrader-*.jar")
	if err != nil {
		return report, fmt.Errorf("creating output: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := writeJar(tmp, zr.File, results, shims, report); err != nil {
		tmp.Close()
		return report, err
	}
	if err := tmp.Close(); err != nil {
		return report, err
	}
	// Release the input before replacing it when rewriting in place.
	zr.Close()
	if err := os.Rename(tmp.Name(), out); err != nil {
		return report, fmt.Errorf("writing %s: %w", out, err)
	}

	report.Replaced = t.Replaced() - before
	report.Duration = time.Since(start)
	logger.Info("jar processed",
		zap.String("input", in),
		zap.String("output", out),
		zap.Int("transformed", report.Transformed),
		zap.Int("failed", report.Failed()),
		zap.Int("shims", len(report.Shims)))
	return report, nil
}

func writeJar(f *os.File, entries []*zip.File, results [][]byte, shims []shim, report *Report) error {
	w := zip.NewWriter(f)
	for i, e := range entries {
		if strings.HasPrefix(e.Name, versionedPrefix) || signatureFile(e.Name) {
			continue
		}
		if results[i] == nil {
			if _, isClass := classEntryName(e.Name); !isClass && !strings.HasSuffix(e.Name, "/") {
				report.Resources++
			}
			if err := w.Copy(e); err != nil {
				return fmt.Errorf("copying %s: %w", e.Name, err)
			}
			continue
		}
		hdr := &zip.FileHeader{
			Name:     e.Name,
			Comment:  e.Comment,
			Method:   e.Method,
			Modified: e.Modified,
		}
		hdr.SetMode(e.Mode())
		if err := writeEntry(w, hdr, results[i]); err != nil {
			return err
		}
	}
	for _, s := range shims {
		hdr := &zip.FileHeader{
			Name:     s.name + classSuffix,
			Method:   zip.Deflate,
			Modified: time.Now(),
		}
		if err := writeEntry(w, hdr, s.data); err != nil {
			return err
		}
	}
	return w.Close()
}

func writeEntry(w *zip.Writer, hdr *zip.FileHeader, data []byte) error {
	ew, err := w.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("writing %s: %w", hdr.Name, err)
	}
	if _, err := ew.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", hdr.Name, err)
	}
	return nil
}
