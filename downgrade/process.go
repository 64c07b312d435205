package downgrade

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	cf "github.com/gnolang/jdowngrader/internal/classfile"
	tt "github.com/gnolang/jdowngrader/internal/types"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ProcessPath lowers a jar (or zip), a class directory or a single class
// file at in and writes the result to out. An empty out rewrites in place.
func ProcessPath(ctx context.Context, logger *zap.Logger, t *Transformer, in, out string) (*Report, error) {
	if out == "" {
		out = in
	}
	info, err := os.Stat(in)
	if err != nil {
		return nil, fmt.Errorf("error accessing %s: %w", in, err)
	}
	switch {
	case info.IsDir():
		return ProcessDir(ctx, logger, t, in, out)
	case strings.HasSuffix(in, classSuffix):
		return ProcessClassFile(logger, t, in, out)
	default:
		return ProcessJar(ctx, logger, t, in, out)
	}
}

// classTask is one class of an archive or directory. read loads the input
// bytes and write stores the result.
type classTask struct {
	name  string
	read  func() ([]byte, error)
	write func([]byte) error
}

// transformAll runs tasks on a bounded worker pool and adds the shims the
// rewritten classes need to deps. A class that fails to transform is
// written unchanged and recorded in the report; reading or writing errors
// abort the run.
func (t *Transformer) transformAll(ctx context.Context, logger *zap.Logger, label string, tasks []classTask, deps *tt.DepSet, report *Report) error {
	if logger == nil {
		logger = t.logger
	}
	bar := t.newBar(len(tasks), label)
	defer bar.Finish()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.workers)
	for _, task := range tasks {
		if gctx.Err() != nil {
			break
		}
		task := task
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := task.read()
			if err != nil {
				return err
			}
			out, outcome, err := t.transform(task.name, data, deps.Collector())
			if err != nil {
				logger.Error("Error transforming class", zap.String("class", task.name), zap.Error(err))
			}
			report.record(task.name, outcome, err)
			if err := task.write(out); err != nil {
				return err
			}
			_ = bar.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (t *Transformer) newBar(n int, label string) *progressbar.ProgressBar {
	if !t.Progress {
		return progressbar.DefaultSilent(int64(n))
	}
	return progressbar.NewOptions(n,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(label),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}

// ProcessDir lowers every class below in into the same relative path below
// out, copies other files and writes the required shims next to them.
func ProcessDir(ctx context.Context, logger *zap.Logger, t *Transformer, in, out string) (*Report, error) {
	start := time.Now()
	before := t.Replaced()
	report := &Report{Input: in, Output: out}
	inPlace := sameDir(in, out)

	present := make(map[string]bool)
	var tasks []classTask
	err := filepath.WalkDir(in, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(in, path)
		if err != nil {
			return err
		}
		slashed := filepath.ToSlash(rel)
		if d.IsDir() {
			if strings.HasPrefix(slashed+"/", versionedPrefix) {
				return filepath.SkipDir
			}
			return nil
		}
		dst := filepath.Join(out, rel)
		name, isClass := classEntryName(slashed)
		if !isClass {
			if inPlace {
				return nil
			}
			report.Resources++
			return copyFile(path, dst)
		}

		present[name] = true
		read := func() ([]byte, error) { return os.ReadFile(path) }
		t.hierarchy.AddSource(name, read)
		tasks = append(tasks, classTask{
			name: name,
			read: read,
			write: func(data []byte) error {
				return writeFile(dst, data)
			},
		})
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("walking %s: %w", in, err)
	}

	var deps tt.DepSet
	if err := t.transformAll(ctx, logger, in, tasks, &deps, report); err != nil {
		return report, err
	}
	for _, s := range t.collectShims(sortedDeps(&deps), present, report) {
		if err := writeFile(filepath.Join(out, filepath.FromSlash(s.name)+classSuffix), s.data); err != nil {
			return report, err
		}
	}
	report.Replaced = t.Replaced() - before
	report.Duration = time.Since(start)
	return report, nil
}

// ProcessClassFile lowers a single class file. Shims cannot be bundled
// without a class root; the ones this class needs are reported as missing.
func ProcessClassFile(logger *zap.Logger, t *Transformer, in, out string) (*Report, error) {
	if logger == nil {
		logger = t.logger
	}
	start := time.Now()
	before := t.Replaced()
	report := &Report{Input: in, Output: out}

	data, err := os.ReadFile(in)
	if err != nil {
		return report, err
	}
	name := strings.TrimSuffix(filepath.Base(in), classSuffix)
	if c, err := cf.Parse(data); err == nil {
		name = c.Name
	}
	var deps tt.DepSet
	result, outcome, err := t.transform(name, data, deps.Collector())
	if err != nil {
		logger.Error("Error transforming class", zap.String("class", name), zap.Error(err))
	}
	report.record(name, outcome, err)
	if err := writeFile(out, result); err != nil {
		return report, err
	}
	report.Missing = sortedDeps(&deps)
	report.Replaced = t.Replaced() - before
	report.Duration = time.Since(start)
	return report, nil
}

func sameDir(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	return err1 == nil && err2 == nil && aa == bb
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return writeFile(dst, data)
}
