package downgrade

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gnolang/jdowngrader/internal"
	"go.uber.org/zap"
)

// Watch lowers every class file written below in into out until ctx is
// done. Newly required shims are written to out as they appear. out must
// not be inside in.
func Watch(ctx context.Context, logger *zap.Logger, t *Transformer, in, out string) error {
	if logger == nil {
		logger = t.logger
	}
	handle := func(path string) error {
		rel, err := filepath.Rel(in, path)
		if err != nil {
			return err
		}
		report, err := ProcessClassFile(logger, t, path, filepath.Join(out, rel))
		if err != nil {
			return err
		}
		if len(report.Failures) > 0 {
			f := report.Failures[0]
			return fmt.Errorf("%s: %s", f.Class, f.Error)
		}
		present := make(map[string]bool)
		for _, dep := range report.Missing {
			if _, err := os.Stat(filepath.Join(out, filepath.FromSlash(dep)+classSuffix)); err == nil {
				present[dep] = true
			}
		}
		var shimReport Report
		for _, s := range t.collectShims(report.Missing, present, &shimReport) {
			if err := writeFile(filepath.Join(out, filepath.FromSlash(s.name)+classSuffix), s.data); err != nil {
				return err
			}
		}
		logger.Info("class updated", zap.String("path", rel), zap.Int("replaced", report.Replaced))
		return nil
	}

	w, err := internal.NewWatcher([]string{in}, handle, logger)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	logger.Info("watching", zap.String("dir", in), zap.String("output", out))
	<-ctx.Done()
	return w.Stop()
}
