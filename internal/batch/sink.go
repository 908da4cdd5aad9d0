package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/xkilldash9x/signup-cli/api/schemas"
)

// FileSink writes each result to its own processed_<timestamp>_<index>.json
// file in a directory.
type FileSink struct {
	dir    string
	logger *zap.Logger
}

// NewFileSink expands dir (a leading ~ is allowed) and creates it if needed.
func NewFileSink(dir string, logger *zap.Logger) (*FileSink, error) {
	if dir == "" {
		dir = "."
	}
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return nil, fmt.Errorf("expanding output directory %q: %w", dir, err)
	}
	if err := os.MkdirAll(expanded, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory %q: %w", expanded, err)
	}
	return &FileSink{dir: expanded, logger: logger.Named("file_sink")}, nil
}

// FileName is the name a result is stored under, derived from its
// processing time (local clock) and entry index.
func FileName(result schemas.BatchResult) string {
	return fmt.Sprintf("processed_%s_%d.json", result.ProcessedAt.Local().Format("20060102_150405"), result.Index)
}

// Persist writes result to its own file named by FileName. Existing files are
// overwritten.
func (s *FileSink) Persist(ctx context.Context, result schemas.BatchResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := jsoniter.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result %d: %w", result.Index, err)
	}
	path := filepath.Join(s.dir, FileName(result))
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	s.logger.Debug("Result written.", zap.String("path", path))
	return nil
}

// MultiSink hands every result to each of its sinks in order. A failing sink
// does not stop the others.
type MultiSink []schemas.ResultSink

// Persist calls every sink in order and joins their errors.
func (m MultiSink) Persist(ctx context.Context, result schemas.BatchResult) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Persist(ctx, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
