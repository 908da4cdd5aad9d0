// Package batch runs the signup workflow over a list of records, one after
// another, and records the outcome of every entry.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/signup-cli/api/schemas"
	"github.com/xkilldash9x/signup-cli/internal/workflow"
)

var (
	ErrExecutorNil = errors.New("batch executor must not be nil")
	ErrNoEntries   = errors.New("no entries to process")
)

// EntryError ties a workflow failure to the 1-based entry it happened on.
type EntryError struct {
	Index int
	Err   error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("entry %d: %v", e.Index, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }

// Executor runs the workflow for a single record. *workflow.Engine satisfies it.
type Executor interface {
	Execute(ctx context.Context, record schemas.SignupRecord) (*workflow.RunResult, error)
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Runner processes records strictly in order. It never runs two workflows at
// once.
type Runner struct {
	exec   Executor
	sink   schemas.ResultSink
	delay  time.Duration
	sleep  Sleeper
	now    func() time.Time
	logger *zap.Logger
}

type Option func(*Runner)

// WithDelay sets the pause between consecutive entries.
func WithDelay(d time.Duration) Option {
	return func(r *Runner) { r.delay = d }
}

// WithSink sets where each BatchResult is persisted. Without it results are
// only returned from Run.
func WithSink(sink schemas.ResultSink) Option {
	return func(r *Runner) { r.sink = sink }
}

// WithSleeper replaces the context-aware timer used for the delay between
// entries.
func WithSleeper(s Sleeper) Option {
	return func(r *Runner) { r.sleep = s }
}

// WithClock sets the time source for ProcessedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner returns a Runner that hands every record to exec in order. It
// fails with ErrExecutorNil when exec is nil.
func NewRunner(exec Executor, logger *zap.Logger, opts ...Option) (*Runner, error) {
	if exec == nil {
		return nil, ErrExecutorNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{
		exec:   exec,
		sink:   discardSink{},
		sleep:  sleepContext,
		now:    time.Now,
		logger: logger.Named("batch"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.delay < 0 {
		r.delay = 0
	}
	return r, nil
}

// Run executes every record and returns one result per attempted entry. A
// failed entry is recorded and the loop moves on. Each result is handed to
// the sink before the next entry starts. If ctx is cancelled, the in-flight
// entry is recorded as a failure and Run returns the results so far with an
// error wrapping schemas.ErrCancelledByUser.
func (r *Runner) Run(ctx context.Context, records []schemas.SignupRecord) ([]schemas.BatchResult, error) {
	if len(records) == 0 {
		return nil, ErrNoEntries
	}

	total := len(records)
	logger := r.logger.With(zap.String("batch_id", uuid.NewString()))
	logger.Info("Starting batch.", zap.Int("entries", total), zap.Duration("delay", r.delay))

	results := make([]schemas.BatchResult, 0, total)
	for i, record := range records {
		index := i + 1
		logger.Info(fmt.Sprintf("Processing entry %d/%d.", index, total), zap.String("name", record.DisplayName()))

		run, err := r.exec.Execute(ctx, record)
		result := r.resultFor(index, record, run, err)
		results = append(results, result)
		if result.Succeeded() {
			logger.Info(fmt.Sprintf("Entry %d/%d succeeded.", index, total), zap.String("run_id", result.RunID))
		} else {
			logger.Error(fmt.Sprintf("Entry %d/%d failed.", index, total), zap.String("error", result.Error))
		}

		// Persist even when ctx is done so the interrupted entry is on record.
		if perr := r.sink.Persist(context.WithoutCancel(ctx), result); perr != nil {
			logger.Error("Failed to persist batch result.", zap.Int("index", index), zap.Error(perr))
		}

		if ctx.Err() != nil {
			logger.Warn("Batch interrupted.", zap.Int("completed", index), zap.Int("entries", total))
			return results, errors.Join(schemas.ErrCancelledByUser, ctx.Err())
		}

		if index < total && r.delay > 0 {
			logger.Info(fmt.Sprintf("Waiting %s before next entry.", r.delay))
			if err := r.sleep(ctx, r.delay); err != nil {
				logger.Warn("Batch interrupted.", zap.Int("completed", index), zap.Int("entries", total))
				return results, errors.Join(schemas.ErrCancelledByUser, err)
			}
		}
	}

	ok, failed := Summarize(results)
	logger.Info("Batch completed.", zap.Int("entries", total), zap.Int("succeeded", ok), zap.Int("failed", failed))
	return results, nil
}

func (r *Runner) resultFor(index int, record schemas.SignupRecord, run *workflow.RunResult, err error) schemas.BatchResult {
	result := schemas.BatchResult{
		Index:       index,
		Status:      schemas.StatusSuccess,
		ProcessedAt: r.now(),
		Record:      record,
	}
	if run != nil {
		result.RunID = run.RunID
		result.Record = run.Record
	}
	if err != nil {
		result.Status = schemas.StatusFailure
		result.Error = (&EntryError{Index: index, Err: err}).Error()
	}
	return result
}

// Summarize counts successful and failed results.
func Summarize(results []schemas.BatchResult) (succeeded, failed int) {
	for _, r := range results {
		if r.Succeeded() {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type discardSink struct{}

func (discardSink) Persist(context.Context, schemas.BatchResult) error { return nil }
