package batch_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/signup-cli/api/schemas"
	"github.com/xkilldash9x/signup-cli/internal/batch"
	"github.com/xkilldash9x/signup-cli/internal/mocks"
	"github.com/xkilldash9x/signup-cli/internal/workflow"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func records(names ...string) []schemas.SignupRecord {
	out := make([]schemas.SignupRecord, len(names))
	for i, n := range names {
		out[i] = schemas.SignupRecord{
			FirstName: n, LastName: "Tester", Email: n + "@example.com",
			Company: "Co", JobTitle: "Eng",
		}
	}
	return out
}

// recordingSleeper notes every requested delay without waiting.
type recordingSleeper struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.calls = append(s.calls, d)
	s.mu.Unlock()
	return ctx.Err()
}

var fixedNow = time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)

func TestNewRunner_NilExecutor(t *testing.T) {
	_, err := batch.NewRunner(nil, zap.NewNop())
	assert.ErrorIs(t, err, batch.ErrExecutorNil)
}

func TestRunner_Run_Empty(t *testing.T) {
	r, err := batch.NewRunner(new(mocks.MockExecutor), zap.NewNop())
	require.NoError(t, err)
	_, err = r.Run(context.Background(), nil)
	assert.ErrorIs(t, err, batch.ErrNoEntries)
}

func TestRunner_Run_PartialFailure(t *testing.T) {
	recs := records("Ann", "Bob", "Cid")
	exec := new(mocks.MockExecutor)
	exec.On("Execute", mock.Anything, recs[0]).Return(&workflow.RunResult{RunID: "run-1", Record: recs[0]}, nil).Once()
	exec.On("Execute", mock.Anything, recs[1]).Return(&workflow.RunResult{RunID: "run-2", Record: recs[1]},
		&workflow.StepFailedError{Step: "fill email", State: workflow.StateIdentityPhase, Cause: errors.New("not found")}).Once()
	exec.On("Execute", mock.Anything, recs[2]).Return(&workflow.RunResult{RunID: "run-3", Record: recs[2]}, nil).Once()

	var persisted []int
	sink := new(mocks.MockResultSink)
	sink.On("Persist", mock.Anything, mock.AnythingOfType("schemas.BatchResult")).
		Run(func(args mock.Arguments) { persisted = append(persisted, args.Get(1).(schemas.BatchResult).Index) }).
		Return(nil)

	sleeper := &recordingSleeper{}
	core, logs := observer.New(zap.InfoLevel)
	r, err := batch.NewRunner(exec, zap.New(core),
		batch.WithSink(sink),
		batch.WithDelay(60*time.Second),
		batch.WithSleeper(sleeper.Sleep),
		batch.WithClock(func() time.Time { return fixedNow }),
	)
	require.NoError(t, err)

	results, err := r.Run(context.Background(), recs)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i, res := range results {
		assert.Equal(t, i+1, res.Index)
		assert.Equal(t, recs[i], res.Record)
		assert.Equal(t, fixedNow, res.ProcessedAt)
	}
	assert.True(t, results[0].Succeeded())
	assert.False(t, results[1].Succeeded())
	assert.Contains(t, results[1].Error, "entry 2")
	assert.Contains(t, results[1].Error, "fill email")
	assert.Equal(t, "run-2", results[1].RunID)
	assert.True(t, results[2].Succeeded())

	assert.Equal(t, []int{1, 2, 3}, persisted)
	assert.Equal(t, []time.Duration{60 * time.Second, 60 * time.Second}, sleeper.calls, "no delay after the last entry")

	ok, failed := batch.Summarize(results)
	assert.Equal(t, 2, ok)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, logs.FilterMessage("Processing entry 2/3.").Len())
	summary := logs.FilterMessage("Batch completed.").All()
	require.Len(t, summary, 1)
	assert.EqualValues(t, 2, summary[0].ContextMap()["succeeded"])
	assert.EqualValues(t, 1, summary[0].ContextMap()["failed"])

	exec.AssertExpectations(t)
	sink.AssertExpectations(t)
}

// Each result reaches the sink before the next entry starts.
func TestRunner_Run_PersistsBeforeNextEntry(t *testing.T) {
	recs := records("Ann", "Bob")
	var order []string
	exec := new(mocks.MockExecutor)
	exec.On("Execute", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { order = append(order, "exec:"+args.Get(1).(schemas.SignupRecord).FirstName) }).
		Return(nil, nil)
	sink := new(mocks.MockResultSink)
	sink.On("Persist", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { order = append(order, "persist:"+args.Get(1).(schemas.BatchResult).Record.FirstName) }).
		Return(nil)

	r, err := batch.NewRunner(exec, zaptest.NewLogger(t), batch.WithSink(sink))
	require.NoError(t, err)
	_, err = r.Run(context.Background(), recs)
	require.NoError(t, err)
	assert.Equal(t, []string{"exec:Ann", "persist:Ann", "exec:Bob", "persist:Bob"}, order)
}

func TestRunner_Run_SinkErrorDoesNotStopBatch(t *testing.T) {
	recs := records("Ann", "Bob")
	exec := new(mocks.MockExecutor)
	exec.On("Execute", mock.Anything, mock.Anything).Return(nil, nil).Twice()
	sink := new(mocks.MockResultSink)
	sink.On("Persist", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	r, err := batch.NewRunner(exec, zaptest.NewLogger(t), batch.WithSink(sink))
	require.NoError(t, err)
	results, err := r.Run(context.Background(), recs)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	exec.AssertExpectations(t)
}

func TestRunner_Run_CancelledDuringEntry(t *testing.T) {
	recs := records("Ann", "Bob", "Cid")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exec := new(mocks.MockExecutor)
	exec.On("Execute", mock.Anything, recs[0]).Return(nil, nil).Once()
	exec.On("Execute", mock.Anything, recs[1]).
		Run(func(mock.Arguments) { cancel() }).
		Return(nil, errors.Join(schemas.ErrCancelledByUser, context.Canceled)).Once()

	sink := new(mocks.MockResultSink)
	sink.On("Persist", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			assert.NoError(t, args.Get(0).(context.Context).Err(), "sink must get a live context")
		}).
		Return(nil).Twice()

	r, err := batch.NewRunner(exec, zaptest.NewLogger(t), batch.WithSink(sink))
	require.NoError(t, err)
	results, err := r.Run(ctx, recs)
	require.Error(t, err)
	assert.ErrorIs(t, err, schemas.ErrCancelledByUser)
	require.Len(t, results, 2)
	assert.Equal(t, schemas.StatusFailure, results[1].Status)

	exec.AssertExpectations(t)
	exec.AssertNotCalled(t, "Execute", mock.Anything, recs[2])
	sink.AssertExpectations(t)
}

func TestRunner_Run_CancelledDuringDelay(t *testing.T) {
	recs := records("Ann", "Bob")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exec := new(mocks.MockExecutor)
	exec.On("Execute", mock.Anything, recs[0]).Return(nil, nil).Once()

	r, err := batch.NewRunner(exec, zaptest.NewLogger(t), batch.WithDelay(time.Hour))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := r.Run(ctx, recs)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, schemas.ErrCancelledByUser)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop during the delay")
	}
	exec.AssertExpectations(t)
}

func TestFileSink_Persist(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	sink, err := batch.NewFileSink(dir, zaptest.NewLogger(t))
	require.NoError(t, err)

	result := schemas.BatchResult{
		Index:       2,
		RunID:       "run-2",
		Status:      schemas.StatusSuccess,
		ProcessedAt: fixedNow,
		Record:      records("Ann")[0],
	}
	require.NoError(t, sink.Persist(context.Background(), result))

	name := batch.FileName(result)
	assert.Equal(t, "processed_20240309_140507_2.json", name)
	raw, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, jsoniter.Unmarshal(raw, &doc))
	assert.Equal(t, "success", doc["status"])
	assert.Contains(t, doc, "processed_at")
	entry, ok := doc["entry_data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Ann", entry["first_name"])
	assert.NotContains(t, doc, "error")
}

func TestMultiSink_Persist(t *testing.T) {
	first := new(mocks.MockResultSink)
	second := new(mocks.MockResultSink)
	boom := errors.New("boom")
	first.On("Persist", mock.Anything, mock.Anything).Return(boom)
	second.On("Persist", mock.Anything, mock.Anything).Return(nil)

	err := batch.MultiSink{first, second}.Persist(context.Background(), schemas.BatchResult{Index: 1})
	assert.ErrorIs(t, err, boom)
	second.AssertCalled(t, "Persist", mock.Anything, mock.Anything)
}
