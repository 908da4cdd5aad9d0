package workflow_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xkilldash9x/signup-cli/api/schemas"
	"github.com/xkilldash9x/signup-cli/internal/workflow"
)

// call is one recorded interaction, formatted "mode:verb:target[=value]".
type call = string

// fakeBrowser records every interaction across all contexts it opens.
type fakeBrowser struct {
	mu     sync.Mutex
	calls  []call
	opened []schemas.BrowserMode
	closed map[int]int

	// present reports whether a queried target is on the page.
	present func(target schemas.UITarget) bool
	// failOn makes Locate fail for the target with this ID.
	failOn  string
	openErr map[schemas.BrowserMode]error
	queried chan schemas.UITarget
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{
		closed:  make(map[int]int),
		present: func(schemas.UITarget) bool { return true },
		openErr: make(map[schemas.BrowserMode]error),
	}
}

func (f *fakeBrowser) record(c call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeBrowser) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func (f *fakeBrowser) Opened() []schemas.BrowserMode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]schemas.BrowserMode(nil), f.opened...)
}

// CloseCounts maps the index of each opened context to how often it was closed.
func (f *fakeBrowser) CloseCounts() map[int]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int]int, len(f.closed))
	for k, v := range f.closed {
		out[k] = v
	}
	return out
}

func (f *fakeBrowser) Open(ctx context.Context, mode schemas.BrowserMode) (schemas.BrowserContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.openErr[mode]; err != nil {
		return nil, err
	}
	f.mu.Lock()
	idx := len(f.opened)
	f.opened = append(f.opened, mode)
	f.mu.Unlock()
	f.record(fmt.Sprintf("%s:open", mode))
	return &fakeContext{browser: f, mode: mode, index: idx}, nil
}

type fakeContext struct {
	browser *fakeBrowser
	mode    schemas.BrowserMode
	index   int
}

func (c *fakeContext) Navigate(ctx context.Context, url string) error {
	c.browser.record(fmt.Sprintf("%s:navigate:%s", c.mode, url))
	return ctx.Err()
}

func (c *fakeContext) Locate(ctx context.Context, target schemas.UITarget) (schemas.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if target.ID == c.browser.failOn {
		return nil, fmt.Errorf("no element matches %s", target)
	}
	return &fakeElement{ctx: c, target: target}, nil
}

func (c *fakeContext) Query(ctx context.Context, target schemas.UITarget) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if c.browser.queried != nil {
		select {
		case c.browser.queried <- target:
		default:
		}
	}
	return c.browser.present(target), nil
}

func (c *fakeContext) Close(ctx context.Context) error {
	c.browser.mu.Lock()
	c.browser.closed[c.index]++
	c.browser.mu.Unlock()
	c.browser.record(fmt.Sprintf("%s:close", c.mode))
	return ctx.Err()
}

type fakeElement struct {
	ctx    *fakeContext
	target schemas.UITarget
}

func (e *fakeElement) Click(ctx context.Context) error {
	e.ctx.browser.record(fmt.Sprintf("%s:click:%s", e.ctx.mode, e.target.ID))
	return ctx.Err()
}

func (e *fakeElement) Fill(ctx context.Context, value string) error {
	e.ctx.browser.record(fmt.Sprintf("%s:fill:%s=%s", e.ctx.mode, e.target.ID, value))
	return ctx.Err()
}

func (e *fakeElement) Check(ctx context.Context) error {
	e.ctx.browser.record(fmt.Sprintf("%s:check:%s", e.ctx.mode, e.target.ID))
	return ctx.Err()
}

// instantPacer never waits, only honouring cancellation.
type instantPacer struct{}

func (instantPacer) Wait(ctx context.Context) error { return ctx.Err() }

func instantPacers(time.Duration) workflow.Pacer { return instantPacer{} }

// yieldingPacer sleeps briefly so blocked waits do not spin.
type yieldingPacer struct{}

func (yieldingPacer) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Millisecond):
		return nil
	}
}

func yieldingPacers(time.Duration) workflow.Pacer { return yieldingPacer{} }
