package schemas

import (
	"context"
)

// -- Browser Boundary --

// BrowserLauncher opens isolated browser contexts. The workflow owns every
// context it opens and is responsible for closing it.
//
//go:generate mockery --name BrowserLauncher --output ../../internal/mocks --outpkg mocks
type BrowserLauncher interface {
	// Open starts a new browser context in the requested mode.
	Open(ctx context.Context, mode BrowserMode) (BrowserContext, error)
}

// BrowserContext is one open browser window (or headless equivalent) with a
// single page.
type BrowserContext interface {
	// Navigate loads url in the page.
	Navigate(ctx context.Context, url string) error
	// Locate waits until target is present and interactable, bounded by ctx.
	Locate(ctx context.Context, target UITarget) (Element, error)
	// Query reports whether target is currently present without waiting.
	Query(ctx context.Context, target UITarget) (bool, error)
	// Close releases the context. Calling it more than once is a no-op.
	Close(ctx context.Context) error
}

// Element is a located interactive element.
type Element interface {
	Click(ctx context.Context) error
	Fill(ctx context.Context, value string) error
	// Check ticks a checkbox; it is a no-op when the box is already ticked.
	Check(ctx context.Context) error
}

// -- Batch Boundary --

// ResultSink persists batch results as soon as they are produced.
type ResultSink interface {
	Persist(ctx context.Context, result BatchResult) error
}
