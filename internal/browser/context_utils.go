// internal/browser/context_utils.go
package browser

import (
	"context"
)

// CombineContext returns a context derived from primary (keeping its values,
// which is where chromedp stores the tab) that is also cancelled when
// operation is done. Callers must call the returned cancel func.
func CombineContext(primary, operation context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(primary)

	go func() {
		select {
		case <-operation.Done():
			cancel()
		case <-combined.Done():
		}
	}()

	return combined, cancel
}

// Detach keeps the values of ctx but drops its deadline and cancellation.
// Browser allocators are parented on a detached context so that they live as
// long as the session rather than the call that opened it.
func Detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
