package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/signup-cli/api/schemas"
)

// closeTimeout bounds the graceful part of Close. The process is killed
// afterwards either way.
const closeTimeout = 10 * time.Second

// Session is one Chrome process with a single tab.
type Session struct {
	mode        schemas.BrowserMode
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	release     func()
	logger      *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

var _ schemas.BrowserContext = (*Session)(nil)

// runActions executes actions on the tab, bounded by both the session
// lifetime and ctx.
func (s *Session) runActions(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Navigate loads url and waits for the load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.runActions(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// Locate waits until target is visible. Checkboxes only need to be in the
// DOM since styled forms often hide the native input behind a label.
func (s *Session) Locate(ctx context.Context, target schemas.UITarget) (schemas.Element, error) {
	sel := Selector(target)
	wait := chromedp.WaitVisible(sel, chromedp.BySearch)
	if target.Kind == schemas.TargetRole && target.Role == "checkbox" {
		wait = chromedp.WaitReady(sel, chromedp.BySearch)
	}
	if err := s.runActions(ctx, wait); err != nil {
		return nil, fmt.Errorf("failed to locate %s: %w", target, err)
	}
	return &element{session: s, target: target, selector: sel}, nil
}

// Query reports whether target is present right now.
func (s *Session) Query(ctx context.Context, target schemas.UITarget) (bool, error) {
	var nodes []*cdp.Node
	if err := s.runActions(ctx, chromedp.Nodes(Selector(target), &nodes, chromedp.BySearch, chromedp.AtLeast(0))); err != nil {
		return false, fmt.Errorf("failed to query %s: %w", target, err)
	}
	return len(nodes) > 0, nil
}

// Close shuts the tab and the browser process down. ctx only bounds the
// graceful part; the process is released in every case. Safe to call twice.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		defer s.release()
		defer s.cancelAlloc()
		defer s.cancelTab()

		closeCtx, cancel := context.WithTimeout(ctx, closeTimeout)
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- chromedp.Cancel(s.ctx) }()

		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				s.closeErr = fmt.Errorf("failed to close %s browser: %w", s.mode, err)
			}
		case <-closeCtx.Done():
			s.logger.Warn("Graceful browser shutdown timed out; killing process.")
		}
		s.logger.Debug("Browser context closed.")
	})
	return s.closeErr
}

type element struct {
	session  *Session
	target   schemas.UITarget
	selector string
}

func (e *element) Click(ctx context.Context) error {
	if err := e.session.runActions(ctx, chromedp.Click(e.selector, chromedp.BySearch, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("failed to click %s: %w", e.target, err)
	}
	return nil
}

// Fill replaces the current value of a text input.
func (e *element) Fill(ctx context.Context, value string) error {
	err := e.session.runActions(ctx,
		chromedp.Clear(e.selector, chromedp.BySearch),
		chromedp.SendKeys(e.selector, value, chromedp.BySearch),
	)
	if err != nil {
		return fmt.Errorf("failed to fill %s: %w", e.target, err)
	}
	return nil
}

// Check ticks the box unless it is already ticked.
func (e *element) Check(ctx context.Context) error {
	checked, err := e.isChecked(ctx)
	if err != nil {
		return fmt.Errorf("failed to read state of %s: %w", e.target, err)
	}
	if checked {
		return nil
	}

	clickErr := e.session.runActions(ctx, chromedp.Click(e.selector, chromedp.BySearch, chromedp.NodeReady))
	if clickErr == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	// Hidden native inputs have no box model to click; let the page do it.
	if err := e.session.runActions(ctx, chromedp.Evaluate(e.jsClick(), nil)); err != nil {
		return fmt.Errorf("failed to check %s: %w", e.target, errors.Join(clickErr, err))
	}
	return nil
}

func (e *element) isChecked(ctx context.Context) (bool, error) {
	var aria string
	var ok bool
	if err := e.session.runActions(ctx, chromedp.AttributeValue(e.selector, "aria-checked", &aria, &ok, chromedp.BySearch)); err != nil {
		return false, err
	}
	if ok {
		return aria == "true", nil
	}

	var checked bool
	if err := e.session.runActions(ctx, chromedp.JavascriptAttribute(e.selector, "checked", &checked, chromedp.BySearch)); err != nil {
		return false, err
	}
	return checked, nil
}

func (e *element) jsClick() string {
	quoted, _ := jsoniter.MarshalToString(e.selector)
	return fmt.Sprintf(
		`document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue.click()`,
		quoted,
	)
}
