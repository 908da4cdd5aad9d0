package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/signup-cli/api/schemas"
)

const (
	DefaultStepTimeout        = 60 * time.Second
	DefaultCaptchaInterval    = 500 * time.Millisecond
	DefaultCompletionInterval = time.Second
	// closeTimeout bounds teardown, which runs on a context detached from
	// the (possibly cancelled) run context.
	closeTimeout = 15 * time.Second
)

// RunResult describes one Execute call. It is returned on failure too, with
// FinalState set to the state that failed.
type RunResult struct {
	RunID           string
	Record          schemas.SignupRecord
	States          []State
	FinalState      State
	EditionFallback bool
	StartedAt       time.Time
	FinishedAt      time.Time
}

// Engine drives the signup form through its state machine. An Engine holds
// no per-run state and may be reused for consecutive runs.
type Engine struct {
	launcher           schemas.BrowserLauncher
	logger             *zap.Logger
	signupURL          string
	stepTimeout        time.Duration
	captchaInterval    time.Duration
	completionInterval time.Duration
	firstMode          schemas.BrowserMode
	waiter             *Waiter
	pacers             PacerFactory
	now                func() time.Time
	// headlessSteps run in the second, non-interactive phase. There are none
	// yet; the phase still opens and closes its context.
	headlessSteps []Step
}

// Option configures an Engine.
type Option func(*Engine)

// WithSignupURL sets the page the visible phase navigates to. An empty url
// keeps the default.
func WithSignupURL(url string) Option {
	return func(e *Engine) {
		if url != "" {
			e.signupURL = url
		}
	}
}

// WithStepTimeout bounds each locate-and-act step. It does not apply to the
// CAPTCHA wait or the completion poll.
func WithStepTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.stepTimeout = d
		}
	}
}

// WithPollIntervals sets how often the CAPTCHA wait and the completion poll
// query the page. Non-positive values keep the defaults of 500ms and 1s.
func WithPollIntervals(captcha, completion time.Duration) Option {
	return func(e *Engine) {
		if captcha > 0 {
			e.captchaInterval = captcha
		}
		if completion > 0 {
			e.completionInterval = completion
		}
	}
}

// WithVisible chooses the mode of the interactive phase. Running it headless
// leaves nobody to solve the CAPTCHA.
func WithVisible(visible bool) Option {
	return func(e *Engine) {
		e.firstMode = schemas.ModeVisible
		if !visible {
			e.firstMode = schemas.ModeHeadless
		}
	}
}

// WithPacerFactory replaces RatePacer, mostly so tests do not sleep.
func WithPacerFactory(f PacerFactory) Option {
	return func(e *Engine) { e.pacers = f }
}

// WithClock sets the time source for RunResult timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine returns an Engine that opens its browser contexts through
// launcher. It fails with ErrLauncherNil when launcher is nil. An Engine holds
// no per-run state and can execute several records one after another.
func NewEngine(launcher schemas.BrowserLauncher, logger *zap.Logger, opts ...Option) (*Engine, error) {
	if launcher == nil {
		return nil, ErrLauncherNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		launcher:           launcher,
		logger:             logger.Named("workflow"),
		signupURL:          "https://signup.snowflake.com/#",
		stepTimeout:        DefaultStepTimeout,
		captchaInterval:    DefaultCaptchaInterval,
		completionInterval: DefaultCompletionInterval,
		firstMode:          schemas.ModeVisible,
		pacers:             RatePacer,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.waiter = NewWaiter(e.pacers, e.logger)
	return e, nil
}

// run tracks the contexts opened during one Execute call.
type run struct {
	result   *RunResult
	logger   *zap.Logger
	visible  schemas.BrowserContext
	headless schemas.BrowserContext
}

func (r *run) enter(s State) {
	r.result.States = append(r.result.States, s)
	r.result.FinalState = s
	r.logger.Debug("Entering state.", zap.String("state", string(s)))
}

// Execute performs one signup for record. The record is taken by value and
// never modified. Cancelling ctx at any point, including the unbounded
// CAPTCHA wait, closes every opened context and returns an error wrapping
// schemas.ErrCancelledByUser.
func (e *Engine) Execute(ctx context.Context, record schemas.SignupRecord) (*RunResult, error) {
	record = record.WithDefaults()
	runID := uuid.NewString()
	r := &run{
		result: &RunResult{RunID: runID, Record: record, StartedAt: e.now()},
		logger: e.logger.With(zap.String("run_id", runID)),
	}

	err := e.execute(ctx, r, record)
	if closeErr := e.closeAll(ctx, r); closeErr != nil {
		r.logger.Warn("Browser teardown reported an error.", zap.Error(closeErr))
	}
	r.result.FinishedAt = e.now()

	if err != nil {
		if ctx.Err() != nil {
			r.logger.Info("Run cancelled.", zap.String("state", string(r.result.FinalState)))
			return r.result, errors.Join(schemas.ErrCancelledByUser, ctx.Err())
		}
		r.logger.Error("Run failed.", zap.String("state", string(r.result.FinalState)), zap.Error(err))
		return r.result, err
	}
	r.logger.Info("Run completed.", zap.Duration("elapsed", r.result.FinishedAt.Sub(r.result.StartedAt)))
	return r.result, nil
}

func (e *Engine) execute(ctx context.Context, r *run, record schemas.SignupRecord) error {
	steps, fallback := Plan(record)
	r.result.EditionFallback = fallback

	// 1. Init
	r.enter(StateInit)
	if e.firstMode == schemas.ModeHeadless {
		r.logger.Warn("Interactive phase is running headless; the CAPTCHA cannot be solved by hand.")
	}
	bc, err := e.launcher.Open(ctx, e.firstMode)
	if err != nil {
		return &StepFailedError{Step: "open browser", State: StateInit, Cause: err}
	}
	r.visible = bc
	if err := e.navigate(ctx, bc); err != nil {
		return &StepFailedError{Step: "navigate", State: StateInit, Cause: err}
	}

	// 2-7. Form phases
	for _, state := range []State{
		StateConsentPhase, StateIdentityPhase, StateOrgPhase,
		StateEditionSelect, StateCloudProviderSelect, StateTermsAndSubmit,
	} {
		r.enter(state)
		if state == StateEditionSelect && fallback {
			r.logger.Warn("Unrecognized edition; selecting Business Critical.",
				zap.String("edition", string(record.Edition)))
		}
		if err := e.performAll(ctx, bc, stepsIn(steps, state)); err != nil {
			return err
		}
	}

	// 8. CaptchaWait, the only unbounded suspension point.
	r.enter(StateCaptchaWait)
	r.logger.Info("Waiting for the CAPTCHA to be solved in the browser window.")
	attempts, err := e.waiter.Until(ctx, bc, WaitCondition{Target: TargetSkip, Interval: e.captchaInterval})
	if err != nil {
		return fmt.Errorf("waiting for CAPTCHA: %w", err)
	}
	r.logger.Debug("CAPTCHA solved.", zap.Int("checks", attempts))

	// 9. PostCaptcha
	r.enter(StatePostCaptcha)
	if err := e.performAll(ctx, bc, stepsIn(steps, StatePostCaptcha)); err != nil {
		return err
	}

	// 10. CompletionPoll, no attempt cap.
	r.enter(StateCompletionPoll)
	attempts, err = e.waiter.Until(ctx, bc, WaitCondition{Target: TargetInbox, Interval: e.completionInterval})
	if err != nil {
		return fmt.Errorf("waiting for confirmation: %w", err)
	}
	r.logger.Info("Confirmation shown.", zap.Int("checks", attempts))

	// 11. TeardownVisible
	r.enter(StateTeardownVisible)
	if err := e.closeVisible(ctx, r); err != nil {
		r.logger.Warn("Failed to close visible browser.", zap.Error(err))
	}

	// 12. HeadlessContinuation
	r.enter(StateHeadlessContinuation)
	hc, err := e.launcher.Open(ctx, schemas.ModeHeadless)
	if err != nil {
		return &StepFailedError{Step: "open headless browser", State: StateHeadlessContinuation, Cause: err}
	}
	r.headless = hc
	if len(e.headlessSteps) > 0 {
		if err := e.navigate(ctx, hc); err != nil {
			return &StepFailedError{Step: "navigate", State: StateHeadlessContinuation, Cause: err}
		}
		if err := e.performAll(ctx, hc, e.headlessSteps); err != nil {
			return err
		}
	}
	if err := e.closeHeadless(ctx, r); err != nil {
		r.logger.Warn("Failed to close headless browser.", zap.Error(err))
	}

	// 13. Done
	r.enter(StateDone)
	return nil
}

func (e *Engine) navigate(ctx context.Context, bc schemas.BrowserContext) error {
	navCtx, cancel := context.WithTimeout(ctx, e.stepTimeout)
	defer cancel()
	return bc.Navigate(navCtx, e.signupURL)
}

func (e *Engine) performAll(ctx context.Context, bc schemas.BrowserContext, steps []Step) error {
	for _, step := range steps {
		if err := e.perform(ctx, bc, step); err != nil {
			return &StepFailedError{Step: step.Name, State: step.State, Cause: err}
		}
	}
	return nil
}

// perform locates the step's target and acts on it within one step timeout.
func (e *Engine) perform(ctx context.Context, bc schemas.BrowserContext, step Step) error {
	stepCtx, cancel := context.WithTimeout(ctx, e.stepTimeout)
	defer cancel()

	e.logger.Debug("Performing step.", zap.String("step", step.Name), zap.Stringer("target", step.Target))
	el, err := bc.Locate(stepCtx, step.Target)
	if err != nil {
		return err
	}

	switch step.Action {
	case ActionFill:
		return el.Fill(stepCtx, step.Value)
	case ActionCheck:
		return el.Check(stepCtx)
	case ActionClick, ActionSelect:
		return el.Click(stepCtx)
	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}
}

func (e *Engine) closeVisible(ctx context.Context, r *run) error {
	if r.visible == nil {
		return nil
	}
	bc := r.visible
	r.visible = nil
	return e.close(ctx, bc)
}

func (e *Engine) closeHeadless(ctx context.Context, r *run) error {
	if r.headless == nil {
		return nil
	}
	bc := r.headless
	r.headless = nil
	return e.close(ctx, bc)
}

// closeAll releases whatever is still open, visible first.
func (e *Engine) closeAll(ctx context.Context, r *run) error {
	return errors.Join(e.closeVisible(ctx, r), e.closeHeadless(ctx, r))
}

// close runs on a context that survives cancellation of ctx so that an
// interrupted run still shuts its browsers down.
func (e *Engine) close(ctx context.Context, bc schemas.BrowserContext) error {
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()
	return bc.Close(closeCtx)
}
