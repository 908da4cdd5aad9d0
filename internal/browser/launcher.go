package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/xkilldash9x/signup-cli/api/schemas"
	"github.com/xkilldash9x/signup-cli/internal/config"
)

// Launcher starts one Chrome process per BrowserContext. A weighted
// semaphore caps how many contexts may be open at the same time.
type Launcher struct {
	cfg    config.BrowserConfig
	logger *zap.Logger
	slots  *semaphore.Weighted
}

// NewLauncher returns a Launcher that allows a single open context, which is
// what one workflow run needs: the visible context is closed before the
// headless one is opened.
func NewLauncher(cfg config.BrowserConfig, logger *zap.Logger) *Launcher {
	return NewLauncherWithLimit(cfg, logger, 1)
}

// NewLauncherWithLimit allows up to maxOpen contexts at once. Open blocks
// while the limit is reached.
func NewLauncherWithLimit(cfg config.BrowserConfig, logger *zap.Logger, maxOpen int64) *Launcher {
	if maxOpen < 1 {
		maxOpen = 1
	}
	return &Launcher{
		cfg:    cfg,
		logger: logger.Named("browser"),
		slots:  semaphore.NewWeighted(maxOpen),
	}
}

// Open launches Chrome in the requested mode and waits for its first tab.
func (l *Launcher) Open(ctx context.Context, mode schemas.BrowserMode) (schemas.BrowserContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := l.slots.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for a free browser slot: %w", err)
	}

	logger := l.logger.With(zap.Stringer("mode", mode))
	allocCtx, allocCancel := chromedp.NewExecAllocator(Detach(ctx), ExecAllocatorOptions(l.cfg, mode)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Sugar().Debugf),
		chromedp.WithErrorf(logger.Sugar().Debugf),
	)

	// The first Run starts the process. It is tied to tabCtx, not ctx, so it
	// runs in the background and ctx only decides whether we wait for it.
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(tabCtx) }()

	var err error
	select {
	case err = <-started:
	case <-ctx.Done():
		tabCancel()
		<-started
		err = ctx.Err()
	}
	if err != nil {
		tabCancel()
		allocCancel()
		l.slots.Release(1)
		return nil, fmt.Errorf("failed to start %s browser: %w", mode, err)
	}

	logger.Debug("Browser context opened.")
	return &Session{
		mode:        mode,
		ctx:         tabCtx,
		cancelTab:   tabCancel,
		cancelAlloc: allocCancel,
		release:     func() { l.slots.Release(1) },
		logger:      logger,
	}, nil
}

// allocatorFlags lists the Chrome switches for mode. ExecAllocatorOptions
// turns them into chromedp options.
func allocatorFlags(cfg config.BrowserConfig, mode schemas.BrowserMode) map[string]interface{} {
	flags := map[string]interface{}{
		"no-first-run":             true,
		"no-default-browser-check": true,
		"disable-gpu":              true,
		"no-sandbox":               true,
		"disable-dev-shm-usage":    true,
	}
	if mode == schemas.ModeHeadless {
		flags["headless"] = true
		flags["hide-scrollbars"] = true
		flags["mute-audio"] = true
	}

	// Extra args may be "--flag" or "--flag=value".
	for _, arg := range cfg.Args {
		arg = strings.TrimLeft(strings.TrimSpace(arg), "-")
		if arg == "" {
			continue
		}
		if key, value, found := strings.Cut(arg, "="); found {
			flags[key] = value
		} else {
			flags[arg] = true
		}
	}
	return flags
}

// ExecAllocatorOptions builds the allocator options for one browser context.
// The list is explicit rather than based on chromedp.DefaultExecAllocatorOptions
// because the visible phase must not inherit the default headless switch.
func ExecAllocatorOptions(cfg config.BrowserConfig, mode schemas.BrowserMode) []chromedp.ExecAllocatorOption {
	flags := allocatorFlags(cfg, mode)
	opts := make([]chromedp.ExecAllocatorOption, 0, len(flags)+2)
	for key, value := range flags {
		opts = append(opts, chromedp.Flag(key, value))
	}
	opts = append(opts, chromedp.WindowSize(1280, 900))
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}
