package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"

	"github.com/xkilldash9x/signup-cli/api/schemas"
)

// Prompter collects values from the operator.
//
//go:generate mockery --name Prompter --output ../mocks --outpkg mocks
type Prompter interface {
	// Ask returns the operator's answer for field. label is what is shown.
	Ask(ctx context.Context, field, label string) (string, error)
	// Confirm asks a yes/no question. Only "yes" and "y" count as yes.
	Confirm(ctx context.Context, question string) (bool, error)
}

// NewPrompter picks a FormPrompter when stdin is a terminal and a
// LinePrompter on stdin/stdout otherwise.
func NewPrompter() Prompter {
	if isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return &FormPrompter{}
	}
	return NewLinePrompter(os.Stdin, os.Stdout)
}

// LinePrompter reads one line per question. A single goroutine owns the
// reader, so a question abandoned on cancellation never races the next one:
// the line typed for it is handed to the next question instead.
type LinePrompter struct {
	in  *bufio.Reader
	out io.Writer

	start sync.Once
	lines chan lineResult
	// err is the terminal read error, kept once the reader has stopped.
	err error
}

// NewLinePrompter reads answers from in and writes questions to out.
func NewLinePrompter(in io.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{in: bufio.NewReader(in), out: out, lines: make(chan lineResult)}
}

func (p *LinePrompter) Ask(ctx context.Context, field, label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	return p.readLine(ctx)
}

func (p *LinePrompter) Confirm(ctx context.Context, question string) (bool, error) {
	fmt.Fprintf(p.out, "%s (yes/no): ", question)
	answer, err := p.readLine(ctx)
	if err != nil {
		return false, err
	}
	return isYes(answer), nil
}

type lineResult struct {
	line string
	err  error
}

// readLoop delivers lines until the first read error, which is delivered
// last.
func (p *LinePrompter) readLoop() {
	for {
		line, err := p.in.ReadString('\n')
		p.lines <- lineResult{line: line, err: err}
		if err != nil {
			return
		}
	}
}

// readLine honours ctx while the read is pending. Callers must not use one
// LinePrompter from several goroutines at once.
func (p *LinePrompter) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.Join(schemas.ErrCancelledByUser, err)
	}
	if p.err != nil {
		return "", p.err
	}
	p.start.Do(func() { go p.readLoop() })

	select {
	case <-ctx.Done():
		return "", errors.Join(schemas.ErrCancelledByUser, ctx.Err())
	case res := <-p.lines:
		if res.err == nil {
			return strings.TrimSpace(res.line), nil
		}
		if errors.Is(res.err, io.EOF) {
			p.err = errors.Join(schemas.ErrCancelledByUser, res.err)
		} else {
			p.err = fmt.Errorf("failed to read input: %w", res.err)
		}
		// A last line without a newline still counts as an answer.
		if errors.Is(res.err, io.EOF) && res.line != "" {
			return strings.TrimSpace(res.line), nil
		}
		return "", p.err
	}
}

// FormPrompter renders huh fields on an interactive terminal.
type FormPrompter struct {
	// Accessible switches huh to its screen-reader friendly mode.
	Accessible bool
}

// Ask shows a single required input. Esc or Ctrl+C cancels.
func (p *FormPrompter) Ask(ctx context.Context, field, label string) (string, error) {
	var value string
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Key(field).
			Title(label).
			Value(&value).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return fmt.Errorf("%s is required", label)
				}
				return nil
			}),
	)).WithAccessible(p.Accessible)

	if err := form.RunWithContext(ctx); err != nil {
		return "", formError(err)
	}
	return strings.TrimSpace(value), nil
}

func (p *FormPrompter) Confirm(ctx context.Context, question string) (bool, error) {
	var accepted bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(question).
			Affirmative("Yes").
			Negative("No").
			Value(&accepted),
	)).WithAccessible(p.Accessible)

	if err := form.RunWithContext(ctx); err != nil {
		return false, formError(err)
	}
	return accepted, nil
}

func formError(err error) error {
	if errors.Is(err, huh.ErrUserAborted) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(schemas.ErrCancelledByUser, err)
	}
	return fmt.Errorf("prompt failed: %w", err)
}

func isYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "yes", "y":
		return true
	}
	return false
}
