// File: cmd/helpers_test.go
package cmd

import (
	"bytes"
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/signup-cli/api/schemas"
	"github.com/xkilldash9x/signup-cli/internal/batch"
	"github.com/xkilldash9x/signup-cli/internal/config"
	"github.com/xkilldash9x/signup-cli/internal/mocks"
	"github.com/xkilldash9x/signup-cli/internal/observability"
)

// testHarness wires a command tree to mocks and a scratch directory.
type testHarness struct {
	dir      string
	env      map[string]string
	launcher *mocks.MockBrowserLauncher
	page     *mocks.MockBrowserContext
	element  *mocks.MockElement
	prompter *mocks.MockPrompter
	sinkDir  string
}

// newHarness writes an ambient config that keeps logs out of the working
// directory and points SNOWFLAKE_CONFIG_FILE at it.
func newHarness(t *testing.T) *testHarness {
	t.Helper()
	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)

	dir := t.TempDir()
	h := &testHarness{
		dir:      dir,
		env:      map[string]string{},
		launcher: new(mocks.MockBrowserLauncher),
		page:     new(mocks.MockBrowserContext),
		element:  new(mocks.MockElement),
		prompter: new(mocks.MockPrompter),
		sinkDir:  filepath.Join(dir, "results"),
	}
	h.writeConfig(t, `{
  "logger": {"level": "error", "log_file": "", "color": false},
  "batch": {"log_file": "`+filepath.Join(dir, "batch_signup.log")+`", "delay": 0},
  "browser": {"captcha_poll_interval": "1ms", "completion_poll_interval": "1ms"}
}`)
	return h
}

func (h *testHarness) configPath() string { return filepath.Join(h.dir, "snowflake_config.json") }

func (h *testHarness) writeConfig(t *testing.T, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(h.configPath(), []byte(content), 0o644))
	h.env["SNOWFLAKE_CONFIG_FILE"] = h.configPath()
}

// browserWorks makes every browser interaction succeed and every waited-for
// target present at once.
func (h *testHarness) browserWorks() {
	h.launcher.On("Open", mock.Anything, mock.Anything).Return(h.page, nil)
	h.page.On("Navigate", mock.Anything, mock.Anything).Return(nil)
	h.page.On("Locate", mock.Anything, mock.Anything).Return(h.element, nil)
	h.page.On("Query", mock.Anything, mock.Anything).Return(true, nil)
	h.page.On("Close", mock.Anything).Return(nil)
	h.element.On("Click", mock.Anything).Return(nil)
	h.element.On("Fill", mock.Anything, mock.Anything).Return(nil)
	h.element.On("Check", mock.Anything).Return(nil)
}

type fileSinkProvider struct{ dir string }

func (p fileSinkProvider) Create(_ context.Context, _ *config.Config, _ string, logger *zap.Logger) (schemas.ResultSink, func(), error) {
	s, err := batch.NewFileSink(p.dir, logger)
	return s, func() {}, err
}

func (h *testHarness) deps() dependencies {
	return dependencies{
		newLauncher: func(config.BrowserConfig, *zap.Logger) schemas.BrowserLauncher { return h.launcher },
		newPrompter: func(*cobra.Command) config.Prompter { return h.prompter },
		sinks:       fileSinkProvider{dir: h.sinkDir},
		lookupEnv: func(key string) (string, bool) {
			v, ok := h.env[key]
			return v, ok
		},
		rng: rand.New(rand.NewPCG(7, 11)),
	}
}

// newPristineRootCmd returns a fresh command tree bound to the harness.
func (h *testHarness) newPristineRootCmd() *cobra.Command {
	return newRootCmd(h.deps())
}

// run executes args and returns everything written to stdout and stderr.
func (h *testHarness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	rootCmd := h.newPristineRootCmd()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}
