package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/signup-cli/api/schemas"
	"github.com/xkilldash9x/signup-cli/internal/config"
	"github.com/xkilldash9x/signup-cli/internal/observability"
	"github.com/xkilldash9x/signup-cli/internal/workflow"
)

type signupOptions struct {
	firstName     string
	lastName      string
	email         string
	company       string
	jobTitle      string
	edition       string
	cloudProvider string
	timeout       int64
	visible       bool
	headless      bool
	saveConfig    bool
	noPrompt      bool
}

func newSignupCmd(deps dependencies, flags *rootFlags) *cobra.Command {
	opts := &signupOptions{}
	signupCmd := &cobra.Command{
		Use:   "signup",
		Short: "Run the signup form once",
		Long: `Resolves the signup details from flags, SNOWFLAKE_* environment variables,
the JSON config file and defaults (in that order of precedence), asks for
anything still missing, then drives the signup form.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSignup(cmd, deps, flags, opts)
		},
	}
	bindSignupFlags(signupCmd, opts)
	return signupCmd
}

func bindSignupFlags(cmd *cobra.Command, o *signupOptions) {
	f := cmd.Flags()
	f.StringVar(&o.firstName, "first-name", "", "First name for the signup form")
	f.StringVar(&o.lastName, "last-name", "", "Last name for the signup form")
	f.StringVar(&o.email, "email", "", "Email address for the signup form")
	f.StringVar(&o.company, "company", "", "Company name for the signup form")
	f.StringVar(&o.jobTitle, "job-title", "", "Job title for the signup form")
	f.StringVar(&o.edition, "edition", "", "Standard, Enterprise or BusinessCritical (default BusinessCritical)")
	f.StringVar(&o.cloudProvider, "cloud-provider", "", "AWS, Azure or GCP, or the provider's full name (default AWS)")
	bindBrowserFlags(cmd, &o.visible, &o.headless, &o.timeout)
	f.BoolVar(&o.saveConfig, "save-config", false, "Save the resolved configuration to the config file")
	f.BoolVar(&o.noPrompt, "no-prompt", false, "Fail instead of prompting when required fields are missing")
}

// bindBrowserFlags registers the flags every command that drives the browser
// shares.
func bindBrowserFlags(cmd *cobra.Command, visible, headless *bool, timeout *int64) {
	f := cmd.Flags()
	f.BoolVar(visible, "visible", true, "Run with a visible browser window (default)")
	f.BoolVar(headless, "headless", false, "Run without a visible browser window")
	cmd.MarkFlagsMutuallyExclusive("visible", "headless")
	f.Int64Var(timeout, "timeout", config.DefaultTimeout.Milliseconds(), "Timeout in milliseconds for each form step")
}

func runSignup(cmd *cobra.Command, deps dependencies, flags *rootFlags, opts *signupOptions) error {
	ctx := cmd.Context()
	cfg, err := getConfigFromContext(ctx)
	if err != nil {
		return err
	}
	logger := observability.GetLogger()
	out := cmd.OutOrStdout()
	prompter := deps.newPrompter(cmd)

	ok, err := confirmAgreement(ctx, out, prompter, flags.yes)
	if err != nil || !ok {
		return err
	}

	policy := config.PromptMissing
	if opts.noPrompt {
		policy = config.FailMissing
	}
	resolver := config.NewResolver(logger,
		config.WithPrompter(prompter),
		config.WithEnvLookup(deps.lookupEnv),
	)
	eff, err := resolver.Resolve(ctx, config.Request{
		Flags:      config.FlagOverrides(cmd.Flags()),
		ConfigFile: flags.configFile,
		Save:       opts.saveConfig,
		Policy:     policy,
	})
	if err != nil {
		return err
	}
	if eff.SavePath != "" {
		if eff.SaveErr != nil {
			fmt.Fprintf(out, "Error saving configuration: %v\n", eff.SaveErr)
		} else {
			fmt.Fprintf(out, "Configuration saved to %s\n", eff.SavePath)
		}
	}

	displayParameters(out, eff)
	fmt.Fprintln(out, "Starting Snowflake signup automation...")
	return runOnce(ctx, out, deps, cfg, logger, eff.Record, eff.Timeout, eff.Visible)
}

// displayParameters prints the effective values and where each came from.
func displayParameters(out io.Writer, eff *config.EffectiveConfig) {
	values := eff.Values()
	fmt.Fprintln(out, "\nRunning Snowflake signup automation with the following parameters:")
	for _, key := range config.Keys {
		value := values[key]
		if key == config.KeyCloudProvider {
			value = eff.Record.CloudProvider.DisplayName()
		}
		fmt.Fprintf(out, "  %s: %v (%s)\n", titleKey(key), value, eff.Sources[key])
	}
	fmt.Fprintln(out)
}

// titleKey turns "job_title" into "Job Title".
func titleKey(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func newEngine(deps dependencies, cfg *config.Config, logger *zap.Logger, timeout time.Duration, visible bool) (*workflow.Engine, error) {
	return workflow.NewEngine(deps.newLauncher(cfg.Browser, logger), logger,
		workflow.WithSignupURL(cfg.Browser.SignupURL),
		workflow.WithStepTimeout(timeout),
		workflow.WithPollIntervals(cfg.Browser.CaptchaPollInterval, cfg.Browser.CompletionPollInterval),
		workflow.WithVisible(visible),
	)
}

// runOnce performs a single workflow run for record.
func runOnce(ctx context.Context, out io.Writer, deps dependencies, cfg *config.Config, logger *zap.Logger,
	record schemas.SignupRecord, timeout time.Duration, visible bool) error {
	engine, err := newEngine(deps, cfg, logger, timeout, visible)
	if err != nil {
		return err
	}
	if _, err := engine.Execute(ctx, record); err != nil {
		return err
	}
	fmt.Fprintf(out, "Signup submitted for %s. Check %s for the activation email.\n", record.DisplayName(), record.Email)
	return nil
}

// browserSettings resolves --timeout and --visible/--headless for commands
// that take their records from a data file. The layers match signup: flag,
// SNOWFLAKE_TIMEOUT / SNOWFLAKE_VISIBLE, config file, default.
func browserSettings(cmd *cobra.Command, deps dependencies, flags *rootFlags, logger *zap.Logger) *config.EffectiveConfig {
	resolver := config.NewResolver(logger, config.WithEnvLookup(deps.lookupEnv))
	return resolver.ResolveBrowser(config.Request{
		Flags:      config.FlagOverrides(cmd.Flags()),
		ConfigFile: flags.configFile,
	})
}

// modeName is how a browser mode is shown to the operator.
func modeName(visible bool) string {
	if visible {
		return "Visible"
	}
	return "Headless"
}
