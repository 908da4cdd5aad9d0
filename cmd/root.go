// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/signup-cli/api/schemas"
	"github.com/xkilldash9x/signup-cli/internal/browser"
	"github.com/xkilldash9x/signup-cli/internal/config"
	"github.com/xkilldash9x/signup-cli/internal/observability"
)

type contextKey string

const configKey contextKey = "config"

const disclaimer = `IMPORTANT: EDUCATIONAL PURPOSE ONLY

This tool is provided for EDUCATIONAL PURPOSES ONLY. It demonstrates browser
automation techniques and should only be used for legitimate learning purposes.

Any misuse is strictly against the Snowflake Self-Service On Demand Terms of
Service (https://www.snowflake.com/en/legal/terms-of-service/self-service-on-demand-terms-of-service/).

By using this tool, you acknowledge:
1. You're using it solely for educational purposes
2. You will not use it to violate any terms of service
3. You understand that automated signup may violate Snowflake's terms
4. You assume all responsibility for any consequences of using this tool`

const agreementQuestion = "Do you understand and agree to use this ONLY for educational purposes?"

// dependencies are the seams the commands are built on. Tests replace them.
type dependencies struct {
	newLauncher func(cfg config.BrowserConfig, logger *zap.Logger) schemas.BrowserLauncher
	newPrompter func(cmd *cobra.Command) config.Prompter
	sinks       sinkProvider
	lookupEnv   config.EnvLookup
	rng         *rand.Rand
}

func defaultDependencies() dependencies {
	return dependencies{
		newLauncher: func(cfg config.BrowserConfig, logger *zap.Logger) schemas.BrowserLauncher {
			return browser.NewLauncher(cfg, logger)
		},
		newPrompter: func(*cobra.Command) config.Prompter { return config.NewPrompter() },
		sinks:       defaultSinkProvider{},
		lookupEnv:   os.LookupEnv,
		rng:         rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// rootFlags are the persistent flags shared by every subcommand.
type rootFlags struct {
	configFile string
	logLevel   string
	yes        bool
}

// NewRootCommand builds a fresh command tree. Each call returns independent
// flag state.
func NewRootCommand() *cobra.Command {
	return newRootCmd(defaultDependencies())
}

func newRootCmd(deps dependencies) *cobra.Command {
	flags := &rootFlags{}
	signupOpts := &signupOptions{}

	rootCmd := &cobra.Command{
		Use:   "signup-cli",
		Short: "Automates the Snowflake trial signup form and hands the CAPTCHA to you.",
		Long: `signup-cli fills in the Snowflake trial signup form, waits while you solve the
CAPTCHA in the browser window, then watches for the confirmation page.

Run without a subcommand it behaves like "signup-cli signup".`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initialize(cmd, flags, deps)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSignup(cmd, deps, flags, signupOpts)
		},
	}
	rootCmd.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configFile, "config-file", "", "JSON configuration file (default $SNOWFLAKE_CONFIG_FILE or ./"+config.DefaultConfigFile+")")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	pf.BoolVarP(&flags.yes, "yes", "y", false, "Accept the educational-use agreement without asking")

	bindSignupFlags(rootCmd, signupOpts)

	rootCmd.AddCommand(newSignupCmd(deps, flags))
	rootCmd.AddCommand(newBatchCmd(deps, flags))
	rootCmd.AddCommand(newDemoCmd(deps, flags))
	rootCmd.AddCommand(newGenerateCmd(deps))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// Execute runs the command tree against ctx and reports the error, if any,
// the way the user should see it. A cancelled run is not reported as a
// failure.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, schemas.ErrCancelledByUser) || errors.Is(err, context.Canceled) {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "\nOperation cancelled by user. Exiting.")
		return err
	}
	observability.GetLogger().Error("Command execution failed", zap.Error(err))
	fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
	return err
}

// initialize loads the ambient configuration and sets up logging before any
// command runs.
func initialize(cmd *cobra.Command, flags *rootFlags, deps dependencies) error {
	path := config.ConfigFilePath(flags.configFile, deps.lookupEnv)
	v, fileErr := config.NewViper(path)
	if flags.logLevel != "" {
		v.Set("logger.level", flags.logLevel)
	}

	cfg, err := config.NewConfigFromViper(v)
	if err != nil {
		observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "signup-cli"})
		return fmt.Errorf("failed to load or validate config: %w", err)
	}

	observability.InitializeLogger(cfg.Logger)
	logger := observability.GetLogger()
	if fileErr != nil {
		logger.Warn("Ignoring config file.", zap.Error(fileErr))
	}
	logger.Debug("Starting signup-cli", zap.String("version", Version), zap.String("config_file", path))

	cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
	return nil
}

func getConfigFromContext(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not initialized")
	}
	return cfg, nil
}

// confirmAgreement shows the disclaimer and asks for consent unless yes is
// set. It returns false when the operator declines.
func confirmAgreement(ctx context.Context, out io.Writer, prompter config.Prompter, yes bool) (bool, error) {
	if yes {
		return true, nil
	}
	rule := strings.Repeat("=", 80)
	fmt.Fprintf(out, "\n%s\n%s\n%s\n\n", rule, disclaimer, rule)

	ok, err := prompter.Confirm(ctx, agreementQuestion)
	if err != nil {
		return false, err
	}
	if !ok {
		fmt.Fprintln(out, "Exiting as agreement was not confirmed.")
	}
	return ok, nil
}
