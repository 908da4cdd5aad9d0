package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/signup-cli/api/schemas"
	"github.com/xkilldash9x/signup-cli/internal/generator"
	"github.com/xkilldash9x/signup-cli/internal/observability"
)

type demoOptions struct {
	dataFile string
	timeout  int64
	visible  bool
	headless bool
}

func newDemoCmd(deps dependencies, flags *rootFlags) *cobra.Command {
	opts := &demoOptions{}
	demoCmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the signup form once with a random test-data entry",
		Long: `Picks a random entry from the test-data file and runs the signup form with it.
When the file is missing, invalid or empty a built-in demo record is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			logger := observability.GetLogger()

			ok, err := confirmAgreement(ctx, out, deps.newPrompter(cmd), flags.yes)
			if err != nil || !ok {
				return err
			}

			dataFile := opts.dataFile
			if !cmd.Flags().Changed("data-file") {
				dataFile = cfg.Batch.DataFile
			}
			record, loadErr := generator.PickRecord(deps.rng, dataFile)
			if loadErr != nil {
				logger.Warn("Error loading test data; using default test data instead.", zap.Error(loadErr))
			}

			run := browserSettings(cmd, deps, flags, logger)
			displayTestData(out, record)
			fmt.Fprintln(out, "Starting Snowflake signup demo...")
			fmt.Fprintf(out, "Browser mode: %s\nTimeout: %d ms\n", modeName(run.Visible), run.Timeout.Milliseconds())

			return runOnce(ctx, out, deps, cfg, logger, record, run.Timeout, run.Visible)
		},
	}
	demoCmd.Flags().StringVar(&opts.dataFile, "data-file", "test_data.json", "Path to the test data JSON file")
	bindBrowserFlags(demoCmd, &opts.visible, &opts.headless, &opts.timeout)
	return demoCmd
}

func displayTestData(out io.Writer, r schemas.SignupRecord) {
	fmt.Fprintln(out, "Running Snowflake signup demo with the following test data:")
	fmt.Fprintf(out, "  First Name: %s\n", r.FirstName)
	fmt.Fprintf(out, "  Last Name: %s\n", r.LastName)
	fmt.Fprintf(out, "  Email: %s\n", r.Email)
	fmt.Fprintf(out, "  Company: %s\n", r.Company)
	fmt.Fprintf(out, "  Job Title: %s\n\n", r.JobTitle)
}
