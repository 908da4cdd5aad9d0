package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/signup-cli/api/schemas"
	"github.com/xkilldash9x/signup-cli/internal/batch"
	"github.com/xkilldash9x/signup-cli/internal/config"
	"github.com/xkilldash9x/signup-cli/internal/generator"
	"github.com/xkilldash9x/signup-cli/internal/observability"
	"github.com/xkilldash9x/signup-cli/internal/store"
)

// sinkProvider builds the result sinks of a batch run. The returned func
// releases whatever the sinks hold open.
type sinkProvider interface {
	Create(ctx context.Context, cfg *config.Config, outputDir string, logger *zap.Logger) (schemas.ResultSink, func(), error)
}

type defaultSinkProvider struct{}

// Create always writes processed_*.json files and adds the Postgres store
// when a database URL is configured.
func (defaultSinkProvider) Create(ctx context.Context, cfg *config.Config, outputDir string, logger *zap.Logger) (schemas.ResultSink, func(), error) {
	fileSink, err := batch.NewFileSink(outputDir, logger)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Store.Enabled() {
		return fileSink, func() {}, nil
	}
	dbStore, closePool, err := store.Connect(ctx, cfg.Store.DatabaseURL, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	return batch.MultiSink{fileSink, dbStore}, closePool, nil
}

type batchOptions struct {
	dataFile  string
	delay     int
	outputDir string
	timeout   int64
	visible   bool
	headless  bool
}

func newBatchCmd(deps dependencies, flags *rootFlags) *cobra.Command {
	opts := &batchOptions{}
	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Run the signup form for every entry in a test-data file",
		Long: `Processes the entries of a test-data file one after another, pausing between
entries. A failed entry is recorded and the batch moves on. Each outcome is
written to processed_<timestamp>_<n>.json and, when store.database_url is set,
to the batch_results table.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, deps, flags, opts)
		},
	}
	f := batchCmd.Flags()
	f.StringVar(&opts.dataFile, "data-file", "test_data.json", "Path to the test data JSON file")
	f.IntVar(&opts.delay, "delay", 60, "Delay in seconds between signups")
	f.StringVar(&opts.outputDir, "output-dir", ".", "Directory for the processed_*.json result files")
	bindBrowserFlags(batchCmd, &opts.visible, &opts.headless, &opts.timeout)
	return batchCmd
}

func runBatch(cmd *cobra.Command, deps dependencies, flags *rootFlags, opts *batchOptions) error {
	ctx := cmd.Context()
	cfg, err := getConfigFromContext(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	ok, err := confirmAgreement(ctx, out, deps.newPrompter(cmd), flags.yes)
	if err != nil || !ok {
		return err
	}

	// Flags the operator left alone fall back to the batch section of the config.
	dataFile, delay, outputDir := opts.dataFile, opts.delay, opts.outputDir
	if !cmd.Flags().Changed("data-file") {
		dataFile = cfg.Batch.DataFile
	}
	if !cmd.Flags().Changed("delay") {
		delay = cfg.Batch.Delay
	}
	if !cmd.Flags().Changed("output-dir") {
		outputDir = cfg.Batch.OutputDir
	}
	if delay < 0 {
		return fmt.Errorf("--delay must not be negative, got %d", delay)
	}

	logger := observability.WithFile(observability.GetLogger(), cfg.Logger, cfg.Batch.LogFile)

	records, err := generator.LoadFile(dataFile)
	if err != nil {
		logger.Error("Error loading test data.", zap.String("path", dataFile), zap.Error(err))
		return fmt.Errorf("no entries found in %s: %w", dataFile, err)
	}
	if len(records) == 0 {
		return fmt.Errorf("no entries found in %s", dataFile)
	}

	sink, cleanup, err := deps.sinks.Create(ctx, cfg, outputDir, logger)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	run := browserSettings(cmd, deps, flags, logger)
	engine, err := newEngine(deps, cfg, logger, run.Timeout, run.Visible)
	if err != nil {
		return err
	}
	runner, err := batch.NewRunner(engine, logger,
		batch.WithDelay(time.Duration(delay)*time.Second),
		batch.WithSink(sink),
	)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Starting batch process with %d entries (browser mode: %s, delay: %ds)\n", len(records), modeName(run.Visible), delay)

	results, err := runner.Run(ctx, records)
	succeeded, failed := batch.Summarize(results)
	fmt.Fprintf(out, "Batch processing finished: %d succeeded, %d failed, %d of %d processed.\n",
		succeeded, failed, len(results), len(records))
	return err
}
