package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/signup-cli/internal/generator"
)

func newGenerateCmd(deps dependencies) *cobra.Command {
	var (
		count     int
		output    string
		printData bool
	)
	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Write random test data for the batch and demo commands",
		Args:  cobra.NoArgs,
		// Generating data needs neither the agreement nor a browser.
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 0 {
				return fmt.Errorf("--count must not be negative, got %d", count)
			}
			doc := generator.Document{
				GeneratedAt: time.Now(),
				TestData:    generator.Generate(deps.rng, count),
			}
			out := cmd.OutOrStdout()
			if printData {
				data, err := generator.Encode(doc)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
			}
			if err := generator.WriteFile(output, doc); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			fmt.Fprintf(out, "Generated %d test data entries and saved to %s\n", count, output)
			return nil
		},
	}
	f := generateCmd.Flags()
	f.IntVarP(&count, "count", "c", 3, "Number of test data entries to generate")
	f.StringVarP(&output, "output", "o", "test_data.json", "Output JSON file path")
	f.BoolVarP(&printData, "print", "p", false, "Print the generated data to the console")
	return generateCmd
}
