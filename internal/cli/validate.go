package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"cartwright/pkg/errors"
	"cartwright/pkg/pipeline"
)

// validateCommand creates the validate command for checking datasets.
func (c *CLI) validateCommand() *cobra.Command {
	opts := pipeline.Options{}

	cmd := &cobra.Command{
		Use:   "validate [dataset]",
		Short: "Validate every dataset record without packaging",
		Long: `Validate every record in a dataset without building a package.

Each record is checked against the JSON Schema (the built-in one, or a
custom schema via --schema) and then transformed, so the command also
catches records that would fail during packaging, such as link records
used without a base URL. The command exits non-zero if any record is
rejected.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.DatasetPath = args[0]
			c.mergeBuildDefaults(cmd, &opts)
			c.mergeFormatDefault(cmd, &opts)
			return c.runValidate(cmd.Context(), opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.SchemaPath, "schema", "", "custom JSON Schema for record validation")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "dataset format: json, yaml, csv, rise (default by extension)")
	cmd.Flags().StringVar(&opts.BaseURL, "base-url", "", "base URL for records that link to hosted content")
	cmd.Flags().StringVar(&opts.DefaultSection, "section", "", "section title for records without one")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "parallel record workers (default 4)")

	return cmd
}

// runValidate checks the dataset and reports every rejection.
func (c *CLI) runValidate(ctx context.Context, opts pipeline.Options, input string) error {
	// Validation never builds an artifact, so skip the cache entirely.
	runner, err := c.newRunner(true)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	opts.Logger = c.Logger

	spinner := newSpinnerWithContext(ctx, "Validating records...")
	spinner.Start()

	result, err := runner.Validate(ctx, opts)
	if err != nil {
		spinner.StopWithError("Validation failed")
		return fmt.Errorf("validate: %w", err)
	}
	spinner.Stop()

	if result.Report.Empty() {
		printSuccess("All %d records valid", result.Stats.Records)
		printStats(result.Stats, false)
		printNewline()
		printNextStep("Next", fmt.Sprintf("cartwright build %s", input))
		return nil
	}

	printError("%d of %d records rejected", result.Stats.Skipped, result.Stats.Records)
	printReport(&result.Report)
	return errors.New(errors.ErrCodeInvalidDataset,
		"%d of %d records rejected", result.Stats.Skipped, result.Stats.Records)
}
