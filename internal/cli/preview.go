package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cartwright/pkg/pipeline"
	"cartwright/pkg/preview"
)

// previewCommand creates the preview command for inspecting organization
// trees.
func (c *CLI) previewCommand() *cobra.Command {
	var (
		format  string
		output  string
		noCache bool
	)
	opts := pipeline.Options{}

	cmd := &cobra.Command{
		Use:   "preview [dataset]",
		Short: "Preview the organization tree a dataset would produce",
		Long: `Preview the organization tree a dataset would produce, without
writing a package.

The tree shows sections and lesson items exactly as an LMS would display
them after import, with the resource identifier each item references.
Output formats: tree (text, default), dot (Graphviz source), svg.

Records the build would skip are absent from the preview, so this is the
fastest way to check a dataset's structure before building.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := preview.ValidateFormat(format); err != nil {
				return err
			}
			opts.DatasetPath = args[0]
			c.mergeBuildDefaults(cmd, &opts)
			if f := c.loadConfig().Defaults.Format; f != "" {
				opts.Format = f
			}
			return c.runPreview(cmd.Context(), opts, format, output, noCache)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", preview.FormatTree, "output format: tree, dot, svg")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "course title (default taken from the dataset)")
	cmd.Flags().StringVar(&opts.BaseURL, "base-url", "", "base URL for records that link to hosted content")
	cmd.Flags().StringVar(&opts.SchemaPath, "schema", "", "custom JSON Schema for record validation")
	cmd.Flags().StringVar(&opts.DefaultSection, "section", "", "section title for records without one")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}

// runPreview renders the organization tree to stdout or a file.
func (c *CLI) runPreview(ctx context.Context, opts pipeline.Options, format, output string, noCache bool) error {
	runner, err := c.newRunner(noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	opts.Logger = c.Logger

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Rendering %s preview...", format))
	spinner.Start()

	data, cacheHit, err := runner.PreviewWithCacheInfo(ctx, opts, format)
	if err != nil {
		spinner.StopWithError("Preview failed")
		return fmt.Errorf("preview: %w", err)
	}
	spinner.Stop()

	if output == "" {
		os.Stdout.Write(data)
		if len(data) > 0 && data[len(data)-1] != '\n' {
			fmt.Println()
		}
		return nil
	}

	if err := os.WriteFile(output, data, 0644); err != nil {
		return fmt.Errorf("preview: write %s: %w", output, err)
	}
	status := iconFresh
	if cacheHit {
		status = iconCached
	}
	printSuccess("Preview written (%s)", status)
	printFile(output)
	return nil
}
