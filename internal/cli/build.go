package cli

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"cartwright/pkg/packaging"
	"cartwright/pkg/pipeline"
)

// buildCommand creates the build command for assembling packages.
func (c *CLI) buildCommand() *cobra.Command {
	var (
		output     string
		assetsDir  string
		reportPath string
		noCache    bool
		refresh    bool
	)
	opts := pipeline.Options{}

	cmd := &cobra.Command{
		Use:   "build [dataset]",
		Short: "Build a Common Cartridge package from a dataset",
		Long: `Build an IMS Common Cartridge (.imscc) package from a dataset.

The dataset may be a local file or an http(s) URL. JSON, YAML, CSV, and
Rise und.js exports are detected by file extension; use --format to
override. Records that fail schema validation or transformation are
skipped and reported, and the remaining records are packaged. Identical
inputs always produce a byte-identical archive.

Results are cached locally so repeat builds are instant. Use --refresh to
rebuild once, or --no-cache to bypass the cache entirely.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.DatasetPath = args[0]
			c.mergeBuildDefaults(cmd, &opts)
			c.mergeFormatDefault(cmd, &opts)
			if assetsDir != "" {
				assets, err := loadAssets(assetsDir)
				if err != nil {
					return err
				}
				opts.Assets = assets
			}
			opts.Refresh = refresh
			return c.runBuild(cmd.Context(), opts, output, reportPath, noCache)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default derived from the course title)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "course title (default taken from the dataset)")
	cmd.Flags().StringVar(&opts.BaseURL, "base-url", "", "base URL for records that link to hosted content")
	cmd.Flags().StringVar(&opts.SchemaPath, "schema", "", "custom JSON Schema for record validation")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "dataset format: json, yaml, csv, rise (default by extension)")
	cmd.Flags().StringVar(&opts.DefaultSection, "section", "", "section title for records without one")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "parallel record workers (default 4)")
	cmd.Flags().StringVar(&assetsDir, "assets-dir", "", "directory of shared asset files to bundle")
	cmd.Flags().StringVar(&reportPath, "report", "", "write the rejection report as JSON to this file")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "rebuild even if a cached artifact exists")

	return cmd
}

// runBuild executes the pipeline and writes the artifact.
func (c *CLI) runBuild(ctx context.Context, opts pipeline.Options, output, reportPath string, noCache bool) error {
	runner, err := c.newRunner(noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	opts.Logger = c.Logger
	prog := newProgress(c.Logger)

	printInfo("Dataset: %s", StyleHighlight.Render(opts.DatasetPath))

	spinner := newSpinnerWithContext(ctx, "Building package...")
	spinner.Start()

	result, err := runner.Execute(ctx, opts)
	if err != nil {
		spinner.StopWithError("Build failed")
		return fmt.Errorf("build: %w", err)
	}
	spinner.Stop()

	path := output
	if path == "" {
		path = result.Artifact.Name
	}
	if err := packaging.Save(result.Artifact, path); err != nil {
		printError("Could not write %s", path)
		return fmt.Errorf("build: %w", err)
	}
	prog.done(fmt.Sprintf("Wrote %s", path))

	summary := result.Report.Summary(result.Stats.Records)
	if result.Report.Empty() {
		printSuccess("%s", summary)
	} else {
		printWarning("%s", summary)
	}
	printFile(path)
	printStats(result.Stats, result.CacheInfo.ArtifactHit)

	if !result.Report.Empty() {
		printNewline()
		printReport(&result.Report)
	}
	if reportPath != "" {
		if err := writeReportFile(&result.Report, reportPath); err != nil {
			return fmt.Errorf("build: %w", err)
		}
		printDetail("Report: %s", reportPath)
	}

	return nil
}

// writeReportFile writes the rejection report as JSON to path.
func writeReportFile(report *pipeline.Report, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()
	return report.WriteJSON(f)
}

// loadAssets reads every regular file under dir into an asset map. Keys
// are slash-separated paths relative to dir, the names records use to
// reference them.
func loadAssets(dir string) (map[string][]byte, error) {
	assets := make(map[string][]byte)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		assets[filepath.ToSlash(rel)] = data
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load assets from %s: %w", dir, err)
	}
	return assets, nil
}
