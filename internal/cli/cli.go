package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"cartwright/internal/config"
	"cartwright/pkg/buildinfo"
	"cartwright/pkg/cache"
	"cartwright/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "cartwright"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	cfg        *config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "cartwright",
		Short: "Cartwright assembles datasets into Common Cartridge packages",
		Long: `Cartwright turns lesson datasets (JSON, YAML, CSV, or Rise exports) into
IMS Common Cartridge (.imscc) packages that learning management systems
can import. The same dataset and options always produce a byte-identical
package.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default ~/.config/cartwright/config.toml)")

	// Register all subcommands
	root.AddCommand(c.buildCommand())
	root.AddCommand(c.validateCommand())
	root.AddCommand(c.previewCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Configuration
// =============================================================================

// loadConfig loads the config file once per process. A broken file is
// logged and ignored so a stray config never blocks builds.
func (c *CLI) loadConfig() *config.Config {
	if c.cfg != nil {
		return c.cfg
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		c.Logger.Warn("Ignoring unusable config file", "error", err)
		def := config.Default()
		cfg = &def
	}
	c.cfg = cfg
	return cfg
}

// mergeBuildDefaults fills build options from the config file for flags
// the user did not set on the command line. Only flags the command
// actually defines are considered. The dataset format default is merged
// by build and validate themselves because preview reuses the --format
// flag name for its output format.
func (c *CLI) mergeBuildDefaults(cmd *cobra.Command, opts *pipeline.Options) {
	cfg := c.loadConfig()
	flags := cmd.Flags()

	merge := func(name string, apply func()) {
		if flags.Lookup(name) != nil && !flags.Changed(name) {
			apply()
		}
	}

	merge("title", func() {
		if cfg.Defaults.Title != "" {
			opts.Title = cfg.Defaults.Title
		}
	})
	merge("base-url", func() {
		if cfg.Defaults.BaseURL != "" {
			opts.BaseURL = cfg.Defaults.BaseURL
		}
	})
	merge("section", func() {
		if cfg.Defaults.Section != "" {
			opts.DefaultSection = cfg.Defaults.Section
		}
	})
	merge("workers", func() {
		if cfg.Defaults.Workers > 0 {
			opts.Workers = cfg.Defaults.Workers
		}
	})
}

// mergeFormatDefault applies the config file's dataset format when the
// command's --format flag was not set.
func (c *CLI) mergeFormatDefault(cmd *cobra.Command, opts *pipeline.Options) {
	cfg := c.loadConfig()
	if !cmd.Flags().Changed("format") && cfg.Defaults.Format != "" {
		opts.Format = cfg.Defaults.Format
	}
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(noCache bool) (*pipeline.Runner, error) {
	store, err := c.newCache(noCache)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(store, nil, c.Logger), nil
}

func (c *CLI) newCache(noCache bool) (cache.Cache, error) {
	if noCache || c.loadConfig().Cache.Disabled {
		return cache.NewNullCache(), nil
	}
	dir, err := c.cacheLocation()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// cacheLocation returns the effective artifact cache directory: the
// configured one, or the XDG default.
func (c *CLI) cacheLocation() (string, error) {
	if dir := c.loadConfig().Cache.Dir; dir != "" {
		return dir, nil
	}
	return cacheDir()
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/cartwright/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
