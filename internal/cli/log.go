// Package cli implements the cartwright command-line interface.
//
// This package provides commands for building IMS Common Cartridge packages
// from lesson datasets, validating datasets against a schema, previewing the
// organization tree a dataset would produce, serving the build pipeline over
// HTTP, and managing the artifact cache. The CLI is built using cobra and
// supports verbose logging via the charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - build: Assemble a dataset into a .imscc package
//   - validate: Check every record against the schema without packaging
//   - preview: Render the organization tree as text, DOT, or SVG
//   - serve: Run the HTTP build API
//   - cache: Manage the artifact cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. The logger
// is handed to the pipeline runner, which reports per-stage progress.
//
// # Example
//
//	import "cartwright/internal/cli"
//
//	func main() {
//	    app := cli.New(os.Stderr, cli.LogInfo)
//	    if err := app.RootCommand().Execute(); err != nil {
//	        os.Exit(1)
//	    }
//	}
package cli

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a new logger with timestamp formatting.
// The logger writes to w and filters messages at the specified level.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress tracks the start time of an operation and logs completion with
// elapsed duration. It is safe for sequential use by a single goroutine.
type progress struct {
	logger *log.Logger
	start  time.Time
}

// newProgress creates a progress tracker that captures the current time as
// start. The returned progress should call done when the operation completes.
func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time since progress was created.
// The duration is rounded to the nearest millisecond.
// Example output: "Wrote Intro_to_Go.imscc (1.234s)"
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}
