// Package cli provides the command-line interface for selenium-runner.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to config.properties or config.yaml (default: looked up in the working directory)",
		EnvVars: []string{"SELENIUM_RUNNER_CONFIG"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable verbose logging",
		EnvVars: []string{"SELENIUM_RUNNER_VERBOSE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// NewApp builds the command tree.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "selenium-runner",
		Usage:   "Data-driven Selenium UI test runner",
		Version: Version,
		Description: `Selenium Runner reads the scenarios enabled in a test data workbook,
runs each one per data row against a fresh browser session, retries failures
as configured and writes an HTML and Allure report.

Examples:
  selenium-runner run
  selenium-runner --config config.properties run --parallel 4
  selenium-runner run -s LoginTest --driver cdp --headless
  selenium-runner list
  selenium-runner validate --sheet Regression
  selenium-runner report reports/2024-01-01_10-00-00`,
		Flags: GlobalFlags,
		Before: func(c *cli.Context) error {
			if c.Bool("no-ansi") {
				colorsEnabled = false
			}
			return nil
		},
		Commands: []*cli.Command{
			runCommand,
			listCommand,
			validateCommand,
			scenariosCommand,
			reportCommand,
		},
	}
}

// Execute runs the CLI.
func Execute() {
	if err := NewApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
