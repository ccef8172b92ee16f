package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/selenium-runner/pkg/artifacts"
	"github.com/devicelab-dev/selenium-runner/pkg/capture"
	"github.com/devicelab-dev/selenium-runner/pkg/config"
	"github.com/devicelab-dev/selenium-runner/pkg/core"
	"github.com/devicelab-dev/selenium-runner/pkg/datasource"
	"github.com/devicelab-dev/selenium-runner/pkg/download"
	"github.com/devicelab-dev/selenium-runner/pkg/driver/cdp"
	"github.com/devicelab-dev/selenium-runner/pkg/driver/mock"
	seleniumdriver "github.com/devicelab-dev/selenium-runner/pkg/driver/selenium"
	"github.com/devicelab-dev/selenium-runner/pkg/executor"
	"github.com/devicelab-dev/selenium-runner/pkg/expand"
	"github.com/devicelab-dev/selenium-runner/pkg/logger"
	"github.com/devicelab-dev/selenium-runner/pkg/metrics"
	"github.com/devicelab-dev/selenium-runner/pkg/report"
	"github.com/devicelab-dev/selenium-runner/pkg/retry"
	"github.com/devicelab-dev/selenium-runner/pkg/scenario"
	"github.com/devicelab-dev/selenium-runner/pkg/session"
	"github.com/devicelab-dev/selenium-runner/pkg/storefront"
	"github.com/devicelab-dev/selenium-runner/pkg/validator"
)

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "Run the scenarios enabled in the test data workbook",
	Description: `Every enabled scenario runs once per row of its data sheet, each attempt
in a fresh browser session. Failed attempts are retried when retry is on.

Output structure:
  reports/<timestamp>/
    selenium-runner.log
    report.json
    report.html
    entries/
    assets/
    allure-results/
    screenshots/
    downloads/

Examples:
  selenium-runner run
  selenium-runner run --sheet Smoke --parallel 4 --retry
  selenium-runner run -s LoginTest -s FooterLinkTest --driver cdp --headless
  selenium-runner run -e EMAIL=other@example.com --output ./out --flatten`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "sheet",
			Usage: "Scenario selection sheet (overrides config and the sheet env var)",
		},
		&cli.IntFlag{
			Name:  "parallel",
			Usage: "Number of browsers running scenarios at once",
		},
		&cli.BoolFlag{
			Name:  "retry",
			Usage: "Retry a failed scenario once",
		},
		&cli.StringFlag{
			Name:    "driver",
			Aliases: []string{"d"},
			Usage:   "Browser driver (selenium, cdp, mock)",
			EnvVars: []string{"SELENIUM_RUNNER_DRIVER"},
		},
		&cli.StringFlag{
			Name:  "browser",
			Usage: "Browser for the selenium driver (chrome, firefox)",
		},
		&cli.BoolFlag{
			Name:  "headless",
			Usage: "Run the browser without a window",
		},
		&cli.StringSliceFlag{
			Name:    "scenario",
			Aliases: []string{"s"},
			Usage:   "Only run the named scenario (repeatable)",
		},
		&cli.StringSliceFlag{
			Name:    "env",
			Aliases: []string{"e"},
			Usage:   "Variable for ${...} expansion in test data (KEY=VALUE)",
		},
		&cli.StringFlag{
			Name:  "output",
			Usage: "Output directory for reports (default: <reportPath>/<timestamp>)",
		},
		&cli.BoolFlag{
			Name:  "flatten",
			Usage: "Don't create a timestamp subfolder (requires --output)",
		},
	},
	Action: runScenarios,
}

// RunConfig holds everything a run needs once flags and config are merged.
type RunConfig struct {
	Config    *config.Config
	OutputDir string
	Scenarios []string // name filter, empty runs every enabled scenario
	Verbose   bool

	// Factory replaces the driver chosen by Config.Driver when set.
	Factory core.DriverFactory
	// Register fills the scenario registry, storefront.Register when nil.
	Register func(*scenario.Registry, storefront.Env) error

	Stdout io.Writer
}

func runScenarios(c *cli.Context) error {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return err
	}

	// Flags win over the config file
	if c.IsSet("sheet") {
		cfg.Sheet = c.String("sheet")
	}
	if c.IsSet("parallel") {
		cfg.Parallel = c.Int("parallel")
	}
	if c.IsSet("retry") {
		cfg.Retry = c.Bool("retry")
	}
	if c.IsSet("driver") {
		cfg.Driver = c.String("driver")
	}
	if c.IsSet("browser") {
		cfg.Browser = c.String("browser")
	}
	if c.IsSet("headless") {
		cfg.Headless = c.Bool("headless")
	}
	if vars := parseEnvVars(c.StringSlice("env")); len(vars) > 0 {
		if cfg.Env == nil {
			cfg.Env = make(map[string]string, len(vars))
		}
		for k, v := range vars {
			cfg.Env[k] = v
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	output := c.String("output")
	if output == "" && !c.Bool("flatten") {
		output = cfg.ReportPath
	}
	outputDir, err := resolveOutputDir(output, c.Bool("flatten"))
	if err != nil {
		return err
	}

	return executeRun(c.Context, &RunConfig{
		Config:    cfg,
		OutputDir: outputDir,
		Scenarios: c.StringSlice("scenario"),
		Verbose:   c.Bool("verbose"),
		Register:  registerScenarios,
		Stdout:    c.App.Writer,
	})
}

// registerScenarios is the registration used by the run and scenarios commands.
var registerScenarios = storefront.Register

// loadConfig loads path, or discovers the config file when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.Discover(".")
}

// resolveOutputDir determines the output directory based on flags.
// - No --output: ./reports/<timestamp>/
// - --output given: <output>/<timestamp>/
// - --output + --flatten: <output>/ (error if --output not given)
func resolveOutputDir(output string, flatten bool) (string, error) {
	if flatten && output == "" {
		return "", fmt.Errorf("--flatten requires --output to be specified")
	}

	baseDir := output
	if baseDir == "" {
		baseDir = "./reports"
	}

	if flatten {
		return filepath.Clean(baseDir), nil
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(baseDir, timestamp), nil
}

// artifactDir places relative artifact directories inside the run's output directory.
func artifactDir(outputDir, dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(outputDir, dir)
}

func executeRun(ctx context.Context, rc *RunConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := rc.Config
	out := rc.Stdout
	if out == nil {
		out = os.Stdout
	}

	// 1. Create output directory
	if err := os.MkdirAll(rc.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// 2. Initialize logging
	logPath := cfg.LogFile
	if logPath == "" {
		logPath = filepath.Join(rc.OutputDir, "selenium-runner.log")
	}
	level := cfg.LogLevel
	if rc.Verbose {
		level = "debug"
	}
	logOpts := logger.Options{File: logPath, Level: level}
	if rc.Verbose {
		logOpts.Console = os.Stderr
		logOpts.HumanReadable = true
	}
	if err := logger.Configure(logOpts); err != nil {
		fmt.Fprintf(out, "Warning: Failed to initialize logger: %v\n", err)
	}
	defer logger.Close()

	logger.Info("=== Test execution started ===")
	logger.Info("Output directory: %s", rc.OutputDir)
	logger.Info("Driver: %s, browser: %s", cfg.Driver, cfg.Browser)

	// 3. Scenarios and the directories they write to
	screenshots := artifactDir(rc.OutputDir, cfg.ScreenshotDir)
	downloads := artifactDir(rc.OutputDir, cfg.DownloadDir)
	capturer := capture.New(screenshots)
	watcher := download.NewWatcher(downloads, cfg.DownloadTimeout())

	register := rc.Register
	if register == nil {
		register = storefront.Register
	}
	registry := scenario.NewRegistry()
	if err := register(registry, storefront.Env{
		BaseURL:   cfg.URL,
		Email:     cfg.UserEmail,
		Password:  cfg.UserPassword,
		Wait:      cfg.ExplicitWaitDuration(),
		Capturer:  capturer,
		Downloads: watcher,
	}); err != nil {
		return err
	}

	// 4. Validate the workbook and expand it into runs
	descs, err := validateWorkbook(out, cfg, registry, rc.Scenarios)
	if err != nil {
		logger.Error("Test data: %v", err)
		return err
	}
	if len(descs) == 0 {
		fmt.Fprintf(out, "No enabled scenarios in sheet %q\n", cfg.Sheet)
		return nil
	}
	logger.Info("%d scenario runs from %s [%s]", len(descs), cfg.WorkbookPath(), cfg.Sheet)

	// 5. Report
	settings, err := config.LoadReportSettings(cfg.ConfigPath)
	if err != nil {
		return err
	}
	env := map[string]string{"URL": cfg.URL, "Sheet": cfg.Sheet}
	for k, v := range settings.Environment {
		env[k] = v
	}
	reporter, err := report.New(report.Options{
		OutputDir: rc.OutputDir,
		Title:     settings.Title,
		Browser: report.Browser{
			Name:     cfg.Browser,
			Headless: cfg.Headless,
		},
		Runner: report.RunnerInfo{
			Version:     Version,
			Driver:      cfg.Driver,
			Parallelism: cfg.Parallel,
			RetryLimit:  cfg.RetryLimit(),
		},
		Environment: env,
		EmbedAssets: settings.EmbedAssets,
	})
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}

	// 6. Artifact directories are emptied before the suite starts
	if err := artifacts.PrepareDirs(capturer, watcher); err != nil {
		return fmt.Errorf("failed to prepare artifact directories: %w", err)
	}

	// 7. Browser sessions
	factory := rc.Factory
	if factory == nil {
		factory, err = driverFactory(cfg, downloads)
		if err != nil {
			return err
		}
	}
	sessions := session.NewManager(factory, reporter)

	engine := expand.New(cfg.Variables())
	progress := newProgress(out, len(descs))
	runner, err := executor.New(executor.RunnerConfig{
		Registry:        registry,
		Sessions:        sessions,
		Capturer:        capturer,
		Retry:           retry.FromFlag(cfg.Retry),
		Parallelism:     cfg.Parallel,
		Metrics:         metrics.New(cfg.MetricsAddr, reporter.RunID()),
		Expand:          engine.Params,
		OnScenarioStart: progress.scenarioStart,
		OnAttemptEnd:    progress.attemptEnd,
		OnScenarioEnd:   progress.scenarioEnd,
	})
	if err != nil {
		return err
	}

	// 8. Run; Ctrl+C skips whatever has not started yet
	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(out, "\n  Running %d scenario runs on %d worker(s) with the %s driver\n",
		len(descs), cfg.Parallel, cfg.Driver)
	result, runErr := runner.RunAll(runCtx, descs)
	if result == nil {
		logger.Error("Run failed: %v", runErr)
		return runErr
	}
	if runErr != nil {
		logger.Error("Run finished with errors: %v", runErr)
		fmt.Fprintf(out, "%sError:%s %v\n", color(colorRed), color(colorReset), runErr)
	}

	// 9. Summary
	printSummary(out, result)
	fmt.Fprintf(out, "\n  Report: %s\n", filepath.Join(result.ReportDir, "report.html"))
	fmt.Fprintf(out, "  Allure: %s\n", filepath.Join(result.ReportDir, "allure-results"))
	fmt.Fprintf(out, "  Log:    %s\n\n", logPath)

	logger.Info("=== Test execution finished: %s ===", result.Status)
	if result.Status != report.StatusPassed || runErr != nil {
		return cli.Exit("", 1)
	}
	return nil
}

// driverFactory creates the browser factory named by cfg.Driver.
func driverFactory(cfg *config.Config, downloads string) (core.DriverFactory, error) {
	switch cfg.Driver {
	case "selenium":
		return seleniumdriver.Factory(seleniumdriver.Options{
			RemoteURL:    cfg.SeleniumURL,
			Browser:      cfg.Browser,
			Headless:     cfg.Headless,
			ImplicitWait: cfg.ImplicitWaitDuration(),
			DownloadDir:  downloads,
		}), nil
	case "cdp":
		if cfg.Browser != "chrome" {
			return nil, core.ErrInvalidConfig.WithMessage("the cdp driver only drives chrome, got " + cfg.Browser)
		}
		return cdp.Factory(cdp.Options{
			Headless:    cfg.Headless,
			DownloadDir: downloads,
		}), nil
	case "mock":
		// Dry run: sessions start but pages are empty
		return mock.NewPool(mock.Config{Browser: cfg.Browser}).Factory(), nil
	default:
		return nil, core.ErrInvalidConfig.WithMessage("unknown driver: " + cfg.Driver)
	}
}

// validateWorkbook opens the configured workbook and checks it against registry.
// Every problem is printed before the combined error is returned.
func validateWorkbook(out io.Writer, cfg *config.Config, registry *scenario.Registry, only []string) ([]core.Descriptor, error) {
	wb, err := datasource.Open(cfg.WorkbookPath())
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	result := validator.New(registry, storefront.RequiredColumns, only).Validate(wb, cfg.Sheet)
	if !result.IsValid() {
		fmt.Fprintf(out, "%sTest data errors in %s:%s\n", color(colorRed), wb.Path(), color(colorReset))
		for _, e := range result.Errors {
			fmt.Fprintf(out, "  %s✗%s %v\n", color(colorRed), color(colorReset), e)
		}
		return nil, result.Err()
	}
	return result.Descriptors, nil
}

func parseEnvVars(envs []string) map[string]string {
	result := make(map[string]string)
	for _, e := range envs {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) == 2 {
			result[parts[0]] = parts[1]
		}
	}
	return result
}
