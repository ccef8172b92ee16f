package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/selenium-runner/pkg/core"
	"github.com/devicelab-dev/selenium-runner/pkg/datasource"
	"github.com/devicelab-dev/selenium-runner/pkg/report"
	"github.com/devicelab-dev/selenium-runner/pkg/scenario"
	"github.com/devicelab-dev/selenium-runner/pkg/storefront"
)

var listCommand = &cli.Command{
	Name:  "list",
	Usage: "Print the scenarios enabled in the workbook and their data row counts",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "sheet",
			Usage: "Scenario selection sheet (overrides config and the sheet env var)",
		},
	},
	Action: listScenarios,
}

var validateCommand = &cli.Command{
	Name:  "validate",
	Usage: "Check the workbook against the registered scenarios without starting a browser",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "sheet",
			Usage: "Scenario selection sheet (overrides config and the sheet env var)",
		},
		&cli.StringSliceFlag{
			Name:    "scenario",
			Aliases: []string{"s"},
			Usage:   "Only check the named scenario (repeatable)",
		},
	},
	Action: validateScenarios,
}

var scenariosCommand = &cli.Command{
	Name:   "scenarios",
	Usage:  "Print the scenario names this runner can execute",
	Action: printRegistered,
}

var reportCommand = &cli.Command{
	Name:      "report",
	Usage:     "Regenerate report.html and allure-results from a report directory",
	ArgsUsage: "<report-dir>",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "embed",
			Usage: "Embed screenshots in report.html",
		},
		&cli.StringFlag{
			Name:  "title",
			Usage: "Report title (default: the title stored in report.json)",
		},
	},
	Action: regenerateReport,
}

func listScenarios(c *cli.Context) error {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("sheet") {
		cfg.Sheet = c.String("sheet")
	}

	wb, err := datasource.Open(cfg.WorkbookPath())
	if err != nil {
		return err
	}
	defer wb.Close()

	names, err := wb.ListEnabledScenarios(cfg.Sheet)
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintf(w, "%s%s%s [%s]\n", color(colorBold), wb.Path(), color(colorReset), cfg.Sheet)
	if len(names) == 0 {
		fmt.Fprintln(w, "  no enabled scenarios")
		return nil
	}
	for _, name := range names {
		rows, err := wb.LoadParameters(cfg.Sheet, name)
		switch {
		case errors.Is(err, core.ErrSheetNotFound):
			fmt.Fprintf(w, "  %-30s %s\n", name, "no data sheet, runs once")
		case err != nil:
			return err
		default:
			fmt.Fprintf(w, "  %-30s %d rows\n", name, len(rows))
		}
	}
	return nil
}

func validateScenarios(c *cli.Context) error {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("sheet") {
		cfg.Sheet = c.String("sheet")
	}

	reg := scenario.NewRegistry()
	if err := registerScenarios(reg, storefront.Env{}); err != nil {
		return err
	}
	descs, err := validateWorkbook(c.App.Writer, cfg, reg, c.StringSlice("scenario"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s✓%s %d scenario runs in %s [%s]\n",
		color(colorGreen), color(colorReset), len(descs), cfg.WorkbookPath(), cfg.Sheet)
	return nil
}

func printRegistered(c *cli.Context) error {
	reg := scenario.NewRegistry()
	if err := registerScenarios(reg, storefront.Env{}); err != nil {
		return err
	}
	for _, name := range reg.Names() {
		fmt.Fprintln(c.App.Writer, name)
	}
	return nil
}

func regenerateReport(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("exactly one report directory is required")
	}
	dir := c.Args().First()
	if _, err := os.Stat(filepath.Join(dir, "report.json")); err != nil {
		return fmt.Errorf("%s is not a report directory: %w", dir, err)
	}

	htmlPath := filepath.Join(dir, "report.html")
	if err := report.GenerateHTML(dir, report.HTMLConfig{
		OutputPath:  htmlPath,
		EmbedAssets: c.Bool("embed"),
		Title:       c.String("title"),
	}); err != nil {
		return err
	}
	if err := report.GenerateAllure(dir); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Report: %s\n", htmlPath)
	fmt.Fprintf(c.App.Writer, "Allure: %s\n", filepath.Join(dir, "allure-results"))
	return nil
}
