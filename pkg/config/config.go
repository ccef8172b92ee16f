// Package config handles configuration for selenium-runner.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/selenium-runner/pkg/core"
)

// EnvSheet overrides the configured scenario sheet when set.
const EnvSheet = "sheet"

// Config represents the run configuration (config.properties or config.yaml).
// Wait and download times are whole seconds.
type Config struct {
	// Application under test
	URL          string `yaml:"url" mapstructure:"url" validate:"required,url"`
	UserEmail    string `yaml:"userEmail" mapstructure:"userEmail"`
	UserPassword string `yaml:"userPassword" mapstructure:"userPassword"`

	// Test data
	Workbook string `yaml:"workbook" mapstructure:"workbook" validate:"required"`
	Sheet    string `yaml:"sheet" mapstructure:"sheet" validate:"required"`
	DataPath string `yaml:"dataPath" mapstructure:"dataPath"`

	// Timing
	ExplicitWait int `yaml:"explicitWait" mapstructure:"explicitWait" validate:"gte=0"`
	ImplicitWait int `yaml:"implicitWait" mapstructure:"implicitWait" validate:"gte=0"`
	DownloadTime int `yaml:"downloadTime" mapstructure:"downloadTime" validate:"gte=0"`

	// Execution
	Retry    bool   `yaml:"retry" mapstructure:"retry"`
	Parallel int    `yaml:"parallel" mapstructure:"parallel" validate:"gte=1"`
	Driver   string `yaml:"driver" mapstructure:"driver" validate:"oneof=selenium cdp mock"`
	Browser  string `yaml:"browser" mapstructure:"browser" validate:"oneof=chrome firefox"`
	Headless bool   `yaml:"headless" mapstructure:"headless"`

	SeleniumURL string `yaml:"seleniumURL" mapstructure:"seleniumURL" validate:"omitempty,url"`

	// Output
	ReportPath    string `yaml:"reportPath" mapstructure:"reportPath"`
	ConfigPath    string `yaml:"configPath" mapstructure:"configPath"` // report title/theme file, optional
	ScreenshotDir string `yaml:"screenshotDir" mapstructure:"screenshotDir"`
	DownloadDir   string `yaml:"downloadDir" mapstructure:"downloadDir"`
	LogLevel      string `yaml:"logLevel" mapstructure:"logLevel" validate:"omitempty,oneof=debug info warn error"`
	LogFile       string `yaml:"logFile" mapstructure:"logFile"`

	// Pushgateway address, metrics are pushed at the end of the run when set
	MetricsAddr string `yaml:"metricsAddr" mapstructure:"metricsAddr" validate:"omitempty,url"`

	// Extra variables for ${...} expansion in test data
	Env map[string]string `yaml:"env" mapstructure:"env"`
}

// Defaults returns a configuration with every optional key filled in.
func Defaults() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset optional keys.
func (c *Config) ApplyDefaults() {
	if c.DataPath == "" {
		c.DataPath = "testdata"
	}
	if c.ExplicitWait == 0 {
		c.ExplicitWait = 10
	}
	if c.DownloadTime == 0 {
		c.DownloadTime = 30
	}
	if c.Parallel == 0 {
		c.Parallel = 1
	}
	if c.Driver == "" {
		c.Driver = "selenium"
	}
	if c.Browser == "" {
		c.Browser = "chrome"
	}
	if c.SeleniumURL == "" {
		c.SeleniumURL = "http://127.0.0.1:4444/wd/hub"
	}
	if c.ReportPath == "" {
		c.ReportPath = "reports"
	}
	if c.ScreenshotDir == "" {
		c.ScreenshotDir = "screenshots"
	}
	if c.DownloadDir == "" {
		c.DownloadDir = "downloads"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// ApplyEnv applies environment overrides using lookup (os.LookupEnv in production).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvSheet); ok && strings.TrimSpace(v) != "" {
		c.Sheet = strings.TrimSpace(v)
	}
}

var validate = validator.New()

// Validate checks required keys and value ranges.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return core.ErrInvalidConfig.
				WithMessage("invalid configuration: " + strings.Join(fields, ", ")).
				WithCause(err)
		}
		return core.ErrInvalidConfig.WithCause(err)
	}
	return nil
}

// WorkbookPath returns the absolute-or-relative path of the test data workbook.
func (c *Config) WorkbookPath() string {
	if filepath.IsAbs(c.Workbook) {
		return c.Workbook
	}
	return filepath.Join(c.DataPath, c.Workbook)
}

// ExplicitWaitDuration returns the element wait timeout.
func (c *Config) ExplicitWaitDuration() time.Duration {
	return time.Duration(c.ExplicitWait) * time.Second
}

// ImplicitWaitDuration returns the driver implicit wait.
func (c *Config) ImplicitWaitDuration() time.Duration {
	return time.Duration(c.ImplicitWait) * time.Second
}

// DownloadTimeout returns how long to poll for downloaded files.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.DownloadTime) * time.Second
}

// RetryLimit maps the boolean retry switch onto an attempt budget.
func (c *Config) RetryLimit() int {
	if c.Retry {
		return 1
	}
	return 0
}

// Variables returns the values test data may reference as ${NAME}.
func (c *Config) Variables() map[string]string {
	vars := map[string]string{
		"URL":      c.URL,
		"EMAIL":    c.UserEmail,
		"PASSWORD": c.UserPassword,
	}
	for k, v := range c.Env {
		vars[k] = v
	}
	return vars
}

// Load loads configuration from a file, applies env overrides and defaults, and validates.
// Files ending in .yaml/.yml are YAML; anything else is read as Java-style properties.
func Load(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.LookupEnv)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func read(path string) (*Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
		if err != nil {
			return nil, core.ErrInvalidConfig.WithMessage("cannot read config " + path).WithCause(err)
		}
		var cfg Config
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, core.ErrInvalidConfig.WithMessage("cannot parse config " + path).WithCause(err)
		}
		return &cfg, nil
	default:
		v := viper.New()
		v.SetConfigFile(path)
		v.SetConfigType("properties")
		if err := v.ReadInConfig(); err != nil {
			return nil, core.ErrInvalidConfig.WithMessage("cannot read config " + path).WithCause(err)
		}
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			return nil, core.ErrInvalidConfig.WithMessage("cannot parse config " + path).WithCause(err)
		}
		return &cfg, nil
	}
}

// configNames are probed in order by LoadFromDir.
var configNames = []string{"config.properties", "config.yaml", "config.yml"}

// LoadFromDir looks for config.properties, config.yaml or config.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range configNames {
		configPath := filepath.Join(dir, name)
		if _, err := os.Stat(configPath); err == nil {
			return Load(configPath)
		}
	}
	return nil, core.ErrMissingRequired.WithMessage("no config.properties or config.yaml in " + dir)
}
