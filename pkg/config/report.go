package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/selenium-runner/pkg/core"
)

// ReportSettings is the optional file named by configPath.
type ReportSettings struct {
	Title       string            `yaml:"title"`
	Environment map[string]string `yaml:"environment"`
	EmbedAssets bool              `yaml:"embedAssets"`
}

// LoadReportSettings reads the report settings file. An empty path yields zero settings.
func LoadReportSettings(path string) (*ReportSettings, error) {
	if path == "" {
		return &ReportSettings{}, nil
	}
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, core.ErrInvalidConfig.WithMessage("cannot read report settings " + path).WithCause(err)
	}
	var s ReportSettings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, core.ErrInvalidConfig.WithMessage("cannot parse report settings " + path).WithCause(err)
	}
	return &s, nil
}
