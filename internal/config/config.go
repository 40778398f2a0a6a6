// Package config loads and validates the sequential pipeline
// configuration. Validation is eager: every error here is raised before
// any input file is touched.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"go-refine-pipeline/internal/checkpoint"
	"go-refine-pipeline/internal/model"
)

// Default configuration values.
const (
	defaultPattern        = `(\d+)K\.gr`
	defaultResultTemplate = "{stem}_result.json"
	defaultSampleStep     = 10
	defaultPollInterval   = "1s"
	defaultRenderInterval = "1s"
)

// CalcConfig narrows the calculation range handed to the engine.
type CalcConfig struct {
	Xmin float64 `mapstructure:"xmin"`
	Xmax float64 `mapstructure:"xmax"`
}

// ResumeConfig shapes the input-filename to result-filename mapping used
// on explicit resume.
type ResumeConfig struct {
	ResultNameTemplate string `mapstructure:"result_name_template"`
}

// JournalConfig controls the sqlite run journal.
type JournalConfig struct {
	Path    string `mapstructure:"path"`
	Enabled bool   `mapstructure:"enabled"`
}

// ChartsConfig controls the HTML chart sink.
type ChartsConfig struct {
	Path    string `mapstructure:"path"`
	Enabled bool   `mapstructure:"enabled"`
}

// Config holds the full configuration of a sequential run.
type Config struct {
	InputDataDir         string `mapstructure:"input_data_dir"`
	OutputResultDir      string `mapstructure:"output_result_dir"`
	StructurePath        string `mapstructure:"structure_path"`
	FilenameOrderPattern string `mapstructure:"filename_order_pattern"`

	RefinableVariableNames []string           `mapstructure:"refinable_variable_names"`
	InitialVariableValues  map[string]float64 `mapstructure:"initial_variable_values"`

	PlotY                 bool     `mapstructure:"plot_y"`
	PlotYCalc             bool     `mapstructure:"plot_ycalc"`
	PlotVariableNames     []string `mapstructure:"plot_variable_names"`
	PlotResultEntryNames  []string `mapstructure:"plot_result_entry_names"`
	PlotIntermediateNames []string `mapstructure:"plot_intermediate_result_names"`
	SampleStep            int      `mapstructure:"sample_step"`

	Calc    CalcConfig    `mapstructure:"calc"`
	Resume  ResumeConfig  `mapstructure:"resume"`
	Journal JournalConfig `mapstructure:"journal"`
	Charts  ChartsConfig  `mapstructure:"charts"`

	PollInterval   string `mapstructure:"poll_interval"`
	RenderInterval string `mapstructure:"render_interval"`
}

// Load reads the configuration file and applies defaults and REFINE_*
// environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("REFINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("filename_order_pattern", defaultPattern)
	v.SetDefault("output_result_dir", "results")
	v.SetDefault("sample_step", defaultSampleStep)
	v.SetDefault("poll_interval", defaultPollInterval)
	v.SetDefault("render_interval", defaultRenderInterval)
	v.SetDefault("resume.result_name_template", defaultResultTemplate)
	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.path", "refine.db")
	v.SetDefault("charts.enabled", false)
	v.SetDefault("charts.path", "metrics.html")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: failed to read config %s: %v", model.ErrConfiguration, path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to decode config: %v", model.ErrConfiguration, err)
	}

	// The original refinement order defaults to the seed's declared keys.
	if len(cfg.RefinableVariableNames) == 0 {
		cfg.RefinableVariableNames = model.VariableValueMap(cfg.InitialVariableValues).SortedNames()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks directories, the structure reference, and plot entry
// names. Variable names are validated separately against a probe engine.
func (c *Config) Validate() error {
	for name, path := range map[string]string{
		"input_data_dir":    c.InputDataDir,
		"output_result_dir": c.OutputResultDir,
	} {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("%w: path %q for %q does not exist", model.ErrConfiguration, path, name)
		}
		if !info.IsDir() {
			return fmt.Errorf("%w: path %q for %q is not a directory", model.ErrConfiguration, path, name)
		}
	}
	if c.StructurePath != "" {
		if _, err := os.Stat(c.StructurePath); err != nil {
			return fmt.Errorf("%w: structure file %q does not exist", model.ErrConfiguration, c.StructurePath)
		}
	}
	if c.SampleStep < 1 {
		return fmt.Errorf("%w: sample_step must be at least 1, got %d", model.ErrConfiguration, c.SampleStep)
	}
	if len(c.RefinableVariableNames) == 0 {
		return fmt.Errorf("%w: no refinable variable names and no initial values to derive them from", model.ErrConfiguration)
	}
	if !strings.Contains(c.Resume.ResultNameTemplate, "{stem}") {
		return fmt.Errorf("%w: resume.result_name_template must contain {stem}", model.ErrConfiguration)
	}
	return nil
}

// ResumeMapFunc builds the input-filename to result-filename mapping
// from the configured template.
func (c *Config) ResumeMapFunc() checkpoint.MapFunc {
	template := c.Resume.ResultNameTemplate
	return func(inputFilename string) string {
		stem := strings.TrimSuffix(inputFilename, filepath.Ext(inputFilename))
		return strings.ReplaceAll(template, "{stem}", stem)
	}
}
