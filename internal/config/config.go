// Package config loads the reports TOML configuration through viper.
// Every key can be overridden with a REPORTS_ environment variable, e.g.
// REPORTS_REPORT_WORKERS=4 or REPORTS_SOURCE_HOST=/data/survey.db.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"

	"reports/internal/domain"
)

// CatalogSource stores reports in the survey database itself.
const CatalogSource domain.DatabaseDriver = "source"

type Config struct {
	Source   domain.DatabaseConnection `mapstructure:"source"`
	Catalog  domain.DatabaseConnection `mapstructure:"catalog"`
	Output   OutputConfig              `mapstructure:"output"`
	Report   ReportConfig              `mapstructure:"report"`
	Schedule ScheduleConfig            `mapstructure:"schedule"`
	Log      LogConfig                 `mapstructure:"log"`
	Secrets  SecretsConfig             `mapstructure:"secrets"`
}

type OutputConfig struct {
	Dir      string `mapstructure:"dir"`       // artifact directory
	PhotoDir string `mapstructure:"photo_dir"` // where photo file names resolve
}

type ReportConfig struct {
	Workers        int    `mapstructure:"workers"` // 0 = GOMAXPROCS
	Locale         string `mapstructure:"locale"`
	UseChoiceNames bool   `mapstructure:"use_choice_names"`
	PreviewRows    int    `mapstructure:"preview_rows"`
}

type ScheduleConfig struct {
	Cron  string `mapstructure:"cron"`
	Watch string `mapstructure:"watch"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | console
}

type SecretsConfig struct {
	Backend string `mapstructure:"backend"` // env | keychain
}

func DefaultConfig() *Config {
	return &Config{
		Source: domain.DatabaseConnection{
			Driver: domain.DatabaseDriverSQLite,
			Host:   "data/survey.db",
		},
		Catalog: domain.DatabaseConnection{
			Driver: CatalogSource,
		},
		Output: OutputConfig{
			Dir:      "reports",
			PhotoDir: "photos",
		},
		Report: ReportConfig{
			Locale:      "en",
			PreviewRows: 20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Secrets: SecretsConfig{
			Backend: "env",
		},
	}
}

// Load reads the TOML file at path over the defaults. A missing file or an
// empty path yields the defaults (plus environment overrides).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix("REPORTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv overrides reach Unmarshal.
func setDefaults(v *viper.Viper, d *Config) {
	conn := func(prefix string, c domain.DatabaseConnection) {
		v.SetDefault(prefix+".driver", string(c.Driver))
		v.SetDefault(prefix+".host", c.Host)
		v.SetDefault(prefix+".port", c.Port)
		v.SetDefault(prefix+".database", c.Database)
		v.SetDefault(prefix+".username", c.Username)
		v.SetDefault(prefix+".ssl_mode", c.SSLMode)
		v.SetDefault(prefix+".password_env", c.PasswordKey)
	}
	conn("source", d.Source)
	conn("catalog", d.Catalog)

	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("output.photo_dir", d.Output.PhotoDir)
	v.SetDefault("report.workers", d.Report.Workers)
	v.SetDefault("report.locale", d.Report.Locale)
	v.SetDefault("report.use_choice_names", d.Report.UseChoiceNames)
	v.SetDefault("report.preview_rows", d.Report.PreviewRows)
	v.SetDefault("schedule.cron", d.Schedule.Cron)
	v.SetDefault("schedule.watch", d.Schedule.Watch)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("secrets.backend", d.Secrets.Backend)
}

func (c *Config) Validate() error {
	if !c.Source.Driver.SQL() {
		return fmt.Errorf("source: driver %q is not a sql database", c.Source.Driver)
	}
	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if c.Catalog.Driver != CatalogSource {
		if err := c.Catalog.Validate(); err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
	}
	if c.Report.Workers < 0 {
		return fmt.Errorf("report: workers must be >= 0, got %d", c.Report.Workers)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log: unknown format %q", c.Log.Format)
	}
	return nil
}
