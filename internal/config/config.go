// Package config loads settings from YAML files with DUALS_* environment
// variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Logging    LoggingConfig           `mapstructure:"logging"`
	BCRA       BCRAConfig              `mapstructure:"bcra"`
	Market     MarketConfig            `mapstructure:"market"`
	Prospectus ProspectusConfig        `mapstructure:"prospectus"`
	Report     ReportConfig            `mapstructure:"report"`
	Postgres   PostgresConfig          `mapstructure:"postgres"`
	Lambda     LambdaConfig            `mapstructure:"lambda"`
	Tickers    map[string]TickerConfig `mapstructure:"tickers"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console or json
}

// BCRAConfig points at the central bank statistics API serving the reference rate.
type BCRAConfig struct {
	BaseURL            string        `mapstructure:"base_url"`
	SeriesID           int           `mapstructure:"series_id"` // 0 discovers the TAMAR series
	PageSize           int           `mapstructure:"page_size"`
	Timeout            time.Duration `mapstructure:"timeout"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	SeriesFile         string        `mapstructure:"series_file"` // spreadsheet path or URL used instead of the API
}

type MarketConfig struct {
	Endpoints []string      `mapstructure:"endpoints"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

type ProspectusConfig struct {
	BusinessDayOffset int    `mapstructure:"business_day_offset"`
	UseHolidays       bool   `mapstructure:"use_holidays"`
	Conversion        string `mapstructure:"conversion"` // simple or compounded
}

type ReportConfig struct {
	Destination string `mapstructure:"destination"` // directory or s3://bucket/prefix, empty disables
	AWSProfile  string `mapstructure:"aws_profile"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

type LambdaConfig struct {
	Tickers []string `mapstructure:"tickers"`
	Bucket  string   `mapstructure:"bucket"`
	Prefix  string   `mapstructure:"prefix"`
}

// TickerConfig adds to or replaces an entry of the built-in dual bond table.
type TickerConfig struct {
	Issue           string  `mapstructure:"issue"`
	Maturity        string  `mapstructure:"maturity"`
	FixedMonthlyTEM float64 `mapstructure:"fixed_monthly_tem"`
	OfficialTIREA   float64 `mapstructure:"official_tirea"`
}

const envPrefix = "DUALS"

// Load reads the configuration from the first duals.yaml found in
// ./config, ~/.duals and /etc/duals. A missing file is not an error.
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("duals")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".duals"))
	v.AddConfigPath("/etc/duals")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return unmarshal(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("bcra.base_url", "https://api.bcra.gob.ar/estadisticas/v3.0/monetarias")
	v.SetDefault("bcra.series_id", 44) // TAMAR bancos privados
	v.SetDefault("bcra.page_size", 3000)
	v.SetDefault("bcra.timeout", 30*time.Second)
	v.SetDefault("bcra.insecure_skip_verify", false)
	v.SetDefault("bcra.series_file", "")

	v.SetDefault("market.endpoints", []string{
		"https://data912.com/live/arg_bonds",
		"https://data912.com/live/arg_notes",
	})
	v.SetDefault("market.timeout", 30*time.Second)
	v.SetDefault("market.user_agent", "duals/1.0")

	v.SetDefault("prospectus.business_day_offset", 10)
	v.SetDefault("prospectus.use_holidays", true)
	v.SetDefault("prospectus.conversion", "simple")

	v.SetDefault("report.destination", "")
	v.SetDefault("report.aws_profile", "default")

	v.SetDefault("postgres.dsn", "")

	v.SetDefault("lambda.tickers", []string{"TTM26", "TTJ26", "TTS26", "TTD26"})
	v.SetDefault("lambda.bucket", "")
	v.SetDefault("lambda.prefix", "")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
