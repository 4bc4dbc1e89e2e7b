package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"appeearsfetch/internal/core/domain"
)

// Config holds all configuration for one fetch run. It is built once and
// passed by value or pointer into each component; nothing reads the
// environment after Load returns.
type Config struct {
	Credentials domain.Credentials
	API         APIConfig
	Task        TaskConfig
	Output      OutputConfig
	Poll        PollConfig
	Log         LogConfig
	Metrics     MetricsConfig
}

// APIConfig locates the AppEEARS service.
type APIConfig struct {
	BaseURL         string        `mapstructure:"APPEEARS_BASE_URL"`
	Timeout         time.Duration `mapstructure:"APPEEARS_HTTP_TIMEOUT"`
	DownloadTimeout time.Duration `mapstructure:"APPEEARS_DOWNLOAD_TIMEOUT"`
}

// TaskConfig describes the point task to submit. Values are kept as text
// until JobRequest parses them.
type TaskConfig struct {
	Name         string `mapstructure:"TASK_NAME"`
	StartDate    string `mapstructure:"START_DATE"` // MM-DD-YYYY
	EndDate      string `mapstructure:"END_DATE"`   // MM-DD-YYYY
	Latitude     string `mapstructure:"LATITUDE"`
	Longitude    string `mapstructure:"LONGITUDE"`
	Product      string `mapstructure:"PRODUCT"`
	Layer        string `mapstructure:"LAYER"`
	OutputFormat string `mapstructure:"OUTPUT_FORMAT"`
}

// OutputConfig is where result files are written.
type OutputConfig struct {
	Dir string `mapstructure:"SAVE_FOLDER"`
}

// PollConfig controls status polling.
type PollConfig struct {
	Interval time.Duration `mapstructure:"POLL_INTERVAL"`
}

// LogConfig selects the logger level and encoding.
type LogConfig struct {
	Level  string `mapstructure:"LOG_LEVEL"`
	Format string `mapstructure:"LOG_FORMAT"`
}

// MetricsConfig names the optional metrics textfile.
type MetricsConfig struct {
	File string `mapstructure:"METRICS_FILE"`
}

// Keys without a default must be bound so Unmarshal sees them.
var boundKeys = []string{
	"EARTHDATA_USERNAME", "EARTHDATA_PASSWORD", "START_DATE", "END_DATE",
	"LATITUDE", "LONGITUDE", "PRODUCT", "LAYER", "METRICS_FILE",
}

// Load reads configuration from envFile (if it exists) and the environment.
// Variables already set in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	for _, key := range boundKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	// Defaults
	v.SetDefault("APPEEARS_BASE_URL", "https://appeears.earthdatacloud.nasa.gov/api")
	v.SetDefault("APPEEARS_HTTP_TIMEOUT", "60s")
	v.SetDefault("APPEEARS_DOWNLOAD_TIMEOUT", "30m")
	v.SetDefault("TASK_NAME", "example_point_task")
	v.SetDefault("OUTPUT_FORMAT", "CSV")
	v.SetDefault("SAVE_FOLDER", "./data")
	v.SetDefault("POLL_INTERVAL", "10s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	cfg := &Config{}
	cfg.Credentials.Username = v.GetString("EARTHDATA_USERNAME")
	cfg.Credentials.Password = v.GetString("EARTHDATA_PASSWORD")

	sections := []struct {
		name string
		out  any
	}{
		{"API", &cfg.API},
		{"task", &cfg.Task},
		{"output", &cfg.Output},
		{"poll", &cfg.Poll},
		{"log", &cfg.Log},
		{"metrics", &cfg.Metrics},
	}
	for _, s := range sections {
		if err := v.Unmarshal(s.out); err != nil {
			return nil, fmt.Errorf("invalid %s settings: %w", s.name, err)
		}
	}

	return cfg, nil
}

// Validate checks the settings every run needs. Task settings are checked by
// JobRequest, since attaching to an existing task does not use them.
func (c *Config) Validate() error {
	var errs []error
	if c.Credentials.Empty() {
		errs = append(errs, errors.New("EARTHDATA_USERNAME and EARTHDATA_PASSWORD are required"))
	}
	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("APPEEARS_BASE_URL is empty"))
	}
	if c.Output.Dir == "" {
		errs = append(errs, errors.New("SAVE_FOLDER is empty"))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("APPEEARS_HTTP_TIMEOUT must be positive, got %s", c.API.Timeout))
	}
	if c.API.DownloadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("APPEEARS_DOWNLOAD_TIMEOUT must be positive, got %s", c.API.DownloadTimeout))
	}
	if c.Poll.Interval <= 0 {
		errs = append(errs, fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.Poll.Interval))
	}
	if c.Task.OutputFormat == "" {
		errs = append(errs, errors.New("OUTPUT_FORMAT is empty"))
	}
	return errors.Join(errs...)
}

// JobRequest builds the task request from the task settings.
func (c *Config) JobRequest() (domain.JobRequest, error) {
	start, err := parseDate("START_DATE", c.Task.StartDate)
	if err != nil {
		return domain.JobRequest{}, err
	}
	end, err := parseDate("END_DATE", c.Task.EndDate)
	if err != nil {
		return domain.JobRequest{}, err
	}
	lat, err := parseCoordinate("LATITUDE", c.Task.Latitude)
	if err != nil {
		return domain.JobRequest{}, err
	}
	lon, err := parseCoordinate("LONGITUDE", c.Task.Longitude)
	if err != nil {
		return domain.JobRequest{}, err
	}

	req := domain.JobRequest{
		Name:         c.Task.Name,
		StartDate:    start,
		EndDate:      end,
		Latitude:     lat,
		Longitude:    lon,
		Product:      c.Task.Product,
		Layer:        c.Task.Layer,
		OutputFormat: c.Task.OutputFormat,
	}
	if err := req.Validate(); err != nil {
		return domain.JobRequest{}, err
	}
	return req, nil
}

func parseDate(key, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("%s is required", key)
	}
	t, err := time.Parse(domain.DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s %q is not a MM-DD-YYYY date: %w", key, value, err)
	}
	return t, nil
}

func parseCoordinate(key, value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s %q is not a number: %w", key, value, err)
	}
	return f, nil
}
