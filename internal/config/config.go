// Package config provides YAML-based configuration loading for inboxd.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config is the top-level inboxd configuration, loaded from inboxd.yaml.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	HTTP       HTTPConfig       `yaml:"http"`
	Allocation AllocationConfig `yaml:"allocation"`
	Grace      GraceConfig      `yaml:"grace"`
	Events     EventsConfig     `yaml:"events"`
	Log        LogConfig        `yaml:"log"`
}

// DatabaseConfig selects and locates the backing relational store.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // sqlite or mysql
	Path     string `yaml:"path"`   // sqlite only
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// HTTPConfig holds transport settings.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// AllocationConfig tunes candidate selection.
type AllocationConfig struct {
	CandidateLimit int `yaml:"candidate_limit"`
}

// GraceConfig controls offline reclamation.
type GraceConfig struct {
	Minutes       int    `yaml:"minutes"`
	SweepSchedule string `yaml:"sweep_schedule"`
}

// EventsConfig locates the AMQP broker for assignment events. An empty
// URL disables publishing.
type EventsConfig struct {
	AMQPURL  string `yaml:"amqp_url"`
	Exchange string `yaml:"exchange"`
}

// LogConfig controls the slog handler built by the CLI.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a validated configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	c.Database.Driver = strings.ToLower(c.Database.Driver)
	if c.Database.Path == "" {
		c.Database.Path = "inboxd.db"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.User == "" {
		c.Database.User = "root"
	}
	if c.Database.Name == "" {
		c.Database.Name = "inboxd"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.Allocation.CandidateLimit == 0 {
		c.Allocation.CandidateLimit = 100
	}
	if c.Grace.Minutes == 0 {
		c.Grace.Minutes = 1
	}
	if c.Grace.SweepSchedule == "" {
		c.Grace.SweepSchedule = "@every 1m"
	}
	if c.Events.Exchange == "" {
		c.Events.Exchange = "inboxd.events"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case DriverSQLite, DriverMySQL:
	default:
		errs = append(errs, fmt.Sprintf("database.driver must be %q or %q, got %q", DriverSQLite, DriverMySQL, c.Database.Driver))
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Sprintf("http.port %d out of range", c.HTTP.Port))
	}
	if c.Allocation.CandidateLimit < 0 {
		errs = append(errs, "allocation.candidate_limit must be positive")
	}
	if c.Grace.Minutes < 0 {
		errs = append(errs, "grace.minutes must be positive")
	}
	if _, err := cron.ParseStandard(c.Grace.SweepSchedule); err != nil {
		errs = append(errs, fmt.Sprintf("grace.sweep_schedule %q: %v", c.Grace.SweepSchedule, err))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("log.format %q is not text or json", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
