package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"

	"github.com/warp/capacity-engine/calendar"
	"github.com/warp/capacity-engine/capacity"
)

// FileName is the config file looked up when no path is given.
const FileName = "capacity.yaml"

// RecurringException is an organisation-wide day off (or short day) that
// repeats on an RRULE, e.g. "FREQ=YEARLY;BYMONTH=12;BYMONTHDAY=25".
type RecurringException struct {
	Name           string  `yaml:"name" validate:"required"`
	RRule          string  `yaml:"rrule" validate:"required"`
	Anchor         string  `yaml:"anchor,omitempty" validate:"omitempty,datetime=2006-01-02"`
	AvailableHours float64 `yaml:"availableHours" validate:"gte=0,lte=24"`
	Type           string  `yaml:"type" validate:"oneof=holiday sick_leave vacation other"`
	Reason         string  `yaml:"reason,omitempty"`
}

type ServerConfig struct {
	Port int `yaml:"port" validate:"min=1,max=65535"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" validate:"oneof=sqlite postgres"`
	DSN    string `yaml:"dsn" validate:"required"`
}

type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	File  string `yaml:"file,omitempty"`
}

type EngineConfig struct {
	CacheTTL       time.Duration `yaml:"cacheTTL" validate:"gt=0"`
	DayWorkers     int           `yaml:"dayWorkers" validate:"min=1,max=64"`
	TeamWorkers    int           `yaml:"teamWorkers" validate:"min=1,max=256"`
	ConflictPolicy string        `yaml:"conflictPolicy" validate:"oneof=first_wins last_wins reject"`
}

// Config represents the application configuration
type Config struct {
	Server              ServerConfig         `yaml:"server"`
	Database            DatabaseConfig       `yaml:"database"`
	Log                 LogConfig            `yaml:"log"`
	Engine              EngineConfig         `yaml:"engine"`
	RecurringExceptions []RecurringException `yaml:"recurringExceptions,omitempty" validate:"dive"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8080},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "./data/capacity.db"},
		Log:      LogConfig{Level: "info"},
		Engine: EngineConfig{
			CacheTTL:       capacity.DefaultCacheTTL,
			DayWorkers:     capacity.DefaultDayWorkers,
			TeamWorkers:    capacity.DefaultTeamWorkers,
			ConflictPolicy: string(capacity.ConflictFirstWins),
		},
	}
}

// Load reads the config at path. With an empty path it looks for
// capacity.yaml in the current and home directories, falling back to
// Default when neither exists.
func Load(path string) (*Config, error) {
	if path != "" {
		return LoadFromPath(path)
	}
	found, err := findConfigFile()
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}
	return LoadFromPath(found)
}

// LoadFromPath loads and validates the configuration from a specific path.
// Keys missing from the file keep their defaults.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates the configuration struct and checks rrule syntax
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	for i, r := range cfg.RecurringExceptions {
		if _, err := rrule.StrToRRule(r.RRule); err != nil {
			return fmt.Errorf("invalid rrule in recurringExceptions[%d]: %w", i, err)
		}
	}
	return nil
}

// Recurring converts the configured recurring exceptions for the engine.
func (c *Config) Recurring() ([]capacity.RecurringException, error) {
	out := make([]capacity.RecurringException, 0, len(c.RecurringExceptions))
	for _, r := range c.RecurringExceptions {
		var anchor calendar.Date
		if r.Anchor != "" {
			a, err := calendar.ParseDate(r.Anchor)
			if err != nil {
				return nil, fmt.Errorf("recurring exception %s: %w", r.Name, err)
			}
			anchor = a
		}
		rec, err := calendar.NewRecurrence(r.RRule, anchor)
		if err != nil {
			return nil, fmt.Errorf("recurring exception %s: %w", r.Name, err)
		}
		out = append(out, capacity.RecurringException{
			Name:           r.Name,
			Recurrence:     rec,
			AvailableHours: decimal.NewFromFloat(r.AvailableHours),
			Type:           capacity.ExceptionType(r.Type),
			Reason:         r.Reason,
		})
	}
	return out, nil
}

// EngineOptions translates the engine section into capacity options.
func (c *Config) EngineOptions() ([]capacity.Option, error) {
	recurring, err := c.Recurring()
	if err != nil {
		return nil, err
	}
	return []capacity.Option{
		capacity.WithCacheTTL(c.Engine.CacheTTL),
		capacity.WithDayWorkers(c.Engine.DayWorkers),
		capacity.WithTeamWorkers(c.Engine.TeamWorkers),
		capacity.WithConflictPolicy(capacity.ConflictPolicy(c.Engine.ConflictPolicy)),
		capacity.WithRecurringExceptions(recurring...),
	}, nil
}

// findConfigFile searches for capacity.yaml in the current and home directories.
func findConfigFile() (string, error) {
	if _, err := os.Stat(FileName); err == nil {
		return FileName, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homeConfigPath := filepath.Join(homeDir, FileName)
	if _, err := os.Stat(homeConfigPath); err == nil {
		return homeConfigPath, nil
	}

	return "", os.ErrNotExist
}
