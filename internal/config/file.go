package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// File is the TOML overlay. Unset keys keep their current value.
type File struct {
	Server  ServerSection  `toml:"server"`
	Storage StorageSection `toml:"storage"`
	Engine  EngineSection  `toml:"engine"`
	ML      MLSection      `toml:"ml"`
}

type ServerSection struct {
	Port               *string `toml:"port,omitempty"`
	RateLimitPerMinute *int    `toml:"rate_limit_per_minute,omitempty"`
	LogLevel           *string `toml:"log_level,omitempty"`
	LogFormat          *string `toml:"log_format,omitempty"`
}

type StorageSection struct {
	Backend    *string `toml:"backend,omitempty"`
	SQLitePath *string `toml:"sqlite_path,omitempty"`
}

type EngineSection struct {
	WarningRatio         *float64 `toml:"warning_ratio,omitempty"`
	CriticalRatio        *float64 `toml:"critical_ratio,omitempty"`
	Timezone             *string  `toml:"timezone,omitempty"`
	ForecastHistoryLimit *int     `toml:"forecast_history_limit,omitempty"`
	CategorizeWorkers    *int     `toml:"categorize_workers,omitempty"`
	SummaryCacheTTL      *string  `toml:"summary_cache_ttl,omitempty"`
}

type MLSection struct {
	URL     *string `toml:"url,omitempty"`
	Timeout *string `toml:"timeout,omitempty"`
}

// ApplyFile overlays the TOML file at path onto c.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := c.apply(f); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	c.ConfigFile = path
	return nil
}

func (c *Config) apply(f File) error {
	setString(&c.Port, f.Server.Port)
	setInt(&c.RateLimitPerMinute, f.Server.RateLimitPerMinute)
	setString(&c.LogLevel, f.Server.LogLevel)
	setString(&c.LogFormat, f.Server.LogFormat)

	setString(&c.DataBackend, f.Storage.Backend)
	setString(&c.SQLiteDBPath, f.Storage.SQLitePath)

	if f.Engine.WarningRatio != nil {
		c.WarningRatio = *f.Engine.WarningRatio
	}
	if f.Engine.CriticalRatio != nil {
		c.CriticalRatio = *f.Engine.CriticalRatio
	}
	setString(&c.Timezone, f.Engine.Timezone)
	setInt(&c.ForecastHistoryLimit, f.Engine.ForecastHistoryLimit)
	setInt(&c.CategorizeWorkers, f.Engine.CategorizeWorkers)
	if err := setDuration(&c.SummaryCacheTTL, f.Engine.SummaryCacheTTL); err != nil {
		return fmt.Errorf("engine.summary_cache_ttl: %w", err)
	}

	setString(&c.MLServiceURL, f.ML.URL)
	if err := setDuration(&c.CollaboratorTimeout, f.ML.Timeout); err != nil {
		return fmt.Errorf("ml.timeout: %w", err)
	}
	return nil
}

// ToFile renders c as a complete TOML overlay.
func (c *Config) ToFile() File {
	ttl := c.SummaryCacheTTL.String()
	timeout := c.CollaboratorTimeout.String()
	return File{
		Server: ServerSection{
			Port:               &c.Port,
			RateLimitPerMinute: &c.RateLimitPerMinute,
			LogLevel:           &c.LogLevel,
			LogFormat:          &c.LogFormat,
		},
		Storage: StorageSection{Backend: &c.DataBackend, SQLitePath: &c.SQLiteDBPath},
		Engine: EngineSection{
			WarningRatio:         &c.WarningRatio,
			CriticalRatio:        &c.CriticalRatio,
			Timezone:             &c.Timezone,
			ForecastHistoryLimit: &c.ForecastHistoryLimit,
			CategorizeWorkers:    &c.CategorizeWorkers,
			SummaryCacheTTL:      &ttl,
		},
		ML: MLSection{URL: &c.MLServiceURL, Timeout: &timeout},
	}
}

// WriteFile saves c as TOML. Existing files are not overwritten.
func (c *Config) WriteFile(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(c.ToFile())
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
