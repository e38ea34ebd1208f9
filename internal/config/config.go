// Package config reads server settings from the environment, after an
// optional .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr            string         `env:"ADDR" envDefault:":8080"`
	DBPath          string         `env:"DB_PATH" envDefault:"kidstudio.db"`
	DBLogLevel      string         `env:"DB_LOG_LEVEL" envDefault:"warn"`
	StudioTZ        string         `env:"STUDIO_TZ" envDefault:"Europe/Istanbul"`
	PackageSessions map[string]int `env:"PACKAGE_SESSIONS_PER_WEEK" envDefault:"hafta-1:1,hafta-2:2,hafta-3:3,hafta-4:4" envKeyValSeparator:":"`
	TraceStdout     bool           `env:"TRACE_STDOUT"`
	TracePretty     bool           `env:"TRACE_PRETTY"`
	ShutdownTimeout time.Duration  `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	RenewalSweep      bool   `env:"RENEWAL_SWEEP"`
	RenewalWithinDays int    `env:"RENEWAL_WITHIN_DAYS" envDefault:"7"`
	RenewalSchedule   string `env:"RENEWAL_SCHEDULE" envDefault:"0 8 * * *"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads files (default ".env") into the environment without
// overriding variables already set, then parses Config.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load dotenv: %w", err)
		}
		log.Printf("config: no .env file, using process environment")
	}
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if _, err := cfg.Location(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Location resolves StudioTZ, the zone operators enter event times in.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.StudioTZ)
	if err != nil {
		return nil, fmt.Errorf("STUDIO_TZ: %w", err)
	}
	return loc, nil
}
