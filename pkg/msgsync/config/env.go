package config

import (
	"fmt"
	"strconv"

	"github.com/caarlos0/env/v11"
)

// EnvOverrides holds settings read from MSGSYNC_* environment variables.
// Empty values leave the file configuration untouched.
type EnvOverrides struct {
	QueueSize       int    `env:"MSGSYNC_QUEUE_SIZE"`
	Slop            string `env:"MSGSYNC_SLOP"`
	Policy          string `env:"MSGSYNC_POLICY"`
	Prune           string `env:"MSGSYNC_PRUNE"`
	AllowHeaderless string `env:"MSGSYNC_ALLOW_HEADERLESS"`
	LogLevel        string `env:"MSGSYNC_LOG_LEVEL"`
	RecordPath      string `env:"MSGSYNC_RECORD_PATH"`
}

// ParseEnv loads overrides from the process environment.
func ParseEnv() (EnvOverrides, error) {
	var o EnvOverrides
	if err := env.Parse(&o); err != nil {
		return EnvOverrides{}, fmt.Errorf("parse env: %w", err)
	}
	return o, nil
}

// Apply writes the set overrides onto cfg.
func (o EnvOverrides) Apply(cfg *Sync) error {
	if o.QueueSize != 0 {
		cfg.QueueSize = o.QueueSize
	}
	if o.Slop != "" {
		if err := cfg.Slop.set(o.Slop); err != nil {
			return fmt.Errorf("MSGSYNC_SLOP: %w", err)
		}
	}
	if o.Policy != "" {
		cfg.Policy = o.Policy
	}
	if o.Prune != "" {
		cfg.Prune = o.Prune
	}
	if o.AllowHeaderless != "" {
		allow, err := strconv.ParseBool(o.AllowHeaderless)
		if err != nil {
			return fmt.Errorf("MSGSYNC_ALLOW_HEADERLESS: %w", err)
		}
		cfg.AllowHeaderless = allow
	}
	if o.LogLevel != "" {
		cfg.Observability.LogLevel = o.LogLevel
	}
	if o.RecordPath != "" {
		cfg.Record.Path = o.RecordPath
	}
	return nil
}

// ApplyEnv reads the environment and applies it to cfg.
func ApplyEnv(cfg *Sync) error {
	o, err := ParseEnv()
	if err != nil {
		return err
	}
	return o.Apply(cfg)
}
