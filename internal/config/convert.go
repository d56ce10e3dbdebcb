package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/danmuck/labctl/internal/adf4350"
	"github.com/danmuck/labctl/internal/protocol/session"
)

// Resolve converts the file form into a session.Config on top of the
// defaults.
func (c SessionConfig) Resolve() (session.Config, error) {
	out := session.DefaultConfig()
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"connect_timeout", c.ConnectTimeout, &out.ConnectTimeout},
		{"read_timeout", c.ReadTimeout, &out.ReadTimeout},
		{"write_timeout", c.WriteTimeout, &out.WriteTimeout},
		{"backoff_initial", c.BackoffInitial, &out.Backoff.InitialDelay},
		{"backoff_max", c.BackoffMax, &out.Backoff.MaxDelay},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.raw) == "" {
			continue
		}
		d, err := time.ParseDuration(strings.TrimSpace(f.raw))
		if err != nil {
			return session.Config{}, fmt.Errorf("%s: %w", f.name, err)
		}
		if d <= 0 {
			return session.Config{}, fmt.Errorf("%s: must be positive", f.name)
		}
		*f.dst = d
	}
	if c.MaxConnectAttempts < 0 {
		return session.Config{}, fmt.Errorf("max_connect_attempts: must not be negative")
	}
	if c.MaxConnectAttempts > 0 {
		out.MaxConnectAttempts = c.MaxConnectAttempts
	}
	return out, nil
}

// SynthConfig applies the [instruments.settings] table of a synth entry to
// adf4350.DefaultConfig. Settings are applied in name order.
func SynthConfig(inst InstrumentConfig) (adf4350.Config, error) {
	cfg := adf4350.DefaultConfig()
	names := make([]string, 0, len(inst.Settings))
	for name := range inst.Settings {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := cfg.Set(name, inst.Settings[name]); err != nil {
			return adf4350.Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return adf4350.Config{}, err
	}
	return cfg, nil
}
