package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/danmuck/labctl/internal/instruments"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/multierr"
)

const DefaultDevicePort = 80

// ControllerConfig is the labctl daemon configuration file.
type ControllerConfig struct {
	Name        string             `toml:"name"`
	Addr        string             `toml:"addr"`
	CorsOrigins []string           `toml:"cors_origins"`
	AuthToken   string             `toml:"auth_token"`
	Session     SessionConfig      `toml:"session"`
	Instruments []InstrumentConfig `toml:"instruments"`
}

// SessionConfig holds connection policy. Durations use time.ParseDuration
// syntax; empty values keep the defaults.
type SessionConfig struct {
	ConnectTimeout     string `toml:"connect_timeout"`
	ReadTimeout        string `toml:"read_timeout"`
	WriteTimeout       string `toml:"write_timeout"`
	MaxConnectAttempts int    `toml:"max_connect_attempts"`
	BackoffInitial     string `toml:"backoff_initial"`
	BackoffMax         string `toml:"backoff_max"`
}

// InstrumentConfig is one [[instruments]] entry.
type InstrumentConfig struct {
	ID       string         `toml:"id"`
	Kind     string         `toml:"kind"`
	Name     string         `toml:"name"`
	Device   string         `toml:"device"`
	Port     int            `toml:"port"`
	Settings map[string]any `toml:"settings"`
}

// Address returns device:port.
func (c InstrumentConfig) Address() string {
	return fmt.Sprintf("%s:%d", strings.TrimSpace(c.Device), c.Port)
}

func LoadControllerConfig(path string) (ControllerConfig, error) {
	var cfg ControllerConfig
	if err := loadToml(path, &cfg); err != nil {
		return ControllerConfig{}, err
	}
	applyDefaults(&cfg)
	if err := ValidateControllerConfig(cfg); err != nil {
		return ControllerConfig{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg *ControllerConfig) {
	if cfg.Name == "" {
		cfg.Name = "labctl"
	}
	if cfg.Addr == "" {
		cfg.Addr = ":3262"
	}
	for i := range cfg.Instruments {
		if cfg.Instruments[i].Port == 0 {
			cfg.Instruments[i].Port = DefaultDevicePort
		}
		cfg.Instruments[i].Kind = strings.ToLower(strings.TrimSpace(cfg.Instruments[i].Kind))
	}
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

// ValidateControllerConfig reports every problem in cfg.
func ValidateControllerConfig(cfg ControllerConfig) error {
	var err error
	if strings.TrimSpace(cfg.Name) == "" {
		err = multierr.Append(err, fmt.Errorf("controller config missing name"))
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		err = multierr.Append(err, fmt.Errorf("controller config missing addr"))
	}
	if _, serr := cfg.Session.Resolve(); serr != nil {
		err = multierr.Append(err, fmt.Errorf("session invalid: %w", serr))
	}
	seen := make(map[string]bool, len(cfg.Instruments))
	for i, inst := range cfg.Instruments {
		if ierr := ValidateInstrumentEntry(inst); ierr != nil {
			err = multierr.Append(err, fmt.Errorf("instrument[%d] invalid: %w", i, ierr))
			continue
		}
		if seen[inst.ID] {
			err = multierr.Append(err, fmt.Errorf("instrument[%d] duplicate id %q", i, inst.ID))
		}
		seen[inst.ID] = true
	}
	return err
}

func ValidateInstrumentEntry(cfg InstrumentConfig) error {
	if strings.TrimSpace(cfg.ID) == "" {
		return fmt.Errorf("id is required")
	}
	if !instruments.IsValidID(cfg.ID) {
		return fmt.Errorf("id %q must be lowercase letters, digits and . - _", cfg.ID)
	}
	if strings.TrimSpace(cfg.Device) == "" {
		return fmt.Errorf("device is required")
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port %d out of range", cfg.Port)
	}
	switch cfg.Kind {
	case instruments.KindSynth:
		if _, err := SynthConfig(cfg); err != nil {
			return err
		}
	case instruments.KindTemp, instruments.KindVoltage, instruments.KindShutter:
		if len(cfg.Settings) > 0 {
			return fmt.Errorf("settings are only supported for %s instruments", instruments.KindSynth)
		}
	default:
		return fmt.Errorf("unknown kind %q", cfg.Kind)
	}
	return nil
}
