package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/labctl/internal/testutil/testlog"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestControllerTemplateLoads(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "labctl.toml")
	if err := WriteTemplate(path, "controller", false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, "controller", false); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}

	cfg, err := LoadControllerConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "labctl" || cfg.Addr != ":3262" || len(cfg.Instruments) != 3 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if got := cfg.Instruments[1].Address(); got != "temp-1.lab:80" {
		t.Fatalf("default port not applied: %s", got)
	}

	synthCfg, err := SynthConfig(cfg.Instruments[0])
	if err != nil {
		t.Fatalf("synth config: %v", err)
	}
	if synthCfg.ReferenceDivider != 4 || !synthCfg.MuteTillLock || synthCfg.OutputPower != 0 {
		t.Fatalf("settings not applied: %+v", synthCfg)
	}

	sess, err := cfg.Session.Resolve()
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if sess.ReadTimeout != 2*time.Second || sess.MaxConnectAttempts != 3 {
		t.Fatalf("session mismatch: %+v", sess)
	}
	testlog.Logf("config: template loaded with %d instruments", len(cfg.Instruments))
}

func TestDefaultsApplied(t *testing.T) {
	testlog.Start(t)
	cfg, err := LoadControllerConfig(writeFile(t, `
[[instruments]]
id = "voltage.a"
kind = "Voltage"
device = "10.0.0.5"
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "labctl" || cfg.Addr != ":3262" {
		t.Fatalf("defaults missing: %+v", cfg)
	}
	if cfg.Instruments[0].Kind != "voltage" || cfg.Instruments[0].Port != DefaultDevicePort {
		t.Fatalf("instrument defaults missing: %+v", cfg.Instruments[0])
	}
}

func TestValidateRejectsBadEntries(t *testing.T) {
	testlog.Start(t)
	_, err := LoadControllerConfig(writeFile(t, `
[session]
read_timeout = "soon"

[[instruments]]
id = "synth.a"
kind = "synth"
device = "a"

[instruments.settings]
warp_factor = 9

[[instruments]]
id = "temp.a"
kind = "temp"

[[instruments]]
id = "x.a"
kind = "laser"
device = "b"

[[instruments]]
id = "shutter.a"
kind = "shutter"
device = "c"

[[instruments]]
id = "shutter.a"
kind = "shutter"
device = "d"
`))
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"read_timeout", "instrument[0]", "instrument[1]", "unknown kind", "duplicate id"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err, want)
		}
	}
}

func TestSettingsOnlyForSynths(t *testing.T) {
	testlog.Start(t)
	err := ValidateInstrumentEntry(InstrumentConfig{
		ID: "temp.a", Kind: "temp", Device: "t", Port: 80,
		Settings: map[string]any{"reference_divider": int64(2)},
	})
	if err == nil {
		t.Fatalf("expected settings rejection")
	}
}

func TestMissingFile(t *testing.T) {
	testlog.Start(t)
	if _, err := LoadControllerConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected load error")
	}
}
