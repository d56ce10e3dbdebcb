package main

import (
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/labctl/internal/adf4350"
)

// loadProfile applies the settings of a flat TOML table on top of base.
// Keys not present keep their value in base; unknown keys are rejected.
func loadProfile(path string, base adf4350.Config) (adf4350.Config, error) {
	var raw map[string]toml.Primitive
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return adf4350.Config{}, fmt.Errorf("load profile: %w", err)
	}

	cfg := base
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !meta.IsDefined(name) {
			continue
		}
		if typ := meta.Type(name); typ == "Hash" || typ == "ArrayHash" || typ == "Array" {
			return adf4350.Config{}, fmt.Errorf("profile %s: setting must be a scalar, got %s", name, typ)
		}
		var v any
		if err := meta.PrimitiveDecode(raw[name], &v); err != nil {
			return adf4350.Config{}, fmt.Errorf("profile %s: %w", name, err)
		}
		if err := cfg.Set(name, v); err != nil {
			return adf4350.Config{}, fmt.Errorf("profile: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return adf4350.Config{}, fmt.Errorf("profile: %w", err)
	}
	return cfg, nil
}
