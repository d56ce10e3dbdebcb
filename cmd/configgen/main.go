// Command configgen writes and validates labctl config templates.
package main

import (
	"fmt"
	"os"

	"github.com/danmuck/labctl/internal/config"
	"github.com/danmuck/labctl/internal/logging"
	"github.com/pborman/getopt"
	"github.com/rs/zerolog/log"
)

func defaultPath(kind string) (string, error) {
	switch kind {
	case "controller":
		return "cmd/labctl/config.toml", nil
	case "profile":
		return "cmd/synthplan/profile.toml", nil
	default:
		return "", fmt.Errorf("unknown kind: %s", kind)
	}
}

func main() {
	h := getopt.BoolLong("help", 'h', "display help")
	kind := getopt.StringLong("kind", 'k', "controller", "config kind: controller|profile")
	output := getopt.StringLong("output", 'o', "", "output path for config template")
	validate := getopt.BoolLong("validate", 0, "validate an existing controller config file")
	input := getopt.StringLong("input", 'i', "", "config path for validation (defaults to per-kind cmd path)")
	force := getopt.BoolLong("force", 'f', "overwrite existing config file")
	getopt.Parse()

	if *h {
		getopt.Usage()
		os.Exit(1)
	}
	logging.ConfigureRuntime()

	if *validate {
		if *kind != "controller" {
			log.Fatal().Str("kind", *kind).Msg("only controller configs can be validated; use synthplan -p for profiles")
		}
		path := *input
		if path == "" {
			path, _ = defaultPath(*kind)
		}
		if _, err := config.LoadControllerConfig(path); err != nil {
			log.Fatal().Err(err).Msg("invalid config")
		}
		log.Info().Str("kind", *kind).Str("path", path).Msg("validated config")
		return
	}

	target := *output
	if target == "" {
		var err error
		if target, err = defaultPath(*kind); err != nil {
			log.Fatal().Err(err).Msg("no output path")
		}
	}

	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal().Err(err).Msg("write template")
	}
	log.Info().Str("kind", *kind).Str("path", target).Msg("wrote config template")
}
