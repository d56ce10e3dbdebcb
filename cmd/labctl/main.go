// Command labctl runs the lab instrument controller: it connects to every
// configured instrument and serves them over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/danmuck/labctl/internal/auth"
	"github.com/danmuck/labctl/internal/config"
	"github.com/danmuck/labctl/internal/instruments"
	"github.com/danmuck/labctl/internal/logging"
	"github.com/danmuck/labctl/internal/observability"
	"github.com/danmuck/labctl/internal/server"
	"github.com/pborman/getopt"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	h := getopt.BoolLong("help", 'h', "display help")
	c := getopt.StringLong("config", 'c', "cmd/labctl/config.toml", "Controller config file")
	v := getopt.BoolLong("verbose", 'v', "Enable verbose (debug) logging")
	q := getopt.BoolLong("quiet", 'q', "Disable logging")
	getopt.Parse()

	if *h || (*q && *v) {
		fmt.Println("labctl: lab instrument controller")
		getopt.Usage()
		os.Exit(1)
	}

	logging.ConfigureRuntime()
	observability.InitLogger("labctl")
	switch {
	case *v:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case *q:
		zerolog.SetGlobalLevel(zerolog.Disabled)
	}

	if err := run(*c); err != nil {
		log.Error().Err(err).Msg("labctl stopped")
		fmt.Fprintf(os.Stderr, "labctl: %v\n", err)
		os.Exit(1)
	}
}

func run(path string) error {
	cfg, err := config.LoadControllerConfig(path)
	if err != nil {
		return err
	}
	sess, err := cfg.Session.Resolve()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := instruments.NewRegistry()
	defer func() {
		if err := registry.CloseAll(); err != nil {
			log.Warn().Err(err).Msg("closing instruments")
		}
	}()
	for _, entry := range cfg.Instruments {
		inst, err := connect(ctx, entry, sess)
		if err != nil {
			return fmt.Errorf("instrument %s: %w", entry.ID, err)
		}
		if err := registry.Register(inst); err != nil {
			_ = inst.Close()
			return err
		}
		log.Info().Str("instrument", entry.ID).Str("kind", entry.Kind).Str("addr", entry.Address()).Msg("instrument connected")
	}

	srv := server.New(cfg.Name, cfg.Addr, cfg.CorsOrigins, registry)
	if token := strings.TrimSpace(cfg.AuthToken); token != "" {
		srv.Auth = auth.StaticToken{Token: token}
	}
	return srv.Serve(ctx)
}
