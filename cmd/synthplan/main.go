// Command synthplan plans ADF4350 register images offline and optionally
// loads them into a synthesizer.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/danmuck/labctl/internal/adf4350"
	"github.com/danmuck/labctl/internal/instruments"
	"github.com/danmuck/labctl/internal/instruments/synth"
	"github.com/danmuck/labctl/internal/logging"
	"github.com/danmuck/labctl/internal/protocol/line"
	"github.com/danmuck/labctl/internal/protocol/session"
	"github.com/pborman/getopt"
	"github.com/rs/zerolog"
)

type args struct {
	verbose   bool
	profile   string
	reference string
	spacing   string
	send      string
	save      bool
	target    string
}

func parseArgs() args {
	h := getopt.BoolLong("help", 'h', "display help")
	v := getopt.BoolLong("verbose", 'v', "Enable verbose (debug) logging")
	p := getopt.StringLong("profile", 'p', "", "TOML profile of planner settings")
	r := getopt.StringLong("reference", 'r', "", "Reference frequency, overrides the profile (e.g. 10MHz)")
	c := getopt.StringLong("channel-spacing", 'c', "", "Quantize to this channel spacing instead of the best approximation")
	s := getopt.StringLong("send", 's', "", "Load the registers into the synthesizer at host[:port]")
	sv := getopt.BoolLong("save", 0, "Also store the registers in the synthesizer EEPROM (with --send)")
	getopt.SetParameters("frequency")

	getopt.Parse()

	if *h || getopt.NArgs() != 1 || (*sv && *s == "") {
		fmt.Println("synthplan: plan ADF4350 registers for a target frequency")
		getopt.Usage()
		os.Exit(1)
	}
	return args{
		verbose:   *v,
		profile:   *p,
		reference: *r,
		spacing:   *c,
		send:      *s,
		save:      *sv,
		target:    getopt.Arg(0),
	}
}

func main() {
	a := parseArgs()
	logging.ConfigureRuntime()
	if a.verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if err := run(a); err != nil {
		printError(err)
		os.Exit(1)
	}
}

func run(a args) error {
	cfg, err := buildConfig(a)
	if err != nil {
		return err
	}
	target, err := instruments.ParseFrequency(a.target)
	if err != nil {
		return err
	}
	res, err := adf4350.Plan(target, cfg)
	if err != nil {
		return err
	}
	printPlan(target, res)

	if a.send == "" {
		return nil
	}
	return send(a, cfg, target)
}

func buildConfig(a args) (adf4350.Config, error) {
	cfg := adf4350.DefaultConfig()
	var err error
	if a.profile != "" {
		if cfg, err = loadProfile(a.profile, cfg); err != nil {
			return adf4350.Config{}, err
		}
	}
	if a.reference != "" {
		ref, err := instruments.ParseFrequency(a.reference)
		if err != nil {
			return adf4350.Config{}, err
		}
		if err := cfg.Set("reference_frequency", ref); err != nil {
			return adf4350.Config{}, err
		}
	}
	if a.spacing != "" {
		spacing, err := instruments.ParseFrequency(a.spacing)
		if err != nil {
			return adf4350.Config{}, err
		}
		if err := cfg.Set("channel_spacing", spacing); err != nil {
			return adf4350.Config{}, err
		}
	}
	return cfg, nil
}

func send(a args, cfg adf4350.Config, target float64) error {
	addr := a.send
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, strconv.Itoa(synth.DefaultPort))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := line.Dial(ctx, addr, synth.Framing, session.DefaultConfig())
	if err != nil {
		return err
	}
	dev := synth.New(instruments.Metadata{ID: "synth.cli", Addr: addr}, conn, cfg)
	defer dev.Close()

	if _, err := dev.SetFrequency(target); err != nil {
		return err
	}
	if err := dev.Start(ctx, nil); err != nil {
		return err
	}
	printStep("start", addr)
	if a.save {
		if err := dev.Save(ctx, nil); err != nil {
			return err
		}
		printStep("save", addr)
	}
	locked, err := dev.Locked(ctx)
	if err != nil {
		return err
	}
	printLocked(locked)
	return nil
}
