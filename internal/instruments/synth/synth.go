// Package synth drives the ADF4350 based synthesizer over its TCP command
// port. Frequencies are planned locally with package adf4350 and the
// resulting register image is sent to the device.
package synth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/danmuck/labctl/internal/adf4350"
	"github.com/danmuck/labctl/internal/instruments"
	"github.com/danmuck/labctl/internal/observability"
	"github.com/danmuck/labctl/internal/protocol/line"
	"github.com/rs/zerolog/log"
)

// DefaultPort is the device command port.
const DefaultPort = 80

// Framing is the synthesizer line protocol: LF both ways, commands under 64
// bytes.
var Framing = line.Framing{WriteEOL: "\n", ReadEOL: "\n", MaxCommand: 63}

const (
	versionReplyLen = 7
	ackReplyLen     = 4
)

// ErrNoPlan is returned by Start and Save when no image was given and no
// frequency has been planned yet.
var ErrNoPlan = errors.New("synth: no frequency planned")

// Synth is one synthesizer.
type Synth struct {
	meta instruments.Metadata
	t    instruments.Transport

	// seq orders storing a plan against loading it into the device.
	seq sync.Mutex

	mu   sync.Mutex
	cfg  adf4350.Config
	last *adf4350.Result
}

// New wraps transport t. cfg is the initial planner configuration.
func New(meta instruments.Metadata, t instruments.Transport, cfg adf4350.Config) *Synth {
	meta.Kind = instruments.KindSynth
	if meta.Name == "" {
		meta.Name = "ADF4350 synthesizer"
	}
	if meta.Description == "" {
		meta.Description = "Fractional-N PLL synthesizer, 34.375 MHz to 4.4 GHz"
	}
	return &Synth{meta: meta, t: t, cfg: cfg}
}

func (s *Synth) Metadata() instruments.Metadata {
	return s.meta
}

func (s *Synth) Operations() []instruments.OperationSpec {
	return []instruments.OperationSpec{
		{Name: "version", Description: "firmware version", Idempotent: true},
		{Name: "ping", Description: "check the device answers", Idempotent: true},
		{Name: "locked", Description: "reference lock status", Idempotent: true},
		{Name: "plan", Description: "plan frequency=<Hz> without storing it", Idempotent: true},
		{Name: "set_frequency", Description: "plan frequency=<Hz> and keep the registers, start=true also loads them", Idempotent: true},
		{Name: "start", Description: "load the planned or given registers=<hex>", Idempotent: true},
		{Name: "save", Description: "store the planned or given registers=<hex> in EEPROM", Idempotent: true},
		{Name: "set", Description: "set planner setting name=<setting> value=<v>", Idempotent: true},
		{Name: "get", Description: "get planner setting name=<setting>", Idempotent: true},
		{Name: "config", Description: "all planner settings", Idempotent: true},
	}
}

// Version returns the firmware version.
func (s *Synth) Version(ctx context.Context) (string, error) {
	ret, err := s.t.AskN(ctx, "version", versionReplyLen)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(ret), nil
}

// Start loads img into the synthesizer. A nil img sends the last plan, which
// a concurrent SetFrequency may have replaced since the caller planned it;
// SetFrequencyAndStart does both under one hold.
func (s *Synth) Start(ctx context.Context, img *adf4350.Image) error {
	s.seq.Lock()
	defer s.seq.Unlock()
	return s.load(ctx, "start", img)
}

// Save stores img in the synthesizer EEPROM, loaded on boot. A nil img
// stores the last plan.
func (s *Synth) Save(ctx context.Context, img *adf4350.Image) error {
	s.seq.Lock()
	defer s.seq.Unlock()
	return s.load(ctx, "save ", img)
}

// SetFrequencyAndStart plans target Hz, keeps the result and loads exactly
// those registers. No other SetFrequency, Start or Save runs in between.
func (s *Synth) SetFrequencyAndStart(ctx context.Context, target float64) (adf4350.Result, error) {
	s.seq.Lock()
	defer s.seq.Unlock()
	res, err := s.plan(target, true)
	if err != nil {
		return adf4350.Result{}, err
	}
	if err := s.load(ctx, "start", &res.Registers); err != nil {
		return adf4350.Result{}, err
	}
	return res, nil
}

func (s *Synth) load(ctx context.Context, keyword string, img *adf4350.Image) error {
	if img == nil {
		regs, ok := s.Registers()
		if !ok {
			return fmt.Errorf("%w: %w", instruments.ErrInvalidArgument, ErrNoPlan)
		}
		img = &regs
	}
	ret, err := s.t.AskN(ctx, keyword+img.Hex(), ackReplyLen)
	if err != nil {
		return err
	}
	if ret = strings.TrimSpace(ret); ret != "ok" {
		return fmt.Errorf("%w: %s replied %q", instruments.ErrCommandFailed, strings.TrimSpace(keyword), ret)
	}
	log.Info().Str("instrument", s.meta.ID).Str("cmd", strings.TrimSpace(keyword)).Str("registers", img.Hex()).Msg("synth: registers loaded")
	return nil
}

// Locked reports the reference lock status.
func (s *Synth) Locked(ctx context.Context) (bool, error) {
	ret, err := s.t.Ask(ctx, "locked")
	if err != nil {
		return false, err
	}
	return !strings.Contains(ret, "not"), nil
}

// Plan computes the registers for target Hz with the current configuration.
// Nothing is stored.
func (s *Synth) Plan(target float64) (adf4350.Result, error) {
	return s.plan(target, false)
}

// SetFrequency plans target Hz and keeps the result for Start and Save. The
// device is not touched.
func (s *Synth) SetFrequency(target float64) (adf4350.Result, error) {
	s.seq.Lock()
	defer s.seq.Unlock()
	return s.plan(target, true)
}

func (s *Synth) plan(target float64, store bool) (adf4350.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := adf4350.Plan(target, s.cfg)
	observability.RecordPlan(s.meta.ID, planOutcome(err), res.Error(target))
	if err != nil {
		log.Warn().Err(err).Str("instrument", s.meta.ID).Float64("target_hz", target).Msg("synth: plan rejected")
		return adf4350.Result{}, fmt.Errorf("%w: %w", instruments.ErrInvalidArgument, err)
	}
	p := res.Params
	log.Debug().
		Str("instrument", s.meta.ID).
		Float64("f_vco", p.VCOFrequency).
		Float64("f_pfd", p.PFDFrequency).
		Int("stage", p.DividerStage).
		Bool("prescaler", p.Prescaler).
		Int("r", p.RCounter).
		Int("n_int", p.NInt).
		Int("n_fract", p.NFract).
		Int("n_mod", p.NMod).
		Int("band_select", p.BandSelectDivider).
		Msg("synth: planned")
	if store {
		s.last = &res
		log.Info().
			Str("instrument", s.meta.ID).
			Float64("target_hz", target).
			Float64("frequency_hz", res.Frequency).
			Str("registers", res.Registers.Hex()).
			Msg("synth: frequency set")
	}
	return res, nil
}

// Registers returns the image of the last SetFrequency.
func (s *Synth) Registers() (adf4350.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return adf4350.Image{}, false
	}
	return s.last.Registers, true
}

// Set changes one planner setting. Registers are not recomputed.
func (s *Synth) Set(name string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.cfg.Set(name, value); err != nil {
		return fmt.Errorf("%w: %w", instruments.ErrInvalidArgument, err)
	}
	return nil
}

// Get returns one planner setting.
func (s *Synth) Get(name string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.cfg.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", instruments.ErrInvalidArgument, err)
	}
	return v, nil
}

// Config returns a copy of the planner configuration.
func (s *Synth) Config() adf4350.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Ping reports whether the device answers a version query.
func (s *Synth) Ping(ctx context.Context) bool {
	if _, err := s.Version(ctx); err != nil {
		log.Warn().Err(err).Str("instrument", s.meta.ID).Msg("synth: ping failed")
		return false
	}
	return true
}

func (s *Synth) Close() error {
	return s.t.Close()
}

func planOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, adf4350.ErrFrequencyOutOfRange):
		return "frequency_out_of_range"
	case errors.Is(err, adf4350.ErrReferenceDividerOutOfRange):
		return "reference_divider_out_of_range"
	case errors.Is(err, adf4350.ErrNDividerOutOfRange):
		return "n_divider_out_of_range"
	case errors.Is(err, adf4350.ErrModulusOutOfRange):
		return "modulus_out_of_range"
	case errors.Is(err, adf4350.ErrIntegerModeConflict):
		return "integer_mode_conflict"
	case errors.Is(err, adf4350.ErrBandSelectDividerOutOfRange):
		return "band_select_divider_out_of_range"
	case errors.Is(err, adf4350.ErrInvalidSetting):
		return "invalid_setting"
	default:
		return "error"
	}
}
