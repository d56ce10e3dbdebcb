// Package voltage drives the multi-channel voltage source.
package voltage

import (
	"context"
	"fmt"
	"strings"

	"github.com/danmuck/labctl/internal/instruments"
	"github.com/danmuck/labctl/internal/protocol/line"
	"github.com/rs/zerolog/log"
)

// DefaultPort is the device command port.
const DefaultPort = 80

// Framing: LF both ways.
var Framing = line.Framing{WriteEOL: "\n", ReadEOL: "\n"}

// Source is one voltage source.
type Source struct {
	meta instruments.Metadata
	t    instruments.Transport
}

func New(meta instruments.Metadata, t instruments.Transport) *Source {
	meta.Kind = instruments.KindVoltage
	if meta.Name == "" {
		meta.Name = "Voltage source"
	}
	if meta.Description == "" {
		meta.Description = "Multi-channel voltage source"
	}
	return &Source{meta: meta, t: t}
}

func (s *Source) Metadata() instruments.Metadata {
	return s.meta
}

func (s *Source) Operations() []instruments.OperationSpec {
	return []instruments.OperationSpec{
		{Name: "version", Description: "firmware version", Idempotent: true},
		{Name: "ping", Description: "check the device answers", Idempotent: true},
	}
}

// Version returns the firmware version.
func (s *Source) Version(ctx context.Context) (string, error) {
	ret, err := s.t.Ask(ctx, "get version")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(ret), nil
}

// Ping reports whether the device answers a version query.
func (s *Source) Ping(ctx context.Context) bool {
	if _, err := s.Version(ctx); err != nil {
		log.Warn().Err(err).Str("instrument", s.meta.ID).Msg("voltage: ping failed")
		return false
	}
	return true
}

func (s *Source) Close() error {
	return s.t.Close()
}

func (s *Source) Execute(ctx context.Context, action string, _ map[string]string) (instruments.Result, error) {
	switch strings.TrimSpace(action) {
	case "version":
		v, err := s.Version(ctx)
		if err != nil {
			return instruments.Result{}, err
		}
		return instruments.OK(v, map[string]any{"version": v}), nil
	case "ping":
		ok := s.Ping(ctx)
		return instruments.OK(fmt.Sprintf("ping ok=%t", ok), map[string]any{"ok": ok}), nil
	default:
		return instruments.Result{}, fmt.Errorf("%w: %s %q", instruments.ErrUnknownAction, s.meta.ID, action)
	}
}
