// Package temp drives the multi-channel temperature sensor.
package temp

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/danmuck/labctl/internal/instruments"
	"github.com/danmuck/labctl/internal/protocol/line"
	"github.com/rs/zerolog/log"
)

// DefaultPort is the device command port.
const DefaultPort = 80

// Framing: CR terminated commands, CRLF terminated replies.
var Framing = line.Framing{WriteEOL: "\r", ReadEOL: "\r\n", MaxCommand: 63}

// Sensor is one temperature sensor.
type Sensor struct {
	meta instruments.Metadata
	t    instruments.Transport
}

func New(meta instruments.Metadata, t instruments.Transport) *Sensor {
	meta.Kind = instruments.KindTemp
	if meta.Name == "" {
		meta.Name = "Temperature sensor"
	}
	if meta.Description == "" {
		meta.Description = "Multi-channel temperature sensor"
	}
	return &Sensor{meta: meta, t: t}
}

func (s *Sensor) Metadata() instruments.Metadata {
	return s.meta
}

func (s *Sensor) Operations() []instruments.OperationSpec {
	return []instruments.OperationSpec{
		{Name: "version", Description: "firmware version", Idempotent: true},
		{Name: "ping", Description: "check the device answers", Idempotent: true},
		{Name: "get_all", Description: "temperatures of all channels", Idempotent: true},
		{Name: "get", Description: "temperature of channel=<n>", Idempotent: true},
	}
}

// Version returns the firmware version.
func (s *Sensor) Version(ctx context.Context) (string, error) {
	ret, err := s.t.Ask(ctx, "v")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(ret), nil
}

// GetAll measures every channel. The reply lists "index:temperature" pairs
// and the indices must count up from zero.
func (s *Sensor) GetAll(ctx context.Context) ([]float64, error) {
	ret, err := s.t.Ask(ctx, "a")
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(ret)
	temps := make([]float64, 0, len(fields))
	for i, f := range fields {
		ch, t, err := parseReading(f)
		if err != nil {
			return nil, err
		}
		if ch != i {
			return nil, fmt.Errorf("%w: channel %d at position %d in %q", instruments.ErrMalformedReply, ch, i, ret)
		}
		temps = append(temps, t)
	}
	return temps, nil
}

// Get measures one channel. The device must echo the channel index.
func (s *Sensor) Get(ctx context.Context, channel int) (float64, error) {
	if channel < 0 {
		return 0, fmt.Errorf("%w: channel %d", instruments.ErrInvalidArgument, channel)
	}
	ret, err := s.t.Ask(ctx, strconv.Itoa(channel))
	if err != nil {
		return 0, err
	}
	ch, t, err := parseReading(strings.TrimSpace(ret))
	if err != nil {
		return 0, err
	}
	if ch != channel {
		return 0, fmt.Errorf("%w: asked channel %d, got %d", instruments.ErrMalformedReply, channel, ch)
	}
	return t, nil
}

func parseReading(s string) (int, float64, error) {
	chRaw, tRaw, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("%w: reading %q", instruments.ErrMalformedReply, s)
	}
	ch, err := strconv.Atoi(chRaw)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: channel %q", instruments.ErrMalformedReply, chRaw)
	}
	t, err := strconv.ParseFloat(tRaw, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: temperature %q", instruments.ErrMalformedReply, tRaw)
	}
	return ch, t, nil
}

// Ping reports whether the device answers a version query.
func (s *Sensor) Ping(ctx context.Context) bool {
	if _, err := s.Version(ctx); err != nil {
		log.Warn().Err(err).Str("instrument", s.meta.ID).Msg("temp: ping failed")
		return false
	}
	return true
}

func (s *Sensor) Close() error {
	return s.t.Close()
}

// Execute applies one sensor action.
func (s *Sensor) Execute(ctx context.Context, action string, args map[string]string) (instruments.Result, error) {
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
	case "get_all":
		temps, err := s.GetAll(ctx)
		if err != nil {
			return instruments.Result{}, err
		}
		return instruments.OK(fmt.Sprintf("%v", temps), map[string]any{"temperatures": temps}), nil
	case "get":
		ch, err := instruments.IntArg(args, "channel")
		if err != nil {
			return instruments.Result{}, err
		}
		t, err := s.Get(ctx, ch)
		if err != nil {
			return instruments.Result{}, err
		}
		return instruments.OK(strconv.FormatFloat(t, 'g', -1, 64), map[string]any{"channel": ch, "temperature": t}), nil
	default:
		return instruments.Result{}, fmt.Errorf("%w: %s %q", instruments.ErrUnknownAction, s.meta.ID, action)
	}
}
