package main

import (
	"context"
	"fmt"

	"github.com/danmuck/labctl/internal/adf4350"
	"github.com/danmuck/labctl/internal/config"
	"github.com/danmuck/labctl/internal/instruments"
	"github.com/danmuck/labctl/internal/instruments/shutter"
	"github.com/danmuck/labctl/internal/instruments/synth"
	"github.com/danmuck/labctl/internal/instruments/temp"
	"github.com/danmuck/labctl/internal/instruments/voltage"
	"github.com/danmuck/labctl/internal/protocol/line"
	"github.com/danmuck/labctl/internal/protocol/session"
)

func framingFor(kind string) (line.Framing, error) {
	switch kind {
	case instruments.KindSynth:
		return synth.Framing, nil
	case instruments.KindTemp:
		return temp.Framing, nil
	case instruments.KindVoltage:
		return voltage.Framing, nil
	case instruments.KindShutter:
		return shutter.Framing, nil
	default:
		return line.Framing{}, fmt.Errorf("unknown kind %q", kind)
	}
}

// connect dials one configured instrument and wraps it in its driver.
func connect(ctx context.Context, entry config.InstrumentConfig, sess session.Config) (instruments.Instrument, error) {
	framing, err := framingFor(entry.Kind)
	if err != nil {
		return nil, err
	}
	var synthCfg adf4350.Config
	if entry.Kind == instruments.KindSynth {
		if synthCfg, err = config.SynthConfig(entry); err != nil {
			return nil, err
		}
	}

	conn, err := line.Dial(ctx, entry.Address(), framing, sess)
	if err != nil {
		return nil, err
	}
	meta := instruments.Metadata{ID: entry.ID, Name: entry.Name, Addr: entry.Address()}
	switch entry.Kind {
	case instruments.KindSynth:
		return synth.New(meta, conn, synthCfg), nil
	case instruments.KindTemp:
		return temp.New(meta, conn), nil
	case instruments.KindVoltage:
		return voltage.New(meta, conn), nil
	default:
		return shutter.New(meta, conn), nil
	}
}
