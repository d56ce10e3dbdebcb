// Package shutter drives the three channel shutter controller.
package shutter

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

// Channels is the number of shutters on one controller.
const Channels = 3

// Framing: CRLF terminated commands of at most two bytes, CR terminated
// replies.
var Framing = line.Framing{WriteEOL: "\r\n", ReadEOL: "\r", MaxCommand: 2}

// Controller is one shutter controller.
type Controller struct {
	meta instruments.Metadata
	t    instruments.Transport
}

func New(meta instruments.Metadata, t instruments.Transport) *Controller {
	meta.Kind = instruments.KindShutter
	if meta.Name == "" {
		meta.Name = "Shutter controller"
	}
	if meta.Description == "" {
		meta.Description = "Three channel shutter controller"
	}
	return &Controller{meta: meta, t: t}
}

func (c *Controller) Metadata() instruments.Metadata {
	return c.meta
}

func (c *Controller) Operations() []instruments.OperationSpec {
	return []instruments.OperationSpec{
		{Name: "version", Description: "firmware version", Idempotent: true},
		{Name: "ping", Description: "check the device answers", Idempotent: true},
		{Name: "status", Description: "error flag of every shutter", Idempotent: true},
		{Name: "clear", Description: "clear all error flags", Idempotent: true},
		{Name: "passthrough", Description: "raw command=<c> to shutter=<1..3>", Idempotent: false},
	}
}

// Version returns the firmware version.
func (c *Controller) Version(ctx context.Context) (string, error) {
	ret, err := c.t.Ask(ctx, "v")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(ret), nil
}

// Status returns the error flag of every shutter.
func (c *Controller) Status(ctx context.Context) ([Channels]bool, error) {
	var flags [Channels]bool
	ret, err := c.t.Ask(ctx, "e")
	if err != nil {
		return flags, err
	}
	ret = strings.TrimSpace(ret)
	if len(ret) != Channels {
		return flags, fmt.Errorf("%w: status %q, want %d flags", instruments.ErrMalformedReply, ret, Channels)
	}
	for i := 0; i < Channels; i++ {
		switch ret[i] {
		case '0':
		case '1':
			flags[i] = true
		default:
			return flags, fmt.Errorf("%w: status flag %q", instruments.ErrMalformedReply, ret[i])
		}
	}
	return flags, nil
}

// Clear resets all error flags. The device does not answer.
func (c *Controller) Clear(ctx context.Context) error {
	return c.t.Send(ctx, "r")
}

// Passthrough sends the single character command cmd to shutter (1-based)
// and returns the raw reply.
func (c *Controller) Passthrough(ctx context.Context, shutter int, cmd byte) (string, error) {
	if shutter < 1 || shutter > Channels {
		return "", fmt.Errorf("%w: shutter %d not in [1, %d]", instruments.ErrInvalidArgument, shutter, Channels)
	}
	if cmd < '!' || cmd > '~' {
		return "", fmt.Errorf("%w: command byte %#x", instruments.ErrInvalidArgument, cmd)
	}
	return c.t.Ask(ctx, fmt.Sprintf("%d%c", shutter, cmd))
}

// Ping reports whether the device answers a version query.
func (c *Controller) Ping(ctx context.Context) bool {
	if _, err := c.Version(ctx); err != nil {
		log.Warn().Err(err).Str("instrument", c.meta.ID).Msg("shutter: ping failed")
		return false
	}
	return true
}

func (c *Controller) Close() error {
	return c.t.Close()
}

func (c *Controller) Execute(ctx context.Context, action string, args map[string]string) (instruments.Result, error) {
	switch strings.TrimSpace(action) {
	case "version":
		v, err := c.Version(ctx)
		if err != nil {
			return instruments.Result{}, err
		}
		return instruments.OK(v, map[string]any{"version": v}), nil
	case "ping":
		ok := c.Ping(ctx)
		return instruments.OK(fmt.Sprintf("ping ok=%t", ok), map[string]any{"ok": ok}), nil
	case "status":
		flags, err := c.Status(ctx)
		if err != nil {
			return instruments.Result{}, err
		}
		return instruments.OK(fmt.Sprintf("%v", flags), map[string]any{"errors": flags[:]}), nil
	case "clear":
		if err := c.Clear(ctx); err != nil {
			return instruments.Result{}, err
		}
		return instruments.OK("ok clear", nil), nil
	case "passthrough":
		shutter, err := instruments.IntArg(args, "shutter")
		if err != nil {
			return instruments.Result{}, err
		}
		cmd := args["command"]
		if len(cmd) != 1 {
			return instruments.Result{}, fmt.Errorf("%w: command must be one character, got %q", instruments.ErrInvalidArgument, cmd)
		}
		ret, err := c.Passthrough(ctx, shutter, cmd[0])
		if err != nil {
			return instruments.Result{}, err
		}
		return instruments.OK(ret, map[string]any{"reply": ret}), nil
	default:
		return instruments.Result{}, fmt.Errorf("%w: %s %q", instruments.ErrUnknownAction, c.meta.ID, action)
	}
}
