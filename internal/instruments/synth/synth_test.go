package synth

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/labctl/internal/adf4350"
	"github.com/danmuck/labctl/internal/instruments"
	"github.com/danmuck/labctl/internal/protocol/line"
	"github.com/danmuck/labctl/internal/protocol/session"
	"github.com/danmuck/labctl/internal/testutil/fakeline"
	"github.com/danmuck/labctl/internal/testutil/testlog"
)

const img2500MHz = "00580005008a003c000404b302004e4200008009003e8000"

func newTestSynth(t *testing.T, tr instruments.Transport) *Synth {
	t.Helper()
	s := New(instruments.Metadata{ID: "synth.test"}, tr, adf4350.DefaultConfig())
	for name, value := range map[string]string{
		"reference_frequency":       "10e6",
		"reference_doubler_enabled": "true",
		"reference_divider":         "1",
	} {
		if err := s.Set(name, value); err != nil {
			t.Fatalf("set %s: %v", name, err)
		}
	}
	return s
}

func TestSetFrequencyThenStartSendsPlannedRegisters(t *testing.T) {
	testlog.Start(t)
	tr := fakeline.New().Reply("start", "ok\n")
	s := newTestSynth(t, tr)

	res, err := s.SetFrequency(2.5e9)
	if err != nil {
		t.Fatalf("set frequency: %v", err)
	}
	if res.Registers.Hex() != img2500MHz {
		t.Fatalf("registers mismatch: %s", res.Registers.Hex())
	}
	if err := s.Start(context.Background(), nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	sent := tr.Sent()
	if len(sent) != 1 || sent[0] != "start"+img2500MHz {
		t.Fatalf("unexpected commands: %q", sent)
	}
}

func TestSetFrequencyAndStartLoadsItsOwnPlan(t *testing.T) {
	testlog.Start(t)
	tr := fakeline.New().Reply("start", "ok\n")
	s := newTestSynth(t, tr)

	targets := []float64{2.5e9, 2e9, 1.5e9, 3.1e9, 2_000_432_123.4567, 900e6}
	results := make([]adf4350.Result, len(targets))
	var wg sync.WaitGroup
	for i, target := range targets {
		i, target := i, target
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.SetFrequencyAndStart(context.Background(), target)
			if err != nil {
				t.Errorf("set frequency and start %g: %v", target, err)
				return
			}
			results[i] = res
		}()
	}
	wg.Wait()

	sent := tr.Sent()
	if len(sent) != len(targets) {
		t.Fatalf("expected %d start commands, got %q", len(targets), sent)
	}
	loaded := map[string]bool{}
	for _, cmd := range sent {
		loaded[strings.TrimPrefix(cmd, "start")] = true
	}
	for i, res := range results {
		if !loaded[res.Registers.Hex()] {
			t.Fatalf("plan for %g never loaded: %s", targets[i], res.Registers.Hex())
		}
	}
	last, ok := s.Registers()
	if !ok || "start"+last.Hex() != sent[len(sent)-1] {
		t.Fatalf("kept registers %s differ from last loaded %q", last.Hex(), sent[len(sent)-1])
	}
}

func TestExecuteSetFrequencyWithStart(t *testing.T) {
	testlog.Start(t)
	tr := fakeline.New().Reply("start", "ok\n")
	s := newTestSynth(t, tr)

	if _, err := s.Execute(context.Background(), "set_frequency", map[string]string{"frequency": "2.5GHz", "start": "true"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if sent := tr.Sent(); len(sent) != 1 || sent[0] != "start"+img2500MHz {
		t.Fatalf("unexpected commands: %q", sent)
	}
	_, err := s.Execute(context.Background(), "set_frequency", map[string]string{"frequency": "2.5GHz", "start": "maybe"})
	if !errors.Is(err, instruments.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestSaveUsesSpacedKeyword(t *testing.T) {
	testlog.Start(t)
	tr := fakeline.New().Reply("save ", "ok")
	s := newTestSynth(t, tr)
	img, err := adf4350.ParseImage(img2500MHz)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := s.Save(context.Background(), &img); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got := tr.Sent()[0]; got != "save "+img2500MHz || len(got) != 5+adf4350.HexLen {
		t.Fatalf("unexpected save command: %q", got)
	}
}

func TestStartWithoutPlanFails(t *testing.T) {
	testlog.Start(t)
	tr := fakeline.New()
	s := newTestSynth(t, tr)
	err := s.Start(context.Background(), nil)
	if !errors.Is(err, ErrNoPlan) || !errors.Is(err, instruments.ErrInvalidArgument) {
		t.Fatalf("expected ErrNoPlan, got %v", err)
	}
	if len(tr.Sent()) != 0 {
		t.Fatalf("nothing should be sent: %q", tr.Sent())
	}
}

func TestStartRejectedByDevice(t *testing.T) {
	testlog.Start(t)
	tr := fakeline.New().Reply("start", "err\n")
	s := newTestSynth(t, tr)
	if _, err := s.SetFrequency(2e9); err != nil {
		t.Fatalf("set frequency: %v", err)
	}
	if err := s.Start(context.Background(), nil); !errors.Is(err, instruments.ErrCommandFailed) {
		t.Fatalf("expected ErrCommandFailed, got %v", err)
	}
}

func TestLockedAndVersion(t *testing.T) {
	testlog.Start(t)
	tr := fakeline.New().Reply("locked", "not locked").Reply("version", "1.0.3\r\nextra")
	s := newTestSynth(t, tr)

	locked, err := s.Locked(context.Background())
	if err != nil {
		t.Fatalf("locked: %v", err)
	}
	if locked {
		t.Fatalf("expected unlocked")
	}
	tr.Reply("locked", "locked")
	if locked, _ = s.Locked(context.Background()); !locked {
		t.Fatalf("expected locked")
	}

	v, err := s.Version(context.Background())
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v != "1.0.3" {
		t.Fatalf("version mismatch: %q", v)
	}
	if !s.Ping(context.Background()) {
		t.Fatalf("expected ping ok")
	}
}

func TestPingFailsOnTransportError(t *testing.T) {
	testlog.Start(t)
	tr := fakeline.New().Fail("version", errors.New("connection reset"))
	s := newTestSynth(t, tr)
	if s.Ping(context.Background()) {
		t.Fatalf("expected ping failure")
	}
}

func TestPlanDoesNotStore(t *testing.T) {
	testlog.Start(t)
	s := newTestSynth(t, fakeline.New())
	if _, err := s.Plan(2.5e9); err != nil {
		t.Fatalf("plan: %v", err)
	}
	if _, ok := s.Registers(); ok {
		t.Fatalf("plan must not store registers")
	}
}

func TestExecuteActions(t *testing.T) {
	testlog.Start(t)
	tr := fakeline.New().Reply("start", "ok")
	s := newTestSynth(t, tr)
	ctx := context.Background()

	res, err := s.Execute(ctx, "set_frequency", map[string]string{"frequency": "2.5GHz"})
	if err != nil {
		t.Fatalf("set_frequency: %v", err)
	}
	if res.Data["registers"] != img2500MHz {
		t.Fatalf("unexpected registers: %v", res.Data["registers"])
	}
	if res.Data["error_hz"] != 0.0 {
		t.Fatalf("expected exact plan, error=%v", res.Data["error_hz"])
	}
	if _, err := s.Execute(ctx, "start", nil); err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := s.Execute(ctx, "set", map[string]string{"name": "output_power_level", "value": "1"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	res, err = s.Execute(ctx, "get", map[string]string{"name": "output_power_level"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if res.Data["output_power_level"] != int64(1) {
		t.Fatalf("get mismatch: %v", res.Data)
	}

	res, err = s.Execute(ctx, "config", nil)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if len(res.Data) != len(adf4350.Names()) {
		t.Fatalf("config size mismatch: %d", len(res.Data))
	}
}

func TestExecuteRejections(t *testing.T) {
	testlog.Start(t)
	s := newTestSynth(t, fakeline.New())
	ctx := context.Background()

	cases := []struct {
		name   string
		action string
		args   map[string]string
		want   error
	}{
		{"unknown action", "explode", nil, instruments.ErrUnknownAction},
		{"missing frequency", "plan", nil, instruments.ErrInvalidArgument},
		{"out of band", "plan", map[string]string{"frequency": "5GHz"}, adf4350.ErrFrequencyOutOfRange},
		{"unknown setting", "set", map[string]string{"name": "warp", "value": "9"}, adf4350.ErrUnknownSetting},
		{"bad setting value", "set", map[string]string{"name": "mux_out_select", "value": "9"}, adf4350.ErrInvalidSetting},
		{"set without value", "set", map[string]string{"name": "mux_out_select"}, instruments.ErrInvalidArgument},
		{"malformed registers", "start", map[string]string{"registers": "abc"}, adf4350.ErrMalformedImage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Execute(ctx, tc.action, tc.args)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

// fakeDevice answers the synthesizer protocol on a loopback listener.
func fakeDevice(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		r := bufio.NewReader(c)
		for {
			cmd, err := r.ReadString('\n')
			if err != nil {
				return
			}
			cmd = strings.TrimSuffix(cmd, "\n")
			var reply string
			switch {
			case cmd == "version":
				reply = "v1.0.0\n"
			case cmd == "locked":
				reply = "locked\n"
			case strings.HasPrefix(cmd, "start") && len(cmd) == 5+adf4350.HexLen:
				reply = "ok\n"
			default:
				reply = "error\n"
			}
			if _, err := c.Write([]byte(reply)); err != nil {
				return
			}
		}
	}()
	return ln.Addr().String()
}

func TestSynthOverTCP(t *testing.T) {
	testlog.Start(t)
	cfg := session.DefaultConfig()
	cfg.ReadTimeout = time.Second
	conn, err := line.Dial(context.Background(), fakeDevice(t), Framing, cfg)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	s := newTestSynth(t, conn)
	defer s.Close()
	ctx := context.Background()

	if v, err := s.Version(ctx); err != nil || v != "v1.0.0" {
		t.Fatalf("version: %q %v", v, err)
	}
	if _, err := s.SetFrequency(2e9); err != nil {
		t.Fatalf("set frequency: %v", err)
	}
	if err := s.Start(ctx, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	if locked, err := s.Locked(ctx); err != nil || !locked {
		t.Fatalf("locked: %v %v", locked, err)
	}
}
