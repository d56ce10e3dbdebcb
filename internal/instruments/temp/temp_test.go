package temp

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/danmuck/labctl/internal/instruments"
	"github.com/danmuck/labctl/internal/testutil/fakeline"
	"github.com/danmuck/labctl/internal/testutil/testlog"
)

func TestGetAllParsesSequentialChannels(t *testing.T) {
	testlog.Start(t)
	tr := fakeline.New().Reply("a", "0:21.5 1:22.25 2:-3")
	s := New(instruments.Metadata{ID: "temp.test"}, tr)

	got, err := s.GetAll(context.Background())
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if want := []float64{21.5, 22.25, -3}; !reflect.DeepEqual(got, want) {
		t.Fatalf("temps mismatch: got=%v want=%v", got, want)
	}
}

func TestGetAllRejectsMalformedReplies(t *testing.T) {
	testlog.Start(t)
	for _, reply := range []string{"0:1 2:3", "1:20", "0-20", "0:warm", "x:20"} {
		tr := fakeline.New().Reply("a", reply)
		s := New(instruments.Metadata{ID: "temp.test"}, tr)
		if _, err := s.GetAll(context.Background()); !errors.Is(err, instruments.ErrMalformedReply) {
			t.Fatalf("reply %q: expected ErrMalformedReply, got %v", reply, err)
		}
	}
}

func TestGetChecksChannelEcho(t *testing.T) {
	testlog.Start(t)
	tr := fakeline.New().Reply("3", "3:19.75").Reply("4", "5:19.75")
	s := New(instruments.Metadata{ID: "temp.test"}, tr)

	got, err := s.Get(context.Background(), 3)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != 19.75 {
		t.Fatalf("temp mismatch: %v", got)
	}
	if _, err := s.Get(context.Background(), 4); !errors.Is(err, instruments.ErrMalformedReply) {
		t.Fatalf("expected ErrMalformedReply, got %v", err)
	}
	if _, err := s.Get(context.Background(), -1); !errors.Is(err, instruments.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestExecuteVersionAndGet(t *testing.T) {
	testlog.Start(t)
	tr := fakeline.New().Reply("v", " temp 2.1 ").Reply("0", "0:20")
	s := New(instruments.Metadata{ID: "temp.test"}, tr)
	ctx := context.Background()

	res, err := s.Execute(ctx, "version", nil)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if res.Output != "temp 2.1" {
		t.Fatalf("version mismatch: %q", res.Output)
	}
	res, err = s.Execute(ctx, "get", map[string]string{"channel": "0"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if res.Data["temperature"] != 20.0 {
		t.Fatalf("temperature mismatch: %v", res.Data)
	}
	if _, err := s.Execute(ctx, "get", nil); !errors.Is(err, instruments.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := s.Execute(ctx, "melt", nil); !errors.Is(err, instruments.ErrUnknownAction) {
		t.Fatalf("expected ErrUnknownAction, got %v", err)
	}
	if !s.Ping(ctx) {
		t.Fatalf("expected ping ok")
	}
}
