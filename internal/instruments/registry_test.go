package instruments

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/danmuck/labctl/internal/testutil/testlog"
)

type fakeInstrument struct {
	meta     Metadata
	closeErr error
	closed   *int
}

func (f fakeInstrument) Metadata() Metadata {
	return f.meta
}

func (f fakeInstrument) Operations() []OperationSpec {
	return []OperationSpec{{Name: "version", Description: "fake version", Idempotent: true}}
}

func (f fakeInstrument) Execute(context.Context, string, map[string]string) (Result, error) {
	return OK("fake", nil), nil
}

func (f fakeInstrument) Ping(context.Context) bool { return true }

func (f fakeInstrument) Close() error {
	if f.closed != nil {
		*f.closed++
	}
	return f.closeErr
}

func fake(id string) fakeInstrument {
	return fakeInstrument{meta: Metadata{ID: id, Kind: KindTemp, Name: id}}
}

func TestRegisterResolveAndDuplicate(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	inst := fake("temp.lab1")

	if err := r.Register(inst); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(inst); !errors.Is(err, ErrInstrumentExists) {
		t.Fatalf("expected ErrInstrumentExists, got %v", err)
	}
	if err := r.Register(nil); !errors.Is(err, ErrInstrumentNil) {
		t.Fatalf("expected ErrInstrumentNil, got %v", err)
	}
	got, ok := r.Resolve("temp.lab1")
	if !ok || got.Metadata().ID != "temp.lab1" {
		t.Fatalf("resolve failed: ok=%v", ok)
	}
	if _, ok := r.Resolve("temp.missing"); ok {
		t.Fatalf("expected missing instrument to return ok=false")
	}
}

func TestListMetadataSorted(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	for _, id := range []string{"synth.z", "synth.a", "synth.m"} {
		if err := r.Register(fake(id)); err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}

	list := r.ListMetadata()
	ids := []string{list[0].ID, list[1].ID, list[2].ID}
	want := []string{"synth.a", "synth.m", "synth.z"}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("metadata not sorted: got=%v want=%v", ids, want)
	}
}

func TestValidateMetadataFailures(t *testing.T) {
	testlog.Start(t)
	cases := []Metadata{
		{ID: "", Kind: KindSynth, Name: "x"},
		{ID: "synth.a", Kind: "", Name: "x"},
		{ID: "synth.a", Kind: KindSynth, Name: ""},
		{ID: "Synth.A", Kind: KindSynth, Name: "x"},
		{ID: ".synth", Kind: KindSynth, Name: "x"},
		{ID: "synth..a", Kind: KindSynth, Name: "x"},
	}
	for _, meta := range cases {
		if err := ValidateMetadata(meta); !errors.Is(err, ErrInvalidMetadata) {
			t.Fatalf("expected ErrInvalidMetadata for meta=%+v, got %v", meta, err)
		}
	}
}

func TestCloseAllCollectsErrors(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	closed := 0
	boom := errors.New("boom")
	a := fake("temp.a")
	a.closed = &closed
	b := fake("temp.b")
	b.closed = &closed
	b.closeErr = boom
	_ = r.Register(a)
	_ = r.Register(b)

	err := r.CloseAll()
	if !errors.Is(err, boom) {
		t.Fatalf("expected close error, got %v", err)
	}
	if closed != 2 {
		t.Fatalf("expected 2 closes, got %d", closed)
	}
	if r.Len() != 0 {
		t.Fatalf("registry not emptied: %d", r.Len())
	}
}

func TestParseFrequency(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		in   string
		want float64
	}{
		{"2.5e9", 2.5e9},
		{"100000000", 100e6},
		{" 2GHz ", 2e9},
		{"100MHz", 100e6},
		{"34.375MHz", 34.375e6},
	}
	for _, tc := range cases {
		got, err := ParseFrequency(tc.in)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("parse %q: got=%g want=%g", tc.in, got, tc.want)
		}
	}
	for _, bad := range []string{"", "fast", "NaN", "3 parsecs"} {
		if _, err := ParseFrequency(bad); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument for %q, got %v", bad, err)
		}
	}
}
