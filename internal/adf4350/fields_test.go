package adf4350

import (
	"errors"
	"testing"

	"github.com/danmuck/labctl/internal/testutil/testlog"
)

func TestLayoutFieldsFitAndDoNotOverlap(t *testing.T) {
	testlog.Start(t)
	var used [NumRegisters]uint32
	for w := 0; w < NumRegisters; w++ {
		used[w] = ControlField(w).Mask()
	}
	for _, f := range Layout {
		if f.Word < 0 || f.Word >= NumRegisters {
			t.Fatalf("%s: word %d out of range", f.Name, f.Word)
		}
		if f.Width == 0 || f.Shift+f.Width > 32 {
			t.Fatalf("%s: shift=%d width=%d does not fit 32 bits", f.Name, f.Shift, f.Width)
		}
		if used[f.Word]&f.Mask() != 0 {
			t.Fatalf("%s overlaps another field in word %d: used=%#08x mask=%#08x", f.Name, f.Word, used[f.Word], f.Mask())
		}
		used[f.Word] |= f.Mask()
	}
	testlog.Logf("adf4350/layout: %d fields, used bits %08x", len(Layout), used)
}

func TestFieldEncodeDecode(t *testing.T) {
	testlog.Start(t)
	for _, f := range Layout {
		for _, v := range []uint32{0, 1, f.Max()} {
			bits, err := f.Encode(v)
			if err != nil {
				t.Fatalf("%s: encode %d: %v", f.Name, v, err)
			}
			if bits&^f.Mask() != 0 {
				t.Fatalf("%s: encode %d leaked outside mask: %#08x", f.Name, v, bits)
			}
			// neighbours keep their bits
			word := bits | ^f.Mask()
			if got := f.Decode(word); got != v {
				t.Fatalf("%s: decode = %d, want %d", f.Name, got, v)
			}
		}
	}
}

func TestFieldEncodeRejectsOverflow(t *testing.T) {
	testlog.Start(t)
	if _, err := FieldMuxOut.Encode(8); !errors.Is(err, ErrFieldOverflow) {
		t.Fatalf("expected ErrFieldOverflow for muxout=8, got %v", err)
	}
	if _, err := FieldInt.Encode(1 << 16); !errors.Is(err, ErrFieldOverflow) {
		t.Fatalf("expected ErrFieldOverflow for int=65536, got %v", err)
	}
	if bits, err := FieldPrescaler.EncodeBool(true); err != nil || bits != 1<<27 {
		t.Fatalf("prescaler bit: bits=%#x err=%v", bits, err)
	}
}

func TestChargePumpCode(t *testing.T) {
	tests := []struct {
		microamps int
		want      uint32
	}{
		{312, 0},
		{624, 1},
		{2500, 7},
		{5000, 15},
		{0, 15},
		{5304, 0},
	}
	for _, tt := range tests {
		if got := ChargePumpCode(tt.microamps); got != tt.want {
			t.Errorf("ChargePumpCode(%d) = %d, want %d", tt.microamps, got, tt.want)
		}
	}
}

func TestFoldStartsFromRegisterAddress(t *testing.T) {
	testlog.Start(t)
	img, err := fold(nil)
	if err != nil {
		t.Fatalf("fold: %v", err)
	}
	for i, w := range img {
		if w != uint32(i) {
			t.Fatalf("register %d = %#x, want address only", i, w)
		}
	}
	if _, err := fold([]contribution{{FieldOutputPower, 4}}); !errors.Is(err, ErrFieldOverflow) {
		t.Fatalf("expected overflow to abort fold, got %v", err)
	}
}
