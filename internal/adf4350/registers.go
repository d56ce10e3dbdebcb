package adf4350

import (
	"fmt"
	"strconv"
	"strings"
)

// NumRegisters is the number of 32-bit control words.
const NumRegisters = 6

// HexLen is the length of the hex rendering of an Image.
const HexLen = NumRegisters * 8

// Image holds the six control words, indexed by register address.
type Image [NumRegisters]uint32

// Hex renders the image as 8 lowercase hex digits per word, register 5 first
// down to register 0, with no separators.
func (img Image) Hex() string {
	var b strings.Builder
	b.Grow(HexLen)
	for i := NumRegisters - 1; i >= 0; i-- {
		fmt.Fprintf(&b, "%08x", img[i])
	}
	return b.String()
}

func (img Image) String() string {
	return img.Hex()
}

// ParseImage parses the Hex form back into an Image.
func ParseImage(s string) (Image, error) {
	s = strings.TrimSpace(s)
	if len(s) != HexLen {
		return Image{}, fmt.Errorf("%w: want %d hex digits, got %d", ErrMalformedImage, HexLen, len(s))
	}
	var img Image
	for i := 0; i < NumRegisters; i++ {
		chunk := s[i*8 : (i+1)*8]
		v, err := strconv.ParseUint(chunk, 16, 32)
		if err != nil {
			return Image{}, fmt.Errorf("%w: register %d %q", ErrMalformedImage, NumRegisters-1-i, chunk)
		}
		img[NumRegisters-1-i] = uint32(v)
	}
	return img, nil
}

// Field decodes one control field from the image.
func (img Image) Field(f Field) uint32 {
	return f.Decode(img[f.Word])
}

// Decode recovers the divider settings packed into the image. Frequencies
// are not part of the image and are left zero.
func (img Image) Decode() Params {
	return Params{
		DividerStage:      int(img.Field(FieldRFDividerSelect)),
		Prescaler:         img.Field(FieldPrescaler) == 1,
		RCounter:          int(img.Field(FieldRCounter)),
		NInt:              int(img.Field(FieldInt)),
		NFract:            int(img.Field(FieldFract)),
		NMod:              int(img.Field(FieldMod)),
		BandSelectDivider: int(img.Field(FieldBandSelectDivider)),
	}
}
