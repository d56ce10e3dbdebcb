package adf4350

import "fmt"

// Field is one control field: Width bits starting at bit Shift of register Word.
type Field struct {
	Name  string
	Word  int
	Shift uint
	Width uint
}

// Max returns the largest value the field can hold.
func (f Field) Max() uint32 {
	return uint32(uint64(1)<<f.Width - 1)
}

// Mask returns the field bits in place within its word.
func (f Field) Mask() uint32 {
	return f.Max() << f.Shift
}

// Encode positions v within the word. Values wider than the field are
// rejected rather than truncated into the neighbouring fields.
func (f Field) Encode(v uint32) (uint32, error) {
	if v > f.Max() {
		return 0, fmt.Errorf("%w: %s=%d exceeds %d bits (max %d)", ErrFieldOverflow, f.Name, v, f.Width, f.Max())
	}
	return v << f.Shift, nil
}

// EncodeBool encodes a one-bit flag.
func (f Field) EncodeBool(b bool) (uint32, error) {
	return f.Encode(boolBit(b))
}

// Decode extracts the field value from a register word.
func (f Field) Decode(word uint32) uint32 {
	return (word & f.Mask()) >> f.Shift
}

func boolBit(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// Register bit layout. Bits [0..2] of every word carry the register address,
// see ControlField.
var (
	FieldFract = Field{Name: "fract", Word: 0, Shift: 3, Width: 12}
	FieldInt   = Field{Name: "int", Word: 0, Shift: 15, Width: 16}

	FieldMod       = Field{Name: "mod", Word: 1, Shift: 3, Width: 12}
	FieldPhase     = Field{Name: "phase", Word: 1, Shift: 15, Width: 12}
	FieldPrescaler = Field{Name: "prescaler", Word: 1, Shift: 27, Width: 1}

	FieldCounterReset       = Field{Name: "counter_reset", Word: 2, Shift: 3, Width: 1}
	FieldChargePumpTristate = Field{Name: "cp_three_state", Word: 2, Shift: 4, Width: 1}
	FieldPowerDown          = Field{Name: "power_down", Word: 2, Shift: 5, Width: 1}
	FieldPDPolarity         = Field{Name: "pd_polarity", Word: 2, Shift: 6, Width: 1}
	FieldLockDetectPrec     = Field{Name: "ldp", Word: 2, Shift: 7, Width: 1}
	FieldLockDetectFunc     = Field{Name: "ldf", Word: 2, Shift: 8, Width: 1}
	FieldChargePump         = Field{Name: "charge_pump", Word: 2, Shift: 9, Width: 4}
	FieldDoubleBuffer       = Field{Name: "double_buffer", Word: 2, Shift: 13, Width: 1}
	FieldRCounter           = Field{Name: "r_counter", Word: 2, Shift: 14, Width: 10}
	FieldRefDiv2            = Field{Name: "ref_div2", Word: 2, Shift: 24, Width: 1}
	FieldRefDoubler         = Field{Name: "ref_doubler", Word: 2, Shift: 25, Width: 1}
	FieldMuxOut             = Field{Name: "muxout", Word: 2, Shift: 26, Width: 3}
	FieldNoiseMode          = Field{Name: "noise_mode", Word: 2, Shift: 29, Width: 2}

	FieldClockDivider      = Field{Name: "clk_div", Word: 3, Shift: 3, Width: 12}
	FieldClockDividerMode  = Field{Name: "clk_div_mode", Word: 3, Shift: 16, Width: 2}
	FieldCSR               = Field{Name: "csr", Word: 3, Shift: 18, Width: 1}
	FieldChargeCancel      = Field{Name: "charge_cancel", Word: 3, Shift: 21, Width: 1}
	FieldAntiBacklash      = Field{Name: "abp", Word: 3, Shift: 22, Width: 1}
	FieldBandSelectClockHi = Field{Name: "band_sel_clk_mode", Word: 3, Shift: 23, Width: 1}

	FieldOutputPower         = Field{Name: "output_power", Word: 4, Shift: 3, Width: 2}
	FieldRFOutEnable         = Field{Name: "rf_out_en", Word: 4, Shift: 5, Width: 1}
	FieldAuxOutputPower      = Field{Name: "aux_output_power", Word: 4, Shift: 6, Width: 2}
	FieldAuxOutEnable        = Field{Name: "aux_out_en", Word: 4, Shift: 8, Width: 1}
	FieldAuxOutFundamental   = Field{Name: "aux_out_sel", Word: 4, Shift: 9, Width: 1}
	FieldMuteTillLock        = Field{Name: "mtld", Word: 4, Shift: 10, Width: 1}
	FieldVCOPowerDown        = Field{Name: "vco_power_down", Word: 4, Shift: 11, Width: 1}
	FieldBandSelectDivider   = Field{Name: "band_sel_clk_div", Word: 4, Shift: 12, Width: 8}
	FieldRFDividerSelect     = Field{Name: "rf_div_sel", Word: 4, Shift: 20, Width: 3}
	FieldFeedbackFundamental = Field{Name: "feedback_sel", Word: 4, Shift: 23, Width: 1}

	FieldLockDetectPin = Field{Name: "ld_pin_mode", Word: 5, Shift: 22, Width: 2}
)

// ControlField is the 3-bit register address field of word.
func ControlField(word int) Field {
	return Field{Name: "control", Word: word, Shift: 0, Width: 3}
}

// Layout lists every named control field. It is the single source of truth
// for the register map.
var Layout = []Field{
	FieldFract, FieldInt,
	FieldMod, FieldPhase, FieldPrescaler,
	FieldCounterReset, FieldChargePumpTristate, FieldPowerDown, FieldPDPolarity,
	FieldLockDetectPrec, FieldLockDetectFunc, FieldChargePump, FieldDoubleBuffer,
	FieldRCounter, FieldRefDiv2, FieldRefDoubler, FieldMuxOut, FieldNoiseMode,
	FieldClockDivider, FieldClockDividerMode, FieldCSR, FieldChargeCancel,
	FieldAntiBacklash, FieldBandSelectClockHi,
	FieldOutputPower, FieldRFOutEnable, FieldAuxOutputPower, FieldAuxOutEnable,
	FieldAuxOutFundamental, FieldMuteTillLock, FieldVCOPowerDown,
	FieldBandSelectDivider, FieldRFDividerSelect, FieldFeedbackFundamental,
	FieldLockDetectPin,
}

const (
	lockDetectPinDigital = 1
	noiseModeLowSpur     = 3
	reg5Reserved         = 0x00180000
)

// ChargePumpCode maps a charge pump current in µA to the 4-bit register code:
// floor((µA - 312) / 312) mod 16. The mapping is lossy; only currents near
// the nominal (code+1) * 312.5 µA steps between 312 and 5000 µA land on the
// intended code, anything outside wraps around.
func ChargePumpCode(microamps int) uint32 {
	q := floorDiv(microamps-312, 312)
	return uint32(((q % 16) + 16) % 16)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

type contribution struct {
	field Field
	value uint32
}

// fold ORs every contribution into its word, starting from the register
// addresses. The first overflow aborts the fold.
func fold(contribs []contribution) (Image, error) {
	var img Image
	for i := range img {
		img[i] = uint32(i)
	}
	for _, c := range contribs {
		bits, err := c.field.Encode(c.value)
		if err != nil {
			return Image{}, err
		}
		img[c.field.Word] |= bits
	}
	return img, nil
}
