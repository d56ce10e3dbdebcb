package adf4350

import (
	"fmt"
	"math"
)

// Params are the divider settings chosen for one output frequency.
type Params struct {
	VCOFrequency      float64 // Hz
	PFDFrequency      float64 // Hz
	DividerStage      int     // output divider is 1 << DividerStage
	Prescaler         bool    // 8/9 prescaler
	RCounter          int
	NInt              int
	NFract            int
	NMod              int
	BandSelectDivider int
}

// Result is a complete plan: the register image and the frequency it
// actually produces.
type Result struct {
	Registers Image
	Frequency float64 // Hz
	Params    Params
}

// Resolution is the output frequency step of one fractional count.
func (r Result) Resolution() float64 {
	return r.Params.PFDFrequency / float64(r.Params.NMod) / float64(int(1)<<r.Params.DividerStage)
}

// Error is the difference between the achieved and the requested frequency.
func (r Result) Error(target float64) float64 {
	return r.Frequency - target
}

// pfdFrequency is the phase detector input frequency for R counter r.
func (c Config) pfdFrequency(r int) float64 {
	f := c.ReferenceFrequency
	if c.ReferenceDoubler {
		f *= 2
	}
	d := float64(r)
	if c.ReferenceDivideBy2 {
		d *= 2
	}
	return f / d
}

/*
Plan computes the six control registers that make the synthesizer output
target Hz with configuration cfg.

The output divider is the smallest power of two that lifts the VCO to at least
MinVCOFrequency. The R counter is taken from cfg or chosen as the smallest value
that keeps the PFD at or below MaxPFDFrequency. The feedback divider is split
into NInt + NFract/NMod, with the fraction quantized according to
cfg.Quantization.

Every range violation is reported with its own error. Either a complete
Result is returned or none.
*/
func Plan(target float64, cfg Config) (Result, error) {
	if !(target >= MinOutputFrequency && target <= MaxOutputFrequency) {
		return Result{}, fmt.Errorf("%w: %g Hz not in [%g, %g]",
			ErrFrequencyOutOfRange, target, MinOutputFrequency, MaxOutputFrequency)
	}
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	var p Params

	p.VCOFrequency = target
	for p.VCOFrequency < MinVCOFrequency {
		p.VCOFrequency *= 2
		p.DividerStage++
	}
	if p.DividerStage > MaxDividerStage {
		return Result{}, fmt.Errorf("%w: output divider stage %d not in [0, %d]",
			ErrFrequencyOutOfRange, p.DividerStage, MaxDividerStage)
	}

	p.Prescaler = p.VCOFrequency > MaxFrequency45Presc

	p.RCounter = cfg.ReferenceDivider
	if p.RCounter == 0 {
		p.RCounter = int(math.Ceil(cfg.pfdFrequency(1) / MaxPFDFrequency))
	}
	if p.RCounter < 1 || p.RCounter > MaxRCounter {
		return Result{}, fmt.Errorf("%w: r=%d not in [1, %d]",
			ErrReferenceDividerOutOfRange, p.RCounter, MaxRCounter)
	}
	p.PFDFrequency = cfg.pfdFrequency(p.RCounter)
	if p.PFDFrequency > MaxPFDFrequency {
		return Result{}, fmt.Errorf("%w: r=%d gives f_pfd=%g Hz above %g",
			ErrReferenceDividerOutOfRange, p.RCounter, p.PFDFrequency, MaxPFDFrequency)
	}

	df := math.Mod(p.VCOFrequency, p.PFDFrequency)
	nInt := math.Round((p.VCOFrequency - df) / p.PFDFrequency)
	minN := MinNInt
	if p.Prescaler {
		minN = MinNIntPrescaler
	}
	if nInt < float64(minN) || nInt > MaxNInt {
		return Result{}, fmt.Errorf("%w: n_int=%.0f not in [%d, %d] (prescaler=%t)",
			ErrNDividerOutOfRange, nInt, minN, MaxNInt, p.Prescaler)
	}
	p.NInt = int(nInt)

	fract, mod, err := quantize(df, p.PFDFrequency, cfg.Quantization)
	if err != nil {
		return Result{}, err
	}
	p.NFract, p.NMod = fract, mod
	if p.NMod < 1 || p.NMod > MaxModulus || p.NFract < 0 || p.NFract >= p.NMod {
		return Result{}, fmt.Errorf("%w: fract/mod=%d/%d, need 0 <= fract < mod <= %d",
			ErrModulusOutOfRange, p.NFract, p.NMod, MaxModulus)
	}
	if p.NMod > 1 && cfg.LockDetectIntegerN {
		return Result{}, fmt.Errorf("%w: fract/mod=%d/%d", ErrIntegerModeConflict, p.NFract, p.NMod)
	}

	p.BandSelectDivider = int(p.PFDFrequency / MaxBandSelectClock)
	if p.BandSelectDivider < 1 || p.BandSelectDivider > MaxBandSelectDivider {
		return Result{}, fmt.Errorf("%w: %d not in [1, %d] (f_pfd=%g Hz)",
			ErrBandSelectDividerOutOfRange, p.BandSelectDivider, MaxBandSelectDivider, p.PFDFrequency)
	}

	img, err := fold(contributions(p, cfg))
	if err != nil {
		return Result{}, err
	}

	return Result{
		Registers: img,
		Frequency: p.PFDFrequency * (float64(p.NInt) + float64(p.NFract)/float64(p.NMod)) /
			float64(int(1)<<p.DividerStage),
		Params: p,
	}, nil
}

// fractionBits is the resolution at which df/f_pfd is sampled for the
// continued fraction expansion.
const fractionBits = 52

// quantize returns fract/mod approximating df/pfd.
func quantize(df, pfd float64, q Quantization) (fract, mod int, err error) {
	if df == 0 {
		return 0, 1, nil
	}
	switch q.Mode {
	case QuantizeChannelSpacing:
		m := math.RoundToEven(pfd / q.Spacing)
		for m > MaxModulus {
			m = math.Floor(m / 2)
		}
		return int(math.RoundToEven(df / pfd * m)), int(m), nil
	case QuantizeBestApproximation:
		const one = uint64(1) << fractionBits
		a := uint64(math.Round(math.Ldexp(df/pfd, fractionBits)))
		c, d, _ := NearestFraction(a, one, MaxModulus)
		return int(c), int(d), nil
	default:
		return 0, 0, fmt.Errorf("%w: quantization mode %d", ErrInvalidSetting, int(q.Mode))
	}
}

// contributions lists every (field, value) pair of the register image.
func contributions(p Params, cfg Config) []contribution {
	noise := uint32(0)
	if cfg.LowSpurMode {
		noise = noiseModeLowSpur
	}
	return []contribution{
		{FieldInt, uint32(p.NInt)},
		{FieldFract, uint32(p.NFract)},

		{FieldPhase, 1},
		{FieldMod, uint32(p.NMod)},
		{FieldPrescaler, boolBit(p.Prescaler)},

		{FieldRCounter, uint32(p.RCounter)},
		{FieldDoubleBuffer, 0},
		{FieldRefDoubler, boolBit(cfg.ReferenceDoubler)},
		{FieldRefDiv2, boolBit(cfg.ReferenceDivideBy2)},
		{FieldPDPolarity, boolBit(cfg.PhaseDetectorPositive)},
		{FieldLockDetectPrec, boolBit(cfg.LockDetectPrecision6ns)},
		{FieldLockDetectFunc, boolBit(cfg.LockDetectIntegerN)},
		{FieldChargePump, ChargePumpCode(cfg.ChargePumpCurrent)},
		{FieldMuxOut, uint32(cfg.MuxOut)},
		{FieldNoiseMode, noise},

		{FieldCSR, boolBit(cfg.CycleSlipReduction)},
		{FieldChargeCancel, boolBit(cfg.ChargeCancellation)},
		{FieldAntiBacklash, boolBit(cfg.AntiBacklash3ns)},
		{FieldBandSelectClockHi, boolBit(cfg.BandSelectClockHigh)},
		{FieldClockDivider, uint32(cfg.ClockDivider)},
		{FieldClockDividerMode, uint32(cfg.ClockDividerMode)},

		{FieldFeedbackFundamental, 1},
		{FieldRFDividerSelect, uint32(p.DividerStage)},
		{FieldBandSelectDivider, uint32(p.BandSelectDivider)},
		{FieldRFOutEnable, 1},
		{FieldOutputPower, uint32(cfg.OutputPower)},
		{FieldAuxOutputPower, uint32(cfg.AuxOutputPower)},
		{FieldAuxOutEnable, boolBit(cfg.AuxOutput)},
		{FieldAuxOutFundamental, boolBit(cfg.AuxOutputFundamental)},
		{FieldMuteTillLock, boolBit(cfg.MuteTillLock)},

		{FieldLockDetectPin, lockDetectPinDigital},
		{Field{Name: "reserved", Word: 5, Shift: 0, Width: 32}, reg5Reserved},
	}
}
