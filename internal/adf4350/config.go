package adf4350

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/multierr"
)

// Operating limits of the part.
const (
	MinOutputFrequency   = 34.375e6 // Hz
	MaxOutputFrequency   = 4.4e9    // Hz
	MinVCOFrequency      = 2.2e9    // Hz
	MaxFrequency45Presc  = 3e9      // Hz, highest VCO frequency for the 4/5 prescaler
	MaxPFDFrequency      = 32e6     // Hz
	MaxBandSelectClock   = 125e3    // Hz
	MaxReferenceInput    = 250e6    // Hz
	MaxModulus           = 4095
	MaxRCounter          = 1023
	MaxDividerStage      = 6
	MinNInt              = 23
	MinNIntPrescaler     = 75
	MaxNInt              = 1<<16 - 1
	MaxBandSelectDivider = 255
)

// QuantizationMode selects how the fractional part of N is quantized.
type QuantizationMode int

const (
	// QuantizeBestApproximation picks the closest fraction with a modulus up
	// to MaxModulus.
	QuantizeBestApproximation QuantizationMode = iota
	// QuantizeChannelSpacing derives the modulus from a fixed channel raster.
	QuantizeChannelSpacing
)

func (m QuantizationMode) String() string {
	switch m {
	case QuantizeBestApproximation:
		return "best_approximation"
	case QuantizeChannelSpacing:
		return "channel_spacing"
	default:
		return fmt.Sprintf("QuantizationMode(%d)", int(m))
	}
}

// Quantization is the fractional quantization policy. Spacing is only
// meaningful for QuantizeChannelSpacing.
type Quantization struct {
	Mode    QuantizationMode
	Spacing float64 // Hz
}

// BestApproximation returns the rational approximation policy.
func BestApproximation() Quantization {
	return Quantization{Mode: QuantizeBestApproximation}
}

// ChannelSpacing returns the channel raster policy for spacing Hz.
func ChannelSpacing(hz float64) Quantization {
	return Quantization{Mode: QuantizeChannelSpacing, Spacing: hz}
}

func (q Quantization) String() string {
	if q.Mode == QuantizeChannelSpacing {
		return fmt.Sprintf("%s(%g Hz)", q.Mode, q.Spacing)
	}
	return q.Mode.String()
}

// Config holds the tunable synthesizer parameters consumed by Plan.
type Config struct {
	ReferenceFrequency float64 // Hz
	ReferenceDoubler   bool
	ReferenceDivideBy2 bool

	// ReferenceDivider is the R counter. Zero lets Plan pick the smallest
	// value that keeps the PFD at or below MaxPFDFrequency.
	ReferenceDivider int

	Quantization Quantization

	PhaseDetectorPositive  bool
	LockDetectPrecision6ns bool
	LockDetectIntegerN     bool
	ChargePumpCurrent      int // µA
	MuxOut                 uint8
	LowSpurMode            bool

	CycleSlipReduction  bool
	ChargeCancellation  bool
	AntiBacklash3ns     bool
	BandSelectClockHigh bool
	ClockDivider        uint16
	ClockDividerMode    uint8

	AuxOutput            bool
	AuxOutputFundamental bool
	MuteTillLock         bool
	OutputPower          uint8
	AuxOutputPower       uint8
}

// DefaultConfig returns the power-on defaults used by the PTB synthesizer.
func DefaultConfig() Config {
	return Config{
		ReferenceFrequency:    100e6,
		Quantization:          BestApproximation(),
		PhaseDetectorPositive: true,
		ChargePumpCurrent:     2500,
		CycleSlipReduction:    true,
		ClockDivider:          150,
		OutputPower:           3,
	}
}

// Validate checks every field on its own and reports all violations.
func (c Config) Validate() error {
	var err error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			err = multierr.Append(err, fmt.Errorf("%w: "+format, append([]any{ErrInvalidSetting}, args...)...))
		}
	}
	check(c.ReferenceFrequency > 0 && c.ReferenceFrequency <= MaxReferenceInput,
		"reference_frequency=%g not in (0, %g]", c.ReferenceFrequency, MaxReferenceInput)
	check(c.ReferenceDivider >= 0 && c.ReferenceDivider <= MaxRCounter,
		"reference_divider=%d not in [0, %d]", c.ReferenceDivider, MaxRCounter)
	switch c.Quantization.Mode {
	case QuantizeBestApproximation:
	case QuantizeChannelSpacing:
		check(c.Quantization.Spacing > 0 && !math.IsInf(c.Quantization.Spacing, 0),
			"channel_spacing=%g must be positive", c.Quantization.Spacing)
	default:
		check(false, "quantization mode %d", int(c.Quantization.Mode))
	}
	check(c.ChargePumpCurrent >= 312 && c.ChargePumpCurrent <= 5000,
		"charge_pump_current_microamps=%d not in [312, 5000]", c.ChargePumpCurrent)
	check(uint32(c.MuxOut) <= FieldMuxOut.Max(), "mux_out_select=%d not in [0, %d]", c.MuxOut, FieldMuxOut.Max())
	check(uint32(c.ClockDivider) <= FieldClockDivider.Max(),
		"clock_divider_value=%d not in [0, %d]", c.ClockDivider, FieldClockDivider.Max())
	check(uint32(c.ClockDividerMode) <= FieldClockDividerMode.Max(),
		"clock_divider_mode=%d not in [0, %d]", c.ClockDividerMode, FieldClockDividerMode.Max())
	check(uint32(c.OutputPower) <= FieldOutputPower.Max(),
		"output_power_level=%d not in [0, %d]", c.OutputPower, FieldOutputPower.Max())
	check(uint32(c.AuxOutputPower) <= FieldAuxOutputPower.Max(),
		"aux_output_power_level=%d not in [0, %d]", c.AuxOutputPower, FieldAuxOutputPower.Max())
	return err
}

type setting struct {
	set func(c *Config, v any) error
	get func(c Config) any
}

func boolSetting(p func(c *Config) *bool) setting {
	return setting{
		set: func(c *Config, v any) error {
			b, err := toBool(v)
			if err != nil {
				return err
			}
			*p(c) = b
			return nil
		},
		get: func(c Config) any { return *p(&c) },
	}
}

func uintSetting[T uint8 | uint16](p func(c *Config) *T, max uint64) setting {
	return setting{
		set: func(c *Config, v any) error {
			n, err := toInt(v)
			if err != nil {
				return err
			}
			if n < 0 || uint64(n) > max {
				return fmt.Errorf("%d not in [0, %d]", n, max)
			}
			*p(c) = T(n)
			return nil
		},
		get: func(c Config) any { return int64(*p(&c)) },
	}
}

var settings = map[string]setting{
	"reference_frequency": {
		set: func(c *Config, v any) error {
			f, err := toFloat(v)
			if err != nil {
				return err
			}
			if !(f > 0 && f <= MaxReferenceInput) {
				return fmt.Errorf("%g not in (0, %g]", f, MaxReferenceInput)
			}
			c.ReferenceFrequency = f
			return nil
		},
		get: func(c Config) any { return c.ReferenceFrequency },
	},
	"reference_doubler_enabled":     boolSetting(func(c *Config) *bool { return &c.ReferenceDoubler }),
	"reference_divide_by_2_enabled": boolSetting(func(c *Config) *bool { return &c.ReferenceDivideBy2 }),
	"reference_divider": {
		set: func(c *Config, v any) error {
			n, err := toInt(v)
			if err != nil {
				return err
			}
			if n < 0 || n > MaxRCounter {
				return fmt.Errorf("%d not in [0, %d]", n, MaxRCounter)
			}
			c.ReferenceDivider = int(n)
			return nil
		},
		get: func(c Config) any { return int64(c.ReferenceDivider) },
	},
	"channel_spacing": {
		set: func(c *Config, v any) error {
			f, err := toFloat(v)
			if err != nil {
				return err
			}
			switch {
			case f == 0:
				c.Quantization = BestApproximation()
			case f > 0 && !math.IsInf(f, 0):
				c.Quantization = ChannelSpacing(f)
			default:
				return fmt.Errorf("%g must be >= 0", f)
			}
			return nil
		},
		get: func(c Config) any {
			if c.Quantization.Mode == QuantizeChannelSpacing {
				return c.Quantization.Spacing
			}
			return 0.0
		},
	},
	"phase_detector_polarity_positive": boolSetting(func(c *Config) *bool { return &c.PhaseDetectorPositive }),
	"lock_detect_precision_6ns":        boolSetting(func(c *Config) *bool { return &c.LockDetectPrecision6ns }),
	"lock_detect_integer_n_mode":       boolSetting(func(c *Config) *bool { return &c.LockDetectIntegerN }),
	"charge_pump_current_microamps": {
		set: func(c *Config, v any) error {
			n, err := toInt(v)
			if err != nil {
				return err
			}
			if n < 312 || n > 5000 {
				return fmt.Errorf("%d not in [312, 5000]", n)
			}
			c.ChargePumpCurrent = int(n)
			return nil
		},
		get: func(c Config) any { return int64(c.ChargePumpCurrent) },
	},
	"mux_out_select":                 uintSetting(func(c *Config) *uint8 { return &c.MuxOut }, uint64(FieldMuxOut.Max())),
	"low_spur_mode_enabled":          boolSetting(func(c *Config) *bool { return &c.LowSpurMode }),
	"cycle_slip_reduction_enabled":   boolSetting(func(c *Config) *bool { return &c.CycleSlipReduction }),
	"charge_cancellation_enabled":    boolSetting(func(c *Config) *bool { return &c.ChargeCancellation }),
	"anti_backlash_3ns_enabled":      boolSetting(func(c *Config) *bool { return &c.AntiBacklash3ns }),
	"band_select_clock_mode_high":    boolSetting(func(c *Config) *bool { return &c.BandSelectClockHigh }),
	"clock_divider_value":            uintSetting(func(c *Config) *uint16 { return &c.ClockDivider }, uint64(FieldClockDivider.Max())),
	"clock_divider_mode":             uintSetting(func(c *Config) *uint8 { return &c.ClockDividerMode }, uint64(FieldClockDividerMode.Max())),
	"aux_output_enabled":             boolSetting(func(c *Config) *bool { return &c.AuxOutput }),
	"aux_output_fundamental_enabled": boolSetting(func(c *Config) *bool { return &c.AuxOutputFundamental }),
	"mute_till_lock_enabled":         boolSetting(func(c *Config) *bool { return &c.MuteTillLock }),
	"output_power_level":             uintSetting(func(c *Config) *uint8 { return &c.OutputPower }, uint64(FieldOutputPower.Max())),
	"aux_output_power_level":         uintSetting(func(c *Config) *uint8 { return &c.AuxOutputPower }, uint64(FieldAuxOutputPower.Max())),
}

// Names returns every setting name accepted by Set, sorted.
func Names() []string {
	names := make([]string, 0, len(settings))
	for name := range settings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Set assigns one setting by name. Unknown names and values of the wrong type
// or range are rejected and leave c unchanged.
func (c *Config) Set(name string, value any) error {
	name = strings.TrimSpace(name)
	s, ok := settings[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSetting, name)
	}
	if err := s.set(c, value); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidSetting, name, err)
	}
	return nil
}

// Get returns one setting by name.
func (c Config) Get(name string) (any, error) {
	s, ok := settings[strings.TrimSpace(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSetting, name)
	}
	return s.get(c), nil
}

// Values returns every setting keyed by name.
func (c Config) Values() map[string]any {
	out := make(map[string]any, len(settings))
	for name, s := range settings {
		out[name] = s.get(c)
	}
	return out
}

func toBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return false, fmt.Errorf("%q is not a bool", x)
		}
		return b, nil
	}
	n, err := toInt(v)
	if err != nil || (n != 0 && n != 1) {
		return false, fmt.Errorf("%v is not a bool", v)
	}
	return n == 1, nil
}

func toInt(v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", x)
		}
		return int64(x), nil
	case float64:
		if x != math.Trunc(x) || math.Abs(x) > 1<<53 {
			return 0, fmt.Errorf("%g is not an integer", x)
		}
		return int64(x), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 0, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer", x)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) {
			return 0, fmt.Errorf("NaN")
		}
		return x, nil
	case float32:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil || math.IsNaN(f) {
			return 0, fmt.Errorf("%q is not a number", x)
		}
		return f, nil
	}
	n, err := toInt(v)
	if err != nil {
		return 0, err
	}
	return float64(n), nil
}
