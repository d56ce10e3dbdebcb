package adf4350

import "errors"

var (
	ErrFrequencyOutOfRange         = errors.New("adf4350: output frequency out of range")
	ErrReferenceDividerOutOfRange  = errors.New("adf4350: reference divider out of range")
	ErrNDividerOutOfRange          = errors.New("adf4350: N divider out of range")
	ErrModulusOutOfRange           = errors.New("adf4350: modulus out of range")
	ErrIntegerModeConflict         = errors.New("adf4350: fractional N with integer-N lock detect")
	ErrBandSelectDividerOutOfRange = errors.New("adf4350: band select clock divider out of range")

	ErrUnknownSetting = errors.New("adf4350: unknown setting")
	ErrInvalidSetting = errors.New("adf4350: invalid setting")
	ErrFieldOverflow  = errors.New("adf4350: value wider than field")
	ErrMalformedImage = errors.New("adf4350: malformed register image")
)
