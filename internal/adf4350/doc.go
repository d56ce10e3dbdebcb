// Package adf4350 plans register images for the ADF4350/ADF4351 fractional-N
// synthesizer.
//
// Ownership boundary:
// - control-field bit layout and encoding
// - synthesizer configuration and its validation
// - frequency planning (dividers, prescaler, R counter, fractional modulus)
//
// The package performs no I/O. Plan is a pure function of its inputs and may
// be called from any number of goroutines.
package adf4350
