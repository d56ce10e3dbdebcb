package instruments

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"periph.io/x/conn/v3/physic"
)

// ParseFrequency accepts a plain number of Hz ("2.4e9") or an SI frequency
// string ("2.4GHz", "100MHz").
func ParseFrequency(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty frequency", ErrInvalidArgument)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("%w: frequency %q", ErrInvalidArgument, s)
		}
		return f, nil
	}
	var f physic.Frequency
	if err := f.Set(s); err != nil {
		return 0, fmt.Errorf("%w: frequency %q: %v", ErrInvalidArgument, s, err)
	}
	return float64(f) / float64(physic.Hertz), nil
}

// FormatFrequency renders hz with its SI prefix, rounded to the µHz.
func FormatFrequency(hz float64) string {
	return physic.Frequency(math.Round(hz * float64(physic.Hertz))).String()
}

// IntArg parses a required integer argument.
func IntArg(args map[string]string, key string) (int, error) {
	raw, ok := args[key]
	if !ok || strings.TrimSpace(raw) == "" {
		return 0, fmt.Errorf("%w: missing %s", ErrInvalidArgument, key)
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidArgument, key, raw)
	}
	return n, nil
}
