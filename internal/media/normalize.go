package media

import (
	"math"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// NormalizeDuration converts a provider duration into whole seconds.
// Integers, unsigned integers, floats and numeric strings are accepted;
// negative values clamp to zero and fractions round half away from zero.
// Anything else, including NaN and infinities, yields nil.
func NormalizeDuration(v any) *int {
	f, ok := Number(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	if f < 0 {
		f = 0
	}
	if f > math.MaxInt32 {
		return nil
	}
	n := int(math.Round(f))
	return &n
}

// Number converts the loosely typed numeric shapes providers emit
// (signed, unsigned, float and numeric string) into a float64.
func Number(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// NormalizeMime returns the provider mime without parameters, or the
// sniffed type of data when the provider did not send one.
func NormalizeMime(provided string, data []byte) string {
	if m, _, _ := strings.Cut(provided, ";"); strings.TrimSpace(m) != "" {
		return strings.ToLower(strings.TrimSpace(m))
	}
	if len(data) == 0 {
		return ""
	}
	m, _, _ := strings.Cut(mimetype.Detect(data).String(), ";")
	return m
}
