// Package classify turns numeric test results into review flags by comparing
// them against a resolved reference range.
package classify

// Flag is the outcome of classifying one result value.
type Flag string

const (
	FlagLow    Flag = "Low"
	FlagHigh   Flag = "High"
	FlagNormal Flag = "Normal"

	// FlagUnclassified means no applicable reference range existed for the
	// result, or the result had no numeric value. It is deliberately distinct
	// from FlagNormal: "we could not check" must never read as "checked, fine".
	FlagUnclassified Flag = "Unclassified"
)

func (f Flag) String() string {
	return string(f)
}

// Classify compares value against the range [min, max].
func Classify(value, min, max float64) Flag {
	switch {
	case value < min:
		return FlagLow
	case value > max:
		return FlagHigh
	default:
		return FlagNormal
	}
}

// StatusFor maps a flag to the result status stored alongside it.
func StatusFor(f Flag) string {
	switch f {
	case FlagNormal:
		return "Normal"
	case FlagLow, FlagHigh:
		return "Abnormal"
	default:
		return "Unclassified"
	}
}
