// Package units provides shared constants and conversion for display units.
package units

import "github.com/AllenInstitute/sweep-qc-tool/internal/qc"

// Unit constants. Recordings store samples in base SI units (volts, amps);
// the review surfaces display millivolts and picoamps.
const (
	Volts     = "v"
	Millivolt = "mv"
	Amps      = "a"
	Picoamp   = "pa"
	Nanoamp   = "na"
)

// ValidUnits contains all valid display unit values
var ValidUnits = []string{Volts, Millivolt, Amps, Picoamp, Nanoamp}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "v, mv, a, pa, na"
}

// IsVoltage reports whether the unit measures voltage.
func IsVoltage(unit string) bool {
	return unit == Volts || unit == Millivolt
}

// IsCurrent reports whether the unit measures current.
func IsCurrent(unit string) bool {
	return unit == Amps || unit == Picoamp || unit == Nanoamp
}

// Convert converts a sample from base SI units to the target display units
func Convert(sample float64, targetUnits string) float64 {
	switch targetUnits {
	case Millivolt:
		return sample * 1e3
	case Picoamp:
		return sample * 1e12
	case Nanoamp:
		return sample * 1e9
	case Volts, Amps:
		return sample
	default:
		return sample
	}
}

// ConvertAll converts a slice of samples without mutating the input.
func ConvertAll(samples []float64, targetUnits string) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = Convert(s, targetUnits)
	}
	return out
}

// ResponseUnits returns the display units of the recorded response for a
// clamp mode: current clamp records membrane voltage, voltage clamp records
// membrane current.
func ResponseUnits(mode qc.ClampMode) string {
	if mode == qc.VoltageClamp {
		return Picoamp
	}
	return Millivolt
}

// StimulusUnits returns the display units of the applied stimulus for a
// clamp mode.
func StimulusUnits(mode qc.ClampMode) string {
	if mode == qc.VoltageClamp {
		return Millivolt
	}
	return Picoamp
}

// Label returns the axis label for a display unit.
func Label(unit string) string {
	switch unit {
	case Millivolt:
		return "mV"
	case Picoamp:
		return "pA"
	case Nanoamp:
		return "nA"
	case Volts:
		return "V"
	case Amps:
		return "A"
	default:
		return unit
	}
}
