package units

import (
	"math"
	"testing"

	"github.com/AllenInstitute/sweep-qc-tool/internal/qc"
)

func TestConvert(t *testing.T) {
	tests := []struct {
		name     string
		sample   float64
		units    string
		expected float64
	}{
		{"volts to millivolts", -0.0705, Millivolt, -70.5},
		{"amps to picoamps", 5e-11, Picoamp, 50.0},
		{"amps to nanoamps", 5e-11, Nanoamp, 0.05},
		{"volts passthrough", -0.0705, Volts, -0.0705},
		{"amps passthrough", 5e-11, Amps, 5e-11},
		{"unknown units passthrough", 1.5, "unknown", 1.5},
		{"zero sample", 0.0, Millivolt, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Convert(tt.sample, tt.units)
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("Convert(%g, %s) = %g, want %g", tt.sample, tt.units, result, tt.expected)
			}
		})
	}
}

func TestConvertAllDoesNotMutate(t *testing.T) {
	in := []float64{-0.070, -0.065}
	out := ConvertAll(in, Millivolt)
	if in[0] != -0.070 {
		t.Errorf("ConvertAll mutated input: %v", in)
	}
	if out[0] != -70.0 || out[1] != -65.0 {
		t.Errorf("ConvertAll = %v, want [-70 -65]", out)
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		expected bool
	}{
		{"valid mv", Millivolt, true},
		{"valid pa", Picoamp, true},
		{"valid na", Nanoamp, true},
		{"valid v", Volts, true},
		{"valid a", Amps, true},
		{"invalid unit", "invalid", false},
		{"empty string", "", false},
		{"case sensitive", "MV", false},
		{"case sensitive", "Pa", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValid(tt.unit)
			if result != tt.expected {
				t.Errorf("IsValid(%s) = %v, want %v", tt.unit, result, tt.expected)
			}
		})
	}
}

func TestGetValidUnitsString(t *testing.T) {
	expected := "v, mv, a, pa, na"
	result := GetValidUnitsString()
	if result != expected {
		t.Errorf("GetValidUnitsString() = %s, want %s", result, expected)
	}
}

func TestClampModeUnits(t *testing.T) {
	// Current clamp injects current and records voltage; voltage clamp is the
	// mirror image.
	if got := ResponseUnits(qc.CurrentClamp); got != Millivolt {
		t.Errorf("ResponseUnits(CurrentClamp) = %s, want %s", got, Millivolt)
	}
	if got := StimulusUnits(qc.CurrentClamp); got != Picoamp {
		t.Errorf("StimulusUnits(CurrentClamp) = %s, want %s", got, Picoamp)
	}
	if got := ResponseUnits(qc.VoltageClamp); got != Picoamp {
		t.Errorf("ResponseUnits(VoltageClamp) = %s, want %s", got, Picoamp)
	}
	if got := StimulusUnits(qc.VoltageClamp); got != Millivolt {
		t.Errorf("StimulusUnits(VoltageClamp) = %s, want %s", got, Millivolt)
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		unit     string
		expected string
	}{
		{Millivolt, "mV"},
		{Picoamp, "pA"},
		{Nanoamp, "nA"},
		{Volts, "V"},
		{Amps, "A"},
		{"weird", "weird"},
	}
	for _, tt := range tests {
		if got := Label(tt.unit); got != tt.expected {
			t.Errorf("Label(%s) = %s, want %s", tt.unit, got, tt.expected)
		}
	}
}

func TestUnitKinds(t *testing.T) {
	tests := []struct {
		unit    string
		voltage bool
		current bool
	}{
		{Volts, true, false},
		{Millivolt, true, false},
		{Amps, false, true},
		{Picoamp, false, true},
		{Nanoamp, false, true},
		{"weird", false, false},
	}
	for _, tt := range tests {
		if got := IsVoltage(tt.unit); got != tt.voltage {
			t.Errorf("IsVoltage(%s) = %v, want %v", tt.unit, got, tt.voltage)
		}
		if got := IsCurrent(tt.unit); got != tt.current {
			t.Errorf("IsCurrent(%s) = %v, want %v", tt.unit, got, tt.current)
		}
	}
}
