package exporter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected string
	}{
		{name: "zero value", input: 0.0, expected: "0"},
		{name: "negative zero", input: math.Copysign(0, -1), expected: "0"},
		{name: "integer", input: 123.0, expected: "123"},
		{name: "decimal", input: 12.5, expected: "12.5"},
		{name: "small decimal", input: 0.001234, expected: "0.001234"},
		{name: "undefined", input: math.NaN(), expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatFloat(tt.input))
		})
	}
}

func TestFormatReportFloat(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{100, "100.0"},
		{4, "4.0"},
		{0.6, "0.6"},
		{75.25, "75.25"},
		{0, "0.0"},
		{math.NaN(), ""},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatReportFloat(tt.input))
		})
	}
}

func TestFormatInt(t *testing.T) {
	assert.Equal(t, "1000", formatInt(1000))
	assert.Equal(t, "-3", formatInt(-3))
}
