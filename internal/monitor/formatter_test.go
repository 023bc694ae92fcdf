package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatCount(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want string
	}{
		{"zero", 0, "0"},
		{"small", 950, "950"},
		{"thousands", 1234, "1.2k"},
		{"millions", 3_400_000, "3.4M"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatCount(tt.in))
		})
	}
}

func TestFormatRate(t *testing.T) {
	assert.Equal(t, "2.5 /min", FormatRate(2.5))
	assert.Equal(t, "0.0 /min", FormatRate(0))
}

func TestFormatConfidence(t *testing.T) {
	assert.Equal(t, "65%", FormatConfidence(0.65))
	assert.Equal(t, "0%", FormatConfidence(0))
	assert.Equal(t, "100%", FormatConfidence(1))
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name    string
		seconds int64
		want    string
	}{
		{"minutes only", 300, "5m"},
		{"hours and minutes", 3900, "1h 5m"},
		{"zero", 0, "0m"},
		{"rounds down", 119, "1m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDuration(tt.seconds))
		})
	}
}
