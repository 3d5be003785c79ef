package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInt(t *testing.T) {
	tests := []struct {
		in   string
		want *int64
	}{
		{"15 267 zł/m²", i64(15267)},
		{"15 267 zł/m²", i64(15267)},
		{"1 200 000 zł", i64(1200000)},
		{"900000", i64(900000)},
		{"floor_3", i64(3)},
		{"-5 °C", i64(-5)},
		{"2025", i64(2025)},
		{"100 m²", i64(100)},
		{"15 267zł", i64(15267)},
		{"12 3456", i64(12)},
		{"3 2015", i64(3)},
		{"rok 1 2015", i64(1)},
		{"", nil},
		{"brak", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseInt(tt.in)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestParseFloat(t *testing.T) {
	tests := []struct {
		in   string
		want *float64
	}{
		{"68,71 m²", f64(68.71)},
		{"68.71", f64(68.71)},
		{"60.0", f64(60)},
		{"1 234,5 m²", f64(1234.5)},
		{" 42 m²", f64(42)},
		{"", nil},
		{"n/a", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseFloat(tt.in)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func i64(v int64) *int64     { return &v }
func f64(v float64) *float64 { return &v }
