// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Labgear

package regloicc

import (
	"math"
	"strconv"
	"testing"
)

func TestEncodeType2(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		expected string
	}{
		{"microliter volume", 2.5e-3, "2500-3"},
		{"one milliliter", 1.0, "1000+0"},
		{"sub-milliliter rate", 0.5, "5000-1"},
		{"tens of milliliters", 12.0, "1200+1"},
		{"hundreds", 250.0, "2500+2"},
		{"rounds mantissa to three decimals", 1.23456, "1235+0"},
		{"small rate", 4.7e-2, "4700-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EncodeType2(tt.value)
			if got != tt.expected {
				t.Errorf("EncodeType2(%v) = %q, want %q", tt.value, got, tt.expected)
			}
		})
	}
}

// decodeType2 reverses the encoding for round-trip checks: the first four
// characters are the mantissa digits (d.ddd), the rest is the signed
// exponent.
func decodeType2(t *testing.T, s string) float64 {
	t.Helper()
	if len(s) < 6 {
		t.Fatalf("type-2 string too short: %q", s)
	}
	mantissa, err := strconv.ParseFloat(s[:1]+"."+s[1:4], 64)
	if err != nil {
		t.Fatalf("bad mantissa in %q: %v", s, err)
	}
	exp, err := strconv.Atoi(s[4:])
	if err != nil {
		t.Fatalf("bad exponent in %q: %v", s, err)
	}
	return mantissa * math.Pow(10, float64(exp))
}

func TestEncodeType2_RoundTrip(t *testing.T) {
	values := []float64{2.5e-3, 1.0, 0.125, 3.5, 47.5, 999.0, 1e-6}
	for _, v := range values {
		encoded := EncodeType2(v)
		decoded := decodeType2(t, encoded)
		// Three significant decimals survive the trip.
		if relErr := math.Abs(decoded-v) / v; relErr > 5e-4 {
			t.Errorf("round trip of %v via %q gave %v (relative error %g)", v, encoded, decoded, relErr)
		}
	}
}
