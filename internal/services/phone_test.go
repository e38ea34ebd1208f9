package services

import "testing"

func TestNormPhone(t *testing.T) {
	cases := map[string]string{
		"5551234567":         "5551234567",
		"0555 123 45 67":     "5551234567",
		"+90 (555) 123-4567": "5551234567",
		"0090 555 123 4567":  "5551234567",
		"905551234567":       "5551234567",
		"555.123.45.67":      "5551234567",
		"":                   "",
		"call me":            "",
		"555-12":             "",
		"05551234567#":       "",
		"0123456789":         "",
	}
	for in, want := range cases {
		if got := NormPhone(in); got != want {
			t.Errorf("NormPhone(%q) = %q, want %q", in, got, want)
		}
	}
}
