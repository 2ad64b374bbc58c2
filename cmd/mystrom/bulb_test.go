package main

import (
	"testing"

	"github.com/dsymonds/mystrom/mystrom"
)

func TestParseHSV(t *testing.T) {
	tests := []struct {
		in   string
		want mystrom.HSV
		ok   bool
	}{
		{"0;100;100", mystrom.HSV{Hue: 0, Saturation: 100, Value: 100}, true},
		{"240, 50, 7", mystrom.HSV{Hue: 240, Saturation: 50, Value: 7}, true},
		{"1;2", mystrom.HSV{}, false},
		{"a;b;c", mystrom.HSV{}, false},
	}
	for _, tc := range tests {
		got, err := parseHSV(tc.in)
		if (err == nil) != tc.ok || got != tc.want {
			t.Errorf("parseHSV(%q) = %+v, %v", tc.in, got, err)
		}
	}
}
