package ident

import (
	"errors"
	"testing"
)

func TestParseHex(t *testing.T) {
	tests := []struct {
		in      string
		want    [3]uint8
		wantErr bool
	}{
		{"#ff8000", [3]uint8{255, 128, 0}, false},
		{"00ff10", [3]uint8{0, 255, 16}, false},
		{"#f80", [3]uint8{255, 136, 0}, false},
		{" #ABCDEF ", [3]uint8{0xab, 0xcd, 0xef}, false},
		{"#12345", [3]uint8{}, true},
		{"#gg0000", [3]uint8{}, true},
		{"", [3]uint8{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHex(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrBadHex) {
					t.Fatalf("ParseHex(%q) error = %v, want ErrBadHex", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseHex(%q) error = %v", tt.in, err)
			}
			if got.Bytes() != tt.want {
				t.Errorf("ParseHex(%q) = %v, want %v", tt.in, got.Bytes(), tt.want)
			}
		})
	}
}

func TestHexRoundTrip(t *testing.T) {
	for _, s := range []string{"#000000", "#ffffff", "#1a2b3c"} {
		c, err := ParseHex(s)
		if err != nil {
			t.Fatal(err)
		}
		if got := c.Hex(); got != s {
			t.Errorf("Hex() = %q, want %q", got, s)
		}
	}
}
