package ident

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrBadHex is returned for malformed color strings.
var ErrBadHex = errors.New("ident: malformed hex color")

// ParseHex parses "#rrggbb" or "#rgb" (the leading # is optional).
func ParseHex(s string) (RGB, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return RGB{}, fmt.Errorf("%w: %q", ErrBadHex, s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("%w: %q", ErrBadHex, s)
	}
	return RGBFromBytes([3]uint8{uint8(v >> 16), uint8(v >> 8), uint8(v)}), nil
}

// Hex formats c as "#rrggbb".
func (c RGB) Hex() string {
	b := c.Bytes()
	return fmt.Sprintf("#%02x%02x%02x", b[0], b[1], b[2])
}
