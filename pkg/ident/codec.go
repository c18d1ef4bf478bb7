package ident

import "math"

// Scramble constants. Multiplier is odd, so it is a unit of Z/2^24 and
// inverseMultiplier undoes it.
const (
	xorMask           = 0x55AA33
	multiplier        = 0xC297D7
	inverseMultiplier = 0xDB4BE7
)

// RGB is a normalized color triple, each channel in [0, 1].
type RGB [3]float32

// Bytes converts the normalized triple to 8-bit channels, rounding to the
// nearest step and clamping.
func (c RGB) Bytes() [3]uint8 {
	return [3]uint8{toByte(c[0]), toByte(c[1]), toByte(c[2])}
}

// RGBFromBytes builds a normalized triple from 8-bit channels.
func RGBFromBytes(b [3]uint8) RGB {
	return RGB{float32(b[0]) / 255, float32(b[1]) / 255, float32(b[2]) / 255}
}

func toByte(v float32) uint8 {
	f := math.Round(float64(v) * 255)
	if f <= 0 || math.IsNaN(f) {
		return 0
	}
	if f >= 255 {
		return 255
	}
	return uint8(f)
}

func scramble(x uint32) uint32 {
	return ((x ^ xorMask) * multiplier) & mask24
}

func unscramble(x uint32) uint32 {
	return ((x * inverseMultiplier) & mask24) ^ xorMask
}

func split(x uint32) [3]uint8 {
	return [3]uint8{uint8(x), uint8(x >> 8), uint8(x >> 16)}
}

func join(b [3]uint8) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

// EncodeBytes maps id to its scrambled 8-bit channels (R = low byte).
func EncodeBytes(id ID) [3]uint8 {
	return split(scramble(uint32(id)))
}

// DecodeBytes is the inverse of EncodeBytes. Every input decodes to some
// id; callers must check that the id is live.
func DecodeBytes(b [3]uint8) ID {
	return ID(unscramble(join(b)))
}

// Encode maps id to a normalized color. Adjacent ids get unrelated colors.
func Encode(id ID) RGB {
	return RGBFromBytes(EncodeBytes(id))
}

// Decode maps a sampled color back to an id. Channels are rounded to the
// nearest 8-bit step so small readback error does not shift the result.
func Decode(c RGB) ID {
	return DecodeBytes(c.Bytes())
}

// Plain maps id to a color without scrambling. Sequential ids get similar
// colors, which is only useful for debug tinting.
func Plain(id ID) RGB {
	return RGBFromBytes(split(uint32(id)))
}
