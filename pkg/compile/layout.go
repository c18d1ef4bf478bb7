package compile

import (
	"encoding/binary"
	"math"

	"github.com/chazu/csgbox/pkg/ident"
)

// Buffer layout, little-endian, every block a multiple of 16 bytes so it
// can be bound as a std430 storage buffer:
//
//	header    op count u32, root count u32, 2 pad words
//	op        kind u32, primitive u32, left u32, right u32,
//	          blend f32, color r g b f32
//	roots     u32 per root, zero-padded to 16 bytes
const (
	HeaderSize    = 16
	OpRecordSize  = 32
	PrimitiveSize = 48
)

// MarshalBinary packs the program into its GPU layout. Identical programs
// produce identical bytes.
func (p *Program) MarshalBinary() ([]byte, error) {
	size := HeaderSize + len(p.Ops)*OpRecordSize + align16(len(p.Roots)*4)
	buf := make([]byte, 0, size)

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(p.Ops)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(p.Roots)))
	buf = append(buf, make([]byte, 8)...)

	for _, op := range p.Ops {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(op.Kind))
		buf = binary.LittleEndian.AppendUint32(buf, op.Primitive)
		buf = binary.LittleEndian.AppendUint32(buf, op.Left)
		buf = binary.LittleEndian.AppendUint32(buf, op.Right)
		buf = appendFloat(buf, op.Blend)
		buf = appendRGB(buf, op.Color)
	}

	for _, r := range p.Roots {
		buf = binary.LittleEndian.AppendUint32(buf, r)
	}
	for len(buf) < size {
		buf = append(buf, 0)
	}
	return buf, nil
}

// PrimitiveRecord is the per-primitive data the shader reads, indexed by
// OpRecord.Primitive.
type PrimitiveRecord struct {
	Position [3]float32
	Rounding float32
	Scale    [3]float32
	Subtract bool
	Color    ident.RGB
	Selected bool
}

// PackPrimitives packs records in the given order, which must be the
// PrimitiveIndex order the program was compiled against.
func PackPrimitives(recs []PrimitiveRecord) []byte {
	buf := make([]byte, 0, len(recs)*PrimitiveSize)
	for _, r := range recs {
		buf = appendVec3(buf, r.Position)
		buf = appendFloat(buf, r.Rounding)
		buf = appendVec3(buf, r.Scale)
		buf = appendBool(buf, r.Subtract)
		buf = appendRGB(buf, r.Color)
		buf = appendBool(buf, r.Selected)
	}
	return buf
}

func align16(n int) int {
	return (n + 15) &^ 15
}

func appendFloat(buf []byte, f float32) []byte {
	return binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
}

func appendVec3(buf []byte, v [3]float32) []byte {
	for _, f := range v {
		buf = appendFloat(buf, f)
	}
	return buf
}

func appendRGB(buf []byte, c ident.RGB) []byte {
	return appendVec3(buf, [3]float32(c))
}

func appendBool(buf []byte, b bool) []byte {
	var v uint32
	if b {
		v = 1
	}
	return binary.LittleEndian.AppendUint32(buf, v)
}
