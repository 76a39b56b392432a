// Package meshbuild turns imported scenes into converted models: it encodes
// vertex attributes, caps bone influences, deduplicates and orders vertices,
// packs meshlets and catalogs materials.
//
// Encodings are format version 1: texture coordinates are half-float pairs
// and the normal cone stores sqrt(1-cutoff²).
package meshbuild

import (
	"github.com/chewxy/math32"
	"github.com/x448/float16"

	"github.com/Faultbox/resmesh/pkg/math"
)

// FormatVersion identifies the attribute encodings written by this package.
const FormatVersion = 1

// Tangent space word layout.
const (
	octBits   = 10
	angleBits = 11
	octMax    = 1<<octBits - 1
	angleMax  = 1<<angleBits - 1

	angleShift      = 2 * octBits
	handednessShift = 31
)

// EncodePosition converts a position to its stored form.
func EncodePosition(p [3]float32) math.Vec3 {
	return math.V3(p)
}

// EncodeTexCoord packs uv as two IEEE half floats, u in the low 16 bits.
func EncodeTexCoord(uv [2]float32) uint32 {
	u := float16.Fromfloat32(uv[0]).Bits()
	v := float16.Fromfloat32(uv[1]).Bits()
	return uint32(u) | uint32(v)<<16
}

// DecodeTexCoord reverses EncodeTexCoord.
func DecodeTexCoord(packed uint32) [2]float32 {
	return [2]float32{
		float16.Frombits(uint16(packed)).Float32(),
		float16.Frombits(uint16(packed >> 16)).Float32(),
	}
}

// EncodeColor packs an RGBA color as unorm8x4, R in the low byte.
// Components are clamped to [0, 1].
func EncodeColor(c [4]float32) uint32 {
	var packed uint32
	for i := 0; i < 4; i++ {
		packed |= unorm(c[i], 8) << (8 * i)
	}
	return packed
}

// DecodeColor reverses EncodeColor.
func DecodeColor(packed uint32) [4]float32 {
	var c [4]float32
	for i := range c {
		c[i] = float32((packed>>(8*i))&0xff) / 255
	}
	return c
}

// EncodeTangentSpace packs a normal, a tangent and the bitangent handedness
// into one word: the octahedral normal in bits 0-19, the tangent angle
// around the normal in bits 20-30 and the handedness in bit 31 (set when
// sign is negative).
//
// A zero tangent, or one parallel to the normal, is replaced by the tangent
// of the normal's orthonormal basis. A zero normal encodes as +Z.
func EncodeTangentSpace(normal, tangent math.Vec3, sign float32) uint32 {
	n := normal.Normalize()
	if n == (math.Vec3{}) {
		n = math.Vec3{Z: 1}
	}

	x, y := octEncode(n)
	qx, qy := unorm(x, octBits), unorm(y, octBits)

	// the angle is measured in the basis of the normal a reader decodes
	t0, b0 := math.OrthonormalBasis(octDecode(float32(qx)/octMax, float32(qy)/octMax))
	t := tangent.Sub(n.Scale(n.Dot(tangent)))
	if t.LengthSq() < 1e-12 {
		t = t0
	}
	angle := math32.Atan2(t.Dot(b0), t.Dot(t0))

	packed := qx | qy<<octBits | unorm(angle/(2*math32.Pi)+0.5, angleBits)<<angleShift
	if sign < 0 {
		packed |= 1 << handednessShift
	}
	return packed
}

// DecodeTangentSpace reverses EncodeTangentSpace up to quantization error.
func DecodeTangentSpace(packed uint32) (normal, tangent math.Vec3, sign float32) {
	x := float32(packed&octMax) / octMax
	y := float32((packed>>octBits)&octMax) / octMax
	normal = octDecode(x, y)

	angle := (float32((packed>>angleShift)&angleMax)/angleMax - 0.5) * 2 * math32.Pi
	t0, b0 := math.OrthonormalBasis(normal)
	tangent = t0.Scale(math32.Cos(angle)).Add(b0.Scale(math32.Sin(angle)))

	sign = 1
	if packed>>handednessShift != 0 {
		sign = -1
	}
	return normal, tangent, sign
}

// EncodeCone packs a meshlet normal cone as unorm8x4: the axis mapped from
// [-1, 1] and sqrt(1-cutoff²) mapped the same way.
func EncodeCone(axis [3]float32, cutoff float32) uint32 {
	w := math32.Sqrt(math32.Max(0, 1-cutoff*cutoff))
	return EncodeColor([4]float32{
		axis[0]*0.5 + 0.5,
		axis[1]*0.5 + 0.5,
		axis[2]*0.5 + 0.5,
		w*0.5 + 0.5,
	})
}

// octEncode maps a unit vector to [0, 1]² with the octahedral projection.
func octEncode(n math.Vec3) (float32, float32) {
	l1 := math32.Abs(n.X) + math32.Abs(n.Y) + math32.Abs(n.Z)
	x, y := n.X/l1, n.Y/l1
	if n.Z < 0 {
		x, y = (1-math32.Abs(y))*signNotZero(x), (1-math32.Abs(x))*signNotZero(y)
	}
	return x*0.5 + 0.5, y*0.5 + 0.5
}

func octDecode(u, v float32) math.Vec3 {
	x, y := u*2-1, v*2-1
	z := 1 - math32.Abs(x) - math32.Abs(y)
	if z < 0 {
		x, y = (1-math32.Abs(y))*signNotZero(x), (1-math32.Abs(x))*signNotZero(y)
	}
	return math.Vec3{X: x, Y: y, Z: z}.Normalize()
}

func signNotZero(v float32) float32 {
	if v < 0 {
		return -1
	}
	return 1
}

// unorm quantizes v in [0, 1] to bits bits, rounding to nearest.
func unorm(v float32, bits uint) uint32 {
	scale := float32(uint32(1)<<bits - 1)
	return uint32(math32.Floor(math.Clamp01(v)*scale + 0.5))
}
