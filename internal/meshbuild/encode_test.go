package meshbuild

import (
	"testing"

	"github.com/Faultbox/resmesh/pkg/math"
)

func TestEncodeTexCoord(t *testing.T) {
	tests := []struct {
		name string
		uv   [2]float32
		want uint32
	}{
		{"origin", [2]float32{0, 0}, 0},
		{"half and one", [2]float32{0.5, 1}, 0x3C003800},
		{"negative u", [2]float32{-2, 0.25}, 0x3400C000},
		{"largest half", [2]float32{65504, 0}, 0x7BFF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EncodeTexCoord(tt.uv)
			if got != tt.want {
				t.Errorf("EncodeTexCoord(%v) = %#08x, want %#08x", tt.uv, got, tt.want)
			}
			if back := DecodeTexCoord(got); back != tt.uv {
				t.Errorf("DecodeTexCoord = %v, want %v", back, tt.uv)
			}
		})
	}
}

func TestEncodeColor(t *testing.T) {
	tests := []struct {
		name  string
		color [4]float32
		want  uint32
	}{
		{"white", [4]float32{1, 1, 1, 1}, 0xFFFFFFFF},
		{"opaque red", [4]float32{1, 0, 0, 1}, 0xFF0000FF},
		{"rounding", [4]float32{0, 0.5, 1, 0}, 0x00FF8000},
		{"clamped", [4]float32{2, -1, 0, 1}, 0xFF0000FF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EncodeColor(tt.color); got != tt.want {
				t.Errorf("EncodeColor(%v) = %#08x, want %#08x", tt.color, got, tt.want)
			}
		})
	}

	c := DecodeColor(0xFF0000FF)
	if c != [4]float32{1, 0, 0, 1} {
		t.Errorf("DecodeColor = %v", c)
	}
}

func TestEncodeCone(t *testing.T) {
	// a flat cluster: every normal on the axis
	if got := EncodeCone([3]float32{0, 0, 1}, 0); got != 0xFFFF8080 {
		t.Errorf("flat cone = %#08x, want 0xffff8080", got)
	}
	// cone culling disabled
	if got := EncodeCone([3]float32{}, 1); got != 0x80808080 {
		t.Errorf("disabled cone = %#08x, want 0x80808080", got)
	}
}

func TestEncodeTangentSpace_RoundTrip(t *testing.T) {
	diag := math.Vec3{X: 1, Y: 1, Z: 1}.Normalize()
	diagTangent := math.Vec3{X: 1, Y: -1}.Normalize()

	tests := []struct {
		name    string
		normal  math.Vec3
		tangent math.Vec3
		sign    float32
	}{
		{"up", math.Vec3{Z: 1}, math.Vec3{X: 1}, 1},
		{"down", math.Vec3{Z: -1}, math.Vec3{Y: 1}, 1},
		{"right", math.Vec3{X: 1}, math.Vec3{Z: 1}, -1},
		{"back", math.Vec3{Y: -1}, math.Vec3{X: 1}, 1},
		{"diagonal", diag, diagTangent, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			packed := EncodeTangentSpace(tt.normal, tt.tangent, tt.sign)
			n, tan, sign := DecodeTangentSpace(packed)

			if d := n.Dot(tt.normal); d < 0.999 {
				t.Errorf("normal = %+v, want %+v (dot %f)", n, tt.normal, d)
			}
			if d := tan.Dot(tt.tangent); d < 0.999 {
				t.Errorf("tangent = %+v, want %+v (dot %f)", tan, tt.tangent, d)
			}
			if sign != tt.sign {
				t.Errorf("sign = %v, want %v", sign, tt.sign)
			}
		})
	}
}

func TestEncodeTangentSpace_SynthesizedTangent(t *testing.T) {
	normals := []math.Vec3{
		{Z: 1},
		{Z: -1},
		{X: 1},
		math.Vec3{X: -0.2, Y: 0.7, Z: -0.4}.Normalize(),
	}

	for _, normal := range normals {
		a := EncodeTangentSpace(normal, math.Vec3{}, 1)
		if b := EncodeTangentSpace(normal, math.Vec3{}, 1); a != b {
			t.Errorf("normal %+v: encoding not deterministic: %#08x != %#08x", normal, a, b)
		}
		// a tangent parallel to the normal is unusable as well
		if b := EncodeTangentSpace(normal, normal.Scale(3), 1); a != b {
			t.Errorf("normal %+v: parallel tangent encodes to %#08x, want %#08x", normal, b, a)
		}

		n, tan, _ := DecodeTangentSpace(a)
		if d := n.Dot(tan); d > 1e-3 || d < -1e-3 {
			t.Errorf("normal %+v: decoded tangent not perpendicular (dot %f)", normal, d)
		}
		if l := tan.Length(); l < 0.999 || l > 1.001 {
			t.Errorf("normal %+v: decoded tangent length %f", normal, l)
		}
	}
}

func TestEncodeTangentSpace_Bits(t *testing.T) {
	up := EncodeTangentSpace(math.Vec3{Z: 1}, math.Vec3{}, 1)
	if x, y := up&octMax, (up>>octBits)&octMax; x != 512 || y != 512 {
		t.Errorf("+Z octahedral bits = (%d, %d), want (512, 512)", x, y)
	}
	if up>>handednessShift != 0 {
		t.Error("handedness bit set for positive sign")
	}

	mirrored := EncodeTangentSpace(math.Vec3{Z: 1}, math.Vec3{}, -1)
	if mirrored != up|1<<handednessShift {
		t.Errorf("mirrored = %#08x, want %#08x", mirrored, up|1<<handednessShift)
	}

	if zero := EncodeTangentSpace(math.Vec3{}, math.Vec3{}, 1); zero != up {
		t.Errorf("zero normal = %#08x, want +Z encoding %#08x", zero, up)
	}
}
