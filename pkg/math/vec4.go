package math

// Vec4 is a 4D vector. Bone weights and culling spheres use it.
type Vec4 struct {
	X, Y, Z, W float32
}

// At returns component i (0..3).
func (v Vec4) At(i int) float32 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	case 2:
		return v.Z
	default:
		return v.W
	}
}

// Set sets component i (0..3).
func (v *Vec4) Set(i int, f float32) {
	switch i {
	case 0:
		v.X = f
	case 1:
		v.Y = f
	case 2:
		v.Z = f
	default:
		v.W = f
	}
}

// Clamp01 clamps x to [0, 1].
func Clamp01(x float32) float32 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
