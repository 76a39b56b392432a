package scene

import "github.com/go-gl/mathgl/mgl32"

// Transform moves the mesh by mat. Normals and tangents follow the inverse
// transpose of mat and are renormalized. A mirroring transform reverses face
// winding and flips the bitangent handedness so front faces stay front.
func (m *Mesh) Transform(mat mgl32.Mat4) {
	for i, p := range m.Positions {
		m.Positions[i] = [3]float32(mgl32.TransformCoordinate(mgl32.Vec3(p), mat))
	}

	normalMat := mat.Mat3().Inv().Transpose()
	for i, n := range m.Normals {
		m.Normals[i] = [3]float32(safeNormalize(normalMat.Mul3x1(mgl32.Vec3(n))))
	}
	for i, t := range m.Tangents {
		m.Tangents[i] = [3]float32(safeNormalize(mat.Mat3().Mul3x1(mgl32.Vec3(t))))
	}

	if mat.Mat3().Det() >= 0 {
		return
	}
	for _, f := range m.Faces {
		for a, b := 0, len(f)-1; a < b; a, b = a+1, b-1 {
			f[a], f[b] = f[b], f[a]
		}
	}
	if m.HasTangents() {
		if m.TangentSigns == nil {
			m.TangentSigns = make([]float32, len(m.Tangents))
			for i := range m.TangentSigns {
				m.TangentSigns[i] = 1
			}
		}
		for i := range m.TangentSigns {
			m.TangentSigns[i] = -m.TangentSigns[i]
		}
	}
}

func safeNormalize(v mgl32.Vec3) mgl32.Vec3 {
	if v.Len() < 1e-12 {
		return v
	}
	return v.Normalize()
}
