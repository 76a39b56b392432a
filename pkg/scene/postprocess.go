package scene

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Faultbox/resmesh/pkg/math"
	"github.com/Faultbox/resmesh/pkg/resmodel"
)

// PostProcess applies the generation and cleanup steps selected in opts.
func PostProcess(s *Scene, opts Options) {
	for i := range s.Meshes {
		m := &s.Meshes[i]
		if opts.GenerateNormals && !m.HasNormals() {
			GenerateSmoothNormals(m)
		}
		if opts.GenerateTangents && !m.HasTangents() && m.HasNormals() && m.HasTexCoords(0) {
			GenerateTangents(m)
		}
	}
	if opts.MergeMaterials {
		MergeMaterials(s)
	}
}

// GenerateSmoothNormals sets every vertex normal to the normalized sum of
// the face normals of all triangles touching the same position. Sums are
// weighted by triangle area. Non-triangle faces are ignored.
func GenerateSmoothNormals(m *Mesh) {
	sums := make(map[[3]float32]math.Vec3, len(m.Positions))
	for _, f := range m.Faces {
		if len(f) != 3 || !inRange(f, len(m.Positions)) {
			continue
		}
		p0 := math.V3(m.Positions[f[0]])
		p1 := math.V3(m.Positions[f[1]])
		p2 := math.V3(m.Positions[f[2]])
		n := p1.Sub(p0).Cross(p2.Sub(p0))
		for _, v := range f {
			key := m.Positions[v]
			sums[key] = sums[key].Add(n)
		}
	}

	m.Normals = make([][3]float32, len(m.Positions))
	for i, p := range m.Positions {
		n := sums[p].Normalize()
		if n == (math.Vec3{}) {
			n = math.Vec3{Z: 1}
		}
		m.Normals[i] = n.Array()
	}
}

// GenerateTangents computes per-vertex tangents from texcoord channel 0 and
// orthogonalizes them against the normals. Vertices whose texture mapping is
// degenerate get the tangent of the normal's orthonormal basis.
func GenerateTangents(m *Mesh) {
	n := len(m.Positions)
	acc := make([]math.Vec3, n)
	bacc := make([]math.Vec3, n)
	uv := m.TexCoords[0]

	for _, f := range m.Faces {
		if len(f) != 3 || !inRange(f, n) {
			continue
		}
		p0 := math.V3(m.Positions[f[0]])
		e1 := math.V3(m.Positions[f[1]]).Sub(p0)
		e2 := math.V3(m.Positions[f[2]]).Sub(p0)

		du1 := uv[f[1]][0] - uv[f[0]][0]
		dv1 := uv[f[1]][1] - uv[f[0]][1]
		du2 := uv[f[2]][0] - uv[f[0]][0]
		dv2 := uv[f[2]][1] - uv[f[0]][1]

		det := du1*dv2 - du2*dv1
		if det == 0 {
			continue
		}
		r := 1 / det
		t := e1.Scale(dv2 * r).Sub(e2.Scale(dv1 * r))
		b := e2.Scale(du1 * r).Sub(e1.Scale(du2 * r))
		for _, v := range f {
			acc[v] = acc[v].Add(t)
			bacc[v] = bacc[v].Add(b)
		}
	}

	m.Tangents = make([][3]float32, n)
	m.TangentSigns = make([]float32, n)
	for i := range acc {
		normal := math.V3(m.Normals[i])
		t := acc[i].Sub(normal.Scale(normal.Dot(acc[i]))).Normalize()
		if t == (math.Vec3{}) {
			t, _ = math.OrthonormalBasis(normal.Normalize())
		}
		m.Tangents[i] = t.Array()
		m.TangentSigns[i] = 1
		if normal.Cross(t).Dot(bacc[i]) < 0 {
			m.TangentSigns[i] = -1
		}
	}
}

// MergeMaterials folds materials with the same name and texture bindings
// into the first occurrence and rewrites mesh material indices.
func MergeMaterials(s *Scene) {
	first := make(map[string]int, len(s.Materials))
	remap := make([]int, len(s.Materials))
	kept := s.Materials[:0:0]

	for i := range s.Materials {
		key := materialKey(&s.Materials[i])
		if j, ok := first[key]; ok {
			remap[i] = j
			continue
		}
		first[key] = len(kept)
		remap[i] = len(kept)
		kept = append(kept, s.Materials[i])
	}

	for i := range s.Meshes {
		if idx := s.Meshes[i].MaterialIndex; idx >= 0 && idx < len(remap) {
			s.Meshes[i].MaterialIndex = remap[idx]
		}
	}
	s.Materials = kept
}

func materialKey(m *Material) string {
	usages := make([]resmodel.TextureUsage, 0, len(m.Textures))
	for u := range m.Textures {
		usages = append(usages, u)
	}
	sort.Slice(usages, func(i, j int) bool { return usages[i] < usages[j] })

	var sb strings.Builder
	fmt.Fprintf(&sb, "%q|%v|%v", m.Name, m.Diffuse, m.Opacity)
	for _, u := range usages {
		fmt.Fprintf(&sb, "|%d:%q", u, m.Textures[u])
	}
	return sb.String()
}

func inRange(face []uint32, n int) bool {
	for _, v := range face {
		if int(v) >= n {
			return false
		}
	}
	return true
}
