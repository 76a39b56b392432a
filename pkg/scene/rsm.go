package scene

import (
	"fmt"
	"io/fs"

	"github.com/go-gl/mathgl/mgl32"
	xencoding "golang.org/x/text/encoding"

	"github.com/Faultbox/resmesh/pkg/encoding"
	"github.com/Faultbox/resmesh/pkg/formats"
	"github.com/Faultbox/resmesh/pkg/resmodel"
)

type rsmImporter struct{}

func (rsmImporter) Import(fsys fs.FS, name string, opts Options) (*Scene, error) {
	enc, err := charset(opts)
	if err != nil {
		return nil, err
	}

	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, err
	}
	rsm, err := formats.ParseRSM(data, enc)
	if err != nil {
		return nil, err
	}
	return SceneFromRSM(rsm), nil
}

// charset returns the decoder for names in legacy formats, EUC-KR unless
// opts names another.
func charset(opts Options) (xencoding.Encoding, error) {
	if opts.Charset == "" {
		return encoding.Lookup(encoding.EUCKR)
	}
	return encoding.Lookup(opts.Charset)
}

// SceneFromRSM flattens an RSM model in its bind pose. Every node yields one
// mesh per texture it uses; faces marked two-sided are emitted twice with
// opposite winding.
func SceneFromRSM(rsm *formats.RSM) *Scene {
	s := &Scene{}

	for _, tex := range rsm.Textures {
		m := Material{Name: tex, Diffuse: [4]float32{1, 1, 1, rsm.Alpha}, Opacity: rsm.Alpha}
		m.AddTexture(resmodel.UsageDiffuse, tex)
		s.Materials = append(s.Materials, m)
	}
	fallback := -1

	withColors := rsm.Version.AtLeast(1, 2)

	for ni := range rsm.Nodes {
		node := &rsm.Nodes[ni]
		transform := rsmNodeMatrix(node, rsm)

		// corner[k] is the face corner emitted at position k
		corner := [3]int{2, 1, 0}
		if transform.Det() < 0 {
			corner = [3]int{0, 1, 2}
		}

		meshes := make(map[int]*Mesh)
		var order []int

		for _, face := range node.Faces {
			if !validRSMFace(node, face) {
				continue
			}

			material := -1
			if int(face.TextureID) < len(node.TextureIDs) {
				if id := int(node.TextureIDs[face.TextureID]); id >= 0 && id < len(s.Materials) {
					material = id
				}
			}
			if material < 0 {
				if fallback < 0 {
					fallback = len(s.Materials)
					s.Materials = append(s.Materials, Material{Name: defaultMaterialName, Diffuse: [4]float32{1, 1, 1, 1}, Opacity: 1})
				}
				material = fallback
			}

			mesh, ok := meshes[material]
			if !ok {
				name := node.Name
				if len(node.TextureIDs) > 1 {
					name = fmt.Sprintf("%s_%d", node.Name, material)
				}
				mesh = &Mesh{Name: name, MaterialIndex: material}
				meshes[material] = mesh
				order = append(order, material)
			}

			// Y is flipped into a right-handed frame, which mirrors the
			// winding; corners are reversed to keep the front face unless a
			// negative scale mirrored it already.
			var pos [3]mgl32.Vec3
			for k := 0; k < 3; k++ {
				p := mgl32.TransformCoordinate(mgl32.Vec3(node.Vertices[face.VertexIDs[corner[k]]]), transform)
				p[1] = -p[1]
				pos[k] = p
			}
			normal := pos[1].Sub(pos[0]).Cross(pos[2].Sub(pos[0]))
			if normal.Len() < 1e-12 {
				continue
			}
			normal = normal.Normalize()

			var uv [3][2]float32
			var col [3][4]float32
			for k := 0; k < 3; k++ {
				tid := face.TexCoordIDs[corner[k]]
				col[k] = [4]float32{1, 1, 1, 1}
				if int(tid) < len(node.TexCoords) {
					tc := node.TexCoords[tid]
					uv[k] = [2]float32{tc.U, tc.V}
					col[k] = [4]float32{
						float32(tc.Color[2]) / 255,
						float32(tc.Color[1]) / 255,
						float32(tc.Color[0]) / 255,
						float32(tc.Color[3]) / 255,
					}
				}
			}

			appendRSMTriangle(mesh, pos, normal, uv, col, withColors, false)
			if face.TwoSide != 0 {
				appendRSMTriangle(mesh, pos, normal.Mul(-1), uv, col, withColors, true)
			}
		}

		for _, material := range order {
			if len(meshes[material].Faces) > 0 {
				s.Meshes = append(s.Meshes, *meshes[material])
			}
		}
	}

	return s
}

func validRSMFace(node *formats.RSMNode, face formats.RSMFace) bool {
	for _, vid := range face.VertexIDs {
		if int(vid) >= len(node.Vertices) {
			return false
		}
	}
	return true
}

func appendRSMTriangle(m *Mesh, pos [3]mgl32.Vec3, normal mgl32.Vec3, uv [3][2]float32, col [3][4]float32, withColors, reverse bool) {
	order := [3]int{0, 1, 2}
	if reverse {
		order = [3]int{2, 1, 0}
	}
	base := uint32(len(m.Positions))
	for _, k := range order {
		m.Positions = append(m.Positions, [3]float32(pos[k]))
		m.Normals = append(m.Normals, [3]float32(normal))
		m.TexCoords[0] = append(m.TexCoords[0], uv[k])
		if withColors {
			m.Colors = append(m.Colors, col[k])
		}
	}
	m.Faces = append(m.Faces, []uint32{base, base + 1, base + 2})
}

// rsmNodeMatrix returns the bind pose transform for the vertices of node:
// the inherited hierarchy followed by the node-only offset and 3x3 matrix.
func rsmNodeMatrix(node *formats.RSMNode, rsm *formats.RSM) mgl32.Mat4 {
	m := rsmHierarchyMatrix(node, rsm, make(map[string]bool))
	m = m.Mul4(mgl32.Translate3D(node.Offset[0], node.Offset[1], node.Offset[2]))
	return m.Mul4(mgl32.Mat3(node.Matrix).Mat4())
}

// rsmHierarchyMatrix returns parent * Position * Rotation * Scale, the part
// of a node transform children inherit.
func rsmHierarchyMatrix(node *formats.RSMNode, rsm *formats.RSM, visited map[string]bool) mgl32.Mat4 {
	if visited[node.Name] {
		return mgl32.Ident4()
	}
	visited[node.Name] = true

	local := mgl32.Translate3D(node.Position[0], node.Position[1], node.Position[2])

	switch {
	case len(node.RotKeys) > 0:
		q := node.RotKeys[0].Quaternion
		rot := mgl32.Quat{W: q[3], V: mgl32.Vec3{q[0], q[1], q[2]}}
		if rot.Len() > 1e-6 {
			local = local.Mul4(rot.Normalize().Mat4())
		}
	case node.RotAngle != 0:
		axis := mgl32.Vec3(node.RotAxis)
		if axis.Len() > 1e-6 {
			local = local.Mul4(mgl32.HomogRotate3D(node.RotAngle, axis.Normalize()))
		}
	}

	local = local.Mul4(mgl32.Scale3D(node.Scale[0], node.Scale[1], node.Scale[2]))

	if node.Parent != "" && node.Parent != node.Name {
		if parent := rsm.NodeByName(node.Parent); parent != nil {
			return rsmHierarchyMatrix(parent, rsm, visited).Mul4(local)
		}
	}
	return local
}
