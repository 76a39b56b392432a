// Package resmodel defines the converted model: GPU-ready meshes with
// meshlets and culling data, and the material table they refer to by hash.
package resmodel

import (
	"errors"
	"fmt"

	"github.com/Faultbox/resmesh/pkg/math"
)

// MaxTexCoords is the number of texture coordinate channels a mesh carries.
const MaxTexCoords = 4

// Format limits for meshlets.
const (
	MaxMeshletVertices   = 64
	MaxMeshletPrimitives = 126
)

// ErrInconsistentMesh is returned by Mesh.Validate.
var ErrInconsistentMesh = errors.New("inconsistent mesh")

// BoneIndex holds the four bone ordinals that influence a vertex.
type BoneIndex [4]uint16

// Primitive is one meshlet triangle. Corners index the meshlet's slice of
// Mesh.Indices.
type Primitive struct {
	Index0, Index1, Index2 uint8
}

// Pack packs the corners as 10 bits each, Index0 in the low bits.
func (p Primitive) Pack() uint32 {
	return uint32(p.Index0) | uint32(p.Index1)<<10 | uint32(p.Index2)<<20
}

// UnpackPrimitive reverses Primitive.Pack.
func UnpackPrimitive(v uint32) Primitive {
	return Primitive{
		Index0: uint8(v & 0x3ff),
		Index1: uint8((v >> 10) & 0x3ff),
		Index2: uint8((v >> 20) & 0x3ff),
	}
}

// Meshlet addresses one cluster inside Mesh.Indices and Mesh.Primitives.
type Meshlet struct {
	VertexOffset    uint32
	VertexCount     uint32
	PrimitiveOffset uint32
	PrimitiveCount  uint32
}

// CullingInfo is the per-meshlet culling descriptor.
type CullingInfo struct {
	BoundingSphere math.Vec4 // center xyz, radius w
	NormalCone     uint32    // unorm8x4: axis xyz, cone angle w
}

// Mesh is one converted mesh. Every non-empty vertex stream has the same
// length; an empty stream means the channel is absent.
type Mesh struct {
	MeshHash     uint32
	MaterialHash uint32

	Positions     []math.Vec3
	TangentSpaces []uint32
	TexCoords     [MaxTexCoords][]uint32
	Colors        []uint32
	BoneIndices   []BoneIndex
	BoneWeights   []math.Vec4

	Indices      []uint32
	Primitives   []Primitive
	Meshlets     []Meshlet
	CullingInfos []CullingInfo
}

// VertexCount returns the number of vertices in the position stream.
func (m *Mesh) VertexCount() int {
	return len(m.Positions)
}

// IsSkinned reports whether the mesh carries bone influences.
func (m *Mesh) IsSkinned() bool {
	return len(m.BoneIndices) > 0
}

// HasTexCoord reports whether texture channel i is present.
func (m *Mesh) HasTexCoord(i int) bool {
	return i >= 0 && i < MaxTexCoords && len(m.TexCoords[i]) > 0
}

// Validate checks the stream length and meshlet range invariants.
func (m *Mesh) Validate() error {
	n := len(m.Positions)
	check := func(name string, l int) error {
		if l != 0 && l != n {
			return fmt.Errorf("%w: %s has %d entries, positions %d", ErrInconsistentMesh, name, l, n)
		}
		return nil
	}

	if err := check("tangent spaces", len(m.TangentSpaces)); err != nil {
		return err
	}
	for i := range m.TexCoords {
		if err := check(fmt.Sprintf("texcoord%d", i), len(m.TexCoords[i])); err != nil {
			return err
		}
	}
	if err := check("colors", len(m.Colors)); err != nil {
		return err
	}
	if err := check("bone indices", len(m.BoneIndices)); err != nil {
		return err
	}
	if err := check("bone weights", len(m.BoneWeights)); err != nil {
		return err
	}
	if len(m.BoneIndices) != len(m.BoneWeights) {
		return fmt.Errorf("%w: bone index/weight streams differ", ErrInconsistentMesh)
	}
	if len(m.Meshlets) != len(m.CullingInfos) {
		return fmt.Errorf("%w: %d meshlets but %d culling infos", ErrInconsistentMesh, len(m.Meshlets), len(m.CullingInfos))
	}

	for i, ml := range m.Meshlets {
		if ml.VertexCount > MaxMeshletVertices || ml.PrimitiveCount > MaxMeshletPrimitives {
			return fmt.Errorf("%w: meshlet %d holds %d vertices and %d primitives", ErrInconsistentMesh, i, ml.VertexCount, ml.PrimitiveCount)
		}
		if uint64(ml.VertexOffset)+uint64(ml.VertexCount) > uint64(len(m.Indices)) {
			return fmt.Errorf("%w: meshlet %d vertex range out of bounds", ErrInconsistentMesh, i)
		}
		if uint64(ml.PrimitiveOffset)+uint64(ml.PrimitiveCount) > uint64(len(m.Primitives)) {
			return fmt.Errorf("%w: meshlet %d primitive range out of bounds", ErrInconsistentMesh, i)
		}
		for j, p := range m.Primitives[ml.PrimitiveOffset : ml.PrimitiveOffset+ml.PrimitiveCount] {
			if uint32(max(p.Index0, p.Index1, p.Index2)) >= ml.VertexCount {
				return fmt.Errorf("%w: meshlet %d primitive %d references local vertex past %d", ErrInconsistentMesh, i, j, ml.VertexCount)
			}
		}
	}
	for i, index := range m.Indices {
		if int(index) >= n {
			return fmt.Errorf("%w: index %d references vertex %d of %d", ErrInconsistentMesh, i, index, n)
		}
	}

	return nil
}

// Triangles expands the meshlets back into a global triangle list using the
// stored corner order.
func (m *Mesh) Triangles() []uint32 {
	out := make([]uint32, 0, len(m.Primitives)*3)
	for _, ml := range m.Meshlets {
		local := m.Indices[ml.VertexOffset : ml.VertexOffset+ml.VertexCount]
		for _, p := range m.Primitives[ml.PrimitiveOffset : ml.PrimitiveOffset+ml.PrimitiveCount] {
			out = append(out, local[p.Index0], local[p.Index1], local[p.Index2])
		}
	}
	return out
}
