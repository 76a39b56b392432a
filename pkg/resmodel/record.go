package resmodel

import (
	"fmt"
	"strings"

	"github.com/Faultbox/resmesh/pkg/math"
)

// Layout selects how vertex attributes are stored in the output.
type Layout int

const (
	// LayoutSplit stores one array per attribute.
	LayoutSplit Layout = iota
	// LayoutCombined stores a single interleaved vertex array.
	LayoutCombined
)

// String returns the layout name used in configuration.
func (l Layout) String() string {
	switch l {
	case LayoutSplit:
		return "split"
	case LayoutCombined:
		return "combined"
	default:
		return fmt.Sprintf("Unknown(%d)", int(l))
	}
}

// ParseLayout parses a layout name.
func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(s) {
	case "", "split":
		return LayoutSplit, nil
	case "combined":
		return LayoutCombined, nil
	default:
		return LayoutSplit, fmt.Errorf("unknown vertex layout %q", s)
	}
}

// RecordKind tags a Record.
type RecordKind uint8

const (
	KindStatic   RecordKind = 1
	KindSkinned  RecordKind = 2
	KindCombined RecordKind = 3
)

// String returns a human-readable record kind.
func (k RecordKind) String() string {
	switch k {
	case KindStatic:
		return "Static"
	case KindSkinned:
		return "Skinned"
	case KindCombined:
		return "Combined"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// Record is a mesh in its output shape: StaticMesh, SkinnedMesh or
// CombinedMesh. All three share the same Mesh built by one pipeline.
type Record interface {
	Kind() RecordKind
	Base() *Mesh
	record()
}

// StaticMesh is a split-layout mesh without bone data.
type StaticMesh struct{ Mesh *Mesh }

// SkinnedMesh is a split-layout mesh with bone indices and weights.
type SkinnedMesh struct{ Mesh *Mesh }

// CombinedMesh is a mesh whose attributes are interleaved into Vertices.
type CombinedMesh struct {
	Mesh     *Mesh
	Vertices []Vertex
}

func (StaticMesh) Kind() RecordKind   { return KindStatic }
func (SkinnedMesh) Kind() RecordKind  { return KindSkinned }
func (CombinedMesh) Kind() RecordKind { return KindCombined }

func (r StaticMesh) Base() *Mesh   { return r.Mesh }
func (r SkinnedMesh) Base() *Mesh  { return r.Mesh }
func (r CombinedMesh) Base() *Mesh { return r.Mesh }

func (StaticMesh) record()   {}
func (SkinnedMesh) record()  {}
func (CombinedMesh) record() {}

// Vertex is one interleaved vertex of a CombinedMesh. Fields of absent
// channels are zero.
type Vertex struct {
	Position     math.Vec3
	TangentSpace uint32
	TexCoords    [MaxTexCoords]uint32
	Color        uint32
	BoneIndex    BoneIndex
	BoneWeight   math.Vec4
}

// Record wraps the mesh in the variant matching layout and its bone data.
func (m *Mesh) Record(layout Layout) Record {
	if layout == LayoutCombined {
		return CombinedMesh{Mesh: m, Vertices: m.Interleave()}
	}
	if m.IsSkinned() {
		return SkinnedMesh{Mesh: m}
	}
	return StaticMesh{Mesh: m}
}

// Interleave builds the combined vertex array from the split streams.
func (m *Mesh) Interleave() []Vertex {
	out := make([]Vertex, len(m.Positions))
	for i := range out {
		v := &out[i]
		v.Position = m.Positions[i]
		if len(m.TangentSpaces) > 0 {
			v.TangentSpace = m.TangentSpaces[i]
		}
		for c := 0; c < MaxTexCoords; c++ {
			if len(m.TexCoords[c]) > 0 {
				v.TexCoords[c] = m.TexCoords[c][i]
			}
		}
		if len(m.Colors) > 0 {
			v.Color = m.Colors[i]
		}
		if len(m.BoneIndices) > 0 {
			v.BoneIndex = m.BoneIndices[i]
			v.BoneWeight = m.BoneWeights[i]
		}
	}
	return out
}
