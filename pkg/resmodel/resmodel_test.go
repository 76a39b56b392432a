package resmodel

import (
	"errors"
	"testing"

	"github.com/Faultbox/resmesh/pkg/math"
)

// triangleMesh is one meshlet holding one triangle over three vertices.
func triangleMesh() *Mesh {
	return &Mesh{
		Positions:    []math.Vec3{{}, {X: 1}, {Y: 1}},
		Colors:       []uint32{1, 2, 3},
		Indices:      []uint32{0, 1, 2},
		Primitives:   []Primitive{{Index0: 1, Index1: 0, Index2: 2}},
		Meshlets:     []Meshlet{{VertexCount: 3, PrimitiveCount: 1}},
		CullingInfos: []CullingInfo{{}},
	}
}

func TestPrimitive_Pack(t *testing.T) {
	p := Primitive{Index0: 63, Index1: 1, Index2: 255}
	packed := p.Pack()
	if packed != 63|1<<10|255<<20 {
		t.Errorf("Pack() = %#x", packed)
	}
	if got := UnpackPrimitive(packed); got != p {
		t.Errorf("UnpackPrimitive() = %+v, want %+v", got, p)
	}
}

func TestMesh_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *Mesh)
		ok     bool
	}{
		{"valid", func(m *Mesh) {}, true},
		{"absent channels", func(m *Mesh) { m.Colors = nil }, true},
		{"short color stream", func(m *Mesh) { m.Colors = m.Colors[:2] }, false},
		{"short texcoord stream", func(m *Mesh) { m.TexCoords[2] = []uint32{0} }, false},
		{"weights without indices", func(m *Mesh) { m.BoneWeights = make([]math.Vec4, 3) }, false},
		{"missing culling info", func(m *Mesh) { m.CullingInfos = nil }, false},
		{"meshlet past indices", func(m *Mesh) { m.Meshlets[0].VertexOffset = 1 }, false},
		{"meshlet past primitives", func(m *Mesh) { m.Meshlets[0].PrimitiveCount = 2 }, false},
		{"index past vertices", func(m *Mesh) { m.Indices[2] = 3 }, false},
		{"primitive corner past meshlet", func(m *Mesh) { m.Primitives[0].Index2 = 200 }, false},
		{"meshlet over vertex limit", func(m *Mesh) { m.Meshlets[0].VertexCount = MaxMeshletVertices + 1 }, false},
		{"meshlet over primitive limit", func(m *Mesh) { m.Meshlets[0].PrimitiveCount = MaxMeshletPrimitives + 1 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := triangleMesh()
			tt.mutate(m)
			err := m.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() = %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInconsistentMesh) {
				t.Errorf("Validate() = %v, want ErrInconsistentMesh", err)
			}
		})
	}
}

func TestMesh_Triangles(t *testing.T) {
	m := triangleMesh()
	m.Indices = []uint32{2, 0, 1}

	got := m.Triangles()
	want := []uint32{0, 2, 1}
	if len(got) != len(want) {
		t.Fatalf("Triangles() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Triangles()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestMesh_Record(t *testing.T) {
	static := triangleMesh()
	skinned := triangleMesh()
	skinned.BoneIndices = []BoneIndex{{1}, {2}, {3}}
	skinned.BoneWeights = []math.Vec4{{X: 1}, {X: 1}, {X: 0.5, Y: 0.5}}

	tests := []struct {
		name   string
		mesh   *Mesh
		layout Layout
		want   RecordKind
	}{
		{"static split", static, LayoutSplit, KindStatic},
		{"skinned split", skinned, LayoutSplit, KindSkinned},
		{"combined", skinned, LayoutCombined, KindCombined},
	}
	for _, tt := range tests {
		rec := tt.mesh.Record(tt.layout)
		if rec.Kind() != tt.want {
			t.Errorf("%s: Kind() = %v, want %v", tt.name, rec.Kind(), tt.want)
		}
		if rec.Base() != tt.mesh {
			t.Errorf("%s: Base() is not the source mesh", tt.name)
		}
	}

	combined := skinned.Record(LayoutCombined).(CombinedMesh)
	if len(combined.Vertices) != 3 {
		t.Fatalf("Vertices has %d entries, want 3", len(combined.Vertices))
	}
	v := combined.Vertices[2]
	if v.Position != (math.Vec3{Y: 1}) || v.Color != 3 || v.BoneIndex[0] != 3 || v.BoneWeight.Y != 0.5 {
		t.Errorf("Vertices[2] = %+v", v)
	}
	if v.TexCoords != [MaxTexCoords]uint32{} || v.TangentSpace != 0 {
		t.Error("absent channels are not zero in the interleaved vertex")
	}
}

func TestParseLayout(t *testing.T) {
	tests := []struct {
		in      string
		want    Layout
		wantErr bool
	}{
		{"", LayoutSplit, false},
		{"split", LayoutSplit, false},
		{"Combined", LayoutCombined, false},
		{"packed", LayoutSplit, true},
	}
	for _, tt := range tests {
		got, err := ParseLayout(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLayout(%q) = %v, %v", tt.in, got, err)
		}
	}
	if LayoutCombined.String() != "combined" {
		t.Errorf("String() = %q", LayoutCombined.String())
	}
}

func TestTextureUsage_Names(t *testing.T) {
	for _, u := range CatalogUsages {
		got, err := ParseTextureUsage(u.String())
		if err != nil || got != u {
			t.Errorf("ParseTextureUsage(%q) = %v, %v", u.String(), got, err)
		}
	}
	if u, err := ParseTextureUsage("lightmap"); err != nil || u != UsageLightmap {
		t.Errorf("ParseTextureUsage is case sensitive: %v, %v", u, err)
	}
	if _, err := ParseTextureUsage("GLOSS"); err == nil {
		t.Error("ParseTextureUsage accepted an unknown name")
	}
	if len(CatalogUsages) != 11 || CatalogUsages[0] != UsageDiffuse || CatalogUsages[10] != UsageReflection {
		t.Errorf("CatalogUsages = %v", CatalogUsages)
	}
}

func TestModel_StatsAndLookup(t *testing.T) {
	skinned := triangleMesh()
	skinned.BoneIndices = make([]BoneIndex, 3)
	skinned.BoneWeights = make([]math.Vec4, 3)

	m := &Model{
		Meshes:    []Mesh{*triangleMesh(), *skinned},
		Materials: []Material{{Name: "a", Hash: 7}, {Name: "b", Hash: 9}},
	}

	want := Stats{Meshes: 2, Skinned: 1, Vertices: 6, Primitives: 2, Meshlets: 2, Materials: 2}
	if got := m.Stats(); got != want {
		t.Errorf("Stats() = %+v, want %+v", got, want)
	}
	if mat := m.MaterialByHash(9); mat == nil || mat.Name != "b" {
		t.Errorf("MaterialByHash(9) = %+v", mat)
	}
	if m.MaterialByHash(1) != nil {
		t.Error("MaterialByHash(1) found a material")
	}
	if err := m.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}
