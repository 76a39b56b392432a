package scene

import (
	"bytes"
	"testing"
	"testing/fstest"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/resmesh/pkg/formats"
	"github.com/Faultbox/resmesh/pkg/resmodel"
)

var fullUV = struct{ U, V [4]float32 }{
	U: [4]float32{0, 1, 0, 1},
	V: [4]float32{0, 0, 1, 1},
}

// steppedGND is a 2x1 ground whose right tile sits 5 units higher, with a
// rock wall between the tiles.
func steppedGND() *formats.GND {
	return &formats.GND{
		Version:  formats.GNDVersion{Major: 1, Minor: 7},
		Width:    2,
		Height:   1,
		Zoom:     10,
		Textures: []string{"grass.bmp", "rock.bmp"},
		Surfaces: []formats.GNDSurface{
			{U: fullUV.U, V: fullUV.V, TextureID: 0, Color: [4]uint8{255, 255, 255, 255}},
			{U: fullUV.U, V: fullUV.V, TextureID: 1, Color: [4]uint8{0, 0, 255, 255}},
		},
		Tiles: []formats.GNDTile{
			{Altitude: [4]float32{0, 0, 0, 0}, TopSurface: 0, FrontSurface: -1, RightSurface: 1},
			{Altitude: [4]float32{-5, -5, -5, -5}, TopSurface: 1, FrontSurface: -1, RightSurface: -1},
		},
	}
}

func TestSceneFromGND(t *testing.T) {
	s := SceneFromGND(steppedGND())

	require.Len(t, s.Materials, 2)
	assert.Equal(t, []string{"rock.bmp"}, s.Materials[1].Textures[resmodel.UsageDiffuse])

	require.Len(t, s.Meshes, 2)
	grass, rock := s.Meshes[0], s.Meshes[1]
	assert.Equal(t, 0, grass.MaterialIndex)
	assert.Len(t, grass.Faces, 2)
	assert.Equal(t, 1, rock.MaterialIndex)
	assert.Len(t, rock.Faces, 4, "wall then the raised top")
	assert.False(t, rock.HasNormals(), "terrain normals are left to smoothing")

	// the wall stands on the shared edge x = 10 from altitude 0 up to 5
	for _, p := range rock.Positions[:6] {
		assert.Equal(t, float32(10), p[0])
		assert.True(t, p[1] == 0 || p[1] == 5, "wall y = %v", p[1])
	}
	assert.Equal(t, [4]float32{1, 1, 1, 1}, rock.Colors[0], "walls are not tinted")

	// raised top: altitudes are negated, BGRA blue channel 255 becomes red
	assert.Equal(t, float32(5), rock.Positions[6][1])
	assert.Equal(t, [4]float32{1, 0, 0, 1}, rock.Colors[6])
}

func TestSceneFromGND_UntexturedAndLevel(t *testing.T) {
	gnd := &formats.GND{
		Width:    2,
		Height:   1,
		Zoom:     2,
		Surfaces: []formats.GNDSurface{{U: fullUV.U, V: fullUV.V, TextureID: -1}},
		Tiles: []formats.GNDTile{
			{TopSurface: 0, FrontSurface: -1, RightSurface: -1},
			{TopSurface: -1, FrontSurface: -1, RightSurface: -1},
		},
	}

	s := SceneFromGND(gnd)
	require.Len(t, s.Meshes, 1, "tiles without a top surface emit nothing")
	require.Len(t, s.Materials, 1)
	assert.Equal(t, defaultMaterialName, s.Materials[0].Name)
	assert.Len(t, s.Meshes[0].Faces, 2, "level neighbors get no wall")
}

func encode(t *testing.T, write func(*bytes.Buffer) error) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, write(&buf))
	return buf.Bytes()
}

func worldFS(t *testing.T) fstest.MapFS {
	gnd := &formats.GND{
		Version:  formats.GNDVersion{Major: 1, Minor: 7},
		Width:    1,
		Height:   1,
		Zoom:     10,
		Textures: []string{"grass.bmp"},
		Surfaces: []formats.GNDSurface{{U: fullUV.U, V: fullUV.V, Color: [4]uint8{255, 255, 255, 255}}},
		Tiles:    []formats.GNDTile{{TopSurface: 0, FrontSurface: -1, RightSurface: -1}},
	}
	rsm := &formats.RSM{
		Version:  formats.RSMVersion{Major: 1, Minor: 4},
		Alpha:    1,
		Textures: []string{"grass.bmp"},
		RootNode: "n",
		Nodes: []formats.RSMNode{{
			Name:       "n",
			TextureIDs: []int32{0},
			Matrix:     [9]float32{1, 0, 0, 0, 1, 0, 0, 0, 1},
			Scale:      [3]float32{1, 1, 1},
			Vertices:   [][3]float32{{0, 0, 0}, {2, 0, 0}, {0, 2, 0}},
			TexCoords:  []formats.RSMTexCoord{{U: 0, V: 0}},
			Faces:      []formats.RSMFace{{VertexIDs: [3]uint16{0, 1, 2}}},
		}},
	}
	rsw := &formats.RSW{
		Version: formats.RSWVersion{Major: 2, Minor: 1},
		GndFile: "prontera.gnd",
		Models: []formats.RSWModel{
			{Name: "house", ModelName: `inside\box.rsm`, Position: [3]float32{0, -2, 0}, Rotation: [3]float32{0, 90, 0}, Scale: [3]float32{1, 1, 1}},
			{Name: "gone", ModelName: "missing.rsm", Scale: [3]float32{1, 1, 1}},
			{ModelName: `INSIDE\BOX.rsm`, Scale: [3]float32{1, 1, 1}},
		},
	}

	return fstest.MapFS{
		"data/prontera.rsw":         {Data: encode(t, func(b *bytes.Buffer) error { return formats.WriteRSW(b, rsw) })},
		"data/prontera.gnd":         {Data: encode(t, func(b *bytes.Buffer) error { return formats.WriteGND(b, gnd) })},
		"data/model/inside/box.rsm": {Data: encode(t, func(b *bytes.Buffer) error { return formats.WriteRSM(b, rsm) })},
	}
}

func TestLoadFS_RSW(t *testing.T) {
	s, err := LoadFS(worldFS(t), "data/prontera.rsw", Options{})
	require.NoError(t, err)

	require.Len(t, s.Warnings, 1)
	assert.Contains(t, s.Warnings[0], "missing.rsm")

	require.Len(t, s.Materials, 1, "model material shares the ground texture")
	require.Len(t, s.Meshes, 3)
	assert.Equal(t, "ground_0", s.Meshes[0].Name)
	assert.Equal(t, "instance_2/n", s.Meshes[2].Name, "model names are case-insensitive")

	house := s.Meshes[1]
	assert.Equal(t, "house/n", house.Name)
	assert.Equal(t, 0, house.MaterialIndex)

	// the model is centered in X, turned 90 degrees about Y and moved to the
	// middle of the 10x10 ground, lifted by the negated RSW height
	for _, p := range house.Positions {
		assert.InDelta(t, 5, p[0], 1e-4)
		assert.InDelta(t, 5, p[2], 1+1e-4)
		assert.True(t, p[1] > -1e-4 && p[1] < 2+1e-4, "y = %v", p[1])
	}
}

func TestLoadFS_RSWMissingGround(t *testing.T) {
	fsys := worldFS(t)
	delete(fsys, "data/prontera.gnd")

	_, err := LoadFS(fsys, "data/prontera.rsw", Options{})
	assert.ErrorContains(t, err, "prontera.gnd")
}

func TestMeshTransform_Mirror(t *testing.T) {
	m := Mesh{
		Positions: [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Normals:   [][3]float32{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
		Tangents:  [][3]float32{{1, 0, 0}, {1, 0, 0}, {1, 0, 0}},
		Faces:     [][]uint32{{0, 1, 2}},
	}

	m.Transform(mgl32.Scale3D(-2, 1, 1))

	assert.Equal(t, [3]float32{-2, 0, 0}, m.Positions[1])
	assert.Equal(t, [][]uint32{{2, 1, 0}}, m.Faces)
	assert.InDeltaSlice(t, []float32{0, 0, 1}, m.Normals[0][:], 1e-6)
	assert.InDeltaSlice(t, []float32{-1, 0, 0}, m.Tangents[0][:], 1e-6)
	assert.Equal(t, []float32{-1, -1, -1}, m.TangentSigns)
}
