package scene

import (
	"fmt"
	"io/fs"

	"github.com/Faultbox/resmesh/pkg/formats"
	"github.com/Faultbox/resmesh/pkg/math"
	"github.com/Faultbox/resmesh/pkg/resmodel"
)

// stepEpsilon is the altitude difference below which neighboring tiles
// are considered level and get no wall between them.
const stepEpsilon = 0.001

type gndImporter struct{}

func (gndImporter) Import(fsys fs.FS, name string, opts Options) (*Scene, error) {
	enc, err := charset(opts)
	if err != nil {
		return nil, err
	}
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, err
	}
	gnd, err := formats.ParseGND(data, enc)
	if err != nil {
		return nil, err
	}
	return SceneFromGND(gnd), nil
}

// groundBuilder collects terrain triangles into one mesh per material.
type groundBuilder struct {
	s        *Scene
	gnd      *formats.GND
	meshes   map[int]*Mesh
	order    []int
	fallback int
}

// SceneFromGND builds the terrain of gnd: one quad per tile top plus walls
// where a tile steps up or down to its front or right neighbor. Tile (x, y)
// spans [x, x+1] by [y, y+1] times Zoom on the XZ plane and altitudes are
// negated so up is +Y. Normals are left to post-processing, which smooths
// them across tiles.
func SceneFromGND(gnd *formats.GND) *Scene {
	b := &groundBuilder{s: &Scene{}, gnd: gnd, meshes: make(map[int]*Mesh), fallback: -1}

	for _, tex := range gnd.Textures {
		m := Material{Name: tex, Diffuse: [4]float32{1, 1, 1, 1}, Opacity: 1}
		m.AddTexture(resmodel.UsageDiffuse, tex)
		b.s.Materials = append(b.s.Materials, m)
	}

	size := gnd.Zoom
	for y := 0; y < int(gnd.Height); y++ {
		for x := 0; x < int(gnd.Width); x++ {
			tile := gnd.Tile(x, y)
			bx, bz := float32(x)*size, float32(y)*size
			corners := [4][3]float32{
				{bx, -tile.Altitude[0], bz + size},
				{bx + size, -tile.Altitude[1], bz + size},
				{bx, -tile.Altitude[2], bz},
				{bx + size, -tile.Altitude[3], bz},
			}

			if top := gnd.Surface(tile.TopSurface); top != nil {
				uv := [4][2]float32{
					{top.U[2], top.V[2]},
					{top.U[3], top.V[3]},
					{top.U[0], top.V[0]},
					{top.U[1], top.V[1]},
				}
				b.quad(top, corners, uv, surfaceColor(top), [6]int{0, 1, 2, 2, 1, 3})
			}

			if next := gnd.Tile(x, y+1); next != nil && steps(tile.Altitude[0]-next.Altitude[2], tile.Altitude[1]-next.Altitude[3]) {
				wall := [4][3]float32{
					corners[0],
					corners[1],
					{bx, -next.Altitude[2], bz + size},
					{bx + size, -next.Altitude[3], bz + size},
				}
				b.wall(tile.FrontSurface, tile.TopSurface, wall)
			}

			if next := gnd.Tile(x+1, y); next != nil && steps(tile.Altitude[1]-next.Altitude[0], tile.Altitude[3]-next.Altitude[2]) {
				wall := [4][3]float32{
					corners[3],
					corners[1],
					{bx + size, -next.Altitude[2], bz},
					{bx + size, -next.Altitude[0], bz + size},
				}
				b.wall(tile.RightSurface, tile.TopSurface, wall)
			}
		}
	}

	for _, material := range b.order {
		b.s.Meshes = append(b.s.Meshes, *b.meshes[material])
	}
	return b.s
}

func steps(d0, d1 float32) bool {
	return d0 > stepEpsilon || d0 < -stepEpsilon || d1 > stepEpsilon || d1 < -stepEpsilon
}

// wall emits a wall quad textured with its own surface, or with the top
// surface stretched once over it when the tile has none.
func (b *groundBuilder) wall(surfaceID, topID int32, corners [4][3]float32) {
	uv := [4][2]float32{{0, 0}, {1, 0}, {0, 1}, {1, 1}}
	surface := b.gnd.Surface(surfaceID)
	if surface != nil {
		for k := range uv {
			uv[k] = [2]float32{surface.U[k], surface.V[k]}
		}
	} else if surface = b.gnd.Surface(topID); surface == nil {
		return
	}
	b.quad(surface, corners, uv, [4]float32{1, 1, 1, 1}, [6]int{0, 2, 1, 1, 2, 3})
}

// quad appends the two triangles tris of a four-corner patch. Degenerate
// triangles are dropped.
func (b *groundBuilder) quad(surface *formats.GNDSurface, corners [4][3]float32, uv [4][2]float32, color [4]float32, tris [6]int) {
	mesh := b.mesh(int(surface.TextureID))
	for t := 0; t < 6; t += 3 {
		p0, p1, p2 := math.V3(corners[tris[t]]), math.V3(corners[tris[t+1]]), math.V3(corners[tris[t+2]])
		if p1.Sub(p0).Cross(p2.Sub(p0)).LengthSq() < 1e-12 {
			continue
		}
		base := uint32(len(mesh.Positions))
		for _, k := range tris[t : t+3] {
			mesh.Positions = append(mesh.Positions, corners[k])
			mesh.TexCoords[0] = append(mesh.TexCoords[0], uv[k])
			mesh.Colors = append(mesh.Colors, color)
		}
		mesh.Faces = append(mesh.Faces, []uint32{base, base + 1, base + 2})
	}
}

func (b *groundBuilder) mesh(texture int) *Mesh {
	material := texture
	if material < 0 || material >= len(b.gnd.Textures) {
		if b.fallback < 0 {
			b.fallback = len(b.s.Materials)
			b.s.Materials = append(b.s.Materials, Material{Name: defaultMaterialName, Diffuse: [4]float32{1, 1, 1, 1}, Opacity: 1})
		}
		material = b.fallback
	}
	if m, ok := b.meshes[material]; ok {
		return m
	}
	m := &Mesh{Name: fmt.Sprintf("ground_%d", material), MaterialIndex: material}
	b.meshes[material] = m
	b.order = append(b.order, material)
	return m
}

func surfaceColor(s *formats.GNDSurface) [4]float32 {
	return [4]float32{
		float32(s.Color[2]) / 255,
		float32(s.Color[1]) / 255,
		float32(s.Color[0]) / 255,
		float32(s.Color[3]) / 255,
	}
}
