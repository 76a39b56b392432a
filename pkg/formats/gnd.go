package formats

import (
	"errors"
	"fmt"

	xencoding "golang.org/x/text/encoding"
)

// GND format errors.
var (
	ErrInvalidGNDMagic       = errors.New("invalid GND magic: expected 'GRGN'")
	ErrUnsupportedGNDVersion = errors.New("unsupported GND version")
	ErrTruncatedGNDData      = errors.New("truncated GND data")
)

const (
	maxGNDSize         = 1024
	maxGNDTextures     = 4096
	maxGNDNameLength   = 256
	maxGNDSurfaces     = 1 << 22
	maxGNDLightmapSize = 1 << 24
)

// GNDVersion is the GND file version.
type GNDVersion struct {
	Major uint8
	Minor uint8
}

func (v GNDVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// GNDSurface is a textured quad with per-corner texture coordinates.
// Corners are ordered bottom-left, bottom-right, top-left, top-right.
type GNDSurface struct {
	U          [4]float32
	V          [4]float32
	TextureID  int16 // -1 means untextured
	LightmapID int16
	Color      [4]uint8 // BGRA
}

// GNDTile is one terrain cell. Surface IDs index GND.Surfaces; -1 means
// the face is absent.
type GNDTile struct {
	Altitude     [4]float32 // corner heights, same order as surface corners
	TopSurface   int32
	FrontSurface int32
	RightSurface int32
}

// GND is a parsed ground file. Lightmap pixels are skipped; only their
// count is kept.
type GND struct {
	Version       GNDVersion
	Width         uint32
	Height        uint32
	Zoom          float32
	Textures      []string
	LightmapCount int
	Surfaces      []GNDSurface
	Tiles         []GNDTile
}

// Tile returns the tile at x, y or nil outside the grid.
func (g *GND) Tile(x, y int) *GNDTile {
	if x < 0 || y < 0 || x >= int(g.Width) || y >= int(g.Height) {
		return nil
	}
	return &g.Tiles[y*int(g.Width)+x]
}

// Surface returns surface id or nil when id does not name one.
func (g *GND) Surface(id int32) *GNDSurface {
	if id < 0 || int(id) >= len(g.Surfaces) {
		return nil
	}
	return &g.Surfaces[id]
}

// ParseGND parses GND data. Texture names are decoded with enc; nil keeps
// raw bytes.
func ParseGND(data []byte, enc xencoding.Encoding) (*GND, error) {
	if len(data) < 6 {
		return nil, ErrTruncatedGNDData
	}
	if string(data[:4]) != "GRGN" {
		return nil, ErrInvalidGNDMagic
	}
	gnd := &GND{Version: GNDVersion{Major: data[4], Minor: data[5]}}
	if gnd.Version.Major != 1 || gnd.Version.Minor < 5 || gnd.Version.Minor > 9 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedGNDVersion, gnd.Version)
	}

	r := newReader(data[6:], enc, ErrTruncatedGNDData)

	r.read(&gnd.Width)
	r.read(&gnd.Height)
	r.read(&gnd.Zoom)
	if r.err != nil {
		return nil, r.err
	}
	if gnd.Width == 0 || gnd.Height == 0 || gnd.Width > maxGNDSize || gnd.Height > maxGNDSize {
		return nil, fmt.Errorf("%w: dimensions %dx%d", ErrTruncatedGNDData, gnd.Width, gnd.Height)
	}

	textureCount := r.count("texture", maxGNDTextures)
	nameLength := r.count("texture name length", maxGNDNameLength)
	gnd.Textures = make([]string, textureCount)
	for i := range gnd.Textures {
		gnd.Textures[i] = r.name(nameLength)
	}

	gnd.LightmapCount = r.count("lightmap", maxGNDSurfaces)
	w := r.count("lightmap width", maxGNDSize)
	h := r.count("lightmap height", maxGNDSize)
	cells := r.count("lightmap cells", maxGNDSize)
	if w*h*cells > maxGNDLightmapSize {
		return nil, fmt.Errorf("%w: lightmap %dx%dx%d", ErrTruncatedGNDData, w, h, cells)
	}
	// brightness plus RGB per pixel
	r.skip(int64(gnd.LightmapCount) * int64(w*h*cells) * 4)

	gnd.Surfaces = make([]GNDSurface, r.count("surface", maxGNDSurfaces))
	for i := range gnd.Surfaces {
		s := &gnd.Surfaces[i]
		r.read(&s.U)
		r.read(&s.V)
		r.read(&s.TextureID)
		r.read(&s.LightmapID)
		r.read(&s.Color)
	}
	if r.err != nil {
		return nil, r.err
	}

	gnd.Tiles = make([]GNDTile, int(gnd.Width)*int(gnd.Height))
	for i := range gnd.Tiles {
		t := &gnd.Tiles[i]
		r.read(&t.Altitude)
		r.read(&t.TopSurface)
		r.read(&t.FrontSurface)
		r.read(&t.RightSurface)
	}
	if r.err != nil {
		return nil, r.err
	}

	return gnd, nil
}
