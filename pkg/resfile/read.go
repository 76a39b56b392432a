package resfile

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Faultbox/resmesh/pkg/math"
	"github.com/Faultbox/resmesh/pkg/resmodel"
)

// reader remembers the first error so fields can be read in sequence and
// checked once per section.
type reader struct {
	r   io.Reader
	err error
}

func (r *reader) read(v any) {
	if r.err != nil {
		return
	}
	if err := binary.Read(r.r, binary.LittleEndian, v); err != nil {
		r.err = ErrTruncatedData
	}
}

func (r *reader) uint8() uint8 {
	var v uint8
	r.read(&v)
	return v
}

func (r *reader) uint32() uint32 {
	var v uint32
	r.read(&v)
	return v
}

func (r *reader) string() string {
	var n uint16
	r.read(&n)
	buf := make([]byte, n)
	r.read(buf)
	return string(buf)
}

// count reads an element count and rejects values above limit.
func (r *reader) count(what string, limit uint32) int {
	n := r.uint32()
	if r.err != nil {
		return 0
	}
	if n > limit {
		r.err = fmt.Errorf("%w: %s count %d", ErrTruncatedData, what, n)
		return 0
	}
	return int(n)
}

// readSlice reads n elements in bounded chunks, so a count larger than the
// remaining data fails with ErrTruncatedData before it is allocated in full.
func readSlice[T any](r *reader, n int) []T {
	const chunk = 1 << 12
	s := make([]T, 0, min(n, chunk))
	for len(s) < n && r.err == nil {
		part := make([]T, min(n-len(s), chunk))
		r.read(part)
		s = append(s, part...)
	}
	return s
}

// Read decodes a model. Combined records are split back into streams, so
// the model is the same whichever layout it was written with.
func Read(rd io.Reader) (*resmodel.Model, Header, error) {
	r := &reader{r: rd}

	magic := make([]byte, len(Magic))
	r.read(magic)
	if r.err != nil {
		return nil, Header{}, r.err
	}
	if string(magic) != Magic {
		return nil, Header{}, ErrInvalidMagic
	}

	var version uint16
	r.read(&version)
	layout := r.uint8()
	r.uint8() // reserved
	if r.err != nil {
		return nil, Header{}, r.err
	}
	if version != Version {
		return nil, Header{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	header := Header{Version: version, Layout: resmodel.Layout(layout)}

	model := &resmodel.Model{}

	materialCount := r.count("material", maxMaterials)
	for i := 0; i < materialCount && r.err == nil; i++ {
		mat := resmodel.Material{Name: r.string(), Hash: r.uint32()}
		textureCount := r.count("texture", maxTextures)
		for j := 0; j < textureCount && r.err == nil; j++ {
			usage := resmodel.TextureUsage(r.uint8())
			mat.Textures = append(mat.Textures, resmodel.Texture{Usage: usage, Path: r.string()})
		}
		model.Materials = append(model.Materials, mat)
	}

	meshCount := r.count("mesh", maxMeshes)
	for i := 0; i < meshCount && r.err == nil; i++ {
		mesh, err := r.mesh()
		if err != nil {
			return nil, Header{}, fmt.Errorf("mesh %d: %w", i, err)
		}
		model.Meshes = append(model.Meshes, *mesh)
	}

	if r.err != nil {
		return nil, Header{}, r.err
	}
	return model, header, nil
}

func (r *reader) mesh() (*resmodel.Mesh, error) {
	kind := resmodel.RecordKind(r.uint8())
	ch := r.uint8()
	var reserved uint16
	r.read(&reserved)

	m := &resmodel.Mesh{MeshHash: r.uint32(), MaterialHash: r.uint32()}
	n := r.count("vertex", maxElements)
	if r.err != nil {
		return nil, r.err
	}

	switch kind {
	case resmodel.KindCombined:
		vertices := readSlice[resmodel.Vertex](r, n)
		if r.err != nil {
			return nil, r.err
		}
		splitVertices(m, vertices, ch)
	case resmodel.KindStatic, resmodel.KindSkinned:
		if (kind == resmodel.KindSkinned) != (ch&channelBones != 0) {
			return nil, fmt.Errorf("%w: %s record with channels %#x", ErrInvalidRecord, kind, ch)
		}
		m.Positions = readSlice[math.Vec3](r, n)
		if ch&channelTangentSpace != 0 {
			m.TangentSpaces = readSlice[uint32](r, n)
		}
		for i := range m.TexCoords {
			if ch&(channelTexCoord0<<i) != 0 {
				m.TexCoords[i] = readSlice[uint32](r, n)
			}
		}
		if ch&channelColor != 0 {
			m.Colors = readSlice[uint32](r, n)
		}
		if ch&channelBones != 0 {
			m.BoneIndices = readSlice[resmodel.BoneIndex](r, n)
			m.BoneWeights = readSlice[math.Vec4](r, n)
		}
	default:
		return nil, fmt.Errorf("%w: kind %d", ErrInvalidRecord, kind)
	}

	m.Indices = readSlice[uint32](r, r.count("index", maxElements))

	packed := readSlice[uint32](r, r.count("primitive", maxElements))
	m.Primitives = make([]resmodel.Primitive, len(packed))
	for i, p := range packed {
		m.Primitives[i] = resmodel.UnpackPrimitive(p)
	}

	meshletCount := r.count("meshlet", maxElements)
	m.Meshlets = readSlice[resmodel.Meshlet](r, meshletCount)
	m.CullingInfos = readSlice[resmodel.CullingInfo](r, meshletCount)

	if r.err != nil {
		return nil, r.err
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	return m, nil
}

// splitVertices fills the streams of m that ch marks present.
func splitVertices(m *resmodel.Mesh, vertices []resmodel.Vertex, ch uint8) {
	n := len(vertices)
	m.Positions = make([]math.Vec3, n)
	if ch&channelTangentSpace != 0 {
		m.TangentSpaces = make([]uint32, n)
	}
	for i := range m.TexCoords {
		if ch&(channelTexCoord0<<i) != 0 {
			m.TexCoords[i] = make([]uint32, n)
		}
	}
	if ch&channelColor != 0 {
		m.Colors = make([]uint32, n)
	}
	if ch&channelBones != 0 {
		m.BoneIndices = make([]resmodel.BoneIndex, n)
		m.BoneWeights = make([]math.Vec4, n)
	}

	for i, v := range vertices {
		m.Positions[i] = v.Position
		if m.TangentSpaces != nil {
			m.TangentSpaces[i] = v.TangentSpace
		}
		for c := range m.TexCoords {
			if m.TexCoords[c] != nil {
				m.TexCoords[c][i] = v.TexCoords[c]
			}
		}
		if m.Colors != nil {
			m.Colors[i] = v.Color
		}
		if m.BoneIndices != nil {
			m.BoneIndices[i] = v.BoneIndex
			m.BoneWeights[i] = v.BoneWeight
		}
	}
}
