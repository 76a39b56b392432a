package meshbuild

import (
	"encoding/binary"
	"fmt"

	"github.com/chewxy/math32"
	"go.uber.org/zap"

	"github.com/Faultbox/resmesh/pkg/math"
	"github.com/Faultbox/resmesh/pkg/meshopt"
	"github.com/Faultbox/resmesh/pkg/resmodel"
	"github.com/Faultbox/resmesh/pkg/scene"
)

// Limits bounds the size of the meshlets a Builder packs.
type Limits struct {
	MaxVertices          int
	MaxPrimitives        int
	MaxPrimitivesSkinned int // used for meshes with bone influences
}

// DefaultLimits returns the format limits.
func DefaultLimits() Limits {
	return Limits{
		MaxVertices:          resmodel.MaxMeshletVertices,
		MaxPrimitives:        resmodel.MaxMeshletPrimitives,
		MaxPrimitivesSkinned: 124,
	}
}

// Builder converts one scene mesh at a time. It holds no per-mesh state and
// may be shared between goroutines.
type Builder struct {
	limits Limits
	log    *zap.Logger
}

// NewBuilder creates a Builder. A nil log discards messages.
func NewBuilder(limits Limits, log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{limits: limits, log: log}
}

// Build encodes src, removes duplicate vertices, optimizes the vertex and
// triangle order and packs the result into meshlets. Meshes without
// vertices or faces return ErrEmptyMesh; faces that are not triangles or
// indices outside the vertex range return ErrMalformedMesh.
func (b *Builder) Build(src *scene.Mesh, materialHash uint32) (*resmodel.Mesh, error) {
	if len(src.Positions) == 0 || len(src.Faces) == 0 {
		return nil, ErrEmptyMesh
	}

	m := &resmodel.Mesh{
		MeshHash:     HashName(src.Name),
		MaterialHash: materialHash,
	}

	if err := b.encodeStreams(src, m); err != nil {
		return nil, err
	}

	indices, err := flattenFaces(src.Faces, len(src.Positions))
	if err != nil {
		return nil, err
	}

	remap, unique, err := meshopt.GenerateVertexRemapMulti(indices, len(m.Positions), vertexStreams(m))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMesh, err)
	}
	meshopt.RemapIndexBuffer(indices, indices, remap)
	remapStreams(m, remap, unique)

	indices = meshopt.OptimizeVertexCache(indices, unique)
	fetch, used := meshopt.OptimizeVertexFetchRemap(indices, unique)
	meshopt.RemapIndexBuffer(indices, indices, fetch)
	remapStreams(m, fetch, used)

	maxPrimitives := b.limits.MaxPrimitives
	if m.IsSkinned() {
		maxPrimitives = b.limits.MaxPrimitivesSkinned
	}
	if err := PackMeshlets(m, indices, b.limits.MaxVertices, maxPrimitives); err != nil {
		return nil, err
	}

	b.log.Debug("Mesh built",
		zap.String("name", src.Name),
		zap.Int("source_vertices", len(src.Positions)),
		zap.Int("vertices", len(m.Positions)),
		zap.Int("triangles", len(m.Primitives)),
		zap.Int("meshlets", len(m.Meshlets)))

	return m, nil
}

// encodeStreams fills the vertex streams of m from the channels of src.
// Absent channels leave their stream empty.
func (b *Builder) encodeStreams(src *scene.Mesh, m *resmodel.Mesh) error {
	n := len(src.Positions)

	if err := checkChannel("normals", len(src.Normals), n); err != nil {
		return err
	}
	if err := checkChannel("tangents", len(src.Tangents), n); err != nil {
		return err
	}
	for i := range src.TexCoords {
		if err := checkChannel(fmt.Sprintf("texcoord%d", i), len(src.TexCoords[i]), n); err != nil {
			return err
		}
	}
	if err := checkChannel("colors", len(src.Colors), n); err != nil {
		return err
	}

	m.Positions = make([]math.Vec3, n)
	for i, p := range src.Positions {
		m.Positions[i] = EncodePosition(p)
	}

	if src.HasNormals() {
		m.TangentSpaces = make([]uint32, n)
		for i := range src.Normals {
			var tangent math.Vec3
			if src.HasTangents() {
				tangent = math.V3(src.Tangents[i])
			}
			m.TangentSpaces[i] = EncodeTangentSpace(math.V3(src.Normals[i]), tangent, src.TangentSign(i))
		}
	}

	for ch := range src.TexCoords {
		if !src.HasTexCoords(ch) {
			continue
		}
		m.TexCoords[ch] = make([]uint32, n)
		for i, uv := range src.TexCoords[ch] {
			m.TexCoords[ch][i] = EncodeTexCoord(uv)
		}
	}

	if src.HasColors() {
		m.Colors = make([]uint32, n)
		for i, c := range src.Colors {
			m.Colors[i] = EncodeColor(c)
		}
	}

	if src.HasBones() {
		influences, dropped, err := assignInfluences(src.Bones, n)
		if err != nil {
			return err
		}
		if dropped > 0 {
			b.log.Debug("Bone influences dropped",
				zap.String("mesh", src.Name),
				zap.Int("dropped", dropped))
		}
		m.BoneIndices = make([]resmodel.BoneIndex, n)
		m.BoneWeights = make([]math.Vec4, n)
		for i := range influences {
			m.BoneIndices[i] = influences[i].Index()
			m.BoneWeights[i] = influences[i].Weight()
		}
	}

	return nil
}

// assignInfluences feeds every bone weight, in bone order and then weight
// order, to the vertex it names. It returns the influences and the number
// of contributions that did not fit.
func assignInfluences(bones []scene.Bone, vertexCount int) ([]BoneInfluence, int, error) {
	if len(bones) > 1<<16 {
		return nil, 0, fmt.Errorf("%w: %d bones exceed 16-bit bone indices", ErrMalformedMesh, len(bones))
	}

	influences := make([]BoneInfluence, vertexCount)
	dropped := 0
	for bi, bone := range bones {
		for _, w := range bone.Weights {
			if int(w.VertexID) >= vertexCount {
				return nil, 0, fmt.Errorf("%w: bone %q weights vertex %d of %d", ErrMalformedMesh, bone.Name, w.VertexID, vertexCount)
			}
			if !influences[w.VertexID].Assign(uint16(bi), w.Weight) && w.Weight > 0 {
				dropped++
			}
		}
	}
	return influences, dropped, nil
}

// flattenFaces returns the triangle list of faces.
func flattenFaces(faces [][]uint32, vertexCount int) ([]uint32, error) {
	indices := make([]uint32, 0, len(faces)*3)
	for i, f := range faces {
		if len(f) != 3 {
			return nil, fmt.Errorf("%w: face %d has %d corners", ErrMalformedMesh, i, len(f))
		}
		for _, index := range f {
			if int(index) >= vertexCount {
				return nil, fmt.Errorf("%w: face %d references vertex %d of %d", ErrMalformedMesh, i, index, vertexCount)
			}
		}
		indices = append(indices, f...)
	}
	return indices, nil
}

func checkChannel(name string, length, vertexCount int) error {
	if length != 0 && length != vertexCount {
		return fmt.Errorf("%w: %s has %d entries for %d vertices", ErrMalformedMesh, name, length, vertexCount)
	}
	return nil
}

// vertexStreams describes the encoded streams of m as bytes, so vertices
// merge only when every stream is bit-identical.
func vertexStreams(m *resmodel.Mesh) []meshopt.Stream {
	le := binary.LittleEndian
	streams := []meshopt.Stream{
		byteStream(m.Positions, 12, func(b []byte, v math.Vec3) {
			le.PutUint32(b, math32.Float32bits(v.X))
			le.PutUint32(b[4:], math32.Float32bits(v.Y))
			le.PutUint32(b[8:], math32.Float32bits(v.Z))
		}),
	}

	putWord := func(b []byte, v uint32) { le.PutUint32(b, v) }
	if len(m.TangentSpaces) > 0 {
		streams = append(streams, byteStream(m.TangentSpaces, 4, putWord))
	}
	for ch := range m.TexCoords {
		if len(m.TexCoords[ch]) > 0 {
			streams = append(streams, byteStream(m.TexCoords[ch], 4, putWord))
		}
	}
	if len(m.Colors) > 0 {
		streams = append(streams, byteStream(m.Colors, 4, putWord))
	}
	if m.IsSkinned() {
		streams = append(streams,
			byteStream(m.BoneIndices, 8, func(b []byte, v resmodel.BoneIndex) {
				for i, bone := range v {
					le.PutUint16(b[2*i:], bone)
				}
			}),
			byteStream(m.BoneWeights, 16, func(b []byte, v math.Vec4) {
				for i := 0; i < 4; i++ {
					le.PutUint32(b[4*i:], math32.Float32bits(v.At(i)))
				}
			}))
	}
	return streams
}

func byteStream[T any](values []T, stride int, put func([]byte, T)) meshopt.Stream {
	data := make([]byte, len(values)*stride)
	for i, v := range values {
		put(data[i*stride:], v)
	}
	return meshopt.Stream{Data: data, Size: stride, Stride: stride}
}

// remapStreams moves every present stream of m through remap.
func remapStreams(m *resmodel.Mesh, remap []uint32, count int) {
	m.Positions = remapStream(m.Positions, count, remap)
	m.TangentSpaces = remapStream(m.TangentSpaces, count, remap)
	for ch := range m.TexCoords {
		m.TexCoords[ch] = remapStream(m.TexCoords[ch], count, remap)
	}
	m.Colors = remapStream(m.Colors, count, remap)
	m.BoneIndices = remapStream(m.BoneIndices, count, remap)
	m.BoneWeights = remapStream(m.BoneWeights, count, remap)
}

func remapStream[T any](stream []T, count int, remap []uint32) []T {
	if len(stream) == 0 {
		return stream
	}
	return meshopt.RemapVertexBuffer(stream, count, remap)
}
