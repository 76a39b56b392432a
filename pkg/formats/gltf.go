package formats

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// glTF format errors.
var (
	ErrInvalidGLBMagic        = errors.New("invalid GLB magic: expected 'glTF'")
	ErrUnsupportedGLTFVersion = errors.New("unsupported glTF version")
	ErrTruncatedGLBData       = errors.New("truncated GLB data")
	ErrInvalidAccessor        = errors.New("invalid glTF accessor")
)

const (
	glbMagic      = 0x46546C67 // "glTF"
	glbChunkJSON  = 0x4E4F534A // "JSON"
	glbChunkBIN   = 0x004E4942 // "BIN\0"
	glbHeaderSize = 12
)

// Accessor component types.
const (
	GLTFByte          = 5120
	GLTFUnsignedByte  = 5121
	GLTFShort         = 5122
	GLTFUnsignedShort = 5123
	GLTFUnsignedInt   = 5125
	GLTFFloat         = 5126
)

// Primitive modes.
const (
	GLTFModePoints        = 0
	GLTFModeLines         = 1
	GLTFModeLineLoop      = 2
	GLTFModeLineStrip     = 3
	GLTFModeTriangles     = 4
	GLTFModeTriangleStrip = 5
	GLTFModeTriangleFan   = 6
)

// GLTF is a parsed glTF 2.0 document with its buffers loaded.
type GLTF struct {
	Asset       GLTFAsset        `json:"asset"`
	Nodes       []GLTFNode       `json:"nodes,omitempty"`
	Meshes      []GLTFMesh       `json:"meshes,omitempty"`
	Accessors   []GLTFAccessor   `json:"accessors,omitempty"`
	BufferViews []GLTFBufferView `json:"bufferViews,omitempty"`
	Buffers     []GLTFBuffer     `json:"buffers,omitempty"`
	Materials   []GLTFMaterial   `json:"materials,omitempty"`
	Textures    []GLTFTexture    `json:"textures,omitempty"`
	Images      []GLTFImage      `json:"images,omitempty"`
	Skins       []GLTFSkin       `json:"skins,omitempty"`
}

// GLTFAsset holds the asset metadata.
type GLTFAsset struct {
	Version   string `json:"version"`
	Generator string `json:"generator,omitempty"`
}

// GLTFNode is a scene graph node.
type GLTFNode struct {
	Name     string `json:"name,omitempty"`
	Children []int  `json:"children,omitempty"`
	Mesh     *int   `json:"mesh,omitempty"`
	Skin     *int   `json:"skin,omitempty"`
}

// GLTFMesh is a mesh made of primitives.
type GLTFMesh struct {
	Name       string          `json:"name,omitempty"`
	Primitives []GLTFPrimitive `json:"primitives"`
}

// GLTFPrimitive is one draw call worth of geometry.
type GLTFPrimitive struct {
	Attributes map[string]int `json:"attributes"`
	Indices    *int           `json:"indices,omitempty"`
	Material   *int           `json:"material,omitempty"`
	Mode       *int           `json:"mode,omitempty"`
}

// PrimitiveMode returns the primitive mode, defaulting to triangles.
func (p *GLTFPrimitive) PrimitiveMode() int {
	if p.Mode == nil {
		return GLTFModeTriangles
	}
	return *p.Mode
}

// GLTFAccessor describes typed data inside a buffer view.
type GLTFAccessor struct {
	BufferView    *int   `json:"bufferView,omitempty"`
	ByteOffset    int    `json:"byteOffset,omitempty"`
	ComponentType int    `json:"componentType"`
	Normalized    bool   `json:"normalized,omitempty"`
	Count         int    `json:"count"`
	Type          string `json:"type"`
}

// GLTFBufferView is a slice of a buffer.
type GLTFBufferView struct {
	Buffer     int `json:"buffer"`
	ByteOffset int `json:"byteOffset,omitempty"`
	ByteLength int `json:"byteLength"`
	ByteStride int `json:"byteStride,omitempty"`
}

// GLTFBuffer is a binary blob; Data is filled when the document is loaded.
type GLTFBuffer struct {
	URI        string `json:"uri,omitempty"`
	ByteLength int    `json:"byteLength"`
	Data       []byte `json:"-"`
}

// GLTFTextureInfo references a texture.
type GLTFTextureInfo struct {
	Index    int `json:"index"`
	TexCoord int `json:"texCoord,omitempty"`
}

// GLTFPBR holds the metallic-roughness material model.
type GLTFPBR struct {
	BaseColorFactor          *[4]float32      `json:"baseColorFactor,omitempty"`
	BaseColorTexture         *GLTFTextureInfo `json:"baseColorTexture,omitempty"`
	MetallicRoughnessTexture *GLTFTextureInfo `json:"metallicRoughnessTexture,omitempty"`
}

// GLTFMaterial is a material definition.
type GLTFMaterial struct {
	Name                 string           `json:"name,omitempty"`
	PBRMetallicRoughness *GLTFPBR         `json:"pbrMetallicRoughness,omitempty"`
	NormalTexture        *GLTFTextureInfo `json:"normalTexture,omitempty"`
	OcclusionTexture     *GLTFTextureInfo `json:"occlusionTexture,omitempty"`
	EmissiveTexture      *GLTFTextureInfo `json:"emissiveTexture,omitempty"`
}

// GLTFTexture binds an image.
type GLTFTexture struct {
	Source *int `json:"source,omitempty"`
}

// GLTFImage is an image reference.
type GLTFImage struct {
	Name       string `json:"name,omitempty"`
	URI        string `json:"uri,omitempty"`
	BufferView *int   `json:"bufferView,omitempty"`
}

// GLTFSkin lists the joint nodes of a skin.
type GLTFSkin struct {
	Name   string `json:"name,omitempty"`
	Joints []int  `json:"joints"`
}

// ParseGLTF parses a glTF JSON document or a GLB container. External
// buffers are resolved relative to baseDir.
func ParseGLTF(data []byte, baseDir string) (*GLTF, error) {
	return parseGLTF(data, func(name string) ([]byte, error) {
		return os.ReadFile(filepath.Join(baseDir, filepath.FromSlash(name)))
	})
}

// ParseGLTFFS parses the glTF document name from fsys. External buffers
// are resolved relative to the directory of name.
func ParseGLTFFS(fsys fs.FS, name string) (*GLTF, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("reading glTF file: %w", err)
	}
	dir := path.Dir(name)
	return parseGLTF(data, func(uri string) ([]byte, error) {
		return fs.ReadFile(fsys, path.Join(dir, uri))
	})
}

func parseGLTF(data []byte, load func(name string) ([]byte, error)) (*GLTF, error) {
	var (
		jsonChunk []byte
		binChunk  []byte
	)

	if len(data) >= 4 && binary.LittleEndian.Uint32(data) == glbMagic {
		var err error
		jsonChunk, binChunk, err = parseGLBChunks(data)
		if err != nil {
			return nil, err
		}
	} else {
		jsonChunk = data
	}

	doc := &GLTF{}
	if err := json.Unmarshal(jsonChunk, doc); err != nil {
		return nil, fmt.Errorf("decoding glTF JSON: %w", err)
	}
	if !strings.HasPrefix(doc.Asset.Version, "2.") {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedGLTFVersion, doc.Asset.Version)
	}

	for i := range doc.Buffers {
		buf := &doc.Buffers[i]
		switch {
		case buf.URI == "" && i == 0 && binChunk != nil:
			buf.Data = binChunk
		case strings.HasPrefix(buf.URI, "data:"):
			comma := strings.IndexByte(buf.URI, ',')
			if comma < 0 || !strings.Contains(buf.URI[:comma], ";base64") {
				return nil, fmt.Errorf("buffer %d: unsupported data URI", i)
			}
			decoded, err := base64.StdEncoding.DecodeString(buf.URI[comma+1:])
			if err != nil {
				return nil, fmt.Errorf("buffer %d: %w", i, err)
			}
			buf.Data = decoded
		case buf.URI != "":
			name, err := url.PathUnescape(buf.URI)
			if err != nil {
				name = buf.URI
			}
			b, err := load(name)
			if err != nil {
				return nil, fmt.Errorf("buffer %d: %w", i, err)
			}
			buf.Data = b
		default:
			return nil, fmt.Errorf("buffer %d has no data", i)
		}
		if len(buf.Data) < buf.ByteLength {
			return nil, fmt.Errorf("buffer %d: %w", i, ErrTruncatedGLBData)
		}
	}

	return doc, nil
}

// parseGLBChunks splits a GLB container into its JSON and BIN chunks.
func parseGLBChunks(data []byte) ([]byte, []byte, error) {
	if len(data) < glbHeaderSize+8 {
		return nil, nil, ErrTruncatedGLBData
	}
	if binary.LittleEndian.Uint32(data[0:]) != glbMagic {
		return nil, nil, ErrInvalidGLBMagic
	}
	if v := binary.LittleEndian.Uint32(data[4:]); v != 2 {
		return nil, nil, fmt.Errorf("%w: GLB version %d", ErrUnsupportedGLTFVersion, v)
	}
	length := int(binary.LittleEndian.Uint32(data[8:]))
	if length > len(data) {
		return nil, nil, ErrTruncatedGLBData
	}

	var jsonChunk, binChunk []byte
	offset := glbHeaderSize
	for offset+8 <= length {
		chunkLength := int(binary.LittleEndian.Uint32(data[offset:]))
		chunkType := binary.LittleEndian.Uint32(data[offset+4:])
		start := offset + 8
		if chunkLength < 0 || start+chunkLength > length {
			return nil, nil, ErrTruncatedGLBData
		}
		switch chunkType {
		case glbChunkJSON:
			jsonChunk = data[start : start+chunkLength]
		case glbChunkBIN:
			binChunk = data[start : start+chunkLength]
		}
		offset = start + chunkLength
	}

	if jsonChunk == nil {
		return nil, nil, fmt.Errorf("%w: missing JSON chunk", ErrTruncatedGLBData)
	}
	return bytes.TrimRight(jsonChunk, " \x00"), binChunk, nil
}

// ParseGLTFFile parses a .gltf or .glb file from disk.
func ParseGLTFFile(path string) (*GLTF, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading glTF file: %w", err)
	}
	return ParseGLTF(data, filepath.Dir(path))
}

// accessorView is a validated accessor ready to be read.
type accessorView struct {
	acc        GLTFAccessor
	data       []byte
	components int
	size       int
	stride     int
	base       int
}

func (g *GLTF) accessor(index int) (accessorView, error) {
	if index < 0 || index >= len(g.Accessors) {
		return accessorView{}, fmt.Errorf("%w: index %d", ErrInvalidAccessor, index)
	}
	acc := g.Accessors[index]
	if acc.BufferView == nil {
		return accessorView{}, fmt.Errorf("%w: accessor %d has no buffer view", ErrInvalidAccessor, index)
	}
	if *acc.BufferView < 0 || *acc.BufferView >= len(g.BufferViews) {
		return accessorView{}, fmt.Errorf("%w: accessor %d buffer view %d", ErrInvalidAccessor, index, *acc.BufferView)
	}
	view := g.BufferViews[*acc.BufferView]
	if view.Buffer < 0 || view.Buffer >= len(g.Buffers) {
		return accessorView{}, fmt.Errorf("%w: buffer %d", ErrInvalidAccessor, view.Buffer)
	}
	buf := g.Buffers[view.Buffer].Data
	if view.ByteOffset < 0 || view.ByteLength < 0 || view.ByteOffset+view.ByteLength > len(buf) {
		return accessorView{}, fmt.Errorf("%w: buffer view outside buffer", ErrInvalidAccessor)
	}

	components, err := componentCount(acc.Type)
	if err != nil {
		return accessorView{}, err
	}
	size, err := componentSize(acc.ComponentType)
	if err != nil {
		return accessorView{}, err
	}
	elem := components * size
	stride := view.ByteStride
	if stride == 0 {
		stride = elem
	}
	if stride < elem {
		return accessorView{}, fmt.Errorf("%w: stride %d below element size %d", ErrInvalidAccessor, stride, elem)
	}

	data := buf[view.ByteOffset : view.ByteOffset+view.ByteLength]
	if acc.Count < 0 || acc.ByteOffset < 0 {
		return accessorView{}, fmt.Errorf("%w: accessor %d", ErrInvalidAccessor, index)
	}
	if acc.Count > 0 && acc.ByteOffset+(acc.Count-1)*stride+elem > len(data) {
		return accessorView{}, fmt.Errorf("%w: accessor %d exceeds buffer view", ErrInvalidAccessor, index)
	}

	return accessorView{acc: acc, data: data, components: components, size: size, stride: stride, base: acc.ByteOffset}, nil
}

// ReadFloats reads accessor index as float rows, applying normalization.
func (g *GLTF) ReadFloats(index int) ([][]float32, error) {
	v, err := g.accessor(index)
	if err != nil {
		return nil, err
	}
	rows := make([][]float32, v.acc.Count)
	for i := range rows {
		row := make([]float32, v.components)
		at := v.base + i*v.stride
		for c := range row {
			row[c] = readFloatComponent(v.acc, v.data[at+c*v.size:])
		}
		rows[i] = row
	}
	return rows, nil
}

// ReadInts reads accessor index as integer rows. Float components are
// rejected.
func (g *GLTF) ReadInts(index int) ([][]uint32, error) {
	v, err := g.accessor(index)
	if err != nil {
		return nil, err
	}
	if v.acc.ComponentType == GLTFFloat {
		return nil, fmt.Errorf("%w: accessor %d is not integral", ErrInvalidAccessor, index)
	}
	rows := make([][]uint32, v.acc.Count)
	for i := range rows {
		row := make([]uint32, v.components)
		at := v.base + i*v.stride
		for c := range row {
			row[c] = readIntComponent(v.acc.ComponentType, v.data[at+c*v.size:])
		}
		rows[i] = row
	}
	return rows, nil
}

// ImageName returns a path for the image bound by texture index. Embedded
// images are named "*N" after their image index.
func (g *GLTF) ImageName(texture int) (string, bool) {
	if texture < 0 || texture >= len(g.Textures) || g.Textures[texture].Source == nil {
		return "", false
	}
	src := *g.Textures[texture].Source
	if src < 0 || src >= len(g.Images) {
		return "", false
	}
	img := g.Images[src]
	if img.URI != "" && !strings.HasPrefix(img.URI, "data:") {
		if name, err := url.PathUnescape(img.URI); err == nil {
			return name, true
		}
		return img.URI, true
	}
	return fmt.Sprintf("*%d", src), true
}

func componentCount(typeName string) (int, error) {
	switch typeName {
	case "SCALAR":
		return 1, nil
	case "VEC2":
		return 2, nil
	case "VEC3":
		return 3, nil
	case "VEC4":
		return 4, nil
	}
	return 0, fmt.Errorf("%w: type %q", ErrInvalidAccessor, typeName)
}

func componentSize(componentType int) (int, error) {
	switch componentType {
	case GLTFByte, GLTFUnsignedByte:
		return 1, nil
	case GLTFShort, GLTFUnsignedShort:
		return 2, nil
	case GLTFUnsignedInt, GLTFFloat:
		return 4, nil
	}
	return 0, fmt.Errorf("%w: component type %d", ErrInvalidAccessor, componentType)
}

func readFloatComponent(acc GLTFAccessor, b []byte) float32 {
	switch acc.ComponentType {
	case GLTFFloat:
		return math.Float32frombits(binary.LittleEndian.Uint32(b))
	case GLTFByte:
		v := float32(int8(b[0]))
		if acc.Normalized {
			return max(v/127, -1)
		}
		return v
	case GLTFUnsignedByte:
		v := float32(b[0])
		if acc.Normalized {
			return v / 255
		}
		return v
	case GLTFShort:
		v := float32(int16(binary.LittleEndian.Uint16(b)))
		if acc.Normalized {
			return max(v/32767, -1)
		}
		return v
	case GLTFUnsignedShort:
		v := float32(binary.LittleEndian.Uint16(b))
		if acc.Normalized {
			return v / 65535
		}
		return v
	case GLTFUnsignedInt:
		return float32(binary.LittleEndian.Uint32(b))
	}
	return 0
}

func readIntComponent(componentType int, b []byte) uint32 {
	switch componentType {
	case GLTFByte, GLTFUnsignedByte:
		return uint32(b[0])
	case GLTFShort, GLTFUnsignedShort:
		return uint32(binary.LittleEndian.Uint16(b))
	case GLTFUnsignedInt:
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}
