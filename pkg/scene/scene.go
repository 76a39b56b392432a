// Package scene holds the imported scene the converter consumes and the
// importers that produce it.
//
// A scene is already triangulated and carries one vertex per face corner
// unless the source format shares vertices itself. Every optional vertex
// channel is either present for all vertices of a mesh or absent (nil).
package scene

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Faultbox/resmesh/pkg/resmodel"
)

// Import errors.
var (
	ErrUnsupportedFormat = errors.New("unsupported scene format")
	ErrEmptyScene        = errors.New("scene contains no meshes")
)

// MaxTexCoords is the number of texture coordinate channels an importer fills.
const MaxTexCoords = resmodel.MaxTexCoords

// VertexWeight is one weight a bone applies to a vertex.
type VertexWeight struct {
	VertexID uint32
	Weight   float32
}

// Bone lists the vertices a bone influences. The position of a bone in
// Mesh.Bones is its ordinal.
type Bone struct {
	Name    string
	Weights []VertexWeight
}

// Mesh is one imported mesh with a single material.
type Mesh struct {
	Name string

	Positions [][3]float32
	Normals   [][3]float32
	Tangents  [][3]float32
	// TangentSigns holds the bitangent handedness (+1 or -1) of each
	// tangent; nil means +1 everywhere.
	TangentSigns []float32
	TexCoords    [MaxTexCoords][][2]float32
	Colors       [][4]float32

	Bones []Bone

	// Faces holds vertex indices per face; converted meshes must be
	// triangulated.
	Faces [][]uint32

	MaterialIndex int
}

// HasNormals reports whether the normal channel is present.
func (m *Mesh) HasNormals() bool { return len(m.Normals) > 0 }

// HasTangents reports whether the tangent channel is present.
func (m *Mesh) HasTangents() bool { return len(m.Tangents) > 0 }

// TangentSign returns the handedness of vertex i.
func (m *Mesh) TangentSign(i int) float32 {
	if i < len(m.TangentSigns) && m.TangentSigns[i] < 0 {
		return -1
	}
	return 1
}

// HasTexCoords reports whether texture channel i is present.
func (m *Mesh) HasTexCoords(i int) bool {
	return i >= 0 && i < MaxTexCoords && len(m.TexCoords[i]) > 0
}

// HasColors reports whether the vertex color channel is present.
func (m *Mesh) HasColors() bool { return len(m.Colors) > 0 }

// HasBones reports whether any bone influences the mesh.
func (m *Mesh) HasBones() bool { return len(m.Bones) > 0 }

// Material is an imported material. An empty Name means the source did not
// provide one.
type Material struct {
	Name    string
	Diffuse [4]float32
	Opacity float32

	// Textures maps a usage slot to its bound paths in binding order.
	Textures map[resmodel.TextureUsage][]string
}

// AddTexture binds path to usage after any existing bindings.
func (m *Material) AddTexture(usage resmodel.TextureUsage, path string) {
	if m.Textures == nil {
		m.Textures = make(map[resmodel.TextureUsage][]string)
	}
	m.Textures[usage] = append(m.Textures[usage], path)
}

// Scene is an imported scene.
type Scene struct {
	Meshes    []Mesh
	Materials []Material

	// Warnings lists recoverable problems met while importing, such as
	// referenced files that do not exist.
	Warnings []string
}

// Options controls importing.
type Options struct {
	// Charset decodes names in formats that store legacy code pages.
	Charset string
	// GenerateNormals computes smooth normals for meshes without them.
	GenerateNormals bool
	// GenerateTangents computes tangents from texcoord channel 0.
	GenerateTangents bool
	// MergeMaterials folds materials with identical content into one.
	MergeMaterials bool
}

// DefaultOptions returns the options the converter uses.
func DefaultOptions() Options {
	return Options{
		GenerateNormals:  true,
		GenerateTangents: true,
		MergeMaterials:   true,
	}
}

// Importer reads the scene stored as name in fsys. Files the scene
// references, such as material libraries or buffers, are resolved
// relative to name within fsys.
type Importer interface {
	Import(fsys fs.FS, name string, opts Options) (*Scene, error)
}

var importers = map[string]Importer{
	".obj":  objImporter{},
	".rsm":  rsmImporter{},
	".gltf": gltfImporter{},
	".glb":  gltfImporter{},
	".gnd":  gndImporter{},
	".rsw":  rswImporter{},
}

// Register adds or replaces the importer for a file extension.
func Register(ext string, imp Importer) {
	importers[strings.ToLower(ext)] = imp
}

// Extensions lists the registered file extensions.
func Extensions() []string {
	exts := make([]string, 0, len(importers))
	for ext := range importers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Load imports path with the importer registered for its extension and
// runs the post-processing steps selected in opts.
func Load(path string, opts Options) (*Scene, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return LoadFS(os.DirFS(filepath.Dir(path)), filepath.Base(path), opts)
}

// LoadFS is Load for a scene stored in fsys, such as a GRF archive.
func LoadFS(fsys fs.FS, name string, opts Options) (*Scene, error) {
	ext := strings.ToLower(filepath.Ext(name))
	imp, ok := importers[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	s, err := imp.Import(fsys, name, opts)
	if err != nil {
		return nil, err
	}
	if len(s.Meshes) == 0 {
		return nil, ErrEmptyScene
	}

	PostProcess(s, opts)
	return s, nil
}
