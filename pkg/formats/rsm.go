// Package formats provides parsers for the binary model formats the
// converter can import: Ragnarok Online models (RSM), ground (GND) and
// world (RSW) files, and glTF 2.0.
package formats

import (
	"errors"
	"fmt"

	xencoding "golang.org/x/text/encoding"
)

// RSM format errors.
var (
	ErrInvalidRSMMagic       = errors.New("invalid RSM magic: expected 'GRSM'")
	ErrUnsupportedRSMVersion = errors.New("unsupported RSM version")
	ErrTruncatedRSMData      = errors.New("truncated RSM data")
	ErrInvalidNodeCount      = errors.New("invalid RSM node count")
)

// Sanity caps on element counts; real models stay far below them.
const (
	maxRSMNodes     = 10000
	maxRSMTextures  = 1000
	maxRSMElements  = 100000
	maxRSMKeyframes = 10000
	rsmNameLength   = 40
)

// RSMVersion represents the RSM file version.
type RSMVersion struct {
	Major uint8
	Minor uint8
}

// String returns the version as "Major.Minor".
func (v RSMVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// AtLeast returns true if version is >= major.minor.
func (v RSMVersion) AtLeast(major, minor uint8) bool {
	return v.Major > major || (v.Major == major && v.Minor >= minor)
}

// RSMTexCoord is a texture coordinate with its vertex color.
type RSMTexCoord struct {
	Color [4]uint8 // BGRA, white before v1.2
	U, V  float32
}

// RSMFace is a triangle of a node.
type RSMFace struct {
	VertexIDs   [3]uint16
	TexCoordIDs [3]uint16
	TextureID   uint16 // index into RSMNode.TextureIDs
	TwoSide     int32
	SmoothGroup int32
}

// RSMNode is one node of the model hierarchy.
type RSMNode struct {
	Name       string
	Parent     string
	TextureIDs []int32 // indices into RSM.Textures

	Matrix   [9]float32 // 3x3, column-major
	Offset   [3]float32
	Position [3]float32
	RotAngle float32
	RotAxis  [3]float32
	Scale    [3]float32

	Vertices  [][3]float32
	TexCoords []RSMTexCoord
	Faces     []RSMFace

	// Rotation keyframes; position and scale keyframes are skipped since
	// only the bind pose is converted.
	RotKeys []RSMRotKeyframe
}

// RSMRotKeyframe is a rotation keyframe.
type RSMRotKeyframe struct {
	Frame      int32
	Quaternion [4]float32 // x, y, z, w
}

// RSM is a parsed RSM file.
type RSM struct {
	Version  RSMVersion
	Alpha    float32
	Textures []string
	RootNode string
	Nodes    []RSMNode
}

// ParseRSM parses RSM data. Names are decoded with enc; nil keeps raw bytes.
func ParseRSM(data []byte, enc xencoding.Encoding) (*RSM, error) {
	if len(data) < 6 {
		return nil, ErrTruncatedRSMData
	}
	if string(data[:4]) != "GRSM" {
		return nil, ErrInvalidRSMMagic
	}

	rsm := &RSM{Version: RSMVersion{Major: data[4], Minor: data[5]}}
	if rsm.Version.Major < 1 || rsm.Version.Major > 2 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRSMVersion, rsm.Version)
	}

	r := newReader(data[6:], enc, ErrTruncatedRSMData)

	r.skip(4) // animation length
	r.skip(4) // shading type

	rsm.Alpha = 1
	if rsm.Version.AtLeast(1, 4) {
		var alpha uint8
		r.read(&alpha)
		rsm.Alpha = float32(alpha) / 255
	}

	r.skip(16) // reserved

	textureCount := r.count("texture", maxRSMTextures)
	rsm.Textures = make([]string, textureCount)
	for i := range rsm.Textures {
		rsm.Textures[i] = r.name(rsmNameLength)
	}

	rsm.RootNode = r.name(rsmNameLength)

	nodeCount := r.int32()
	if r.err != nil {
		return nil, r.err
	}
	if nodeCount < 0 || nodeCount > maxRSMNodes {
		return nil, ErrInvalidNodeCount
	}

	rsm.Nodes = make([]RSMNode, nodeCount)
	for i := range rsm.Nodes {
		if err := parseRSMNode(r, rsm.Version, &rsm.Nodes[i]); err != nil {
			return nil, fmt.Errorf("parsing node %d: %w", i, err)
		}
	}

	return rsm, nil
}

// parseRSMNode parses a single node.
func parseRSMNode(r *reader, version RSMVersion, node *RSMNode) error {
	node.Name = r.name(rsmNameLength)
	node.Parent = r.name(rsmNameLength)

	node.TextureIDs = make([]int32, r.count("texture id", maxRSMTextures))
	for i := range node.TextureIDs {
		node.TextureIDs[i] = r.int32()
	}

	r.read(&node.Matrix)
	r.read(&node.Offset)
	r.read(&node.Position)
	r.read(&node.RotAngle)
	r.read(&node.RotAxis)
	r.read(&node.Scale)

	node.Vertices = make([][3]float32, r.count("vertex", maxRSMElements))
	for i := range node.Vertices {
		r.read(&node.Vertices[i])
	}

	node.TexCoords = make([]RSMTexCoord, r.count("texcoord", maxRSMElements))
	for i := range node.TexCoords {
		tc := &node.TexCoords[i]
		if version.AtLeast(1, 2) {
			r.read(&tc.Color)
		} else {
			tc.Color = [4]uint8{255, 255, 255, 255}
		}
		r.read(&tc.U)
		r.read(&tc.V)
	}

	node.Faces = make([]RSMFace, r.count("face", maxRSMElements))
	for i := range node.Faces {
		face := &node.Faces[i]
		r.read(&face.VertexIDs)
		r.read(&face.TexCoordIDs)
		r.read(&face.TextureID)
		r.skip(2) // padding
		r.read(&face.TwoSide)
		if version.AtLeast(1, 2) {
			r.read(&face.SmoothGroup)
		}
	}

	// Position keyframes (before v1.5): frame + xyz
	if !version.AtLeast(1, 5) {
		n := r.count("position key", maxRSMKeyframes)
		r.skip(int64(n) * 16)
	}

	// Rotation keyframes: frame + quaternion
	node.RotKeys = make([]RSMRotKeyframe, r.count("rotation key", maxRSMKeyframes))
	for i := range node.RotKeys {
		r.read(&node.RotKeys[i].Frame)
		r.read(&node.RotKeys[i].Quaternion)
	}

	// Scale keyframes (v1.5+): frame + xyz
	if version.AtLeast(1, 5) {
		n := r.count("scale key", maxRSMKeyframes)
		r.skip(int64(n) * 16)
	}

	return r.err
}

// NodeByName returns a node by its name, or nil if not found.
func (rsm *RSM) NodeByName(name string) *RSMNode {
	for i := range rsm.Nodes {
		if rsm.Nodes[i].Name == name {
			return &rsm.Nodes[i]
		}
	}
	return nil
}

// TotalFaceCount returns the number of faces across all nodes.
func (rsm *RSM) TotalFaceCount() int {
	total := 0
	for _, node := range rsm.Nodes {
		total += len(node.Faces)
	}
	return total
}
