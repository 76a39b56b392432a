package formats

import (
	"bytes"
	"encoding/binary"
	"io"
)

// WriteRSM encodes rsm in the layout ParseRSM reads, for rsm.Version.
// Names are written as raw bytes, truncated to fit their fixed fields.
// Position and scale keyframe sections are written empty.
func WriteRSM(w io.Writer, rsm *RSM) error {
	var buf bytes.Buffer
	le := binary.LittleEndian
	v := rsm.Version

	buf.WriteString("GRSM")
	buf.WriteByte(v.Major)
	buf.WriteByte(v.Minor)
	binary.Write(&buf, le, int32(0)) // animation length
	binary.Write(&buf, le, int32(0)) // shading type
	if v.AtLeast(1, 4) {
		buf.WriteByte(uint8(rsm.Alpha*255 + 0.5))
	}
	buf.Write(make([]byte, 16))

	binary.Write(&buf, le, int32(len(rsm.Textures)))
	for _, tex := range rsm.Textures {
		writeName(&buf, tex, rsmNameLength)
	}
	writeName(&buf, rsm.RootNode, rsmNameLength)

	binary.Write(&buf, le, int32(len(rsm.Nodes)))
	for i := range rsm.Nodes {
		node := &rsm.Nodes[i]
		writeName(&buf, node.Name, rsmNameLength)
		writeName(&buf, node.Parent, rsmNameLength)

		binary.Write(&buf, le, int32(len(node.TextureIDs)))
		binary.Write(&buf, le, node.TextureIDs)

		binary.Write(&buf, le, node.Matrix)
		binary.Write(&buf, le, node.Offset)
		binary.Write(&buf, le, node.Position)
		binary.Write(&buf, le, node.RotAngle)
		binary.Write(&buf, le, node.RotAxis)
		binary.Write(&buf, le, node.Scale)

		binary.Write(&buf, le, int32(len(node.Vertices)))
		binary.Write(&buf, le, node.Vertices)

		binary.Write(&buf, le, int32(len(node.TexCoords)))
		for _, tc := range node.TexCoords {
			if v.AtLeast(1, 2) {
				binary.Write(&buf, le, tc.Color)
			}
			binary.Write(&buf, le, tc.U)
			binary.Write(&buf, le, tc.V)
		}

		binary.Write(&buf, le, int32(len(node.Faces)))
		for _, f := range node.Faces {
			binary.Write(&buf, le, f.VertexIDs)
			binary.Write(&buf, le, f.TexCoordIDs)
			binary.Write(&buf, le, f.TextureID)
			binary.Write(&buf, le, uint16(0))
			binary.Write(&buf, le, f.TwoSide)
			if v.AtLeast(1, 2) {
				binary.Write(&buf, le, f.SmoothGroup)
			}
		}

		if !v.AtLeast(1, 5) {
			binary.Write(&buf, le, int32(0)) // position keys
		}
		binary.Write(&buf, le, int32(len(node.RotKeys)))
		for _, k := range node.RotKeys {
			binary.Write(&buf, le, k.Frame)
			binary.Write(&buf, le, k.Quaternion)
		}
		if v.AtLeast(1, 5) {
			binary.Write(&buf, le, int32(0)) // scale keys
		}
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// writeName writes name into a NUL terminated field of size bytes.
func writeName(buf *bytes.Buffer, name string, size int) {
	field := make([]byte, size)
	copy(field[:size-1], name)
	buf.Write(field)
}
