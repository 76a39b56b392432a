package formats

import (
	"bytes"
	"encoding/binary"
	"io"
)

// gndNameLength is the texture name field size WriteGND uses.
const gndNameLength = 80

// WriteGND encodes gnd in the layout ParseGND reads, without lightmaps.
func WriteGND(w io.Writer, gnd *GND) error {
	var buf bytes.Buffer
	le := binary.LittleEndian

	buf.WriteString("GRGN")
	buf.WriteByte(gnd.Version.Major)
	buf.WriteByte(gnd.Version.Minor)
	binary.Write(&buf, le, gnd.Width)
	binary.Write(&buf, le, gnd.Height)
	binary.Write(&buf, le, gnd.Zoom)

	binary.Write(&buf, le, int32(len(gnd.Textures)))
	binary.Write(&buf, le, int32(gndNameLength))
	for _, tex := range gnd.Textures {
		writeName(&buf, tex, gndNameLength)
	}

	binary.Write(&buf, le, [4]int32{0, 8, 8, 1}) // lightmap count, width, height, cells

	binary.Write(&buf, le, int32(len(gnd.Surfaces)))
	binary.Write(&buf, le, gnd.Surfaces)
	binary.Write(&buf, le, gnd.Tiles)

	_, err := w.Write(buf.Bytes())
	return err
}
