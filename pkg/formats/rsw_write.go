package formats

import (
	"bytes"
	"encoding/binary"
	"io"
)

// WriteRSW encodes rsw in the layout ParseRSW reads, for rsw.Version.
// Only models are written; environment sections are zero filled.
func WriteRSW(w io.Writer, rsw *RSW) error {
	var buf bytes.Buffer
	le := binary.LittleEndian
	v := rsw.Version

	buf.WriteString("GRSW")
	buf.WriteByte(v.Major)
	buf.WriteByte(v.Minor)
	switch {
	case v.AtLeast(2, 5):
		binary.Write(&buf, le, v.BuildNumber)
		buf.WriteByte(0)
	case v.AtLeast(2, 2):
		buf.WriteByte(uint8(v.BuildNumber))
	}

	writeName(&buf, rsw.IniFile, rswFileNameLength)
	writeName(&buf, rsw.GndFile, rswFileNameLength)
	if v.AtLeast(1, 4) {
		writeName(&buf, rsw.GatFile, rswFileNameLength)
		writeName(&buf, rsw.SrcFile, rswFileNameLength)
	}
	if v.AtLeast(1, 3) && !v.AtLeast(2, 6) {
		binary.Write(&buf, le, rsw.WaterLevel)
		buf.Write(make([]byte, 20))
	}
	if v.AtLeast(1, 5) {
		buf.Write(make([]byte, 32))
	}
	if v.AtLeast(1, 7) {
		buf.Write(make([]byte, 4))
	}
	if v.AtLeast(1, 6) {
		buf.Write(make([]byte, 16))
	}

	binary.Write(&buf, le, int32(len(rsw.Models)))
	for _, m := range rsw.Models {
		binary.Write(&buf, le, RSWObjectModel)
		writeName(&buf, m.Name, rswObjectName)
		buf.Write(make([]byte, 12))
		if v.AtLeast(2, 6) && v.BuildNumber >= rswBuildNumberFlag {
			buf.WriteByte(0)
		}
		writeName(&buf, m.ModelName, rswLongName)
		writeName(&buf, m.NodeName, rswLongName)
		binary.Write(&buf, le, m.Position)
		binary.Write(&buf, le, m.Rotation)
		binary.Write(&buf, le, m.Scale)
	}

	_, err := w.Write(buf.Bytes())
	return err
}
