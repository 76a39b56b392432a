package grf

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"
	"strings"
)

// File is one entry to store with Write.
type File struct {
	Name string
	Data []byte
}

// Write stores files as a GRF 0x200 archive with zlib compressed entries.
// Names are written with backslash separators as the game client expects.
func Write(w io.Writer, files []File) error {
	var (
		body  bytes.Buffer
		table bytes.Buffer
	)

	for _, f := range files {
		compressed, err := deflate(f.Data)
		if err != nil {
			return err
		}
		aligned := (len(compressed) + 7) &^ 7
		offset := uint32(body.Len())
		body.Write(compressed)
		body.Write(make([]byte, aligned-len(compressed)))

		table.WriteString(strings.ReplaceAll(f.Name, "/", "\\"))
		table.WriteByte(0)
		binary.Write(&table, binary.LittleEndian, uint32(len(compressed)))
		binary.Write(&table, binary.LittleEndian, uint32(aligned))
		binary.Write(&table, binary.LittleEndian, uint32(len(f.Data)))
		table.WriteByte(flagFile)
		binary.Write(&table, binary.LittleEndian, offset)
	}

	packedTable, err := deflate(table.Bytes())
	if err != nil {
		return err
	}

	var h Header
	copy(h.Magic[:], magic)
	h.TableOffset = uint32(body.Len())
	h.FileCount = uint32(len(files)) + 7
	h.Version = version

	var out bytes.Buffer
	binary.Write(&out, binary.LittleEndian, &h)
	out.Write(body.Bytes())
	binary.Write(&out, binary.LittleEndian, uint32(len(packedTable)))
	binary.Write(&out, binary.LittleEndian, uint32(table.Len()))
	out.Write(packedTable)

	_, err = w.Write(out.Bytes())
	return err
}

func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
