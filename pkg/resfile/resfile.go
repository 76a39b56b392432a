// Package resfile reads and writes converted models.
//
// A file is little-endian throughout:
//
//	magic "RMSH", version uint16, layout uint8, reserved uint8
//	material count uint32, then per material:
//	    name, hash uint32, texture count uint32, (usage uint8, path)...
//	mesh count uint32, then per mesh:
//	    kind uint8, channels uint8, reserved uint16
//	    mesh hash uint32, material hash uint32, vertex count uint32
//	    vertex data (split streams or interleaved vertices)
//	    index count uint32, indices uint32...
//	    primitive count uint32, packed primitives uint32...
//	    meshlet count uint32, meshlets, culling infos
//
// Strings are a uint16 byte length followed by UTF-8 bytes.
package resfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Faultbox/resmesh/pkg/resmodel"
)

// Magic identifies a model file.
const Magic = "RMSH"

// Version is the file version written by Write.
const Version = 1

// File errors.
var (
	ErrInvalidMagic       = errors.New("invalid model magic: expected 'RMSH'")
	ErrUnsupportedVersion = errors.New("unsupported model file version")
	ErrTruncatedData      = errors.New("truncated model data")
	ErrInvalidRecord      = errors.New("invalid mesh record")
)

// Sanity caps on element counts.
const (
	maxMaterials = 1 << 16
	maxMeshes    = 1 << 16
	maxTextures  = 1 << 10
	maxElements  = 1 << 26
)

// Channel bits of a mesh record.
const (
	channelTangentSpace uint8 = 1 << iota
	channelTexCoord0
	channelTexCoord1
	channelTexCoord2
	channelTexCoord3
	channelColor
	channelBones
)

// Header is the fixed start of a model file.
type Header struct {
	Version uint16
	Layout  resmodel.Layout
}

func channels(m *resmodel.Mesh) uint8 {
	var c uint8
	if len(m.TangentSpaces) > 0 {
		c |= channelTangentSpace
	}
	for i := range m.TexCoords {
		if len(m.TexCoords[i]) > 0 {
			c |= channelTexCoord0 << i
		}
	}
	if len(m.Colors) > 0 {
		c |= channelColor
	}
	if m.IsSkinned() {
		c |= channelBones
	}
	return c
}

// Save writes model to path. The data goes to a temporary file in the same
// directory that is renamed over path once complete, so a failed save
// leaves no partial file behind.
func Save(path string, model *resmodel.Model, layout resmodel.Layout) error {
	var buf bytes.Buffer
	if err := Write(&buf, model, layout); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Load reads the model file at path.
func Load(path string) (*resmodel.Model, Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Header{}, err
	}
	return Read(bytes.NewReader(data))
}

// Write encodes model with every mesh in the record form layout selects.
func Write(w io.Writer, model *resmodel.Model, layout resmodel.Layout) error {
	bw := &writer{}

	bw.write([]byte(Magic))
	bw.write(uint16(Version))
	bw.write(uint8(layout))
	bw.write(uint8(0))

	bw.write(uint32(len(model.Materials)))
	for _, mat := range model.Materials {
		bw.string(mat.Name)
		bw.write(mat.Hash)
		bw.write(uint32(len(mat.Textures)))
		for _, tex := range mat.Textures {
			bw.write(uint8(tex.Usage))
			bw.string(tex.Path)
		}
	}

	bw.write(uint32(len(model.Meshes)))
	for i := range model.Meshes {
		mesh := &model.Meshes[i]
		if err := mesh.Validate(); err != nil {
			return fmt.Errorf("mesh %d: %w", i, err)
		}
		bw.record(mesh.Record(layout))
	}

	if bw.err != nil {
		return bw.err
	}
	_, err := w.Write(bw.buf.Bytes())
	return err
}

// writer is the encoding counterpart of reader: the first error sticks and
// later writes are skipped.
type writer struct {
	buf bytes.Buffer
	err error
}

func (w *writer) write(v any) {
	if w.err != nil {
		return
	}
	w.err = binary.Write(&w.buf, binary.LittleEndian, v)
}

func (w *writer) string(s string) {
	if w.err != nil {
		return
	}
	if len(s) > 0xffff {
		w.err = fmt.Errorf("string of %d bytes is too long", len(s))
		return
	}
	w.write(uint16(len(s)))
	w.write([]byte(s))
}

func (w *writer) record(rec resmodel.Record) {
	m := rec.Base()

	w.write(uint8(rec.Kind()))
	w.write(channels(m))
	w.write(uint16(0))
	w.write(m.MeshHash)
	w.write(m.MaterialHash)
	w.write(uint32(len(m.Positions)))

	switch r := rec.(type) {
	case resmodel.CombinedMesh:
		w.write(r.Vertices)
	case resmodel.StaticMesh, resmodel.SkinnedMesh:
		w.write(m.Positions)
		w.write(m.TangentSpaces)
		for i := range m.TexCoords {
			w.write(m.TexCoords[i])
		}
		w.write(m.Colors)
		w.write(m.BoneIndices)
		w.write(m.BoneWeights)
	}

	w.write(uint32(len(m.Indices)))
	w.write(m.Indices)

	packed := make([]uint32, len(m.Primitives))
	for i, p := range m.Primitives {
		packed[i] = p.Pack()
	}
	w.write(uint32(len(packed)))
	w.write(packed)

	w.write(uint32(len(m.Meshlets)))
	w.write(m.Meshlets)
	w.write(m.CullingInfos)
}
