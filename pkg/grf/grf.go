// Package grf reads GRF 0x200 archives, the container legacy RSM models and
// their textures ship in.
//
// An Archive implements io/fs.FS so importers can read scenes out of it the
// same way they read them from a directory. Entry names are matched case
// insensitively with forward slashes.
package grf

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	xencoding "golang.org/x/text/encoding"
)

const (
	magic      = "Master of Magic"
	version    = 0x200
	headerSize = 46

	flagFile      = 0x01
	flagEncrypted = 0x02 | 0x04
)

// Archive errors.
var (
	ErrInvalidMagic       = errors.New("invalid GRF magic")
	ErrUnsupportedVersion = errors.New("unsupported GRF version")
	ErrCorruptTable       = errors.New("corrupt GRF file table")
	ErrEncryptedEntry     = errors.New("encrypted GRF entries are not supported")
)

// Header is the fixed archive header.
type Header struct {
	Magic         [15]byte
	EncryptionKey [15]byte
	TableOffset   uint32
	Seed          uint32
	FileCount     uint32
	Version       uint32
}

// Entry describes one stored file.
type Entry struct {
	Name             string
	CompressedSize   uint32
	AlignedSize      uint32
	UncompressedSize uint32
	Flags            uint8
	Offset           uint32
}

// Archive is an opened GRF archive.
type Archive struct {
	r       io.ReaderAt
	closer  io.Closer
	header  Header
	entries map[string]*Entry
}

// Open opens the archive at path. Entry names are decoded with enc; a nil
// enc keeps the stored bytes.
func Open(path string, enc xencoding.Encoding) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	a, err := NewArchive(f, enc)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	a.closer = f
	return a, nil
}

// NewArchive reads the header and file table from r.
func NewArchive(r io.ReaderAt, enc xencoding.Encoding) (*Archive, error) {
	a := &Archive{r: r, entries: make(map[string]*Entry)}

	if err := binary.Read(io.NewSectionReader(r, 0, headerSize), binary.LittleEndian, &a.header); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if string(a.header.Magic[:]) != magic {
		return nil, ErrInvalidMagic
	}
	if a.header.Version != version {
		return nil, fmt.Errorf("%w: 0x%x", ErrUnsupportedVersion, a.header.Version)
	}
	if err := a.readTable(enc); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Archive) readTable(enc xencoding.Encoding) error {
	base := int64(a.header.TableOffset) + headerSize

	var sizes [2]uint32
	if err := binary.Read(io.NewSectionReader(a.r, base, 8), binary.LittleEndian, &sizes); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptTable, err)
	}
	table, err := inflate(io.NewSectionReader(a.r, base+8, int64(sizes[0])), sizes[1])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptTable, err)
	}

	count := int64(a.header.FileCount) - int64(a.header.Seed) - 7
	for i := int64(0); i < count; i++ {
		end := bytes.IndexByte(table, 0)
		if end < 0 || end+1+17 > len(table) {
			return fmt.Errorf("%w: entry %d truncated", ErrCorruptTable, i)
		}
		name := table[:end]
		rec := table[end+1:]
		table = rec[17:]

		if enc != nil {
			if decoded, err := enc.NewDecoder().Bytes(name); err == nil {
				name = decoded
			}
		}
		e := &Entry{
			Name:             NormalizeName(string(name)),
			CompressedSize:   binary.LittleEndian.Uint32(rec),
			AlignedSize:      binary.LittleEndian.Uint32(rec[4:]),
			UncompressedSize: binary.LittleEndian.Uint32(rec[8:]),
			Flags:            rec[12],
			Offset:           binary.LittleEndian.Uint32(rec[13:]),
		}
		if e.Flags&flagFile != 0 {
			a.entries[e.Name] = e
		}
	}
	return nil
}

// Close closes the underlying file when the archive was opened by path.
func (a *Archive) Close() error {
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

// Header returns the archive header.
func (a *Archive) Header() Header { return a.header }

// List returns the stored file names in sorted order.
func (a *Archive) List() []string {
	names := make([]string, 0, len(a.entries))
	for name := range a.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Contains reports whether name is stored in the archive.
func (a *Archive) Contains(name string) bool {
	_, ok := a.entries[NormalizeName(name)]
	return ok
}

// ReadFile returns the uncompressed content of name.
func (a *Archive) ReadFile(name string) ([]byte, error) {
	e, ok := a.entries[NormalizeName(name)]
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrNotExist}
	}
	if e.Flags&flagEncrypted != 0 {
		return nil, &fs.PathError{Op: "read", Path: name, Err: ErrEncryptedEntry}
	}

	stored := io.NewSectionReader(a.r, int64(e.Offset)+headerSize, int64(e.CompressedSize))
	if e.CompressedSize == e.UncompressedSize {
		data := make([]byte, e.UncompressedSize)
		if _, err := io.ReadFull(stored, data); err != nil {
			return nil, &fs.PathError{Op: "read", Path: name, Err: err}
		}
		return data, nil
	}
	data, err := inflate(stored, e.UncompressedSize)
	if err != nil {
		return nil, &fs.PathError{Op: "read", Path: name, Err: err}
	}
	return data, nil
}

// Open implements fs.FS. Directories are not listed.
func (a *Archive) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	data, err := a.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return &file{Reader: bytes.NewReader(data), name: path.Base(name), size: int64(len(data))}, nil
}

// ReadFile lets fs.ReadFile skip the copy through Open.
var _ fs.ReadFileFS = (*Archive)(nil)

func inflate(r io.Reader, size uint32) ([]byte, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	data := make([]byte, size)
	if _, err := io.ReadFull(zr, data); err != nil {
		return nil, err
	}
	return data, nil
}

// NormalizeName returns the canonical form of an entry name: forward
// slashes, lower case.
func NormalizeName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "\\", "/"))
}

// file is an archive entry opened through fs.FS.
type file struct {
	*bytes.Reader
	name string
	size int64
}

func (f *file) Stat() (fs.FileInfo, error) { return f, nil }
func (f *file) Close() error               { return nil }

func (f *file) Name() string       { return f.name }
func (f *file) Size() int64        { return f.size }
func (f *file) Mode() fs.FileMode  { return 0o444 }
func (f *file) ModTime() time.Time { return time.Time{} }
func (f *file) IsDir() bool        { return false }
func (f *file) Sys() any           { return nil }
