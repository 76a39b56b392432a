package assets

import (
	"bytes"
	"io/fs"
	"path"
	"time"
)

// file is a library entry opened through fs.FS.
type file struct {
	*bytes.Reader
	name string
}

func newFile(name string, r *bytes.Reader) *file {
	return &file{Reader: r, name: path.Base(name)}
}

func (f *file) Stat() (fs.FileInfo, error) { return fileInfo{f}, nil }
func (f *file) Close() error               { return nil }

type fileInfo struct{ f *file }

func (i fileInfo) Name() string       { return i.f.name }
func (i fileInfo) Size() int64        { return i.f.Reader.Size() }
func (i fileInfo) Mode() fs.FileMode  { return 0o444 }
func (i fileInfo) ModTime() time.Time { return time.Time{} }
func (i fileInfo) IsDir() bool        { return false }
func (i fileInfo) Sys() any           { return nil }
