package formats

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	xencoding "golang.org/x/text/encoding"

	"github.com/Faultbox/resmesh/pkg/encoding"
)

// reader wraps a byte reader and remembers the first error, so parsers can
// read field after field and check once per section. Short reads report
// the format's own truncation error.
type reader struct {
	r         *bytes.Reader
	enc       xencoding.Encoding
	err       error
	truncated error
}

func newReader(data []byte, enc xencoding.Encoding, truncated error) *reader {
	return &reader{r: bytes.NewReader(data), enc: enc, truncated: truncated}
}

func (r *reader) read(v any) {
	if r.err != nil {
		return
	}
	if err := binary.Read(r.r, binary.LittleEndian, v); err != nil {
		r.err = r.truncated
	}
}

func (r *reader) int32() int32 {
	var v int32
	r.read(&v)
	return v
}

func (r *reader) uint8() uint8 {
	var v uint8
	r.read(&v)
	return v
}

func (r *reader) skip(n int64) {
	if r.err != nil {
		return
	}
	if n < 0 || int64(r.r.Len()) < n {
		r.err = r.truncated
		return
	}
	r.r.Seek(n, io.SeekCurrent)
}

// name reads a fixed-size, NUL padded string and normalizes it as a path.
func (r *reader) name(size int) string {
	buf := make([]byte, size)
	r.read(buf)
	if r.err != nil {
		return ""
	}
	return encoding.NormalizePath(encoding.FixedString(r.enc, buf))
}

// count reads an element count and rejects values outside [0, limit].
func (r *reader) count(what string, limit int32) int {
	n := r.int32()
	if r.err != nil {
		return 0
	}
	if n < 0 || n > limit {
		r.err = fmt.Errorf("%w: %s count %d", r.truncated, what, n)
		return 0
	}
	return int(n)
}

// remaining reports the number of unread bytes.
func (r *reader) remaining() int {
	return r.r.Len()
}
