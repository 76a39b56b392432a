// Package encoding decodes asset names stored in legacy code pages.
package encoding

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Charset names accepted by Lookup.
const (
	UTF8     = "utf-8"
	EUCKR    = "euc-kr"
	ShiftJIS = "shift-jis"
)

// Lookup returns the decoder for a charset name. An empty name means UTF-8.
func Lookup(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.ReplaceAll(name, "_", "-")) {
	case "", UTF8, "utf8":
		return unicode.UTF8, nil
	case EUCKR, "cp949":
		return korean.EUCKR, nil
	case ShiftJIS, "sjis", "cp932":
		return japanese.ShiftJIS, nil
	default:
		return nil, fmt.Errorf("unsupported charset %q", name)
	}
}

// Decode converts data from enc to a UTF-8 string. Plain ASCII is returned
// unchanged, and so are the raw bytes when decoding fails.
func Decode(enc encoding.Encoding, data []byte) string {
	if enc == nil || isASCII(data) {
		return string(data)
	}
	result, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil || !utf8.Valid(result) {
		return string(data)
	}
	return string(result)
}

// DecodeString is Decode for a string holding raw bytes.
func DecodeString(enc encoding.Encoding, s string) string {
	return Decode(enc, []byte(s))
}

// FixedString decodes a fixed-size, NUL-padded name field.
func FixedString(enc encoding.Encoding, data []byte) string {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return Decode(enc, data)
}

// NormalizePath converts a Windows-style asset path to forward slashes.
func NormalizePath(path string) string {
	return strings.ReplaceAll(path, "\\", "/")
}

func isASCII(data []byte) bool {
	for _, b := range data {
		if b >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
