package encoding

import (
	"testing"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"", false},
		{"UTF-8", false},
		{"euc-kr", false},
		{"EUC_KR", false},
		{"shift-jis", false},
		{"sjis", false},
		{"latin-9000", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Lookup(tt.name)
			if (err != nil) != tt.wantErr {
				t.Errorf("Lookup(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
		})
	}
}

func TestDecodeEUCKR(t *testing.T) {
	want := "프론테라"
	raw, _, err := transform.Bytes(korean.EUCKR.NewEncoder(), []byte(want))
	if err != nil {
		t.Fatalf("encoding test input: %v", err)
	}

	enc, _ := Lookup(EUCKR)
	if got := Decode(enc, raw); got != want {
		t.Errorf("Decode() = %q, want %q", got, want)
	}
}

func TestDecodeASCIIPassthrough(t *testing.T) {
	enc, _ := Lookup(EUCKR)
	if got := Decode(enc, []byte("wall_01")); got != "wall_01" {
		t.Errorf("Decode() = %q, want %q", got, "wall_01")
	}
}

func TestFixedString(t *testing.T) {
	data := []byte{'r', 'o', 'o', 't', 0, 'x', 'x'}
	if got := FixedString(nil, data); got != "root" {
		t.Errorf("FixedString() = %q, want %q", got, "root")
	}
}

func TestNormalizePath(t *testing.T) {
	if got := NormalizePath(`data\texture\wall.bmp`); got != "data/texture/wall.bmp" {
		t.Errorf("NormalizePath() = %q", got)
	}
}
