package formats

import (
	"bytes"
	"errors"
	"testing"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

func sampleRSM(major, minor uint8) *RSM {
	return &RSM{
		Version:  RSMVersion{Major: major, Minor: minor},
		Alpha:    1,
		Textures: []string{"wall.bmp"},
		RootNode: "root",
		Nodes: []RSMNode{{
			Name:       "root",
			TextureIDs: []int32{0},
			Matrix:     [9]float32{1, 0, 0, 0, 1, 0, 0, 0, 1},
			Scale:      [3]float32{1, 1, 1},
			Vertices:   [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
			TexCoords: []RSMTexCoord{
				{Color: [4]uint8{255, 255, 255, 255}, U: 0, V: 0},
				{Color: [4]uint8{255, 255, 255, 255}, U: 1, V: 0},
				{Color: [4]uint8{255, 255, 255, 255}, U: 0, V: 1},
			},
			Faces: []RSMFace{{
				VertexIDs:   [3]uint16{0, 1, 2},
				TexCoordIDs: [3]uint16{0, 1, 2},
			}},
		}},
	}
}

func encodeRSM(t *testing.T, rsm *RSM) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := WriteRSM(&buf, rsm); err != nil {
		t.Fatalf("WriteRSM failed: %v", err)
	}
	return buf.Bytes()
}

func TestParseRSM_MagicValidation(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"invalid magic", []byte("XXXX\x01\x05"), ErrInvalidRSMMagic},
		{"empty data", []byte{}, ErrTruncatedRSMData},
		{"truncated data", []byte{'G', 'R', 'S'}, ErrTruncatedRSMData},
		{"header only", []byte("GRSM\x01\x05"), ErrTruncatedRSMData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRSM(tt.data, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got error %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseRSM_VersionSupport(t *testing.T) {
	tests := []struct {
		name    string
		major   uint8
		minor   uint8
		wantErr bool
	}{
		{"v1.1", 1, 1, false},
		{"v1.2", 1, 2, false},
		{"v1.4", 1, 4, false},
		{"v1.5", 1, 5, false},
		{"v2.2", 2, 2, false},
		{"v0.1 unsupported", 0, 1, true},
		{"v3.0 unsupported", 3, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRSM(encodeRSM(t, sampleRSM(tt.major, tt.minor)), nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("version %d.%d: got error=%v, wantErr=%v", tt.major, tt.minor, err, tt.wantErr)
			}
		})
	}
}

func TestRSMVersion_AtLeast(t *testing.T) {
	tests := []struct {
		version RSMVersion
		major   uint8
		minor   uint8
		want    bool
	}{
		{RSMVersion{1, 5}, 1, 5, true},
		{RSMVersion{1, 5}, 1, 4, true},
		{RSMVersion{1, 5}, 1, 6, false},
		{RSMVersion{1, 5}, 2, 0, false},
		{RSMVersion{2, 3}, 1, 9, true},
	}

	for _, tt := range tests {
		t.Run(tt.version.String(), func(t *testing.T) {
			if got := tt.version.AtLeast(tt.major, tt.minor); got != tt.want {
				t.Errorf("AtLeast(%d, %d) = %v, want %v", tt.major, tt.minor, got, tt.want)
			}
		})
	}
}

func TestParseRSM_Structure(t *testing.T) {
	rsm, err := ParseRSM(encodeRSM(t, sampleRSM(1, 5)), nil)
	if err != nil {
		t.Fatalf("ParseRSM failed: %v", err)
	}

	if len(rsm.Textures) != 1 || rsm.Textures[0] != "wall.bmp" {
		t.Errorf("Textures = %v, want [wall.bmp]", rsm.Textures)
	}
	if rsm.RootNode != "root" {
		t.Errorf("RootNode = %q, want %q", rsm.RootNode, "root")
	}
	if len(rsm.Nodes) != 1 {
		t.Fatalf("node count = %d, want 1", len(rsm.Nodes))
	}

	node := rsm.Nodes[0]
	if len(node.Vertices) != 3 || node.Vertices[1] != [3]float32{1, 0, 0} {
		t.Errorf("Vertices = %v", node.Vertices)
	}
	if len(node.TexCoords) != 3 || node.TexCoords[2].V != 1 {
		t.Errorf("TexCoords = %v", node.TexCoords)
	}
	if len(node.Faces) != 1 || node.Faces[0].VertexIDs != [3]uint16{0, 1, 2} {
		t.Errorf("Faces = %v", node.Faces)
	}
	if rsm.TotalFaceCount() != 1 {
		t.Errorf("TotalFaceCount() = %d, want 1", rsm.TotalFaceCount())
	}
	if rsm.NodeByName("root") == nil {
		t.Error("NodeByName(root) returned nil")
	}
}

func TestParseRSM_V11_DefaultColor(t *testing.T) {
	rsm, err := ParseRSM(encodeRSM(t, sampleRSM(1, 1)), nil)
	if err != nil {
		t.Fatalf("ParseRSM failed: %v", err)
	}
	if rsm.Alpha != 1 {
		t.Errorf("Alpha = %f, want 1.0 before v1.4", rsm.Alpha)
	}
	if c := rsm.Nodes[0].TexCoords[0].Color; c != [4]uint8{255, 255, 255, 255} {
		t.Errorf("Color = %v, want white before v1.2", c)
	}
}

func TestParseRSM_Truncated(t *testing.T) {
	data := encodeRSM(t, sampleRSM(1, 5))
	_, err := ParseRSM(data[:len(data)-10], nil)
	if !errors.Is(err, ErrTruncatedRSMData) {
		t.Errorf("got error %v, want ErrTruncatedRSMData", err)
	}
}

func TestParseRSM_KoreanNames(t *testing.T) {
	raw, _, err := transform.String(korean.EUCKR.NewEncoder(), "기둥")
	if err != nil {
		t.Fatalf("encoding name: %v", err)
	}
	src := sampleRSM(1, 5)
	src.Nodes[0].Name = raw

	rsm, err := ParseRSM(encodeRSM(t, src), korean.EUCKR)
	if err != nil {
		t.Fatalf("ParseRSM failed: %v", err)
	}
	if rsm.Nodes[0].Name != "기둥" {
		t.Errorf("Name = %q, want %q", rsm.Nodes[0].Name, "기둥")
	}
}
