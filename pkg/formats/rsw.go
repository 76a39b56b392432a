package formats

import (
	"errors"
	"fmt"

	xencoding "golang.org/x/text/encoding"
)

// RSW format errors.
var (
	ErrInvalidRSWMagic       = errors.New("invalid RSW magic: expected 'GRSW'")
	ErrUnsupportedRSWVersion = errors.New("unsupported RSW version")
	ErrTruncatedRSWData      = errors.New("truncated RSW data")
	ErrUnknownObjectType     = errors.New("unknown RSW object type")
)

const (
	rswFileNameLength  = 40
	rswObjectName      = 40
	rswLongName        = 80
	maxRSWObjects      = 1 << 20
	rswBuildNumberFlag = 162 // first 2.6 build with the model collision byte
)

// RSWVersion is the RSW file version. BuildNumber is set from 2.2 on.
type RSWVersion struct {
	Major       uint8
	Minor       uint8
	BuildNumber uint32
}

func (v RSWVersion) String() string {
	if v.BuildNumber > 0 {
		return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.BuildNumber)
	}
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// AtLeast reports whether the version is major.minor or newer.
func (v RSWVersion) AtLeast(major, minor uint8) bool {
	return v.Major > major || (v.Major == major && v.Minor >= minor)
}

// RSWObjectType is the kind of a placed world object.
type RSWObjectType int32

const (
	RSWObjectModel  RSWObjectType = 1
	RSWObjectLight  RSWObjectType = 2
	RSWObjectSound  RSWObjectType = 3
	RSWObjectEffect RSWObjectType = 4
)

// RSWModel is an RSM model placed in the world. Rotation is in degrees.
type RSWModel struct {
	Name      string
	ModelName string // path below data/model/
	NodeName  string
	Position  [3]float32
	Rotation  [3]float32
	Scale     [3]float32
}

// RSW is a parsed world file. Only model placements are kept; lights,
// sounds and effects are counted and skipped.
type RSW struct {
	Version    RSWVersion
	IniFile    string
	GndFile    string
	GatFile    string
	SrcFile    string
	WaterLevel float32
	Models     []RSWModel
	Skipped    int
}

// ParseRSW parses RSW data. Names are decoded with enc; nil keeps raw bytes.
func ParseRSW(data []byte, enc xencoding.Encoding) (*RSW, error) {
	if len(data) < 6 {
		return nil, ErrTruncatedRSWData
	}
	if string(data[:4]) != "GRSW" {
		return nil, ErrInvalidRSWMagic
	}
	v := RSWVersion{Major: data[4], Minor: data[5]}
	if v.Major < 1 || v.Major > 2 || (v.Major == 1 && v.Minor < 2) || (v.Major == 2 && v.Minor > 6) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRSWVersion, v)
	}

	r := newReader(data[6:], enc, ErrTruncatedRSWData)
	switch {
	case v.AtLeast(2, 5):
		r.read(&v.BuildNumber)
		r.skip(1) // render flag
	case v.AtLeast(2, 2):
		v.BuildNumber = uint32(r.uint8())
	}

	rsw := &RSW{Version: v}
	rsw.IniFile = r.name(rswFileNameLength)
	rsw.GndFile = r.name(rswFileNameLength)
	if v.AtLeast(1, 4) {
		rsw.GatFile = r.name(rswFileNameLength)
		rsw.SrcFile = r.name(rswFileNameLength)
	}

	// water moved into the GND file with 2.6
	if v.AtLeast(1, 3) && !v.AtLeast(2, 6) {
		r.read(&rsw.WaterLevel)
		r.skip(20) // type, wave height, speed, pitch, animation speed
	}
	if v.AtLeast(1, 5) {
		r.skip(32) // sun longitude, latitude, diffuse and ambient
	}
	if v.AtLeast(1, 7) {
		r.skip(4) // shadow opacity
	}
	if v.AtLeast(1, 6) {
		r.skip(16) // ground bounds
	}

	count := r.count("object", maxRSWObjects)
	for i := 0; i < count && r.err == nil; i++ {
		typ := RSWObjectType(r.int32())
		if r.err != nil {
			break
		}
		switch typ {
		case RSWObjectModel:
			rsw.Models = append(rsw.Models, parseRSWModel(r, v))
		case RSWObjectLight:
			r.skip(rswLongName + 28)
			rsw.Skipped++
		case RSWObjectSound:
			n := int64(2*rswLongName + 28)
			if v.AtLeast(2, 0) {
				n += 4 // cycle
			}
			r.skip(n)
			rsw.Skipped++
		case RSWObjectEffect:
			r.skip(rswLongName + 36)
			rsw.Skipped++
		default:
			return nil, fmt.Errorf("object %d: %w: %d", i, ErrUnknownObjectType, typ)
		}
	}
	if r.err != nil {
		return nil, r.err
	}

	// the quadtree that may follow is not needed
	return rsw, nil
}

func parseRSWModel(r *reader, v RSWVersion) RSWModel {
	var m RSWModel
	m.Name = r.name(rswObjectName)
	r.skip(12) // animation type, animation speed, block type
	if v.AtLeast(2, 6) && v.BuildNumber >= rswBuildNumberFlag {
		r.skip(1)
	}
	m.ModelName = r.name(rswLongName)
	m.NodeName = r.name(rswLongName)
	r.read(&m.Position)
	r.read(&m.Rotation)
	r.read(&m.Scale)
	return m
}
