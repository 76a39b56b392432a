package scene

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strconv"
	"strings"

	"github.com/Faultbox/resmesh/pkg/resmodel"
)

// ErrMalformedOBJ is returned for OBJ and MTL content that cannot be parsed.
var ErrMalformedOBJ = errors.New("malformed OBJ data")

const defaultMaterialName = "DefaultMaterial"

// mtlTextureUsages maps MTL texture statements to usage slots.
var mtlTextureUsages = map[string]resmodel.TextureUsage{
	"map_kd":   resmodel.UsageDiffuse,
	"map_ks":   resmodel.UsageSpecular,
	"map_ka":   resmodel.UsageAmbient,
	"map_ke":   resmodel.UsageEmissive,
	"map_bump": resmodel.UsageHeight,
	"bump":     resmodel.UsageHeight,
	"norm":     resmodel.UsageNormal,
	"map_ns":   resmodel.UsageShininess,
	"map_d":    resmodel.UsageOpacity,
	"disp":     resmodel.UsageDisplacement,
	"refl":     resmodel.UsageReflection,
}

type objImporter struct{}

func (objImporter) Import(fsys fs.FS, name string, _ Options) (*Scene, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := newObjDecoder()
	if err := dec.parse(f, dec.parseObjLine); err != nil {
		return nil, err
	}

	if dec.mtllib != "" {
		// a library outside fsys is treated like a missing one
		mtlPath := path.Join(path.Dir(name), dec.mtllib)
		if err := dec.loadMaterials(fsys, mtlPath); err != nil && !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, fs.ErrInvalid) {
			return nil, err
		}
	}

	return dec.scene(), nil
}

// ParseOBJ reads an OBJ document from r. Material libraries are not
// resolved; materials named by usemtl are created empty.
func ParseOBJ(r io.Reader) (*Scene, error) {
	dec := newObjDecoder()
	if err := dec.parse(r, dec.parseObjLine); err != nil {
		return nil, err
	}
	return dec.scene(), nil
}

// objCorner is one face corner; uv and normal are -1 when absent.
type objCorner struct {
	pos, uv, normal int
}

type objMesh struct {
	name     string
	material int
	faces    [][]objCorner
}

type objDecoder struct {
	line int

	positions [][3]float32
	colors    [][4]float32
	hasColors bool
	normals   [][3]float32
	uvs       [][2]float32

	mtllib     string
	object     string
	material   int
	materials  []Material
	materialID map[string]int

	meshes  []*objMesh
	meshIdx map[[2]string]*objMesh

	// current MTL material while parsing a library
	mtl *Material
}

func newObjDecoder() *objDecoder {
	return &objDecoder{
		material:   -1,
		materialID: make(map[string]int),
		meshIdx:    make(map[[2]string]*objMesh),
	}
}

func (d *objDecoder) parse(r io.Reader, parseLine func([]string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	d.line = 0
	for scanner.Scan() {
		d.line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if err := parseLine(fields); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (d *objDecoder) formatError(format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrMalformedOBJ, d.line, fmt.Sprintf(format, args...))
}

func (d *objDecoder) parseObjLine(fields []string) error {
	switch fields[0] {
	case "mtllib":
		if len(fields) < 2 {
			return d.formatError("mtllib without file name")
		}
		d.mtllib = strings.Join(fields[1:], " ")
	case "o", "g":
		if len(fields) > 1 {
			d.object = strings.Join(fields[1:], " ")
		}
	case "v":
		return d.parseVertex(fields[1:])
	case "vn":
		v, err := d.parseFloats(fields[1:], 3)
		if err != nil {
			return err
		}
		d.normals = append(d.normals, [3]float32{v[0], v[1], v[2]})
	case "vt":
		v, err := d.parseFloats(fields[1:], 1)
		if err != nil {
			return err
		}
		uv := [2]float32{v[0]}
		if len(v) > 1 {
			uv[1] = v[1]
		}
		d.uvs = append(d.uvs, uv)
	case "usemtl":
		if len(fields) < 2 {
			return d.formatError("usemtl without material name")
		}
		d.material = d.materialIndex(strings.Join(fields[1:], " "))
	case "f":
		return d.parseFace(fields[1:])
	}
	// s, l, p and unknown statements do not contribute geometry
	return nil
}

func (d *objDecoder) parseFloats(fields []string, minCount int) ([]float32, error) {
	if len(fields) < minCount {
		return nil, d.formatError("expected %d values, got %d", minCount, len(fields))
	}
	out := make([]float32, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return nil, d.formatError("%v", err)
		}
		out[i] = float32(v)
	}
	return out, nil
}

// parseVertex parses "v x y z [w]" and the common "v x y z r g b" color
// extension.
func (d *objDecoder) parseVertex(fields []string) error {
	v, err := d.parseFloats(fields, 3)
	if err != nil {
		return err
	}
	d.positions = append(d.positions, [3]float32{v[0], v[1], v[2]})

	color := [4]float32{1, 1, 1, 1}
	if len(v) >= 6 {
		color = [4]float32{v[3], v[4], v[5], 1}
		d.hasColors = true
	}
	d.colors = append(d.colors, color)
	return nil
}

func (d *objDecoder) materialIndex(name string) int {
	if idx, ok := d.materialID[name]; ok {
		return idx
	}
	idx := len(d.materials)
	d.materials = append(d.materials, Material{Name: name, Diffuse: [4]float32{0.6, 0.6, 0.6, 1}, Opacity: 1})
	d.materialID[name] = idx
	return idx
}

// resolveIndex converts a 1-based or negative OBJ index to 0-based.
func (d *objDecoder) resolveIndex(s string, count int) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, d.formatError("bad index %q", s)
	}
	switch {
	case v > 0:
		v--
	case v < 0:
		v += count
	default:
		return 0, d.formatError("index 0 is not valid")
	}
	if v < 0 || v >= count {
		return 0, d.formatError("index %s out of range", s)
	}
	return v, nil
}

func (d *objDecoder) parseFace(fields []string) error {
	if len(fields) < 3 {
		return d.formatError("face with %d corners", len(fields))
	}

	face := make([]objCorner, len(fields))
	for i, f := range fields {
		parts := strings.Split(f, "/")
		c := objCorner{uv: -1, normal: -1}

		var err error
		if c.pos, err = d.resolveIndex(parts[0], len(d.positions)); err != nil {
			return err
		}
		if len(parts) > 1 && parts[1] != "" {
			if c.uv, err = d.resolveIndex(parts[1], len(d.uvs)); err != nil {
				return err
			}
		}
		if len(parts) > 2 && parts[2] != "" {
			if c.normal, err = d.resolveIndex(parts[2], len(d.normals)); err != nil {
				return err
			}
		}
		face[i] = c
	}

	if d.material < 0 {
		d.material = d.materialIndex(defaultMaterialName)
	}
	key := [2]string{d.object, d.materials[d.material].Name}
	m, ok := d.meshIdx[key]
	if !ok {
		m = &objMesh{name: d.object, material: d.material}
		d.meshIdx[key] = m
		d.meshes = append(d.meshes, m)
	}
	m.faces = append(m.faces, face)
	return nil
}

// scene emits one mesh per (object, material) pair. Polygons are fan
// triangulated and every corner becomes its own vertex.
func (d *objDecoder) scene() *Scene {
	s := &Scene{Materials: d.materials}

	for _, om := range d.meshes {
		var (
			mesh       = Mesh{Name: om.name, MaterialIndex: om.material}
			allUVs     = true
			allNormals = true
			uvs        [][2]float32
			normals    [][3]float32
		)

		for _, face := range om.faces {
			base := uint32(len(mesh.Positions))
			for _, c := range face {
				mesh.Positions = append(mesh.Positions, d.positions[c.pos])
				if d.hasColors {
					mesh.Colors = append(mesh.Colors, d.colors[c.pos])
				}
				if c.uv >= 0 {
					uvs = append(uvs, d.uvs[c.uv])
				} else {
					allUVs = false
					uvs = append(uvs, [2]float32{})
				}
				if c.normal >= 0 {
					normals = append(normals, d.normals[c.normal])
				} else {
					allNormals = false
					normals = append(normals, [3]float32{})
				}
			}
			for k := 1; k+1 < len(face); k++ {
				mesh.Faces = append(mesh.Faces, []uint32{base, base + uint32(k), base + uint32(k) + 1})
			}
		}

		if allUVs {
			mesh.TexCoords[0] = uvs
		}
		if allNormals {
			mesh.Normals = normals
		}
		s.Meshes = append(s.Meshes, mesh)
	}

	return s
}

func (d *objDecoder) loadMaterials(fsys fs.FS, name string) error {
	f, err := fsys.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	d.mtl = nil
	return d.parse(f, d.parseMtlLine)
}

func (d *objDecoder) parseMtlLine(fields []string) error {
	statement := strings.ToLower(fields[0])
	if statement == "newmtl" {
		if len(fields) < 2 {
			return d.formatError("newmtl without name")
		}
		d.mtl = &d.materials[d.materialIndex(strings.Join(fields[1:], " "))]
		return nil
	}
	if d.mtl == nil {
		return nil
	}

	switch statement {
	case "kd":
		v, err := d.parseFloats(fields[1:], 3)
		if err != nil {
			return err
		}
		d.mtl.Diffuse = [4]float32{v[0], v[1], v[2], d.mtl.Diffuse[3]}
	case "d":
		v, err := d.parseFloats(fields[1:], 1)
		if err != nil {
			return err
		}
		d.mtl.Opacity = v[0]
		d.mtl.Diffuse[3] = v[0]
	default:
		usage, ok := mtlTextureUsages[statement]
		if !ok {
			return nil
		}
		// options such as "-bm 1.0" precede the file name
		if len(fields) < 2 {
			return d.formatError("%s without file name", fields[0])
		}
		d.mtl.AddTexture(usage, fields[len(fields)-1])
	}
	return nil
}
