package scene

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	xencoding "golang.org/x/text/encoding"

	"github.com/Faultbox/resmesh/pkg/formats"
)

type rswImporter struct{}

// Import loads a world: the ground named by the RSW next to it and every
// model instance from the model/ directory beside it. Models that do not
// exist are reported in Scene.Warnings; any other model error fails the
// import.
func (rswImporter) Import(fsys fs.FS, name string, opts Options) (*Scene, error) {
	enc, err := charset(opts)
	if err != nil {
		return nil, err
	}
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, err
	}
	rsw, err := formats.ParseRSW(data, enc)
	if err != nil {
		return nil, err
	}

	w := &worldBuilder{
		fsys:   fsys,
		dir:    path.Dir(name),
		enc:    enc,
		models: make(map[string]*Scene),
	}
	return w.build(rsw)
}

type worldBuilder struct {
	fsys fs.FS
	dir  string
	enc  xencoding.Encoding

	// models caches each model in its centered local space, nil when the
	// model is missing.
	models map[string]*Scene
}

func (w *worldBuilder) build(rsw *formats.RSW) (*Scene, error) {
	if rsw.GndFile == "" {
		return nil, fmt.Errorf("world has no ground file")
	}
	data, err := fs.ReadFile(w.fsys, w.resolve(rsw.GndFile))
	if err != nil {
		return nil, fmt.Errorf("ground %s: %w", rsw.GndFile, err)
	}
	gnd, err := formats.ParseGND(data, w.enc)
	if err != nil {
		return nil, fmt.Errorf("ground %s: %w", rsw.GndFile, err)
	}

	s := SceneFromGND(gnd)
	materialIDs := make(map[string]int, len(s.Materials))
	for i, m := range s.Materials {
		materialIDs[m.Name] = i
	}

	halfW := float32(gnd.Width) * gnd.Zoom / 2
	halfH := float32(gnd.Height) * gnd.Zoom / 2

	for i, inst := range rsw.Models {
		model, err := w.model(inst.ModelName)
		if err != nil {
			return nil, err
		}
		if model == nil {
			s.Warnings = append(s.Warnings, fmt.Sprintf("model %q of instance %d not found", inst.ModelName, i))
			continue
		}

		m := instanceMatrix(inst, halfW, halfH)
		for _, src := range model.Meshes {
			mesh := cloneMesh(&src)
			mesh.Name = fmt.Sprintf("%s/%s", instanceName(inst, i), src.Name)

			mat := model.Materials[src.MaterialIndex]
			idx, ok := materialIDs[mat.Name]
			if !ok {
				idx = len(s.Materials)
				s.Materials = append(s.Materials, mat)
				materialIDs[mat.Name] = idx
			}
			mesh.MaterialIndex = idx

			mesh.Transform(m)
			s.Meshes = append(s.Meshes, mesh)
		}
	}

	return s, nil
}

// resolve maps a name stored in a world file to a path inside fsys.
func (w *worldBuilder) resolve(name string) string {
	return path.Join(w.dir, strings.ReplaceAll(name, `\`, "/"))
}

func (w *worldBuilder) model(name string) (*Scene, error) {
	key := strings.ToLower(name)
	if s, ok := w.models[key]; ok {
		return s, nil
	}

	data, err := fs.ReadFile(w.fsys, w.resolve(path.Join("model", strings.ReplaceAll(name, `\`, "/"))))
	if errors.Is(err, fs.ErrNotExist) {
		w.models[key] = nil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", name, err)
	}
	rsm, err := formats.ParseRSM(data, w.enc)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", name, err)
	}

	s := SceneFromRSM(rsm)
	centerXZ(s)
	w.models[key] = s
	return s, nil
}

// centerXZ moves the scene so its bounding box is centered on the origin
// in X and Z. Y is left alone so models keep resting on their base.
func centerXZ(s *Scene) {
	minX, minZ := float32(1e30), float32(1e30)
	maxX, maxZ := float32(-1e30), float32(-1e30)
	for _, m := range s.Meshes {
		for _, p := range m.Positions {
			minX, maxX = min(minX, p[0]), max(maxX, p[0])
			minZ, maxZ = min(minZ, p[2]), max(maxZ, p[2])
		}
	}
	if minX > maxX {
		return
	}
	cx, cz := (minX+maxX)/2, (minZ+maxZ)/2
	for mi := range s.Meshes {
		for i := range s.Meshes[mi].Positions {
			s.Meshes[mi].Positions[i][0] -= cx
			s.Meshes[mi].Positions[i][2] -= cz
		}
	}
}

// instanceMatrix places a model on the ground. RSW positions are relative
// to the map center with Y pointing down; rotations are degrees applied in
// Y, X, Z order.
func instanceMatrix(inst formats.RSWModel, halfW, halfH float32) mgl32.Mat4 {
	m := mgl32.Translate3D(inst.Position[0]+halfW, -inst.Position[1], inst.Position[2]+halfH)
	m = m.Mul4(mgl32.HomogRotate3DY(mgl32.DegToRad(inst.Rotation[1])))
	m = m.Mul4(mgl32.HomogRotate3DX(mgl32.DegToRad(inst.Rotation[0])))
	m = m.Mul4(mgl32.HomogRotate3DZ(mgl32.DegToRad(inst.Rotation[2])))
	return m.Mul4(mgl32.Scale3D(inst.Scale[0], inst.Scale[1], inst.Scale[2]))
}

func instanceName(inst formats.RSWModel, i int) string {
	if inst.Name != "" {
		return inst.Name
	}
	return fmt.Sprintf("instance_%d", i)
}

// cloneMesh deep copies the vertex and face data of src so instances of the
// same model can be transformed independently.
func cloneMesh(src *Mesh) Mesh {
	m := *src
	m.Positions = append([][3]float32(nil), src.Positions...)
	m.Normals = append([][3]float32(nil), src.Normals...)
	m.Tangents = append([][3]float32(nil), src.Tangents...)
	m.TangentSigns = append([]float32(nil), src.TangentSigns...)
	m.Colors = append([][4]float32(nil), src.Colors...)
	for i := range src.TexCoords {
		m.TexCoords[i] = append([][2]float32(nil), src.TexCoords[i]...)
	}
	m.Faces = make([][]uint32, len(src.Faces))
	for i, f := range src.Faces {
		m.Faces[i] = append([]uint32(nil), f...)
	}
	m.Bones = make([]Bone, len(src.Bones))
	for i, b := range src.Bones {
		m.Bones[i] = Bone{Name: b.Name, Weights: append([]VertexWeight(nil), b.Weights...)}
	}
	if len(src.Bones) == 0 {
		m.Bones = nil
	}
	return m
}
