package scene

import (
	"fmt"
	"io/fs"

	"github.com/Faultbox/resmesh/pkg/formats"
	"github.com/Faultbox/resmesh/pkg/resmodel"
)

type gltfImporter struct{}

func (gltfImporter) Import(fsys fs.FS, name string, _ Options) (*Scene, error) {
	doc, err := formats.ParseGLTFFS(fsys, name)
	if err != nil {
		return nil, err
	}
	return SceneFromGLTF(doc)
}

// SceneFromGLTF converts every triangle primitive of doc into a mesh in its
// own local space. Skinned primitives get one bone per joint of the skin
// of the first node that instances the mesh; JOINTS_n/WEIGHTS_n pairs are
// all read, so a vertex can carry more than four influences.
func SceneFromGLTF(doc *formats.GLTF) (*Scene, error) {
	s := &Scene{}

	for i := range doc.Materials {
		s.Materials = append(s.Materials, gltfMaterial(doc, &doc.Materials[i]))
	}
	fallback := -1

	meshSkin := make(map[int]int)
	for _, node := range doc.Nodes {
		if node.Mesh == nil || node.Skin == nil {
			continue
		}
		if _, ok := meshSkin[*node.Mesh]; !ok {
			meshSkin[*node.Mesh] = *node.Skin
		}
	}

	for mi := range doc.Meshes {
		gm := &doc.Meshes[mi]
		for pi := range gm.Primitives {
			prim := &gm.Primitives[pi]
			if !isTriangleMode(prim.PrimitiveMode()) {
				continue
			}

			name := gm.Name
			if name == "" {
				name = fmt.Sprintf("mesh_%d", mi)
			}
			if len(gm.Primitives) > 1 {
				name = fmt.Sprintf("%s_%d", name, pi)
			}

			mesh, err := gltfPrimitiveMesh(doc, prim, name)
			if err != nil {
				return nil, fmt.Errorf("mesh %q primitive %d: %w", gm.Name, pi, err)
			}
			if skin, ok := meshSkin[mi]; ok && skin >= 0 && skin < len(doc.Skins) {
				if err := gltfSkinBones(doc, prim, &doc.Skins[skin], mesh); err != nil {
					return nil, fmt.Errorf("mesh %q primitive %d: %w", gm.Name, pi, err)
				}
			}

			if prim.Material != nil && *prim.Material >= 0 && *prim.Material < len(s.Materials) {
				mesh.MaterialIndex = *prim.Material
			} else {
				if fallback < 0 {
					fallback = len(s.Materials)
					s.Materials = append(s.Materials, Material{Name: defaultMaterialName, Diffuse: [4]float32{1, 1, 1, 1}, Opacity: 1})
				}
				mesh.MaterialIndex = fallback
			}

			s.Meshes = append(s.Meshes, *mesh)
		}
	}

	return s, nil
}

func isTriangleMode(mode int) bool {
	return mode == formats.GLTFModeTriangles || mode == formats.GLTFModeTriangleStrip || mode == formats.GLTFModeTriangleFan
}

func gltfPrimitiveMesh(doc *formats.GLTF, prim *formats.GLTFPrimitive, name string) (*Mesh, error) {
	posAccessor, ok := prim.Attributes["POSITION"]
	if !ok {
		return nil, fmt.Errorf("primitive has no POSITION attribute")
	}
	positions, err := doc.ReadFloats(posAccessor)
	if err != nil {
		return nil, fmt.Errorf("reading positions: %w", err)
	}

	mesh := &Mesh{Name: name}
	n := len(positions)
	mesh.Positions = toVec3s(positions)

	if acc, ok := prim.Attributes["NORMAL"]; ok {
		rows, err := doc.ReadFloats(acc)
		if err != nil {
			return nil, fmt.Errorf("reading normals: %w", err)
		}
		if len(rows) == n {
			mesh.Normals = toVec3s(rows)
		}
	}
	if acc, ok := prim.Attributes["TANGENT"]; ok {
		rows, err := doc.ReadFloats(acc)
		if err != nil {
			return nil, fmt.Errorf("reading tangents: %w", err)
		}
		if len(rows) == n {
			mesh.Tangents = toVec3s(rows)
			mesh.TangentSigns = make([]float32, n)
			for i, r := range rows {
				mesh.TangentSigns[i] = 1
				if len(r) > 3 && r[3] < 0 {
					mesh.TangentSigns[i] = -1
				}
			}
		}
	}
	for ch := 0; ch < MaxTexCoords; ch++ {
		acc, ok := prim.Attributes[fmt.Sprintf("TEXCOORD_%d", ch)]
		if !ok {
			continue
		}
		rows, err := doc.ReadFloats(acc)
		if err != nil {
			return nil, fmt.Errorf("reading texcoord %d: %w", ch, err)
		}
		if len(rows) != n {
			continue
		}
		uvs := make([][2]float32, n)
		for i, r := range rows {
			copy(uvs[i][:], r)
		}
		mesh.TexCoords[ch] = uvs
	}
	if acc, ok := prim.Attributes["COLOR_0"]; ok {
		rows, err := doc.ReadFloats(acc)
		if err != nil {
			return nil, fmt.Errorf("reading colors: %w", err)
		}
		if len(rows) == n {
			mesh.Colors = make([][4]float32, n)
			for i, r := range rows {
				c := [4]float32{1, 1, 1, 1}
				copy(c[:], r)
				mesh.Colors[i] = c
			}
		}
	}

	var indices []uint32
	if prim.Indices != nil {
		rows, err := doc.ReadInts(*prim.Indices)
		if err != nil {
			return nil, fmt.Errorf("reading indices: %w", err)
		}
		indices = make([]uint32, len(rows))
		for i, r := range rows {
			indices[i] = r[0]
		}
	} else {
		indices = make([]uint32, n)
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	mesh.Faces = triangulate(indices, prim.PrimitiveMode())

	return mesh, nil
}

// triangulate converts strip and fan index lists into triangle faces.
func triangulate(indices []uint32, mode int) [][]uint32 {
	var faces [][]uint32
	switch mode {
	case formats.GLTFModeTriangles:
		for i := 0; i+2 < len(indices); i += 3 {
			faces = append(faces, []uint32{indices[i], indices[i+1], indices[i+2]})
		}
	case formats.GLTFModeTriangleStrip:
		for i := 0; i+2 < len(indices); i++ {
			if i%2 == 0 {
				faces = append(faces, []uint32{indices[i], indices[i+1], indices[i+2]})
			} else {
				faces = append(faces, []uint32{indices[i+1], indices[i], indices[i+2]})
			}
		}
	case formats.GLTFModeTriangleFan:
		for i := 1; i+1 < len(indices); i++ {
			faces = append(faces, []uint32{indices[0], indices[i], indices[i+1]})
		}
	}
	return faces
}

// gltfSkinBones turns per-vertex joint/weight sets into per-bone weight
// lists. Zero weights are dropped.
func gltfSkinBones(doc *formats.GLTF, prim *formats.GLTFPrimitive, skin *formats.GLTFSkin, mesh *Mesh) error {
	bones := make([]Bone, len(skin.Joints))
	for i, joint := range skin.Joints {
		name := fmt.Sprintf("joint_%d", i)
		if joint >= 0 && joint < len(doc.Nodes) && doc.Nodes[joint].Name != "" {
			name = doc.Nodes[joint].Name
		}
		bones[i].Name = name
	}

	found := false
	for set := 0; ; set++ {
		jointsAcc, okJ := prim.Attributes[fmt.Sprintf("JOINTS_%d", set)]
		weightsAcc, okW := prim.Attributes[fmt.Sprintf("WEIGHTS_%d", set)]
		if !okJ || !okW {
			break
		}
		joints, err := doc.ReadInts(jointsAcc)
		if err != nil {
			return fmt.Errorf("reading joints %d: %w", set, err)
		}
		weights, err := doc.ReadFloats(weightsAcc)
		if err != nil {
			return fmt.Errorf("reading weights %d: %w", set, err)
		}
		if len(joints) != len(mesh.Positions) || len(weights) != len(mesh.Positions) {
			return fmt.Errorf("joint set %d does not match vertex count", set)
		}

		for v := range joints {
			for k := 0; k < len(joints[v]) && k < len(weights[v]); k++ {
				w := weights[v][k]
				j := int(joints[v][k])
				if w == 0 || j >= len(bones) {
					continue
				}
				bones[j].Weights = append(bones[j].Weights, VertexWeight{VertexID: uint32(v), Weight: w})
				found = true
			}
		}
	}

	if found {
		mesh.Bones = bones
	}
	return nil
}

func gltfMaterial(doc *formats.GLTF, gm *formats.GLTFMaterial) Material {
	m := Material{Name: gm.Name, Diffuse: [4]float32{1, 1, 1, 1}, Opacity: 1}

	bind := func(usage resmodel.TextureUsage, info *formats.GLTFTextureInfo) {
		if info == nil {
			return
		}
		if path, ok := doc.ImageName(info.Index); ok {
			m.AddTexture(usage, path)
		}
	}

	if pbr := gm.PBRMetallicRoughness; pbr != nil {
		if pbr.BaseColorFactor != nil {
			m.Diffuse = *pbr.BaseColorFactor
			m.Opacity = pbr.BaseColorFactor[3]
		}
		bind(resmodel.UsageDiffuse, pbr.BaseColorTexture)
	}
	bind(resmodel.UsageNormal, gm.NormalTexture)
	bind(resmodel.UsageEmissive, gm.EmissiveTexture)
	bind(resmodel.UsageLightmap, gm.OcclusionTexture)
	return m
}

func toVec3s(rows [][]float32) [][3]float32 {
	out := make([][3]float32, len(rows))
	for i, r := range rows {
		copy(out[i][:], r)
	}
	return out
}
