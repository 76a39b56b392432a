package meshbuild

import (
	"hash/fnv"

	"go.uber.org/zap"

	"github.com/Faultbox/resmesh/pkg/resmodel"
	"github.com/Faultbox/resmesh/pkg/scene"
)

// HashName returns the 32-bit FNV-1a hash of name. Mesh and material
// identities use it; equal names collide by construction.
func HashName(name string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(name))
	return h.Sum32()
}

// MaterialHash returns the identity of scene material index: the hash of its
// name. When the material does not exist or has no name the raw index is
// used instead and ok is false. Such hashes are not stable across imports.
func MaterialHash(s *scene.Scene, index int) (hash uint32, ok bool) {
	if index >= 0 && index < len(s.Materials) && s.Materials[index].Name != "" {
		return HashName(s.Materials[index].Name), true
	}
	return uint32(index), false
}

// CatalogMaterial builds the table entry for scene material index. Textures
// are listed slot by slot in resmodel.CatalogUsages order, then in binding
// order; repeated paths are kept.
func CatalogMaterial(s *scene.Scene, index int) (resmodel.Material, bool) {
	src := &s.Materials[index]
	hash, ok := MaterialHash(s, index)

	mat := resmodel.Material{Name: src.Name, Hash: hash}
	for _, usage := range resmodel.CatalogUsages {
		for _, path := range src.Textures[usage] {
			mat.Textures = append(mat.Textures, resmodel.Texture{Usage: usage, Path: path})
		}
	}
	return mat, ok
}

// CatalogMaterials builds the material table of s. Materials whose hash is
// already in the table are skipped, so the first one wins.
func CatalogMaterials(s *scene.Scene, log *zap.Logger) []resmodel.Material {
	if log == nil {
		log = zap.NewNop()
	}

	table := make([]resmodel.Material, 0, len(s.Materials))
	seen := make(map[uint32]bool, len(s.Materials))

	for i := range s.Materials {
		mat, ok := CatalogMaterial(s, i)
		if !ok {
			log.Warn("Material has no name, using its index as hash", zap.Int("index", i))
		}
		if seen[mat.Hash] {
			log.Debug("Duplicate material skipped",
				zap.String("name", mat.Name),
				zap.Uint32("hash", mat.Hash))
			continue
		}
		seen[mat.Hash] = true
		table = append(table, mat)
	}
	return table
}
