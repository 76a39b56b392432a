package resmodel

// Model is the converted scene. Meshes refer to materials by hash only, so
// the order of Materials carries no meaning.
type Model struct {
	Meshes    []Mesh
	Materials []Material
}

// Stats summarizes a model.
type Stats struct {
	Meshes     int
	Skinned    int
	Vertices   int
	Primitives int
	Meshlets   int
	Materials  int
}

// Stats returns totals over all meshes.
func (m *Model) Stats() Stats {
	s := Stats{Meshes: len(m.Meshes), Materials: len(m.Materials)}
	for i := range m.Meshes {
		mesh := &m.Meshes[i]
		if mesh.IsSkinned() {
			s.Skinned++
		}
		s.Vertices += mesh.VertexCount()
		s.Primitives += len(mesh.Primitives)
		s.Meshlets += len(mesh.Meshlets)
	}
	return s
}

// MaterialByHash returns the material with the given hash, or nil.
func (m *Model) MaterialByHash(hash uint32) *Material {
	for i := range m.Materials {
		if m.Materials[i].Hash == hash {
			return &m.Materials[i]
		}
	}
	return nil
}

// Validate validates every mesh.
func (m *Model) Validate() error {
	for i := range m.Meshes {
		if err := m.Meshes[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}
