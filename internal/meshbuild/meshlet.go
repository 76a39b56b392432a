package meshbuild

import (
	"fmt"

	"github.com/Faultbox/resmesh/pkg/math"
	"github.com/Faultbox/resmesh/pkg/meshopt"
	"github.com/Faultbox/resmesh/pkg/resmodel"
)

// PackMeshlets splits the triangle list indices, which refers to the vertex
// streams of m, into meshlets and appends them to m together with their
// vertex lists, primitives and culling data.
//
// Primitives store the corners of every cluster triangle as
// (corner1, corner0, corner2); readers rely on that winding.
func PackMeshlets(m *resmodel.Mesh, indices []uint32, maxVertices, maxPrimitives int) error {
	if maxVertices > resmodel.MaxMeshletVertices || maxPrimitives > resmodel.MaxMeshletPrimitives {
		return fmt.Errorf("meshlet limits %d/%d exceed format limits %d/%d",
			maxVertices, maxPrimitives, resmodel.MaxMeshletVertices, resmodel.MaxMeshletPrimitives)
	}

	clusters, err := meshopt.BuildMeshlets(indices, len(m.Positions), maxVertices, maxPrimitives)
	if err != nil {
		return fmt.Errorf("building meshlets: %w", err)
	}

	positions := make([][3]float32, len(m.Positions))
	for i, p := range m.Positions {
		positions[i] = p.Array()
	}

	m.Meshlets = make([]resmodel.Meshlet, 0, len(clusters))
	m.CullingInfos = make([]resmodel.CullingInfo, 0, len(clusters))

	for _, cl := range clusters {
		m.Meshlets = append(m.Meshlets, resmodel.Meshlet{
			VertexOffset:    uint32(len(m.Indices)),
			VertexCount:     uint32(len(cl.Vertices)),
			PrimitiveOffset: uint32(len(m.Primitives)),
			PrimitiveCount:  uint32(len(cl.Triangles)),
		})

		m.Indices = append(m.Indices, cl.Vertices...)
		for _, tri := range cl.Triangles {
			m.Primitives = append(m.Primitives, resmodel.Primitive{
				Index0: tri[1],
				Index1: tri[0],
				Index2: tri[2],
			})
		}

		m.CullingInfos = append(m.CullingInfos, cullingInfo(meshopt.ComputeMeshletBounds(cl, positions)))
	}

	return nil
}

func cullingInfo(b meshopt.Bounds) resmodel.CullingInfo {
	return resmodel.CullingInfo{
		BoundingSphere: math.Vec4{X: b.Center[0], Y: b.Center[1], Z: b.Center[2], W: b.Radius},
		NormalCone:     EncodeCone(b.ConeAxis, b.ConeCutoff),
	}
}
