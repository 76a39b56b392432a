package meshopt

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Hard limits of the Meshlet layout: local indices are bytes.
const (
	MaxMeshletVertices  = 255
	MaxMeshletTriangles = 512
)

// Meshlet is one cluster produced by BuildMeshlets. Vertices holds
// mesh-global vertex indices; Triangles holds corners as indices into
// Vertices.
type Meshlet struct {
	Vertices  []uint32
	Triangles [][3]uint8
}

// Bounds is the culling data for a meshlet.
type Bounds struct {
	Center [3]float32
	Radius float32

	ConeApex   [3]float32
	ConeAxis   [3]float32
	ConeCutoff float32 // sin of the cone half-angle; 1 disables cone culling
}

// BuildMeshletsBound returns an upper bound of the number of meshlets
// BuildMeshlets can produce for the given limits.
func BuildMeshletsBound(indexCount, maxVertices, maxTriangles int) int {
	if maxVertices < 3 || maxTriangles < 1 {
		return 0
	}
	byVertices := (indexCount + maxVertices - 3) / (maxVertices - 2)
	byTriangles := (indexCount/3 + maxTriangles - 1) / maxTriangles
	if byVertices > byTriangles {
		return byVertices
	}
	return byTriangles
}

// BuildMeshlets splits a triangle list into clusters of at most maxVertices
// unique vertices and maxTriangles triangles. Triangles are taken in input
// order; a cluster is closed as soon as the next triangle would overflow it.
func BuildMeshlets(indices []uint32, vertexCount, maxVertices, maxTriangles int) ([]Meshlet, error) {
	if len(indices)%3 != 0 {
		return nil, fmt.Errorf("index count %d is not a multiple of 3", len(indices))
	}
	if maxVertices < 3 || maxVertices > MaxMeshletVertices {
		return nil, fmt.Errorf("max vertices %d out of range [3, %d]", maxVertices, MaxMeshletVertices)
	}
	if maxTriangles < 1 || maxTriangles > MaxMeshletTriangles {
		return nil, fmt.Errorf("max triangles %d out of range [1, %d]", maxTriangles, MaxMeshletTriangles)
	}

	const free = 0xff
	used := make([]uint8, vertexCount)
	for i := range used {
		used[i] = free
	}

	meshlets := make([]Meshlet, 0, BuildMeshletsBound(len(indices), maxVertices, maxTriangles))
	var current Meshlet

	for i := 0; i < len(indices); i += 3 {
		a, b, c := indices[i], indices[i+1], indices[i+2]
		if int(a) >= vertexCount || int(b) >= vertexCount || int(c) >= vertexCount {
			return nil, fmt.Errorf("triangle %d references vertex outside [0, %d)", i/3, vertexCount)
		}

		// count distinct new vertices; degenerate triangles repeat corners
		extra := 0
		if used[a] == free {
			extra++
		}
		if used[b] == free && b != a {
			extra++
		}
		if used[c] == free && c != a && c != b {
			extra++
		}

		if len(current.Vertices)+extra > maxVertices || len(current.Triangles) >= maxTriangles {
			meshlets = append(meshlets, current)
			for _, v := range current.Vertices {
				used[v] = free
			}
			current = Meshlet{}
		}

		var tri [3]uint8
		for k, v := range [3]uint32{a, b, c} {
			if used[v] == free {
				used[v] = uint8(len(current.Vertices))
				current.Vertices = append(current.Vertices, v)
			}
			tri[k] = used[v]
		}
		current.Triangles = append(current.Triangles, tri)
	}

	if len(current.Triangles) > 0 {
		meshlets = append(meshlets, current)
	}

	return meshlets, nil
}

// ComputeMeshletBounds computes a bounding sphere and a normal cone for m.
// positions is indexed by the mesh-global vertex indices in m.Vertices.
// Degenerate triangles are ignored; a meshlet with none left gets zero bounds.
func ComputeMeshletBounds(m Meshlet, positions [][3]float32) Bounds {
	var bounds Bounds

	corners := make([][3]float32, 0, len(m.Triangles)*3)
	normals := make([][3]float32, 0, len(m.Triangles))

	for _, tri := range m.Triangles {
		p0 := positions[m.Vertices[tri[0]]]
		p1 := positions[m.Vertices[tri[1]]]
		p2 := positions[m.Vertices[tri[2]]]

		e1 := sub(p1, p0)
		e2 := sub(p2, p0)
		n := cross(e1, e2)

		area := math32.Sqrt(dot(n, n))
		if area == 0 {
			continue
		}
		inv := 1 / area
		normals = append(normals, [3]float32{n[0] * inv, n[1] * inv, n[2] * inv})
		corners = append(corners, p0, p1, p2)
	}

	if len(normals) == 0 {
		return bounds
	}

	center, radius := boundingSphere(corners)
	bounds.Center = center
	bounds.Radius = radius

	nsphere, _ := boundingSphere(normals)
	axis := nsphere
	axisLength := math32.Sqrt(dot(axis, axis))
	if axisLength != 0 {
		axis = [3]float32{axis[0] / axisLength, axis[1] / axisLength, axis[2] / axisLength}
	}

	minDot := float32(1)
	for _, n := range normals {
		minDot = math32.Min(minDot, dot(n, axis))
	}

	if minDot <= 0.1 {
		// cone wider than ~84 degrees; culling would almost never succeed
		bounds.ConeCutoff = 1
		return bounds
	}

	maxT := float32(0)
	for i, n := range normals {
		p0 := corners[i*3]
		c := sub(center, p0)
		dc := dot(c, n)
		dn := dot(axis, n)
		t := dc / dn
		if t > maxT {
			maxT = t
		}
	}

	bounds.ConeApex = [3]float32{
		center[0] - axis[0]*maxT,
		center[1] - axis[1]*maxT,
		center[2] - axis[2]*maxT,
	}
	bounds.ConeAxis = axis
	bounds.ConeCutoff = math32.Sqrt(1 - minDot*minDot)

	return bounds
}

// boundingSphere grows a sphere seeded by the most distant pair of axis
// extremes until it contains every point.
func boundingSphere(points [][3]float32) ([3]float32, float32) {
	var pmin, pmax [3]int
	for i, p := range points {
		for axis := 0; axis < 3; axis++ {
			if p[axis] < points[pmin[axis]][axis] {
				pmin[axis] = i
			}
			if p[axis] > points[pmax[axis]][axis] {
				pmax[axis] = i
			}
		}
	}

	bestD2 := float32(0)
	bestAxis := 0
	for axis := 0; axis < 3; axis++ {
		d := sub(points[pmax[axis]], points[pmin[axis]])
		if d2 := dot(d, d); d2 > bestD2 {
			bestD2 = d2
			bestAxis = axis
		}
	}

	p1 := points[pmin[bestAxis]]
	p2 := points[pmax[bestAxis]]
	center := [3]float32{(p1[0] + p2[0]) / 2, (p1[1] + p2[1]) / 2, (p1[2] + p2[2]) / 2}
	radius := math32.Sqrt(bestD2) / 2

	for _, p := range points {
		d := sub(p, center)
		d2 := dot(d, d)
		if d2 > radius*radius {
			dist := math32.Sqrt(d2)
			k := 0.5 + (radius/dist)/2
			center = [3]float32{
				center[0]*k + p[0]*(1-k),
				center[1]*k + p[1]*(1-k),
				center[2]*k + p[2]*(1-k),
			}
			radius = (radius + dist) / 2
		}
	}

	return center, radius
}

func sub(a, b [3]float32) [3]float32 {
	return [3]float32{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func dot(a, b [3]float32) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func cross(a, b [3]float32) [3]float32 {
	return [3]float32{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}
