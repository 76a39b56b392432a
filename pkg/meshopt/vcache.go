package meshopt

// cacheSize is the simulated post-transform cache size.
const cacheSize = 16

// maxValence clamps the live-triangle count used for scoring.
const maxValence = 8

// Score tables tuned for a 16-entry FIFO-like cache: cacheScores is indexed
// by cache position + 1 (0 for "not in cache") and liveScores by the number
// of triangles still to be emitted for the vertex.
var (
	cacheScores = [1 + cacheSize]float32{
		0, 0.779, 0.791, 0.789, 0.981, 0.843, 0.726, 0.847,
		0.882, 0.867, 0.799, 0.642, 0.613, 0.600, 0.568, 0.372, 0.234,
	}
	liveScores = [1 + maxValence]float32{
		0, 0.995, 0.713, 0.450, 0.404, 0.059, 0.005, 0.147, 0.006,
	}
)

func vertexScore(cachePosition int, liveTriangles uint32) float32 {
	if liveTriangles > maxValence {
		liveTriangles = maxValence
	}
	return liveScores[liveTriangles] + cacheScores[1+cachePosition]
}

// adjacency lists the triangles that reference each vertex.
type adjacency struct {
	counts  []uint32
	offsets []uint32
	data    []uint32
}

func buildAdjacency(indices []uint32, vertexCount int) adjacency {
	adj := adjacency{
		counts:  make([]uint32, vertexCount),
		offsets: make([]uint32, vertexCount),
		data:    make([]uint32, len(indices)),
	}
	for _, index := range indices {
		adj.counts[index]++
	}
	offset := uint32(0)
	for i := range adj.counts {
		adj.offsets[i] = offset
		offset += adj.counts[i]
	}
	for i := range adj.counts {
		adj.counts[i] = 0
	}
	for i, index := range indices {
		tri := uint32(i / 3)
		adj.data[adj.offsets[index]+adj.counts[index]] = tri
		adj.counts[index]++
	}
	return adj
}

func (a *adjacency) triangles(v uint32) []uint32 {
	return a.data[a.offsets[v] : a.offsets[v]+a.counts[v]]
}

func (a *adjacency) remove(v, tri uint32) {
	list := a.triangles(v)
	for i, t := range list {
		if t == tri {
			list[i] = list[len(list)-1]
			a.counts[v]--
			return
		}
	}
}

// OptimizeVertexCache reorders triangles to reduce post-transform cache
// misses and returns the new index buffer. The order is fully determined by
// the input: scores are compared with strict less-than, so the earliest
// triangle wins ties, and dead ends resume from the lowest unemitted input
// triangle.
func OptimizeVertexCache(indices []uint32, vertexCount int) []uint32 {
	dst := make([]uint32, len(indices))
	faceCount := len(indices) / 3
	if faceCount == 0 {
		return dst
	}

	adj := buildAdjacency(indices, vertexCount)

	live := make([]uint32, vertexCount)
	copy(live, adj.counts)

	vertexScores := make([]float32, vertexCount)
	for i := range vertexScores {
		vertexScores[i] = vertexScore(-1, live[i])
	}

	triangleScores := make([]float32, faceCount)
	for i := range triangleScores {
		a, b, c := indices[i*3], indices[i*3+1], indices[i*3+2]
		triangleScores[i] = vertexScores[a] + vertexScores[b] + vertexScores[c]
	}

	emitted := make([]bool, faceCount)
	cache := make([]uint32, 0, cacheSize+3)
	cacheNew := make([]uint32, 0, cacheSize+3)

	current := uint32(0)
	inputCursor := 1
	output := 0

	for current != Unused {
		a, b, c := indices[current*3], indices[current*3+1], indices[current*3+2]

		dst[output*3+0] = a
		dst[output*3+1] = b
		dst[output*3+2] = c
		output++

		emitted[current] = true
		triangleScores[current] = 0

		cacheNew = append(cacheNew[:0], a, b, c)
		for _, index := range cache {
			if index != a && index != b && index != c {
				cacheNew = append(cacheNew, index)
			}
		}
		cache, cacheNew = cacheNew, cache

		live[a]--
		live[b]--
		live[c]--

		adj.remove(a, current)
		adj.remove(b, current)
		adj.remove(c, current)

		best := Unused
		bestScore := float32(0)

		for i, index := range cache {
			position := i
			if i >= cacheSize {
				position = -1
			}
			score := vertexScore(position, live[index])
			diff := score - vertexScores[index]
			vertexScores[index] = score

			for _, tri := range adj.triangles(index) {
				triScore := triangleScores[tri] + diff
				if bestScore < triScore {
					best = tri
					bestScore = triScore
				}
				triangleScores[tri] = triScore
			}
		}

		if len(cache) > cacheSize {
			cache = cache[:cacheSize]
		}

		current = best
		if current == Unused {
			for inputCursor < faceCount && emitted[inputCursor] {
				inputCursor++
			}
			if inputCursor < faceCount {
				current = uint32(inputCursor)
			}
		}
	}

	return dst
}

// OptimizeVertexFetchRemap returns a remap table that orders vertices by
// first use in indices, and the number of referenced vertices.
func OptimizeVertexFetchRemap(indices []uint32, vertexCount int) ([]uint32, int) {
	remap := make([]uint32, vertexCount)
	for i := range remap {
		remap[i] = Unused
	}
	next := uint32(0)
	for _, index := range indices {
		if remap[index] == Unused {
			remap[index] = next
			next++
		}
	}
	return remap, int(next)
}

// OptimizeVertexFetch reorders vertices in place of a single stream by first
// use, rewriting indices to match. It returns the reordered vertices.
func OptimizeVertexFetch[T any](indices []uint32, vertices []T) []T {
	remap, unique := OptimizeVertexFetchRemap(indices, len(vertices))
	RemapIndexBuffer(indices, indices, remap)
	return RemapVertexBuffer(vertices, unique, remap)
}
