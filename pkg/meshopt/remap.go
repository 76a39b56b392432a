// Package meshopt implements the index and vertex buffer passes the mesh
// pipeline needs: vertex deduplication, post-transform cache ordering,
// vertex fetch ordering, meshlet clustering and meshlet culling bounds.
//
// The functions follow the conventions of meshoptimizer: index buffers are
// flat triangle lists, a remap table maps an old vertex index to a new one,
// and Unused marks vertices that no index references.
package meshopt

import "fmt"

// Unused marks a remap entry for a vertex that is not referenced.
const Unused = ^uint32(0)

// Stream describes one vertex attribute stream as raw bytes.
// Size is the number of bytes compared per vertex and Stride the distance
// between consecutive vertices; Size must not exceed Stride.
type Stream struct {
	Data   []byte
	Size   int
	Stride int
}

// vertexCount returns how many whole vertices the stream holds.
func (s Stream) vertexCount() int {
	if s.Stride == 0 {
		return 0
	}
	return len(s.Data) / s.Stride
}

// GenerateVertexRemapMulti builds a remap table that merges vertices whose
// bytes are identical across every stream. New indices are assigned in
// order of first reference in indices. Vertices that are never referenced
// map to Unused. It returns the table and the unique vertex count.
func GenerateVertexRemapMulti(indices []uint32, vertexCount int, streams []Stream) ([]uint32, int, error) {
	for i, s := range streams {
		if s.Size <= 0 || s.Size > s.Stride {
			return nil, 0, fmt.Errorf("stream %d: invalid size %d for stride %d", i, s.Size, s.Stride)
		}
		if s.vertexCount() < vertexCount {
			return nil, 0, fmt.Errorf("stream %d: holds %d vertices, need %d", i, s.vertexCount(), vertexCount)
		}
	}

	remap := make([]uint32, vertexCount)
	for i := range remap {
		remap[i] = Unused
	}

	keySize := 0
	for _, s := range streams {
		keySize += s.Size
	}
	seen := make(map[string]uint32, vertexCount)
	key := make([]byte, 0, keySize)
	next := uint32(0)

	for _, index := range indices {
		if int(index) >= vertexCount {
			return nil, 0, fmt.Errorf("index %d out of range (vertex count %d)", index, vertexCount)
		}
		if remap[index] != Unused {
			continue
		}

		key = key[:0]
		for _, s := range streams {
			off := int(index) * s.Stride
			key = append(key, s.Data[off:off+s.Size]...)
		}

		if existing, ok := seen[string(key)]; ok {
			remap[index] = existing
			continue
		}
		seen[string(key)] = next
		remap[index] = next
		next++
	}

	return remap, int(next), nil
}

// GenerateVertexRemap is GenerateVertexRemapMulti for a single stream.
func GenerateVertexRemap(indices []uint32, vertexCount int, stream Stream) ([]uint32, int, error) {
	return GenerateVertexRemapMulti(indices, vertexCount, []Stream{stream})
}

// RemapIndexBuffer writes remap[indices[i]] into dst. dst and indices may alias.
func RemapIndexBuffer(dst, indices, remap []uint32) {
	for i, index := range indices {
		dst[i] = remap[index]
	}
}

// RemapVertexBuffer returns a slice of length uniqueCount where every
// referenced source vertex i lands at remap[i]. The source is left untouched.
func RemapVertexBuffer[T any](src []T, uniqueCount int, remap []uint32) []T {
	dst := make([]T, uniqueCount)
	for i, r := range remap {
		if r != Unused {
			dst[r] = src[i]
		}
	}
	return dst
}
