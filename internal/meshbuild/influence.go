package meshbuild

import (
	"github.com/Faultbox/resmesh/pkg/math"
	"github.com/Faultbox/resmesh/pkg/resmodel"
)

// MaxInfluences is the number of bone slots per vertex.
const MaxInfluences = 4

// BoneInfluence is the capped set of bones affecting one vertex. A slot
// with weight 0 is free.
type BoneInfluence struct {
	Bones   [MaxInfluences]uint16
	Weights [MaxInfluences]float32
}

// Assign adds a contribution. The first free slot takes it; when all slots
// are taken it replaces the lightest slot (the earliest one on ties), but
// only if weight is strictly greater. Weights are not renormalized.
// It reports whether the contribution was stored.
func (b *BoneInfluence) Assign(bone uint16, weight float32) bool {
	// a zero weight would occupy a slot that still reads as free
	if !(weight > 0) {
		return false
	}

	for i := 0; i < MaxInfluences; i++ {
		if b.Weights[i] == 0 {
			b.Bones[i] = bone
			b.Weights[i] = weight
			return true
		}
	}

	lightest := 0
	for i := 1; i < MaxInfluences; i++ {
		if b.Weights[i] < b.Weights[lightest] {
			lightest = i
		}
	}
	if weight <= b.Weights[lightest] {
		return false
	}
	b.Bones[lightest] = bone
	b.Weights[lightest] = weight
	return true
}

// Count returns the number of occupied slots.
func (b *BoneInfluence) Count() int {
	n := 0
	for _, w := range b.Weights {
		if w != 0 {
			n++
		}
	}
	return n
}

// Index returns the bone slots in stream form.
func (b *BoneInfluence) Index() resmodel.BoneIndex {
	return resmodel.BoneIndex(b.Bones)
}

// Weight returns the weight slots in stream form.
func (b *BoneInfluence) Weight() math.Vec4 {
	return math.Vec4{X: b.Weights[0], Y: b.Weights[1], Z: b.Weights[2], W: b.Weights[3]}
}
