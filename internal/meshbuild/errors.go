package meshbuild

import (
	"errors"

	"github.com/Faultbox/resmesh/pkg/scene"
)

// Conversion errors.
var (
	ErrInputNotFound     = errors.New("input not found")
	ErrImportFailure     = errors.New("scene import failed")
	ErrMalformedMesh     = errors.New("malformed mesh")
	ErrUnsupportedFormat = scene.ErrUnsupportedFormat

	// ErrEmptyMesh is returned by Builder.Build for meshes without vertices
	// or faces. The converter skips such meshes.
	ErrEmptyMesh = errors.New("mesh has no vertices or faces")
)
