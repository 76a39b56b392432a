package resmodel

import (
	"fmt"
	"strings"
)

// TextureUsage is the slot a texture is bound to.
type TextureUsage uint8

const (
	UsageNone TextureUsage = iota
	UsageDiffuse
	UsageSpecular
	UsageAmbient
	UsageEmissive
	UsageHeight
	UsageNormal
	UsageShininess
	UsageOpacity
	UsageDisplacement
	UsageLightmap
	UsageReflection
)

var usageNames = [...]string{
	"NONE",
	"DIFFUSE",
	"SPECULAR",
	"AMBIENT",
	"EMISSIVE",
	"HEIGHT",
	"NORMAL",
	"SHININESS",
	"OPACITY",
	"DISPLACEMENT",
	"LIGHTMAP",
	"REFLECTION",
}

// CatalogUsages lists the usage slots in catalog order.
var CatalogUsages = []TextureUsage{
	UsageDiffuse,
	UsageSpecular,
	UsageAmbient,
	UsageEmissive,
	UsageHeight,
	UsageNormal,
	UsageShininess,
	UsageOpacity,
	UsageDisplacement,
	UsageLightmap,
	UsageReflection,
}

// String returns the upper-case usage name.
func (u TextureUsage) String() string {
	if int(u) < len(usageNames) {
		return usageNames[u]
	}
	return fmt.Sprintf("Unknown(%d)", u)
}

// ParseTextureUsage parses a usage name case-insensitively.
func ParseTextureUsage(s string) (TextureUsage, error) {
	for i, name := range usageNames {
		if strings.EqualFold(name, s) {
			return TextureUsage(i), nil
		}
	}
	return UsageNone, fmt.Errorf("unknown texture usage %q", s)
}

// Texture is one (usage, path) binding of a material.
type Texture struct {
	Usage TextureUsage
	Path  string
}

// Material is one entry of the model's material table.
type Material struct {
	Name     string
	Hash     uint32
	Textures []Texture
}
