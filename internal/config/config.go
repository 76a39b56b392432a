// Package config handles converter configuration loading and management.
package config

import (
	"fmt"

	"github.com/Faultbox/resmesh/pkg/resmodel"
)

// Config holds all converter settings.
type Config struct {
	Meshlet MeshletConfig `yaml:"meshlet"`
	Convert ConvertConfig `yaml:"convert"`
	Import  ImportConfig  `yaml:"import"`
	Logging LoggingConfig `yaml:"logging"`
}

// MeshletConfig holds the cluster size limits.
type MeshletConfig struct {
	MaxVertices          int `yaml:"max_vertices"`
	MaxPrimitives        int `yaml:"max_primitives"`
	MaxPrimitivesSkinned int `yaml:"max_primitives_skinned"`
}

// ConvertConfig holds pipeline settings.
type ConvertConfig struct {
	Workers int    `yaml:"workers"` // 0 or 1 converts meshes sequentially
	Layout  string `yaml:"layout"`  // "split" or "combined"
}

// ImportConfig holds scene import settings.
type ImportConfig struct {
	Charset          string `yaml:"charset"` // code page of names in legacy formats
	GenerateNormals  bool   `yaml:"generate_normals"`
	GenerateTangents bool   `yaml:"generate_tangents"`
	MergeMaterials   bool   `yaml:"merge_materials"`

	// Archives are GRF files searched, last first, for inputs that are
	// not found on disk.
	Archives []string `yaml:"archives,omitempty"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Meshlet: MeshletConfig{
			MaxVertices:          resmodel.MaxMeshletVertices,
			MaxPrimitives:        resmodel.MaxMeshletPrimitives,
			MaxPrimitivesSkinned: 124,
		},
		Convert: ConvertConfig{
			Workers: 1,
			Layout:  resmodel.LayoutSplit.String(),
		},
		Import: ImportConfig{
			Charset:          "euc-kr",
			GenerateNormals:  true,
			GenerateTangents: true,
			MergeMaterials:   true,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate checks the settings the pipeline depends on.
func (c *Config) Validate() error {
	m := c.Meshlet
	if m.MaxVertices < 3 || m.MaxVertices > resmodel.MaxMeshletVertices {
		return fmt.Errorf("meshlet.max_vertices %d out of range [3, %d]", m.MaxVertices, resmodel.MaxMeshletVertices)
	}
	if m.MaxPrimitives < 1 || m.MaxPrimitives > resmodel.MaxMeshletPrimitives {
		return fmt.Errorf("meshlet.max_primitives %d out of range [1, %d]", m.MaxPrimitives, resmodel.MaxMeshletPrimitives)
	}
	if m.MaxPrimitivesSkinned < 1 || m.MaxPrimitivesSkinned > resmodel.MaxMeshletPrimitives {
		return fmt.Errorf("meshlet.max_primitives_skinned %d out of range [1, %d]", m.MaxPrimitivesSkinned, resmodel.MaxMeshletPrimitives)
	}
	if c.Convert.Workers < 0 {
		return fmt.Errorf("convert.workers must not be negative, got %d", c.Convert.Workers)
	}
	for _, a := range c.Import.Archives {
		if a == "" {
			return fmt.Errorf("import.archives contains an empty path")
		}
	}
	if _, err := resmodel.ParseLayout(c.Convert.Layout); err != nil {
		return fmt.Errorf("convert.layout: %w", err)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	return nil
}
