// Package export writes side files next to a converted model.
package export

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/resmesh/pkg/resmodel"
)

const materialsHeader = "# Materials\n"

type materialEntry struct {
	Name     string         `yaml:"name"`
	Hash     uint32         `yaml:"hash"`
	Textures []textureEntry `yaml:"textures,omitempty"`
}

type textureEntry struct {
	Usage string `yaml:"usage"`
	Path  string `yaml:"path"`
}

// WriteMaterials writes the material table as a YAML sequence of
// name/hash/textures entries. Usages are written by name.
func WriteMaterials(w io.Writer, materials []resmodel.Material) error {
	entries := make([]materialEntry, len(materials))
	for i, mat := range materials {
		entries[i] = materialEntry{Name: mat.Name, Hash: mat.Hash}
		for _, tex := range mat.Textures {
			entries[i].Textures = append(entries[i].Textures, textureEntry{
				Usage: tex.Usage.String(),
				Path:  tex.Path,
			})
		}
	}

	var buf bytes.Buffer
	buf.WriteString(materialsHeader)
	if len(entries) > 0 {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// ReadMaterials parses a file written by WriteMaterials.
func ReadMaterials(r io.Reader) ([]resmodel.Material, error) {
	var entries []materialEntry
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&entries); err != nil && err != io.EOF {
		return nil, err
	}

	materials := make([]resmodel.Material, len(entries))
	for i, e := range entries {
		materials[i] = resmodel.Material{Name: e.Name, Hash: e.Hash}
		for _, tex := range e.Textures {
			usage, err := resmodel.ParseTextureUsage(tex.Usage)
			if err != nil {
				return nil, fmt.Errorf("material %q: %w", e.Name, err)
			}
			materials[i].Textures = append(materials[i].Textures, resmodel.Texture{Usage: usage, Path: tex.Path})
		}
	}
	return materials, nil
}

// SaveMaterials writes the material table to path. The file is written to
// a temporary sibling first and renamed into place, so a failed save leaves
// nothing behind.
func SaveMaterials(path string, materials []resmodel.Material) error {
	var buf bytes.Buffer
	if err := WriteMaterials(&buf, materials); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// LoadMaterials reads a material file from path.
func LoadMaterials(path string) ([]resmodel.Material, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadMaterials(f)
}
