package meshbuild

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/resmesh/internal/assets"
	"github.com/Faultbox/resmesh/internal/config"
	"github.com/Faultbox/resmesh/internal/logger"
	"github.com/Faultbox/resmesh/pkg/resmodel"
	"github.com/Faultbox/resmesh/pkg/scene"
)

// Converter turns scene files into models using one configuration.
type Converter struct {
	cfg     *config.Config
	layout  resmodel.Layout
	builder *Builder
	library *assets.Library
	log     *zap.Logger
}

// NewConverter creates a Converter and opens the configured archives. cfg
// must not be modified afterwards.
func NewConverter(cfg *config.Config) (*Converter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	layout, err := resmodel.ParseLayout(cfg.Convert.Layout)
	if err != nil {
		return nil, err
	}

	log := logger.Named("meshbuild")
	limits := Limits{
		MaxVertices:          cfg.Meshlet.MaxVertices,
		MaxPrimitives:        cfg.Meshlet.MaxPrimitives,
		MaxPrimitivesSkinned: cfg.Meshlet.MaxPrimitivesSkinned,
	}

	c := &Converter{
		cfg:     cfg,
		layout:  layout,
		builder: NewBuilder(limits, log),
		log:     log,
	}
	if len(cfg.Import.Archives) > 0 {
		if c.library, err = assets.Open(cfg.Import.Charset, cfg.Import.Archives...); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Close releases the archives opened by NewConverter.
func (c *Converter) Close() {
	if c.library != nil {
		c.library.Close()
	}
}

// Layout returns the vertex layout models should be written with.
func (c *Converter) Layout() resmodel.Layout {
	return c.layout
}

// ImportOptions returns the scene import options of the configuration.
func (c *Converter) ImportOptions() scene.Options {
	return scene.Options{
		Charset:          c.cfg.Import.Charset,
		GenerateNormals:  c.cfg.Import.GenerateNormals,
		GenerateTangents: c.cfg.Import.GenerateTangents,
		MergeMaterials:   c.cfg.Import.MergeMaterials,
	}
}

// ConvertFile imports the scene at path and converts it. A path that does
// not exist on disk is looked up in the configured archives. The scene only
// lives for the duration of the call.
func (c *Converter) ConvertFile(ctx context.Context, path string) (*resmodel.Model, error) {
	s, err := c.load(path)
	if err != nil {
		return nil, err
	}
	for _, w := range s.Warnings {
		c.log.Warn("Import warning", zap.String("path", path), zap.String("warning", w))
	}
	return c.Convert(ctx, s)
}

func (c *Converter) load(path string) (*scene.Scene, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no input path given", ErrInputNotFound)
	}

	var (
		s   *scene.Scene
		err error
	)
	_, statErr := os.Stat(path)
	switch {
	case statErr == nil:
		c.log.Info("Importing scene", zap.String("path", path))
		s, err = scene.Load(path, c.ImportOptions())
	case !errors.Is(statErr, os.ErrNotExist):
		return nil, fmt.Errorf("%w: %w", ErrImportFailure, statErr)
	case c.library != nil && c.library.Contains(path):
		name := strings.TrimPrefix(strings.ReplaceAll(path, "\\", "/"), "/")
		c.log.Info("Importing scene from archive", zap.String("name", name))
		s, err = scene.LoadFS(c.library, name, c.ImportOptions())
	default:
		return nil, fmt.Errorf("%w: %s", ErrInputNotFound, path)
	}

	if err != nil {
		if errors.Is(err, ErrUnsupportedFormat) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrImportFailure, path, err)
	}
	return s, nil
}

// Convert builds a model from s. A malformed mesh fails the whole
// conversion; empty meshes are skipped with a warning.
func (c *Converter) Convert(ctx context.Context, s *scene.Scene) (*resmodel.Model, error) {
	model := &resmodel.Model{Materials: CatalogMaterials(s, c.log)}

	meshes := make([]*resmodel.Mesh, len(s.Meshes))
	build := func(i int) error {
		src := &s.Meshes[i]
		hash, ok := MaterialHash(s, src.MaterialIndex)
		if !ok {
			c.log.Warn("Material name unavailable, falling back to index",
				zap.String("mesh", src.Name),
				zap.Int("material", src.MaterialIndex))
		}

		m, err := c.builder.Build(src, hash)
		if errors.Is(err, ErrEmptyMesh) {
			c.log.Warn("Skipping empty mesh", zap.Int("index", i), zap.String("mesh", src.Name))
			return nil
		}
		if err != nil {
			return fmt.Errorf("mesh %d %q: %w", i, src.Name, err)
		}
		meshes[i] = m
		return nil
	}

	if err := c.run(ctx, len(s.Meshes), build); err != nil {
		return nil, err
	}

	for _, m := range meshes {
		if m != nil {
			model.Meshes = append(model.Meshes, *m)
		}
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}

	stats := model.Stats()
	c.log.Info("Model converted",
		zap.Int("meshes", stats.Meshes),
		zap.Int("skinned", stats.Skinned),
		zap.Int("vertices", stats.Vertices),
		zap.Int("primitives", stats.Primitives),
		zap.Int("meshlets", stats.Meshlets),
		zap.Int("materials", stats.Materials))

	return model, nil
}

// run calls fn for 0..n-1, sequentially or on up to Convert.Workers
// goroutines. Each index is handled by exactly one call.
func (c *Converter) run(ctx context.Context, n int, fn func(int) error) error {
	if c.cfg.Convert.Workers <= 1 {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Convert.Workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(i)
		})
	}
	return g.Wait()
}
