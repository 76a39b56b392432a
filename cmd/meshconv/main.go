// Package main is the meshconv command: it converts a scene file into a
// meshlet model and optionally exports its material table as YAML.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/Faultbox/resmesh/internal/config"
	"github.com/Faultbox/resmesh/internal/export"
	"github.com/Faultbox/resmesh/internal/logger"
	"github.com/Faultbox/resmesh/internal/meshbuild"
	"github.com/Faultbox/resmesh/pkg/resfile"
)

func main() {
	// Parse CLI flags first
	config.ParseFlags()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}

	logger.Sugar.Debugf("Config: %+v", cfg)

	if err := run(cfg); err != nil {
		logger.Error("conversion failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}

func run(cfg *config.Config) error {
	if path := config.SaveConfigPath(); path != "" {
		if err := cfg.SaveTo(path); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
		logger.Info("Config saved", zap.String("path", path))
		if config.InputPath() == "" {
			return nil
		}
	}

	conv, err := meshbuild.NewConverter(cfg)
	if err != nil {
		return err
	}
	defer conv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	j := &job{
		conv:      conv,
		input:     config.InputPath(),
		output:    config.OutputPath(),
		materials: config.MaterialPath(),
	}
	if err := j.run(ctx); err != nil {
		return err
	}

	if config.Watch() {
		return watch(ctx, j)
	}
	return nil
}

// job is one input/output pairing.
type job struct {
	conv      *meshbuild.Converter
	input     string
	output    string
	materials string // empty skips the material export
}

// run converts the input and writes the outputs. Nothing is written when
// the conversion fails.
func (j *job) run(ctx context.Context) error {
	if j.output == "" {
		return errors.New("no output path given (-o)")
	}

	model, err := j.conv.ConvertFile(ctx, j.input)
	if err != nil {
		return err
	}

	if err := resfile.Save(j.output, model, j.conv.Layout()); err != nil {
		return fmt.Errorf("saving model: %w", err)
	}

	if j.materials != "" {
		if err := export.SaveMaterials(j.materials, model.Materials); err != nil {
			// The model alone is an incomplete result.
			os.Remove(j.output)
			return fmt.Errorf("exporting materials: %w", err)
		}
		logger.Info("Materials saved", zap.String("path", j.materials))
	}

	logger.Info("Model saved",
		zap.String("path", j.output),
		zap.Stringer("layout", j.conv.Layout()))
	return nil
}
