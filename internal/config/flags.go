package config

import (
	"flag"
	"strings"
)

var (
	flagInput    = flag.String("i", "", "Input scene file (.obj, .gltf, .glb, .rsm, .gnd, .rsw)")
	flagOutput   = flag.String("o", "", "Output model file")
	flagMaterial = flag.String("m", "", "Optional material YAML output file")
	flagConfig   = flag.String("config", "", "Path to config file")
	flagDebug    = flag.Bool("debug", false, "Enable debug logging")
	flagLogFile  = flag.String("log-file", "", "Also write logs to this file")
	flagWorkers  = flag.Int("workers", 0, "Number of meshes converted in parallel")
	flagLayout   = flag.String("layout", "", "Vertex layout: split or combined")
	flagSave     = flag.String("save-config", "", "Write the effective config to this file")
	flagWatch    = flag.Bool("watch", false, "Convert again whenever the input file changes")
	flagArchives = flag.String("grf", "", "Comma-separated GRF archives to search for the input")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// InputPath returns the -i flag.
func InputPath() string {
	return *flagInput
}

// OutputPath returns the -o flag.
func OutputPath() string {
	return *flagOutput
}

// MaterialPath returns the -m flag.
func MaterialPath() string {
	return *flagMaterial
}

// SaveConfigPath returns the -save-config flag.
func SaveConfigPath() string {
	return *flagSave
}

// Watch returns the -watch flag.
func Watch() bool {
	return *flagWatch
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagLogFile != "" {
		cfg.Logging.LogFile = *flagLogFile
	}
	if *flagWorkers > 0 {
		cfg.Convert.Workers = *flagWorkers
	}
	if *flagLayout != "" {
		cfg.Convert.Layout = *flagLayout
	}
	if *flagArchives != "" {
		for _, a := range strings.Split(*flagArchives, ",") {
			if a = strings.TrimSpace(a); a != "" {
				cfg.Import.Archives = append(cfg.Import.Archives, a)
			}
		}
	}
}
