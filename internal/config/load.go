package config

import (
	"errors"
	"fmt"
	"os"
)

// Loaded is the outcome of resolving and reading one config file.
// Exists is false when no file was found and defaults are in effect.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load resolves the config path, reads it, and parses the contents.
// A missing file is not an error: defaults apply and a warning is
// attached so `doctor` and startup logs can point at the gap.
func Load(explicitPath string) (Loaded, error) {
	path, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	content, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return defaultsOnly(path), nil
	case err != nil:
		return Loaded{}, fmt.Errorf("read config %q: %w", path, err)
	}

	cfg, warnings, err := Parse(string(content), Default())
	if err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", path, err)
	}

	return Loaded{Path: path, Config: cfg, Warnings: warnings, Exists: true}, nil
}

func defaultsOnly(path string) Loaded {
	warning := Warning{
		Message: fmt.Sprintf("config file %q not found; using defaults", path),
	}
	return Loaded{
		Path:     path,
		Config:   Default(),
		Warnings: []Warning{warning},
	}
}
