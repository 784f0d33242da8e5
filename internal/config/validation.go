// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/rs/zerolog"
)

// Validate checks the resolved configuration; every problem is reported.
func Validate(cfg AppConfig) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(cfg.OutDir) == "" {
		add("outdir: must not be empty")
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel)); err != nil || cfg.LogLevel == "" {
		add("logging.level: unknown level %q", cfg.LogLevel)
	}
	switch strings.ToLower(cfg.LogFormat) {
	case "console", "json":
	default:
		add("logging.format: must be console or json, got %q", cfg.LogFormat)
	}

	if cfg.Tolerance.Ratio < 0 || cfg.Tolerance.Ratio >= 1 {
		add("sizeTolerance.ratio: must be in [0, 1), got %v", cfg.Tolerance.Ratio)
	}
	if cfg.Tolerance.Bytes < 0 {
		add("sizeTolerance.bytes: must not be negative, got %d", cfg.Tolerance.Bytes)
	}

	for i, m := range cfg.PathMappings {
		if !strings.HasPrefix(m.ApplianceRoot, "/") || path.Clean(m.ApplianceRoot) == "/" {
			add("pathMappings[%d].applianceRoot: must be an absolute path below /, got %q", i, m.ApplianceRoot)
		}
		if strings.HasPrefix(m.DriveRoot, "..") || strings.Contains(m.DriveRoot, "/../") {
			add("pathMappings[%d].driveRoot: must stay on the drive, got %q", i, m.DriveRoot)
		}
	}

	for i, p := range cfg.DBSearchPaths {
		if strings.HasPrefix(p, "/") || strings.HasPrefix(path.Clean(p), "..") {
			add("database.searchPaths[%d]: must be relative to the drive, got %q", i, p)
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
