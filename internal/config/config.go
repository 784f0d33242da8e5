// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config resolves run settings from defaults, an optional YAML file,
// TABLO_RESCUE_* environment variables and command line flags, in increasing
// order of precedence.
package config

import (
	"os"
	"path/filepath"

	"github.com/ManuGH/tablo-rescue/internal/recordings"
	"github.com/ManuGH/tablo-rescue/internal/tablodb"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "TABLO_RESCUE_"

// AppConfig is the resolved configuration of one run.
type AppConfig struct {
	OutDir             string
	Force              bool
	AcceptSizeMismatch bool
	WriteNFO           bool

	DBFile        string
	DBSearchPaths []string
	CheckDB       bool

	PathMappings []recordings.PathMapping
	Tolerance    recordings.Tolerance

	MetricsFile string

	LogLevel  string
	LogFormat string

	Version string
}

// FileConfig is the YAML file schema. Pointers distinguish "unset" from
// zero values.
type FileConfig struct {
	OutDir             *string           `yaml:"outdir"`
	Force              *bool             `yaml:"force"`
	AcceptSizeMismatch *bool             `yaml:"acceptSizeMismatch"`
	NFO                *bool             `yaml:"nfo"`
	Database           *DatabaseConfig   `yaml:"database"`
	PathMappings       []PathMappingFile `yaml:"pathMappings"`
	SizeTolerance      *ToleranceConfig  `yaml:"sizeTolerance"`
	MetricsFile        *string           `yaml:"metricsFile"`
	Logging            *LoggingConfig    `yaml:"logging"`
}

// DatabaseConfig selects and checks the appliance database.
type DatabaseConfig struct {
	File           *string  `yaml:"file"`
	SearchPaths    []string `yaml:"searchPaths"`
	CheckIntegrity *bool    `yaml:"checkIntegrity"`
}

// PathMappingFile maps an appliance root onto the drive.
type PathMappingFile struct {
	ApplianceRoot string `yaml:"applianceRoot"`
	DriveRoot     string `yaml:"driveRoot"`
}

// ToleranceConfig bounds accepted size drift.
type ToleranceConfig struct {
	Ratio *float64 `yaml:"ratio"`
	Bytes *int64   `yaml:"bytes"`
}

// LoggingConfig selects level and output format.
type LoggingConfig struct {
	Level  *string `yaml:"level"`
	Format *string `yaml:"format"`
}

// DefaultOutDir is $HOME/Videos, or ./Videos when there is no home directory.
func DefaultOutDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "Videos"
	}
	return filepath.Join(home, "Videos")
}

func (l *Loader) setDefaults(cfg *AppConfig) {
	cfg.OutDir = DefaultOutDir()
	cfg.DBSearchPaths = append([]string(nil), tablodb.DefaultSearchPaths...)
	cfg.PathMappings = recordings.DefaultMappings()
	cfg.Tolerance = recordings.DefaultTolerance()
	cfg.LogLevel = "warn"
	cfg.LogFormat = "console"
}
