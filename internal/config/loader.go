// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/tablo-rescue/internal/recordings"
)

// Override applies a command line setting on top of the loaded layers.
type Override func(*AppConfig)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{} // Mechanical tracking of consumed keys
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(name, defaultVal string) string {
	key := EnvPrefix + name
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(name string, defaultVal bool) bool {
	key := EnvPrefix + name
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt64(name string, defaultVal int64) int64 {
	key := EnvPrefix + name
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt64(key, defaultVal)
}

func (l *Loader) envFloat(name string, defaultVal float64) float64 {
	key := EnvPrefix + name
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

func (l *Loader) envList(name string, defaultVal []string) []string {
	key := EnvPrefix + name
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseList(key, defaultVal)
}

// Load resolves configuration with precedence: flags > ENV > File > Defaults,
// then validates the result.
func (l *Loader) Load(overrides ...Override) (AppConfig, error) {
	cfg := AppConfig{}

	// 1. Defaults
	l.setDefaults(&cfg)

	// 2. File (if provided)
	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		mergeFileConfig(&cfg, fileCfg)
	}

	// 3. Environment
	l.mergeEnvConfig(&cfg)

	// 4. Flags
	for _, o := range overrides {
		o(&cfg)
	}

	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile loads configuration from a YAML file with STRICT parsing.
// Unknown fields will cause a fatal error to prevent misconfiguration.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // Reject unknown fields

	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		if isYAMLUnknownFieldError(err) {
			return nil, fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	return &fileCfg, nil
}

func isYAMLUnknownFieldError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "field") && strings.Contains(msg, "not found")
}

func mergeFileConfig(cfg *AppConfig, f *FileConfig) {
	if f.OutDir != nil {
		cfg.OutDir = expandHome(*f.OutDir)
	}
	if f.Force != nil {
		cfg.Force = *f.Force
	}
	if f.AcceptSizeMismatch != nil {
		cfg.AcceptSizeMismatch = *f.AcceptSizeMismatch
	}
	if f.NFO != nil {
		cfg.WriteNFO = *f.NFO
	}
	if db := f.Database; db != nil {
		if db.File != nil {
			cfg.DBFile = expandHome(*db.File)
		}
		if len(db.SearchPaths) > 0 {
			cfg.DBSearchPaths = append([]string(nil), db.SearchPaths...)
		}
		if db.CheckIntegrity != nil {
			cfg.CheckDB = *db.CheckIntegrity
		}
	}
	if len(f.PathMappings) > 0 {
		cfg.PathMappings = make([]recordings.PathMapping, 0, len(f.PathMappings))
		for _, m := range f.PathMappings {
			cfg.PathMappings = append(cfg.PathMappings, recordings.PathMapping{
				ApplianceRoot: m.ApplianceRoot,
				DriveRoot:     m.DriveRoot,
			})
		}
	}
	if t := f.SizeTolerance; t != nil {
		if t.Ratio != nil {
			cfg.Tolerance.Ratio = *t.Ratio
		}
		if t.Bytes != nil {
			cfg.Tolerance.Bytes = *t.Bytes
		}
	}
	if f.MetricsFile != nil {
		cfg.MetricsFile = expandHome(*f.MetricsFile)
	}
	if lg := f.Logging; lg != nil {
		if lg.Level != nil {
			cfg.LogLevel = *lg.Level
		}
		if lg.Format != nil {
			cfg.LogFormat = *lg.Format
		}
	}
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.OutDir = expandHome(l.envString("OUTDIR", cfg.OutDir))
	cfg.Force = l.envBool("FORCE", cfg.Force)
	cfg.AcceptSizeMismatch = l.envBool("ACCEPT_SIZE_MISMATCH", cfg.AcceptSizeMismatch)
	cfg.WriteNFO = l.envBool("NFO", cfg.WriteNFO)
	cfg.DBFile = l.envString("DBFILE", cfg.DBFile)
	cfg.DBSearchPaths = l.envList("DB_SEARCH_PATHS", cfg.DBSearchPaths)
	cfg.CheckDB = l.envBool("CHECK_DB", cfg.CheckDB)
	cfg.Tolerance.Ratio = l.envFloat("SIZE_TOLERANCE_RATIO", cfg.Tolerance.Ratio)
	cfg.Tolerance.Bytes = l.envInt64("SIZE_TOLERANCE_BYTES", cfg.Tolerance.Bytes)
	cfg.MetricsFile = l.envString("METRICS_FILE", cfg.MetricsFile)
	cfg.LogLevel = l.envString("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = l.envString("LOG_FORMAT", cfg.LogFormat)

	if roots := l.envList("APPLIANCE_ROOTS", nil); len(roots) > 0 {
		cfg.PathMappings = cfg.PathMappings[:0:0]
		for _, r := range roots {
			cfg.PathMappings = append(cfg.PathMappings, recordings.PathMapping{ApplianceRoot: r})
		}
	}
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
