// Package config holds nvpersist's on-disk configuration: the geometry
// parameters a Store is constructed with, persisted alongside the data
// region itself so a later process can reopen it without being told the
// parameters out of band. Adapted from the teacher's manifest-backed
// Config, trimmed from its WAL/MemTable/SSTable/compaction fields down to
// the geometry tuple the persist engine actually needs.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/flashlog/nvpersist/pkg/geometry"
)

const (
	DefaultManifestFileName = "MANIFEST"
	CurrentManifestVersion  = 1
)

var (
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrManifestNotFound = errors.New("manifest not found")
	ErrInvalidManifest  = errors.New("invalid manifest")
)

// Config describes one store's backend file and block geometry.
type Config struct {
	Version int `json:"version"`

	// BackendPath is the file a FileBackend opens for this store.
	BackendPath string `json:"backend_path"`

	// Geometry parameters, mirroring geometry.New's arguments.
	RegionSize       uint32 `json:"region_size"`
	EraseGranularity uint32 `json:"erase_granularity"`
	WriteGranularity uint32 `json:"write_granularity"`
	PayloadSize      uint32 `json:"payload_size"`
	FillByte         byte   `json:"fill_byte"`

	// VersionTag is the byte every block this store writes is tagged
	// with, and the tag Init filters on.
	VersionTag byte `json:"version_tag"`

	// TelemetryEnabled and StatsEnabled toggle the ambient telemetry and
	// statistics collectors a Store is constructed with.
	TelemetryEnabled bool `json:"telemetry_enabled"`
	StatsEnabled     bool `json:"stats_enabled"`

	mu sync.RWMutex
}

// NewDefaultConfig creates a Config for a store backed by a file at
// backendPath, with a geometry generous enough for most small fixed-size
// records (a 64-byte payload over a 64 KiB region).
func NewDefaultConfig(backendPath string) *Config {
	return &Config{
		Version:          CurrentManifestVersion,
		BackendPath:      backendPath,
		RegionSize:       64 * 1024,
		EraseGranularity: 4096,
		WriteGranularity: 4,
		PayloadSize:      64,
		FillByte:         0xFF,
		VersionTag:       1,
		TelemetryEnabled: false,
		StatsEnabled:     true,
	}
}

// Validate checks that the configuration is internally consistent and
// that its geometry parameters can actually carve out at least one
// block.
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.Version <= 0 {
		return fmt.Errorf("%w: invalid version %d", ErrInvalidConfig, c.Version)
	}

	if c.BackendPath == "" {
		return fmt.Errorf("%w: backend path not specified", ErrInvalidConfig)
	}

	if c.RegionSize == 0 {
		return fmt.Errorf("%w: region size must be positive", ErrInvalidConfig)
	}

	if _, err := geometry.New(c.RegionSize, c.EraseGranularity, c.WriteGranularity, c.PayloadSize, c.FillByte); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return nil
}

// Geometry computes the geometry.Geometry this configuration describes.
func (c *Config) Geometry() (geometry.Geometry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return geometry.New(c.RegionSize, c.EraseGranularity, c.WriteGranularity, c.PayloadSize, c.FillByte)
}

// LoadConfigFromManifest reads the manifest file in dbPath as a single
// Config, the form SaveManifest writes; a file holding a Manifest's entry
// history fails with ErrInvalidManifest.
func LoadConfigFromManifest(dbPath string) (*Config, error) {
	manifestPath := filepath.Join(dbPath, DefaultManifestFileName)
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrManifestNotFound
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// SaveManifest saves the configuration to the manifest file in dbPath.
func (c *Config) SaveManifest(dbPath string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	manifestPath := filepath.Join(dbPath, DefaultManifestFileName)
	tempPath := manifestPath + ".tmp"

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	if err := os.Rename(tempPath, manifestPath); err != nil {
		return fmt.Errorf("failed to rename manifest: %w", err)
	}

	return nil
}

// Update applies fn to the configuration under the write lock.
func (c *Config) Update(fn func(*Config)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c)
}
