package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ManifestEntry records one configuration as of a point in time. A store
// whose geometry or version tag is changed (a schema migration) appends a
// new entry rather than overwriting the old one, so the manifest doubles
// as a migration history. Change summarizes what moved relative to the
// previous entry, and GeometryChanged flags whether the move affects the
// on-disk block layout (region size, granularities, payload size, fill
// byte) rather than just bookkeeping fields — a geometry change means any
// data already on the backend can only be recovered through LoadLegacy
// under the old entry's Config, not the new one.
type ManifestEntry struct {
	Timestamp       int64   `json:"timestamp"`
	Version         int     `json:"version"`
	Config          *Config `json:"config"`
	Change          string  `json:"change"`
	GeometryChanged bool    `json:"geometry_changed"`
}

// describeChange reports what changed between two configurations, for the
// manifest's migration history. An empty from (the initial entry) always
// reports "initial configuration".
func describeChange(from, to *Config) (summary string, geometryChanged bool) {
	if from == nil {
		return "initial configuration", false
	}

	var parts []string
	field := func(name string, oldVal, newVal interface{}) {
		if oldVal != newVal {
			parts = append(parts, fmt.Sprintf("%s %v->%v", name, oldVal, newVal))
		}
	}

	field("region_size", from.RegionSize, to.RegionSize)
	field("erase_granularity", from.EraseGranularity, to.EraseGranularity)
	field("write_granularity", from.WriteGranularity, to.WriteGranularity)
	field("payload_size", from.PayloadSize, to.PayloadSize)
	field("fill_byte", from.FillByte, to.FillByte)
	geometryChanged = len(parts) > 0

	field("version_tag", from.VersionTag, to.VersionTag)
	field("telemetry_enabled", from.TelemetryEnabled, to.TelemetryEnabled)
	field("stats_enabled", from.StatsEnabled, to.StatsEnabled)

	if len(parts) == 0 {
		return "no change", false
	}

	summary = parts[0]
	for _, p := range parts[1:] {
		summary += ", " + p
	}
	return summary, geometryChanged
}

// Manifest tracks the configuration history for a store's backend
// directory.
type Manifest struct {
	DBPath     string
	Entries    []ManifestEntry
	Current    *ManifestEntry
	LastUpdate time.Time
	mu         sync.RWMutex
}

// NewManifest creates a new manifest for the given directory, seeding it
// with cfg (or a default configuration if cfg is nil).
func NewManifest(dbPath string, cfg *Config) (*Manifest, error) {
	if cfg == nil {
		cfg = NewDefaultConfig(dbPath)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	change, _ := describeChange(nil, cfg)
	entry := ManifestEntry{
		Timestamp: time.Now().Unix(),
		Version:   CurrentManifestVersion,
		Config:    cfg,
		Change:    change,
	}

	m := &Manifest{
		DBPath:     dbPath,
		Entries:    []ManifestEntry{entry},
		Current:    &entry,
		LastUpdate: time.Now(),
	}

	return m, nil
}

// LoadManifest loads an existing manifest from dbPath.
func LoadManifest(dbPath string) (*Manifest, error) {
	manifestPath := filepath.Join(dbPath, DefaultManifestFileName)
	file, err := os.Open(manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrManifestNotFound
		}
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var entries []ManifestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no entries in manifest", ErrInvalidManifest)
	}

	current := &entries[len(entries)-1]
	if err := current.Config.Validate(); err != nil {
		return nil, err
	}

	m := &Manifest{
		DBPath:     dbPath,
		Entries:    entries,
		Current:    current,
		LastUpdate: time.Now(),
	}

	return m, nil
}

// Save persists the manifest's entry history to disk.
func (m *Manifest) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.Current.Config.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(m.DBPath, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	manifestPath := filepath.Join(m.DBPath, DefaultManifestFileName)
	tempPath := manifestPath + ".tmp"

	data, err := json.MarshalIndent(m.Entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	if err := os.Rename(tempPath, manifestPath); err != nil {
		return fmt.Errorf("failed to rename manifest: %w", err)
	}

	m.LastUpdate = time.Now()
	return nil
}

// UpdateConfig appends a new configuration entry derived from the
// current one by applying fn, used when a store's geometry or version
// tag changes (a schema migration) and the prior configuration should
// remain in history.
func (m *Manifest) UpdateConfig(fn func(*Config)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	currentJSON, err := json.Marshal(m.Current.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal current config: %w", err)
	}

	var newConfig Config
	if err := json.Unmarshal(currentJSON, &newConfig); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	fn(&newConfig)

	if err := newConfig.Validate(); err != nil {
		return err
	}

	change, geometryChanged := describeChange(m.Current.Config, &newConfig)
	entry := ManifestEntry{
		Timestamp:       time.Now().Unix(),
		Version:         CurrentManifestVersion,
		Config:          &newConfig,
		Change:          change,
		GeometryChanged: geometryChanged,
	}

	m.Entries = append(m.Entries, entry)
	m.Current = &m.Entries[len(m.Entries)-1]

	return nil
}

// GeometryMigrations returns every history entry whose geometry changed
// relative to the entry before it, oldest first. A caller reopening a
// store after one of these needs to route through LoadLegacy rather than
// assume the backend's existing blocks match the current Config.
func (m *Manifest) GeometryMigrations() []ManifestEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ManifestEntry
	for _, e := range m.Entries {
		if e.GeometryChanged {
			out = append(out, e)
		}
	}
	return out
}

// GetConfig returns the current configuration.
func (m *Manifest) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Current.Config
}

// History returns every configuration this store has ever been
// reconfigured to, oldest first, for diagnostics.
func (m *Manifest) History() []ManifestEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ManifestEntry, len(m.Entries))
	copy(out, m.Entries)
	return out
}
