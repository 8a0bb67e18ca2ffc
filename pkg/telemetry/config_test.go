// ABOUTME: Tests for telemetry configuration validation, environment variable loading, and default values
// ABOUTME: Ensures configuration behaves correctly with valid and invalid inputs using real config operations

package telemetry

import (
	"os"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ServiceName != "nvpersist" {
		t.Errorf("Expected default service name 'nvpersist', got '%s'", cfg.ServiceName)
	}

	if cfg.ServiceVersion != "development" {
		t.Errorf("Expected default service version 'development', got '%s'", cfg.ServiceVersion)
	}

	if !cfg.Enabled {
		t.Error("Expected telemetry to be enabled by default")
	}

	if len(cfg.Exporters) != 1 || cfg.Exporters[0] != "stdout" {
		t.Errorf("Expected default exporters ['stdout'], got %v", cfg.Exporters)
	}

	if cfg.SampleRate != 1.0 {
		t.Errorf("Expected default sample rate 1.0, got %f", cfg.SampleRate)
	}

	if cfg.ExportTimeout != 30*time.Second {
		t.Errorf("Expected default export timeout 30s, got %s", cfg.ExportTimeout)
	}
}

func TestConfigValidate(t *testing.T) {
	base := func() Config {
		return Config{
			ServiceName:        "test",
			ServiceVersion:     "1.0.0",
			Enabled:            true,
			Exporters:          []string{"stdout"},
			SampleRate:         1.0,
			ExportTimeout:      30 * time.Second,
			BatchTimeout:       5 * time.Second,
			MaxQueueSize:       2048,
			MaxExportBatchSize: 512,
		}
	}

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid default config", DefaultConfig(), false},
		{"empty service name", func() Config { c := base(); c.ServiceName = ""; return c }(), true},
		{"empty service version", func() Config { c := base(); c.ServiceVersion = ""; return c }(), true},
		{"invalid sample rate negative", func() Config { c := base(); c.SampleRate = -0.1; return c }(), true},
		{"invalid sample rate too high", func() Config { c := base(); c.SampleRate = 1.1; return c }(), true},
		{"invalid exporter", func() Config { c := base(); c.Exporters = []string{"invalid"}; return c }(), true},
		{"unsupported prometheus exporter", func() Config { c := base(); c.Exporters = []string{"prometheus"}; return c }(), true},
		{"invalid export timeout", func() Config { c := base(); c.ExportTimeout = 0; return c }(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigLoadFromEnv(t *testing.T) {
	envVars := []string{
		"NVPERSIST_TELEMETRY_SERVICE_NAME",
		"NVPERSIST_TELEMETRY_SERVICE_VERSION",
		"NVPERSIST_TELEMETRY_ENABLED",
		"NVPERSIST_TELEMETRY_EXPORTERS",
		"NVPERSIST_TELEMETRY_SAMPLE_RATE",
		"NVPERSIST_TELEMETRY_EXPORT_TIMEOUT",
	}

	originalEnv := make(map[string]string)
	for _, envVar := range envVars {
		originalEnv[envVar] = os.Getenv(envVar)
	}
	defer func() {
		for _, envVar := range envVars {
			if originalValue, exists := originalEnv[envVar]; exists && originalValue != "" {
				os.Setenv(envVar, originalValue)
			} else {
				os.Unsetenv(envVar)
			}
		}
	}()

	os.Setenv("NVPERSIST_TELEMETRY_SERVICE_NAME", "test-service")
	os.Setenv("NVPERSIST_TELEMETRY_SERVICE_VERSION", "2.0.0")
	os.Setenv("NVPERSIST_TELEMETRY_ENABLED", "false")
	os.Setenv("NVPERSIST_TELEMETRY_EXPORTERS", "stdout")
	os.Setenv("NVPERSIST_TELEMETRY_SAMPLE_RATE", "0.5")
	os.Setenv("NVPERSIST_TELEMETRY_EXPORT_TIMEOUT", "60s")

	cfg := DefaultConfig()
	cfg.LoadFromEnv()

	if cfg.ServiceName != "test-service" {
		t.Errorf("Expected service name 'test-service', got '%s'", cfg.ServiceName)
	}

	if cfg.ServiceVersion != "2.0.0" {
		t.Errorf("Expected service version '2.0.0', got '%s'", cfg.ServiceVersion)
	}

	if cfg.Enabled {
		t.Error("Expected telemetry to be disabled")
	}

	if len(cfg.Exporters) != 1 || cfg.Exporters[0] != "stdout" {
		t.Errorf("Expected exporters ['stdout'], got %v", cfg.Exporters)
	}

	if cfg.SampleRate != 0.5 {
		t.Errorf("Expected sample rate 0.5, got %f", cfg.SampleRate)
	}

	if cfg.ExportTimeout != 60*time.Second {
		t.Errorf("Expected export timeout 60s, got %s", cfg.ExportTimeout)
	}
}

func TestConfigHasExporter(t *testing.T) {
	cfg := Config{
		Exporters: []string{"stdout"},
	}

	if !cfg.HasExporter("stdout") {
		t.Error("Expected HasExporter('stdout') to return true")
	}

	if cfg.HasExporter("otlp") {
		t.Error("Expected HasExporter('otlp') to return false")
	}

	if cfg.HasExporter("invalid") {
		t.Error("Expected HasExporter('invalid') to return false")
	}
}

func TestConfigLoadFromEnvInvalidValues(t *testing.T) {
	originalEnabled := os.Getenv("NVPERSIST_TELEMETRY_ENABLED")
	originalSampleRate := os.Getenv("NVPERSIST_TELEMETRY_SAMPLE_RATE")

	defer func() {
		os.Setenv("NVPERSIST_TELEMETRY_ENABLED", originalEnabled)
		os.Setenv("NVPERSIST_TELEMETRY_SAMPLE_RATE", originalSampleRate)
	}()

	os.Setenv("NVPERSIST_TELEMETRY_ENABLED", "invalid")
	cfg := DefaultConfig()
	originalEnabledValue := cfg.Enabled
	cfg.LoadFromEnv()
	if cfg.Enabled != originalEnabledValue {
		t.Error("Invalid boolean should not change the value")
	}

	os.Setenv("NVPERSIST_TELEMETRY_SAMPLE_RATE", "invalid")
	cfg = DefaultConfig()
	originalSampleRateValue := cfg.SampleRate
	cfg.LoadFromEnv()
	if cfg.SampleRate != originalSampleRateValue {
		t.Error("Invalid sample rate should not change the value")
	}
}
