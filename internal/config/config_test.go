package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plate-mcp.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := Default()
	if *cfg != *want {
		t.Errorf("got %+v, want %+v", cfg, want)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
label_map: /models/classes.pbtxt
num_classes: 40
use_display_name: false
min_confidence: 0.65
log_level: debug
store:
  driver: mysql
  dsn: "user:pass@tcp(localhost:3306)/plates"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LabelMap != "/models/classes.pbtxt" {
		t.Errorf("LabelMap: got %q", cfg.LabelMap)
	}
	if cfg.NumClasses != 40 || cfg.UseDisplayName {
		t.Errorf("NumClasses/UseDisplayName: got %d/%v", cfg.NumClasses, cfg.UseDisplayName)
	}
	if cfg.MinConfidence != 0.65 {
		t.Errorf("MinConfidence: got %v", cfg.MinConfidence)
	}
	if cfg.Store.Driver != "mysql" || cfg.Store.DSN == "" {
		t.Errorf("Store: got %+v", cfg.Store)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "min_confidence: 0.65\n")
	t.Setenv("PLATE_MCP_MIN_CONFIDENCE", "0.8")
	t.Setenv("PLATE_MCP_METRICS_ADDR", ":9464")
	t.Setenv("PLATE_MCP_STORE_DRIVER", "postgres")
	t.Setenv("PLATE_MCP_STORE_DSN", "postgres://localhost/plates")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MinConfidence != 0.8 {
		t.Errorf("MinConfidence: got %v, want 0.8", cfg.MinConfidence)
	}
	if cfg.MetricsAddr != ":9464" {
		t.Errorf("MetricsAddr: got %q", cfg.MetricsAddr)
	}
	if cfg.Store.Driver != "postgres" || cfg.Store.DSN != "postgres://localhost/plates" {
		t.Errorf("Store: got %+v", cfg.Store)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"confidence too high", func(c *Config) { c.MinConfidence = 1.5 }, true},
		{"confidence negative", func(c *Config) { c.MinConfidence = -0.1 }, true},
		{"label map without classes", func(c *Config) { c.LabelMap = "x.pbtxt"; c.NumClasses = 0 }, true},
		{"unknown driver", func(c *Config) { c.Store.Driver = "sqlite" }, true},
		{"driver without dsn", func(c *Config) { c.Store.Driver = "mysql" }, true},
		{"mysql", func(c *Config) { c.Store = StoreConfig{Driver: "mysql", DSN: "u@/db"} }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheckMinConfidence(t *testing.T) {
	tests := []struct {
		value   float64
		wantErr bool
	}{
		{0, false},
		{0.5, false},
		{1, false},
		{-0.01, true},
		{1.01, true},
		{math.NaN(), true},
	}
	for _, tt := range tests {
		err := CheckMinConfidence(tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("CheckMinConfidence(%v): err=%v, wantErr=%v", tt.value, err, tt.wantErr)
		}
	}
}
