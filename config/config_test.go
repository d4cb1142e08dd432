package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoad_FillsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "tably.yaml", "port: 9090\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9090 {
		t.Fatalf("port = %d", cfg.Port)
	}
	if cfg.Host != "0.0.0.0" || cfg.CORSOrigin != "*" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Reconciler.Interval != 50*time.Second {
		t.Fatalf("reconciler interval = %s", cfg.Reconciler.Interval)
	}
	if cfg.Addr() != "0.0.0.0:9090" {
		t.Fatalf("Addr() = %q", cfg.Addr())
	}
}

func TestLoad_FullFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "tably.yaml", `
host: 127.0.0.1
port: 3000
cors_origin: "https://app.example.com"
database:
  path: /var/lib/tably/data.sqlite
reconciler:
  interval: 30s
telemetry:
  endpoint: collector:4318
  insecure: true
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Host != "127.0.0.1" || cfg.Port != 3000 {
		t.Fatalf("listen config: %+v", cfg)
	}
	if cfg.Database.Path != "/var/lib/tably/data.sqlite" {
		t.Fatalf("database path = %q", cfg.Database.Path)
	}
	if cfg.Reconciler.Interval != 30*time.Second {
		t.Fatalf("interval = %s", cfg.Reconciler.Interval)
	}
	if cfg.Telemetry.Endpoint != "collector:4318" || !cfg.Telemetry.Insecure {
		t.Fatalf("telemetry: %+v", cfg.Telemetry)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("log: %+v", cfg.Log)
	}
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad port", "port: 70000\n", "out of range"},
		{"bad level", "log:\n  level: loud\n", "unknown log level"},
		{"bad format", "log:\n  format: xml\n", "unknown log format"},
		{"bad yaml", "port: [\n", "parsing config"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, dir, tc.name+".yaml", tc.content)
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Load error = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestDiscoverFrom(t *testing.T) {
	cwd := t.TempDir()
	home := t.TempDir()

	// Nothing anywhere.
	path, found, err := DiscoverFrom("", cwd, home)
	if err != nil || found || path != "" {
		t.Fatalf("empty discovery = (%q, %v, %v)", path, found, err)
	}

	// Home config only.
	homeCfg := writeFile(t, home, filepath.Join(".tably", "config.yaml"), "port: 8080\n")
	path, found, err = DiscoverFrom("", cwd, home)
	if err != nil || !found || path != homeCfg {
		t.Fatalf("home discovery = (%q, %v, %v)", path, found, err)
	}

	// Project config wins over home config.
	projCfg := writeFile(t, cwd, "tably.yaml", "port: 8081\n")
	path, found, err = DiscoverFrom("", cwd, home)
	if err != nil || !found || path != projCfg {
		t.Fatalf("project discovery = (%q, %v, %v)", path, found, err)
	}

	// Explicit path beats both, and a missing explicit path is an error.
	explicit := writeFile(t, cwd, "custom.yaml", "port: 8082\n")
	path, found, err = DiscoverFrom(explicit, cwd, home)
	if err != nil || !found || path != explicit {
		t.Fatalf("explicit discovery = (%q, %v, %v)", path, found, err)
	}
	if _, _, err := DiscoverFrom(filepath.Join(cwd, "missing.yaml"), cwd, home); err == nil {
		t.Fatal("missing explicit path should error")
	}
}
