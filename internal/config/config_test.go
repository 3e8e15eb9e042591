package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"strand/internal/config"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, _, exists, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected missing config file to be reported as absent")
	}
	if cfg.Paths.APIBind != "127.0.0.1:5050" {
		t.Fatalf("unexpected default api bind: %s", cfg.Paths.APIBind)
	}
	if cfg.Tools.Threads != 4 {
		t.Fatalf("unexpected default threads: %d", cfg.Tools.Threads)
	}
	if !filepath.IsAbs(cfg.Paths.WorkDir) {
		t.Fatalf("expected normalized work dir, got %q", cfg.Paths.WorkDir)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[paths]
work_dir = "` + filepath.Join(dir, "qc") + `"
storage_dir = "` + filepath.Join(dir, "storage") + `"

[tools]
threads = 8

[logging]
format = "JSON"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config at %s to be loaded, got %s exists=%v", path, resolved, exists)
	}
	if cfg.Tools.Threads != 8 {
		t.Fatalf("expected threads override, got %d", cfg.Tools.Threads)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected lowered log format, got %q", cfg.Logging.Format)
	}
}

func TestValidateRejectsSharedWorkAndStorageDir(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.WorkDir = "/tmp/strand-shared"
	cfg.Paths.StorageDir = "/tmp/strand-shared"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for shared work/storage dir")
	} else if !strings.Contains(err.Error(), "must differ") {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestValidateRequiresToolBinaries(t *testing.T) {
	cfg := config.Default()
	cfg.Tools.Star = " "
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for blank tool binary")
	}
}

func TestCreateSampleWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[references]") {
		t.Fatal("sample config missing references section")
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.WorkDir = filepath.Join(base, "qc")
	cfg.Paths.StorageDir = filepath.Join(base, "storage")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.WorkDir, cfg.Paths.LogDir, cfg.UploadDir()} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s to exist: %v", dir, err)
		}
	}
}
