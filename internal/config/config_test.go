package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"schoolcore/internal/blob"
	"schoolcore/internal/core"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != core.StorageSQLite || cfg.Blob.Driver != blob.DriverFilesystem || cfg.Log.Level != "info" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schoolcore.yaml")
	body := `
storage:
  driver: postgres
  postgres_dsn: postgres://localhost/school
blob:
  driver: s3
  s3:
    bucket: backups
    region: eu-west-1
    path_style: true
log:
  level: debug
  format: json
require_college: true
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != core.StoragePostgres || cfg.Storage.PostgresDSN != "postgres://localhost/school" {
		t.Fatalf("unexpected storage %+v", cfg.Storage)
	}
	if cfg.Storage.SQLitePath != "./schoolcore.db" {
		t.Fatalf("defaults should survive partial files, got %q", cfg.Storage.SQLitePath)
	}
	if cfg.Blob.Driver != blob.DriverS3 || cfg.Blob.S3.Bucket != "backups" || !cfg.Blob.S3.PathStyle {
		t.Fatalf("unexpected blob %+v", cfg.Blob)
	}
	if !cfg.Policy().RequireStudentCollege || cfg.Log.Format != "json" {
		t.Fatalf("unexpected policy or log %+v", cfg)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("storage: [unterminated"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	env := map[string]string{
		"SCHOOLCORE_STORAGE_DRIVER":     "MySQL",
		"SCHOOLCORE_MYSQL_DSN":          "root@tcp(localhost)/school",
		"SCHOOLCORE_BLOB_DRIVER":        "memory",
		"SCHOOLCORE_BLOB_S3_PATH_STYLE": "TRUE",
		"SCHOOLCORE_LOG_LEVEL":          "warn",
		"SCHOOLCORE_REQUIRE_COLLEGE":    "true",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	cfg := DefaultConfig()
	if err := cfg.applyEnv(lookup); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if cfg.Storage.Driver != core.StorageMySQL || cfg.Storage.MySQLDSN != "root@tcp(localhost)/school" {
		t.Fatalf("unexpected storage %+v", cfg.Storage)
	}
	if cfg.Blob.Driver != blob.DriverMemory || !cfg.Blob.S3.PathStyle {
		t.Fatalf("unexpected blob %+v", cfg.Blob)
	}
	if cfg.Log.Level != "warn" || !cfg.RequireCollege {
		t.Fatalf("unexpected overrides %+v", cfg)
	}

	env["SCHOOLCORE_REQUIRE_COLLEGE"] = "maybe"
	if err := DefaultConfig().applyEnv(lookup); err == nil {
		t.Fatalf("expected invalid bool to fail")
	}
}

func TestLoadAppliesProcessEnv(t *testing.T) {
	t.Setenv("SCHOOLCORE_SQLITE_PATH", "/tmp/other.db")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.SQLitePath != "/tmp/other.db" {
		t.Fatalf("expected env override, got %q", cfg.Storage.SQLitePath)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := DefaultConfig()
	cfg.Storage.Driver = core.StorageMemory
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Storage.Driver != core.StorageMemory {
		t.Fatalf("unexpected driver %s", loaded.Storage.Driver)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "operation", "school.create")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"operation":"school.create"`) {
		t.Fatalf("unexpected log output %q", out)
	}

	if _, err := (LogConfig{Format: "xml"}).NewLogger(&buf); err == nil {
		t.Fatalf("expected unknown format error")
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected unknown level error")
	}
	if level, _ := ParseLevel(""); level != slog.LevelInfo {
		t.Fatalf("expected info default, got %v", level)
	}
}
