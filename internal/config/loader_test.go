package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/orato-app/orato/internal/config"
)

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: verbose
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log_level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_InvalidStorageDriver(t *testing.T) {
	t.Parallel()
	yaml := `
storage:
  driver: sqlite
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid storage driver, got nil")
	}
	if !strings.Contains(err.Error(), "storage.driver") {
		t.Errorf("error should mention storage.driver, got: %v", err)
	}
}

func TestValidate_PostgresRequiresDSN(t *testing.T) {
	t.Parallel()
	yaml := `
storage:
  driver: postgres
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for postgres driver without dsn, got nil")
	}
	if !strings.Contains(err.Error(), "storage.dsn") {
		t.Errorf("error should mention storage.dsn, got: %v", err)
	}
}

func TestValidate_MemoryDriverNeedsNoDSN(t *testing.T) {
	t.Parallel()
	yaml := `
storage:
  driver: memory
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err != nil {
		t.Fatalf("unexpected error for memory driver: %v", err)
	}
}

func TestValidate_NegativeEmbeddingDimensions(t *testing.T) {
	t.Parallel()
	yaml := `
storage:
  embedding_dimensions: -1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for negative embedding_dimensions, got nil")
	}
}

func TestValidate_NegativeAnalysisTimeout(t *testing.T) {
	t.Parallel()
	yaml := `
analysis:
  timeout: -5s
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for negative analysis timeout, got nil")
	}
	if !strings.Contains(err.Error(), "analysis.timeout") {
		t.Errorf("error should mention analysis.timeout, got: %v", err)
	}
}

func TestValidate_TemperatureOutOfRange(t *testing.T) {
	t.Parallel()
	yaml := `
analysis:
  temperature: 3.5
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for out-of-range temperature, got nil")
	}
	if !strings.Contains(err.Error(), "temperature") {
		t.Errorf("error should mention temperature, got: %v", err)
	}
}

func TestValidate_NegativeWeeklyGoal(t *testing.T) {
	t.Parallel()
	yaml := `
progress:
  weekly_goal: -3
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for negative weekly_goal, got nil")
	}
	if !strings.Contains(err.Error(), "weekly_goal") {
		t.Errorf("error should mention weekly_goal, got: %v", err)
	}
}

func TestValidate_InvalidTimezone(t *testing.T) {
	t.Parallel()
	yaml := `
progress:
  timezone: Mars/Olympus_Mons
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid timezone, got nil")
	}
	if !strings.Contains(err.Error(), "timezone") {
		t.Errorf("error should mention timezone, got: %v", err)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: chatty
storage:
  driver: postgres
progress:
  weekly_goal: -1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected joined validation errors, got nil")
	}
	for _, want := range []string{"log_level", "storage.dsn", "weekly_goal"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error should mention %q, got: %v", want, err)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load("/nonexistent/orato.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
	if !strings.Contains(err.Error(), "config: open") {
		t.Errorf("error should mention the open failure, got: %v", err)
	}
}

func TestLoad_FromFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "orato.yaml")
	content := `
server:
  listen_addr: ":9090"
storage:
  driver: memory
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("server.listen_addr: got %q, want %q", cfg.Server.ListenAddr, ":9090")
	}
}
