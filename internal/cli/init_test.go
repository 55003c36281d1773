package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSetupLogger_Level(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
	}{
		{"debug", true},
		{"info", false},
		{"bogus", false},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := SetupLogger(tt.level)
			if got := logger.Enabled(context.Background(), -4); got != tt.wantDebug {
				t.Errorf("debug enabled = %v, want %v", got, tt.wantDebug)
			}
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "FLOWTRACK_CLI_TEST_NEW=from-file\nFLOWTRACK_CLI_TEST_SET=from-file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FLOWTRACK_CLI_TEST_SET", "from-env")
	t.Cleanup(func() { os.Unsetenv("FLOWTRACK_CLI_TEST_NEW") })

	LoadEnvFile(path)

	if got := os.Getenv("FLOWTRACK_CLI_TEST_NEW"); got != "from-file" {
		t.Errorf("FLOWTRACK_CLI_TEST_NEW = %q, want from-file", got)
	}
	if got := os.Getenv("FLOWTRACK_CLI_TEST_SET"); got != "from-env" {
		t.Errorf("existing variables must win, got %q", got)
	}

	// A missing file is not an error.
	LoadEnvFile(filepath.Join(dir, "missing.env"))
}

func TestInitSQLite(t *testing.T) {
	repo := InitSQLite(SetupLogger("error"), filepath.Join(t.TempDir(), "db", "flowtrack.db"), time.UTC)
	defer repo.Close()

	if err := repo.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
