package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadPrefersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("  from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := Load(Source{Name: "api key", File: path, Value: "inline"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "from-file" {
		t.Fatalf("expected file value, got %q", got)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := Load(Source{Name: "api key", File: path})
	if err == nil || !strings.Contains(err.Error(), "is empty") {
		t.Fatalf("expected empty file error, got %v", err)
	}
}

func TestLoadFallsBackToEnv(t *testing.T) {
	t.Setenv("COLD_MAILER_TEST_KEY", " env-key ")

	got, err := Load(Source{Name: "api key", Env: "COLD_MAILER_TEST_KEY"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "env-key" {
		t.Fatalf("expected env value, got %q", got)
	}
}

func TestLoadMissing(t *testing.T) {
	t.Setenv("COLD_MAILER_TEST_KEY", "")

	_, err := Load(Source{Name: "api key", Env: "COLD_MAILER_TEST_KEY"})
	if err == nil || !strings.Contains(err.Error(), "COLD_MAILER_TEST_KEY") {
		t.Fatalf("expected hint about env variable, got %v", err)
	}
}
