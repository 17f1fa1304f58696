package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStringFallbackAndEnv(t *testing.T) {
	t.Setenv("SHOPSLOT_TEST_NAME", "")
	Reset()
	if got := String("SHOPSLOT_TEST_NAME", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}

	t.Setenv("SHOPSLOT_TEST_NAME", "  booking  ")
	Reset()
	if got := String("SHOPSLOT_TEST_NAME", "fallback"); got != "booking" {
		t.Fatalf("expected trimmed env value, got %q", got)
	}
}

func TestRequiredStringAndPort(t *testing.T) {
	t.Setenv("SHOPSLOT_TEST_DB", "")
	t.Setenv("SHOPSLOT_TEST_PORT", "70000")
	Reset()
	if _, err := RequiredString("SHOPSLOT_TEST_DB"); err == nil {
		t.Fatal("expected error for missing required value")
	}
	if _, err := Port("SHOPSLOT_TEST_PORT", "8083"); err == nil {
		t.Fatal("expected error for out of range port")
	}
}

func TestTypedValues(t *testing.T) {
	t.Setenv("SHOPSLOT_TEST_INT", "25")
	t.Setenv("SHOPSLOT_TEST_BAD_INT", "-3")
	t.Setenv("SHOPSLOT_TEST_BOOL", "off")
	t.Setenv("SHOPSLOT_TEST_SECONDS", "90")
	t.Setenv("SHOPSLOT_TEST_DURATION", "2m")
	t.Setenv("SHOPSLOT_TEST_LIST", "a, b,,c ")
	Reset()

	if got := Int("SHOPSLOT_TEST_INT", 1); got != 25 {
		t.Fatalf("Int: got %d", got)
	}
	if got := Int("SHOPSLOT_TEST_BAD_INT", 7); got != 7 {
		t.Fatalf("Int fallback: got %d", got)
	}
	if Bool("SHOPSLOT_TEST_BOOL", true) {
		t.Fatal("Bool: expected false")
	}
	if got := Duration("SHOPSLOT_TEST_SECONDS", time.Second); got != 90*time.Second {
		t.Fatalf("Duration seconds: got %s", got)
	}
	if got := Duration("SHOPSLOT_TEST_DURATION", time.Second); got != 2*time.Minute {
		t.Fatalf("Duration string: got %s", got)
	}
	list := List("SHOPSLOT_TEST_LIST", "")
	if len(list) != 3 || list[0] != "a" || list[2] != "c" {
		t.Fatalf("List: got %v", list)
	}
}

func TestConfigFileIsReadBelowEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "booking.yaml")
	if err := os.WriteFile(path, []byte("shopslot_file_only: from-file\nshopslot_both: from-file\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigFileEnv, path)
	t.Setenv("SHOPSLOT_BOTH", "from-env")
	Reset()

	if got := String("SHOPSLOT_FILE_ONLY", ""); got != "from-file" {
		t.Fatalf("expected file value, got %q", got)
	}
	if got := String("SHOPSLOT_BOTH", ""); got != "from-env" {
		t.Fatalf("expected env to win, got %q", got)
	}
}

func TestBrokenConfigFileIsReported(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(path, []byte("shopslot_key: [unterminated\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigFileEnv, path)
	t.Setenv("SHOPSLOT_FROM_ENV", "env")
	Reset()

	if err := Load(); err == nil {
		t.Fatal("expected error for malformed config file")
	}
	if got := String("SHOPSLOT_FROM_ENV", ""); got != "env" {
		t.Fatalf("env lookups must still work, got %q", got)
	}

	t.Setenv(ConfigFileEnv, filepath.Join(dir, "missing.yaml"))
	Reset()
	if err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}

	t.Setenv(ConfigFileEnv, "")
	Reset()
	if err := Load(); err != nil {
		t.Fatalf("no file named: %v", err)
	}
}
