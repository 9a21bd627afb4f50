package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetAPITimeoutDefault(t *testing.T) {
	os.Unsetenv(EnvAPITimeout)
	if got := GetAPITimeout(); got != DefaultAPITimeout {
		t.Fatalf("got %v want %v", got, DefaultAPITimeout)
	}
}

func TestGetAPITimeoutClampsRange(t *testing.T) {
	cases := []struct {
		value string
		want  time.Duration
	}{
		{"100ms", 1 * time.Second},
		{"1h", 10 * time.Minute},
		{"5s", 5 * time.Second},
		{"not-a-duration", DefaultAPITimeout},
	}
	for _, c := range cases {
		t.Setenv(EnvAPITimeout, c.value)
		if got := GetAPITimeout(); got != c.want {
			t.Errorf("value %q: got %v want %v", c.value, got, c.want)
		}
	}
}

func TestGetVersionCacheTTLClampsRange(t *testing.T) {
	cases := []struct {
		value string
		want  time.Duration
	}{
		{"1m", 5 * time.Minute},
		{"200h", 7 * 24 * time.Hour},
		{"30m", 30 * time.Minute},
	}
	for _, c := range cases {
		t.Setenv(EnvVersionCacheTTL, c.value)
		if got := GetVersionCacheTTL(); got != c.want {
			t.Errorf("value %q: got %v want %v", c.value, got, c.want)
		}
	}
}

func TestGetManifestCacheTTLDefault(t *testing.T) {
	os.Unsetenv(EnvManifestCacheTTL)
	if got := GetManifestCacheTTL(); got != DefaultManifestCacheTTL {
		t.Fatalf("got %v want %v", got, DefaultManifestCacheTTL)
	}
}

func TestParseRateLimit(t *testing.T) {
	cases := []struct {
		in      string
		want    RateLimit
		wantErr bool
	}{
		{"4", RateLimit{Tokens: 4, Window: DefaultRateLimitWindow}, false},
		{"4/100", RateLimit{Tokens: 4, Window: 100 * time.Millisecond}, false},
		{"0", RateLimit{}, true},
		{"x/100", RateLimit{}, true},
		{"4/x", RateLimit{}, true},
		{"-1", RateLimit{}, true},
	}
	for _, c := range cases {
		got, err := ParseRateLimit(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("%q: expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("%q: got %+v want %+v", c.in, got, c.want)
		}
	}
}

func TestGetRateLimitDefault(t *testing.T) {
	os.Unsetenv(EnvRateLimit)
	got := GetRateLimit()
	want := RateLimit{Tokens: DefaultRateLimitTokens, Window: DefaultRateLimitWindow}
	if got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestGetRateLimitInvalidFallsBackToDefault(t *testing.T) {
	t.Setenv(EnvRateLimit, "garbage")
	got := GetRateLimit()
	want := RateLimit{Tokens: DefaultRateLimitTokens, Window: DefaultRateLimitWindow}
	if got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestInstallRootPrecedence(t *testing.T) {
	t.Setenv(EnvInstallRoot, "/opt/explicit")
	t.Setenv(EnvHomeDir, "/home/other")
	root, err := InstallRoot()
	if err != nil {
		t.Fatal(err)
	}
	if root != "/opt/explicit" {
		t.Fatalf("expected INSTALL_ROOT to win, got %q", root)
	}

	os.Unsetenv(EnvInstallRoot)
	root, err = InstallRoot()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join("/home/other", ".local", "bin"); root != want {
		t.Fatalf("expected HOME_DIR convention, got %q want %q", root, want)
	}
}

func TestDefaultConfigFallsBackToUserHome(t *testing.T) {
	os.Unsetenv(EnvInstallRoot)
	os.Unsetenv(EnvHomeDir)
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatal(err)
	}
	home, _ := os.UserHomeDir()
	if cfg.InstallRoot != filepath.Join(home, ".local", "bin") {
		t.Fatalf("unexpected InstallRoot %q", cfg.InstallRoot)
	}
}

func TestNewConfigLayout(t *testing.T) {
	cfg := NewConfig("/opt/bin")
	if cfg.MetaDir != filepath.Join("/opt/bin", ".crateferry") {
		t.Fatalf("unexpected MetaDir %q", cfg.MetaDir)
	}
	if cfg.CacheDir != filepath.Join(cfg.MetaDir, "cache") {
		t.Fatalf("unexpected CacheDir %q", cfg.CacheDir)
	}
	if cfg.KeyCacheDir != filepath.Join(cfg.CacheDir, "keys") {
		t.Fatalf("unexpected KeyCacheDir %q", cfg.KeyCacheDir)
	}
	if cfg.ScratchDir != filepath.Join(cfg.MetaDir, "scratch") {
		t.Fatalf("unexpected ScratchDir %q", cfg.ScratchDir)
	}
	if cfg.ManifestDB != filepath.Join(cfg.MetaDir, "installed.json") {
		t.Fatalf("unexpected ManifestDB %q", cfg.ManifestDB)
	}
	if cfg.LockFile != filepath.Join(cfg.MetaDir, "installed.lock") {
		t.Fatalf("unexpected LockFile %q", cfg.LockFile)
	}
}

func TestEnsureDirectoriesCreatesTree(t *testing.T) {
	root := t.TempDir()
	cfg := NewConfig(filepath.Join(root, "bin"))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	for _, dir := range []string{cfg.InstallRoot, cfg.MetaDir, cfg.CacheDir, cfg.KeyCacheDir, cfg.ScratchDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("expected directory %s to exist", dir)
		}
	}
}

func TestIndexURLPrecedence(t *testing.T) {
	os.Unsetenv(EnvIndexURL)
	if got := IndexURL("flag-url", "config-url", "default-url"); got != "flag-url" {
		t.Fatalf("expected flag to win, got %q", got)
	}
	t.Setenv(EnvIndexURL, "env-url")
	if got := IndexURL("", "config-url", "default-url"); got != "env-url" {
		t.Fatalf("expected env to win over config, got %q", got)
	}
	os.Unsetenv(EnvIndexURL)
	if got := IndexURL("", "config-url", "default-url"); got != "config-url" {
		t.Fatalf("expected config to win over default, got %q", got)
	}
	if got := IndexURL("", "", "default-url"); got != "default-url" {
		t.Fatalf("expected default fallback, got %q", got)
	}
}
