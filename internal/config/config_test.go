package config

import (
	"os"
	"testing"
	"time"
)

func TestGetEnvWithDefault(t *testing.T) {
	const key = "TEST_APP_PORT"

	// 环境变量未设置时，应该返回默认值
	_ = os.Unsetenv(key)
	if got := getEnv(key, "9000"); got != "9000" {
		t.Fatalf("getEnv(%q) = %q, want %q", key, got, "9000")
	}

	// 环境变量设置后，应优先返回环境变量
	t.Setenv(key, "8080")
	if got := getEnv(key, "9000"); got != "8080" {
		t.Fatalf("getEnv(%q) = %q, want %q", key, got, "8080")
	}
}

func TestGetEnvIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("TEST_COUNT", "abc")
	if got := getEnvInt("TEST_COUNT", 3); got != 3 {
		t.Fatalf("getEnvInt = %d, want 3", got)
	}
	t.Setenv("TEST_COUNT", " 5 ")
	if got := getEnvInt("TEST_COUNT", 3); got != 5 {
		t.Fatalf("getEnvInt = %d, want 5", got)
	}
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("TEST_HOURS", "12, 20 , ,x")
	got := getEnvList("TEST_HOURS", nil)
	want := []string{"12", "20", "x"}
	if len(got) != len(want) {
		t.Fatalf("getEnvList = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("getEnvList[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLoadReadsPublishSettings(t *testing.T) {
	t.Setenv("APP_PORT", "1234")
	t.Setenv("APP_BASIC_USER", "user")
	t.Setenv("APP_BASIC_PASS", "pass")
	t.Setenv("PUBLISH_COUNT", "2")
	t.Setenv("PUBLISH_HOURS", "12,20")
	t.Setenv("RUN_ON_START", "false")
	t.Setenv("CYCLE_TIMEOUT", "30s")

	cfg := Load()
	if cfg.AppPort != "1234" {
		t.Fatalf("AppPort = %q, want %q", cfg.AppPort, "1234")
	}
	if cfg.BasicAuthUser != "user" || cfg.BasicAuthPass != "pass" {
		t.Fatalf("BasicAuthUser/Pass not loaded correctly: %+v", cfg)
	}
	if cfg.PublishCount != 2 {
		t.Fatalf("PublishCount = %d, want 2", cfg.PublishCount)
	}
	if len(cfg.PublishHours) != 2 || cfg.PublishHours[0] != "12" || cfg.PublishHours[1] != "20" {
		t.Fatalf("PublishHours = %v", cfg.PublishHours)
	}
	if cfg.RunOnStart {
		t.Fatalf("RunOnStart should be false")
	}
	if cfg.CycleTimeout != 30*time.Second {
		t.Fatalf("CycleTimeout = %s, want 30s", cfg.CycleTimeout)
	}
}

func TestLocationPrefersFixedOffset(t *testing.T) {
	cfg := &Config{PublishUTCOffset: "+3", PublishTZ: "America/New_York"}
	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("Location error: %v", err)
	}
	_, offset := time.Date(2024, 6, 1, 0, 0, 0, 0, loc).Zone()
	if offset != 3*3600 {
		t.Fatalf("offset = %d, want %d", offset, 3*3600)
	}

	cfg = &Config{PublishUTCOffset: "abc"}
	if _, err := cfg.Location(); err == nil {
		t.Fatalf("expected error for invalid offset")
	}

	cfg = &Config{}
	loc, err = cfg.Location()
	if err != nil || loc != time.Local {
		t.Fatalf("expected time.Local, got %v (%v)", loc, err)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{DryRun: true, TMDBAPIKey: "k", PublishCount: 1}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("dry-run config should be valid: %v", err)
	}

	cfg = &Config{TMDBAPIKey: "k", PublishCount: 1}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error when telegram credentials are missing")
	}
}
