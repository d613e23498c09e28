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
	if err := os.Setenv(key, "8080"); err != nil {
		t.Fatalf("Setenv error: %v", err)
	}
	defer os.Unsetenv(key)
	if got := getEnv(key, "9000"); got != "8080" {
		t.Fatalf("getEnv(%q) = %q, want %q", key, got, "8080")
	}
}

func TestGetDurationFallsBackOnInvalid(t *testing.T) {
	const key = "TEST_FETCH_TIMEOUT"

	t.Setenv(key, "3s")
	if got := getDuration(key, time.Second); got != 3*time.Second {
		t.Fatalf("getDuration = %s, want 3s", got)
	}

	t.Setenv(key, "soon")
	if got := getDuration(key, time.Second); got != time.Second {
		t.Fatalf("getDuration with invalid value = %s, want default", got)
	}

	t.Setenv(key, "-5s")
	if got := getDuration(key, time.Second); got != time.Second {
		t.Fatalf("getDuration with negative value = %s, want default", got)
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" clarin, ,infobae ,")
	if len(got) != 2 || got[0] != "clarin" || got[1] != "infobae" {
		t.Fatalf("splitList = %v", got)
	}
	if got := splitList(""); len(got) != 0 {
		t.Fatalf("splitList(\"\") = %v, want empty", got)
	}
}

func TestLoadReadsAuthAndSources(t *testing.T) {
	t.Setenv("APP_PORT", "1234")
	t.Setenv("APP_BASIC_USER", "user")
	t.Setenv("APP_BASIC_PASS", "pass")
	t.Setenv("SOURCES", "clarin,rosario3")
	t.Setenv("FETCH_MODE", "Browser")

	cfg := Load()
	if cfg.AppPort != "1234" {
		t.Fatalf("AppPort = %q, want %q", cfg.AppPort, "1234")
	}
	if cfg.BasicAuthUser != "user" || cfg.BasicAuthPass != "pass" {
		t.Fatalf("BasicAuthUser/Pass not loaded correctly: %+v", cfg)
	}
	if len(cfg.Sources) != 2 || cfg.Sources[1] != "rosario3" {
		t.Fatalf("Sources = %v", cfg.Sources)
	}
	if cfg.FetchMode != "browser" {
		t.Fatalf("FetchMode = %q, want browser", cfg.FetchMode)
	}
}
