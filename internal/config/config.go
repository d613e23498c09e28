package config

import (
	"log"
	"os"
	"strings"
	"time"
)

type Config struct {
	AppPort string

	PostgresDSN string
	RedisAddr   string

	CronSpec string

	// FetchMode: http（默认，colly）/ browser（本进程无头 Chrome）/ remote（browser-scraper 服务）
	FetchMode        string
	FetchTimeout     time.Duration
	UserAgent        string
	RenderServiceURL string

	// Sources 为空表示启用全部内置来源
	Sources    []string
	PageOutput string

	BasicAuthUser string
	BasicAuthPass string
}

func Load() *Config {
	cfg := &Config{
		AppPort:          getEnv("APP_PORT", "9000"),
		PostgresDSN:      getEnv("POSTGRES_DSN", ""),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6380"),
		CronSpec:         getEnv("CRON_SPEC", "*/10 * * * *"),
		FetchMode:        strings.ToLower(getEnv("FETCH_MODE", "http")),
		FetchTimeout:     getDuration("FETCH_TIMEOUT", 15*time.Second),
		UserAgent:        getEnv("USER_AGENT", "NewsDeskBot/1.0"),
		RenderServiceURL: getEnv("RENDER_SERVICE_URL", "http://localhost:4000"),
		Sources:          splitList(getEnv("SOURCES", "")),
		PageOutput:       getEnv("PAGE_OUTPUT", ""),
		BasicAuthUser:    getEnv("APP_BASIC_USER", ""),
		BasicAuthPass:    getEnv("APP_BASIC_PASS", ""),
	}

	log.Printf("config loaded: port=%s cron=%s fetch=%s timeout=%s db=%t",
		cfg.AppPort, cfg.CronSpec, cfg.FetchMode, cfg.FetchTimeout, cfg.PostgresDSN != "")
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getDuration 解析 time.ParseDuration 格式（如 15s、1m），非法或非正值时回退默认值
func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("warn: invalid %s=%q, using %s", key, v, def)
		return def
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
