package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LJTian/NewsDesk/internal/api"
	"github.com/LJTian/NewsDesk/internal/collector"
	"github.com/LJTian/NewsDesk/internal/config"
	"github.com/LJTian/NewsDesk/internal/render"
	"github.com/LJTian/NewsDesk/internal/scheduler"
	"github.com/LJTian/NewsDesk/internal/storage"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	sources, err := collector.SelectSources(cfg.Sources)
	if err != nil {
		log.Fatalf("select sources failed: %v", err)
	}

	// 确保各个渠道存在，并去掉在数据库里被停用的来源
	if store.DB != nil {
		if err := store.EnsureChannels(sources); err != nil {
			log.Fatalf("ensure channels failed: %v", err)
		}
		disabled, err := store.DisabledChannelCodes()
		if err != nil {
			log.Printf("warn: list disabled channels: %v", err)
		}
		sources = withoutTags(sources, disabled)
	}

	fetcher, closeFetcher, err := collector.NewFetcherForMode(cfg.FetchMode, cfg.FetchTimeout, cfg.UserAgent, cfg.RenderServiceURL)
	if err != nil {
		log.Fatalf("init fetcher failed: %v", err)
	}
	defer closeFetcher()

	orch, err := scheduler.NewOrchestrator(sources, fetcher, cfg.FetchTimeout)
	if err != nil {
		log.Fatalf("init orchestrator failed: %v", err)
	}

	sinks := []scheduler.Sink{store}
	if cfg.PageOutput != "" {
		sinks = append(sinks, render.NewRenderer(sources, cfg.PageOutput))
	}

	s, err := scheduler.New(cfg.CronSpec, orch, sinks...)
	if err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}
	s.Start()
	defer s.Stop()

	r := gin.Default()
	// 若配置了全局访问密码，则启用 Basic Auth 保护（/health 仍然免认证）
	if cfg.BasicAuthUser != "" && cfg.BasicAuthPass != "" {
		r.Use(basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass))
	}

	apiServer := api.NewServer(store, sources)
	apiServer.RegisterRoutes(r)

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}
	go func() {
		log.Printf("starting api server at %s ...", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server exit: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
}

func withoutTags(sources []collector.SourceDescriptor, tags []string) []collector.SourceDescriptor {
	if len(tags) == 0 {
		return sources
	}
	drop := make(map[string]bool, len(tags))
	for _, t := range tags {
		drop[t] = true
	}
	out := sources[:0:0]
	for _, d := range sources {
		if drop[d.Tag] {
			log.Printf("source %s disabled in channels table, skip", d.Tag)
			continue
		}
		out = append(out, d)
	}
	return out
}

// basicAuthMiddleware 为整个站点增加一个简单的 Basic Auth 访问密码。
// 仅当配置了 APP_BASIC_USER / APP_BASIC_PASS 时启用。
// /health 不做认证，便于健康检查。
func basicAuthMiddleware(user, pass string) gin.HandlerFunc {
	const realm = "Restricted"
	uBytes := []byte(user)
	pBytes := []byte(pass)

	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}
		u, p, ok := c.Request.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(u), uBytes) != 1 ||
			subtle.ConstantTimeCompare([]byte(p), pBytes) != 1 {
			c.Header("WWW-Authenticate", `Basic realm="`+realm+`"`)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}
