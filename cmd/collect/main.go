package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/LJTian/NewsDesk/internal/collector"
	"github.com/LJTian/NewsDesk/internal/config"
	"github.com/LJTian/NewsDesk/internal/console"
	"github.com/LJTian/NewsDesk/internal/render"
	"github.com/LJTian/NewsDesk/internal/scheduler"
	"github.com/LJTian/NewsDesk/internal/storage"
)

// 一个仅执行一次采集任务的命令行入口：抓取所有来源，打印到终端；
// 配置了 POSTGRES_DSN / PAGE_OUTPUT 时同时入库、生成静态页面
func main() {
	cfg := config.Load()

	sources, err := collector.SelectSources(cfg.Sources)
	if err != nil {
		log.Fatalf("select sources failed: %v", err)
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

	order := make([]string, 0, len(sources))
	for _, d := range sources {
		order = append(order, d.Tag)
	}
	sinks := []scheduler.Sink{console.NewPrinter(os.Stdout, order)}

	if cfg.PostgresDSN != "" {
		// 单次运行不需要 redis 快照
		store, err := storage.NewStore(cfg.PostgresDSN, "")
		if err != nil {
			log.Fatalf("init store failed: %v", err)
		}
		if err := store.EnsureChannels(sources); err != nil {
			log.Fatalf("ensure channels failed: %v", err)
		}
		sinks = append(sinks, store)
	}
	if cfg.PageOutput != "" {
		sinks = append(sinks, render.NewRenderer(sources, cfg.PageOutput))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.FetchTimeout+time.Minute)
	defer cancel()

	res := orch.RunAll(ctx)
	scheduler.Dispatch(ctx, res, sinks...)
}
