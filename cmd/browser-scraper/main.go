package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/LJTian/NewsDesk/internal/collector"
)

const (
	defaultRenderTimeout = 20 * time.Second
	maxRenderTimeout     = 60 * time.Second
)

// browser-scraper 把无头 Chrome 包装成 HTTP 服务，供 FETCH_MODE=remote 的采集进程调用
func main() {
	// 整个进程复用一个 headless 实例，每个请求一个标签页
	fetcher, err := collector.NewBrowserFetcher(maxRenderTimeout, getEnv("USER_AGENT", ""))
	if err != nil {
		log.Fatalf("start browser failed: %v", err)
	}
	defer fetcher.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/render", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req collector.RenderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, collector.RenderResponse{OK: false, Error: "invalid json"})
			return
		}
		if req.URL == "" {
			writeJSON(w, http.StatusBadRequest, collector.RenderResponse{OK: false, Error: "url is required"})
			return
		}

		timeout := time.Duration(req.TimeoutMs) * time.Millisecond
		if timeout <= 0 || timeout > maxRenderTimeout {
			timeout = defaultRenderTimeout
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		html, err := fetcher.Fetch(ctx, req.URL)
		if err != nil {
			log.Printf("render error: %v (url=%s)", err, req.URL)
			writeJSON(w, http.StatusOK, failure(err))
			return
		}
		writeJSON(w, http.StatusOK, collector.RenderResponse{OK: true, HTML: html})
	})

	addr := ":" + getEnv("PORT", "4000")
	log.Printf("browser-scraper listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("http server error: %v", err)
	}
}

// failure 把 FetchError 原样映射到响应里，调用方据此还原错误类型
func failure(err error) collector.RenderResponse {
	resp := collector.RenderResponse{OK: false, Error: err.Error()}
	var fe *collector.FetchError
	if errors.As(err, &fe) {
		resp.Kind = string(fe.Kind)
		resp.Status = fe.StatusCode
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
