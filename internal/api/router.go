package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/LJTian/NewsDesk/internal/collector"
	"github.com/LJTian/NewsDesk/internal/render"
	"github.com/LJTian/NewsDesk/internal/scheduler"
	"github.com/LJTian/NewsDesk/internal/storage"
	"github.com/gin-gonic/gin"
)

// NewsStore 是 API 依赖的存储能力，由 storage.Store 实现
type NewsStore interface {
	ListNews(source string, limit int, date string) ([]storage.News, error)
	ListRuns(source string, limit int) ([]storage.CollectRun, error)
	LoadLatest(ctx context.Context, tags []string) (scheduler.Result, error)
}

type Server struct {
	store    NewsStore
	sources  []collector.SourceDescriptor
	renderer *render.Renderer
}

func NewServer(store NewsStore, sources []collector.SourceDescriptor) *Server {
	return &Server{
		store:    store,
		sources:  sources,
		renderer: render.NewRenderer(sources, ""),
	}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)
	r.GET("/", s.page)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/sources", s.listSources)
		v1.GET("/news", s.listNews)
		v1.GET("/runs", s.listRuns)
		v1.GET("/latest", s.latest)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) tags() []string {
	tags := make([]string, 0, len(s.sources))
	for _, d := range s.sources {
		tags = append(tags, d.Tag)
	}
	return tags
}

func (s *Server) listSources(c *gin.Context) {
	ok(c, s.sources)
}

func (s *Server) listNews(c *gin.Context) {
	source := c.Query("source")
	limit := queryInt(c, "limit", 20)
	date := c.Query("date")

	items, err := s.store.ListNews(source, limit, date)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, items)
}

func (s *Server) listRuns(c *gin.Context) {
	runs, err := s.store.ListRuns(c.Query("source"), queryInt(c, "limit", 50))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, runs)
}

// latest 返回 redis 里各来源最近一轮的快照；没有缓存时返回空对象
func (s *Server) latest(c *gin.Context) {
	res, err := s.store.LoadLatest(c.Request.Context(), s.tags())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, res)
}

// page 用最近一轮的快照渲染静态页面
func (s *Server) page(c *gin.Context) {
	res, err := s.store.LoadLatest(c.Request.Context(), s.tags())
	if err != nil {
		log.Printf("api: load latest snapshot: %v", err)
		res = scheduler.Result{}
	}
	html, err := s.renderer.Render(res)
	if err != nil {
		c.String(http.StatusInternalServerError, "render error")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(def)))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    data,
	})
}

func fail(c *gin.Context, err error) {
	if errors.Is(err, storage.ErrNoDatabase) {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":    "unavailable",
			"message": "database not configured",
		})
		return
	}
	log.Printf("api: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    "internal_error",
		"message": "internal server error",
	})
}
