package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/LJTian/NewsDesk/internal/collector"
	"github.com/LJTian/NewsDesk/internal/scheduler"
	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB 用临时文件里的 sqlite 代替 postgres，表结构与线上一致
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "news.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func countNews(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&News{}).Count(&n).Error; err != nil {
		t.Fatalf("count news: %v", err)
	}
	return n
}

func TestSaveBatchSkipsStoredTitles(t *testing.T) {
	s := &Store{DB: newTestDB(t)}

	first := []collector.NewsItem{
		{Title: "Suba del dólar", Link: "https://www.clarin.com/a", Source: "clarin"},
		{Title: "Paro de transporte", Source: "clarin"},
	}
	inserted, err := s.SaveBatch(first)
	if err != nil {
		t.Fatalf("SaveBatch error: %v", err)
	}
	if inserted != 2 {
		t.Fatalf("first batch inserted = %d, want 2", inserted)
	}

	// 同一标题换了来源和链接，仍视为已入库
	second := []collector.NewsItem{
		{Title: "  Suba del   dólar ", Link: "http://infobae.com/b", Source: "infobae"},
		{Title: "Lluvias en Rosario", Source: "rosario3"},
	}
	inserted, err = s.SaveBatch(second)
	if err != nil {
		t.Fatalf("SaveBatch error: %v", err)
	}
	if inserted != 1 {
		t.Fatalf("second batch inserted = %d, want 1", inserted)
	}
	if n := countNews(t, s.DB); n != 3 {
		t.Fatalf("news rows = %d, want 3", n)
	}

	var kept News
	if err := s.DB.Where("title = ?", "Suba del dólar").First(&kept).Error; err != nil {
		t.Fatalf("load stored row: %v", err)
	}
	if kept.Source != "clarin" || kept.Link != "https://www.clarin.com/a" {
		t.Fatalf("first stored version should be kept, got %+v", kept)
	}
}

func TestConsumeRecordsRunPerSource(t *testing.T) {
	s := &Store{DB: newTestDB(t)}
	res := scheduler.Result{
		"clarin": {
			Source:    "clarin",
			Items:     []collector.NewsItem{{Title: "Uno", Source: "clarin"}},
			FetchedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
			Elapsed:   800 * time.Millisecond,
		},
		"lanacion": {
			Source: "lanacion",
			Items:  []collector.NewsItem{},
			Diagnostics: []collector.Diagnostic{
				{Source: "lanacion", Kind: collector.DiagFetchError, Container: -1, Message: "timeout"},
			},
		},
	}

	if err := s.Consume(context.Background(), res); err != nil {
		t.Fatalf("Consume error: %v", err)
	}

	runs, err := s.ListRuns("", 10)
	if err != nil {
		t.Fatalf("ListRuns error: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	failed, err := s.ListRuns("lanacion", 10)
	if err != nil || len(failed) != 1 {
		t.Fatalf("ListRuns(lanacion) = %v, %v", failed, err)
	}
	if !failed[0].Failed || failed[0].Items != 0 {
		t.Fatalf("lanacion run should be marked failed: %+v", failed[0])
	}
	if n := countNews(t, s.DB); n != 1 {
		t.Fatalf("news rows = %d, want 1", n)
	}
}

func TestLatestSnapshotRoundTrip(t *testing.T) {
	s := &Store{Redis: newTestRedis(t)}
	ctx := context.Background()

	fetchedAt := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	res := scheduler.Result{
		"clarin": {
			Source: "clarin",
			Items: []collector.NewsItem{
				{Title: "Primera", Summary: "Resumen", Link: "https://www.clarin.com/a", Source: "clarin"},
				{Title: "Segunda", Source: "clarin"},
			},
			Diagnostics: []collector.Diagnostic{
				{Source: "clarin", Kind: collector.DiagDuplicate, Container: 3, Message: "duplicate"},
			},
			FetchedAt: fetchedAt,
			Elapsed:   1500 * time.Millisecond,
		},
	}
	if err := s.SaveLatest(ctx, res); err != nil {
		t.Fatalf("SaveLatest error: %v", err)
	}

	got, err := s.LoadLatest(ctx, []string{"clarin", "infobae"})
	if err != nil {
		t.Fatalf("LoadLatest error: %v", err)
	}
	if _, ok := got["infobae"]; ok {
		t.Fatalf("source without snapshot should be absent: %+v", got)
	}
	p, ok := got["clarin"]
	if !ok {
		t.Fatalf("clarin snapshot missing")
	}
	if len(p.Items) != 2 || p.Items[0] != res["clarin"].Items[0] || p.Items[1].Link != "" {
		t.Fatalf("items not preserved: %+v", p.Items)
	}
	if len(p.Diagnostics) != 1 || p.Diagnostics[0].Kind != collector.DiagDuplicate || p.Diagnostics[0].Container != 3 {
		t.Fatalf("diagnostics not preserved: %+v", p.Diagnostics)
	}
	if !p.FetchedAt.Equal(fetchedAt) || p.Elapsed != 1500*time.Millisecond {
		t.Fatalf("timing not preserved: %s %s", p.FetchedAt, p.Elapsed)
	}
}

func TestSaveLatestOverwritesPreviousPass(t *testing.T) {
	s := &Store{Redis: newTestRedis(t)}
	ctx := context.Background()

	old := scheduler.Result{"clarin": {Source: "clarin", Items: []collector.NewsItem{{Title: "Vieja", Source: "clarin"}}}}
	fresh := scheduler.Result{"clarin": {Source: "clarin", Items: []collector.NewsItem{{Title: "Nueva", Source: "clarin"}}}}
	if err := s.SaveLatest(ctx, old); err != nil {
		t.Fatalf("SaveLatest error: %v", err)
	}
	if err := s.SaveLatest(ctx, fresh); err != nil {
		t.Fatalf("SaveLatest error: %v", err)
	}

	got, err := s.LoadLatest(ctx, []string{"clarin"})
	if err != nil {
		t.Fatalf("LoadLatest error: %v", err)
	}
	if items := got["clarin"].Items; len(items) != 1 || items[0].Title != "Nueva" {
		t.Fatalf("snapshot should hold the latest pass, got %+v", items)
	}
}
