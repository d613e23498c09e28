package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/LJTian/NewsDesk/internal/collector"
	"github.com/LJTian/NewsDesk/internal/processor"
	"github.com/LJTian/NewsDesk/internal/scheduler"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// ErrNoDatabase 未配置 POSTGRES_DSN 时，依赖数据库的查询返回该错误
var ErrNoDatabase = errors.New("storage: database not configured")

// Channel 描述一个报纸来源，例如 clarin / infobae
type Channel struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Code    string `gorm:"size:64;uniqueIndex" json:"code"`
	Name    string `gorm:"size:128" json:"name"`
	BaseURL string `gorm:"size:256" json:"baseUrl"`
	Status  string `gorm:"size:32;index" json:"status"` // active / disabled

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// News 以标题为幂等键：同一标题只保存第一次见到的版本
type News struct {
	ID      string `gorm:"primaryKey;size:40" json:"id"`
	Title   string `gorm:"size:512;uniqueIndex" json:"title"`
	Summary string `gorm:"size:1024" json:"summary"`
	Link    string `gorm:"size:1024" json:"link"`
	Source  string `gorm:"size:64;index" json:"source"`
	// 首次入库的日期 YYYY-MM-DD（阿根廷时区），用于按日期展示
	PublishedDate string `gorm:"size:10;index" json:"publishedDate"`

	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CollectRun 每个来源每轮采集一条记录，诊断原样存成 JSON
type CollectRun struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Source      string         `gorm:"size:64;index" json:"source"`
	FetchedAt   time.Time      `gorm:"index" json:"fetchedAt"`
	ElapsedMs   int64          `json:"elapsedMs"`
	Items       int            `json:"items"`
	Inserted    int            `json:"inserted"`
	Failed      bool           `gorm:"index" json:"failed"`
	Diagnostics datatypes.JSON `gorm:"type:jsonb" json:"diagnostics"`

	CreatedAt time.Time `json:"createdAt"`
}

type Store struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStore dsn 为空时不连数据库，只用 redis 保存最新快照；redisAddr 为空时不连 redis
func NewStore(dsn, redisAddr string) (*Store, error) {
	s := &Store{}

	if dsn != "" {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			return nil, err
		}
		if err := migrate(db); err != nil {
			return nil, err
		}
		s.DB = db
	}

	if redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr: redisAddr,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("warn: redis ping failed: %v", err)
		}
		s.Redis = rdb
	}

	return s, nil
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Channel{}, &News{}, &CollectRun{})
}

// EnsureChannel 确保某个渠道存在
func (s *Store) EnsureChannel(code, name, baseURL string) (*Channel, error) {
	if s.DB == nil {
		return nil, ErrNoDatabase
	}
	ch := &Channel{}
	if err := s.DB.Where("code = ?", code).First(ch).Error; err == nil {
		return ch, nil
	}

	ch = &Channel{
		Code:    code,
		Name:    name,
		BaseURL: baseURL,
		Status:  "active",
	}
	if err := s.DB.Create(ch).Error; err != nil {
		return nil, err
	}
	return ch, nil
}

// EnsureChannels 为每个来源建一条渠道记录
func (s *Store) EnsureChannels(descs []collector.SourceDescriptor) error {
	for _, d := range descs {
		if _, err := s.EnsureChannel(d.Tag, d.Name, d.ListingURL); err != nil {
			return fmt.Errorf("ensure channel %s: %w", d.Tag, err)
		}
	}
	return nil
}

// DisabledChannelCodes 返回被手动停用的渠道
func (s *Store) DisabledChannelCodes() ([]string, error) {
	if s.DB == nil {
		return nil, nil
	}
	var codes []string
	err := s.DB.Model(&Channel{}).Where("status = ?", "disabled").Pluck("code", &codes).Error
	return codes, err
}

// 阿根廷时区，用于日期展示与筛选
var locArgentina *time.Location

func init() {
	locArgentina, _ = time.LoadLocation("America/Argentina/Buenos_Aires")
	if locArgentina == nil {
		locArgentina = time.FixedZone("ART", -3*3600)
	}
}

// toValidUTF8 将字符串规范为合法 UTF-8，避免 PostgreSQL invalid byte sequence 错误（部分站点仍是 latin1 混编）
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// truncateRunesDB 按 rune 数截断字符串，确保不会超过数据库字段长度
func truncateRunesDB(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

// newsRow 把一条抽取结果转换为待入库的行
func newsRow(it collector.NewsItem, now time.Time) *News {
	title := truncateRunesDB(toValidUTF8(collector.NormalizeText(it.Title)), 512)
	return &News{
		ID:            processor.HashKey("title:" + title),
		Title:         title,
		Summary:       truncateRunesDB(toValidUTF8(it.Summary), 1024),
		Link:          truncateRunesDB(it.Link, 1024),
		Source:        it.Source,
		PublishedDate: now.In(locArgentina).Format("2006-01-02"),
	}
}

// SaveBatch 保存一批新闻，标题已存在的直接跳过；返回新插入的条数。
// 这是跨轮次的去重，与单轮内的 Deduplicator 相互独立。
func (s *Store) SaveBatch(items []collector.NewsItem) (int, error) {
	if s.DB == nil {
		return 0, ErrNoDatabase
	}
	now := time.Now()
	inserted := 0
	for _, it := range items {
		n := newsRow(it, now)
		if n.Title == "" {
			continue
		}
		tx := s.DB.Where("title = ?", n.Title).FirstOrCreate(n)
		if tx.Error != nil {
			return inserted, tx.Error
		}
		inserted += int(tx.RowsAffected)
	}
	return inserted, nil
}

// SaveRun 记录一个来源本轮的统计与诊断
func (s *Store) SaveRun(p collector.PassResult, inserted int) error {
	if s.DB == nil {
		return ErrNoDatabase
	}
	diags, err := json.Marshal(p.Diagnostics)
	if err != nil {
		return err
	}
	run := &CollectRun{
		Source:      p.Source,
		FetchedAt:   p.FetchedAt,
		ElapsedMs:   p.Elapsed.Milliseconds(),
		Items:       len(p.Items),
		Inserted:    inserted,
		Failed:      p.Failed(),
		Diagnostics: datatypes.JSON(diags),
	}
	return s.DB.Create(run).Error
}

// ListRuns 返回最近的采集记录，source 为空表示全部来源
func (s *Store) ListRuns(source string, limit int) ([]CollectRun, error) {
	if s.DB == nil {
		return nil, ErrNoDatabase
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var runs []CollectRun
	db := s.DB.Model(&CollectRun{})
	if source != "" {
		db = db.Where("source = ?", source)
	}
	err := db.Order("fetched_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

// ListNews 按来源与可选日期返回最新入库的新闻，并使用 Redis 做简单缓存
func (s *Store) ListNews(source string, limit int, date string) ([]News, error) {
	if s.DB == nil {
		return nil, ErrNoDatabase
	}
	if limit <= 0 || limit > 1000 {
		limit = 20
	}

	ctx := context.Background()
	cacheKey := fmt.Sprintf("news:list:%s:%d:%s", source, limit, date)

	if s.Redis != nil {
		if bs, err := s.Redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached []News
			if err := json.Unmarshal(bs, &cached); err == nil {
				return cached, nil
			}
		}
	}

	var list []News
	db := s.DB.Model(&News{})
	if source != "" {
		db = db.Where("source = ?", source)
	}
	if date != "" {
		db = db.Where("published_date = ?", date)
	}
	if err := db.Order("created_at DESC").Limit(limit).Find(&list).Error; err != nil {
		return nil, err
	}

	// 回写缓存；采集周期是分钟级，短 TTL 足够
	const listCacheTTL = 5 * time.Minute
	if s.Redis != nil && len(list) > 0 {
		if bs, err := json.Marshal(list); err == nil {
			_ = s.Redis.Set(ctx, cacheKey, bs, listCacheTTL).Err()
		}
	}

	return list, nil
}

const (
	latestKeyPrefix = "news:latest:"
	latestTTL       = 2 * time.Hour
)

// SaveLatest 把本轮每个来源的结果写入 redis，覆盖上一轮的快照
func (s *Store) SaveLatest(ctx context.Context, res scheduler.Result) error {
	if s.Redis == nil {
		return nil
	}
	pipe := s.Redis.Pipeline()
	for tag, p := range res {
		bs, err := json.Marshal(p)
		if err != nil {
			return err
		}
		pipe.Set(ctx, latestKeyPrefix+tag, bs, latestTTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// LoadLatest 读取各来源最近一轮的快照，缺失或过期的来源不出现在结果里
func (s *Store) LoadLatest(ctx context.Context, tags []string) (scheduler.Result, error) {
	res := make(scheduler.Result, len(tags))
	if s.Redis == nil || len(tags) == 0 {
		return res, nil
	}
	keys := make([]string, 0, len(tags))
	for _, t := range tags {
		keys = append(keys, latestKeyPrefix+t)
	}
	vals, err := s.Redis.MGet(ctx, keys...).Result()
	if err != nil {
		return res, err
	}
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var p collector.PassResult
		if err := json.Unmarshal([]byte(str), &p); err != nil {
			log.Printf("storage: decode latest snapshot %s: %v", tags[i], err)
			continue
		}
		res[tags[i]] = p
	}
	return res, nil
}

// Name 实现 scheduler.Sink
func (s *Store) Name() string {
	return "store"
}

// Consume 实现 scheduler.Sink：逐个来源入库并记录本轮统计，最后刷新 redis 快照。
// 单个来源失败不影响其它来源，所有错误合并返回。
func (s *Store) Consume(ctx context.Context, res scheduler.Result) error {
	var errs []error

	if s.DB != nil {
		for _, tag := range res.Tags(nil) {
			p := res[tag]
			inserted, err := s.SaveBatch(p.Items)
			if err != nil {
				errs = append(errs, fmt.Errorf("save %s batch: %w", tag, err))
			}
			if err := s.SaveRun(p, inserted); err != nil {
				errs = append(errs, fmt.Errorf("save %s run: %w", tag, err))
			}
			log.Printf("%s saved, fetched=%d inserted=%d", tag, len(p.Items), inserted)
		}
	}

	if err := s.SaveLatest(ctx, res); err != nil {
		errs = append(errs, fmt.Errorf("save latest snapshot: %w", err))
	}

	return errors.Join(errs...)
}
