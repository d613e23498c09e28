package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/LJTian/NewsDesk/internal/collector"
	"github.com/LJTian/NewsDesk/internal/processor"
)

const defaultFetchTimeout = 15 * time.Second

// SourceAdapter 负责单个来源的一次完整抽取：抓取 → 抽取 → 去重。
// 任何失败都变成诊断写进结果里，不会向外抛出。
type SourceAdapter struct {
	desc    collector.SourceDescriptor
	fetcher collector.Fetcher
	dedup   *processor.Deduplicator
	timeout time.Duration
	now     func() time.Time
}

func NewSourceAdapter(d collector.SourceDescriptor, f collector.Fetcher, timeout time.Duration) *SourceAdapter {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &SourceAdapter{
		desc:    d,
		fetcher: f,
		dedup:   processor.NewDeduplicator(d.DedupKey),
		timeout: timeout,
		now:     time.Now,
	}
}

func (a *SourceAdapter) Descriptor() collector.SourceDescriptor {
	return a.desc
}

func (a *SourceAdapter) Run(ctx context.Context) (res collector.PassResult) {
	start := a.now()
	res = collector.PassResult{
		Source:    a.desc.Tag,
		Items:     []collector.NewsItem{},
		FetchedAt: start,
	}
	defer func() {
		res.Elapsed = a.now().Sub(start)
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.fetcher.Fetch(fetchCtx, a.desc.ListingURL)
	if err != nil {
		msg := err.Error()
		if collector.IsTimeout(err) {
			msg = fmt.Sprintf("%s (limit %s)", msg, a.timeout)
		}
		res.Diagnostics = append(res.Diagnostics, collector.Diagnostic{
			Source:    a.desc.Tag,
			Kind:      collector.DiagFetchError,
			Container: -1,
			Message:   msg,
		})
		return res
	}

	items, diags := a.extract(raw)
	res.Items = items
	res.Diagnostics = append(res.Diagnostics, diags...)
	return res
}

// extract 在 recover 保护下执行抽取与去重，异常页面结构引起的 panic 记为解析错误
func (a *SourceAdapter) extract(raw string) (items []collector.NewsItem, diags []collector.Diagnostic) {
	defer func() {
		if r := recover(); r != nil {
			items = []collector.NewsItem{}
			diags = append(diags, collector.Diagnostic{
				Source:    a.desc.Tag,
				Kind:      collector.DiagParseError,
				Container: -1,
				Message:   fmt.Sprintf("extraction panicked: %v", r),
			})
		}
	}()

	candidates, diags := collector.Extract(raw, a.desc)
	items, dupDiags := a.dedup.Dedupe(candidates)
	return items, append(diags, dupDiags...)
}
