package scheduler

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/LJTian/NewsDesk/internal/collector"
)

// Result 一次调用的汇总结果：来源 tag → 该来源的抽取结果。
// 恰好覆盖所有配置的来源，失败的来源对应空列表加诊断。
type Result map[string]collector.PassResult

// TotalItems 返回所有来源的条目总数
func (r Result) TotalItems() int {
	n := 0
	for _, p := range r {
		n += len(p.Items)
	}
	return n
}

// Tags 先按 order 排列结果里的来源，不在 order 里的按字母序排在最后
func (r Result) Tags(order []string) []string {
	out := make([]string, 0, len(r))
	seen := make(map[string]bool, len(r))
	for _, tag := range order {
		if _, ok := r[tag]; ok && !seen[tag] {
			out = append(out, tag)
			seen[tag] = true
		}
	}
	var rest []string
	for tag := range r {
		if !seen[tag] {
			rest = append(rest, tag)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// Orchestrator 并发运行所有来源的 SourceAdapter，等全部结束后汇总
type Orchestrator struct {
	adapters []*SourceAdapter
}

// NewOrchestrator 为每个描述符创建一个 adapter；tag 重复会返回错误
func NewOrchestrator(descs []collector.SourceDescriptor, f collector.Fetcher, timeout time.Duration) (*Orchestrator, error) {
	seen := make(map[string]bool, len(descs))
	adapters := make([]*SourceAdapter, 0, len(descs))
	for _, d := range descs {
		if d.Tag == "" {
			return nil, fmt.Errorf("source descriptor for %q has empty tag", d.ListingURL)
		}
		if seen[d.Tag] {
			return nil, fmt.Errorf("duplicate source tag %q", d.Tag)
		}
		seen[d.Tag] = true
		adapters = append(adapters, NewSourceAdapter(d, f, timeout))
	}
	return &Orchestrator{adapters: adapters}, nil
}

// Sources 按配置顺序返回描述符
func (o *Orchestrator) Sources() []collector.SourceDescriptor {
	out := make([]collector.SourceDescriptor, 0, len(o.adapters))
	for _, a := range o.adapters {
		out = append(out, a.Descriptor())
	}
	return out
}

// RunAll 每个来源一个 goroutine，各自写自己的槽位，WaitGroup 是唯一的汇合点。
// 总耗时取决于最慢的来源，而不是所有来源之和。
func (o *Orchestrator) RunAll(ctx context.Context) Result {
	passes := make([]collector.PassResult, len(o.adapters))

	var wg sync.WaitGroup
	for i, a := range o.adapters {
		wg.Add(1)
		go func(i int, a *SourceAdapter) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					passes[i] = panicResult(a.Descriptor().Tag, r)
				}
			}()
			passes[i] = a.Run(ctx)
		}(i, a)
	}
	wg.Wait()

	res := make(Result, len(passes))
	for _, p := range passes {
		res[p.Source] = p
		if p.Failed() {
			log.Printf("collect %s failed in %s: %s", p.Source, p.Elapsed.Round(time.Millisecond), firstFailure(p))
			continue
		}
		log.Printf("collect %s done in %s, items=%d diagnostics=%d",
			p.Source, p.Elapsed.Round(time.Millisecond), len(p.Items), len(p.Diagnostics))
	}
	return res
}

func panicResult(tag string, r any) collector.PassResult {
	return collector.PassResult{
		Source:    tag,
		Items:     []collector.NewsItem{},
		FetchedAt: time.Now(),
		Diagnostics: []collector.Diagnostic{{
			Source:    tag,
			Kind:      collector.DiagFetchError,
			Container: -1,
			Message:   fmt.Sprintf("source run panicked: %v", r),
		}},
	}
}

func firstFailure(p collector.PassResult) string {
	for _, d := range p.Diagnostics {
		if d.Kind == collector.DiagFetchError || d.Kind == collector.DiagParseError {
			return d.Message
		}
	}
	return ""
}
