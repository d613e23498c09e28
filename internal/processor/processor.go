package processor

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"github.com/LJTian/NewsDesk/internal/collector"
)

// Deduplicator 对单个来源一轮抽取的候选条目做去重。
// 只在本轮内生效，不记住之前轮次见过的条目；跨轮去重由存储层负责。
type Deduplicator struct {
	strategy collector.DedupKey
}

func NewDeduplicator(strategy collector.DedupKey) *Deduplicator {
	return &Deduplicator{strategy: strategy}
}

// Dedupe 按抽取顺序遍历候选条目，键已出现过的整条丢弃（先到先得），
// 输出保持首次出现的相对顺序。被丢弃的条目各记一条诊断。
func (p *Deduplicator) Dedupe(candidates []collector.CandidateItem) ([]collector.NewsItem, []collector.Diagnostic) {
	out := make([]collector.NewsItem, 0, len(candidates))
	seen := make(map[string]int, len(candidates))
	var diags []collector.Diagnostic

	for _, c := range candidates {
		key := Key(p.strategy, c.NewsItem)
		if first, ok := seen[key]; ok {
			diags = append(diags, collector.Diagnostic{
				Source:    c.Source,
				Kind:      collector.DiagDuplicate,
				Container: c.Container,
				Message:   fmt.Sprintf("duplicate of container %d (%s)", first, key),
			})
			continue
		}
		seen[key] = c.Container
		out = append(out, c.NewsItem)
	}

	return out, diags
}

// Key 计算去重键：默认有链接用链接，否则用规范化后的标题
func Key(strategy collector.DedupKey, it collector.NewsItem) string {
	title := collector.NormalizeText(it.Title)
	if strategy == collector.DedupTitle {
		return "title:" + title
	}
	if it.Link != "" {
		return "link:" + it.Link
	}
	return "title:" + title
}

// HashKey 把任意键映射为稳定的 40 位十六进制 ID
func HashKey(key string) string {
	h := sha1.New()
	h.Write([]byte(key))
	return hex.EncodeToString(h.Sum(nil))
}
