package collector

import (
	"strings"
	"time"
)

// NewsItem 一条抽取并去重后的新闻
type NewsItem struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	// Link 为空表示页面上没有可用链接
	Link   string `json:"link,omitempty"`
	Source string `json:"source"`
}

// CandidateItem 抽取阶段产出、尚未去重的条目
type CandidateItem struct {
	NewsItem
	// Container 为该条目所在容器在页面中的序号（从 0 开始）
	Container int
}

// DedupKey 去重键策略
type DedupKey string

const (
	// DedupLinkOrTitle 有链接用链接，否则用规范化后的标题
	DedupLinkOrTitle DedupKey = "link_or_title"
	// DedupTitle 只看规范化后的标题
	DedupTitle DedupKey = "title"
)

// Self 作为选择器时表示容器节点本身
const Self = ":self"

// SourceDescriptor 描述如何从一个报纸站点抓取并抽取“最新新闻”
type SourceDescriptor struct {
	Tag        string `json:"tag"`
	Name       string `json:"name"`
	ListingURL string `json:"listingUrl"`

	ContainerSelector string `json:"containerSelector"`
	TitleSelector     string `json:"titleSelector"`
	// TitleAttr 非空时从属性读取标题，而不是节点文本
	TitleAttr       string `json:"titleAttr,omitempty"`
	SummarySelector string `json:"summarySelector,omitempty"`
	LinkSelector    string `json:"linkSelector,omitempty"`
	// LinkAttr 默认 href
	LinkAttr      string   `json:"linkAttr,omitempty"`
	LinkURLPrefix string   `json:"linkUrlPrefix,omitempty"`
	DedupKey      DedupKey `json:"dedupKey"`
}

func (d SourceDescriptor) linkAttr() string {
	if d.LinkAttr == "" {
		return "href"
	}
	return d.LinkAttr
}

// DiagnosticKind 非致命问题的分类
type DiagnosticKind string

const (
	DiagFetchError      DiagnosticKind = "fetch_error"
	DiagParseError      DiagnosticKind = "parse_error"
	DiagNoContainers    DiagnosticKind = "no_containers"
	DiagMissingTitle    DiagnosticKind = "missing_title"
	DiagMissingOptional DiagnosticKind = "missing_optional"
	DiagDuplicate       DiagnosticKind = "duplicate"
)

// Diagnostic 随抽取结果一起返回的非致命问题，由调用方决定如何展示
type Diagnostic struct {
	Source string         `json:"source"`
	Kind   DiagnosticKind `json:"kind"`
	// Container 为 -1 表示与具体容器无关
	Container int    `json:"container"`
	Selector  string `json:"selector,omitempty"`
	Message   string `json:"message"`
}

// PassResult 一个来源一次抽取的结果
type PassResult struct {
	Source      string        `json:"source"`
	Items       []NewsItem    `json:"items"`
	Diagnostics []Diagnostic  `json:"diagnostics"`
	FetchedAt   time.Time     `json:"fetchedAt"`
	Elapsed     time.Duration `json:"elapsed"`
}

// Failed 报告本轮是否因抓取或解析失败而没有结果
func (r PassResult) Failed() bool {
	for _, d := range r.Diagnostics {
		if d.Kind == DiagFetchError || d.Kind == DiagParseError {
			return true
		}
	}
	return false
}

// CountDiagnostics 按类型统计诊断数量
func (r PassResult) CountDiagnostics() map[DiagnosticKind]int {
	out := make(map[DiagnosticKind]int)
	for _, d := range r.Diagnostics {
		out[d.Kind]++
	}
	return out
}

// NormalizeText 折叠连续空白并去掉首尾空白
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
