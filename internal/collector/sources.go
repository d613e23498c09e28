package collector

import (
	"fmt"
	"strings"
)

// DefaultSources 返回内置的五家报纸“最新新闻”抽取规则，顺序即展示顺序。
// 每次调用返回新切片，调用方可以放心持有。
func DefaultSources() []SourceDescriptor {
	return []SourceDescriptor{
		{
			Tag:               "clarin",
			Name:              "Clarín",
			ListingURL:        "https://www.clarin.com/ultimo-momento/",
			ContainerSelector: "article",
			TitleSelector:     "h2",
			SummarySelector:   "h3.summary",
			LinkSelector:      "a.link-new",
			LinkURLPrefix:     "https://www.clarin.com",
			DedupKey:          DedupLinkOrTitle,
		},
		{
			// 卡片本身就是 <a>，链接取容器的 href
			Tag:               "infobae",
			Name:              "Infobae",
			ListingURL:        "https://www.infobae.com/ultimas-noticias-america/",
			ContainerSelector: "a.feed-list-card",
			TitleSelector:     "h2.feed-list-card-headline-lean",
			SummarySelector:   "div.deck",
			LinkSelector:      Self,
			LinkURLPrefix:     "http://infobae.com",
			DedupKey:          DedupLinkOrTitle,
		},
		{
			Tag:               "lanacion",
			Name:              "La Nación",
			ListingURL:        "https://www.lanacion.com.ar/ultimas-noticias/",
			ContainerSelector: "article.mod-article",
			TitleSelector:     "a.com-link",
			LinkSelector:      "a.com-link",
			LinkURLPrefix:     "http://lanacion.com",
			DedupKey:          DedupLinkOrTitle,
		},
		{
			Tag:               "lacapital",
			Name:              "La Capital",
			ListingURL:        "https://www.lacapital.com.ar/secciones/ultimo-momento.html",
			ContainerSelector: "article.ultimas-noticias-entry-container",
			TitleSelector:     "h2.entry-title",
			LinkSelector:      "a.cover-link",
			DedupKey:          DedupLinkOrTitle,
		},
		{
			// 标题在 <a title="..."> 属性里，没有摘要
			Tag:               "rosario3",
			Name:              "Rosario3",
			ListingURL:        "https://www.rosario3.com/seccion/ultimas-noticias/",
			ContainerSelector: "a.cover-link",
			TitleSelector:     Self,
			TitleAttr:         "title",
			LinkSelector:      Self,
			LinkURLPrefix:     "http://rosario3.com",
			DedupKey:          DedupLinkOrTitle,
		},
	}
}

// SelectSources 按 tag 过滤内置来源；tags 为空时返回全部。未知 tag 返回错误。
func SelectSources(tags []string) ([]SourceDescriptor, error) {
	all := DefaultSources()
	if len(tags) == 0 {
		return all, nil
	}

	byTag := make(map[string]SourceDescriptor, len(all))
	for _, d := range all {
		byTag[d.Tag] = d
	}

	out := make([]SourceDescriptor, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		d, ok := byTag[t]
		if !ok {
			return nil, fmt.Errorf("unknown source %q", t)
		}
		seen[t] = true
		out = append(out, d)
	}
	return out, nil
}
