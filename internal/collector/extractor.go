package collector

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Extract 把原始 HTML 按描述符抽取成候选条目。
// 任何选择器匹配不到都只记诊断，不会中断其它容器；解析失败返回空结果加一条诊断。
func Extract(raw string, d SourceDescriptor) ([]CandidateItem, []Diagnostic) {
	if strings.TrimSpace(raw) == "" {
		return nil, []Diagnostic{{
			Source:    d.Tag,
			Kind:      DiagParseError,
			Container: -1,
			Message:   "empty document",
		}}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, []Diagnostic{{
			Source:    d.Tag,
			Kind:      DiagParseError,
			Container: -1,
			Message:   fmt.Sprintf("parse html: %v", err),
		}}
	}

	containers := doc.Find(d.ContainerSelector)
	if containers.Length() == 0 {
		return nil, []Diagnostic{{
			Source:    d.Tag,
			Kind:      DiagNoContainers,
			Container: -1,
			Selector:  d.ContainerSelector,
			Message:   "container selector matched no nodes",
		}}
	}

	var (
		items = make([]CandidateItem, 0, containers.Length())
		diags []Diagnostic
	)
	containers.Each(func(i int, s *goquery.Selection) {
		item, ds := extractContainer(i, s, d)
		diags = append(diags, ds...)
		if item != nil {
			items = append(items, *item)
		}
	})

	return items, diags
}

// extractContainer 处理单个容器；标题缺失时返回 nil
func extractContainer(idx int, s *goquery.Selection, d SourceDescriptor) (*CandidateItem, []Diagnostic) {
	var diags []Diagnostic
	note := func(kind DiagnosticKind, selector, msg string) {
		diags = append(diags, Diagnostic{
			Source:    d.Tag,
			Kind:      kind,
			Container: idx,
			Selector:  selector,
			Message:   msg,
		})
	}

	titleSel := d.TitleSelector
	if titleSel == "" {
		titleSel = Self
	}
	titleNode := within(s, titleSel)
	if titleNode.Length() == 0 {
		note(DiagMissingTitle, titleSel, "title node not found, container skipped")
		return nil, diags
	}
	title := nodeValue(titleNode, d.TitleAttr)
	if title == "" {
		note(DiagMissingTitle, titleSel, "title is empty, container skipped")
		return nil, diags
	}

	item := &CandidateItem{
		NewsItem:  NewsItem{Title: title, Source: d.Tag},
		Container: idx,
	}

	if d.SummarySelector != "" {
		if node := within(s, d.SummarySelector); node.Length() > 0 {
			item.Summary = NormalizeText(node.Text())
		} else {
			note(DiagMissingOptional, d.SummarySelector, "summary node not found")
		}
	}

	if d.LinkSelector != "" {
		node := within(s, d.LinkSelector)
		href, _ := node.Attr(d.linkAttr())
		switch {
		case node.Length() == 0:
			note(DiagMissingOptional, d.LinkSelector, "link node not found")
		case strings.TrimSpace(href) == "":
			note(DiagMissingOptional, d.LinkSelector, fmt.Sprintf("link node has no %s", d.linkAttr()))
		default:
			link, err := ResolveLink(href, d.LinkURLPrefix, d.ListingURL)
			if err != nil {
				note(DiagMissingOptional, d.LinkSelector, err.Error())
			} else {
				item.Link = link
			}
		}
	}

	return item, diags
}

// within 返回容器内第一个匹配节点；Self 表示容器本身
func within(s *goquery.Selection, selector string) *goquery.Selection {
	if selector == Self {
		return s
	}
	return s.Find(selector).First()
}

func nodeValue(node *goquery.Selection, attr string) string {
	if attr == "" {
		return NormalizeText(node.Text())
	}
	v, _ := node.Attr(attr)
	return NormalizeText(v)
}

// ResolveLink 把页面上的 href 规范为绝对地址。
// 相对地址优先拼接 prefix，prefix 为空时退回到列表页地址；只接受 http/https。
func ResolveLink(href, prefix, listingURL string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", fmt.Errorf("link %q is not a page address", href)
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parse link %q: %w", href, err)
	}
	if ref.IsAbs() {
		if !isHTTPScheme(ref.Scheme) {
			return "", fmt.Errorf("link %q has unsupported scheme %q", href, ref.Scheme)
		}
		return href, nil
	}

	base := prefix
	if base == "" {
		base = listingURL
	}
	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return "", fmt.Errorf("cannot resolve relative link %q against %q", href, base)
	}
	return b.ResolveReference(ref).String(), nil
}

func isHTTPScheme(scheme string) bool {
	scheme = strings.ToLower(scheme)
	return scheme == "http" || scheme == "https"
}
