package render

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/LJTian/NewsDesk/internal/collector"
	"github.com/LJTian/NewsDesk/internal/scheduler"
)

//go:embed templates/page.html
var templatesFS embed.FS

var pageTmpl = template.Must(template.New("page.html").Funcs(template.FuncMap{
	"formatTime": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("02/01/2006 15:04")
	},
}).ParseFS(templatesFS, "templates/page.html"))

type section struct {
	Tag    string
	Name   string
	Items  []collector.NewsItem
	Failed bool
	// FetchedAt 来源本轮抓取时间
	FetchedAt time.Time
}

type pageData struct {
	GeneratedAt time.Time
	Sections    []section
}

// Renderer 把一轮结果渲染成按来源分组的静态 HTML 页面
type Renderer struct {
	sources []collector.SourceDescriptor
	// Output 非空时 Consume 会把页面写入该文件
	Output string
	now    func() time.Time
}

func NewRenderer(sources []collector.SourceDescriptor, output string) *Renderer {
	return &Renderer{sources: sources, Output: output, now: time.Now}
}

// Render 生成页面；来源按描述符顺序排列，结果里多出来的来源按字母序排在后面
func (r *Renderer) Render(res scheduler.Result) ([]byte, error) {
	order := make([]string, 0, len(r.sources))
	names := make(map[string]string, len(r.sources))
	for _, d := range r.sources {
		order = append(order, d.Tag)
		names[d.Tag] = d.Name
	}

	data := pageData{GeneratedAt: r.now()}
	for _, tag := range res.Tags(order) {
		p := res[tag]
		name := names[tag]
		if name == "" {
			name = tag
		}
		data.Sections = append(data.Sections, section{
			Tag:       tag,
			Name:      name,
			Items:     p.Items,
			Failed:    p.Failed(),
			FetchedAt: p.FetchedAt,
		})
	}

	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render page: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) Name() string {
	return "page"
}

// Consume 实现 scheduler.Sink：先写临时文件再 rename，避免读者看到写了一半的页面
func (r *Renderer) Consume(_ context.Context, res scheduler.Result) error {
	if r.Output == "" {
		return nil
	}
	page, err := r.Render(res)
	if err != nil {
		return err
	}

	dir := filepath.Dir(r.Output)
	tmp, err := os.CreateTemp(dir, ".page-*.html")
	if err != nil {
		return fmt.Errorf("create temp page: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(page); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp page: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), r.Output)
}
