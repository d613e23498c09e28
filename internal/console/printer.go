package console

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/LJTian/NewsDesk/internal/collector"
	"github.com/LJTian/NewsDesk/internal/scheduler"
	"github.com/charmbracelet/lipgloss"
)

var (
	colorHeader  = lipgloss.Color("#3fb950")
	colorTitle   = lipgloss.Color("#58a6ff")
	colorMuted   = lipgloss.Color("#8b949e")
	colorWarning = lipgloss.Color("#d29922")
)

// Printer 把一轮结果打到终端：每个来源一个标题栏，下面是新闻标题与摘要
type Printer struct {
	w     io.Writer
	order []string
	// ShowSummary 为 false 时只打印标题
	ShowSummary bool

	header  lipgloss.Style
	title   lipgloss.Style
	summary lipgloss.Style
	warning lipgloss.Style
}

// NewPrinter order 决定来源的打印顺序，不在 order 里的来源按字母序排在最后
func NewPrinter(w io.Writer, order []string) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:           w,
		order:       order,
		ShowSummary: true,
		header:      r.NewStyle().Foreground(colorHeader).Bold(true),
		title:       r.NewStyle().Foreground(colorTitle).Bold(true),
		summary:     r.NewStyle().Foreground(colorMuted).PaddingLeft(2),
		warning:     r.NewStyle().Foreground(colorWarning),
	}
}

func (p *Printer) Name() string {
	return "console"
}

func (p *Printer) Consume(_ context.Context, res scheduler.Result) error {
	for _, tag := range res.Tags(p.order) {
		if err := p.printSource(res[tag]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Printer) printSource(pass collector.PassResult) error {
	var b strings.Builder

	b.WriteString(p.header.Render(fmt.Sprintf("[ %s news ]", pass.Source)))
	b.WriteString("\n")

	if pass.Failed() {
		for _, d := range pass.Diagnostics {
			if d.Kind == collector.DiagFetchError || d.Kind == collector.DiagParseError {
				b.WriteString(p.warning.Render("! " + d.Message))
				b.WriteString("\n")
			}
		}
	}

	for _, it := range pass.Items {
		b.WriteString(p.title.Render(it.Title))
		b.WriteString("\n")
		if p.ShowSummary && it.Summary != "" {
			b.WriteString(p.summary.Render(it.Summary))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if skipped := skippedSummary(pass); skipped != "" {
		b.WriteString(p.warning.Render(skipped))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	_, err := io.WriteString(p.w, b.String())
	return err
}

// skippedSummary 汇总被跳过的容器和重复条目，没有则返回空串
func skippedSummary(pass collector.PassResult) string {
	counts := pass.CountDiagnostics()
	var parts []string
	if n := counts[collector.DiagMissingTitle]; n > 0 {
		parts = append(parts, fmt.Sprintf("%d without title", n))
	}
	if n := counts[collector.DiagDuplicate]; n > 0 {
		parts = append(parts, fmt.Sprintf("%d duplicates", n))
	}
	if n := counts[collector.DiagNoContainers]; n > 0 {
		parts = append(parts, "no containers matched")
	}
	if len(parts) == 0 {
		return ""
	}
	return "skipped: " + strings.Join(parts, ", ")
}
