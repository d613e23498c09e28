package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// BrowserFetcher 用无头 Chrome 渲染列表页，适用于依赖 JS 才能出内容的站点。
// 整个进程复用一个浏览器实例，每次 Fetch 开一个新标签页，可并发使用。
type BrowserFetcher struct {
	Timeout time.Duration

	browserCtx    context.Context
	cancelAlloc   context.CancelFunc
	cancelBrowser context.CancelFunc
}

func NewBrowserFetcher(timeout time.Duration, userAgent string) (*BrowserFetcher, error) {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.UserAgent(userAgent))
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// 预热浏览器，避免首个请求耗时过长
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	return &BrowserFetcher{
		Timeout:       timeout,
		browserCtx:    browserCtx,
		cancelAlloc:   cancelAlloc,
		cancelBrowser: cancelBrowser,
	}, nil
}

func (f *BrowserFetcher) Fetch(ctx context.Context, url string) (string, error) {
	tabCtx, cancelTab := chromedp.NewContext(f.browserCtx)
	defer cancelTab()
	// 调用方取消时同步关闭标签页
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	tabCtx, cancel := context.WithTimeout(tabCtx, f.Timeout)
	defer cancel()

	resp, err := chromedp.RunResponse(tabCtx, chromedp.Navigate(url))
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return "", classifyFetchError(url, 0, err)
	}
	if resp != nil && (resp.Status < 200 || resp.Status > 299) {
		return "", &FetchError{Kind: FetchStatus, URL: url, StatusCode: int(resp.Status)}
	}

	var html string
	if err := chromedp.Run(tabCtx,
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return "", classifyFetchError(url, 0, err)
	}
	return html, nil
}

// Close 关闭浏览器进程
func (f *BrowserFetcher) Close() {
	f.cancelBrowser()
	f.cancelAlloc()
}

const remoteMaxResponseBytes = 8 << 20

// RenderRequest / RenderResponse 是 browser-scraper 服务 /render 接口的报文
type RenderRequest struct {
	URL       string `json:"url"`
	TimeoutMs int64  `json:"timeoutMs,omitempty"`
}

type RenderResponse struct {
	OK     bool   `json:"ok"`
	HTML   string `json:"html,omitempty"`
	Status int    `json:"status,omitempty"`
	Kind   string `json:"kind,omitempty"`
	Error  string `json:"error,omitempty"`
}

// RemoteFetcher 通过独立部署的 browser-scraper 服务渲染页面，
// 让无头浏览器与采集进程隔离。
type RemoteFetcher struct {
	Endpoint string
	Timeout  time.Duration
	client   *http.Client
}

func NewRemoteFetcher(endpoint string, timeout time.Duration) *RemoteFetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &RemoteFetcher{
		Endpoint: strings.TrimRight(endpoint, "/"),
		Timeout:  timeout,
		// 留出渲染服务自身的处理余量
		client: &http.Client{Timeout: timeout + 5*time.Second},
	}
}

func (f *RemoteFetcher) Fetch(ctx context.Context, url string) (string, error) {
	payload, err := json.Marshal(RenderRequest{URL: url, TimeoutMs: f.Timeout.Milliseconds()})
	if err != nil {
		return "", &FetchError{Kind: FetchNetwork, URL: url, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.Endpoint+"/render", bytes.NewReader(payload))
	if err != nil {
		return "", &FetchError{Kind: FetchNetwork, URL: url, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", classifyFetchError(url, 0, err)
	}
	defer resp.Body.Close()

	var out RenderResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, remoteMaxResponseBytes)).Decode(&out); err != nil {
		return "", &FetchError{Kind: FetchNetwork, URL: url, Err: fmt.Errorf("decode render reply (status %d): %w", resp.StatusCode, err)}
	}
	if out.OK {
		return out.HTML, nil
	}

	switch {
	case out.Status != 0:
		return "", &FetchError{Kind: FetchStatus, URL: url, StatusCode: out.Status, Err: errors.New(out.Error)}
	case FetchErrorKind(out.Kind) == FetchTimeout:
		return "", &FetchError{Kind: FetchTimeout, URL: url, Err: errors.New(out.Error)}
	default:
		return "", &FetchError{Kind: FetchNetwork, URL: url, Err: fmt.Errorf("render service: %s", out.Error)}
	}
}
