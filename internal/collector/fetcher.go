package collector

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

const (
	defaultFetchTimeout = 15 * time.Second
	defaultMaxBodySize  = 4 << 20 // 4MB，列表页足够，防止异常大页面占满内存
	defaultUserAgent    = "NewsDeskBot/1.0"
)

// Fetcher 抽象“按 URL 取回原始页面文本”这一步，不做重试也不做缓存
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// FetchErrorKind 区分网络错误、超时和非 2xx 状态码
type FetchErrorKind string

const (
	FetchNetwork FetchErrorKind = "network"
	FetchTimeout FetchErrorKind = "timeout"
	FetchStatus  FetchErrorKind = "status"
)

type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchStatus:
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	case FetchTimeout:
		return fmt.Sprintf("fetch %s: timeout: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsTimeout 判断 err 是否为抓取超时
func IsTimeout(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == FetchTimeout
}

// classifyFetchError 把底层错误归类为 FetchError；status 为 0 表示没有拿到响应
func classifyFetchError(url string, status int, err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	if status != 0 && (status < 200 || status > 299) {
		return &FetchError{Kind: FetchStatus, URL: url, StatusCode: status, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &FetchError{Kind: FetchTimeout, URL: url, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &FetchError{Kind: FetchTimeout, URL: url, Err: err}
	}
	return &FetchError{Kind: FetchNetwork, URL: url, Err: err}
}

// HTTPFetcher 基于 colly 的默认抓取实现。
// 每次 Fetch 都新建 collector，避免 colly 的“已访问”记录跨轮次生效。
type HTTPFetcher struct {
	Timeout     time.Duration
	UserAgent   string
	MaxBodySize int
}

func NewHTTPFetcher(timeout time.Duration, userAgent string) *HTTPFetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &HTTPFetcher{
		Timeout:     timeout,
		UserAgent:   userAgent,
		MaxBodySize: defaultMaxBodySize,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	c := colly.NewCollector(
		colly.StdlibContext(ctx),
		colly.UserAgent(f.UserAgent),
		colly.MaxBodySize(f.MaxBodySize),
		colly.DetectCharset(),
		colly.IgnoreRobotsTxt(),
		// 所有状态码都交给 OnResponse，由下面统一按 2xx 判断
		colly.ParseHTTPErrorResponse(),
	)
	c.SetRequestTimeout(f.Timeout)

	var (
		body   []byte
		status int
	)
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	if err := c.Visit(url); err != nil {
		return "", classifyFetchError(url, status, err)
	}
	if status < http.StatusOK || status > 299 {
		return "", &FetchError{Kind: FetchStatus, URL: url, StatusCode: status}
	}
	return string(body), nil
}

// NewFetcherForMode 按配置选择抓取实现；返回的 closeFn 总是非 nil
func NewFetcherForMode(mode string, timeout time.Duration, userAgent, renderURL string) (Fetcher, func(), error) {
	switch mode {
	case "", "http":
		return NewHTTPFetcher(timeout, userAgent), func() {}, nil
	case "browser":
		bf, err := NewBrowserFetcher(timeout, userAgent)
		if err != nil {
			return nil, func() {}, err
		}
		return bf, bf.Close, nil
	case "remote":
		return NewRemoteFetcher(renderURL, timeout), func() {}, nil
	default:
		return nil, func() {}, fmt.Errorf("unknown fetch mode %q", mode)
	}
}
