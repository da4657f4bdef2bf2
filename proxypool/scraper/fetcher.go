package scraper

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Response 是一次 GET 的原始结果。
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Fetcher 是代理源下载所依赖的传输层。只在传输失败时返回错误，状态码由调用方判断。
type Fetcher interface {
	Get(ctx context.Context, url string) (*Response, error)
}

// RestyFetcher 基于 resty 实现 Fetcher。不做重试。
type RestyFetcher struct {
	client *resty.Client
}

// NewRestyFetcher 创建一个 RestyFetcher。
func NewRestyFetcher(timeout time.Duration, userAgent string) *RestyFetcher {
	client := resty.New().
		SetTimeout(timeout).
		SetHeaders(map[string]string{
			"Cache-Control": "no-cache",
			"Pragma":        "no-cache",
		})
	if userAgent != "" {
		client.SetHeader("User-Agent", userAgent)
	}
	return &RestyFetcher{client: client}
}

// SetProxy 让所有下载经由 proxyURL 转发，用于绕过对数据中心 IP 的屏蔽。空字符串表示直连。
func (f *RestyFetcher) SetProxy(proxyURL string) *RestyFetcher {
	if proxyURL != "" {
		f.client.SetProxy(proxyURL)
	}
	return f
}

func (f *RestyFetcher) Get(ctx context.Context, url string) (*Response, error) {
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, err
	}
	return &Response{
		StatusCode: resp.StatusCode(),
		Header:     resp.Header(),
		Body:       resp.Body(),
	}, nil
}
