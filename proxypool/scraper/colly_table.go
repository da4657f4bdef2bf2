package scraper

import (
	"context"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"freeproxy/internal/shared/logger"
	"freeproxy/proxypool/model"
)

// CollyTableScraper 实现了 Scraper 接口，用 colly 抓取与 free-proxy-list.net
// 相同布局的姊妹站点 (sslproxies.org, us-proxy.org)。
type CollyTableScraper struct {
	name      string
	timeout   time.Duration
	userAgent string
	proxyURL  string
}

// NewCollyTableScraper 创建一个新的 CollyTableScraper 实例。
func NewCollyTableScraper(name string, timeout time.Duration, userAgent string) *CollyTableScraper {
	return &CollyTableScraper{name: name, timeout: timeout, userAgent: userAgent}
}

// WithProxy 设置抓取时使用的上游 HTTP 代理。
func (s *CollyTableScraper) WithProxy(proxyURL string) *CollyTableScraper {
	s.proxyURL = proxyURL
	return s
}

// Name 返回抓取器的名称。
func (s *CollyTableScraper) Name() string {
	return s.name
}

// Scrape 执行抓取操作。每次调用使用新的 collector，回调不会在多次抓取间累积。
func (s *CollyTableScraper) Scrape(ctx context.Context, locator string) ([]model.ProxyRecord, error) {
	l := logger.WithComponent("ProxyPool/Scraper")
	l.Info().Str("source", s.name).Msg("Starting scrape...")

	opts := []colly.CollectorOption{
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
	}
	if s.userAgent != "" {
		opts = append(opts, colly.UserAgent(s.userAgent))
	}
	c := colly.NewCollector(opts...)
	c.SetRequestTimeout(s.timeout)
	if s.proxyURL != "" {
		if err := c.SetProxy(s.proxyURL); err != nil {
			return nil, &model.FetchError{Source: s.name, URL: locator, Err: err}
		}
	}

	var (
		mu         sync.Mutex
		records    = make([]model.ProxyRecord, 0)
		found      bool
		scrapeErr  error
		statusCode int
	)

	c.OnHTML(proxyTableSelector, func(e *colly.HTMLElement) {
		mu.Lock()
		defer mu.Unlock()
		if found {
			return // 只取第一个表格
		}
		found = true
		records = parseTableRows(e.DOM, s.name)
	})

	c.OnError(func(r *colly.Response, err error) {
		l.Warn().Err(err).Int("status_code", r.StatusCode).Str("url", locator).Str("source", s.name).Msg("Scrape request failed.")
		mu.Lock()
		scrapeErr = err
		statusCode = r.StatusCode
		mu.Unlock()
	})

	if err := c.Visit(locator); err != nil {
		mu.Lock()
		if scrapeErr == nil {
			scrapeErr = err
		}
		mu.Unlock()
	}
	c.Wait()

	if scrapeErr != nil {
		return nil, &model.FetchError{Source: s.name, URL: locator, StatusCode: statusCode, Err: scrapeErr}
	}
	if !found {
		l.Warn().Str("url", locator).Str("source", s.name).Msg("Proxy table not found in response.")
	}

	l.Info().Int("count", len(records)).Str("source", s.name).Msg("Scrape finished.")
	return records, nil
}
