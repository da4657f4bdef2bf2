package scraper

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"freeproxy/internal/shared/logger"
	"freeproxy/internal/shared/types"
	"freeproxy/proxypool/model"
)

// Scraper 接口定义了从代理源抓取并解析代理记录的行为。
type Scraper interface {
	// Scrape 从 locator (URL 或本地路径) 抓取内容并解析为代理记录。
	// 传输失败或非 2xx 返回 *model.FetchError；内容存在但无法识别时返回空切片而不是错误。
	// 实现者只负责抓取和解析，不进行验证。
	Scrape(ctx context.Context, locator string) ([]model.ProxyRecord, error)

	// Name 返回抓取器的名称，用于日志记录。
	Name() string
}

// Registry 按稳定的字符串键保存可用的 Scraper。
type Registry struct {
	mu       sync.RWMutex
	scrapers map[string]Scraper
}

// NewRegistry 创建一个空的注册表。
func NewRegistry() *Registry {
	return &Registry{scrapers: make(map[string]Scraper)}
}

// NewDefaultRegistry 创建注册了全部内置代理源的注册表。
func NewDefaultRegistry(cfg *types.Config) *Registry {
	fetcher := NewRestyFetcher(cfg.FetchTimeout, cfg.UserAgent).SetProxy(cfg.FetchProxy)

	r := NewRegistry()
	r.mustRegister(types.SourceSpeedX, NewLineListScraper(types.SourceSpeedX, fetcher))
	r.mustRegister(types.SourceProxyScrape, NewLineListScraper(types.SourceProxyScrape, fetcher))
	r.mustRegister(types.SourceFreeProxyList, NewTableScraper(types.SourceFreeProxyList, fetcher))
	r.mustRegister(types.SourceSSLProxies, NewCollyTableScraper(types.SourceSSLProxies, cfg.FetchTimeout, cfg.UserAgent).WithProxy(cfg.FetchProxy))
	r.mustRegister(types.SourceUSProxy, NewCollyTableScraper(types.SourceUSProxy, cfg.FetchTimeout, cfg.UserAgent).WithProxy(cfg.FetchProxy))
	r.mustRegister(types.SourceLocalFile, NewFileListScraper(types.SourceLocalFile))
	return r
}

// Register 以 key 注册一个 Scraper，key 已存在时返回错误。
func (r *Registry) Register(key string, s Scraper) error {
	if key == "" {
		return fmt.Errorf("scraper registry: empty key")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.scrapers[key]; exists {
		return fmt.Errorf("scraper registry: key %q already registered", key)
	}
	r.scrapers[key] = s
	return nil
}

func (r *Registry) mustRegister(key string, s Scraper) {
	if err := r.Register(key, s); err != nil {
		panic(err)
	}
}

// Lookup 返回 key 对应的 Scraper，未注册时返回 *model.InvalidSourceError。
func (r *Registry) Lookup(key string) (Scraper, error) {
	r.mu.RLock()
	s, ok := r.scrapers[key]
	r.mu.RUnlock()
	if !ok {
		return nil, &model.InvalidSourceError{Key: key, Valid: r.Keys()}
	}
	return s, nil
}

// Keys 返回已注册的键，按字母排序。
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.scrapers))
	for k := range r.scrapers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// fetchBody 通过 fetcher 下载 url，传输错误与非 2xx 状态统一转换为 *model.FetchError。
func fetchBody(ctx context.Context, f Fetcher, source, url string) (*Response, error) {
	l := logger.WithComponent("ProxyPool/Scraper")
	l.Debug().Str("source", source).Str("url", url).Msg("Fetching source...")

	resp, err := f.Get(ctx, url)
	if err != nil {
		l.Warn().Err(err).Str("source", source).Str("url", url).Msg("Failed to fetch source.")
		return nil, &model.FetchError{Source: source, URL: url, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		l.Warn().Int("status_code", resp.StatusCode).Str("source", source).Str("url", url).Msg("Received non-2xx status code.")
		return nil, &model.FetchError{Source: source, URL: url, StatusCode: resp.StatusCode}
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		l.Info().Str("source", source).Str("last_modified", lm).Msg("Source list timestamp.")
	}
	return resp, nil
}
