package scraper

import (
	"bytes"
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"freeproxy/internal/shared/logger"
	"freeproxy/proxypool/model"
)

// 表格选择器 (free-proxy-list.net 及其姊妹站点共用同一布局)
const proxyTableSelector = "table.table-striped.table-bordered"

// TableScraper 实现了 Scraper 接口，用于抓取 free-proxy-list.net 的 HTML 表格。
type TableScraper struct {
	name    string
	fetcher Fetcher
}

// NewTableScraper 创建一个新的 TableScraper 实例。
func NewTableScraper(name string, fetcher Fetcher) *TableScraper {
	return &TableScraper{name: name, fetcher: fetcher}
}

// Name 返回抓取器的名称。
func (s *TableScraper) Name() string {
	return s.name
}

// Scrape 执行抓取操作。页面中找不到表格时返回空结果 (页面允许暂时为空)。
func (s *TableScraper) Scrape(ctx context.Context, locator string) ([]model.ProxyRecord, error) {
	l := logger.WithComponent("ProxyPool/Scraper")
	l.Info().Str("source", s.name).Msg("Starting scrape...")

	resp, err := fetchBody(ctx, s.fetcher, s.name, locator)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		l.Warn().Err(err).Str("url", locator).Str("source", s.name).Msg("Failed to parse HTML document.")
		return []model.ProxyRecord{}, nil
	}

	table := doc.Find(proxyTableSelector).First()
	if table.Length() == 0 {
		l.Warn().Str("url", locator).Str("source", s.name).Msg("Proxy table not found in response.")
		return []model.ProxyRecord{}, nil
	}

	records := parseTableRows(table, s.name)
	l.Info().Int("count", len(records)).Str("source", s.name).Msg("Scrape finished.")
	return records, nil
}

// parseTableRows 把表格的每个 tbody 行转换为 8 列记录，列数不足的行被跳过。
func parseTableRows(table *goquery.Selection, source string) []model.ProxyRecord {
	l := logger.WithComponent("ProxyPool/Scraper")

	records := make([]model.ProxyRecord, 0)
	table.Find("tbody tr").Each(func(j int, sel *goquery.Selection) {
		cells := sel.Find("td")
		if cells.Length() < len(model.TableKeys) {
			l.Warn().Int("row", j).Int("cells", cells.Length()).Str("source", source).Msg("Unexpected column count, skipping row.")
			return
		}

		values := make([]string, len(model.TableKeys))
		for i := range values {
			values[i] = strings.TrimSpace(cells.Eq(i).Text())
		}
		if values[0] == "" || values[1] == "" {
			l.Warn().Int("row", j).Str("source", source).Msg("Missing ip or port, skipping row.")
			return
		}

		r, err := model.NewTableRecord(values)
		if err != nil {
			l.Warn().Err(err).Int("row", j).Str("source", source).Msg("Failed to build record, skipping row.")
			return
		}
		records = append(records, r)
	})
	return records
}
