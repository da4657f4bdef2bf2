package scraper

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"

	"freeproxy/internal/shared/logger"
	"freeproxy/proxypool/model"
)

// LineListScraper 实现了 Scraper 接口，用于每行一个 "ip:port" 的纯文本代理列表
// (TheSpeedX/PROXY-List, proxyscrape.com)。
type LineListScraper struct {
	name    string
	fetcher Fetcher
}

// NewLineListScraper 创建一个新的 LineListScraper 实例。
func NewLineListScraper(name string, fetcher Fetcher) *LineListScraper {
	return &LineListScraper{name: name, fetcher: fetcher}
}

// Name 返回抓取器的名称。
func (s *LineListScraper) Name() string {
	return s.name
}

// Scrape 执行抓取操作。任何一行格式错误都会使整次抓取失败。
func (s *LineListScraper) Scrape(ctx context.Context, locator string) ([]model.ProxyRecord, error) {
	l := logger.WithComponent("ProxyPool/Scraper")
	l.Info().Str("source", s.name).Msg("Starting scrape...")

	resp, err := fetchBody(ctx, s.fetcher, s.name, locator)
	if err != nil {
		return nil, err
	}

	records, err := ParseLineList(resp.Body)
	if err != nil {
		l.Error().Err(err).Str("source", s.name).Msg("Proxy list is corrupt.")
		return nil, fmt.Errorf("%s: %w", s.name, err)
	}
	if len(records) > 0 {
		l.Debug().Str("source", s.name).Str("sample", records[0].String()).Msg("Sample proxy.")
	}

	l.Info().Int("count", len(records)).Str("source", s.name).Msg("Scrape finished.")
	return records, nil
}

// ParseLineList 解析每行一个 "ip:port" 的文本，空行被忽略。
// 格式错误的行返回带行号的 *model.FormatError。
func ParseLineList(data []byte) ([]model.ProxyRecord, error) {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return parseLines(lines)
}

func parseLines(lines []string) ([]model.ProxyRecord, error) {
	records := make([]model.ProxyRecord, 0, len(lines))
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		r, err := model.ParseFromString(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		records = append(records, r)
	}
	return records, nil
}
