package scraper

import (
	"context"
	"fmt"

	"freeproxy/internal/shared/logger"
	"freeproxy/proxypool/model"
	"freeproxy/proxypool/storage"
)

// FileListScraper 从本地文件读取每行一个 "ip:port" 的代理列表。
type FileListScraper struct {
	name string
}

func NewFileListScraper(name string) *FileListScraper {
	return &FileListScraper{name: name}
}

func (s *FileListScraper) Name() string {
	return s.name
}

// Scrape 以 locator 为文件路径读取列表。文件不可读视为下载失败。
func (s *FileListScraper) Scrape(ctx context.Context, locator string) ([]model.ProxyRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l := logger.WithComponent("ProxyPool/Scraper")

	lines, err := storage.NewFileStorage(locator).Load()
	if err != nil {
		l.Warn().Err(err).Str("path", locator).Str("source", s.name).Msg("Failed to read proxy file.")
		return nil, &model.FetchError{Source: s.name, URL: locator, Err: err}
	}

	records, err := parseLines(lines)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.name, err)
	}

	l.Info().Int("count", len(records)).Str("source", s.name).Msg("Scrape finished.")
	return records, nil
}
