package storage

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"freeproxy/internal/shared/logger"
)

// Storage 接口定义了代理列表 (每行一个 "ip:port") 的读写行为。
type Storage interface {
	Load() ([]string, error)
	Save(proxies []string) error
}

// FileStorage 实现了 Storage 接口，使用纯文本文件，每行一个代理。
type FileStorage struct {
	filePath string
	mu       sync.RWMutex
}

// NewFileStorage 创建一个新的 FileStorage 实例。
func NewFileStorage(filePath string) *FileStorage {
	return &FileStorage{
		filePath: filePath,
	}
}

// Path returns the backing file path.
func (fs *FileStorage) Path() string {
	return fs.filePath
}

// Load 按行读取文件，去掉首尾空白并跳过空行，保持文件中的顺序。
// 文件不存在时返回错误。
func (fs *FileStorage) Load() ([]string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	file, err := os.Open(fs.filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	l := logger.WithComponent("ProxyPool/Storage")
	l.Debug().Int("count", len(lines)).Str("path", fs.filePath).Msg("Loaded proxy list from file.")
	return lines, nil
}

// Save 将代理列表写入文件。先写临时文件再 rename，读者不会看到写了一半的文件。
func (fs *FileStorage) Save(proxies []string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	var sb strings.Builder
	for _, p := range proxies {
		sb.WriteString(p)
		sb.WriteString("\n")
	}

	tmp, err := os.CreateTemp(filepath.Dir(fs.filePath), ".freeproxy-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.WriteString(sb.String()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), fs.filePath); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	l := logger.WithComponent("ProxyPool/Storage")
	l.Info().Int("count", len(proxies)).Str("path", fs.filePath).Msg("Successfully saved proxies to file.")
	return nil
}
