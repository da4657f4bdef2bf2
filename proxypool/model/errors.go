package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyPool 表示管理器中尚未加载任何代理记录。
	ErrEmptyPool = errors.New("proxy pool is empty")
	// ErrInvalidArgument 用于调用方传入的非法参数，例如 n < 1。
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrMixedSchema 表示同一批记录的属性集合不一致。
	ErrMixedSchema = errors.New("proxy records do not share a uniform schema")
)

// FetchError 表示从代理源下载失败 (传输错误或非 2xx 状态码)。
type FetchError struct {
	Source     string
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "fetch %s (%s) failed", e.Source, e.URL)
	if e.StatusCode != 0 {
		fmt.Fprintf(&sb, ": status %d", e.StatusCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// InvalidSourceError 表示未注册或未配置地址的代理源。
type InvalidSourceError struct {
	Key    string
	Valid  []string
	Reason string
}

func (e *InvalidSourceError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "unknown source"
	}
	return fmt.Sprintf("invalid source %q: %s, valid options are: [%s]", e.Key, reason, strings.Join(e.Valid, ", "))
}

// InvalidFilterError 表示过滤条件中含有不在代理池 schema 中的键。
type InvalidFilterError struct {
	Invalid []string
	Valid   []string
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("filter contains invalid keys: [%s], valid options are: [%s] (some providers do not supply every field)",
		strings.Join(e.Invalid, ", "), strings.Join(e.Valid, ", "))
}

// InsufficientProxiesError 表示候选集耗尽时可用代理数量仍未达到要求。
type InsufficientProxiesError struct {
	Found      int
	Requested  int
	Checked    int
	Candidates int
}

func (e *InsufficientProxiesError) Error() string {
	return fmt.Sprintf("insufficient operational proxies: found %d of %d requested (%d of %d candidates checked)",
		e.Found, e.Requested, e.Checked, e.Candidates)
}

// FormatError 表示 "ip:port" 字符串格式错误。
type FormatError struct {
	Input  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed proxy %q: %s", e.Input, e.Reason)
}
