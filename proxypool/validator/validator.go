package validator

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"

	"freeproxy/internal/shared/logger"
	"freeproxy/internal/shared/types"
	"freeproxy/proxypool/model"
)

const maxResponseBytes = 4096

// Validator 对单个代理做存活探测。
// Check 从不返回错误：连接被拒、超时、响应异常、DNS 失败等一律视为 false。
type Validator interface {
	Check(ctx context.Context, record model.ProxyRecord, timeout time.Duration) bool
}

// New 根据配置中的 strategy 创建 Validator。
func New(conf types.ProxyPoolConf) (Validator, error) {
	switch conf.Strategy {
	case types.StrategyTunnel, "":
		return NewTunnelValidator(conf.ProbeTarget, nil), nil
	case types.StrategyHTTP:
		return NewHTTPValidator(conf.ProbeURL), nil
	default:
		return nil, fmt.Errorf("unknown validation strategy %q", conf.Strategy)
	}
}

// TunnelValidator 通过代理向固定目标发起 HTTP CONNECT，收到 2xx 即视为可用。
type TunnelValidator struct {
	target string
	dialer proxy.ContextDialer
}

// NewTunnelValidator 创建隧道探测器。dialer 为 nil 时直接拨号。
func NewTunnelValidator(target string, dialer proxy.ContextDialer) *TunnelValidator {
	if dialer == nil {
		dialer = proxy.Direct
	}
	return &TunnelValidator{target: target, dialer: dialer}
}

// Check validates a proxy by attempting an HTTP CONNECT to the probe target.
func (v *TunnelValidator) Check(ctx context.Context, record model.ProxyRecord, timeout time.Duration) bool {
	l := logger.WithComponent("ProxyPool/Validator")
	proxyAddr := model.FormatAsString(record)

	if err := v.connect(ctx, proxyAddr, timeout); err != nil {
		l.Debug().Err(err).Str("proxy", proxyAddr).Msg("Proxy is invalid.")
		return false
	}
	l.Debug().Str("proxy", proxyAddr).Msg("Proxy is valid.")
	return true
}

func (v *TunnelValidator) connect(ctx context.Context, proxyAddr string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := v.dialer.DialContext(ctx, "tcp", proxyAddr)
	if err != nil {
		return err
	}
	defer conn.Close()

	// 整个交换共用一个截止时间；ctx 被取消时关闭连接以打断阻塞的读写。
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return err
		}
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if _, err := fmt.Fprintf(conn, "CONNECT %s HTTP/1.1\r\n\r\n", v.target); err != nil {
		return err
	}

	buf := make([]byte, maxResponseBytes)
	n, err := conn.Read(buf)
	if n == 0 {
		if err == nil {
			err = fmt.Errorf("empty response")
		}
		return err
	}
	if !IsConnectEstablished(buf[:n]) {
		return fmt.Errorf("unexpected CONNECT response: %q", firstLine(buf[:n]))
	}
	return nil
}

// IsConnectEstablished 判断 CONNECT 响应的状态行是否为 HTTP/1.x 2xx。
func IsConnectEstablished(resp []byte) bool {
	fields := strings.Fields(firstLine(resp))
	if len(fields) < 2 {
		return false
	}
	if !strings.HasPrefix(fields[0], "HTTP/1.") {
		return false
	}
	code := fields[1]
	return len(code) == 3 && code[0] == '2' && isDigit(code[1]) && isDigit(code[2])
}

func firstLine(b []byte) string {
	line, _, _ := bufio.NewReader(bytes.NewReader(b)).ReadLine()
	return string(line)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// HTTPValidator 通过代理对固定 URL 发起完整 GET 请求，2xx 即视为可用。
type HTTPValidator struct {
	targetURL string
}

func NewHTTPValidator(targetURL string) *HTTPValidator {
	return &HTTPValidator{targetURL: targetURL}
}

func (v *HTTPValidator) Check(ctx context.Context, record model.ProxyRecord, timeout time.Duration) bool {
	l := logger.WithComponent("ProxyPool/Validator")
	proxyAddr := model.FormatAsString(record)

	if err := v.get(ctx, proxyAddr, timeout); err != nil {
		l.Debug().Err(err).Str("proxy", proxyAddr).Msg("Proxy is invalid.")
		return false
	}
	l.Debug().Str("proxy", proxyAddr).Msg("Proxy is valid.")
	return true
}

func (v *HTTPValidator) get(ctx context.Context, proxyAddr string, timeout time.Duration) error {
	proxyURL, err := url.Parse("http://" + proxyAddr)
	if err != nil {
		return err
	}

	dialer := &net.Dialer{Timeout: timeout}
	transport := &http.Transport{
		Proxy:                 http.ProxyURL(proxyURL),
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   timeout / 2,
		ResponseHeaderTimeout: timeout,
		DisableKeepAlives:     true,
	}
	defer transport.CloseIdleConnections()

	client := &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.targetURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Connection", "close")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("received non-successful status code: %d", resp.StatusCode)
	}
	return nil
}
