package types

import (
	"fmt"
	"time"
)

// 代理源的标准键名。
const (
	SourceSpeedX        = "TheSpeedX/PROXY-List"
	SourceFreeProxyList = "free-proxy-list.net"
	SourceProxyScrape   = "proxyscrape.com"
	SourceSSLProxies    = "sslproxies.org"
	SourceUSProxy       = "us-proxy.org"
	SourceLocalFile     = "local-file"
)

// 验证策略
const (
	StrategyTunnel = "tunnel" // HTTP CONNECT 隧道探测
	StrategyHTTP   = "http"   // 通过代理的完整 GET 请求
)

// LogConf contains logging specific configuration
type LogConf struct {
	Level string `ini:"level"`
	File  string `ini:"file"` // 为空时只输出到 stderr
}

// ProxyPoolConf 包含代理池管理器的配置
type ProxyPoolConf struct {
	DefaultSource      string        `ini:"default_source"`
	ValidationTimeout  time.Duration `ini:"validation_timeout"`  // 单次探测超时
	DefaultConcurrency int           `ini:"default_concurrency"` // acquire 未指定并发时使用
	Strategy           string        `ini:"strategy"`            // tunnel | http
	ProbeTarget        string        `ini:"probe_target"`        // CONNECT 目标 host:port
	ProbeURL           string        `ini:"probe_url"`           // http 策略使用的 URL
	FetchTimeout       time.Duration `ini:"fetch_timeout"`
	UserAgent          string        `ini:"user_agent"`
	FetchProxy         string        `ini:"fetch_proxy"` // 下载代理源时经由的上游代理，例如 http://127.0.0.1:8080；为空则直连
}

// Config 是项目的统一配置结构体。
// Sources 来自 ini 的 [sources] 段 (键名 = 代理源, 值 = 下载地址)。
type Config struct {
	LogConf       `ini:"log"`
	ProxyPoolConf `ini:"proxypool"`
	Sources       map[string]string `ini:"-"`
}

// DefaultConfig 返回内置默认配置。
func DefaultConfig() *Config {
	return &Config{
		LogConf: LogConf{
			Level: "info",
		},
		ProxyPoolConf: ProxyPoolConf{
			DefaultSource:      SourceProxyScrape,
			ValidationTimeout:  5 * time.Second,
			DefaultConcurrency: 10,
			Strategy:           StrategyTunnel,
			ProbeTarget:        "1.1.1.1:80", // Cloudflare 公共 DNS，稳定且低变动
			ProbeURL:           "http://1.1.1.1/",
			FetchTimeout:       20 * time.Second,
			UserAgent:          "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36",
		},
		Sources: map[string]string{
			SourceSpeedX:        "https://raw.githubusercontent.com/TheSpeedX/SOCKS-List/master/http.txt",
			SourceFreeProxyList: "https://free-proxy-list.net",
			SourceProxyScrape:   "https://api.proxyscrape.com/v2/?request=displayproxies&protocol=http&timeout=10000&country=all&ssl=all&anonymity=all",
			SourceSSLProxies:    "https://www.sslproxies.org",
			SourceUSProxy:       "https://www.us-proxy.org",
		},
	}
}

// Validate 检查配置中的数值是否合法。
func (c *Config) Validate() error {
	if c.ValidationTimeout <= 0 {
		return fmt.Errorf("proxypool.validation_timeout must be positive, got %s", c.ValidationTimeout)
	}
	if c.DefaultConcurrency <= 0 {
		return fmt.Errorf("proxypool.default_concurrency must be positive, got %d", c.DefaultConcurrency)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("proxypool.fetch_timeout must be positive, got %s", c.FetchTimeout)
	}
	switch c.Strategy {
	case StrategyTunnel:
		if c.ProbeTarget == "" {
			return fmt.Errorf("proxypool.probe_target is required for the %s strategy", StrategyTunnel)
		}
	case StrategyHTTP:
		if c.ProbeURL == "" {
			return fmt.Errorf("proxypool.probe_url is required for the %s strategy", StrategyHTTP)
		}
	default:
		return fmt.Errorf("unknown proxypool.strategy %q (want %s or %s)", c.Strategy, StrategyTunnel, StrategyHTTP)
	}
	return nil
}
