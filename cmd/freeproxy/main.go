package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"freeproxy/internal/shared/config"
	"freeproxy/internal/shared/logger"
	"freeproxy/internal/shared/types"
	manager "freeproxy/proxypool"
	"freeproxy/proxypool/model"
	"freeproxy/proxypool/scraper"
	"freeproxy/proxypool/storage"
	"freeproxy/proxypool/validator"
)

var (
	configPath string
	logLevel   string
	logFile    string
	sourceKey  string
	timeout    time.Duration

	count          int
	filterExpr     string
	maxConcurrency int
	randomize      bool
	strategy       string
	outputPath     string
)

var rootCmd = &cobra.Command{
	Use:           "freeproxy",
	Short:         "Fetch public proxy lists and return proxies that are currently working",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runAcquire,
}

var acquireCmd = &cobra.Command{
	Use:     "acquire",
	Short:   "Validate proxies from a source and print the first N that work",
	Example: "freeproxy acquire -n 5 --source free-proxy-list.net --filter country_code:US",
	Args:    cobra.NoArgs,
	RunE:    runAcquire,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the records of a source without validating them",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		m, err := newManager(ctx)
		if err != nil {
			return err
		}
		spec, err := model.ParseFilterSpec(filterExpr)
		if err != nil {
			return err
		}
		records, err := m.Filter(spec)
		if err != nil {
			return err
		}
		for _, r := range records {
			fmt.Fprintln(cmd.OutOrStdout(), r.String())
		}
		return nil
	},
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Print the attribute names that can be used in --filter for a source",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newManager(cmd.Context())
		if err != nil {
			return err
		}
		keys, err := m.FilterableKeys()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(keys, "\n"))
		return nil
	},
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Print the registered proxy sources and their locators",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		for _, key := range scraper.NewDefaultRegistry(cfg).Keys() {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", key, cfg.Sources[key])
		}
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to an ini config file")
	pf.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&logFile, "log-file", "", "Also write JSON logs to this file")
	pf.StringVarP(&sourceKey, "source", "s", "", "Proxy source key (see 'freeproxy sources')")
	pf.DurationVar(&timeout, "timeout", 0, "Per-proxy validation timeout (e.g. 5s)")
	pf.StringVarP(&filterExpr, "filter", "f", "", "Attribute filter, e.g. country_code:US,anonymity_level:elite proxy")

	for _, cmd := range []*cobra.Command{rootCmd, acquireCmd} {
		f := cmd.Flags()
		f.IntVarP(&count, "count", "n", 1, "Number of working proxies to return")
		f.IntVar(&maxConcurrency, "max-concurrency", 0, "Maximum concurrent probes (0 uses the configured default)")
		f.BoolVar(&randomize, "randomize", true, "Shuffle candidates before validation")
		f.StringVar(&strategy, "strategy", "", "Validation strategy: tunnel or http")
		f.StringVarP(&outputPath, "output", "o", "", "Also write the proxies to this file, one per line")
	}

	rootCmd.AddCommand(acquireCmd, listCmd, keysCmd, sourcesCmd)
}

// loadConfig 按 默认值 -> ini 文件 -> 环境变量 -> 命令行 的顺序合成配置，并初始化日志。
func loadConfig() (*types.Config, error) {
	cfg := types.DefaultConfig()
	if configPath != "" {
		if err := config.LoadIni(cfg, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file '%s': %w", configPath, err)
		}
	} else {
		config.ApplyEnv(cfg)
	}

	if logLevel != "" {
		cfg.Level = logLevel
	}
	if logFile != "" {
		cfg.File = logFile
	}
	if timeout > 0 {
		cfg.ValidationTimeout = timeout
	}
	if strategy != "" {
		cfg.Strategy = strategy
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := logger.Init(cfg.LogConf); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

// newManager 装配注册表、验证器和管理器，并加载所选代理源。
func newManager(ctx context.Context) (*manager.Manager, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	v, err := validator.New(cfg.ProxyPoolConf)
	if err != nil {
		return nil, err
	}

	key := sourceKey
	if key == "" {
		key = cfg.DefaultSource
	}
	m := manager.NewManager(cfg, scraper.NewDefaultRegistry(cfg), v)
	if err := m.Load(ctx, key); err != nil {
		return nil, err
	}
	return m, nil
}

func runAcquire(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	spec, err := model.ParseFilterSpec(filterExpr)
	if err != nil {
		return err
	}
	m, err := newManager(ctx)
	if err != nil {
		return err
	}

	proxies, err := m.Acquire(ctx, count, spec, maxConcurrency, randomize)
	if err != nil {
		if manager.IsInsufficient(err) {
			logger.Info().Str("source", m.Source()).Msgf("Try a larger source, a looser filter or a longer --timeout.")
		}
		return err
	}

	if outputPath != "" {
		if err := storage.NewFileStorage(outputPath).Save(proxies); err != nil {
			return err
		}
	}
	for _, p := range proxies {
		fmt.Fprintln(cmd.OutOrStdout(), p)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		// 日志可能尚未初始化，直接写 stderr
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
