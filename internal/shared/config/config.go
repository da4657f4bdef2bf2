package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"freeproxy/internal/shared/types"

	"gopkg.in/ini.v1"
)

const sourcesSection = "sources"

// LoadIni 加载 ini 配置文件并覆盖 cfg 中对应的字段，未出现的字段保留原值。
func LoadIni(cfg *types.Config, fileName string) error {
	iniFile, err := ini.Load(fileName)
	if err != nil {
		return err
	}
	if err := iniFile.MapTo(cfg); err != nil {
		return fmt.Errorf("failed to map %s: %w", fileName, err)
	}

	// [sources] 段是一个开放的键值表，MapTo 无法处理，单独读取。
	if iniFile.HasSection(sourcesSection) {
		if cfg.Sources == nil {
			cfg.Sources = make(map[string]string)
		}
		for k, v := range iniFile.Section(sourcesSection).KeysHash() {
			cfg.Sources[k] = v
		}
	}

	ApplyEnv(cfg)
	return nil
}

// ApplyEnv 用环境变量覆盖配置。
func ApplyEnv(cfg *types.Config) {
	overrideFromEnvInt(&cfg.DefaultConcurrency, "PROXYPOOL_CONCURRENCY")
	overrideFromEnvDuration(&cfg.ValidationTimeout, "PROXYPOOL_TIMEOUT")
	overrideFromEnvString(&cfg.Level, "PROXYPOOL_LOG_LEVEL")
}

func overrideFromEnvInt(target *int, envName string) {
	envValue := os.Getenv(envName)
	if envValue != "" {
		if intValue, err := strconv.Atoi(envValue); err == nil {
			*target = intValue
		}
	}
}

func overrideFromEnvDuration(target *time.Duration, envName string) {
	envValue := os.Getenv(envName)
	if envValue != "" {
		if d, err := time.ParseDuration(envValue); err == nil {
			*target = d
		}
	}
}

func overrideFromEnvString(target *string, envName string) {
	if envValue := os.Getenv(envName); envValue != "" {
		*target = envValue
	}
}
