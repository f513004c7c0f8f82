// World configuration
// 世界配置：可以从 YAML 加载，未知字段会被拒绝
package ecs

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 世界配置
type Config struct {
	// SubscribeMaxRetries 订阅命令找不到目标时的重试次数
	SubscribeMaxRetries int `yaml:"subscribe_max_retries"`
	// TickInterval RunTicker 驱动世界时使用的节拍间隔
	TickInterval time.Duration `yaml:"tick_interval"`
	// LogLevel debug / info / warn / error
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		SubscribeMaxRetries: DefaultSubscribeMaxRetries,
		TickInterval:        16 * time.Millisecond,
		LogLevel:            "info",
	}
}

// LoadConfig 从 YAML 读取配置，缺失的字段保留默认值
func LoadConfig(r io.Reader) (Config, error) {
	config := DefaultConfig()
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse world config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid world config: %w", err)
	}
	return config, nil
}

// LoadConfigFile 从文件读取配置
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read world config: %w", err)
	}
	return LoadConfig(bytes.NewReader(data))
}

// Validate 检查配置是否可用
func (c Config) Validate() error {
	if c.SubscribeMaxRetries < 0 {
		return fmt.Errorf("subscribe_max_retries must not be negative, got %d", c.SubscribeMaxRetries)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %s", c.TickInterval)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel 把 LogLevel 转换成 slog.Level
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level %q: %w", c.LogLevel, err)
	}
	return level, nil
}
