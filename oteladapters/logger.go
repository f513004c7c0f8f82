// OpenTelemetry adapters
// OpenTelemetry 适配器：slog 桥接日志、调度器和世界的指标记录、世界更新的追踪
package oteladapters

import (
	"log/slog"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/log"
)

// NewSlogBridgeLogger 创建写入 OpenTelemetry 日志管道的 slog 记录器，日志会自动关联当前追踪。
// provider 为 nil 时使用全局 LoggerProvider
func NewSlogBridgeLogger(name string, provider log.LoggerProvider) *slog.Logger {
	if provider == nil {
		return otelslog.NewLogger(name)
	}
	return otelslog.NewLogger(name, otelslog.WithLoggerProvider(provider))
}
