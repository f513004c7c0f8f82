package oteladapters

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xinjiayu/rxgo/v2"
)

// 调度器快照的仪表名称
const (
	MetricSchedulerTasksScheduled = "rxgo_scheduler_tasks_scheduled"
	MetricSchedulerTasksCompleted = "rxgo_scheduler_tasks_completed"
	MetricSchedulerTasksFailed    = "rxgo_scheduler_tasks_failed"
	MetricSchedulerTasksCancelled = "rxgo_scheduler_tasks_cancelled"
	MetricSchedulerAverageLatency = "rxgo_scheduler_average_latency_seconds"
)

// MetricsRecorder 用 OpenTelemetry 实现 rxgo.MetricsRecorder：
// 计数映射到 Int64Counter，耗时映射到以秒为单位的 Float64Histogram，快照值映射到 Float64Gauge。
// 仪表在第一次使用时创建
type MetricsRecorder struct {
	meter metric.Meter

	mu         sync.Mutex
	histograms map[string]metric.Float64Histogram
	counters   map[string]metric.Int64Counter
	gauges     map[string]metric.Float64Gauge
}

var _ rxgo.MetricsRecorder = (*MetricsRecorder)(nil)

// NewMetricsRecorder 使用 meter 创建记录器
func NewMetricsRecorder(meter metric.Meter) *MetricsRecorder {
	return &MetricsRecorder{
		meter:      meter,
		histograms: make(map[string]metric.Float64Histogram),
		counters:   make(map[string]metric.Int64Counter),
		gauges:     make(map[string]metric.Float64Gauge),
	}
}

// IncrementCounter 计数加一
func (m *MetricsRecorder) IncrementCounter(name string, labels map[string]string) {
	m.IncrementCounterContext(context.Background(), name, labels)
}

// IncrementCounterContext 带上下文的计数，用于关联追踪
func (m *MetricsRecorder) IncrementCounterContext(ctx context.Context, name string, labels map[string]string) {
	counter := m.counter(name)
	if counter == nil {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(attributesOf(labels)...))
}

// RecordDuration 记录耗时（秒）
func (m *MetricsRecorder) RecordDuration(name string, duration time.Duration, labels map[string]string) {
	m.RecordDurationContext(context.Background(), name, duration, labels)
}

// RecordDurationContext 带上下文的耗时记录
func (m *MetricsRecorder) RecordDurationContext(ctx context.Context, name string, duration time.Duration, labels map[string]string) {
	histogram := m.histogram(name)
	if histogram == nil {
		return
	}
	histogram.Record(ctx, duration.Seconds(), metric.WithAttributes(attributesOf(labels)...))
}

// RecordValue 记录当前值
func (m *MetricsRecorder) RecordValue(name string, value float64, labels map[string]string) {
	gauge := m.gauge(name)
	if gauge == nil {
		return
	}
	gauge.Record(context.Background(), value, metric.WithAttributes(attributesOf(labels)...))
}

// RecordSchedulerMetrics 把 MonitoredScheduler 的累计快照写成仪表值
func (m *MetricsRecorder) RecordSchedulerMetrics(snapshot rxgo.SchedulerMetrics, labels map[string]string) {
	m.RecordValue(MetricSchedulerTasksScheduled, float64(snapshot.TasksScheduled), labels)
	m.RecordValue(MetricSchedulerTasksCompleted, float64(snapshot.TasksCompleted), labels)
	m.RecordValue(MetricSchedulerTasksFailed, float64(snapshot.TasksFailed), labels)
	m.RecordValue(MetricSchedulerTasksCancelled, float64(snapshot.TasksCancelled), labels)
	m.RecordValue(MetricSchedulerAverageLatency, snapshot.AverageLatency.Seconds(), labels)
}

func (m *MetricsRecorder) histogram(name string) metric.Float64Histogram {
	m.mu.Lock()
	defer m.mu.Unlock()
	if histogram, ok := m.histograms[name]; ok {
		return histogram
	}
	histogram, err := m.meter.Float64Histogram(name,
		metric.WithDescription("rxgo duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil
	}
	m.histograms[name] = histogram
	return histogram
}

func (m *MetricsRecorder) counter(name string) metric.Int64Counter {
	m.mu.Lock()
	defer m.mu.Unlock()
	if counter, ok := m.counters[name]; ok {
		return counter
	}
	counter, err := m.meter.Int64Counter(name, metric.WithDescription("rxgo counter"))
	if err != nil {
		return nil
	}
	m.counters[name] = counter
	return counter
}

func (m *MetricsRecorder) gauge(name string) metric.Float64Gauge {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gauge, ok := m.gauges[name]; ok {
		return gauge
	}
	gauge, err := m.meter.Float64Gauge(name, metric.WithDescription("rxgo current value"))
	if err != nil {
		return nil
	}
	m.gauges[name] = gauge
	return gauge
}

func attributesOf(labels map[string]string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(labels))
	for key, value := range labels {
		attrs = append(attrs, attribute.String(key, value))
	}
	return attrs
}
