package oteladapters_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/xinjiayu/rxgo/v2"
	"github.com/xinjiayu/rxgo/v2/ecs"
	"github.com/xinjiayu/rxgo/v2/oteladapters"
)

func newRecorder() (*oteladapters.MetricsRecorder, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return oteladapters.NewMetricsRecorder(provider.Meter("test")), reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var resourceMetrics metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &resourceMetrics))
	return resourceMetrics
}

func findMetric(t *testing.T, resourceMetrics metricdata.ResourceMetrics, name string) metricdata.Aggregation {
	t.Helper()
	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if m.Name == name {
				return m.Data
			}
		}
	}
	t.Fatalf("metric %s not found", name)
	return nil
}

func TestMetricsRecorder(t *testing.T) {
	t.Run("CounterWithLabels", func(t *testing.T) {
		recorder, reader := newRecorder()
		labels := map[string]string{"kind": "delayed"}
		recorder.IncrementCounter("work_total", labels)
		recorder.IncrementCounter("work_total", labels)

		sum, ok := findMetric(t, collect(t, reader), "work_total").(metricdata.Sum[int64])
		require.True(t, ok)
		require.Len(t, sum.DataPoints, 1)
		assert.Equal(t, int64(2), sum.DataPoints[0].Value)
		expected := attribute.NewSet(attribute.String("kind", "delayed"))
		assert.True(t, sum.DataPoints[0].Attributes.Equals(&expected))
	})

	t.Run("DurationInSeconds", func(t *testing.T) {
		recorder, reader := newRecorder()
		recorder.RecordDuration("latency_seconds", 250*time.Millisecond, nil)

		histogram, ok := findMetric(t, collect(t, reader), "latency_seconds").(metricdata.Histogram[float64])
		require.True(t, ok)
		require.Len(t, histogram.DataPoints, 1)
		assert.Equal(t, uint64(1), histogram.DataPoints[0].Count)
		assert.InDelta(t, 0.25, histogram.DataPoints[0].Sum, 0.0001)
	})

	t.Run("SchedulerSnapshotAsGauges", func(t *testing.T) {
		recorder, reader := newRecorder()
		recorder.RecordSchedulerMetrics(rxgo.SchedulerMetrics{
			TasksScheduled: 4,
			TasksCompleted: 3,
			AverageLatency: 2 * time.Second,
		}, map[string]string{"scheduler": "main"})

		resourceMetrics := collect(t, reader)
		scheduled, ok := findMetric(t, resourceMetrics, oteladapters.MetricSchedulerTasksScheduled).(metricdata.Gauge[float64])
		require.True(t, ok)
		require.Len(t, scheduled.DataPoints, 1)
		assert.Equal(t, 4.0, scheduled.DataPoints[0].Value)

		latency, ok := findMetric(t, resourceMetrics, oteladapters.MetricSchedulerAverageLatency).(metricdata.Gauge[float64])
		require.True(t, ok)
		assert.Equal(t, 2.0, latency.DataPoints[0].Value)
	})
}

func TestMetricsRecorderWithMonitoredScheduler(t *testing.T) {
	recorder, reader := newRecorder()
	scheduler := rxgo.NewMonitoredScheduler(rxgo.NewTestScheduler(), recorder)

	scheduler.ScheduleDelayedWork(func(rxgo.Tick) {}, 10*time.Millisecond, scheduler.GenerateCancellationID())
	scheduler.Tick(10 * time.Millisecond)

	resourceMetrics := collect(t, reader)
	scheduled, ok := findMetric(t, resourceMetrics, rxgo.MetricWorkScheduled).(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(1), scheduled.DataPoints[0].Value)

	completed, ok := findMetric(t, resourceMetrics, rxgo.MetricWorkCompleted).(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(1), completed.DataPoints[0].Value)

	latency, ok := findMetric(t, resourceMetrics, rxgo.MetricWorkLatency).(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.InDelta(t, 0.01, latency.DataPoints[0].Sum, 0.0001)
}

func TestMetricsRecorderWithWorld(t *testing.T) {
	recorder, reader := newRecorder()
	config := ecs.DefaultConfig()
	config.SubscribeMaxRetries = 0
	world := ecs.NewWorld(
		ecs.WithConfig(config),
		ecs.WithMetricsRecorder(recorder),
		ecs.WithErrorHandler(func(*ecs.World, *ecs.SubscribeError) {}),
	)

	entity := world.Commands().Spawn()
	ecs.SubscribeTo(world, entity, rxgo.NewObserver[int](nil, nil, nil))
	world.Update(0)
	world.Despawn(entity)

	resourceMetrics := collect(t, reader)
	spawned, ok := findMetric(t, resourceMetrics, ecs.MetricEntitiesSpawned).(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(1), spawned.DataPoints[0].Value)

	despawned, ok := findMetric(t, resourceMetrics, ecs.MetricEntitiesDespawned).(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(1), despawned.DataPoints[0].Value)

	errs, ok := findMetric(t, resourceMetrics, ecs.MetricSubscribeErrors).(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(1), errs.DataPoints[0].Value)

	_, ok = findMetric(t, resourceMetrics, ecs.MetricFlushDuration).(metricdata.Histogram[float64])
	assert.True(t, ok)
}
