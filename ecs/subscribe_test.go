// Subscribe command tests
// 订阅命令测试：订阅实体、立即关闭的订阅、重试、自订阅和错误处理
package ecs

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xinjiayu/rxgo/v2"
)

type recorder[T any] struct {
	values    []T
	errs      []error
	completed int
}

func (r *recorder[T]) observer() rxgo.Observer[T] {
	return rxgo.NewObserver(
		func(value T) { r.values = append(r.values, value) },
		func(err error) { r.errs = append(r.errs, err) },
		func() { r.completed++ },
	)
}

func collectErrors(errs *[]*SubscribeError) WorldOption {
	return WithErrorHandler(func(_ *World, err *SubscribeError) {
		*errs = append(*errs, err)
	})
}

func TestSubscribeTo(t *testing.T) {
	t.Run("SpawnsSubscriptionEntity", func(t *testing.T) {
		world := NewWorld()
		subject := rxgo.NewPublishSubject[int]()
		target := world.Spawn(NewObservableComponent[int](subject))

		got := &recorder[int]{}
		subscription := SubscribeTo(world, target, got.observer())
		assert.False(t, world.Alive(subscription), "订阅在 Flush 前不应建立")

		world.Update(0)
		require.True(t, world.Alive(subscription))
		component, ok := Get[SubscriptionComponent](world, subscription)
		require.True(t, ok)
		assert.Equal(t, target, component.Target)
		assert.False(t, component.Subscription.IsClosed())

		subject.Next(1)
		subject.Next(2)
		assert.Equal(t, []int{1, 2}, got.values)
		assert.Equal(t, 1, subject.ObserverCount())
	})

	t.Run("DespawnUnsubscribes", func(t *testing.T) {
		world := NewWorld()
		subject := rxgo.NewPublishSubject[int]()
		target := world.Spawn(NewObservableComponent[int](subject))

		got := &recorder[int]{}
		subscription := SubscribeTo(world, target, got.observer())
		world.Update(0)

		Unsubscribe(world, subscription)
		world.Update(0)
		assert.False(t, world.Alive(subscription))
		assert.Equal(t, 0, subject.ObserverCount())

		subject.Next(3)
		assert.Empty(t, got.values)
	})

	t.Run("ImmediatelyClosedSpawnsNothing", func(t *testing.T) {
		world := NewWorld()
		target := world.Spawn(NewObservableComponent(rxgo.Of(7)))

		got := &recorder[int]{}
		subscription := SubscribeTo(world, target, got.observer())
		world.Update(0)

		assert.Equal(t, []int{7}, got.values)
		assert.Equal(t, 1, got.completed)
		assert.False(t, world.Alive(subscription))
		assert.Equal(t, 1, world.Len())
	})

	t.Run("CompletionDespawnsOnNextFlush", func(t *testing.T) {
		world := NewWorld()
		subject := rxgo.NewPublishSubject[int]()
		target := world.Spawn(NewObservableComponent[int](subject))

		got := &recorder[int]{}
		subscription := SubscribeTo(world, target, got.observer())
		world.Update(0)
		require.True(t, world.Alive(subscription))

		subject.Complete()
		assert.Equal(t, 1, got.completed)
		assert.True(t, world.Alive(subscription))

		world.Flush()
		assert.False(t, world.Alive(subscription))
	})

	t.Run("UnsubscribeBeforeResolution", func(t *testing.T) {
		world := NewWorld()
		subject := rxgo.NewPublishSubject[int]()
		target := world.Spawn(NewObservableComponent[int](subject))

		subscription := SubscribeTo(world, target, (&recorder[int]{}).observer())
		Unsubscribe(world, subscription)
		world.Update(0)

		assert.False(t, world.Alive(subscription))
		assert.Equal(t, 0, subject.ObserverCount())
	})
}

func TestSubscribeRetries(t *testing.T) {
	t.Run("ResolvesWhenComponentArrives", func(t *testing.T) {
		var errs []*SubscribeError
		world := NewWorld(collectErrors(&errs))
		target := world.Spawn()

		got := &recorder[string]{}
		subscription := SubscribeTo(world, target, got.observer())
		world.Update(0)
		world.Update(0)
		assert.False(t, world.Alive(subscription))

		subject := rxgo.NewBehaviorSubject("ready")
		require.NoError(t, Insert(world, target, NewObservableComponent[string](subject)))
		report := world.Update(0)

		assert.Equal(t, 1, report.Retried)
		assert.True(t, world.Alive(subscription))
		assert.Equal(t, []string{"ready"}, got.values)
		assert.Empty(t, errs)
	})

	t.Run("AbandonedAfterMaxRetries", func(t *testing.T) {
		var errs []*SubscribeError
		world := NewWorld(collectErrors(&errs))
		target := world.Spawn(position{})

		subscription := SubscribeTo(world, target, (&recorder[int]{}).observer())
		for range DefaultSubscribeMaxRetries {
			world.Update(0)
		}
		assert.Empty(t, errs, "重试次数用尽前不应报告错误")

		world.Update(0)
		require.Len(t, errs, 1)
		assert.Equal(t, NotAnObservable, errs[0].Kind)
		assert.Equal(t, target, errs[0].Target)
		assert.Equal(t, subscription, errs[0].Subscription)
		assert.Equal(t, DefaultSubscribeMaxRetries+1, errs[0].Attempts)
		assert.True(t, errors.Is(errs[0], ErrNotAnObservable))

		report := world.Update(0)
		assert.Equal(t, 0, report.Retried)
		assert.Len(t, errs, 1)
	})

	t.Run("WrongValueTypeIsNotAnObservable", func(t *testing.T) {
		var errs []*SubscribeError
		config := DefaultConfig()
		config.SubscribeMaxRetries = 0
		world := NewWorld(WithConfig(config), collectErrors(&errs))
		target := world.Spawn(NewObservableComponent(rxgo.Of("text")))

		SubscribeTo(world, target, (&recorder[int]{}).observer())
		world.Update(0)
		require.Len(t, errs, 1)
		assert.Equal(t, NotAnObservable, errs[0].Kind)
		assert.Equal(t, 1, errs[0].Attempts)
	})

	t.Run("DefaultHandlerLogsAndContinues", func(t *testing.T) {
		var buf bytes.Buffer
		config := DefaultConfig()
		config.SubscribeMaxRetries = 0
		world := NewWorld(WithConfig(config), WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

		SubscribeTo(world, NewEntity(), (&recorder[int]{}).observer())
		assert.NotPanics(t, func() { world.Update(0) })
		assert.Contains(t, buf.String(), "subscribe command abandoned")
		assert.Contains(t, buf.String(), "kind=not_an_observable")
	})
}

func TestSelfSubscribe(t *testing.T) {
	t.Run("SubjectIntoItselfIsRejected", func(t *testing.T) {
		var errs []*SubscribeError
		world := NewWorld(collectErrors(&errs))
		subject := rxgo.NewPublishSubject[int]()
		target := world.Spawn(NewObservableComponent[int](subject))

		component, ok := Get[ObservableComponent[int]](world, target)
		require.True(t, ok)
		assert.False(t, component.CanSelfSubscribe())

		subscription := SubscribeTo[int](world, target, subject)
		world.Update(0)

		require.Len(t, errs, 1)
		assert.Equal(t, SelfSubscribe, errs[0].Kind)
		assert.ErrorIs(t, errs[0], ErrSelfSubscribe)
		assert.False(t, world.Alive(subscription))
		assert.Equal(t, 0, subject.ObserverCount())
	})

	t.Run("SubjectIntoAnotherSubject", func(t *testing.T) {
		var errs []*SubscribeError
		world := NewWorld(collectErrors(&errs))
		source := rxgo.NewPublishSubject[int]()
		sink := rxgo.NewReplaySubject[int](4)
		target := world.Spawn(NewObservableComponent[int](source))

		SubscribeTo[int](world, target, sink)
		world.Update(0)
		source.Next(9)

		assert.Empty(t, errs)
		assert.Equal(t, []int{9}, sink.Values())
	})

	t.Run("PlainObservableAllowsSelfSubscribe", func(t *testing.T) {
		assert.True(t, NewObservableComponent(rxgo.Of(1)).CanSelfSubscribe())
	})
}
