package rxgo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xinjiayu/rxgo/v2"
	"github.com/xinjiayu/rxgo/v2/rxtest"
)

func subjects(n int) []*rxgo.PublishSubject[string] {
	out := make([]*rxgo.PublishSubject[string], n)
	for i := range out {
		out[i] = rxgo.NewPublishSubject[string]()
	}
	return out
}

func TestMerge(t *testing.T) {
	t.Run("InterleavesAndCompletesWhenAllComplete", func(t *testing.T) {
		s := subjects(2)
		collector, _ := rxtest.Collect(rxgo.Merge[string](s[0], s[1]))

		s[0].Next("a")
		s[1].Next("b")
		s[0].Complete()
		s[1].Next("c")
		assert.False(t, collector.IsCompleted())
		s[1].Complete()

		assert.Equal(t, "next(a), next(b), next(c), complete", collector.String())
	})

	t.Run("InnerErrorUnsubscribesSiblings", func(t *testing.T) {
		s := subjects(2)
		collector, _ := rxtest.Collect(rxgo.Merge[string](s[0], s[1]))

		s[0].Error(errTest)
		assert.Equal(t, []error{errTest}, collector.Errors())
		assert.False(t, s[1].HasObservers())
	})

	t.Run("DownstreamUnsubscribeReleasesInners", func(t *testing.T) {
		s := subjects(2)
		_, subscription := rxtest.Collect(rxgo.Merge[string](s[0], s[1]))
		subscription.Unsubscribe()

		assert.False(t, s[0].HasObservers())
		assert.False(t, s[1].HasObservers())
	})

	t.Run("InnersUnsubscribedByUpstreamUnsubscribeDownstream", func(t *testing.T) {
		s := subjects(2)
		collector, _ := rxtest.Collect(rxgo.Merge[string](s[0], s[1]))

		s[0].Unsubscribe()
		assert.False(t, collector.IsUnsubscribed())
		s[1].Unsubscribe()

		assert.True(t, collector.IsUnsubscribed())
		assert.False(t, collector.IsCompleted())
	})

	t.Run("MergeMap", func(t *testing.T) {
		collector, _ := rxtest.Collect(rxgo.Pipe(
			rxgo.Just(1, 2),
			rxgo.MergeMap(func(value int) rxgo.Observable[int] { return rxgo.Just(value, value*10) }),
		))
		assert.Equal(t, []int{1, 10, 2, 20}, collector.Values())
		assert.True(t, collector.IsCompleted())
	})

	t.Run("ZeroLimitBehavesAsOne", func(t *testing.T) {
		s := subjects(2)
		rxtest.Collect(rxgo.MergeWithLimit[string](0, s[0], s[1]))
		assert.True(t, s[0].HasObservers())
		assert.False(t, s[1].HasObservers())
	})
}

func TestConcurrentSubscriber(t *testing.T) {
	collector := rxtest.NewNotificationCollector[string]()
	subscriber := rxgo.NewConcurrentSubscriber[string](rxgo.NewObserverSubscriber[string](collector), 1)
	s := subjects(3)

	for _, subject := range s {
		subscriber.Next(subject)
	}
	assert.Equal(t, 1, subscriber.ActiveCount())
	assert.Equal(t, 2, subscriber.QueuedCount())

	s[0].Unsubscribe()
	assert.Equal(t, 1, subscriber.QueuedCount(), "被取消的内层也会释放名额")
	assert.True(t, s[1].HasObservers())

	s[1].Next("x")
	s[1].Complete()
	s[2].Complete()
	subscriber.Complete()

	// 有一个内层是被取消而不是完成的，所以下游被取消
	assert.Equal(t, "next(x), unsubscribe", collector.String())
}

func TestConcat(t *testing.T) {
	t.Run("SubscribesSequentially", func(t *testing.T) {
		s := subjects(2)
		collector, _ := rxtest.Collect(rxgo.Concat[string](s[0], s[1]))

		s[1].Next("dropped")
		s[0].Next("a")
		s[0].Complete()
		s[1].Next("b")
		s[1].Complete()

		assert.Equal(t, "next(a), next(b), complete, unsubscribe", collector.String())
	})

	t.Run("ConcatMapPreservesOrder", func(t *testing.T) {
		collector, _ := rxtest.Collect(rxgo.Pipe(
			rxgo.Just(1, 2, 3),
			rxgo.ConcatMap(func(value int) rxgo.Observable[int] { return rxgo.Just(value, -value) }),
		))
		assert.Equal(t, []int{1, -1, 2, -2, 3, -3}, collector.Values())
		assert.Equal(t, "concat", rxgo.ConcatStrategy.String())
	})
}

func TestSwitchMap(t *testing.T) {
	outer := rxgo.NewPublishSubject[int]()
	inners := subjects(2)
	collector, _ := rxtest.Collect(rxgo.Pipe(
		rxgo.Observable[int](outer),
		rxgo.SwitchMap(func(index int) rxgo.Observable[string] { return inners[index] }),
	))

	outer.Next(0)
	inners[0].Next("a")
	outer.Next(1)
	assert.False(t, inners[0].HasObservers())
	inners[0].Next("stale")
	inners[1].Next("b")

	outer.Complete()
	assert.False(t, collector.IsCompleted())
	inners[1].Complete()

	assert.Equal(t, "next(a), next(b), complete", collector.String())
}

func TestExhaustMap(t *testing.T) {
	outer := rxgo.NewPublishSubject[int]()
	inners := subjects(3)
	collector, _ := rxtest.Collect(rxgo.Pipe(
		rxgo.Observable[int](outer),
		rxgo.ExhaustMap(func(index int) rxgo.Observable[string] { return inners[index] }),
	))

	outer.Next(0)
	outer.Next(1)
	require.False(t, inners[1].HasObservers(), "忙碌时丢弃新的内层")

	inners[0].Next("a")
	inners[0].Complete()
	outer.Next(2)
	inners[2].Next("c")
	assert.Equal(t, []string{"a", "c"}, collector.Values())

	outer.Complete()
	assert.False(t, collector.IsCompleted(), "等待活跃的内层完成")
	inners[2].Complete()

	// 与 Concat 不同，完成后不追加取消
	assert.Equal(t, "next(a), next(c), complete", collector.String())
}

func TestExhaustAll(t *testing.T) {
	outer := rxgo.NewPublishSubject[rxgo.Observable[string]]()
	inners := subjects(2)
	collector, _ := rxtest.Collect(rxgo.Pipe(
		rxgo.Observable[rxgo.Observable[string]](outer),
		rxgo.ExhaustAll[string](),
	))

	outer.Next(inners[0])
	outer.Next(inners[1])
	assert.False(t, inners[1].HasObservers())

	inners[0].Next("a")
	outer.Complete()
	inners[1].Next("dropped")
	inners[0].Complete()

	assert.Equal(t, "next(a), complete", collector.String())
}
