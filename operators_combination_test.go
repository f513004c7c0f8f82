package rxgo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xinjiayu/rxgo/v2"
	"github.com/xinjiayu/rxgo/v2/rxtest"
)

type pair = rxgo.Pair[int, string]

func TestZip(t *testing.T) {
	t.Run("CompletesWhenEitherSideIsDrained", func(t *testing.T) {
		collector, _ := rxtest.Collect(rxgo.Zip(rxgo.Just(1, 2, 3), rxgo.Just("a", "b")))
		assert.Equal(t, []pair{{First: 1, Second: "a"}, {First: 2, Second: "b"}}, collector.Values())
		assert.True(t, collector.IsCompleted())
	})

	t.Run("DropOldestOnOverflow", func(t *testing.T) {
		collector, _ := rxtest.Collect(rxgo.Zip(rxgo.Range(0, 12), rxgo.Just("x")))
		assert.Equal(t, []pair{{First: 2, Second: "x"}}, collector.Values())
	})

	t.Run("IgnoreNextOnOverflow", func(t *testing.T) {
		collector, _ := rxtest.Collect(rxgo.Zip(rxgo.Range(0, 5), rxgo.Just("x"),
			rxgo.WithQueueLength(2), rxgo.WithOverflow(rxgo.IgnoreNext)))
		assert.Equal(t, []pair{{First: 0, Second: "x"}}, collector.Values())
	})

	t.Run("ErrorSkipsSecondSource", func(t *testing.T) {
		second := rxgo.NewPublishSubject[string]()
		collector, _ := rxtest.Collect(rxgo.Zip[int, string](rxgo.Throw[int](errTest), second))
		assert.Equal(t, []error{errTest}, collector.Errors())
		assert.False(t, second.HasObservers())
	})

	t.Run("UnsubscribeReleasesBothSides", func(t *testing.T) {
		first := rxgo.NewPublishSubject[int]()
		second := rxgo.NewPublishSubject[string]()
		_, subscription := rxtest.Collect(rxgo.Zip[int, string](first, second))
		require.True(t, first.HasObservers())
		require.True(t, second.HasObservers())

		subscription.Unsubscribe()
		assert.False(t, first.HasObservers())
		assert.False(t, second.HasObservers())
	})
}

func TestCombineLatest(t *testing.T) {
	t.Run("EmitsAfterBothPrimed", func(t *testing.T) {
		first := rxgo.NewPublishSubject[int]()
		second := rxgo.NewPublishSubject[string]()
		collector, _ := rxtest.Collect(rxgo.CombineLatest[int, string](first, second))

		first.Next(1)
		assert.True(t, collector.IsEmpty())
		second.Next("x")
		first.Next(2)
		first.Complete()
		second.Next("y")
		assert.False(t, collector.IsCompleted())
		second.Complete()

		assert.Equal(t, []pair{{1, "x"}, {2, "x"}, {2, "y"}}, collector.Values())
		assert.True(t, collector.IsCompleted())
	})

	t.Run("CompletesEarlyWhenNeitherSideProduced", func(t *testing.T) {
		first := rxgo.NewPublishSubject[int]()
		second := rxgo.NewPublishSubject[string]()
		collector, _ := rxtest.Collect(rxgo.CombineLatest[int, string](first, second))

		second.Complete()
		assert.Equal(t, "complete", collector.String())
		assert.False(t, first.HasObservers())
	})

	t.Run("StaysOpenWhenOtherSideIsPrimed", func(t *testing.T) {
		first := rxgo.NewPublishSubject[int]()
		second := rxgo.NewPublishSubject[string]()
		collector, _ := rxtest.Collect(rxgo.CombineLatest[int, string](first, second))

		first.Next(1)
		second.Complete()
		assert.True(t, collector.IsEmpty())
		assert.True(t, first.HasObservers())

		first.Next(2)
		first.Complete()
		assert.Equal(t, "complete", collector.String())
	})

	t.Run("UnsubscribesEarlyWhenNeitherSideProduced", func(t *testing.T) {
		first := rxgo.NewPublishSubject[int]()
		second := rxgo.NewPublishSubject[string]()
		collector, _ := rxtest.Collect(rxgo.CombineLatest[int, string](first, second))

		second.Unsubscribe()
		assert.True(t, collector.IsUnsubscribed())
		assert.False(t, collector.IsCompleted())
	})

	t.Run("Error", func(t *testing.T) {
		first := rxgo.NewPublishSubject[int]()
		collector, _ := rxtest.Collect(rxgo.CombineLatest[int, string](first, rxgo.Never[string]()))
		first.Error(errTest)
		assert.Equal(t, []error{errTest}, collector.Errors())
	})
}

func TestCombineChanges(t *testing.T) {
	first := rxgo.NewPublishSubject[int]()
	second := rxgo.NewPublishSubject[string]()
	collector, _ := rxtest.Collect(rxgo.CombineChanges[int, string](first, second))

	first.Next(1)
	second.Next("x")
	second.Next("y")

	values := collector.Values()
	require.Len(t, values, 3)

	assert.Equal(t, rxgo.Change[int]{Kind: rxgo.ChangeJustUpdated, Value: 1}, values[0].First)
	assert.False(t, values[0].Second.HasValue())
	assert.Equal(t, "none", values[0].Second.Kind.String())

	assert.Equal(t, rxgo.ChangeLatest, values[1].First.Kind)
	assert.Equal(t, rxgo.Change[string]{Kind: rxgo.ChangeJustUpdated, Value: "x"}, values[1].Second)

	assert.Equal(t, "y", values[2].Second.Value)

	first.Complete()
	assert.False(t, collector.IsCompleted())
	second.Complete()
	assert.True(t, collector.IsCompleted())
}

func TestJoin(t *testing.T) {
	t.Run("EmitsLastValuesOnBothComplete", func(t *testing.T) {
		collector, _ := rxtest.Collect(rxgo.Join(rxgo.Just(1, 2), rxgo.Just("a", "b")))
		assert.Equal(t, []pair{{2, "b"}}, collector.Values())
		assert.True(t, collector.IsCompleted())
	})

	t.Run("NothingWhenOneSideIsEmpty", func(t *testing.T) {
		collector, _ := rxtest.Collect(rxgo.Join(rxgo.Just(1, 2), rxgo.Empty[string]()))
		assert.Equal(t, "complete", collector.String())
	})
}

func TestWithLatestFrom(t *testing.T) {
	source := rxgo.NewPublishSubject[int]()
	other := rxgo.NewPublishSubject[string]()
	collector, _ := rxtest.Collect(rxgo.Pipe(
		rxgo.Observable[int](source),
		rxgo.WithLatestFrom[int, string](other),
	))

	source.Next(1)
	other.Next("a")
	source.Next(2)
	other.Next("b")
	other.Complete()
	source.Next(3)
	source.Complete()

	assert.Equal(t, []pair{{2, "a"}, {3, "b"}}, collector.Values())
	assert.True(t, collector.IsCompleted())
}
