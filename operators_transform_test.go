// Transformation operator tests
// 单源操作符测试
package rxgo_test

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xinjiayu/rxgo/v2"
	"github.com/xinjiayu/rxgo/v2/rxtest"
)

var errTest = errors.New("test error")

func TestMapAndFilter(t *testing.T) {
	t.Run("Map", func(t *testing.T) {
		collector, _ := rxtest.Collect(rxgo.Pipe(
			rxgo.Just(1, 2, 3),
			rxgo.Map(func(value int) string { return string(rune('a' + value - 1)) }),
		))
		assert.Equal(t, []string{"a", "b", "c"}, collector.Values())
		assert.True(t, collector.IsCompleted())
	})

	t.Run("MapError", func(t *testing.T) {
		wrapped := errors.New("wrapped")
		collector, _ := rxtest.Collect(rxgo.Pipe(
			rxgo.Throw[int](errTest),
			rxgo.MapError[int](func(err error) error { return errors.Join(wrapped, err) }),
		))
		require.Len(t, collector.Errors(), 1)
		assert.ErrorIs(t, collector.Errors()[0], wrapped)
		assert.ErrorIs(t, collector.Errors()[0], errTest)
	})

	t.Run("FilterSeesUpstreamIndex", func(t *testing.T) {
		var indexes []int
		collector, _ := rxtest.Collect(rxgo.Pipe(
			rxgo.Just(5, 6, 7, 8),
			rxgo.Filter(func(value, index int) bool {
				indexes = append(indexes, index)
				return value%2 == 0
			}),
		))
		assert.Equal(t, []int{6, 8}, collector.Values())
		assert.Equal(t, []int{0, 1, 2, 3}, indexes)
	})
}

func TestScanAndReduce(t *testing.T) {
	sum := func(acc, value int) int { return acc + value }

	t.Run("Scan", func(t *testing.T) {
		collector, _ := rxtest.Collect(rxgo.Pipe(rxgo.Range(1, 4), rxgo.Scan(0, sum)))
		assert.Equal(t, []int{1, 3, 6, 10}, collector.Values())
	})

	t.Run("Reduce", func(t *testing.T) {
		collector, _ := rxtest.Collect(rxgo.Pipe(rxgo.Range(1, 4), rxgo.Reduce(0, sum)))
		assert.Equal(t, []int{10}, collector.Values())
		assert.True(t, collector.IsCompleted())
	})

	t.Run("ReduceEmptyEmitsSeed", func(t *testing.T) {
		collector, _ := rxtest.Collect(rxgo.Pipe(rxgo.Empty[int](), rxgo.Reduce(42, sum)))
		assert.Equal(t, []int{42}, collector.Values())
	})
}

func TestBufferCount(t *testing.T) {
	t.Run("PartialBufferDroppedOnUnsubscribe", func(t *testing.T) {
		subject := rxgo.NewPublishSubject[int]()
		collector, subscription := rxtest.Collect(rxgo.Pipe(rxgo.Observable[int](subject), rxgo.BufferCount[int](3)))

		for i := 0; i <= 10; i++ {
			subject.Next(i)
		}
		subscription.Unsubscribe()

		assert.Equal(t, [][]int{{0, 1, 2}, {3, 4, 5}, {6, 7, 8}}, collector.Values())
		assert.Equal(t, rxgo.KindUnsubscribe, collector.Kinds()[3])
		assert.False(t, collector.IsCompleted())
	})

	t.Run("PartialBufferFlushedOnComplete", func(t *testing.T) {
		collector, _ := rxtest.Collect(rxgo.Pipe(rxgo.Range(0, 5), rxgo.BufferCount[int](2)))
		assert.Equal(t, [][]int{{0, 1}, {2, 3}, {4}}, collector.Values())
		assert.True(t, collector.IsCompleted())
	})

	t.Run("ErrorDropsPartialBuffer", func(t *testing.T) {
		subject := rxgo.NewPublishSubject[int]()
		collector, _ := rxtest.Collect(rxgo.Pipe(rxgo.Observable[int](subject), rxgo.BufferCount[int](2)))
		subject.Next(1)
		subject.Error(errTest)

		assert.Empty(t, collector.Values())
		assert.Equal(t, []error{errTest}, collector.Errors())
	})
}

func TestElementAt(t *testing.T) {
	t.Run("EmitsThenCompletesBeforeLaterValues", func(t *testing.T) {
		subject := rxgo.NewPublishSubject[int]()
		collector, subscription := rxtest.Collect(rxgo.Pipe(rxgo.Observable[int](subject), rxgo.ElementAt[int](2)))

		subject.Next(10)
		subject.Next(20)
		subject.Next(30)
		assert.True(t, subscription.IsClosed())
		subject.Next(40)

		assert.Equal(t, "next(30), complete", collector.String())
		assert.Equal(t, 0, subject.ObserverCount())
	})

	t.Run("IndexOutOfRange", func(t *testing.T) {
		collector, _ := rxtest.Collect(rxgo.Pipe(rxgo.Just(1, 2), rxgo.ElementAt[int](5)))
		require.Len(t, collector.Errors(), 1)

		var elementAtErr *rxgo.ElementAtError
		require.ErrorAs(t, collector.Errors()[0], &elementAtErr)
		assert.True(t, elementAtErr.IsIndexOutOfRange())
		assert.Equal(t, 5, elementAtErr.OutOfRange.RequestedIndex)
		assert.Equal(t, 2, elementAtErr.OutOfRange.ObservedNexts)
	})

	t.Run("UpstreamErrorWrapped", func(t *testing.T) {
		collector, _ := rxtest.Collect(rxgo.Pipe(rxgo.Throw[int](errTest), rxgo.ElementAt[int](0)))
		require.Len(t, collector.Errors(), 1)
		assert.ErrorIs(t, collector.Errors()[0], errTest)

		var elementAtErr *rxgo.ElementAtError
		require.ErrorAs(t, collector.Errors()[0], &elementAtErr)
		assert.False(t, elementAtErr.IsIndexOutOfRange())
	})

	t.Run("OrElseFallback", func(t *testing.T) {
		collector, _ := rxtest.Collect(rxgo.Pipe(
			rxgo.Just(1),
			rxgo.ElementAtOrElse(3, func() int { return -1 }),
		))
		assert.Equal(t, "next(-1), complete", collector.String())
	})
}

func TestTakeSkip(t *testing.T) {
	t.Run("TakeStopsSource", func(t *testing.T) {
		emitted := 0
		source := rxgo.Pipe(rxgo.Range(0, 100), rxgo.Tap[int](rxgo.NewObserver(func(int) { emitted++ }, nil, nil)))
		collector, _ := rxtest.Collect(rxgo.Pipe(source, rxgo.Take[int](3)))

		assert.Equal(t, []int{0, 1, 2}, collector.Values())
		assert.True(t, collector.IsCompleted())
		assert.Equal(t, 3, emitted)
	})

	t.Run("TakeZeroCompletesImmediately", func(t *testing.T) {
		collector, _ := rxtest.Collect(rxgo.Pipe(rxgo.Never[int](), rxgo.Take[int](0)))
		assert.Equal(t, "complete", collector.String())
	})

	t.Run("Skip", func(t *testing.T) {
		collector, _ := rxtest.Collect(rxgo.Pipe(rxgo.Range(0, 5), rxgo.Skip[int](3)))
		assert.Equal(t, []int{3, 4}, collector.Values())
	})

	t.Run("TakeWhile", func(t *testing.T) {
		collector, _ := rxtest.Collect(rxgo.Pipe(
			rxgo.Just(1, 2, 5, 1),
			rxgo.TakeWhile(func(value, _ int) bool { return value < 3 }),
		))
		assert.Equal(t, "next(1), next(2), complete", collector.String())
	})
}

func TestFirstAndIsEmpty(t *testing.T) {
	t.Run("First", func(t *testing.T) {
		collector, _ := rxtest.Collect(rxgo.Pipe(rxgo.Just(7, 8), rxgo.First[int]()))
		assert.Equal(t, "next(7), complete", collector.String())
	})

	t.Run("FirstOfEmpty", func(t *testing.T) {
		collector, _ := rxtest.Collect(rxgo.Pipe(rxgo.Empty[int](), rxgo.First[int]()))
		require.Len(t, collector.Errors(), 1)
		assert.ErrorIs(t, collector.Errors()[0], rxgo.ErrSequenceEmpty)
	})

	t.Run("IsEmpty", func(t *testing.T) {
		empty, _ := rxtest.Collect(rxgo.Pipe(rxgo.Empty[string](), rxgo.IsEmpty[string]()))
		assert.Equal(t, []bool{true}, empty.Values())

		nonEmpty, _ := rxtest.Collect(rxgo.Pipe(rxgo.Just("x"), rxgo.IsEmpty[string]()))
		assert.Equal(t, []bool{false}, nonEmpty.Values())
		assert.True(t, nonEmpty.IsCompleted())
	})
}

func TestSideEffects(t *testing.T) {
	t.Run("TapSeesEverySignal", func(t *testing.T) {
		tapped := rxtest.NewNotificationCollector[int]()
		collector, _ := rxtest.Collect(rxgo.Pipe(rxgo.Just(1, 2), rxgo.Tap[int](tapped)))
		assert.Equal(t, collector.String(), tapped.String())
	})

	t.Run("FinalizeOnComplete", func(t *testing.T) {
		finalized := 0
		rxtest.Collect(rxgo.Pipe(rxgo.Just(1), rxgo.Finalize[int](func() { finalized++ })))
		assert.Equal(t, 1, finalized)
	})

	t.Run("FinalizeOnUnsubscribe", func(t *testing.T) {
		finalized := 0
		_, subscription := rxtest.Collect(rxgo.Pipe(rxgo.Never[int](), rxgo.Finalize[int](func() { finalized++ })))
		assert.Equal(t, 0, finalized)
		subscription.Unsubscribe()
		subscription.Unsubscribe()
		assert.Equal(t, 1, finalized)
	})
}

func TestStartWithEndWith(t *testing.T) {
	collector, _ := rxtest.Collect(rxgo.Pipe2(
		rxgo.Just(2, 3),
		rxgo.StartWith(0, 1),
		rxgo.EndWith(4),
	))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, collector.Values())
	assert.True(t, collector.IsCompleted())

	errored, _ := rxtest.Collect(rxgo.Pipe(rxgo.Throw[int](errTest), rxgo.EndWith(9)))
	assert.Empty(t, errored.Values())
}

func TestPairwiseAndDistinct(t *testing.T) {
	pairs, _ := rxtest.Collect(rxgo.Pipe(rxgo.Just(1, 2, 3), rxgo.Pairwise[int]()))
	assert.Equal(t, [][2]int{{1, 2}, {2, 3}}, pairs.Values())

	distinct, _ := rxtest.Collect(rxgo.Pipe(rxgo.Just(1, 1, 2, 2, 1), rxgo.DistinctUntilChanged[int]()))
	assert.Equal(t, []int{1, 2, 1}, distinct.Values())
}

func TestMaterialize(t *testing.T) {
	t.Run("ErrorBecomesValue", func(t *testing.T) {
		collector, _ := rxtest.Collect(rxgo.Pipe(
			rxgo.Concat(rxgo.Just(1), rxgo.Throw[int](errTest)),
			rxgo.Materialize[int](),
		))
		values := collector.Values()
		require.Len(t, values, 2)
		assert.Equal(t, rxgo.Next(1), values[0])
		assert.Equal(t, rxgo.KindError, values[1].Kind)
		assert.True(t, collector.IsCompleted())
		assert.False(t, collector.IsErrored())
	})

	t.Run("RoundTrip", func(t *testing.T) {
		collector, _ := rxtest.Collect(rxgo.Pipe2(
			rxgo.Just(1, 2),
			rxgo.Materialize[int](),
			rxgo.Dematerialize[int](),
		))
		assert.Equal(t, "next(1), next(2), complete", collector.String())
	})
}

func TestFind(t *testing.T) {
	t.Run("EmitsMatchAndCompletes", func(t *testing.T) {
		source := rxgo.NewPublishSubject[int]()
		collector, subscription := rxtest.Collect(rxgo.Pipe(rxgo.Observable[int](source), rxgo.Find(func(value int) bool { return value == 2 })))

		source.Next(0)
		source.Next(1)
		source.Next(2)
		assert.True(t, subscription.IsClosed())
		assert.Equal(t, "next(2), complete", collector.String())
	})

	t.Run("FindIndex", func(t *testing.T) {
		collector, _ := rxtest.Collect(rxgo.Pipe(rxgo.Just(99, 90, 20), rxgo.FindIndex(func(value int) bool { return value == 90 })))
		assert.Equal(t, "next(1), complete", collector.String())
	})

	t.Run("Errors", func(t *testing.T) {
		isTwo := func(value int) bool { return value == 2 }
		noMatch, _ := rxtest.Collect(rxgo.Pipe(rxgo.Just(0), rxgo.Find(isTwo)))
		empty, _ := rxtest.Collect(rxgo.Pipe(rxgo.Empty[int](), rxgo.FindIndex(isTwo)))
		upstream, _ := rxtest.Collect(rxgo.Pipe(rxgo.Throw[int](errTest), rxgo.Find(isTwo)))

		require.Len(t, noMatch.Errors(), 1)
		assert.ErrorIs(t, noMatch.Errors()[0], rxgo.ErrNoMatch)
		require.Len(t, empty.Errors(), 1)
		assert.ErrorIs(t, empty.Errors()[0], rxgo.ErrSequenceEmpty)

		require.Len(t, upstream.Errors(), 1)
		var findErr *rxgo.FindError
		require.ErrorAs(t, upstream.Errors()[0], &findErr)
		assert.ErrorIs(t, findErr, errTest)
		assert.Nil(t, findErr.Reason)
	})
}

func TestEnumerateAndFilterMap(t *testing.T) {
	enumerated, _ := rxtest.Collect(rxgo.Pipe(rxgo.Just("a", "b"), rxgo.Enumerate[string]()))
	assert.Equal(t, []rxgo.Pair[string, int]{{First: "a", Second: 0}, {First: "b", Second: 1}}, enumerated.Values())
	assert.True(t, enumerated.IsCompleted())

	parsed, _ := rxtest.Collect(rxgo.Pipe(
		rxgo.Just("1", "x", "3"),
		rxgo.FilterMap(func(value string) (int, bool) {
			number, err := strconv.Atoi(value)
			return number, err == nil
		}),
	))
	assert.Equal(t, "next(1), next(3), complete", parsed.String())
}
