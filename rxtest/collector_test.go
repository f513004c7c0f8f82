package rxtest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xinjiayu/rxgo/v2"
)

func TestNotificationCollector(t *testing.T) {
	t.Run("RecordsInOrder", func(t *testing.T) {
		collector, subscription := Collect(rxgo.Just(1, 2))

		assert.Equal(t, []rxgo.NotificationKind{rxgo.KindNext, rxgo.KindNext, rxgo.KindComplete}, collector.Kinds())
		assert.Equal(t, []int{1, 2}, collector.Values())
		assert.Equal(t, 2, collector.CountNexts())
		assert.True(t, collector.IsCompleted())
		assert.False(t, collector.IsErrored())
		assert.False(t, collector.IsUnsubscribed(), "完成不会通知观察者取消订阅")
		assert.True(t, subscription.IsClosed())
		assert.Equal(t, "next(1), next(2), complete", collector.String())
	})

	t.Run("RecordsExplicitUnsubscribe", func(t *testing.T) {
		subject := rxgo.NewPublishSubject[int]()
		collector, subscription := Collect[int](subject)

		subject.Next(1)
		subscription.Unsubscribe()
		subscription.Unsubscribe()
		subject.Next(2)

		assert.Equal(t, []rxgo.NotificationKind{rxgo.KindNext, rxgo.KindUnsubscribe}, collector.Kinds())
		assert.True(t, collector.IsUnsubscribed())
		assert.True(t, collector.NothingHappenedAfterClosed())
	})

	t.Run("SeparatesNotificationsAfterClose", func(t *testing.T) {
		collector := NewNotificationCollector[string]()
		collector.Next("a")
		collector.Unsubscribe()
		collector.Next("late")

		assert.False(t, collector.NothingHappenedAfterClosed())
		assert.Equal(t, 1, collector.CountNexts())
		assert.Equal(t, []string{"a", "late"}, collector.Values())
		assert.Equal(t, 3, collector.Len())

		last, ok := collector.Nth(2)
		require.True(t, ok)
		assert.Equal(t, "late", last.Value)
		_, ok = collector.Nth(3)
		assert.False(t, ok)
	})

	t.Run("RecordsErrors", func(t *testing.T) {
		boom := errors.New("boom")
		collector, _ := Collect(rxgo.Throw[int](boom))

		require.Len(t, collector.Errors(), 1)
		assert.ErrorIs(t, collector.Errors()[0], boom)
		assert.True(t, collector.IsErrored())
	})

	t.Run("TicksAreCountedSeparately", func(t *testing.T) {
		collector := NewNotificationCollector[int]()
		collector.Tick(rxgo.Tick{Now: 5})
		assert.True(t, collector.IsEmpty())
		assert.Len(t, collector.Ticks(), 1)

		collector.Next(1)
		collector.Reset()
		assert.True(t, collector.IsEmpty())
		assert.Empty(t, collector.Ticks())
	})
}
