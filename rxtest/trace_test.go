package rxtest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xinjiayu/rxgo/v2"
)

func TestEncodeTrace(t *testing.T) {
	trace, err := EncodeTrace([]rxgo.SubscriberNotification[int]{
		rxgo.Next(0).Lift(),
		rxgo.ErrorNotification[int](errors.New("bad")).Lift(),
		rxgo.UnsubscribeNotification[int](),
	})
	require.NoError(t, err)
	assert.Equal(t, "{\"kind\":\"next\",\"value\":0}\n{\"kind\":\"error\",\"error\":\"bad\"}\n{\"kind\":\"unsubscribe\"}\n", string(trace))

	entries, err := DecodeTrace(trace)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "next", entries[0].Kind)
	assert.Equal(t, "bad", entries[1].Error)
	assert.Equal(t, "unsubscribe", entries[2].Kind)
}

func TestGoldenTraces(t *testing.T) {
	t.Run("MapThenTake", func(t *testing.T) {
		collector, _ := Collect(rxgo.Pipe2(
			rxgo.Just(1, 2, 3),
			rxgo.Map(func(value int) int { return value * 10 }),
			rxgo.Take[int](2),
		))
		AssertTrace(t, "map_then_take", collector)
	})

	t.Run("SubjectUnsubscribe", func(t *testing.T) {
		subject := rxgo.NewPublishSubject[string]()
		collector, subscription := Collect[string](subject)
		subject.Next("a")
		subscription.Unsubscribe()
		subject.Next("b")
		AssertTrace(t, "subject_unsubscribe", collector)
	})

	t.Run("Throw", func(t *testing.T) {
		collector, _ := Collect(rxgo.Throw[int](errors.New("boom")))
		AssertTrace(t, "throw", collector)
	})
}
