// Combination operators
// 组合操作符：zip / combineLatest / combineChanges / join / withLatestFrom。
// 两个上游的通知被多路复用成 either 值交给组合器，组合器只通过 Next 接收它们。
package rxgo

import (
	"sync"
)

// Pair 两个上游的组合结果
type Pair[A, B any] struct {
	First  A
	Second B
}

// ============================================================================
// 多路复用
// ============================================================================

// either 来自第一个或第二个上游的通知，二者恰有一个非空
type either[A, B any] struct {
	first  *SubscriberNotification[A]
	second *SubscriberNotification[B]
}

func fromFirst[A, B any](notification SubscriberNotification[A]) either[A, B] {
	return either[A, B]{first: &notification}
}

func fromSecond[A, B any](notification SubscriberNotification[B]) either[A, B] {
	return either[A, B]{second: &notification}
}

// combineOutcome 组合器处理一个通知后下游应当如何
type combineOutcome int

const (
	combineContinue combineOutcome = iota
	combineComplete
	combineUnsubscribe
	combineError
)

type combineStep[Out any] struct {
	values  []Out
	outcome combineOutcome
	err     error
}

// combineCore 组合算法，只在持有组合器的锁时调用
type combineCore[A, B, Out any] interface {
	push(event either[A, B]) combineStep[Out]
}

// combiner 把 either 通知交给算法，在锁外向下游发射
type combiner[A, B, Out any] struct {
	mu          sync.Mutex
	destination Subscriber[Out]
	core        combineCore[A, B, Out]
	first       *innerSubscriber[A]
	second      *innerSubscriber[B]
	done        bool
}

func (c *combiner[A, B, Out]) Next(event either[A, B]) {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return
	}
	step := c.core.push(event)
	if step.outcome != combineContinue {
		c.done = true
	}
	c.mu.Unlock()

	for _, value := range step.values {
		if c.destination.IsClosed() {
			break
		}
		c.destination.Next(value)
	}

	switch step.outcome {
	case combineComplete:
		c.dispose()
		c.destination.Complete()
	case combineUnsubscribe:
		c.dispose()
		c.destination.Unsubscribe()
	case combineError:
		c.dispose()
		c.destination.Error(step.err)
	}
}

// Error 上游的错误只会以 either 值到达
func (c *combiner[A, B, Out]) Error(error) { panic(panicUnreachableTerminal) }

// Complete 上游的完成只会以 either 值到达
func (c *combiner[A, B, Out]) Complete() { panic(panicUnreachableTerminal) }

func (c *combiner[A, B, Out]) dispose() {
	c.first.dispose()
	c.second.dispose()
}

// sideSubscriber 把一个上游的所有信号包装成通知
func sideSubscriber[T any](downstream SubscriptionLike, emit func(SubscriberNotification[T])) *innerSubscriber[T] {
	inner := newInnerSubscriber[T](downstream)
	inner.onNext = func(value T) { emit(Next(value).Lift()) }
	inner.onError = func(err error) { emit(ErrorNotification[T](err).Lift()) }
	inner.onComplete = func() { emit(CompleteNotification[T]().Lift()) }
	inner.onUnsubscribe = func() { emit(UnsubscribeNotification[T]()) }
	return inner
}

func combineWith[A, B, Out any](first Observable[A], second Observable[B], newCore func() combineCore[A, B, Out]) Observable[Out] {
	return Create(func(destination Subscriber[Out]) {
		c := &combiner[A, B, Out]{destination: destination, core: newCore()}
		c.first = sideSubscriber(destination, func(n SubscriberNotification[A]) { c.Next(fromFirst[A, B](n)) })
		c.second = sideSubscriber(destination, func(n SubscriberNotification[B]) { c.Next(fromSecond[A](n)) })
		destination.AddTeardown(c.dispose)

		first.Subscribe(c.first)
		if !destination.IsClosed() {
			second.Subscribe(c.second)
		}
	})
}

// ============================================================================
// Zip
// ============================================================================

type zipCore[A, B any] struct {
	first  *NotificationQueue[A]
	second *NotificationQueue[B]
}

func (z *zipCore[A, B]) push(event either[A, B]) combineStep[Pair[A, B]] {
	switch {
	case event.first != nil && event.first.Kind == KindError:
		return combineStep[Pair[A, B]]{outcome: combineError, err: event.first.Err}
	case event.second != nil && event.second.Kind == KindError:
		return combineStep[Pair[A, B]]{outcome: combineError, err: event.second.Err}
	case event.first != nil:
		z.first.Push(*event.first)
	default:
		z.second.Push(*event.second)
	}

	var step combineStep[Pair[A, B]]
	for {
		frontA, okA := z.first.Front()
		frontB, okB := z.second.Front()
		if !okA || !okB || frontA.Kind != KindNext || frontB.Kind != KindNext {
			break
		}
		a, _ := z.first.PopNextIfInFront()
		b, _ := z.second.PopNextIfInFront()
		step.values = append(step.values, Pair[A, B]{First: a, Second: b})
	}

	switch {
	case z.first.IsCompleted() || z.second.IsCompleted():
		step.outcome = combineComplete
	case (z.first.IsUnsubscribed() && z.second.IsUnsubscribed()) ||
		(z.first.IsUnsubscribed() && z.second.IsEmpty()) ||
		(z.first.IsEmpty() && z.second.IsUnsubscribed()):
		step.outcome = combineUnsubscribe
	}
	return step
}

// Zip 按位置配对两个上游的值。每个上游有独立的有界队列（WithQueueLength / WithOverflow）；
// 任意一个上游完成且已经取空时立即完成，不管另一个还缓冲了多少值
func Zip[A, B any](first Observable[A], second Observable[B], options ...Option) Observable[Pair[A, B]] {
	config := newConfig(options)
	return combineWith(first, second, func() combineCore[A, B, Pair[A, B]] {
		return &zipCore[A, B]{
			first:  NewNotificationQueue[A](config.MaxQueueLength, config.Overflow),
			second: NewNotificationQueue[B](config.MaxQueueLength, config.Overflow),
		}
	})
}

// ============================================================================
// CombineLatest
// ============================================================================

type combineLatestCore[A, B any] struct {
	first  *NotificationState[A]
	second *NotificationState[B]
}

func (c *combineLatestCore[A, B]) push(event either[A, B]) combineStep[Pair[A, B]] {
	kind, err := pushEither(c.first, c.second, event)
	if kind == KindError {
		return combineStep[Pair[A, B]]{outcome: combineError, err: err}
	}

	var step combineStep[Pair[A, B]]
	switch {
	case c.first.IsCompleted() && c.second.IsCompleted(),
		c.first.IsWaiting() && c.second.IsCompletedButNotPrimed(),
		c.first.IsCompletedButNotPrimed() && c.second.IsWaiting():
		step.outcome = combineComplete
		return step
	case c.first.IsClosed() && c.second.IsClosed(),
		c.first.IsWaiting() && closedWithoutValue(&c.second.SubscriberState),
		closedWithoutValue(&c.first.SubscriberState) && c.second.IsWaiting():
		step.outcome = combineUnsubscribe
		return step
	}

	if kind == KindNext {
		a, okA := c.first.Value()
		b, okB := c.second.Value()
		if okA && okB {
			step.values = append(step.values, Pair[A, B]{First: a, Second: b})
		}
	}
	return step
}

// closedWithoutValue 因取消或错误关闭且从未收到过值
func closedWithoutValue(state *SubscriberState) bool {
	return state.IsClosedButNotPrimed() && !state.IsCompleted()
}

// pushEither 把通知记录到对应上游的状态中，返回通知类型和错误
func pushEither[A, B any](first *NotificationState[A], second *NotificationState[B], event either[A, B]) (NotificationKind, error) {
	if event.first != nil {
		first.Push(*event.first)
		return event.first.Kind, event.first.Err
	}
	second.Push(*event.second)
	return event.second.Kind, event.second.Err
}

// CombineLatest 两个上游都至少发射过一次之后，任一上游发射时都输出两边的最新值。
// 两边都完成时完成；一边没发射过值就完成、另一边也还没有收到任何通知时提前完成
func CombineLatest[A, B any](first Observable[A], second Observable[B]) Observable[Pair[A, B]] {
	return combineWith(first, second, func() combineCore[A, B, Pair[A, B]] {
		return &combineLatestCore[A, B]{first: NewNotificationState[A](), second: NewNotificationState[B]()}
	})
}

// ============================================================================
// CombineChanges
// ============================================================================

// ChangeKind 组合结果中每一侧的变化类型
type ChangeKind int

const (
	// ChangeNone 该侧还没有任何值
	ChangeNone ChangeKind = iota
	// ChangeLatest 该侧的值没有变化，沿用最新值
	ChangeLatest
	// ChangeJustUpdated 该侧的值就是这一次到达的
	ChangeJustUpdated
)

// String 返回变化类型名称
func (k ChangeKind) String() string {
	switch k {
	case ChangeLatest:
		return "latest"
	case ChangeJustUpdated:
		return "just_updated"
	default:
		return "none"
	}
}

// Change 一侧的值以及它的变化类型，Kind 为 ChangeNone 时 Value 为零值
type Change[T any] struct {
	Kind  ChangeKind
	Value T
}

// HasValue 该侧是否已有值
func (c Change[T]) HasValue() bool {
	return c.Kind != ChangeNone
}

// Changes CombineChanges 的输出
type Changes[A, B any] struct {
	First  Change[A]
	Second Change[B]
}

func changeOf[T any](state *NotificationState[T], justUpdated bool) Change[T] {
	value, ok := state.Value()
	switch {
	case !ok:
		return Change[T]{}
	case justUpdated:
		return Change[T]{Kind: ChangeJustUpdated, Value: value}
	default:
		return Change[T]{Kind: ChangeLatest, Value: value}
	}
}

type combineChangesCore[A, B any] struct {
	first  *NotificationState[A]
	second *NotificationState[B]
}

func (c *combineChangesCore[A, B]) push(event either[A, B]) combineStep[Changes[A, B]] {
	kind, err := pushEither(c.first, c.second, event)
	if kind == KindError {
		return combineStep[Changes[A, B]]{outcome: combineError, err: err}
	}

	var step combineStep[Changes[A, B]]
	switch {
	case c.first.IsCompleted() && c.second.IsCompleted():
		step.outcome = combineComplete
		return step
	case c.first.IsClosed() && c.second.IsClosed():
		step.outcome = combineUnsubscribe
		return step
	}

	if kind == KindNext {
		step.values = append(step.values, Changes[A, B]{
			First:  changeOf(c.first, event.first != nil),
			Second: changeOf(c.second, event.second != nil),
		})
	}
	return step
}

// CombineChanges 任一上游发射时都输出，两侧分别标记为 ChangeNone（还没有值）、
// ChangeLatest（沿用）或 ChangeJustUpdated（这一次到达）。两边都完成时完成
func CombineChanges[A, B any](first Observable[A], second Observable[B]) Observable[Changes[A, B]] {
	return combineWith(first, second, func() combineCore[A, B, Changes[A, B]] {
		return &combineChangesCore[A, B]{first: NewNotificationState[A](), second: NewNotificationState[B]()}
	})
}

// ============================================================================
// Join
// ============================================================================

type joinCore[A, B any] struct {
	first  *NotificationState[A]
	second *NotificationState[B]
}

func (j *joinCore[A, B]) push(event either[A, B]) combineStep[Pair[A, B]] {
	kind, err := pushEither(j.first, j.second, event)
	if kind == KindError {
		return combineStep[Pair[A, B]]{outcome: combineError, err: err}
	}

	var step combineStep[Pair[A, B]]
	switch {
	case j.first.IsCompleted() && j.second.IsCompleted():
		a, okA := j.first.Value()
		b, okB := j.second.Value()
		if okA && okB {
			step.values = append(step.values, Pair[A, B]{First: a, Second: b})
		}
		step.outcome = combineComplete
	case j.first.IsClosed() && j.second.IsClosed():
		step.outcome = combineUnsubscribe
	}
	return step
}

// Join 两个上游都完成后，如果两边都有值，发射两边最后的值然后完成
func Join[A, B any](first Observable[A], second Observable[B]) Observable[Pair[A, B]] {
	return combineWith(first, second, func() combineCore[A, B, Pair[A, B]] {
		return &joinCore[A, B]{first: NewNotificationState[A](), second: NewNotificationState[B]()}
	})
}

// ============================================================================
// WithLatestFrom
// ============================================================================

type withLatestFromCore[A, B any] struct {
	first  *NotificationState[A]
	second *NotificationState[B]
}

func (w *withLatestFromCore[A, B]) push(event either[A, B]) combineStep[Pair[A, B]] {
	kind, err := pushEither(w.first, w.second, event)
	if kind == KindError {
		return combineStep[Pair[A, B]]{outcome: combineError, err: err}
	}

	var step combineStep[Pair[A, B]]
	switch {
	case w.first.IsCompleted():
		step.outcome = combineComplete
	case w.first.IsUnsubscribed():
		step.outcome = combineUnsubscribe
	case kind == KindNext && event.first != nil:
		a, _ := w.first.Value()
		if b, ok := w.second.Value(); ok {
			step.values = append(step.values, Pair[A, B]{First: a, Second: b})
		}
	}
	return step
}

// WithLatestFrom 主上游发射时带上 other 的最新值；other 还没有值时丢弃。主上游完成时完成
func WithLatestFrom[A, B any](other Observable[B]) OperatorFunc[A, Pair[A, B]] {
	return func(source Observable[A]) Observable[Pair[A, B]] {
		return Create(func(destination Subscriber[Pair[A, B]]) {
			c := &combiner[A, B, Pair[A, B]]{
				destination: destination,
				core:        &withLatestFromCore[A, B]{first: NewNotificationState[A](), second: NewNotificationState[B]()},
			}
			c.first = sideSubscriber(destination, func(n SubscriberNotification[A]) { c.Next(fromFirst[A, B](n)) })
			c.second = sideSubscriber(destination, func(n SubscriberNotification[B]) { c.Next(fromSecond[A](n)) })
			destination.AddTeardown(c.dispose)

			other.Subscribe(c.second)
			if !destination.IsClosed() {
				source.Subscribe(c.first)
			}
		})
	}
}
