// Notification bookkeeping
// 多源组合操作符的逐上游记录：订阅者状态位、最新值状态和带溢出策略的通知队列
package rxgo

// DefaultMaxQueueLength 每个上游队列默认最多保留的 Next 数量
const DefaultMaxQueueLength = 10

// ============================================================================
// SubscriberState 订阅者状态
// ============================================================================

type subscriberStateBits uint8

const (
	stateWaiting subscriberStateBits = 1 << iota
	statePrimed
	stateCompleted
	stateErrored
	stateUnsubscribed
)

// SubscriberState 一个上游的状态位：等待中、已就绪（至少收到一个值）、已完成、已出错、已取消
type SubscriberState struct {
	bits subscriberStateBits
}

// NewSubscriberState 创建处于等待状态的记录
func NewSubscriberState() SubscriberState {
	return SubscriberState{bits: stateWaiting}
}

func (s *SubscriberState) has(bit subscriberStateBits) bool {
	if s.bits == 0 {
		s.bits = stateWaiting
	}
	return s.bits&bit != 0
}

func (s *SubscriberState) set(bit subscriberStateBits) {
	s.bits = (s.bits &^ stateWaiting) | bit
}

// IsWaiting 尚未收到任何通知
func (s *SubscriberState) IsWaiting() bool { return s.has(stateWaiting) }

// IsPrimed 至少收到过一个值
func (s *SubscriberState) IsPrimed() bool { return s.has(statePrimed) }

// IsCompleted 已完成
func (s *SubscriberState) IsCompleted() bool { return s.has(stateCompleted) }

// IsErrored 已出错
func (s *SubscriberState) IsErrored() bool { return s.has(stateErrored) }

// IsUnsubscribed 已取消
func (s *SubscriberState) IsUnsubscribed() bool { return s.has(stateUnsubscribed) }

// IsFinished 已完成或已出错
func (s *SubscriberState) IsFinished() bool { return s.IsCompleted() || s.IsErrored() }

// IsClosed 已取消、已完成或已出错
func (s *SubscriberState) IsClosed() bool { return s.IsUnsubscribed() || s.IsFinished() }

// IsCompletedButNotPrimed 完成时从未收到过值
func (s *SubscriberState) IsCompletedButNotPrimed() bool {
	return s.IsCompleted() && !s.IsPrimed()
}

// IsClosedButNotPrimed 关闭时从未收到过值
func (s *SubscriberState) IsClosedButNotPrimed() bool {
	return s.IsClosed() && !s.IsPrimed()
}

// IsClosedButNotCompleted 因取消或错误而关闭
func (s *SubscriberState) IsClosedButNotCompleted() bool {
	return (s.IsUnsubscribed() || s.IsErrored()) && !s.IsCompleted()
}

// MarkNext 记录一个值
func (s *SubscriberState) MarkNext() { s.set(statePrimed) }

// MarkComplete 记录完成
func (s *SubscriberState) MarkComplete() { s.set(stateCompleted) }

// MarkError 记录错误
func (s *SubscriberState) MarkError() { s.set(stateErrored) }

// MarkUnsubscribe 记录取消
func (s *SubscriberState) MarkUnsubscribe() { s.set(stateUnsubscribed) }

// Update 根据通知更新状态
func (s *SubscriberState) Update(kind NotificationKind) {
	switch kind {
	case KindNext:
		s.MarkNext()
	case KindError:
		s.MarkError()
	case KindComplete:
		s.MarkComplete()
	case KindUnsubscribe:
		s.MarkUnsubscribe()
	}
}

// ============================================================================
// NotificationState 最新值状态
// ============================================================================

// NotificationState 记录一个上游的最新值与错误
type NotificationState[T any] struct {
	SubscriberState
	value    T
	hasValue bool
	err      error
}

// NewNotificationState 创建状态记录
func NewNotificationState[T any]() *NotificationState[T] {
	return &NotificationState[T]{SubscriberState: NewSubscriberState()}
}

// Push 根据通知更新
func (n *NotificationState[T]) Push(notification SubscriberNotification[T]) {
	switch notification.Kind {
	case KindNext:
		n.value = notification.Value
		n.hasValue = true
	case KindError:
		n.err = notification.Err
	case KindUnsubscribe:
		if n.IsUnsubscribed() {
			return
		}
	case KindTick, KindAdd:
		return
	}
	n.Update(notification.Kind)
}

// Value 最新值
func (n *NotificationState[T]) Value() (T, bool) {
	return n.value, n.hasValue
}

// TakeValue 取走最新值
func (n *NotificationState[T]) TakeValue() (T, bool) {
	value, ok := n.value, n.hasValue
	var zero T
	n.value = zero
	n.hasValue = false
	return value, ok
}

// TakeError 取走错误
func (n *NotificationState[T]) TakeError() error {
	err := n.err
	n.err = nil
	return err
}

// IsEmpty 没有保存的值
func (n *NotificationState[T]) IsEmpty() bool {
	return !n.hasValue
}

// ============================================================================
// NotificationQueue 通知队列
// ============================================================================

// QueueOverflowBehavior 队列溢出策略
type QueueOverflowBehavior int

const (
	// DropOldest 丢弃最早的 Next
	DropOldest QueueOverflowBehavior = iota
	// IgnoreNext 丢弃新到达的 Next
	IgnoreNext
)

// NotificationQueue 一个上游的有界通知队列。
// 状态位反映队首：只有当 Complete 到达队首（前面的值都被取走）时才视为已完成。
// 错误不排队，直接记录。
type NotificationQueue[T any] struct {
	SubscriberState
	queue          []SubscriberNotification[T]
	err            error
	maxQueueLength int
	overflow       QueueOverflowBehavior
}

// NewNotificationQueue 创建通知队列
func NewNotificationQueue[T any](maxQueueLength int, overflow QueueOverflowBehavior) *NotificationQueue[T] {
	if maxQueueLength < 1 {
		maxQueueLength = 1
	}
	return &NotificationQueue[T]{
		SubscriberState: NewSubscriberState(),
		maxQueueLength:  maxQueueLength,
		overflow:        overflow,
	}
}

// Push 入队
func (q *NotificationQueue[T]) Push(notification SubscriberNotification[T]) {
	switch notification.Kind {
	case KindTick, KindAdd:
		return
	case KindError:
		q.err = notification.Err
		q.MarkError()
		return
	case KindNext:
		if q.CountNexts() >= q.maxQueueLength {
			if q.overflow == IgnoreNext {
				return
			}
			q.dropOldestNext()
		}
	}

	if len(q.queue) == 0 {
		q.Update(notification.Kind)
	}
	q.queue = append(q.queue, notification)
}

func (q *NotificationQueue[T]) dropOldestNext() {
	for i, queued := range q.queue {
		if queued.Kind == KindNext {
			q.queue = append(q.queue[:i], q.queue[i+1:]...)
			return
		}
	}
}

// PopNextIfInFront 队首是 Next 时取出它
func (q *NotificationQueue[T]) PopNextIfInFront() (T, bool) {
	var zero T
	if len(q.queue) == 0 || q.queue[0].Kind != KindNext {
		return zero, false
	}
	front := q.queue[0]
	q.queue = q.queue[1:]
	if len(q.queue) > 0 {
		q.Update(q.queue[0].Kind)
	}
	return front.Value, true
}

// Front 队首通知
func (q *NotificationQueue[T]) Front() (SubscriberNotification[T], bool) {
	if len(q.queue) == 0 {
		return SubscriberNotification[T]{}, false
	}
	return q.queue[0], true
}

// Len 队列长度
func (q *NotificationQueue[T]) Len() int {
	return len(q.queue)
}

// CountNexts 队列中 Next 的数量
func (q *NotificationQueue[T]) CountNexts() int {
	count := 0
	for _, queued := range q.queue {
		if queued.Kind == KindNext {
			count++
		}
	}
	return count
}

// HasNext 队列中是否有 Next
func (q *NotificationQueue[T]) HasNext() bool {
	for _, queued := range q.queue {
		if queued.Kind == KindNext {
			return true
		}
	}
	return false
}

// IsEmpty 队列是否为空
func (q *NotificationQueue[T]) IsEmpty() bool {
	return len(q.queue) == 0
}

// IsDrained 队列中不再有 Next
func (q *NotificationQueue[T]) IsDrained() bool {
	return !q.HasNext()
}

// TakeError 取走错误
func (q *NotificationQueue[T]) TakeError() error {
	err := q.err
	q.err = nil
	return err
}
