// Subscription primitives
// 订阅原语：组合式清理集合，以及带延迟通知队列的共享订阅
package rxgo

import (
	"sync"
)

// SubscriptionMaxRecursionDepth 延迟通知队列的最大排空深度
const SubscriptionMaxRecursionDepth = 10

// ============================================================================
// CompositeSubscription 组合式订阅
// ============================================================================

// CompositeSubscription 持有零个或多个清理动作，Unsubscribe 时全部执行并关闭
type CompositeSubscription struct {
	mu        sync.Mutex
	closed    bool
	teardowns []Teardown
}

// NewSubscription 创建订阅
func NewSubscription(teardowns ...Teardown) *CompositeSubscription {
	s := &CompositeSubscription{}
	for _, teardown := range teardowns {
		s.AddTeardown(teardown)
	}
	return s
}

// ClosedSubscription 创建一个已关闭的订阅
func ClosedSubscription() *CompositeSubscription {
	return &CompositeSubscription{closed: true}
}

// IsClosed 检查是否已关闭
func (s *CompositeSubscription) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Unsubscribe 执行所有清理动作，清理动作在锁外执行以允许重入
func (s *CompositeSubscription) Unsubscribe() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	teardowns := s.teardowns
	s.teardowns = nil
	s.mu.Unlock()

	for _, teardown := range teardowns {
		teardown()
	}
}

// AddTeardown 添加清理动作，已关闭时立即执行
func (s *CompositeSubscription) AddTeardown(teardown Teardown) {
	if teardown == nil {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		teardown()
		return
	}
	s.teardowns = append(s.teardowns, teardown)
	s.mu.Unlock()
}

// Add 添加嵌套订阅
func (s *CompositeSubscription) Add(subscription SubscriptionLike) {
	if subscription == nil {
		return
	}
	s.AddTeardown(TeardownOf(subscription))
}

// Len 尚未执行的清理动作数量
func (s *CompositeSubscription) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.teardowns)
}

// ============================================================================
// SharedSubscription 共享订阅
// ============================================================================

// SharedSubscription 可被多处持有的订阅。
// 应用通知时尝试获取锁，拿不到锁就把通知放入延迟队列，由持锁者排空。
type SharedSubscription struct {
	inner  Subscription
	access sync.Mutex

	stateMu             sync.Mutex
	deferred            []SubscriptionNotification
	closed              bool
	observedUnsubscribe bool
}

// NewSharedSubscription 创建共享订阅并接管给定的订阅
func NewSharedSubscription(subscriptions ...SubscriptionLike) *SharedSubscription {
	inner := NewSubscription()
	for _, subscription := range subscriptions {
		inner.Add(subscription)
	}
	return &SharedSubscription{inner: inner}
}

// ShareSubscription 包装一个已有的订阅
func ShareSubscription(inner Subscription) *SharedSubscription {
	return &SharedSubscription{inner: inner}
}

// IsClosed 检查是否已关闭
func (s *SharedSubscription) IsClosed() bool {
	s.stateMu.Lock()
	closed := s.closed || s.observedUnsubscribe
	s.stateMu.Unlock()
	if closed {
		return true
	}

	if s.access.TryLock() {
		defer s.access.Unlock()
		return s.inner.IsClosed()
	}
	return false
}

// Unsubscribe 取消订阅。只有第一次 Unsubscribe 会被接受
func (s *SharedSubscription) Unsubscribe() {
	s.tryApplyDeferred()

	s.stateMu.Lock()
	wasUnsubscribed := s.observedUnsubscribe
	s.observedUnsubscribe = true
	s.stateMu.Unlock()

	if !wasUnsubscribed && !s.tryUnsubscribe() {
		s.deferNotification(SubscriptionNotification{Kind: KindUnsubscribe}, true)
	}
	s.tryApplyDeferred()
}

// AddTeardown 添加清理动作，已关闭时立即执行
func (s *SharedSubscription) AddTeardown(teardown Teardown) {
	if teardown == nil {
		return
	}
	s.push(SubscriptionNotification{Kind: KindAdd, Teardown: teardown})
}

// Add 添加嵌套订阅
func (s *SharedSubscription) Add(subscription SubscriptionLike) {
	s.AddTeardown(TeardownOf(subscription))
}

// Tick 向内部订阅转发节拍
func (s *SharedSubscription) Tick(tick Tick) {
	s.push(SubscriptionNotification{Kind: KindTick, Tick: tick})
}

func (s *SharedSubscription) push(notification SubscriptionNotification) {
	if s.access.TryLock() {
		func() {
			defer s.access.Unlock()
			s.applyNotificationQueue()
			s.applyOne(notification)
			s.applyNotificationQueue()
		}()
	} else {
		s.deferNotification(notification, false)
	}
	s.tryApplyDeferred()
}

func (s *SharedSubscription) tryUnsubscribe() bool {
	if !s.access.TryLock() {
		return false
	}
	defer s.access.Unlock()

	s.applyNotificationQueue()

	s.stateMu.Lock()
	s.closed = true
	s.stateMu.Unlock()

	if !s.inner.IsClosed() {
		s.inner.Unsubscribe()
	}
	s.applyNotificationQueue()
	return true
}

func (s *SharedSubscription) deferNotification(notification SubscriptionNotification, firstUnsubscribe bool) {
	s.stateMu.Lock()
	if s.closed && !firstUnsubscribe {
		s.stateMu.Unlock()
		if notification.Kind == KindAdd {
			notification.Teardown()
		}
		return
	}
	s.deferred = append(s.deferred, notification)
	s.stateMu.Unlock()
}

func (s *SharedSubscription) tryApplyDeferred() {
	s.stateMu.Lock()
	dirty := len(s.deferred) > 0
	s.stateMu.Unlock()
	if !dirty || !s.access.TryLock() {
		return
	}
	defer s.access.Unlock()
	s.applyNotificationQueue()
}

// applyNotificationQueue 必须在持有 access 时调用
func (s *SharedSubscription) applyNotificationQueue() {
	for depth := 0; ; depth++ {
		s.stateMu.Lock()
		if len(s.deferred) == 0 {
			s.stateMu.Unlock()
			return
		}
		if depth == SubscriptionMaxRecursionDepth {
			s.stateMu.Unlock()
			panic(panicRecursionExceeded)
		}
		notifications := s.deferred
		s.deferred = nil
		s.stateMu.Unlock()

		for _, notification := range notifications {
			s.applyOne(notification)
		}
	}
}

func (s *SharedSubscription) applyOne(notification SubscriptionNotification) {
	s.stateMu.Lock()
	closed := s.closed
	s.stateMu.Unlock()

	switch {
	case !closed:
		notification.Apply(s.inner)
	case notification.Kind == KindAdd:
		notification.Teardown()
	}

	if notification.Kind == KindUnsubscribe {
		s.stateMu.Lock()
		s.closed = true
		s.stateMu.Unlock()
	}
}
