// Subscribers
// 订阅者：把观察者升级为带清理记录的订阅者，以及共享目标和引用计数目标
package rxgo

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ============================================================================
// 观察者升级
// ============================================================================

// Upgrade 把一个普通观察者升级为订阅者；已经是订阅者的直接返回
func Upgrade[T any](observer Observer[T]) Subscriber[T] {
	if subscriber, ok := observer.(Subscriber[T]); ok {
		return subscriber
	}
	return NewObserverSubscriber(observer)
}

// ObserverSubscriber 为观察者附加订阅记录：保证关闭后不再有任何信号，终止信号后执行清理。
// 显式的 Unsubscribe 即使发生在终止之后也会通知到实现了 SubscriptionLike 的观察者，且只通知一次。
type ObserverSubscriber[T any] struct {
	observer     Observer[T]
	subscription *CompositeSubscription
	unsubscribed atomic.Bool
}

// NewObserverSubscriber 创建观察者订阅者
func NewObserverSubscriber[T any](observer Observer[T]) *ObserverSubscriber[T] {
	return &ObserverSubscriber[T]{observer: observer, subscription: NewSubscription()}
}

// Next 实现 Observer
func (s *ObserverSubscriber[T]) Next(value T) {
	if !s.subscription.IsClosed() {
		s.observer.Next(value)
	}
}

// Error 实现 Observer
func (s *ObserverSubscriber[T]) Error(err error) {
	if !s.subscription.IsClosed() {
		s.observer.Error(err)
		s.subscription.Unsubscribe()
	}
}

// Complete 实现 Observer
func (s *ObserverSubscriber[T]) Complete() {
	if !s.subscription.IsClosed() {
		s.observer.Complete()
		s.subscription.Unsubscribe()
	}
}

// Tick 节拍转发给支持节拍的观察者
func (s *ObserverSubscriber[T]) Tick(tick Tick) {
	forwardTick(s.observer, tick)
}

// IsClosed 实现 SubscriptionLike
func (s *ObserverSubscriber[T]) IsClosed() bool {
	return s.subscription.IsClosed()
}

// Unsubscribe 实现 SubscriptionLike
func (s *ObserverSubscriber[T]) Unsubscribe() {
	if !s.unsubscribed.CompareAndSwap(false, true) {
		return
	}
	s.subscription.Unsubscribe()
	if like, ok := s.observer.(SubscriptionLike); ok {
		like.Unsubscribe()
	}
}

// AddTeardown 实现 TeardownCollection
func (s *ObserverSubscriber[T]) AddTeardown(teardown Teardown) {
	s.subscription.AddTeardown(teardown)
}

// ============================================================================
// 操作符订阅者基础
// ============================================================================

// destinationForwarder 把订阅相关调用转发给下游，操作符订阅者嵌入它
type destinationForwarder[Out any] struct {
	destination Subscriber[Out]
}

func (f destinationForwarder[Out]) IsClosed() bool {
	return f.destination.IsClosed()
}

func (f destinationForwarder[Out]) Unsubscribe() {
	f.destination.Unsubscribe()
}

func (f destinationForwarder[Out]) AddTeardown(teardown Teardown) {
	f.destination.AddTeardown(teardown)
}

func (f destinationForwarder[Out]) Tick(tick Tick) {
	forwardTick(f.destination, tick)
}

// ============================================================================
// SharedSubscriber 共享目标
// ============================================================================

// SharedSubscriber 让同一个下游可以被多个操作符状态机引用。
// 分发期间不持有锁；分发过程中发生 panic 会把目标标记为中毒，之后的调用只记录警告并视为已关闭。
type SharedSubscriber[T any] struct {
	mu          sync.Mutex
	destination Subscriber[T]
	poisoned    bool
	logger      *slog.Logger
}

// NewSharedSubscriber 创建共享目标
func NewSharedSubscriber[T any](destination Subscriber[T], options ...Option) *SharedSubscriber[T] {
	config := newConfig(options)
	return &SharedSubscriber[T]{destination: destination, logger: config.Logger}
}

// Next 实现 Observer
func (s *SharedSubscriber[T]) Next(value T) {
	s.dispatch("next", func(destination Subscriber[T]) {
		if !destination.IsClosed() {
			destination.Next(value)
		}
	})
}

// Error 实现 Observer
func (s *SharedSubscriber[T]) Error(err error) {
	s.dispatch("error", func(destination Subscriber[T]) {
		if !destination.IsClosed() {
			destination.Error(err)
		}
	})
}

// Complete 实现 Observer
func (s *SharedSubscriber[T]) Complete() {
	s.dispatch("complete", func(destination Subscriber[T]) {
		if !destination.IsClosed() {
			destination.Complete()
		}
	})
}

// Tick 实现 Tickable
func (s *SharedSubscriber[T]) Tick(tick Tick) {
	s.dispatch("tick", func(destination Subscriber[T]) {
		forwardTick(destination, tick)
	})
}

// IsClosed 中毒的目标视为已关闭
func (s *SharedSubscriber[T]) IsClosed() bool {
	destination, ok := s.acquire()
	return !ok || destination.IsClosed()
}

// Unsubscribe 实现 SubscriptionLike
func (s *SharedSubscriber[T]) Unsubscribe() {
	s.dispatch("unsubscribe", func(destination Subscriber[T]) {
		destination.Unsubscribe()
	})
}

// AddTeardown 中毒后添加的清理动作立即执行
func (s *SharedSubscriber[T]) AddTeardown(teardown Teardown) {
	if _, ok := s.acquire(); !ok {
		if teardown != nil {
			teardown()
		}
		return
	}
	s.dispatch("add_teardown", func(destination Subscriber[T]) {
		destination.AddTeardown(teardown)
	})
}

// IsPoisoned 分发期间是否发生过 panic
func (s *SharedSubscriber[T]) IsPoisoned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.poisoned
}

// Access 在锁外访问下游
func (s *SharedSubscriber[T]) Access(accessor func(destination Subscriber[T])) {
	s.dispatch("access", accessor)
}

func (s *SharedSubscriber[T]) acquire() (Subscriber[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destination == nil {
		panic(panicDestinationStolen)
	}
	return s.destination, !s.poisoned
}

func (s *SharedSubscriber[T]) dispatch(operation string, fn func(destination Subscriber[T])) {
	destination, ok := s.acquire()
	if !ok {
		s.logger.Warn("共享目标已中毒，忽略通知", "operation", operation)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			first := !s.poisoned
			s.poisoned = true
			s.mu.Unlock()
			s.logger.Warn("共享目标在分发时发生 panic", "operation", operation, "panic", fmt.Sprint(r))
			if first {
				panic(r)
			}
		}
	}()
	fn(destination)
}

// Steal 取走下游，之后任何访问都会 panic
func (s *SharedSubscriber[T]) Steal() Subscriber[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	destination := s.destination
	if destination == nil {
		panic(panicDestinationStolen)
	}
	s.destination = nil
	return destination
}

// ============================================================================
// RcSubscriber 引用计数目标
// ============================================================================

type rcInner[T any] struct {
	mu               sync.Mutex
	destination      Subscriber[T]
	refCount         int
	completionCount  int
	unsubscribeCount int
	closed           bool
	completed        bool
}

// RcSubscriber 多个持有者共享一个下游：所有持有者都完成时下游才完成，所有持有者都取消时下游才取消。
// 错误会立即转发并关闭下游。
type RcSubscriber[T any] struct {
	inner        *rcInner[T]
	teardown     *CompositeSubscription
	completed    bool
	unsubscribed bool
	released     bool
}

// NewRcSubscriber 创建引用计数目标，初始引用数为 1
func NewRcSubscriber[T any](destination Subscriber[T]) *RcSubscriber[T] {
	closed := destination.IsClosed()
	inner := &rcInner[T]{destination: destination, refCount: 1, closed: closed, completed: closed}
	if closed {
		inner.completionCount = 1
		inner.unsubscribeCount = 1
	}
	return &RcSubscriber[T]{inner: inner}
}

// Clone 增加一个持有者
func (r *RcSubscriber[T]) Clone() *RcSubscriber[T] {
	r.inner.mu.Lock()
	defer r.inner.mu.Unlock()
	if r.released {
		panic(panicDestinationStolen)
	}
	r.inner.refCount++
	if r.completed {
		r.inner.completionCount++
	}
	if r.unsubscribed {
		r.inner.unsubscribeCount++
	}
	return &RcSubscriber[T]{inner: r.inner, completed: r.completed, unsubscribed: r.unsubscribed}
}

// Counts 返回 (引用数, 完成数, 取消数)
func (r *RcSubscriber[T]) Counts() (refCount, completionCount, unsubscribeCount int) {
	r.inner.mu.Lock()
	defer r.inner.mu.Unlock()
	return r.inner.refCount, r.inner.completionCount, r.inner.unsubscribeCount
}

func (r *RcSubscriber[T]) isThisCloneClosed() bool {
	return r.completed || r.unsubscribed
}

// Next 实现 Observer
func (r *RcSubscriber[T]) Next(value T) {
	if r.isThisCloneClosed() {
		return
	}
	r.inner.mu.Lock()
	closed := r.inner.closed
	destination := r.inner.destination
	r.inner.mu.Unlock()
	if !closed {
		destination.Next(value)
	}
}

// Error 立即转发并关闭下游
func (r *RcSubscriber[T]) Error(err error) {
	if r.isThisCloneClosed() {
		return
	}
	r.inner.mu.Lock()
	if r.inner.closed {
		r.inner.mu.Unlock()
		r.Unsubscribe()
		return
	}
	r.inner.closed = true
	r.inner.refCount = 0
	r.inner.completionCount = 0
	r.inner.unsubscribeCount = 0
	destination := r.inner.destination
	r.inner.mu.Unlock()

	destination.Error(err)
	destination.Unsubscribe()
	r.unsubscribed = true
}

// Complete 当所有持有者都完成时完成下游
func (r *RcSubscriber[T]) Complete() {
	if r.isThisCloneClosed() {
		return
	}
	r.completed = true
	r.inner.mu.Lock()
	r.inner.completionCount++
	r.inner.mu.Unlock()
	r.inner.completeIfCan()
}

// IsClosed 下游是否已关闭
func (r *RcSubscriber[T]) IsClosed() bool {
	r.inner.mu.Lock()
	closed := r.inner.closed
	destination := r.inner.destination
	r.inner.mu.Unlock()
	return closed || destination.IsClosed()
}

// Unsubscribe 当所有持有者都取消时取消下游
func (r *RcSubscriber[T]) Unsubscribe() {
	if r.teardown != nil {
		r.teardown.Unsubscribe()
	}
	if r.unsubscribed {
		return
	}
	r.unsubscribed = true
	r.inner.mu.Lock()
	r.inner.unsubscribeCount++
	r.inner.mu.Unlock()
	r.inner.unsubscribeIfCan()
}

// AddTeardown 清理动作属于这一个持有者，在它取消时执行
func (r *RcSubscriber[T]) AddTeardown(teardown Teardown) {
	if r.teardown == nil {
		r.teardown = NewSubscription()
		if r.unsubscribed {
			r.teardown.Unsubscribe()
		}
	}
	r.teardown.AddTeardown(teardown)
}

// AddDownstreamTeardown 清理动作挂到共享的下游上
func (r *RcSubscriber[T]) AddDownstreamTeardown(teardown Teardown) {
	r.inner.mu.Lock()
	destination := r.inner.destination
	r.inner.mu.Unlock()
	destination.AddTeardown(teardown)
}

// Release 放弃这个持有者，计数中撤销它的贡献
func (r *RcSubscriber[T]) Release() {
	if r.released {
		return
	}
	r.released = true
	r.inner.mu.Lock()
	if r.inner.refCount > 0 {
		r.inner.refCount--
		if r.completed && r.inner.completionCount > 0 {
			r.inner.completionCount--
		}
		if r.unsubscribed && r.inner.unsubscribeCount > 0 {
			r.inner.unsubscribeCount--
		}
	}
	r.inner.mu.Unlock()
}

func (inner *rcInner[T]) completeIfCan() {
	inner.mu.Lock()
	if inner.completionCount != inner.refCount || inner.closed || inner.completed {
		inner.mu.Unlock()
		return
	}
	inner.completed = true
	destination := inner.destination
	inner.mu.Unlock()

	destination.Complete()
}

func (inner *rcInner[T]) unsubscribeIfCan() {
	inner.mu.Lock()
	if inner.unsubscribeCount != inner.refCount || inner.closed {
		inner.mu.Unlock()
		return
	}
	inner.closed = true
	destination := inner.destination
	inner.mu.Unlock()

	destination.Unsubscribe()
}
