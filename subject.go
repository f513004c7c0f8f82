// Subject implementations
// 主题：既是观察者又是 Observable 的多播中心，包括 Publish / Behavior / Replay / Async 变体
package rxgo

import (
	"slices"
	"sync"
)

// Subject 既是订阅者又是 Observable
type Subject[T any] interface {
	Observable[T]
	Subscriber[T]
}

// SubjectState 主题的状态，终止状态互斥
type SubjectState int

const (
	// SubjectOpen 可以继续发射
	SubjectOpen SubjectState = iota
	// SubjectCompleted 已完成
	SubjectCompleted
	// SubjectErrored 已出错
	SubjectErrored
	// SubjectUnsubscribed 已取消
	SubjectUnsubscribed
)

// String 返回状态名称
func (s SubjectState) String() string {
	switch s {
	case SubjectOpen:
		return "open"
	case SubjectCompleted:
		return "completed"
	case SubjectErrored:
		return "errored"
	default:
		return "unsubscribed"
	}
}

// ============================================================================
// multicast 多播核心
// ============================================================================

// multicast 以递增 id 为键保存订阅者，按订阅顺序分发
type multicast[T any] struct {
	mu          sync.Mutex
	state       SubjectState
	err         error
	nextID      uint64
	subscribers map[uint64]Subscriber[T]
	teardown    *CompositeSubscription
}

func newMulticast[T any]() *multicast[T] {
	return &multicast[T]{
		subscribers: make(map[uint64]Subscriber[T]),
		teardown:    NewSubscription(),
	}
}

// snapshot 必须在持有锁时调用
func (m *multicast[T]) snapshot() []Subscriber[T] {
	ids := make([]uint64, 0, len(m.subscribers))
	for id := range m.subscribers {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	subscribers := make([]Subscriber[T], 0, len(ids))
	for _, id := range ids {
		subscribers = append(subscribers, m.subscribers[id])
	}
	return subscribers
}

func (m *multicast[T]) next(value T) {
	m.mu.Lock()
	if m.state != SubjectOpen {
		m.mu.Unlock()
		return
	}
	subscribers := m.snapshot()
	m.mu.Unlock()

	for _, subscriber := range subscribers {
		if !subscriber.IsClosed() {
			subscriber.Next(value)
		}
	}
}

func (m *multicast[T]) terminate(state SubjectState, err error) bool {
	m.mu.Lock()
	if m.state != SubjectOpen {
		m.mu.Unlock()
		return false
	}
	m.state = state
	m.err = err
	subscribers := m.snapshot()
	m.mu.Unlock()

	for _, subscriber := range subscribers {
		if state == SubjectErrored {
			subscriber.Error(err)
		} else {
			subscriber.Complete()
		}
	}
	m.teardown.Unsubscribe()
	return true
}

func (m *multicast[T]) unsubscribe() {
	m.mu.Lock()
	if m.state == SubjectUnsubscribed {
		m.mu.Unlock()
		return
	}
	if m.state == SubjectOpen {
		m.state = SubjectUnsubscribed
	}
	subscribers := m.snapshot()
	m.subscribers = make(map[uint64]Subscriber[T])
	m.mu.Unlock()

	for _, subscriber := range subscribers {
		subscriber.Unsubscribe()
	}
	m.teardown.Unsubscribe()
}

// register 在主题仍然开放时加入订阅者，否则按终止状态立即通知
func (m *multicast[T]) register(destination Subscriber[T]) {
	m.mu.Lock()
	switch m.state {
	case SubjectErrored:
		err := m.err
		m.mu.Unlock()
		destination.Error(err)
		return
	case SubjectCompleted:
		m.mu.Unlock()
		destination.Complete()
		return
	case SubjectUnsubscribed:
		m.mu.Unlock()
		destination.Unsubscribe()
		return
	}

	m.nextID++
	id := m.nextID
	m.subscribers[id] = destination
	m.mu.Unlock()

	destination.AddTeardown(func() {
		m.mu.Lock()
		delete(m.subscribers, id)
		m.mu.Unlock()
	})
}

func (m *multicast[T]) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state != SubjectOpen
}

func (m *multicast[T]) currentState() SubjectState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *multicast[T]) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscribers)
}

// ============================================================================
// PublishSubject
// ============================================================================

// PublishSubject 把值分发给当前的所有订阅者，迟到的订阅者收不到之前的值
type PublishSubject[T any] struct {
	core *multicast[T]
}

// NewPublishSubject 创建 PublishSubject
func NewPublishSubject[T any]() *PublishSubject[T] {
	return &PublishSubject[T]{core: newMulticast[T]()}
}

// Subscribe 实现 Observable
func (s *PublishSubject[T]) Subscribe(destination Subscriber[T]) Subscription {
	if destination.IsClosed() {
		destination.Unsubscribe()
		return destination
	}
	s.core.register(destination)
	return destination
}

// Next 发送下一个值
func (s *PublishSubject[T]) Next(value T) { s.core.next(value) }

// Error 发送错误
func (s *PublishSubject[T]) Error(err error) { s.core.terminate(SubjectErrored, err) }

// Complete 发送完成信号
func (s *PublishSubject[T]) Complete() { s.core.terminate(SubjectCompleted, nil) }

// IsClosed 主题是否已终止或已取消
func (s *PublishSubject[T]) IsClosed() bool { return s.core.isClosed() }

// Unsubscribe 取消所有订阅者并关闭主题
func (s *PublishSubject[T]) Unsubscribe() { s.core.unsubscribe() }

// AddTeardown 主题关闭时执行
func (s *PublishSubject[T]) AddTeardown(teardown Teardown) { s.core.teardown.AddTeardown(teardown) }

// State 当前状态
func (s *PublishSubject[T]) State() SubjectState { return s.core.currentState() }

// ObserverCount 获取观察者数量
func (s *PublishSubject[T]) ObserverCount() int { return s.core.count() }

// HasObservers 检查是否有观察者
func (s *PublishSubject[T]) HasObservers() bool { return s.core.count() > 0 }

// CanSelfSubscribe 主题不能订阅自己
func (s *PublishSubject[T]) CanSelfSubscribe() bool { return false }

// ============================================================================
// BehaviorSubject
// ============================================================================

// BehaviorSubject 保存当前值，新订阅者立即收到当前值
type BehaviorSubject[T any] struct {
	PublishSubject[T]
	valueMu sync.RWMutex
	value   T
}

// NewBehaviorSubject 创建 BehaviorSubject
func NewBehaviorSubject[T any](initial T) *BehaviorSubject[T] {
	return &BehaviorSubject[T]{
		PublishSubject: PublishSubject[T]{core: newMulticast[T]()},
		value:          initial,
	}
}

// Subscribe 先同步发送当前值，再加入订阅者
func (s *BehaviorSubject[T]) Subscribe(destination Subscriber[T]) Subscription {
	if destination.IsClosed() {
		destination.Unsubscribe()
		return destination
	}
	if !s.core.isClosed() {
		destination.Next(s.Value())
		if destination.IsClosed() {
			return destination
		}
	}
	s.core.register(destination)
	return destination
}

// Next 更新当前值并分发
func (s *BehaviorSubject[T]) Next(value T) {
	if s.core.isClosed() {
		return
	}
	s.valueMu.Lock()
	s.value = value
	s.valueMu.Unlock()
	s.core.next(value)
}

// Value 当前值
func (s *BehaviorSubject[T]) Value() T {
	s.valueMu.RLock()
	defer s.valueMu.RUnlock()
	return s.value
}

// ============================================================================
// ReplaySubject
// ============================================================================

// ringBuffer 固定容量的环形缓冲区，满了之后覆盖最旧的值
type ringBuffer[T any] struct {
	values []T
	start  int
	size   int
}

func newRingBuffer[T any](capacity int) *ringBuffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &ringBuffer[T]{values: make([]T, capacity)}
}

func (r *ringBuffer[T]) push(value T) {
	capacity := len(r.values)
	if r.size < capacity {
		r.values[(r.start+r.size)%capacity] = value
		r.size++
		return
	}
	r.values[r.start] = value
	r.start = (r.start + 1) % capacity
}

// items 从旧到新
func (r *ringBuffer[T]) items() []T {
	out := make([]T, 0, r.size)
	for i := 0; i < r.size; i++ {
		out = append(out, r.values[(r.start+i)%len(r.values)])
	}
	return out
}

// ReplaySubject 保存最近 N 个值，新订阅者先按从旧到新的顺序收到它们
type ReplaySubject[T any] struct {
	PublishSubject[T]
	bufferMu sync.Mutex
	buffer   *ringBuffer[T]
}

// NewReplaySubject 创建容量为 capacity 的 ReplaySubject
func NewReplaySubject[T any](capacity int) *ReplaySubject[T] {
	return &ReplaySubject[T]{
		PublishSubject: PublishSubject[T]{core: newMulticast[T]()},
		buffer:         newRingBuffer[T](capacity),
	}
}

// Subscribe 先回放缓冲区，再加入订阅者或转发终止状态
func (s *ReplaySubject[T]) Subscribe(destination Subscriber[T]) Subscription {
	if destination.IsClosed() {
		destination.Unsubscribe()
		return destination
	}
	if s.core.currentState() != SubjectUnsubscribed {
		for _, value := range s.Values() {
			if destination.IsClosed() {
				return destination
			}
			destination.Next(value)
		}
	}
	if destination.IsClosed() {
		return destination
	}
	s.core.register(destination)
	return destination
}

// Next 写入缓冲区并分发
func (s *ReplaySubject[T]) Next(value T) {
	if s.core.isClosed() {
		return
	}
	s.bufferMu.Lock()
	s.buffer.push(value)
	s.bufferMu.Unlock()
	s.core.next(value)
}

// Values 当前缓冲的值，从旧到新
func (s *ReplaySubject[T]) Values() []T {
	s.bufferMu.Lock()
	defer s.bufferMu.Unlock()
	return s.buffer.items()
}

// ============================================================================
// AsyncSubject
// ============================================================================

// AsyncSubject 只在完成时发射最后一个值，完成后订阅的也会收到这个值
type AsyncSubject[T any] struct {
	PublishSubject[T]
	valueMu  sync.Mutex
	value    T
	hasValue bool
}

// NewAsyncSubject 创建 AsyncSubject
func NewAsyncSubject[T any]() *AsyncSubject[T] {
	return &AsyncSubject[T]{PublishSubject: PublishSubject[T]{core: newMulticast[T]()}}
}

// Subscribe 已完成时先发送最后的值再完成
func (s *AsyncSubject[T]) Subscribe(destination Subscriber[T]) Subscription {
	if destination.IsClosed() {
		destination.Unsubscribe()
		return destination
	}
	if s.core.currentState() == SubjectCompleted {
		if value, ok := s.last(); ok {
			destination.Next(value)
		}
	}
	s.core.register(destination)
	return destination
}

// Next 只记录最新的值
func (s *AsyncSubject[T]) Next(value T) {
	if s.core.isClosed() {
		return
	}
	s.valueMu.Lock()
	s.value = value
	s.hasValue = true
	s.valueMu.Unlock()
}

// Complete 发射最后的值然后完成
func (s *AsyncSubject[T]) Complete() {
	if s.core.isClosed() {
		return
	}
	if value, ok := s.last(); ok {
		s.core.next(value)
	}
	s.core.terminate(SubjectCompleted, nil)
}

func (s *AsyncSubject[T]) last() (T, bool) {
	s.valueMu.Lock()
	defer s.valueMu.Unlock()
	return s.value, s.hasValue
}
