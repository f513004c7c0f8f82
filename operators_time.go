// Time-based operators
// 基于调度器的时间操作符：节流、延迟、防抖以及订阅/观察线程切换
package rxgo

import (
	"sync"
	"time"
)

// DefaultThrottleDuration 未指定时长时的节流窗口
const DefaultThrottleDuration = time.Second

// ThrottleOutputBehavior 节流窗口的输出方式
type ThrottleOutputBehavior int

const (
	// LeadingAndTrailing 窗口开始和结束时都发射
	LeadingAndTrailing ThrottleOutputBehavior = iota
	// LeadingOnly 只发射窗口开始时的值
	LeadingOnly
	// TrailingOnly 只在窗口结束时发射窗口内最后一个值
	TrailingOnly
)

func (b ThrottleOutputBehavior) emitsLeading() bool { return b != TrailingOnly }

func (b ThrottleOutputBehavior) emitsTrailing() bool { return b != LeadingOnly }

// resolveScheduler 显式参数优先，其次是配置中的调度器
func resolveScheduler(scheduler Scheduler, config *Config) Scheduler {
	if scheduler != nil {
		return scheduler
	}
	return config.Scheduler
}

// ============================================================================
// ThrottleTime
// ============================================================================

type throttleTimeSubscriber[T any] struct {
	destinationForwarder[T]
	mu                 sync.Mutex
	scheduler          Scheduler
	id                 WorkCancellationID
	duration           time.Duration
	output             ThrottleOutputBehavior
	windowOpen         bool
	deadline           time.Duration
	trailing           T
	hasTrailing        bool
	pendingComplete    bool
	pendingUnsubscribe bool
}

func (s *throttleTimeSubscriber[T]) Next(value T) {
	if s.IsClosed() {
		return
	}
	s.mu.Lock()
	if s.windowOpen {
		if s.output.emitsTrailing() {
			s.trailing = value
			s.hasTrailing = true
		}
		s.mu.Unlock()
		return
	}
	s.windowOpen = true
	s.deadline = s.scheduler.Now() + s.duration
	leading := s.output.emitsLeading()
	if !leading {
		s.trailing = value
		s.hasTrailing = true
	}
	s.mu.Unlock()

	s.scheduler.ScheduleContinuousWork(s.poll, s.id)
	if leading {
		s.destination.Next(value)
	}
}

// poll 窗口到期时发射尾值并开启冷却窗口，没有尾值则关闭窗口
func (s *throttleTimeSubscriber[T]) poll(tick Tick) WorkResult {
	s.mu.Lock()
	if tick.Now < s.deadline {
		s.mu.Unlock()
		return WorkPending
	}
	if !s.hasTrailing {
		s.windowOpen = false
		s.mu.Unlock()
		return WorkDone
	}

	value := s.trailing
	var zero T
	s.trailing = zero
	s.hasTrailing = false
	complete, unsubscribe := s.pendingComplete, s.pendingUnsubscribe
	if complete || unsubscribe {
		s.windowOpen = false
	} else {
		s.deadline = tick.Now + s.duration
	}
	s.mu.Unlock()

	s.destination.Next(value)
	switch {
	case complete:
		s.destination.Complete()
		return WorkDone
	case unsubscribe:
		s.destination.Unsubscribe()
		return WorkDone
	}
	return WorkPending
}

func (s *throttleTimeSubscriber[T]) Error(err error) {
	s.scheduler.Cancel(s.id)
	s.destination.Error(err)
}

// Complete 有尾值等待发射时推迟到窗口结束
func (s *throttleTimeSubscriber[T]) Complete() {
	s.mu.Lock()
	if s.hasTrailing {
		s.pendingComplete = true
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.scheduler.Cancel(s.id)
	s.destination.Complete()
}

// Unsubscribe 有尾值等待发射时推迟到窗口结束
func (s *throttleTimeSubscriber[T]) Unsubscribe() {
	s.mu.Lock()
	if s.hasTrailing {
		s.pendingUnsubscribe = true
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.scheduler.Cancel(s.id)
	s.destination.Unsubscribe()
}

// ThrottleTime 节流：窗口内的值按“最后一个胜出”合并为尾值。
// 输出方式由 WithThrottleOutput 决定，默认首尾都发射；duration 不大于 0 时使用 DefaultThrottleDuration。
func ThrottleTime[T any](scheduler Scheduler, duration time.Duration, options ...Option) OperatorFunc[T, T] {
	config := newConfig(options)
	scheduler = resolveScheduler(scheduler, config)
	if duration <= 0 {
		duration = DefaultThrottleDuration
	}
	return func(source Observable[T]) Observable[T] {
		if scheduler == nil {
			return Throw[T](ErrSchedulerRequired)
		}
		return lift(source, func(destination Subscriber[T]) Subscriber[T] {
			subscriber := &throttleTimeSubscriber[T]{
				destinationForwarder: destinationForwarder[T]{destination},
				scheduler:            scheduler,
				id:                   scheduler.GenerateCancellationID(),
				duration:             duration,
				output:               config.ThrottleOutput,
			}
			destination.AddTeardown(func() { scheduler.Cancel(subscriber.id) })
			return subscriber
		})
	}
}

// ============================================================================
// Delay
// ============================================================================

type delaySubscriber[T any] struct {
	destinationForwarder[T]
	mu                 sync.Mutex
	scheduler          Scheduler
	id                 WorkCancellationID
	delay              time.Duration
	outstanding        int
	pendingComplete    bool
	pendingUnsubscribe bool
}

func (s *delaySubscriber[T]) Next(value T) {
	if s.IsClosed() {
		return
	}
	s.mu.Lock()
	s.outstanding++
	s.mu.Unlock()

	s.scheduler.ScheduleDelayedWork(func(Tick) {
		s.mu.Lock()
		s.outstanding--
		flushed := s.outstanding == 0
		complete, unsubscribe := s.pendingComplete, s.pendingUnsubscribe
		s.mu.Unlock()

		s.destination.Next(value)
		if !flushed {
			return
		}
		if complete {
			s.destination.Complete()
		} else if unsubscribe {
			s.destination.Unsubscribe()
		}
	}, s.delay, s.id)
}

func (s *delaySubscriber[T]) Error(err error) {
	s.scheduler.Cancel(s.id)
	s.destination.Error(err)
}

// Complete 等所有延迟中的值发射完再完成
func (s *delaySubscriber[T]) Complete() {
	s.mu.Lock()
	if s.outstanding > 0 {
		s.pendingComplete = true
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.destination.Complete()
}

// Unsubscribe 等所有延迟中的值发射完再取消
func (s *delaySubscriber[T]) Unsubscribe() {
	s.mu.Lock()
	if s.outstanding > 0 {
		s.pendingUnsubscribe = true
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.scheduler.Cancel(s.id)
	s.destination.Unsubscribe()
}

// Delay 每个值延迟 delay 后再发射，错误立即转发
func Delay[T any](scheduler Scheduler, delay time.Duration, options ...Option) OperatorFunc[T, T] {
	scheduler = resolveScheduler(scheduler, newConfig(options))
	return func(source Observable[T]) Observable[T] {
		if scheduler == nil {
			return Throw[T](ErrSchedulerRequired)
		}
		return lift(source, func(destination Subscriber[T]) Subscriber[T] {
			subscriber := &delaySubscriber[T]{
				destinationForwarder: destinationForwarder[T]{destination},
				scheduler:            scheduler,
				id:                   scheduler.GenerateCancellationID(),
				delay:                delay,
			}
			destination.AddTeardown(func() { scheduler.Cancel(subscriber.id) })
			return subscriber
		})
	}
}

// ============================================================================
// DebounceTime
// ============================================================================

type debounceTimeSubscriber[T any] struct {
	destinationForwarder[T]
	mu        sync.Mutex
	scheduler Scheduler
	id        WorkCancellationID
	duration  time.Duration
	pending   T
	hasValue  bool
}

func (s *debounceTimeSubscriber[T]) Next(value T) {
	if s.IsClosed() {
		return
	}
	s.mu.Lock()
	previous := s.id
	s.id = s.scheduler.GenerateCancellationID()
	id := s.id
	s.pending = value
	s.hasValue = true
	s.mu.Unlock()

	s.scheduler.Cancel(previous)
	s.scheduler.ScheduleDelayedWork(func(Tick) {
		if value, ok := s.take(); ok {
			s.destination.Next(value)
		}
	}, s.duration, id)
}

func (s *debounceTimeSubscriber[T]) take() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.pending, s.hasValue
	var zero T
	s.pending = zero
	s.hasValue = false
	return value, ok
}

func (s *debounceTimeSubscriber[T]) cancel() {
	s.mu.Lock()
	id := s.id
	s.mu.Unlock()
	s.scheduler.Cancel(id)
}

func (s *debounceTimeSubscriber[T]) Error(err error) {
	s.cancel()
	s.take()
	s.destination.Error(err)
}

// Complete 立即发射尚未发射的值再完成
func (s *debounceTimeSubscriber[T]) Complete() {
	s.cancel()
	if value, ok := s.take(); ok && !s.IsClosed() {
		s.destination.Next(value)
	}
	s.destination.Complete()
}

func (s *debounceTimeSubscriber[T]) Unsubscribe() {
	s.cancel()
	s.destination.Unsubscribe()
}

// DebounceTime 值之后安静 duration 才发射，期间的新值会替换它
func DebounceTime[T any](scheduler Scheduler, duration time.Duration, options ...Option) OperatorFunc[T, T] {
	scheduler = resolveScheduler(scheduler, newConfig(options))
	return func(source Observable[T]) Observable[T] {
		if scheduler == nil {
			return Throw[T](ErrSchedulerRequired)
		}
		return lift(source, func(destination Subscriber[T]) Subscriber[T] {
			subscriber := &debounceTimeSubscriber[T]{
				destinationForwarder: destinationForwarder[T]{destination},
				scheduler:            scheduler,
				id:                   scheduler.GenerateCancellationID(),
				duration:             duration,
			}
			destination.AddTeardown(subscriber.cancel)
			return subscriber
		})
	}
}

// ============================================================================
// FallbackWhenSilent
// ============================================================================

type fallbackWhenSilentSubscriber[T any] struct {
	destinationForwarder[T]
	mu        sync.Mutex
	scheduler Scheduler
	id        WorkCancellationID
	fallback  func(Tick, int) T
	ticks     int
	observed  bool
}

func (s *fallbackWhenSilentSubscriber[T]) Next(value T) {
	if s.IsClosed() {
		return
	}
	s.mu.Lock()
	s.observed = true
	s.mu.Unlock()
	s.destination.Next(value)
}

// poll 上一次节拍以来没有收到值时发射 fallback 的结果
func (s *fallbackWhenSilentSubscriber[T]) poll(tick Tick) WorkResult {
	if s.IsClosed() {
		return WorkDone
	}
	s.mu.Lock()
	index := s.ticks
	s.ticks++
	silent := !s.observed
	s.observed = false
	s.mu.Unlock()

	if silent {
		s.destination.Next(s.fallback(tick, index))
	}
	return WorkPending
}

func (s *fallbackWhenSilentSubscriber[T]) Error(err error) {
	s.scheduler.Cancel(s.id)
	s.destination.Error(err)
}

func (s *fallbackWhenSilentSubscriber[T]) Complete() {
	s.scheduler.Cancel(s.id)
	s.destination.Complete()
}

func (s *fallbackWhenSilentSubscriber[T]) Unsubscribe() {
	s.scheduler.Cancel(s.id)
	s.destination.Unsubscribe()
}

// FallbackWhenSilent 每次节拍检查上游是否安静：自上一次节拍以来没有值时，
// 发射 fallback(tick, index) 的结果。index 是订阅以来的节拍序号（从 0 开始）
func FallbackWhenSilent[T any](scheduler Scheduler, fallback func(tick Tick, index int) T, options ...Option) OperatorFunc[T, T] {
	scheduler = resolveScheduler(scheduler, newConfig(options))
	return func(source Observable[T]) Observable[T] {
		if scheduler == nil {
			return Throw[T](ErrSchedulerRequired)
		}
		return lift(source, func(destination Subscriber[T]) Subscriber[T] {
			subscriber := &fallbackWhenSilentSubscriber[T]{
				destinationForwarder: destinationForwarder[T]{destination},
				scheduler:            scheduler,
				id:                   scheduler.GenerateCancellationID(),
				fallback:             fallback,
			}
			destination.AddTeardown(func() { scheduler.Cancel(subscriber.id) })
			scheduler.ScheduleContinuousWork(subscriber.poll, subscriber.id)
			return subscriber
		})
	}
}

// ============================================================================
// SubscribeOn / ObserveOn
// ============================================================================

// SubscribeOn 把订阅动作推迟到调度器的下一次节拍；在那之前取消则不会订阅上游
func SubscribeOn[T any](scheduler Scheduler) OperatorFunc[T, T] {
	return SubscribeOnWithDelay[T](scheduler, 0)
}

// SubscribeOnWithDelay 把订阅动作推迟 delay
func SubscribeOnWithDelay[T any](scheduler Scheduler, delay time.Duration) OperatorFunc[T, T] {
	return func(source Observable[T]) Observable[T] {
		if scheduler == nil {
			return Throw[T](ErrSchedulerRequired)
		}
		return Create(func(destination Subscriber[T]) {
			id := scheduler.GenerateCancellationID()
			subscribe := func(Tick) {
				if !destination.IsClosed() {
					source.Subscribe(destination)
				}
			}
			if delay > 0 {
				scheduler.ScheduleDelayedWork(subscribe, delay, id)
			} else {
				scheduler.ScheduleImmediateWork(subscribe, id)
			}
			destination.AddTeardown(func() { scheduler.Cancel(id) })
		})
	}
}

type observeOnSubscriber[T any] struct {
	destinationForwarder[T]
	scheduler Scheduler
	id        WorkCancellationID
}

func (s *observeOnSubscriber[T]) schedule(notification ObserverNotification[T]) {
	s.scheduler.ScheduleImmediateWork(func(Tick) {
		if !s.IsClosed() {
			notification.Accept(s.destination)
		}
	}, s.id)
}

func (s *observeOnSubscriber[T]) Next(value T) { s.schedule(Next(value)) }

func (s *observeOnSubscriber[T]) Error(err error) { s.schedule(ErrorNotification[T](err)) }

func (s *observeOnSubscriber[T]) Complete() { s.schedule(CompleteNotification[T]()) }

// ObserveOn 在调度器的节拍中按原顺序重放所有信号
func ObserveOn[T any](scheduler Scheduler) OperatorFunc[T, T] {
	return func(source Observable[T]) Observable[T] {
		if scheduler == nil {
			return Throw[T](ErrSchedulerRequired)
		}
		return lift(source, func(destination Subscriber[T]) Subscriber[T] {
			subscriber := &observeOnSubscriber[T]{
				destinationForwarder: destinationForwarder[T]{destination},
				scheduler:            scheduler,
				id:                   scheduler.GenerateCancellationID(),
			}
			destination.AddTeardown(func() { scheduler.Cancel(subscriber.id) })
			return subscriber
		})
	}
}
