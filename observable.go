// Observable implementation
// Observable 的函数实现、订阅辅助函数以及操作符组合
package rxgo

import (
	"iter"
	"time"
)

// ============================================================================
// ObservableFunc
// ============================================================================

// ObservableFunc 函数形式的 Observable，每次订阅都会重新执行（冷 Observable）
type ObservableFunc[T any] func(destination Subscriber[T])

// Subscribe 实现 Observable。已关闭的目标会被立即取消且不会收到任何信号
func (f ObservableFunc[T]) Subscribe(destination Subscriber[T]) Subscription {
	if destination.IsClosed() {
		destination.Unsubscribe()
		return destination
	}
	f(destination)
	return destination
}

// SubscribeObserver 用普通观察者订阅，必要时先升级为订阅者
func SubscribeObserver[T any](source Observable[T], observer Observer[T]) Subscription {
	return source.Subscribe(Upgrade(observer))
}

// SubscribeFunc 使用回调函数订阅
func SubscribeFunc[T any](source Observable[T], onNext func(value T), onError func(err error), onComplete func()) Subscription {
	return SubscribeObserver[T](source, NewObserver(onNext, onError, onComplete))
}

// ============================================================================
// 创建操作符
// ============================================================================

// Create 从订阅函数创建 Observable
func Create[T any](onSubscribe func(destination Subscriber[T])) Observable[T] {
	return ObservableFunc[T](onSubscribe)
}

// Of 发射一个值后完成
func Of[T any](value T) Observable[T] {
	return Create(func(destination Subscriber[T]) {
		destination.Next(value)
		destination.Complete()
	})
}

// Just 依次发射给定的值后完成
func Just[T any](values ...T) Observable[T] {
	return FromSlice(values)
}

// FromSlice 从切片创建，目标关闭后停止发射
func FromSlice[T any](values []T) Observable[T] {
	return Create(func(destination Subscriber[T]) {
		for _, value := range values {
			if destination.IsClosed() {
				return
			}
			destination.Next(value)
		}
		destination.Complete()
	})
}

// FromSeq 从迭代器创建
func FromSeq[T any](seq iter.Seq[T]) Observable[T] {
	return Create(func(destination Subscriber[T]) {
		for value := range seq {
			if destination.IsClosed() {
				return
			}
			destination.Next(value)
		}
		destination.Complete()
	})
}

// Range 发射 [start, start+count) 的整数
func Range(start, count int) Observable[int] {
	return Create(func(destination Subscriber[int]) {
		for i := start; i < start+count; i++ {
			if destination.IsClosed() {
				return
			}
			destination.Next(i)
		}
		destination.Complete()
	})
}

// Empty 立即完成
func Empty[T any]() Observable[T] {
	return Create(func(destination Subscriber[T]) {
		destination.Complete()
	})
}

// Never 永不发射也永不终止，也不会出错
func Never[T any]() Observable[T] {
	return Create(func(destination Subscriber[T]) {})
}

// Throw 立即以错误终止
func Throw[T any](err error) Observable[T] {
	return Create(func(destination Subscriber[T]) {
		destination.Error(err)
	})
}

// Defer 每次订阅时才创建真正的 Observable
func Defer[T any](factory func() Observable[T]) Observable[T] {
	return Create(func(destination Subscriber[T]) {
		factory().Subscribe(destination)
	})
}

// ============================================================================
// 时间相关
// ============================================================================

// IntervalOptions 定时发射选项
type IntervalOptions struct {
	// StartOnSubscribe 订阅后的第一次节拍就发射
	StartOnSubscribe bool
	// MaxEmissionsPerTick 每次节拍最多补发的次数
	MaxEmissionsPerTick int
}

// Interval 每隔 period 发射一个递增计数，永不完成
func Interval(period time.Duration, scheduler Scheduler) Observable[int] {
	return IntervalWithOptions(period, scheduler, IntervalOptions{MaxEmissionsPerTick: 1})
}

// IntervalWithOptions 带选项的 Interval
func IntervalWithOptions(period time.Duration, scheduler Scheduler, options IntervalOptions) Observable[int] {
	return Create(func(destination Subscriber[int]) {
		id := scheduler.GenerateCancellationID()
		count := 0
		scheduler.ScheduleRepeatedWork(func(Tick) WorkResult {
			if destination.IsClosed() {
				return WorkDone
			}
			destination.Next(count)
			count++
			return WorkPending
		}, period, options.StartOnSubscribe, options.MaxEmissionsPerTick, id)
		destination.AddTeardown(func() {
			scheduler.Cancel(id)
		})
	})
}

// Timer 在 delay 之后发射当时的逻辑时间并完成
func Timer(delay time.Duration, scheduler Scheduler) Observable[time.Duration] {
	return Create(func(destination Subscriber[time.Duration]) {
		id := scheduler.GenerateCancellationID()
		scheduler.ScheduleDelayedWork(func(tick Tick) {
			destination.Next(tick.Now)
			destination.Complete()
		}, delay, id)
		destination.AddTeardown(func() {
			scheduler.Cancel(id)
		})
	})
}

// OnTickOptions FromSeqOnTick 的选项
type OnTickOptions struct {
	// EmitEveryNthTick 每隔多少次节拍发射一个值，不大于 0 时订阅时同步发射全部值
	EmitEveryNthTick int
	// StartOnSubscribe 订阅时立即发射第一个值
	StartOnSubscribe bool
}

// FromSeqOnTick 由调度器的节拍驱动迭代器，每 EmitEveryNthTick 次节拍发射一个值，
// 发射最后一个值的同时完成
func FromSeqOnTick[T any](seq iter.Seq[T], scheduler Scheduler, options OnTickOptions) Observable[T] {
	if options.EmitEveryNthTick <= 0 {
		return FromSeq(seq)
	}
	return Create(func(destination Subscriber[T]) {
		next, stop := iter.Pull(seq)
		id := scheduler.GenerateCancellationID()
		destination.AddTeardown(func() {
			scheduler.Cancel(id)
			stop()
		})

		current, ok := next()
		if !ok {
			destination.Complete()
			return
		}
		// emit 发射当前值并预取下一个，没有下一个时完成
		emit := func() bool {
			destination.Next(current)
			current, ok = next()
			if !ok && !destination.IsClosed() {
				destination.Complete()
			}
			return ok && !destination.IsClosed()
		}

		if options.StartOnSubscribe && !emit() {
			return
		}
		ticks := 0
		scheduler.ScheduleContinuousWork(func(Tick) WorkResult {
			if destination.IsClosed() {
				return WorkDone
			}
			ticks++
			if ticks%options.EmitEveryNthTick != 0 {
				return WorkPending
			}
			if !emit() {
				return WorkDone
			}
			return WorkPending
		}, id)
	})
}

// ============================================================================
// 操作符组合
// ============================================================================

// Pipe 应用一个操作符
func Pipe[A, B any](source Observable[A], op1 OperatorFunc[A, B]) Observable[B] {
	return op1(source)
}

// Pipe2 依次应用两个操作符
func Pipe2[A, B, C any](source Observable[A], op1 OperatorFunc[A, B], op2 OperatorFunc[B, C]) Observable[C] {
	return op2(op1(source))
}

// Pipe3 依次应用三个操作符
func Pipe3[A, B, C, D any](source Observable[A], op1 OperatorFunc[A, B], op2 OperatorFunc[B, C], op3 OperatorFunc[C, D]) Observable[D] {
	return op3(op2(op1(source)))
}

// Pipe4 依次应用四个操作符
func Pipe4[A, B, C, D, E any](source Observable[A], op1 OperatorFunc[A, B], op2 OperatorFunc[B, C], op3 OperatorFunc[C, D], op4 OperatorFunc[D, E]) Observable[E] {
	return op4(op3(op2(op1(source))))
}

// Compose 把两个操作符组合成一个
func Compose[A, B, C any](op1 OperatorFunc[A, B], op2 OperatorFunc[B, C]) OperatorFunc[A, C] {
	return func(source Observable[A]) Observable[C] {
		return op2(op1(source))
	}
}

// lift 用订阅者工厂构造操作符
func lift[In, Out any](source Observable[In], wrap func(destination Subscriber[Out]) Subscriber[In]) Observable[Out] {
	return Create(func(destination Subscriber[Out]) {
		source.Subscribe(wrap(destination))
	})
}
