// Error handling operators
// 错误处理操作符：catch 用备用源替换出错的上游，retry 重新订阅，onErrorComplete 把错误变成完成
package rxgo

import (
	"sync"
)

// ============================================================================
// Catch
// ============================================================================

type catchSubscriber[T any] struct {
	destination Subscriber[T]
	upstream    *innerSubscriber[T]
	selector    func(error) Observable[T]

	mu       sync.Mutex
	fallback *innerSubscriber[T]
}

func newCatchSubscriber[T any](destination Subscriber[T], selector func(error) Observable[T]) *catchSubscriber[T] {
	s := &catchSubscriber[T]{destination: destination, selector: selector}
	s.upstream = newInnerSubscriber[T](destination)
	s.upstream.onNext = destination.Next
	s.upstream.onError = s.switchToFallback
	s.upstream.onComplete = destination.Complete
	s.upstream.onUnsubscribe = destination.Unsubscribe
	destination.AddTeardown(s.dispose)
	return s
}

// switchToFallback 上游已经关闭，订阅由错误构造的备用源，由它代替上游向下游发信号
func (s *catchSubscriber[T]) switchToFallback(err error) {
	if s.destination.IsClosed() {
		return
	}
	fallback := newInnerSubscriber[T](s.destination)
	fallback.onNext = s.destination.Next
	fallback.onError = s.destination.Error
	fallback.onComplete = s.destination.Complete
	fallback.onUnsubscribe = s.destination.Unsubscribe

	s.mu.Lock()
	s.fallback = fallback
	s.mu.Unlock()

	s.selector(err).Subscribe(fallback)
}

func (s *catchSubscriber[T]) dispose() {
	s.upstream.dispose()
	s.mu.Lock()
	fallback := s.fallback
	s.mu.Unlock()
	if fallback != nil {
		fallback.dispose()
	}
}

// Catch 上游出错时订阅 selector(err) 返回的备用源，备用源的信号代替错误向下游转发
func Catch[T any](selector func(err error) Observable[T]) OperatorFunc[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Create(func(destination Subscriber[T]) {
			subscriber := newCatchSubscriber(destination, selector)
			source.Subscribe(subscriber.upstream)
		})
	}
}

// ============================================================================
// Retry
// ============================================================================

// Retry 出错后重新订阅源，最多 count 次；次数用尽后转发最后一次错误
func Retry[T any](count int) OperatorFunc[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Create(func(destination Subscriber[T]) {
			var (
				mu      sync.Mutex
				current *innerSubscriber[T]
				attempt func(remaining int)
			)
			attempt = func(remaining int) {
				inner := newInnerSubscriber[T](destination)
				inner.onNext = destination.Next
				inner.onComplete = destination.Complete
				inner.onUnsubscribe = destination.Unsubscribe
				inner.onError = func(err error) {
					if remaining <= 0 || destination.IsClosed() {
						destination.Error(err)
						return
					}
					attempt(remaining - 1)
				}
				mu.Lock()
				current = inner
				mu.Unlock()
				source.Subscribe(inner)
			}
			destination.AddTeardown(func() {
				mu.Lock()
				inner := current
				mu.Unlock()
				if inner != nil {
					inner.dispose()
				}
			})
			attempt(count)
		})
	}
}

// ============================================================================
// OnErrorComplete
// ============================================================================

type onErrorCompleteSubscriber[T any] struct {
	destinationForwarder[T]
}

func (s *onErrorCompleteSubscriber[T]) Next(value T) { s.destination.Next(value) }

func (s *onErrorCompleteSubscriber[T]) Error(error) { s.destination.Complete() }

func (s *onErrorCompleteSubscriber[T]) Complete() { s.destination.Complete() }

// OnErrorComplete 把错误变成完成
func OnErrorComplete[T any]() OperatorFunc[T, T] {
	return func(source Observable[T]) Observable[T] {
		return lift(source, func(destination Subscriber[T]) Subscriber[T] {
			return &onErrorCompleteSubscriber[T]{destinationForwarder[T]{destination}}
		})
	}
}
