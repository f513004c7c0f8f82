// Utility operators
// 工具操作符：订阅时回调、错误与值之间的 Result 转换
package rxgo

// ============================================================================
// Result
// ============================================================================

// Result 值或错误，Err 为 nil 时 Value 有效
type Result[T any] struct {
	Value T
	Err   error
}

// Ok 包装一个值
func Ok[T any](value T) Result[T] {
	return Result[T]{Value: value}
}

// Fail 包装一个错误
func Fail[T any](err error) Result[T] {
	return Result[T]{Err: err}
}

// IsOk 是否为值
func (r Result[T]) IsOk() bool {
	return r.Err == nil
}

// ============================================================================
// IntoResult / TryCapture / LiftResult
// ============================================================================

type intoResultSubscriber[T any] struct {
	destinationForwarder[Result[T]]
}

func (s *intoResultSubscriber[T]) Next(value T) {
	if !s.IsClosed() {
		s.destination.Next(Ok(value))
	}
}

// Error 上游的错误变成一个值，下游不会因此关闭
func (s *intoResultSubscriber[T]) Error(err error) {
	if !s.IsClosed() {
		s.destination.Next(Fail[T](err))
	}
}

func (s *intoResultSubscriber[T]) Complete() { s.destination.Complete() }

// IntoResult 把值和错误都变成 Result 值。上游出错后下游保持打开，直到被取消
func IntoResult[T any]() OperatorFunc[T, Result[T]] {
	return func(source Observable[T]) Observable[Result[T]] {
		return lift(source, func(destination Subscriber[Result[T]]) Subscriber[T] {
			return &intoResultSubscriber[T]{destinationForwarder[Result[T]]{destination}}
		})
	}
}

// TryCapture 捕获上游错误，等同于 IntoResult
func TryCapture[T any]() OperatorFunc[T, Result[T]] {
	return IntoResult[T]()
}

type liftResultSubscriber[T any] struct {
	destinationForwarder[T]
}

func (s *liftResultSubscriber[T]) Next(result Result[T]) {
	if s.IsClosed() {
		return
	}
	if result.Err != nil {
		s.destination.Error(result.Err)
		return
	}
	s.destination.Next(result.Value)
}

func (s *liftResultSubscriber[T]) Error(err error) { s.destination.Error(err) }

func (s *liftResultSubscriber[T]) Complete() { s.destination.Complete() }

// LiftResult IntoResult 的逆操作：值照常发射，错误值变成真正的错误
func LiftResult[T any]() OperatorFunc[Result[T], T] {
	return func(source Observable[Result[T]]) Observable[T] {
		return lift(source, func(destination Subscriber[T]) Subscriber[Result[T]] {
			return &liftResultSubscriber[T]{destinationForwarder[T]{destination}}
		})
	}
}

// ============================================================================
// OnSubscribe
// ============================================================================

// OnSubscribe 订阅上游之前先用下游调用 callback，callback 可以直接向下游发射。
// callback 关闭了下游时不再订阅上游
func OnSubscribe[T any](callback func(destination Subscriber[T])) OperatorFunc[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Create(func(destination Subscriber[T]) {
			callback(destination)
			if !destination.IsClosed() {
				source.Subscribe(destination)
			}
		})
	}
}
