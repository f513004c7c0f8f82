// Transformation and filtering operators
// 单源变换与过滤操作符：map、filter、buffer、element_at、scan 等
package rxgo

// ============================================================================
// Map / MapError
// ============================================================================

type mapSubscriber[In, Out any] struct {
	destinationForwarder[Out]
	transform func(In) Out
}

func (s *mapSubscriber[In, Out]) Next(value In) {
	if !s.IsClosed() {
		s.destination.Next(s.transform(value))
	}
}

func (s *mapSubscriber[In, Out]) Error(err error) { s.destination.Error(err) }

func (s *mapSubscriber[In, Out]) Complete() { s.destination.Complete() }

// Map 转换每个值
func Map[In, Out any](transform func(value In) Out) OperatorFunc[In, Out] {
	return func(source Observable[In]) Observable[Out] {
		return lift(source, func(destination Subscriber[Out]) Subscriber[In] {
			return &mapSubscriber[In, Out]{destinationForwarder: destinationForwarder[Out]{destination}, transform: transform}
		})
	}
}

type mapErrorSubscriber[T any] struct {
	destinationForwarder[T]
	transform func(error) error
}

func (s *mapErrorSubscriber[T]) Next(value T) { s.destination.Next(value) }

func (s *mapErrorSubscriber[T]) Error(err error) {
	if !s.IsClosed() {
		s.destination.Error(s.transform(err))
	}
}

func (s *mapErrorSubscriber[T]) Complete() { s.destination.Complete() }

// MapError 转换错误，值与完成原样转发
func MapError[T any](transform func(err error) error) OperatorFunc[T, T] {
	return func(source Observable[T]) Observable[T] {
		return lift(source, func(destination Subscriber[T]) Subscriber[T] {
			return &mapErrorSubscriber[T]{destinationForwarder: destinationForwarder[T]{destination}, transform: transform}
		})
	}
}

// ============================================================================
// Filter
// ============================================================================

type filterSubscriber[T any] struct {
	destinationForwarder[T]
	predicate func(T, int) bool
	index     int
}

func (s *filterSubscriber[T]) Next(value T) {
	if s.IsClosed() {
		return
	}
	index := s.index
	s.index++
	if s.predicate(value, index) {
		s.destination.Next(value)
	}
}

func (s *filterSubscriber[T]) Error(err error) { s.destination.Error(err) }

func (s *filterSubscriber[T]) Complete() { s.destination.Complete() }

// Filter 只转发满足谓词的值，index 是该值在上游中的序号（从 0 开始）
func Filter[T any](predicate func(value T, index int) bool) OperatorFunc[T, T] {
	return func(source Observable[T]) Observable[T] {
		return lift(source, func(destination Subscriber[T]) Subscriber[T] {
			return &filterSubscriber[T]{destinationForwarder: destinationForwarder[T]{destination}, predicate: predicate}
		})
	}
}

// ============================================================================
// Scan / Reduce
// ============================================================================

type scanSubscriber[T, A any] struct {
	destinationForwarder[A]
	accumulator func(A, T) A
	state       A
	emitEach    bool
}

func (s *scanSubscriber[T, A]) Next(value T) {
	if s.IsClosed() {
		return
	}
	s.state = s.accumulator(s.state, value)
	if s.emitEach {
		s.destination.Next(s.state)
	}
}

func (s *scanSubscriber[T, A]) Error(err error) { s.destination.Error(err) }

func (s *scanSubscriber[T, A]) Complete() {
	if s.IsClosed() {
		return
	}
	if !s.emitEach {
		s.destination.Next(s.state)
	}
	s.destination.Complete()
}

// Scan 累加并发射每一个中间结果
func Scan[T, A any](seed A, accumulator func(acc A, value T) A) OperatorFunc[T, A] {
	return func(source Observable[T]) Observable[A] {
		return lift(source, func(destination Subscriber[A]) Subscriber[T] {
			return &scanSubscriber[T, A]{destinationForwarder: destinationForwarder[A]{destination}, accumulator: accumulator, state: seed, emitEach: true}
		})
	}
}

// Reduce 累加并在完成时发射最终结果，空序列发射 seed
func Reduce[T, A any](seed A, accumulator func(acc A, value T) A) OperatorFunc[T, A] {
	return func(source Observable[T]) Observable[A] {
		return lift(source, func(destination Subscriber[A]) Subscriber[T] {
			return &scanSubscriber[T, A]{destinationForwarder: destinationForwarder[A]{destination}, accumulator: accumulator, state: seed}
		})
	}
}

// ============================================================================
// BufferCount
// ============================================================================

type bufferCountSubscriber[T any] struct {
	destinationForwarder[[]T]
	size   int
	buffer []T
}

func (s *bufferCountSubscriber[T]) Next(value T) {
	if s.IsClosed() {
		return
	}
	s.buffer = append(s.buffer, value)
	if len(s.buffer) >= s.size {
		full := s.buffer
		s.buffer = make([]T, 0, s.size)
		s.destination.Next(full)
	}
}

func (s *bufferCountSubscriber[T]) Error(err error) {
	s.buffer = nil
	s.destination.Error(err)
}

// Complete 先发射不满的缓冲再完成
func (s *bufferCountSubscriber[T]) Complete() {
	if s.IsClosed() {
		return
	}
	if len(s.buffer) > 0 {
		partial := s.buffer
		s.buffer = nil
		s.destination.Next(partial)
	}
	s.destination.Complete()
}

// Unsubscribe 丢弃不满的缓冲
func (s *bufferCountSubscriber[T]) Unsubscribe() {
	s.buffer = nil
	s.destination.Unsubscribe()
}

// BufferCount 每收集 size 个值发射一次切片；取消时不满的缓冲被丢弃，完成时才会发射
func BufferCount[T any](size int) OperatorFunc[T, []T] {
	if size < 1 {
		size = 1
	}
	return func(source Observable[T]) Observable[[]T] {
		return lift(source, func(destination Subscriber[[]T]) Subscriber[T] {
			return &bufferCountSubscriber[T]{destinationForwarder: destinationForwarder[[]T]{destination}, size: size, buffer: make([]T, 0, size)}
		})
	}
}

// ============================================================================
// ElementAt
// ============================================================================

type elementAtSubscriber[T any] struct {
	destinationForwarder[T]
	index      int
	observed   int
	hasDefault bool
	fallback   func() T
}

func (s *elementAtSubscriber[T]) Next(value T) {
	if s.IsClosed() {
		return
	}
	if s.observed == s.index {
		s.observed++
		s.destination.Next(value)
		s.destination.Complete()
		return
	}
	s.observed++
}

func (s *elementAtSubscriber[T]) Error(err error) {
	s.destination.Error(&ElementAtError{Upstream: err})
}

func (s *elementAtSubscriber[T]) Complete() {
	if s.IsClosed() {
		return
	}
	if s.hasDefault {
		s.destination.Next(s.fallback())
		s.destination.Complete()
		return
	}
	s.destination.Error(&ElementAtError{OutOfRange: &IndexOutOfRangeError{
		RequestedIndex: s.index,
		ObservedNexts:  s.observed,
	}})
}

// ElementAt 只发射第 index 个值然后完成。
// 上游在此之前完成时以 IndexOutOfRange 出错，上游错误被包装为 ElementAtError。
func ElementAt[T any](index int) OperatorFunc[T, T] {
	return func(source Observable[T]) Observable[T] {
		return lift(source, func(destination Subscriber[T]) Subscriber[T] {
			return &elementAtSubscriber[T]{destinationForwarder: destinationForwarder[T]{destination}, index: index}
		})
	}
}

// ElementAtOrElse 与 ElementAt 相同，但上游过早完成时发射 fallback 的结果
func ElementAtOrElse[T any](index int, fallback func() T) OperatorFunc[T, T] {
	return func(source Observable[T]) Observable[T] {
		return lift(source, func(destination Subscriber[T]) Subscriber[T] {
			return &elementAtSubscriber[T]{destinationForwarder: destinationForwarder[T]{destination}, index: index, hasDefault: true, fallback: fallback}
		})
	}
}

// ============================================================================
// Find / FindIndex
// ============================================================================

type findSubscriber[T, Out any] struct {
	destinationForwarder[Out]
	predicate func(T) bool
	project   func(value T, index int) Out
	observed  int
}

func (s *findSubscriber[T, Out]) Next(value T) {
	if s.IsClosed() {
		return
	}
	index := s.observed
	s.observed++
	if s.predicate(value) {
		s.destination.Next(s.project(value, index))
		s.destination.Complete()
	}
}

func (s *findSubscriber[T, Out]) Error(err error) {
	s.destination.Error(&FindError{Upstream: err})
}

func (s *findSubscriber[T, Out]) Complete() {
	if s.IsClosed() {
		return
	}
	reason := ErrNoMatch
	if s.observed == 0 {
		reason = ErrSequenceEmpty
	}
	s.destination.Error(&FindError{Reason: reason})
}

func find[T, Out any](predicate func(T) bool, project func(T, int) Out) OperatorFunc[T, Out] {
	return func(source Observable[T]) Observable[Out] {
		return lift(source, func(destination Subscriber[Out]) Subscriber[T] {
			return &findSubscriber[T, Out]{destinationForwarder: destinationForwarder[Out]{destination}, predicate: predicate, project: project}
		})
	}
}

// Find 发射第一个满足谓词的值然后完成。
// 源在此之前完成时以 FindError 出错：没有任何值时 Reason 为 ErrSequenceEmpty，否则为 ErrNoMatch
func Find[T any](predicate func(value T) bool) OperatorFunc[T, T] {
	return find(predicate, func(value T, _ int) T { return value })
}

// FindIndex 与 Find 相同，但发射的是该值的序号
func FindIndex[T any](predicate func(value T) bool) OperatorFunc[T, int] {
	return find(predicate, func(_ T, index int) int { return index })
}

// ============================================================================
// Enumerate / FilterMap
// ============================================================================

type enumerateSubscriber[T any] struct {
	destinationForwarder[Pair[T, int]]
	index int
}

func (s *enumerateSubscriber[T]) Next(value T) {
	if s.IsClosed() {
		return
	}
	s.destination.Next(Pair[T, int]{First: value, Second: s.index})
	s.index++
}

func (s *enumerateSubscriber[T]) Error(err error) { s.destination.Error(err) }

func (s *enumerateSubscriber[T]) Complete() { s.destination.Complete() }

// Enumerate 给每个值附上从 0 开始的序号
func Enumerate[T any]() OperatorFunc[T, Pair[T, int]] {
	return func(source Observable[T]) Observable[Pair[T, int]] {
		return lift(source, func(destination Subscriber[Pair[T, int]]) Subscriber[T] {
			return &enumerateSubscriber[T]{destinationForwarder: destinationForwarder[Pair[T, int]]{destination}}
		})
	}
}

type filterMapSubscriber[In, Out any] struct {
	destinationForwarder[Out]
	mapper func(In) (Out, bool)
}

func (s *filterMapSubscriber[In, Out]) Next(value In) {
	if s.IsClosed() {
		return
	}
	if mapped, ok := s.mapper(value); ok {
		s.destination.Next(mapped)
	}
}

func (s *filterMapSubscriber[In, Out]) Error(err error) { s.destination.Error(err) }

func (s *filterMapSubscriber[In, Out]) Complete() { s.destination.Complete() }

// FilterMap 转换每个值，mapper 返回 false 时丢弃该值
func FilterMap[In, Out any](mapper func(value In) (Out, bool)) OperatorFunc[In, Out] {
	return func(source Observable[In]) Observable[Out] {
		return lift(source, func(destination Subscriber[Out]) Subscriber[In] {
			return &filterMapSubscriber[In, Out]{destinationForwarder: destinationForwarder[Out]{destination}, mapper: mapper}
		})
	}
}

// ============================================================================
// Take / Skip / TakeWhile / First
// ============================================================================

type takeSubscriber[T any] struct {
	destinationForwarder[T]
	remaining int
}

func (s *takeSubscriber[T]) Next(value T) {
	if s.IsClosed() || s.remaining <= 0 {
		return
	}
	s.remaining--
	s.destination.Next(value)
	if s.remaining == 0 {
		s.destination.Complete()
	}
}

func (s *takeSubscriber[T]) Error(err error) { s.destination.Error(err) }

func (s *takeSubscriber[T]) Complete() { s.destination.Complete() }

// Take 只取前 count 个值，count 为 0 时订阅后立即完成
func Take[T any](count int) OperatorFunc[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Create(func(destination Subscriber[T]) {
			if count <= 0 {
				destination.Complete()
				return
			}
			source.Subscribe(&takeSubscriber[T]{destinationForwarder: destinationForwarder[T]{destination}, remaining: count})
		})
	}
}

type skipSubscriber[T any] struct {
	destinationForwarder[T]
	remaining int
}

func (s *skipSubscriber[T]) Next(value T) {
	if s.remaining > 0 {
		s.remaining--
		return
	}
	s.destination.Next(value)
}

func (s *skipSubscriber[T]) Error(err error) { s.destination.Error(err) }

func (s *skipSubscriber[T]) Complete() { s.destination.Complete() }

// Skip 跳过前 count 个值
func Skip[T any](count int) OperatorFunc[T, T] {
	return func(source Observable[T]) Observable[T] {
		return lift(source, func(destination Subscriber[T]) Subscriber[T] {
			return &skipSubscriber[T]{destinationForwarder: destinationForwarder[T]{destination}, remaining: count}
		})
	}
}

type takeWhileSubscriber[T any] struct {
	destinationForwarder[T]
	predicate func(T, int) bool
	index     int
}

func (s *takeWhileSubscriber[T]) Next(value T) {
	if s.IsClosed() {
		return
	}
	index := s.index
	s.index++
	if !s.predicate(value, index) {
		s.destination.Complete()
		return
	}
	s.destination.Next(value)
}

func (s *takeWhileSubscriber[T]) Error(err error) { s.destination.Error(err) }

func (s *takeWhileSubscriber[T]) Complete() { s.destination.Complete() }

// TakeWhile 谓词第一次不满足时完成
func TakeWhile[T any](predicate func(value T, index int) bool) OperatorFunc[T, T] {
	return func(source Observable[T]) Observable[T] {
		return lift(source, func(destination Subscriber[T]) Subscriber[T] {
			return &takeWhileSubscriber[T]{destinationForwarder: destinationForwarder[T]{destination}, predicate: predicate}
		})
	}
}

type firstSubscriber[T any] struct {
	destinationForwarder[T]
}

func (s *firstSubscriber[T]) Next(value T) {
	if s.IsClosed() {
		return
	}
	s.destination.Next(value)
	s.destination.Complete()
}

func (s *firstSubscriber[T]) Error(err error) { s.destination.Error(err) }

func (s *firstSubscriber[T]) Complete() { s.destination.Error(ErrSequenceEmpty) }

// First 发射第一个值后完成；空序列以 ErrSequenceEmpty 出错
func First[T any]() OperatorFunc[T, T] {
	return func(source Observable[T]) Observable[T] {
		return lift(source, func(destination Subscriber[T]) Subscriber[T] {
			return &firstSubscriber[T]{destinationForwarder[T]{destination}}
		})
	}
}

type isEmptySubscriber[T any] struct {
	destinationForwarder[bool]
}

func (s *isEmptySubscriber[T]) Next(T) {
	if s.IsClosed() {
		return
	}
	s.destination.Next(false)
	s.destination.Complete()
}

func (s *isEmptySubscriber[T]) Error(err error) { s.destination.Error(err) }

func (s *isEmptySubscriber[T]) Complete() {
	if s.IsClosed() {
		return
	}
	s.destination.Next(true)
	s.destination.Complete()
}

// IsEmpty 第一个值到达时发射 false，没有值就完成时发射 true
func IsEmpty[T any]() OperatorFunc[T, bool] {
	return func(source Observable[T]) Observable[bool] {
		return lift(source, func(destination Subscriber[bool]) Subscriber[T] {
			return &isEmptySubscriber[T]{destinationForwarder[bool]{destination}}
		})
	}
}

// ============================================================================
// 副作用
// ============================================================================

type tapSubscriber[T any] struct {
	destinationForwarder[T]
	observer Observer[T]
}

func (s *tapSubscriber[T]) Next(value T) {
	if s.IsClosed() {
		return
	}
	s.observer.Next(value)
	s.destination.Next(value)
}

func (s *tapSubscriber[T]) Error(err error) {
	if s.IsClosed() {
		return
	}
	s.observer.Error(err)
	s.destination.Error(err)
}

func (s *tapSubscriber[T]) Complete() {
	if s.IsClosed() {
		return
	}
	s.observer.Complete()
	s.destination.Complete()
}

// Tap 在转发之前把信号交给旁路观察者
func Tap[T any](observer Observer[T]) OperatorFunc[T, T] {
	return func(source Observable[T]) Observable[T] {
		return lift(source, func(destination Subscriber[T]) Subscriber[T] {
			return &tapSubscriber[T]{destinationForwarder: destinationForwarder[T]{destination}, observer: observer}
		})
	}
}

// Finalize 订阅关闭时（无论以何种方式）执行 callback
func Finalize[T any](callback func()) OperatorFunc[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Create(func(destination Subscriber[T]) {
			destination.AddTeardown(callback)
			source.Subscribe(destination)
		})
	}
}

// ============================================================================
// StartWith / EndWith
// ============================================================================

// StartWith 订阅时先发射给定的值
func StartWith[T any](values ...T) OperatorFunc[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Create(func(destination Subscriber[T]) {
			for _, value := range values {
				if destination.IsClosed() {
					return
				}
				destination.Next(value)
			}
			source.Subscribe(destination)
		})
	}
}

type endWithSubscriber[T any] struct {
	destinationForwarder[T]
	values []T
}

func (s *endWithSubscriber[T]) Next(value T) { s.destination.Next(value) }

func (s *endWithSubscriber[T]) Error(err error) { s.destination.Error(err) }

func (s *endWithSubscriber[T]) Complete() {
	for _, value := range s.values {
		if s.IsClosed() {
			return
		}
		s.destination.Next(value)
	}
	s.destination.Complete()
}

// EndWith 上游完成后再发射给定的值；出错时不发射
func EndWith[T any](values ...T) OperatorFunc[T, T] {
	return func(source Observable[T]) Observable[T] {
		return lift(source, func(destination Subscriber[T]) Subscriber[T] {
			return &endWithSubscriber[T]{destinationForwarder: destinationForwarder[T]{destination}, values: values}
		})
	}
}

// ============================================================================
// Pairwise / DistinctUntilChanged
// ============================================================================

type pairwiseSubscriber[T any] struct {
	destinationForwarder[[2]T]
	previous T
	primed   bool
}

func (s *pairwiseSubscriber[T]) Next(value T) {
	if s.IsClosed() {
		return
	}
	if s.primed {
		s.destination.Next([2]T{s.previous, value})
	}
	s.previous = value
	s.primed = true
}

func (s *pairwiseSubscriber[T]) Error(err error) { s.destination.Error(err) }

func (s *pairwiseSubscriber[T]) Complete() { s.destination.Complete() }

// Pairwise 发射 (上一个, 当前) 值对，第一个值只作为起点
func Pairwise[T any]() OperatorFunc[T, [2]T] {
	return func(source Observable[T]) Observable[[2]T] {
		return lift(source, func(destination Subscriber[[2]T]) Subscriber[T] {
			return &pairwiseSubscriber[T]{destinationForwarder: destinationForwarder[[2]T]{destination}}
		})
	}
}

type distinctUntilChangedSubscriber[T comparable] struct {
	destinationForwarder[T]
	last   T
	primed bool
}

func (s *distinctUntilChangedSubscriber[T]) Next(value T) {
	if s.IsClosed() {
		return
	}
	if s.primed && s.last == value {
		return
	}
	s.last = value
	s.primed = true
	s.destination.Next(value)
}

func (s *distinctUntilChangedSubscriber[T]) Error(err error) { s.destination.Error(err) }

func (s *distinctUntilChangedSubscriber[T]) Complete() { s.destination.Complete() }

// DistinctUntilChanged 忽略与上一个值相同的值
func DistinctUntilChanged[T comparable]() OperatorFunc[T, T] {
	return func(source Observable[T]) Observable[T] {
		return lift(source, func(destination Subscriber[T]) Subscriber[T] {
			return &distinctUntilChangedSubscriber[T]{destinationForwarder: destinationForwarder[T]{destination}}
		})
	}
}

// ============================================================================
// Materialize / Dematerialize
// ============================================================================

type materializeSubscriber[T any] struct {
	destinationForwarder[ObserverNotification[T]]
}

func (s *materializeSubscriber[T]) Next(value T) {
	if !s.IsClosed() {
		s.destination.Next(Next(value))
	}
}

func (s *materializeSubscriber[T]) Error(err error) {
	if s.IsClosed() {
		return
	}
	s.destination.Next(ErrorNotification[T](err))
	s.destination.Complete()
}

func (s *materializeSubscriber[T]) Complete() {
	if s.IsClosed() {
		return
	}
	s.destination.Next(CompleteNotification[T]())
	s.destination.Complete()
}

// Materialize 把信号变成通知值，上游的终止信号之后输出完成
func Materialize[T any]() OperatorFunc[T, ObserverNotification[T]] {
	return func(source Observable[T]) Observable[ObserverNotification[T]] {
		return lift(source, func(destination Subscriber[ObserverNotification[T]]) Subscriber[T] {
			return &materializeSubscriber[T]{destinationForwarder[ObserverNotification[T]]{destination}}
		})
	}
}

type dematerializeSubscriber[T any] struct {
	destinationForwarder[T]
}

func (s *dematerializeSubscriber[T]) Next(notification ObserverNotification[T]) {
	if !s.IsClosed() {
		notification.Accept(s.destination)
	}
}

func (s *dematerializeSubscriber[T]) Error(err error) { s.destination.Error(err) }

func (s *dematerializeSubscriber[T]) Complete() { s.destination.Complete() }

// Dematerialize 把通知值还原为信号
func Dematerialize[T any]() OperatorFunc[ObserverNotification[T], T] {
	return func(source Observable[ObserverNotification[T]]) Observable[T] {
		return lift(source, func(destination Subscriber[T]) Subscriber[ObserverNotification[T]] {
			return &dematerializeSubscriber[T]{destinationForwarder[T]{destination}}
		})
	}
}
