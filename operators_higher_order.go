// Higher-order operators
// 高阶操作符：merge / concat / switch / exhaust 共用一个内外层订阅状态机
package rxgo

import (
	"sync"
)

// ============================================================================
// 内层订阅者
// ============================================================================

// innerSubscriber 高阶操作符的内层订阅者：拥有自己的订阅记录，信号交给回调处理。
// dispose 只关闭自己，不触发任何回调；Unsubscribe 由上游发起，会通知 onUnsubscribe。
type innerSubscriber[T any] struct {
	subscription  *CompositeSubscription
	downstream    SubscriptionLike
	onNext        func(value T)
	onError       func(err error)
	onComplete    func()
	onUnsubscribe func()
}

func newInnerSubscriber[T any](downstream SubscriptionLike) *innerSubscriber[T] {
	return &innerSubscriber[T]{subscription: NewSubscription(), downstream: downstream}
}

func (s *innerSubscriber[T]) Next(value T) {
	if !s.IsClosed() && s.onNext != nil {
		s.onNext(value)
	}
}

func (s *innerSubscriber[T]) Error(err error) {
	if s.subscription.IsClosed() {
		return
	}
	s.subscription.Unsubscribe()
	if s.onError != nil {
		s.onError(err)
	}
}

func (s *innerSubscriber[T]) Complete() {
	if s.subscription.IsClosed() {
		return
	}
	s.subscription.Unsubscribe()
	if s.onComplete != nil {
		s.onComplete()
	}
}

func (s *innerSubscriber[T]) IsClosed() bool {
	return s.subscription.IsClosed() || s.downstream.IsClosed()
}

func (s *innerSubscriber[T]) Unsubscribe() {
	if s.subscription.IsClosed() {
		return
	}
	s.subscription.Unsubscribe()
	if s.onUnsubscribe != nil {
		s.onUnsubscribe()
	}
}

func (s *innerSubscriber[T]) AddTeardown(teardown Teardown) {
	s.subscription.AddTeardown(teardown)
}

func (s *innerSubscriber[T]) dispose() {
	s.subscription.Unsubscribe()
}

// ============================================================================
// HigherOrderSubscriber
// ============================================================================

// FlattenStrategy 外层发射新的内层 Observable 时的处理策略
type FlattenStrategy int

const (
	// MergeStrategy 并发订阅，超过上限的按先进先出排队
	MergeStrategy FlattenStrategy = iota
	// ConcatStrategy 严格顺序订阅，完成后额外向下游发送一次取消
	ConcatStrategy
	// SwitchStrategy 新的内层到达时取消当前内层
	SwitchStrategy
	// ExhaustStrategy 有活动内层时丢弃新的内层
	ExhaustStrategy
)

// String 返回策略名称
func (s FlattenStrategy) String() string {
	switch s {
	case MergeStrategy:
		return "merge"
	case ConcatStrategy:
		return "concat"
	case SwitchStrategy:
		return "switch"
	default:
		return "exhaust"
	}
}

// higherOrderState 外层与下游的状态位以及仍未完成、仍未取消的内层数量
type higherOrderState struct {
	outer           SubscriberState
	downstream      SubscriberState
	nonCompleted    int
	nonUnsubscribed int
}

func (s *higherOrderState) innerSubscribed() {
	s.nonCompleted++
	s.nonUnsubscribed++
}

func (s *higherOrderState) innerCompleted() {
	s.nonCompleted--
	s.nonUnsubscribed--
}

func (s *higherOrderState) innerUnsubscribed() {
	s.nonUnsubscribed--
}

func (s *higherOrderState) canDownstreamComplete() bool {
	return !s.downstream.IsClosed() && s.outer.IsCompleted() && s.nonCompleted == 0
}

func (s *higherOrderState) canDownstreamUnsubscribe() bool {
	return !s.downstream.IsClosed() && s.outer.IsClosed() && s.nonUnsubscribed == 0
}

// HigherOrderSubscriber 订阅外层的 Observable 流，并按策略管理内层订阅。
// 外层完成并且没有排队或活动的内层全部完成时下游完成；
// 外层结束后剩下的内层都是被取消（而非完成）时下游取消。
// 任何内层或外层错误会取消其余所有内层并立即转发。
type HigherOrderSubscriber[T any] struct {
	mu          sync.Mutex
	destination Subscriber[T]
	outer       *CompositeSubscription
	strategy    FlattenStrategy
	limit       int
	queue       []Observable[T]
	inners      map[*innerSubscriber[T]]struct{}
	state       higherOrderState
}

// NewHigherOrderSubscriber 创建高阶订阅者，merge 策略的并发上限来自 WithConcurrencyLimit
func NewHigherOrderSubscriber[T any](destination Subscriber[T], strategy FlattenStrategy, options ...Option) *HigherOrderSubscriber[T] {
	config := newConfig(options)
	limit := config.ConcurrencyLimit
	switch {
	case strategy != MergeStrategy:
		limit = 1
	case limit < 1:
		limit = 1
	}

	s := &HigherOrderSubscriber[T]{
		destination: destination,
		outer:       NewSubscription(),
		strategy:    strategy,
		limit:       limit,
		inners:      make(map[*innerSubscriber[T]]struct{}),
	}
	destination.AddTeardown(s.dispose)
	return s
}

// NewConcurrentSubscriber 最多同时订阅 limit 个内层，其余按先进先出排队；
// 活动内层完成或被取消时提升下一个排队的内层
func NewConcurrentSubscriber[T any](destination Subscriber[T], limit int, options ...Option) *HigherOrderSubscriber[T] {
	return NewHigherOrderSubscriber(destination, MergeStrategy, append(options, WithConcurrencyLimit(limit))...)
}

// Next 外层发射了一个新的内层
func (s *HigherOrderSubscriber[T]) Next(inner Observable[T]) {
	if s.IsClosed() {
		return
	}

	s.mu.Lock()
	var replaced []*innerSubscriber[T]
	switch s.strategy {
	case SwitchStrategy:
		for active := range s.inners {
			replaced = append(replaced, active)
			delete(s.inners, active)
			s.state.innerCompleted()
		}
	case ExhaustStrategy:
		if len(s.inners) > 0 {
			s.mu.Unlock()
			return
		}
	default:
		if len(s.inners) >= s.limit {
			s.queue = append(s.queue, inner)
			s.mu.Unlock()
			return
		}
	}
	s.mu.Unlock()

	for _, active := range replaced {
		active.dispose()
	}
	s.subscribeInner(inner)
}

// Error 外层出错
func (s *HigherOrderSubscriber[T]) Error(err error) {
	s.fail(err)
}

// Complete 外层完成，等待内层
func (s *HigherOrderSubscriber[T]) Complete() {
	s.mu.Lock()
	if s.state.outer.IsClosed() {
		s.mu.Unlock()
		return
	}
	s.state.outer.MarkComplete()
	s.mu.Unlock()

	s.outer.Unsubscribe()
	s.tryFinish()
}

// IsClosed 外层链路或下游已关闭
func (s *HigherOrderSubscriber[T]) IsClosed() bool {
	return s.outer.IsClosed() || s.destination.IsClosed()
}

// Unsubscribe 由上游发起的取消：关闭所有内层并取消下游
func (s *HigherOrderSubscriber[T]) Unsubscribe() {
	s.mu.Lock()
	if s.state.downstream.IsClosed() {
		s.mu.Unlock()
		return
	}
	s.state.outer.MarkUnsubscribe()
	s.state.downstream.MarkUnsubscribe()
	s.mu.Unlock()

	s.dispose()
	s.destination.Unsubscribe()
}

// AddTeardown 清理动作属于外层链路
func (s *HigherOrderSubscriber[T]) AddTeardown(teardown Teardown) {
	s.outer.AddTeardown(teardown)
}

// Tick 转发节拍
func (s *HigherOrderSubscriber[T]) Tick(tick Tick) {
	forwardTick(s.destination, tick)
}

// ActiveCount 活动的内层数量
func (s *HigherOrderSubscriber[T]) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inners)
}

// QueuedCount 排队等待订阅的内层数量
func (s *HigherOrderSubscriber[T]) QueuedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *HigherOrderSubscriber[T]) subscribeInner(source Observable[T]) {
	inner := newInnerSubscriber[T](s.destination)
	inner.onNext = s.destination.Next
	inner.onError = s.fail
	inner.onComplete = func() { s.innerFinished(inner, true) }
	inner.onUnsubscribe = func() { s.innerFinished(inner, false) }

	s.mu.Lock()
	s.inners[inner] = struct{}{}
	s.state.innerSubscribed()
	s.mu.Unlock()

	source.Subscribe(inner)
}

// innerFinished 内层完成或被上游取消：释放名额，提升排队的内层，然后检查下游能否结束
func (s *HigherOrderSubscriber[T]) innerFinished(inner *innerSubscriber[T], completed bool) {
	s.mu.Lock()
	if _, ok := s.inners[inner]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.inners, inner)
	if completed {
		s.state.innerCompleted()
	} else {
		s.state.innerUnsubscribed()
	}
	var next Observable[T]
	if len(s.queue) > 0 && len(s.inners) < s.limit && !s.state.downstream.IsClosed() {
		next = s.queue[0]
		s.queue = s.queue[1:]
	}
	s.mu.Unlock()

	if next != nil {
		s.subscribeInner(next)
	}
	s.tryFinish()
}

func (s *HigherOrderSubscriber[T]) tryFinish() {
	s.mu.Lock()
	if len(s.queue) > 0 {
		s.mu.Unlock()
		return
	}
	complete := s.state.canDownstreamComplete()
	unsubscribe := !complete && s.state.canDownstreamUnsubscribe()
	switch {
	case complete:
		s.state.downstream.MarkComplete()
	case unsubscribe:
		s.state.downstream.MarkUnsubscribe()
	default:
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if complete {
		s.destination.Complete()
		if s.strategy == ConcatStrategy {
			s.destination.Unsubscribe()
		}
		return
	}
	s.destination.Unsubscribe()
}

func (s *HigherOrderSubscriber[T]) fail(err error) {
	s.mu.Lock()
	if s.state.downstream.IsClosed() {
		s.mu.Unlock()
		return
	}
	s.state.outer.MarkError()
	s.state.downstream.MarkError()
	s.mu.Unlock()

	s.dispose()
	s.destination.Error(err)
}

// dispose 静默关闭外层链路和所有内层，丢弃排队的内层
func (s *HigherOrderSubscriber[T]) dispose() {
	s.mu.Lock()
	inners := make([]*innerSubscriber[T], 0, len(s.inners))
	for inner := range s.inners {
		inners = append(inners, inner)
	}
	clear(s.inners)
	s.queue = nil
	s.mu.Unlock()

	s.outer.Unsubscribe()
	for _, inner := range inners {
		inner.dispose()
	}
}

// ============================================================================
// 操作符
// ============================================================================

func flatten[T any](strategy FlattenStrategy, options []Option) OperatorFunc[Observable[T], T] {
	return func(source Observable[Observable[T]]) Observable[T] {
		return lift(source, func(destination Subscriber[T]) Subscriber[Observable[T]] {
			return NewHigherOrderSubscriber(destination, strategy, options...)
		})
	}
}

func flatMap[In, Out any](strategy FlattenStrategy, project func(In) Observable[Out], options []Option) OperatorFunc[In, Out] {
	return Compose(Map(project), flatten[Out](strategy, options))
}

// MergeAll 并发订阅所有内层，上限由 WithConcurrencyLimit 指定（0 视为 1，默认不限）
func MergeAll[T any](options ...Option) OperatorFunc[Observable[T], T] {
	return flatten[T](MergeStrategy, options)
}

// MergeMap 把每个值映射为内层并合并
func MergeMap[In, Out any](project func(value In) Observable[Out], options ...Option) OperatorFunc[In, Out] {
	return flatMap(MergeStrategy, project, options)
}

// Merge 合并多个源，所有源都完成时完成
func Merge[T any](sources ...Observable[T]) Observable[T] {
	return MergeAll[T]()(FromSlice(sources))
}

// MergeWithLimit 合并多个源，最多同时订阅 limit 个；
// 排队期间已经完成的源在被订阅时立即完成，同样计入完成数
func MergeWithLimit[T any](limit int, sources ...Observable[T]) Observable[T] {
	return MergeAll[T](WithConcurrencyLimit(limit))(FromSlice(sources))
}

// ConcatAll 按顺序逐个订阅内层
func ConcatAll[T any](options ...Option) OperatorFunc[Observable[T], T] {
	return flatten[T](ConcatStrategy, options)
}

// ConcatMap 把每个值映射为内层并按顺序连接
func ConcatMap[In, Out any](project func(value In) Observable[Out], options ...Option) OperatorFunc[In, Out] {
	return flatMap(ConcatStrategy, project, options)
}

// Concat 依次连接多个源
func Concat[T any](sources ...Observable[T]) Observable[T] {
	return ConcatAll[T]()(FromSlice(sources))
}

// SwitchAll 只保留最新的内层
func SwitchAll[T any](options ...Option) OperatorFunc[Observable[T], T] {
	return flatten[T](SwitchStrategy, options)
}

// SwitchMap 把每个值映射为内层，新的内层取消旧的
func SwitchMap[In, Out any](project func(value In) Observable[Out], options ...Option) OperatorFunc[In, Out] {
	return flatMap(SwitchStrategy, project, options)
}

// ExhaustAll 有活动内层时忽略新的内层
func ExhaustAll[T any](options ...Option) OperatorFunc[Observable[T], T] {
	return flatten[T](ExhaustStrategy, options)
}

// ExhaustMap 把每个值映射为内层，忙碌时丢弃
func ExhaustMap[In, Out any](project func(value In) Observable[Out], options ...Option) OperatorFunc[In, Out] {
	return flatMap(ExhaustStrategy, project, options)
}
