// Subscribing through the world
// 通过世界订阅：订阅命令在目标实体上寻找 Observable 组件，找不到时在之后的更新中有限次重试，
// 仍然打开的订阅由一个订阅实体持有
package ecs

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/xinjiayu/rxgo/v2"
)

// DefaultSubscribeMaxRetries 订阅命令找不到目标时的默认重试次数
const DefaultSubscribeMaxRetries = 3

var (
	// ErrNotAnObservable 目标实体上没有对应类型的 Observable 组件
	ErrNotAnObservable = errors.New("ecs: target has no observable component")
	// ErrSelfSubscribe 主题不能订阅自己
	ErrSelfSubscribe = errors.New("ecs: observable cannot subscribe to itself")
)

// SubscribeErrorKind 订阅失败的原因
type SubscribeErrorKind int

const (
	// NotAnObservable 重试用尽后目标上仍然没有 Observable 组件
	NotAnObservable SubscribeErrorKind = iota
	// SelfSubscribe 把不允许自订阅的主题订阅到它自己
	SelfSubscribe
)

// String 返回原因名称
func (k SubscribeErrorKind) String() string {
	switch k {
	case NotAnObservable:
		return "not_an_observable"
	case SelfSubscribe:
		return "self_subscribe"
	default:
		return fmt.Sprintf("SubscribeErrorKind(%d)", int(k))
	}
}

// SubscribeError 订阅命令失败，交给世界的 ErrorHandler 处理
type SubscribeError struct {
	Kind         SubscribeErrorKind
	Target       Entity
	Subscription Entity
	Attempts     int
}

func (e *SubscribeError) Error() string {
	return fmt.Sprintf("ecs: subscribe to %s failed after %d attempt(s): %v", e.Target, e.Attempts, e.Unwrap())
}

func (e *SubscribeError) Unwrap() error {
	if e.Kind == SelfSubscribe {
		return ErrSelfSubscribe
	}
	return ErrNotAnObservable
}

// ErrorHandler 处理订阅命令的失败
type ErrorHandler func(world *World, err *SubscribeError)

// LogSubscribeError 默认处理：记录警告并继续
func LogSubscribeError(world *World, err *SubscribeError) {
	world.Logger().Warn("ecs: subscribe command abandoned",
		slog.String("kind", err.Kind.String()),
		slog.String("target", err.Target.String()),
		slog.Int("attempts", err.Attempts),
	)
}

// ============================================================================
// 组件
// ============================================================================

// ObservableComponent 挂在实体上的 Observable
type ObservableComponent[T any] struct {
	Observable       rxgo.Observable[T]
	selfSubscribable bool
}

// NewObservableComponent 包装 Observable；实现了 CanSelfSubscribe 的源（主题）沿用它的答案
func NewObservableComponent[T any](source rxgo.Observable[T]) ObservableComponent[T] {
	selfSubscribable := true
	if marker, ok := source.(interface{ CanSelfSubscribe() bool }); ok {
		selfSubscribable = marker.CanSelfSubscribe()
	}
	return ObservableComponent[T]{Observable: source, selfSubscribable: selfSubscribable}
}

// CanSelfSubscribe 是否允许把这个 Observable 订阅到它自己
func (c ObservableComponent[T]) CanSelfSubscribe() bool {
	return c.selfSubscribable
}

// SubscriptionComponent 订阅实体持有的订阅
type SubscriptionComponent struct {
	Subscription rxgo.Subscription
	Target       Entity
}

// ============================================================================
// 订阅命令
// ============================================================================

type subscribeCommand[T any] struct {
	target       Entity
	subscription Entity
	destination  rxgo.Observer[T]
	remaining    int
	attempts     int
}

// SubscribeTo 提交订阅命令，返回预留的订阅实体句柄。
// 订阅在 Flush 时建立；只有订阅仍然打开时才会创建订阅实体，销毁该实体即取消订阅
func SubscribeTo[T any](w *World, target Entity, destination rxgo.Observer[T]) Entity {
	command := &subscribeCommand[T]{
		target:       target,
		subscription: NewEntity(),
		destination:  destination,
		remaining:    w.config.SubscribeMaxRetries,
	}
	w.mu.Lock()
	w.reserved[command.subscription] = true
	w.mu.Unlock()
	w.queue(command.apply)
	return command.subscription
}

// Unsubscribe 在下一次 Flush 时销毁订阅实体；订阅命令还没有执行时直接放弃它
func Unsubscribe(w *World, subscription Entity) {
	w.queue(func(world *World) {
		world.mu.Lock()
		_, pending := world.reserved[subscription]
		if pending {
			world.reserved[subscription] = false
		}
		world.mu.Unlock()
		if !pending {
			world.Despawn(subscription)
		}
	})
}

// resolve 结束预留，返回预留是否仍然有效
func (c *subscribeCommand[T]) resolve(world *World) bool {
	world.mu.Lock()
	defer world.mu.Unlock()
	live := world.reserved[c.subscription]
	delete(world.reserved, c.subscription)
	return live
}

func (c *subscribeCommand[T]) apply(world *World) {
	world.mu.Lock()
	live := world.reserved[c.subscription]
	world.mu.Unlock()
	if !live {
		c.resolve(world)
		return
	}

	c.attempts++
	component, ok := Get[ObservableComponent[T]](world, c.target)
	if !ok {
		if c.remaining > 0 {
			c.remaining--
			world.logger.Debug("ecs: subscribe target not ready, retrying",
				slog.String("target", c.target.String()),
				slog.Int("remaining", c.remaining),
			)
			world.queueRetry(c.apply)
			return
		}
		c.fail(world, NotAnObservable)
		return
	}

	if !component.CanSelfSubscribe() && isSameObservable(component.Observable, c.destination) {
		c.fail(world, SelfSubscribe)
		return
	}
	c.resolve(world)

	subscription := rxgo.SubscribeObserver(component.Observable, c.destination)
	if subscription.IsClosed() {
		return
	}

	world.spawnAs(c.subscription, []any{SubscriptionComponent{Subscription: subscription, Target: c.target}})
	world.AddTeardown(c.subscription, subscription.Unsubscribe)
	entity := c.subscription
	subscription.AddTeardown(func() {
		world.Commands().Despawn(entity)
	})
}

func (c *subscribeCommand[T]) fail(world *World, kind SubscribeErrorKind) {
	c.resolve(world)
	world.count(MetricSubscribeErrors)
	world.errorHandler(world, &SubscribeError{
		Kind:         kind,
		Target:       c.target,
		Subscription: c.subscription,
		Attempts:     c.attempts,
	})
}

func isSameObservable[T any](observable rxgo.Observable[T], destination rxgo.Observer[T]) bool {
	other, ok := destination.(rxgo.Observable[T])
	return ok && any(other) == any(observable)
}
