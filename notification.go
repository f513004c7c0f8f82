// Notifications
// 物化的通知：观察者层、订阅者层和订阅层三种表示，可以作为数据传递和比较
package rxgo

import (
	"fmt"
)

// NotificationKind 通知类型
type NotificationKind int

const (
	// KindNext 下一个值
	KindNext NotificationKind = iota
	// KindError 错误
	KindError
	// KindComplete 完成
	KindComplete
	// KindUnsubscribe 取消订阅
	KindUnsubscribe
	// KindTick 调度器节拍
	KindTick
	// KindAdd 添加清理动作
	KindAdd
)

// String 返回类型名称
func (k NotificationKind) String() string {
	switch k {
	case KindNext:
		return "next"
	case KindError:
		return "error"
	case KindComplete:
		return "complete"
	case KindUnsubscribe:
		return "unsubscribe"
	case KindTick:
		return "tick"
	case KindAdd:
		return "add"
	default:
		return fmt.Sprintf("NotificationKind(%d)", int(k))
	}
}

// IsTerminal 是否为终止类通知
func (k NotificationKind) IsTerminal() bool {
	return k == KindError || k == KindComplete
}

// ============================================================================
// 观察者层通知
// ============================================================================

// ObserverNotification 观察者层通知：Next / Error / Complete
type ObserverNotification[T any] struct {
	Kind  NotificationKind
	Value T
	Err   error
}

// Next 创建 Next 通知
func Next[T any](value T) ObserverNotification[T] {
	return ObserverNotification[T]{Kind: KindNext, Value: value}
}

// ErrorNotification 创建 Error 通知
func ErrorNotification[T any](err error) ObserverNotification[T] {
	return ObserverNotification[T]{Kind: KindError, Err: err}
}

// CompleteNotification 创建 Complete 通知
func CompleteNotification[T any]() ObserverNotification[T] {
	return ObserverNotification[T]{Kind: KindComplete}
}

// Accept 把通知重新作用到观察者上
func (n ObserverNotification[T]) Accept(observer Observer[T]) {
	switch n.Kind {
	case KindNext:
		observer.Next(n.Value)
	case KindError:
		observer.Error(n.Err)
	case KindComplete:
		observer.Complete()
	}
}

// Lift 提升为订阅者层通知，总是成功
func (n ObserverNotification[T]) Lift() SubscriberNotification[T] {
	return SubscriberNotification[T]{Kind: n.Kind, Value: n.Value, Err: n.Err}
}

// String 返回可读表示
func (n ObserverNotification[T]) String() string {
	switch n.Kind {
	case KindNext:
		return fmt.Sprintf("next(%v)", n.Value)
	case KindError:
		return fmt.Sprintf("error(%v)", n.Err)
	default:
		return n.Kind.String()
	}
}

// ============================================================================
// 订阅者层通知
// ============================================================================

// SubscriberNotification 订阅者层通知，在观察者层基础上增加 Unsubscribe / Tick / Add
type SubscriberNotification[T any] struct {
	Kind     NotificationKind
	Value    T
	Err      error
	Tick     Tick
	Teardown Teardown
}

// UnsubscribeNotification 创建 Unsubscribe 通知
func UnsubscribeNotification[T any]() SubscriberNotification[T] {
	return SubscriberNotification[T]{Kind: KindUnsubscribe}
}

// TickNotification 创建 Tick 通知
func TickNotification[T any](tick Tick) SubscriberNotification[T] {
	return SubscriberNotification[T]{Kind: KindTick, Tick: tick}
}

// AddNotification 创建 Add 通知
func AddNotification[T any](teardown Teardown) SubscriberNotification[T] {
	return SubscriberNotification[T]{Kind: KindAdd, Teardown: teardown}
}

// ToObserver 降级为观察者层通知，Unsubscribe / Tick / Add 无法表达
func (n SubscriberNotification[T]) ToObserver() (ObserverNotification[T], error) {
	switch n.Kind {
	case KindNext, KindError, KindComplete:
		return ObserverNotification[T]{Kind: n.Kind, Value: n.Value, Err: n.Err}, nil
	default:
		return ObserverNotification[T]{}, fmt.Errorf("%s -> observer: %w", n.Kind, ErrNotificationNotConvertible)
	}
}

// ToSubscription 降级为订阅层通知，Next / Error / Complete 无法表达
func (n SubscriberNotification[T]) ToSubscription() (SubscriptionNotification, error) {
	switch n.Kind {
	case KindUnsubscribe, KindTick, KindAdd:
		return SubscriptionNotification{Kind: n.Kind, Tick: n.Tick, Teardown: n.Teardown}, nil
	default:
		return SubscriptionNotification{}, fmt.Errorf("%s -> subscription: %w", n.Kind, ErrNotificationNotConvertible)
	}
}

// Apply 把通知作用到订阅者上
func (n SubscriberNotification[T]) Apply(subscriber Subscriber[T]) {
	switch n.Kind {
	case KindNext:
		subscriber.Next(n.Value)
	case KindError:
		subscriber.Error(n.Err)
	case KindComplete:
		subscriber.Complete()
	case KindUnsubscribe:
		subscriber.Unsubscribe()
	case KindTick:
		forwardTick(subscriber, n.Tick)
	case KindAdd:
		subscriber.AddTeardown(n.Teardown)
	}
}

// String 返回可读表示
func (n SubscriberNotification[T]) String() string {
	switch n.Kind {
	case KindNext:
		return fmt.Sprintf("next(%v)", n.Value)
	case KindError:
		return fmt.Sprintf("error(%v)", n.Err)
	case KindTick:
		return fmt.Sprintf("tick(%v)", n.Tick.Now)
	default:
		return n.Kind.String()
	}
}

// ============================================================================
// 订阅层通知
// ============================================================================

// SubscriptionNotification 订阅层通知：Unsubscribe / Tick / Add
type SubscriptionNotification struct {
	Kind     NotificationKind
	Tick     Tick
	Teardown Teardown
}

// LiftSubscriptionNotification 把订阅层通知提升为订阅者层，总是成功
func LiftSubscriptionNotification[T any](n SubscriptionNotification) SubscriberNotification[T] {
	return SubscriberNotification[T]{Kind: n.Kind, Tick: n.Tick, Teardown: n.Teardown}
}

// Apply 把通知作用到订阅上
func (n SubscriptionNotification) Apply(subscription Subscription) {
	switch n.Kind {
	case KindUnsubscribe:
		subscription.Unsubscribe()
	case KindTick:
		if tickable, ok := subscription.(Tickable); ok {
			tickable.Tick(n.Tick)
		}
	case KindAdd:
		subscription.AddTeardown(n.Teardown)
	}
}

func forwardTick(target any, tick Tick) {
	if tickable, ok := target.(Tickable); ok {
		tickable.Tick(tick)
	}
}
