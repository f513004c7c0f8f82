// Test tooling
// 测试工具：记录全部通知（包括取消订阅）的收集器、JSON 行格式的通知轨迹和 golden 文件比对
package rxtest

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xinjiayu/rxgo/v2"
)

// NotificationCollector 按顺序记录观察到的通知。第一次 Unsubscribe 之后的通知单独保存，
// 便于检查关闭后是否还有信号。节拍只计数，不进入通知序列
type NotificationCollector[T any] struct {
	mu         sync.Mutex
	observed   []rxgo.SubscriberNotification[T]
	afterClose []rxgo.SubscriberNotification[T]
	closed     bool
	ticks      []rxgo.Tick
}

// NewNotificationCollector 创建收集器
func NewNotificationCollector[T any]() *NotificationCollector[T] {
	return &NotificationCollector[T]{}
}

// Collect 用新的收集器订阅 source
func Collect[T any](source rxgo.Observable[T]) (*NotificationCollector[T], rxgo.Subscription) {
	collector := NewNotificationCollector[T]()
	return collector, rxgo.SubscribeObserver[T](source, collector)
}

func (c *NotificationCollector[T]) push(notification rxgo.SubscriberNotification[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		c.afterClose = append(c.afterClose, notification)
		return
	}
	if notification.Kind == rxgo.KindUnsubscribe {
		c.closed = true
	}
	c.observed = append(c.observed, notification)
}

// Next 实现 rxgo.Observer
func (c *NotificationCollector[T]) Next(value T) {
	c.push(rxgo.Next(value).Lift())
}

// Error 实现 rxgo.Observer
func (c *NotificationCollector[T]) Error(err error) {
	c.push(rxgo.ErrorNotification[T](err).Lift())
}

// Complete 实现 rxgo.Observer
func (c *NotificationCollector[T]) Complete() {
	c.push(rxgo.CompleteNotification[T]().Lift())
}

// Unsubscribe 记录取消订阅
func (c *NotificationCollector[T]) Unsubscribe() {
	c.push(rxgo.UnsubscribeNotification[T]())
}

// IsClosed 是否已经观察到 Unsubscribe
func (c *NotificationCollector[T]) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Tick 记录节拍
func (c *NotificationCollector[T]) Tick(tick rxgo.Tick) {
	c.mu.Lock()
	c.ticks = append(c.ticks, tick)
	c.mu.Unlock()
}

// Notifications 所有通知，包括关闭之后的
func (c *NotificationCollector[T]) Notifications() []rxgo.SubscriberNotification[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	all := make([]rxgo.SubscriberNotification[T], 0, len(c.observed)+len(c.afterClose))
	all = append(all, c.observed...)
	return append(all, c.afterClose...)
}

// Nth 第 n 个通知
func (c *NotificationCollector[T]) Nth(n int) (rxgo.SubscriberNotification[T], bool) {
	all := c.Notifications()
	if n < 0 || n >= len(all) {
		return rxgo.SubscriberNotification[T]{}, false
	}
	return all[n], true
}

// Kinds 通知类型序列
func (c *NotificationCollector[T]) Kinds() []rxgo.NotificationKind {
	all := c.Notifications()
	kinds := make([]rxgo.NotificationKind, len(all))
	for i, notification := range all {
		kinds[i] = notification.Kind
	}
	return kinds
}

// Values 所有 Next 的值
func (c *NotificationCollector[T]) Values() []T {
	var values []T
	for _, notification := range c.Notifications() {
		if notification.Kind == rxgo.KindNext {
			values = append(values, notification.Value)
		}
	}
	return values
}

// Errors 所有错误
func (c *NotificationCollector[T]) Errors() []error {
	var errs []error
	for _, notification := range c.Notifications() {
		if notification.Kind == rxgo.KindError {
			errs = append(errs, notification.Err)
		}
	}
	return errs
}

// CountNexts 关闭之前观察到的 Next 数量
func (c *NotificationCollector[T]) CountNexts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, notification := range c.observed {
		if notification.Kind == rxgo.KindNext {
			count++
		}
	}
	return count
}

// Len 通知总数
func (c *NotificationCollector[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.observed) + len(c.afterClose)
}

// IsEmpty 是否什么都没有观察到
func (c *NotificationCollector[T]) IsEmpty() bool { return c.Len() == 0 }

// IsCompleted 是否观察到完成
func (c *NotificationCollector[T]) IsCompleted() bool { return c.has(rxgo.KindComplete) }

// IsErrored 是否观察到错误
func (c *NotificationCollector[T]) IsErrored() bool { return c.has(rxgo.KindError) }

// IsUnsubscribed 是否观察到取消订阅
func (c *NotificationCollector[T]) IsUnsubscribed() bool { return c.IsClosed() }

// NothingHappenedAfterClosed 第一次 Unsubscribe 之后是否没有任何通知
func (c *NotificationCollector[T]) NothingHappenedAfterClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.afterClose) == 0
}

// Ticks 观察到的节拍
func (c *NotificationCollector[T]) Ticks() []rxgo.Tick {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]rxgo.Tick(nil), c.ticks...)
}

// String 以逗号分隔的可读序列，例如 "next(1), complete"
func (c *NotificationCollector[T]) String() string {
	all := c.Notifications()
	parts := make([]string, len(all))
	for i, notification := range all {
		parts[i] = notification.String()
	}
	return strings.Join(parts, ", ")
}

// Reset 清空记录
func (c *NotificationCollector[T]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observed = nil
	c.afterClose = nil
	c.closed = false
	c.ticks = nil
}

func (c *NotificationCollector[T]) has(kind rxgo.NotificationKind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, notification := range c.observed {
		if notification.Kind == kind {
			return true
		}
	}
	return false
}

// GoString 用于失败信息
func (c *NotificationCollector[T]) GoString() string {
	return fmt.Sprintf("NotificationCollector[%s]", c.String())
}
