// Subscription context
// 订阅上下文：决定副作用落在哪里（普通堆内存或 ECS 世界），操作符逻辑只依赖这个抽象
package rxgo

import (
	"log/slog"
	"sync"
)

// Handle 上下文中保留的订阅句柄
type Handle uint64

// SubscriptionContext 订阅运行所在的宿主能力
type SubscriptionContext interface {
	// Scheduler 宿主的调度器
	Scheduler() Scheduler
	// Defer 把动作放入宿主的延迟批次
	Defer(action func())
	// Retain 保留一个仍然打开的订阅，返回句柄
	Retain(subscription Subscription) Handle
	// Release 取消并丢弃句柄对应的订阅
	Release(handle Handle)
	// Logger 宿主的日志记录器
	Logger() *slog.Logger
}

// SubscribeIn 在上下文中订阅：只有订阅返回时仍然打开才会被保留，立即关闭的订阅不占用句柄
func SubscribeIn[T any](ctx SubscriptionContext, source Observable[T], observer Observer[T]) (Subscription, Handle, bool) {
	subscription := SubscribeObserver(source, observer)
	if subscription.IsClosed() {
		return subscription, 0, false
	}
	return subscription, ctx.Retain(subscription), true
}

// HeapContext 普通的进程内上下文：延迟动作立即执行，订阅保存在 map 中
type HeapContext struct {
	mu            sync.Mutex
	scheduler     Scheduler
	logger        *slog.Logger
	nextHandle    Handle
	subscriptions map[Handle]Subscription
}

// NewHeapContext 创建堆上下文，调度器来自 WithScheduler，缺省时使用新的节拍调度器
func NewHeapContext(options ...Option) *HeapContext {
	config := newConfig(options)
	scheduler := config.Scheduler
	if scheduler == nil {
		scheduler = NewTickingScheduler()
	}
	return &HeapContext{
		scheduler:     scheduler,
		logger:        config.Logger,
		subscriptions: make(map[Handle]Subscription),
	}
}

// Scheduler 实现 SubscriptionContext
func (c *HeapContext) Scheduler() Scheduler { return c.scheduler }

// Logger 实现 SubscriptionContext
func (c *HeapContext) Logger() *slog.Logger { return c.logger }

// Defer 立即执行
func (c *HeapContext) Defer(action func()) { action() }

// Retain 保存订阅；订阅关闭时自动移除
func (c *HeapContext) Retain(subscription Subscription) Handle {
	c.mu.Lock()
	c.nextHandle++
	handle := c.nextHandle
	c.subscriptions[handle] = subscription
	c.mu.Unlock()

	subscription.AddTeardown(func() {
		c.mu.Lock()
		delete(c.subscriptions, handle)
		c.mu.Unlock()
	})
	return handle
}

// Release 取消订阅
func (c *HeapContext) Release(handle Handle) {
	c.mu.Lock()
	subscription, ok := c.subscriptions[handle]
	delete(c.subscriptions, handle)
	c.mu.Unlock()
	if ok {
		subscription.Unsubscribe()
	}
}

// Len 仍被保留的订阅数量
func (c *HeapContext) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscriptions)
}

// Close 取消所有保留的订阅
func (c *HeapContext) Close() {
	c.mu.Lock()
	subscriptions := make([]Subscription, 0, len(c.subscriptions))
	for _, subscription := range c.subscriptions {
		subscriptions = append(subscriptions, subscription)
	}
	clear(c.subscriptions)
	c.mu.Unlock()

	for _, subscription := range subscriptions {
		subscription.Unsubscribe()
	}
}
