// World-hosted subscription context
// 以世界为宿主的订阅上下文：延迟动作进入命令批次，保留的订阅成为实体
package ecs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xinjiayu/rxgo/v2"
)

// Context 在世界上实现 rxgo.SubscriptionContext
type Context struct {
	world *World

	mu       sync.Mutex
	next     rxgo.Handle
	entities map[rxgo.Handle]Entity
}

var _ rxgo.SubscriptionContext = (*Context)(nil)

// NewContext 创建以 world 为宿主的上下文
func NewContext(world *World) *Context {
	return &Context{world: world, entities: make(map[rxgo.Handle]Entity)}
}

// World 宿主世界
func (c *Context) World() *World { return c.world }

// Scheduler 世界的执行器
func (c *Context) Scheduler() rxgo.Scheduler { return c.world.executor }

// Logger 世界的日志记录器
func (c *Context) Logger() *slog.Logger { return c.world.logger }

// Defer 放入世界的命令批次
func (c *Context) Defer(action func()) {
	c.world.queue(func(*World) { action() })
}

// Retain 立即创建持有订阅的实体。实体销毁时取消订阅，订阅关闭时实体在下一次 Flush 中销毁
func (c *Context) Retain(subscription rxgo.Subscription) rxgo.Handle {
	entity := c.world.Spawn(SubscriptionComponent{Subscription: subscription})
	c.world.AddTeardown(entity, subscription.Unsubscribe)

	c.mu.Lock()
	c.next++
	handle := c.next
	c.entities[handle] = entity
	c.mu.Unlock()

	c.world.AddTeardown(entity, func() {
		c.mu.Lock()
		delete(c.entities, handle)
		c.mu.Unlock()
	})
	subscription.AddTeardown(func() {
		c.world.Commands().Despawn(entity)
	})
	return handle
}

// Release 立即销毁句柄对应的实体
func (c *Context) Release(handle rxgo.Handle) {
	if entity, ok := c.Entity(handle); ok {
		c.world.Despawn(entity)
	}
}

// Entity 句柄对应的订阅实体
func (c *Context) Entity(handle rxgo.Handle) (Entity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entity, ok := c.entities[handle]
	return entity, ok
}

// Run 按配置的节拍间隔驱动世界，直到 ctx 结束
func (w *World) Run(ctx context.Context) error {
	return rxgo.RunTicker(ctx, worldTicker{TickingExecutor: w.executor, world: w}, w.config.TickInterval)
}

// worldTicker 让 RunTicker 的每次节拍执行一次完整的 Update
type worldTicker struct {
	rxgo.TickingExecutor
	world *World
}

func (t worldTicker) Tick(delta time.Duration) {
	t.world.Update(delta)
}
