// Connectable observables
// 可连接的 Observable：多个订阅者共享同一个上游订阅，支持手动连接和引用计数自动连接
package rxgo

import (
	"sync"
)

// Connectable 把源的信号通过主题多播给所有订阅者。订阅只会加入主题，调用 Connect 才会订阅源
type Connectable[T any] struct {
	mu         sync.Mutex
	source     Observable[T]
	factory    func() Subject[T]
	subject    Subject[T]
	connection *SharedSubscription
	upstream   *innerSubscriber[T]
	refCount   int
}

// NewConnectable 创建可连接的 Observable，factory 为 nil 时使用 PublishSubject。
// 主题终止后下一次连接会用 factory 创建新的主题
func NewConnectable[T any](source Observable[T], factory func() Subject[T]) *Connectable[T] {
	if factory == nil {
		factory = func() Subject[T] { return NewPublishSubject[T]() }
	}
	return &Connectable[T]{source: source, factory: factory}
}

// currentSubject 必须在持有锁时调用
func (c *Connectable[T]) currentSubject() Subject[T] {
	if c.subject == nil || (c.subject.IsClosed() && !c.isConnectedLocked()) {
		c.subject = c.factory()
	}
	return c.subject
}

func (c *Connectable[T]) isConnectedLocked() bool {
	return c.connection != nil && !c.connection.IsClosed() && !c.upstream.subscription.IsClosed()
}

// Subscribe 订阅当前的主题
func (c *Connectable[T]) Subscribe(destination Subscriber[T]) Subscription {
	c.mu.Lock()
	subject := c.currentSubject()
	c.mu.Unlock()
	return subject.Subscribe(destination)
}

// IsConnected 是否已连接到源
func (c *Connectable[T]) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnectedLocked()
}

// Connect 订阅源并把信号转发给主题；已经连接时返回现有的连接
func (c *Connectable[T]) Connect() Subscription {
	c.mu.Lock()
	if c.isConnectedLocked() {
		connection := c.connection
		c.mu.Unlock()
		return connection
	}

	subject := c.currentSubject()
	upstream := newInnerSubscriber[T](subject)
	upstream.onNext = subject.Next
	upstream.onError = subject.Error
	upstream.onComplete = subject.Complete
	connection := NewSharedSubscription(upstream)
	c.connection = connection
	c.upstream = upstream
	c.mu.Unlock()

	c.source.Subscribe(upstream)
	return connection
}

// Disconnect 断开与源的连接，主题保持打开
func (c *Connectable[T]) Disconnect() {
	c.mu.Lock()
	connection := c.connection
	c.connection = nil
	c.mu.Unlock()
	if connection != nil {
		connection.Unsubscribe()
	}
}

// RefCount 第一个订阅者到来时自动连接，最后一个订阅者离开时断开
func (c *Connectable[T]) RefCount() Observable[T] {
	return Create(func(destination Subscriber[T]) {
		c.mu.Lock()
		c.refCount++
		c.mu.Unlock()

		destination.AddTeardown(func() {
			c.mu.Lock()
			c.refCount--
			last := c.refCount == 0
			c.mu.Unlock()
			if last {
				c.Disconnect()
			}
		})

		c.Subscribe(destination)
		if !destination.IsClosed() {
			c.Connect()
		}
	})
}

// SubscriberCount RefCount 的当前订阅者数量
func (c *Connectable[T]) SubscriberCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refCount
}

// Share 通过 PublishSubject 多播，按引用计数自动连接和断开
func Share[T any]() OperatorFunc[T, T] {
	return func(source Observable[T]) Observable[T] {
		return NewConnectable(source, nil).RefCount()
	}
}
