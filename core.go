// Package rxgo provides reactive programming primitives for Go
// 基于推送的响应式核心：通知、订阅、调度器、主题以及带严格终止/清理契约的操作符
package rxgo

import (
	"log/slog"
	"math"
)

// ============================================================================
// 核心契约
// ============================================================================

// Teardown 清理动作，在订阅关闭时恰好执行一次
type Teardown func()

// SubscriptionLike 可关闭的资源
type SubscriptionLike interface {
	// IsClosed 检查是否已关闭
	IsClosed() bool
	// Unsubscribe 取消订阅，重复调用无副作用
	Unsubscribe()
}

// TeardownCollection 可收集清理动作的资源
type TeardownCollection interface {
	// AddTeardown 添加清理动作；已关闭时立即执行
	AddTeardown(teardown Teardown)
}

// Subscription 订阅：可关闭并且可收集清理动作
type Subscription interface {
	SubscriptionLike
	TeardownCollection
}

// Observer 最小的推送接收能力
type Observer[T any] interface {
	Next(value T)
	Error(err error)
	Complete()
}

// Tickable 可接收调度器节拍通知的对象，节拍不受关闭状态约束
type Tickable interface {
	Tick(tick Tick)
}

// Subscriber 同时是观察者和订阅的目标，操作符包装的就是它
type Subscriber[T any] interface {
	Observer[T]
	Subscription
}

// Observable 可订阅的数据源
type Observable[T any] interface {
	Subscribe(destination Subscriber[T]) Subscription
}

// ============================================================================
// 函数类型定义
// ============================================================================

// OnNext 处理下一个值的函数
type OnNext[T any] func(value T)

// OnError 处理错误的函数
type OnError func(err error)

// OnComplete 处理完成的函数
type OnComplete func()

// OperatorFunc 操作符：把一个 Observable 变成另一个
type OperatorFunc[In, Out any] func(source Observable[In]) Observable[Out]

// TeardownOf 把一个嵌套订阅转换成清理动作
func TeardownOf(subscription SubscriptionLike) Teardown {
	return func() {
		if !subscription.IsClosed() {
			subscription.Unsubscribe()
		}
	}
}

// ============================================================================
// 观察者适配
// ============================================================================

// FuncObserver 由回调函数组成的观察者，nil 回调会被忽略
type FuncObserver[T any] struct {
	OnNext     OnNext[T]
	OnError    OnError
	OnComplete OnComplete
}

// NewObserver 使用回调函数创建观察者
func NewObserver[T any](onNext func(value T), onError func(err error), onComplete func()) *FuncObserver[T] {
	return &FuncObserver[T]{OnNext: onNext, OnError: onError, OnComplete: onComplete}
}

// Next 实现 Observer
func (o *FuncObserver[T]) Next(value T) {
	if o.OnNext != nil {
		o.OnNext(value)
	}
}

// Error 实现 Observer
func (o *FuncObserver[T]) Error(err error) {
	if o.OnError != nil {
		o.OnError(err)
	}
}

// Complete 实现 Observer
func (o *FuncObserver[T]) Complete() {
	if o.OnComplete != nil {
		o.OnComplete()
	}
}

// ============================================================================
// 配置选项
// ============================================================================

// Option 配置选项接口
type Option interface {
	Apply(config *Config)
}

// OptionFunc 函数形式的配置选项
type OptionFunc func(config *Config)

// Apply 实现 Option
func (f OptionFunc) Apply(config *Config) {
	f(config)
}

// Config 配置结构，各操作符只读取与自己相关的字段
type Config struct {
	Logger           *slog.Logger
	Scheduler        Scheduler
	MaxQueueLength   int
	Overflow         QueueOverflowBehavior
	ThrottleOutput   ThrottleOutputBehavior
	ConcurrencyLimit int
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Logger:           slog.Default(),
		MaxQueueLength:   DefaultMaxQueueLength,
		Overflow:         DropOldest,
		ThrottleOutput:   LeadingAndTrailing,
		ConcurrencyLimit: UnboundedConcurrency,
	}
}

func newConfig(options []Option) *Config {
	config := DefaultConfig()
	for _, option := range options {
		option.Apply(config)
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return config
}

// WithLogger 指定日志记录器
func WithLogger(logger *slog.Logger) Option {
	return OptionFunc(func(config *Config) {
		config.Logger = logger
	})
}

// WithScheduler 指定调度器
func WithScheduler(scheduler Scheduler) Option {
	return OptionFunc(func(config *Config) {
		config.Scheduler = scheduler
	})
}

// WithQueueLength 指定每个上游的通知队列长度
func WithQueueLength(length int) Option {
	return OptionFunc(func(config *Config) {
		config.MaxQueueLength = length
	})
}

// WithOverflow 指定队列溢出策略
func WithOverflow(behavior QueueOverflowBehavior) Option {
	return OptionFunc(func(config *Config) {
		config.Overflow = behavior
	})
}

// WithThrottleOutput 指定节流输出方式
func WithThrottleOutput(behavior ThrottleOutputBehavior) Option {
	return OptionFunc(func(config *Config) {
		config.ThrottleOutput = behavior
	})
}

// UnboundedConcurrency 不限制并发的内层订阅数量
const UnboundedConcurrency = math.MaxInt

// WithConcurrencyLimit 指定高阶操作符的并发上限，0 视为 1
func WithConcurrencyLimit(limit int) Option {
	return OptionFunc(func(config *Config) {
		if limit < 1 {
			limit = 1
		}
		config.ConcurrencyLimit = limit
	})
}
