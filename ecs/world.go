// ECS world
// 内存中的实体组件世界：实体句柄、按类型存放的组件、延迟命令批次、定向事件和销毁清理
package ecs

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xinjiayu/rxgo/v2"
)

var (
	// ErrEntityNotFound 实体不存在或已被销毁
	ErrEntityNotFound = errors.New("ecs: entity not found")
	// ErrNilComponent 组件为 nil，无法确定它的类型
	ErrNilComponent = errors.New("ecs: nil component")
)

// 世界指标名称
const (
	MetricEntitiesSpawned      = "rxgo_ecs_entities_spawned_total"
	MetricEntitiesDespawned    = "rxgo_ecs_entities_despawned_total"
	MetricSubscriptionsRetried = "rxgo_ecs_subscribe_retries_total"
	MetricSubscribeErrors      = "rxgo_ecs_subscribe_errors_total"
	MetricFlushDuration        = "rxgo_ecs_flush_duration_seconds"
)

// Entity 不透明的实体句柄
type Entity uuid.UUID

// NewEntity 分配一个新的句柄，实体本身还不存在
func NewEntity() Entity {
	return Entity(uuid.New())
}

// String 返回句柄的文本形式
func (e Entity) String() string {
	return uuid.UUID(e).String()
}

// IsZero 是否为零值句柄
func (e Entity) IsZero() bool {
	return uuid.UUID(e) == uuid.Nil
}

type entityRecord struct {
	components map[reflect.Type]any
	teardowns  []rxgo.Teardown
}

// lookup 按具体类型查找组件。key 是接口类型时，返回唯一实现它的组件；有多个实现时视为不存在
func (r *entityRecord) lookup(key reflect.Type) (reflect.Type, any, bool) {
	if component, ok := r.components[key]; ok {
		return key, component, true
	}
	if key.Kind() != reflect.Interface {
		return nil, nil, false
	}
	var found reflect.Type
	for concrete := range r.components {
		if !concrete.Implements(key) {
			continue
		}
		if found != nil {
			return nil, nil, false
		}
		found = concrete
	}
	if found == nil {
		return nil, nil, false
	}
	return found, r.components[found], true
}

// World 实体组件世界。组件一律按值的具体类型存放，每个实体每种类型最多一个；
// 用接口类型读取时匹配唯一实现该接口的组件
type World struct {
	mu        sync.Mutex
	entities  map[Entity]*entityRecord
	observers map[Entity]map[reflect.Type][]any
	reserved  map[Entity]bool
	commands  []Command
	retries   []Command
	flushing  bool

	config       Config
	executor     rxgo.TickingExecutor
	logger       *slog.Logger
	logOutput    io.Writer
	errorHandler ErrorHandler
	recorder     rxgo.MetricsRecorder
}

// WorldOption 世界的构造选项
type WorldOption func(world *World)

// WithConfig 使用指定配置
func WithConfig(config Config) WorldOption {
	return func(world *World) {
		world.config = config
	}
}

// WithExecutor 使用指定的节拍执行器
func WithExecutor(executor rxgo.TickingExecutor) WorldOption {
	return func(world *World) {
		world.executor = executor
	}
}

// WithLogger 使用指定的日志记录器
func WithLogger(logger *slog.Logger) WorldOption {
	return func(world *World) {
		world.logger = logger
	}
}

// WithLogOutput 没有指定日志记录器时，按配置的 LogLevel 把日志写到 output
func WithLogOutput(output io.Writer) WorldOption {
	return func(world *World) {
		world.logOutput = output
	}
}

// WithErrorHandler 替换默认的订阅错误处理
func WithErrorHandler(handler ErrorHandler) WorldOption {
	return func(world *World) {
		world.errorHandler = handler
	}
}

// WithMetricsRecorder 记录世界的计数和耗时
func WithMetricsRecorder(recorder rxgo.MetricsRecorder) WorldOption {
	return func(world *World) {
		world.recorder = recorder
	}
}

// NewWorld 创建世界，缺省使用 DefaultConfig 和新的节拍调度器。
// 没有 WithLogger 时，日志按 Config.LogLevel 过滤后以文本格式写到标准错误（或 WithLogOutput）
func NewWorld(options ...WorldOption) *World {
	world := &World{
		entities:  make(map[Entity]*entityRecord),
		observers: make(map[Entity]map[reflect.Type][]any),
		reserved:  make(map[Entity]bool),
		config:    DefaultConfig(),
	}
	for _, option := range options {
		option(world)
	}
	if world.logger == nil {
		world.logger = newLogger(world.config, world.logOutput)
	}
	if world.executor == nil {
		world.executor = rxgo.NewTickingScheduler()
	}
	if world.errorHandler == nil {
		world.errorHandler = LogSubscribeError
	}
	return world
}

func newLogger(config Config, output io.Writer) *slog.Logger {
	level, err := config.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	if output == nil {
		output = os.Stderr
	}
	return slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: level}))
}

// Executor 世界的节拍执行器
func (w *World) Executor() rxgo.TickingExecutor { return w.executor }

// Config 世界的配置
func (w *World) Config() Config { return w.config }

// Logger 世界的日志记录器
func (w *World) Logger() *slog.Logger { return w.logger }

// ============================================================================
// 实体
// ============================================================================

// Spawn 立即创建实体并附加组件
func (w *World) Spawn(components ...any) Entity {
	entity := NewEntity()
	w.spawnAs(entity, components)
	return entity
}

func (w *World) spawnAs(entity Entity, components []any) {
	record := &entityRecord{components: make(map[reflect.Type]any, len(components))}
	for _, component := range components {
		if key := reflect.TypeOf(component); key != nil {
			record.components[key] = component
		}
	}
	w.mu.Lock()
	w.entities[entity] = record
	w.mu.Unlock()
	w.count(MetricEntitiesSpawned)
}

// Alive 实体是否存在
func (w *World) Alive(entity Entity) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.entities[entity]
	return ok
}

// Len 存活的实体数量
func (w *World) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entities)
}

// AddTeardown 注册实体销毁时执行的清理；实体不存在时立即执行
func (w *World) AddTeardown(entity Entity, teardown rxgo.Teardown) {
	w.mu.Lock()
	record, ok := w.entities[entity]
	if ok {
		record.teardowns = append(record.teardowns, teardown)
	}
	w.mu.Unlock()
	if !ok {
		teardown()
	}
}

// Despawn 立即销毁实体：移除组件和事件处理器，然后按注册顺序执行清理。
// 实体不存在时返回 false
func (w *World) Despawn(entity Entity) bool {
	w.mu.Lock()
	record, ok := w.entities[entity]
	delete(w.entities, entity)
	delete(w.observers, entity)
	w.mu.Unlock()
	if !ok {
		return false
	}

	for _, teardown := range record.teardowns {
		teardown()
	}
	w.count(MetricEntitiesDespawned)
	return true
}

// ============================================================================
// 组件
// ============================================================================

// Insert 附加或替换组件，键是组件值的具体类型
func Insert[C any](w *World, entity Entity, component C) error {
	return w.insert(entity, component)
}

func (w *World) insert(entity Entity, component any) error {
	key := reflect.TypeOf(component)
	if key == nil {
		return ErrNilComponent
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	record, ok := w.entities[entity]
	if !ok {
		return ErrEntityNotFound
	}
	record.components[key] = component
	return nil
}

// Get 读取组件
func Get[C any](w *World, entity Entity) (C, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var zero C
	record, ok := w.entities[entity]
	if !ok {
		return zero, false
	}
	_, component, ok := record.lookup(reflect.TypeFor[C]())
	if !ok {
		return zero, false
	}
	return component.(C), true
}

// Has 实体是否带有该类型的组件
func Has[C any](w *World, entity Entity) bool {
	_, ok := Get[C](w, entity)
	return ok
}

// Remove 移除组件并返回它
func Remove[C any](w *World, entity Entity) (C, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var zero C
	record, ok := w.entities[entity]
	if !ok {
		return zero, false
	}
	key, component, ok := record.lookup(reflect.TypeFor[C]())
	if !ok {
		return zero, false
	}
	delete(record.components, key)
	return component.(C), true
}

// ============================================================================
// 更新循环
// ============================================================================

// UpdateReport 一次 Update 的统计
type UpdateReport struct {
	Delta           time.Duration
	CommandsApplied int
	Retried         int
	Alive           int
}

// Update 推进执行器，应用命令批次，再重试上一次更新中没有找到目标的订阅命令。
// 本次更新中失败的订阅命令在下一次更新时重试
func (w *World) Update(delta time.Duration) UpdateReport {
	w.mu.Lock()
	retries := w.retries
	w.retries = nil
	w.mu.Unlock()

	w.executor.Tick(delta)
	report := UpdateReport{Delta: delta}
	report.CommandsApplied = w.Flush()

	report.Retried = len(retries)
	for _, retry := range retries {
		w.count(MetricSubscriptionsRetried)
		retry(w)
	}
	report.CommandsApplied += w.Flush()
	report.Alive = w.Len()
	return report
}

// Flush 按提交顺序应用命令批次。应用期间新提交的命令在同一次 Flush 中执行，
// 重入调用直接返回 0。命令 panic 时批次中剩余的命令被丢弃，之后的 Flush 照常工作
func (w *World) Flush() int {
	w.mu.Lock()
	if w.flushing {
		w.mu.Unlock()
		return 0
	}
	w.flushing = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.flushing = false
		w.mu.Unlock()
	}()

	started := time.Now()
	applied := 0
	for {
		w.mu.Lock()
		batch := w.commands
		w.commands = nil
		w.mu.Unlock()
		if len(batch) == 0 {
			break
		}

		for _, command := range batch {
			command(w)
			applied++
		}
	}

	if w.recorder != nil && applied > 0 {
		w.recorder.RecordDuration(MetricFlushDuration, time.Since(started), nil)
	}
	return applied
}

// Pending 等待应用的命令数量
func (w *World) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.commands)
}

func (w *World) queue(command Command) {
	w.mu.Lock()
	w.commands = append(w.commands, command)
	w.mu.Unlock()
}

func (w *World) queueRetry(command Command) {
	w.mu.Lock()
	w.retries = append(w.retries, command)
	w.mu.Unlock()
}

func (w *World) count(metric string) {
	if w.recorder != nil {
		w.recorder.IncrementCounter(metric, nil)
	}
}
