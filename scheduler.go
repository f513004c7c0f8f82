// Schedulers implementation
// 调度器：延迟/重复/持续/立即工作的提交与取消，以及由显式节拍驱动的虚拟时间执行器
package rxgo

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// ============================================================================
// 调度器接口
// ============================================================================

// Tick 一次节拍：当前逻辑时间与距上一次节拍的增量
type Tick struct {
	Now   time.Duration
	Delta time.Duration
}

// WorkResult 可重复执行的工作的返回值
type WorkResult int

const (
	// WorkPending 还需要继续执行
	WorkPending WorkResult = iota
	// WorkDone 已完成，从调度器中移除
	WorkDone
)

// WorkCancellationID 取消令牌，同一个令牌可以对应多个工作
type WorkCancellationID uint64

// OnceWork 只执行一次的工作
type OnceWork func(tick Tick)

// RepeatedWork 会被多次执行的工作
type RepeatedWork func(tick Tick) WorkResult

// Scheduler 调度器接口。接口值本身就是可随意复制的调度器句柄
type Scheduler interface {
	// Now 当前逻辑时间
	Now() time.Duration
	// ScheduleDelayedWork 在 delay 之后执行一次
	ScheduleDelayedWork(work OnceWork, delay time.Duration, id WorkCancellationID)
	// ScheduleImmediateWork 在下一次节拍中尽快执行一次
	ScheduleImmediateWork(work OnceWork, id WorkCancellationID)
	// ScheduleRepeatedWork 按固定间隔执行，每次节拍最多执行 maxPerTick 次
	ScheduleRepeatedWork(work RepeatedWork, interval time.Duration, startImmediately bool, maxPerTick int, id WorkCancellationID)
	// ScheduleContinuousWork 每次节拍执行一次，直到返回 WorkDone
	ScheduleContinuousWork(work RepeatedWork, id WorkCancellationID)
	// GenerateCancellationID 生成新的取消令牌
	GenerateCancellationID() WorkCancellationID
	// Cancel 取消令牌对应的所有工作
	Cancel(id WorkCancellationID)
}

// TickingExecutor 由外部节拍驱动的调度器
type TickingExecutor interface {
	Scheduler
	// Tick 推进逻辑时间并执行所有到期的工作
	Tick(delta time.Duration)
}

// ============================================================================
// 节拍调度器 - Ticking Scheduler
// ============================================================================

type workKind int

const (
	delayedWork workKind = iota
	repeatedWork
	continuousWork
)

type scheduledWork struct {
	id          WorkCancellationID
	seq         uint64
	kind        workKind
	scheduledAt time.Duration
	deadline    time.Duration
	interval    time.Duration
	maxPerTick  int
	lastTick    uint64
	cancelled   bool
	done        bool
	once        OnceWork
	repeat      RepeatedWork
}

// TickingScheduler 虚拟时间调度器，逻辑时钟只在 Tick 时前进。
// 同一次 Tick 中：按 (deadline, 提交顺序) 执行到期的工作；执行期间新提交且已到期的工作在同一次 Tick 中执行；
// 持续工作和重复工作每次 Tick 至多被轮询一轮。
type TickingScheduler struct {
	mu        sync.Mutex
	now       time.Duration
	tickCount uint64
	nextID    uint64
	nextSeq   uint64
	pending   []*scheduledWork
	active    []*scheduledWork
}

// NewTickingScheduler 创建节拍调度器
func NewTickingScheduler() *TickingScheduler {
	return &TickingScheduler{}
}

// NewTestScheduler 创建用于测试的虚拟时间调度器
func NewTestScheduler() *TickingScheduler {
	return NewTickingScheduler()
}

// Now 当前逻辑时间
func (s *TickingScheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// GenerateCancellationID 生成新的取消令牌
func (s *TickingScheduler) GenerateCancellationID() WorkCancellationID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return WorkCancellationID(s.nextID)
}

// ScheduleDelayedWork 在 delay 之后执行一次
func (s *TickingScheduler) ScheduleDelayedWork(work OnceWork, delay time.Duration, id WorkCancellationID) {
	s.enqueue(&scheduledWork{id: id, kind: delayedWork, once: work}, delay)
}

// ScheduleImmediateWork 在下一次节拍中尽快执行一次
func (s *TickingScheduler) ScheduleImmediateWork(work OnceWork, id WorkCancellationID) {
	s.enqueue(&scheduledWork{id: id, kind: delayedWork, once: work}, 0)
}

// ScheduleRepeatedWork 按固定间隔执行
func (s *TickingScheduler) ScheduleRepeatedWork(work RepeatedWork, interval time.Duration, startImmediately bool, maxPerTick int, id WorkCancellationID) {
	if maxPerTick < 1 {
		maxPerTick = 1
	}
	firstDelay := interval
	if startImmediately {
		firstDelay = 0
	}
	s.enqueue(&scheduledWork{id: id, kind: repeatedWork, repeat: work, interval: interval, maxPerTick: maxPerTick}, firstDelay)
}

// ScheduleContinuousWork 每次节拍执行一次
func (s *TickingScheduler) ScheduleContinuousWork(work RepeatedWork, id WorkCancellationID) {
	s.enqueue(&scheduledWork{id: id, kind: continuousWork, repeat: work}, 0)
}

func (s *TickingScheduler) enqueue(work *scheduledWork, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSeq++
	work.seq = s.nextSeq
	work.scheduledAt = s.now
	work.deadline = s.now + delay
	s.pending = append(s.pending, work)
}

// Cancel 取消令牌对应的所有工作，包括尚未激活的工作
func (s *TickingScheduler) Cancel(id WorkCancellationID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, work := range s.pending {
		if work.id == id {
			work.cancelled = true
		}
	}
	for _, work := range s.active {
		if work.id == id {
			work.cancelled = true
		}
	}
}

// AdvanceTimeBy 推进时间
func (s *TickingScheduler) AdvanceTimeBy(duration time.Duration) {
	s.Tick(duration)
}

// Tick 推进逻辑时间并执行到期的工作，直到没有新的到期工作为止
func (s *TickingScheduler) Tick(delta time.Duration) {
	s.mu.Lock()
	s.now += delta
	s.tickCount++
	tick := Tick{Now: s.now, Delta: delta}
	tickCount := s.tickCount
	s.mu.Unlock()

	for {
		due := s.collectDue(tickCount)
		if len(due) == 0 {
			return
		}
		for _, work := range due {
			s.run(work, tick, tickCount)
		}
	}
}

// PendingWork 尚未完成且未被取消的工作数量
func (s *TickingScheduler) PendingWork() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, work := range s.pending {
		if !work.cancelled {
			count++
		}
	}
	for _, work := range s.active {
		if !work.cancelled && !work.done {
			count++
		}
	}
	return count
}

func (s *TickingScheduler) collectDue(tickCount uint64) []*scheduledWork {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = append(s.active, s.pending...)
	s.pending = nil

	alive := s.active[:0]
	for _, work := range s.active {
		if !work.cancelled && !work.done {
			alive = append(alive, work)
		}
	}
	s.active = alive

	var due []*scheduledWork
	for _, work := range s.active {
		switch work.kind {
		case delayedWork:
			if work.deadline <= s.now {
				due = append(due, work)
			}
		case repeatedWork:
			if work.lastTick != tickCount && work.deadline <= s.now {
				due = append(due, work)
			}
		case continuousWork:
			if work.lastTick != tickCount {
				due = append(due, work)
			}
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		if due[i].deadline != due[j].deadline {
			return due[i].deadline < due[j].deadline
		}
		return due[i].seq < due[j].seq
	})
	return due
}

func (s *TickingScheduler) run(work *scheduledWork, tick Tick, tickCount uint64) {
	if s.isCancelled(work) {
		return
	}

	switch work.kind {
	case delayedWork:
		s.markDone(work)
		work.once(tick)
	case continuousWork:
		s.markTick(work, tickCount)
		if work.repeat(tick) == WorkDone {
			s.markDone(work)
		}
	case repeatedWork:
		s.markTick(work, tickCount)
		for runs := 0; runs < work.maxPerTick && work.deadline <= tick.Now; runs++ {
			work.deadline += work.interval
			if work.repeat(tick) == WorkDone {
				s.markDone(work)
				return
			}
			if s.isCancelled(work) {
				return
			}
		}
	}
}

func (s *TickingScheduler) isCancelled(work *scheduledWork) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return work.cancelled
}

func (s *TickingScheduler) markDone(work *scheduledWork) {
	s.mu.Lock()
	work.done = true
	s.mu.Unlock()
}

func (s *TickingScheduler) markTick(work *scheduledWork, tickCount uint64) {
	s.mu.Lock()
	work.lastTick = tickCount
	s.mu.Unlock()
}

// RunTicker 使用真实时钟驱动执行器，直到 ctx 结束
func RunTicker(ctx context.Context, executor TickingExecutor, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			executor.Tick(now.Sub(last))
			last = now
		}
	}
}

// ============================================================================
// 调度器性能监控
// ============================================================================

// SchedulerMetrics 调度器性能指标，延迟以逻辑时间计
type SchedulerMetrics struct {
	TasksScheduled int64
	TasksCompleted int64
	TasksFailed    int64
	TasksCancelled int64
	AverageLatency time.Duration
}

// MetricsRecorder 指标记录器，可由外部监控系统实现
type MetricsRecorder interface {
	IncrementCounter(metric string, labels map[string]string)
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
}

// 监控指标名称
const (
	MetricWorkScheduled = "rxgo_scheduler_work_scheduled_total"
	MetricWorkCompleted = "rxgo_scheduler_work_completed_total"
	MetricWorkFailed    = "rxgo_scheduler_work_failed_total"
	MetricWorkCancelled = "rxgo_scheduler_work_cancelled_total"
	MetricWorkLatency   = "rxgo_scheduler_work_latency_seconds"
)

// MonitoredScheduler 带监控的调度器包装器
type MonitoredScheduler struct {
	scheduler Scheduler
	recorder  MetricsRecorder
	metrics   SchedulerMetrics
	mu        sync.RWMutex
}

// NewMonitoredScheduler 创建带监控的调度器，recorder 可以为 nil
func NewMonitoredScheduler(scheduler Scheduler, recorder MetricsRecorder) *MonitoredScheduler {
	return &MonitoredScheduler{scheduler: scheduler, recorder: recorder}
}

// Now 当前逻辑时间
func (s *MonitoredScheduler) Now() time.Duration {
	return s.scheduler.Now()
}

// GenerateCancellationID 生成新的取消令牌
func (s *MonitoredScheduler) GenerateCancellationID() WorkCancellationID {
	return s.scheduler.GenerateCancellationID()
}

// Cancel 取消工作并记录指标
func (s *MonitoredScheduler) Cancel(id WorkCancellationID) {
	atomic.AddInt64(&s.metrics.TasksCancelled, 1)
	s.count(MetricWorkCancelled, "cancel")
	s.scheduler.Cancel(id)
}

// ScheduleDelayedWork 延迟调度任务并记录指标
func (s *MonitoredScheduler) ScheduleDelayedWork(work OnceWork, delay time.Duration, id WorkCancellationID) {
	s.scheduler.ScheduleDelayedWork(s.wrapOnce(work, "delayed"), delay, id)
}

// ScheduleImmediateWork 立即调度任务并记录指标
func (s *MonitoredScheduler) ScheduleImmediateWork(work OnceWork, id WorkCancellationID) {
	s.scheduler.ScheduleImmediateWork(s.wrapOnce(work, "immediate"), id)
}

// ScheduleRepeatedWork 重复调度任务并记录指标
func (s *MonitoredScheduler) ScheduleRepeatedWork(work RepeatedWork, interval time.Duration, startImmediately bool, maxPerTick int, id WorkCancellationID) {
	s.scheduler.ScheduleRepeatedWork(s.wrapRepeated(work, "repeated"), interval, startImmediately, maxPerTick, id)
}

// ScheduleContinuousWork 持续调度任务并记录指标
func (s *MonitoredScheduler) ScheduleContinuousWork(work RepeatedWork, id WorkCancellationID) {
	s.scheduler.ScheduleContinuousWork(s.wrapRepeated(work, "continuous"), id)
}

// Tick 当被包装的是执行器时转发节拍
func (s *MonitoredScheduler) Tick(delta time.Duration) {
	if executor, ok := s.scheduler.(TickingExecutor); ok {
		executor.Tick(delta)
	}
}

// GetMetrics 获取调度器指标
func (s *MonitoredScheduler) GetMetrics() SchedulerMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SchedulerMetrics{
		TasksScheduled: atomic.LoadInt64(&s.metrics.TasksScheduled),
		TasksCompleted: atomic.LoadInt64(&s.metrics.TasksCompleted),
		TasksFailed:    atomic.LoadInt64(&s.metrics.TasksFailed),
		TasksCancelled: atomic.LoadInt64(&s.metrics.TasksCancelled),
		AverageLatency: s.metrics.AverageLatency,
	}
}

func (s *MonitoredScheduler) wrapOnce(work OnceWork, kind string) OnceWork {
	scheduledAt := s.begin(kind)
	return func(tick Tick) {
		defer s.finish(kind, scheduledAt, tick)
		work(tick)
	}
}

func (s *MonitoredScheduler) wrapRepeated(work RepeatedWork, kind string) RepeatedWork {
	scheduledAt := s.begin(kind)
	return func(tick Tick) (result WorkResult) {
		defer func() {
			if r := recover(); r != nil {
				s.fail(kind)
				panic(r)
			}
			if result == WorkDone {
				s.complete(kind, scheduledAt, tick)
			}
		}()
		return work(tick)
	}
}

func (s *MonitoredScheduler) begin(kind string) time.Duration {
	atomic.AddInt64(&s.metrics.TasksScheduled, 1)
	s.count(MetricWorkScheduled, kind)
	return s.scheduler.Now()
}

func (s *MonitoredScheduler) finish(kind string, scheduledAt time.Duration, tick Tick) {
	if r := recover(); r != nil {
		s.fail(kind)
		panic(r)
	}
	s.complete(kind, scheduledAt, tick)
}

func (s *MonitoredScheduler) complete(kind string, scheduledAt time.Duration, tick Tick) {
	atomic.AddInt64(&s.metrics.TasksCompleted, 1)
	s.count(MetricWorkCompleted, kind)

	latency := tick.Now - scheduledAt
	s.updateAverageLatency(latency)
	if s.recorder != nil {
		s.recorder.RecordDuration(MetricWorkLatency, latency, map[string]string{"kind": kind})
	}
}

func (s *MonitoredScheduler) fail(kind string) {
	atomic.AddInt64(&s.metrics.TasksFailed, 1)
	s.count(MetricWorkFailed, kind)
}

func (s *MonitoredScheduler) count(metric, kind string) {
	if s.recorder != nil {
		s.recorder.IncrementCounter(metric, map[string]string{"kind": kind})
	}
}

// updateAverageLatency 更新平均延迟
func (s *MonitoredScheduler) updateAverageLatency(latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 简单的移动平均计算
	if s.metrics.AverageLatency == 0 {
		s.metrics.AverageLatency = latency
	} else {
		s.metrics.AverageLatency = (s.metrics.AverageLatency + latency) / 2
	}
}
