// Errors
// 错误分类：哨兵错误、操作符局部错误以及编程错误的 panic 信息
package rxgo

import (
	"errors"
	"fmt"
)

var (
	// ErrNotificationNotConvertible 通知无法在目标层级中表达
	ErrNotificationNotConvertible = errors.New("通知类型无法转换到目标层级")
	// ErrSequenceEmpty 源在发射任何值之前就完成了
	ErrSequenceEmpty = errors.New("序列为空")
	// ErrSchedulerRequired 操作符需要调度器但未提供
	ErrSchedulerRequired = errors.New("该操作符需要调度器")
	// ErrNoMatch 源完成前没有任何值满足条件
	ErrNoMatch = errors.New("没有值满足条件")
)

const (
	panicDestinationStolen   = "共享目标已被取走!"
	panicRecursionExceeded   = "订阅延迟通知的递归深度超过上限"
	panicUnreachableTerminal = "多路复用订阅者不应直接收到该通知"
)

// IndexOutOfRangeError 源在到达请求的索引之前就完成了
type IndexOutOfRangeError struct {
	RequestedIndex int
	ObservedNexts  int
}

// Error 实现 error
func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("索引越界: 请求索引 %d, 仅观察到 %d 个值", e.RequestedIndex, e.ObservedNexts)
}

// ElementAtError element_at 操作符的错误，包装上游错误或索引越界
type ElementAtError struct {
	// Upstream 上游错误，为 nil 时表示索引越界
	Upstream error
	// OutOfRange 索引越界信息
	OutOfRange *IndexOutOfRangeError
}

// Error 实现 error
func (e *ElementAtError) Error() string {
	if e.Upstream != nil {
		return fmt.Sprintf("element_at 上游错误: %v", e.Upstream)
	}
	return e.OutOfRange.Error()
}

// Unwrap 支持 errors.Is / errors.As
func (e *ElementAtError) Unwrap() error {
	if e.Upstream != nil {
		return e.Upstream
	}
	return e.OutOfRange
}

// IsIndexOutOfRange 判断是否为索引越界
func (e *ElementAtError) IsIndexOutOfRange() bool {
	return e.Upstream == nil && e.OutOfRange != nil
}

// FindError Find / FindIndex 的错误。
// Upstream 不为 nil 时是被包装的上游错误，否则 Reason 是 ErrSequenceEmpty 或 ErrNoMatch
type FindError struct {
	Upstream error
	Reason   error
}

// Error 实现 error
func (e *FindError) Error() string {
	if e.Upstream != nil {
		return fmt.Sprintf("find 上游错误: %v", e.Upstream)
	}
	return fmt.Sprintf("find: %v", e.Reason)
}

// Unwrap 支持 errors.Is / errors.As
func (e *FindError) Unwrap() error {
	if e.Upstream != nil {
		return e.Upstream
	}
	return e.Reason
}
