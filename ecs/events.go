// Targeted events
// 定向事件：处理器注册在某个实体上，事件在命令批次中同步分发
package ecs

import (
	"reflect"
)

// EventHandler 处理发给 target 的事件
type EventHandler[E any] func(world *World, target Entity, event E)

// Observe 在实体上注册 E 类型事件的处理器，实体销毁时一并移除。实体不存在时返回 ErrEntityNotFound
func Observe[E any](w *World, target Entity, handler EventHandler[E]) error {
	key := reflect.TypeFor[E]()
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.entities[target]; !ok {
		return ErrEntityNotFound
	}
	handlers := w.observers[target]
	if handlers == nil {
		handlers = make(map[reflect.Type][]any)
		w.observers[target] = handlers
	}
	handlers[key] = append(handlers[key], handler)
	return nil
}

// Trigger 把事件放入命令批次，Flush 时同步调用目标实体上的处理器
func Trigger[E any](w *World, target Entity, event E) {
	w.queue(func(world *World) {
		TriggerNow(world, target, event)
	})
}

// TriggerNow 立即调用目标实体上的处理器，返回调用的处理器数量
func TriggerNow[E any](w *World, target Entity, event E) int {
	w.mu.Lock()
	registered := w.observers[target][reflect.TypeFor[E]()]
	handlers := make([]any, len(registered))
	copy(handlers, registered)
	w.mu.Unlock()

	for _, handler := range handlers {
		handler.(EventHandler[E])(w, target, event)
	}
	return len(handlers)
}
