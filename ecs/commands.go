// Deferred commands
// 延迟命令：对世界的修改先排队，在 Flush 时按顺序应用
package ecs

// Command 延迟应用到世界上的修改
type Command func(world *World)

// Commands 向世界的命令批次提交修改
type Commands struct {
	world *World
}

// Commands 返回世界的命令提交入口
func (w *World) Commands() Commands {
	return Commands{world: w}
}

// Queue 提交任意命令
func (c Commands) Queue(command Command) {
	c.world.queue(command)
}

// Spawn 立即分配句柄，实体在下一次 Flush 时创建
func (c Commands) Spawn(components ...any) Entity {
	entity := NewEntity()
	c.world.queue(func(world *World) {
		world.spawnAs(entity, components)
	})
	return entity
}

// Despawn 在下一次 Flush 时销毁实体；实体已不存在时什么也不做
func (c Commands) Despawn(entity Entity) {
	c.world.queue(func(world *World) {
		world.Despawn(entity)
	})
}

// Insert 在下一次 Flush 时附加组件，键是组件的具体类型
func (c Commands) Insert(entity Entity, component any) {
	c.world.queue(func(world *World) {
		if err := world.insert(entity, component); err != nil {
			world.logger.Debug("ecs: insert skipped", "entity", entity.String(), "error", err)
		}
	})
}

// AddTeardown 在下一次 Flush 时为实体注册清理
func (c Commands) AddTeardown(entity Entity, teardown func()) {
	c.world.queue(func(world *World) {
		world.AddTeardown(entity, teardown)
	})
}
