package middleware

import "github.com/danielgtaylor/huma/v2"

// Container накапливает middleware для очередной группы операций
type Container struct {
	items huma.Middlewares
}

func NewContainer() *Container {
	return &Container{}
}

func (c *Container) Add(m ...func(huma.Context, func(huma.Context))) *Container {
	c.items = append(c.items, m...)
	return c
}

// GetAllAndClear возвращает накопленные middleware и очищает контейнер
func (c *Container) GetAllAndClear() huma.Middlewares {
	items := c.items
	c.items = nil
	return items
}
