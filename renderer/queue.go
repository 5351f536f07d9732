package renderer

import "github.com/etnz/tradebook/resolver"

// RenderQueue renders the resolution queue to a markdown string.
func RenderQueue(items []resolver.Item) string {
	return renderTemplate("queue", "queue.md", nil, struct{ Items []resolver.Item }{items})
}
