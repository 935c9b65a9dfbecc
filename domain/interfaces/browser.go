package interfaces

import (
	"context"

	"quizsolver/domain/entities"
)

// Renderer is an exclusively owned render session
type Renderer interface {
	// Navigate loads url and waits until network activity settles, bounded by the renderer timeout
	Navigate(ctx context.Context, url string) error

	// Snapshot returns the rendered HTML of the current page
	Snapshot(ctx context.Context) (entities.PageContent, error)

	// Close releases the page, the browser and the driver process. Safe to call more than once.
	Close() error
}

// RendererFactory opens a fresh render session per solve session
type RendererFactory interface {
	Open(ctx context.Context) (Renderer, error)
}

// RendererFactoryFunc adapts a function to RendererFactory
type RendererFactoryFunc func(ctx context.Context) (Renderer, error)

// Open calls f(ctx).
func (f RendererFactoryFunc) Open(ctx context.Context) (Renderer, error) {
	return f(ctx)
}
