package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"quizsolver/domain/entities"
	"quizsolver/domain/interfaces"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SnapshotFactory wraps another factory and writes every rendered page to dir.
// Each render session gets its own sub directory; pages are numbered in load order.
type SnapshotFactory struct {
	inner  interfaces.RendererFactory
	dir    string
	logger *logrus.Logger
}

// NewSnapshotFactory - returns inner unchanged when dir is empty
func NewSnapshotFactory(inner interfaces.RendererFactory, dir string, logger *logrus.Logger) interfaces.RendererFactory {
	if dir == "" {
		return inner
	}
	return &SnapshotFactory{inner: inner, dir: dir, logger: logger}
}

// Open - opens the inner session and prepares its snapshot directory
func (f *SnapshotFactory) Open(ctx context.Context) (interfaces.Renderer, error) {
	renderer, err := f.inner.Open(ctx)
	if err != nil {
		return nil, err
	}

	sessionDir := filepath.Join(f.dir, uuid.NewString())
	if err := os.MkdirAll(sessionDir, 0755); err != nil {
		renderer.Close()
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	return &snapshotRenderer{Renderer: renderer, dir: sessionDir, logger: f.logger}, nil
}

type snapshotRenderer struct {
	interfaces.Renderer
	dir    string
	seq    int
	logger *logrus.Logger
}

// Snapshot - delegates and stores the HTML; write failures are logged, never returned
func (r *snapshotRenderer) Snapshot(ctx context.Context) (entities.PageContent, error) {
	page, err := r.Renderer.Snapshot(ctx)
	if err != nil {
		return page, err
	}

	r.seq++
	path := filepath.Join(r.dir, fmt.Sprintf("page_%03d.html", r.seq))
	if err := os.WriteFile(path, []byte(page.HTML), 0644); err != nil {
		r.logger.WithError(err).WithField("path", path).Warn("Failed to save page snapshot")
		return page, nil
	}
	r.logger.WithFields(logrus.Fields{"path": path, "url": page.URL}).Debug("Saved page snapshot")
	return page, nil
}

// Dir returns where the session's pages are written.
func (r *snapshotRenderer) Dir() string {
	return r.dir
}
