package interfaces

import (
	"context"

	"quizsolver/domain/entities"
)

// RunStore keeps the history of solve sessions
type RunStore interface {
	// SaveRun inserts or replaces the record with the same ID
	SaveRun(ctx context.Context, record entities.RunRecord) error

	// ListRuns returns the most recent records first
	ListRuns(ctx context.Context, limit int) ([]entities.RunRecord, error)

	// GetRun returns entities.ErrRunNotFound when no record has the given ID
	GetRun(ctx context.Context, id string) (entities.RunRecord, error)
}
