package interfaces

import (
	"context"

	"quizsolver/domain/entities"
)

// Submitter posts answers to a quiz server.
// Implementations must not retry; failures are *entities.TransportError or *entities.ProtocolError.
type Submitter interface {
	Submit(ctx context.Context, endpoint string, req entities.SubmissionRequest) (entities.SubmissionResult, error)
}
