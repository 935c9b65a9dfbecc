package interfaces

import (
	"context"

	"quizsolver/domain/entities"
)

// AnswerEngine computes the answer for a rendered quiz page
type AnswerEngine interface {
	// Answer receives the page snapshot and the embedded payload, nil when the page has none
	Answer(ctx context.Context, page entities.PageContent, payload *entities.Payload) (string, error)
}
