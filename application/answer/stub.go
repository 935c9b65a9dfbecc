// Package answer holds answer engines for quiz pages.
package answer

import (
	"context"

	"quizsolver/domain/entities"
	"quizsolver/domain/interfaces"

	"github.com/sirupsen/logrus"
)

// DefaultAnswer is submitted when nothing better is known.
const DefaultAnswer = "42"

// StubEngine answers every page with a fixed value
type StubEngine struct {
	answer string
	logger *logrus.Logger
}

// NewStubEngine - creates engine answering with value, DefaultAnswer when empty
func NewStubEngine(value string, logger *logrus.Logger) *StubEngine {
	if value == "" {
		value = DefaultAnswer
	}
	return &StubEngine{answer: value, logger: logger}
}

// Answer - inspects the page and returns the configured answer
func (e *StubEngine) Answer(ctx context.Context, page entities.PageContent, payload *entities.Payload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fields := logrus.Fields{"url": page.URL, "title": page.Title}
	if payload != nil {
		fields["payload_len"] = len(payload.Encoded)
		fields["payload_decoded"] = payload.IsDecoded()
	}
	e.logger.WithFields(fields).Debug("Computing answer")

	return e.answer, nil
}

// Func adapts a function to interfaces.AnswerEngine
type Func func(ctx context.Context, page entities.PageContent, payload *entities.Payload) (string, error)

// Answer calls f.
func (f Func) Answer(ctx context.Context, page entities.PageContent, payload *entities.Payload) (string, error) {
	return f(ctx, page, payload)
}

var (
	_ interfaces.AnswerEngine = (*StubEngine)(nil)
	_ interfaces.AnswerEngine = Func(nil)
)
