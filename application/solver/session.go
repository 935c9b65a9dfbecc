package solver

import (
	"quizsolver/application/extractor"
	"quizsolver/domain/entities"
	"quizsolver/domain/interfaces"

	"github.com/sirupsen/logrus"
)

// Session is one end-to-end solve run. It is driven by a single goroutine.
type Session struct {
	ID         string
	Email      string
	StartURL   string
	CurrentURL string // empty once the sequence is over

	State       State
	Visited     []State // every state entered, in order
	Submissions int
	Err         error // set when State is StateFailed

	renderer interfaces.Renderer
	closeErr error

	page     entities.PageContent
	payload  *entities.Payload
	endpoint extractor.Match
	answer   string
	result   entities.SubmissionResult

	log *logrus.Entry
}

// LastURL returns the last page the session worked on.
func (s *Session) LastURL() string {
	if s.page.URL != "" {
		return s.page.URL
	}
	return s.CurrentURL
}

// Outcome maps the session state to the recorded outcome.
func (s *Session) Outcome() entities.Outcome {
	switch s.State {
	case StateFinished:
		return entities.OutcomeFinished
	case StateFailed:
		return entities.OutcomeFailed
	default:
		return entities.OutcomeRunning
	}
}

// Close releases the render session. Later calls return the first result.
func (s *Session) Close() error {
	if s.renderer == nil {
		return s.closeErr
	}
	s.closeErr = s.renderer.Close()
	s.renderer = nil
	return s.closeErr
}

func (s *Session) enter(next State) {
	s.State = next
	s.Visited = append(s.Visited, next)
	s.log = s.log.WithField("state", next.String())
}
