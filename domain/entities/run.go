package entities

import "time"

// RunRequest holds what the dispatch boundary needs to start a solve session
type RunRequest struct {
	Email    string `json:"email"`
	Secret   string `json:"-"`
	StartURL string `json:"url"`
}

// Outcome represents how a solve session ended
type Outcome string

const (
	OutcomeRunning  Outcome = "running"
	OutcomeFinished Outcome = "finished"
	OutcomeFailed   Outcome = "failed"
)

// RunRecord is the observable summary of one solve session
type RunRecord struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	StartURL    string    `json:"start_url"`
	LastURL     string    `json:"last_url"`
	Outcome     Outcome   `json:"outcome"`
	Submissions int       `json:"submissions"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Duration returns how long the session ran.
func (r RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
