// Package solver drives a quiz sequence: load a page, find where to submit, answer, follow the next URL.
package solver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quizsolver/application/extractor"
	"quizsolver/domain/entities"
	"quizsolver/domain/interfaces"
	"quizsolver/infrastructure/metrics"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// Config holds the loop policy
type Config struct {
	PostLoadDelay     time.Duration // wait after navigation before reading the page
	BetweenPagesDelay time.Duration // wait before loading the next URL
	MaxSteps          int           // submissions allowed per session, 0 means unbounded
	DefaultAnswer     string        // submitted when the answer engine fails

	// Retries after the first attempt. Zero keeps the fail-fast policy.
	NavigationRetries int
	SubmitRetries     int
	RetryInterval     time.Duration
}

// DefaultConfig - returns loop policy used when nothing is configured
func DefaultConfig() Config {
	return Config{
		PostLoadDelay:     500 * time.Millisecond,
		BetweenPagesDelay: time.Second,
		MaxSteps:          100,
		DefaultAnswer:     "42",
		RetryInterval:     time.Second,
	}
}

// Solver runs sessions. It is safe for concurrent use; sessions share nothing mutable.
type Solver struct {
	renderers interfaces.RendererFactory
	extractor *extractor.Extractor
	engine    interfaces.AnswerEngine
	submitter interfaces.Submitter
	cfg       Config
	logger    *logrus.Logger
}

// New - creates new solver
func New(renderers interfaces.RendererFactory, ext *extractor.Extractor, engine interfaces.AnswerEngine, submitter interfaces.Submitter, cfg Config, logger *logrus.Logger) *Solver {
	return &Solver{
		renderers: renderers,
		extractor: ext,
		engine:    engine,
		submitter: submitter,
		cfg:       cfg,
		logger:    logger,
	}
}

// NewSession - prepares a session in StateStarting without acquiring anything
func (s *Solver) NewSession(id, email, startURL string) *Session {
	return &Session{
		ID:         id,
		Email:      email,
		StartURL:   startURL,
		CurrentURL: startURL,
		State:      StateStarting,
		Visited:    []State{StateStarting},
		log: s.logger.WithFields(logrus.Fields{
			"session_id": id,
			"email":      email,
			"state":      StateStarting.String(),
		}),
	}
}

// Run - drives the session until it finishes or fails, then releases its render session
func (s *Solver) Run(ctx context.Context, sess *Session) {
	sess.log.Info("Solver started")

	defer func() {
		if err := sess.Close(); err != nil {
			sess.log.WithError(err).Warn("Failed to release render session")
		}
	}()

	for !sess.State.Terminal() {
		s.Step(ctx, sess)
	}

	if sess.State == StateFailed {
		sess.log.WithError(sess.Err).WithField("submissions", sess.Submissions).Error("Solver failed")
		return
	}
	sess.log.WithField("submissions", sess.Submissions).Info("Solver finished")
}

// Step - performs the work of the current state and moves to the next one
func (s *Solver) Step(ctx context.Context, sess *Session) State {
	if sess.State.Terminal() {
		return sess.State
	}

	var next State
	if err := ctx.Err(); err != nil {
		next = s.fail(sess, fmt.Errorf("session canceled: %w", err))
	} else {
		switch sess.State {
		case StateStarting:
			next = s.start(ctx, sess)
		case StateLoading:
			next = s.load(ctx, sess)
		case StateExtracting:
			next = s.extract(ctx, sess)
		case StateAnswering:
			next = s.computeAnswer(ctx, sess)
		case StateSubmitting:
			next = s.submit(ctx, sess)
		case StateDeciding:
			next = s.decide(ctx, sess)
		default:
			next = s.fail(sess, fmt.Errorf("unknown state %d", sess.State))
		}
	}

	if !CanTransition(sess.State, next) {
		next = s.fail(sess, fmt.Errorf("illegal transition %s -> %s", sess.State, next))
	}
	if next == StateFailed {
		metrics.StepFailures.WithLabelValues(sess.State.String()).Inc()
	}
	sess.enter(next)
	return next
}

func (s *Solver) fail(sess *Session, err error) State {
	sess.Err = err
	return StateFailed
}

// start - acquires the render session
func (s *Solver) start(ctx context.Context, sess *Session) State {
	renderer, err := s.renderers.Open(ctx)
	if err != nil {
		return s.fail(sess, fmt.Errorf("failed to open render session: %w", err))
	}
	sess.renderer = renderer
	return StateLoading
}

// load - navigates to the current URL, no retry unless configured
func (s *Solver) load(ctx context.Context, sess *Session) State {
	url := sess.CurrentURL
	sess.log.WithField("url", url).Info("Loading page")

	started := time.Now()
	err := s.retry(ctx, sess.log, s.cfg.NavigationRetries, func() error {
		return sess.renderer.Navigate(ctx, url)
	}, func(error) bool { return true })
	metrics.NavigationDuration.Observe(time.Since(started).Seconds())

	if err != nil {
		var navErr *entities.NavigationError
		if !errors.As(err, &navErr) {
			err = &entities.NavigationError{URL: url, Err: err}
		}
		return s.fail(sess, err)
	}

	if err := sleep(ctx, s.cfg.PostLoadDelay); err != nil {
		return s.fail(sess, fmt.Errorf("session canceled: %w", err))
	}
	return StateExtracting
}

// extract - reads the page, looks for a payload (optional) and the submit URL (mandatory)
func (s *Solver) extract(ctx context.Context, sess *Session) State {
	page, err := sess.renderer.Snapshot(ctx)
	if err != nil {
		return s.fail(sess, &entities.NavigationError{URL: sess.CurrentURL, Err: err})
	}
	if page.URL == "" {
		page.URL = sess.CurrentURL
	}
	sess.page = page
	sess.payload = nil

	if payload, ok := s.extractor.Payload(page.HTML); ok {
		sess.payload = payload
		sess.log.WithField("len", len(payload.Encoded)).Info("Found base64 block")
	}

	// the requested URL, not the post-redirect one, anchors bare /submit mentions
	match, err := s.extractor.Endpoint(page.HTML, sess.CurrentURL)
	if err != nil {
		return s.fail(sess, err)
	}
	sess.endpoint = match
	sess.log.WithFields(logrus.Fields{
		"endpoint": match.URL,
		"strategy": match.Strategy,
	}).Debug("Resolved submit URL")
	return StateAnswering
}

// computeAnswer - asks the engine; failures fall back to the default answer
func (s *Solver) computeAnswer(ctx context.Context, sess *Session) State {
	answer, err := s.safeAnswer(ctx, sess)
	if err != nil {
		ansErr := &entities.AnswerComputationError{URL: sess.page.URL, Err: err}
		sess.log.WithError(ansErr).Warn("Using default answer")
		metrics.StepFailures.WithLabelValues(StateAnswering.String()).Inc()
		answer = s.cfg.DefaultAnswer
	}
	sess.answer = answer
	return StateSubmitting
}

func (s *Solver) safeAnswer(ctx context.Context, sess *Session) (answer string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("answer engine panic: %v", r)
		}
	}()
	return s.engine.Answer(ctx, sess.page, sess.payload)
}

// submit - posts {email, answer} to the resolved endpoint
func (s *Solver) submit(ctx context.Context, sess *Session) State {
	endpoint := sess.endpoint.URL
	sess.log.WithField("endpoint", endpoint).Info("Submitting answer")

	req := entities.SubmissionRequest{Email: sess.Email, Answer: sess.answer}
	sess.Submissions++

	var result entities.SubmissionResult
	err := s.retry(ctx, sess.log, s.cfg.SubmitRetries, func() error {
		var err error
		result, err = s.submitter.Submit(ctx, endpoint, req)
		return err
	}, isTransportError)
	if err != nil {
		var protoErr *entities.ProtocolError
		if errors.As(err, &protoErr) {
			metrics.Submissions.WithLabelValues("protocol_error").Inc()
		} else {
			metrics.Submissions.WithLabelValues("transport_error").Inc()
		}
		return s.fail(sess, err)
	}

	sess.result = result
	fields := logrus.Fields{"status": result.StatusCode}
	if result.Correct != nil {
		fields["correct"] = *result.Correct
	}
	if result.Reason != "" {
		fields["reason"] = result.Reason
	}
	sess.log.WithFields(fields).Info("Submission accepted")
	return StateDeciding
}

// decide - follows the next URL or finishes
func (s *Solver) decide(ctx context.Context, sess *Session) State {
	if !sess.result.HasNext() {
		metrics.Submissions.WithLabelValues("last").Inc()
		sess.log.Info("No next url in response; finishing")
		sess.CurrentURL = ""
		return StateFinished
	}
	metrics.Submissions.WithLabelValues("next").Inc()

	if s.cfg.MaxSteps > 0 && sess.Submissions >= s.cfg.MaxSteps {
		return s.fail(sess, fmt.Errorf("%w after %d submissions", entities.ErrStepLimit, sess.Submissions))
	}

	sess.CurrentURL = sess.result.NextURL
	if err := sleep(ctx, s.cfg.BetweenPagesDelay); err != nil {
		return s.fail(sess, fmt.Errorf("session canceled: %w", err))
	}
	return StateLoading
}

// retry - runs op once plus up to retries more times while retryable accepts the error
func (s *Solver) retry(ctx context.Context, log *logrus.Entry, retries int, op func() error, retryable func(error) bool) error {
	if retries <= 0 {
		return op()
	}

	policy := backoff.NewExponentialBackOff()
	if s.cfg.RetryInterval > 0 {
		policy.InitialInterval = s.cfg.RetryInterval
	}
	policy.Reset()

	return backoff.RetryNotify(func() error {
		err := op()
		if err != nil && (ctx.Err() != nil || !retryable(err)) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(retries)), ctx), func(err error, wait time.Duration) {
		log.WithError(err).WithField("wait", wait).Warn("Retrying")
	})
}

func isTransportError(err error) bool {
	var transportErr *entities.TransportError
	return errors.As(err, &transportErr)
}

// sleep - waits d unless ctx ends first
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
