// Package dispatch is the boundary between run requests and solver sessions.
//
// Dispatch checks the shared secret, assigns a session id and starts the
// session in the background. At most MaxSessions sessions hold a render
// session at the same time; the rest wait for a slot. Every session is
// bounded by RunTimeout and recorded in the run history when one is set.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"quizsolver/application/solver"
	"quizsolver/domain/entities"
	"quizsolver/domain/interfaces"
	"quizsolver/infrastructure/metrics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// ErrShuttingDown is returned by Dispatch after Shutdown started.
var ErrShuttingDown = errors.New("dispatcher is shutting down")

// Options bounds the sessions a Dispatcher runs
type Options struct {
	MaxSessions int
	RunTimeout  time.Duration
}

// Dispatcher starts solver sessions and waits for them on shutdown
type Dispatcher struct {
	solver   *solver.Solver
	verifier interfaces.SecretVerifier
	store    interfaces.RunStore
	sem      *semaphore.Weighted
	opts     Options
	logger   *logrus.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu     sync.Mutex
	closed bool

	now func() time.Time
}

// New - creates dispatcher. store may be nil to skip run history.
func New(s *solver.Solver, verifier interfaces.SecretVerifier, store interfaces.RunStore, opts Options, logger *logrus.Logger) *Dispatcher {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 1
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Dispatcher{
		solver:   s,
		verifier: verifier,
		store:    store,
		sem:      semaphore.NewWeighted(int64(opts.MaxSessions)),
		opts:     opts,
		logger:   logger,
		baseCtx:  ctx,
		cancel:   cancel,
		now:      time.Now,
	}
}

// Dispatch - verifies the secret and starts a session without waiting for it.
// The returned id names the session in logs and in the run history.
func (d *Dispatcher) Dispatch(req entities.RunRequest) (string, error) {
	if d.verifier == nil || !d.verifier.Verify(req.Secret) {
		return "", entities.ErrInvalidSecret
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return "", ErrShuttingDown
	}

	id := uuid.NewString()
	metrics.SessionsStarted.Inc()
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.execute(d.baseCtx, id, req)
	}()

	d.logger.WithFields(logrus.Fields{
		"session_id": id,
		"email":      req.Email,
		"url":        req.StartURL,
	}).Info("Session dispatched")
	return id, nil
}

// Run - runs one session in the calling goroutine and returns its record.
// It does not check the secret; callers own that decision.
func (d *Dispatcher) Run(ctx context.Context, req entities.RunRequest) entities.RunRecord {
	metrics.SessionsStarted.Inc()
	return d.execute(ctx, uuid.NewString(), req)
}

// Wait blocks until every dispatched session has ended.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Shutdown - refuses new sessions, cancels running ones and waits for them
// to release their render sessions or for ctx to end.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sessions still running: %w", ctx.Err())
	}
}

func (d *Dispatcher) execute(ctx context.Context, id string, req entities.RunRequest) (record entities.RunRecord) {
	record = entities.RunRecord{
		ID:        id,
		Email:     req.Email,
		StartURL:  req.StartURL,
		LastURL:   req.StartURL,
		Outcome:   entities.OutcomeRunning,
		StartedAt: d.now(),
	}
	log := d.logger.WithField("session_id", id)

	if err := d.sem.Acquire(ctx, 1); err != nil {
		record.Outcome = entities.OutcomeFailed
		record.Error = fmt.Sprintf("session canceled before start: %v", err)
		d.finish(log, &record)
		return record
	}
	defer d.sem.Release(1)

	metrics.ActiveSessions.Inc()
	defer metrics.ActiveSessions.Dec()

	d.save(log, record)

	runCtx := ctx
	if d.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, d.opts.RunTimeout)
		defer cancel()
	}

	sess := d.solver.NewSession(id, req.Email, req.StartURL)
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Session panicked")
			if err := sess.Close(); err != nil {
				log.WithError(err).Warn("Failed to release render session")
			}
			record.Outcome = entities.OutcomeFailed
			record.Submissions = sess.Submissions
			record.LastURL = sess.LastURL()
			record.Error = fmt.Sprintf("panic: %v", r)
			d.finish(log, &record)
		}
	}()

	d.solver.Run(runCtx, sess)

	record.Outcome = sess.Outcome()
	record.Submissions = sess.Submissions
	if last := sess.LastURL(); last != "" {
		record.LastURL = last
	}
	if sess.Err != nil {
		record.Error = sess.Err.Error()
	}
	d.finish(log, &record)
	return record
}

func (d *Dispatcher) finish(log *logrus.Entry, record *entities.RunRecord) {
	record.FinishedAt = d.now()
	metrics.SessionsEnded.WithLabelValues(string(record.Outcome)).Inc()
	d.save(log, *record)
}

func (d *Dispatcher) save(log *logrus.Entry, record entities.RunRecord) {
	if d.store == nil {
		return
	}
	// history is written even when the session context is gone
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.store.SaveRun(ctx, record); err != nil {
		log.WithError(err).Warn("Failed to record run")
	}
}
