package solver

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"quizsolver/application/extractor"
	"quizsolver/domain/entities"
	"quizsolver/domain/interfaces"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRenderer serves canned HTML per URL
type fakeRenderer struct {
	mu          sync.Mutex
	pages       map[string]string
	navigateErr map[string][]error // consumed one per attempt
	current     string
	navigated   []string
	closed      int
}

func (r *fakeRenderer) Navigate(ctx context.Context, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.navigated = append(r.navigated, url)
	if errs := r.navigateErr[url]; len(errs) > 0 {
		r.navigateErr[url] = errs[1:]
		return errs[0]
	}
	r.current = url
	return nil
}

func (r *fakeRenderer) Snapshot(ctx context.Context) (entities.PageContent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return entities.PageContent{URL: r.current, Title: "Quiz", HTML: r.pages[r.current], FetchedAt: time.Now()}, nil
}

func (r *fakeRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
	return nil
}

// stubSubmitter answers with replies in order
type stubSubmitter struct {
	submitFunc func(ctx context.Context, endpoint string, req entities.SubmissionRequest) (entities.SubmissionResult, error)
	calls      []string
	answers    []string
}

func (s *stubSubmitter) Submit(ctx context.Context, endpoint string, req entities.SubmissionRequest) (entities.SubmissionResult, error) {
	s.calls = append(s.calls, endpoint)
	s.answers = append(s.answers, req.Answer)
	return s.submitFunc(ctx, endpoint, req)
}

type answerFunc func(ctx context.Context, page entities.PageContent, payload *entities.Payload) (string, error)

func (f answerFunc) Answer(ctx context.Context, page entities.PageContent, payload *entities.Payload) (string, error) {
	return f(ctx, page, payload)
}

func fixedAnswer(value string) interfaces.AnswerEngine {
	return answerFunc(func(context.Context, entities.PageContent, *entities.Payload) (string, error) {
		return value, nil
	})
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PostLoadDelay = 0
	cfg.BetweenPagesDelay = 0
	cfg.RetryInterval = time.Millisecond
	return cfg
}

func newTestSolver(t *testing.T, r *fakeRenderer, engine interfaces.AnswerEngine, sub interfaces.Submitter, cfg Config) *Solver {
	t.Helper()
	ext, err := extractor.New(extractor.Options{})
	require.NoError(t, err)
	factory := interfaces.RendererFactoryFunc(func(context.Context) (interfaces.Renderer, error) {
		return r, nil
	})
	return New(factory, ext, engine, sub, cfg, quietLogger())
}

func reply(next string) entities.SubmissionResult {
	return entities.SubmissionResult{StatusCode: 200, NextURL: next}
}

func TestRunTwoPagesThenFinished(t *testing.T) {
	r := &fakeRenderer{pages: map[string]string{
		"https://quiz.test/A": `<form action="https://q.test/submit"></form>`,
		"B":                   `<pre>{"submit_url": "https://q.test/submit"}</pre>`,
	}}
	sub := &stubSubmitter{}
	sub.submitFunc = func(ctx context.Context, endpoint string, req entities.SubmissionRequest) (entities.SubmissionResult, error) {
		if len(sub.calls) == 1 {
			return reply("B"), nil
		}
		return reply(""), nil
	}

	s := newTestSolver(t, r, fixedAnswer("42"), sub, testConfig())
	sess := s.NewSession("s1", "me@example.com", "https://quiz.test/A")
	s.Run(context.Background(), sess)

	require.Equal(t, StateFinished, sess.State)
	require.NoError(t, sess.Err)
	assert.Equal(t, 2, sess.Submissions)
	assert.Equal(t, []string{"https://q.test/submit", "https://q.test/submit"}, sub.calls)
	assert.Equal(t, []string{"https://quiz.test/A", "B"}, r.navigated)
	assert.Equal(t, 1, r.closed)
	assert.Empty(t, sess.CurrentURL)
	assert.Equal(t, entities.OutcomeFinished, sess.Outcome())
	assert.Equal(t, "B", sess.LastURL())
}

func TestRunNavigationTimeoutFailsWithoutSubmissions(t *testing.T) {
	r := &fakeRenderer{
		pages:       map[string]string{},
		navigateErr: map[string][]error{"https://quiz.test/A": {errors.New("timeout 30000ms exceeded")}},
	}
	sub := &stubSubmitter{submitFunc: func(context.Context, string, entities.SubmissionRequest) (entities.SubmissionResult, error) {
		t.Fatal("submit must not be called")
		return entities.SubmissionResult{}, nil
	}}

	s := newTestSolver(t, r, fixedAnswer("42"), sub, testConfig())
	sess := s.NewSession("s2", "me@example.com", "https://quiz.test/A")
	s.Run(context.Background(), sess)

	require.Equal(t, StateFailed, sess.State)
	var navErr *entities.NavigationError
	require.ErrorAs(t, sess.Err, &navErr)
	assert.Equal(t, "https://quiz.test/A", navErr.URL)
	assert.Zero(t, sess.Submissions)
	assert.Empty(t, sub.calls)
	assert.Equal(t, 1, r.closed, "render session must be released")
	assert.Equal(t, []State{StateStarting, StateLoading, StateFailed}, sess.Visited)
}

func TestRunNavigationRetryConfigured(t *testing.T) {
	r := &fakeRenderer{
		pages:       map[string]string{"https://quiz.test/A": `<form action="https://q.test/submit"></form>`},
		navigateErr: map[string][]error{"https://quiz.test/A": {errors.New("flaky")}},
	}
	sub := &stubSubmitter{submitFunc: func(context.Context, string, entities.SubmissionRequest) (entities.SubmissionResult, error) {
		return reply(""), nil
	}}

	cfg := testConfig()
	cfg.NavigationRetries = 2
	s := newTestSolver(t, r, fixedAnswer("42"), sub, cfg)
	sess := s.NewSession("s3", "me@example.com", "https://quiz.test/A")
	s.Run(context.Background(), sess)

	require.Equal(t, StateFinished, sess.State)
	assert.Len(t, r.navigated, 2)
}

func TestRunExtractionFailure(t *testing.T) {
	r := &fakeRenderer{pages: map[string]string{"https://quiz.test/A": `<p>no endpoint here</p>`}}
	sub := &stubSubmitter{submitFunc: func(context.Context, string, entities.SubmissionRequest) (entities.SubmissionResult, error) {
		return reply(""), nil
	}}

	s := newTestSolver(t, r, fixedAnswer("42"), sub, testConfig())
	sess := s.NewSession("s4", "me@example.com", "https://quiz.test/A")
	s.Run(context.Background(), sess)

	require.Equal(t, StateFailed, sess.State)
	require.ErrorIs(t, sess.Err, entities.ErrEndpointNotFound)
	assert.Empty(t, sub.calls)
	assert.Equal(t, 1, r.closed)
}

func TestRunAnswerFailureUsesDefault(t *testing.T) {
	r := &fakeRenderer{pages: map[string]string{"https://quiz.test/A": `<form action="https://q.test/submit"></form>`}}
	sub := &stubSubmitter{submitFunc: func(context.Context, string, entities.SubmissionRequest) (entities.SubmissionResult, error) {
		return reply(""), nil
	}}
	broken := answerFunc(func(context.Context, entities.PageContent, *entities.Payload) (string, error) {
		return "", errors.New("engine down")
	})

	cfg := testConfig()
	cfg.DefaultAnswer = "fallback"
	s := newTestSolver(t, r, broken, sub, cfg)
	sess := s.NewSession("s5", "me@example.com", "https://quiz.test/A")
	s.Run(context.Background(), sess)

	require.Equal(t, StateFinished, sess.State)
	assert.Equal(t, []string{"fallback"}, sub.answers)
}

func TestRunAnswerPanicUsesDefault(t *testing.T) {
	r := &fakeRenderer{pages: map[string]string{"https://quiz.test/A": `<form action="https://q.test/submit"></form>`}}
	sub := &stubSubmitter{submitFunc: func(context.Context, string, entities.SubmissionRequest) (entities.SubmissionResult, error) {
		return reply(""), nil
	}}
	panicking := answerFunc(func(context.Context, entities.PageContent, *entities.Payload) (string, error) {
		panic("boom")
	})

	s := newTestSolver(t, r, panicking, sub, testConfig())
	sess := s.NewSession("s6", "me@example.com", "https://quiz.test/A")
	s.Run(context.Background(), sess)

	require.Equal(t, StateFinished, sess.State)
	assert.Equal(t, []string{"42"}, sub.answers)
}

func TestRunPassesPayloadToEngine(t *testing.T) {
	r := &fakeRenderer{pages: map[string]string{
		"https://quiz.test/A": `<img src="data:text/csv;base64,YSxiCjEsMg=="><form action="https://q.test/submit"></form>`,
	}}
	sub := &stubSubmitter{submitFunc: func(context.Context, string, entities.SubmissionRequest) (entities.SubmissionResult, error) {
		return reply(""), nil
	}}

	var seen *entities.Payload
	engine := answerFunc(func(_ context.Context, page entities.PageContent, payload *entities.Payload) (string, error) {
		seen = payload
		return "3", nil
	})

	s := newTestSolver(t, r, engine, sub, testConfig())
	sess := s.NewSession("s7", "me@example.com", "https://quiz.test/A")
	s.Run(context.Background(), sess)

	require.NotNil(t, seen)
	assert.Equal(t, "YSxiCjEsMg==", seen.Encoded)
	assert.Equal(t, "a,b\n1,2", string(seen.Decoded))
}

func TestRunTransportAndProtocolErrorsAreFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "transport", err: &entities.TransportError{Endpoint: "https://q.test/submit", Err: context.DeadlineExceeded}},
		{name: "protocol", err: &entities.ProtocolError{Endpoint: "https://q.test/submit", StatusCode: 200, Err: errors.New("invalid character '<'")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRenderer{pages: map[string]string{"https://quiz.test/A": `<form action="https://q.test/submit"></form>`}}
			sub := &stubSubmitter{submitFunc: func(context.Context, string, entities.SubmissionRequest) (entities.SubmissionResult, error) {
				return entities.SubmissionResult{}, tt.err
			}}

			s := newTestSolver(t, r, fixedAnswer("42"), sub, testConfig())
			sess := s.NewSession("s8", "me@example.com", "https://quiz.test/A")
			s.Run(context.Background(), sess)

			require.Equal(t, StateFailed, sess.State)
			require.ErrorIs(t, sess.Err, tt.err)
			assert.Len(t, sub.calls, 1)
			assert.Equal(t, 1, r.closed)
		})
	}
}

func TestRunSubmitRetryOnlyForTransport(t *testing.T) {
	r := &fakeRenderer{pages: map[string]string{"https://quiz.test/A": `<form action="https://q.test/submit"></form>`}}
	sub := &stubSubmitter{}
	sub.submitFunc = func(context.Context, string, entities.SubmissionRequest) (entities.SubmissionResult, error) {
		if len(sub.calls) == 1 {
			return entities.SubmissionResult{}, &entities.TransportError{Endpoint: "https://q.test/submit", Err: errors.New("reset")}
		}
		return entities.SubmissionResult{}, &entities.ProtocolError{Endpoint: "https://q.test/submit", Err: errors.New("bad json")}
	}

	cfg := testConfig()
	cfg.SubmitRetries = 5
	s := newTestSolver(t, r, fixedAnswer("42"), sub, cfg)
	sess := s.NewSession("s9", "me@example.com", "https://quiz.test/A")
	s.Run(context.Background(), sess)

	require.Equal(t, StateFailed, sess.State)
	var protoErr *entities.ProtocolError
	require.ErrorAs(t, sess.Err, &protoErr)
	assert.Len(t, sub.calls, 2)
	assert.Equal(t, 1, sess.Submissions)
}

func TestStepDecidingFollowsNextURL(t *testing.T) {
	r := &fakeRenderer{pages: map[string]string{"https://quiz.test/A": `<form action="https://q.test/submit"></form>`}}
	sub := &stubSubmitter{submitFunc: func(context.Context, string, entities.SubmissionRequest) (entities.SubmissionResult, error) {
		return reply("https://quiz.test/next"), nil
	}}

	s := newTestSolver(t, r, fixedAnswer("42"), sub, testConfig())
	sess := s.NewSession("s10", "me@example.com", "https://quiz.test/A")
	defer sess.Close()

	ctx := context.Background()
	for _, want := range []State{StateLoading, StateExtracting, StateAnswering, StateSubmitting, StateDeciding, StateLoading} {
		require.Equal(t, want, s.Step(ctx, sess))
	}
	assert.Equal(t, "https://quiz.test/next", sess.CurrentURL)
	assert.Equal(t, 1, sess.Submissions)
}

func TestStepDecidingNullURLFinishes(t *testing.T) {
	r := &fakeRenderer{pages: map[string]string{"https://quiz.test/A": `<form action="https://q.test/submit"></form>`}}
	sub := &stubSubmitter{submitFunc: func(context.Context, string, entities.SubmissionRequest) (entities.SubmissionResult, error) {
		return reply(""), nil
	}}

	s := newTestSolver(t, r, fixedAnswer("42"), sub, testConfig())
	sess := s.NewSession("s11", "me@example.com", "https://quiz.test/A")
	defer sess.Close()

	ctx := context.Background()
	for sess.State != StateDeciding {
		s.Step(ctx, sess)
	}
	assert.Equal(t, StateFinished, s.Step(ctx, sess))
	assert.Equal(t, StateFinished, s.Step(ctx, sess), "terminal states do not move")
	assert.Len(t, r.navigated, 1)
}

func TestRunStepLimit(t *testing.T) {
	r := &fakeRenderer{pages: map[string]string{"https://quiz.test/A": `<form action="https://q.test/submit"></form>`}}
	sub := &stubSubmitter{submitFunc: func(context.Context, string, entities.SubmissionRequest) (entities.SubmissionResult, error) {
		return reply("https://quiz.test/A"), nil
	}}

	cfg := testConfig()
	cfg.MaxSteps = 3
	s := newTestSolver(t, r, fixedAnswer("42"), sub, cfg)
	sess := s.NewSession("s12", "me@example.com", "https://quiz.test/A")
	s.Run(context.Background(), sess)

	require.Equal(t, StateFailed, sess.State)
	require.ErrorIs(t, sess.Err, entities.ErrStepLimit)
	assert.Equal(t, 3, sess.Submissions)
	assert.Equal(t, 1, r.closed)
}

func TestRunCanceledContext(t *testing.T) {
	r := &fakeRenderer{pages: map[string]string{"https://quiz.test/A": `<form action="https://q.test/submit"></form>`}}
	sub := &stubSubmitter{submitFunc: func(context.Context, string, entities.SubmissionRequest) (entities.SubmissionResult, error) {
		return reply("https://quiz.test/A"), nil
	}}

	cfg := testConfig()
	cfg.BetweenPagesDelay = time.Hour
	s := newTestSolver(t, r, fixedAnswer("42"), sub, cfg)
	sess := s.NewSession("s13", "me@example.com", "https://quiz.test/A")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	s.Run(ctx, sess)

	require.Equal(t, StateFailed, sess.State)
	require.ErrorIs(t, sess.Err, context.DeadlineExceeded)
	assert.Equal(t, 1, r.closed)
}

func TestRunRendererOpenFailure(t *testing.T) {
	ext, err := extractor.New(extractor.Options{})
	require.NoError(t, err)
	factory := interfaces.RendererFactoryFunc(func(context.Context) (interfaces.Renderer, error) {
		return nil, errors.New("could not start driver")
	})
	s := New(factory, ext, fixedAnswer("42"), &stubSubmitter{}, testConfig(), quietLogger())

	sess := s.NewSession("s14", "me@example.com", "https://quiz.test/A")
	s.Run(context.Background(), sess)

	require.Equal(t, StateFailed, sess.State)
	assert.ErrorContains(t, sess.Err, "could not start driver")
	assert.NoError(t, sess.Close())
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StateDeciding, StateLoading))
	assert.True(t, CanTransition(StateDeciding, StateFinished))
	assert.False(t, CanTransition(StateLoading, StateSubmitting))
	assert.False(t, CanTransition(StateFinished, StateLoading))
	assert.False(t, CanTransition(StateFailed, StateLoading))

	for s := StateStarting; s <= StateDeciding; s++ {
		assert.True(t, CanTransition(s, StateFailed), s.String())
	}
	assert.Equal(t, "unknown", State(99).String())
}
