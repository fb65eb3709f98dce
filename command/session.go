package command

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrSessionClosed is returned by a closed [Session].
var ErrSessionClosed = errors.New("command: session closed")

// Session is one console session: a runner plus the history of what ran in
// it. Sessions are scoped; each scope gets its own.
type Session struct {
	ID string

	runner  *Runner
	catalog *Catalog

	mu      sync.Mutex
	history []Result
	closed  bool
}

func NewSession(r *Runner, c *Catalog) *Session {
	return &Session{ID: uuid.NewString(), runner: r, catalog: c}
}

// Run executes line and appends the result to the history, including
// timed out runs.
func (s *Session) Run(ctx context.Context, line string) (Result, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return Result{}, ErrSessionClosed
	}

	res, err := s.runner.Run(ctx, line)
	if err != nil && !errors.Is(err, ErrTimeout) {
		return res, err
	}

	s.mu.Lock()
	s.history = append(s.history, res)
	s.mu.Unlock()
	return res, err
}

// RunEntry executes the catalog entry called name.
func (s *Session) RunEntry(ctx context.Context, name string) (Result, error) {
	e, ok := s.catalog.Lookup(name)
	if !ok {
		return Result{}, errors.New("command: no catalog entry named " + name)
	}
	return s.Run(ctx, e.Command)
}

// History returns the results so far, oldest first.
func (s *Session) History() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Result(nil), s.history...)
}

// Close ends the session and drops its history.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.closed = true
	s.history = nil
	return nil
}
