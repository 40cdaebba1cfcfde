package onboarding

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/decoderlabs/decoder-gateway/internal/telemetry"
)

// DefaultRefreshTimeout bounds a single status fetch.
const DefaultRefreshTimeout = 10 * time.Second

// ErrRefreshFailed is returned by Refresh when the fetch failed. The cause is
// logged, not returned.
var ErrRefreshFailed = errors.New("onboarding status refresh failed")

// refreshKey is the single singleflight key; a Store coalesces all refreshes.
const refreshKey = "status"

// State is the store's lifecycle state.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
)

// Snapshot is a point-in-time view of the store. Status is nil until the
// first successful refresh and keeps its last value after a failed one.
type Snapshot struct {
	Status *Status
	State  State
	Failed bool
}

// Loading reports whether a refresh is in flight.
func (s Snapshot) Loading() bool {
	return s.State == StateLoading
}

// Fetcher loads the current onboarding status.
type Fetcher interface {
	FetchStatus(ctx context.Context) (*Status, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) (*Status, error)

// FetchStatus calls f.
func (f FetcherFunc) FetchStatus(ctx context.Context) (*Status, error) {
	return f(ctx)
}

// Store owns one user's onboarding status. Overlapping refreshes share a
// single fetch.
type Store struct {
	fetcher  Fetcher
	timeout  time.Duration
	logger   *slog.Logger
	observer func(result string)

	group singleflight.Group

	mu        sync.Mutex
	snap      Snapshot
	nextID    int
	listeners map[int]func(Snapshot)
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithRefreshTimeout sets the deadline of a shared fetch.
func WithRefreshTimeout(d time.Duration) StoreOption {
	return func(s *Store) {
		s.timeout = d
	}
}

// WithLogger sets the logger used for fetch failures.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithResultObserver is called once per fetch with telemetry.RefreshOK or
// telemetry.RefreshFailed.
func WithResultObserver(fn func(result string)) StoreOption {
	return func(s *Store) {
		s.observer = fn
	}
}

// NewStore creates an idle store with no status.
func NewStore(fetcher Fetcher, opts ...StoreOption) *Store {
	s := &Store{
		fetcher:   fetcher,
		timeout:   DefaultRefreshTimeout,
		logger:    slog.Default(),
		snap:      Snapshot{State: StateIdle},
		listeners: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Subscribe registers fn to be called after every state change. The returned
// func removes it and is safe to call more than once.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Refresh fetches the status, joining a fetch already in flight. A refresh
// started after the previous one finished always fetches again. The shared
// fetch is not cancelled when ctx is; ctx only bounds how long this caller
// waits.
func (s *Store) Refresh(ctx context.Context) error {
	ch := s.group.DoChan(refreshKey, func() (any, error) {
		return nil, s.fetch(ctx)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) fetch(parent context.Context) error {
	s.update(func(snap *Snapshot) {
		snap.State = StateLoading
	})

	ctx := context.WithoutCancel(parent)
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	status, err := s.fetcher.FetchStatus(ctx)
	if err == nil && status == nil {
		err = errors.New("empty onboarding status")
	}
	if err != nil {
		s.logger.WarnContext(ctx, "onboarding status refresh failed", slog.String("error", err.Error()))
		s.observe(telemetry.RefreshFailed)
		s.update(func(snap *Snapshot) {
			snap.State = StateIdle
			snap.Failed = true
		})
		return ErrRefreshFailed
	}

	s.observe(telemetry.RefreshOK)
	s.update(func(snap *Snapshot) {
		*snap = Snapshot{Status: status, State: StateReady}
	})
	return nil
}

// update applies mutate under the lock, then notifies listeners outside it.
func (s *Store) update(mutate func(*Snapshot)) {
	s.mu.Lock()
	mutate(&s.snap)
	snap := s.snap
	listeners := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

func (s *Store) observe(result string) {
	if s.observer != nil {
		s.observer(result)
	}
}
