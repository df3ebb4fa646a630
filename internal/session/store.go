// Package session owns the bearer token and tells interested parties when
// the logged-in state changes.
//
// A Store is the single source of truth for "is a user logged in". Login
// and Logout persist through a Backend and then notify every subscriber
// synchronously; subscribers receive no payload and re-read the state from
// the Store. Any 401 from the API reaches HandleUnauthorized, which clears
// the token and sends the user to the login route.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/productlogik/plk/internal/logging"
	"go.uber.org/zap"
)

// ErrEmptyToken is returned by Login when given an empty token.
var ErrEmptyToken = errors.New("empty session token")

// Store holds the current session token.
type Store struct {
	mu      sync.Mutex
	token   string
	backend Backend
	nav     Navigator
	logger  *logging.Logger

	subsMu sync.Mutex
	subs   map[int]func()
	nextID int
}

// Option configures a Store.
type Option func(*Store)

// WithNavigator sets where Logout and HandleUnauthorized send the user.
func WithNavigator(n Navigator) Option {
	return func(s *Store) {
		s.nav = n
	}
}

// WithLogger sets the store's logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Open creates a Store and loads any persisted token from backend.
func Open(backend Backend, opts ...Option) (*Store, error) {
	s := &Store{
		backend: backend,
		nav:     NavigatorFunc(func(Route) {}),
		logger:  logging.Nop(),
		subs:    make(map[int]func()),
	}
	for _, opt := range opts {
		opt(s)
	}

	tok, err := backend.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	s.token = tok
	return s, nil
}

// Token returns the current bearer token, or "" when logged out.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// LoggedIn reports whether a token is held.
func (s *Store) LoggedIn() bool {
	return s.Token() != ""
}

// Login persists token and notifies subscribers.
func (s *Store) Login(token string) error {
	if token == "" {
		return ErrEmptyToken
	}
	s.mu.Lock()
	if err := s.backend.Save(token); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to save session: %w", err)
	}
	s.token = token
	s.mu.Unlock()

	s.logger.Info(context.Background(), "logged in")
	s.notify()
	return nil
}

// Logout removes the token, notifies subscribers and navigates home.
func (s *Store) Logout() error {
	if err := s.clear(); err != nil {
		return err
	}
	s.logger.Info(context.Background(), "logged out")
	s.notify()
	s.nav.Navigate(RouteHome)
	return nil
}

// HandleUnauthorized ends the session after the server rejected the token
// and navigates to the login route. It has the signature expected by
// api.WithUnauthorizedHandler.
func (s *Store) HandleUnauthorized(ctx context.Context) {
	if err := s.clear(); err != nil {
		s.logger.Warn(ctx, "failed to clear rejected session", zap.Error(err))
	}
	s.logger.Info(ctx, "session expired")
	s.notify()
	s.nav.Navigate(RouteLogin)
}

func (s *Store) clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.Clear(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	s.token = ""
	return nil
}

// Reload re-reads the backend and notifies subscribers if the token
// changed, e.g. because another process logged in or out.
func (s *Store) Reload() error {
	tok, err := s.backend.Load()
	if err != nil {
		return fmt.Errorf("failed to reload session: %w", err)
	}
	s.mu.Lock()
	changed := tok != s.token
	s.token = tok
	s.mu.Unlock()

	if changed {
		s.logger.Debug(context.Background(), "session changed on disk", zap.Bool("logged_in", tok != ""))
		s.notify()
	}
	return nil
}

// Subscribe registers fn to run after every login state change. The
// returned function removes the subscription.
func (s *Store) Subscribe(fn func()) (unsubscribe func()) {
	s.subsMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			s.subsMu.Unlock()
		})
	}
}

// notify runs subscribers outside the locks so they may call back into
// the Store.
func (s *Store) notify() {
	s.subsMu.Lock()
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
