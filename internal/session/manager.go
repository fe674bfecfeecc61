// Package session owns the client's authentication state.
//
// A Manager is the single authority for "is the user signed in, and as
// whom". It mediates between the credential store (the durable projection
// of the session) and the API client's bearer header, and publishes every
// state change to subscribers such as the navigation gate.
package session

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/me/cognilearn/internal/api"
	"github.com/me/cognilearn/internal/credstore"
	"github.com/me/cognilearn/internal/logging"
	"github.com/me/cognilearn/pkg/model"
)

// Demo session values. Every demo session shares the same token.
const (
	DemoToken  = "demo-token-123"
	DemoUserID = "demo-id"
)

// DemoEmail returns the synthetic email of the demo account for role.
func DemoEmail(role model.Role) string {
	return "demo@" + string(role) + ".com"
}

// User-facing failure messages.
const (
	MsgBusy               = "another operation is in progress"
	MsgInvalidCredentials = "Invalid credentials"
	MsgLoginFailed        = "Login failed"
	MsgRegistrationFailed = "Registration failed"
	MsgUnexpectedRole     = "unexpected role from server"
	MsgSaveFailed         = "could not save session"
	MsgUnknownRole        = "unknown role"
)

// State is a read-only snapshot of the session.
type State struct {
	Token     string
	User      *model.User // nil when signed out
	Role      model.Role
	Loading   bool      // an auth operation is in flight
	Hydrated  bool      // the stored session has been read
	ExpiresAt time.Time // token expiry when the token is a JWT, else zero
	Version   uint64    // incremented on every change
}

// Authenticated reports whether the snapshot holds a signed-in user.
func (s State) Authenticated() bool {
	return s.User != nil
}

// Result is the outcome of an auth operation. Operations never return errors.
type Result struct {
	Success bool
	Message string // user-facing reason when Success is false
}

var succeeded = Result{Success: true}

func failed(msg string) Result { return Result{Message: msg} }

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now, used to judge token expiry.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager owns the session. It is safe for concurrent use, but only one
// auth operation runs at a time.
type Manager struct {
	store  credstore.Store
	client *api.Client
	logger *slog.Logger
	now    func() time.Time

	op       sync.Mutex // held for the whole of an auth operation
	hydrated sync.Once

	mu      sync.RWMutex
	state   State
	subs    map[int]func(State)
	nextSub int
}

// NewManager returns a manager with an empty, not-yet-hydrated session.
func NewManager(store credstore.Store, client *api.Client, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		client: client,
		logger: logging.Component(logger, "session"),
		now:    time.Now,
		subs:   make(map[int]func(State)),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// State returns the current snapshot.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Subscribe registers fn to be called synchronously after every state
// change, in subscription order. The returned func unsubscribes.
func (m *Manager) Subscribe(fn func(State)) (cancel func()) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// update applies fn to the state and notifies subscribers.
func (m *Manager) update(fn func(*State)) {
	m.mu.Lock()
	fn(&m.state)
	m.state.Version++
	snap := m.state
	ids := make([]int, 0, len(m.subs))
	for id := range m.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	subs := make([]func(State), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, m.subs[id])
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

// begin claims the operation slot and raises Loading. It fails when
// another operation is in flight.
func (m *Manager) begin() bool {
	if !m.op.TryLock() {
		return false
	}
	m.update(func(s *State) { s.Loading = true })
	return true
}

func (m *Manager) end() {
	m.update(func(s *State) { s.Loading = false })
	m.op.Unlock()
}

// Hydrate restores the session saved by a previous process. It runs once;
// later calls return immediately. It never touches the network and never
// fails: unreadable storage is treated as "no session".
func (m *Manager) Hydrate(ctx context.Context) {
	m.hydrated.Do(func() {
		m.op.Lock()
		defer m.op.Unlock()
		m.hydrate(ctx)
		m.update(func(s *State) { s.Hydrated = true })
	})
}

func (m *Manager) hydrate(ctx context.Context) {
	creds, err := credstore.Load(ctx, m.store)
	switch {
	case errors.Is(err, credstore.ErrNotFound):
		m.logger.Debug("no stored session")
		return
	case errors.Is(err, credstore.ErrIncomplete), errors.Is(err, credstore.ErrCorrupt):
		m.logger.Warn("discarding invalid stored session", "error", err)
		m.clearStore(ctx)
		return
	case err != nil:
		m.logger.Warn("read stored session", "error", err)
		return
	}

	if api.TokenExpired(creds.Token, m.now()) {
		m.logger.Info("stored session expired", "user_id", creds.User.ID)
		m.clearStore(ctx)
		return
	}

	m.client.SetToken(creds.Token)
	m.setAuthenticated(creds)
	m.logger.Info("session restored", "user_id", creds.User.ID, "role", creds.Role)
}

// Login authenticates against the backend and persists the session.
func (m *Manager) Login(ctx context.Context, email, password string) Result {
	if !m.begin() {
		return failed(MsgBusy)
	}
	defer m.end()
	return m.login(ctx, email, password)
}

// login is shared by Login and Register. The caller holds the operation slot.
func (m *Manager) login(ctx context.Context, email, password string) Result {
	resp, err := m.client.Login(ctx, email, password)
	if err != nil {
		m.logger.Warn("login failed", "email", email, "error", err)
		return failed(loginMessage(err))
	}

	role, err := model.ParseRole(resp.Role)
	if err != nil {
		m.logger.Error("login rejected", "user_id", resp.ID, "error", err)
		return failed(MsgUnexpectedRole)
	}

	return m.apply(ctx, credstore.Credentials{
		Token: resp.AccessToken,
		User:  model.User{ID: resp.ID, Email: email},
		Role:  role,
	})
}

func loginMessage(err error) string {
	if api.IsUnauthorized(err) {
		return MsgInvalidCredentials
	}
	if d := api.Detail(err); d != "" {
		return d
	}
	return MsgLoginFailed
}

// apply persists creds, then sets the bearer header, then updates the
// in-memory session, so observers never see a half-authenticated state.
func (m *Manager) apply(ctx context.Context, creds credstore.Credentials) Result {
	if err := credstore.Save(ctx, m.store, creds); err != nil {
		// Save has already cleared the store, so a previous session is gone too.
		m.logger.Error("persist session", "error", err)
		m.reset(ctx)
		return failed(MsgSaveFailed)
	}
	m.client.SetToken(creds.Token)
	m.setAuthenticated(creds)
	m.logger.Info("signed in", "user_id", creds.User.ID, "role", creds.Role)
	return succeeded
}

func (m *Manager) setAuthenticated(creds credstore.Credentials) {
	user := creds.User
	exp, _ := api.TokenExpiry(creds.Token)
	m.update(func(s *State) {
		s.Token = creds.Token
		s.User = &user
		s.Role = creds.Role
		s.ExpiresAt = exp
	})
}

// Logout clears the stored and in-memory session. It always succeeds; a
// failure to clear storage is logged and otherwise ignored. An in-flight
// operation is waited for rather than rejected.
func (m *Manager) Logout(ctx context.Context) Result {
	m.op.Lock()
	m.update(func(s *State) { s.Loading = true })
	defer m.end()

	m.reset(ctx)
	return succeeded
}

func (m *Manager) reset(ctx context.Context) {
	m.clearStore(ctx)
	m.client.ClearToken()
	m.update(func(s *State) {
		s.Token = ""
		s.User = nil
		s.Role = ""
		s.ExpiresAt = time.Time{}
	})
	m.logger.Info("signed out")
}

func (m *Manager) clearStore(ctx context.Context) {
	if err := credstore.Clear(ctx, m.store); err != nil {
		m.logger.Warn("clear stored session", "error", err)
	}
}

// Register creates an account and signs straight into it.
func (m *Manager) Register(ctx context.Context, email, password string, role model.Role) Result {
	if !m.begin() {
		return failed(MsgBusy)
	}
	defer m.end()

	if err := m.client.Register(ctx, email, password, role); err != nil {
		m.logger.Warn("registration failed", "email", email, "error", err)
		if d := api.Detail(err); d != "" {
			return failed(d)
		}
		return failed(MsgRegistrationFailed)
	}
	return m.login(ctx, email, password)
}

// DemoLogin signs in as a synthetic account for role without contacting the
// backend. Repeated calls with the same role produce the same session.
func (m *Manager) DemoLogin(ctx context.Context, role model.Role) Result {
	if !role.Valid() {
		return failed(MsgUnknownRole)
	}
	if !m.begin() {
		return failed(MsgBusy)
	}
	defer m.end()

	return m.apply(ctx, credstore.Credentials{
		Token: DemoToken,
		User:  model.User{ID: DemoUserID, Email: DemoEmail(role)},
		Role:  role,
	})
}

// InvalidateOnAuthError resets the session when err shows the backend no
// longer accepts the token. It reports whether the session was reset.
func (m *Manager) InvalidateOnAuthError(ctx context.Context, err error) bool {
	if !api.IsUnauthorized(err) || !m.State().Authenticated() {
		return false
	}
	m.logger.Warn("token rejected by server, signing out", "error", err)
	m.Logout(ctx)
	return true
}
