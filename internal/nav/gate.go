// Package nav decides which screens are reachable for the current session.
package nav

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/me/cognilearn/internal/logging"
	"github.com/me/cognilearn/internal/session"
	"github.com/me/cognilearn/pkg/model"
)

// Screen names a navigation destination.
type Screen string

const (
	ScreenLogin     Screen = "login"
	ScreenDashboard Screen = "dashboard"
	ScreenLearning  Screen = "learning"
	ScreenCognitive Screen = "cognitive"
	ScreenReport    Screen = "report"
)

// ErrScreenUnavailable is returned when navigating to a screen that the
// current state does not expose.
var ErrScreenUnavailable = errors.New("screen not available")

var screensByState = map[State][]Screen{
	StateUnauthenticated: {ScreenLogin},
	StateAuthenticated:   {ScreenDashboard, ScreenLearning, ScreenCognitive, ScreenReport},
}

// Option configures a Gate.
type Option func(*Gate)

// WithOnChange registers fn to run after each gate transition.
func WithOnChange(fn func(from, to State, name string)) Option {
	return func(g *Gate) { g.onChange = fn }
}

// Gate follows a session.Manager and keeps the screen stack consistent with
// it. It never mutates the session.
type Gate struct {
	logger   *slog.Logger
	onChange func(from, to State, name string)
	cancel   func()

	mu       sync.Mutex
	observed bool
	last     session.State
	state    State
	role     model.Role
	stack    []Screen
}

// NewGate subscribes to m and evaluates its current state immediately.
func NewGate(m *session.Manager, logger *slog.Logger, opts ...Option) *Gate {
	g := &Gate{
		logger: logging.Component(logger, "nav"),
		state:  StateBootLoading,
	}
	for _, o := range opts {
		o(g)
	}
	g.cancel = m.Subscribe(g.observe)
	g.observe(m.State())
	return g
}

// Close stops following the session.
func (g *Gate) Close() {
	g.cancel()
}

func (g *Gate) observe(s session.State) {
	g.mu.Lock()
	// Snapshots can arrive out of order when NewGate's initial read races
	// a published change; an older one never overrides a newer one.
	if g.observed && s.Version <= g.last.Version {
		g.mu.Unlock()
		return
	}
	g.observed = true
	g.last = s

	// Loading during an operation is transient and never moves the gate.
	if !s.Hydrated || s.Loading {
		g.mu.Unlock()
		return
	}

	next := StateUnauthenticated
	if s.Authenticated() {
		next = StateAuthenticated
	}

	from := g.state
	if next == from {
		if next == StateAuthenticated && s.Role != g.role {
			g.logger.Info("role changed", "from", g.role, "to", s.Role)
			g.role = s.Role
			g.stack = []Screen{ScreenDashboard}
		}
		g.mu.Unlock()
		return
	}

	name, ok := lookup(from, next)
	if !ok {
		g.mu.Unlock()
		g.logger.Error("invalid gate transition", "from", from, "to", next)
		return
	}
	g.state = next
	g.role = s.Role
	switch next {
	case StateAuthenticated:
		g.stack = []Screen{ScreenDashboard}
	case StateUnauthenticated:
		g.stack = []Screen{ScreenLogin}
	}
	g.mu.Unlock()

	g.logger.Info("gate transition", "from", from, "to", next, "transition", name, "role", s.Role)
	if g.onChange != nil {
		g.onChange(from, next, name)
	}
}

// State returns the gate state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Mode returns the presentation mode for the latest session snapshot.
func (g *Gate) Mode() Mode {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ModeFor(g.last)
}

// Screens returns the destinations reachable in the current state.
func (g *Gate) Screens() []Screen {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(screensByState[g.state])
}

// Current returns the screen on top of the stack, or "" while booting.
func (g *Gate) Current() Screen {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.stack) == 0 {
		return ""
	}
	return g.stack[len(g.stack)-1]
}

// Stack returns a copy of the screen stack, bottom first.
func (g *Gate) Stack() []Screen {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.stack)
}

// Navigate pushes screen onto the stack.
func (g *Gate) Navigate(screen Screen) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !slices.Contains(screensByState[g.state], screen) {
		return fmt.Errorf("%w: %q in state %s", ErrScreenUnavailable, screen, g.state)
	}
	g.stack = append(g.stack, screen)
	return nil
}

// Back pops the top screen. The root screen is never popped.
func (g *Gate) Back() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.stack) <= 1 {
		return false
	}
	g.stack = g.stack[:len(g.stack)-1]
	return true
}
