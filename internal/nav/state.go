package nav

import (
	"fmt"

	"github.com/me/cognilearn/internal/session"
	"github.com/me/cognilearn/pkg/model"
)

// State is the gate's navigable state.
type State string

const (
	StateBootLoading     State = "BOOT_LOADING"
	StateUnauthenticated State = "UNAUTHENTICATED"
	StateAuthenticated   State = "AUTHENTICATED"
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// Transition is an allowed state change and its name for logging.
type Transition struct {
	From State
	To   State
	Name string
}

// Transitions lists every allowed gate transition. There is no terminal state.
var Transitions = []Transition{
	{From: StateBootLoading, To: StateUnauthenticated, Name: "no-session"},
	{From: StateBootLoading, To: StateAuthenticated, Name: "session-restored"},
	{From: StateUnauthenticated, To: StateAuthenticated, Name: "signed-in"},
	{From: StateAuthenticated, To: StateUnauthenticated, Name: "signed-out"},
}

func lookup(from, to State) (string, bool) {
	for _, t := range Transitions {
		if t.From == from && t.To == to {
			return t.Name, true
		}
	}
	return "", false
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s State) CanTransitionTo(next State) bool {
	_, ok := lookup(s, next)
	return ok
}

// ModeKind is one of the three presentation modes.
type ModeKind int

const (
	ModeLoading ModeKind = iota
	ModeUnauthenticated
	ModeAuthenticated
)

// Mode is what the UI should present. Role is set only for ModeAuthenticated.
type Mode struct {
	Kind ModeKind
	Role model.Role
}

func (m Mode) String() string {
	switch m.Kind {
	case ModeLoading:
		return "loading"
	case ModeUnauthenticated:
		return "unauthenticated"
	case ModeAuthenticated:
		return fmt.Sprintf("authenticated(%s)", m.Role)
	default:
		return "unknown"
	}
}

// ModeFor maps a session snapshot to a mode. Loading wins over everything,
// including the window before the stored session has been read.
func ModeFor(s session.State) Mode {
	switch {
	case s.Loading || !s.Hydrated:
		return Mode{Kind: ModeLoading}
	case !s.Authenticated():
		return Mode{Kind: ModeUnauthenticated}
	default:
		return Mode{Kind: ModeAuthenticated, Role: s.Role}
	}
}
