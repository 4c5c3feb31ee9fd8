package guard

import (
	"context"
	"sync"

	"github.com/zxckotee/novels-sub001/roles"
	"github.com/zxckotee/novels-sub001/session"
)

// Decision is the outcome of evaluating a Requirement.
type Decision int

const (
	// Pending means the session is still loading.
	Pending Decision = iota
	// Allow means the requirement is met.
	Allow
	// Unauthenticated means the viewer must sign in.
	Unauthenticated
	// Forbidden means the viewer is signed in without a required role.
	Forbidden
)

func (d Decision) String() string {
	switch d {
	case Pending:
		return "pending"
	case Allow:
		return "allow"
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Final reports whether d can no longer change without a session mutation.
func (d Decision) Final() bool {
	return d != Pending
}

// Requirement describes what a view needs from the session.
type Requirement struct {
	// Authenticated requires a signed-in user. Implied by AnyRole.
	Authenticated bool
	// AnyRole requires at least one of these roles, resolved through Policy.
	AnyRole []string
	// Policy resolves role inclusion. Nil uses roles.DefaultPolicy.
	Policy *roles.Policy
}

var defaultPolicy = roles.DefaultPolicy()

// Evaluate applies req to s.
func Evaluate(s session.Snapshot, req Requirement) Decision {
	if s.IsLoading {
		return Pending
	}

	needsUser := req.Authenticated || len(req.AnyRole) > 0
	if !needsUser {
		return Allow
	}
	if s.User == nil {
		return Unauthenticated
	}
	if len(req.AnyRole) == 0 {
		return Allow
	}

	policy := req.Policy
	if policy == nil {
		policy = defaultPolicy
	}
	if policy.SatisfiesAny(s.User, req.AnyRole...) {
		return Allow
	}
	return Forbidden
}

// RequireAuthenticated admits any signed-in user.
func RequireAuthenticated() Requirement {
	return Requirement{Authenticated: true}
}

// RequireAdmin admits administrators.
func RequireAdmin() Requirement {
	return Requirement{Authenticated: true, AnyRole: []string{roles.Admin}}
}

// RequireModerator admits moderators and administrators.
func RequireModerator() Requirement {
	return Requirement{Authenticated: true, AnyRole: []string{roles.Moderator}}
}

// RequirePremium admits premium users and administrators.
func RequirePremium() Requirement {
	return Requirement{Authenticated: true, AnyRole: []string{roles.Premium}}
}

// Guard evaluates one Requirement against a live Store.
type Guard struct {
	store *session.Store
	req   Requirement
}

// New returns a Guard over store.
func New(store *session.Store, req Requirement) *Guard {
	return &Guard{store: store, req: req}
}

// Decision evaluates the requirement against the current snapshot.
func (g *Guard) Decision() Decision {
	return Evaluate(g.store.Snapshot(), g.req)
}

// Watch calls fn with the current decision and then each time it changes,
// including when the session finishes loading. The returned function stops
// watching.
func (g *Guard) Watch(fn func(Decision)) (stop func()) {
	var (
		mu   sync.Mutex
		last Decision
		seen bool
	)
	emit := func(d Decision) {
		mu.Lock()
		if seen && d == last {
			mu.Unlock()
			return
		}
		seen = true
		last = d
		mu.Unlock()
		fn(d)
	}

	unsubscribe := g.store.Subscribe(func(_, next session.Snapshot) {
		emit(Evaluate(next, g.req))
	})
	emit(g.Decision())
	return unsubscribe
}

// Await blocks until the decision is final or ctx is done.
func (g *Guard) Await(ctx context.Context) (Decision, error) {
	final := make(chan Decision, 1)
	stop := g.Watch(func(d Decision) {
		if !d.Final() {
			return
		}
		select {
		case final <- d:
		default:
		}
	})
	defer stop()

	select {
	case d := <-final:
		return d, nil
	case <-ctx.Done():
		return Pending, ctx.Err()
	}
}
