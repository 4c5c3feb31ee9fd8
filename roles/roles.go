package roles

import (
	"errors"
	"sync"

	"github.com/zxckotee/novels-sub001/session"
)

// Well-known platform roles.
const (
	User      = "user"
	Premium   = "premium"
	Moderator = "moderator"
	Admin     = "admin"
)

// Policy maps a role to the roles it includes. A Policy is built at startup
// and frozen before use.
type Policy struct {
	mu       sync.RWMutex
	includes map[string]map[string]struct{}
	frozen   bool
}

// NewPolicy returns an empty, unfrozen Policy.
func NewPolicy() *Policy {
	return &Policy{includes: make(map[string]map[string]struct{})}
}

// DefaultPolicy returns the platform policy, frozen.
func DefaultPolicy() *Policy {
	p := NewPolicy()
	_ = p.Include(Admin, Moderator, Premium)
	p.Freeze()
	return p
}

var defaultPolicy = DefaultPolicy()

// Include records that role includes each of included.
func (p *Policy) Include(role string, included ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.frozen {
		return errors.New("role policy frozen")
	}
	if role == "" {
		return errors.New("role name empty")
	}
	set, ok := p.includes[role]
	if !ok {
		set = make(map[string]struct{}, len(included))
		p.includes[role] = set
	}
	for _, r := range included {
		if r == "" {
			return errors.New("included role name empty")
		}
		if r == role {
			continue
		}
		set[r] = struct{}{}
	}
	return nil
}

// Freeze makes the policy read-only.
func (p *Policy) Freeze() {
	p.mu.Lock()
	p.frozen = true
	p.mu.Unlock()
}

// Satisfies reports whether u holds role directly or through a role that
// includes it, transitively.
func (p *Policy) Satisfies(u *session.User, role string) bool {
	if u == nil {
		return false
	}
	if u.HasRole(role) {
		return true
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	seen := make(map[string]struct{}, len(u.Roles))
	queue := append([]string(nil), u.Roles...)
	for len(queue) > 0 {
		r := queue[0]
		queue = queue[1:]
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		for inc := range p.includes[r] {
			if inc == role {
				return true
			}
			queue = append(queue, inc)
		}
	}
	return false
}

// SatisfiesAny reports whether u satisfies at least one of roles. An empty
// list is satisfied by any user.
func (p *Policy) SatisfiesAny(u *session.User, roles ...string) bool {
	if u == nil {
		return false
	}
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if p.Satisfies(u, r) {
			return true
		}
	}
	return false
}

// HasRole reports exact membership. A nil user has no roles.
func HasRole(u *session.User, role string) bool {
	return u.HasRole(role)
}

// IsAdmin reports whether u is an administrator.
func IsAdmin(u *session.User) bool {
	return HasRole(u, Admin)
}

// IsModerator reports whether u can moderate (moderators and admins).
func IsModerator(u *session.User) bool {
	return defaultPolicy.Satisfies(u, Moderator)
}

// IsPremium reports whether u has premium access (premium users and admins).
func IsPremium(u *session.User) bool {
	return defaultPolicy.Satisfies(u, Premium)
}
