package session

import (
	"sort"
	"strings"
)

// User is the authenticated identity carried by a Session.
type User struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	DisplayName string   `json:"displayName"`
	AvatarURL   string   `json:"avatarUrl,omitempty"`
	Roles       []string `json:"roles"`
}

// HasRole reports whether role is one of the user's roles.
func (u *User) HasRole(role string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (u *User) clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.Roles = NormalizeRoles(u.Roles)
	return &out
}

func (u *User) equal(o *User) bool {
	if u == nil || o == nil {
		return u == o
	}
	if u.ID != o.ID || u.Email != o.Email || u.DisplayName != o.DisplayName || u.AvatarURL != o.AvatarURL {
		return false
	}
	if len(u.Roles) != len(o.Roles) {
		return false
	}
	for i := range u.Roles {
		if u.Roles[i] != o.Roles[i] {
			return false
		}
	}
	return true
}

// NormalizeRoles returns roles as a set: trimmed, without blanks or
// duplicates, sorted. The result is never nil.
func NormalizeRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	seen := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Snapshot is a point-in-time copy of the Session. Mutating a Snapshot never
// affects the [Store] it was read from.
type Snapshot struct {
	User            *User
	AccessToken     string
	IsAuthenticated bool
	IsLoading       bool
}

// AuthorizationToken returns the access token only when a user is present.
// A token left behind without a user must not be sent.
func (s Snapshot) AuthorizationToken() (string, bool) {
	if s.User == nil || s.AccessToken == "" {
		return "", false
	}
	return s.AccessToken, true
}

// Persisted returns the subset of s that is written to durable storage.
func (s Snapshot) Persisted() PersistedState {
	return PersistedState{
		User:            s.User.clone(),
		AccessToken:     s.AccessToken,
		IsAuthenticated: s.IsAuthenticated,
	}
}

func (s Snapshot) clone() Snapshot {
	s.User = s.User.clone()
	return s
}

// PersistedState is the durable subset of a Session. IsLoading is not part
// of it; every process starts loading.
type PersistedState struct {
	User            *User
	AccessToken     string
	IsAuthenticated bool
}

func (p PersistedState) equal(o PersistedState) bool {
	return p.AccessToken == o.AccessToken &&
		p.IsAuthenticated == o.IsAuthenticated &&
		p.User.equal(o.User)
}
