package apiclient

import (
	"encoding/json"

	"github.com/zxckotee/novels-sub001/session"
)

// Meta is the pagination block of list responses.
type Meta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type envelope struct {
	Data json.RawMessage `json:"data"`
	Meta *Meta           `json:"meta,omitempty"`
}

type errorEnvelope struct {
	Error *APIError `json:"error"`
}

// User is the user object returned by the API. The API reports a single
// role; newer responses may carry a role list.
type User struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	DisplayName string   `json:"displayName"`
	AvatarURL   string   `json:"avatarUrl,omitempty"`
	Role        string   `json:"role,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Level       int      `json:"level,omitempty"`
	XP          int      `json:"xp,omitempty"`
	CreatedAt   string   `json:"createdAt,omitempty"`
}

// SessionUser converts u to the session identity.
func (u User) SessionUser() session.User {
	roles := append([]string(nil), u.Roles...)
	if u.Role != "" {
		roles = append(roles, u.Role)
	}
	return session.User{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		Roles:       session.NormalizeRoles(roles),
	}
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

// AuthResponse is returned by login and register.
type AuthResponse struct {
	User        User   `json:"user"`
	AccessToken string `json:"accessToken"`
}

// refreshResponse accepts both spellings the API has used.
type refreshResponse struct {
	AccessToken string `json:"accessToken"`
	Legacy      string `json:"access_token"`
}

func (r refreshResponse) token() string {
	if r.AccessToken != "" {
		return r.AccessToken
	}
	return r.Legacy
}
