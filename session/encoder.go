package session

import (
	"encoding/json"
	"errors"
	"fmt"
)

// CurrentSchemaVersion is the version written into every persisted record.
const CurrentSchemaVersion = 0

// ErrCorruptRecord is returned by [Decode] for blobs that are not a valid
// persisted session record.
var ErrCorruptRecord = errors.New("corrupt session record")

type record struct {
	State   recordState `json:"state"`
	Version *int        `json:"version"`
}

type recordState struct {
	User            *User   `json:"user"`
	AccessToken     *string `json:"accessToken"`
	IsAuthenticated bool    `json:"isAuthenticated"`
}

// Encode serializes p into the persisted record envelope:
//
//	{"state":{"user":...,"accessToken":...,"isAuthenticated":...},"version":0}
//
// An absent user or token is written as null. The user is written as held in
// memory, so a restart restores exactly the identity the session had.
func Encode(p PersistedState) ([]byte, error) {
	version := CurrentSchemaVersion
	rec := record{
		State: recordState{
			User:            p.User.clone(),
			IsAuthenticated: p.User != nil,
		},
		Version: &version,
	}
	if p.AccessToken != "" {
		token := p.AccessToken
		rec.State.AccessToken = &token
	}
	return json.Marshal(rec)
}

// Decode parses a persisted record. The authenticated flag is re-derived from
// the presence of the user so a hand-edited or stale record cannot restore an
// authenticated session without an identity.
func Decode(data []byte) (PersistedState, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return PersistedState{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if rec.Version == nil {
		return PersistedState{}, fmt.Errorf("%w: missing schema version", ErrCorruptRecord)
	}
	if *rec.Version != CurrentSchemaVersion {
		return PersistedState{}, fmt.Errorf("%w: unsupported session schema version %d", ErrCorruptRecord, *rec.Version)
	}

	out := PersistedState{}
	if rec.State.User != nil {
		out.User = rec.State.User.clone()
		out.IsAuthenticated = true
	}
	if rec.State.AccessToken != nil {
		out.AccessToken = *rec.State.AccessToken
	}
	return out, nil
}
