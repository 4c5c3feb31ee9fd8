package session

import "testing"

// FuzzSessionDecode exercises the persisted record decoder with arbitrary inputs.
// Goal: no panics, and every accepted record keeps the authentication invariant.
func FuzzSessionDecode(f *testing.F) {
	u := testUser()
	if encoded, err := Encode(PersistedState{User: &u, AccessToken: "tok", IsAuthenticated: true}); err == nil {
		f.Add(encoded)
	}
	if encoded, err := Encode(PersistedState{}); err == nil {
		f.Add(encoded)
	}
	f.Add([]byte{})
	f.Add([]byte("null"))
	f.Add([]byte(`{"state":{},"version":0}`))

	f.Fuzz(func(t *testing.T, data []byte) {
		state, err := Decode(data)
		if err != nil {
			return
		}
		if state.IsAuthenticated != (state.User != nil) {
			t.Fatalf("decoded state breaks invariant: %+v", state)
		}
	})
}
