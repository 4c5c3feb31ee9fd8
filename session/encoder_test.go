package session

import (
	"errors"
	"strings"
	"testing"
)

func TestEncodeDecodeAuthenticatedRecord(t *testing.T) {
	u := testUser()
	u.AvatarURL = "https://cdn.example.com/a.png"

	data, err := Encode(PersistedState{User: &u, AccessToken: "tok1", IsAuthenticated: true})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(string(data), `"version":0`) {
		t.Fatalf("expected version envelope, got %s", data)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.User == nil || got.User.ID != "u1" || got.User.AvatarURL != u.AvatarURL {
		t.Fatalf("unexpected user %+v", got.User)
	}
	if got.AccessToken != "tok1" || !got.IsAuthenticated {
		t.Fatalf("unexpected state %+v", got)
	}
}

func TestEncodeEmptyWritesNulls(t *testing.T) {
	data, err := Encode(PersistedState{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `{"state":{"user":null,"accessToken":null,"isAuthenticated":false},"version":0}`
	if string(data) != want {
		t.Fatalf("expected %s, got %s", want, data)
	}
}

func TestDecodeBrowserRecord(t *testing.T) {
	raw := `{"state":{"user":{"id":"u1","email":"a@b.c","displayName":"A","roles":["admin","user"]},"accessToken":"tok1","isAuthenticated":true},"version":0}`

	got, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.User.HasRole("admin") || got.AccessToken != "tok1" {
		t.Fatalf("unexpected state %+v", got)
	}
}

func TestDecodeRederivesAuthenticatedFlag(t *testing.T) {
	raw := `{"state":{"user":null,"accessToken":"tok1","isAuthenticated":true},"version":0}`

	got, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.IsAuthenticated {
		t.Fatal("record without user must not decode as authenticated")
	}
}

func TestDecodeRejectsCorruptRecords(t *testing.T) {
	cases := map[string]string{
		"not json":        "{",
		"null":            "null",
		"missing version": `{"state":{"user":null}}`,
		"future version":  `{"state":{"user":null},"version":3}`,
	}
	for name, raw := range cases {
		if _, err := Decode([]byte(raw)); !errors.Is(err, ErrCorruptRecord) {
			t.Fatalf("%s: expected ErrCorruptRecord, got %v", name, err)
		}
	}
}

func TestUserWithoutIDRoundTrips(t *testing.T) {
	data, err := Encode(PersistedState{User: &User{Email: "a@b.c"}, AccessToken: "tok"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.User == nil || got.User.Email != "a@b.c" || got.User.ID != "" || !got.IsAuthenticated {
		t.Fatalf("expected id-less user restored as authenticated, got %+v", got)
	}
}
