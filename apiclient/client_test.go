package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/zxckotee/novels-sub001/session"
)

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func writeErr(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": code, "message": msg}})
}

func newTestClient(t *testing.T, h http.Handler, store *session.Store, opts Options) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	opts.BaseURL = srv.URL + "/api/v1"
	c, err := New(store, opts)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func signedIn(token string) *session.Store {
	s := session.NewStore()
	s.Login(session.User{ID: "u1", Email: "a@example.com", Roles: []string{"user"}}, token)
	return s
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, err := New(nil, Options{}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for nil session, got %v", err)
	}
	if _, err := New(session.NewStore(), Options{BaseURL: "not a url"}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for bad url, got %v", err)
	}
}

func TestBearerOnlyWhenSignedIn(t *testing.T) {
	var got atomic.Value
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get("Authorization"))
		writeData(w, http.StatusOK, map[string]string{"ok": "yes"})
	})

	store := session.NewStore()
	store.SetAccessToken("orphan")
	c := newTestClient(t, h, store, Options{})

	if _, err := c.Get(context.Background(), "/novels", nil); err != nil {
		t.Fatalf("get: %v", err)
	}
	if v := got.Load().(string); v != "" {
		t.Fatalf("expected no bearer without a user, got %q", v)
	}

	store.Login(session.User{ID: "u1"}, "tok")
	if _, err := c.Get(context.Background(), "/novels", nil); err != nil {
		t.Fatalf("get: %v", err)
	}
	if v := got.Load().(string); v != "Bearer tok" {
		t.Fatalf("expected bearer tok, got %q", v)
	}
}

func TestUnauthorizedRefreshesAndRetriesOnce(t *testing.T) {
	var refreshes, calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshes, 1)
		if r.Header.Get("Authorization") != "" {
			t.Errorf("refresh must not carry a bearer")
		}
		writeData(w, http.StatusOK, map[string]string{"access_token": "new"})
	})
	mux.HandleFunc("/api/v1/bookmarks", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Header.Get("Authorization") != "Bearer new" {
			writeErr(w, http.StatusUnauthorized, "UNAUTHORIZED", "expired")
			return
		}
		writeData(w, http.StatusOK, []string{"b1"})
	})

	var refreshOK []bool
	store := signedIn("old")
	c := newTestClient(t, mux, store, Options{Hooks: Hooks{OnRefresh: func(ok bool) { refreshOK = append(refreshOK, ok) }}})

	var out []string
	if _, err := c.Get(context.Background(), "/bookmarks", &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(out) != 1 || out[0] != "b1" {
		t.Fatalf("unexpected data %v", out)
	}
	if r, n := atomic.LoadInt32(&refreshes), atomic.LoadInt32(&calls); r != 1 || n != 2 {
		t.Fatalf("expected 1 refresh and 2 calls, got %d and %d", r, n)
	}
	snap := store.Snapshot()
	if snap.AccessToken != "new" || !snap.IsAuthenticated {
		t.Fatalf("expected refreshed authenticated session, got %+v", snap)
	}
	if len(refreshOK) != 1 || !refreshOK[0] {
		t.Fatalf("expected one successful refresh hook, got %v", refreshOK)
	}
}

func TestRefreshFailureLogsOut(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusUnauthorized, "INVALID_REFRESH", "no cookie")
	})
	mux.HandleFunc("/api/v1/bookmarks", func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusUnauthorized, "UNAUTHORIZED", "expired")
	})

	loggedOut := 0
	store := signedIn("old")
	c := newTestClient(t, mux, store, Options{Hooks: Hooks{OnUnauthorizedLogout: func() { loggedOut++ }}})

	_, err := c.Get(context.Background(), "/bookmarks", nil)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	snap := store.Snapshot()
	if snap.User != nil || snap.AccessToken != "" || snap.IsAuthenticated {
		t.Fatalf("expected logged out session, got %+v", snap)
	}
	if loggedOut != 1 {
		t.Fatalf("expected one unauthorized logout, got %d", loggedOut)
	}
}

func TestAbandonedRefreshKeepsSession(t *testing.T) {
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		<-release
		writeData(w, http.StatusOK, map[string]string{"accessToken": "new"})
	})
	mux.HandleFunc("/api/v1/bookmarks", func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusUnauthorized, "UNAUTHORIZED", "expired")
	})

	var loggedOut int32
	store := signedIn("old")
	c := newTestClient(t, mux, store, Options{Hooks: Hooks{OnUnauthorizedLogout: func() { atomic.AddInt32(&loggedOut, 1) }}})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Get(ctx, "/bookmarks", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if errors.Is(err, ErrSessionExpired) {
		t.Fatal("a caller timeout must not expire the session")
	}
	if snap := store.Snapshot(); snap.User == nil || snap.User.ID != "u1" {
		t.Fatalf("expected session kept, got %+v", snap)
	}
	if atomic.LoadInt32(&loggedOut) != 0 {
		t.Fatal("unexpected unauthorized logout")
	}

	// The refresh the API was already serving still lands.
	close(release)
	deadline := time.Now().Add(2 * time.Second)
	for store.Snapshot().AccessToken != "new" {
		if time.Now().After(deadline) {
			t.Fatalf("expected refreshed token, got %q", store.Snapshot().AccessToken)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestLogoutWithExpiredTokenDoesNotRefresh(t *testing.T) {
	var refreshes int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshes, 1)
		writeErr(w, http.StatusUnauthorized, "INVALID_REFRESH", "gone")
	})
	mux.HandleFunc("/api/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusUnauthorized, "UNAUTHORIZED", "expired")
	})

	var loggedOut int32
	store := signedIn("old")
	c := newTestClient(t, mux, store, Options{Hooks: Hooks{OnUnauthorizedLogout: func() { atomic.AddInt32(&loggedOut, 1) }}})

	if err := c.Logout(context.Background()); err != nil {
		t.Fatalf("expected 401 on logout to count as success, got %v", err)
	}
	if n := atomic.LoadInt32(&refreshes); n != 0 {
		t.Fatalf("logout must not refresh, got %d refreshes", n)
	}
	if atomic.LoadInt32(&loggedOut) != 0 {
		t.Fatal("user logout must not be recorded as unauthorized")
	}
	if store.Snapshot().User != nil {
		t.Fatal("expected local session cleared")
	}
}

func TestSecondUnauthorizedIsReturned(t *testing.T) {
	var refreshes int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshes, 1)
		writeData(w, http.StatusOK, map[string]string{"accessToken": "new"})
	})
	mux.HandleFunc("/api/v1/admin", func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusUnauthorized, "UNAUTHORIZED", "still no")
	})

	store := signedIn("old")
	c := newTestClient(t, mux, store, Options{})

	_, err := c.Get(context.Background(), "/admin", nil)
	if !IsStatus(err, http.StatusUnauthorized) {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
	if n := atomic.LoadInt32(&refreshes); n != 1 {
		t.Fatalf("expected exactly one refresh, got %d", n)
	}
	if !store.Snapshot().IsAuthenticated {
		t.Fatal("a successful refresh must not log out")
	}
}

func TestLoginUnauthorizedDoesNotRefresh(t *testing.T) {
	var refreshes int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshes, 1)
		writeData(w, http.StatusOK, map[string]string{"accessToken": "new"})
	})
	mux.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "bad password")
	})

	store := session.NewStore()
	c := newTestClient(t, mux, store, Options{})

	_, err := c.Login(context.Background(), "a@example.com", "wrong")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "INVALID_CREDENTIALS" {
		t.Fatalf("expected INVALID_CREDENTIALS, got %v", err)
	}
	if n := atomic.LoadInt32(&refreshes); n != 0 {
		t.Fatalf("login 401 must not refresh, got %d", n)
	}
}

func TestLoginAndRegisterSignIn(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email != "a@example.com" || req.Password != "pw" {
			writeErr(w, http.StatusBadRequest, "BAD_REQUEST", "bad body")
			return
		}
		writeData(w, http.StatusOK, map[string]any{
			"user":        map[string]any{"id": "u1", "email": req.Email, "displayName": "A", "role": "admin"},
			"accessToken": "tok",
		})
	})
	mux.HandleFunc("/api/v1/auth/register", func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		writeData(w, http.StatusCreated, map[string]any{
			"user":        map[string]any{"id": "u2", "email": req.Email, "displayName": req.DisplayName, "role": "user"},
			"accessToken": "tok2",
		})
	})

	store := session.NewStore()
	c := newTestClient(t, mux, store, Options{})

	u, err := c.Login(context.Background(), "a@example.com", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !u.HasRole("admin") {
		t.Fatalf("expected admin role from single role field, got %v", u.Roles)
	}
	snap := store.Snapshot()
	if !snap.IsAuthenticated || snap.AccessToken != "tok" || snap.IsLoading {
		t.Fatalf("unexpected session after login %+v", snap)
	}

	u, err = c.Register(context.Background(), RegisterRequest{Email: "b@example.com", Password: "pw", DisplayName: "B"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.ID != "u2" || store.Snapshot().AccessToken != "tok2" {
		t.Fatalf("unexpected session after register %+v", store.Snapshot())
	}
}

func TestLogoutClearsLocallyOnFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusInternalServerError, "INTERNAL", "boom")
	})

	store := signedIn("tok")
	c := newTestClient(t, mux, store, Options{})

	err := c.Logout(context.Background())
	if !IsStatus(err, http.StatusInternalServerError) {
		t.Fatalf("expected 500 APIError, got %v", err)
	}
	if snap := store.Snapshot(); snap.User != nil || snap.AccessToken != "" {
		t.Fatalf("expected local session cleared, got %+v", snap)
	}
}

func TestProactiveRefreshOfExpiredJWT(t *testing.T) {
	now := time.Now()
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
	}).SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	var sawExpired int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, map[string]string{"accessToken": "fresh"})
	})
	mux.HandleFunc("/api/v1/profile", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer "+expired {
			atomic.AddInt32(&sawExpired, 1)
		}
		writeData(w, http.StatusOK, map[string]string{"id": "u1"})
	})

	store := signedIn(expired)
	c := newTestClient(t, mux, store, Options{Now: func() time.Time { return now }})

	if _, err := c.Get(context.Background(), "/profile", nil); err != nil {
		t.Fatalf("get: %v", err)
	}
	if atomic.LoadInt32(&sawExpired) != 0 {
		t.Fatal("expired token must not be sent")
	}
	if store.Snapshot().AccessToken != "fresh" {
		t.Fatalf("expected fresh token, got %q", store.Snapshot().AccessToken)
	}
}

func TestConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	var refreshes int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshes, 1)
		time.Sleep(20 * time.Millisecond)
		writeData(w, http.StatusOK, map[string]string{"accessToken": "new"})
	})
	mux.HandleFunc("/api/v1/chapters", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer new" {
			writeErr(w, http.StatusUnauthorized, "UNAUTHORIZED", "expired")
			return
		}
		writeData(w, http.StatusOK, nil)
	})

	store := signedIn("old")
	c := newTestClient(t, mux, store, Options{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Get(context.Background(), "/chapters", nil); err != nil {
				t.Errorf("get: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&refreshes); n != 1 {
		t.Fatalf("expected one shared refresh, got %d", n)
	}
}

func TestMetaAndErrorEnvelope(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/novels", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"n1"}],"meta":{"page":2,"limit":20,"total":41,"totalPages":3}}`))
	})
	mux.HandleFunc("/api/v1/comments", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":{"code":"VALIDATION","message":"invalid","details":{"body":["too short"]}}}`))
	})

	c := newTestClient(t, mux, session.NewStore(), Options{})

	var novels []struct {
		ID string `json:"id"`
	}
	meta, err := c.Get(context.Background(), "/novels?page=2", &novels)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if meta == nil || meta.Page != 2 || meta.TotalPages != 3 || len(novels) != 1 {
		t.Fatalf("unexpected meta %+v data %+v", meta, novels)
	}

	_, err = c.Post(context.Background(), "/comments", map[string]string{"body": "x"}, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnprocessableEntity || apiErr.Details["body"][0] != "too short" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
}

func TestMe(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/me", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, map[string]any{"id": "u1", "email": "a@example.com", "roles": []string{"premium", "user"}})
	})

	c := newTestClient(t, mux, signedIn("tok"), Options{})
	u, err := c.Me(context.Background())
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if u.ID != "u1" || !u.HasRole("premium") {
		t.Fatalf("unexpected user %+v", u)
	}
}
