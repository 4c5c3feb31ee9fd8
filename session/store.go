package session

import "sync"

// Persister receives the persisted subset after every action that changes it.
// Persist is called synchronously, before subscribers are notified, and in
// the same order as the actions that produced the states. Persist must not
// call back into the Store.
type Persister interface {
	Persist(state PersistedState)
}

// Listener observes a state transition. prev and next are copies.
type Listener func(prev, next Snapshot)

type listenerEntry struct {
	id uint64
	fn Listener
}

type transition struct {
	prev, next Snapshot
}

// Store is the Session of one client process.
//
// A zero Store is not ready for use; create one with [NewStore]. All methods
// are safe to call from multiple goroutines. Listeners run outside the
// store's locks and may call back into the store.
//
// Listeners see transitions in mutation order, one at a time. An action
// normally returns after its listeners ran; when another goroutine (or an
// enclosing listener) is already delivering, the action returns once its
// transition is queued and that delivery reaches it.
type Store struct {
	// writeMu serializes actions so persisted writes follow action order.
	writeMu sync.Mutex

	mu        sync.RWMutex
	state     Snapshot
	persister Persister

	listenerMu sync.Mutex
	listeners  []listenerEntry
	nextID     uint64

	// queueMu guards pending and delivering.
	queueMu    sync.Mutex
	pending    []transition
	delivering bool
}

// NewStore returns a Store in the process-start state: no user, no token,
// not authenticated, loading.
func NewStore() *Store {
	return &Store{
		state: Snapshot{IsLoading: true},
	}
}

// SetPersister attaches the durable write hook. Passing nil detaches it.
func (s *Store) SetPersister(p Persister) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.persister = p
	s.mu.Unlock()
}

// Snapshot returns the current state. It never blocks on storage.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// SetUser replaces the user and derives IsAuthenticated from it. The access
// token and loading flag are left as they are.
func (s *Store) SetUser(user *User) {
	s.update(true, func(st *Snapshot) {
		st.User = user.clone()
		st.IsAuthenticated = st.User != nil
	})
}

// SetAccessToken replaces the access token. An empty token clears it.
func (s *Store) SetAccessToken(token string) {
	s.update(true, func(st *Snapshot) {
		st.AccessToken = token
	})
}

// Login marks the session authenticated with user and token and clears any
// residual loading state.
func (s *Store) Login(user User, token string) {
	s.update(true, func(st *Snapshot) {
		st.User = user.clone()
		st.AccessToken = token
		st.IsAuthenticated = true
		st.IsLoading = false
	})
}

// Logout clears the user, the token and the authenticated flag. IsLoading is
// not touched.
func (s *Store) Logout() {
	s.update(true, func(st *Snapshot) {
		st.User = nil
		st.AccessToken = ""
		st.IsAuthenticated = false
	})
}

// SetLoading sets IsLoading only.
func (s *Store) SetLoading(loading bool) {
	s.update(false, func(st *Snapshot) {
		st.IsLoading = loading
	})
}

// Restore applies a state read from durable storage. It does not write the
// state back and does not change IsLoading.
func (s *Store) Restore(p PersistedState) {
	s.update(false, func(st *Snapshot) {
		st.User = p.User.clone()
		st.AccessToken = p.AccessToken
		st.IsAuthenticated = st.User != nil
	})
}

// Subscribe registers fn for every subsequent transition and returns a
// function that removes it. Removing twice is harmless.
func (s *Store) Subscribe(fn Listener) func() {
	if fn == nil {
		return func() {}
	}

	s.listenerMu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listenerEntry{id: id, fn: fn})
	s.listenerMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenerMu.Lock()
			defer s.listenerMu.Unlock()
			for i, l := range s.listeners {
				if l.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Store) update(persist bool, mutate func(*Snapshot)) {
	s.writeMu.Lock()

	s.mu.Lock()
	prev := s.state
	next := prev
	mutate(&next)
	s.state = next
	persister := s.persister
	s.mu.Unlock()

	prevPersisted := prev.Persisted()
	nextPersisted := next.Persisted()
	if persist && persister != nil && !prevPersisted.equal(nextPersisted) {
		persister.Persist(nextPersisted)
	}

	s.queueMu.Lock()
	s.pending = append(s.pending, transition{prev: prev.clone(), next: next.clone()})
	s.queueMu.Unlock()
	s.writeMu.Unlock()

	s.deliver()
}

// deliver drains the transition queue unless a delivery is already running.
func (s *Store) deliver() {
	s.queueMu.Lock()
	if s.delivering {
		s.queueMu.Unlock()
		return
	}
	s.delivering = true
	defer func() {
		if r := recover(); r != nil {
			s.queueMu.Lock()
			s.delivering = false
			s.queueMu.Unlock()
			panic(r)
		}
	}()

	for len(s.pending) > 0 {
		t := s.pending[0]
		s.pending[0] = transition{}
		s.pending = s.pending[1:]
		s.queueMu.Unlock()

		s.notify(t.prev, t.next)

		s.queueMu.Lock()
	}
	s.delivering = false
	s.queueMu.Unlock()
}

func (s *Store) notify(prev, next Snapshot) {
	s.listenerMu.Lock()
	listeners := make([]listenerEntry, len(s.listeners))
	copy(listeners, s.listeners)
	s.listenerMu.Unlock()

	for _, l := range listeners {
		l.fn(prev, next)
	}
}
