package models

import (
	"sync"
	"time"
)

// TimeFormat is the wire format of revision source timestamps and the
// baseline TSV timestamp columns.
const TimeFormat = "2006-01-02T15:04:05Z"

// ReadableTimeFormat is used for timestamps in API responses.
const ReadableTimeFormat = "2006-01-02 15:04:05 UTC"

// UserRecord holds per-user coverage metadata. Counts only grow and the
// timestamp range only widens; records are never deleted while the process
// lives.
type UserRecord struct {
	IsAnon         bool       `json:"is_anon"`
	NumEdits       int        `json:"num_edits"`
	NumPages       int        `json:"num_pages"`
	OldestEdit     *time.Time `json:"oldest_edit"`
	MostRecentEdit *time.Time `json:"most_recent_edit"`
}

// UserState bundles everything the engine tracks for one user. The embedded
// mutex serializes the fetch/discover/merge sequence of a query; concurrent
// queries for distinct users do not contend.
type UserState struct {
	mu sync.Mutex

	Meta      UserRecord
	Temporal  TemporalProfile
	Neighbors []CoeditEntry
}

func (s *UserState) Lock()   { s.mu.Lock() }
func (s *UserState) Unlock() { s.mu.Unlock() }

// UserStore is the keyed store mapping normalized handles to their owned
// state bundles. The outer RWMutex only guards the map; per-user mutation is
// guarded by each UserState's own mutex.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]*UserState
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]*UserState)}
}

func (s *UserStore) Get(handle string) (*UserState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.users[handle]
	return st, ok
}

func (s *UserStore) Has(handle string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[handle]
	return ok
}

// GetOrCreate returns the state bundle for handle, creating an empty one on
// first resolution. isAnon only applies to the created record.
func (s *UserStore) GetOrCreate(handle string, isAnon bool) *UserState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.users[handle]; ok {
		return st
	}
	st := &UserState{Meta: UserRecord{IsAnon: isAnon}}
	s.users[handle] = st
	return st
}

func (s *UserStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// ReadMeta returns a copy of the user's metadata under their lock.
func (s *UserStore) ReadMeta(handle string) (UserRecord, bool) {
	st, ok := s.Get(handle)
	if !ok {
		return UserRecord{}, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.Meta, true
}

// ReadTemporal returns a copy of the user's temporal profile under their
// lock. The second return is false for users with no state.
func (s *UserStore) ReadTemporal(handle string) (TemporalProfile, bool) {
	st, ok := s.Get(handle)
	if !ok {
		return TemporalProfile{}, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.Temporal, true
}

// NeighborPages reports the neighbor's known distinct-page count, the
// secondary ranking key. Unknown users rank as zero.
func (s *UserStore) NeighborPages(handle string) int {
	meta, ok := s.ReadMeta(handle)
	if !ok {
		return 0
	}
	return meta.NumPages
}

// Snapshot captures the full store for persistence. Each user is copied
// under their own lock; the result shares no memory with live state.
func (s *UserStore) Snapshot() *Snapshot {
	s.mu.RLock()
	handles := make([]string, 0, len(s.users))
	for h := range s.users {
		handles = append(handles, h)
	}
	s.mu.RUnlock()

	snap := &Snapshot{Version: SnapshotVersion, Users: make(map[string]*UserPersistence, len(handles))}
	for _, h := range handles {
		st, ok := s.Get(h)
		if !ok {
			continue
		}
		st.mu.Lock()
		neighbors := make([]CoeditEntry, len(st.Neighbors))
		copy(neighbors, st.Neighbors)
		snap.Users[h] = &UserPersistence{
			Meta:      st.Meta,
			Temporal:  st.Temporal,
			Neighbors: neighbors,
		}
		st.mu.Unlock()
	}
	return snap
}

// Restore replaces the store contents from a snapshot. Only called during
// single-threaded startup, before query traffic.
func (s *UserStore) Restore(snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = make(map[string]*UserState, len(snap.Users))
	for h, u := range snap.Users {
		if u == nil {
			continue
		}
		s.users[h] = &UserState{
			Meta:      u.Meta,
			Temporal:  u.Temporal,
			Neighbors: u.Neighbors,
		}
	}
}
