// Package session keeps one editor and one viewer per browser session in a
// bounded LRU store.
package session

import (
	"sync"

	"github.com/google/uuid"

	"github.com/a3tai/pdf-form-editor/internal/editor"
	"github.com/a3tai/pdf-form-editor/internal/viewer"
)

// DefaultCapacity is used when a non-positive capacity is given
const DefaultCapacity = 64

// Session is the state owned by one browser session
type Session struct {
	ID     string
	Editor *editor.Editor
	Viewer *viewer.Adapter
}

// Close tears down the viewer widget and closes the editor
func (s *Session) Close() error {
	if s.Viewer != nil {
		s.Viewer.Unmount()
	}
	return s.Editor.Close()
}

// Factory creates the session with the given id. The store sets ID.
type Factory func(id string) *Session

// Store is a thread-safe least recently used map of session id to session.
// Evicted and removed sessions are closed.
type Store struct {
	mutex    sync.Mutex
	capacity int
	factory  Factory
	items    map[string]*entry
	head     *entry // most recently used
	tail     *entry // least recently used
	hits     int64
	misses   int64
	evicted  int64
}

type entry struct {
	session *Session
	prev    *entry
	next    *entry
}

// Stats describes store usage
type Stats struct {
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Evicted  int64 `json:"evicted"`
	Size     int   `json:"current_size"`
	Capacity int   `json:"max_capacity"`
}

// NewStore creates a store holding at most capacity sessions
func NewStore(capacity int, factory Factory) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	s := &Store{
		capacity: capacity,
		factory:  factory,
		items:    make(map[string]*entry),
		head:     &entry{},
		tail:     &entry{},
	}
	s.head.next = s.tail
	s.tail.prev = s.head
	return s
}

// Get returns session id and marks it as recently used
func (s *Store) Get(id string) (*Session, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if e, ok := s.items[id]; ok {
		s.moveToFront(e)
		s.hits++
		return e.session, true
	}
	s.misses++
	return nil, false
}

// GetOrCreate returns session id, starting a new session with a fresh id
// when id is unknown. The returned session's ID is the one to hand back to
// the client.
func (s *Store) GetOrCreate(id string) *Session {
	if id != "" {
		if sess, ok := s.Get(id); ok {
			return sess
		}
	}
	id = uuid.NewString()
	sess := s.factory(id)
	sess.ID = id
	s.put(sess)
	return sess
}

// Remove closes and forgets session id
func (s *Store) Remove(id string) bool {
	s.mutex.Lock()
	e, ok := s.items[id]
	if ok {
		s.unlink(e)
		delete(s.items, id)
	}
	s.mutex.Unlock()

	if ok {
		_ = e.session.Close()
	}
	return ok
}

// Close closes every session
func (s *Store) Close() {
	s.mutex.Lock()
	sessions := make([]*Session, 0, len(s.items))
	for _, e := range s.items {
		sessions = append(sessions, e.session)
	}
	s.items = make(map[string]*entry)
	s.head.next = s.tail
	s.tail.prev = s.head
	s.mutex.Unlock()

	for _, sess := range sessions {
		_ = sess.Close()
	}
}

// ViewerStats sums the viewer statistics of the live sessions
func (s *Store) ViewerStats() viewer.Stats {
	s.mutex.Lock()
	adapters := make([]*viewer.Adapter, 0, len(s.items))
	for _, e := range s.items {
		if e.session.Viewer != nil {
			adapters = append(adapters, e.session.Viewer)
		}
	}
	s.mutex.Unlock()

	var total viewer.Stats
	for _, a := range adapters {
		st := a.Stats()
		total.Mounted += st.Mounted
		total.TornDown += st.TornDown
		total.Saves += st.Saves
	}
	return total
}

// Len returns the number of live sessions
func (s *Store) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.items)
}

// Stats returns store statistics
func (s *Store) Stats() Stats {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return Stats{
		Hits:     s.hits,
		Misses:   s.misses,
		Evicted:  s.evicted,
		Size:     len(s.items),
		Capacity: s.capacity,
	}
}

func (s *Store) put(sess *Session) {
	s.mutex.Lock()
	e := &entry{session: sess}
	s.addToFront(e)
	s.items[sess.ID] = e

	var victim *entry
	if len(s.items) > s.capacity {
		victim = s.tail.prev
		s.unlink(victim)
		delete(s.items, victim.session.ID)
		s.evicted++
	}
	s.mutex.Unlock()

	// close outside the lock, Close waits for an edit in progress
	if victim != nil {
		_ = victim.session.Close()
	}
}

func (s *Store) moveToFront(e *entry) {
	s.unlink(e)
	s.addToFront(e)
}

func (s *Store) addToFront(e *entry) {
	e.prev = s.head
	e.next = s.head.next
	s.head.next.prev = e
	s.head.next = e
}

func (s *Store) unlink(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
}
