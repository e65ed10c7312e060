package transcript

import (
	"context"
	"errors"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/petpal-ai/petcare/backend/internal/model/chat"
)

var ErrSessionNotFound = errors.New("session not found")

// WelcomeText opens every new transcript.
const WelcomeText = "Hi there! How can I help you and your pet today?"

// Flags exposes the per-session UI affordance state: composing is true
// while any backend call dispatched for the session is still in flight,
// dictating while speech capture is active.
type Flags struct {
	Composing bool `json:"composing"`
	Dictating bool `json:"dictating"`
}

// Event is delivered to transcript watchers, in append order.
type Event struct {
	Type  string     `json:"type"` // "turn" or "flags"
	Turn  *chat.Turn `json:"turn,omitempty"`
	Flags *Flags     `json:"flags,omitempty"`
}

// Store keeps the append-only transcript and session flags for every
// live chat session. Turns are never updated or deleted; the only
// mutations are appends and flag changes.
type Store struct {
	mu          sync.RWMutex
	sessions    map[string]chat.Session
	turns       map[string][]chat.Turn
	seq         map[string]int64
	outstanding map[string]int
	dictating   map[string]bool
	watchers    map[string]map[int]chan Event
	watcherSeq  int
}

// NewStore bootstraps the in-memory transcript store.
func NewStore() *Store {
	return &Store{
		sessions:    make(map[string]chat.Session),
		turns:       make(map[string][]chat.Turn),
		seq:         make(map[string]int64),
		outstanding: make(map[string]int),
		dictating:   make(map[string]bool),
		watchers:    make(map[string]map[int]chan Event),
	}
}

// CreateSession provisions an anonymous session with a seeded
// assistant welcome turn, so the transcript is never empty.
func (s *Store) CreateSession(_ context.Context) (chat.Session, error) {
	session := chat.Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.seq[session.ID] = 1
	s.turns[session.ID] = []chat.Turn{{
		ID:        "1",
		Author:    chat.AuthorAssistant,
		Text:      WelcomeText,
		CreatedAt: session.CreatedAt,
	}}
	s.mu.Unlock()

	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Store) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// Append adds one turn to the session transcript. The store assigns
// the identifier (monotonic per session) and the timestamp if unset;
// everything else on the turn is taken as-is and never touched again.
func (s *Store) Append(_ context.Context, sessionID string, turn chat.Turn) (chat.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return chat.Turn{}, ErrSessionNotFound
	}

	s.seq[sessionID]++
	turn.ID = strconv.FormatInt(s.seq[sessionID], 10)
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	s.turns[sessionID] = append(s.turns[sessionID], turn)
	s.publishLocked(sessionID, Event{Type: "turn", Turn: &turn})
	return turn, nil
}

// Turns returns a copy of the session transcript in append order.
func (s *Store) Turns(_ context.Context, sessionID string) ([]chat.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns, ok := s.turns[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	copied := make([]chat.Turn, len(turns))
	copy(copied, turns)
	return copied, nil
}

// Flags reports the current session flags.
func (s *Store) Flags(_ context.Context, sessionID string) (Flags, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return Flags{}, ErrSessionNotFound
	}
	return s.flagsLocked(sessionID), nil
}

// TrackCalls registers n freshly dispatched backend calls for the
// session. The composing flag holds true until every tracked call has
// settled, regardless of settlement order.
func (s *Store) TrackCalls(sessionID string, n int) error {
	if n <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	s.outstanding[sessionID] += n
	flags := s.flagsLocked(sessionID)
	s.publishLocked(sessionID, Event{Type: "flags", Flags: &flags})
	return nil
}

// SettleCall records that one tracked backend call has settled.
func (s *Store) SettleCall(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.outstanding[sessionID] <= 0 {
		log.Printf("[transcript] settle without tracked call for session=%s", sessionID)
		return
	}
	s.outstanding[sessionID]--
	flags := s.flagsLocked(sessionID)
	s.publishLocked(sessionID, Event{Type: "flags", Flags: &flags})
}

// SetDictating flips the dictation capture flag.
func (s *Store) SetDictating(sessionID string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return
	}
	if s.dictating[sessionID] == active {
		return
	}
	s.dictating[sessionID] = active
	flags := s.flagsLocked(sessionID)
	s.publishLocked(sessionID, Event{Type: "flags", Flags: &flags})
}

// Watch subscribes to the session's transcript events. Events arrive
// in append order. The returned cancel func must be called when the
// watcher goes away.
func (s *Store) Watch(sessionID string) (<-chan Event, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return nil, nil, ErrSessionNotFound
	}

	s.watcherSeq++
	id := s.watcherSeq
	ch := make(chan Event, 32)

	if s.watchers[sessionID] == nil {
		s.watchers[sessionID] = make(map[int]chan Event)
	}
	s.watchers[sessionID][id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if chans, ok := s.watchers[sessionID]; ok {
			if ch, ok := chans[id]; ok {
				delete(chans, id)
				close(ch)
			}
		}
	}
	return ch, cancel, nil
}

func (s *Store) flagsLocked(sessionID string) Flags {
	return Flags{
		Composing: s.outstanding[sessionID] > 0,
		Dictating: s.dictating[sessionID],
	}
}

func (s *Store) publishLocked(sessionID string, event Event) {
	for _, ch := range s.watchers[sessionID] {
		select {
		case ch <- event:
		default:
			// Slow watcher; dropping keeps appends non-blocking.
			log.Printf("[transcript] dropped event for slow watcher, session=%s", sessionID)
		}
	}
}
