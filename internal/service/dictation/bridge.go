package dictation

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/petpal-ai/petcare/backend/internal/service/transcript"
)

var ErrNotListening = errors.New("dictation is not active")

// TextSink receives the recognized utterance text. The composer's
// text buffer implements this.
type TextSink interface {
	SetText(ctx context.Context, sessionID, text string) error
}

// Bridge adapts a continuous speech-recognition stream into the
// composition text buffer. While listening, every transcription update
// carries the full utterance so far and overwrites the buffer whole;
// there is no merging with text typed mid-capture.
type Bridge struct {
	store *transcript.Store
	sink  TextSink

	mu        sync.Mutex
	listening map[string]bool
}

// NewBridge creates a dictation bridge writing into sink.
func NewBridge(store *transcript.Store, sink TextSink) *Bridge {
	return &Bridge{
		store:     store,
		sink:      sink,
		listening: make(map[string]bool),
	}
}

// Start begins capture for the session. Starting an already-listening
// session is a no-op.
func (b *Bridge) Start(ctx context.Context, sessionID string) error {
	if _, err := b.store.GetSession(ctx, sessionID); err != nil {
		return err
	}

	b.mu.Lock()
	already := b.listening[sessionID]
	b.listening[sessionID] = true
	b.mu.Unlock()

	if !already {
		b.store.SetDictating(sessionID, true)
		log.Printf("[dictation] capture started for session=%s", sessionID)
	}
	return nil
}

// Stop ends capture. Whatever text the last update left in the buffer
// stays there for manual editing; stopping is the only way to discard
// a partial utterance without submitting it.
func (b *Bridge) Stop(sessionID string) {
	b.mu.Lock()
	active := b.listening[sessionID]
	delete(b.listening, sessionID)
	b.mu.Unlock()

	if active {
		b.store.SetDictating(sessionID, false)
		log.Printf("[dictation] capture stopped for session=%s", sessionID)
	}
}

// Update forwards one cumulative transcription result into the text
// buffer. Updates arriving while idle are rejected.
func (b *Bridge) Update(ctx context.Context, sessionID, utterance string) error {
	b.mu.Lock()
	active := b.listening[sessionID]
	b.mu.Unlock()

	if !active {
		return ErrNotListening
	}
	return b.sink.SetText(ctx, sessionID, utterance)
}

// Listening reports whether capture is active for the session.
func (b *Bridge) Listening(sessionID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listening[sessionID]
}
