package composer

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/petpal-ai/petcare/backend/internal/model/chat"
	"github.com/petpal-ai/petcare/backend/internal/service/transcript"
)

var (
	ErrUnsupportedMedia    = errors.New("only image attachments are supported")
	ErrEmptySubmission     = errors.New("nothing to submit")
	ErrUnsupportedLanguage = errors.New("unsupported response language")
)

// Dispatcher consumes a submitted payload snapshot and performs the
// backend calls for it.
type Dispatcher interface {
	Dispatch(ctx context.Context, sessionID string, payload chat.PendingPayload)
}

// CaptureStopper lets a submit implicitly end active dictation.
type CaptureStopper interface {
	Stop(sessionID string)
}

// Service owns the pending payload for every session and arbitrates
// the three input channels (typed text, dictated text, uploaded image)
// into submitted turns. Typed and dictated text share one buffer; the
// last writer wins.
type Service struct {
	store      *transcript.Store
	dispatcher Dispatcher

	mu      sync.Mutex
	capture CaptureStopper
	pending map[string]chat.PendingPayload
}

// NewService creates the arbitrator over the given transcript store
// and dispatcher.
func NewService(store *transcript.Store, dispatcher Dispatcher) *Service {
	return &Service{
		store:      store,
		dispatcher: dispatcher,
		pending:    make(map[string]chat.PendingPayload),
	}
}

// AttachCapture wires the dictation bridge so Submit can stop an
// active capture. Wired once at startup.
func (s *Service) AttachCapture(capture CaptureStopper) {
	s.mu.Lock()
	s.capture = capture
	s.mu.Unlock()
}

// SetText overwrites the composition text buffer. Both direct typing
// and the dictation bridge call this.
func (s *Service) SetText(ctx context.Context, sessionID, text string) error {
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return err
	}

	s.mu.Lock()
	payload := s.pending[sessionID]
	payload.Text = text
	s.pending[sessionID] = payload
	s.mu.Unlock()
	return nil
}

// SetLanguage selects the response language for subsequent turns. The
// choice persists until changed again.
func (s *Service) SetLanguage(ctx context.Context, sessionID, language string) error {
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return err
	}
	if !chat.SupportedLanguage(language) {
		return ErrUnsupportedLanguage
	}

	s.mu.Lock()
	payload := s.pending[sessionID]
	payload.Language = language
	s.pending[sessionID] = payload
	s.mu.Unlock()
	return nil
}

// StageAttachment stages one image for the next submit, replacing any
// previously staged attachment. Non-image media is rejected and the
// prior attachment, if any, stays staged.
func (s *Service) StageAttachment(ctx context.Context, sessionID string, attachment *chat.Attachment) error {
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return err
	}
	if attachment == nil || !attachment.IsImage() {
		return ErrUnsupportedMedia
	}

	s.mu.Lock()
	payload := s.pending[sessionID]
	payload.Attachment = attachment
	s.pending[sessionID] = payload
	s.mu.Unlock()
	return nil
}

// Pending returns the current composition state for the session.
func (s *Service) Pending(ctx context.Context, sessionID string) (chat.PendingPayload, error) {
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return chat.PendingPayload{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[sessionID], nil
}

// Submit snapshots the pending payload, appends the user turns
// (attachment first, then text), clears the buffer, and hands the
// snapshot to the dispatcher. The buffer is cleared before the
// dispatcher runs so the input surface is immediately reusable.
// An empty payload returns ErrEmptySubmission and changes nothing.
func (s *Service) Submit(ctx context.Context, sessionID string) error {
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return err
	}

	s.mu.Lock()
	snapshot := s.pending[sessionID]
	if snapshot.Empty() {
		s.mu.Unlock()
		return ErrEmptySubmission
	}
	if snapshot.Language == "" {
		snapshot.Language = chat.DefaultLanguage
	}

	if snapshot.Attachment != nil {
		if _, err := s.store.Append(ctx, sessionID, chat.Turn{
			Author:     chat.AuthorUser,
			Attachment: snapshot.Attachment,
		}); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	if strings.TrimSpace(snapshot.Text) != "" {
		if _, err := s.store.Append(ctx, sessionID, chat.Turn{
			Author: chat.AuthorUser,
			Text:   snapshot.Text,
		}); err != nil {
			s.mu.Unlock()
			return err
		}
	}

	// Keep the chosen language, drop everything else.
	s.pending[sessionID] = chat.PendingPayload{Language: snapshot.Language}
	capture := s.capture
	s.mu.Unlock()

	if capture != nil {
		capture.Stop(sessionID)
	}

	s.dispatcher.Dispatch(ctx, sessionID, snapshot)
	return nil
}
