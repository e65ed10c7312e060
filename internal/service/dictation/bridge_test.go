package dictation_test

import (
	"context"
	"errors"
	"testing"

	"github.com/petpal-ai/petcare/backend/internal/model/chat"
	"github.com/petpal-ai/petcare/backend/internal/service/composer"
	"github.com/petpal-ai/petcare/backend/internal/service/dictation"
	"github.com/petpal-ai/petcare/backend/internal/service/transcript"
)

type noopDispatcher struct{}

func (noopDispatcher) Dispatch(context.Context, string, chat.PendingPayload) {}

func setup(t *testing.T) (*transcript.Store, *composer.Service, *dictation.Bridge, string) {
	t.Helper()
	store := transcript.NewStore()
	composerSvc := composer.NewService(store, noopDispatcher{})
	bridge := dictation.NewBridge(store, composerSvc)
	composerSvc.AttachCapture(bridge)

	session, err := store.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}
	return store, composerSvc, bridge, session.ID
}

func TestUpdatesOverwriteBuffer(t *testing.T) {
	_, composerSvc, bridge, sessionID := setup(t)
	ctx := context.Background()

	if err := bridge.Start(ctx, sessionID); err != nil {
		t.Fatalf("Start err: %v", err)
	}

	for _, utterance := range []string{"h", "he", "hello"} {
		if err := bridge.Update(ctx, sessionID, utterance); err != nil {
			t.Fatalf("Update(%q) err: %v", utterance, err)
		}
	}

	pending, err := composerSvc.Pending(ctx, sessionID)
	if err != nil {
		t.Fatalf("Pending err: %v", err)
	}
	if pending.Text != "hello" {
		t.Fatalf("expected last utterance to win, got %q", pending.Text)
	}
}

func TestUpdateWhileIdleRejected(t *testing.T) {
	_, _, bridge, sessionID := setup(t)

	err := bridge.Update(context.Background(), sessionID, "hello")
	if !errors.Is(err, dictation.ErrNotListening) {
		t.Fatalf("expected ErrNotListening, got %v", err)
	}
}

func TestStopKeepsPartialUtterance(t *testing.T) {
	store, composerSvc, bridge, sessionID := setup(t)
	ctx := context.Background()

	bridge.Start(ctx, sessionID)
	bridge.Update(ctx, sessionID, "my dog keeps scra")
	bridge.Stop(sessionID)

	pending, _ := composerSvc.Pending(ctx, sessionID)
	if pending.Text != "my dog keeps scra" {
		t.Fatalf("partial utterance must stay in the buffer, got %q", pending.Text)
	}

	flags, _ := store.Flags(ctx, sessionID)
	if flags.Dictating {
		t.Fatal("expected dictating cleared after stop")
	}
}

func TestDictatingFlagFollowsCapture(t *testing.T) {
	store, _, bridge, sessionID := setup(t)
	ctx := context.Background()

	bridge.Start(ctx, sessionID)
	flags, _ := store.Flags(ctx, sessionID)
	if !flags.Dictating {
		t.Fatal("expected dictating while listening")
	}
	if !bridge.Listening(sessionID) {
		t.Fatal("expected bridge to report listening")
	}

	bridge.Stop(sessionID)
	if bridge.Listening(sessionID) {
		t.Fatal("expected bridge idle after stop")
	}
}

func TestSubmitImplicitlyStopsCapture(t *testing.T) {
	store, composerSvc, bridge, sessionID := setup(t)
	ctx := context.Background()

	bridge.Start(ctx, sessionID)
	bridge.Update(ctx, sessionID, "my cat is sneezing")

	if err := composerSvc.Submit(ctx, sessionID); err != nil {
		t.Fatalf("Submit err: %v", err)
	}

	if bridge.Listening(sessionID) {
		t.Fatal("submit must stop capture")
	}
	flags, _ := store.Flags(ctx, sessionID)
	if flags.Dictating {
		t.Fatal("expected dictating cleared after submit")
	}
}

func TestStartUnknownSession(t *testing.T) {
	store := transcript.NewStore()
	composerSvc := composer.NewService(store, noopDispatcher{})
	bridge := dictation.NewBridge(store, composerSvc)

	if err := bridge.Start(context.Background(), "missing"); !errors.Is(err, transcript.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}
