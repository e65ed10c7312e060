package dispatch_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/petpal-ai/petcare/backend/internal/model/chat"
	"github.com/petpal-ai/petcare/backend/internal/service/composer"
	"github.com/petpal-ai/petcare/backend/internal/service/dispatch"
	"github.com/petpal-ai/petcare/backend/internal/service/transcript"
)

type stubTextGen struct {
	mu       sync.Mutex
	release  chan struct{}
	response string
	err      error
	query    string
	language string
}

func (s *stubTextGen) Generate(_ context.Context, query, language string) (string, error) {
	s.mu.Lock()
	s.query = query
	s.language = language
	s.mu.Unlock()
	if s.release != nil {
		<-s.release
	}
	return s.response, s.err
}

type stubAnalyzer struct {
	release  chan struct{}
	analysis string
	err      error
}

func (s *stubAnalyzer) Analyze(_ context.Context, _ string, _ []byte) (string, error) {
	if s.release != nil {
		<-s.release
	}
	return s.analysis, s.err
}

func newSession(t *testing.T, store *transcript.Store) string {
	t.Helper()
	session, err := store.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}
	return session.ID
}

// waitForTurns polls until the transcript reaches length n.
func waitForTurns(t *testing.T, store *transcript.Store, sessionID string, n int) []chat.Turn {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		turns, err := store.Turns(context.Background(), sessionID)
		if err != nil {
			t.Fatalf("Turns err: %v", err)
		}
		if len(turns) >= n {
			return turns
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("transcript never reached %d turns", n)
	return nil
}

func payloadWith(text string, attachment *chat.Attachment) chat.PendingPayload {
	return chat.PendingPayload{
		Text:       text,
		Attachment: attachment,
		Language:   chat.DefaultLanguage,
	}
}

func testAttachment() *chat.Attachment {
	return &chat.Attachment{
		ID:        "a1",
		Filename:  "rash.png",
		MediaType: "image/png",
		Data:      []byte("png-bytes"),
	}
}

func TestDualDispatchIndependence(t *testing.T) {
	store := transcript.NewStore()
	textGen := &stubTextGen{response: "Try feeding smaller portions."}
	analyzer := &stubAnalyzer{err: errors.New("backend down")}
	dispatcher := dispatch.New(store, textGen, analyzer)

	sessionID := newSession(t, store)
	dispatcher.Dispatch(context.Background(), sessionID, payloadWith("hello", testAttachment()))
	dispatcher.Wait()

	turns, _ := store.Turns(context.Background(), sessionID)
	if len(turns) != 3 {
		t.Fatalf("expected seed + 2 assistant turns, got %d", len(turns))
	}

	var failed, succeeded int
	for _, turn := range turns[1:] {
		if turn.Author != chat.AuthorAssistant {
			t.Fatalf("expected assistant turns only, got %+v", turn)
		}
		if turn.Failed {
			failed++
			if turn.Text != dispatch.FailureText {
				t.Fatalf("failed turn must carry the fixed message, got %q", turn.Text)
			}
		} else {
			succeeded++
		}
	}
	if failed != 1 || succeeded != 1 {
		t.Fatalf("expected exactly one failed and one successful turn, got failed=%d ok=%d", failed, succeeded)
	}

	flags, _ := store.Flags(context.Background(), sessionID)
	if flags.Composing {
		t.Fatal("composing must end false")
	}
}

func TestComposingHoldsUntilBothSettle(t *testing.T) {
	cases := []struct {
		name       string
		firstImage bool
	}{
		{name: "image settles first", firstImage: true},
		{name: "text settles first", firstImage: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := transcript.NewStore()
			textRelease := make(chan struct{})
			imageRelease := make(chan struct{})
			textGen := &stubTextGen{release: textRelease, response: "ok"}
			analyzer := &stubAnalyzer{release: imageRelease, analysis: "looks fine"}
			dispatcher := dispatch.New(store, textGen, analyzer)

			sessionID := newSession(t, store)
			dispatcher.Dispatch(context.Background(), sessionID, payloadWith("hello", testAttachment()))

			flags, _ := store.Flags(context.Background(), sessionID)
			if !flags.Composing {
				t.Fatal("composing must be true right after dispatch")
			}

			if tc.firstImage {
				close(imageRelease)
			} else {
				close(textRelease)
			}
			waitForTurns(t, store, sessionID, 2)

			flags, _ = store.Flags(context.Background(), sessionID)
			if !flags.Composing {
				t.Fatal("composing must stay true while the second call is outstanding")
			}

			if tc.firstImage {
				close(textRelease)
			} else {
				close(imageRelease)
			}
			dispatcher.Wait()

			flags, _ = store.Flags(context.Background(), sessionID)
			if flags.Composing {
				t.Fatal("composing must clear after the second settlement")
			}
		})
	}
}

func TestTextOnlyScenario(t *testing.T) {
	store := transcript.NewStore()
	textGen := &stubTextGen{response: "Try X"}
	analyzer := &stubAnalyzer{}
	dispatcher := dispatch.New(store, textGen, analyzer)
	composerSvc := composer.NewService(store, dispatcher)

	sessionID := newSession(t, store)
	ctx := context.Background()

	if err := composerSvc.SetText(ctx, sessionID, "My cat won't eat"); err != nil {
		t.Fatalf("SetText err: %v", err)
	}
	if err := composerSvc.Submit(ctx, sessionID); err != nil {
		t.Fatalf("Submit err: %v", err)
	}
	dispatcher.Wait()

	turns, _ := store.Turns(ctx, sessionID)
	if len(turns) != 3 {
		t.Fatalf("expected seed, user and assistant turns, got %d", len(turns))
	}
	last := turns[len(turns)-1]
	if last.Failed {
		t.Fatal("expected a successful assistant turn")
	}
	if last.Text != "Try X" {
		t.Fatalf("unexpected assistant text: %q", last.Text)
	}

	flags, _ := store.Flags(ctx, sessionID)
	if flags.Composing {
		t.Fatal("composing must end false")
	}
}

func TestImageReplyCarriesAnalysis(t *testing.T) {
	store := transcript.NewStore()
	textGen := &stubTextGen{}
	analyzer := &stubAnalyzer{analysis: "It looks like a mild skin rash."}
	dispatcher := dispatch.New(store, textGen, analyzer)

	sessionID := newSession(t, store)
	dispatcher.Dispatch(context.Background(), sessionID, payloadWith("", testAttachment()))
	dispatcher.Wait()

	turns, _ := store.Turns(context.Background(), sessionID)
	last := turns[len(turns)-1]
	want := "I've analyzed your pet's image. It looks like a mild skin rash."
	if last.Text != want {
		t.Fatalf("unexpected analysis turn: %q", last.Text)
	}
}

func TestLanguageReachesTextBackend(t *testing.T) {
	store := transcript.NewStore()
	textGen := &stubTextGen{response: "ok"}
	dispatcher := dispatch.New(store, textGen, &stubAnalyzer{})

	sessionID := newSession(t, store)
	payload := chat.PendingPayload{Text: "hello", Language: "Tamil"}
	dispatcher.Dispatch(context.Background(), sessionID, payload)
	dispatcher.Wait()

	textGen.mu.Lock()
	defer textGen.mu.Unlock()
	if textGen.language != "Tamil" {
		t.Fatalf("expected language forwarded, got %q", textGen.language)
	}
	if textGen.query != "hello" {
		t.Fatalf("expected query forwarded, got %q", textGen.query)
	}
}

func TestDispatchUnknownSessionIsIgnored(t *testing.T) {
	store := transcript.NewStore()
	dispatcher := dispatch.New(store, &stubTextGen{response: "ok"}, &stubAnalyzer{})

	dispatcher.Dispatch(context.Background(), "missing", payloadWith("hello", nil))
	dispatcher.Wait()
}
