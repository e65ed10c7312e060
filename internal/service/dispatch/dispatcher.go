package dispatch

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/petpal-ai/petcare/backend/internal/model/chat"
	"github.com/petpal-ai/petcare/backend/internal/service/transcript"
)

// FailureText is what the transcript shows when a backend call fails.
// The underlying error goes to the log only.
const FailureText = "Sorry, I encountered an error. Please try again."

// analysisPrefix frames the disease backend's findings as an
// assistant reply.
const analysisPrefix = "I've analyzed your pet's image. "

// TextGenerator answers a pet-care question in the requested language.
type TextGenerator interface {
	Generate(ctx context.Context, query, language string) (string, error)
}

// ImageAnalyzer analyzes an uploaded pet image.
type ImageAnalyzer interface {
	Analyze(ctx context.Context, filename string, data []byte) (string, error)
}

// Dispatcher converts a submitted payload snapshot into backend calls
// and maps every settlement to exactly one assistant turn. The image
// and text calls for one submission run concurrently; failure of one
// never blocks or cancels the other, and the session's composing flag
// holds until both have settled, in whichever order that happens.
type Dispatcher struct {
	store    *transcript.Store
	textGen  TextGenerator
	analyzer ImageAnalyzer
	inflight sync.WaitGroup
}

// New creates a dispatcher appending results to store.
func New(store *transcript.Store, textGen TextGenerator, analyzer ImageAnalyzer) *Dispatcher {
	return &Dispatcher{
		store:    store,
		textGen:  textGen,
		analyzer: analyzer,
	}
}

// Dispatch issues the calls for one submitted payload. It registers
// every call with the transcript store before the first one starts,
// so the composing flag cannot flicker between settlements. The calls
// run on a context detached from the caller's: once dispatched they
// settle even if the submitting request has gone away.
func (d *Dispatcher) Dispatch(ctx context.Context, sessionID string, payload chat.PendingPayload) {
	hasImage := payload.Attachment != nil
	hasText := strings.TrimSpace(payload.Text) != ""

	calls := 0
	if hasImage {
		calls++
	}
	if hasText {
		calls++
	}
	if calls == 0 {
		return
	}

	if err := d.store.TrackCalls(sessionID, calls); err != nil {
		log.Printf("[dispatch] refusing dispatch: %v", err)
		return
	}

	callCtx := context.WithoutCancel(ctx)

	if hasImage {
		d.inflight.Add(1)
		go d.runImageCall(callCtx, sessionID, payload.Attachment)
	}
	if hasText {
		d.inflight.Add(1)
		go d.runTextCall(callCtx, sessionID, payload.Text, payload.Language)
	}
}

// Wait blocks until every dispatched call has settled. Used for
// graceful shutdown.
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}

func (d *Dispatcher) runImageCall(ctx context.Context, sessionID string, attachment *chat.Attachment) {
	defer d.inflight.Done()
	defer d.store.SettleCall(sessionID)

	analysis, err := d.analyzer.Analyze(ctx, attachment.Filename, attachment.Data)
	if err != nil {
		log.Printf("[dispatch] image analysis failed for session=%s: %v", sessionID, err)
		d.appendFailure(ctx, sessionID)
		return
	}

	d.appendReply(ctx, sessionID, analysisPrefix+analysis)
}

func (d *Dispatcher) runTextCall(ctx context.Context, sessionID, text, language string) {
	defer d.inflight.Done()
	defer d.store.SettleCall(sessionID)

	if language == "" {
		language = chat.DefaultLanguage
	}

	response, err := d.textGen.Generate(ctx, text, language)
	if err != nil {
		log.Printf("[dispatch] text generation failed for session=%s: %v", sessionID, err)
		d.appendFailure(ctx, sessionID)
		return
	}

	d.appendReply(ctx, sessionID, response)
}

func (d *Dispatcher) appendReply(ctx context.Context, sessionID, text string) {
	if _, err := d.store.Append(ctx, sessionID, chat.Turn{
		Author: chat.AuthorAssistant,
		Text:   text,
	}); err != nil {
		log.Printf("[dispatch] failed to append assistant turn for session=%s: %v", sessionID, err)
	}
}

func (d *Dispatcher) appendFailure(ctx context.Context, sessionID string) {
	if _, err := d.store.Append(ctx, sessionID, chat.Turn{
		Author: chat.AuthorAssistant,
		Text:   FailureText,
		Failed: true,
	}); err != nil {
		log.Printf("[dispatch] failed to append failure turn for session=%s: %v", sessionID, err)
	}
}
