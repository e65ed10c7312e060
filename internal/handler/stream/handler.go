package stream

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/petpal-ai/petcare/backend/internal/service/transcript"
	"github.com/petpal-ai/petcare/backend/pkg/utils"
)

// Handler feeds transcript appends and flag changes to rendering
// clients over Server-Sent Events.
type Handler struct {
	store *transcript.Store
}

// New creates a new stream handler.
func New(store *transcript.Store) *Handler {
	return &Handler{store: store}
}

// HandleStreamRequest replays the transcript so far and then streams
// live events in append order until the client goes away.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, sessionID string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported")
	}

	// Subscribe before snapshotting so no append can fall between the
	// replay and the live stream.
	events, cancel, err := h.store.Watch(sessionID)
	if err != nil {
		return err
	}
	defer cancel()

	turns, err := h.store.Turns(ctx, sessionID)
	if err != nil {
		return err
	}

	utils.SetupSSEHeaders(w)

	var lastSeq int64
	for i := range turns {
		turn := turns[i]
		if seq, err := strconv.ParseInt(turn.ID, 10, 64); err == nil && seq > lastSeq {
			lastSeq = seq
		}
		utils.SendSSEEvent(w, flusher, "turn", turn)
	}

	flags, err := h.store.Flags(ctx, sessionID)
	if err != nil {
		return err
	}
	utils.SendSSEEvent(w, flusher, "flags", flags)

	log.Printf("[stream] opened transcript stream for session=%s", sessionID)

	ticker := time.NewTicker(8 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[stream] closing transcript stream for session=%s", sessionID)
			return nil
		case t := <-ticker.C:
			utils.SendSSEEvent(w, flusher, "heartbeat", map[string]string{
				"time": t.UTC().Format(time.RFC3339),
			})
		case event, open := <-events:
			if !open {
				return nil
			}
			switch event.Type {
			case "turn":
				if event.Turn == nil {
					continue
				}
				// Skip turns already covered by the replay.
				if seq, err := strconv.ParseInt(event.Turn.ID, 10, 64); err == nil && seq <= lastSeq {
					continue
				}
				utils.SendSSEEvent(w, flusher, "turn", event.Turn)
			case "flags":
				if event.Flags == nil {
					continue
				}
				utils.SendSSEEvent(w, flusher, "flags", event.Flags)
			}
		}
	}
}
