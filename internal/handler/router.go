package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/petpal-ai/petcare/backend/internal/handler/chat"
	dictationhandler "github.com/petpal-ai/petcare/backend/internal/handler/dictation"
	"github.com/petpal-ai/petcare/backend/internal/handler/diet"
	"github.com/petpal-ai/petcare/backend/internal/handler/stream"
	middlewarePkg "github.com/petpal-ai/petcare/backend/internal/middleware"
	"github.com/petpal-ai/petcare/backend/internal/service/composer"
	dictationsvc "github.com/petpal-ai/petcare/backend/internal/service/dictation"
	"github.com/petpal-ai/petcare/backend/internal/service/transcript"
	"github.com/petpal-ai/petcare/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(store *transcript.Store, composerSvc *composer.Service, bridge *dictationsvc.Bridge, planner diet.Planner, maxUploadBytes int64) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	chatHandler := chat.New(store, composerSvc, maxUploadBytes)
	dictationHandler := dictationhandler.NewHandler(bridge, store)
	streamHandler := stream.New(store)

	r.Route("/api", func(api chi.Router) {
		chatHandler.RegisterRoutes(api)
		dictationHandler.RegisterRoutes(api)

		api.Get("/session/{sessionID}/stream", func(w http.ResponseWriter, r *http.Request) {
			sessionID := chi.URLParam(r, "sessionID")
			if err := streamHandler.HandleStreamRequest(r.Context(), w, sessionID); err != nil {
				log.Printf("[stream] error handling request: %v", err)
				if errors.Is(err, transcript.ErrSessionNotFound) {
					utils.RespondError(w, http.StatusNotFound, "session not found")
					return
				}
				utils.RespondError(w, http.StatusInternalServerError, "streaming failed")
			}
		})

		if planner != nil {
			diet.New(planner).RegisterRoutes(api)
		}

		api.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	})

	return r
}
