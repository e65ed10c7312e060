package chat

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	chatmodel "github.com/petpal-ai/petcare/backend/internal/model/chat"
	"github.com/petpal-ai/petcare/backend/internal/service/composer"
	"github.com/petpal-ai/petcare/backend/internal/service/transcript"
)

// Handler exposes the chat orchestration over HTTP.
type Handler struct {
	store          *transcript.Store
	composer       *composer.Service
	maxUploadBytes int64
}

// New creates the chat handler.
func New(store *transcript.Store, composerSvc *composer.Service, maxUploadBytes int64) *Handler {
	return &Handler{
		store:          store,
		composer:       composerSvc,
		maxUploadBytes: maxUploadBytes,
	}
}

// RegisterRoutes registers the chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Get("/session/{sessionID}/transcript", h.handleTranscript)
	r.Get("/session/{sessionID}/flags", h.handleFlags)
	r.Post("/session/{sessionID}/message", h.handleMessage)
	r.Post("/session/{sessionID}/language", h.handleLanguage)
	r.Post("/session/{sessionID}/attachment", h.handleAttachment)
	r.Get("/languages", h.handleLanguages)
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.store.CreateSession(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	turns, err := h.store.Turns(r.Context(), sessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"turns": turns})
}

func (h *Handler) handleFlags(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	flags, err := h.store.Flags(r.Context(), sessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, flags)
}

// handleMessage sets the typed text (and optionally the language) and
// submits the pending payload. A submit with no text relies on a
// previously staged attachment.
func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if payload.Language != "" {
		if err := h.composer.SetLanguage(r.Context(), sessionID, payload.Language); err != nil {
			h.respondComposerError(w, err)
			return
		}
	}

	if err := h.composer.SetText(r.Context(), sessionID, payload.Text); err != nil {
		h.respondComposerError(w, err)
		return
	}

	if err := h.composer.Submit(r.Context(), sessionID); err != nil {
		h.respondComposerError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "dispatched"})
}

func (h *Handler) handleLanguage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload struct {
		Language string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.composer.SetLanguage(r.Context(), sessionID, payload.Language); err != nil {
		h.respondComposerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"language": payload.Language})
}

// handleAttachment turns an uploaded file into the staged attachment
// handle. Non-image uploads are rejected before anything reaches the
// composer.
func (h *Handler) handleAttachment(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form: "+err.Error())
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	if int64(len(data)) > h.maxUploadBytes {
		respondError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
		return
	}

	attachment := &chatmodel.Attachment{
		ID:        uuid.NewString(),
		Filename:  header.Filename,
		MediaType: detectMediaType(header.Header, data),
		Data:      data,
	}

	if err := h.composer.StageAttachment(r.Context(), sessionID, attachment); err != nil {
		h.respondComposerError(w, err)
		return
	}

	log.Printf("[chat] staged attachment id=%s type=%s size=%d for session=%s",
		attachment.ID, attachment.MediaType, len(data), sessionID)

	respondJSON(w, http.StatusCreated, map[string]string{
		"id":        attachment.ID,
		"filename":  attachment.Filename,
		"mediaType": attachment.MediaType,
	})
}

func (h *Handler) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"languages": chatmodel.Languages()})
}

func (h *Handler) respondComposerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, transcript.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, composer.ErrEmptySubmission):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, composer.ErrUnsupportedMedia):
		respondError(w, http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, composer.ErrUnsupportedLanguage):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// detectMediaType prefers the declared Content-Type and falls back to
// content sniffing when the part did not declare one.
func detectMediaType(header textproto.MIMEHeader, data []byte) string {
	declared := strings.TrimSpace(header.Get("Content-Type"))
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return http.DetectContentType(data)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
