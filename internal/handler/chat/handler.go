package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	chatmodel "github.com/zhizhi/bobi/backend/internal/model/chat"
	"github.com/zhizhi/bobi/backend/internal/search"
	chatService "github.com/zhizhi/bobi/backend/internal/service/chat"
	"github.com/zhizhi/bobi/backend/pkg/utils"
)

// Searcher issues keyword queries against the message index.
type Searcher interface {
	Search(ctx context.Context, keyword string) ([]search.Hit, error)
}

// Handler exposes the conversation and history endpoints.
type Handler struct {
	chatSvc  *chatService.Service
	searcher Searcher
}

// New creates the chat handler. searcher may be nil when no search host is
// configured; /search then reports the backend unavailable.
func New(chatSvc *chatService.Service, searcher Searcher) *Handler {
	return &Handler{chatSvc: chatSvc, searcher: searcher}
}

// RegisterRoutes mounts the chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Post("/session/{sessionID}/messages", h.handleTurn)
	r.Get("/session/{sessionID}/transcript", h.handleTranscript)
	r.Get("/history", h.handleHistory)
	r.Get("/search", h.handleSearch)
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.CreateSession(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleTurn(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := h.chatSvc.Turn(r.Context(), sessionID, payload.Content)
	if err != nil {
		utils.RespondError(w, turnStatus(err), err.Error())
		return
	}

	// Blank input runs no turn at all.
	if reply == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	utils.RespondJSON(w, http.StatusOK, reply)
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	transcript, err := h.chatSvc.Transcript(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, transcript)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	messages, err := h.chatSvc.History(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, messages)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	keyword := r.URL.Query().Get("q")
	if keyword == "" {
		utils.RespondError(w, http.StatusBadRequest, "q query parameter is required")
		return
	}

	if h.searcher == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, chatmodel.ErrSearchUnavailable.Error())
		return
	}

	hits, err := h.searcher.Search(r.Context(), keyword)
	if err != nil {
		utils.RespondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"hits": hits})
}

// turnStatus maps the failure taxonomy onto HTTP statuses.
func turnStatus(err error) int {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, chatmodel.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, chatmodel.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, chatmodel.ErrCompletionFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
