package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/partydeck/game-server/internal/domain"
	"github.com/partydeck/game-server/internal/postgres"
	"github.com/partydeck/game-server/internal/room"
)

// HistoryReader is the read side of the persistence adapter, used only
// for reporting. Live rooms are never rebuilt from it.
type HistoryReader interface {
	ListByParticipant(ctx context.Context, participantID string, limit int, cursor string) ([]domain.OutcomeRecord, string, error)
}

type Handler struct {
	manager *room.Manager
	history HistoryReader
}

func NewHandler(manager *room.Manager, history HistoryReader) *Handler {
	return &Handler{manager: manager, history: history}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// POST /rooms
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	snap, err := h.manager.CreateRoom(req.RoomID, req.Capacity, req.Payload)
	if err != nil {
		if errors.Is(err, domain.ErrRoomAlreadyExists) {
			writeJSON(w, http.StatusConflict, ErrorResponse{Error: "room already exists"})
			return
		}
		slog.Error("handler.CreateRoom", "err", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, roomItem(snap))
}

// GET /rooms?limit=
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 50 {
		limit = 50
	}

	rooms := h.manager.Rooms()
	if len(rooms) > limit {
		rooms = rooms[:limit]
	}

	resp := RoomsListResponse{Items: make([]RoomItem, 0, len(rooms))}
	for _, rm := range rooms {
		resp.Items = append(resp.Items, roomItem(rm))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /rooms/{id}
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	snap, err := h.manager.Room(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		slog.Error("handler.GetRoom", "err", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, roomItem(snap))
}

// GET /participants/{id}/history?limit=&cursor=
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	participantID := chi.URLParam(r, "id")
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 50 {
		limit = 50
	}
	cursor := r.URL.Query().Get("cursor")

	items, next, err := h.history.ListByParticipant(r.Context(), participantID, limit, cursor)
	if err != nil {
		if errors.Is(err, postgres.ErrInvalidCursor) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_cursor"})
			return
		}
		slog.Error("handler.GetHistory", "err", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	if items == nil {
		items = []domain.OutcomeRecord{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Items: items, NextCursor: next})
}
