package gateway

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/connectfour/go/internal/connectfour/room"
)

// StateHandler serves read-only room snapshots over HTTP
type StateHandler struct {
	registry *room.Registry
}

func NewStateHandler(registry *room.Registry) *StateHandler {
	return &StateHandler{registry: registry}
}

// HandleGetRoomState handles GET /api/rooms/{code}/state
func (h *StateHandler) HandleGetRoomState(w http.ResponseWriter, r *http.Request) {
	code := room.NormalizeCode(r.PathValue("code"))
	if code == "" {
		http.Error(w, "room code is required", http.StatusBadRequest)
		return
	}

	rm, ok := h.registry.Get(code)
	if !ok {
		log.Debug().Str("room_code", code).Msg("state requested for unknown room")
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, rm.Snapshot())
}

// HandleListRooms handles GET /api/rooms
func (h *StateHandler) HandleListRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"rooms": h.registry.Snapshot(),
	})
}

func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/rooms", h.HandleListRooms)
	mux.HandleFunc("GET /api/rooms/{code}/state", h.HandleGetRoomState)
}
