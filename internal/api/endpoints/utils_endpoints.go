package endpoints

import (
	"net/http"

	"codesync-backend/internal/dto"
	"codesync-backend/internal/websocket"
)

type UtilsEndpoints interface {
	Health(http.ResponseWriter, *http.Request) error
	Stats(http.ResponseWriter, *http.Request) error
}

type utilsEndpoints struct {
	handler *websocket.Handler
}

// NewUtilsEndpoints serves health on every server; handler may be nil on
// servers without a session hub, in which case stats report zeros.
func NewUtilsEndpoints(handler *websocket.Handler) UtilsEndpoints {
	return &utilsEndpoints{handler: handler}
}

func (h *utilsEndpoints) Health(w http.ResponseWriter, r *http.Request) error {
	return WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *utilsEndpoints) Stats(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: func(w http.ResponseWriter, r *http.Request) error {
			var resp dto.StatsResponse
			if h.handler != nil {
				stats := h.handler.Hub().Stats()
				resp = dto.StatsResponse{Rooms: stats.Rooms, Connections: stats.Connections}
			}
			return WriteJSON(w, http.StatusOK, resp)
		},
	})
}
