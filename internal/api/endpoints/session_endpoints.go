package endpoints

import (
	"fmt"
	"net/http"

	"codesync-backend/internal/dto"
	"codesync-backend/internal/websocket"
)

type SessionEndpoints interface {
	Session(http.ResponseWriter, *http.Request) error
	Rooms(http.ResponseWriter, *http.Request) error
}

type sessionEndpoints struct {
	handler *websocket.Handler
}

func NewSessionEndpoints(handler *websocket.Handler) SessionEndpoints {
	return &sessionEndpoints{handler: handler}
}

// Session upgrades to the realtime protocol. Room selection happens with the
// first "join" frame, not in the URL.
func (h *sessionEndpoints) Session(w http.ResponseWriter, r *http.Request) error {
	if r.Method != http.MethodGet {
		return &HTTPError{
			StatusCode: http.StatusMethodNotAllowed,
			Message:    "Method not allowed.",
			ErrorLog:   fmt.Errorf("session: method %s", r.Method),
		}
	}
	if h.handler == nil {
		return &HTTPError{
			StatusCode: http.StatusServiceUnavailable,
			Message:    "Sessions not available",
			ErrorLog:   fmt.Errorf("session handler not configured"),
		}
	}
	h.handler.ServeSession(w, r)
	return nil
}

func (h *sessionEndpoints) Rooms(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: func(w http.ResponseWriter, r *http.Request) error {
			rooms := h.handler.Rooms()
			resp := make([]dto.RoomResponse, 0, len(rooms))
			for _, room := range rooms {
				resp = append(resp, dto.RoomResponse{ID: room.ID, Members: room.Members})
			}
			return WriteJSON(w, http.StatusOK, resp)
		},
	})
}
