package websocket

import (
	"log/slog"

	"codesync-backend/internal/dto"
)

// Protocol turns inbound frames into hub operations.
type Protocol struct {
	hub *Hub
}

func NewProtocol(h *Hub) *Protocol {
	return &Protocol{hub: h}
}

func (p *Protocol) Handle(conn Connection, data []byte) {
	env, err := dto.Decode(data)
	if err != nil {
		slog.Warn("invalid message", "connectionId", conn.ID(), "error", err)
		replyError(conn, "invalid message")
		return
	}
	countEvent(env.Event)

	switch env.Event {
	case dto.EventJoin:
		var req dto.JoinRequest
		if err := env.Into(&req); err != nil {
			slog.Warn("invalid join", "connectionId", conn.ID(), "error", err)
			replyError(conn, "invalid join payload")
			return
		}
		// Room ids are opaque: whitespace is part of the id.
		if req.RoomID == "" {
			replyError(conn, "roomId is required")
			return
		}
		p.hub.Join(conn, req.RoomID, req.DisplayName)

	case dto.EventCodeChange:
		var req dto.CodeChange
		if err := env.Into(&req); err != nil {
			slog.Warn("invalid code-change", "connectionId", conn.ID(), "error", err)
			replyError(conn, "invalid code-change payload")
			return
		}
		if req.RoomID == "" {
			replyError(conn, "roomId is required")
			return
		}
		if req.Content == nil {
			return
		}
		p.hub.Relay(conn, req.RoomID, *req.Content)

	case dto.EventSyncCode:
		var req dto.SyncCodeRequest
		if err := env.Into(&req); err != nil {
			slog.Warn("invalid sync-code", "connectionId", conn.ID(), "error", err)
			replyError(conn, "invalid sync-code payload")
			return
		}
		if req.TargetConnectionID == "" || req.Content == nil {
			return
		}
		p.hub.Sync(conn, req.TargetConnectionID, *req.Content)

	default:
		slog.Warn("unknown event", "connectionId", conn.ID(), "event", env.Event)
		replyError(conn, "unknown event: "+env.Event)
	}
}

func replyError(conn Connection, message string) {
	frame, err := dto.Encode(dto.EventError, dto.ErrorEvent{Message: message})
	if err != nil {
		return
	}
	conn.Send(frame)
}
