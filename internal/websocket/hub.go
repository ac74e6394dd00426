package websocket

import (
	"context"
	"errors"
	"log/slog"

	"codesync-backend/internal/dto"
)

type joinRequest struct {
	conn        Connection
	roomID      string
	displayName string
	reply       chan []dto.Participant
}

type leaveRequest struct {
	conn  Connection
	reply chan struct{}
}

type relayRequest struct {
	sender  Connection
	roomID  string
	content string
}

type syncRequest struct {
	sender   Connection
	targetID string
	content  string
}

type announcement struct {
	roomID string
	data   []byte
}

// Hub serializes every membership change and fan-out through a single
// goroutine, so a roster is always computed against the membership that the
// resulting broadcast is delivered to.
type Hub struct {
	registry *Registry

	join       chan *joinRequest
	unregister chan *leaveRequest
	broadcast  chan *relayRequest
	direct     chan *syncRequest
	announce   chan *announcement

	done chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		registry:   NewRegistry(),
		join:       make(chan *joinRequest),
		unregister: make(chan *leaveRequest),
		broadcast:  make(chan *relayRequest),
		direct:     make(chan *syncRequest),
		announce:   make(chan *announcement),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Registry() *Registry {
	return h.registry
}

func (h *Hub) Stats() Stats {
	return h.registry.Stats()
}

// Join registers conn in roomID, broadcasts "joined" to every member including
// conn, and returns the roster that was broadcast. It returns nil once the hub
// has stopped.
func (h *Hub) Join(conn Connection, roomID, displayName string) []dto.Participant {
	req := &joinRequest{conn: conn, roomID: roomID, displayName: displayName, reply: make(chan []dto.Participant, 1)}
	select {
	case h.join <- req:
	case <-h.done:
		return nil
	}
	select {
	case roster := <-req.reply:
		return roster
	case <-h.done:
		return nil
	}
}

// Leave removes conn from all its rooms and notifies the remaining members.
// It returns after the notifications have been queued.
func (h *Hub) Leave(conn Connection) {
	req := &leaveRequest{conn: conn, reply: make(chan struct{}, 1)}
	select {
	case h.unregister <- req:
	case <-h.done:
		return
	}
	select {
	case <-req.reply:
	case <-h.done:
	}
}

// Relay forwards content to every member of roomID except sender.
func (h *Hub) Relay(sender Connection, roomID, content string) {
	select {
	case h.broadcast <- &relayRequest{sender: sender, roomID: roomID, content: content}:
	case <-h.done:
	}
}

// Sync delivers content to a single connection as a code-change.
func (h *Hub) Sync(sender Connection, targetID, content string) {
	select {
	case h.direct <- &syncRequest{sender: sender, targetID: targetID, content: content}:
	case <-h.done:
	}
}

// Announce delivers a pre-encoded frame to every local member of roomID.
func (h *Hub) Announce(roomID string, data []byte) {
	select {
	case h.announce <- &announcement{roomID: roomID, data: data}:
	case <-h.done:
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			return

		case req := <-h.join:
			req.reply <- h.handleJoin(req)

		case req := <-h.unregister:
			h.handleLeave(req.conn)
			req.reply <- struct{}{}

		case req := <-h.broadcast:
			h.handleRelay(req)

		case req := <-h.direct:
			h.handleSync(req)

		case a := <-h.announce:
			delivered := 0
			for _, c := range h.registry.Members(a.roomID) {
				if h.deliver(c, a.data) {
					delivered++
				}
			}
			slog.Debug("room announcement", "room", a.roomID, "delivered", delivered)
		}
	}
}

func (h *Hub) handleJoin(req *joinRequest) []dto.Participant {
	roster, members, added := h.registry.Join(req.roomID, req.conn, req.displayName)
	setRooms(h.registry.Stats().Rooms)

	frame, err := dto.Encode(dto.EventJoined, dto.JoinedEvent{
		Roster:       roster,
		DisplayName:  h.registry.DisplayName(req.conn.ID()),
		ConnectionID: req.conn.ID(),
	})
	if err != nil {
		slog.Error("encode joined event", "room", req.roomID, "error", err)
		return roster
	}

	delivered := 0
	for _, c := range members {
		if h.deliver(c, frame) {
			delivered++
		}
	}
	addDelivered(delivered)

	slog.Info("client joined room", "room", req.roomID, "connectionId", req.conn.ID(), "members", len(roster), "rejoin", !added)
	return roster
}

func (h *Hub) handleLeave(conn Connection) {
	departures := h.registry.Leave(conn.ID())
	if len(departures) == 0 {
		return
	}
	setRooms(h.registry.Stats().Rooms)

	for _, d := range departures {
		frame, err := dto.Encode(dto.EventLeft, dto.LeftEvent{ConnectionID: conn.ID(), DisplayName: d.DisplayName})
		if err != nil {
			slog.Error("encode left event", "room", d.RoomID, "error", err)
			continue
		}
		delivered := 0
		for _, c := range d.Remaining {
			if h.deliver(c, frame) {
				delivered++
			}
		}
		addDelivered(delivered)

		if d.Purged {
			slog.Info("room closed (empty)", "room", d.RoomID)
		} else {
			slog.Info("client left room", "room", d.RoomID, "connectionId", conn.ID(), "remaining", len(d.Remaining))
		}
	}
}

func (h *Hub) handleRelay(req *relayRequest) {
	if !h.registry.IsMember(req.roomID, req.sender.ID()) {
		slog.Debug("relay from non-member dropped", "room", req.roomID, "connectionId", req.sender.ID())
		addDropped("not_member")
		return
	}

	frame, err := dto.Encode(dto.EventCodeChange, dto.CodeChange{RoomID: req.roomID, Content: &req.content})
	if err != nil {
		slog.Error("encode code-change", "room", req.roomID, "error", err)
		return
	}

	delivered := 0
	for _, c := range h.registry.Members(req.roomID) {
		if c.ID() == req.sender.ID() {
			continue
		}
		if h.deliver(c, frame) {
			delivered++
		}
	}
	addDelivered(delivered)
}

func (h *Hub) handleSync(req *syncRequest) {
	if req.targetID == req.sender.ID() {
		addDropped("self_target")
		return
	}
	target, ok := h.registry.Lookup(req.targetID)
	if !ok || !h.registry.SharesRoom(req.sender.ID(), req.targetID) {
		slog.Debug("sync target gone", "connectionId", req.sender.ID(), "target", req.targetID)
		addDropped("target_gone")
		return
	}

	frame, err := dto.Encode(dto.EventCodeChange, dto.CodeChange{Content: &req.content})
	if err != nil {
		slog.Error("encode sync code-change", "target", req.targetID, "error", err)
		return
	}
	if h.deliver(target, frame) {
		addDelivered(1)
	}
}

// deliver queues data on conn. A connection that cannot keep up is closed; its
// read pump then performs the normal leave. Frames for connections that are
// already closing are dropped silently.
func (h *Hub) deliver(conn Connection, data []byte) bool {
	err := conn.Send(data)
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrSendBufferFull):
		slog.Warn("send buffer full, closing connection", "connectionId", conn.ID())
		addDropped("buffer_full")
		conn.Close()
	default:
		addDropped("closed")
	}
	return false
}
