package websocket

import "errors"

// Connection is the server-side handle on one participant's live transport
// session. Send must never block.
type Connection interface {
	ID() string
	Send(data []byte) error
	Close() error
}

var (
	ErrSendBufferFull   = errors.New("websocket: send buffer full")
	ErrConnectionClosed = errors.New("websocket: connection closed")
)

type Stats struct {
	Rooms       int
	Connections int
}

type RoomInfo struct {
	ID      string
	Members int
}
