package websocket

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024 * 1024
	sendBufferSize = 256

	// Connections exceeding the rate this many times are disconnected.
	maxRateViolations = 1000
)

// WSClient is one live websocket session. It owns three goroutines: a reader
// that feeds the protocol, a writer that drains the send buffer and a keep
// alive that pings the peer.
type WSClient struct {
	Conn    *websocket.Conn
	id      string
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	mu      sync.Mutex // guards writes on Conn
	limiter *rate.Limiter
}

func NewWSClient(id string, conn *websocket.Conn, limiter *rate.Limiter) *WSClient {
	return &WSClient{
		Conn:    conn,
		id:      id,
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
		limiter: limiter,
	}
}

func (cl *WSClient) ID() string {
	return cl.id
}

func (cl *WSClient) Send(data []byte) error {
	select {
	case <-cl.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case cl.send <- data:
		return nil
	case <-cl.done:
		return ErrConnectionClosed
	default:
		return ErrSendBufferFull
	}
}

// Close may be called from the hub while a writer is blocked holding mu, so
// it never takes mu. Closing the socket unblocks that writer.
func (cl *WSClient) Close() error {
	var err error
	cl.once.Do(func() {
		close(cl.done)
		err = cl.Conn.Close()
	})
	return err
}

func (cl *WSClient) start(hub *Hub, protocol *Protocol) {
	incConnections()
	go cl.keepAlive()
	go cl.writeMessage()
	go cl.readMessage(hub, protocol)
}

func (cl *WSClient) keepAlive() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-cl.done:
			return
		case <-ticker.C:
			cl.mu.Lock()
			cl.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := cl.Conn.WriteMessage(websocket.PingMessage, nil)
			cl.mu.Unlock()

			if err != nil {
				slog.Debug("ping failed", "connectionId", cl.id, "error", err)
				cl.Close()
				return
			}
		}
	}
}

func (cl *WSClient) writeMessage() {
	for {
		select {
		case <-cl.done:
			return
		case msg := <-cl.send:
			cl.mu.Lock()
			cl.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := cl.Conn.WriteMessage(websocket.TextMessage, msg)
			cl.mu.Unlock()

			if err != nil {
				slog.Debug("write failed", "connectionId", cl.id, "error", err)
				cl.Close()
				return
			}
		}
	}
}

// readMessage runs until the transport fails or is closed. The leave is
// performed before the socket is released, whether the peer said goodbye or
// simply vanished.
func (cl *WSClient) readMessage(hub *Hub, protocol *Protocol) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("recovered from panic in read pump", "connectionId", cl.id, "panic", r)
		}
		hub.Leave(cl)
		cl.Close()
		decConnections()
		slog.Info("client disconnected", "connectionId", cl.id)
	}()

	cl.Conn.SetReadLimit(maxMessageSize)
	cl.Conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.Conn.SetPongHandler(func(string) error {
		cl.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	violations := 0
	for {
		_, message, err := cl.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				slog.Warn("read error", "connectionId", cl.id, "error", err)
			}
			return
		}

		if cl.limiter != nil && !cl.limiter.Allow() {
			violations++
			addDropped("rate_limited")
			if violations%100 == 1 {
				slog.Warn("rate limit exceeded", "connectionId", cl.id, "violations", violations)
			}
			if violations > maxRateViolations {
				slog.Warn("disconnecting client for excessive rate limit violations", "connectionId", cl.id)
				return
			}
			continue
		}

		protocol.Handle(cl, message)
	}
}
