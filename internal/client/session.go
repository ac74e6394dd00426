package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"codesync-backend/internal/dto"
)

const (
	handshakeTimeout = 10 * time.Second
	writeWait        = 10 * time.Second
)

var ErrSessionClosed = errors.New("client: session closed")

type EventKind string

const (
	EventRoster    EventKind = "roster"
	EventJoined    EventKind = "joined"
	EventLeft      EventKind = "left"
	EventContent   EventKind = "content"
	EventExecution EventKind = "execution"
	EventError     EventKind = "error"
)

// Event is what observers see. Only the fields relevant to Kind are set.
type Event struct {
	Kind        EventKind
	Roster      []dto.Participant
	Participant dto.Participant
	Content     string
	Execution   *dto.ExecutionResultEvent
	Message     string
}

type Config struct {
	// ServerURL is the websocket session endpoint, e.g.
	// ws://localhost:83/api/ws/v1/session.
	ServerURL      string
	RoomID         string
	DisplayName    string
	InitialContent string

	// OnEvent is called on the session loop goroutine.
	OnEvent func(Event)
	Dialer  *websocket.Dialer
}

// Session is one participant in a room: a live connection, a local buffer and
// the reconciler that sits between them.
type Session struct {
	cfg  Config
	conn *websocket.Conn
	id   string

	buffer     *Buffer
	reconciler *Reconciler

	mu     sync.RWMutex
	roster []dto.Participant

	edits chan string
	done  chan struct{}
	once  sync.Once
}

// Dial connects, waits for the server-assigned identifier and asks to join
// the configured room. Connection failures are returned to the caller.
func Dial(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.RoomID == "" {
		return nil, fmt.Errorf("client: room id required")
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, _, err := dialer.DialContext(ctx, cfg.ServerURL, nil)
	if err != nil {
		return nil, fmt.Errorf("client: connect %s: %w", cfg.ServerURL, err)
	}

	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("client: read handshake: %w", err)
	}
	env, err := dto.Decode(data)
	if err != nil || env.Event != dto.EventConnected {
		conn.Close()
		return nil, fmt.Errorf("client: unexpected handshake frame %q", string(data))
	}
	var connected dto.ConnectedEvent
	if err := env.Into(&connected); err != nil {
		conn.Close()
		return nil, fmt.Errorf("client: handshake: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	s := &Session{
		cfg:    cfg,
		conn:   conn,
		id:     connected.ConnectionID,
		buffer: NewBuffer(cfg.InitialContent),
		edits:  make(chan string, 64),
		done:   make(chan struct{}),
	}
	s.reconciler = NewReconciler(s.buffer, s.relay)
	s.buffer.OnChange(func(content string) {
		if err := s.reconciler.OnLocalChange(content); err != nil {
			s.emit(Event{Kind: EventError, Message: err.Error()})
		}
	})

	if err := s.send(dto.EventJoin, dto.JoinRequest{RoomID: cfg.RoomID, DisplayName: cfg.DisplayName}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("client: join %s: %w", cfg.RoomID, err)
	}
	return s, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Content() string {
	return s.buffer.Value()
}

func (s *Session) Roster() []dto.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]dto.Participant(nil), s.roster...)
}

// Edit queues a local edit. It is applied on the session loop.
func (s *Session) Edit(content string) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	select {
	case s.edits <- content:
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

// Run drives the session until ctx is cancelled or the connection drops.
// A cancelled context is not an error.
func (s *Session) Run(ctx context.Context) error {
	defer s.shutdown()

	inbound := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		for {
			_, data, err := s.conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case inbound <- data:
			case <-s.done:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return nil

		case err := <-readErr:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("client: connection lost: %w", err)

		case data := <-inbound:
			s.handle(data)

		case content := <-s.edits:
			s.buffer.SetValue(content)
		}
	}
}

func (s *Session) shutdown() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

func (s *Session) handle(data []byte) {
	env, err := dto.Decode(data)
	if err != nil {
		slog.Warn("invalid frame from server", "error", err)
		return
	}

	switch env.Event {
	case dto.EventJoined:
		var ev dto.JoinedEvent
		if err := env.Into(&ev); err != nil {
			slog.Warn("invalid joined frame", "error", err)
			return
		}
		s.setRoster(ev.Roster)
		s.emit(Event{Kind: EventJoined, Roster: ev.Roster, Participant: dto.Participant{ConnectionID: ev.ConnectionID, DisplayName: ev.DisplayName}})
		s.emit(Event{Kind: EventRoster, Roster: ev.Roster})

		if ev.ConnectionID != s.id {
			content := s.buffer.Value()
			if err := s.send(dto.EventSyncCode, dto.SyncCodeRequest{TargetConnectionID: ev.ConnectionID, Content: &content}); err != nil {
				s.emit(Event{Kind: EventError, Message: err.Error()})
			}
		}

	case dto.EventLeft:
		var ev dto.LeftEvent
		if err := env.Into(&ev); err != nil {
			slog.Warn("invalid left frame", "error", err)
			return
		}
		roster := s.removeFromRoster(ev.ConnectionID)
		s.emit(Event{Kind: EventLeft, Roster: roster, Participant: dto.Participant{ConnectionID: ev.ConnectionID, DisplayName: ev.DisplayName}})
		s.emit(Event{Kind: EventRoster, Roster: roster})

	case dto.EventCodeChange:
		var ev dto.CodeChange
		if err := env.Into(&ev); err != nil {
			slog.Warn("invalid code-change frame", "error", err)
			return
		}
		if s.reconciler.ApplyRemote(ev.Content) {
			s.emit(Event{Kind: EventContent, Content: *ev.Content})
		}

	case dto.EventExecutionResult:
		var ev dto.ExecutionResultEvent
		if err := env.Into(&ev); err != nil {
			slog.Warn("invalid execution-result frame", "error", err)
			return
		}
		s.emit(Event{Kind: EventExecution, Execution: &ev})

	case dto.EventError:
		var ev dto.ErrorEvent
		env.Into(&ev)
		s.emit(Event{Kind: EventError, Message: ev.Message})

	default:
		slog.Debug("ignoring frame", "event", env.Event)
	}
}

func (s *Session) relay(content string) error {
	return s.send(dto.EventCodeChange, dto.CodeChange{RoomID: s.cfg.RoomID, Content: &content})
}

// send is only called from Dial and the session loop, so writes never overlap.
func (s *Session) send(event string, payload any) error {
	frame, err := dto.Encode(event, payload)
	if err != nil {
		return err
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("client: send %s: %w", event, err)
	}
	return nil
}

func (s *Session) setRoster(roster []dto.Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roster = append([]dto.Participant(nil), roster...)
}

func (s *Session) removeFromRoster(connID string) []dto.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.roster[:0]
	for _, p := range s.roster {
		if p.ConnectionID != connID {
			kept = append(kept, p)
		}
	}
	s.roster = kept
	return append([]dto.Participant(nil), kept...)
}

func (s *Session) emit(ev Event) {
	if s.cfg.OnEvent != nil {
		s.cfg.OnEvent(ev)
	}
}
