package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"codesync-backend/internal/dto"
)

type mockConn struct {
	id       string
	received [][]byte
	closed   bool
	mu       sync.Mutex
	sendErr  error
}

func newMockConn(id string) *mockConn {
	return &mockConn{id: id}
}

func (m *mockConn) ID() string { return m.id }

func (m *mockConn) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.received = append(m.received, data)
	return nil
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockConn) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// frames returns every received frame with the given event name.
func (m *mockConn) frames(t *testing.T, event string) []dto.Envelope {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []dto.Envelope
	for _, raw := range m.received {
		env, err := dto.Decode(raw)
		require.NoError(t, err)
		if env.Event == event {
			out = append(out, env)
		}
	}
	return out
}

func (m *mockConn) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received = nil
}

func decodeInto[T any](t *testing.T, env dto.Envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Payload, &v))
	return v
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)
	return h
}

// flush waits until every request submitted before it has been processed.
func flush(h *Hub) {
	barrier := newMockConn("flush-barrier")
	h.Join(barrier, "flush-barrier-room", "")
	h.Leave(barrier)
}

func rosterIDs(roster []dto.Participant) []string {
	ids := make([]string, len(roster))
	for i, p := range roster {
		ids[i] = p.ConnectionID
	}
	return ids
}
