package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"codesync-backend/internal/dto"
	"codesync-backend/utils"
)

type HandlerConfig struct {
	// Redis is optional; without it rooms only see frames produced locally.
	Redis             *redis.Client
	MessagesPerSecond float64
	MessageBurst      int
	CheckOrigin       func(r *http.Request) bool
}

// Handler upgrades HTTP requests into room sessions and bridges the Redis room
// channels into the hub.
type Handler struct {
	hub         *Hub
	protocol    *Protocol
	upgrader    websocket.Upgrader
	redisClient *redis.Client
	rate        rate.Limit
	burst       int
}

func NewHandler(h *Hub, cfg HandlerConfig) *Handler {
	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	limit := rate.Inf
	if cfg.MessagesPerSecond > 0 {
		limit = rate.Limit(cfg.MessagesPerSecond)
	}
	return &Handler{
		hub:      h,
		protocol: NewProtocol(h),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		redisClient: cfg.Redis,
		rate:        limit,
		burst:       cfg.MessageBurst,
	}
}

// OriginChecker accepts requests whose Origin header is in allowed. A "*"
// entry or a request without Origin is always accepted.
func OriginChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(r *http.Request) bool { return true }
		}
		set[strings.TrimRight(origin, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// NewRedisClient returns nil when addr is empty.
func NewRedisClient(addr, password string) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
}

func (h *Handler) Hub() *Hub {
	return h.hub
}

// ServeSession upgrades the request and starts the connection's pumps. The
// first frame the peer receives is "connected" carrying its identifier.
func (h *Handler) ServeSession(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("upgrade error", "error", err)
		return
	}

	burst := h.burst
	if burst <= 0 {
		burst = 1
	}
	cl := NewWSClient(utils.NewConnectionID(), conn, rate.NewLimiter(h.rate, burst))

	frame, err := dto.Encode(dto.EventConnected, dto.ConnectedEvent{ConnectionID: cl.ID()})
	if err == nil {
		cl.Send(frame)
	}

	cl.start(h.hub, h.protocol)
	slog.Info("client connected", "connectionId", cl.ID(), "remote", utils.RealClientIP(r))
}

func (h *Handler) Rooms() []RoomInfo {
	return h.hub.Registry().Rooms()
}

// SubscribeToRoomChannels forwards every message published on a room channel
// to that room's local members until ctx is cancelled.
func (h *Handler) SubscribeToRoomChannels(ctx context.Context) {
	if h.redisClient == nil {
		return
	}

	pattern := RoomChannelPrefix + "*"
	slog.Info("subscribing to redis room channels", "pattern", pattern)
	subscriber := h.redisClient.PSubscribe(ctx, pattern)
	defer subscriber.Close()

	ch := subscriber.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				slog.Info("redis room subscription closed")
				return
			}
			roomID := strings.TrimPrefix(msg.Channel, RoomChannelPrefix)
			if roomID == "" {
				continue
			}
			h.hub.Announce(roomID, []byte(msg.Payload))
		}
	}
}
