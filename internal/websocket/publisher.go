package websocket

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"codesync-backend/internal/dto"
)

const RoomChannelPrefix = "codesync:room:"

func RoomChannel(roomID string) string {
	return RoomChannelPrefix + roomID
}

// Publisher pushes frames into a room from outside the session server.
type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	if client == nil {
		return nil
	}
	return &Publisher{client: client}
}

func (p *Publisher) Publish(ctx context.Context, roomID, event string, payload any) error {
	if roomID == "" {
		return fmt.Errorf("websocket publish: roomID required")
	}
	if p == nil || p.client == nil {
		return fmt.Errorf("websocket publish: redis client not initialised")
	}

	frame, err := dto.Encode(event, payload)
	if err != nil {
		return fmt.Errorf("websocket publish: %w", err)
	}

	if err := p.client.Publish(ctx, RoomChannel(roomID), string(frame)).Err(); err != nil {
		return fmt.Errorf("websocket publish: redis publish: %w", err)
	}
	return nil
}
