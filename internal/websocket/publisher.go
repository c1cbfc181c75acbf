package websocket

import (
	"context"
	"encoding/json"
	"fmt"
)

// Publish pushes a payload onto the Redis channel for a room so ws-server
// instances in other processes can relay it to their local clients.
func Publish(roomID string, payload interface{}) error {
	if roomID == "" {
		return fmt.Errorf("publish: room id required")
	}
	if redisClient == nil {
		return fmt.Errorf("publish: redis client not initialised")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("publish: marshal payload for room %s: %w", roomID, err)
	}

	if err := redisClient.Publish(context.Background(), roomID, body).Err(); err != nil {
		return fmt.Errorf("publish: room %s: %w", roomID, err)
	}
	return nil
}
