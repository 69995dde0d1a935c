package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"finch-forex-backend/internal/conversation"
)

const (
	historyTTL    = 24 * time.Hour
	historyPrefix = "chat:"
)

// HistoryStore snapshots conversation logs in Redis so a returning session
// sees its prior messages after a server restart.
type HistoryStore struct {
	rdb *redis.Client
}

func NewHistoryStore(rdb *redis.Client) *HistoryStore {
	return &HistoryStore{rdb: rdb}
}

// LoadHistory returns the persisted log for a session, empty when none exists.
func (h *HistoryStore) LoadHistory(ctx context.Context, sessionID string) ([]conversation.Message, error) {
	key := historyPrefix + sessionID
	data, err := h.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return []conversation.Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	var messages []conversation.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history: %w", err)
	}
	return messages, nil
}

// SaveHistory writes the current log snapshot with a sliding TTL.
func (h *HistoryStore) SaveHistory(ctx context.Context, sessionID string, messages []conversation.Message) error {
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	key := historyPrefix + sessionID
	if err := h.rdb.Set(ctx, key, data, historyTTL).Err(); err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}
	return nil
}

// DropHistory removes a session's snapshot, used on logout.
func (h *HistoryStore) DropHistory(ctx context.Context, sessionID string) error {
	if err := h.rdb.Del(ctx, historyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("failed to drop history: %w", err)
	}
	return nil
}
