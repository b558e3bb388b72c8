package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MrSnakeDoc/hilite/internal/domain"
	"github.com/MrSnakeDoc/hilite/internal/logger"
	"github.com/MrSnakeDoc/hilite/internal/store"
	"github.com/redis/go-redis/v9"
)

// maxTxRetries bounds optimistic transaction retries on concurrent writes
const maxTxRetries = 5

// Store persists highlights in Redis.
//
// Each page is a hash keyed by normalized URL holding one JSON document per
// highlight ID; a set indexes every page URL that ever held a highlight.
type Store struct {
	client *redis.Client
	logger logger.Logger
}

var _ store.HighlightStore = (*Store)(nil)

// NewStore creates a new Redis store
func NewStore(client *redis.Client, log logger.Logger) *Store {
	return &Store{
		client: client,
		logger: log,
	}
}

// Ping checks the Redis connection
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) skipped(url, id string, err error) {
	s.logger.Warn("skipping undecodable highlight",
		logger.String("url", url),
		logger.String("highlight_id", id),
		logger.Error(err))
}

func encode(h *domain.Highlight) ([]byte, error) {
	data, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal highlight %s: %w", h.ID, err)
	}
	return data, nil
}

func decode(data string) (*domain.Highlight, error) {
	var h domain.Highlight
	if err := json.Unmarshal([]byte(data), &h); err != nil {
		return nil, fmt.Errorf("failed to unmarshal highlight: %w", err)
	}
	return &h, nil
}
