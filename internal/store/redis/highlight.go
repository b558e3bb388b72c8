package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/hilite/internal/domain"
	"github.com/MrSnakeDoc/hilite/internal/store"
	"github.com/redis/go-redis/v9"
)

// GetHighlights retrieves the highlights of a page in creation order
func (s *Store) GetHighlights(ctx context.Context, url string) ([]*domain.Highlight, error) {
	normalized := domain.NormalizeURL(url)
	entries, err := s.client.HGetAll(ctx, PageKey(normalized)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get highlights: %w", err)
	}

	highlights := make([]*domain.Highlight, 0, len(entries))
	for id, v := range entries {
		h, err := decode(v)
		if err != nil {
			s.skipped(normalized, id, err)
			continue
		}
		highlights = append(highlights, h)
	}
	domain.SortByCreation(highlights)

	return highlights, nil
}

// SaveHighlight stores a new highlight; an existing ID on the page is rejected
func (s *Store) SaveHighlight(ctx context.Context, h *domain.Highlight) error {
	cp := *h
	cp.URL = domain.NormalizeURL(h.URL)
	if err := cp.Validate(); err != nil {
		return err
	}

	data, err := encode(&cp)
	if err != nil {
		return err
	}

	created, err := s.client.HSetNX(ctx, PageKey(cp.URL), cp.ID, data).Result()
	if err != nil {
		return fmt.Errorf("failed to save highlight: %w", err)
	}
	if !created {
		return fmt.Errorf("%w: %s", store.ErrDuplicate, cp.ID)
	}

	// Add to set of all pages
	if err := s.client.SAdd(ctx, AllPagesKey(), cp.URL).Err(); err != nil {
		return fmt.Errorf("failed to add page to set: %w", err)
	}

	return nil
}

// UpdateHighlight applies patch inside an optimistic transaction
func (s *Store) UpdateHighlight(ctx context.Context, url string, patch domain.HighlightPatch) (*domain.Highlight, error) {
	key := PageKey(domain.NormalizeURL(url))

	var updated *domain.Highlight
	txf := func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, key, patch.ID).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return fmt.Errorf("%w: %s", store.ErrNotFound, patch.ID)
			}
			return fmt.Errorf("failed to get highlight: %w", err)
		}

		h, err := decode(raw)
		if err != nil {
			return err
		}
		patch.Apply(h)

		data, err := encode(h)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, patch.ID, data)
			return nil
		})
		if err == nil {
			updated = h
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("failed to update highlight %s: too many concurrent writes", patch.ID)
}

// DeleteHighlight removes a highlight and returns the remaining ones
func (s *Store) DeleteHighlight(ctx context.Context, url, id string) ([]*domain.Highlight, error) {
	normalized := domain.NormalizeURL(url)

	n, err := s.client.HDel(ctx, PageKey(normalized), id).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to delete highlight: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}

	return s.GetHighlights(ctx, normalized)
}

// ClearPage removes the page hash and its index entry
func (s *Store) ClearPage(ctx context.Context, url string) (int, error) {
	normalized := domain.NormalizeURL(url)
	key := PageKey(normalized)

	var count *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		count = pipe.HLen(ctx, key)
		pipe.Del(ctx, key)
		pipe.SRem(ctx, AllPagesKey(), normalized)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to clear page: %w", err)
	}

	return int(count.Val()), nil
}

// ResetCategory rewrites every highlight of category to the uncategorized
// sentinel. Each page is rewritten in its own optimistic transaction, so an
// update racing the reset is retried against instead of overwritten.
func (s *Store) ResetCategory(ctx context.Context, category string) (int, error) {
	if category == "" || category == domain.UncategorizedCategory {
		return 0, nil
	}

	urls, err := s.Pages(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, url := range urls {
		n, err := s.resetPageCategory(ctx, url, category)
		if err != nil {
			return total, err
		}
		total += n
	}

	return total, nil
}

func (s *Store) resetPageCategory(ctx context.Context, url, category string) (int, error) {
	key := PageKey(url)

	var changed int
	txf := func(tx *redis.Tx) error {
		changed = 0
		entries, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("failed to read page %s: %w", url, err)
		}

		updates := make(map[string]any)
		for id, raw := range entries {
			h, err := decode(raw)
			if err != nil {
				s.skipped(url, id, err)
				continue
			}
			if h.Category != category {
				continue
			}
			h.Category = domain.UncategorizedCategory
			data, err := encode(h)
			if err != nil {
				return err
			}
			updates[id] = data
		}
		if len(updates) == 0 {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, updates)
			return nil
		})
		if err == nil {
			changed = len(updates)
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return changed, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return 0, err
		}
	}

	return 0, fmt.Errorf("failed to reset category on %s: too many concurrent writes", url)
}

// Pages lists the URLs in the page index
func (s *Store) Pages(ctx context.Context) ([]string, error) {
	urls, err := s.client.SMembers(ctx, AllPagesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get page URLs: %w", err)
	}
	return urls, nil
}

// SweepPages drops index entries whose hash is gone and re-adds hashes the
// index lost. Redis deletes a hash when its last field is removed.
func (s *Store) SweepPages(ctx context.Context) (int, error) {
	urls, err := s.Pages(ctx)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, url := range urls {
		n, err := s.client.Exists(ctx, PageKey(url)).Result()
		if err != nil {
			return swept, fmt.Errorf("failed to check page %s: %w", url, err)
		}
		if n > 0 {
			continue
		}
		if err := s.client.SRem(ctx, AllPagesKey(), url).Err(); err != nil {
			return swept, fmt.Errorf("failed to remove page from set: %w", err)
		}
		swept++
	}

	if err := s.reindexOrphans(ctx); err != nil {
		return swept, err
	}
	return swept, nil
}

// reindexOrphans adds page hashes missing from the page index, for example
// after the index set was lost or written by an older release.
func (s *Store) reindexOrphans(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, KeyPrefixPage+"*", 100).Iterator()
	for iter.Next(ctx) {
		url, err := ExtractPageURL(iter.Val())
		if err != nil {
			continue
		}
		if err := s.client.SAdd(ctx, AllPagesKey(), url).Err(); err != nil {
			return fmt.Errorf("failed to reindex page %s: %w", url, err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan page keys: %w", err)
	}
	return nil
}
