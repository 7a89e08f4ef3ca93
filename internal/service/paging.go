package service

import (
	"context"
	"fmt"
	"log/slog"

	"pacelab/internal/store"
)

// BatchOptions bounds page size and per-user parallelism
type BatchOptions struct {
	PageSize int
	Workers  int
}

func (o BatchOptions) withDefaults() BatchOptions {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	return o
}

// forEachPage reads q in pages of pageSize and hands each non-empty page to fn
func forEachPage(ctx context.Context, h HistoryStore, q store.ActivityQuery, pageSize int, fn func([]store.Activity) error) error {
	q.Limit = pageSize
	q.Offset = 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := h.ListActivities(ctx, q)
		if err != nil {
			return fmt.Errorf("reading activity history at offset %d: %w", q.Offset, err)
		}
		if len(page) == 0 {
			return nil
		}
		if err := fn(page); err != nil {
			return err
		}
		if len(page) < pageSize {
			return nil
		}
		q.Offset += len(page)
	}
}

// listAll collects every activity matching q, one page at a time
func listAll(ctx context.Context, h HistoryStore, q store.ActivityQuery, pageSize int) ([]store.Activity, error) {
	var all []store.Activity
	err := forEachPage(ctx, h, q, pageSize, func(page []store.Activity) error {
		all = append(all, page...)
		return nil
	})
	return all, err
}

func activityIDs(acts []store.Activity) []int64 {
	ids := make([]int64, len(acts))
	for i, a := range acts {
		ids[i] = a.ID
	}
	return ids
}

// userAttr logs an optional user filter
func userAttr(userID *int64) slog.Attr {
	if userID == nil {
		return slog.String("user_id", "all")
	}
	return slog.Int64("user_id", *userID)
}
