package core

import (
	"context"
	"fmt"
	"time"
)

// SweepPending scans events still in pending, oldest first, and feeds each
// one to the processor sequentially. One event's failure never aborts the
// rest of the sweep; concurrency comes from independent dispatch triggers,
// not from within a sweep. Returns how many events a processor ran for.
func (s *Service) SweepPending(ctx context.Context) (int, error) {
	startedAt := s.clock()()
	stats, err := s.sweepPending(ctx)
	s.observeOperation(ctx, startedAt, "sweep", err, map[string]any{
		"scanned":   stats.Scanned,
		"processed": stats.Processed,
		"skipped":   stats.Skipped,
	})
	if err != nil {
		return stats.Processed, s.mapError(err)
	}
	return stats.Processed, nil
}

func (s *Service) sweepPending(ctx context.Context) (SweepStats, error) {
	if s == nil || s.store == nil {
		return SweepStats{}, fmt.Errorf("core: event store is not configured")
	}

	ids, err := s.store.ListPending(ctx, s.config.Sweep.BatchSize)
	if err != nil {
		return SweepStats{}, err
	}

	stats := SweepStats{Scanned: len(ids)}
	for _, id := range ids {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		if err := s.ProcessEvent(ctx, id); err != nil {
			// Infrastructure failure on this event only; outcome is
			// isolated and the sweep continues.
			s.logError(ctx, "sweep: event processing attempt failed", map[string]any{
				"event_id": id,
				"error":    err.Error(),
			})
			stats.Skipped++
			continue
		}
		stats.Processed++
	}
	return stats, nil
}

// ReclaimStuck moves events abandoned in processing (their worker crashed
// between claim and outcome) back to pending so the next sweep can retry
// them. olderThan <= 0 falls back to the configured reclaim window.
func (s *Service) ReclaimStuck(ctx context.Context, olderThan time.Duration) (int, error) {
	startedAt := s.clock()()
	count, err := s.reclaimStuck(ctx, olderThan)
	s.observeOperation(ctx, startedAt, "reclaim", err, map[string]any{
		"reclaimed": count,
	})
	if err != nil {
		return count, s.mapError(err)
	}
	return count, nil
}

func (s *Service) reclaimStuck(ctx context.Context, olderThan time.Duration) (int, error) {
	if s == nil || s.store == nil {
		return 0, fmt.Errorf("core: event store is not configured")
	}
	if olderThan <= 0 {
		olderThan = s.config.Processing.ReclaimAfter
	}
	if olderThan <= 0 {
		return 0, fmt.Errorf("core: reclaim window is required")
	}
	cutoff := s.clock()().Add(-olderThan)
	return s.store.ReclaimStale(ctx, cutoff)
}
