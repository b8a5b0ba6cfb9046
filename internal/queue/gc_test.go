package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type stubPurger struct {
	purgeFunc func(ctx context.Context, retention time.Duration) (int, error)
}

func (s *stubPurger) PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error) {
	if s.purgeFunc != nil {
		return s.purgeFunc(ctx, retention)
	}
	return 0, nil
}

func TestGarbageCollectorNilPurgerIsNoop(t *testing.T) {
	t.Parallel()
	gc := NewGarbageCollector(nil, time.Minute, 24*time.Hour)
	if err := gc.collect(context.Background()); err != nil {
		t.Errorf("collect with nil purger: %v", err)
	}
}

func TestGarbageCollectorPassesRetention(t *testing.T) {
	t.Parallel()
	var called atomic.Bool
	purger := &stubPurger{
		purgeFunc: func(ctx context.Context, retention time.Duration) (int, error) {
			called.Store(true)
			if retention != 24*time.Hour {
				return 0, errors.New("unexpected retention")
			}
			return 2, nil
		},
	}
	gc := NewGarbageCollector(purger, time.Minute, 24*time.Hour)
	if err := gc.collect(context.Background()); err != nil {
		t.Errorf("collect: %v", err)
	}
	if !called.Load() {
		t.Error("PurgeOlderThan was not called")
	}
}

func TestGarbageCollectorPropagatesPurgeError(t *testing.T) {
	t.Parallel()
	purger := &stubPurger{
		purgeFunc: func(context.Context, time.Duration) (int, error) {
			return 0, errors.New("purge failed")
		},
	}
	gc := NewGarbageCollector(purger, time.Minute, time.Hour)
	if err := gc.collect(context.Background()); err == nil {
		t.Error("expected error from collect")
	}
}

func TestGarbageCollectorStopsOnCancel(t *testing.T) {
	t.Parallel()
	gc := NewGarbageCollector(&stubPurger{}, 24*time.Hour, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := gc.Start(ctx); err == nil {
		t.Error("expected context cancelled error")
	}
}
