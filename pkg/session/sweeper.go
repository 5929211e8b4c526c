package session

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"careroute/pkg/metrics"
)

// Sweeper trims the store back under capacity in the background, oldest first.
// Busy sessions are skipped.
type Sweeper struct {
	store    Store
	locker   *Locker
	capacity int
	batch    int
	interval time.Duration
	logger   *logrus.Logger
	metrics  *metrics.Metrics
	stopCh   chan struct{}
	done     chan struct{}
}

func NewSweeper(store Store, locker *Locker, capacity, batch int, interval time.Duration, logger *logrus.Logger, metrics *metrics.Metrics) *Sweeper {
	return &Sweeper{
		store:    store,
		locker:   locker,
		capacity: capacity,
		batch:    batch,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (sw *Sweeper) Start(ctx context.Context) {
	sw.logger.WithFields(logrus.Fields{
		"capacity": sw.capacity,
		"batch":    sw.batch,
		"interval": sw.interval,
	}).Info("Starting session sweeper")

	go sw.loop(ctx)
}

// Stop ends the loop and waits for it to exit.
func (sw *Sweeper) Stop() {
	close(sw.stopCh)
	<-sw.done
}

func (sw *Sweeper) loop(ctx context.Context) {
	defer close(sw.done)

	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sw.stopCh:
			return
		case <-ticker.C:
			if _, err := sw.Sweep(ctx); err != nil {
				sw.logger.WithError(err).Error("Session sweep failed")
			}
		}
	}
}

// Sweep evicts at least enough sessions to get back under capacity, and a full
// batch when it runs at all. It returns how many sessions were evicted.
func (sw *Sweeper) Sweep(ctx context.Context) (int, error) {
	n, err := sw.store.Len(ctx)
	if err != nil {
		return 0, err
	}
	sw.metrics.LiveSessions.Set(float64(n))
	if n <= sw.capacity {
		return 0, nil
	}

	want := sw.batch
	if over := n - sw.capacity; over > want {
		want = over
	}
	if want > n {
		want = n
	}

	candidates, err := sw.store.Oldest(ctx, n)
	if err != nil {
		return 0, err
	}

	evicted, skipped := 0, 0
	for _, id := range candidates {
		if evicted >= want {
			break
		}
		unlock, ok := sw.locker.TryLock(id)
		if !ok {
			skipped++
			continue
		}
		err := sw.store.Delete(ctx, id)
		unlock()
		if err != nil {
			sw.logger.WithError(err).WithField("session_id", id).Warn("Failed to evict session")
			continue
		}
		evicted++
	}

	sw.metrics.SessionsEvicted.Add(float64(evicted))
	sw.metrics.LiveSessions.Set(float64(n - evicted))

	sw.logger.WithFields(logrus.Fields{
		"evicted": evicted,
		"skipped": skipped,
		"live":    n - evicted,
	}).Info("Evicted least recently used sessions")

	return evicted, nil
}
