package escalation

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"careroute/pkg/metrics"
)

const renewScript = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("EXPIRE", KEYS[1], ARGV[2])
	else
		return 0
	end
`

const resignScript = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`

// Leadership tells a background loop whether this replica should act.
type Leadership interface {
	IsLeader(ctx context.Context) bool
}

// AlwaysLeader is used when a single replica runs without Redis.
type AlwaysLeader struct{}

func (AlwaysLeader) IsLeader(ctx context.Context) bool { return true }

// LeaderElection holds a Redis lease with SET NX and a TTL, renewed on every
// interval while held.
type LeaderElection struct {
	rdb      *redis.Client
	key      string
	podID    string
	ttl      time.Duration
	interval time.Duration
	logger   *logrus.Logger
	metrics  *metrics.Metrics

	mu       sync.Mutex
	isLeader bool
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewLeaderElection(rdb *redis.Client, key, podID string, ttl, interval time.Duration, logger *logrus.Logger, metrics *metrics.Metrics) *LeaderElection {
	return &LeaderElection{
		rdb:      rdb,
		key:      key,
		podID:    podID,
		ttl:      ttl,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
		stopCh:   make(chan struct{}),
	}
}

func (le *LeaderElection) Start(ctx context.Context) {
	le.logger.WithFields(logrus.Fields{
		"key":    le.key,
		"pod_id": le.podID,
	}).Info("Starting leader election")

	le.TryAcquire(ctx)

	le.wg.Add(1)
	go le.loop(ctx)
}

// Stop ends the election loop and releases the lease if held.
func (le *LeaderElection) Stop() {
	le.stopOnce.Do(func() { close(le.stopCh) })
	le.wg.Wait()

	le.mu.Lock()
	held := le.isLeader
	le.mu.Unlock()
	if held {
		le.resign(context.Background())
	}
}

// IsLeader verifies the lease against Redis.
func (le *LeaderElection) IsLeader(ctx context.Context) bool {
	current, err := le.rdb.Get(ctx, le.key).Result()
	actual := err == nil && current == le.podID

	le.mu.Lock()
	defer le.mu.Unlock()
	if le.isLeader != actual {
		le.isLeader = actual
		if actual {
			le.logger.Info("Confirmed leadership from Redis")
		} else {
			le.logger.Info("Leadership lost - not in Redis")
		}
	}
	return actual
}

func (le *LeaderElection) loop(ctx context.Context) {
	defer le.wg.Done()

	ticker := time.NewTicker(le.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-le.stopCh:
			return
		case <-ticker.C:
			le.TryAcquire(ctx)
		}
	}
}

// TryAcquire takes the lease if it is free and renews it if already held.
func (le *LeaderElection) TryAcquire(ctx context.Context) bool {
	start := time.Now()
	defer func() {
		le.metrics.LeaderElectionDuration.Observe(time.Since(start).Seconds())
	}()

	acquired, err := le.rdb.SetNX(ctx, le.key, le.podID, le.ttl).Result()
	if err != nil {
		le.logger.WithError(err).Error("Failed to attempt leader election")
		return false
	}

	le.mu.Lock()
	wasLeader := le.isLeader
	le.mu.Unlock()

	if acquired {
		if !wasLeader {
			le.logger.Info("Became leader")
			le.metrics.FollowUpLeaderChanges.Inc()
		}
		le.setLeader(true)
		return true
	}

	// the lease exists; renew it if it is ours
	return le.renew(ctx)
}

func (le *LeaderElection) renew(ctx context.Context) bool {
	res, err := le.rdb.Eval(ctx, renewScript, []string{le.key}, le.podID, int64(le.ttl/time.Second)).Int64()
	if err != nil {
		le.logger.WithError(err).Error("Failed to renew leadership")
		le.setLeader(false)
		return false
	}

	le.mu.Lock()
	defer le.mu.Unlock()
	if res == 0 {
		if le.isLeader {
			le.logger.Warn("Leadership renewal failed - no longer leader")
		}
		le.isLeader = false
		return false
	}
	if !le.isLeader {
		le.logger.Info("Became leader")
		le.metrics.FollowUpLeaderChanges.Inc()
	}
	le.isLeader = true
	return true
}

func (le *LeaderElection) resign(ctx context.Context) {
	if err := le.rdb.Eval(ctx, resignScript, []string{le.key}, le.podID).Err(); err != nil {
		le.logger.WithError(err).Error("Failed to resign leadership")
	} else {
		le.logger.Info("Resigned leadership")
	}
	le.setLeader(false)
}

func (le *LeaderElection) setLeader(v bool) {
	le.mu.Lock()
	le.isLeader = v
	le.mu.Unlock()
}
