// Package app assembles the service from configuration and runs its
// background loops and HTTP server.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"careroute/pkg/capability"
	"careroute/pkg/config"
	"careroute/pkg/constants"
	"careroute/pkg/crisis"
	"careroute/pkg/escalation"
	"careroute/pkg/handlers"
	"careroute/pkg/metrics"
	"careroute/pkg/nlg"
	"careroute/pkg/notify"
	"careroute/pkg/orchestrator"
	redisClient "careroute/pkg/redis"
	"careroute/pkg/routing"
	"careroute/pkg/server"
	"careroute/pkg/session"
	"careroute/pkg/store"
)

type Service struct {
	config   *config.Config
	logger   *logrus.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer

	redis     *redisClient.Client
	sqlite    *store.SQLiteStore
	sessions  session.Store
	scheduler escalation.Scheduler
	leader    escalation.Leadership
	election  *escalation.LeaderElection
	sweeper   *session.Sweeper
	monitor   *escalation.FollowUpMonitor
	consumer  *notify.StreamConsumer
	orch      *orchestrator.Orchestrator
	server    *http.Server
}

// NewService builds every component selected by cfg. Nothing runs until Start.
func NewService(ctx context.Context, cfg *config.Config, logger *logrus.Logger, reg *prometheus.Registry) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	s := &Service{
		config:   cfg,
		logger:   logger,
		metrics:  metrics.NewMetrics(reg),
		gatherer: reg,
		leader:   escalation.AlwaysLeader{},
	}

	var rdb *redis.Client
	if cfg.RedisEnabled {
		client, err := redisClient.Dial(ctx, redisClient.DefaultOptions(cfg.RedisURL), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		s.redis = client
		rdb = client.Redis()
	}

	st, err := s.buildStore()
	if err != nil {
		s.close()
		return nil, err
	}

	gen, err := s.buildNLG(ctx)
	if err != nil {
		s.close()
		return nil, err
	}

	rules := escalation.DefaultRules()
	if cfg.EscalationRulesFile != "" {
		if rules, err = escalation.LoadRules(cfg.EscalationRulesFile); err != nil {
			s.close()
			return nil, err
		}
	}

	locker := session.NewLocker()
	switch cfg.SessionBackend {
	case "redis":
		s.sessions = session.NewRedisStore(rdb, cfg.SessionTTL(), logger, s.metrics)
	default:
		s.sessions = session.NewMemoryStore()
	}
	s.sweeper = session.NewSweeper(s.sessions, locker, cfg.SessionCapacity, cfg.SessionEvictBatch,
		cfg.SessionSweepInterval(), logger, s.metrics)

	// delivery is where notifications finally land; the notifier handed to the
	// engine either delivers directly or publishes to the stream
	delivery := notify.NewLogNotifier(logger)
	var notifier notify.Notifier = delivery
	if cfg.NotifierBackend == "stream" {
		notifier = notify.NewStreamNotifier(rdb, logger, s.metrics)
		s.consumer = notify.NewStreamConsumer(rdb, delivery, cfg.ConsumerGroupName, cfg.PodID, logger, s.metrics)
	}

	if rdb != nil {
		s.scheduler = escalation.NewRedisScheduler(rdb, logger, s.metrics)
		s.election = escalation.NewLeaderElection(rdb, constants.LeaderElectionKey, cfg.PodID,
			cfg.LeaderElectionTTLDuration(), constants.SecondsToDuration(constants.DefaultLeaderElectionIntervalSeconds),
			logger, s.metrics)
		s.leader = s.election
	} else {
		s.scheduler = escalation.NewMemoryScheduler()
	}
	s.monitor = escalation.NewFollowUpMonitor(s.scheduler, notifier, s.leader, cfg.FollowUpCheckInterval(), logger, s.metrics)

	engine := escalation.NewEngine(rules, st, notifier, logger, s.metrics,
		escalation.WithScheduler(s.scheduler),
		escalation.WithRegion(cfg.HelplineRegion),
	)

	registry, err := capability.NewRegistry(capability.Defaults(gen, st, capability.NewStaticSlots(), logger)...)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("failed to build capability registry: %w", err)
	}

	s.orch = orchestrator.New(orchestrator.Deps{
		Registry:   registry,
		Router:     routing.NewRouter(registry, routing.WithCollaboration(cfg.EnableCollaboration)),
		Classifier: gen,
		Crisis:     crisis.NewHandler(st, cfg.HelplineRegion, logger, s.metrics),
		Escalation: engine,
		Sessions:   s.sessions,
		Locker:     locker,
		Store:      st,
		Logger:     logger,
		Metrics:    s.metrics,
		NLGTimeout: cfg.NLGTimeout(),
	})

	handler := handlers.NewHandler(s.orch, logger, s.status)
	s.server = server.NewHTTPServer(cfg.Port, handler, s.gatherer, logger)
	return s, nil
}

func (s *Service) buildStore() (store.Store, error) {
	switch s.config.StoreBackend {
	case "sqlite":
		sq, err := store.NewSQLiteStore(s.config.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		s.sqlite = sq
		return sq, nil
	case "nop":
		s.logger.Warn("Running with the no-op store; nothing will be persisted")
		return store.Nop{}, nil
	default:
		return store.NewMemory(), nil
	}
}

func (s *Service) buildNLG(ctx context.Context) (nlg.Client, error) {
	if s.config.NLGBackend == "gemini" {
		g, err := nlg.NewGeminiClient(ctx, s.config.GeminiAPIKey, s.config.GeminiModel, s.config.NLGTimeout(), s.logger, s.metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		return g, nil
	}
	return nlg.NewMockClient(), nil
}

func (s *Service) Orchestrator() *orchestrator.Orchestrator { return s.orch }

func (s *Service) Handler() http.Handler { return s.server.Handler }

func (s *Service) Start(ctx context.Context) error {
	s.logger.WithFields(logrus.Fields{
		"pod_id":          s.config.PodID,
		"session_backend": s.config.SessionBackend,
		"store_backend":   s.config.StoreBackend,
		"nlg_backend":     s.config.NLGBackend,
		"notifier":        s.config.NotifierBackend,
	}).Info("Starting careroute service")

	if s.consumer != nil {
		if err := s.consumer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start notification consumer: %w", err)
		}
	}
	if s.election != nil {
		s.election.Start(ctx)
	}
	s.monitor.Start(ctx)
	s.sweeper.Start(ctx)

	go func() {
		s.logger.WithField("port", s.config.Port).Info("Starting HTTP server")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	s.logger.Info("careroute service started successfully")
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	s.logger.Info("Stopping careroute service")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	err := s.server.Shutdown(shutdownCtx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to shutdown HTTP server gracefully")
	}

	s.sweeper.Stop()
	s.monitor.Stop()
	if s.election != nil {
		s.election.Stop()
	}
	if s.consumer != nil {
		s.consumer.Stop()
	}
	s.close()

	s.logger.Info("careroute service stopped")
	return err
}

func (s *Service) close() {
	if s.sqlite != nil {
		if err := s.sqlite.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close sqlite store")
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close Redis client")
		}
	}
}

func (s *Service) status(ctx context.Context) (handlers.Status, error) {
	live, err := s.sessions.Len(ctx)
	if err != nil {
		return handlers.Status{}, err
	}
	pending, err := s.scheduler.Pending(ctx)
	if err != nil {
		return handlers.Status{}, err
	}
	return handlers.Status{
		IsLeader:         s.leader.IsLeader(ctx),
		LiveSessions:     live,
		PendingFollowUps: pending,
	}, nil
}
