package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"fleet-tracker/common/database"
	mqttcommon "fleet-tracker/common/mqtt"
	rediscommon "fleet-tracker/common/redis"
	"fleet-tracker/internal/cache"
	"fleet-tracker/internal/config"
	httpapi "fleet-tracker/internal/http"
	"fleet-tracker/internal/mapview"
	"fleet-tracker/internal/models"
	"fleet-tracker/internal/repository"
	"fleet-tracker/internal/subscription"
	"fleet-tracker/internal/tracking"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// TrackingService wires the sources, the tracking engine, the map surface,
// the projection cache and the HTTP API together.
type TrackingService struct {
	config *config.Config
	logger *zap.Logger

	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqttcommon.Client

	hub          *subscription.Hub
	engine       *tracking.Engine
	reconciler   *mapview.Reconciler
	layer        *mapview.MemorySurface
	cacheManager *cache.CacheManager
	router       *httpapi.Router
	server       *Server
}

// NewTrackingService connects only the backends the configuration uses.
func NewTrackingService(cfg *config.Config, logger *zap.Logger) (*TrackingService, error) {
	loc, err := cfg.Tracking.Location()
	if err != nil {
		return nil, err
	}
	policy, err := tracking.ParseStaleSelectionPolicy(cfg.Tracking.StaleSelection)
	if err != nil {
		return nil, err
	}

	s := &TrackingService{
		config: cfg,
		logger: logger,
		hub:    subscription.NewHub(),
	}

	if err := s.connect(); err != nil {
		s.close()
		return nil, err
	}

	provider, err := s.buildProvider(loc)
	if err != nil {
		s.close()
		return nil, err
	}

	surface, err := s.buildSurface()
	if err != nil {
		s.close()
		return nil, err
	}
	s.reconciler = mapview.NewReconciler(surface, nil, mapview.Options{
		FitPadding: cfg.Tracking.Map.FitPadding,
		FocusZoom:  cfg.Tracking.Map.FocusZoom,
	}, logger)

	s.engine = tracking.NewEngine(provider, s.reconciler, tracking.EngineOptions{
		Pipeline: tracking.PipelineOptions{
			Location:       loc,
			StaleSelection: policy,
		},
		RenderInterval: cfg.Tracking.RenderInterval,
	}, logger)
	s.reconciler.SetOnSelect(s.engine.Toggle)

	if cfg.Tracking.Cache.Enabled {
		kv := cache.NewRedisKVStore(s.redisClient)
		s.cacheManager = cache.NewCacheManager(kv, cfg.Tracking.Cache.Prefix, cfg.Tracking.Cache.TTL, logger)
		s.engine.OnView(s.cacheManager.Listener())
	}

	var layer httpapi.MapStateSource
	if s.layer != nil {
		layer = s.layer
	}
	s.router = httpapi.NewRouter(logger)
	handler := httpapi.NewTrackingHandler(s.engine, layer, logger)
	s.router.RegisterTrackingRoutes(handler)
	s.router.RegisterHealthRoute(handler)
	s.server = NewServer(cfg.HTTP.Addr, s.router, logger)

	return s, nil
}

// Hub in-process provider serving every source configured as "memory".
func (s *TrackingService) Hub() *subscription.Hub { return s.hub }

// Engine the tracking engine.
func (s *TrackingService) Engine() *tracking.Engine { return s.engine }

// Handler the HTTP API.
func (s *TrackingService) Handler() http.Handler { return s.router }

func (s *TrackingService) connect() error {
	cfg := s.config
	sources := cfg.Tracking.Sources

	if sources.Uses(config.BackendPostgres) {
		db, err := database.NewPostgresDB(&cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		s.db = db
	}

	if sources.Uses(config.BackendRedis) || cfg.Tracking.Cache.Enabled {
		s.redisClient = rediscommon.NewRedisClient(&cfg.Redis)
		if err := rediscommon.Ping(context.Background(), s.redisClient); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
	}

	if sources.Uses(config.BackendMQTT) || cfg.Tracking.Map.Surface == config.SurfaceMQTT {
		mqttCfg := cfg.MQTT
		// brokers drop the older session when two instances share a client id
		mqttCfg.ClientID = fmt.Sprintf("%s-%s", mqttCfg.ClientID, uuid.NewString()[:8])
		client, err := mqttcommon.NewClient(&mqttCfg, s.logger)
		if err != nil {
			return err
		}
		s.mqttClient = client
	}
	return nil
}

func (s *TrackingService) buildProvider(loc *time.Location) (subscription.Provider, error) {
	cfg := s.config.Tracking
	var (
		streams *subscription.StreamProvider
		mqttP   *subscription.MQTTProvider
		pgPoll  *subscription.Poller
		rest    *subscription.Poller
	)

	routes := make(map[models.Source]subscription.Provider, len(models.AllSources))
	for name, backend := range cfg.Sources.Backends() {
		source, err := models.ParseSource(name)
		if err != nil {
			return nil, err
		}
		switch backend {
		case config.BackendRedis:
			if streams == nil {
				streams = subscription.NewStreamProvider(s.redisClient, subscription.StreamOptions{
					Prefix:   cfg.StreamPrefix,
					Block:    cfg.StreamBlock,
					Location: loc,
				}, s.logger)
			}
			routes[source] = streams
		case config.BackendMQTT:
			if mqttP == nil {
				mqttP = subscription.NewMQTTProvider(s.mqttClient, cfg.MQTTTopicPrefix, s.config.MQTT.QoS, loc, s.logger)
			}
			routes[source] = mqttP
		case config.BackendPostgres:
			if pgPoll == nil {
				pgPoll = subscription.NewPoller(repository.NewSourceRepository(s.db, s.logger), cfg.PollInterval, s.logger)
			}
			routes[source] = pgPoll
		case config.BackendREST:
			if rest == nil {
				fetcher := subscription.NewRESTFetcher(cfg.RESTBaseURL, cfg.RESTToken, 0, loc, s.logger)
				rest = subscription.NewPoller(fetcher, cfg.PollInterval, s.logger)
			}
			routes[source] = rest
		case config.BackendMemory:
			routes[source] = s.hub
		default:
			return nil, fmt.Errorf("%w: %q for %s", subscription.ErrUnknownBackend, backend, name)
		}
		s.logger.Info("Tracking source configured",
			zap.String("source", name),
			zap.String("backend", backend),
		)
	}
	return subscription.NewRouter(routes), nil
}

func (s *TrackingService) buildSurface() (mapview.Surface, error) {
	switch s.config.Tracking.Map.Surface {
	case config.SurfaceMQTT:
		return mapview.NewMQTTSurface(s.mqttClient, s.config.Tracking.Map.TopicPrefix, s.config.MQTT.QoS, s.logger)
	default:
		s.layer = mapview.NewMemorySurface()
		return s.layer, nil
	}
}

// Start runs until ctx is done or the HTTP server fails.
func (s *TrackingService) Start(ctx context.Context) error {
	s.logger.Info("Starting tracking service",
		zap.String("view_id", s.config.Tracking.ViewID),
		zap.String("map_surface", s.config.Tracking.Map.Surface),
		zap.Bool("cache_enabled", s.cacheManager != nil),
	)

	if s.cacheManager != nil {
		go s.cacheManager.Run(ctx, s.config.Tracking.ViewID)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := s.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	engineErr := make(chan error, 1)
	go func() {
		engineErr <- s.engine.Run(ctx)
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server failed: %w", err)
	case err := <-engineErr:
		return err
	}
}

// Stop shuts the HTTP server down, waits for the engine teardown and closes
// the backend connections.
func (s *TrackingService) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := s.server.Stop(shutdownCtx); err != nil {
		errs = append(errs, err)
	}

	select {
	case <-s.engine.Done():
	case <-shutdownCtx.Done():
		errs = append(errs, fmt.Errorf("tracking engine did not stop: %w", shutdownCtx.Err()))
	}

	errs = append(errs, s.close()...)
	return errors.Join(errs...)
}

func (s *TrackingService) close() []error {
	var errs []error
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}
	if s.redisClient != nil {
		if err := rediscommon.Close(s.redisClient); err != nil {
			errs = append(errs, err)
		}
	}
	if s.db != nil {
		if err := database.Close(s.db); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
