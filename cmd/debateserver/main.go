// Command debateserver is the HTTP ingress for the debate engine: it
// accepts debate submissions, enforces per-user quota and per-IP rate
// limits, persists the debate row, enqueues it for a worker, and streams
// a debate's lifecycle events over Server-Sent Events.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/superagent/debatecore/internal/circuitbreaker"
	"github.com/superagent/debatecore/internal/config"
	"github.com/superagent/debatecore/internal/database"
	"github.com/superagent/debatecore/internal/durability"
	"github.com/superagent/debatecore/internal/metrics"
	"github.com/superagent/debatecore/internal/models"
	"github.com/superagent/debatecore/internal/quota"
	"github.com/superagent/debatecore/internal/router"
	"github.com/superagent/debatecore/internal/sse"
)

// DebateServer is the ingress process: gin router plus every dependency
// a debate submission or stream request touches.
type DebateServer struct {
	cfg    *config.Config
	logger *logrus.Logger
	pool   *pgxpool.Pool

	debates     *database.DebateRepository
	transcripts *database.TranscriptRepository
	checkpoints *database.CheckpointRepository
	quotas      *database.QuotaRepository

	limiter  *quota.Limiter
	ipBucket quota.IPBucket
	breaker  *circuitbreaker.Breaker
	queue    durability.JobQueue
	broker   sse.Broker
	metrics  *metrics.Registry
}

// NewDebateServer wires every dependency from cfg: database pool and
// migrations, the quota limiter and IP bucket, the job queue (inline or
// AMQP, per cfg.JobQueue.URL), and the SSE broker (memory or Redis, per
// cfg.SSE.Backend).
func NewDebateServer(cfg *config.Config) (*DebateServer, error) {
	logger := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.Monitoring.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pool, err := database.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := database.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	var redisClient *redis.Client
	if cfg.SSE.Backend == "redis" {
		if opts, err := redis.ParseURL(cfg.Redis.URL); err == nil {
			if cfg.Redis.Password != "" {
				opts.Password = cfg.Redis.Password
			}
			opts.DB = cfg.Redis.DB
			opts.PoolSize = cfg.Redis.PoolSize
			redisClient = redis.NewClient(opts)
		} else {
			logger.WithError(err).Warn("invalid redis url, falling back to memory-backed SSE broker")
		}
	}

	quotas := database.NewQuotaRepository(pool, logger)

	var jobQueue durability.JobQueue
	if cfg.JobQueue.URL != "" {
		jobQueue, err = durability.NewAMQPQueue(cfg.JobQueue.URL, cfg.JobQueue.QueueName, cfg.JobQueue.Durable, logger)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("connect job queue: %w", err)
		}
	} else {
		jobQueue = durability.NewInlineQueue(256)
	}

	return &DebateServer{
		cfg:         cfg,
		logger:      logger,
		pool:        pool,
		debates:     database.NewDebateRepository(pool, logger),
		transcripts: database.NewTranscriptRepository(pool, logger),
		checkpoints: database.NewCheckpointRepository(pool, logger),
		quotas:      quotas,
		limiter:     quota.NewLimiter(quotas, quota.DefaultLimits{}),
		ipBucket:    quota.NewMemoryIPBucket(),
		breaker:     circuitbreaker.New(circuitbreaker.Config{}),
		queue:       jobQueue,
		broker:      sse.NewBroker(cfg, redisClient),
		metrics:     metrics.New(cfg.Monitoring.Namespace),
	}, nil
}

// createDebateRequest is the wire shape of a debate submission.
type createDebateRequest struct {
	Prompt         string        `json:"prompt" binding:"required"`
	Mode           string        `json:"mode"`
	Panel          []models.Seat `json:"panel" binding:"required,min=1"`
	Judges         []models.Seat `json:"judges"`
	Synthesizer    *models.Seat  `json:"synthesizer"`
	RoutingPolicy  string        `json:"routing_policy"`
	RequestedModel string        `json:"requested_model"`
	MaxTokens      *int          `json:"max_tokens"`
	MaxCostUSD     *float64      `json:"max_cost_usd"`
	OwnerUserID    string        `json:"owner_user_id" binding:"required"`
	TeamID         string        `json:"team_id"`
}

// Start builds the gin router and blocks serving HTTP.
func (s *DebateServer) Start() error {
	gin.SetMode(s.cfg.Server.Mode)
	r := gin.Default()

	r.Use(func(c *gin.Context) {
		origin := "*"
		if len(s.cfg.Server.CORSOrigins) > 0 {
			origin = s.cfg.Server.CORSOrigins[0]
		}
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	api := r.Group("/api/v1")
	{
		debates := api.Group("/debates")
		{
			debates.POST("", s.handleCreateDebate)
			debates.GET("/:id", s.handleGetDebate)
			debates.GET("/:id/stream", s.handleStreamDebate)
		}

		api.GET("/health", s.handleHealth)
		api.GET("/status", s.handleStatus)
	}
	r.GET(s.cfg.Monitoring.MetricsPath, gin.WrapH(promhttp.Handler()))

	s.logger.WithField("port", s.cfg.Server.Port).Info("starting debate ingress server")
	return r.Run(s.cfg.Server.Host + ":" + s.cfg.Server.Port)
}

func (s *DebateServer) handleCreateDebate(c *gin.Context) {
	if err := s.ipBucket.Allow(c.Request.Context(), c.ClientIP(), time.Minute, 60); err != nil {
		s.rejectRateLimited(c, err)
		return
	}

	var req createDebateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.limiter.ReserveRunSlot(c.Request.Context(), req.OwnerUserID); err != nil {
		s.rejectRateLimited(c, err)
		return
	}
	if err := s.limiter.EnsureDailyTokenHeadroom(c.Request.Context(), req.OwnerUserID); err != nil {
		s.rejectRateLimited(c, err)
		return
	}

	mode := models.DebateMode(req.Mode)
	if mode == "" {
		mode = models.ModeDebate
	}

	routedModel, routingMeta, err := s.routeModel(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	assignSeatIDs(req.Panel)
	assignSeatIDs(req.Judges)
	if req.Synthesizer != nil && req.Synthesizer.SeatID == "" {
		req.Synthesizer.SeatID = uuid.New().String()
	}

	debate := &models.Debate{
		Prompt:        req.Prompt,
		Mode:          mode,
		PanelConfig:   req.Panel,
		JudgesConfig:  req.Judges,
		RoutedModel:   routedModel,
		RoutingPolicy: req.RoutingPolicy,
		RoutingMeta:   routingMeta,
		EngineVersion: "1",
		Budget: models.BudgetConfig{
			MaxTokens:  req.MaxTokens,
			MaxCostUSD: req.MaxCostUSD,
		},
	}
	if req.Synthesizer != nil {
		debate.SynthSeat = *req.Synthesizer
	}
	if req.OwnerUserID != "" {
		debate.OwnerUserID = &req.OwnerUserID
	}
	if req.TeamID != "" {
		debate.TeamID = &req.TeamID
	}

	id, err := s.debates.Create(c.Request.Context(), debate)
	if err != nil {
		s.logger.WithError(err).Error("failed to persist debate")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create debate"})
		return
	}

	if err := s.queue.Enqueue(c.Request.Context(), durability.Job{DebateID: id}); err != nil {
		s.logger.WithError(err).WithField("debate_id", id).Error("failed to enqueue debate")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not enqueue debate"})
		return
	}

	s.metrics.DebatesSubmitted.WithLabelValues(string(mode)).Inc()
	c.JSON(http.StatusAccepted, gin.H{"id": id, "status": models.DebateStatusQueued})
}

// routeModel runs the router when the panel's first seat requests a
// router-managed model (seat.Model == "router-smart"/"router-deep"), or
// passes through unrouted otherwise.
func (s *DebateServer) routeModel(req createDebateRequest) (string, models.RoutingMeta, error) {
	if req.RoutingPolicy == "" {
		return req.RequestedModel, models.RoutingMeta{}, nil
	}

	candidates := make([]router.Candidate, 0, len(req.Panel))
	for _, seat := range req.Panel {
		candidates = append(candidates, router.Candidate{
			Provider:    seat.ProviderKey,
			Model:       seat.Model,
			CostTier:    "medium",
			LatencyTier: "normal",
			QualityTier: "advanced",
			SafetyTier:  "normal",
		})
	}

	routed, meta, err := router.Choose(router.RouteContext{
		PolicyName:      req.RoutingPolicy,
		Candidates:      candidates,
		RequestedModel:  req.RequestedModel,
		OverrideEnabled: req.RequestedModel != "",
	}, s.breaker)
	if err != nil {
		return "", models.RoutingMeta{}, err
	}
	return routed, meta, nil
}

// assignSeatIDs fills in a generated seat ID for any panel/judge seat the
// submitter left blank, so every seat has a stable identity to key
// transcript rows, scores, and ranking/Elo pairwise votes by.
func assignSeatIDs(seats []models.Seat) {
	for i := range seats {
		if seats[i].SeatID == "" {
			seats[i].SeatID = uuid.New().String()
		}
	}
}

func (s *DebateServer) handleGetDebate(c *gin.Context) {
	debate, err := s.debates.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "debate not found"})
		return
	}
	c.JSON(http.StatusOK, debate)
}

func (s *DebateServer) handleStreamDebate(c *gin.Context) {
	id := c.Param("id")
	sub, err := s.broker.Subscribe(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not subscribe"})
		return
	}
	defer sub.Cancel()

	s.metrics.SSESubscriptions.Inc()
	defer s.metrics.SSESubscriptions.Dec()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-sub.Events:
			if !ok {
				return false
			}
			c.SSEvent(event.Type, event.Payload)
			return event.Type != "debate_terminal"
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (s *DebateServer) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := s.pool.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *DebateServer) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"sse_backend":    s.cfg.SSE.Backend,
		"job_queue_amqp": s.cfg.JobQueue.URL != "",
	})
}

func (s *DebateServer) rejectRateLimited(c *gin.Context, err error) {
	var rlErr *models.RateLimitError
	if errors.As(err, &rlErr) {
		s.metrics.RateLimitRejected.WithLabelValues(rlErr.Reason).Inc()
		c.Header("Retry-After", fmt.Sprintf("%d", rlErr.RetryAfterSeconds))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":               rlErr.Reason,
			"retry_after_seconds": rlErr.RetryAfterSeconds,
			"reset_at":            rlErr.ResetAt,
		})
		return
	}
	s.logger.WithError(err).Error("rate limiter failure")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "rate limiter unavailable"})
}

func main() {
	cfg := config.Load()

	server, err := NewDebateServer(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start debate server: %v\n", err)
		os.Exit(1)
	}

	if err := server.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "debate server exited: %v\n", err)
		os.Exit(1)
	}
}
