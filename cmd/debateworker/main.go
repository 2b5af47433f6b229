// Command debateworker claims queued debates, drives them through the
// stage engine to a terminal status, and feeds the resulting ranking into
// each persona's Elo rating. It also runs the stale-run reaper so debates
// abandoned by a crashed worker are reclassified instead of stuck forever.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/superagent/debatecore/internal/circuitbreaker"
	"github.com/superagent/debatecore/internal/config"
	"github.com/superagent/debatecore/internal/database"
	"github.com/superagent/debatecore/internal/durability"
	"github.com/superagent/debatecore/internal/llm"
	"github.com/superagent/debatecore/internal/llm/providers"
	"github.com/superagent/debatecore/internal/metrics"
	"github.com/superagent/debatecore/internal/models"
	"github.com/superagent/debatecore/internal/pipeline"
	"github.com/superagent/debatecore/internal/ranking"
	"github.com/superagent/debatecore/internal/reaper"
	"github.com/superagent/debatecore/internal/seat"
	"github.com/superagent/debatecore/internal/security"
	"github.com/superagent/debatecore/internal/sse"
)

// Worker claims and runs debates end to end: lease acquisition, stage
// execution, Elo feed-forward, and lease release.
type Worker struct {
	cfg    *config.Config
	logger *logrus.Logger
	pool   *pgxpool.Pool

	debates     *database.DebateRepository
	transcripts *database.TranscriptRepository
	checkpoints *database.CheckpointRepository
	ratings     *database.RatingRepository

	durabilityMgr *durability.Manager
	queue         durability.JobQueue
	broker        sse.Broker
	reaper        *reaper.Reaper

	seatRuntime *seat.Runtime
	breaker     *circuitbreaker.Breaker
	engine      *pipeline.Engine
	metrics     *metrics.Registry

	runnerID string
}

// NewWorker wires every dependency a debate run touches: database pool and
// migrations, the durability manager, the job queue, the SSE broker, the
// provider registry and seat runtime (guardrails, PII scrubbing, retry),
// and the reaper's periodic sweep.
func NewWorker(cfg *config.Config) (*Worker, error) {
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

	debates := database.NewDebateRepository(pool, logger)
	transcripts := database.NewTranscriptRepository(pool, logger)
	checkpoints := database.NewCheckpointRepository(pool, logger)
	ratings := database.NewRatingRepository(pool, logger)

	runnerID := fmt.Sprintf("%s:%d", hostname(), os.Getpid())
	durabilityMgr := durability.NewManager(debates, checkpoints, runnerID, cfg.Debate.LeaseDuration, cfg.Debate.HeartbeatInterval, logger)

	broker := sse.NewBroker(cfg, redisClient)
	metricsReg := metrics.New(cfg.Monitoring.Namespace)

	breaker := circuitbreaker.New(circuitbreaker.Config{
		WindowSeconds:   cfg.ProviderHealth.WindowSeconds,
		ErrorThreshold:  cfg.ProviderHealth.ErrorThreshold,
		MinCalls:        cfg.ProviderHealth.MinCalls,
		CooldownSeconds: cfg.ProviderHealth.CooldownSeconds,
	})

	registry := providers.BuildRegistry(cfg.Providers)
	injectionScanner := security.NewInjectionScanner(logger)
	pii := security.NewRegexPIIDetector()

	seatRuntime := &seat.Runtime{
		Registry:         registry,
		InjectionScanner: injectionScanner,
		PII:              pii,
		RetryCfg: llm.RetryConfig{
			Enabled:      cfg.LLMRetry.Enabled,
			MaxAttempts:  cfg.LLMRetry.MaxAttempts,
			InitialDelay: cfg.LLMRetry.InitialDelay,
			MaxDelay:     cfg.LLMRetry.MaxDelay,
		},
		Health: breaker,
	}

	reapEvents := &reapingPublisher{broker: broker, metrics: metricsReg}
	r := reaper.New(debates, transcripts, reapEvents, reaper.Config{
		Interval:       time.Duration(cfg.Debate.ReaperIntervalSeconds) * time.Second,
		QueuedTTL:      time.Duration(cfg.Debate.StaleQueuedSeconds) * time.Second,
		RunningTTL:     time.Duration(cfg.Debate.StaleRunningSeconds) * time.Second,
		MaxRunAttempts: cfg.Debate.MaxRunAttempts,
	}, logger)

	return &Worker{
		cfg:           cfg,
		logger:        logger,
		pool:          pool,
		debates:       debates,
		transcripts:   transcripts,
		checkpoints:   checkpoints,
		ratings:       ratings,
		durabilityMgr: durabilityMgr,
		queue:         jobQueue,
		broker:        broker,
		reaper:        r,
		seatRuntime:   seatRuntime,
		breaker:       breaker,
		engine:        &pipeline.Engine{ConversationRounds: cfg.Conversation.MaxRounds},
		metrics:       metricsReg,
		runnerID:      runnerID,
	}, nil
}

// reapingPublisher wraps an sse.Broker to additionally count every
// reclassification the reaper applies, satisfying reaper.EventPublisher.
type reapingPublisher struct {
	broker  sse.Broker
	metrics *metrics.Registry
}

func (p *reapingPublisher) Publish(ctx context.Context, debateID string, eventType string, payload map[string]any) error {
	if eventType == "debate_terminal" {
		status, _ := payload["status"].(string)
		p.metrics.ReaperReclassified.WithLabelValues(status).Inc()
	}
	return p.broker.Publish(ctx, debateID, eventType, payload)
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "worker"
	}
	return h
}

// Run starts the reaper's background sweep and blocks consuming jobs
// until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	go func() {
		if err := w.reaper.Run(ctx); err != nil && ctx.Err() == nil {
			w.logger.WithError(err).Warn("reaper stopped unexpectedly")
		}
	}()

	w.logger.WithField("runner_id", w.runnerID).Info("worker ready, consuming debate jobs")
	return w.queue.Consume(ctx, w.handleJob)
}

// handleJob claims, runs, and finalizes one debate. It always returns nil
// so that a single failed debate never stops the consumer loop: the
// inline queue propagates a handler error up through Consume and aborts
// entirely, while the AMQP queue merely nacks and requeues, so recovering
// internally keeps both backends behaving the same way.
func (w *Worker) handleJob(ctx context.Context, job durability.Job) error {
	log := w.logger.WithField("debate_id", job.DebateID)

	lease, err := w.durabilityMgr.Claim(ctx, job.DebateID)
	if err != nil {
		log.WithError(err).Warn("could not claim debate lease, skipping")
		return nil
	}
	defer func() {
		if err := lease.Release(context.Background()); err != nil {
			log.WithError(err).Warn("failed to release debate lease")
		}
	}()

	if err := w.runDebate(ctx, job.DebateID, lease, log); err != nil {
		log.WithError(err).Error("debate run failed")
	}
	return nil
}

func (w *Worker) runDebate(ctx context.Context, debateID string, lease *durability.Lease, log *logrus.Entry) error {
	debate, err := w.debates.Get(ctx, debateID)
	if err != nil {
		return fmt.Errorf("load debate: %w", err)
	}

	step, stepIndex, resume, err := w.durabilityMgr.ResumeStep(ctx, debateID)
	if err != nil {
		return fmt.Errorf("resolve resume step: %w", err)
	}
	if !resume {
		log.WithField("step", step).Info("debate already terminal, nothing to resume")
		return nil
	}

	state := pipeline.NewDebateState()
	if stepIndex > 0 {
		transcript, err := w.transcripts.Transcript(ctx, debateID)
		if err != nil {
			return fmt.Errorf("rehydrate transcript: %w", err)
		}
		state.Transcript = transcript
	}

	dc := &pipeline.DebateContext{
		Debate:           *debate,
		Seats:            debate.PanelConfig,
		Judges:           debate.JudgesConfig,
		Synth:            debate.SynthSeat,
		Budget:           debate.Budget,
		FanoutMax:        w.cfg.Debate.SeatFanoutMax,
		MinRequiredSeats: w.cfg.Debate.MinRequiredSeats,
		MaxSeatFailRatio: w.cfg.Debate.MaxSeatFailRatio,
		SeatRuntime:      w.seatRuntime,
		Usage:            &models.UsageAccumulator{},
		Events:           w.broker,
		Checkpoints:      w.checkpoints,
		Messages:         w.transcripts,
	}

	resultState, runErr := w.engine.Resume(ctx, dc, state, stepIndex)
	if resultState == nil {
		resultState = state
	}

	if err := w.debates.FinalizeResult(ctx, debateID, resultState.Status, resultState.FinalContent, resultState.FinalMeta); err != nil {
		log.WithError(err).Error("failed to persist final debate result")
	}
	w.metrics.DebatesCompleted.WithLabelValues(string(resultState.Status)).Inc()

	if resultState.Status == models.DebateStatusCompleted && len(resultState.Ranking) > 0 {
		w.updateRatings(ctx, debateID, resultState.Ranking, log)
	}

	select {
	case <-lease.Lost():
		return fmt.Errorf("%w: debate %s", models.ErrLeaseLost, debateID)
	default:
	}

	return runErr
}

// updateRatings derives a pairwise outcome for every (higher-ranked,
// lower-ranked) pair in the fused ranking — the top-ranked candidate beat
// every candidate ranked below it, and so on down the list — then applies
// an Elo update per pair and persists both the new ratings and the raw
// pairwise votes that fed them.
func (w *Worker) updateRatings(ctx context.Context, debateID string, fused []ranking.FusedResult, log *logrus.Entry) {
	for i := 0; i < len(fused); i++ {
		for j := i + 1; j < len(fused); j++ {
			winner := fused[i].Candidate
			loser := fused[j].Candidate
			if winner == loser {
				continue
			}

			pv := models.PairwiseVote{
				DebateID:   debateID,
				Category:   "overall",
				CandidateA: winner,
				CandidateB: loser,
				Winner:     winner,
				JudgeID:    "fused_ranking",
			}
			if err := w.transcripts.SavePairwiseVote(ctx, pv); err != nil {
				log.WithError(err).Warn("failed to persist pairwise vote")
			}

			winnerRating, err := w.ratings.Get(ctx, winner)
			if err != nil {
				log.WithError(err).WithField("persona", winner).Warn("failed to load persona rating")
				continue
			}
			loserRating, err := w.ratings.Get(ctx, loser)
			if err != nil {
				log.WithError(err).WithField("persona", loser).Warn("failed to load persona rating")
				continue
			}

			update := ranking.UpdateElo(winnerRating.Elo, loserRating.Elo, winnerRating.Matches, loserRating.Matches)
			winnerRating.Elo = update.WinnerNewRating
			winnerRating.Matches++
			winnerRating.Wins++
			loserRating.Elo = update.LoserNewRating
			loserRating.Matches++
			loserRating.Losses++

			if err := w.ratings.Upsert(ctx, winnerRating); err != nil {
				log.WithError(err).WithField("persona", winner).Warn("failed to persist persona rating")
			}
			if err := w.ratings.Upsert(ctx, loserRating); err != nil {
				log.WithError(err).WithField("persona", loser).Warn("failed to persist persona rating")
			}

			low, high := ranking.WilsonInterval(winnerRating.Wins, winnerRating.Matches)
			log.WithField("persona", winner).WithField("win_rate_ci_low", low).WithField("win_rate_ci_high", high).
				Debug("updated persona win-rate confidence interval")
		}
	}
}

func main() {
	cfg := config.Load()

	worker, err := NewWorker(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start debate worker: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "debate worker exited: %v\n", err)
		os.Exit(1)
	}
}
