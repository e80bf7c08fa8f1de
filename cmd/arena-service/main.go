package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/agent-arena/internal/arena/combat"
	httpapi "github.com/radieske/agent-arena/internal/arena/http"
	"github.com/radieske/agent-arena/internal/arena/ledger"
	"github.com/radieske/agent-arena/internal/arena/match"
	"github.com/radieske/agent-arena/internal/arena/matchmaking"
	arenametrics "github.com/radieske/agent-arena/internal/arena/metrics"
	"github.com/radieske/agent-arena/internal/arena/payout"
	"github.com/radieske/agent-arena/internal/arena/publisher"
	"github.com/radieske/agent-arena/internal/arena/scheduler"
	"github.com/radieske/agent-arena/internal/arena/settlement"
	"github.com/radieske/agent-arena/internal/arena/store"
	"github.com/radieske/agent-arena/internal/arena/store/memory"
	"github.com/radieske/agent-arena/internal/arena/store/redisstore"
	"github.com/radieske/agent-arena/internal/arena/tournament"
	"github.com/radieske/agent-arena/internal/arena/ws"
	"github.com/radieske/agent-arena/internal/shared/cache"
	"github.com/radieske/agent-arena/internal/shared/config"
	"github.com/radieske/agent-arena/internal/shared/kafka"
	"github.com/radieske/agent-arena/internal/shared/logger"
	sharedmetrics "github.com/radieske/agent-arena/internal/shared/metrics"
)

func main() {
	// carrega config
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "arena-service"
	}

	// inicia logger
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	log.Info("starting service", zap.String("service", cfg.ServiceName), zap.String("env", cfg.Env))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Store: memória para local, Redis para agentes/histórico persistentes
	var (
		st          store.Store
		redisClient *redis.Client
	)
	switch cfg.Arena.Store {
	case "redis":
		redisClient, err = cache.ConnectRedis(cfg.RedisAddr)
		if err != nil {
			log.Fatal("failed to connect redis", zap.Error(err))
		}
		defer redisClient.Close()
		st = redisstore.New(redisClient, cfg.Arena.RedisPrefix)
		log.Info("redis store ready", zap.String("prefix", cfg.Arena.RedisPrefix))
	default:
		st = memory.New()
		log.Info("memory store ready")
	}

	if cfg.Arena.SeedAgents != "" {
		n, err := store.SeedAgents(ctx, st, cfg.Arena.SeedAgents)
		if err != nil {
			log.Fatal("seed agents", zap.Error(err))
		}
		log.Info("agents seeded", zap.Int("count", n))
	}

	m := arenametrics.New(prometheus.DefaultRegisterer)

	// Kafka: eventos da arena, match_ended para o history-worker e liquidação on-chain
	eventsWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicArenaEvents)
	defer eventsWriter.Close()
	endedWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicMatchEnded)
	defer endedWriter.Close()
	settleWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicChainSettlement)
	defer settleWriter.Close()
	log.Info("kafka writers ready",
		zap.String("events", cfg.TopicArenaEvents),
		zap.String("ended", cfg.TopicMatchEnded),
		zap.String("settlement", cfg.TopicChainSettlement),
	)

	// WebSocket: com Redis os eventos passam pelo Pub/Sub e qualquer réplica entrega;
	// sem Redis o hub recebe direto do engine
	hub := ws.NewHub(log, allowOrigin(cfg.Arena.AllowOrigins))
	pubs := publisher.Fanout{publisher.NewKafkaPublisher(eventsWriter, endedWriter)}
	if redisClient != nil {
		pubs = append(pubs, publisher.NewRedisBroadcaster(redisClient, cfg.RedisPubSubChannel))
		ws.StartRedisSubscriber(ctx, log, redisClient, cfg.RedisPubSubChannel, hub)
	} else {
		pubs = append(pubs, hub)
	}

	timers, err := scheduler.New(log, time.Second)
	if err != nil {
		log.Fatal("scheduler init", zap.Error(err))
	}

	splitter := payout.NewSplitter(payout.Percentages{
		Platform: cfg.Arena.SplitPlatform,
		Winner:   cfg.Arena.SplitWinner,
		Bettors:  cfg.Arena.SplitBettors,
	}, log)

	engine := match.New(match.Config{
		MaxHP:        cfg.Arena.MaxHP,
		MaxRounds:    cfg.Arena.MaxRounds,
		RoundSeconds: cfg.Arena.RoundSeconds,
		TieBreak:     match.TieBreak(cfg.Arena.TieBreak),
	}, match.Deps{
		Log:       log,
		Store:     st,
		Ledger:    ledger.New(st, decimal.NewFromInt(cfg.Arena.MaxBet), time.Now),
		Resolver:  combat.NewResolver(nil, time.Now),
		Splitter:  splitter,
		Timers:    timers,
		Publisher: pubs,
		Settler:   settlement.NewKafkaSettler(settleWriter),
		Metrics:   m,
	})

	queue := matchmaking.NewQueue(log, st, engine, decimal.NewFromInt(cfg.Arena.EntryFee), m)
	bracket := tournament.New(log, st, engine, cfg.Arena.BracketMax, tournament.OddWinner(cfg.Arena.OddWinner))
	engine.Subscribe(bracket.OnMatchComplete)

	api := httpapi.NewServer(log, engine, queue, bracket, st, hub.HandleWS)
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// sobe servidor de métricas e health
	metricsSrv := sharedmetrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if redisClient != nil {
			if err := redisClient.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	})
	log.Info("metrics/health listening", zap.String("port", cfg.MetricsPort))

	go func() {
		log.Info("http listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)

	// para os timers e drena persistência/eventos pendentes antes de fechar os writers
	engine.Close()
	if err := timers.Shutdown(); err != nil {
		log.Warn("scheduler shutdown", zap.Error(err))
	}
	log.Info("arena-service stopped")
}

// allowOrigin libera "*" ou uma lista separada por vírgula
func allowOrigin(origins string) func(r *http.Request) bool {
	if origins == "" || origins == "*" {
		return func(*http.Request) bool { return true }
	}
	allowed := make(map[string]struct{})
	for _, o := range strings.Split(origins, ",") {
		allowed[strings.TrimSpace(o)] = struct{}{}
	}
	return func(r *http.Request) bool {
		_, ok := allowed[r.Header.Get("Origin")]
		return ok
	}
}
