package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"

	"github.com/rouletka/roulette/internal/clock"
	"github.com/rouletka/roulette/internal/config"
	"github.com/rouletka/roulette/internal/db"
	"github.com/rouletka/roulette/internal/gateway"
	"github.com/rouletka/roulette/internal/messaging"
	"github.com/rouletka/roulette/internal/metrics"
	"github.com/rouletka/roulette/internal/moderation"
	"github.com/rouletka/roulette/internal/participant"
	"github.com/rouletka/roulette/internal/ratelimit"
	"github.com/rouletka/roulette/internal/report"
	"github.com/rouletka/roulette/internal/service"
	"github.com/rouletka/roulette/internal/session"
)

func main() {
	log.Println("Starting rouletka service...")
	cfg := config.Load()

	// Redis: profile cache and flood limiting.
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		cancel()
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	cancel()

	// Postgres when configured, in-memory stores otherwise.
	var repo participant.Repository
	var reportStore report.Store
	if cfg.PostgresDSN != "" {
		conn, err := db.Open(cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("failed to connect to Postgres: %v", err)
		}
		defer conn.Close()
		if err := db.Migrate(conn); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
		repo = participant.NewCachedRepository(participant.NewPostgresRepository(conn), rdb)
		reportStore = report.NewPostgresStore(conn)
	} else {
		log.Println("POSTGRES_DSN not set; using in-memory stores")
		repo = participant.NewMemoryRepository()
		reportStore = report.NewMemoryStore()
	}

	// NATS carries the inbound commands and, absent Telegram, the outbound
	// deliveries as well.
	natsCfg := messaging.DefaultConfig()
	natsCfg.URL = cfg.NATSURL
	natsClient, err := messaging.Connect(natsCfg)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	var gw gateway.Gateway
	if cfg.TelegramToken != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			log.Fatalf("failed to authorize Telegram bot: %v", err)
		}
		log.Printf("delivering through Telegram bot @%s", bot.Self.UserName)
		gw = gateway.NewTelegramGateway(bot)
	} else {
		gw = gateway.NewNATSGateway(natsClient)
	}

	var external moderation.ExternalClassifier
	if cfg.Moderation.ExternalURL != "" {
		external = moderation.NewHTTPClassifier(cfg.Moderation.ExternalURL, cfg.Moderation.ExternalKey, cfg.Moderation.ExternalTimeout)
	}
	pipeline := moderation.NewPipeline(cfg.Moderation, external)

	limiter := ratelimit.NewFloodGuard(
		ratelimit.NewLimiter(rdb),
		ratelimit.MessageRule(cfg.Session.FloodLimit, cfg.Session.FloodWindow),
	)

	svc := service.New(cfg, repo, session.NewMemoryStore(), reportStore, gw, pipeline, limiter, clock.System{})

	ctx, stop := context.WithCancel(context.Background())
	svc.Start(ctx)
	if err := svc.BindSubscriptions(ctx, natsClient); err != nil {
		log.Fatalf("failed to bind NATS subscriptions: %v", err)
	}

	// Prometheus endpoint.
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("metrics server: %v", err)
		}
	}()

	log.Printf("rouletka service running")
	log.Printf("  redis_addr:   %s", cfg.RedisAddr)
	log.Printf("  nats_url:     %s", cfg.NATSURL)
	log.Printf("  metrics_addr: %s", cfg.MetricsAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %v, shutting down...", sig)

	stop()
	svc.Stop()
	natsClient.Close()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown: %v", err)
	}
	if err := rdb.Close(); err != nil {
		log.Printf("redis close: %v", err)
	}
}
