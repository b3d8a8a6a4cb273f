package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quizplay-service/internal/app"
	"quizplay-service/internal/config"
	"quizplay-service/internal/infra/backend"
	"quizplay-service/internal/infra/memory"
	redisinfra "quizplay-service/internal/infra/redis"
	"quizplay-service/internal/metrics"
	transport "quizplay-service/internal/transport/http"
)

// NewPlayCmd builds the subcommand running the attempt gateway.
func NewPlayCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Start the attempt gateway (players connect over WebSocket)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd.Context(), *configPath, *port)
		},
	}
}

func runPlay(ctx context.Context, configPath, portFlag string) error {
	cfg, logger, err := loadRuntime(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Backend.URL == "" {
		return fmt.Errorf("backend url not configured")
	}

	m := metrics.New()
	client := backend.NewClient(cfg.Backend.URL,
		backend.WithToken(cfg.Backend.Token),
		backend.WithTimeout(config.TTLDuration(cfg.Backend.Timeout, backend.DefaultTimeout)),
		backend.WithClientLogger(logger.Named("backend")),
		backend.WithRequestObserver(m),
	)

	var (
		registry     app.AttemptRegistry = memory.NewAttemptRegistry()
		leaseRefresh time.Duration
	)
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		leaseTTL := config.TTLDuration(cfg.Attempt.LeaseTTL, 30*time.Minute)
		registry = redisinfra.NewAttemptRegistry(redisClient, leaseTTL, logger.Named("registry"))
		// renewed at a third of the TTL for as long as the attempt is open
		leaseRefresh = leaseTTL / 3
	}

	service := app.NewAttemptService(registry, client, client, logger.Named("attempt"), m,
		app.WithDefaultTimeLimit(cfg.Attempt.DefaultTimeLimit))
	service.SetLeaseRefresh(leaseRefresh)
	wsHandler := transport.NewWSHandler(service,
		transport.WithWSLogger(logger.Named("ws")),
		transport.WithInboundRate(cfg.Attempt.MessagesPerSecond, cfg.Attempt.Burst))

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:        ":" + listenPort(portFlag, cfg.PlayPort()),
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
	}
	logger.Info("starting attempt gateway", zap.String("backend", cfg.Backend.URL))
	return serveUntilSignal(ctx, logger, server)
}
