package cli

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quizplay-service/internal/app"
	"quizplay-service/internal/config"
	"quizplay-service/internal/domain"
	"quizplay-service/internal/infra/memory"
	pgstore "quizplay-service/internal/infra/postgres"
	redisinfra "quizplay-service/internal/infra/redis"
	"quizplay-service/internal/metrics"
	transport "quizplay-service/internal/transport/http"
)

// NewBackendCmd builds the subcommand running the reference quiz backend.
func NewBackendCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "backend",
		Short: "Start the reference quiz participation API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackend(cmd.Context(), *configPath, *port)
		},
	}
}

func runBackend(ctx context.Context, configPath, portFlag string) error {
	cfg, logger, err := loadRuntime(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	var store app.ParticipationStore = memory.NewParticipationStore()
	if pool != nil {
		loader = pgstore.NewQuizLoader(pool)
		store = pgstore.NewParticipationStore(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisinfra.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	m := metrics.New()
	service := app.NewParticipationService(store, quizRepo)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(m.Middleware)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", m.Handler())
	transport.NewRESTHandler(service, logger.Named("rest")).Register(r)

	server := &http.Server{
		Addr:         ":" + listenPort(portFlag, cfg.BackendPort()),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return serveUntilSignal(ctx, logger, server)
}

// sampleQuizzes is the demo content served when no Postgres is configured.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:        "quiz-1",
			Title:     "Warm-up",
			TimeLimit: 60,
			Questions: []domain.Question{
				{
					ID:   "q1",
					Text: "What is 2 + 2?",
					Options: []domain.Option{
						{ID: "o1", Text: "3", Correct: false},
						{ID: "o2", Text: "4", Correct: true},
						{ID: "o3", Text: "5", Correct: false},
					},
					Points: 1,
				},
				{
					ID:   "q2",
					Text: "Which planet is closest to the sun?",
					Options: []domain.Option{
						{ID: "o4", Text: "Venus", Correct: false},
						{ID: "o5", Text: "Mercury", Correct: true},
					},
					Points: 2,
				},
			},
		},
	}
}
