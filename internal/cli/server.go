package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"sigma-quiz-service/internal/app"
	"sigma-quiz-service/internal/auth"
	"sigma-quiz-service/internal/config"
	"sigma-quiz-service/internal/infra/memory"
	pgloader "sigma-quiz-service/internal/infra/postgres"
	rediscache "sigma-quiz-service/internal/infra/redis"
	"sigma-quiz-service/internal/infra/sqlstore"
	transport "sigma-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		return err
	}
	shrink, err := app.ParseShrinkPolicy(cfg.Rounds.ShrinkPolicy)
	if err != nil {
		return err
	}
	ranking, err := app.ParseRankingPolicy(cfg.Scoring.Ranking)
	if err != nil {
		return err
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	var store app.Store
	if db != nil {
		defer db.Close()
		if err := migrateDB(ctx, db); err != nil {
			return err
		}
		store = sqlstore.New(db)
	} else {
		log.Printf("no database configured, using in-memory store")
		store = memory.NewStore()
	}

	var loader app.ResultsLoader = app.NewStoreResultsLoader(store)
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		loader = pgloader.NewResultsLoader(pool)
	}

	resultsTTL := config.TTLDuration(cfg.Results.TTL, 30*time.Second)
	var results app.ResultsRepository
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		results = rediscache.NewResultsCache(redisClient, loader, resultsTTL)
	} else {
		results = memory.NewResultsCache(loader, resultsTTL)
	}

	services := app.NewServices(store, results, app.Options{Shrink: shrink, Ranking: ranking})
	handler := transport.NewHandler(services, issuer)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
