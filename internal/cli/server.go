package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"music-trivia-service/internal/app"
	"music-trivia-service/internal/catalog"
	"music-trivia-service/internal/config"
	"music-trivia-service/internal/domain"
	"music-trivia-service/internal/game"
	boltstore "music-trivia-service/internal/infra/bolt"
	"music-trivia-service/internal/infra/catalogapi"
	"music-trivia-service/internal/infra/memory"
	"music-trivia-service/internal/infra/postgres"
	infraredis "music-trivia-service/internal/infra/redis"
	"music-trivia-service/internal/stats"
	transport "music-trivia-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia server",
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
	defer setupLogging(cfg).Close()

	var db *bun.DB
	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		if db, err = openBun(cfg); err != nil {
			return err
		}
		defer db.Close()
		if err := migrateDB(ctx, db); err != nil {
			return err
		}
		if pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL); err != nil {
			return err
		}
		defer pool.Close()
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
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
	redisTTL := config.Duration(cfg.Redis.TTL, 10*time.Minute)

	loader, err := buildLoader(cfg, pool)
	if err != nil {
		return err
	}

	var catalogRepo app.CatalogRepository
	if redisClient != nil {
		catalogRepo = infraredis.NewCatalogRepository(redisClient, loader, cfg.CatalogTTL())
	} else {
		catalogRepo = memory.NewCatalogRepository(loader, cfg.CatalogTTL())
	}

	var sessions app.SessionRepository
	if redisClient != nil {
		sessions = infraredis.NewSessionStore(redisClient, redisTTL)
	} else {
		sessions = memory.NewSessionStore()
	}

	var store stats.Store
	switch {
	case redisClient != nil:
		store = infraredis.NewKVStore(redisClient, 0)
	case cfg.Storage.BoltPath != "":
		bs, err := boltstore.Open(cfg.Storage.BoltPath)
		if err != nil {
			return err
		}
		defer bs.Close()
		store = bs
	default:
		log.Warn("no persistent store configured, stats are kept in memory")
		store = memory.NewKVStore()
	}

	opts := []app.Option{
		app.WithGameConfig(game.Config{
			RoundDuration:           cfg.RoundDuration(),
			RevealDelay:             cfg.RevealDelay(),
			FuzzyThreshold:          cfg.Game.FuzzyThreshold,
			PhoneticThreshold:       cfg.Game.PhoneticThreshold,
			SpokenFallbackThreshold: cfg.Game.SpokenFallbackThreshold,
		}),
		app.WithDefaultLength(domain.RoundLength(cfg.Game.RoundLength)),
	}
	var history transport.History
	if db != nil {
		archive := postgres.NewResultArchive(db)
		opts = append(opts, app.WithArchive(archive))
		history = archive
	}
	service := app.NewGameService(sessions, catalogRepo, store, opts...)

	router := transport.NewRouter(transport.NewWSHandler(service), transport.NewStatsHandler(service, history), cfg.Server.AllowedOrigins)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		log.WithField("port", finalPort).Info("starting trivia service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildLoader picks the catalog source: the REST API when configured, then
// Postgres, then a JSON file.
func buildLoader(cfg config.Config, pool *pgxpool.Pool) (catalog.Loader, error) {
	switch {
	case cfg.Catalog.BaseURL != "":
		return catalogapi.New(cfg.Catalog.BaseURL, cfg.Catalog.Token,
			catalogapi.WithHTTPClient(&http.Client{Timeout: cfg.CatalogTimeout()}),
			catalogapi.WithRateLimit(cfg.Catalog.RatePerSecond),
			catalogapi.WithBatch(catalog.BatchConfig{Size: cfg.Catalog.BatchSize, Delay: cfg.BatchDelay()}),
		), nil
	case pool != nil:
		return postgres.NewCatalogLoader(pool), nil
	case cfg.Catalog.File != "":
		return memory.LoadCatalogFile(cfg.Catalog.File)
	}
	return nil, errors.New("no catalog source configured: set catalog.base_url, postgres.url or catalog.file")
}
