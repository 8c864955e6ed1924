package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quizchat/config"
	"quizchat/handlers"
	"quizchat/middleware"
	"quizchat/models"
	"quizchat/routes"
	"quizchat/services"

	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.LogLevel}))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{Level: cfg.LogLevel, TimeFormat: time.Kitchen}))
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := newLogger(cfg, stdout)

	// --- Postgres ---
	db, err := config.InitDB(cfg)
	if err != nil {
		return err
	}
	err = db.AutoMigrate(
		&models.User{},
		&models.Question{},
		&models.Option{},
		&models.ChatMessage{},
		&models.MessageReaction{},
		&models.ReadReceipt{},
		&models.Block{},
	)
	if err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	logger.Info("connected to postgres")

	// --- Redis ---
	rdb, err := config.InitRedis(cfg)
	if err != nil {
		return err
	}
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	logger.Info("connected to redis")

	// --- Services ---
	identities := services.NewJWTIdentityProvider(cfg.JWTSecret)
	limiter := services.NewRateLimiter(logger, nil)
	presence := services.NewPresenceRegistry(services.NewAccountDirectory(db), cfg.MaxNameLength, logger)
	chatRooms := services.NewRoomFabric("chat", logger)
	gameRooms := services.NewRoomFabric("game", logger)
	channelStore := services.NewRedisChannelStore(rdb, cfg.ChannelTTL)
	questionBank := services.NewQuestionBankService(db)

	gameService := services.NewGameService(services.GameServiceConfig{
		Store:     channelStore,
		Questions: questionBank,
		Games:     gameRooms,
		Chat:      chatRooms,
		Names:     presence,
		Limiter:   limiter,
		GameRooms: cfg.GameRooms,
		Logger:    logger,
		Timings: services.GameTimings{
			StartupDelay:   cfg.StartupDelay,
			RoundDuration:  cfg.RoundDuration,
			GracePeriod:    cfg.GracePeriod,
			RevealPause:    cfg.RevealPause,
			PersistTimeout: cfg.PersistTimeout,
			WinnerPoints:   cfg.WinnerPoints,
			HistoryLimit:   cfg.HistoryLimit,
		},
	})
	relay := services.NewMessageRelay(services.MessageRelayConfig{
		Chat:             chatRooms,
		Presence:         presence,
		Game:             gameService,
		Store:            services.NewMessageStore(db),
		Blocks:           services.NewBlockList(db),
		Limiter:          limiter,
		Logger:           logger,
		MaxMessageLength: cfg.MaxMessageLength,
		HistoryLimit:     cfg.HistoryLimit,
	})
	dispatcher := services.NewDispatcher(presence, chatRooms, gameService, relay, limiter, logger)
	hub := services.NewHub(dispatcher, logger)

	// --- HTTP ---
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(logger), middleware.CORS())
	postgresCheck := handlers.CheckerFunc(func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})
	routes.SetupRoutes(router, routes.Handlers{
		Health: handlers.NewHealthHandler(logger, map[string]handlers.Checker{
			"redis":    handlers.CheckerFunc(channelStore.Ping),
			"postgres": postgresCheck,
		}),
		Socket:   handlers.NewSocketHandler(hub, identities, logger),
		Chat:     handlers.NewChatHandler(presence, relay, chatRooms),
		Game:     handlers.NewGameHandler(gameService),
		Question: handlers.NewQuestionHandler(questionBank),
	}, identities)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", srv.Addr, "game_rooms", cfg.GameRooms)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return hub.Run(gctx)
	})

	g.Go(func() error {
		return limiter.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		gameService.Shutdown()
		return err
	})

	return g.Wait()
}
