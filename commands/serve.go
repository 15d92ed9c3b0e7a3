package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/spf13/cobra"

	"blueprint-backend/handlers"
	"blueprint-backend/services"
)

var (
	skipFetch bool
	feedTTL   time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and WebSocket server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&skipFetch, "skip-fetch", false, "do not load devices from the platform API on start")
	serveCmd.Flags().DurationVar(&feedTTL, "feed-timeout", 10*time.Second, "mark feed devices offline after this long without a report")
}

func runServe(cmd *cobra.Command, args []string) error {
	db, err := services.OpenDatabase(services.DatabaseOptions{
		Driver:     cfg.Database.Driver,
		Host:       cfg.Database.Host,
		Port:       cfg.Database.Port,
		User:       cfg.Database.User,
		Password:   cfg.Database.Password,
		Name:       cfg.Database.Name,
		SQLitePath: cfg.Database.SQLitePath,
		Debug:      cfg.Database.Debug,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// 로깅 시스템 초기화
	events := services.NewEventLog(db, cfg.Logging.FlushSize, cfg.Logging.FlushInterval, logger)
	events.Start()
	defer events.Stop() // 종료 시 남은 로그 저장

	store := services.NewSpatialStore(storeOptions(cfg), logger)
	animator := services.NewAnimator(store, services.AnimatorOptions{
		Interval:  cfg.Animation.Interval,
		Speed:     cfg.Animation.Speed,
		Tolerance: cfg.Animation.Tolerance,
	}, logger)
	evaluator := services.NewEvaluator()
	loader := services.NewDeviceLoader(loaderOptions(cfg), logger)
	floors := services.NewFloorRepository(db, cfg.Server.MaxImageSide, logger)
	feeds := handlers.NewFeedTracker(feedTTL)

	detachEvents := events.Attach(store, animator)
	defer detachEvents()

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer stop()

	hub := handlers.NewHub(store, evaluator, feeds, logger)
	hub.SetRecorder(events)
	detachHub := hub.Attach(animator)
	defer detachHub()
	go hub.Run(ctx)

	if !skipFetch && cfg.Loader.BaseURL != "" {
		if devices, err := loader.Fetch(); err != nil {
			logger.Warn("initial device fetch failed, starting empty", "err", err)
		} else if err := store.SetDevices(devices); err != nil {
			logger.Warn("initial device list rejected", "err", err)
		}
	}

	go cleanupFeeds(ctx, feeds, feedTTL)

	app := fiber.New(fiber.Config{
		AppName:               "blueprint",
		ErrorHandler:          handlers.ErrorHandler,
		BodyLimit:             cfg.Server.BodyLimit,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, PATCH, DELETE, OPTIONS",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("Blueprint 서버가 실행 중입니다.")
	})

	var middleware []fiber.Handler
	if cfg.Server.RateLimit > 0 {
		middleware = append(middleware, handlers.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst).Middleware())
	}
	handlers.NewAPI(handlers.Deps{
		Store:       store,
		Animator:    animator,
		Evaluator:   evaluator,
		Floors:      floors,
		Events:      events,
		Loader:      loader,
		Hub:         hub,
		Feeds:       feeds,
		WheelFactor: cfg.Viewport.WheelFactor,
		Logger:      logger,
	}).Routes(app, middleware...)

	// WebSocket
	app.Use("/websocket", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/websocket/web", websocket.New(hub.HandleWeb))
	app.Get("/websocket/feed", websocket.New(hub.HandleFeed))

	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		logger.Info("server starting", "addr", addr, "web", "/websocket/web", "feed", "/websocket/feed")
		if err := app.Listen(addr); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		animator.Cancel()
		if err := app.ShutdownWithTimeout(cfg.Server.ShutdownWait); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil

	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

// cleanupFeeds - 오프라인 피드 디바이스 주기적 정리
func cleanupFeeds(ctx context.Context, feeds *handlers.FeedTracker, every time.Duration) {
	if every <= 0 {
		every = 10 * time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := feeds.CleanupOffline(); n > 0 {
				logger.Info("offline feed devices removed", "count", n)
			}
		}
	}
}
