package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/soundwall/api/internal/client"
	"github.com/soundwall/api/internal/config"
	"github.com/soundwall/api/internal/counter"
	"github.com/soundwall/api/internal/handler"
	"github.com/soundwall/api/internal/imaging"
	"github.com/soundwall/api/internal/middleware"
	"github.com/soundwall/api/internal/service"
	"github.com/soundwall/api/internal/store"
	"github.com/soundwall/api/internal/worker"
	ws "github.com/soundwall/api/internal/websocket"
)

const sessionTTL = 24 * time.Hour

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := os.MkdirAll(cfg.Data.Dir, 0o755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	// Initialize Redis client (optional - memory backends if unset)
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx := context.Background()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("Warning: Redis not available: %v", err)
			redisClient = nil
		}
	}

	// Session store and image counter share the Redis backend when present
	var sessions store.SessionStore
	var imageCounter counter.Counter
	if redisClient != nil {
		sessions = store.NewRedisStore(redisClient, sessionTTL)
		imageCounter = counter.NewRedisCounter(redisClient)
	} else {
		log.Println("Info: Redis not configured, using in-process session store")
		sessions = store.NewMemoryStore()
		imageCounter = counter.NewFileCounter(cfg.Data.CounterFile)
	}

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Sound provider: real Freesound when credentials work, FAKE mode otherwise
	var provider client.AssetProvider
	fsClient := client.NewFreesoundClient(&cfg.Freesound, cfg.Data.Dir, cfg.Wallpaper.MaxDuration)
	if fsClient.IsConfigured() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := fsClient.Authenticate(ctx)
		cancel()
		if err != nil {
			log.Printf("Warning: Freesound authentication failed, running in FAKE mode: %v", err)
			provider = client.NewFakeProvider(cfg.Data.Dir)
		} else {
			provider = fsClient
		}
	} else {
		log.Println("Info: Freesound not configured, running in FAKE mode")
		provider = client.NewFakeProvider(cfg.Data.Dir)
	}

	// Renderer: remote render service, or the built-in placeholder renderer
	var renderer client.Renderer
	if cfg.Render.ServiceURL != "" {
		renderer = client.NewRenderClient(&cfg.Render)
	} else {
		log.Println("Info: render service not configured, using mock renderer")
		renderer = client.NewMockRenderer()
	}

	// Initialize R2 client (optional - continues if not configured)
	var r2Client *client.R2Client
	if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
		var err error
		r2Client, err = client.NewR2Client(&cfg.R2)
		if err != nil {
			log.Printf("Warning: R2 client not initialized: %v", err)
		}
	} else {
		log.Println("Info: R2 storage not configured, serving images locally only")
	}

	// Initialize progress tracking and worker
	tracker := service.NewProgressTracker(sessions, imageCounter, hub, cfg.Server.BaseURL, cfg.Server.ApplicationRoot)
	resizer := imaging.NewResizer()
	var storage client.StorageClient
	if r2Client != nil {
		storage = r2Client
	}
	variantWorker := worker.NewVariantWorker(renderer, resizer, storage, tracker, cfg.Wallpaper.ThumbnailHeight)

	// Variant dispatch: asynq queue when Redis is present, goroutines otherwise
	var dispatcher service.VariantDispatcher
	if redisClient != nil {
		asynqClient := asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer asynqClient.Close()
		dispatcher = worker.NewAsynqDispatcher(asynqClient)
		go startWorkerServer(cfg, variantWorker)
	} else {
		dispatcher = worker.NewGoDispatcher(variantWorker)
	}

	// Initialize services and handlers
	wallpaperService := service.NewWallpaperService(
		sessions,
		provider,
		dispatcher,
		hub,
		cfg.Data.Dir,
		cfg.Wallpaper.ColorSchemes,
		service.Limits{
			MinDimension: cfg.Wallpaper.MinDimension,
			MaxDimension: cfg.Wallpaper.MaxDimension,
			MaxFFTSize:   cfg.Wallpaper.MaxFFTSize,
		},
	)
	wallpaperHandler := handler.NewWallpaperHandler(wallpaperService, validate, hub)
	statsHandler := handler.NewStatsHandler(imageCounter)
	imageHandler := handler.NewImageHandler(cfg.Data.Dir)

	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Base URL - timestamp plus what the service is prepared to render
	app.Get("/", func(c *fiber.Ctx) error {
		total, err := imageCounter.Load(c.Context())
		if err != nil {
			total = 0
		}
		return c.JSON(fiber.Map{
			"timestamp":       time.Now().Unix(),
			"color_schemes":   cfg.Wallpaper.ColorSchemes,
			"images_produced": total,
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"freesound": fsClient.IsConfigured(),
				"render":    cfg.Render.ServiceURL != "",
				"r2":        r2Client != nil,
				"redis":     redisClient != nil,
			},
		})
	})

	// Stats and generated images
	app.Get("/api/stats", statsHandler.Stats)
	app.Get("/img/:filename", imageHandler.Serve)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws", rateLimiter.WallpaperLimit(cfg.RateLimit.WallpapersPerMin), websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c, wallpaperHandler)
	}))

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := cfg.Server.Host + ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(cfg *config.Config, variantWorker *worker.VariantWorker) {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				worker.QueueRender: 10,
			},
			LogLevel: asynqLogLevel,
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(worker.TaskTypeRenderVariant, variantWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
