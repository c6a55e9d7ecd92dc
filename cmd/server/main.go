package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	openai "github.com/sashabaranov/go-openai"

	"adreel/internal/compose"
	"adreel/internal/config"
	"adreel/internal/ffmpeg"
	"adreel/internal/handlers"
	"adreel/internal/media"
	"adreel/internal/middleware"
	"adreel/internal/pipeline"
	"adreel/internal/registry"
	"adreel/internal/script"
	"adreel/internal/storage"
	"adreel/internal/voice"
	"adreel/internal/wallet"
	"adreel/internal/worker"
)

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := config.NewLogger()

	store, err := storage.NewSupabase(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize storage")
	}

	ai := openai.NewClient(cfg.OpenAIKey)
	engine := ffmpeg.New(logger)

	jobs := registry.New(cfg.Jobs.TTL(), time.Now)
	pipe := &pipeline.Pipeline{
		Log: logger,
		Cfg: cfg,
		Script: &script.Segmenter{
			Client: ai,
			Log:    logger,
			Model:  openai.GPT4oMini,
		},
		Voice: &voice.Synthesizer{
			Client:     ai,
			Audio:      engine,
			Log:        logger,
			MinSeconds: cfg.Render.MinSegmentSeconds,
		},
		Planner: &media.Planner{
			Stock: media.NewPexelsClient(cfg.PexelsKey, logger),
			Fetch: store,
			Log:   logger,
		},
		Composer: &compose.Composer{
			Engine: engine,
			Log:    logger,
			Render: cfg.Render,
		},
		Store:    store,
		Ledger:   wallet.New(cfg, logger),
		Registry: jobs,
	}

	dispatcher := worker.NewDispatcher(cfg.Jobs.Workers, cfg.Jobs.QueueSize, logger)
	dispatcher.Run()

	h := &handlers.ApplicationHandler{
		Log:        logger,
		Pipeline:   pipe,
		Registry:   jobs,
		Dispatcher: dispatcher,
	}

	app := fiber.New(fiber.Config{
		// Renders block the request until the artifact is uploaded.
		ReadTimeout:  time.Minute,
		WriteTimeout: 15 * time.Minute,
	})
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))
	app.Use(middleware.RequestLogger(logger))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":  "ok",
			"message": "render service is healthy",
		})
	})

	apiV1 := app.Group("/api/v1")
	apiV1.Post("/videos", h.RenderVideo)
	apiV1.Get("/videos/:jobId", h.GetJob)
	apiV1.Delete("/videos/:jobId", h.DeleteJob)

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("starting render service")
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			logger.WithError(err).Fatal("server stopped")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	_ = app.Shutdown()
	dispatcher.Stop()
}
