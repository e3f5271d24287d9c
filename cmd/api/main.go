package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bobarin/factshorts/internal/api"
	"github.com/bobarin/factshorts/internal/config"
	"github.com/bobarin/factshorts/internal/db"
	"github.com/bobarin/factshorts/internal/queue"
	"github.com/bobarin/factshorts/internal/scheduler"
	"github.com/bobarin/factshorts/internal/services"
	"github.com/bobarin/factshorts/internal/storage"
	"github.com/bobarin/factshorts/internal/worker"
	"golang.org/x/sync/errgroup"
)

func main() {
	log.Println("Starting FactShorts API...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Connect to database
	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	if err := database.Migrate(context.Background()); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Connected to database")

	// Connect to Redis queue
	q, err := queue.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()
	log.Println("Connected to Redis queue")

	sched := scheduler.New(cfg.QueueFile)

	// Create API handler
	handler := api.NewHandler(database, q, sched, cfg.PurgeAfter)
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	})

	if cfg.BackendAPIKey != "" {
		log.Println("API key authentication enabled")
	} else {
		log.Println("WARNING: No BACKEND_API_KEY set, API is unprotected (dev mode)")
	}

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.WorkerEnabled {
		log.Println("Worker enabled, starting background processing...")

		statuses := services.CheckBinaries(services.MediaRequirements(cfg.FFmpegPath, cfg.FFprobePath, cfg.EdgeTTSPath))
		if err := services.MissingRequired(statuses); err != nil {
			log.Fatalf("Preflight failed: %v", err)
		}

		pipeline, err := worker.BuildOrchestrator(cfg, sched)
		if err != nil {
			log.Fatalf("Failed to build pipeline: %v", err)
		}

		// Archive to Supabase only when configured
		var stor *storage.Storage
		if cfg.SupabaseURL != "" {
			stor = storage.New(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket)
			log.Printf("Archiving finished videos to bucket %s", cfg.SupabaseStorageBucket)
		}

		w := worker.New(database, q, stor, pipeline)
		g.Go(func() error {
			return w.Start(gctx, cfg.MaxConcurrentJobs)
		})

		// Publish loop runs only with usable YouTube credentials
		if cfg.YouTubeClientID != "" {
			yt, err := worker.BuildPublisher(cfg)
			if err != nil {
				log.Fatalf("Publishing configured but unusable: %v", err)
			}
			pub := worker.NewPublisher(sched, yt)
			pub.OnPublish(w.RecordPublished)
			g.Go(func() error {
				return pub.Run(gctx, cfg.PublishPollInterval, cfg.PurgeAfter)
			})
		} else {
			log.Println("YOUTUBE_CLIENT_ID not set, queued videos will not be published")
		}
	}

	g.Go(func() error {
		log.Printf("API server listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("Server exited with error: %v", err)
		os.Exit(1)
	}

	log.Println("Server exited")
}
