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

	"github.com/joho/godotenv"

	"ytdl-api/internal/api"
	"ytdl-api/internal/cache"
	"ytdl-api/internal/config"
	"ytdl-api/internal/downloader"
	"ytdl-api/internal/jobs"
	"ytdl-api/internal/metrics"
	"ytdl-api/internal/models"
	"ytdl-api/internal/notify"
	"ytdl-api/internal/server"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Filesystem and external tools
	if err := server.PrepareFilesystem(cfg); err != nil {
		logger.Fatalf(">>> ❌ Error preparing filesystem: %v", err)
	}
	tools, err := server.CheckTools(cfg)
	for _, t := range tools {
		if t.Path != "" {
			logger.Printf(">>> 🔧 %s: %s", t.Name, t.Path)
		} else if !t.Required {
			logger.Printf(">>> ⚠️ %s not found, some formats will be unavailable", t.Name)
		}
	}
	if err != nil {
		logger.Printf(">>> ⚠️ %v", err)
	}

	// 2. Job store
	var store jobs.Store = jobs.NewMemoryStore()
	var pg *jobs.PostgresStore
	if cfg.DatabaseURL != "" {
		pg, err = jobs.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf(">>> ❌ Error connecting to database: %v", err)
		}
		store = pg
		logger.Println(">>> 🗄️ Job store: postgres")
	} else {
		logger.Println(">>> 🗄️ Job store: memory")
	}

	// 3. Extraction engine
	var engine downloader.Engine
	switch cfg.Engine {
	case config.EngineNative:
		engine = downloader.NewNative(http.DefaultClient)
	default:
		engine = downloader.NewYtDlp(cfg.YtDlpPath)
	}

	// 4. Events
	var publisher notify.Publisher = notify.Noop{}
	if cfg.AMQPURL != "" {
		p, err := notify.DialAMQP(cfg.AMQPURL, cfg.AMQPQueue)
		if err != nil {
			logger.Printf(">>> ⚠️ AMQP unavailable, job events disabled: %v", err)
		} else {
			publisher = p
			logger.Printf(">>> 📣 Publishing job events to %q", cfg.AMQPQueue)
		}
	}

	// 5. Services
	mt := metrics.New()
	manager := jobs.NewManager(cfg, store, engine,
		jobs.WithLogger(logger),
		jobs.WithNotifier(publisher),
		jobs.WithMetrics(mt),
	)
	jobs.StartJanitor(ctx, manager, cfg.CleanupInterval, cfg.JobRetention, cfg.TempDir)

	infoCache := cache.NewLRU[*models.RawInfo](cfg.CacheSize, cfg.CacheTTL)
	handler := api.NewHandler(cfg, manager, engine, infoCache, mt, logger)
	router := api.NewRouter(handler)

	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Println(">>> 🏭 YTDL API Started")
	logger.Printf(">>> ⚡ Port: %s | Engine: %s | Workers: %d", cfg.Port, cfg.Engine, cfg.MaxConcurrentJobs)

	// 6. Start
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf(">>> ❌ Server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Println(">>> 🛑 Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf(">>> ⚠️ HTTP shutdown: %v", err)
	}
	if err := manager.Close(shutdownCtx); err != nil {
		logger.Printf(">>> ⚠️ Job manager shutdown: %v", err)
	}
	if err := publisher.Close(); err != nil {
		logger.Printf(">>> ⚠️ AMQP close: %v", err)
	}
	if pg != nil {
		if err := pg.Close(); err != nil {
			logger.Printf(">>> ⚠️ Database close: %v", err)
		}
	}
	logger.Println(">>> 👋 Bye")
}
