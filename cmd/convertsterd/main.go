package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blinkenlights/convertster/internal/api"
	"github.com/blinkenlights/convertster/internal/config"
	"github.com/blinkenlights/convertster/internal/converter"
	"github.com/blinkenlights/convertster/internal/db"
	"github.com/blinkenlights/convertster/internal/events"
	"github.com/blinkenlights/convertster/internal/progress"
	"github.com/blinkenlights/convertster/internal/watcher"
	"github.com/blinkenlights/convertster/internal/worker"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	closeLog, err := cfg.SetupLogging()
	if err != nil {
		log.Fatalf("failed to set up logging: %v", err)
	}
	defer closeLog()

	log.Println("Starting convertster daemon...")
	log.Printf("Configuration loaded:")
	log.Printf("  Watch Dirs: %v (target %s)", cfg.WatchDirs, cfg.WatchTarget)
	log.Printf("  DB Path: %s", cfg.DBPath)
	log.Printf("  HTTP Address: %s", cfg.HTTPAddr())
	log.Printf("  Workers: %d", cfg.Workers)
	log.Printf("  JPEG Quality: %d, PNG Compression: %d", cfg.JPEGQuality, cfg.PNGCompression)
	log.Printf("  Preserve Metadata: %t", cfg.PreserveMetadata)

	database, err := db.Init(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to init db: %v", err)
	}
	defer database.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Outcome events, optional
	var publisher worker.EventPublisher
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		log.Printf("Connected to Redis at %s", cfg.RedisAddr)
		publisher = events.NewPublisher(rdb, cfg.RedisPrefix)
	}

	conv := worker.NewBatchConverter(converter.NewStdCodec(), worker.OptionsFromConfig(cfg))
	tracker := progress.NewTracker()
	disp := worker.NewDispatcher(conv, tracker, database, publisher)

	go func() {
		t := time.NewTicker(10 * time.Minute)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				tracker.CleanOld(time.Hour)
			}
		}
	}()

	// Watch mode
	var queue *worker.Queue
	var w *watcher.Watcher
	if len(cfg.WatchDirs) > 0 {
		if _, err := converter.ParseFormat(cfg.WatchTarget); err != nil {
			log.Fatalf("invalid WATCH_TARGET: %v", err)
		}
		queue = worker.NewQueue(conv.Workers())
		w, err = watcher.NewRecursiveWatcher(cfg, database, queue)
		if err != nil {
			log.Fatalf("failed to create watcher: %v", err)
		}
		defer w.Close()
		go func() {
			if err := w.Start(ctx); err != nil {
				log.Printf("watcher error: %v", err)
			}
		}()
		disp.StartConsumer(ctx, queue, cfg.WatchTarget, cfg.WatchIdle)

		// Initial full scan
		go func() {
			time.Sleep(500 * time.Millisecond)
			if _, err := w.ScanAll(ctx); err != nil {
				log.Printf("initial scan error: %v", err)
			}
		}()
	}

	server := api.NewServer(database, disp, queue, w, cfg.WatchDirs)
	httpSrv := &http.Server{Addr: cfg.HTTPAddr(), Handler: server.Router}
	go func() {
		log.Printf("http server listening on %s", cfg.HTTPAddr())
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server failed: %v", err)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigCh
	log.Printf("received signal %s, shutting down...", s)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer shutdownCancel()
	if w != nil {
		w.Pause()
	}
	if queue != nil {
		queue.StopAccepting()
	}
	_ = httpSrv.Shutdown(shutdownCtx)

	// Running batches finish with their remaining files skipped.
	disp.CancelAll()
	cancel()
	done := make(chan struct{})
	go func() {
		disp.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Printf("timed out waiting for batches")
	}
	log.Printf("shutdown complete")
}
