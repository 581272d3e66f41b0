package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/ILLUVRSE/abm-engine/internal/analytics"
	"github.com/ILLUVRSE/abm-engine/internal/auth"
	"github.com/ILLUVRSE/abm-engine/internal/config"
	"github.com/ILLUVRSE/abm-engine/internal/content"
	"github.com/ILLUVRSE/abm-engine/internal/crm"
	"github.com/ILLUVRSE/abm-engine/internal/httpserver"
	"github.com/ILLUVRSE/abm-engine/internal/models"
	"github.com/ILLUVRSE/abm-engine/internal/nurture"
	"github.com/ILLUVRSE/abm-engine/internal/service"
	"github.com/ILLUVRSE/abm-engine/internal/store"
	"github.com/ILLUVRSE/abm-engine/internal/stream"
)

func main() {
	runSweeper := flag.Bool("run-sweeper", true, "run the periodic nurture sweep loop")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, closeStore := openStore(cfg)
	defer closeStore()

	catalog := loadCatalog(ctx, cfg)
	contentEngine := content.New(catalog, content.DefaultTables())
	analyticsEngine := analytics.New(analytics.DefaultWeights())

	crmClient, err := crm.NewClient(crm.ClientConfig{
		BaseURL:         cfg.HubSpotBaseURL,
		Token:           cfg.HubSpotToken,
		MinRequestDelay: cfg.HubSpotMinDelay,
		Timeout:         cfg.HubSpotTimeout,
		MaxRetries:      cfg.HubSpotMaxRetries,
	})
	if err != nil {
		log.Fatalf("crm client init: %v", err)
	}

	nurtureEngine := nurture.New(nurture.BuiltinSequences(), st, crmClient, contentEngine)

	var publisher service.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := stream.NewProducer(stream.ProducerConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		})
		if err != nil {
			log.Fatalf("stream producer init: %v", err)
		}
		defer producer.Close()
		publisher = producer
	}

	svc := service.New(st, contentEngine, analyticsEngine, nurtureEngine, publisher)
	verifier := auth.NewVerifier(cfg.AuthSecret, cfg.AllowDebugToken, cfg.DebugToken)
	server := httpserver.New(svc, verifier)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.Router(),
	}

	if *runSweeper {
		go runSweepLoop(ctx, svc, cfg.SweepInterval)
	}

	go func() {
		log.Printf("ABM engine listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	waitForShutdown(cancel, httpServer)
}

// openStore prefers Postgres when a database URL is configured and falls
// back to the in-memory store for local development.
func openStore(cfg config.Config) (store.Store, func()) {
	if cfg.DatabaseURL == "" {
		log.Printf("[startup] no database configured, using in-memory store")
		return store.NewMemoryStore(), func() {}
	}
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.Ping(); err != nil {
		log.Fatalf("db ping: %v", err)
	}
	return store.NewPGStore(db), func() { db.Close() }
}

// loadCatalog tries the local file first, then S3, then falls back to the
// built-in sample so the service always starts with something to
// recommend.
func loadCatalog(ctx context.Context, cfg config.Config) []models.ContentItem {
	if cfg.CatalogFile != "" {
		data, err := os.ReadFile(cfg.CatalogFile)
		if err != nil {
			log.Fatalf("read catalog file: %v", err)
		}
		catalog, err := content.ParseCatalog(data)
		if err != nil {
			log.Fatalf("parse catalog file: %v", err)
		}
		log.Printf("[startup] loaded %d catalog items from %s", len(catalog), cfg.CatalogFile)
		return catalog
	}
	if cfg.CatalogBucket != "" {
		loader, err := content.NewS3CatalogLoader(ctx, cfg.CatalogBucket, cfg.CatalogKey)
		if err != nil {
			log.Fatalf("s3 catalog loader init: %v", err)
		}
		catalog, err := loader.Load(ctx)
		if err != nil {
			log.Fatalf("load catalog from s3: %v", err)
		}
		log.Printf("[startup] loaded %d catalog items from s3://%s/%s", len(catalog), cfg.CatalogBucket, cfg.CatalogKey)
		return catalog
	}
	log.Printf("[startup] no catalog source configured, using built-in sample")
	return content.SampleCatalog(time.Now())
}

func runSweepLoop(ctx context.Context, svc *service.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			results, err := svc.Sweep(ctx)
			if err != nil {
				log.Printf("[sweeper] sweep failed: %v", err)
				continue
			}
			if len(results) > 0 {
				log.Printf("[sweeper] processed %d due enrollments", len(results))
			}
		}
	}
}

func waitForShutdown(cancel context.CancelFunc, srv *http.Server) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	cancel()
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
