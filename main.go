package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ncr_ingest/config"
	"ncr_ingest/httputil"
	"ncr_ingest/ingest"
	"ncr_ingest/logging"
	"ncr_ingest/scheduler"
	"ncr_ingest/scraper"
	"ncr_ingest/storage"
)

var (
	ingestNow = flag.Bool("ingest", false, "Run one ingestion pass and exit")
	cityFlag  = flag.String("city", "", "Restrict the run to one city slug")
	maxPages  = flag.Int("max-pages", 0, "Override per-city max pages")
	startPage = flag.Int("start-page", 0, "Override the resume page for the first city")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogPath)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting ncr_ingest...")
	log.Printf("Loaded %d city configs", len(cfg.Cities))
	for _, slug := range cfg.CityOrder {
		city := cfg.Cities[slug]
		log.Printf("  - %s (%s): target %d, max %d pages", city.Name, slug, city.TargetCount, city.MaxPages)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// SQLite always opens: it carries the operational tables (runs, logs,
	// city stats, commands) even when records go to another backend.
	sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer sqliteStore.Close()
	log.Printf("SQLite database: %s", cfg.DBPath)

	var records ingest.RecordStore
	switch cfg.Store.Backend {
	case "postgres":
		pgStore, err := storage.NewPostgresStore(ctx, cfg.Store.PgDSN)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		defer pgStore.Close()
		log.Println("Record store: Postgres")
		records = pgStore
	case "csv":
		csvStore, err := storage.NewCSVStore(cfg.Store.CSVPath)
		if err != nil {
			log.Fatalf("Failed to open CSV output: %v", err)
		}
		defer csvStore.Close()
		log.Printf("Record store: CSV (%s)", cfg.Store.CSVPath)
		records = csvStore
	default:
		log.Println("Record store: SQLite")
		records = sqliteStore
	}

	clients := httputil.NewClients(cfg.Fetcher.ProxyURL)
	fetcher := scraper.NewFetcher(&cfg.Fetcher, clients)
	checkpoints := storage.NewFileCheckpointStore(cfg.Ingest.CheckpointPath)

	controller := ingest.NewController(cfg, fetcher, records, checkpoints, ingest.NewStdinPrompter(), sqliteStore)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Interrupt received, shutting down...")
		cancel()
	}()

	if *ingestNow {
		opts := ingest.Options{CityFilter: *cityFlag, MaxPages: *maxPages, StartPage: *startPage}
		err := controller.Run(ctx, opts)
		log.Printf("Run summary:\n%s", controller.Summary())
		if err != nil {
			log.Fatalf("Ingestion failed: %v", err)
		}
		return
	}

	// Daemon mode
	sched := scheduler.New(cfg, controller, sqliteStore)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")
	<-ctx.Done()

	sched.Stop()
	controller.AwaitIdle() // let an in-flight run finish its shutdown flush
	log.Printf("Run summary:\n%s", controller.Summary())
	log.Println("Goodbye!")
}
