package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ktm_scrooper/config"
	"ktm_scrooper/httputil"
	"ktm_scrooper/logging"
	"ktm_scrooper/models"
	"ktm_scrooper/scheduler"
	"ktm_scrooper/scraper"
	"ktm_scrooper/services"
	"ktm_scrooper/storage"
	"ktm_scrooper/workers"
)

var (
	scrapeNow = flag.Bool("scrape", false, "Run scrape once and exit")
	siteID    = flag.String("site", "", "Limit -scrape to one site")
	trace     = flag.Bool("trace", false, "Record a Playwright trace for this run")
	headed    = flag.Bool("headed", false, "Run the browser with a visible window")
	slowMo    = flag.Int("slowmo", -1, "Slow down browser actions by this many ms")
	maxPerTab = flag.Int("max-per-tab", -1, "Cap cards captured per tab (0 = no cap)")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logFile, err := logging.Setup("daemon.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting ktm_scrooper...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *trace {
		cfg.Scraper.Trace = true
	}
	if *headed {
		cfg.Scraper.Headless = false
	}
	if *slowMo >= 0 {
		cfg.Scraper.SlowMoMS = *slowMo
	}
	if *maxPerTab >= 0 {
		cfg.Scraper.MaxPerTab = *maxPerTab
	}

	log.Printf("Loaded %d site configs", len(cfg.Sites))
	for id, site := range cfg.Sites {
		log.Printf("  - %s (%s)", site.Name, id)
	}

	clients := httputil.NewClients(&cfg.Proxy)

	ctx := context.Background()

	// SQLite holds the operational state: runs, captures, commands, artifacts
	sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer sqliteStore.Close()
	log.Printf("SQLite database: %s", cfg.DBPath)

	orchestrator := scraper.NewOrchestrator(cfg, sqliteStore)

	// Postgres archive is optional; without it the daemon still scrapes and
	// keeps its local records
	var pgStore *storage.PostgresStore
	if cfg.Postgres.DBURL != "" {
		pgStore, err = storage.NewPostgresStore(ctx, cfg.Postgres.DBURL)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		defer pgStore.Close()
		log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.Postgres.DBURL))

		planService := services.NewPlanService(pgStore)
		orchestrator.SetServices(pgStore, planService)
	} else {
		log.Println("DATABASE_URL not set, running without the Postgres archive")
	}

	if *scrapeNow {
		log.Println("Running scrape...")
		if *siteID != "" {
			err = orchestrator.RunSite(ctx, *siteID)
		} else {
			err = orchestrator.RunAll(ctx)
		}
		if err != nil {
			log.Fatalf("Scrape failed: %v", err)
		}
		log.Println("Scrape complete!")
		return
	}

	// Daemon mode
	sched := scheduler.New(cfg, orchestrator, sqliteStore)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var uploader workers.Uploader
	if cfg.S3.Bucket != "" {
		s3up, err := storage.NewS3Uploader(ctx, cfg.S3)
		if err != nil {
			log.Fatalf("Failed to set up S3 uploader: %v", err)
		}
		uploader = s3up
		log.Printf("S3 uploads enabled: bucket %s", cfg.S3.Bucket)
	} else {
		uploader = workers.NewNoOpUploader()
		log.Println("S3_BUCKET not set, artifacts stay local")
	}

	workerLog := func(level models.LogLevel, source, message string) {
		sqliteStore.Log(nil, level, message, source)
	}

	artifactWorker := workers.NewArtifactWorker(sqliteStore, uploader)
	artifactWorker.SetLogger(workerLog)
	go artifactWorker.Run(ctx, 20, 2*time.Minute)
	log.Println("Artifact worker started")

	healthcheckWorker := workers.NewHealthcheckWorker(cfg, sqliteStore, clients.Scraping)
	healthcheckWorker.SetLogger(workerLog)
	go healthcheckWorker.Run(ctx, 30*time.Minute)
	log.Println("Healthcheck worker started")

	sched.SetWorkers(artifactWorker, healthcheckWorker)

	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	sched.Stop()
	log.Println("Goodbye!")
}

// maskConnectionString masks password in connection string for logging
func maskConnectionString(connStr string) string {
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
