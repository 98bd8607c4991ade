package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"frostguard/internal/audit"
	"frostguard/internal/auth"
	classification "frostguard/internal/classification/domain"
	downlinkapp "frostguard/internal/downlink/application"
	downlink "frostguard/internal/downlink/domain"
	downlinkrepo "frostguard/internal/downlink/infrastructure/postgres"
	"frostguard/internal/downlink/infrastructure/ttn"
	downlinkhttp "frostguard/internal/downlink/interfaces/http"
	ingestapp "frostguard/internal/ingest/application"
	ingestrepo "frostguard/internal/ingest/infrastructure/postgres"
	ttnwebhook "frostguard/internal/ingest/interfaces/ttn"
	"frostguard/internal/observability/metrics"
	pipelineapp "frostguard/internal/pipeline/application"
	pipelinerepo "frostguard/internal/pipeline/infrastructure/postgres"
	pipelinehttp "frostguard/internal/pipeline/interfaces/http"
	sweeperapp "frostguard/internal/sweeper/application"
	sweeperhttp "frostguard/internal/sweeper/interfaces/http"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)

	registry, err := classification.DefaultRegistry()
	if err != nil {
		logger.Fatalf("schema registry error: %v", err)
	}
	catalog, err := downlink.DefaultCatalog()
	if err != nil {
		logger.Fatalf("command catalog error: %v", err)
	}

	var transport downlinkapp.Transport = ttn.DisabledTransport{}
	ttnEnabled := cfg.TTNAppID != "" && cfg.TTNAPIKey != ""
	if ttnEnabled {
		client, err := ttn.NewClient(cfg.TTNBaseURL, cfg.TTNAppID, cfg.TTNAPIKey)
		if err != nil {
			logger.Fatalf("ttn client error: %v", err)
		}
		transport = client
	} else {
		logger.Printf("event=ttn_disabled reason=missing_credentials")
	}

	changeRepo := downlinkrepo.NewChangeRepository(db)
	downlinkService, err := downlinkapp.NewService(
		changeRepo,
		downlinkrepo.NewSensorConfigRepository(db),
		downlinkrepo.NewDeviceDirectory(db),
		transport,
		catalog,
		downlink.SystemClock{},
		logger,
	)
	if err != nil {
		logger.Fatalf("downlink service error: %v", err)
	}
	downlinkHandler, err := downlinkhttp.NewHandler(downlinkService, auditRepo, logger)
	if err != nil {
		logger.Fatalf("downlink handler error: %v", err)
	}

	ingestService, err := ingestapp.NewService(ingestrepo.NewRepository(db), registry, downlinkService, logger)
	if err != nil {
		logger.Fatalf("ingest service error: %v", err)
	}
	webhookHandler, err := ttnwebhook.NewWebhookHandler(ingestService, auditRepo, logger)
	if err != nil {
		logger.Fatalf("webhook handler error: %v", err)
	}

	pipelineCfg, err := pipelineapp.LoadConfig()
	if err != nil {
		logger.Fatalf("pipeline config error: %v", err)
	}
	pipelineService, err := pipelineapp.NewService(
		pipelinerepo.NewSnapshotReader(db, ttnEnabled),
		pipelineCfg,
		metrics.PipelineCollector{},
		nil,
		logger,
	)
	if err != nil {
		logger.Fatalf("pipeline service error: %v", err)
	}
	pipelineHandler, err := pipelinehttp.NewHandler(pipelineService, logger)
	if err != nil {
		logger.Fatalf("pipeline handler error: %v", err)
	}

	sweeperCfg, err := sweeperapp.LoadConfig()
	if err != nil {
		logger.Fatalf("sweeper config error: %v", err)
	}
	sweeper, err := sweeperapp.NewSweeper(changeRepo, sweeperCfg, downlink.SystemClock{}, logger)
	if err != nil {
		logger.Fatalf("sweeper error: %v", err)
	}
	sweeperHandler, err := sweeperhttp.NewHandler(sweeper, auditRepo, logger)
	if err != nil {
		logger.Fatalf("sweeper handler error: %v", err)
	}
	if sweeperCfg.ScheduleEnabled() {
		go sweeperapp.NewScheduler(sweeper, sweeperCfg.Schedule.Interval, logger).Start(ctx)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, []string{"/ingest/"})
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)
	webhookAuth := auth.NewWebhookAuthMiddleware([]byte(cfg.WebhookSecret))

	mux := http.NewServeMux()
	mux.Handle("/ingest/ttn/uplink", webhookAuth.Wrap(webhookHandler))
	mux.Handle("/api/v1/downlinks", downlinkHandler)
	mux.HandleFunc("/api/v1/downlinks/commands", downlinkHandler.Commands)
	mux.Handle("/api/v1/sweeper/change-timeouts", sweeperHandler)
	mux.Handle("/api/v1/pipeline-health", pipelineHandler)
	mux.Handle("/api/v1/pipeline-health/", pipelineHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           loggingMiddleware(authMiddleware.Wrap(mux), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Printf("http shutdown error: %v", err)
		}
	}()

	logger.Printf("http listening on %s", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal(err)
	}
}

type config struct {
	DatabaseURL   string
	HTTPAddr      string
	JWTSecret     string
	WebhookSecret string
	TTNBaseURL    string
	TTNAppID      string
	TTNAPIKey     string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:   getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:      getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:     getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		WebhookSecret: getenvDefault("INGEST_WEBHOOK_SECRET", ""),
		TTNBaseURL:    getenvDefault("TTN_BASE_URL", "https://eu1.cloud.thethings.network"),
		TTNAppID:      getenvDefault("TTN_APP_ID", ""),
		TTNAPIKey:     getenvDefault("TTN_API_KEY", ""),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	if cfg.WebhookSecret == "" {
		log.Fatal("INGEST_WEBHOOK_SECRET is required")
	}
	if port := getenvIntDefault("HTTP_PORT", 0); port > 0 && os.Getenv("HTTP_ADDR") == "" {
		cfg.HTTPAddr = ":" + strconv.Itoa(port)
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
