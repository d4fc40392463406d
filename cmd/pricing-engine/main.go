package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hostfolio/pricing-engine/internal/api"
	"github.com/hostfolio/pricing-engine/internal/cache"
	"github.com/hostfolio/pricing-engine/internal/config"
	"github.com/hostfolio/pricing-engine/internal/database"
	"github.com/hostfolio/pricing-engine/internal/kafka"
	"github.com/hostfolio/pricing-engine/internal/llm"
	"github.com/hostfolio/pricing-engine/internal/models"
	"github.com/hostfolio/pricing-engine/internal/pipeline"
	"github.com/hostfolio/pricing-engine/internal/pms"
	"github.com/hostfolio/pricing-engine/internal/predict"
	"github.com/hostfolio/pricing-engine/internal/scheduler"
)

func main() {
	userID := flag.Int64("user", 0, "run the pipeline for one user's properties")
	teamID := flag.Int64("team", 0, "run the pipeline for one team's properties")
	startDate := flag.String("start-date", "", "window start (YYYY-MM-DD, default today)")
	endDate := flag.String("end-date", "", "window end (YYYY-MM-DD, default start + horizon)")
	serve := flag.Bool("serve", false, "run the API server and scheduler instead of a one-shot pipeline")
	addr := flag.String("addr", "", "listen address for -serve (overrides SERVER_HOST/SERVER_PORT)")
	flag.Parse()

	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate("db/migrations"); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations applied")

	redisCache, err := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer redisCache.Close()

	var events pipeline.EventSink
	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		events = producer
		log.Printf("Kafka producer connected to %v, topic %s", cfg.Kafka.Brokers, cfg.Kafka.Topic)
	}

	registry := pms.NewRegistry()
	registry.Register(pms.NewNoopAdapter())
	registry.Register(pms.NewMockAdapter())

	orchestrator := pipeline.NewOrchestrator(pipeline.Options{
		Store:          db,
		Models:         loadModels(cfg),
		Publisher:      pms.NewPublisher(registry),
		Events:         events,
		ForecastCache:  redisCache,
		LookbackMonths: cfg.Pipeline.LookbackMonths,
	})

	if *serve {
		runServer(cfg, *addr, db, redisCache, orchestrator)
		return
	}

	runOnce(cfg, orchestrator, *userID, *teamID, *startDate, *endDate)
}

// loadModels loads whichever pre-trained artefacts exist and always includes
// the LLM model. A missing artefact degrades the ensemble, never the run.
func loadModels(cfg *config.Config) []predict.PriceModel {
	var priceModels []predict.PriceModel

	gbmPath := filepath.Join(cfg.Pipeline.ArtefactDir, "gbm.json")
	if gbm, err := predict.LoadGBM(gbmPath); err != nil {
		log.Printf("GBM artefact unavailable (%v), continuing without it", err)
	} else {
		priceModels = append(priceModels, gbm)
	}

	nnPath := filepath.Join(cfg.Pipeline.ArtefactDir, "nn.json")
	if nn, err := predict.LoadNN(nnPath); err != nil {
		log.Printf("NN artefact unavailable (%v), continuing without it", err)
	} else {
		priceModels = append(priceModels, nn)
	}

	if cfg.LLM.APIKey == "" {
		log.Println("OPENAI_API_KEY not set, continuing without the LLM model")
	} else {
		client := llm.NewClient(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL,
			time.Duration(cfg.LLM.TimeoutSeconds)*time.Second, cfg.LLM.MaxRetries)
		priceModels = append(priceModels, predict.NewLLMModel(client))
	}

	if len(priceModels) == 0 {
		log.Fatal("No price models available: need at least one artefact or an API key")
	}
	return priceModels
}

// runOnce executes a single pipeline run and exits non-zero when the run
// recorded any errors.
func runOnce(cfg *config.Config, orchestrator *pipeline.Orchestrator, userID, teamID int64, startDate, endDate string) {
	if (userID == 0) == (teamID == 0) {
		log.Fatal("Exactly one of -user and -team is required")
	}

	start := models.DateOnly(time.Now())
	if startDate != "" {
		parsed, err := time.Parse("2006-01-02", startDate)
		if err != nil {
			log.Fatalf("Invalid -start-date: %v", err)
		}
		start = parsed
	}
	end := start.AddDate(0, 0, cfg.Pipeline.HorizonDays)
	if endDate != "" {
		parsed, err := time.Parse("2006-01-02", endDate)
		if err != nil {
			log.Fatalf("Invalid -end-date: %v", err)
		}
		end = parsed
	}
	if end.Before(start) {
		log.Fatal("-end-date must not precede -start-date")
	}

	req := pipeline.RunRequest{
		RunType: models.RunTypeCLI,
		Start:   start,
		End:     end,
	}
	if userID != 0 {
		req.UserID = &userID
	} else {
		req.TeamID = &teamID
	}

	run, err := orchestrator.Run(context.Background(), req)
	if err != nil {
		log.Fatalf("Pipeline run failed: %v", err)
	}
	if run.ErrorsCount > 0 {
		log.Printf("Pipeline run %s finished with %d errors", run.ID, run.ErrorsCount)
		os.Exit(1)
	}
	log.Printf("Pipeline run %s finished cleanly", run.ID)
}

// schedulerRunner adapts the orchestrator to the scheduler's per-user entry
// point using the configured forward horizon.
type schedulerRunner struct {
	orchestrator *pipeline.Orchestrator
	horizonDays  int
}

func (r *schedulerRunner) RunForUser(ctx context.Context, userID int64) error {
	start := models.DateOnly(time.Now())
	run, err := r.orchestrator.Run(ctx, pipeline.RunRequest{
		RunType: models.RunTypeScheduled,
		UserID:  &userID,
		Start:   start,
		End:     start.AddDate(0, 0, r.horizonDays),
	})
	if err != nil {
		return err
	}
	if run.ErrorsCount > 0 {
		log.Printf("Scheduled run %s for user %d finished with %d errors", run.ID, userID, run.ErrorsCount)
	}
	return nil
}

func runServer(cfg *config.Config, addr string, db *database.DB, redisCache *cache.Cache, orchestrator *pipeline.Orchestrator) {
	if cfg.Scheduler.Enabled {
		sched := scheduler.New(db, redisCache, &schedulerRunner{
			orchestrator: orchestrator,
			horizonDays:  cfg.Pipeline.HorizonDays,
		}, nil)
		if err := sched.Start(context.Background()); err != nil {
			log.Fatalf("Failed to start scheduler: %v", err)
		}
		defer sched.Stop()
	}

	handler := api.NewHandler(db, orchestrator, cfg.Pipeline.HorizonDays)
	router := api.SetupRoutes(handler)

	if addr == "" {
		addr = fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	}
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("API server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
