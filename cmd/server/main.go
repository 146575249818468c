package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/defeso/backend/internal/api"
	"github.com/defeso/backend/internal/cache"
	"github.com/defeso/backend/internal/concurrency"
	"github.com/defeso/backend/internal/config"
	"github.com/defeso/backend/internal/database"
	"github.com/defeso/backend/internal/datajud"
	"github.com/defeso/backend/internal/genai"
	"github.com/defeso/backend/internal/prompts"
	"github.com/defeso/backend/internal/scheduler"
	"github.com/defeso/backend/internal/storage"
	"github.com/defeso/backend/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	concurrency.ConfigureIASemaphore(cfg.Concurrency.IAMaxInFlight)

	// Database
	store, err := database.Open(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("database error: %v", err)
	}
	defer store.Close()

	solicitations := database.NewSolicitationRepository(store)
	documents := database.NewDocumentRepository(store)
	extractions := database.NewExtractionRepository(store)
	eligibility := database.NewEligibilityRepository(store)
	legalCases := database.NewLegalCaseRepository(store)
	locks := database.NewSchedulerLockRepository(store)

	// Object storage
	objectStore, err := storage.NewStore(ctx, cfg.AWS)
	if err != nil {
		log.Fatalf("object storage error: %v", err)
	}

	// GenAI gateway
	registry, err := prompts.Load(cfg.GenAI.PromptsPath)
	if err != nil {
		log.Fatalf("prompt registry error: %v", err)
	}
	rules, err := prompts.LoadRules(cfg.GenAI.RulesPath)
	if err != nil {
		log.Fatalf("eligibility rules error: %v", err)
	}
	genaiClient, err := genai.NewClient(cfg.GenAI.APIKey, cfg.GenAI.BaseURL)
	if err != nil {
		log.Fatalf("genai client error: %v", err)
	}
	gateway := genai.NewGateway(genaiClient, registry, cfg.GenAI, cfg.Retry)

	// Judicial API and its cache. Redis is optional.
	finder := datajud.NewGateway(cfg.DataJud.APIKey, cfg.DataJud.BaseURL)
	caseCache, err := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, 6*time.Hour)
	if err != nil {
		log.Printf("redis unavailable, running without legal-case cache: %v", err)
		caseCache = nil
	}
	defer caseCache.Close()

	// Pipeline stages
	classify := usecase.NewClassifyBatch(solicitations, documents, objectStore, gateway,
		storage.BuildKey, cfg.Concurrency.MaxClassifyWorkers)
	extract := usecase.NewExtractDocuments(solicitations, documents, extractions,
		objectStore, gateway, cfg.Concurrency.MaxExtractWorkers)
	evaluate := usecase.NewEvaluateEligibility(solicitations, documents, extractions,
		eligibility, gateway, rules)
	lookup := usecase.NewLookupLegalCase(legalCases, finder, cacheOrNil(caseCache))
	queries := database.NewDashboardQueries(solicitations, documents, eligibility, legalCases)
	solDashboard := usecase.NewBuildSolicitationDashboard(queries, 30)
	procDashboard := usecase.NewBuildProcessDashboard(queries, 5)

	// Background refresh of persisted cases
	syncJob := usecase.NewSyncLegalCases(legalCases, finder, cacheOrNil(caseCache),
		cfg.Scheduler.BatchSize, cfg.Scheduler.StaleAfterDays, cfg.Scheduler.ExternalRPM)
	sched := scheduler.New(syncJob, locks, cfg.Scheduler.Timezone, cfg.Scheduler.EveryDays)
	sched.Start()
	defer sched.Stop()

	server := api.NewServer(
		api.Config{
			CORSOrigin:        firstOrDefault(cfg.Server.CORSAllowOrigins, "*"),
			MaxCallsPerMinute: cfg.Server.MaxCallsPerMinute,
			MaxUploadSizeMB:   cfg.AWS.MaxUploadSizeMB,
		},
		classify, extract, evaluate, lookup, solDashboard, procDashboard,
		solicitations, documents, eligibility,
	)

	if err := server.Start(ctx, cfg.Server.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
	log.Println("shutdown complete")
}

// cacheOrNil converts a possibly-nil concrete cache into the interface the
// stages take, avoiding a non-nil interface around a nil pointer.
func cacheOrNil(c *cache.LegalCaseCache) usecase.CaseCache {
	if c == nil {
		return nil
	}
	return c
}

func firstOrDefault(values []string, fallback string) string {
	if len(values) > 0 && values[0] != "" {
		return values[0]
	}
	return fallback
}
