package main

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"symptom-triage-agent/internal/config"
	"symptom-triage-agent/internal/dialogue"
	"symptom-triage-agent/internal/knowledge"
	"symptom-triage-agent/internal/nlu"
	"symptom-triage-agent/internal/rules"
	"symptom-triage-agent/internal/safety"
	"symptom-triage-agent/internal/transcript"
)

func main() {
	logger, err := zap.NewProductionConfig().Build()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := config.Load()

	// 1. Infrastructure
	var db *sql.DB
	for i := 0; i < 10; i++ {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err == nil {
			err = db.Ping()
		}
		if err == nil {
			break
		}
		logger.Info("waiting for database", zap.Int("attempt", i+1))
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		logger.Fatal("could not connect to database", zap.Error(err))
	}
	logger.Info("connected to database")

	m, err := migrate.New(cfg.MigrationsDir, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("migration init failed", zap.Error(err))
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		logger.Fatal("migration up failed", zap.Error(err))
	}
	logger.Info("migrations applied")

	// 2. Collaborators
	var extractor dialogue.Extractor
	if cfg.OpenAIKey != "" {
		extractor = nlu.NewOpenAIExtractor()
	} else {
		logger.Warn("OPENAI_API_KEY not set, using keyword extractor")
		extractor = nlu.NewKeywordExtractor()
	}

	repo := dialogue.NewCachedRepository(dialogue.NewRepository(db))
	danger := rules.NewDangerChecker()
	slotChecker := rules.NewSlotChecker()
	decider := rules.NewTriageDecider()
	retriever := knowledge.NewRetriever()
	filter := safety.NewFilter()
	transcriptStore := transcript.NewStore(db, logger)

	// 3. Processor selection: v2 pipeline or the legacy inline path, both
	// behind the same contract.
	var processor dialogue.Processor
	if cfg.PipelineV2 {
		processor = dialogue.NewPipeline(repo, extractor, danger, slotChecker, decider, retriever, transcriptStore, filter, logger)
	} else {
		logger.Warn("running legacy orchestrator, PIPELINE_V2=false")
		processor = dialogue.NewLegacyProcessor(repo, extractor, danger, slotChecker, decider, retriever, filter, logger)
	}

	dialogueHandler := dialogue.NewHandler(processor)
	transcriptHandler := transcript.NewHandler(transcriptStore)

	// 4. Router
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Route("/api", func(r chi.Router) {
		dialogue.RegisterRoutes(r, dialogueHandler)
		transcript.RegisterRoutes(r, transcriptHandler)
	})

	logger.Info("server starting", zap.String("port", cfg.Port))
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
