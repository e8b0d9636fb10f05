package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/joho/godotenv"

	"github.com/dukhanin/contract-advisor/internal/application"
	appadvisor "github.com/dukhanin/contract-advisor/internal/application/advisor"
	appdocs "github.com/dukhanin/contract-advisor/internal/application/documents"
	"github.com/dukhanin/contract-advisor/internal/config"
	openaicli "github.com/dukhanin/contract-advisor/internal/infra/ai/openai"
	"github.com/dukhanin/contract-advisor/internal/infra/ai/tokens"
	mysqlp "github.com/dukhanin/contract-advisor/internal/infra/db/mysql"
	postgresp "github.com/dukhanin/contract-advisor/internal/infra/db/postgres"
	"github.com/dukhanin/contract-advisor/internal/infra/httpserver"
	"github.com/dukhanin/contract-advisor/internal/infra/index"
	"github.com/dukhanin/contract-advisor/internal/infra/parser"
	"github.com/dukhanin/contract-advisor/internal/infra/segmenter"
	minioStore "github.com/dukhanin/contract-advisor/internal/infra/storage"
	"github.com/dukhanin/contract-advisor/internal/middleware"

	domdocs "github.com/dukhanin/contract-advisor/internal/domain/documents"
)

func main() {
	// .env is optional; real deployments set env vars directly
	_ = godotenv.Load()

	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Fatal("OPENAI_API_KEY is required")
	}

	ctx := context.Background()

	// init model client + tokenizer
	llm := openaicli.NewClient(apiKey, cfg.OpenAI.Model, cfg.OpenAI.EmbeddingModel,
		time.Duration(cfg.OpenAI.TimeoutSeconds)*time.Second)
	counter, err := tokens.NewCounter()
	if err != nil {
		log.Fatalf("tokenizer init error: %v", err)
	}

	// optional audit database
	var audit domdocs.AnalysisRepository
	checkers := make(map[string]middleware.HealthChecker)
	switch cfg.Database.Driver {
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			log.Fatalf("mysql connect error: %v", err)
		}
		defer db.Close()
		audit = mysqlp.NewAnalysisRepository(db)
		checkers["database"] = &middleware.DatabaseHealthChecker{DB: db}
	case "postgres":
		db, err := postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			log.Fatalf("postgres connect error: %v", err)
		}
		defer db.Close()
		audit = postgresp.NewAnalysisRepository(db)
		checkers["database"] = &middleware.DatabaseHealthChecker{DB: db}
	case "":
		// audit log disabled
	default:
		log.Fatalf("unknown database driver %q", cfg.Database.Driver)
	}

	// optional raw-upload archive
	var archive domdocs.ArchiveStore
	if cfg.Minio.Endpoint != "" {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			log.Fatalf("minio init error: %v", err)
		}
		archive = store
	}

	cache, err := lru.New[string, *domdocs.AnalysisResult](cfg.Analysis.CacheSize)
	if err != nil {
		log.Fatalf("cache init error: %v", err)
	}

	seg, err := buildSegmenter(cfg)
	if err != nil {
		log.Fatalf("segmenter init error: %v", err)
	}

	// init services
	docsSvc := &appdocs.Service{
		Parser:         parser.New(),
		Segmenter:      seg,
		NewIndex:       func() domdocs.Index { return index.NewMemory(llm) },
		LLM:            llm,
		Tokens:         counter,
		Cache:          cache,
		Audit:          audit,
		Archive:        archive,
		Clock:          application.SystemClock{},
		TopK:           cfg.Retrieval.TopK,
		AnalysisTokens: cfg.Analysis.MaxContextTokens,
		QATokens:       cfg.Analysis.QAContextTokens,
	}
	advisorSvc := appadvisor.New(docsSvc, llm, application.SystemClock{})

	// init router
	mux := chi.NewRouter()
	if len(cfg.Auth.APIKeys) > 0 {
		mux.Use(middleware.APIKeyAuth(cfg.Auth.APIKeys))
	}
	mux.Mount("/", httpserver.NewRouter(docsSvc, advisorSvc, httpserver.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateCapacity:   cfg.RateLimit.Capacity,
		RateRefill:     cfg.RateLimit.RefillRate,
		Checkers:       checkers,
	}))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func buildSegmenter(cfg *config.Config) (*segmenter.Segmenter, error) {
	if cfg.Segmenter.ChunkSize == 0 {
		return segmenter.Default(), nil
	}
	return segmenter.New(cfg.Segmenter.ChunkSize, cfg.Segmenter.OverlapFraction)
}
