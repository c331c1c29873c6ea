// Package main is the entrypoint for the SQL core gateway. It wires
// every component (C1-C12) from configuration, runs pending
// migrations, and serves a thin HTTP inbound adapter — the transport
// layer itself is out of scope; this is enough surface to demonstrate
// the wiring and let an operator drive it.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/entool-router/sqlcore/internal/audit"
	"github.com/entool-router/sqlcore/internal/cache"
	"github.com/entool-router/sqlcore/internal/config"
	"github.com/entool-router/sqlcore/internal/core"
	"github.com/entool-router/sqlcore/internal/executor"
	"github.com/entool-router/sqlcore/internal/history"
	"github.com/entool-router/sqlcore/internal/llmprovider"
	"github.com/entool-router/sqlcore/internal/migrate"
	"github.com/entool-router/sqlcore/internal/observability"
	"github.com/entool-router/sqlcore/internal/planner"
	"github.com/entool-router/sqlcore/internal/ratelimit"
	"github.com/entool-router/sqlcore/internal/resilience"
	"github.com/entool-router/sqlcore/internal/schema"
	"github.com/entool-router/sqlcore/internal/validator"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "sqlcoregw: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		addr       = flag.String("addr", ":8080", "HTTP listen address")
		configPath = flag.String("config", "", "Path to config file (optional)")
		dbURL      = flag.String("db", "", "PostgreSQL connection URL backing audit log + query history (required)")
		showHelp   = flag.Bool("help", false, "Show help message")
		showVer    = flag.Bool("version", false, "Show version")
	)
	flag.Parse()

	if *showHelp {
		flag.Usage()
		return nil
	}
	if *showVer {
		fmt.Printf("sqlcoregw %s (commit: %s)\n", version, commit)
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *dbURL == "" {
		*dbURL = os.Getenv("SQLCORE_DATABASE_URL")
	}
	if *dbURL == "" {
		return fmt.Errorf("PostgreSQL connection required: use -db flag or SQLCORE_DATABASE_URL env var")
	}

	db, err := sql.Open("postgres", *dbURL)
	if err != nil {
		return fmt.Errorf("failed to open PostgreSQL connection: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("PostgreSQL connectivity check failed: %w", err)
	}

	log.Println("running database migrations...")
	if err := migrate.NewRunner(db).Run(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	log.Println("database migrations complete")

	logger := observability.NewJSONLogger(os.Stdout)

	auditSink, err := audit.NewPostgresSink(ctx, db, logger)
	if err != nil {
		return fmt.Errorf("failed to build audit sink: %w", err)
	}

	historyStore := history.New(db, cfg.History.RetentionDays)

	execDSN := cfg.Database.ExecutorDSN
	if execDSN == "" {
		execDSN = ":memory:"
	}
	exec, err := executor.Open(execDSN)
	if err != nil {
		return fmt.Errorf("failed to open executor: %w", err)
	}
	defer exec.Close()
	if err := exec.Ping(ctx); err != nil {
		return fmt.Errorf("executor connectivity check failed: %w", err)
	}

	shortCache := cache.New(cache.Config{
		RedisAddr:     cfg.Cache.RedisAddr,
		TTLSeconds:    cfg.Cache.TTLSeconds,
		MaxValueBytes: cfg.Cache.MaxValueBytes,
	})
	defer shortCache.Close()

	val := validator.New(cfg.Validator.DefaultLimit, cfg.Validator.AllowlistedTables, cfg.Validator.BlockedKeywords)

	provider, err := buildProvider(cfg.LLM)
	if err != nil {
		return fmt.Errorf("failed to build LLM provider: %w", err)
	}
	log.Printf("registered LLM provider: %s", provider.Name())

	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		Name:             "llm." + provider.Name(),
		FailureThreshold: uint32(cfg.Breaker.FailureThreshold),
		WindowSeconds:    cfg.Breaker.WindowSeconds,
		RecoverySeconds:  cfg.Breaker.RecoverySeconds,
	})

	plan := planner.New(planner.Config{
		ShortCache:   shortCache,
		History:      historyStore,
		LLM:          provider,
		Breaker:      breaker,
		KeyFunc:      cache.Key,
		LLMTimeout:   time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
		SchemaPrompt: buildSchemaPrompt(cfg.Validator.AllowlistedTables),
	})

	limiter := ratelimit.New(cfg.RateLimit.MaxRequests, cfg.RateLimit.WindowSeconds)

	orchestrator, err := core.New(core.Config{
		RateLimiter:         limiter,
		Validator:           val,
		Planner:             plan,
		Executor:            exec,
		History:             historyStore,
		ShortCache:          shortCache,
		AuditSink:           auditSink,
		Logger:              logger,
		KeyFunc:             cache.Key,
		ConfidenceThreshold: cfg.LLM.ConfidenceThreshold,
	})
	if err != nil {
		return fmt.Errorf("failed to build orchestrator: %w", err)
	}

	handler := newHTTPHandler(orchestrator, breaker)
	server := &http.Server{
		Addr:         *addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Println("shutting down sqlcoregw...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
		close(done)
	}()

	log.Printf("sqlcoregw starting on %s", *addr)
	log.Printf("version: %s, commit: %s", version, commit)
	log.Printf("health check: http://localhost%s/health", *addr)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	log.Println("sqlcoregw stopped")
	return nil
}

func buildProvider(cfg config.LLMConfig) (llmprovider.Provider, error) {
	switch cfg.Provider {
	case "anthropic":
		return llmprovider.NewAnthropicProvider(cfg.APIKey, cfg.Model, llmprovider.DefaultRateTable), nil
	case "openai":
		return llmprovider.NewOpenAIProvider(cfg.APIKey, cfg.Model, llmprovider.DefaultRateTable), nil
	case "openrouter":
		return llmprovider.NewOpenRouterProvider(cfg.APIKey, cfg.BaseURL, cfg.Model, llmprovider.DefaultRateTable), nil
	case "mock", "":
		return llmprovider.NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}

func buildSchemaPrompt(allowlistedTables []string) string {
	return fmt.Sprintf("You may only query these tables: %v. Respond with a single SELECT statement.", allowlistedTables)
}

func newHTTPHandler(o *core.Orchestrator, breaker *resilience.Breaker) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ready","breaker":%q}`, breaker.State())
	})

	mux.HandleFunc("/query", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			Query         string `json:"query"`
			UserID        string `json:"user_id"`
			CorrelationID string `json:"correlation_id"`
			BypassCache   bool   `json:"bypass_cache"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		resp := o.Handle(r.Context(), schema.Request{
			QueryText:     req.Query,
			UserID:        req.UserID,
			CorrelationID: req.CorrelationID,
			BypassCache:   req.BypassCache,
		})

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})

	return mux
}
