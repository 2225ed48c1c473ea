// tracepilot ingests LLM traces, clusters and matches them against
// prompt implementations, evaluates those implementations against test
// suites, and proposes optimized variants from the results.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/traceforge/tracepilot/pkg/api"
	"github.com/traceforge/tracepilot/pkg/autocreate"
	"github.com/traceforge/tracepilot/pkg/cache"
	"github.com/traceforge/tracepilot/pkg/cleanup"
	"github.com/traceforge/tracepilot/pkg/config"
	"github.com/traceforge/tracepilot/pkg/database"
	"github.com/traceforge/tracepilot/pkg/evaluation"
	"github.com/traceforge/tracepilot/pkg/graderun"
	"github.com/traceforge/tracepilot/pkg/ingest"
	"github.com/traceforge/tracepilot/pkg/llmrpc"
	"github.com/traceforge/tracepilot/pkg/llmrpc/providers"
	"github.com/traceforge/tracepilot/pkg/metrics"
	"github.com/traceforge/tracepilot/pkg/observability"
	"github.com/traceforge/tracepilot/pkg/optimize"
	"github.com/traceforge/tracepilot/pkg/parser"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("could not load %s: %v, continuing with existing environment", envPath, err)
	} else {
		log.Printf("loaded environment from %s", envPath)
	}

	ctx := context.Background()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("initialize configuration: %v", err)
	}
	gin.SetMode(cfg.Server.GinMode)

	dbClient, err := database.NewClient(ctx, database.LoadConfigFromEnv())
	if err != nil {
		log.Fatalf("connect to database: %v", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			log.Printf("error closing database client: %v", err)
		}
	}()
	log.Println("connected to PostgreSQL, migrations applied")

	cacheClient, err := cache.New(cfg.Redis.URL)
	if err != nil {
		log.Fatalf("connect to redis: %v", err)
	}
	defer func() {
		if err := cacheClient.Close(); err != nil {
			log.Printf("error closing redis client: %v", err)
		}
	}()

	// The LLM executor runs as a separate gRPC service in front of the
	// provider SDKs, dialed back in-process — mirrors the teacher's split
	// between the orchestrator and its own sidecar-shaped services.
	llmServer := llmrpc.NewServer(
		providers.NewOpenAIProvider(os.Getenv("OPENAI_API_KEY")),
		providers.NewAnthropicProvider(os.Getenv("ANTHROPIC_API_KEY")),
		mustGeminiProvider(ctx),
	)
	grpcServer, err := llmrpc.StartServer(cfg.LLMRPC.ListenAddr, llmServer)
	if err != nil {
		log.Fatalf("start llmrpc server: %v", err)
	}
	defer grpcServer.GracefulStop()

	conn, err := llmrpc.Dial(cfg.LLMRPC.Target)
	if err != nil {
		log.Fatalf("dial llmrpc server: %v", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Printf("error closing llmrpc connection: %v", err)
		}
	}()
	executor := llmrpc.NewExecutor(conn)

	registry := parser.NewRegistry(
		parser.NewOpenAIParser(),
		parser.NewAnthropicParser(),
		parser.NewGeminiParser(),
	)
	creator := autocreate.NewCreator(dbClient.Client)
	ingestPipeline := ingest.NewPipeline(dbClient.Client, registry, cacheClient, creator)

	grading := graderun.NewRuntime(executor)
	evalOrch := evaluation.NewOrchestrator(dbClient.Client, executor, grading)
	optimizer := optimize.NewOptimizer(dbClient.Client, executor, evalOrch, cacheClient, getEnv("OPTIMIZE_AGENT_MODEL", "gpt-4.1"))

	m := metrics.New()

	if cfg.Observability.OTLPEndpoint != "" {
		shutdown, err := observability.Init(ctx, observability.Config{
			ServiceName:    cfg.Observability.ServiceName,
			ServiceVersion: cfg.Observability.ServiceVersion,
			Environment:    cfg.Observability.Environment,
			OTLPEndpoint:   cfg.Observability.OTLPEndpoint,
			Insecure:       cfg.Observability.Insecure,
		})
		if err != nil {
			log.Fatalf("init observability: %v", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Printf("error shutting down tracer provider: %v", err)
			}
		}()
	} else {
		slog.Info("observability.otlp_endpoint unset, tracing disabled")
	}

	cleanupSvc := cleanup.NewService(dbClient.Client, evalOrch, getEnv("CLEANUP_CRON_SPEC", "0 */6 * * *"))
	if err := cleanupSvc.Start(ctx); err != nil {
		log.Fatalf("start cleanup service: %v", err)
	}
	defer cleanupSvc.Stop()

	server := api.NewServer(dbClient.Client, dbClient.DB(), ingestPipeline, evalOrch, optimizer, grading, executor, m)

	log.Printf("tracepilot listening on %s", cfg.Server.ListenAddr)
	if err := server.Router().Run(cfg.Server.ListenAddr); err != nil {
		log.Fatalf("http server: %v", err)
	}
}

// mustGeminiProvider builds the Gemini provider eagerly at startup rather
// than lazily on first use, so a bad GEMINI_API_KEY / client setup fails
// fast instead of surfacing mid-request.
func mustGeminiProvider(ctx context.Context) *providers.GeminiProvider {
	p, err := providers.NewGeminiProvider(ctx, os.Getenv("GEMINI_API_KEY"))
	if err != nil {
		log.Fatalf("init gemini provider: %v", err)
	}
	return p
}
