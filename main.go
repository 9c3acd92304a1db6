package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/cropmind/cropmind/agent"
	"github.com/cropmind/cropmind/api"
	"github.com/cropmind/cropmind/config"
	"github.com/cropmind/cropmind/database"
	"github.com/cropmind/cropmind/embeddings"
	"github.com/cropmind/cropmind/ingestion"
	"github.com/cropmind/cropmind/llm"
	"github.com/cropmind/cropmind/vectorstore"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()

	switch os.Args[1] {
	case "ingest":
		ingestCmd(cfg, logger, os.Args[2:])
	case "chat":
		chatCmd(cfg, logger, os.Args[2:])
	case "serve":
		serveCmd(cfg, logger, os.Args[2:])
	case "clear":
		clearCmd(cfg, logger, os.Args[2:])
	default:
		logger.Printf("unknown command: %s", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func ingestCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("ingest", flag.ExitOnError)
	dataDir := flags.String("dir", cfg.DataDir, "path to directory containing source documents")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse ingest flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatalf("postgres connection: %v", err)
	}
	defer pool.Close()

	pipeline, err := buildPipeline(ctx, cfg, pool, logger)
	if err != nil {
		logger.Fatalf("pipeline setup: %v", err)
	}

	logger.Printf("ingesting documents from %s using %s embeddings", *dataDir, cfg.Embeddings.Model)
	summary, err := pipeline.Ingest(ctx, *dataDir)
	if err != nil {
		logger.Fatalf("ingestion failed: %v", err)
	}

	logger.Printf("ingestion complete: %d documents, %d chunks created, %d chunks stored, %d errors",
		summary.DocumentsLoaded, summary.ChunksCreated, summary.ChunksStored, len(summary.Errors))
	for _, docErr := range summary.Errors {
		logger.Printf("  skipped %s", docErr)
	}
}

func chatCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("chat", flag.ExitOnError)
	question := flags.String("question", "", "single question to ask; omit for an interactive session")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse chat flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatalf("postgres connection: %v", err)
	}
	defer pool.Close()

	orchestrator, err := buildOrchestrator(cfg, pool, logger)
	if err != nil {
		logger.Fatalf("agent setup: %v", err)
	}

	state := agent.NewConversationState()

	if strings.TrimSpace(*question) != "" {
		answer, err := orchestrator.RunTurn(ctx, *question, state)
		if err != nil {
			logger.Fatalf("chat failed: %v", err)
		}
		fmt.Println(answer)
		return
	}

	fmt.Println("Interactive chat. Empty line or Ctrl-D to exit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			break
		}

		answer, err := orchestrator.RunTurn(ctx, line, state)
		if err != nil {
			logger.Printf("turn failed: %v", err)
			continue
		}
		fmt.Println(answer)
		fmt.Println()
	}
	if err := scanner.Err(); err != nil {
		logger.Fatalf("read question: %v", err)
	}
}

func serveCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := flags.String("addr", cfg.HTTPAddr, "listen address for the HTTP API")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse serve flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatalf("postgres connection: %v", err)
	}
	defer pool.Close()

	pipeline, err := buildPipeline(ctx, cfg, pool, logger)
	if err != nil {
		logger.Fatalf("pipeline setup: %v", err)
	}

	orchestrator, err := buildOrchestrator(cfg, pool, logger)
	if err != nil {
		logger.Fatalf("agent setup: %v", err)
	}

	clearIndex := func(ctx context.Context) error {
		return database.Clear(ctx, pool)
	}

	server := &http.Server{
		Addr:    *addr,
		Handler: api.New(orchestrator, pipeline, clearIndex, cfg.DataDir, logger),
	}

	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()

	logger.Printf("serving HTTP API on %s", *addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("serve: %v", err)
	}
}

func clearCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("clear", flag.ExitOnError)
	confirmed := flags.Bool("confirm", false, "skip confirmation prompt")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse clear flags: %v", err)
	}

	if !*confirmed {
		fmt.Print("This will permanently delete the ingested index. Continue? [y/N]: ")
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				logger.Fatalf("read confirmation: %v", err)
			}
			logger.Println("clear aborted")
			return
		}
		answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if answer != "y" && answer != "yes" {
			logger.Println("clear aborted")
			return
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatalf("postgres connection: %v", err)
	}
	defer pool.Close()

	if err := database.Clear(ctx, pool); err != nil {
		logger.Fatalf("clear index: %v", err)
	}
	logger.Println("index cleared")
}

func buildPipeline(ctx context.Context, cfg config.Config, pool *pgxpool.Pool, logger *log.Logger) (*ingestion.Pipeline, error) {
	if err := database.EnsureSchema(ctx, pool, cfg.Embeddings.Dimension); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("embedder setup: %w", err)
	}

	chunker, err := ingestion.NewChunker(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return nil, fmt.Errorf("chunker setup: %w", err)
	}

	store := vectorstore.NewPostgresStore(pool)
	pipeline := ingestion.NewPipeline(ingestion.FSLoader{}, chunker, embedder, store, logger)
	pipeline.SetBatchSize(cfg.Embeddings.BatchSize)
	return pipeline, nil
}

func buildOrchestrator(cfg config.Config, pool *pgxpool.Pool, logger *log.Logger) (*agent.Orchestrator, error) {
	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("embedder setup: %w", err)
	}

	client, err := llm.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("llm setup: %w", err)
	}

	store := vectorstore.NewPostgresStore(pool)
	tool := agent.NewRetrievalTool(embedder, store, cfg.Agent.RetrievalK)

	return agent.NewOrchestrator(client, tool, logger, agent.Options{
		MaxToolRounds: cfg.Agent.MaxToolRounds,
		MaxAttempts:   cfg.Agent.MaxAttempts,
		BackoffBase:   cfg.Agent.BackoffBase,
		CallTimeout:   cfg.Agent.CallTimeout,
	}), nil
}

func printUsage() {
	fmt.Println("Usage: cropmind <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  ingest   Ingest documents into the vector index (use --dir to override data directory)")
	fmt.Println("  chat     Ask the assistant questions against the ingested knowledge base")
	fmt.Println("  serve    Run the HTTP API")
	fmt.Println("  clear    Remove all ingested data from the index")
}
