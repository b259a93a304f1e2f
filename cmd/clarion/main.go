// Clarion - retrieval-augmented chat pipeline service.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/clarion-chat/clarion/internal/api"
	"github.com/clarion-chat/clarion/internal/domain/audit"
	"github.com/clarion-chat/clarion/internal/domain/pipeline"
	"github.com/clarion-chat/clarion/internal/domain/tool"
	"github.com/clarion-chat/clarion/internal/infra/config"
	"github.com/clarion-chat/clarion/internal/infra/knowledge"
	"github.com/clarion-chat/clarion/internal/infra/llm"
	"github.com/clarion-chat/clarion/internal/infra/logger"
	"github.com/clarion-chat/clarion/internal/infra/sqlite"
	"github.com/clarion-chat/clarion/internal/server"
	"github.com/clarion-chat/clarion/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("clarion", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	showVersion := fs.Bool("version", false, "Show version information")
	showHelp := fs.Bool("help", false, "Show help")
	configPath := fs.String("config", "", "Path to the configuration file")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Fprintln(out, version.String()) //nolint:errcheck
		return 0
	}
	if *showHelp {
		printHelp(out)
		return 0
	}

	if err := serve(*configPath); err != nil {
		fmt.Fprintf(out, "clarion: %v\n", err) //nolint:errcheck
		return 1
	}
	return 0
}

func serve(configPath string) error {
	// Optional .env for local development; absence is not an error.
	_ = godotenv.Load()

	cfg, warnings, err := config.Load(config.Path(configPath))
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	for _, w := range warnings {
		log.Warn("config warning", zap.String("warning", w))
	}

	resolved := config.Resolve(cfg)

	providers := llm.NewRegistry(nil)
	for name, conn := range resolved.Connections {
		switch conn.Provider {
		case "ollama":
			providers.Register(name, llm.NewOllamaProvider(conn.BaseURL, conn.Model, conn.EmbeddingModel))
		default:
			providers.Register(name, llm.NewOpenAIProvider(conn.BaseURL, conn.APIKey, conn.Model, conn.EmbeddingModel))
		}
	}

	retrievers := knowledge.NewRegistry(nil)
	for name, ks := range resolved.Knowledge {
		retrievers.Register(name, knowledge.NewClient(ks.BaseURL))
	}

	db, err := sqlite.Open(resolved.Audit.Path)
	if err != nil {
		return err
	}
	if err := sqlite.MigrateUp(db); err != nil {
		db.Close() //nolint:errcheck
		return err
	}
	auditSvc := audit.NewService(db)

	tools := tool.NewRegistry()
	if err := tool.RegisterBuiltins(tools, retrievers); err != nil {
		db.Close() //nolint:errcheck
		return err
	}

	rules, err := pipeline.CompileRules(resolved.Responses)
	if err != nil {
		db.Close() //nolint:errcheck
		return err
	}

	chatSvc := pipeline.NewService(
		pipeline.NewTopicTracker(providers, log),
		pipeline.NewCollector(retrievers, providers, resolved.Knowledge, log),
		pipeline.NewClassifier(providers, log),
		pipeline.NewGenerator(providers, tools, log),
		rules,
		resolved.Intent,
		resolved.Topic.Connection,
		auditSvc,
		log,
	)

	defaults := make([]pipeline.Selection, len(resolved.Collections))
	for i, sel := range resolved.Collections {
		defaults[i] = pipeline.Selection{
			Service:             sel.Service,
			Name:                sel.Name,
			EmbeddingConnection: sel.EmbeddingConnection,
			EmbeddingModel:      sel.EmbeddingModel,
		}
	}

	router := api.NewRouter(api.Deps{
		Chat:               chatSvc,
		Providers:          providers,
		Retrievers:         retrievers,
		DefaultCollections: defaults,
		RateLimit:          resolved.RateLimit,
		Log:                log,
	})
	srv := server.New(resolved.Server, router, db, log)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info("signal received", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func printHelp(out io.Writer) {
	helpText := `Clarion - retrieval-augmented chat pipeline service

Usage:
  clarion [options]

Options:
  --version         Show version information
  --help            Show this help message
  --config <path>   Path to the configuration file

Environment:
  CLARION_CONFIG      Full path to the configuration file
  CLARION_CONFIG_DIR  Directory containing clarion.yaml

Examples:
  clarion --version
  clarion --config configs/clarion.yaml`
	fmt.Fprintln(out, helpText) //nolint:errcheck
}
