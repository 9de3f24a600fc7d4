package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/safirlabs/safir-agent/internal/adapters/httpapi"
	"github.com/safirlabs/safir-agent/internal/adapters/knowledge"
	"github.com/safirlabs/safir-agent/internal/adapters/llm"
	firestorestore "github.com/safirlabs/safir-agent/internal/adapters/storage/firestore"
	memstore "github.com/safirlabs/safir-agent/internal/adapters/storage/memory"
	redisstore "github.com/safirlabs/safir-agent/internal/adapters/storage/redis"
	"github.com/safirlabs/safir-agent/internal/app/conversation"
	"github.com/safirlabs/safir-agent/internal/app/extract"
	"github.com/safirlabs/safir-agent/internal/app/postprocess"
	"github.com/safirlabs/safir-agent/internal/app/retrieve"
	"github.com/safirlabs/safir-agent/internal/app/router"
	"github.com/safirlabs/safir-agent/internal/app/suggest"
	"github.com/safirlabs/safir-agent/internal/app/summarize"
	"github.com/safirlabs/safir-agent/internal/app/tools"
	"github.com/safirlabs/safir-agent/internal/config"
	"github.com/safirlabs/safir-agent/internal/domain"
	"github.com/safirlabs/safir-agent/internal/observability"
	"github.com/safirlabs/safir-agent/internal/schema"
	"github.com/safirlabs/safir-agent/internal/trace"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	observability.SetLevel(parseLevel(cfg.LogLevel))
	log := observability.Logger()

	ctx := context.Background()

	// LLM: mock for local development, GenAI (Vertex or public API) otherwise.
	var (
		llmClient domain.LLMClient
		err       error
	)
	if cfg.UseMockLLM {
		log.Info("using mock LLM client")
		llmClient = llm.NewMock()
	} else {
		log.Info("using GenAI LLM client", "model", cfg.ModelName)
		llmClient, err = llm.NewClient(ctx, llm.Options{
			ProjectID: cfg.GCPProjectID,
			Location:  cfg.GCPLocation,
			APIKey:    cfg.GenAIAPIKey,
			ModelName: cfg.ModelName,
		})
		if err != nil {
			log.Error("init GenAI client", "error", err)
			os.Exit(1)
		}
	}

	// Session storage: Firestore or memory.
	var sessions domain.SessionStore
	switch cfg.SessionBackend {
	case "firestore":
		if cfg.GCPProjectID == "" {
			log.Error("SAFIR_GCP_PROJECT is required for the firestore session backend")
			os.Exit(1)
		}
		log.Info("using Firestore session store", "project", cfg.GCPProjectID)
		fs, err := firestorestore.NewStore(ctx, cfg.GCPProjectID)
		if err != nil {
			log.Error("init Firestore store", "error", err)
			os.Exit(1)
		}
		defer fs.Close()
		sessions = fs
	default:
		log.Info("using in-memory session store", "ttl", cfg.SessionTTL.String())
		sessions = memstore.NewSessionStore(cfg.SessionTTL)
	}

	// Context storage: Redis or memory.
	var contexts domain.ContextStore
	switch cfg.ContextBackend {
	case "redis":
		log.Info("using Redis context store")
		rc, err := redisstore.NewContextStore(cfg.RedisURL)
		if err != nil {
			log.Error("init Redis context store", "error", err)
			os.Exit(1)
		}
		contexts = rc
	default:
		log.Info("using in-memory context store")
		contexts = memstore.NewContextStore()
	}

	registry, err := schema.LoadRegistry(cfg.FieldsConfigPath)
	if err != nil {
		log.Error("load field registry", "path", cfg.FieldsConfigPath, "error", err)
		os.Exit(1)
	}
	personas, err := conversation.LoadPersonas(cfg.PersonasConfigPath)
	if err != nil {
		log.Error("load personas", "path", cfg.PersonasConfigPath, "error", err)
		os.Exit(1)
	}
	pathRouter, err := router.LoadPathRouter(cfg.PathMappingPath)
	if err != nil {
		log.Error("load path mapping", "path", cfg.PathMappingPath, "error", err)
		os.Exit(1)
	}

	// Retrieval sources; each one is optional and its stage is skipped
	// when absent.
	var kb domain.KnowledgeSource
	if cfg.KnowledgeBaseURL != "" {
		log.Info("knowledge base enabled", "base_url", cfg.KnowledgeBaseURL)
		kb = knowledge.NewLightRAG(knowledge.LightRAGOptions{
			BaseURL:   cfg.KnowledgeBaseURL,
			AuthToken: cfg.KnowledgeAuthToken,
		})
	}
	actions, err := knowledge.LoadActionsCatalog(cfg.ActionsCatalogPath)
	if err != nil {
		log.Error("load actions catalog", "path", cfg.ActionsCatalogPath, "error", err)
		os.Exit(1)
	}
	reference, err := knowledge.LoadReferenceCSV(cfg.ActionsCSVPath)
	if err != nil {
		log.Error("load actions reference csv", "path", cfg.ActionsCSVPath, "error", err)
		os.Exit(1)
	}
	log.Info("retrieval sources loaded", "actions", actions.Len(), "reference_rows", reference.Len())

	toolReg := tools.NewRegistry()
	if err := toolReg.Register(extract.NewSaveFieldTool(registry, contexts, cfg.SessionTTL)); err != nil {
		log.Error("register tools", "error", err)
		os.Exit(1)
	}
	for _, h := range domain.AllHandlers() {
		toolReg.Assign(string(h), "save_user_field")
	}
	log.Info("tools registered", "tools", toolReg.Names())

	ring := trace.NewRing(100)
	var logs *trace.LogStore
	if cfg.TraceDBPath != "" {
		logs, err = trace.OpenLogStore(cfg.TraceDBPath)
		if err != nil {
			log.Error("open log store", "path", cfg.TraceDBPath, "error", err)
			os.Exit(1)
		}
		defer logs.Close()
		log.Info("service log store enabled", "path", cfg.TraceDBPath)
	}

	svc := conversation.NewService(conversation.Options{
		LLM:        llmClient,
		Sessions:   sessions,
		Contexts:   contexts,
		Router:     router.New(llmClient),
		PathRouter: pathRouter,
		Extractor:  extract.New(llmClient, registry),
		Summarizer: summarize.New(llmClient, cfg.SummarizeThreshold, cfg.KeepLastN),
		Pipeline: retrieve.New(retrieve.Options{
			KnowledgeBase: kb,
			Actions:       actions,
			Reference:     reference,
			StageTimeout:  cfg.RetrievalStageTimeout,
		}),
		Lifecycle: suggest.New(suggest.Config{
			MaxClicks:           cfg.MaxSuggestionClicks,
			FreeModeTurnTrigger: cfg.FreeModeTurnTrigger,
			WarmupTurns:         cfg.WarmupTurns,
			TransitionMessage:   cfg.TransitionMessage,
		}),
		Processor:          postprocess.New(),
		Registry:           registry,
		Personas:           personas,
		Traces:             ring,
		LogStore:           logs,
		MaxSessionMessages: cfg.MaxSessionMessages,
		SessionTTL:         cfg.SessionTTL,
		ContextTTL:         cfg.SessionTTL,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpapi.New(svc, registry, toolReg, ring, logs).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("safir api listening", "port", cfg.Port, "mode", string(cfg.Mode))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "error", err)
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
