package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeGCP   Mode = "gcp"
)

type Config struct {
	Mode Mode

	Port     string
	LogLevel string

	GCPProjectID string
	GCPLocation  string
	ModelName    string
	GenAIAPIKey  string

	SessionBackend string // "memory" or "firestore"
	ContextBackend string // "memory" or "redis"
	RedisURL       string
	TraceDBPath    string // empty disables the sqlite trace log

	UseMockLLM bool

	// Knowledge sources
	KnowledgeBaseURL   string
	KnowledgeAuthToken string
	ActionsCatalogPath string
	ActionsCSVPath     string

	// Config files
	FieldsConfigPath   string
	PersonasConfigPath string
	PathMappingPath    string

	// Session retention and context expiry
	MaxSessionMessages int
	SessionTTL         time.Duration

	// Summarizer cache
	SummarizeThreshold int
	KeepLastN          int

	// Suggestion lifecycle
	MaxSuggestionClicks int
	WarmupTurns         int // reserved, not evaluated yet
	FreeModeTurnTrigger int
	TransitionMessage   string

	// Per-stage retrieval timeout
	RetrievalStageTimeout time.Duration
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "TRUE"
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// defaultTransitionMessage is shown once when a session flips to free mode.
const defaultTransitionMessage = "از اینجا به بعد می‌تونی آزادانه هر سوالی داری بپرسی!"

// Load reads all env vars and builds the config.
func Load() *Config {
	modeStr := getEnv("SAFIR_MODE", "local")
	var mode Mode
	switch modeStr {
	case "gcp":
		mode = ModeGCP
	default:
		mode = ModeLocal
	}

	cfg := &Config{
		Mode: mode,

		Port:     getEnv("SAFIR_PORT", "8080"),
		LogLevel: getEnv("SAFIR_LOG_LEVEL", "info"),

		GCPProjectID: getEnv("SAFIR_GCP_PROJECT", ""),
		GCPLocation:  getEnv("SAFIR_GCP_LOCATION", "us-central1"),
		ModelName:    getEnv("SAFIR_MODEL_NAME", "gemini-2.5-flash-lite"),
		GenAIAPIKey:  getEnv("SAFIR_GENAI_API_KEY", ""),

		SessionBackend: getEnv("SAFIR_SESSION_BACKEND", "memory"),
		ContextBackend: getEnv("SAFIR_CONTEXT_BACKEND", "memory"),
		RedisURL:       getEnv("SAFIR_REDIS_URL", "redis://localhost:6379/0"),
		TraceDBPath:    getEnv("SAFIR_TRACE_DB_PATH", ""),

		UseMockLLM: getBoolEnv("SAFIR_USE_MOCK_LLM", mode == ModeLocal),

		KnowledgeBaseURL:   getEnv("SAFIR_KB_BASE_URL", ""),
		KnowledgeAuthToken: getEnv("SAFIR_KB_BEARER_TOKEN", ""),
		ActionsCatalogPath: getEnv("SAFIR_ACTIONS_CATALOG", "config/actions.yaml"),
		ActionsCSVPath:     getEnv("SAFIR_ACTIONS_CSV", "config/actions_reference.csv"),

		FieldsConfigPath:   getEnv("SAFIR_FIELDS_CONFIG", "config/fields.yaml"),
		PersonasConfigPath: getEnv("SAFIR_PERSONAS_CONFIG", "config/personas.yaml"),
		PathMappingPath:    getEnv("SAFIR_PATH_MAPPING", "config/path_mapping.yaml"),

		MaxSessionMessages: getIntEnv("MAX_SESSION_MESSAGES", 30),
		SessionTTL:         time.Duration(getIntEnv("SESSION_TTL_SECONDS", 14400)) * time.Second,

		SummarizeThreshold: getIntEnv("SUMMARIZE_THRESHOLD", 10),
		KeepLastN:          getIntEnv("KEEP_LAST_N", 2),

		MaxSuggestionClicks: getIntEnv("MAX_SUGGESTION_CLICKS", 3),
		WarmupTurns:         getIntEnv("SUGGESTION_WARMUP_TURNS", 3),
		FreeModeTurnTrigger: getIntEnv("FREE_MODE_TURN_TRIGGER", 4),
		TransitionMessage:   getEnv("TRANSITION_TO_FREE_MESSAGE", defaultTransitionMessage),

		RetrievalStageTimeout: getDurationEnv("RETRIEVAL_STAGE_TIMEOUT", 15*time.Second),
	}

	// Minimal validation in GCP mode
	if cfg.Mode == ModeGCP && cfg.GCPProjectID == "" && cfg.GenAIAPIKey == "" {
		log.Fatal("SAFIR_GCP_PROJECT or SAFIR_GENAI_API_KEY must be set in gcp mode")
	}

	return cfg
}
