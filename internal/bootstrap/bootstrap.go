// Package bootstrap assembles the chat pipeline from configuration and a set
// of stores. The API server, miactl and the HTTP tests share it.
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"mia/apps/backend/internal/cache"
	"mia/apps/backend/internal/catalog"
	"mia/apps/backend/internal/chat"
	"mia/apps/backend/internal/clinic"
	"mia/apps/backend/internal/config"
	"mia/apps/backend/internal/guard"
	"mia/apps/backend/internal/intent"
	"mia/apps/backend/internal/llm"
	"mia/apps/backend/internal/metrics"
	"mia/apps/backend/internal/redflag"
	"mia/apps/backend/internal/seed"
	"mia/apps/backend/internal/store"
	"mia/apps/backend/internal/vademecum"
	"mia/apps/backend/internal/validator"
)

// Stores are the persistence ports the pipeline reads and writes.
type Stores struct {
	Catalog       catalog.Store
	Patterns      redflag.Repository
	Clinics       clinic.Store
	Documents     vademecum.Store
	Prompts       chat.PromptRepository
	FAQs          chat.FAQStore
	Conversations chat.ConversationStore
}

// MemoryStores serves everything from a seed fixture.
func MemoryStores(f seed.File) Stores {
	mem := f.InMemory()
	return Stores{
		Catalog:       mem.Catalog,
		Patterns:      mem.Patterns,
		Clinics:       mem.Clinics,
		Documents:     mem.Documents,
		Prompts:       mem.Prompts,
		FAQs:          mem.FAQs,
		Conversations: chat.NewMemoryConversationStore(),
	}
}

func PostgresStores(pg *store.Postgres) Stores {
	return Stores{
		Catalog:       pg,
		Patterns:      pg,
		Clinics:       pg,
		Documents:     pg,
		Prompts:       pg,
		FAQs:          pg,
		Conversations: pg,
	}
}

// Runtime is a fully wired pipeline. Detector and PromptProvider are exposed
// so their caches can be registered on a Bus.
type Runtime struct {
	Service        *chat.Service
	Engine         *catalog.Engine
	Classifier     *intent.Classifier
	Detector       *redflag.Detector
	PromptProvider *chat.PromptProvider
	Clinics        *clinic.Directory
	Bus            *cache.Bus
	Metrics        *metrics.Metrics
	Stores         Stores
}

// LoadDictionary returns the configured intent dictionary, or the built-in
// one when no path is set.
func LoadDictionary(cfg config.Config) (intent.Dictionary, error) {
	path := strings.TrimSpace(cfg.IntentDictionary)
	if path == "" {
		return intent.DefaultDictionary(), nil
	}
	return intent.LoadDictionary(path)
}

// GateConfig overlays the keyword sets from the environment on the defaults.
func GateConfig(cfg config.Config) guard.Config {
	gate := guard.DefaultConfig()
	if len(cfg.MedicalPatterns) > 0 {
		gate.MedicalRequestPatterns = cfg.MedicalPatterns
	}
	if len(cfg.RxPatterns) > 0 {
		gate.RxPatterns = cfg.RxPatterns
	}
	if len(cfg.EducationalMarks) > 0 {
		gate.EducationalMarkers = cfg.EducationalMarks
	}
	return gate
}

// NewGenerator picks the mock or the OpenAI-compatible generator.
func NewGenerator(cfg config.Config, logger *zap.Logger) llm.Generator {
	if cfg.UseMockGenerator {
		logger.Info("using mock generator")
		return llm.MockGenerator{}
	}
	return llm.NewOpenAIGenerator(llm.OpenAIConfig{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.OpenAIBaseURL,
		Model:       cfg.OpenAIModel,
		MaxTokens:   cfg.OpenAIMaxTokens,
		Temperature: cfg.OpenAITemperature,
		Timeout:     time.Duration(cfg.AITimeoutSeconds) * time.Second,
	}, logger)
}

// Build wires the pipeline. A nil bus gets a local-only one; a nil metrics
// value gets a fresh registry.
func Build(cfg config.Config, stores Stores, generator llm.Generator, bus *cache.Bus, m *metrics.Metrics, logger *zap.Logger) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}
	if bus == nil {
		bus = cache.NewBus(nil, logger)
	}

	dict, err := LoadDictionary(cfg)
	if err != nil {
		return nil, fmt.Errorf("load intent dictionary: %w", err)
	}
	classifier := intent.NewClassifier(dict)
	engine := catalog.NewEngine(stores.Catalog, classifier, catalog.EngineConfig{
		Limit:    cfg.ProductLimit,
		Recorder: m,
	}, logger.Named("catalog"))
	detector := redflag.NewDetector(stores.Patterns, cfg.PatternCacheTTL, logger.Named("redflag"))
	prompts := chat.NewPromptProvider(stores.Prompts, cfg.PromptName, cfg.PromptCacheTTL, logger.Named("prompt"))
	clinics := clinic.NewDirectory(stores.Clinics, logger.Named("clinic"))

	bus.Register(cache.TopicRedFlags, detector)
	bus.Register(cache.TopicSystemPrompts, prompts)

	service := chat.NewService(chat.Config{
		MaxMessageLength: cfg.MaxMessageLength,
		HistoryTurns:     cfg.HistoryTurns,
		MaxTokens:        cfg.OpenAIMaxTokens,
		Temperature:      cfg.OpenAITemperature,
	}, chat.Deps{
		Conversations: stores.Conversations,
		RedFlags:      detector,
		Gate:          guard.New(GateConfig(cfg)),
		Classifier:    classifier,
		Engine:        engine,
		Vademecum:     vademecum.NewSearcher(stores.Documents, 0, logger.Named("vademecum")),
		FAQs:          stores.FAQs,
		Clinics:       clinics,
		Prompts:       prompts,
		Generator:     generator,
		Validator:     validator.New(stores.Catalog, m, logger.Named("validator")),
		Recorder:      m,
	}, logger.Named("chat"))

	return &Runtime{
		Service:        service,
		Engine:         engine,
		Classifier:     classifier,
		Detector:       detector,
		PromptProvider: prompts,
		Clinics:        clinics,
		Bus:            bus,
		Metrics:        m,
		Stores:         stores,
	}, nil
}
