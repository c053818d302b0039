// Command concierge wires the pipeline, conversation store, egress
// queue, and their collaborators into a runnable process. It exposes a
// Processor whose ProcessMessage method is the entry point an external
// webhook layer would call for each inbound WhatsApp message —
// HTTP/webhook transport itself is out of scope for this module.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/healthconcierge/wa-concierge/pkg/clinic"
	"github.com/healthconcierge/wa-concierge/pkg/config"
	"github.com/healthconcierge/wa-concierge/pkg/convstore"
	"github.com/healthconcierge/wa-concierge/pkg/database"
	"github.com/healthconcierge/wa-concierge/pkg/evolution"
	"github.com/healthconcierge/wa-concierge/pkg/llmclient"
	"github.com/healthconcierge/wa-concierge/pkg/memory"
	"github.com/healthconcierge/wa-concierge/pkg/narrowing"
	"github.com/healthconcierge/wa-concierge/pkg/pipeline"
	"github.com/healthconcierge/wa-concierge/pkg/pipeline/steps"
	"github.com/healthconcierge/wa-concierge/pkg/version"
	"github.com/healthconcierge/wa-concierge/pkg/waqueue"
)

// Processor serializes turns for the same conversation through the
// pipeline and hands the reply off to the egress queue. Per-conversation
// serialization (spec.md §9's open question) is resolved here with an
// advisory mutex map keyed on clinic+phone (the session ID is not known
// before GetOrCreate), the same shape as the teacher's SessionRegistry.
type Processor struct {
	orchestrator *pipeline.Orchestrator

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewProcessor(orchestrator *pipeline.Orchestrator) *Processor {
	return &Processor{orchestrator: orchestrator, locks: make(map[string]*sync.Mutex)}
}

func (p *Processor) lockFor(key string) *sync.Mutex {
	p.locksMu.Lock()
	defer p.locksMu.Unlock()
	l, ok := p.locks[key]
	if !ok {
		l = &sync.Mutex{}
		p.locks[key] = l
	}
	return l
}

// ProcessMessage runs one inbound WhatsApp message through the pipeline,
// serialized against any other turn already in flight for the same
// clinic+phone conversation.
func (p *Processor) ProcessMessage(ctx context.Context, correlationID, organizationID, clinicID, phone string, channel convstore.Channel, text string) *pipeline.Context {
	lockKey := clinicID + "|" + phone
	if clinicID == "" {
		lockKey = "org:" + organizationID + "|" + phone
	}
	lock := p.lockFor(lockKey)
	lock.Lock()
	defer lock.Unlock()

	pc := pipeline.NewContext(correlationID, clinicID, phone, channel, text)
	pc.OrganizationID = organizationID
	return p.orchestrator.Execute(ctx, pc)
}

func main() {
	if err := godotenv.Load(filepath.Join(".", ".env")); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := slog.Default().With("component", "concierge")
	logger.Info("starting", "version", version.Full())
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storeBackend := getEnv("WA_STORE_BACKEND", "postgres")
	var store convstore.ConversationStore
	var clinicDirectory *clinic.PostgresDirectory

	if storeBackend == "memory" {
		logger.Warn("running with in-memory conversation store; not for production use")
		store = convstore.NewMemoryStore()
	} else {
		db, err := database.Open(ctx, database.Config{
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			Database:        cfg.Database.Database,
			SSLMode:         cfg.Database.SSLMode,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		})
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		defer db.Close()

		store = convstore.NewCachedStore(convstore.NewPostgresStore(db), 30*time.Second)
		clinicDirectory = clinic.NewPostgresDirectory(db)
	}

	redisOpts, err := redis.ParseURL(cfg.Queue.RedisURL)
	if err != nil {
		log.Fatalf("invalid REDIS_URL: %v", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	evolutionClient := evolution.New(cfg.Evolution.BaseURL, cfg.Evolution.APIKey, cfg.Evolution.HTTPTimeout)
	queue := waqueue.NewQueue(redisClient)
	manager := waqueue.NewManager(redisClient, evolutionClient, &cfg.Queue)
	go func() {
		if err := manager.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("egress manager stopped", "error", err)
		}
	}()

	memoryWriter := memory.NewBackgroundWriter(
		memory.NoopMemoryAdder{}, // Mem0 has no official Go SDK in the retrieved corpus; see DESIGN.md.
		memory.NewMetricsRecorder(cfg.Memory.LatencyWarning),
		cfg.Memory.QueueCapacity,
		time.Duration(cfg.Memory.Mem0TimeoutMS)*time.Millisecond,
	)
	defer memoryWriter.Close()

	llmProvider := llmclient.NewHTTPClient(
		getEnv("LLM_BASE_URL", "https://llm.example.com/v1"),
		os.Getenv("LLM_API_KEY"),
		steps.DefaultLLMTimeout,
	)

	var narrowingService *narrowing.Service
	if clinicDirectory != nil {
		narrowingService = narrowing.NewService(clinicDirectory)
	}

	orchestrator := buildOrchestrator(logger, store, clinicDirectory, memoryWriter, queue, llmProvider, narrowingService, cfg)
	processor := NewProcessor(orchestrator)
	_ = processor // the concrete call site lives in the external webhook layer

	logger.Info("concierge process ready",
		"store_backend", storeBackend,
		"fast_path_enabled", cfg.Flags.FastPathEnabled,
		"langgraph_lanes_enabled", cfg.Flags.LangGraphLanes,
	)

	<-ctx.Done()
	logger.Info("shutting down")
}

func buildOrchestrator(
	logger *slog.Logger,
	store convstore.ConversationStore,
	clinicDirectory *clinic.PostgresDirectory,
	memoryWriter memory.Writer,
	queue *waqueue.Queue,
	llmProvider llmclient.Provider,
	narrowingService *narrowing.Service,
	cfg *config.Config,
) *pipeline.Orchestrator {
	var resolver steps.OrganizationResolver
	var clinics clinic.ClinicDirectory
	var faqs clinic.FAQDirectory
	var patients clinic.PatientDirectory
	var instances steps.InstanceResolver
	if clinicDirectory != nil {
		resolver = clinicDirectory
		clinics = clinicDirectory
		faqs = clinicDirectory
		patients = clinicDirectory
		instances = clinicDirectory
	}

	pipelineSteps := []pipeline.Step{
		steps.NewSessionManagementStep(store, resolver, memoryWriter, 5*time.Minute),
		&steps.ControlModeGateStep{Store: store},
		&steps.ContextHydrationStep{Clinics: clinics, FAQs: faqs, Patients: patients, Store: store, HistoryLimit: 20},
		&steps.EscalationCheckStep{Store: store},
		&steps.RoutingStep{Store: store, FastPathEnabled: cfg.Flags.FastPathEnabled},
		&steps.ConstraintEnforcementStep{Store: store},
		&steps.NarrowingStep{Service: narrowingService},
		&steps.LangGraphExecutionStep{Enabled: cfg.Flags.LangGraphLanes, Lanes: map[string]bool{"COMPLEX": true}},
		&steps.LLMGenerationStep{Store: store, Provider: llmProvider, Timeout: steps.DefaultLLMTimeout},
		&steps.PostProcessingStep{Store: store, Writer: memoryWriter, Queue: queue, Instances: instances},
	}

	return pipeline.New(logger, pipelineSteps...)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
