// Command vaani runs the conversational voice pipeline server: WebSocket
// session handling, the REST management API, and the Prometheus metrics
// endpoint, all on a single listener.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/vaani-ai/vaani/internal/app"
	"github.com/vaani-ai/vaani/internal/cache"
	"github.com/vaani-ai/vaani/internal/config"
	"github.com/vaani-ai/vaani/internal/cost"
	"github.com/vaani-ai/vaani/internal/guardrail"
	"github.com/vaani-ai/vaani/internal/interrupt"
	"github.com/vaani-ai/vaani/internal/observe"
	"github.com/vaani-ai/vaani/internal/rag"
	"github.com/vaani-ai/vaani/internal/resilience"
	"github.com/vaani-ai/vaani/internal/secrets"
	"github.com/vaani-ai/vaani/internal/server"
	"github.com/vaani-ai/vaani/internal/store"
	"github.com/vaani-ai/vaani/internal/store/memstore"
	"github.com/vaani-ai/vaani/internal/store/postgres"
	"github.com/vaani-ai/vaani/internal/transcript"
	"github.com/vaani-ai/vaani/internal/turn"
	asrsarvam "github.com/vaani-ai/vaani/pkg/provider/asr/sarvam"
	embopenai "github.com/vaani-ai/vaani/pkg/provider/embeddings/openai"
	"github.com/vaani-ai/vaani/pkg/provider/llm/anyllm"
	llmsarvam "github.com/vaani-ai/vaani/pkg/provider/llm/sarvam"
	trsarvam "github.com/vaani-ai/vaani/pkg/provider/translate/sarvam"
	"github.com/vaani-ai/vaani/pkg/provider/tts"
	"github.com/vaani-ai/vaani/pkg/provider/tts/elevenlabs"
	ttssarvam "github.com/vaani-ai/vaani/pkg/provider/tts/sarvam"
	"github.com/vaani-ai/vaani/pkg/voices"
)

// version is stamped by the release build via -ldflags.
var version = "dev"

const (
	defaultListenAddr     = ":8080"
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultAnthropicModel = "claude-3-5-haiku-latest"
	shutdownGrace         = 15 * time.Second
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// A .env file is a development convenience; its absence is not an error.
	_ = godotenv.Load()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	addr := cfg.Server.ListenAddr
	if addr == "" {
		addr = defaultListenAddr
	}

	slog.Info("vaani starting",
		"version", version,
		"config", *configPath,
		"listen_addr", addr,
		"log_level", cfg.Server.LogLevel,
	)

	// Fail fast on unusable key material rather than on the first secret
	// sealed at runtime.
	if _, err := secrets.New(cfg.Server.EncryptionKey); err != nil {
		slog.Error("invalid encryption key", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "vaani",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	metrics := observe.DefaultMetrics()

	// ── Store ─────────────────────────────────────────────────────────────────
	var (
		st store.Store
		pg *postgres.Store
	)
	if cfg.PostgresEnabled() {
		pg, err = postgres.New(ctx, cfg.Store.PostgresDSN, cfg.Store.EmbeddingDimensions)
		if err != nil {
			slog.Error("failed to connect to postgres", "err", err)
			return 1
		}
		defer pg.Close()
		st = pg
		slog.Info("using postgres store")
	} else {
		st = memstore.New()
		slog.Info("using in-memory store; sessions will not survive a restart")
	}

	// ── Providers ─────────────────────────────────────────────────────────────
	providers, err := buildProviders(cfg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}
	printProviderSummary(providers)

	var retriever *rag.Retriever
	if pg != nil && providers.embedder != nil {
		retriever = rag.New(rag.NewPgIndex(pg.Pool()), providers.embedder)
		slog.Info("knowledge retrieval enabled")
	}

	// ── Pipeline ──────────────────────────────────────────────────────────────
	costs := cost.New(cost.WithRepository(st.Costs()))
	fabric := interrupt.New(interrupt.WithLogger(logger))
	registry := voices.New(voices.WithLogger(logger))

	turnCfg := turn.Config{
		Synth:     providers.synth,
		Voices:    registry,
		Guardrail: guardrail.New(),
		LLMCache:  cache.NewLLMCache(),
		TTSCache:  cache.NewTTSCache(),
		Costs:     costs,
		Store:     st,
		Fabric:    fabric,
		Retriever: retriever,
		Corrector: transcript.NewCorrector(cfg.Transcript.DomainTerms),
		Metrics:   metrics,
		Logger:    logger,
	}
	// Assign interface fields only from live providers so the orchestrator's
	// nil checks keep working.
	if providers.asr != nil {
		turnCfg.ASR = providers.asr
	}
	if providers.llm != nil {
		turnCfg.LLM = providers.llm
	}
	if providers.translator != nil {
		turnCfg.Translator = providers.translator
	}
	orc := turn.New(turnCfg)

	manager := app.NewManager(app.ManagerConfig{
		Runner:      orc,
		Store:       st,
		Fabric:      fabric,
		DefaultTier: cfg.Session.DefaultTier,
		IdleTimeout: cfg.Session.IdleTimeout.Std(),
		Metrics:     metrics,
		Logger:      logger,
	})
	go manager.Janitor(ctx)

	// ── HTTP surface ──────────────────────────────────────────────────────────
	srv := server.New(server.Config{
		Store:        st,
		Costs:        costs,
		Voices:       registry,
		Preview:      providers.previewTTS,
		TTSProviders: providers.ttsProviders,
		LLMProviders: providers.llmNames,
		WS:           manager.ServeWS,
		APIKey:       cfg.Server.APIKey,
		Limiter:      app.NewLimiter(budgetsFromConfig(cfg)),
		Metrics:      metrics,
		Logger:       logger,
	})

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()

	slog.Info("server ready — press Ctrl+C to shut down", "addr", addr)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("listen error", "err", err)
			return 1
		}
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown error", "err", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}
	slog.Info("goodbye")
	return 0
}

// loadConfig reads the YAML file at path, falling back to environment-only
// configuration when the file does not exist.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return config.FromEnv()
	}
	return cfg, err
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// pipelineProviders bundles every constructed provider for orchestrator and
// API wiring.
type pipelineProviders struct {
	asr        *resilience.ASRFallback
	llm        *resilience.LLMFallback
	synth      turn.Synthesizer
	translator *trsarvam.Provider
	embedder   *embopenai.Provider

	previewTTS   tts.Provider
	ttsProviders []tts.Provider
	llmNames     []string
}

// buildProviders constructs every provider the configuration enables. A
// provider whose credentials are absent is simply left out; the pipeline
// degrades per stage rather than refusing to start.
func buildProviders(cfg *config.Config) (*pipelineProviders, error) {
	p := &pipelineProviders{}
	fallbackCfg := resilience.FallbackConfig{}

	if cfg.SarvamEnabled() {
		key := cfg.Providers.Sarvam.APIKey

		var asrOpts []asrsarvam.Option
		var llmOpts []llmsarvam.Option
		var ttsOpts []ttssarvam.Option
		var trOpts []trsarvam.Option
		if base := cfg.Providers.Sarvam.BaseURL; base != "" {
			asrOpts = append(asrOpts, asrsarvam.WithEndpoint(base))
			llmOpts = append(llmOpts, llmsarvam.WithEndpoint(base))
			ttsOpts = append(ttsOpts, ttssarvam.WithEndpoint(base))
			trOpts = append(trOpts, trsarvam.WithEndpoint(base))
		}

		asrProv, err := asrsarvam.New(key, asrOpts...)
		if err != nil {
			return nil, fmt.Errorf("sarvam asr: %w", err)
		}
		p.asr = resilience.NewASRFallback(asrProv, fallbackCfg)

		llmProv, err := llmsarvam.New(key, llmOpts...)
		if err != nil {
			return nil, fmt.Errorf("sarvam llm: %w", err)
		}
		p.llm = resilience.NewLLMFallback(llmProv, fallbackCfg)
		p.llmNames = append(p.llmNames, llmProv.Name())

		ttsProv, err := ttssarvam.New(key, ttsOpts...)
		if err != nil {
			return nil, fmt.Errorf("sarvam tts: %w", err)
		}
		synth := resilience.NewTTSFallback(ttsProv, fallbackCfg)
		p.synth = synth
		p.previewTTS = ttsProv
		p.ttsProviders = append(p.ttsProviders, ttsProv)

		trProv, err := trsarvam.New(key, trOpts...)
		if err != nil {
			return nil, fmt.Errorf("sarvam translate: %w", err)
		}
		p.translator = trProv
	}

	if cfg.ElevenLabsEnabled() {
		elProv, err := elevenlabs.New(cfg.Providers.ElevenLabs.APIKey)
		if err != nil {
			return nil, fmt.Errorf("elevenlabs tts: %w", err)
		}
		p.ttsProviders = append(p.ttsProviders, elProv)
		if synth, ok := p.synth.(*resilience.TTSFallback); ok {
			synth.AddFallback(elProv)
		} else {
			// ElevenLabs alone still gives the pipeline a voice.
			p.synth = resilience.NewTTSFallback(elProv, fallbackCfg)
			p.previewTTS = elProv
		}
	}

	if cfg.OpenAIEnabled() {
		key := cfg.Providers.OpenAI.APIKey
		model := cfg.Providers.OpenAI.Model
		if model == "" {
			model = defaultOpenAIModel
		}

		oaiLLM, err := anyllm.NewOpenAI(model, anyllmlib.WithAPIKey(key))
		if err != nil {
			return nil, fmt.Errorf("openai llm: %w", err)
		}
		if p.llm != nil {
			p.llm.AddFallback(oaiLLM)
		} else {
			p.llm = resilience.NewLLMFallback(oaiLLM, fallbackCfg)
		}
		p.llmNames = append(p.llmNames, oaiLLM.Name())

		embProv, err := embopenai.New(key, "")
		if err != nil {
			return nil, fmt.Errorf("openai embeddings: %w", err)
		}
		p.embedder = embProv
	}

	if cfg.AnthropicEnabled() {
		model := cfg.Providers.Anthropic.Model
		if model == "" {
			model = defaultAnthropicModel
		}

		antLLM, err := anyllm.NewAnthropic(model, anyllmlib.WithAPIKey(cfg.Providers.Anthropic.APIKey))
		if err != nil {
			return nil, fmt.Errorf("anthropic llm: %w", err)
		}
		if p.llm != nil {
			p.llm.AddFallback(antLLM)
		} else {
			p.llm = resilience.NewLLMFallback(antLLM, fallbackCfg)
		}
		p.llmNames = append(p.llmNames, antLLM.Name())
	}

	return p, nil
}

func printProviderSummary(p *pipelineProviders) {
	var ttsNames []string
	for _, t := range p.ttsProviders {
		ttsNames = append(ttsNames, t.Name())
	}
	slog.Info("providers configured",
		"asr", p.asr != nil,
		"llm", p.llmNames,
		"tts", ttsNames,
		"translate", p.translator != nil,
		"embeddings", p.embedder != nil,
	)
}

// budgetsFromConfig starts from the default allowances and applies any
// explicit limits from configuration.
func budgetsFromConfig(cfg *config.Config) app.Budgets {
	b := app.DefaultBudgets()
	if cfg.Limits.PerMinute > 0 {
		b.Regular.PerMinute = cfg.Limits.PerMinute
	}
	if cfg.Limits.PerHour > 0 {
		b.Regular.PerHour = cfg.Limits.PerHour
	}
	if cfg.Limits.WSPerMinute > 0 {
		b.WebSocket.PerMinute = cfg.Limits.WSPerMinute
	}
	if cfg.Limits.WSPerHour > 0 {
		b.WebSocket.PerHour = cfg.Limits.WSPerHour
	}
	return b
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
