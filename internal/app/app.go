// Package app assembles the Sotto pipeline from configuration: the passage
// store, retrieval and answer engines, the copilot session runner, and the
// HTTP surface (overlay websocket, health, metrics, session API).
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sotto-ai/sotto/internal/answer"
	"github.com/sotto-ai/sotto/internal/config"
	"github.com/sotto-ai/sotto/internal/copilot"
	"github.com/sotto-ai/sotto/internal/detect"
	"github.com/sotto-ai/sotto/internal/health"
	"github.com/sotto-ai/sotto/internal/hotctx"
	"github.com/sotto-ai/sotto/internal/observe"
	"github.com/sotto-ai/sotto/internal/retrieval"
	"github.com/sotto-ai/sotto/pkg/audio"
	"github.com/sotto-ai/sotto/pkg/display/overlayws"
	"github.com/sotto-ai/sotto/pkg/provider/embeddings"
	"github.com/sotto-ai/sotto/pkg/provider/stt"
	"github.com/sotto-ai/sotto/pkg/provider/textgen"
	"github.com/sotto-ai/sotto/pkg/vectorstore"
	"github.com/sotto-ai/sotto/pkg/vectorstore/memstore"
	"github.com/sotto-ai/sotto/pkg/vectorstore/postgres"
)

// Providers bundles the concrete provider implementations selected by the
// configuration.
type Providers struct {
	Audio      audio.Source
	STT        stt.Provider
	Embeddings embeddings.Provider
	TextGen    textgen.Provider
}

// App owns the assembled pipeline and its HTTP surface.
type App struct {
	cfg     *config.Config
	metrics *observe.Metrics
	logger  *slog.Logger

	store      vectorstore.Store
	storeClose func()
	retriever  *retrieval.Engine
	overlay    *overlayws.Sink
	copilot    *copilot.Copilot
	server     *http.Server
}

// Option configures an App.
type Option func(*App)

// WithMetrics overrides the default metrics instance.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) {
		a.metrics = m
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		a.logger = logger
	}
}

// New builds the full pipeline from cfg and providers. All four providers
// are required. When a documents directory is configured it is indexed
// before New returns.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers.Audio == nil {
		return nil, errors.New("app: audio source is required")
	}
	if providers.STT == nil {
		return nil, errors.New("app: stt provider is required")
	}
	if providers.Embeddings == nil {
		return nil, errors.New("app: embeddings provider is required")
	}
	if providers.TextGen == nil {
		return nil, errors.New("app: textgen provider is required")
	}

	a := &App{
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initStore(ctx); err != nil {
		return nil, err
	}

	retriever := retrieval.New(providers.Embeddings, a.store, retrievalOptions(cfg)...)
	a.retriever = retriever

	if cfg.Documents.Dir != "" {
		indexerOpts := []retrieval.IndexerOption{retrieval.WithIndexerLogger(a.logger)}
		if cfg.Documents.MaxChunkChars > 0 {
			indexerOpts = append(indexerOpts, retrieval.WithMaxChunkChars(cfg.Documents.MaxChunkChars))
		}
		indexer := retrieval.NewIndexer(providers.Embeddings, a.store, indexerOpts...)
		n, err := indexer.IndexDir(ctx, cfg.Documents.Dir)
		if err != nil {
			return nil, fmt.Errorf("app: indexing documents: %w", err)
		}
		a.logger.Info("documents indexed", "dir", cfg.Documents.Dir, "passages", n)
	}

	answerOpts := []answer.Option{answer.WithLogger(a.logger)}
	if cfg.Answer.Temperature > 0 {
		answerOpts = append(answerOpts, answer.WithTemperature(cfg.Answer.Temperature))
	}
	if cfg.Answer.MaxTokens > 0 {
		answerOpts = append(answerOpts, answer.WithMaxTokens(cfg.Answer.MaxTokens))
	}
	answerer := answer.New(retriever, providers.TextGen, answerOpts...)

	a.overlay = overlayws.New(overlayws.WithLogger(a.logger))

	checkers := a.prerequisites(providers.Audio)
	a.copilot = copilot.New(providers.Audio, providers.STT, answerer, a.overlay,
		copilot.WithChunkDuration(secondsToDuration(cfg.Engine.ChunkSeconds)),
		copilot.WithSilenceThreshold(cfg.Engine.SilenceThreshold),
		copilot.WithDetector(detect.New(
			detect.WithSilenceDuration(secondsToDuration(cfg.Engine.SilenceSeconds)),
		)),
		copilot.WithContextWindow(hotctx.New(
			hotctx.WithRetention(secondsToDuration(cfg.Engine.ContextWindowSeconds)),
		)),
		copilot.WithLanguage(optString(cfg.Providers.STT.Options, "language")),
		copilot.WithSessionDir(cfg.Sessions.LogDir),
		copilot.WithPrerequisites(checkers...),
		copilot.WithMetrics(a.metrics),
		copilot.WithLogger(a.logger),
	)

	if cfg.Server.ListenAddr != "" {
		a.server = &http.Server{
			Addr:              cfg.Server.ListenAddr,
			Handler:           a.routes(checkers),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	return a, nil
}

// initStore opens the pgvector-backed store, or an in-memory store when no
// DSN is configured.
func (a *App) initStore(ctx context.Context) error {
	dims := a.cfg.Store.EmbeddingDimensions
	if a.cfg.Store.PostgresDSN != "" {
		pg, err := postgres.New(ctx, a.cfg.Store.PostgresDSN, dims)
		if err != nil {
			return fmt.Errorf("app: opening passage store: %w", err)
		}
		a.store = pg
		a.storeClose = pg.Close
		a.logger.Info("passage store ready", "backend", "postgres", "dimensions", dims)
		return nil
	}

	mem, err := memstore.New(dims)
	if err != nil {
		return fmt.Errorf("app: opening passage store: %w", err)
	}
	a.store = mem
	a.logger.Info("passage store ready", "backend", "memory", "dimensions", dims)
	return nil
}

// prerequisites builds the session preflight checks from the configured
// providers, the audio source, and the passage store.
func (a *App) prerequisites(src audio.Source) []health.Checker {
	checkers := []health.Checker{health.AudioSource(src)}
	if a.cfg.Providers.TextGen.Name == "ollama" && a.cfg.Providers.TextGen.BaseURL != "" {
		checkers = append(checkers, health.Ollama(a.cfg.Providers.TextGen.BaseURL, nil))
	}
	if a.cfg.Providers.STT.Name == "whisper" && a.cfg.Providers.STT.BaseURL != "" {
		checkers = append(checkers, health.WhisperServer(a.cfg.Providers.STT.BaseURL, nil))
	}
	checkers = append(checkers, health.DocumentsIndexed(a.store))
	return checkers
}

// routes builds the HTTP handler tree. The overlay websocket is mounted
// outside the observability middleware: the middleware's response wrapper
// does not implement http.Hijacker, which the websocket upgrade needs.
func (a *App) routes(checkers []health.Checker) http.Handler {
	api := http.NewServeMux()
	health.New(checkers...).Register(api)
	api.Handle("GET /metrics", promhttp.Handler())
	api.HandleFunc("GET /api/status", a.handleStatus)
	api.HandleFunc("GET /api/prerequisites", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, health.RunChecks(r.Context(), checkers...))
	})
	api.HandleFunc("GET /api/context", a.handleContext)
	api.HandleFunc("GET /api/engine", func(w http.ResponseWriter, r *http.Request) {
		stats, err := a.retriever.Stats(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, stats)
	})
	api.HandleFunc("POST /api/session/start", a.handleSessionStart)
	api.HandleFunc("POST /api/session/stop", a.handleSessionStop)

	root := http.NewServeMux()
	root.Handle("/overlay", a.overlay)
	root.Handle("/", observe.Middleware(a.metrics)(api))
	return root
}

func (a *App) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.copilot.Status())
}

// handleContext returns the recent transcript window. An optional "seconds"
// query parameter narrows the range; the default is the full context window.
func (a *App) handleContext(w http.ResponseWriter, r *http.Request) {
	d := secondsToDuration(a.cfg.Engine.ContextWindowSeconds)
	if raw := r.URL.Query().Get("seconds"); raw != "" {
		secs, err := strconv.ParseFloat(raw, 64)
		if err != nil || secs <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "seconds must be a positive number"})
			return
		}
		d = secondsToDuration(secs)
	}
	writeJSON(w, http.StatusOK, map[string]string{"context": a.copilot.RecentContext(d)})
}

func (a *App) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	err := a.copilot.Start(r.Context())
	switch {
	case errors.Is(err, copilot.ErrAlreadyActive):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case err != nil:
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusOK, a.copilot.Status())
	}
}

func (a *App) handleSessionStop(w http.ResponseWriter, r *http.Request) {
	err := a.copilot.Stop(r.Context())
	switch {
	case errors.Is(err, copilot.ErrNotActive):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusOK, a.copilot.Status())
	}
}

// Copilot exposes the session runner, mainly for tests.
func (a *App) Copilot() *copilot.Copilot {
	return a.copilot
}

// Run starts the HTTP server and the interview session, then blocks until
// ctx is cancelled or the server fails. A refused session start is not
// fatal as long as the HTTP surface is up: the user can fix the reported
// prerequisites and start a session through the API.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	if a.server != nil {
		go func() {
			a.logger.Info("http server listening", "addr", a.server.Addr)
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	if err := a.copilot.Start(ctx); err != nil {
		if a.server == nil {
			return err
		}
		a.logger.Warn("session not started, waiting for prerequisites", "err", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("app: http server: %w", err)
	}
}

// Shutdown stops the session, the HTTP server, the overlay, and the store.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error

	if err := a.copilot.Stop(ctx); err != nil && !errors.Is(err, copilot.ErrNotActive) {
		errs = append(errs, err)
	}
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.overlay.Close(); err != nil {
		errs = append(errs, err)
	}
	if a.storeClose != nil {
		a.storeClose()
	}

	return errors.Join(errs...)
}

func retrievalOptions(cfg *config.Config) []retrieval.Option {
	opts := []retrieval.Option{}
	if cfg.Retrieval.TopK > 0 {
		opts = append(opts, retrieval.WithTopK(cfg.Retrieval.TopK))
	}
	if cfg.Retrieval.CacheSize != 0 {
		size := cfg.Retrieval.CacheSize
		if size < 0 {
			size = 0
		}
		opts = append(opts, retrieval.WithCacheSize(size))
	}
	return opts
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// optString extracts a string value from a provider Options map.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	s, _ := opts[key].(string)
	return s
}
