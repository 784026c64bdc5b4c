// Package copilot wires the full interview pipeline together: audio capture,
// chunked transcription, question detection, answer generation, and the
// overlay display. It owns the session lifecycle.
package copilot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/sotto-ai/sotto/internal/answer"
	"github.com/sotto-ai/sotto/internal/detect"
	"github.com/sotto-ai/sotto/internal/health"
	"github.com/sotto-ai/sotto/internal/hotctx"
	"github.com/sotto-ai/sotto/internal/observe"
	"github.com/sotto-ai/sotto/internal/sessionlog"
	"github.com/sotto-ai/sotto/pkg/audio"
	"github.com/sotto-ai/sotto/pkg/display"
	"github.com/sotto-ai/sotto/pkg/provider/stt"
)

// ErrAlreadyActive is returned by Start when a session is running.
var ErrAlreadyActive = errors.New("copilot: session already active")

// ErrNotActive is returned by Stop when no session is running.
var ErrNotActive = errors.New("copilot: no active session")

// DefaultSilenceThreshold is the peak amplitude below which a window is
// skipped without transcription.
const DefaultSilenceThreshold = 0.01

// DefaultGenerationWorkers bounds how many answers may be generated
// concurrently. Overlapping questions each run to completion; the overlay
// shows whichever question was detected last.
const DefaultGenerationWorkers = 2

// DefaultStopGrace bounds how long Stop waits for in-flight answer
// generations before persisting the session log without them.
const DefaultStopGrace = 3 * time.Second

// drainTimeout bounds how long Stop lets queued windows finish transcribing
// before cancelling the loop outright.
const drainTimeout = 10 * time.Second

// maxQuestionPreview caps the question text shown on the loading card.
const maxQuestionPreview = 100

// Answerer generates an answer for a detected question.
type Answerer interface {
	Generate(ctx context.Context, question string) answer.Answer
}

// Copilot runs interview sessions over a fixed set of pipeline components.
// All methods are safe for concurrent use.
type Copilot struct {
	source      audio.Source
	transcriber stt.Provider
	answerer    Answerer
	sink        display.Sink

	detector *detect.Detector
	window   *hotctx.Window
	metrics  *observe.Metrics
	logger   *slog.Logger

	silenceThreshold float64
	chunkDuration    time.Duration
	workers          int64
	stopGrace        time.Duration
	language         string
	sessionDir       string
	prereqs          []health.Checker

	// lifecycle serialises Start and Stop without blocking Status.
	lifecycle sync.Mutex

	mu           sync.Mutex
	active       bool
	session      uint64
	cancel       context.CancelFunc
	group        *errgroup.Group
	capture      *audio.Capture
	sessions     *sessionlog.Log
	genWG        *sync.WaitGroup
	startedAt    time.Time
	lastDuration time.Duration

	transcribed atomic.Uint64
	answered    atomic.Uint64
	questionSeq atomic.Uint64
}

// Option configures a Copilot.
type Option func(*Copilot)

// WithSilenceThreshold overrides DefaultSilenceThreshold.
func WithSilenceThreshold(v float64) Option {
	return func(c *Copilot) {
		if v >= 0 {
			c.silenceThreshold = v
		}
	}
}

// WithChunkDuration sets the transcription window length.
func WithChunkDuration(d time.Duration) Option {
	return func(c *Copilot) {
		if d > 0 {
			c.chunkDuration = d
		}
	}
}

// WithGenerationWorkers overrides DefaultGenerationWorkers.
func WithGenerationWorkers(n int) Option {
	return func(c *Copilot) {
		if n > 0 {
			c.workers = int64(n)
		}
	}
}

// WithStopGrace overrides DefaultStopGrace.
func WithStopGrace(d time.Duration) Option {
	return func(c *Copilot) {
		if d >= 0 {
			c.stopGrace = d
		}
	}
}

// WithLanguage sets the transcription language hint.
func WithLanguage(lang string) Option {
	return func(c *Copilot) {
		c.language = lang
	}
}

// WithDetector replaces the default question detector.
func WithDetector(d *detect.Detector) Option {
	return func(c *Copilot) {
		c.detector = d
	}
}

// WithContextWindow replaces the default rolling transcript window.
func WithContextWindow(w *hotctx.Window) Option {
	return func(c *Copilot) {
		c.window = w
	}
}

// WithMetrics sets the metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Copilot) {
		c.metrics = m
	}
}

// WithSessionDir enables session log persistence into dir.
func WithSessionDir(dir string) Option {
	return func(c *Copilot) {
		c.sessionDir = dir
	}
}

// WithPrerequisites sets checks that must pass before a session starts.
func WithPrerequisites(checkers ...health.Checker) Option {
	return func(c *Copilot) {
		c.prereqs = checkers
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Copilot) {
		c.logger = logger
	}
}

// New assembles a Copilot from its pipeline components.
func New(source audio.Source, transcriber stt.Provider, answerer Answerer, sink display.Sink, opts ...Option) *Copilot {
	c := &Copilot{
		source:           source,
		transcriber:      transcriber,
		answerer:         answerer,
		sink:             sink,
		detector:         detect.New(),
		window:           hotctx.New(),
		logger:           slog.Default(),
		silenceThreshold: DefaultSilenceThreshold,
		workers:          DefaultGenerationWorkers,
		stopGrace:        DefaultStopGrace,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// Start begins an interview session. It verifies all prerequisites, makes
// the overlay visible, and starts consuming audio. The session runs until
// [Copilot.Stop] is called, ctx is cancelled, or the audio source halts.
func (c *Copilot) Start(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	active := c.active
	c.mu.Unlock()
	if active {
		return ErrAlreadyActive
	}

	if err := health.CheckAll(ctx, c.prereqs...); err != nil {
		return fmt.Errorf("copilot: prerequisites not met: %w", err)
	}

	captureOpts := []audio.CaptureOption{audio.WithCaptureLogger(c.logger)}
	if c.chunkDuration > 0 {
		captureOpts = append(captureOpts, audio.WithChunkDuration(c.chunkDuration))
	}
	capture := audio.NewCapture(c.source, captureOpts...)

	runCtx, cancel := context.WithCancel(context.Background())
	if err := capture.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("copilot: starting capture: %w", err)
	}

	if err := c.sink.Show(ctx); err != nil {
		c.logger.Warn("overlay show failed", "err", err)
	}
	if err := c.sink.Clear(ctx); err != nil {
		c.logger.Warn("overlay clear failed", "err", err)
	}

	var sessions *sessionlog.Log
	if c.sessionDir != "" {
		sessions = sessionlog.New(c.sessionDir)
	}

	g, gctx := errgroup.WithContext(runCtx)
	sem := semaphore.NewWeighted(c.workers)
	genWG := &sync.WaitGroup{}

	c.mu.Lock()
	c.session++
	session := c.session
	c.cancel = cancel
	c.group = g
	c.capture = capture
	c.sessions = sessions
	c.genWG = genWG
	c.startedAt = time.Now()
	c.active = true
	c.mu.Unlock()

	c.transcribed.Store(0)
	c.answered.Store(0)
	c.window.Reset()
	c.metrics.ActiveSessions.Add(ctx, 1)

	g.Go(func() error {
		c.run(gctx, capture, sem, session, genWG, sessions)
		return nil
	})

	c.logger.Info("interview session started")
	return nil
}

// Stop ends the running session: capture stops, queued windows drain within
// a bounded window, and in-flight answer generations get a short grace
// period so their answers make the session log. Generations still running
// when Stop returns complete in the background without touching the overlay.
func (c *Copilot) Stop(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return ErrNotActive
	}
	c.active = false
	duration := time.Since(c.startedAt)
	c.lastDuration = duration
	capture, group, cancel := c.capture, c.group, c.cancel
	genWG, sessions := c.genWG, c.sessions
	c.mu.Unlock()

	// Stopping capture closes the window channel, so the run loop drains
	// whatever is queued and exits. Cancel outright if the drain stalls on a
	// slow transcription call.
	capture.Stop()
	if !waitTimeout(func() { _ = group.Wait() }, drainTimeout) {
		c.logger.Warn("window drain timed out, cancelling transcription")
		cancel()
		_ = group.Wait()
	} else {
		cancel()
	}

	c.finish(ctx, capture, genWG, sessions)

	c.logger.Info("interview session stopped",
		"duration", duration,
		"questions_answered", c.answered.Load(),
	)
	return nil
}

// finish completes session teardown once the run loop has exited: a bounded
// grace wait for in-flight generations, drop accounting, session log
// persistence, and hiding the overlay.
func (c *Copilot) finish(ctx context.Context, capture *audio.Capture, genWG *sync.WaitGroup, sessions *sessionlog.Log) {
	if !waitTimeout(genWG.Wait, c.stopGrace) {
		c.logger.Warn("answer generation still in flight, leaving it to finish in the background")
	}

	if dropped := capture.Dropped(); dropped > 0 {
		c.metrics.WindowsDropped.Add(ctx, int64(dropped))
		c.logger.Warn("windows dropped during session", "count", dropped)
	}

	if sessions != nil {
		path, err := sessions.Persist()
		switch {
		case err != nil:
			c.logger.Error("failed to persist session log", "err", err)
		case path == "":
			c.logger.Info("no questions answered, skipping session log")
		default:
			c.logger.Info("session log saved", "path", path)
		}
	}

	if err := c.sink.Hide(ctx); err != nil {
		c.logger.Warn("overlay hide failed", "err", err)
	}
	c.metrics.ActiveSessions.Add(ctx, -1)
}

// failSession ends the session from inside the run loop after the audio
// source halted on its own. When Stop is in progress the active flag is
// already down and teardown belongs to Stop.
func (c *Copilot) failSession(capture *audio.Capture, genWG *sync.WaitGroup, sessions *sessionlog.Log) {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.active = false
	c.lastDuration = time.Since(c.startedAt)
	cancel := c.cancel
	c.mu.Unlock()

	c.logger.Error("audio capture halted, session marked inactive")
	cancel()
	c.finish(context.Background(), capture, genWG, sessions)
}

// Status describes the current session. After a session ends, the duration
// and counters of the last session are reported.
type Status struct {
	Active            bool          `json:"active"`
	ChunksProcessed   uint64        `json:"chunks_processed"`
	QuestionsAnswered uint64        `json:"questions_answered"`
	WindowsDropped    uint64        `json:"windows_dropped"`
	SessionDuration   time.Duration `json:"session_duration"`
	AudioLevel        float64       `json:"audio_level"`
}

// Status returns a snapshot of the session state.
func (c *Copilot) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Status{
		Active:            c.active,
		ChunksProcessed:   c.transcribed.Load(),
		QuestionsAnswered: c.answered.Load(),
	}
	if c.capture != nil {
		s.WindowsDropped = c.capture.Dropped()
	}
	if c.active {
		s.SessionDuration = time.Since(c.startedAt)
		s.AudioLevel = c.capture.Level()
	} else {
		s.SessionDuration = c.lastDuration
	}
	return s
}

// RecentContext returns the transcript text heard in the last d, space
// joined and oldest first. Asking for more than the configured context
// window returns only what is retained.
func (c *Copilot) RecentContext(d time.Duration) string {
	return c.window.RecentFor(d)
}

// run consumes capture windows until the channel closes or ctx is cancelled.
// A channel close without a Stop in progress means the source died; the
// session is then marked inactive and torn down here.
func (c *Copilot) run(ctx context.Context, capture *audio.Capture, sem *semaphore.Weighted, session uint64, genWG *sync.WaitGroup, sessions *sessionlog.Log) {
	for {
		select {
		case <-ctx.Done():
			return
		case w, ok := <-capture.Windows():
			if !ok {
				c.failSession(capture, genWG, sessions)
				return
			}
			c.processWindow(ctx, w, sem, session, genWG, sessions)
		}
	}
}

// processWindow transcribes one audio window and dispatches answer
// generation when it contains a question.
func (c *Copilot) processWindow(ctx context.Context, w audio.Window, sem *semaphore.Weighted, session uint64, genWG *sync.WaitGroup, sessions *sessionlog.Log) {
	c.metrics.AudioLevel.Record(ctx, audio.RMS(w.Samples))

	if audio.Peak(w.Samples) < c.silenceThreshold {
		c.metrics.RecordWindow(ctx, "silent")
		return
	}

	start := time.Now()
	res, err := c.transcriber.Transcribe(ctx, stt.Request{
		Samples:    w.Samples,
		SampleRate: w.SampleRate,
		Language:   c.language,
	})
	c.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		c.metrics.RecordProviderError(ctx, "stt", "transcribe")
		c.logger.Error("transcription failed", "err", err)
		return
	}

	text := strings.TrimSpace(res.Text)
	if text == "" {
		c.metrics.RecordWindow(ctx, "empty")
		return
	}
	c.transcribed.Add(1)
	c.metrics.RecordWindow(ctx, "transcribed")

	isQuestion := c.detector.IsQuestion(text)
	c.window.Append(text, isQuestion)
	c.logger.Info("transcript", "text", text, "question", isQuestion)
	if !isQuestion {
		return
	}

	c.metrics.QuestionsDetected.Add(ctx, 1)
	seq := c.questionSeq.Add(1)

	// The goroutine queues on the semaphore itself and runs on a detached
	// context, so a saturated worker pool or a slow generation can never
	// stall this loop, and in-flight answers survive Stop.
	genWG.Add(1)
	go func() {
		defer genWG.Done()
		genCtx := context.WithoutCancel(ctx)
		if err := sem.Acquire(genCtx, 1); err != nil {
			return
		}
		defer sem.Release(1)
		c.handleQuestion(genCtx, text, seq, session, sessions)
	}()
}

// handleQuestion generates and displays an answer for one question. When
// questions overlap, every answer is generated and logged but only the most
// recently detected question updates the overlay. Answers that complete
// after their session ended never touch the overlay.
func (c *Copilot) handleQuestion(ctx context.Context, question string, seq uint64, session uint64, sessions *sessionlog.Log) {
	if c.isLatest(seq) && c.sessionLive(session) {
		c.showLoading(ctx, question)
	}

	start := time.Now()
	ans := c.answerer.Generate(ctx, question)
	c.metrics.GenerationDuration.Record(ctx, time.Since(start).Seconds())

	if ans.Err != nil {
		c.metrics.RecordProviderError(ctx, "textgen", "generate")
		c.logger.Error("answer generation degraded", "question", question, "err", ans.Err)
	}
	c.metrics.RecordAnswer(ctx, ans.Confidence, ans.ContextUsed)

	if c.isLatest(seq) && c.sessionLive(session) {
		s := display.Suggestion{
			Question:   question,
			Answer:     ans.Text,
			Confidence: ans.Confidence,
			Sources:    ans.Sources,
			Tips: []string{
				"60-90 seconds recommended",
				"Use STAR method (Situation, Task, Action, Result)",
			},
			Created: time.Now(),
		}
		if err := c.sink.ShowSuggestion(ctx, s); err != nil {
			c.logger.Warn("overlay update failed", "err", err)
		}
	}

	if sessions != nil {
		sessions.Record(sessionlog.Entry{
			Question:       question,
			Answer:         ans.Text,
			Confidence:     ans.Confidence,
			Sources:        ans.Sources,
			ContextUsed:    ans.ContextUsed,
			GenerationTime: ans.GenerationTime.Seconds(),
		})
	}

	if c.sameSession(session) {
		c.answered.Add(1)
	}
	c.logger.Info("answer generated",
		"question", question,
		"confidence", ans.Confidence,
		"elapsed", time.Since(start),
	)
}

// showLoading puts an interim card on the overlay while generation runs.
func (c *Copilot) showLoading(ctx context.Context, question string) {
	preview := question
	if len(preview) > maxQuestionPreview {
		cut := maxQuestionPreview
		for cut > 0 && !utf8.RuneStart(preview[cut]) {
			cut--
		}
		preview = preview[:cut] + "..."
	}
	s := display.Suggestion{
		Question: preview,
		Loading:  true,
		Tips: []string{
			"Please wait...",
			"Searching documents and generating response",
		},
		Created: time.Now(),
	}
	if err := c.sink.ShowSuggestion(ctx, s); err != nil {
		c.logger.Warn("overlay update failed", "err", err)
	}
}

// isLatest reports whether seq is the most recently detected question.
func (c *Copilot) isLatest(seq uint64) bool {
	return c.questionSeq.Load() == seq
}

// sessionLive reports whether the session a generation was dispatched from
// still owns the overlay.
func (c *Copilot) sessionLive(id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active && c.session == id
}

// sameSession reports whether id is the most recently started session.
func (c *Copilot) sameSession(id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session == id
}

// waitTimeout runs wait and reports whether it returned within d.
func waitTimeout(wait func(), d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}
