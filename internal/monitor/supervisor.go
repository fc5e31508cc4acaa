package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/steveyegge/shepherd/internal/ai"
	"github.com/steveyegge/shepherd/internal/config"
	"github.com/steveyegge/shepherd/internal/events"
	"github.com/steveyegge/shepherd/internal/transcript"
)

// State is a ProjectSupervisor lifecycle state.
type State string

const (
	// StateWaitingLogs means the conversation log is not discoverable yet
	StateWaitingLogs State = "WAITING_LOGS"
	// StateIdle means the supervisor is polling with no analysis in flight
	StateIdle State = "IDLE"
	// StateAnalyzing means one analysis call is in flight
	StateAnalyzing State = "ANALYZING"
	// StateBackoff means a non-fatal error deferred the next dispatch
	StateBackoff State = "ERROR_BACKOFF"
	// StateStopped is terminal
	StateStopped State = "STOPPED"
)

// Source is the supervisor's view of the log reader, an interface so tests
// can script message batches.
type Source interface {
	Poll(ctx context.Context) (transcript.Batch, error)
	LogPath() string
}

// SupervisorConfig holds everything one project supervisor needs.
type SupervisorConfig struct {
	// ProjectID is the absolute project path being supervised
	ProjectID string
	// Settings is the persona seed plus ordered rule set
	Settings *config.Settings
	// Analyst performs the analysis calls
	Analyst ai.Analyst
	// Suggestions hands suggestions to the host tool's hook
	Suggestions *SuggestionWriter

	// ContextSize is the context window capacity K
	ContextSize int
	// HeartbeatEvery emits a heartbeat every N processed messages (0 disables)
	HeartbeatEvery int
	// PollInterval is the tick period (default 500ms)
	PollInterval time.Duration
	// PollTimeout bounds a single log poll (default 5s)
	PollTimeout time.Duration
	// InitialBackoff is the first ERROR_BACKOFF delay (default 2s)
	InitialBackoff time.Duration
	// MaxBackoff caps the exponential backoff delay (default 1m)
	MaxBackoff time.Duration
	// ShutdownGrace is how long an in-flight analysis may finish after
	// shutdown is requested (default 10s)
	ShutdownGrace time.Duration
	// Verbose enables debug output
	Verbose bool

	// OpenSource opens the log reader. Defaults to transcript.Open with
	// the host tool's default log root; tests inject fakes here.
	OpenSource func() (Source, error)
}

// analysisOutcome is the result of one analysis call, delivered back to the
// supervisor loop so ledger mutations stay on one goroutine.
type analysisOutcome struct {
	verdicts []ai.Verdict
	err      error
	// index is the highest message index in the analyzed snapshot
	index int64
}

// ProjectSupervisor is the per-project state machine composing the log
// source, context window, violation ledger, and analyst. All mutable state
// is owned by the Run goroutine; dispatch is serialized (at most one
// analysis call in flight), so verdicts and alerts are applied in strictly
// increasing message-index order.
type ProjectSupervisor struct {
	cfg    SupervisorConfig
	events chan<- *events.Event

	mu    sync.Mutex
	state State

	window *ContextWindow
	ledger *ViolationLedger
	source Source

	messagesProcessed    int64
	alertsSinceHeartbeat int
	alertsTotal          int64
	highestIndex         int64

	backoffDelay time.Duration
	backoffUntil time.Time

	// dirty means messages arrived since the last dispatch
	dirty bool

	pollErrReported bool

	analysisCancel context.CancelFunc
	resultCh       chan analysisOutcome
}

// NewProjectSupervisor creates a supervisor. Events flow to the shared
// orchestrator channel.
func NewProjectSupervisor(cfg SupervisorConfig, out chan<- *events.Event) (*ProjectSupervisor, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("project ID is required")
	}
	if cfg.Settings == nil {
		return nil, fmt.Errorf("settings are required")
	}
	if cfg.Analyst == nil {
		return nil, fmt.Errorf("analyst is required")
	}
	if cfg.Suggestions == nil {
		cfg.Suggestions = NewSuggestionWriter(config.DefaultStateDir(), false)
	}
	if cfg.ContextSize <= 0 {
		cfg.ContextSize = 10
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 5 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 2 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = time.Minute
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}
	if cfg.OpenSource == nil {
		projectID := cfg.ProjectID
		cfg.OpenSource = func() (Source, error) {
			return transcript.Open(projectID, "")
		}
	}

	return &ProjectSupervisor{
		cfg:      cfg,
		events:   out,
		state:    StateWaitingLogs,
		window:   NewContextWindow(cfg.ContextSize),
		ledger:   NewViolationLedger(),
		resultCh: make(chan analysisOutcome, 1),
	}, nil
}

// State returns the current lifecycle state.
func (s *ProjectSupervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *ProjectSupervisor) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Stats returns the cumulative counters for this project.
func (s *ProjectSupervisor) Stats() (messagesProcessed, alertsRaised int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messagesProcessed, s.alertsTotal
}

// Run drives the supervisor until ctx is canceled or a fatal error occurs.
// It never returns a recoverable error; those surface on the event stream.
func (s *ProjectSupervisor) Run(ctx context.Context) error {
	if err := s.waitForLog(ctx); err != nil {
		s.setState(StateStopped)
		if !errors.Is(err, context.Canceled) {
			s.emit(events.NewProjectStoppedEvent(s.cfg.ProjectID, err.Error()))
			return err
		}
		s.emit(events.NewProjectStoppedEvent(s.cfg.ProjectID, "shutdown"))
		return nil
	}

	s.emit(events.NewWatchStartedEvent(s.cfg.ProjectID, s.source.LogPath()))
	s.setState(StateIdle)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return nil
		case out := <-s.resultCh:
			s.handleOutcome(out)
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// waitForLog opens the log source, retrying while the project simply has no
// log yet. A missing log root or any other access failure is fatal for this
// project only.
func (s *ProjectSupervisor) waitForLog(ctx context.Context) error {
	waitLogged := false
	for {
		src, err := s.cfg.OpenSource()
		if err == nil {
			s.source = src
			return nil
		}
		if !errors.Is(err, transcript.ErrNoLog) {
			return fmt.Errorf("cannot access conversation log: %w", err)
		}
		if s.cfg.Verbose && !waitLogged {
			fmt.Printf("%s: waiting for conversation log\n", s.cfg.ProjectID)
			waitLogged = true
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.PollInterval):
		}
	}
}

// tick runs one poll cycle. Ingestion always proceeds: messages are
// appended to the window even while an analysis call is outstanding or the
// supervisor is backing off; only the dispatch itself is deferred.
func (s *ProjectSupervisor) tick(ctx context.Context) {
	if s.State() == StateBackoff {
		if time.Now().Before(s.backoffUntil) {
			s.ingest(ctx)
			return
		}
		s.setState(StateIdle)
	}

	s.ingest(ctx)
	// Messages that arrived while a call was in flight get picked up on
	// the first idle tick after it completes.
	if s.dirty && s.State() == StateIdle {
		s.dispatch(ctx)
	}
}

// ingest polls the log and appends every new message to the context window.
func (s *ProjectSupervisor) ingest(ctx context.Context) {
	pollCtx, cancel := context.WithTimeout(ctx, s.cfg.PollTimeout)
	batch, err := s.source.Poll(pollCtx)
	cancel()

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		// Report once, then retry quietly on following polls.
		if !s.pollErrReported {
			s.emit(events.NewMonitorErrorEvent(s.cfg.ProjectID,
				fmt.Sprintf("log poll failed: %v", err)))
			s.pollErrReported = true
		}
		return
	}
	s.pollErrReported = false

	if batch.Rotated {
		s.emit(events.NewLogRotationEvent(s.cfg.ProjectID, batch.RotationNote))
	}

	for _, msg := range batch.Messages {
		s.window.Append(msg)
		s.mu.Lock()
		s.messagesProcessed++
		s.mu.Unlock()
		s.highestIndex = msg.Index
		s.maybeHeartbeat()
	}

	if len(batch.Messages) > 0 {
		s.dirty = true
	}

	// Purge stale violations before any registration can happen.
	s.ledger.Expire(s.highestIndex, s.window.Capacity())
}

// dispatch starts one analysis call with the latest context snapshot.
// Under a burst only this single call covers the whole batch (latest
// message priority); intermediate messages are already in the window.
func (s *ProjectSupervisor) dispatch(ctx context.Context) {
	snapshot := s.window.Snapshot()
	s.dirty = false
	if len(snapshot) == 0 {
		return
	}

	active := s.ledger.Active()
	reported := make([]ai.ReportedViolation, 0, len(active))
	for _, v := range active {
		reported = append(reported, ai.ReportedViolation{
			RuleID:       v.RuleID,
			MessageIndex: v.FirstSeenIndex,
		})
	}

	req := ai.Request{
		Seed:     s.cfg.Settings.Seed,
		Rules:    s.cfg.Settings.Rules,
		Context:  snapshot,
		Reported: reported,
	}
	index := s.highestIndex

	// The call runs on its own cancellation so shutdown can grant it a
	// grace period after ctx is canceled.
	callCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.analysisCancel = cancel
	s.setState(StateAnalyzing)

	if s.cfg.Verbose {
		fmt.Printf("%s: analyzing message %d (context %d messages)\n",
			s.cfg.ProjectID, index, len(snapshot))
	}

	go func() {
		verdicts, err := s.cfg.Analyst.Analyze(callCtx, req)
		// Buffered channel: never blocks even if the loop already exited.
		s.resultCh <- analysisOutcome{verdicts: verdicts, err: err, index: index}
	}()
}

// handleOutcome applies one analysis result. On failure the whole round is
// a no-op: no ledger mutation, no alert, and the supervisor backs off.
func (s *ProjectSupervisor) handleOutcome(out analysisOutcome) {
	if s.analysisCancel != nil {
		s.analysisCancel()
		s.analysisCancel = nil
	}

	if out.err != nil {
		s.emit(events.NewMonitorErrorEvent(s.cfg.ProjectID, out.err.Error()))
		s.enterBackoff()
		return
	}
	s.backoffDelay = 0

	for _, v := range out.verdicts {
		if s.ledger.Register(v.RuleID, out.index, v.Suggestion) == RegisterDuplicate {
			s.ledger.Touch(v.RuleID, out.index)
			continue
		}
		s.raiseAlert(v, out.index)
	}

	s.ledger.Expire(s.highestIndex, s.window.Capacity())
	s.setState(StateIdle)
}

// raiseAlert emits the alert event for a new violation and, when feedback
// is enabled, hands the suggestion to the host tool. A suggestion write
// failure is logged but never suppresses the alert.
func (s *ProjectSupervisor) raiseAlert(v ai.Verdict, index int64) {
	s.mu.Lock()
	s.alertsTotal++
	s.mu.Unlock()
	s.alertsSinceHeartbeat++

	event, err := events.NewAlertEvent(s.cfg.ProjectID, events.AlertData{
		RuleID:       v.RuleID,
		Reasoning:    v.Reasoning,
		Suggestion:   v.Suggestion,
		StopRequest:  v.StopRequest,
		MessageIndex: index,
	})
	if err != nil {
		s.emit(events.NewMonitorErrorEvent(s.cfg.ProjectID,
			fmt.Sprintf("failed to build alert event: %v", err)))
		return
	}
	s.emit(event)

	if v.Suggestion == "" || !s.cfg.Suggestions.Enabled() {
		return
	}
	path, err := s.cfg.Suggestions.Write(s.cfg.ProjectID, v.Suggestion)
	if err != nil {
		s.emit(events.NewMonitorErrorEvent(s.cfg.ProjectID,
			fmt.Sprintf("suggestion write failed: %v", err)))
		return
	}
	if path != "" {
		s.emit(events.NewSuggestionWrittenEvent(s.cfg.ProjectID, path))
	}
}

// maybeHeartbeat emits a heartbeat every HeartbeatEvery processed messages.
// The alert counter resets after each heartbeat; the message counter is
// cumulative.
func (s *ProjectSupervisor) maybeHeartbeat() {
	if s.cfg.HeartbeatEvery <= 0 {
		return
	}
	s.mu.Lock()
	processed := s.messagesProcessed
	s.mu.Unlock()
	if processed%int64(s.cfg.HeartbeatEvery) != 0 {
		return
	}

	event, err := events.NewHeartbeatEvent(s.cfg.ProjectID, events.HeartbeatData{
		MessagesProcessed: processed,
		AlertsRaised:      s.alertsSinceHeartbeat,
	})
	if err != nil {
		return
	}
	s.emit(event)
	s.alertsSinceHeartbeat = 0
}

// enterBackoff doubles the delay up to the cap and defers the next
// dispatch until it elapses.
func (s *ProjectSupervisor) enterBackoff() {
	if s.backoffDelay == 0 {
		s.backoffDelay = s.cfg.InitialBackoff
	} else {
		s.backoffDelay *= 2
		if s.backoffDelay > s.cfg.MaxBackoff {
			s.backoffDelay = s.cfg.MaxBackoff
		}
	}
	s.backoffUntil = time.Now().Add(s.backoffDelay)
	s.setState(StateBackoff)

	if s.cfg.Verbose {
		fmt.Printf("%s: backing off %v after analysis failure\n",
			s.cfg.ProjectID, s.backoffDelay)
	}
}

// shutdown grants an in-flight analysis call the grace period, then
// cancels it. A result arriving after the grace period is discarded, never
// applied to stopped state.
func (s *ProjectSupervisor) shutdown() {
	if s.State() == StateAnalyzing {
		select {
		case out := <-s.resultCh:
			s.handleOutcome(out)
		case <-time.After(s.cfg.ShutdownGrace):
			if s.analysisCancel != nil {
				s.analysisCancel()
				s.analysisCancel = nil
			}
		}
	}
	s.setState(StateStopped)
	s.emit(events.NewProjectStoppedEvent(s.cfg.ProjectID, "shutdown"))
}

func (s *ProjectSupervisor) emit(event *events.Event) {
	if event == nil {
		return
	}
	s.events <- event
}
