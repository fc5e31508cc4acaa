package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/shepherd/internal/ai"
	"github.com/steveyegge/shepherd/internal/events"
)

// memorySink records stored events; failMsg makes every Store fail.
type memorySink struct {
	mu      sync.Mutex
	stored  []*events.Event
	failMsg string
}

func (s *memorySink) Store(event *events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failMsg != "" {
		return errorString(s.failMsg)
	}
	s.stored = append(s.stored, event)
	return nil
}

func (s *memorySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stored)
}

type errorString string

func (e errorString) Error() string { return string(e) }

func baseConfig(analyst ai.Analyst, open func() (Source, error)) SupervisorConfig {
	return SupervisorConfig{
		Settings:     testSettings(),
		Analyst:      analyst,
		Suggestions:  NewSuggestionWriter("", false),
		ContextSize:  10,
		PollInterval: 5 * time.Millisecond,
		OpenSource:   open,
	}
}

func TestOrchestratorRunsAllProjects(t *testing.T) {
	src := &scriptedSource{}
	o, err := NewOrchestrator(
		[]string{"/home/dev/alpha", "/home/dev/beta"},
		baseConfig(&stubAnalyst{}, func() (Source, error) { return src, nil }),
		nil,
	)
	require.NoError(t, err)
	assert.Len(t, o.Projects(), 2)

	ctx, cancel := context.WithCancel(context.Background())
	o.Start(ctx)
	rec := record(o.Events())

	rec.waitFor(t, events.EventTypeWatchStarted, 2)
	cancel()
	o.Stop()
	<-rec.done

	projects := map[string]bool{}
	for _, e := range rec.byType(events.EventTypeWatchStarted) {
		projects[e.ProjectID] = true
	}
	assert.True(t, projects["/home/dev/alpha"])
	assert.True(t, projects["/home/dev/beta"])
	assert.Len(t, rec.byType(events.EventTypeProjectStopped), 2)
}

func TestOrchestratorIsolatesProjectFailure(t *testing.T) {
	alphaSrc := &scriptedSource{}
	open := func() (Source, error) { return alphaSrc, nil }

	analyst := &stubAnalyst{}
	analyst.fn = func(req ai.Request) ([]ai.Verdict, error) {
		return []ai.Verdict{{RuleID: "test-coverage", Reasoning: "no tests"}}, nil
	}

	base := baseConfig(analyst, open)
	o, err := NewOrchestrator([]string{"/home/dev/alpha", "/home/dev/beta"}, base, nil)
	require.NoError(t, err)

	// Beta's log root is unreadable; its supervisor dies while alpha
	// keeps analyzing.
	o.Supervisor("/home/dev/beta").cfg.OpenSource = func() (Source, error) {
		return nil, errorString("permission denied")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o.Start(ctx)
	rec := record(o.Events())

	rec.waitFor(t, events.EventTypeProjectStopped, 1)
	alphaSrc.push(msg(1))
	rec.waitFor(t, events.EventTypeViolationAlert, 1)

	alerts := rec.byType(events.EventTypeViolationAlert)
	assert.Equal(t, "/home/dev/alpha", alerts[0].ProjectID)
	assert.Equal(t, StateStopped, o.Supervisor("/home/dev/beta").State())

	cancel()
	o.Stop()
	<-rec.done
}

func TestOrchestratorRecoversPanic(t *testing.T) {
	panicOpen := func() (Source, error) {
		panic("bad source")
	}
	okSrc := &scriptedSource{}

	base := baseConfig(&stubAnalyst{}, func() (Source, error) { return okSrc, nil })
	o, err := NewOrchestrator([]string{"/home/dev/alpha", "/home/dev/beta"}, base, nil)
	require.NoError(t, err)
	o.Supervisor("/home/dev/beta").cfg.OpenSource = panicOpen

	ctx, cancel := context.WithCancel(context.Background())
	o.Start(ctx)
	rec := record(o.Events())

	// The panicking supervisor reports and stops; alpha is unaffected.
	rec.waitFor(t, events.EventTypeMonitorError, 1)
	rec.waitFor(t, events.EventTypeWatchStarted, 1)

	errs := rec.byType(events.EventTypeMonitorError)
	assert.Contains(t, errs[0].Message, "panic")
	assert.Equal(t, "/home/dev/beta", errs[0].ProjectID)

	cancel()
	o.Stop()
	<-rec.done
	assert.Equal(t, StateStopped, o.Supervisor("/home/dev/beta").State())
}

func TestOrchestratorForwardsToSink(t *testing.T) {
	src := &scriptedSource{}
	sink := &memorySink{}
	o, err := NewOrchestrator(
		[]string{"/home/dev/alpha"},
		baseConfig(&stubAnalyst{}, func() (Source, error) { return src, nil }),
		sink,
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	o.Start(ctx)
	rec := record(o.Events())

	rec.waitFor(t, events.EventTypeWatchStarted, 1)
	cancel()
	o.Stop()
	<-rec.done

	require.GreaterOrEqual(t, sink.count(), 1)
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, events.EventTypeWatchStarted, sink.stored[0].Type)
}

func TestOrchestratorSinkFailureSurfacesOnStream(t *testing.T) {
	src := &scriptedSource{}
	sink := &memorySink{failMsg: "disk full"}
	o, err := NewOrchestrator(
		[]string{"/home/dev/alpha"},
		baseConfig(&stubAnalyst{}, func() (Source, error) { return src, nil }),
		sink,
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	o.Start(ctx)
	rec := record(o.Events())

	// The original event is still delivered alongside the error report.
	rec.waitFor(t, events.EventTypeWatchStarted, 1)
	rec.waitFor(t, events.EventTypeMonitorError, 1)

	errs := rec.byType(events.EventTypeMonitorError)
	assert.Contains(t, errs[0].Message, "disk full")

	cancel()
	o.Stop()
	<-rec.done
}

func TestOrchestratorStatsAggregateAcrossProjects(t *testing.T) {
	alphaSrc := &scriptedSource{}
	betaSrc := &scriptedSource{}
	alphaSrc.push(msg(1), msg(2))
	betaSrc.push(msg(1), msg(2), msg(3))

	base := baseConfig(&stubAnalyst{}, nil)
	o, err := NewOrchestrator([]string{"/home/dev/alpha", "/home/dev/beta"}, base, nil)
	require.NoError(t, err)
	o.Supervisor("/home/dev/alpha").cfg.OpenSource = func() (Source, error) { return alphaSrc, nil }
	o.Supervisor("/home/dev/beta").cfg.OpenSource = func() (Source, error) { return betaSrc, nil }

	ctx, cancel := context.WithCancel(context.Background())
	o.Start(ctx)
	rec := record(o.Events())

	// Stats are the source of the final shutdown summary; wait until both
	// projects consumed their batches.
	total := func() int64 {
		var n int64
		for _, projectID := range o.Projects() {
			messages, _ := o.Supervisor(projectID).Stats()
			n += messages
		}
		return n
	}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && total() < 5 {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, int64(5), total())

	cancel()
	o.Stop()
	<-rec.done
}

func TestOrchestratorRejectsEmptyProjectList(t *testing.T) {
	_, err := NewOrchestrator(nil, baseConfig(&stubAnalyst{}, nil), nil)
	assert.Error(t, err)
}

func TestOrchestratorCollapsesDuplicateProjects(t *testing.T) {
	src := &scriptedSource{}
	o, err := NewOrchestrator(
		[]string{"/home/dev/alpha", "/home/dev/alpha"},
		baseConfig(&stubAnalyst{}, func() (Source, error) { return src, nil }),
		nil,
	)
	require.NoError(t, err)
	assert.Len(t, o.Projects(), 1)
}
