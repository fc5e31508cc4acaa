package monitor

import (
	"context"
	"fmt"
	"sync"

	"github.com/steveyegge/shepherd/internal/events"
)

// EventSink receives every event before it reaches the orchestrator's
// Events channel. Used to persist the stream to the event store; a sink
// failure is reported on the stream itself and never blocks delivery.
type EventSink interface {
	Store(event *events.Event) error
}

// Orchestrator runs one supervisor per project. Each supervisor fails
// independently: a fatal error or panic in one project stops only that
// project, and the others keep running.
type Orchestrator struct {
	supervisors map[string]*ProjectSupervisor
	sink        EventSink

	raw    chan *events.Event
	out    chan *events.Event
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}
}

// NewOrchestrator creates a supervisor for every project in projectIDs.
// Duplicate project IDs are collapsed. The base config's ProjectID is
// overridden per project; when OpenSource is nil each supervisor opens its
// own project's log.
func NewOrchestrator(projectIDs []string, base SupervisorConfig, sink EventSink) (*Orchestrator, error) {
	if len(projectIDs) == 0 {
		return nil, fmt.Errorf("no projects to supervise")
	}

	o := &Orchestrator{
		supervisors: make(map[string]*ProjectSupervisor, len(projectIDs)),
		sink:        sink,
		raw:         make(chan *events.Event, 64),
		out:         make(chan *events.Event, 64),
		done:        make(chan struct{}),
	}

	for _, projectID := range projectIDs {
		if _, ok := o.supervisors[projectID]; ok {
			continue
		}
		cfg := base
		cfg.ProjectID = projectID
		sup, err := NewProjectSupervisor(cfg, o.raw)
		if err != nil {
			return nil, fmt.Errorf("project %s: %w", projectID, err)
		}
		o.supervisors[projectID] = sup
	}

	return o, nil
}

// Events is the merged event stream across all projects. Closed once every
// supervisor has stopped.
func (o *Orchestrator) Events() <-chan *events.Event {
	return o.out
}

// Projects returns the supervised project IDs.
func (o *Orchestrator) Projects() []string {
	ids := make([]string, 0, len(o.supervisors))
	for id := range o.supervisors {
		ids = append(ids, id)
	}
	return ids
}

// Supervisor returns the supervisor for a project, or nil.
func (o *Orchestrator) Supervisor(projectID string) *ProjectSupervisor {
	return o.supervisors[projectID]
}

// Start launches every supervisor. The event stream closes after all of
// them stop, which happens when ctx is canceled or Stop is called.
func (o *Orchestrator) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	go o.forward()

	for _, sup := range o.supervisors {
		o.wg.Add(1)
		go func(sup *ProjectSupervisor) {
			defer o.wg.Done()
			o.runSupervisor(runCtx, sup)
		}(sup)
	}

	go func() {
		o.wg.Wait()
		close(o.raw)
	}()
}

// runSupervisor contains the panic barrier: a panicking supervisor is
// reported and stopped without taking down its siblings.
func (o *Orchestrator) runSupervisor(ctx context.Context, sup *ProjectSupervisor) {
	defer func() {
		if r := recover(); r != nil {
			sup.setState(StateStopped)
			o.raw <- events.NewMonitorErrorEvent(sup.cfg.ProjectID,
				fmt.Sprintf("supervisor panic: %v", r))
			o.raw <- events.NewProjectStoppedEvent(sup.cfg.ProjectID, "panic")
		}
	}()

	// Run only returns an error on fatal per-project failures; it has
	// already emitted the stopped event in that case.
	_ = sup.Run(ctx)
}

// forward drains the raw stream, persists each event through the sink, and
// delivers it to consumers.
func (o *Orchestrator) forward() {
	defer close(o.done)
	defer close(o.out)

	for event := range o.raw {
		if o.sink != nil {
			if err := o.sink.Store(event); err != nil {
				o.out <- events.NewMonitorErrorEvent(event.ProjectID,
					fmt.Sprintf("event store write failed: %v", err))
			}
		}
		o.out <- event
	}
}

// Stop cancels every supervisor and blocks until the event stream is
// drained and closed. Safe to call more than once.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	<-o.done
}
