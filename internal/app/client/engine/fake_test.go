package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"contactsync/internal/app/client/processor"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// step сценарий процессора одного этапа
type step struct {
	sends  int
	status processor.Status
	err    error
	// hang процессор ждет ответа, который никогда не придет
	hang  bool
	stats processor.Stats
}

type scriptedProcessor struct {
	host      processor.Host
	step      step
	received  int
	cancelled bool
}

func (p *scriptedProcessor) Start(_ context.Context) {
	if p.step.sends == 0 && !p.step.hang {
		p.host.Complete(p.step.status, p.step.err)
		return
	}
	p.send()
}

func (p *scriptedProcessor) send() {
	p.host.Send(func(context.Context) (any, error) { return "ok", nil })
	p.host.SetTimeout(time.Minute)
}

func (p *scriptedProcessor) OnResponse(_ context.Context, _ processor.Response) {
	if p.step.hang {
		return
	}
	p.received++
	if p.received < p.step.sends {
		p.send()
		return
	}
	p.host.SetTimeout(processor.NoTimeout)
	p.host.Complete(p.step.status, p.step.err)
}

func (p *scriptedProcessor) OnTimeout(_ context.Context) {
	p.host.Complete(processor.StatusError, processor.ErrTimeout)
}

func (p *scriptedProcessor) Cancel(_ context.Context) {
	p.cancelled = true
	p.host.SetTimeout(processor.NoTimeout)
	p.host.Complete(processor.StatusUserCancelled, nil)
}

func (p *scriptedProcessor) Stats() processor.Stats {
	return p.step.stats
}

type fakeFactory struct {
	steps      map[State]step
	created    []State
	processors []*scriptedProcessor
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{steps: make(map[State]step)}
}

func (f *fakeFactory) New(_ Mode, state State, host processor.Host) (processor.Processor, error) {
	f.created = append(f.created, state)
	p := &scriptedProcessor{host: host, step: f.steps[state]}
	f.processors = append(f.processors, p)
	return p, nil
}

func (f *fakeFactory) last() *scriptedProcessor {
	return f.processors[len(f.processors)-1]
}

type recordingObserver struct {
	events  []string
	results []Result
}

func (o *recordingObserver) OnStateChange(mode Mode, from, to State) {
	o.events = append(o.events, fmt.Sprintf("state %s %s->%s", mode, from, to))
}

func (o *recordingObserver) OnProgress(state State, percent int) {
	o.events = append(o.events, fmt.Sprintf("progress %s %d", state, percent))
}

func (o *recordingObserver) OnSyncComplete(result Result) {
	o.events = append(o.events, fmt.Sprintf("complete %s %s", result.Mode, result.Status))
	o.results = append(o.results, result)
}

type harness struct {
	engine   *Engine
	factory  Factory
	clock    *fakeClock
	observer *recordingObserver
	path     string
}

func syncExecutor(fn func()) { fn() }

func newHarness(t *testing.T, f Factory, path string, clock *fakeClock) *harness {
	t.Helper()
	if path == "" {
		path = filepath.Join(t.TempDir(), "engine.json")
	}
	if clock == nil {
		clock = newFakeClock()
	}
	e, err := New(f, Options{StatePath: path, Clock: clock.Now, Executor: syncExecutor}, slog.Default())
	require.NoError(t, err)
	obs := &recordingObserver{}
	e.RegisterObserver(obs)
	return &harness{engine: e, factory: f, clock: clock, observer: obs, path: path}
}

// drain вызывает Run, пока есть работа со наступившим сроком
func (h *harness) drain(t *testing.T) int {
	t.Helper()
	steps := 0
	for h.engine.NextRunTime() == 0 {
		h.engine.Run(context.Background())
		steps++
		require.Less(t, steps, 10000, "engine did not settle")
	}
	return steps
}
