// Package engine управляет синхронизацией трех хранилищ: выбирает режим, запускает этапы
// по очереди и сообщает наблюдателям о переходах.
//
// Движок однопоточный: Run и NextRunTime вызываются из одного потока. Ответы сервера
// приходят из других горутин и попадают в очередь, которую разбирает следующий Run.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"contactsync/internal/app/client/processor"
	"contactsync/internal/utils/logger"

	"golang.org/x/exp/slog"
)

// DefaultDebounce задержка полной синхронизации после внешнего изменения адресной книги
const DefaultDebounce = 30 * time.Second

var ErrUnknownStage = errors.New("unknown sync stage")

// Options параметры движка
type Options struct {
	Debounce time.Duration
	// StatePath файл состояния; пустой путь отключает сохранение
	StatePath string
	// Clock источник времени
	Clock func() time.Time
	// Executor выполняет вызовы сервера; по умолчанию в отдельной горутине
	Executor func(fn func())
}

func (o Options) withDefaults() Options {
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Executor == nil {
		o.Executor = func(fn func()) { go fn() }
	}
	return o
}

type queued struct {
	gen  int
	resp processor.Response
}

// Engine оркестратор синхронизации
type Engine struct {
	factory Factory
	opts    Options
	log     *slog.Logger
	wake    chan struct{}

	mu        sync.Mutex
	queue     []queued
	requests  map[Mode]time.Time
	reset     bool
	persisted persistedState
	observers []Observer
	nextReqID processor.RequestID

	// состояние потока Run
	mode      Mode
	state     State
	stages    []State
	stageIdx  int
	running   bool
	startedAt time.Time
	active    processor.Processor
	gen       int
	timerSet  bool
	timerAt   time.Time
	stats     processor.Stats
}

func New(factory Factory, opts Options, log *slog.Logger) (*Engine, error) {
	opts = opts.withDefaults()
	log = logger.OrDiscard(log).With(slog.String("component", "engine"))

	persisted, err := loadState(opts.StatePath)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		factory:   factory,
		opts:      opts,
		log:       log,
		wake:      make(chan struct{}, 1),
		requests:  make(map[Mode]time.Time),
		persisted: persisted,
	}
	if persisted.ExternalChangeAt != 0 {
		e.requests[ModeFullSync] = time.UnixMilli(persisted.ExternalChangeAt).Add(opts.Debounce)
		log.Debug("restored pending external change", slog.Int64("at", persisted.ExternalChangeAt))
	}
	return e, nil
}

func (e *Engine) RegisterObserver(o Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, o)
}

func (e *Engine) UnregisterObserver(o Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, existing := range e.observers {
		if existing == o {
			e.observers = append(e.observers[:i], e.observers[i+1:]...)
			return
		}
	}
}

// Wake возвращает канал, в который движок сигналит о новой работе
func (e *Engine) Wake() <-chan struct{} {
	return e.wake
}

// AddStartFullSync назначает полную синхронизацию немедленно.
// До первой успешной полной синхронизации выполняется режим первого запуска.
func (e *Engine) AddStartFullSync() {
	e.schedule(ModeFullSync, e.opts.Clock())
}

// AddStartServerSync назначает синхронизацию только с сервером через delay
func (e *Engine) AddStartServerSync(delay time.Duration) {
	e.schedule(ModeServerSync, e.opts.Clock().Add(delay))
}

// OnExternalChange откладывает полную синхронизацию на Debounce после последнего внешнего изменения
func (e *Engine) OnExternalChange() {
	now := e.opts.Clock()
	e.mu.Lock()
	e.requests[ModeFullSync] = now.Add(e.opts.Debounce)
	e.persisted.ExternalChangeAt = now.UnixMilli()
	state := e.persisted
	e.mu.Unlock()

	if err := saveState(e.opts.StatePath, state); err != nil {
		e.log.Error("failed to save engine state", slog.String("error", err.Error()))
	}
	e.log.Debug("external change, full sync deferred", slog.Duration("debounce", e.opts.Debounce))
	e.signal()
}

// OnReset отменяет текущую синхронизацию и все назначенные; отмена выполняется следующим Run
func (e *Engine) OnReset() {
	e.mu.Lock()
	e.reset = true
	e.mu.Unlock()
	e.signal()
}

func (e *Engine) IsFirstTimeSyncComplete() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.persisted.FirstTimeComplete
}

func (e *Engine) Mode() Mode {
	return e.mode
}

func (e *Engine) State() State {
	return e.state
}

// Busy сообщает, выполняется ли синхронизация
func (e *Engine) Busy() bool {
	return e.running
}

// NextRunTime возвращает -1, если работы нет, 0, если Run нужно вызвать сейчас,
// иначе время следующего запуска в миллисекундах Unix
func (e *Engine) NextRunTime() int64 {
	now := e.opts.Clock()
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.reset || len(e.queue) > 0 {
		return 0
	}
	if e.running && e.active == nil {
		return 0
	}

	var next time.Time
	has := false
	if e.active != nil {
		if e.timerSet {
			next, has = e.timerAt, true
		}
	} else {
		for _, due := range e.requests {
			if !has || due.Before(next) {
				next, has = due, true
			}
		}
	}
	if !has {
		return -1
	}
	if !next.After(now) {
		return 0
	}
	return next.UnixMilli()
}

// Run выполняет один шаг и сообщает, была ли работа
func (e *Engine) Run(ctx context.Context) bool {
	now := e.opts.Clock()

	e.mu.Lock()
	reset := e.reset
	e.reset = false
	var next *queued
	if !reset && len(e.queue) > 0 {
		q := e.queue[0]
		e.queue = e.queue[1:]
		next = &q
	}
	e.mu.Unlock()

	switch {
	case reset:
		e.cancel(ctx)
		return true
	case next != nil:
		if next.gen != e.gen || e.active == nil {
			e.log.Debug("dropped stale response", slog.Int64("request", int64(next.resp.ID)))
			return true
		}
		e.active.OnResponse(ctx, next.resp)
		return true
	case e.active != nil:
		if e.timerSet && !now.Before(e.timerAt) {
			e.timerSet = false
			e.active.OnTimeout(ctx)
			return true
		}
		return false
	case e.running:
		e.startStage(ctx)
		return true
	}

	mode, ok := e.takeDue(now)
	if !ok {
		return false
	}
	e.begin(ctx, mode, now)
	return true
}

func (e *Engine) schedule(mode Mode, due time.Time) {
	e.mu.Lock()
	if existing, ok := e.requests[mode]; !ok || due.Before(existing) {
		e.requests[mode] = due
	}
	e.mu.Unlock()
	e.signal()
}

// takeDue выбирает назначенный режим с наивысшим приоритетом; полная синхронизация поглощает серверную
func (e *Engine) takeDue(now time.Time) (Mode, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	mode := ModeNone
	for m, due := range e.requests {
		if due.After(now) {
			continue
		}
		if m.priority() > mode.priority() {
			mode = m
		}
	}
	if mode == ModeNone {
		return ModeNone, false
	}
	delete(e.requests, mode)
	if mode == ModeFullSync {
		if due, ok := e.requests[ModeServerSync]; ok && !due.After(now) {
			delete(e.requests, ModeServerSync)
		}
		if !e.persisted.FirstTimeComplete {
			mode = ModeFullSyncFirstTime
		}
	}
	return mode, true
}

func (e *Engine) begin(ctx context.Context, mode Mode, now time.Time) {
	e.mode = mode
	e.stages = Stages(mode)
	e.stageIdx = 0
	e.running = true
	e.startedAt = now
	e.stats = processor.Stats{}
	e.log.Info("sync started", slog.String("mode", mode.String()))
	e.startStage(ctx)
}

func (e *Engine) startStage(ctx context.Context) {
	state := e.stages[e.stageIdx]
	e.gen++
	e.timerSet = false

	p, err := e.factory.New(e.mode, state, &binding{engine: e, gen: e.gen, ctx: ctx})
	if err != nil {
		e.finish(processor.StatusError, err)
		return
	}

	e.transition(state)
	e.progress(state, 0)
	e.active = p
	p.Start(ctx)
}

// complete вызывается процессором через Host
func (e *Engine) complete(gen int, status processor.Status, err error) {
	if gen != e.gen || e.active == nil {
		return
	}
	if r, ok := e.active.(processor.Reporter); ok {
		e.stats.Add(r.Stats())
	}
	e.active = nil
	e.timerSet = false

	if status != processor.StatusSuccess {
		e.finish(status, err)
		return
	}
	e.progress(e.state, 100)
	e.stageIdx++
	if e.stageIdx >= len(e.stages) {
		e.finish(processor.StatusSuccess, nil)
	}
}

func (e *Engine) cancel(ctx context.Context) {
	e.mu.Lock()
	for m := range e.requests {
		delete(e.requests, m)
	}
	e.mu.Unlock()

	if !e.running {
		return
	}
	if p := e.active; p != nil {
		gen := e.gen
		p.Cancel(ctx)
		// процессор мог не завершиться сам
		e.complete(gen, processor.StatusUserCancelled, nil)
		return
	}
	e.finish(processor.StatusUserCancelled, nil)
}

func (e *Engine) finish(status processor.Status, err error) {
	mode := e.mode
	e.active = nil
	e.running = false
	e.stages = nil
	e.gen++
	e.transition(StateIdle)

	result := Result{Mode: mode, Status: status, Err: err, Stats: e.stats}
	switch status {
	case processor.StatusSuccess:
		e.log.Info("sync complete",
			slog.String("mode", mode.String()),
			slog.Int("downloaded", e.stats.Downloaded),
			slog.Int("uploaded", e.stats.Uploaded),
			slog.Int("device_adds", e.stats.DeviceAdds))
		e.afterSuccess(mode)
	case processor.StatusUserCancelled:
		e.log.Info("sync cancelled", slog.String("mode", mode.String()))
	default:
		e.log.Error("sync failed", slog.String("mode", mode.String()), slog.Any("error", err))
	}

	for _, o := range e.snapshotObservers() {
		o.OnSyncComplete(result)
	}
}

func (e *Engine) afterSuccess(mode Mode) {
	if mode == ModeBackground {
		return
	}

	e.mu.Lock()
	changed := false
	if mode == ModeFullSyncFirstTime || mode == ModeFullSync {
		if !e.persisted.FirstTimeComplete {
			e.persisted.FirstTimeComplete = true
			changed = true
		}
		// изменения, пришедшие во время синхронизации, остаются в очереди
		if at := e.persisted.ExternalChangeAt; at != 0 && at <= e.startedAt.UnixMilli() {
			e.persisted.ExternalChangeAt = 0
			changed = true
		}
	}
	state := e.persisted
	e.mu.Unlock()

	if changed {
		if err := saveState(e.opts.StatePath, state); err != nil {
			e.log.Error("failed to save engine state", slog.String("error", err.Error()))
		}
	}
	e.schedule(ModeBackground, e.opts.Clock())
}

func (e *Engine) transition(to State) {
	from := e.state
	e.state = to
	e.log.Debug("state changed",
		slog.String("mode", e.mode.String()),
		slog.String("from", from.String()),
		slog.String("to", to.String()))
	for _, o := range e.snapshotObservers() {
		o.OnStateChange(e.mode, from, to)
	}
}

func (e *Engine) progress(state State, percent int) {
	for _, o := range e.snapshotObservers() {
		o.OnProgress(state, percent)
	}
}

func (e *Engine) snapshotObservers() []Observer {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Observer, len(e.observers))
	copy(out, e.observers)
	return out
}

func (e *Engine) signal() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Engine) send(b *binding, call processor.Call) processor.RequestID {
	e.mu.Lock()
	e.nextReqID++
	id := e.nextReqID
	e.mu.Unlock()

	e.opts.Executor(func() {
		payload, err := call(b.ctx)
		e.mu.Lock()
		e.queue = append(e.queue, queued{gen: b.gen, resp: processor.Response{ID: id, Payload: payload, Err: err}})
		e.mu.Unlock()
		e.signal()
	})
	return id
}

// binding связывает процессор с движком; после смены этапа его вызовы игнорируются
type binding struct {
	engine *Engine
	gen    int
	ctx    context.Context
}

func (b *binding) Send(call processor.Call) processor.RequestID {
	return b.engine.send(b, call)
}

func (b *binding) SetTimeout(d time.Duration) {
	e := b.engine
	if b.gen != e.gen {
		return
	}
	if d < 0 {
		e.timerSet = false
		return
	}
	e.timerSet = true
	e.timerAt = e.opts.Clock().Add(d)
}

func (b *binding) Complete(status processor.Status, err error) {
	b.engine.complete(b.gen, status, err)
}
