// Package session wires the transport, the state store, the hierarchy
// builder and the render driver into one service with an explicit
// lifecycle. All state mutation happens on a single dispatch goroutine
// that consumes events in arrival order.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ziadkadry99/treewatch/internal/dataset"
	"github.com/ziadkadry99/treewatch/internal/metrics"
	"github.com/ziadkadry99/treewatch/internal/protocol"
	"github.com/ziadkadry99/treewatch/internal/render"
	"github.com/ziadkadry99/treewatch/internal/store"
	"github.com/ziadkadry99/treewatch/internal/transport"
	"github.com/ziadkadry99/treewatch/internal/tree"
)

var (
	ErrStopped       = errors.New("session stopped")
	ErrEmptyQuestion = errors.New("question is required")
	ErrUnknownNode   = errors.New("node not in the current tree")
	ErrNoDataset     = errors.New("no dataset client configured")
)

// Transport is the connection the service drives. *transport.Client
// satisfies it.
type Transport interface {
	Connect(ctx context.Context)
	Send(req protocol.Request) error
	Close()
	Connected() bool
}

// DatasetLoader performs the out-of-band dataset call.
type DatasetLoader interface {
	Load(ctx context.Context) (dataset.Summary, error)
}

// Options are the run defaults and tunables of a service.
type Options struct {
	Transport transport.Options

	// Mode is the request type of Run: ask or discover.
	Mode          protocol.RequestType
	MaxIterations int
	MaxDepth      int
	VideoIDs      []string

	// StructuralErrorThreshold is how many consecutive hierarchy build
	// failures are tolerated before the failure is shown.
	StructuralErrorThreshold int
	QueueSize                int
}

// Deps are the collaborators of a service. A nil Sink logs render
// batches.
type Deps struct {
	Sink    render.Sink
	Dataset DatasetLoader
	Logger  zerolog.Logger

	// NewTransport builds the transport around the service's dispatcher.
	// Defaults to a websocket client configured from Options.Transport.
	NewTransport func(d transport.Dispatcher) Transport
}

// RunOptions override the service defaults for one run.
type RunOptions struct {
	MaxIterations int
	MaxDepth      int
	VideoIDs      []string
}

// Ticket identifies an issued run.
type Ticket struct {
	Request    protocol.Request
	Generation uint64
}

// StateFunc observes the state after every applied event.
type StateFunc func(st store.State)

// beginRun is the local event that starts a session on the dispatch
// goroutine.
type beginRun struct {
	req   protocol.Request
	mode  store.Mode
	reply chan uint64
}

func (beginRun) Kind() protocol.Kind { return "begin_run" }

// barrier is closed once every event queued before it has been applied.
type barrier chan struct{}

func (barrier) Kind() protocol.Kind { return "barrier" }

// Service is one live viewer session.
type Service struct {
	opts    Options
	logger  zerolog.Logger
	client  Transport
	dataset DatasetLoader
	store   *store.Store
	driver  *render.Driver

	queue chan protocol.Event
	done  chan struct{}
	wg    sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once

	mu        sync.RWMutex
	last      *tree.Hierarchy
	observers map[int]StateFunc
	nextObs   int

	// failures counts consecutive build failures; dispatch goroutine only.
	failures int
}

// New creates a stopped service.
func New(opts Options, deps Deps) *Service {
	if opts.Mode == "" {
		opts.Mode = protocol.RequestAsk
	}
	if opts.StructuralErrorThreshold <= 0 {
		opts.StructuralErrorThreshold = 3
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}

	s := &Service{
		opts:      opts,
		logger:    deps.Logger.With().Str("component", "session").Logger(),
		dataset:   deps.Dataset,
		store:     store.New(),
		queue:     make(chan protocol.Event, opts.QueueSize),
		done:      make(chan struct{}),
		last:      tree.Empty(0),
		observers: map[int]StateFunc{},
	}
	sink := deps.Sink
	if sink == nil {
		sink = render.LogSink{Logger: s.logger}
	}
	s.driver = render.NewDriver(sink, &render.Selection{}, deps.Logger)

	if deps.NewTransport != nil {
		s.client = deps.NewTransport(s)
	} else {
		s.client = transport.New(opts.Transport, s, deps.Logger)
	}
	return s
}

// Start launches the dispatch goroutine and opens the connection.
func (s *Service) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.loop()
		}()
		s.client.Connect(ctx)
	})
}

// Stop closes the connection, cancels pending retries and waits for the
// dispatch goroutine to exit. It is safe to call more than once.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		s.client.Close()
		close(s.done)
		s.wg.Wait()
	})
}

// Dispatch enqueues an event for the dispatch goroutine. It never blocks
// once the service is stopped.
func (s *Service) Dispatch(ev protocol.Event) {
	select {
	case s.queue <- ev:
	case <-s.done:
	}
}

// Run starts a single run with the configured mode.
func (s *Service) Run(ctx context.Context, question string, ro RunOptions) (Ticket, error) {
	if s.opts.Mode == protocol.RequestAsk && question == "" {
		return Ticket{}, ErrEmptyQuestion
	}
	return s.begin(ctx, s.opts.Mode, store.ModeSingle, question, ro)
}

// Compare starts a comparison run: the baseline and the tree search run
// side by side and both results are kept.
func (s *Service) Compare(ctx context.Context, question string, ro RunOptions) (Ticket, error) {
	if question == "" {
		return Ticket{}, ErrEmptyQuestion
	}
	return s.begin(ctx, protocol.RequestCompare, store.ModeComparison, question, ro)
}

func (s *Service) begin(ctx context.Context, t protocol.RequestType, mode store.Mode, question string, ro RunOptions) (Ticket, error) {
	params := protocol.RunParams{
		Question:      question,
		VideoIDs:      s.opts.VideoIDs,
		MaxIterations: s.opts.MaxIterations,
		MaxDepth:      s.opts.MaxDepth,
	}
	if ro.MaxIterations > 0 {
		params.MaxIterations = ro.MaxIterations
	}
	if ro.MaxDepth > 0 {
		params.MaxDepth = ro.MaxDepth
	}
	if len(ro.VideoIDs) > 0 {
		params.VideoIDs = ro.VideoIDs
	}

	ev := beginRun{req: protocol.NewRun(t, params), mode: mode, reply: make(chan uint64, 1)}
	select {
	case s.queue <- ev:
	case <-s.done:
		return Ticket{}, ErrStopped
	case <-ctx.Done():
		return Ticket{}, ctx.Err()
	}

	select {
	case gen := <-ev.reply:
		return Ticket{Request: ev.req, Generation: gen}, nil
	case <-s.done:
		return Ticket{}, ErrStopped
	case <-ctx.Done():
		return Ticket{}, ctx.Err()
	}
}

// Flush waits until every event queued before the call has been applied.
func (s *Service) Flush(ctx context.Context) error {
	b := make(barrier)
	select {
	case s.queue <- b:
	case <-s.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-b:
		return nil
	case <-s.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Await blocks until the run of the given generation has ended and
// returns the final state.
func (s *Service) Await(ctx context.Context, generation uint64) (store.State, error) {
	finished := func(st store.State) bool {
		return st.Generation > generation || (st.Generation == generation && !st.Busy())
	}

	ch := make(chan store.State, 1)
	unsubscribe := s.Subscribe(func(st store.State) {
		if finished(st) {
			select {
			case ch <- st:
			default:
			}
		}
	})
	defer unsubscribe()

	if st := s.store.State(); finished(st) {
		return st, nil
	}

	select {
	case st := <-ch:
		return st, nil
	case <-s.done:
		return s.store.State(), ErrStopped
	case <-ctx.Done():
		return s.store.State(), ctx.Err()
	}
}

// Select marks a node of the current tree as inspected.
func (s *Service) Select(id string) error {
	if _, ok := s.Hierarchy().Lookup(id); !ok {
		return fmt.Errorf("select %q: %w", id, ErrUnknownNode)
	}
	s.driver.Selection().Select(id)
	return nil
}

// Selected returns the inspected node id, if any.
func (s *Service) Selected() (string, bool) {
	return s.driver.Selection().Selected()
}

// State returns a copy of the session state.
func (s *Service) State() store.State {
	return s.store.State()
}

// Hierarchy returns the last rendered hierarchy. It is never nil and never
// mutated.
func (s *Service) Hierarchy() *tree.Hierarchy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Node returns the full snapshot entry behind a rendered node.
func (s *Service) Node(id string) (tree.Node, bool) {
	if _, ok := s.Hierarchy().Lookup(id); !ok {
		return tree.Node{}, false
	}
	n, ok := s.store.State().Snapshot[id]
	return n, ok
}

// Connected reports whether the backend connection is open.
func (s *Service) Connected() bool {
	return s.client.Connected()
}

// LoadDataset asks the backend to load its dataset. The call runs in the
// background and its outcome arrives as an event.
func (s *Service) LoadDataset(ctx context.Context) error {
	if s.dataset == nil {
		return ErrNoDataset
	}
	go func() {
		summary, err := s.dataset.Load(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Dataset load failed")
			s.Dispatch(protocol.DatasetFailed{Err: err})
			return
		}
		s.Dispatch(protocol.DatasetLoaded{Summary: summary})
	}()
	return nil
}

// Subscribe registers fn to be called on the dispatch goroutine after
// every applied event. fn must not block. The returned function removes
// the observer.
func (s *Service) Subscribe(fn StateFunc) func() {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *Service) loop() {
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.queue:
			s.handle(ev)
		}
	}
}

func (s *Service) handle(ev protocol.Event) {
	var eff store.Effect
	switch e := ev.(type) {
	case barrier:
		close(e)
		return
	case beginRun:
		eff = s.store.BeginRun(e.mode, e.req.RequestID, e.req.Question)
		gen := s.store.Generation()
		s.logger.Info().
			Str("type", string(e.req.Type)).
			Str("request_id", e.req.RequestID).
			Uint64("generation", gen).
			Msg("Starting run")
		s.rebuild()
		s.send(e.req)
		e.reply <- gen
	default:
		eff = s.store.Apply(ev)
	}

	if eff.Dropped {
		s.logger.Debug().Str("event", string(ev.Kind())).Msg("Dropped event from another run")
	}
	if eff.Reset {
		s.logger.Info().Uint64("generation", s.store.Generation()).Msg("New session")
	}
	if eff.SnapshotChanged {
		if _, local := ev.(beginRun); !local {
			s.rebuild()
		}
	}
	if eff.Terminal {
		st := s.store.State()
		s.logger.Info().
			Str("status", string(st.Status)).
			Str("error", st.Error).
			Int("nodes", st.Progress.NodeCount).
			Msg("Run ended")
	}

	s.notify()
}

func (s *Service) send(req protocol.Request) {
	err := s.client.Send(req)
	switch {
	case err == nil:
	case errors.Is(err, transport.ErrNotConnected):
		s.logger.Info().Str("request_id", req.RequestID).Msg("Not connected, request queued for retry")
	default:
		s.logger.Warn().Err(err).Str("request_id", req.RequestID).Msg("Sending request failed")
	}
}

// rebuild derives the hierarchy for the current snapshot and renders the
// diff against the last rendered one. Build failures keep the last good
// hierarchy on screen.
func (s *Service) rebuild() {
	st := s.store.State()
	h, err := tree.Build(st.Snapshot, st.Generation)
	if err != nil {
		s.failures++
		metrics.BuildFailures.WithLabelValues(tree.KindName(err)).Inc()
		s.logger.Warn().
			Err(err).
			Int("consecutive", s.failures).
			Uint64("generation", st.Generation).
			Msg("Hierarchy build failed, keeping last tree")
		if s.failures >= s.opts.StructuralErrorThreshold {
			s.store.SetStructuralError(err.Error())
		}
		return
	}
	if s.failures > 0 {
		s.failures = 0
		s.store.SetStructuralError("")
	}
	if len(h.Skipped) > 0 {
		s.logger.Debug().Strs("skipped", h.Skipped).Msg("Children missing from snapshot")
	}

	prev := s.Hierarchy()
	if !s.driver.Apply(tree.Diff(prev, h), h) {
		return
	}
	s.mu.Lock()
	s.last = h
	s.mu.Unlock()
}

func (s *Service) notify() {
	s.mu.RLock()
	if len(s.observers) == 0 {
		s.mu.RUnlock()
		return
	}
	fns := make([]StateFunc, 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	st := s.store.State()
	for _, fn := range fns {
		fn(st)
	}
}
