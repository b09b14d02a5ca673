package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/overlay-provisioning-backend/interfaces"
	"go.uber.org/atomic"
)

const DefaultQueueSize = 128

// State of the pipeline worker.
type State int32

const (
	StateWaitingForRequest State = iota
	StateProcessing
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateWaitingForRequest:
		return "waiting"
	case StateProcessing:
		return "processing"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Observer is notified about queue depth and request outcomes. Calls are
// made from the worker goroutine and the submitting goroutines. Every request
// is reported once: ObserveResult when the wrapped provisioner ran it,
// ObserveRejected when it never reached the provisioner.
type Observer interface {
	ObserveQueueDepth(depth int)
	ObserveResult(err error, duration time.Duration)
	ObserveRejected(err error)
}

type request struct {
	id   uuid.UUID
	ctx  context.Context
	name string
	resp chan result
}

type result struct {
	bundle *interfaces.NodeBundle
	err    error
}

// Pipeline serializes provisioning requests from any number of goroutines
// onto a single worker that owns the wrapped provisioner.
type Pipeline struct {
	provisioner interfaces.NodeProvisioner
	log         *slog.Logger
	observer    Observer
	queueSize   int

	queue chan *request
	quit  chan struct{}
	done  chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once

	started   atomic.Bool
	state     atomic.Int32
	processed atomic.Uint64
}

type Option func(*Pipeline)

// WithQueueSize bounds the number of requests waiting for the worker.
// Submitters block once the queue is full.
func WithQueueSize(n int) Option {
	return func(p *Pipeline) {
		if n < 0 {
			n = 0
		}
		p.queueSize = n
	}
}

func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		p.observer = o
	}
}

func New(provisioner interfaces.NodeProvisioner, log *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		provisioner: provisioner,
		log:         log,
		queueSize:   DefaultQueueSize,
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.queue = make(chan *request, p.queueSize)
	return p
}

// Start launches the worker. Calling it again, or after Stop, has no effect.
// Requests submitted before Start fail with ErrPipelineUnavailable.
func (p *Pipeline) Start() {
	p.startOnce.Do(func() {
		p.started.Store(true)
		go p.run()
	})
}

// Stop lets the worker finish the request it is processing and waits for it
// to exit. Queued and later requests fail with ErrPipelineUnavailable.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		close(p.quit)
	})
	p.startOnce.Do(func() {
		p.state.Store(int32(StateStopped))
		close(p.done)
	})
	<-p.done
}

// Done is closed once the worker has terminated.
func (p *Pipeline) Done() <-chan struct{} {
	return p.done
}

func (p *Pipeline) State() State {
	return State(p.state.Load())
}

// Pending returns the number of requests waiting in the queue.
func (p *Pipeline) Pending() int {
	return len(p.queue)
}

// Processed returns the number of requests the worker has answered.
func (p *Pipeline) Processed() uint64 {
	return p.processed.Load()
}

// ProvisionNode submits a request and waits for its result, for ctx to be
// done or for the pipeline to stop.
func (p *Pipeline) ProvisionNode(ctx context.Context, name string) (*interfaces.NodeBundle, error) {
	if !p.started.Load() {
		return nil, p.reject(interfaces.ErrPipelineUnavailable)
	}
	select {
	case <-p.done:
		return nil, p.reject(interfaces.ErrPipelineUnavailable)
	default:
	}

	req := &request{
		id:   uuid.New(),
		ctx:  ctx,
		name: name,
		resp: make(chan result, 1),
	}

	select {
	case p.queue <- req:
		p.observeDepth()
	case <-ctx.Done():
		return nil, p.reject(ctx.Err())
	case <-p.done:
		return nil, p.reject(interfaces.ErrPipelineUnavailable)
	}

	// Once queued, the worker reports the outcome.
	select {
	case res := <-req.resp:
		return res.bundle, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.done:
		select {
		case res := <-req.resp:
			return res.bundle, res.err
		default:
			return nil, p.reject(interfaces.ErrPipelineUnavailable)
		}
	}
}

func (p *Pipeline) run() {
	defer close(p.done)
	defer p.state.Store(int32(StateStopped))

	p.log.Info("Provisioning worker started", slog.Int("queueSize", p.queueSize))

	for {
		p.state.Store(int32(StateWaitingForRequest))

		// quit wins over queued requests
		select {
		case <-p.quit:
			p.shutdown()
			return
		default:
		}

		select {
		case <-p.quit:
			p.shutdown()
			return
		case req := <-p.queue:
			p.observeDepth()
			p.handle(req)
		}
	}
}

// shutdown answers the requests still queued.
func (p *Pipeline) shutdown() {
	p.log.Info("Provisioning worker stopping",
		slog.Int("pending", len(p.queue)),
		slog.Uint64("processed", p.processed.Load()))

	for {
		select {
		case req := <-p.queue:
			req.resp <- result{err: p.reject(interfaces.ErrPipelineUnavailable)}
		default:
			p.observeDepth()
			return
		}
	}
}

func (p *Pipeline) handle(req *request) {
	log := p.log.With(slog.String("requestID", req.id.String()), slog.String("node", req.name))

	if err := req.ctx.Err(); err != nil {
		log.Debug("Skipping abandoned request", "err", err)
		req.resp <- result{err: p.reject(err)}
		return
	}

	p.state.Store(int32(StateProcessing))
	start := time.Now()

	bundle, err := p.provisioner.ProvisionNode(req.ctx, req.name)
	req.resp <- result{bundle: bundle, err: err}
	p.processed.Inc()

	duration := time.Since(start)
	if err != nil {
		log.Warn("Provisioning request failed", "err", err, slog.Duration("duration", duration))
	} else {
		log.Debug("Provisioning request completed", slog.Duration("duration", duration))
	}
	if p.observer != nil {
		p.observer.ObserveResult(err, duration)
	}
}

func (p *Pipeline) reject(err error) error {
	if p.observer != nil {
		p.observer.ObserveRejected(err)
	}
	return err
}

func (p *Pipeline) observeDepth() {
	if p.observer != nil {
		p.observer.ObserveQueueDepth(len(p.queue))
	}
}
