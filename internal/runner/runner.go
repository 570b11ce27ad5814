package runner

import (
	"context"
	"errors"
	"sync"

	"patient_arrivals/internal/service"

	"go.uber.org/zap"
)

var (
	ErrNotRunning     = errors.New("runner is not running")
	ErrAlreadyRunning = errors.New("runner is already running")
	ErrQueueFull      = errors.New("analysis queue is full")
)

// Analyzer runs one analysis request
type Analyzer interface {
	Analyze(ctx context.Context, req service.AnalyzeRequest) (*service.AnalyzeResponse, error)
}

// Handlers receive job outcomes on the worker goroutine.
// OnError gets the partial response when the analysis produced one.
type Handlers struct {
	OnDone  func(req service.AnalyzeRequest, resp *service.AnalyzeResponse)
	OnError func(req service.AnalyzeRequest, resp *service.AnalyzeResponse, err error)
}

// Runner executes analysis requests one at a time off the caller's goroutine
type Runner struct {
	analyzer  Analyzer
	handlers  Handlers
	logger    *zap.Logger
	queueSize int

	mu         sync.RWMutex
	queue      chan service.AnalyzeRequest
	mainCtx    context.Context
	mainCancel context.CancelFunc
	wg         sync.WaitGroup
	busy       bool
}

// NewRunner creates a runner. queueSize bounds the pending requests and is at least 1.
func NewRunner(analyzer Analyzer, handlers Handlers, queueSize int, logger *zap.Logger) *Runner {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Runner{
		analyzer:  analyzer,
		handlers:  handlers,
		logger:    logger,
		queueSize: queueSize,
	}
}

// IsRunning returns true if the worker is started
func (r *Runner) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mainCancel != nil
}

// Busy reports whether a request is currently being analyzed
func (r *Runner) Busy() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.busy
}

// Start launches the worker. It stops when ctx is done or Stop is called.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.mainCancel != nil {
		return ErrAlreadyRunning
	}
	r.mainCtx, r.mainCancel = context.WithCancel(ctx)
	r.queue = make(chan service.AnalyzeRequest, r.queueSize)

	r.wg.Add(1)
	go r.work(r.mainCtx, r.queue)

	r.logger.Info("Analysis runner started", zap.Int("queue_size", r.queueSize))
	return nil
}

// Stop cancels the running analysis, drops queued requests and waits for the worker
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.mainCancel == nil {
		r.mu.Unlock()
		return
	}
	r.mainCancel()
	r.mainCancel = nil
	r.mainCtx = nil
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info("Analysis runner stopped")
}

// Submit queues a request without blocking
func (r *Runner) Submit(req service.AnalyzeRequest) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.mainCancel == nil {
		return ErrNotRunning
	}
	select {
	case r.queue <- req:
		return nil
	default:
		return ErrQueueFull
	}
}

func (r *Runner) work(ctx context.Context, queue <-chan service.AnalyzeRequest) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-queue:
			if ctx.Err() != nil {
				return
			}
			r.run(ctx, req)
		}
	}
}

func (r *Runner) run(ctx context.Context, req service.AnalyzeRequest) {
	r.setBusy(true)
	defer r.setBusy(false)

	resp, err := r.analyzer.Analyze(ctx, req)
	if err != nil {
		r.logger.Warn("Analysis failed", zap.String("input", req.InputPath), zap.Error(err))
		if r.handlers.OnError != nil {
			r.handlers.OnError(req, resp, err)
		}
		return
	}
	if r.handlers.OnDone != nil {
		r.handlers.OnDone(req, resp)
	}
}

func (r *Runner) setBusy(busy bool) {
	r.mu.Lock()
	r.busy = busy
	r.mu.Unlock()
}
