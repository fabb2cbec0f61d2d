package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/revolis/allpremarkets/internal/domain/models"
	domrepo "github.com/revolis/allpremarkets/internal/domain/repository"
	"github.com/revolis/allpremarkets/pkg/logger"
)

var ErrPipelineStopped = errors.New("alert pipeline stopped")

// AlertPipeline sits between the engine and the alert sinks. Dispatch
// enqueues without blocking; workers fan each event out to every sink
// with bounded retries. Events for one (rule, symbol) always land on the
// same worker so their order is kept.
type AlertPipeline struct {
	sinks          []domrepo.AlertSink
	metrics        domrepo.Metrics
	log            *logger.Logger
	workers        int
	bufSize        int
	retryMax       int
	backoffMin     time.Duration
	backoffMax     time.Duration
	deliverTimeout time.Duration

	mu      sync.RWMutex
	queues  []chan models.AlertEvent
	started bool
	closed  bool
	abortCh chan struct{}
	wg      sync.WaitGroup
}

type PipelineOption func(*AlertPipeline)

// WithWorkers sets the number of delivery workers.
func WithWorkers(n int) PipelineOption {
	return func(p *AlertPipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithBufferSize sets the total queue capacity shared by the workers.
func WithBufferSize(n int) PipelineOption {
	return func(p *AlertPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithRetry sets per-sink retry attempts and the backoff range.
func WithRetry(max int, backoffMin, backoffMax time.Duration) PipelineOption {
	return func(p *AlertPipeline) {
		if max >= 0 {
			p.retryMax = max
		}
		if backoffMin > 0 {
			p.backoffMin = backoffMin
		}
		if backoffMax >= p.backoffMin {
			p.backoffMax = backoffMax
		}
	}
}

// WithDeliverTimeout bounds a single sink delivery.
func WithDeliverTimeout(d time.Duration) PipelineOption {
	return func(p *AlertPipeline) {
		if d > 0 {
			p.deliverTimeout = d
		}
	}
}

// WithPipelineMetrics sets the metrics recorder.
func WithPipelineMetrics(m domrepo.Metrics) PipelineOption {
	return func(p *AlertPipeline) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithPipelineLogger sets the logger.
func WithPipelineLogger(l *logger.Logger) PipelineOption {
	return func(p *AlertPipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// NewAlertPipeline creates a pipeline delivering to sinks. The pipeline
// owns the sinks and closes them on Stop.
func NewAlertPipeline(sinks []domrepo.AlertSink, opts ...PipelineOption) *AlertPipeline {
	p := &AlertPipeline{
		sinks:          sinks,
		metrics:        domrepo.NopMetrics{},
		log:            logger.Nop(),
		workers:        2,
		bufSize:        1024,
		retryMax:       3,
		backoffMin:     200 * time.Millisecond,
		backoffMax:     5 * time.Second,
		deliverTimeout: 10 * time.Second,
		abortCh:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	per := p.bufSize / p.workers
	if per < 1 {
		per = 1
	}
	p.queues = make([]chan models.AlertEvent, p.workers)
	for i := range p.queues {
		p.queues[i] = make(chan models.AlertEvent, per)
	}
	return p
}

// Sinks returns the sink names in delivery order.
func (p *AlertPipeline) Sinks() []string {
	names := make([]string, len(p.sinks))
	for i, s := range p.sinks {
		names[i] = s.Name()
	}
	return names
}

// Start launches the delivery workers. Calling it twice is a no-op.
func (p *AlertPipeline) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true
	for _, q := range p.queues {
		p.wg.Add(1)
		go p.worker(q)
	}
	p.log.Info("alert pipeline started",
		logger.Int("workers", p.workers),
		logger.Strings("sinks", p.Sinks()),
	)
}

// Dispatch enqueues ev. It returns false when the pipeline is stopped or
// the worker's queue is full.
func (p *AlertPipeline) Dispatch(ev models.AlertEvent) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return false
	}
	select {
	case p.queues[p.slot(ev)] <- ev:
		return true
	default:
		p.metrics.RecordDispatchDropped()
		p.log.Warn("alert queue full, dropping event",
			logger.String("rule_id", ev.RuleID),
			logger.String("symbol", ev.Symbol),
			logger.Uint64("seq", ev.Seq),
		)
		return false
	}
}

func (p *AlertPipeline) slot(ev models.AlertEvent) int {
	if len(p.queues) == 1 {
		return 0
	}
	h := xxhash.New()
	_, _ = h.WriteString(ev.RuleID)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(ev.Symbol)
	return int(h.Sum64() % uint64(len(p.queues)))
}

// Stop rejects new events, drains queued ones and closes the sinks. If
// ctx expires first, retries are abandoned and ctx's error is returned.
func (p *AlertPipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	started := p.started
	for _, q := range p.queues {
		close(q)
	}
	p.mu.Unlock()

	var stopErr error
	if started {
		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			close(p.abortCh)
			<-done
			stopErr = fmt.Errorf("drain alert pipeline: %w", ctx.Err())
		}
	}

	for _, s := range p.sinks {
		if err := s.Close(); err != nil {
			p.log.Warn("alert sink close failed", logger.String("sink", s.Name()), logger.Error(err))
		}
	}
	p.log.Info("alert pipeline stopped")
	return stopErr
}

func (p *AlertPipeline) worker(q <-chan models.AlertEvent) {
	defer p.wg.Done()
	for ev := range q {
		for _, s := range p.sinks {
			p.deliver(s, ev)
		}
	}
}

func (p *AlertPipeline) deliver(s domrepo.AlertSink, ev models.AlertEvent) {
	start := time.Now()
	var err error
	for attempt := 0; attempt <= p.retryMax; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(p.backoff(attempt)):
			case <-p.abortCh:
				p.metrics.RecordDispatch(s.Name(), "aborted")
				return
			}
		}
		if err = p.safeDeliver(s, ev); err == nil {
			p.metrics.RecordDispatch(s.Name(), "ok")
			p.metrics.RecordLatency("deliver_"+s.Name(), time.Since(start).Seconds())
			return
		}
	}
	p.metrics.RecordDispatch(s.Name(), "failed")
	p.log.Error("alert delivery failed",
		logger.String("sink", s.Name()),
		logger.String("rule_id", ev.RuleID),
		logger.String("symbol", ev.Symbol),
		logger.Uint64("seq", ev.Seq),
		logger.Int("attempts", p.retryMax+1),
		logger.Error(err),
	)
}

func (p *AlertPipeline) safeDeliver(s domrepo.AlertSink, ev models.AlertEvent) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.deliverTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink %s panic: %v", s.Name(), r)
		}
	}()
	return s.Deliver(ctx, ev)
}

// backoff doubles from backoffMin and caps at backoffMax.
func (p *AlertPipeline) backoff(attempt int) time.Duration {
	d := p.backoffMin
	for i := 1; i < attempt && d < p.backoffMax; i++ {
		d *= 2
	}
	if d > p.backoffMax {
		d = p.backoffMax
	}
	return d
}
