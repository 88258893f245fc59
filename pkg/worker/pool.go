package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kacperjurak/hyqcore/pkg/logging"
	"github.com/kacperjurak/hyqcore/pkg/metrics"
	"github.com/kacperjurak/hyqcore/pkg/models"
	"github.com/kacperjurak/hyqcore/pkg/webhook"
)

var (
	// ErrClosed is returned by Submit after Shutdown started.
	ErrClosed = errors.New("worker: pool is shut down")
	// ErrPanic wraps a panic recovered while processing a scenario.
	ErrPanic = errors.New("worker: scenario processing panicked")
)

// Processor evaluates one scenario.
type Processor interface {
	Process(req *models.ScenarioRequest) (*models.ScenarioResult, error)
}

// Store persists finished and queued runs.
type Store interface {
	Save(ctx context.Context, r *models.ScenarioResult) error
}

// Sender delivers webhook notifications.
type Sender interface {
	Send(ctx context.Context, item models.WebhookItem) error
}

// Pool runs queued batch scenarios on a fixed number of goroutines, stores
// every result and announces it to the item's callback URL.
type Pool struct {
	jobs         chan models.WorkItem
	webhookQueue chan models.WebhookItem
	workers      int
	processor    Processor
	store        Store
	sender       Sender
	done         func(models.WorkResult)

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.RWMutex
	closed    bool
	wg        sync.WaitGroup
	webhookWg sync.WaitGroup
}

// Options holds configuration for creating a new worker pool.
type Options struct {
	Workers   int
	QueueSize int
	Processor Processor
	// Store and Sender are optional.
	Store  Store
	Sender Sender
	// Done is called after each item was stored and its webhook queued.
	Done func(models.WorkResult)
}

// New creates a worker pool and starts its goroutines.
func New(opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = opts.Workers * 2
	}

	ctx, cancel := context.WithCancel(context.Background())
	pool := &Pool{
		jobs:         make(chan models.WorkItem, opts.QueueSize),
		webhookQueue: make(chan models.WebhookItem, opts.QueueSize*2),
		workers:      opts.Workers,
		processor:    opts.Processor,
		store:        opts.Store,
		sender:       opts.Sender,
		done:         opts.Done,
		ctx:          ctx,
		cancel:       cancel,
	}

	pool.start()
	return pool
}

func (p *Pool) start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.webhookWg.Add(1)
	go p.webhookProcessor()

	logging.Info().Int("workers", p.workers).Int("queue", cap(p.jobs)).Msg("worker pool started")
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for job := range p.jobs {
		metrics.QueueDepth.Set(float64(len(p.jobs)))
		result := p.processJob(job)
		logging.Debug().
			Int("worker", id).
			Str("run_id", job.RunID).
			Str("status", result.Result.Status).
			Dur("elapsed", result.ProcessingTime).
			Msg("batch scenario finished")
		if p.done != nil {
			p.done(result)
		}
	}
}

func (p *Pool) processJob(job models.WorkItem) models.WorkResult {
	start := time.Now()
	res, err := p.process(&job.Scenario)
	elapsed := time.Since(start)

	if err != nil {
		res = errorResult(job, err)
	}
	res.ID = job.RunID
	res.BatchID = job.BatchID

	if p.store != nil {
		if serr := p.store.Save(p.ctx, res); serr != nil {
			logging.Error().Err(serr).Str("run_id", job.RunID).Msg("failed to store run")
			if err == nil {
				// replace the queued placeholder with something final
				err = fmt.Errorf("store run: %w", serr)
				res = errorResult(job, err)
				if serr := p.store.Save(p.ctx, res); serr != nil {
					logging.Error().Err(serr).Str("run_id", job.RunID).Msg("failed to store run error")
				}
			}
		}
	}
	if job.CallbackURL != "" {
		p.QueueWebhook(models.WebhookItem{URL: job.CallbackURL, Payload: payload(job, res)})
	}

	return models.WorkResult{
		RunID:          job.RunID,
		BatchID:        job.BatchID,
		Index:          job.Index,
		Result:         res,
		Err:            err,
		ProcessingTime: elapsed,
	}
}

func (p *Pool) process(req *models.ScenarioRequest) (res *models.ScenarioResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().Interface("panic", r).Str("scenario", req.Name).Msg("recovered from panic")
			res, err = nil, fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return p.processor.Process(req)
}

func errorResult(job models.WorkItem, err error) *models.ScenarioResult {
	return &models.ScenarioResult{
		ID:        job.RunID,
		BatchID:   job.BatchID,
		Name:      job.Scenario.Name,
		Status:    models.StatusError,
		Error:     err.Error(),
		Wells:     len(job.Scenario.Wells),
		CreatedAt: time.Now().UTC(),
	}
}

func payload(job models.WorkItem, res *models.ScenarioResult) models.WebhookPayload {
	pl := models.WebhookPayload{
		Event:     models.EventScenarioCompleted,
		RunID:     job.RunID,
		BatchID:   job.BatchID,
		Index:     job.Index,
		Status:    res.Status,
		Error:     res.Error,
		RuntimeMs: res.RuntimeMs,
		Time:      time.Now().UTC(),
	}
	if res.Status == models.StatusOK {
		pl.Timesteps = make([]float64, len(res.Snapshots))
		pl.MaxDrawdown = make([]float64, len(res.Snapshots))
		for i, s := range res.Snapshots {
			pl.Timesteps[i] = s.Time
			pl.MaxDrawdown[i] = s.MaxDrawdown
		}
	}
	return pl
}

func (p *Pool) webhookProcessor() {
	defer p.webhookWg.Done()

	for item := range p.webhookQueue {
		if p.sender == nil {
			continue
		}
		if err := p.sender.Send(p.ctx, item); err != nil {
			logging.Warn().Err(err).Str("run_id", item.Payload.RunID).Msg("webhook not delivered")
		}
	}
}

// Submit queues a job, blocking while the queue is full. A queued
// placeholder is stored so the run is visible before it is processed.
func (p *Pool) Submit(ctx context.Context, job models.WorkItem) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	if job.QueuedAt.IsZero() {
		job.QueuedAt = time.Now().UTC()
	}
	if p.store != nil {
		placeholder := &models.ScenarioResult{
			ID:        job.RunID,
			BatchID:   job.BatchID,
			Name:      job.Scenario.Name,
			Status:    models.StatusQueued,
			Wells:     len(job.Scenario.Wells),
			CreatedAt: job.QueuedAt,
		}
		if err := p.store.Save(ctx, placeholder); err != nil {
			return err
		}
	}

	select {
	case p.jobs <- job:
		metrics.QueueDepth.Set(float64(len(p.jobs)))
		return nil
	default:
		logging.Warn().Str("run_id", job.RunID).Msg("worker pool queue full, waiting")
	}
	select {
	case p.jobs <- job:
		metrics.QueueDepth.Set(float64(len(p.jobs)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// QueueWebhook queues a notification, dropping it when the queue is full.
func (p *Pool) QueueWebhook(item models.WebhookItem) {
	select {
	case p.webhookQueue <- item:
	default:
		metrics.RecordWebhook(webhook.ResultDropped)
		logging.Warn().Str("run_id", item.Payload.RunID).Msg("webhook queue full, dropping notification")
	}
}

// Shutdown stops accepting jobs, lets the workers finish the queue and
// flushes pending webhooks. When ctx expires first, in-flight webhook
// deliveries are canceled and ctx's error is returned.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	logging.Info().Int("pending", len(p.jobs)).Msg("shutting down worker pool")

	if err := wait(ctx, &p.wg); err != nil {
		p.cancel()
		return err
	}
	close(p.webhookQueue)
	err := wait(ctx, &p.webhookWg)
	p.cancel()
	if err == nil {
		logging.Info().Msg("worker pool shutdown complete")
	}
	return err
}

func wait(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
