package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

var (
	ErrPoolFull    = errors.New("categorization queue is full")
	ErrPoolStopped = errors.New("categorization pool is not running")
)

// CategorizeFunc is the follow-up each pool worker runs.
type CategorizeFunc func(ctx context.Context, userID, txID string) error

type CategorizePoolConfig struct {
	Workers   int
	QueueSize int
}

func DefaultCategorizePoolConfig() CategorizePoolConfig {
	return CategorizePoolConfig{Workers: 4, QueueSize: 256}
}

type categorizeJob struct {
	userID, txID string
}

// CategorizePool is the in-process Dispatcher used when no broker is
// configured. Jobs are dropped, not blocked on, when the queue is full.
type CategorizePool struct {
	fn     CategorizeFunc
	config CategorizePoolConfig

	mu      sync.Mutex
	running bool
	jobs    chan categorizeJob
	group   *errgroup.Group
	cancel  context.CancelFunc
}

func NewCategorizePool(fn CategorizeFunc, config CategorizePoolConfig) *CategorizePool {
	def := DefaultCategorizePoolConfig()
	if config.Workers <= 0 {
		config.Workers = def.Workers
	}
	if config.QueueSize <= 0 {
		config.QueueSize = def.QueueSize
	}
	return &CategorizePool{fn: fn, config: config}
}

// Start launches the workers. Returns an error if already running.
func (p *CategorizePool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("categorize pool is already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.jobs = make(chan categorizeJob, p.config.QueueSize)
	p.group = &errgroup.Group{}
	p.running = true

	jobs := p.jobs
	for i := 0; i < p.config.Workers; i++ {
		p.group.Go(func() error {
			for job := range jobs {
				if err := p.fn(ctx, job.userID, job.txID); err != nil {
					slog.ErrorContext(ctx, "Categorization task failed",
						"transaction_id", job.txID, "error", err)
				}
			}
			return nil
		})
	}

	slog.InfoContext(ctx, "Categorize pool started",
		"workers", p.config.Workers, "queue_size", p.config.QueueSize)
	return nil
}

func (p *CategorizePool) PublishCategorize(_ context.Context, userID, txID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return ErrPoolStopped
	}
	select {
	case p.jobs <- categorizeJob{userID: userID, txID: txID}:
		return nil
	default:
		return ErrPoolFull
	}
}

// Stop drains queued jobs and waits for workers, or gives up when ctx ends.
func (p *CategorizePool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	close(p.jobs)
	group, cancel := p.group, p.cancel
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		group.Wait()
		close(done)
	}()

	select {
	case <-done:
		cancel()
		slog.InfoContext(ctx, "Categorize pool stopped gracefully")
		return nil
	case <-ctx.Done():
		cancel()
		slog.WarnContext(ctx, "Categorize pool stop timed out")
		return ctx.Err()
	}
}

func (p *CategorizePool) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
