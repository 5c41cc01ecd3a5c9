package budget

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/arsenis-cmd/BudgetBot/internal/core"
	"github.com/arsenis-cmd/BudgetBot/internal/log"
)

// AsyncNotifier hands each alert to next on its own goroutine, bounded by
// timeout, so slow mirrors never hold up the caller. NotifyAlert always
// returns nil; failures are logged here.
type AsyncNotifier struct {
	next    AlertNotifier
	timeout time.Duration
	logger  *log.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewAsyncNotifier(next AlertNotifier, timeout time.Duration) *AsyncNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AsyncNotifier{
		next:    next,
		timeout: timeout,
		logger:  log.New(log.Config{Handler: slog.Default().Handler(), Component: log.ComponentBudget}),
	}
}

func (n *AsyncNotifier) NotifyAlert(ctx context.Context, a core.Alert) error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		n.logger.WarnContext(ctx, "Alert notification dropped, notifier closed", log.FieldAlertID, a.ID)
		return nil
	}
	n.wg.Add(1)
	n.mu.Unlock()

	// Detached from the request so a finished response does not cancel it.
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	go func() {
		defer n.wg.Done()
		defer cancel()
		if err := n.next.NotifyAlert(nctx, a); err != nil {
			n.logger.WarnContext(nctx, "Alert notification failed", log.FieldAlertID, a.ID, log.FieldError, err)
		}
	}()
	return nil
}

// Close stops accepting alerts and waits for in-flight ones until ctx ends.
func (n *AsyncNotifier) Close(ctx context.Context) error {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
