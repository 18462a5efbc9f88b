package notification

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/go-blog-api/app/observability/metrics"
	"github.com/FACorreiaa/go-blog-api/config"
)

var ErrDispatcherClosed = errors.New("dispatcher is shut down")

// Dispatcher hands messages to a fixed pool of workers. Enqueue never waits
// on the network; delivery errors are logged and counted, never returned.
type Dispatcher struct {
	mailer      Mailer
	logger      *slog.Logger
	metrics     *metrics.AppMetrics
	workers     int
	sendTimeout time.Duration
	dedup       *cache.Cache
	dedupWindow time.Duration

	mu      sync.RWMutex
	closed  bool
	started bool
	queue   chan Message
	group   *errgroup.Group
}

func NewDispatcher(mailer Mailer, cfg config.MailConfig, logger *slog.Logger, m *metrics.AppMetrics) *Dispatcher {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	queueSize := cfg.QueueSize
	if queueSize < 1 {
		queueSize = 1
	}
	sendTimeout := cfg.SendTimeout
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}

	d := &Dispatcher{
		mailer:      mailer,
		logger:      logger.With(slog.String("component", "Dispatcher")),
		metrics:     m,
		workers:     workers,
		sendTimeout: sendTimeout,
		dedupWindow: cfg.DedupWindow,
		queue:       make(chan Message, queueSize),
	}
	if cfg.DedupWindow > 0 {
		d.dedup = cache.New(cfg.DedupWindow, 2*cfg.DedupWindow)
	}
	return d
}

// Start launches the workers. Sends inherit ctx values but not its
// cancellation, so queued mail still drains after shutdown begins.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true

	base := context.WithoutCancel(ctx)
	d.group = &errgroup.Group{}
	for i := 0; i < d.workers; i++ {
		worker := i
		d.group.Go(func() error {
			d.work(base, worker)
			return nil
		})
	}
	d.logger.InfoContext(ctx, "Email dispatcher started", slog.Int("workers", d.workers), slog.Int("queue_size", cap(d.queue)))
}

// Enqueue schedules msg for delivery. It reports whether the message was
// accepted; a duplicate inside the dedup window, a full queue or a closed
// dispatcher all return false.
func (d *Dispatcher) Enqueue(ctx context.Context, msg Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	l := d.logger.With(slog.String("to", msg.To), slog.String("subject", msg.Subject))
	if d.closed {
		l.WarnContext(ctx, "Dropping email, dispatcher is shut down")
		d.count(ctx, "dropped")
		return false
	}

	key := msg.To + "\x00" + msg.Subject + "\x00" + msg.Text
	if d.dedup != nil {
		if err := d.dedup.Add(key, struct{}{}, d.dedupWindow); err != nil {
			l.InfoContext(ctx, "Suppressing duplicate email inside dedup window")
			d.count(ctx, "deduplicated")
			return false
		}
	}

	select {
	case d.queue <- msg:
		return true
	default:
		if d.dedup != nil {
			d.dedup.Delete(key)
		}
		l.WarnContext(ctx, "Email queue full, dropping message", slog.Int("queue_size", cap(d.queue)))
		d.count(ctx, "dropped")
		return false
	}
}

// Shutdown stops accepting messages and waits for queued ones to be sent or
// for ctx to expire.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDispatcherClosed
	}
	d.closed = true
	close(d.queue)
	group := d.group
	d.mu.Unlock()

	if group == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- group.Wait() }()

	select {
	case err := <-done:
		d.logger.InfoContext(ctx, "Email dispatcher drained")
		return err
	case <-ctx.Done():
		d.logger.WarnContext(ctx, "Email dispatcher shutdown timed out", slog.Int("pending", len(d.queue)))
		return ctx.Err()
	}
}

func (d *Dispatcher) work(ctx context.Context, worker int) {
	for msg := range d.queue {
		d.deliver(ctx, worker, msg)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, worker int, msg Message) {
	ctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	l := d.logger.With(slog.Int("worker", worker), slog.String("to", msg.To), slog.String("subject", msg.Subject))

	start := time.Now()
	err := d.mailer.Send(ctx, msg)
	d.metrics.EmailSendDuration.Record(ctx, time.Since(start).Seconds())

	if err != nil {
		l.ErrorContext(ctx, "Failed to send email", slog.Any("error", err))
		d.count(ctx, "failed")
		return
	}
	l.DebugContext(ctx, "Email sent")
	d.count(ctx, "sent")
}

func (d *Dispatcher) count(ctx context.Context, result string) {
	metrics.Count(ctx, d.metrics.EmailsTotal, attribute.String("result", result))
}
