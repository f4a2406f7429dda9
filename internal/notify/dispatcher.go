package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dbayan/storefront/internal/metrics"
)

// DispatcherConfig bounds the retry behavior of the mail queue.
type DispatcherConfig struct {
	Workers     int
	MaxAttempts int
	RetryDelay  time.Duration
	QueueSize   int
}

func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Workers:     2,
		MaxAttempts: 3,
		RetryDelay:  2 * time.Second,
		QueueSize:   64,
	}
}

type task struct {
	msg      Message
	attempts int
}

// Dispatcher decouples mail delivery from the request that triggered it:
// a persisted stock decrement is never rolled back because a mail bounced.
// Failures are retried a bounded number of times, then counted and logged.
type Dispatcher struct {
	notifier Notifier
	config   DispatcherConfig
	log      *zap.Logger

	queue          chan task
	wg             sync.WaitGroup
	shutdownSignal chan struct{}
	stopOnce       sync.Once
}

func NewDispatcher(notifier Notifier, config DispatcherConfig, log *zap.Logger) *Dispatcher {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 16
	}
	return &Dispatcher{
		notifier:       notifier,
		config:         config,
		log:            log,
		queue:          make(chan task, config.QueueSize),
		shutdownSignal: make(chan struct{}),
	}
}

// Enqueue hands a message to the workers. It never blocks the caller: a
// full queue drops the message with a logged failure.
func (d *Dispatcher) Enqueue(msg Message) {
	select {
	case d.queue <- task{msg: msg}:
	default:
		d.log.Error("mail queue full, dropping message",
			zap.String("to", msg.To), zap.String("subject", msg.Subject))
		metrics.MailFailedTotal.Inc()
	}
}

// Run starts the workers and blocks until the context is cancelled or
// Shutdown is called.
func (d *Dispatcher) Run(ctx context.Context) error {
	for i := 0; i < d.config.Workers; i++ {
		d.wg.Add(1)
		go d.runWorker(ctx, i)
	}

	select {
	case <-ctx.Done():
	case <-d.shutdownSignal:
	}
	d.Shutdown()
	return nil
}

// Shutdown stops accepting deliveries and waits for in-flight sends.
func (d *Dispatcher) Shutdown() {
	d.stopOnce.Do(func() {
		close(d.shutdownSignal)

		done := make(chan struct{})
		go func() {
			d.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			d.log.Info("mail dispatcher stopped")
		case <-time.After(10 * time.Second):
			d.log.Warn("mail dispatcher shutdown timed out")
		}
	})
}

func (d *Dispatcher) runWorker(ctx context.Context, id int) {
	defer d.wg.Done()

	for {
		select {
		case t := <-d.queue:
			d.deliver(ctx, t)
		case <-d.shutdownSignal:
			// Drain whatever is already queued before exiting.
			for {
				select {
				case t := <-d.queue:
					d.deliver(ctx, t)
				default:
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, t task) {
	for t.attempts < d.config.MaxAttempts {
		t.attempts++
		err := d.notifier.Send(ctx, t.msg)
		if err == nil {
			metrics.MailSentTotal.Inc()
			return
		}

		d.log.Warn("mail delivery failed",
			zap.String("to", t.msg.To),
			zap.Int("attempt", t.attempts),
			zap.Error(err),
		)

		if t.attempts >= d.config.MaxAttempts {
			break
		}
		select {
		case <-time.After(d.config.RetryDelay):
		case <-ctx.Done():
			metrics.MailFailedTotal.Inc()
			return
		case <-d.shutdownSignal:
			metrics.MailFailedTotal.Inc()
			return
		}
	}

	d.log.Error("mail permanently undelivered",
		zap.String("to", t.msg.To), zap.String("subject", t.msg.Subject))
	metrics.MailFailedTotal.Inc()
}
