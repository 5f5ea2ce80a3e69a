package notify

import (
	"context"

	"scout-portal/internal/worker"

	"github.com/rs/zerolog/log"
)

type Notifier interface {
	Name() string
	Notify(ctx context.Context, event Event) error
}

// Publisher is what the workflow services depend on.
type Publisher interface {
	Publish(event Event)
}

// Dispatcher fans events out to every notifier on the worker pool. Delivery
// is fire-and-forget: failures are logged and never reach the caller.
type Dispatcher struct {
	pool      *worker.WorkerPool
	notifiers []Notifier
}

func NewDispatcher(pool *worker.WorkerPool, notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{pool: pool, notifiers: notifiers}
}

func (d *Dispatcher) Publish(event Event) {
	for _, n := range d.notifiers {
		n := n
		d.pool.Submit(func(ctx context.Context) error {
			if err := n.Notify(ctx, event); err != nil {
				log.Warn().Err(err).
					Str("notifier", n.Name()).
					Str("event", string(event.Type)).
					Uint64("child_id", event.ChildID).
					Msg("notification failed")
				return nil
			}
			return nil
		})
	}
}

// LogNotifier writes events to the application log.
type LogNotifier struct{}

func (LogNotifier) Name() string { return "log" }

func (LogNotifier) Notify(_ context.Context, event Event) error {
	log.Info().
		Str("event", string(event.Type)).
		Uint64("child_id", event.ChildID).
		Str("doc_type", string(event.DocType)).
		Uint64("actor_id", event.ActorID).
		Msg(event.Title())
	return nil
}

// Discard drops every event. Used where no notification is wanted.
type Discard struct{}

func (Discard) Publish(Event) {}
