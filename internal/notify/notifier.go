package notify

import (
	"context"
	"log"
	"time"

	"github.com/IbrahemAmar/G11-ParkingSystem-sub000/internal/domain"
)

// Sink delivers a single notification somewhere external (log line, email,
// websocket feed). Implementations may block; the fanout shields the engine
// from that.
type Sink interface {
	Send(ctx context.Context, n domain.Notification) error
}

// Notifier is what the allocation engine sees: a fire-and-forget enqueue.
type Notifier interface {
	Notify(n domain.Notification)
}

// Fanout buffers notifications on a channel and pushes each one to every
// configured sink from a single worker goroutine. When the buffer is full the
// notification is dropped with a log line rather than blocking the engine.
type Fanout struct {
	sinks       []Sink
	events      chan domain.Notification
	sendTimeout time.Duration
}

func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{
		sinks:       sinks,
		events:      make(chan domain.Notification, 256),
		sendTimeout: 10 * time.Second,
	}
}

// Start runs the delivery loop until ctx is cancelled. Run it in its own
// goroutine.
func (f *Fanout) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Println("notification fanout: context cancelled, stopping")
			return
		case n := <-f.events:
			for _, sink := range f.sinks {
				sendCtx, cancel := context.WithTimeout(context.Background(), f.sendTimeout)
				if err := sink.Send(sendCtx, n); err != nil {
					log.Printf("notification fanout: sink %T failed for %s/%s: %v",
						sink, n.SubscriberCode, n.Kind, err)
				}
				cancel()
			}
		}
	}
}

func (f *Fanout) Notify(n domain.Notification) {
	select {
	case f.events <- n:
	default:
		log.Printf("notification fanout: buffer full, dropping %s event for %s", n.Kind, n.SubscriberCode)
	}
}

// LogSink writes every notification to the process log. Always configured, so
// events remain observable even with no external sinks set up.
type LogSink struct{}

func (LogSink) Send(_ context.Context, n domain.Notification) error {
	log.Printf("event %s for subscriber %s: %v", n.Kind, n.SubscriberCode, n.Payload)
	return nil
}
