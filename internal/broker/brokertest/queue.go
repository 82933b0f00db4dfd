// Package brokertest provides an in-process stand-in for the report queue.
// It honours prefetch, manual acknowledgement and requeue-on-disconnect the
// way a RabbitMQ channel does, so producer and worker code can be exercised
// together without a broker.
package brokertest

import (
	"context"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"mercado/internal/broker"
)

type Queue struct {
	mu           sync.Mutex
	prefetch     int
	nextTag      uint64
	ready        []amqp.Delivery
	unacked      map[uint64]amqp.Delivery
	acked        []amqp.Delivery
	deadLettered []amqp.Delivery
	maxUnacked   int
	publishErr   error
	wake         chan struct{}
}

func NewQueue(prefetch int) *Queue {
	if prefetch < 1 {
		prefetch = 1
	}
	return &Queue{
		prefetch: prefetch,
		unacked:  make(map[uint64]amqp.Delivery),
		wake:     make(chan struct{}, 1),
	}
}

// FailPublishes makes every subsequent Publish return err; nil restores it.
func (q *Queue) FailPublishes(err error) {
	q.mu.Lock()
	q.publishErr = err
	q.mu.Unlock()
}

func (q *Queue) Publish(ctx context.Context, msg broker.Message) error {
	q.mu.Lock()
	if q.publishErr != nil {
		err := q.publishErr
		q.mu.Unlock()
		return err
	}
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	q.ready = append(q.ready, amqp.Delivery{
		Headers:      msg.Headers,
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Timestamp:    ts,
		Type:         msg.Type,
		Body:         msg.Body,
	})
	q.mu.Unlock()
	q.signal()
	return nil
}

// PublishRaw enqueues an arbitrary body, e.g. one a foreign producer sent.
func (q *Queue) PublishRaw(messageID string, body []byte) {
	_ = q.Publish(context.Background(), broker.Message{ID: messageID, Body: body})
}

// Consume starts a consumer. The returned channel is unbuffered, so a
// delivery is only handed over when the receiver is ready. Calling
// disconnect simulates a dropped channel: the channel closes and every
// unacknowledged delivery goes back to the head of the queue.
func (q *Queue) Consume(ctx context.Context) (deliveries <-chan amqp.Delivery, disconnect func()) {
	out := make(chan amqp.Delivery)
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer close(out)
		for {
			d, ok := q.next()
			if !ok {
				select {
				case <-q.wake:
					continue
				case <-ctx.Done():
					return
				case <-stop:
					return
				}
			}
			select {
			case out <- d:
			case <-ctx.Done():
				q.requeue(d.DeliveryTag)
				return
			case <-stop:
				q.requeue(d.DeliveryTag)
				return
			}
		}
	}()

	var once sync.Once
	disconnect = func() {
		once.Do(func() {
			close(stop)
			<-done
			q.requeueAll()
		})
	}
	return out, disconnect
}

func (q *Queue) next() (amqp.Delivery, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.ready) == 0 || len(q.unacked) >= q.prefetch {
		return amqp.Delivery{}, false
	}

	d := q.ready[0]
	q.ready = q.ready[1:]
	q.nextTag++
	d.DeliveryTag = q.nextTag
	d.Acknowledger = q
	q.unacked[d.DeliveryTag] = d
	if len(q.unacked) > q.maxUnacked {
		q.maxUnacked = len(q.unacked)
	}
	return d, true
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) requeue(tag uint64) {
	q.mu.Lock()
	if d, ok := q.unacked[tag]; ok {
		delete(q.unacked, tag)
		d.Redelivered = true
		q.ready = append([]amqp.Delivery{d}, q.ready...)
	}
	q.mu.Unlock()
	q.signal()
}

func (q *Queue) requeueAll() {
	q.mu.Lock()
	returned := make([]amqp.Delivery, 0, len(q.unacked))
	for tag, d := range q.unacked {
		delete(q.unacked, tag)
		d.Redelivered = true
		returned = append(returned, d)
	}
	q.ready = append(returned, q.ready...)
	q.mu.Unlock()
	q.signal()
}

func (q *Queue) settle(tag uint64, requeue, deadLetter bool) error {
	q.mu.Lock()
	d, ok := q.unacked[tag]
	if !ok {
		q.mu.Unlock()
		return amqp.ErrClosed
	}
	delete(q.unacked, tag)
	switch {
	case requeue:
		d.Redelivered = true
		q.ready = append(q.ready, d)
	case deadLetter:
		q.deadLettered = append(q.deadLettered, d)
	default:
		q.acked = append(q.acked, d)
	}
	q.mu.Unlock()
	q.signal()
	return nil
}

func (q *Queue) Ack(tag uint64, multiple bool) error {
	return q.settle(tag, false, false)
}

// Nack without requeue routes to the dead-letter list, matching a queue
// declared with x-dead-letter-exchange.
func (q *Queue) Nack(tag uint64, multiple, requeue bool) error {
	return q.settle(tag, requeue, !requeue)
}

func (q *Queue) Reject(tag uint64, requeue bool) error {
	return q.settle(tag, requeue, !requeue)
}

type Stats struct {
	Ready        int
	Unacked      int
	Acked        int
	DeadLettered int
	MaxUnacked   int
}

func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Ready:        len(q.ready),
		Unacked:      len(q.unacked),
		Acked:        len(q.acked),
		DeadLettered: len(q.deadLettered),
		MaxUnacked:   q.maxUnacked,
	}
}

// Ready returns a copy of the messages waiting to be delivered.
func (q *Queue) Ready() []amqp.Delivery {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]amqp.Delivery(nil), q.ready...)
}
