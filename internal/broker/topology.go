package broker

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"mercado/internal/config"
	"mercado/internal/constants"
)

// Topology is the exchange/queue layout shared by the report producer and
// the report worker. Both sides declare it; declarations are idempotent as
// long as the arguments match.
type Topology struct {
	Exchange           string
	Queue              string
	RoutingKey         string
	DeadLetterExchange string
	DeadLetterQueue    string
}

func TopologyFromConfig(cfg config.RabbitMQConfig) Topology {
	t := Topology{
		Exchange:           cfg.Exchange,
		Queue:              cfg.Queue,
		RoutingKey:         cfg.RoutingKey,
		DeadLetterExchange: cfg.DeadLetterExchange,
		DeadLetterQueue:    cfg.DeadLetterQueue,
	}
	if t.DeadLetterExchange == "" {
		t.DeadLetterExchange = t.Exchange + constants.DefaultDeadLetterSuffix
	}
	if t.DeadLetterQueue == "" {
		t.DeadLetterQueue = t.Queue + constants.DefaultDLQSuffix
	}
	return t
}

// Declarer is the subset of *amqp.Channel used to declare topology.
type Declarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

func (t Topology) queueArgs() amqp.Table {
	return amqp.Table{
		"x-dead-letter-exchange":    t.DeadLetterExchange,
		"x-dead-letter-routing-key": t.RoutingKey,
	}
}

func (t Topology) Declare(ch Declarer) error {
	if err := ch.ExchangeDeclare(t.DeadLetterExchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dead-letter exchange %s: %w", t.DeadLetterExchange, err)
	}
	if _, err := ch.QueueDeclare(t.DeadLetterQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dead-letter queue %s: %w", t.DeadLetterQueue, err)
	}
	if err := ch.QueueBind(t.DeadLetterQueue, t.RoutingKey, t.DeadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("bind dead-letter queue: %w", err)
	}

	if err := ch.ExchangeDeclare(t.Exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", t.Exchange, err)
	}
	if _, err := ch.QueueDeclare(t.Queue, true, false, false, false, t.queueArgs()); err != nil {
		return fmt.Errorf("declare queue %s: %w", t.Queue, err)
	}
	if err := ch.QueueBind(t.Queue, t.RoutingKey, t.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", t.Queue, err)
	}
	return nil
}
