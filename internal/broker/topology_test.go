package broker

import (
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mercado/internal/config"
)

type declaredQueue struct {
	durable bool
	args    amqp.Table
}

type fakeDeclarer struct {
	exchanges map[string]string
	queues    map[string]declaredQueue
	bindings  []string
	failQueue string
}

func newFakeDeclarer() *fakeDeclarer {
	return &fakeDeclarer{exchanges: map[string]string{}, queues: map[string]declaredQueue{}}
}

func (f *fakeDeclarer) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	f.exchanges[name] = kind
	return nil
}

func (f *fakeDeclarer) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	if name == f.failQueue {
		return amqp.Queue{}, errors.New("PRECONDITION_FAILED")
	}
	f.queues[name] = declaredQueue{durable: durable, args: args}
	return amqp.Queue{Name: name}, nil
}

func (f *fakeDeclarer) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	f.bindings = append(f.bindings, exchange+"->"+key+"->"+name)
	return nil
}

func TestTopologyFromConfigDerivesDeadLetterNames(t *testing.T) {
	topo := TopologyFromConfig(config.RabbitMQConfig{
		Exchange:   "reportes",
		Queue:      "reportes_inconsistencia",
		RoutingKey: "inconsistencia",
	})

	assert.Equal(t, "reportes.dlx", topo.DeadLetterExchange)
	assert.Equal(t, "reportes_inconsistencia.dlq", topo.DeadLetterQueue)
}

func TestTopologyDeclare(t *testing.T) {
	topo := TopologyFromConfig(config.RabbitMQConfig{
		Exchange:   "reportes",
		Queue:      "reportes_inconsistencia",
		RoutingKey: "inconsistencia",
	})
	d := newFakeDeclarer()

	require.NoError(t, topo.Declare(d))

	assert.Equal(t, amqp.ExchangeDirect, d.exchanges["reportes"])
	assert.Equal(t, amqp.ExchangeDirect, d.exchanges["reportes.dlx"])

	main := d.queues["reportes_inconsistencia"]
	assert.True(t, main.durable)
	assert.Equal(t, "reportes.dlx", main.args["x-dead-letter-exchange"])
	assert.True(t, d.queues["reportes_inconsistencia.dlq"].durable)

	assert.ElementsMatch(t, []string{
		"reportes->inconsistencia->reportes_inconsistencia",
		"reportes.dlx->inconsistencia->reportes_inconsistencia.dlq",
	}, d.bindings)
}

func TestTopologyDeclareSurfacesErrors(t *testing.T) {
	topo := TopologyFromConfig(config.RabbitMQConfig{Exchange: "reportes", Queue: "q", RoutingKey: "k"})
	d := newFakeDeclarer()
	d.failQueue = "q"

	err := topo.Declare(d)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declare queue q")
}
