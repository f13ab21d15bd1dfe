// Package brokerbackend implements the durable_broker strategy's
// publish-only side effect against RabbitMQ. Each Publish call dials,
// declares the durable destination queue, and publishes one message,
// with no internal retry — a retrying caller composes this backend
// inside a retrying strategy instead.
package brokerbackend

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ecomarket/purchase-pipeline/internal/health"
	"github.com/ecomarket/purchase-pipeline/internal/purchase"
)

// DestinationQueue is the fixed wire-contract destination name.
const DestinationQueue = "compras_ecomarket"

// FailureKind classifies a non-retryable publish failure.
type FailureKind string

const (
	FailureConnectionDisabled FailureKind = "connection_disabled"
	FailureConnection         FailureKind = "connection"
	FailureCredential         FailureKind = "credential"
	FailureChannelClosed      FailureKind = "channel_closed"
	FailureProtocol           FailureKind = "protocol"
)

// PublishResult is the outcome of one Publish call.
type PublishResult struct {
	OK          bool
	Destination string
	FailureKind FailureKind
	Detail      string
}

// Broker holds connection parameters; it dials fresh per publish,
// mirroring the source's one-shot publish-then-close contract (§4.4)
// rather than holding a long-lived channel open across requests.
type Broker struct {
	user, pass, host, port string
	dialTimeout            time.Duration
	registry               *health.Registry
}

func New(user, pass, host, port string, dialTimeout time.Duration, registry *health.Registry) *Broker {
	return &Broker{user: user, pass: pass, host: host, port: port, dialTimeout: dialTimeout, registry: registry}
}

func (b *Broker) address() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", b.user, b.pass, b.host, b.port)
}

func (b *Broker) Publish(ctx context.Context, msg purchase.Message) PublishResult {
	if !b.registry.Gate(health.RabbitMQ) {
		return PublishResult{FailureKind: FailureConnectionDisabled, Detail: "rabbitmq no disponible"}
	}

	conn, err := amqp.DialConfig(b.address(), amqp.Config{Dial: amqp.DefaultDial(b.dialTimeout)})
	if err != nil {
		return classifyDialError(err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return PublishResult{FailureKind: FailureChannelClosed, Detail: err.Error()}
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(DestinationQueue, true, false, false, false, nil); err != nil {
		return PublishResult{FailureKind: FailureProtocol, Detail: err.Error()}
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return PublishResult{FailureKind: FailureProtocol, Detail: err.Error()}
	}

	err = ch.PublishWithContext(ctx, "", DestinationQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return PublishResult{FailureKind: FailureProtocol, Detail: err.Error()}
	}

	return PublishResult{OK: true, Destination: DestinationQueue}
}

func classifyDialError(err error) PublishResult {
	if amqpErr, ok := err.(*amqp.Error); ok {
		switch amqpErr.Code {
		case amqp.AccessRefused, 530:
			return PublishResult{FailureKind: FailureCredential, Detail: err.Error()}
		default:
			return PublishResult{FailureKind: FailureProtocol, Detail: err.Error()}
		}
	}
	return PublishResult{FailureKind: FailureConnection, Detail: err.Error()}
}
