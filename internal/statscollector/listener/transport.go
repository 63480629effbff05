package listener

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/apache/pulsar-client-go/pulsar"
	pulsarlog "github.com/apache/pulsar-client-go/pulsar/log"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/G-Research/statscollector/internal/common/apierrors"
	"github.com/G-Research/statscollector/internal/common/logging"
	"github.com/G-Research/statscollector/internal/statscollector/configuration"
)

// consumerName identifies this process to the broker.
func consumerName() string {
	return "statscollector-" + uuid.NewString()
}

// Transport delivers raw bus messages to a Dispatcher until its context is cancelled.
type Transport interface {
	Run(ctx context.Context, dispatcher *Dispatcher) error
	// Check reports whether the transport is connected to the bus.
	Check() error
	Close()
}

func NewTransport(config configuration.ListenerConfig) (Transport, error) {
	switch config.Transport {
	case configuration.TransportPulsar:
		return NewPulsarTransport(config.Pulsar)
	case configuration.TransportNats:
		return NewNatsTransport(config.Nats)
	default:
		return nil, errors.WithStack(&apierrors.ErrInvalidArgument{
			Name:  "listener.transport",
			Value: config.Transport,
		})
	}
}

// PulsarTransport consumes a shared subscription, so that several collector instances
// may split the message stream between them.
type PulsarTransport struct {
	config     configuration.PulsarConfig
	client     pulsar.Client
	subscribed int32
}

func NewPulsarTransport(config configuration.PulsarConfig) (*PulsarTransport, error) {
	var authentication pulsar.Authentication
	if config.AuthenticationEnabled {
		if strings.TrimSpace(config.JwtTokenPath) == "" {
			return nil, errors.WithStack(&apierrors.ErrInvalidArgument{
				Name:    "listener.pulsar.jwtTokenPath",
				Value:   config.JwtTokenPath,
				Message: "JWT authentication was configured for Pulsar but no JwtTokenPath was supplied",
			})
		}
		authentication = pulsar.NewAuthenticationTokenFromFile(config.JwtTokenPath)
	}
	client, err := pulsar.NewClient(pulsar.ClientOptions{
		URL:            config.URL,
		Authentication: authentication,
		Logger:         pulsarlog.NewLoggerWithLogrus(log.StandardLogger()),
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &PulsarTransport{config: config, client: client}, nil
}

func (t *PulsarTransport) Run(ctx context.Context, dispatcher *Dispatcher) error {
	consumer, err := t.client.Subscribe(pulsar.ConsumerOptions{
		Topic:            t.config.Topic,
		SubscriptionName: t.config.SubscriptionName,
		Name:             consumerName(),
		Type:             pulsar.Shared,
	})
	if err != nil {
		return errors.WithStack(err)
	}
	defer consumer.Close()
	atomic.StoreInt32(&t.subscribed, 1)
	defer atomic.StoreInt32(&t.subscribed, 0)
	log.Infof("listening on pulsar topic %s", t.config.Topic)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		receiveCtx, cancel := context.WithTimeout(ctx, t.config.ReceiveTimeout)
		msg, err := consumer.Receive(receiveCtx)
		cancel()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			continue
		} else if err != nil {
			logging.WithStacktrace(log.NewEntry(log.StandardLogger()), err).Warn("receiving from pulsar failed")
			continue
		}

		dispatcher.Dispatch(ctx, msg.Payload())
		// Undecodable messages are acked too; they would never decode on redelivery.
		consumer.Ack(msg)
	}
}

func (t *PulsarTransport) Check() error {
	if atomic.LoadInt32(&t.subscribed) == 0 {
		return errors.New("pulsar consumer is not subscribed")
	}
	return nil
}

func (t *PulsarTransport) Close() {
	t.client.Close()
}

// NatsTransport consumes a NATS subject through a queue group.
type NatsTransport struct {
	config configuration.NatsConfig
	conn   *nats.Conn
}

func NewNatsTransport(config configuration.NatsConfig) (*NatsTransport, error) {
	conn, err := nats.Connect(strings.Join(config.Servers, ","),
		nats.Name(consumerName()),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Warn("disconnected from nats")
			}
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			log.Infof("reconnected to nats at %s", conn.ConnectedUrl())
		}))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &NatsTransport{config: config, conn: conn}, nil
}

func (t *NatsTransport) Run(ctx context.Context, dispatcher *Dispatcher) error {
	sub, err := t.conn.QueueSubscribe(t.config.Subject, t.config.QueueGroup, func(msg *nats.Msg) {
		dispatcher.Dispatch(ctx, msg.Data)
	})
	if err != nil {
		return errors.WithStack(err)
	}
	log.Infof("listening on nats subject %s", t.config.Subject)
	<-ctx.Done()
	return errors.WithStack(sub.Drain())
}

func (t *NatsTransport) Check() error {
	if status := t.conn.Status(); status != nats.CONNECTED {
		return errors.Errorf("nats connection status is %v", status)
	}
	return nil
}

func (t *NatsTransport) Close() {
	t.conn.Close()
}
