package events

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/rabbitmq/amqp091-go"

	"github.com/customeros/mailsetup/dto"
	"github.com/customeros/mailsetup/internal/enum"
	"github.com/customeros/mailsetup/internal/logger"
	"github.com/customeros/mailsetup/internal/tracing"
	"github.com/customeros/mailsetup/internal/utils"
)

const (
	// Exchange names
	ExchangeMailsetup  = "mailsetup"
	ExchangeDeadLetter = "dead-letter"

	// queues
	QueueMailsetup = "events-mailsetup"
	DLQMailsetup   = QueueMailsetup + "-dlq"

	// routing keys
	RoutingKeyDeadLetter = "dead-letter"

	// Default configurations
	DefaultMessageTTL          = 240 * time.Hour // after TTL message moves to DLQ
	DefaultMaxRetries          = 3
	DefaultPublishTimeout      = 5 * time.Second
	DefaultReconnectBackoff    = time.Second
	DefaultMaxReconnectBackoff = 30 * time.Second

	retryDelay = 100 * time.Millisecond
)

type PublisherConfig struct {
	MessageTTL          time.Duration
	MaxRetries          int
	PublishTimeout      time.Duration
	ReconnectBackoff    time.Duration
	MaxReconnectBackoff time.Duration
}

type exchangeSpec struct {
	name string
	kind string
}

type queueSpec struct {
	name       string
	exchange   string
	routingKey string
	deadLetter bool
}

var (
	exchanges = []exchangeSpec{
		{name: ExchangeDeadLetter, kind: amqp091.ExchangeDirect},
		{name: ExchangeMailsetup, kind: amqp091.ExchangeFanout},
	}
	// dead letter queues are declared before the queues that route to them
	queues = []queueSpec{
		{name: DLQMailsetup, exchange: ExchangeDeadLetter, routingKey: RoutingKeyDeadLetter},
		{name: QueueMailsetup, exchange: ExchangeMailsetup, deadLetter: true},
	}
)

type RabbitMQPublisher struct {
	url    string
	logger logger.Logger
	config PublisherConfig

	connectionMutex sync.Mutex
	connection      *amqp091.Connection
	publishMutex    sync.Mutex
	publishChannel  *amqp091.Channel
	confirms        chan amqp091.Confirmation

	closed    chan struct{}
	closeOnce sync.Once
}

func NewRabbitMQPublisher(rabbitmqURL string, logger logger.Logger, config *PublisherConfig) (*RabbitMQPublisher, error) {
	if config == nil {
		config = &PublisherConfig{
			MessageTTL:          DefaultMessageTTL,
			MaxRetries:          DefaultMaxRetries,
			PublishTimeout:      DefaultPublishTimeout,
			ReconnectBackoff:    DefaultReconnectBackoff,
			MaxReconnectBackoff: DefaultMaxReconnectBackoff,
		}
	}

	publisher := &RabbitMQPublisher{
		url:    rabbitmqURL,
		logger: logger,
		config: *config,
		closed: make(chan struct{}),
	}

	if err := publisher.connect(); err != nil {
		return nil, err
	}
	go publisher.watchConnection()

	return publisher, nil
}

func (r *RabbitMQPublisher) PublishAccountProvisioned(ctx context.Context, event dto.AccountProvisioned) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "RabbitMQPublisher.PublishAccountProvisioned")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, event.AccountId)

	traceId := tracing.ExtractTextMapCarrier(span.Context())["uber-trace-id"]
	envelope := newEvent(ctx, traceId, event.AccountId, enum.ACCOUNT, event)

	if err := r.publish(ctx, envelope, ExchangeMailsetup); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

// newEvent wraps a message in the event envelope. The event type is the message's type name.
func newEvent(ctx context.Context, traceId string, entityId string, entityType enum.EntityType, message interface{}) dto.Event {
	messageType := reflect.TypeOf(message)
	if messageType.Kind() == reflect.Ptr {
		messageType = messageType.Elem()
	}

	return dto.Event{
		Event: dto.EventDetails{
			Id:         utils.GenerateNanoIDWithPrefix("event", 21),
			EntityId:   entityId,
			EntityType: entityType,
			EventType:  messageType.Name(),
			Data:       message,
		},
		Metadata: dto.EventMetadata{
			UberTraceId: traceId,
			AppSource:   utils.GetAppSourceFromContext(ctx),
			IdentityId:  utils.GetIdentityIdFromContext(ctx),
			Timestamp:   utils.Now().Format(time.RFC3339),
		},
	}
}

// publish retries a confirmed publish on a fanout exchange.
func (r *RabbitMQPublisher) publish(ctx context.Context, event dto.Event, exchange string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "RabbitMQPublisher.publish")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.LogObjectAsJson(span, "event", event)

	body, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}

	var lastErr error
	for attempt := 1; attempt <= r.config.MaxRetries; attempt++ {
		lastErr = r.publishWithConfirm(ctx, event.Event.Id, body, exchange)
		if lastErr == nil {
			return nil
		}
		r.logger.Warnf("Publish attempt %d of event %s failed: %v", attempt, event.Event.Id, lastErr)

		if attempt == r.config.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay * time.Duration(attempt)):
		}
	}

	return errors.Wrapf(lastErr, "publish event %s failed after %d attempts", event.Event.Id, r.config.MaxRetries)
}

func (r *RabbitMQPublisher) publishWithConfirm(ctx context.Context, messageId string, body []byte, exchange string) error {
	r.publishMutex.Lock()
	defer r.publishMutex.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if r.isClosed() {
		return errors.New("publisher is closed")
	}
	if err := r.ensureChannel(); err != nil {
		return err
	}

	err := r.publishChannel.PublishWithContext(ctx,
		exchange,
		"",    // fanout ignores the routing key
		true,  // mandatory
		false, // immediate
		amqp091.Publishing{
			MessageId:    messageId,
			AppId:        ExchangeMailsetup,
			DeliveryMode: amqp091.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    utils.Now(),
		})
	if err != nil {
		return errors.Wrap(err, "publish")
	}

	select {
	case confirm, ok := <-r.confirms:
		if !ok {
			return errors.New("channel closed before confirmation")
		}
		if !confirm.Ack {
			return errors.Errorf("broker nacked delivery %d", confirm.DeliveryTag)
		}
		return nil
	case <-time.After(r.config.PublishTimeout):
		return errors.New("publish confirmation timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *RabbitMQPublisher) connect() error {
	r.connectionMutex.Lock()
	defer r.connectionMutex.Unlock()

	connection, err := amqp091.Dial(r.url)
	if err != nil {
		return errors.Wrap(err, "connect to RabbitMQ")
	}

	if err := declareTopology(connection, r.config.MessageTTL); err != nil {
		connection.Close()
		return errors.Wrap(err, "declare topology")
	}

	r.connection = connection
	if err := r.openPublishChannel(); err != nil {
		return err
	}
	return nil
}

func (r *RabbitMQPublisher) openPublishChannel() error {
	channel, err := r.connection.Channel()
	if err != nil {
		return errors.Wrap(err, "open publish channel")
	}

	if err := channel.Confirm(false); err != nil {
		channel.Close()
		return errors.Wrap(err, "enable publisher confirms")
	}

	r.confirms = channel.NotifyPublish(make(chan amqp091.Confirmation, 1))
	r.publishChannel = channel
	return nil
}

func (r *RabbitMQPublisher) ensureChannel() error {
	if r.connection == nil || r.connection.IsClosed() {
		return r.connect()
	}
	if r.publishChannel == nil || r.publishChannel.IsClosed() {
		r.connectionMutex.Lock()
		defer r.connectionMutex.Unlock()
		return r.openPublishChannel()
	}
	return nil
}

// watchConnection reconnects with capped exponential backoff until Close is called.
func (r *RabbitMQPublisher) watchConnection() {
	for {
		r.connectionMutex.Lock()
		notifyClose := r.connection.NotifyClose(make(chan *amqp091.Error, 1))
		r.connectionMutex.Unlock()

		select {
		case <-r.closed:
			return
		case amqpErr := <-notifyClose:
			if r.isClosed() {
				return
			}
			r.logger.Warnf("RabbitMQ connection closed: %v, attempting to reconnect", amqpErr)
		}

		backoff := r.config.ReconnectBackoff
		for {
			err := r.connect()
			if err == nil {
				r.logger.Info("Reconnected to RabbitMQ")
				break
			}
			r.logger.Errorf("Failed to reconnect: %v, retrying in %v", err, backoff)

			select {
			case <-r.closed:
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, r.config.MaxReconnectBackoff)
		}
	}
}

func (r *RabbitMQPublisher) isClosed() bool {
	select {
	case <-r.closed:
		return true
	default:
		return false
	}
}

func declareTopology(connection *amqp091.Connection, messageTTL time.Duration) error {
	channel, err := connection.Channel()
	if err != nil {
		return errors.Wrap(err, "open setup channel")
	}
	defer channel.Close()

	for _, exchange := range exchanges {
		if err := channel.ExchangeDeclare(exchange.name, exchange.kind, true, false, false, false, nil); err != nil {
			return errors.Wrapf(err, "declare exchange %s", exchange.name)
		}
	}

	for _, queue := range queues {
		var args amqp091.Table
		if queue.deadLetter {
			args = amqp091.Table{
				"x-dead-letter-exchange":    ExchangeDeadLetter,
				"x-dead-letter-routing-key": RoutingKeyDeadLetter,
				"x-message-ttl":             messageTTL.Milliseconds(),
			}
		}
		if _, err := channel.QueueDeclare(queue.name, true, false, false, false, args); err != nil {
			return errors.Wrapf(err, "declare queue %s", queue.name)
		}
		if err := channel.QueueBind(queue.name, queue.routingKey, queue.exchange, false, nil); err != nil {
			return errors.Wrapf(err, "bind queue %s to %s", queue.name, queue.exchange)
		}
	}

	return nil
}

// Close stops reconnecting and closes the channel and connection.
func (r *RabbitMQPublisher) Close() error {
	r.closeOnce.Do(func() { close(r.closed) })

	r.connectionMutex.Lock()
	defer r.connectionMutex.Unlock()

	var err error
	if r.publishChannel != nil && !r.publishChannel.IsClosed() {
		if err = r.publishChannel.Close(); err != nil {
			r.logger.Errorf("Error closing publish channel: %v", err)
		}
	}
	if r.connection != nil && !r.connection.IsClosed() {
		if closeErr := r.connection.Close(); closeErr != nil {
			r.logger.Errorf("Error closing connection: %v", closeErr)
			if err == nil {
				err = closeErr
			}
		}
	}
	return err
}
