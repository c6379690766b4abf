package sqs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/nimburion/movies/pkg/eventbus"
	"github.com/nimburion/movies/pkg/observability/logger"
)

// Client is the subset of the SQS API used by the adapter.
type Client interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	GetQueueAttributes(ctx context.Context, in *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

// Adapter implements eventbus.EventBus over an SQS queue using long polling.
type Adapter struct {
	client Client
	logger logger.Logger
	config Config
	mu     sync.RWMutex
	subs   map[string]context.CancelFunc
	closed bool
}

// Config holds SQS adapter configuration.
type Config struct {
	Region            string
	QueueURL          string
	Endpoint          string
	AccessKeyID       string
	SecretAccessKey   string
	SessionToken      string
	OperationTimeout  time.Duration
	WaitTimeSeconds   int32
	MaxMessages       int32
	VisibilityTimeout int32
	// RetryDelay is the pause after a failed receive.
	RetryDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.OperationTimeout == 0 {
		c.OperationTimeout = 30 * time.Second
	}
	if c.WaitTimeSeconds == 0 {
		c.WaitTimeSeconds = 20
	}
	if c.MaxMessages == 0 {
		c.MaxMessages = 10
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 200 * time.Millisecond
	}
	return c
}

func (c Config) validate() error {
	if c.Region == "" {
		return fmt.Errorf("aws region is required")
	}
	if c.QueueURL == "" {
		return fmt.Errorf("sqs queue URL is required")
	}
	return nil
}

// NewAdapter loads the AWS configuration, builds an SQS client and checks
// that the queue is reachable.
func NewAdapter(cfg Config, log logger.Logger) (*Adapter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	loadOptions := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" || cfg.SecretAccessKey != "" {
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	var opts []func(*sqs.Options)
	if cfg.Endpoint != "" {
		opts = append(opts, func(o *sqs.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	adapter := NewAdapterWithClient(sqs.NewFromConfig(awsCfg, opts...), cfg, log)
	if err := adapter.HealthCheck(context.Background()); err != nil {
		return nil, err
	}
	return adapter, nil
}

// NewAdapterWithClient wraps an existing client without contacting AWS.
func NewAdapterWithClient(client Client, cfg Config, log logger.Logger) *Adapter {
	return &Adapter{
		client: client,
		logger: log,
		config: cfg.withDefaults(),
		subs:   make(map[string]context.CancelFunc),
	}
}

// Publish sends message to the queue. topic, when set, is a queue URL.
func (a *Adapter) Publish(ctx context.Context, topic string, message *eventbus.Message) error {
	if a.isClosed() {
		return fmt.Errorf("sqs adapter is closed")
	}
	if message == nil {
		return fmt.Errorf("message is required")
	}

	opCtx, cancel := context.WithTimeout(ctx, a.config.OperationTimeout)
	defer cancel()

	_, err := a.client.SendMessage(opCtx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(a.resolveQueueURL(topic)),
		MessageBody:       aws.String(string(message.Value)),
		MessageAttributes: toSQSAttributes(message.Headers),
	})
	if err != nil {
		return fmt.Errorf("failed to publish sqs message: %w", err)
	}
	return nil
}

// Subscribe starts a long-polling loop on the queue. Messages are deleted
// only after handler succeeds.
func (a *Adapter) Subscribe(ctx context.Context, topic string, handler eventbus.MessageHandler) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("sqs adapter is closed")
	}
	if _, ok := a.subs[topic]; ok {
		return fmt.Errorf("already subscribed to topic: %s", topic)
	}

	subCtx, cancel := context.WithCancel(ctx)
	a.subs[topic] = cancel
	go a.pollLoop(subCtx, a.resolveQueueURL(topic), handler)
	return nil
}

func (a *Adapter) pollLoop(ctx context.Context, queueURL string, handler eventbus.MessageHandler) {
	a.logger.Info("polling sqs queue", "queue_url", queueURL)
	for ctx.Err() == nil {
		recvCtx, cancel := context.WithTimeout(ctx, a.config.OperationTimeout)
		out, err := a.client.ReceiveMessage(recvCtx, &sqs.ReceiveMessageInput{
			QueueUrl:              aws.String(queueURL),
			MaxNumberOfMessages:   a.config.MaxMessages,
			WaitTimeSeconds:       a.config.WaitTimeSeconds,
			VisibilityTimeout:     a.config.VisibilityTimeout,
			MessageAttributeNames: []string{"All"},
		})
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			a.logger.Error("sqs receive failed", "queue_url", queueURL, "error", err)
			sleep(ctx, a.config.RetryDelay)
			continue
		}

		for _, m := range out.Messages {
			a.deliver(ctx, queueURL, m, handler)
		}
	}
}

func (a *Adapter) deliver(ctx context.Context, queueURL string, m types.Message, handler eventbus.MessageHandler) {
	msg := &eventbus.Message{
		ID:          aws.ToString(m.MessageId),
		Value:       []byte(aws.ToString(m.Body)),
		Headers:     fromSQSAttributes(m.MessageAttributes),
		ContentType: eventbus.ContentTypeJSON,
	}
	if err := handler(ctx, msg); err != nil {
		if !eventbus.IsPermanent(err) {
			a.logger.Warn("sqs message left for redelivery", "message_id", msg.ID, "error", err)
			return
		}
		a.logger.Warn("sqs message dropped", "message_id", msg.ID, "error", err)
	}
	if m.ReceiptHandle == nil {
		return
	}
	if _, err := a.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: m.ReceiptHandle,
	}); err != nil {
		a.logger.Error("sqs delete failed", "message_id", msg.ID, "error", err)
	}
}

// Unsubscribe stops the polling loop for topic.
func (a *Adapter) Unsubscribe(topic string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	cancel, ok := a.subs[topic]
	if !ok {
		return fmt.Errorf("not subscribed to topic: %s", topic)
	}
	cancel()
	delete(a.subs, topic)
	return nil
}

// HealthCheck fetches the queue ARN.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	if a.isClosed() {
		return fmt.Errorf("sqs adapter is closed")
	}

	hcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := a.client.GetQueueAttributes(hcCtx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(a.config.QueueURL),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameQueueArn},
	})
	if err != nil {
		return fmt.Errorf("sqs health check failed: %w", err)
	}
	return nil
}

// Close stops every polling loop. It is safe to call more than once.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	for _, cancel := range a.subs {
		cancel()
	}
	a.subs = map[string]context.CancelFunc{}
	return nil
}

func (a *Adapter) isClosed() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.closed
}

func (a *Adapter) resolveQueueURL(topic string) string {
	if topic != "" {
		return topic
	}
	return a.config.QueueURL
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func toSQSAttributes(headers map[string]string) map[string]types.MessageAttributeValue {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]types.MessageAttributeValue, len(headers))
	for k, v := range headers {
		out[k] = types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
	}
	return out
}

func fromSQSAttributes(headers map[string]types.MessageAttributeValue) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		out[k] = aws.ToString(v.StringValue)
	}
	return out
}
