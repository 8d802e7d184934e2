package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/meteocache/meteocache/internal/openmeteo"
)

// PubSubHandler handles refresh trigger messages from Pub/Sub.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	refreshJob       *RefreshJob
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	RefreshJob       *RefreshJob
	Logger           zerolog.Logger
}

// RefreshMessage is the payload of a refresh trigger.
type RefreshMessage struct {
	JobType string `json:"job_type"`
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Refreshes hit the same key; running them one at a time is enough.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 1
	subscriber.ReceiveSettings.MaxExtension = 5 * time.Minute

	return NewMessageHandler(cfg.RefreshJob, cfg.Logger).withSubscriber(client, subscriber, cfg.SubscriptionName), nil
}

// NewMessageHandler creates a handler that is not attached to a
// subscription. Process can be called on it directly.
func NewMessageHandler(job *RefreshJob, logger zerolog.Logger) *PubSubHandler {
	return &PubSubHandler{
		refreshJob: job,
		logger:     logger,
	}
}

func (h *PubSubHandler) withSubscriber(client *pubsub.Client, sub *pubsub.Subscriber, name string) *PubSubHandler {
	h.client = client
	h.subscriber = sub
	h.subscriptionName = name
	return h
}

// Start begins processing Pub/Sub messages. It blocks until ctx is done or
// the subscription fails.
func (h *PubSubHandler) Start(ctx context.Context) error {
	if h.subscriber == nil {
		return errors.New("pubsub handler has no subscription")
	}

	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		logger := h.logger.With().
			Str("message_id", msg.ID).
			Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
			Logger()

		if h.process(ctx, msg.Data, logger) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	if h.client == nil {
		return nil
	}
	return h.client.Close()
}

// Process runs the job a message asks for and reports whether the message
// should be acknowledged. Malformed messages and failed jobs are not, unless
// the failure cannot heal on redelivery (the upstream rejected the request or
// its answer was not JSON). Unknown job types are acknowledged.
func (h *PubSubHandler) Process(ctx context.Context, data []byte) bool {
	return h.process(ctx, data, h.logger)
}

func (h *PubSubHandler) process(ctx context.Context, data []byte, logger zerolog.Logger) bool {
	startTime := time.Now()

	logger.Debug().Msg("received pubsub message")

	var refreshMsg RefreshMessage
	if err := json.Unmarshal(data, &refreshMsg); err != nil {
		logger.Error().Err(err).Msg("failed to parse message")
		return false
	}

	var err error
	switch refreshMsg.JobType {
	case JobForecastRefresh:
		err = h.refreshJob.Run(ctx).Err
	case JobHealthCheck:
		err = h.refreshJob.Check(ctx)
	default:
		logger.Warn().Str("job_type", refreshMsg.JobType).Msg("unknown job type")
		return true
	}

	if err != nil {
		permanent := isPermanent(err)
		logger.Error().
			Err(err).
			Str("job_type", refreshMsg.JobType).
			Bool("redeliver", !permanent).
			Msg("job failed")
		return permanent
	}

	logger.Info().
		Str("job_type", refreshMsg.JobType).
		Dur("duration", time.Since(startTime)).
		Msg("job completed successfully")

	return true
}

func isPermanent(err error) bool {
	return errors.Is(err, openmeteo.ErrClientStatus) ||
		errors.Is(err, openmeteo.ErrInvalidOptions) ||
		errors.Is(err, openmeteo.ErrDecode)
}
