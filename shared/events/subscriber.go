package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type Handler func(ctx context.Context, event Event) error

type Subscriber struct {
	client        *redis.Client
	group         string
	consumer      string
	stream        string
	handler       Handler
	batchSize     int64
	blockDuration time.Duration
	log           zerolog.Logger
}

type SubscriberConfig struct {
	Group         string
	Consumer      string
	Stream        string
	Handler       Handler
	BatchSize     int64
	BlockDuration time.Duration
	Logger        *zerolog.Logger
}

func NewSubscriber(client *redis.Client, config SubscriberConfig) *Subscriber {
	if config.BatchSize == 0 {
		config.BatchSize = 10
	}
	if config.BlockDuration == 0 {
		config.BlockDuration = 5 * time.Second
	}
	log := zerolog.Nop()
	if config.Logger != nil {
		log = *config.Logger
	}

	return &Subscriber{
		client:        client,
		group:         config.Group,
		consumer:      config.Consumer,
		stream:        config.Stream,
		handler:       config.Handler,
		batchSize:     config.BatchSize,
		blockDuration: config.BlockDuration,
		log:           log.With().Str("stream", config.Stream).Str("group", config.Group).Logger(),
	}
}

// Start consumes the stream until ctx is cancelled. Messages whose handler fails
// stay pending and are not acknowledged.
func (s *Subscriber) Start(ctx context.Context) error {
	// Create consumer group if it doesn't exist
	err := s.client.XGroupCreateMkStream(ctx, s.stream, s.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	s.log.Info().Str("consumer", s.consumer).Msg("subscriber started")

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("subscriber stopping")
			return ctx.Err()
		default:
			if err := s.readMessages(ctx); err != nil {
				if ctx.Err() != nil {
					continue
				}
				s.log.Error().Err(err).Msg("error reading messages")
				select {
				case <-ctx.Done():
				case <-time.After(time.Second):
				}
			}
		}
	}
}

func (s *Subscriber) readMessages(ctx context.Context) error {
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: s.consumer,
		Streams:  []string{s.stream, ">"},
		Count:    s.batchSize,
		Block:    s.blockDuration,
	}).Result()

	if err == redis.Nil {
		return nil // No messages
	}
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, stream := range streams {
		for _, message := range stream.Messages {
			if err := s.processMessage(ctx, message); err != nil {
				s.log.Warn().Err(err).Str("message_id", message.ID).Msg("failed to process message")
				// Don't ACK failed messages - they'll be retried
				continue
			}

			if err := s.client.XAck(ctx, s.stream, s.group, message.ID).Err(); err != nil {
				s.log.Warn().Err(err).Str("message_id", message.ID).Msg("failed to ack message")
			}
		}
	}

	return nil
}

func (s *Subscriber) processMessage(ctx context.Context, message redis.XMessage) error {
	eventData, ok := message.Values["event"].(string)
	if !ok {
		return fmt.Errorf("invalid message format")
	}

	var event Event
	if err := json.Unmarshal([]byte(eventData), &event); err != nil {
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}

	return s.handler(ctx, event)
}
