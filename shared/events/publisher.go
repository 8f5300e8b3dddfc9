package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// ErrPublisherUnavailable is returned while the circuit breaker is open.
var ErrPublisherUnavailable = errors.New("event publisher unavailable")

type Publisher struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
	maxLen  int64
	log     zerolog.Logger
}

type PublisherOption func(*publisherConfig)

type publisherConfig struct {
	failureThreshold uint32
	openTimeout      time.Duration
	maxLen           int64
	log              zerolog.Logger
}

// WithFailureThreshold sets how many consecutive failures open the breaker.
func WithFailureThreshold(n uint32) PublisherOption {
	return func(c *publisherConfig) { c.failureThreshold = n }
}

// WithOpenTimeout sets how long the breaker stays open before probing again.
func WithOpenTimeout(d time.Duration) PublisherOption {
	return func(c *publisherConfig) { c.openTimeout = d }
}

// WithMaxLen caps each stream at approximately n entries.
func WithMaxLen(n int64) PublisherOption {
	return func(c *publisherConfig) { c.maxLen = n }
}

func WithPublisherLogger(l zerolog.Logger) PublisherOption {
	return func(c *publisherConfig) { c.log = l }
}

func NewPublisher(client *redis.Client, opts ...PublisherOption) *Publisher {
	cfg := publisherConfig{
		failureThreshold: 5,
		openTimeout:      30 * time.Second,
		maxLen:           100000,
		log:              zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	p := &Publisher{client: client, maxLen: cfg.maxLen, log: cfg.log}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-streams",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.failureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("publisher circuit breaker changed state")
		},
	})
	return p
}

func (p *Publisher) Publish(ctx context.Context, stream, eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	event := Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      payload,
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"event": eventJSON,
		},
	}

	_, err = p.breaker.Execute(func() (interface{}, error) {
		return p.client.XAdd(ctx, args).Result()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s", ErrPublisherUnavailable, stream)
	}
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
