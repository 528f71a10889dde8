package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/busca-ativa-api/internal/models"
	"github.com/noah-isme/busca-ativa-api/pkg/jobs"
)

const (
	eventBufferSize = 16
	eventJobType    = "record_event"
)

// EventConfig configures change-feed delivery.
type EventConfig struct {
	ChannelBase string
	Workers     int
	Retries     int
	RetryDelay  time.Duration
}

// EventService fans record change events out to local SSE subscribers and to
// other API nodes through Redis pub/sub and NATS. Events only tell clients to
// refetch; they never carry record contents.
type EventService struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	queue        *jobs.Queue
	broker       *eventBroker
	metrics      *MetricsService
	logger       *zap.Logger
	nodeID       string
}

type eventEnvelope struct {
	Source string             `json:"source"`
	Event  models.RecordEvent `json:"event"`
	SentAt time.Time          `json:"sent_at"`
}

type eventSubscription struct {
	ch    chan models.RecordEvent
	types map[models.RecordType]struct{}
}

type eventBroker struct {
	mu          sync.RWMutex
	subscribers map[chan models.RecordEvent]eventSubscription
}

// NewEventService builds the service. redisClient and natsConn are optional.
func NewEventService(redisClient *redis.Client, natsConn *nats.Conn, cfg EventConfig, metrics *MetricsService, logger *zap.Logger) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ChannelBase == "" {
		cfg.ChannelBase = "busca-ativa"
	}
	s := &EventService{
		redis:        redisClient,
		redisChannel: cfg.ChannelBase + ":record-events",
		nats:         natsConn,
		natsSubject:  strings.ReplaceAll(cfg.ChannelBase, ":", ".") + ".record-events",
		broker:       &eventBroker{subscribers: make(map[chan models.RecordEvent]eventSubscription)},
		metrics:      metrics,
		logger:       logger.With(zap.String("component", "event_service")),
		nodeID:       uuid.NewString(),
	}
	s.queue = jobs.NewQueue("record-events", s.deliver, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
		OnExhausted: func(job jobs.Job, err error) {
			metrics.RecordEventFailure()
		},
	})
	return s
}

// Start launches the delivery workers and the remote consumers.
func (s *EventService) Start(ctx context.Context) {
	s.queue.Start(ctx)
	if s.redis != nil {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil {
		s.consumeNATS(ctx)
	}
}

// Stop waits for in-flight deliveries to end.
func (s *EventService) Stop() {
	s.queue.Stop()
}

// Publish stamps event and hands it to the delivery queue. When the queue
// cannot take it, local subscribers are still notified inline.
func (s *EventService) Publish(ctx context.Context, event models.RecordEvent) {
	if s == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	err := s.queue.Enqueue(jobs.Job{ID: event.ID, Type: eventJobType, Payload: event})
	if err == nil {
		return
	}
	s.logger.Warn("event queue unavailable, broadcasting locally", zap.String("event_id", event.ID), zap.Error(err))
	s.broadcast(event, "local")
}

// Subscribe registers a listener. An empty types list receives every event.
// The returned func must be called to release the subscription.
func (s *EventService) Subscribe(types ...models.RecordType) (<-chan models.RecordEvent, func()) {
	ch := make(chan models.RecordEvent, eventBufferSize)
	sub := eventSubscription{ch: ch}
	if len(types) > 0 {
		sub.types = make(map[models.RecordType]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}
	s.metrics.SetSubscribers(s.broker.subscribe(sub))

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.metrics.SetSubscribers(s.broker.unsubscribe(ch))
		})
	}
}

func (s *EventService) deliver(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.RecordEvent)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}
	if job.Attempt == 0 {
		s.broadcast(event, "local")
	}
	return s.publishRemote(ctx, event)
}

func (s *EventService) broadcast(event models.RecordEvent, transport string) {
	s.broker.broadcast(event)
	s.metrics.RecordEventPublished(event.RecordType, transport)
}

func (s *EventService) publishRemote(ctx context.Context, event models.RecordEvent) error {
	if s.redis == nil && s.nats == nil {
		return nil
	}
	payload, err := json.Marshal(eventEnvelope{Source: s.nodeID, Event: event, SentAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	if s.redis != nil {
		if err := s.redis.Publish(ctx, s.redisChannel, payload).Err(); err != nil {
			return fmt.Errorf("redis publish: %w", err)
		}
		s.metrics.RecordEventPublished(event.RecordType, "redis")
	}
	if s.nats != nil {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		s.metrics.RecordEventPublished(event.RecordType, "nats")
	}
	return nil
}

func (s *EventService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
				return
			}
			s.logger.Error("record event redis subscription closed", zap.Error(err))
			return
		}
		s.handleRemote([]byte(msg.Payload))
	}
}

func (s *EventService) consumeNATS(ctx context.Context) {
	// no queue group: each node must see every event
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleRemote(msg.Data)
	})
	if err != nil {
		s.logger.Error("failed to subscribe to record event subject", zap.Error(err))
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn("failed to drain record event subscription", zap.Error(err))
		}
	}()
}

// handleRemote rebroadcasts events that came from another node. A node that
// is reachable by both transports sees each event twice; subscribers only
// refetch, so duplicates are harmless.
func (s *EventService) handleRemote(payload []byte) {
	var envelope eventEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		s.logger.Warn("invalid record event payload", zap.Error(err))
		return
	}
	if envelope.Source == s.nodeID {
		return
	}
	s.broker.broadcast(envelope.Event)
}

func (b *eventBroker) subscribe(sub eventSubscription) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[sub.ch] = sub
	return len(b.subscribers)
}

func (b *eventBroker) unsubscribe(ch chan models.RecordEvent) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
	return len(b.subscribers)
}

func (b *eventBroker) broadcast(event models.RecordEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch, sub := range b.subscribers {
		if sub.types != nil {
			if _, ok := sub.types[event.RecordType]; !ok {
				continue
			}
		}
		select {
		case ch <- event:
		default:
		}
	}
}
