package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/connectfour/go/internal/connectfour/metrics"
)

type Config struct {
	BufferSize     int
	MaxRetries     int
	RetryDelay     time.Duration
	PublishTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		BufferSize:     1024,
		MaxRetries:     3,
		RetryDelay:     time.Second,
		PublishTimeout: 5 * time.Second,
	}
}

// Outbox buffers match events in memory and publishes them from a single worker,
// so rooms never wait on a broker.
type Outbox struct {
	publisher Publisher
	config    Config
	metrics   metrics.Collector
	clock     clockwork.Clock

	queue chan Event

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup

	processed atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
	lastSent  atomic.Int64
}

func NewOutbox(publisher Publisher, cfg Config, m metrics.Collector) *Outbox {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultConfig().PublishTimeout
	}
	if m == nil {
		m = metrics.NoOp{}
	}
	return &Outbox{
		publisher: publisher,
		config:    cfg,
		metrics:   m,
		clock:     clockwork.NewRealClock(),
		queue:     make(chan Event, cfg.BufferSize),
		stopChan:  make(chan struct{}),
	}
}

// Emit queues an event. When the buffer is full the event is dropped.
func (o *Outbox) Emit(roomCode string, eventType EventType, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to marshal event payload")
		return
	}

	event := Event{
		ID:        uuid.New(),
		RoomCode:  roomCode,
		EventType: eventType,
		Payload:   data,
		CreatedAt: o.clock.Now().UTC(),
	}

	select {
	case o.queue <- event:
	default:
		o.dropped.Add(1)
		o.metrics.RecordOutboxDropped(string(eventType))
		log.Warn().
			Str("room_code", roomCode).
			Str("event_type", string(eventType)).
			Msg("outbox full, dropping event")
	}
}

func (o *Outbox) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return fmt.Errorf("outbox already running")
	}
	o.running = true
	o.mu.Unlock()

	o.wg.Add(1)
	go o.run(ctx)

	log.Info().
		Int("buffer_size", o.config.BufferSize).
		Int("max_retries", o.config.MaxRetries).
		Msg("outbox started")
	return nil
}

// Stop halts the worker and makes one attempt at every event still queued.
func (o *Outbox) Stop() error {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return fmt.Errorf("outbox not running")
	}
	o.running = false
	o.mu.Unlock()

	close(o.stopChan)
	o.wg.Wait()

	for {
		select {
		case event := <-o.queue:
			o.publishOnce(context.Background(), event)
		default:
			log.Info().Uint64("processed", o.processed.Load()).Msg("outbox stopped")
			return nil
		}
	}
}

// Stats reports counters for health checks.
func (o *Outbox) Stats() Stats {
	var last time.Time
	if n := o.lastSent.Load(); n != 0 {
		last = time.Unix(0, n)
	}
	return Stats{
		Processed: o.processed.Load(),
		Failed:    o.failed.Load(),
		Dropped:   o.dropped.Load(),
		Pending:   len(o.queue),
		LastSent:  last,
	}
}

type Stats struct {
	Processed uint64    `json:"processed"`
	Failed    uint64    `json:"failed"`
	Dropped   uint64    `json:"dropped"`
	Pending   int       `json:"pending"`
	LastSent  time.Time `json:"last_sent"`
}

func (o *Outbox) run(ctx context.Context) {
	defer o.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.stopChan:
			return
		case event := <-o.queue:
			start := o.clock.Now()
			err := o.publishWithRetry(ctx, event)
			o.metrics.RecordEventPublished(string(event.EventType), err == nil, o.clock.Since(start))
			if err != nil {
				o.failed.Add(1)
				log.Error().
					Err(err).
					Str("event_id", event.ID.String()).
					Str("event_type", string(event.EventType)).
					Msg("failed to publish event")
				continue
			}
			o.markSent()
		}
	}
}

func (o *Outbox) publishOnce(ctx context.Context, event Event) {
	pubCtx, cancel := context.WithTimeout(ctx, o.config.PublishTimeout)
	defer cancel()

	if err := o.publisher.Publish(pubCtx, event); err != nil {
		o.failed.Add(1)
		log.Warn().Err(err).Str("event_id", event.ID.String()).Msg("failed to flush event")
		return
	}
	o.markSent()
}

func (o *Outbox) markSent() {
	o.processed.Add(1)
	o.lastSent.Store(o.clock.Now().UnixNano())
}

func (o *Outbox) publishWithRetry(ctx context.Context, event Event) error {
	var lastErr error

	for attempt := 0; attempt <= o.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-o.stopChan:
				return fmt.Errorf("outbox stopping: %w", lastErr)
			case <-o.clock.After(o.config.RetryDelay * time.Duration(attempt)):
			}
		}

		pubCtx, cancel := context.WithTimeout(ctx, o.config.PublishTimeout)
		err := o.publisher.Publish(pubCtx, event)
		cancel()

		if err != nil {
			lastErr = err
			o.metrics.RecordPublishAttempt(string(event.EventType), attempt+1, false)
			log.Warn().
				Err(err).
				Str("event_id", event.ID.String()).
				Int("attempt", attempt+1).
				Msg("failed to publish event, retrying")
			continue
		}

		o.metrics.RecordPublishAttempt(string(event.EventType), attempt+1, true)
		return nil
	}

	return fmt.Errorf("failed after %d attempts: %w", o.config.MaxRetries+1, lastErr)
}
