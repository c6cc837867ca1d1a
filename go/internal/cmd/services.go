package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/connectfour/go/internal/config"
	"github.com/mcdev12/connectfour/go/internal/connectfour/events"
	"github.com/mcdev12/connectfour/go/internal/connectfour/gateway"
	"github.com/mcdev12/connectfour/go/internal/connectfour/metrics"
	"github.com/mcdev12/connectfour/go/internal/connectfour/room"
)

type Services struct {
	Metrics *metrics.Prometheus
	Outbox  *events.Outbox
	Gateway *gateway.Service

	closePublisher func() error
}

func setupServices(ctx context.Context, cfg config.Config) (*Services, error) {
	// Wire up dependency injection chain
	// Metrics → Publisher → Outbox → Room registry → Gateway
	m := metrics.NewPrometheus()
	s := &Services{Metrics: m}

	publisher, err := setupPublisher(ctx, cfg, s)
	if err != nil {
		return nil, err
	}

	var sink events.Sink = events.Discard{}
	if publisher != nil {
		s.Outbox = events.NewOutbox(publisher, outboxConfig(cfg), m)
		if err := s.Outbox.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start event outbox: %w", err)
		}
		sink = s.Outbox
	}

	s.Gateway = gateway.NewService(gatewayConfig(cfg), m, room.WithEvents(sink))
	if s.Outbox != nil {
		s.Gateway.SetEventStats(s.Outbox.Stats)
	}
	return s, nil
}

func setupPublisher(ctx context.Context, cfg config.Config, s *Services) (events.Publisher, error) {
	switch cfg.Events.Backend {
	case config.BackendNATS:
		pub, err := events.NewJetStreamPublisher(ctx, jetStreamConfig(cfg))
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream publisher: %w", err)
		}
		s.closePublisher = pub.Close
		return pub, nil
	case config.BackendKafka:
		pub, err := events.NewKafkaPublisher(kafkaConfig(cfg))
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka publisher: %w", err)
		}
		s.closePublisher = pub.Close
		return pub, nil
	case config.BackendLog:
		return events.NewLogPublisher(), nil
	default:
		log.Info().Msg("match events disabled")
		return nil, nil
	}
}

// Close stops the gateway first so the rooms' final events reach the outbox before it drains.
func (s *Services) Close() {
	if err := s.Gateway.Stop(); err != nil {
		log.Error().Err(err).Msg("failed to stop gateway")
	}
	if s.Outbox != nil {
		if err := s.Outbox.Stop(); err != nil {
			log.Error().Err(err).Msg("failed to stop event outbox")
		}
	}
	if s.closePublisher != nil {
		if err := s.closePublisher(); err != nil {
			log.Error().Err(err).Msg("failed to close event publisher")
		}
	}
}
