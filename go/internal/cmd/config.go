package main

import (
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/connectfour/go/internal/config"
	"github.com/mcdev12/connectfour/go/internal/connectfour/events"
	"github.com/mcdev12/connectfour/go/internal/connectfour/gateway"
	"github.com/mcdev12/connectfour/go/internal/connectfour/room"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func setupLogging(cfg config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Log.Format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func gatewayConfig(cfg config.Config) gateway.Config {
	gc := gateway.DefaultConfig()
	gc.ConnectionConfig.CheckOrigin = originChecker(cfg.Server.AllowedOrigins)
	gc.Room = room.Config{
		TurnDuration: cfg.TurnDuration(),
		TickInterval: time.Second,
		LingerTTL:    cfg.Room.LingerTTL,
		CodeLength:   cfg.Room.CodeLength,
	}
	return gc
}

func outboxConfig(cfg config.Config) events.Config {
	oc := events.DefaultConfig()
	if cfg.Events.BufferSize > 0 {
		oc.BufferSize = cfg.Events.BufferSize
	}
	if cfg.Events.MaxRetries > 0 {
		oc.MaxRetries = cfg.Events.MaxRetries
	}
	if cfg.Events.RetryDelay > 0 {
		oc.RetryDelay = cfg.Events.RetryDelay
	}
	return oc
}

func jetStreamConfig(cfg config.Config) events.JetStreamConfig {
	jc := events.DefaultJetStreamConfig()
	jc.URL = cfg.Events.NATS.URL
	jc.StreamName = cfg.Events.NATS.Stream
	jc.SubjectPrefix = cfg.Events.NATS.SubjectPrefix
	return jc
}

func kafkaConfig(cfg config.Config) events.KafkaConfig {
	kc := events.DefaultKafkaConfig()
	kc.Brokers = cfg.Events.Kafka.Brokers
	kc.Topic = cfg.Events.Kafka.Topic
	return kc
}

// originChecker accepts requests without an Origin header, and any origin when "*" is allowed.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(r *http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}
