package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType names a match lifecycle event. It is also the last subject/topic token.
type EventType string

const (
	MatchStarted  EventType = "MatchStarted"
	MoveMade      EventType = "MoveMade"
	MatchFinished EventType = "MatchFinished"
	MatchReset    EventType = "MatchReset"
	RoomClosed    EventType = "RoomClosed"
)

// Event is one match event waiting to be published.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	RoomCode  string          `json:"room_code"`
	EventType EventType       `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Envelope is the JSON body every broker receives.
type Envelope struct {
	EventID   string          `json:"eventId"`
	EventType EventType       `json:"eventType"`
	RoomCode  string          `json:"roomCode"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

func (e Event) Envelope() Envelope {
	return Envelope{
		EventID:   e.ID.String(),
		EventType: e.EventType,
		RoomCode:  e.RoomCode,
		Timestamp: e.CreatedAt,
		Payload:   e.Payload,
	}
}

// Publisher delivers one event to a broker.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Sink accepts events from rooms. Emit must not block.
type Sink interface {
	Emit(roomCode string, eventType EventType, payload any)
}

// Discard is a Sink that drops everything.
type Discard struct{}

func (Discard) Emit(string, EventType, any) {}
