package room

import (
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/connectfour/go/internal/connectfour/events"
	"github.com/mcdev12/connectfour/go/internal/connectfour/metrics"
)

// CodeAlphabet omits I, O, 0 and 1 so codes can be read aloud.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const maxCodeAttempts = 32

// CodeSource produces candidate room codes.
type CodeSource func() string

// RandomCodes returns a CodeSource drawing length characters from CodeAlphabet.
func RandomCodes(length int, seed int64) CodeSource {
	var mu sync.Mutex
	rng := rand.New(rand.NewSource(seed))
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		b := make([]byte, length)
		for i := range b {
			b[i] = CodeAlphabet[rng.Intn(len(CodeAlphabet))]
		}
		return string(b)
	}
}

// NormalizeCode trims and upper-cases a user supplied code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

type Option func(*Registry)

func WithClock(clock clockwork.Clock) Option {
	return func(r *Registry) { r.clock = clock }
}

func WithEvents(sink events.Sink) Option {
	return func(r *Registry) { r.events = sink }
}

func WithMetrics(m metrics.Collector) Option {
	return func(r *Registry) { r.metrics = m }
}

func WithCodeSource(src CodeSource) Option {
	return func(r *Registry) { r.codes = src }
}

// Registry maps live room codes to rooms.
type Registry struct {
	cfg      Config
	notifier Notifier
	clock    clockwork.Clock
	events   events.Sink
	metrics  metrics.Collector
	codes    CodeSource

	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewRegistry(cfg Config, notifier Notifier, opts ...Option) *Registry {
	def := DefaultConfig()
	if cfg.TurnDuration <= 0 {
		cfg.TurnDuration = def.TurnDuration
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = def.CodeLength
	}

	r := &Registry{
		cfg:      cfg,
		notifier: notifier,
		clock:    clockwork.NewRealClock(),
		events:   events.Discard{},
		metrics:  metrics.NoOp{},
		rooms:    make(map[string]*Room),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.codes == nil {
		r.codes = RandomCodes(cfg.CodeLength, time.Now().UnixNano())
	}
	return r
}

// Create opens a room owned by a new player 1 and sends room_created to it.
// An empty playerID is replaced with a generated one.
func (r *Registry) Create(playerID, username string) (*Room, *Player, error) {
	if playerID == "" {
		playerID = uuid.NewString()
	}
	owner := &Player{ID: playerID, Username: username}

	r.mu.Lock()
	code, ok := r.nextCodeLocked()
	if !ok {
		r.mu.Unlock()
		log.Error().Int("rooms", len(r.rooms)).Msg("room code space exhausted")
		return nil, nil, ErrCodeSpaceExhausted
	}
	rm := newRoom(code, owner, r.cfg, r.clock, r.notifier, r.events, r.metrics, r.release)
	r.rooms[code] = rm
	r.mu.Unlock()

	r.metrics.RoomOpened()
	rm.announceCreated()
	return rm, owner, nil
}

// Join seats a second player in the room identified by code.
func (r *Registry) Join(code, playerID, username string) (*Room, *Player, error) {
	rm, ok := r.Get(code)
	if !ok {
		return nil, nil, ErrRoomNotFound
	}
	if playerID == "" {
		playerID = uuid.NewString()
	}
	p := &Player{ID: playerID, Username: username}
	if err := rm.join(p); err != nil {
		return nil, nil, err
	}
	return rm, p, nil
}

func (r *Registry) Get(code string) (*Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[NormalizeCode(code)]
	return rm, ok
}

// Remove deletes code only if it still maps to rm.
func (r *Registry) Remove(code string, rm *Room) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.rooms[code]; !ok || cur != rm {
		return false
	}
	delete(r.rooms, code)
	r.metrics.RoomClosed()
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Snapshot lists every live room ordered by code.
func (r *Registry) Snapshot() []Snapshot {
	r.mu.RLock()
	rooms := make([]*Room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		rooms = append(rooms, rm)
	}
	r.mu.RUnlock()

	out := make([]Snapshot, 0, len(rooms))
	for _, rm := range rooms {
		out = append(out, rm.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// CloseAll tears down every room. Used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	rooms := make([]*Room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		rooms = append(rooms, rm)
	}
	r.mu.RUnlock()

	for _, rm := range rooms {
		rm.Close("shutdown")
	}
}

func (r *Registry) release(rm *Room) {
	r.Remove(rm.Code(), rm)
}

func (r *Registry) nextCodeLocked() (string, bool) {
	for i := 0; i < maxCodeAttempts; i++ {
		code := r.codes()
		if _, taken := r.rooms[code]; !taken {
			return code, true
		}
		log.Debug().Str("room_code", code).Int("attempt", i+1).Msg("room code collision")
	}
	return "", false
}
