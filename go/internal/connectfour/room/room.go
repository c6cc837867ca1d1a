package room

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/connectfour/go/internal/connectfour/board"
	"github.com/mcdev12/connectfour/go/internal/connectfour/events"
	"github.com/mcdev12/connectfour/go/internal/connectfour/metrics"
	"github.com/mcdev12/connectfour/go/internal/connectfour/protocol"
	"github.com/mcdev12/connectfour/go/internal/connectfour/turntimer"
)

// Room owns one match. Client actions and timer callbacks are serialized by mu, and
// every notification is issued with mu held so players observe mutations in order.
type Room struct {
	code     string
	cfg      Config
	clock    clockwork.Clock
	notifier Notifier
	events   events.Sink
	metrics  metrics.Collector
	onClose  func(*Room)

	mu           sync.Mutex
	players      []*Player
	status       Status
	board        board.Board
	current      board.Player
	winner       board.Player
	winningCells []board.Cell
	moves        int
	version      uint64
	closed       bool
	createdAt    time.Time
	startedAt    time.Time

	timer       *turntimer.Timer
	countdownID uint64

	linger    clockwork.Timer
	lingerSeq uint64
}

func newRoom(code string, owner *Player, cfg Config, clock clockwork.Clock, notifier Notifier, sink events.Sink, m metrics.Collector, onClose func(*Room)) *Room {
	owner.Number = board.One
	return &Room{
		code:      code,
		cfg:       cfg,
		clock:     clock,
		notifier:  notifier,
		events:    sink,
		metrics:   m,
		onClose:   onClose,
		players:   []*Player{owner},
		status:    StatusWaiting,
		board:     board.Empty(),
		current:   board.One,
		createdAt: clock.Now(),
		timer:     turntimer.New(clock, cfg.TickInterval),
	}
}

func (r *Room) Code() string {
	return r.code
}

func (r *Room) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Room) Version() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.version
}

func (r *Room) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Players returns the seated players in join order.
func (r *Room) Players() []Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, *p)
	}
	return out
}

func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	timeLeft := 0
	if r.status == StatusInProgress {
		timeLeft = seconds(r.timer.Remaining())
	}
	return Snapshot{
		Code:         r.code,
		Status:       r.status,
		Players:      r.playerInfosLocked(),
		GameState:    r.stateLocked(),
		WinningCells: protocol.CellsToPairs(r.winningCells),
		Moves:        r.moves,
		TimeLeft:     timeLeft,
		Version:      r.version,
		CreatedAt:    r.createdAt,
	}
}

// announceCreated tells the owner the room exists.
func (r *Room) announceCreated() {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner := r.players[0]
	r.sendLocked(owner.ID, protocol.NewRoomCreated(r.code, owner.ID, owner.Number))
	log.Info().Str("room_code", r.code).Str("player_id", owner.ID).Msg("room created")
}

// join seats the second player and starts the match.
func (r *Room) join(p *Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRoomNotFound
	}
	if len(r.players) >= MaxPlayers || r.status != StatusWaiting {
		return ErrRoomFull
	}

	p.Number = board.Two
	r.players = append(r.players, p)
	r.status = StatusInProgress
	r.startedAt = r.clock.Now()
	r.version++

	players := r.playerInfosLocked()
	owner := r.players[0]

	r.sendLocked(p.ID, protocol.NewRoomJoined(r.code, p.ID, p.Number, players, r.stateLocked()))
	r.sendLocked(owner.ID, protocol.NewPlayerJoined(players))
	r.broadcastLocked(protocol.NewGameStart())
	r.startCountdownLocked()

	r.events.Emit(r.code, events.MatchStarted, events.MatchStartedPayload{
		Players:     r.playerRefsLocked(),
		StartedAt:   r.startedAt,
		TurnSeconds: seconds(r.cfg.TurnDuration),
	})

	log.Info().
		Str("room_code", r.code).
		Str("player_id", p.ID).
		Str("username", p.Username).
		Msg("player joined, match started")
	return nil
}

// Move drops a piece for playerID into column.
func (r *Room) Move(playerID string, column int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.playerLocked(playerID)
	if r.closed || p == nil {
		return ErrNotInRoom
	}
	switch r.status {
	case StatusWaiting:
		return r.reject(ErrGameNotStarted, "not_started")
	case StatusGameOver:
		return r.reject(ErrGameOver, "game_over")
	}
	if p.Number != r.current {
		return r.reject(ErrNotYourTurn, "not_your_turn")
	}

	next, row, err := board.Apply(r.board, column, p.Number)
	if err != nil {
		reason := "out_of_range"
		if errors.Is(err, board.ErrColumnFull) {
			reason = "column_full"
		}
		return r.reject(err, reason)
	}

	r.board = next
	r.moves++
	r.version++
	r.metrics.MoveApplied()
	move := board.Move{Row: row, Col: column, Player: p.Number}

	r.events.Emit(r.code, events.MoveMade, events.MoveMadePayload{
		PlayerID:     p.ID,
		PlayerNumber: int(p.Number),
		Row:          row,
		Column:       column,
		MoveNumber:   r.moves,
		MadeAt:       r.clock.Now(),
	})

	if cells := board.CheckWin(r.board, row, column); cells != nil {
		r.finishLocked(p.Number, cells, events.ReasonWin)
		r.broadcastLocked(protocol.NewGameMove(r.stateLocked(), move, p.Username, cells))
		return nil
	}

	if board.CheckDraw(r.board) {
		r.finishLocked(board.None, nil, events.ReasonDraw)
		r.broadcastLocked(protocol.NewGameMove(r.stateLocked(), move, p.Username, nil))
		return nil
	}

	r.current = r.current.Other()
	r.broadcastLocked(protocol.NewGameMove(r.stateLocked(), move, p.Username, nil))
	r.startCountdownLocked()
	return nil
}

// Reset starts a new match between the same two players.
func (r *Room) Reset(playerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.playerLocked(playerID) == nil {
		return ErrNotInRoom
	}
	switch {
	case r.status == StatusWaiting:
		return ErrGameNotStarted
	case r.status == StatusInProgress:
		return ErrGameInProgress
	case len(r.players) < MaxPlayers:
		return ErrNoOpponent
	}

	r.stopLingerLocked()
	r.board = board.Empty()
	r.current = board.One
	r.winner = board.None
	r.winningCells = nil
	r.moves = 0
	r.status = StatusInProgress
	r.startedAt = r.clock.Now()
	r.version++

	r.broadcastLocked(protocol.NewGameReset(r.stateLocked()))
	r.startCountdownLocked()

	r.events.Emit(r.code, events.MatchReset, events.MatchResetPayload{ResetAt: r.startedAt})
	log.Info().Str("room_code", r.code).Str("player_id", playerID).Msg("match reset")
	return nil
}

// Leave removes playerID from the room. Disconnects take the same path.
func (r *Room) Leave(playerID string) error {
	r.mu.Lock()
	closed, err := r.leaveLocked(playerID)
	r.mu.Unlock()

	if closed {
		r.release()
	}
	return err
}

func (r *Room) leaveLocked(playerID string) (bool, error) {
	if r.closed {
		return false, ErrNotInRoom
	}
	idx := -1
	for i, p := range r.players {
		if p.ID == playerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, ErrNotInRoom
	}

	leaving := r.players[idx]
	r.players = append(r.players[:idx], r.players[idx+1:]...)
	r.version++

	log.Info().
		Str("room_code", r.code).
		Str("player_id", leaving.ID).
		Str("status", string(r.status)).
		Msg("player left room")

	if len(r.players) == 0 || r.status == StatusWaiting {
		r.closeLocked("empty")
		return true, nil
	}

	remaining := r.players[0]
	switch r.status {
	case StatusInProgress:
		r.finishLocked(remaining.Number, nil, events.ReasonDisconnect)
		r.sendLocked(remaining.ID, protocol.NewGameOverDisconnect(r.stateLocked(), remaining.Number))
	case StatusGameOver:
		r.sendLocked(remaining.ID, protocol.NewPlayerLeft(leaving.Username, r.playerInfosLocked()))
	}
	r.armLingerLocked()
	return false, nil
}

// Close tears the room down regardless of who is seated. Used on shutdown.
func (r *Room) Close(reason string) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closeLocked(reason)
	r.mu.Unlock()

	r.release()
}

func (r *Room) closeLocked(reason string) {
	r.timer.Cancel()
	r.countdownID = 0
	r.stopLingerLocked()
	r.closed = true
	r.version++

	r.events.Emit(r.code, events.RoomClosed, events.RoomClosedPayload{
		ClosedAt: r.clock.Now(),
		Reason:   reason,
	})
	log.Info().Str("room_code", r.code).Str("reason", reason).Msg("room closed")
}

// release runs without r.mu held so the registry lock is never taken inside a room lock.
func (r *Room) release() {
	if r.onClose != nil {
		r.onClose(r)
	}
}

// finishLocked ends the match. The timer is stopped before any state changes.
func (r *Room) finishLocked(winner board.Player, cells []board.Cell, reason string) {
	r.timer.Cancel()
	r.countdownID = 0

	r.status = StatusGameOver
	r.winner = winner
	r.winningCells = cells
	r.version++
	r.metrics.GameFinished(reason)

	r.events.Emit(r.code, events.MatchFinished, events.MatchFinishedPayload{
		Reason:       reason,
		Winner:       int(winner),
		WinningCells: protocol.CellsToPairs(cells),
		Moves:        r.moves,
		FinishedAt:   r.clock.Now(),
		Duration:     r.clock.Since(r.startedAt).String(),
	})

	log.Info().
		Str("room_code", r.code).
		Str("reason", reason).
		Int("winner", int(winner)).
		Int("moves", r.moves).
		Msg("match finished")
}

func (r *Room) startCountdownLocked() {
	r.countdownID = r.timer.Start(r.cfg.TurnDuration, r.handleTick, r.handleExpire)
	r.broadcastLocked(protocol.NewTimerUpdate(seconds(r.cfg.TurnDuration)))
}

func (r *Room) handleTick(id uint64, remaining time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.status != StatusInProgress || id != r.countdownID {
		return
	}
	r.broadcastLocked(protocol.NewTimerUpdate(seconds(remaining)))
}

func (r *Room) handleExpire(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.status != StatusInProgress || id != r.countdownID {
		log.Debug().Str("room_code", r.code).Uint64("countdown_id", id).Msg("ignoring stale turn expiry")
		return
	}

	winner := r.current.Other()
	r.finishLocked(winner, nil, events.ReasonTimeout)
	r.broadcastLocked(protocol.NewGameOverTimeout(r.stateLocked(), winner))
}

// armLingerLocked schedules removal of a room left with a single player after its match ended.
func (r *Room) armLingerLocked() {
	if r.cfg.LingerTTL <= 0 {
		return
	}
	r.stopLingerLocked()
	r.lingerSeq++
	seq := r.lingerSeq
	r.linger = r.clock.AfterFunc(r.cfg.LingerTTL, func() { r.expireLinger(seq) })
}

func (r *Room) stopLingerLocked() {
	if r.linger != nil {
		r.linger.Stop()
		r.linger = nil
	}
}

func (r *Room) expireLinger(seq uint64) {
	r.mu.Lock()
	if r.closed || seq != r.lingerSeq || len(r.players) != 1 {
		r.mu.Unlock()
		return
	}
	r.linger = nil
	r.broadcastLocked(protocol.NewError("room closed after the opponent left"))
	r.closeLocked("linger_expired")
	r.mu.Unlock()

	r.release()
}

func (r *Room) reject(err error, reason string) error {
	r.metrics.MoveRejected(reason)
	return err
}

func (r *Room) playerLocked(id string) *Player {
	for _, p := range r.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) stateLocked() protocol.GameState {
	return protocol.NewGameState(r.board, r.current, r.winner, r.status == StatusGameOver)
}

func (r *Room) playerInfosLocked() []protocol.PlayerInfo {
	out := make([]protocol.PlayerInfo, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p.Info())
	}
	return out
}

func (r *Room) playerRefsLocked() []events.PlayerRef {
	out := make([]events.PlayerRef, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, events.PlayerRef{PlayerID: p.ID, Username: p.Username, PlayerNumber: int(p.Number)})
	}
	return out
}

func (r *Room) sendLocked(playerID string, msg protocol.ServerMessage) {
	r.notifier.Notify([]string{playerID}, msg)
}

func (r *Room) broadcastLocked(msg protocol.ServerMessage) {
	ids := make([]string, 0, len(r.players))
	for _, p := range r.players {
		ids = append(ids, p.ID)
	}
	r.notifier.Notify(ids, msg)
}

// seconds rounds d up to whole seconds.
func seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
