package room

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/connectfour/go/internal/connectfour/board"
	"github.com/mcdev12/connectfour/go/internal/connectfour/protocol"
)

type delivery struct {
	to  string
	msg protocol.ServerMessage
}

type recorder struct {
	mu  sync.Mutex
	got []delivery
}

func (r *recorder) Notify(ids []string, msg protocol.ServerMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		r.got = append(r.got, delivery{to: id, msg: msg})
	}
}

func (r *recorder) For(id string) []protocol.ServerMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []protocol.ServerMessage
	for _, d := range r.got {
		if d.to == id {
			out = append(out, d.msg)
		}
	}
	return out
}

func (r *recorder) Types(id string) []protocol.MessageType {
	var out []protocol.MessageType
	for _, m := range r.For(id) {
		out = append(out, m.MessageType())
	}
	return out
}

func (r *recorder) Last(id string) protocol.ServerMessage {
	msgs := r.For(id)
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

func (r *recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = nil
}

func fixedCodes(codes ...string) CodeSource {
	var mu sync.Mutex
	i := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		c := codes[i%len(codes)]
		i++
		return c
	}
}

func newTestRegistry(t *testing.T, opts ...Option) (*Registry, *recorder, *clockwork.FakeClock) {
	t.Helper()
	rec := &recorder{}
	clock := clockwork.NewFakeClock()
	opts = append([]Option{WithClock(clock)}, opts...)
	reg := NewRegistry(DefaultConfig(), rec, opts...)
	t.Cleanup(reg.CloseAll)
	return reg, rec, clock
}

func startMatch(t *testing.T, reg *Registry) (*Room, *Player, *Player) {
	t.Helper()
	rm, alice, err := reg.Create("p1", "alice")
	require.NoError(t, err)
	_, bob, err := reg.Join(rm.Code(), "p2", "bob")
	require.NoError(t, err)
	return rm, alice, bob
}

func play(t *testing.T, rm *Room, p1, p2 *Player, columns ...int) {
	t.Helper()
	players := []*Player{p1, p2}
	for i, col := range columns {
		require.NoError(t, rm.Move(players[i%2].ID, col), "move %d column %d", i, col)
	}
}

func blockUntilWaiters(t *testing.T, clock *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, n))
}

// Scenario A: create, join, start.
func TestRoom_CreateAndJoin(t *testing.T) {
	reg, rec, _ := newTestRegistry(t)

	rm, alice, err := reg.Create("p1", "alice")
	require.NoError(t, err)
	assert.Len(t, rm.Code(), 6)
	assert.Equal(t, board.One, alice.Number)
	assert.Equal(t, StatusWaiting, rm.Status())

	created := rec.Last("p1").(protocol.RoomCreated)
	assert.Equal(t, rm.Code(), created.RoomID)
	assert.Equal(t, "p1", created.PlayerID)
	assert.Equal(t, 1, created.PlayerNumber)

	_, bob, err := reg.Join(rm.Code(), "p2", "bob")
	require.NoError(t, err)
	assert.Equal(t, board.Two, bob.Number)
	assert.Equal(t, StatusInProgress, rm.Status())

	assert.Equal(t, []protocol.MessageType{
		protocol.TypeRoomCreated,
		protocol.TypePlayerJoined,
		protocol.TypeGameStart,
		protocol.TypeTimerUpdate,
	}, rec.Types("p1"))
	assert.Equal(t, []protocol.MessageType{
		protocol.TypeRoomJoined,
		protocol.TypeGameStart,
		protocol.TypeTimerUpdate,
	}, rec.Types("p2"))

	joined := rec.For("p2")[0].(protocol.RoomJoined)
	assert.Equal(t, 2, joined.PlayerNumber)
	assert.Equal(t, []protocol.PlayerInfo{
		{ID: "p1", Username: "alice", PlayerNumber: 1},
		{ID: "p2", Username: "bob", PlayerNumber: 2},
	}, joined.Players)
	assert.Equal(t, 1, joined.GameState.CurrentPlayer)
	assert.False(t, joined.GameState.GameOver)

	assert.Equal(t, 10, rec.Last("p1").(protocol.TimerUpdate).TimeLeft)

	_, _, err = reg.Join(rm.Code(), "p3", "carol")
	assert.ErrorIs(t, err, ErrRoomFull)

	_, _, err = reg.Join("ZZZZZZ", "p3", "carol")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRegistry_JoinIsCaseInsensitive(t *testing.T) {
	reg, _, _ := newTestRegistry(t, WithCodeSource(fixedCodes("ABC234")))

	rm, _, err := reg.Create("p1", "alice")
	require.NoError(t, err)
	require.Equal(t, "ABC234", rm.Code())

	got, _, err := reg.Join("  abc234 ", "p2", "bob")
	require.NoError(t, err)
	assert.Same(t, rm, got)
}

func TestRegistry_CodeCollisionRetries(t *testing.T) {
	reg, _, _ := newTestRegistry(t, WithCodeSource(fixedCodes("AAAAAA", "AAAAAA", "BBBBBB")))

	first, _, err := reg.Create("p1", "alice")
	require.NoError(t, err)
	second, _, err := reg.Create("p2", "bob")
	require.NoError(t, err)

	assert.Equal(t, "AAAAAA", first.Code())
	assert.Equal(t, "BBBBBB", second.Code())
	assert.Equal(t, 2, reg.Len())
}

func TestRegistry_CodeSpaceExhausted(t *testing.T) {
	reg, _, _ := newTestRegistry(t, WithCodeSource(fixedCodes("AAAAAA")))

	_, _, err := reg.Create("p1", "alice")
	require.NoError(t, err)
	_, _, err = reg.Create("p2", "bob")
	assert.ErrorIs(t, err, ErrCodeSpaceExhausted)
	assert.Equal(t, 1, reg.Len())
}

func TestRandomCodes(t *testing.T) {
	src := RandomCodes(6, 1)
	for i := 0; i < 100; i++ {
		code := src()
		require.Len(t, code, 6)
		for _, c := range code {
			require.Contains(t, CodeAlphabet, string(c))
		}
	}
}

// Scenario B: horizontal win on the bottom row.
func TestRoom_Win(t *testing.T) {
	reg, rec, _ := newTestRegistry(t)
	rm, alice, bob := startMatch(t, reg)

	play(t, rm, alice, bob, 0, 0, 1, 1, 2, 2, 3)

	msg := rec.Last("p2").(protocol.GameMove)
	assert.Equal(t, [][2]int{{5, 0}, {5, 1}, {5, 2}, {5, 3}}, msg.WinningCells)
	assert.Equal(t, protocol.MoveInfo{Row: 5, Column: 3, Player: 1}, msg.Move)
	assert.Equal(t, "alice", msg.PlayerName)
	assert.True(t, msg.GameState.GameOver)
	require.NotNil(t, msg.GameState.Winner)
	assert.Equal(t, 1, *msg.GameState.Winner)

	assert.Equal(t, StatusGameOver, rm.Status())
	assert.False(t, rm.timer.Active())
	assert.Equal(t, protocol.TypeGameMove, rec.Last("p1").MessageType())

	err := rm.Move(bob.ID, 4)
	assert.ErrorIs(t, err, ErrGameOver)
	assert.ErrorIs(t, err, ErrInvalidMove)
}

func TestRoom_MoveBroadcastsThenRestartsTimer(t *testing.T) {
	reg, rec, _ := newTestRegistry(t)
	rm, alice, _ := startMatch(t, reg)
	rec.Clear()

	require.NoError(t, rm.Move(alice.ID, 3))

	for _, id := range []string{"p1", "p2"} {
		assert.Equal(t, []protocol.MessageType{protocol.TypeGameMove, protocol.TypeTimerUpdate}, rec.Types(id))
	}
	msg := rec.For("p1")[0].(protocol.GameMove)
	assert.Equal(t, 2, msg.GameState.CurrentPlayer)
	assert.Empty(t, msg.WinningCells)
	assert.NotNil(t, msg.WinningCells)
}

func TestRoom_Draw(t *testing.T) {
	reg, rec, _ := newTestRegistry(t)
	rm, alice, _ := startMatch(t, reg)

	pattern := [2][board.Rows]board.Player{
		{board.One, board.One, board.Two, board.Two, board.One, board.One},
		{board.Two, board.Two, board.One, board.One, board.Two, board.Two},
	}
	var b board.Board
	for c := 0; c < board.Cols; c++ {
		for r := 0; r < board.Rows; r++ {
			b[r][c] = pattern[c%2][r]
		}
	}
	b[0][0] = board.None

	rm.mu.Lock()
	rm.board = b
	rm.mu.Unlock()

	require.NoError(t, rm.Move(alice.ID, 0))

	msg := rec.Last("p1").(protocol.GameMove)
	assert.True(t, msg.GameState.GameOver)
	assert.Nil(t, msg.GameState.Winner)
	assert.Empty(t, msg.WinningCells)
	assert.Equal(t, StatusGameOver, rm.Status())
}

// Scenario C: the player to move runs out of time.
func TestRoom_TurnTimeout(t *testing.T) {
	reg, rec, clock := newTestRegistry(t)
	rm, _, _ := startMatch(t, reg)

	for left := 9; left >= 0; left-- {
		before := len(rec.For("p1"))
		blockUntilWaiters(t, clock, 1)
		clock.Advance(time.Second)
		require.Eventually(t, func() bool { return len(rec.For("p1")) == before+1 }, time.Second, time.Millisecond)

		if left > 0 {
			assert.Equal(t, left, rec.Last("p1").(protocol.TimerUpdate).TimeLeft)
		}
	}

	for _, id := range []string{"p1", "p2"} {
		over, ok := rec.Last(id).(protocol.GameOver)
		require.True(t, ok)
		assert.Equal(t, protocol.TypeGameOverTimeout, over.MessageType())
		assert.Equal(t, 2, over.Winner)
		assert.True(t, over.GameState.GameOver)
	}
	assert.Equal(t, StatusGameOver, rm.Status())
}

func TestRoom_StaleExpiryAfterMoveIsIgnored(t *testing.T) {
	reg, rec, _ := newTestRegistry(t)
	rm, alice, _ := startMatch(t, reg)

	rm.mu.Lock()
	stale := rm.countdownID
	rm.mu.Unlock()

	require.NoError(t, rm.Move(alice.ID, 3))
	version := rm.Version()
	count := len(rec.For("p1"))

	rm.handleExpire(stale)
	rm.handleTick(stale, 3*time.Second)

	assert.Equal(t, StatusInProgress, rm.Status())
	assert.Equal(t, version, rm.Version())
	assert.Len(t, rec.For("p1"), count)
}

// Scenario D: disconnect mid-game, then the lone winner is reclaimed.
func TestRoom_DisconnectMidGame(t *testing.T) {
	reg, rec, clock := newTestRegistry(t)
	rm, alice, bob := startMatch(t, reg)
	play(t, rm, alice, bob, 3)

	require.NoError(t, rm.Leave(bob.ID))

	over := rec.Last("p1").(protocol.GameOver)
	assert.Equal(t, protocol.TypeGameOverDisconnect, over.MessageType())
	assert.Equal(t, 1, over.Winner)
	assert.Equal(t, StatusGameOver, rm.Status())
	assert.False(t, rm.timer.Active())
	assert.Equal(t, 1, reg.Len())

	assert.ErrorIs(t, rm.Leave(bob.ID), ErrNotInRoom)
	assert.ErrorIs(t, rm.Reset(alice.ID), ErrNoOpponent)

	_, _, err := reg.Join(rm.Code(), "p3", "carol")
	assert.ErrorIs(t, err, ErrRoomFull)

	blockUntilWaiters(t, clock, 1)
	clock.Advance(DefaultConfig().LingerTTL)
	require.Eventually(t, func() bool { return reg.Len() == 0 }, time.Second, time.Millisecond)
	assert.True(t, rm.Closed())
	assert.Equal(t, protocol.TypeError, rec.Last("p1").MessageType())
}

func TestRoom_LastPlayerLeavingDestroysRoom(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	rm, alice, bob := startMatch(t, reg)
	require.NoError(t, rm.Leave(bob.ID))
	require.NoError(t, rm.Leave(alice.ID))

	assert.True(t, rm.Closed())
	assert.Zero(t, reg.Len())
	_, ok := reg.Get(rm.Code())
	assert.False(t, ok)
}

func TestRoom_OwnerLeavingWaitingRoomDestroysIt(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	rm, alice, err := reg.Create("p1", "alice")
	require.NoError(t, err)

	require.NoError(t, rm.Leave(alice.ID))
	assert.True(t, rm.Closed())
	assert.Zero(t, reg.Len())

	_, _, err = reg.Join(rm.Code(), "p2", "bob")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRoom_LeaveAfterGameOverNotifiesOpponent(t *testing.T) {
	reg, rec, _ := newTestRegistry(t)
	rm, alice, bob := startMatch(t, reg)
	play(t, rm, alice, bob, 0, 0, 1, 1, 2, 2, 3)

	require.NoError(t, rm.Leave(bob.ID))

	left := rec.Last("p1").(protocol.PlayerLeft)
	assert.Equal(t, "bob", left.PlayerName)
	assert.Equal(t, []protocol.PlayerInfo{{ID: "p1", Username: "alice", PlayerNumber: 1}}, left.Players)
	assert.Equal(t, 1, reg.Len())
}

// Scenario E: rejected moves change nothing.
func TestRoom_RejectedMoves(t *testing.T) {
	reg, rec, _ := newTestRegistry(t)
	rm, alice, bob := startMatch(t, reg)

	assert.ErrorIs(t, rm.Move(bob.ID, 0), ErrNotYourTurn)
	assert.ErrorIs(t, rm.Move(alice.ID, 7), board.ErrColumnOutOfRange)
	assert.ErrorIs(t, rm.Move(alice.ID, -1), board.ErrColumnOutOfRange)
	assert.ErrorIs(t, rm.Move("stranger", 0), ErrNotInRoom)

	play(t, rm, alice, bob, 0, 0, 0, 0, 0, 0)
	version := rm.Version()
	before := rm.Snapshot().GameState
	count := len(rec.For("p1"))

	err := rm.Move(alice.ID, 0)
	assert.ErrorIs(t, err, board.ErrColumnFull)
	assert.ErrorIs(t, err, ErrInvalidMove)

	assert.Equal(t, version, rm.Version())
	assert.Equal(t, before, rm.Snapshot().GameState)
	assert.Len(t, rec.For("p1"), count)
}

func TestRoom_MoveBeforeOpponentJoins(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	rm, alice, err := reg.Create("p1", "alice")
	require.NoError(t, err)
	assert.ErrorIs(t, rm.Move(alice.ID, 3), ErrGameNotStarted)
	assert.ErrorIs(t, rm.Reset(alice.ID), ErrGameNotStarted)
}

func TestRoom_Reset(t *testing.T) {
	reg, rec, _ := newTestRegistry(t)
	rm, alice, bob := startMatch(t, reg)

	err := rm.Reset(alice.ID)
	assert.ErrorIs(t, err, ErrGameInProgress)
	assert.ErrorIs(t, err, ErrInvalidMove)

	play(t, rm, alice, bob, 0, 0, 1, 1, 2, 2, 3)
	version := rm.Version()
	rec.Clear()

	require.NoError(t, rm.Reset(bob.ID))
	assert.Greater(t, rm.Version(), version)
	assert.Equal(t, StatusInProgress, rm.Status())
	assert.True(t, rm.timer.Active())

	for _, id := range []string{"p1", "p2"} {
		assert.Equal(t, []protocol.MessageType{protocol.TypeGameReset, protocol.TypeTimerUpdate}, rec.Types(id))
	}
	reset := rec.For("p1")[0].(protocol.GameReset)
	assert.Equal(t, protocol.NewGameState(board.Empty(), board.One, board.None, false), reset.GameState)

	snap := rm.Snapshot()
	assert.Zero(t, snap.Moves)
	assert.Empty(t, snap.WinningCells)

	// numbers survive the reset
	players := rm.Players()
	assert.Equal(t, board.One, players[0].Number)
	assert.Equal(t, board.Two, players[1].Number)
}

func TestRoom_VersionIsMonotonic(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	rm, alice, bob := startMatch(t, reg)

	last := rm.Version()
	for i, col := range []int{0, 1, 0, 1, 0, 1} {
		p := alice
		if i%2 == 1 {
			p = bob
		}
		require.NoError(t, rm.Move(p.ID, col))
		v := rm.Version()
		require.Greater(t, v, last)
		last = v
	}
}

func TestRegistry_SnapshotAndCloseAll(t *testing.T) {
	reg, _, _ := newTestRegistry(t, WithCodeSource(fixedCodes("BBBBBB", "AAAAAA")))
	_, _, err := reg.Create("p1", "alice")
	require.NoError(t, err)
	_, _, err = reg.Create("p2", "bob")
	require.NoError(t, err)

	snaps := reg.Snapshot()
	require.Len(t, snaps, 2)
	assert.Equal(t, "AAAAAA", snaps[0].Code)
	assert.Equal(t, StatusWaiting, snaps[1].Status)

	reg.CloseAll()
	assert.Zero(t, reg.Len())
}

func TestRegistry_ConcurrentCreates(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := reg.Create(fmt.Sprintf("p%d", i), "player")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, reg.Len())
}
