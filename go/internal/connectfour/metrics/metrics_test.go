package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheus_RoomGauge(t *testing.T) {
	m := NewPrometheus()

	m.RoomOpened()
	m.RoomOpened()
	m.RoomClosed()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeRooms))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.roomsOpened))
}

func TestPrometheus_LabelledCounters(t *testing.T) {
	m := NewPrometheus()

	m.GameFinished("win")
	m.GameFinished("win")
	m.GameFinished("timeout")
	m.MoveRejected("column_full")
	m.RecordPublishAttempt("MoveMade", 1, false)
	m.RecordPublishAttempt("MoveMade", 2, true)
	m.RecordEventPublished("MoveMade", true, 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.gamesFinished.WithLabelValues("win")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.gamesFinished.WithLabelValues("timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.movesRejected.WithLabelValues("column_full")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.publishAttempts.WithLabelValues("MoveMade", "2", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventCounter.WithLabelValues("MoveMade", "success")))
}

func TestPrometheus_Handler(t *testing.T) {
	m := NewPrometheus()
	m.MoveApplied()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "connectfour_moves_applied_total 1")
}

func TestNoOpSatisfiesCollector(t *testing.T) {
	var c Collector = NoOp{}
	c.RoomOpened()
	c.GameFinished("draw")
}
