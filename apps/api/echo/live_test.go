package echoapi_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/hazira/apps/api/echo"
	"github.com/trezcool/hazira/core/lecture"
)

func dialLive(t *testing.T, f fixture) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(f.app)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/live", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil reads messages until one satisfies match.
func readUntil(t *testing.T, conn *websocket.Conn, match func(msg echoapi.LiveMessage) bool) echoapi.LiveMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var msg echoapi.LiveMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if match(msg) {
			return msg
		}
	}
}

func isReply(command string) func(msg echoapi.LiveMessage) bool {
	return func(msg echoapi.LiveMessage) bool {
		return msg.Type != "snapshot" && msg.Command == command
	}
}

func Test_liveApi(t *testing.T) {
	ctx := context.Background()
	f, cs := lectureFixture(t)
	maths := lecture.CounterKey{BranchName: "CS", SemesterLabel: "3", Subject: "Maths"}
	require.NoError(t, f.lectureSvc.Persist(ctx, maths.NewCounter(10)))

	conn := dialLive(t, f)

	snap := readUntil(t, conn, func(msg echoapi.LiveMessage) bool { return msg.Type == "snapshot" })
	assert.Equal(t, []lecture.Counter{maths.NewCounter(10)}, snap.Counters)
	assert.Empty(t, snap.Active)

	t.Run("adjust stays local", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(echoapi.LiveCommand{Type: "adjust", Counter: &maths, Delta: 1}))
		ack := readUntil(t, conn, isReply("adjust"))
		require.Equal(t, "ack", ack.Type, ack.Error)
		assert.Equal(t, 11, ack.Counter.Count)

		stored, err := f.lectureSvc.Counter(ctx, maths)
		require.NoError(t, err)
		assert.Equal(t, 10, stored.Count)
	})

	t.Run("save", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(echoapi.LiveCommand{Type: "save", Counter: &maths}))
		ack := readUntil(t, conn, isReply("save"))
		require.Equal(t, "ack", ack.Type, ack.Error)

		stored, err := f.lectureSvc.Counter(ctx, maths)
		require.NoError(t, err)
		assert.Equal(t, 11, stored.Count)
	})

	t.Run("activate", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(echoapi.LiveCommand{
			Type:       "activate",
			Activation: &lecture.Activation{BranchID: cs.ID, SemesterID: cs.Semesters[0].ID.String(), Subject: "Physics"},
		}))
		ack := readUntil(t, conn, isReply("activate"))
		require.Equal(t, "ack", ack.Type, ack.Error)
		assert.Equal(t, "Physics", ack.Current.Subject)

		snap := readUntil(t, conn, func(msg echoapi.LiveMessage) bool {
			return msg.Type == "snapshot" && len(msg.Active) == 1
		})
		assert.Equal(t, "Physics", snap.Active[0].Subject)
		assert.True(t, snap.Markers.IsActive(lecture.CounterKey{BranchName: "CS", SemesterLabel: "3", Subject: "Physics"}))
	})

	t.Run("errors", func(t *testing.T) {
		unknown := lecture.CounterKey{BranchName: "CS", SemesterLabel: "3", Subject: "Art"}
		require.NoError(t, conn.WriteJSON(echoapi.LiveCommand{Type: "adjust", Counter: &unknown, Delta: 1}))
		reply := readUntil(t, conn, isReply("adjust"))
		assert.Equal(t, "error", reply.Type)
		assert.Equal(t, lecture.ErrCounterNotFound.Error(), reply.Error)

		require.NoError(t, conn.WriteJSON(echoapi.LiveCommand{Type: "save"}))
		reply = readUntil(t, conn, isReply("save"))
		assert.Equal(t, "error", reply.Type)

		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))
		reply = readUntil(t, conn, func(msg echoapi.LiveMessage) bool { return msg.Type == "error" && msg.Command == "" })
		assert.Equal(t, "invalid command", reply.Error)
	})

	t.Run("other writers replace the session", func(t *testing.T) {
		require.NoError(t, f.lectureSvc.Persist(ctx, maths.NewCounter(30)))
		snap := readUntil(t, conn, func(msg echoapi.LiveMessage) bool {
			for _, c := range msg.Counters {
				if c.Subject == "Maths" && c.Count == 30 {
					return true
				}
			}
			return false
		})
		assert.Equal(t, "snapshot", snap.Type)
	})
}
