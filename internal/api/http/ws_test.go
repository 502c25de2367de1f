package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mind-engage/hireflow/internal/proctor"
	"github.com/mind-engage/hireflow/internal/rbac"
	"github.com/mind-engage/hireflow/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialSession(t *testing.T, srv *httptest.Server, id, token string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/sessions/" + id + "/ws?access_token=" + token
	conn, res, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	_ = res.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil skips pushed events until a message of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) wsOut {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg wsOut
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == typ {
			return msg
		}
	}
}

func TestWS_StreamsAndAcceptsEvents(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	snap, tok := f.openSession(t, 7, 9)
	conn := dialSession(t, srv, snap.ID, tok)

	first := readUntil(t, conn, "snapshot")
	require.NotNil(t, first.Session)
	assert.Equal(t, snap.ID, first.Session.ID)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "interact"}))
	assert.True(t, readUntil(t, conn, "interact").RequestFullscreen)

	require.NoError(t, conn.WriteJSON(wsIn{Type: "event", Event: &proctor.Event{Type: "copy"}}))
	res := readUntil(t, conn, "event_result")
	require.NotNil(t, res.Result)
	assert.True(t, res.Result.Recorded)
	assert.True(t, res.Result.Prevent)
	assert.Equal(t, proctor.Clipboard, res.Result.Category)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "bogus"}))
	assert.Contains(t, readUntil(t, conn, "error").Error, "bogus")

	// closing the session ends the stream
	rec := f.do(t, http.MethodDelete, "/api/sessions/"+snap.ID, tok, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	readUntil(t, conn, "closed")
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestWS_ViolationEventsArePushed(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	snap, tok := f.openSession(t, 7, 9)
	conn := dialSession(t, srv, snap.ID, tok)
	readUntil(t, conn, "snapshot")

	rec := f.do(t, http.MethodPost, "/api/sessions/"+snap.ID+"/events", tok, proctor.Event{Type: "blur"})
	require.Equal(t, http.StatusOK, rec.Code)

	msg := readUntil(t, conn, "event")
	require.NotNil(t, msg.Event)
	assert.Equal(t, session.EventViolation, msg.Event.Type)
	assert.Equal(t, proctor.WindowBlur, msg.Event.Category)
	assert.Equal(t, 1, msg.Event.Count)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
}

func TestWS_ViewerIsReadOnly(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	snap, _ := f.openSession(t, 7, 9)
	conn := dialSession(t, srv, snap.ID, f.staffToken(t, rbac.RoleRecruiter))
	readUntil(t, conn, "snapshot")

	require.NoError(t, conn.WriteJSON(wsIn{Type: "event", Event: &proctor.Event{Type: "copy"}}))
	assert.Equal(t, "read-only connection", readUntil(t, conn, "error").Error)

	s, err := f.manager.Get(snap.ID)
	require.NoError(t, err)
	assert.Zero(t, s.Guard().Count(proctor.Clipboard))

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
}

func TestWS_RejectsOtherCandidate(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	snap, _ := f.openSession(t, 7, 9)
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/sessions/" + snap.ID + "/ws?access_token=" + f.candidateToken(t, 1, 1)
	_, res, err := websocket.DefaultDialer.Dial(u, nil)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	_ = res.Body.Close()
}
