package http

import (
	"net/http"
	"testing"

	"github.com/mind-engage/hireflow/internal/backend"
	"github.com/mind-engage/hireflow/internal/proctor"
	"github.com/mind-engage/hireflow/internal/rbac"
	"github.com/mind-engage/hireflow/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessions_CandidateCompletesTest(t *testing.T) {
	f := newFixture(t)
	snap, tok := f.openSession(t, 7, 9)
	assert.Equal(t, session.StageQuestionnaire, snap.Stage)
	assert.Equal(t, session.LoadLoaded, snap.Load)
	assert.Equal(t, 2, snap.Total)
	require.NotNil(t, snap.Question)
	assert.Equal(t, "Q1", snap.Question.Question.Prompt)

	base := "/api/sessions/" + snap.ID

	rec := f.do(t, http.MethodPost, base+"/next", tok, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	for i := 0; i < 2; i++ {
		rec = f.do(t, http.MethodPost, base+"/select", tok, map[string]int{"option": 0})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		rec = f.do(t, http.MethodPost, base+"/next", tok, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	snap = decode[session.Snapshot](t, rec)
	assert.Equal(t, session.StageImageAnalysis, snap.Stage)
	require.NotNil(t, snap.Submit)
	assert.True(t, snap.Submit.OK)
	assert.Equal(t, 9.0, snap.Submit.Score)
	assert.Equal(t, []backend.ScoreSubmission{{CandidatID: 7, OffreID: 9, Score: 9}}, f.scores.Calls())

	rec = f.do(t, http.MethodPost, base+"/select", tok, map[string]int{"option": 0})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, base+"/analysis", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, session.StageCompleted, decode[session.Snapshot](t, rec).Stage)

	rec = f.do(t, http.MethodDelete, base, tok, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodGet, base, tok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessions_Navigation(t *testing.T) {
	f := newFixture(t)
	snap, tok := f.openSession(t, 1, 2)
	base := "/api/sessions/" + snap.ID

	rec := f.do(t, http.MethodPost, base+"/goto", tok, map[string]int{"index": 1})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[session.Snapshot](t, rec).Question.Index)

	rec = f.do(t, http.MethodPost, base+"/prev", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[session.Snapshot](t, rec).Question.Index)

	rec = f.do(t, http.MethodPost, base+"/goto", tok, map[string]int{"index": 5})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(t, http.MethodPost, base+"/select", tok, map[string]int{"option": 9})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(t, http.MethodPost, base+"/select", tok, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, base+"/retry", tok, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSessions_Access(t *testing.T) {
	f := newFixture(t)
	snap, _ := f.openSession(t, 7, 9)
	base := "/api/sessions/" + snap.ID

	rec := f.do(t, http.MethodGet, base, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// a token scoped to another pair can neither open nor play this one
	other := f.candidateToken(t, 8, 9)
	rec = f.do(t, http.MethodGet, "/test-personnalite/7/9", other, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = f.do(t, http.MethodGet, base, other, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = f.do(t, http.MethodPost, base+"/select", other, map[string]int{"option": 0})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = f.do(t, http.MethodPost, "/api/sessions", other, map[string]int64{"candidat_id": 7, "offre_id": 9})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rh := f.staffToken(t, rbac.RoleRecruiter)
	rec = f.do(t, http.MethodGet, base, rh, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodPost, base+"/select", rh, map[string]int{"option": 0})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := f.staffToken(t, rbac.RoleAdmin)
	rec = f.do(t, http.MethodPost, "/api/sessions", admin, map[string]int64{"candidat_id": 3, "offre_id": 4})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/sessions", admin, map[string]int64{"candidat_id": 3})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(t, http.MethodPost, base+"/select", admin, map[string]int{"option": 0})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodGet, "/test-personnalite/7/9", rh, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/sessions/missing", admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessions_IntegrityEventsTerminate(t *testing.T) {
	f := newFixture(t)
	snap, tok := f.openSession(t, 7, 9)
	base := "/api/sessions/" + snap.ID

	rec := f.do(t, http.MethodPost, base+"/interact", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]bool{"request_fullscreen": true}, decode[map[string]bool](t, rec))
	rec = f.do(t, http.MethodPost, base+"/interact", tok, nil)
	assert.Equal(t, map[string]bool{"request_fullscreen": false}, decode[map[string]bool](t, rec))

	rec = f.do(t, http.MethodPost, base+"/events", tok, proctor.Event{Type: "mousemove"})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[eventResult](t, rec)
	assert.False(t, res.Recorded)
	assert.False(t, res.Prevent)

	rec = f.do(t, http.MethodPost, base+"/events", tok, proctor.Event{Type: "visibilitychange", Visibility: "hidden"})
	res = decode[eventResult](t, rec)
	assert.True(t, res.Recorded)
	assert.Equal(t, proctor.TabSwitch, res.Category)
	assert.False(t, res.Prevent)

	for i := 0; i < 2; i++ {
		rec = f.do(t, http.MethodPost, base+"/events", tok, proctor.Event{Type: "keydown", Key: "c", Ctrl: true})
		require.Equal(t, http.StatusOK, rec.Code)
		res = decode[eventResult](t, rec)
		assert.True(t, res.Prevent)
		assert.Equal(t, proctor.Keyboard, res.Category)
	}
	assert.Equal(t, session.StageQuestionnaire, res.Session.Stage)

	rec = f.do(t, http.MethodPost, base+"/events", tok, proctor.Event{Type: "keydown", Key: "v", Meta: true})
	res = decode[eventResult](t, rec)
	assert.Equal(t, session.StageTerminated, res.Session.Stage)
	require.NotNil(t, res.Session.Guard)
	assert.True(t, res.Session.Guard.Exceeded)
	assert.Empty(t, f.scores.Calls())

	rec = f.do(t, http.MethodPost, base+"/events", tok, proctor.Event{Type: "copy"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = f.do(t, http.MethodPost, base+"/fullscreen", tok, map[string]bool{"active": true})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSessions_Fullscreen(t *testing.T) {
	f := newFixture(t)
	snap, tok := f.openSession(t, 7, 9)
	base := "/api/sessions/" + snap.ID

	rec := f.do(t, http.MethodPost, base+"/fullscreen", tok, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, base+"/fullscreen", tok, map[string]bool{"active": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[session.Snapshot](t, rec).Guard.Fullscreen)

	rec = f.do(t, http.MethodPost, base+"/fullscreen", tok, map[string]bool{"active": false})
	require.Equal(t, http.StatusOK, rec.Code)
	snap = decode[session.Snapshot](t, rec)
	assert.Equal(t, 1, snap.Guard.Counts[proctor.Fullscreen])
	assert.NotEmpty(t, snap.Guard.Warning)
}

func TestSessions_ReloadKeepsSession(t *testing.T) {
	f := newFixture(t)
	snap, tok := f.openSession(t, 7, 9)
	base := "/api/sessions/" + snap.ID

	for i := 0; i < 3; i++ {
		rec := f.do(t, http.MethodPost, base+"/events", tok, proctor.Event{Type: "copy"})
		require.Equal(t, http.StatusOK, rec.Code)
		if i == 0 {
			again, _ := f.openSession(t, 7, 9)
			assert.Equal(t, snap.ID, again.ID)
			require.NotNil(t, again.Guard)
			assert.Equal(t, 1, again.Guard.Counts[proctor.Clipboard])
		}
	}

	again, _ := f.openSession(t, 7, 9)
	assert.Equal(t, snap.ID, again.ID)
	assert.Equal(t, session.StageTerminated, again.Stage)

	rec := f.do(t, http.MethodDelete, base, tok, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodGet, "/test-personnalite/7/9", tok, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
