package syncx

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/mind-engage/hireflow/internal/db"
	"github.com/mind-engage/hireflow/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	d, err := db.Open(context.Background(), db.DriverSQLite, "file:"+filepath.Join(t.TempDir(), "t.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestEventRepo_RecordAndList(t *testing.T) {
	ctx := context.Background()
	r := NewEventRepo(openDB(t), "")

	require.NoError(t, r.Record(ctx, "s1", "violation", map[string]any{"category": "clipboard", "count": 1}))
	require.NoError(t, r.Record(ctx, "s1", "stage", map[string]any{"stage": "terminated"}))
	require.NoError(t, r.Record(ctx, "s2", "loaded", map[string]any{"count": 10}))

	evs, err := r.BySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, "violation", evs[0].Kind)
	assert.Equal(t, "local", evs[0].SiteID)
	assert.JSONEq(t, `{"category":"clipboard","count":1}`, evs[0].DataJSON)
	assert.Less(t, evs[0].Seq, evs[1].Seq)
}

func TestResultRepo_Upsert(t *testing.T) {
	ctx := context.Background()
	r := NewResultRepo(openDB(t))
	now := time.Unix(1700000000, 0)

	res := session.Result{
		SessionID: "s1", CandidatID: 3, OffreID: 9,
		Stage: session.StageImageAnalysis, Score: 12, Answered: 3, Total: 3,
		Submitted: true, Attempts: 2, Violations: map[string]int{"tabswitch": 1},
		UpdatedAt: now,
	}
	require.NoError(t, r.SaveResult(ctx, res))

	res.Stage = session.StageCompleted
	res.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, r.SaveResult(ctx, res))

	got, err := r.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, session.StageCompleted, got.Stage)
	assert.Equal(t, 12.0, got.Score)
	assert.True(t, got.Submitted)
	assert.Equal(t, map[string]int{"tabswitch": 1}, got.Violations)

	require.NoError(t, r.SaveResult(ctx, session.Result{SessionID: "s2", OffreID: 4, Stage: session.StageTimedOut, UpdatedAt: now}))

	all, err := r.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "s1", all[0].SessionID)
	assert.Nil(t, all[1].Violations)

	byOffer, err := r.List(ctx, 4, 10)
	require.NoError(t, err)
	require.Len(t, byOffer, 1)
	assert.Equal(t, "s2", byOffer[0].SessionID)

	_, err = r.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApplicationRepo(t *testing.T) {
	ctx := context.Background()
	r := NewApplicationRepo(openDB(t))

	require.NoError(t, r.Save(ctx, ApplicationRecord{
		ID: "a1", CandidatID: 5, OffreID: 9, Email: "c@x.fr",
		Nom: "Martin", Prenom: "Léa", Ville: "Lyon", Pays: "France",
		NiveauEtude: "Bac+5", NiveauExperience: "3 ans", ResumeKey: "resumes/9/a1.pdf",
	}))

	got, err := r.Latest(ctx, 5, 9)
	require.NoError(t, err)
	assert.Equal(t, "resumes/9/a1.pdf", got.ResumeKey)
	assert.False(t, got.AlreadyApplied)

	profile, err := r.CandidateProfile(ctx, 5, 9)
	require.NoError(t, err)
	assert.Equal(t, "Candidat: Léa Martin. Niveau d'étude: Bac+5. Expérience: 3 ans. Localisation: Lyon, France.", profile)

	list, err := r.ByOffer(ctx, 9)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = r.CandidateProfile(ctx, 5, 10)
	assert.ErrorIs(t, err, ErrNotFound)
}
