package application

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/mind-engage/hireflow/internal/backend"
	"github.com/mind-engage/hireflow/internal/storage"
	syncx "github.com/mind-engage/hireflow/internal/sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	res       backend.CandidateResult
	err       error
	byEmail   int64
	emailErr  error
	forwarded string
	lookups   int
}

func (f *fakeBackend) StoreCandidate(_ context.Context, _ backend.Application, r io.Reader, _ string) (backend.CandidateResult, error) {
	b, _ := io.ReadAll(r)
	f.forwarded = string(b)
	return f.res, f.err
}

func (f *fakeBackend) CandidateByEmail(context.Context, string, int64) (int64, error) {
	f.lookups++
	return f.byEmail, f.emailErr
}

type fakeRepo struct{ saved []syncx.ApplicationRecord }

func (f *fakeRepo) Save(_ context.Context, a syncx.ApplicationRecord) error {
	f.saved = append(f.saved, a)
	return nil
}

type fakeTokens struct{}

func (fakeTokens) IssueCandidateToken(c, o int64) (string, error) { return "tok", nil }

func validInput() Input {
	return Input{
		Application: backend.Application{
			Nom: "Durand", Prenom: "Alice", Email: "alice@example.com",
			Ville: "Paris", CodePostal: "75001", Tel: "0600000000", OffreID: 9,
		},
		Resume:   strings.NewReader("%PDF-1.7"),
		Filename: "CV Alice.PDF",
	}
}

func newService(t *testing.T, b *fakeBackend) (*Service, *fakeRepo, *storage.FSStore) {
	t.Helper()
	blobs, err := storage.NewFSStore(t.TempDir())
	require.NoError(t, err)
	repo := &fakeRepo{}
	return &Service{Backend: b, Blobs: blobs, Repo: repo, Tokens: fakeTokens{}}, repo, blobs
}

func TestValidate(t *testing.T) {
	in := validInput()
	require.NoError(t, Validate(in))

	noFile := validInput()
	noFile.Resume = nil
	assert.ErrorIs(t, Validate(noFile), ErrResumeRequired)

	badExt := validInput()
	badExt.Filename = "cv.exe"
	assert.ErrorIs(t, Validate(badExt), ErrResumeType)

	noOffer := validInput()
	noOffer.OffreID = 0
	assert.ErrorIs(t, Validate(noOffer), ErrOfferRequired)

	noTel := validInput()
	noTel.Tel = "  "
	var fe *FieldError
	require.True(t, errors.As(Validate(noTel), &fe))
	assert.Equal(t, "tel", fe.Field)

	badEmail := validInput()
	badEmail.Email = "not-an-email"
	assert.ErrorIs(t, Validate(badEmail), ErrInvalidEmail)
}

func TestApply_Success(t *testing.T) {
	b := &fakeBackend{res: backend.CandidateResult{CandidatID: 42, Message: "ok"}}
	s, repo, blobs := newService(t, b)

	out, err := s.Apply(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, int64(42), out.CandidatID)
	assert.Equal(t, "/test-personnalite/42/9", out.TestPath)
	assert.Equal(t, "tok", out.Token)
	assert.False(t, out.AlreadyApplied)
	assert.Zero(t, b.lookups)
	assert.Equal(t, "%PDF-1.7", b.forwarded)

	require.Len(t, repo.saved, 1)
	rec := repo.saved[0]
	assert.Equal(t, "resumes/9/"+out.ApplicationID+".pdf", rec.ResumeKey)
	rc, err := blobs.Get(rec.ResumeKey)
	require.NoError(t, err)
	defer rc.Close()
	stored, _ := io.ReadAll(rc)
	assert.Equal(t, "%PDF-1.7", string(stored))
}

func TestApply_MissingIDFallsBackToEmail(t *testing.T) {
	b := &fakeBackend{byEmail: 77}
	s, _, _ := newService(t, b)

	out, err := s.Apply(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, 1, b.lookups)
	assert.Equal(t, "/test-personnalite/77/9", out.TestPath)
}

func TestApply_AlreadyAppliedIsInformational(t *testing.T) {
	b := &fakeBackend{
		res:     backend.CandidateResult{Message: "Vous avez déjà postulé à cette offre."},
		err:     backend.ErrAlreadyApplied,
		byEmail: 5,
	}
	s, repo, _ := newService(t, b)

	out, err := s.Apply(context.Background(), validInput())
	require.NoError(t, err)
	assert.True(t, out.AlreadyApplied)
	assert.Equal(t, "Vous avez déjà postulé à cette offre.", out.Message)
	assert.Equal(t, "/test-personnalite/5/9", out.TestPath)
	assert.True(t, repo.saved[0].AlreadyApplied)
}

func TestApply_NoIDAnywhere(t *testing.T) {
	b := &fakeBackend{emailErr: backend.ErrCandidateNotFound}
	s, repo, _ := newService(t, b)

	out, err := s.Apply(context.Background(), validInput())
	assert.ErrorIs(t, err, ErrNoCandidateID)
	assert.Empty(t, out.TestPath)
	assert.Empty(t, out.Token)
	assert.Len(t, repo.saved, 1, "the application is kept even without an id")
}

func TestApply_BackendFailure(t *testing.T) {
	b := &fakeBackend{err: &backend.StatusError{Op: "store candidate", Code: 500, Message: "boom"}}
	s, repo, _ := newService(t, b)

	_, err := s.Apply(context.Background(), validInput())
	var se *backend.StatusError
	assert.True(t, errors.As(err, &se))
	assert.Empty(t, repo.saved)
	assert.Zero(t, b.lookups)
}

func TestApply_WithoutBlobStore(t *testing.T) {
	b := &fakeBackend{res: backend.CandidateResult{CandidatID: 1}}
	s := &Service{Backend: b}
	out, err := s.Apply(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", b.forwarded)
	assert.Empty(t, out.Token)
}
