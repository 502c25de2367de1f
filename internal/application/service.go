// Package application handles the job application form: validation, résumé
// storage, forwarding to the primary API and routing to the personality test.
package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mind-engage/hireflow/internal/backend"
	"github.com/mind-engage/hireflow/internal/storage"
	syncx "github.com/mind-engage/hireflow/internal/sync"
	"go.uber.org/zap"
)

var (
	ErrResumeRequired = errors.New("Veuillez sélectionner un CV")
	ErrResumeType     = errors.New("CV: formats acceptés .pdf, .doc, .docx")
	ErrInvalidEmail   = errors.New("adresse e-mail invalide")
	ErrOfferRequired  = errors.New("offre_id manquant")
	// ErrNoCandidateID means neither the store response nor the email lookup
	// produced a candidate id, so there is no test to route to.
	ErrNoCandidateID = errors.New("identifiant candidat introuvable")
)

// FieldError names a required form field left blank.
type FieldError struct{ Field string }

func (e *FieldError) Error() string { return "champ requis: " + e.Field }

var resumeExts = map[string]bool{".pdf": true, ".doc": true, ".docx": true}

// Forwarder is the part of the primary API the form needs.
type Forwarder interface {
	StoreCandidate(ctx context.Context, a backend.Application, resume io.Reader, filename string) (backend.CandidateResult, error)
	CandidateByEmail(ctx context.Context, email string, offreID int64) (int64, error)
}

type Repo interface {
	Save(ctx context.Context, a syncx.ApplicationRecord) error
}

type TokenIssuer interface {
	IssueCandidateToken(candidatID, offreID int64) (string, error)
}

type Input struct {
	backend.Application
	Resume   io.Reader
	Filename string
}

// Outcome tells the page where to go next.
type Outcome struct {
	ApplicationID  string `json:"application_id"`
	CandidatID     int64  `json:"candidat_id"`
	OffreID        int64  `json:"offre_id"`
	AlreadyApplied bool   `json:"already_applied"`
	Message        string `json:"message,omitempty"`
	TestPath       string `json:"test_path"`
	Token          string `json:"token"`
}

type Service struct {
	Backend Forwarder
	Blobs   storage.BlobStore
	Repo    Repo
	Tokens  TokenIssuer
	Log     *zap.Logger
	Now     func() time.Time
}

// TestPath is the client route of the personality test.
func TestPath(candidatID, offreID int64) string {
	return fmt.Sprintf("/test-personnalite/%d/%d", candidatID, offreID)
}

func Validate(in Input) error {
	if in.Resume == nil || in.Filename == "" {
		return ErrResumeRequired
	}
	if !resumeExts[strings.ToLower(filepath.Ext(in.Filename))] {
		return ErrResumeType
	}
	if in.OffreID <= 0 {
		return ErrOfferRequired
	}
	required := [][2]string{
		{"prenom", in.Prenom},
		{"nom", in.Nom},
		{"email", in.Email},
		{"ville", in.Ville},
		{"codePostal", in.CodePostal},
		{"tel", in.Tel},
	}
	for _, f := range required {
		if strings.TrimSpace(f[1]) == "" {
			return &FieldError{Field: f[0]}
		}
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return ErrInvalidEmail
	}
	return nil
}

// Apply validates and submits an application. A duplicate application is
// not an error: the outcome is flagged AlreadyApplied and still routes to
// the test when the candidate can be found by email.
func (s *Service) Apply(ctx context.Context, in Input) (Outcome, error) {
	if err := Validate(in); err != nil {
		return Outcome{}, err
	}
	log := s.Log
	if log == nil {
		log = zap.NewNop()
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	appID := uuid.NewString()
	out := Outcome{ApplicationID: appID, OffreID: in.OffreID}
	log = log.With(zap.String("application_id", appID), zap.Int64("offre_id", in.OffreID))

	resume := in.Resume
	var resumeKey string
	if s.Blobs != nil {
		key := fmt.Sprintf("resumes/%d/%s%s", in.OffreID, appID, strings.ToLower(filepath.Ext(in.Filename)))
		k, err := s.Blobs.Put(key, in.Resume)
		if err != nil {
			return Outcome{}, fmt.Errorf("store résumé: %w", err)
		}
		rc, err := s.Blobs.Get(k)
		if err != nil {
			return Outcome{}, fmt.Errorf("reopen résumé: %w", err)
		}
		defer rc.Close()
		resume, resumeKey = rc, k
	}

	res, err := s.Backend.StoreCandidate(ctx, in.Application, resume, filepath.Base(in.Filename))
	return s.finish(ctx, log, in, out, resumeKey, res, err, now)
}

func (s *Service) finish(ctx context.Context, log *zap.Logger, in Input, out Outcome, resumeKey string,
	res backend.CandidateResult, err error, now func() time.Time) (Outcome, error) {
	switch {
	case errors.Is(err, backend.ErrAlreadyApplied):
		out.AlreadyApplied = true
		out.Message = res.Message
		log.Info("candidate already applied")
	case err != nil:
		log.Error("application not forwarded", zap.Error(err))
		return Outcome{}, fmt.Errorf("store candidate: %w", err)
	default:
		out.CandidatID = res.CandidatID
		out.Message = res.Message
	}

	if out.CandidatID == 0 {
		id, lerr := s.Backend.CandidateByEmail(ctx, in.Email, in.OffreID)
		if lerr != nil {
			log.Warn("candidate lookup by email failed", zap.Error(lerr))
		}
		out.CandidatID = id
	}

	if s.Repo != nil {
		rec := syncx.ApplicationRecord{
			ID:               out.ApplicationID,
			CandidatID:       out.CandidatID,
			OffreID:          in.OffreID,
			Email:            in.Email,
			Nom:              in.Nom,
			Prenom:           in.Prenom,
			Pays:             in.Pays,
			Ville:            in.Ville,
			CodePostal:       in.CodePostal,
			Tel:              in.Tel,
			NiveauEtude:      in.NiveauEtude,
			NiveauExperience: in.NiveauExperience,
			ResumeKey:        resumeKey,
			AlreadyApplied:   out.AlreadyApplied,
			CreatedAt:        now(),
		}
		if rerr := s.Repo.Save(ctx, rec); rerr != nil {
			log.Error("save application", zap.Error(rerr))
		}
	}

	if out.CandidatID == 0 {
		return out, ErrNoCandidateID
	}
	out.TestPath = TestPath(out.CandidatID, in.OffreID)
	if s.Tokens != nil {
		tok, terr := s.Tokens.IssueCandidateToken(out.CandidatID, in.OffreID)
		if terr != nil {
			return out, fmt.Errorf("issue candidate token: %w", terr)
		}
		out.Token = tok
	}
	log.Info("application accepted",
		zap.Int64("candidat_id", out.CandidatID),
		zap.Bool("already_applied", out.AlreadyApplied))
	return out, nil
}
