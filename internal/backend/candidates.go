package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// Application carries the personal fields of the application form.
type Application struct {
	Nom              string `json:"nom"`
	Prenom           string `json:"prenom"`
	Email            string `json:"email"`
	Pays             string `json:"pays"`
	Ville            string `json:"ville"`
	CodePostal       string `json:"codePostal"`
	Tel              string `json:"tel"`
	NiveauEtude      string `json:"niveauEtude"`
	NiveauExperience string `json:"niveauExperience"`
	OffreID          int64  `json:"offre_id"`
}

func (a Application) fields() [][2]string {
	return [][2]string{
		{"nom", a.Nom},
		{"prenom", a.Prenom},
		{"email", a.Email},
		{"pays", a.Pays},
		{"ville", a.Ville},
		{"codePostal", a.CodePostal},
		{"tel", a.Tel},
		{"niveauEtude", a.NiveauEtude},
		{"niveauExperience", a.NiveauExperience},
		{"offre_id", strconv.FormatInt(a.OffreID, 10)},
	}
}

// CandidateResult is what the primary API returned for a new application.
// CandidatID is zero when the response carried no identifier.
type CandidateResult struct {
	CandidatID int64
	Message    string
}

// StoreCandidate submits the application form and résumé as multipart.
func (c *Client) StoreCandidate(ctx context.Context, a Application, resume io.Reader, filename string) (CandidateResult, error) {
	const op = "store candidate"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range a.fields() {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return CandidateResult{}, fmt.Errorf("%s: %w", op, err)
		}
	}
	fw, err := mw.CreateFormFile("cv", filename)
	if err != nil {
		return CandidateResult{}, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := io.Copy(fw, resume); err != nil {
		return CandidateResult{}, fmt.Errorf("%s: copy resume: %w", op, err)
	}
	if err := mw.Close(); err != nil {
		return CandidateResult{}, fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/candidatStore", &buf)
	if err != nil {
		return CandidateResult{}, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	body, err := do(c.http, op, req)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Message == alreadyAppliedMsg {
			return CandidateResult{Message: se.Message}, ErrAlreadyApplied
		}
		return CandidateResult{}, err
	}

	var payload struct {
		Candidat *struct {
			ID flexID `json:"id"`
		} `json:"candidat"`
		ID      flexID `json:"id"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		// a 2xx with a non-JSON body still means the candidate was created
		c.log.Warn("candidate response is not JSON", zap.Error(err))
		return CandidateResult{}, nil
	}
	res := CandidateResult{Message: payload.Message}
	if payload.Candidat != nil {
		res.CandidatID = int64(payload.Candidat.ID)
	}
	if res.CandidatID == 0 {
		res.CandidatID = int64(payload.ID)
	}
	return res, nil
}

// CandidateByEmail looks a candidate id up by email for an offer.
func (c *Client) CandidateByEmail(ctx context.Context, email string, offreID int64) (int64, error) {
	body, err := c.postJSON(ctx, "candidate by email", "/api/candidat-by-email", map[string]any{
		"email":    email,
		"offre_id": offreID,
	})
	if err != nil {
		return 0, err
	}
	var payload struct {
		ID flexID `json:"id"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("candidate by email: decode: %w", err)
	}
	if payload.ID == 0 {
		return 0, ErrCandidateNotFound
	}
	return int64(payload.ID), nil
}
