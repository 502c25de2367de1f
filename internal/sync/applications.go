package syncx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ApplicationRecord is the local copy of a submitted application form.
type ApplicationRecord struct {
	ID               string    `json:"id"`
	CandidatID       int64     `json:"candidat_id"`
	OffreID          int64     `json:"offre_id"`
	Email            string    `json:"email"`
	Nom              string    `json:"nom"`
	Prenom           string    `json:"prenom"`
	Pays             string    `json:"pays"`
	Ville            string    `json:"ville"`
	CodePostal       string    `json:"code_postal"`
	Tel              string    `json:"tel"`
	NiveauEtude      string    `json:"niveau_etude"`
	NiveauExperience string    `json:"niveau_experience"`
	ResumeKey        string    `json:"resume_key"`
	AlreadyApplied   bool      `json:"already_applied"`
	CreatedAt        time.Time `json:"created_at"`
}

type ApplicationRepo struct{ db *sql.DB }

func NewApplicationRepo(db *sql.DB) *ApplicationRepo { return &ApplicationRepo{db: db} }

func (r *ApplicationRepo) Save(ctx context.Context, a ApplicationRecord) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO applications (id, candidat_id, offre_id, email, nom, prenom, pays, ville, code_postal,
                          tel, niveau_etude, niveau_experience, resume_key, already_applied, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		a.ID, a.CandidatID, a.OffreID, a.Email, a.Nom, a.Prenom, a.Pays, a.Ville, a.CodePostal,
		a.Tel, a.NiveauEtude, a.NiveauExperience, a.ResumeKey, boolInt(a.AlreadyApplied), a.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("save application: %w", err)
	}
	return nil
}

const applicationCols = `id, candidat_id, offre_id, email, nom, prenom, pays, ville, code_postal,
  tel, niveau_etude, niveau_experience, resume_key, already_applied, created_at`

// Latest returns the most recent application of a candidate for an offer.
func (r *ApplicationRepo) Latest(ctx context.Context, candidatID, offreID int64) (ApplicationRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+applicationCols+` FROM applications
WHERE candidat_id = $1 AND offre_id = $2 ORDER BY created_at DESC LIMIT 1`, candidatID, offreID)
	a, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ApplicationRecord{}, ErrNotFound
	}
	return a, err
}

func (r *ApplicationRepo) ByOffer(ctx context.Context, offreID int64) ([]ApplicationRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+applicationCols+` FROM applications
WHERE offre_id = $1 ORDER BY created_at DESC`, offreID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ApplicationRecord{}
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CandidateProfile renders the stored application as résumé text for
// question generation.
func (r *ApplicationRepo) CandidateProfile(ctx context.Context, candidatID, offreID int64) (string, error) {
	a, err := r.Latest(ctx, candidatID, offreID)
	if err != nil {
		return "", err
	}
	var parts []string
	if name := strings.TrimSpace(a.Prenom + " " + a.Nom); name != "" {
		parts = append(parts, "Candidat: "+name+".")
	}
	if a.NiveauEtude != "" {
		parts = append(parts, "Niveau d'étude: "+a.NiveauEtude+".")
	}
	if a.NiveauExperience != "" {
		parts = append(parts, "Expérience: "+a.NiveauExperience+".")
	}
	if loc := strings.Trim(strings.TrimSpace(a.Ville+", "+a.Pays), ", "); loc != "" {
		parts = append(parts, "Localisation: "+loc+".")
	}
	return strings.Join(parts, " "), nil
}

func scanApplication(s scanner) (ApplicationRecord, error) {
	var (
		a       ApplicationRecord
		already int
		created int64
	)
	if err := s.Scan(&a.ID, &a.CandidatID, &a.OffreID, &a.Email, &a.Nom, &a.Prenom, &a.Pays, &a.Ville,
		&a.CodePostal, &a.Tel, &a.NiveauEtude, &a.NiveauExperience, &a.ResumeKey, &already, &created); err != nil {
		return ApplicationRecord{}, err
	}
	a.AlreadyApplied = already != 0
	a.CreatedAt = time.Unix(created, 0)
	return a, nil
}
