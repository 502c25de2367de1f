package syncx

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mind-engage/hireflow/internal/session"
)

var ErrNotFound = errors.New("syncx: not found")

type ResultRepo struct{ db *sql.DB }

func NewResultRepo(db *sql.DB) *ResultRepo { return &ResultRepo{db: db} }

// SaveResult upserts by session id.
func (r *ResultRepo) SaveResult(ctx context.Context, res session.Result) error {
	viol, err := json.Marshal(res.Violations)
	if err != nil {
		return err
	}
	if res.Violations == nil {
		viol = []byte("{}")
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO test_results (session_id, candidat_id, offre_id, stage, score, answered, total,
                          submitted, attempts, violations_json, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (session_id) DO UPDATE SET
  stage = excluded.stage,
  score = excluded.score,
  answered = excluded.answered,
  total = excluded.total,
  submitted = excluded.submitted,
  attempts = excluded.attempts,
  violations_json = excluded.violations_json,
  updated_at = excluded.updated_at`,
		res.SessionID, res.CandidatID, res.OffreID, string(res.Stage), res.Score,
		res.Answered, res.Total, boolInt(res.Submitted), res.Attempts, string(viol), res.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("save result %s: %w", res.SessionID, err)
	}
	return nil
}

const resultCols = `session_id, candidat_id, offre_id, stage, score, answered, total,
  submitted, attempts, violations_json, updated_at`

func (r *ResultRepo) Get(ctx context.Context, sessionID string) (session.Result, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+resultCols+` FROM test_results WHERE session_id = $1`, sessionID)
	res, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Result{}, ErrNotFound
	}
	return res, err
}

// List returns results newest first, optionally for one offer (offreID > 0).
func (r *ResultRepo) List(ctx context.Context, offreID int64, limit int) ([]session.Result, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT ` + resultCols + ` FROM test_results`
	args := []any{}
	if offreID > 0 {
		q += ` WHERE offre_id = $1 ORDER BY updated_at DESC LIMIT $2`
		args = append(args, offreID, limit)
	} else {
		q += ` ORDER BY updated_at DESC LIMIT $1`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []session.Result{}
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(s scanner) (session.Result, error) {
	var (
		res       session.Result
		stage     string
		submitted int
		viol      string
		updated   int64
	)
	if err := s.Scan(&res.SessionID, &res.CandidatID, &res.OffreID, &stage, &res.Score,
		&res.Answered, &res.Total, &submitted, &res.Attempts, &viol, &updated); err != nil {
		return session.Result{}, err
	}
	res.Stage = session.Stage(stage)
	res.Submitted = submitted != 0
	res.UpdatedAt = time.Unix(updated, 0)
	if viol != "" && viol != "{}" {
		if err := json.Unmarshal([]byte(viol), &res.Violations); err != nil {
			return session.Result{}, fmt.Errorf("decode violations: %w", err)
		}
	}
	return res, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
