package exam

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Source yields the question set for a candidate/offer pair.
type Source interface {
	Questions(ctx context.Context, candidatID, offreID int64) ([]Question, error)
}

type SourceFunc func(ctx context.Context, candidatID, offreID int64) ([]Question, error)

func (f SourceFunc) Questions(ctx context.Context, candidatID, offreID int64) ([]Question, error) {
	return f(ctx, candidatID, offreID)
}

// ChainSource asks Primary first and Fallback when the primary fails or
// returns nothing usable. It never invents questions of its own.
type ChainSource struct {
	Primary  Source
	Fallback Source
	Log      *zap.Logger
}

func (c ChainSource) Questions(ctx context.Context, candidatID, offreID int64) ([]Question, error) {
	log := c.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.Int64("candidat_id", candidatID), zap.Int64("offre_id", offreID))

	var errs []error
	if c.Primary != nil {
		qs, err := c.Primary.Questions(ctx, candidatID, offreID)
		qs = usable(qs)
		if err == nil && len(qs) > 0 {
			log.Debug("questions from primary", zap.Int("count", len(qs)))
			return qs, nil
		}
		if err == nil {
			err = ErrNoQuestions
		}
		log.Warn("primary question source failed, trying fallback", zap.Error(err))
		errs = append(errs, fmt.Errorf("primary: %w", err))
	}
	if c.Fallback != nil {
		qs, err := c.Fallback.Questions(ctx, candidatID, offreID)
		qs = usable(qs)
		if err == nil && len(qs) > 0 {
			log.Info("questions from fallback", zap.Int("count", len(qs)))
			return qs, nil
		}
		if err == nil {
			err = ErrNoQuestions
		}
		log.Error("fallback question source failed", zap.Error(err))
		errs = append(errs, fmt.Errorf("fallback: %w", err))
	}
	if len(errs) == 0 {
		return nil, ErrNoQuestions
	}
	return nil, errors.Join(errs...)
}

func usable(qs []Question) []Question {
	out := qs[:0:0]
	for _, q := range qs {
		if q.Valid() {
			out = append(out, q)
		}
	}
	return out
}
