package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mind-engage/hireflow/internal/exam"
	"go.uber.org/zap"
)

// Generator builds a question set from raw résumé and job text.
type Generator interface {
	Generate(ctx context.Context, cv, offre string) ([]exam.Question, error)
}

// HTTPGenerator calls the fallback generation service.
type HTTPGenerator struct {
	base string
	http *http.Client
}

func NewHTTPGenerator(baseURL string, timeout time.Duration) *HTTPGenerator {
	return &HTTPGenerator{
		base: strings.TrimSuffix(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

func (g *HTTPGenerator) Generate(ctx context.Context, cv, offre string) ([]exam.Question, error) {
	buf, err := json.Marshal(map[string]string{"cv": cv, "offre": offre})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.base+"/generate-test", bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("fallback generate: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	body, err := do(g.http, "fallback generate", req)
	if err != nil {
		return nil, err
	}
	qs, err := DecodeQuestions(body)
	if err != nil {
		return nil, fmt.Errorf("fallback generate: %w", err)
	}
	return qs, nil
}

// OfferLookup fetches offer details.
type OfferLookup interface {
	OfferDetail(ctx context.Context, id int64) (Offer, error)
}

// ProfileLookup returns a plain-text résumé summary for a candidate.
type ProfileLookup interface {
	CandidateProfile(ctx context.Context, candidatID, offreID int64) (string, error)
}

// FallbackSource adapts a Generator to exam.Source by assembling the
// résumé and offer text it needs from the primary API and local records.
type FallbackSource struct {
	Gen      Generator
	Offers   OfferLookup
	Profiles ProfileLookup
	Log      *zap.Logger
}

func (s FallbackSource) Questions(ctx context.Context, candidatID, offreID int64) ([]exam.Question, error) {
	if s.Gen == nil {
		return nil, errors.New("fallback generator not configured")
	}
	log := s.Log
	if log == nil {
		log = zap.NewNop()
	}

	var offre, cv string
	if s.Offers != nil {
		o, err := s.Offers.OfferDetail(ctx, offreID)
		if err != nil {
			log.Warn("offer lookup for fallback generation failed", zap.Int64("offre_id", offreID), zap.Error(err))
		} else {
			offre = o.Summary()
		}
	}
	if s.Profiles != nil {
		p, err := s.Profiles.CandidateProfile(ctx, candidatID, offreID)
		if err != nil {
			log.Warn("candidate profile lookup failed", zap.Int64("candidat_id", candidatID), zap.Error(err))
		} else {
			cv = p
		}
	}
	if offre == "" && cv == "" {
		return nil, errors.New("fallback generate: no résumé or offer text available")
	}
	return s.Gen.Generate(ctx, cv, offre)
}
