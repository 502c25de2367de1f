package backend

import (
	"context"

	"go.uber.org/zap"
)

// ScoreSubmission is the body of POST /api/store-score.
type ScoreSubmission struct {
	CandidatID int64          `json:"candidat_id"`
	OffreID    int64          `json:"offre_id"`
	Score      float64        `json:"score"`
	Violations map[string]int `json:"violations,omitempty"`
}

// StoreScore posts a final score. The response body may be JSON or plain
// text; only the status code decides success.
func (c *Client) StoreScore(ctx context.Context, s ScoreSubmission) error {
	body, err := c.postJSON(ctx, "store score", "/api/store-score", s)
	if err != nil {
		return err
	}
	c.log.Debug("score stored",
		zap.Int64("candidat_id", s.CandidatID),
		zap.Int64("offre_id", s.OffreID),
		zap.Float64("score", s.Score),
		zap.ByteString("response", body))
	return nil
}
