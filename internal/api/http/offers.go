package http

import (
	"context"
	"net/http"

	"github.com/mind-engage/hireflow/internal/backend"
	"go.uber.org/zap"
)

const relatedLimit = 3

type OfferAPI interface {
	OfferDetail(ctx context.Context, id int64) (backend.Offer, error)
	OffersByDomain(ctx context.Context, domaine string) ([]backend.Offer, error)
}

// OfferDetailHandler serves GET /api/offers/{id}: the offer and up to three
// related offers of the same domain. A failed related lookup leaves the list
// empty.
func OfferDetailHandler(api OfferAPI, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := int64Param(r, "id")
		if !ok {
			http.Error(w, "bad offer id", http.StatusBadRequest)
			return
		}
		o, err := api.OfferDetail(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		related := []backend.Offer{}
		if o.Domaine != "" {
			all, err := api.OffersByDomain(r.Context(), o.Domaine)
			if err != nil {
				log.Warn("related offers", zap.Int64("offre_id", id), zap.Error(err))
			} else {
				related = backend.RelatedOffers(all, id, relatedLimit)
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"offre": o, "related": related})
	}
}
