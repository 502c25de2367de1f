package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/mind-engage/hireflow/internal/rbac"
	"github.com/mind-engage/hireflow/internal/session"
	"github.com/mind-engage/hireflow/internal/storage"
	syncx "github.com/mind-engage/hireflow/internal/sync"
	"go.uber.org/zap"
)

type ResultLister interface {
	List(ctx context.Context, offreID int64, limit int) ([]session.Result, error)
	Get(ctx context.Context, sessionID string) (session.Result, error)
}

type EventLister interface {
	BySession(ctx context.Context, sessionID string) ([]syncx.Event, error)
}

type ApplicationLister interface {
	ByOffer(ctx context.Context, offreID int64) ([]syncx.ApplicationRecord, error)
}

// AdminAPI is the recruiter back office: stored results with their audit
// trail, live sessions and received applications.
type AdminAPI struct {
	Results      ResultLister
	Events       EventLister
	Applications ApplicationLister
	Sessions     *session.Manager
	Blobs        storage.BlobStore
	Log          *zap.Logger
}

// Mount registers /api/admin routes. JWTMiddleware must run upstream.
func (a *AdminAPI) Mount(r chi.Router) {
	r.With(rbac.Require(rbac.PermResultsView)).Get("/results", a.listResults)
	r.With(rbac.Require(rbac.PermResultsView)).Get("/results/{sessionID}", a.getResult)
	r.With(rbac.Require(rbac.PermSessionViewAll)).Get("/sessions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, a.Sessions.List())
	})
	r.With(rbac.Require(rbac.PermSessionViewAll)).Get("/sessions/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
		s, err := a.Sessions.Get(chi.URLParam(r, "sessionID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.Snapshot())
	})
	r.With(rbac.Require(rbac.PermApplicationView)).Get("/applications", a.listApplications)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}

// GET /results?offre_id=...&limit=100
func (a *AdminAPI) listResults(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offreID, _ := strconv.ParseInt(strings.TrimSpace(q.Get("offre_id")), 10, 64)
	list, err := a.Results.List(r.Context(), offreID, parseIntDefault(q.Get("limit"), 100))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *AdminAPI) getResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	res, err := a.Results.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	events := []syncx.Event{}
	if a.Events != nil {
		evs, err := a.Events.BySession(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		if evs != nil {
			events = evs
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": res, "events": events})
}

type applicationView struct {
	syncx.ApplicationRecord
	ResumeURL string `json:"resume_url,omitempty"`
}

// GET /applications?offre_id=...
func (a *AdminAPI) listApplications(w http.ResponseWriter, r *http.Request) {
	offreID, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get("offre_id")), 10, 64)
	if err != nil || offreID <= 0 {
		http.Error(w, "offre_id required", http.StatusBadRequest)
		return
	}
	recs, err := a.Applications.ByOffer(r.Context(), offreID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]applicationView, 0, len(recs))
	for _, rec := range recs {
		v := applicationView{ApplicationRecord: rec}
		if a.Blobs != nil && rec.ResumeKey != "" {
			if u, err := a.Blobs.SignedURL(rec.ResumeKey); err == nil {
				v.ResumeURL = u
			} else if a.Log != nil {
				a.Log.Warn("resume url", zap.String("key", rec.ResumeKey), zap.Error(err))
			}
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out)
}
