package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	authmw "github.com/mind-engage/hireflow/internal/auth/middleware"
	"github.com/mind-engage/hireflow/internal/proctor"
	"github.com/mind-engage/hireflow/internal/rbac"
	"github.com/mind-engage/hireflow/internal/session"
	"go.uber.org/zap"
)

// SessionAPI serves the personality-test endpoints. Every route expects
// JWTMiddleware upstream.
type SessionAPI struct {
	Manager *session.Manager
	Log     *zap.Logger
	// Origins accepted for websocket upgrades; empty allows any.
	Origins []string
}

// owns reports whether the caller's candidate token is scoped to this
// candidate/offer pair.
func owns(r *http.Request, candidatID, offreID int64) bool {
	c := authmw.ClaimsFromContext(r.Context())
	return c != nil && c.Role == rbac.RoleCandidate &&
		c.CandidatID == candidatID && c.OffreID == offreID
}

// canPlay: the owning candidate, or a role allowed to play any session.
func canPlay(r *http.Request, s *session.Session) bool {
	return owns(r, s.CandidatID, s.OffreID) || rbac.Allowed(rbac.RoleFromContext(r.Context()), rbac.PermSessionPlay)
}

type ctxKey struct{}

func sessionFromContext(r *http.Request) *session.Session {
	s, _ := r.Context().Value(ctxKey{}).(*session.Session)
	return s
}

// ownsSession is the owner check for rbac.RequireOwnerOr on session routes.
func ownsSession(r *http.Request) bool {
	s := sessionFromContext(r)
	return s != nil && owns(r, s.CandidatID, s.OffreID)
}

// ownsPath is the owner check for routes carrying the pair in the path.
func ownsPath(r *http.Request) bool {
	cid, ok1 := int64Param(r, "candidatID")
	oid, ok2 := int64Param(r, "offreID")
	return ok1 && ok2 && owns(r, cid, oid)
}

// loadSession resolves {sessionID} into the request context.
func (a *SessionAPI) loadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := a.Manager.Get(chi.URLParam(r, "sessionID"))
		if err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, s)))
	})
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, s *session.Session)

func withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h(w, r, sessionFromContext(r))
	}
}

// BootstrapGuard gates the bootstrap route: the candidate the path names, or
// a role that may open a session for any pair.
func BootstrapGuard() func(http.Handler) http.Handler {
	return rbac.RequireOwnerOr(rbac.PermSessionCreate, ownsPath)
}

// Mount registers /api/sessions routes on r.
func (a *SessionAPI) Mount(r chi.Router) {
	r.With(rbac.RequireAny(rbac.PermSessionStart, rbac.PermSessionCreate)).Post("/", a.create)
	r.Route("/{sessionID}", func(r chi.Router) {
		r.Use(a.loadSession)
		view := r.With(rbac.RequireOwnerOr(rbac.PermSessionViewAll, ownsSession))
		play := r.With(rbac.RequireOwnerOr(rbac.PermSessionPlay, ownsSession))

		view.Get("/", withSession(func(w http.ResponseWriter, r *http.Request, s *session.Session) {
			writeJSON(w, http.StatusOK, s.Snapshot())
		}))
		view.Get("/ws", withSession(a.serveWS))

		play.Delete("/", withSession(func(w http.ResponseWriter, r *http.Request, s *session.Session) {
			if err := a.Manager.Close(s.ID); err != nil {
				writeError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		}))
		play.Post("/select", withSession(a.selectOption))
		play.Post("/next", withSession(func(w http.ResponseWriter, r *http.Request, s *session.Session) {
			snap, err := s.Next(r.Context())
			respondSnapshot(w, snap, err)
		}))
		play.Post("/prev", withSession(func(w http.ResponseWriter, r *http.Request, s *session.Session) {
			snap, err := s.Prev()
			respondSnapshot(w, snap, err)
		}))
		play.Post("/goto", withSession(a.gotoQuestion))
		play.Post("/retry", withSession(func(w http.ResponseWriter, r *http.Request, s *session.Session) {
			if err := s.Retry(r.Context()); err != nil {
				writeJSON(w, statusFor(err), map[string]any{"error": err.Error(), "session": s.Snapshot()})
				return
			}
			writeJSON(w, http.StatusOK, s.Snapshot())
		}))
		play.Post("/events", withSession(a.reportEvent))
		play.Post("/interact", withSession(func(w http.ResponseWriter, r *http.Request, s *session.Session) {
			req, err := s.Interact()
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]bool{"request_fullscreen": req})
		}))
		play.Post("/fullscreen", withSession(a.fullscreen))
		play.Post("/analysis", withSession(func(w http.ResponseWriter, r *http.Request, s *session.Session) {
			snap, err := s.AnalysisDone()
			respondSnapshot(w, snap, err)
		}))
	})
}

// BootstrapHandler serves GET /test-personnalite/{candidatID}/{offreID}:
// the test page's entry point, which opens a session for the pair.
func (a *SessionAPI) BootstrapHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cid, ok1 := int64Param(r, "candidatID")
		oid, ok2 := int64Param(r, "offreID")
		if !ok1 || !ok2 {
			http.Error(w, "bad candidate or offer id", http.StatusBadRequest)
			return
		}
		a.open(w, r, cid, oid)
	}
}

func (a *SessionAPI) create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CandidatID int64 `json:"candidat_id"`
		OffreID    int64 `json:"offre_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.CandidatID <= 0 || req.OffreID <= 0 {
		http.Error(w, "candidat_id and offre_id required", http.StatusBadRequest)
		return
	}
	a.open(w, r, req.CandidatID, req.OffreID)
}

func (a *SessionAPI) open(w http.ResponseWriter, r *http.Request, cid, oid int64) {
	if !owns(r, cid, oid) && !rbac.Allowed(rbac.RoleFromContext(r.Context()), rbac.PermSessionCreate) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	s, err := a.Manager.Create(r.Context(), cid, oid)
	if s == nil {
		writeError(w, err)
		return
	}
	// a failed load still opens the session; the page offers a retry
	writeJSON(w, http.StatusCreated, s.Snapshot())
}

func respondSnapshot(w http.ResponseWriter, snap session.Snapshot, err error) {
	if err != nil {
		writeJSON(w, statusFor(err), map[string]any{"error": err.Error(), "session": snap})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *SessionAPI) selectOption(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var req struct {
		Option *int `json:"option"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Option == nil {
		http.Error(w, "option required", http.StatusBadRequest)
		return
	}
	snap, err := s.Select(*req.Option)
	respondSnapshot(w, snap, err)
}

func (a *SessionAPI) gotoQuestion(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var req struct {
		Index *int `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Index == nil {
		http.Error(w, "index required", http.StatusBadRequest)
		return
	}
	snap, err := s.Goto(*req.Index)
	respondSnapshot(w, snap, err)
}

type eventResult struct {
	Recorded bool             `json:"recorded"`
	Category proctor.Category `json:"category,omitempty"`
	// Prevent tells the page to cancel the browser's default action.
	Prevent bool             `json:"prevent"`
	Session  session.Snapshot `json:"session"`
}

func handleEvent(s *session.Session, ev proctor.Event) (eventResult, error) {
	c, ok, err := s.ReportEvent(ev)
	if err != nil {
		return eventResult{}, err
	}
	res := eventResult{Recorded: ok, Category: c, Session: s.Snapshot()}
	if ok {
		res.Prevent = c.Preventable()
	}
	return res, nil
}

func (a *SessionAPI) reportEvent(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var ev proctor.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil || ev.Type == "" {
		http.Error(w, "event type required", http.StatusBadRequest)
		return
	}
	res, err := handleEvent(s, ev)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *SessionAPI) fullscreen(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var req struct {
		Active *bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Active == nil {
		http.Error(w, "active required", http.StatusBadRequest)
		return
	}
	if err := s.SetFullscreen(*req.Active); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}
