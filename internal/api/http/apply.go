package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/mind-engage/hireflow/internal/application"
	"github.com/mind-engage/hireflow/internal/backend"
)

const maxApplyBody = 10 << 20

type Applier interface {
	Apply(ctx context.Context, in application.Input) (application.Outcome, error)
}

// ApplyHandler serves POST /api/apply (multipart: form fields + "cv" file).
func ApplyHandler(svc Applier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxApplyBody)
		if err := r.ParseMultipartForm(maxApplyBody); err != nil {
			http.Error(w, "multipart form required", http.StatusBadRequest)
			return
		}
		offreID, _ := strconv.ParseInt(strings.TrimSpace(r.FormValue("offre_id")), 10, 64)
		in := application.Input{
			Application: backend.Application{
				Nom:              strings.TrimSpace(r.FormValue("nom")),
				Prenom:           strings.TrimSpace(r.FormValue("prenom")),
				Email:            strings.TrimSpace(r.FormValue("email")),
				Pays:             strings.TrimSpace(r.FormValue("pays")),
				Ville:            strings.TrimSpace(r.FormValue("ville")),
				CodePostal:       strings.TrimSpace(r.FormValue("codePostal")),
				Tel:              strings.TrimSpace(r.FormValue("tel")),
				NiveauEtude:      strings.TrimSpace(r.FormValue("niveauEtude")),
				NiveauExperience: strings.TrimSpace(r.FormValue("niveauExperience")),
				OffreID:          offreID,
			},
		}
		if f, hdr, err := r.FormFile("cv"); err == nil {
			defer f.Close()
			in.Resume, in.Filename = f, hdr.Filename
		}

		out, err := svc.Apply(r.Context(), in)
		if err != nil {
			if errors.Is(err, application.ErrNoCandidateID) {
				writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
					"error":   "Impossible d'afficher le test de personnalité. Veuillez réessayer plus tard.",
					"outcome": out,
				})
				return
			}
			writeError(w, err)
			return
		}
		status := http.StatusCreated
		if out.AlreadyApplied {
			status = http.StatusOK
		}
		writeJSON(w, status, out)
	}
}
