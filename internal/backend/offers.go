package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Lines decodes either a JSON list of strings or one newline-separated string.
type Lines []string

func (l *Lines) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*l = nonBlank(list)
		return nil
	}
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == nil {
		*l = nil
		return nil
	}
	*l = nonBlank(strings.Split(*s, "\n"))
	return nil
}

func nonBlank(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Offer is a job posting as served by the primary API.
type Offer struct {
	ID               int64  `json:"id"`
	Poste            string `json:"poste"`
	Departement      string `json:"departement"`
	Societe          string `json:"societe"`
	Ville            string `json:"ville"`
	HeureTravail     string `json:"heureTravail"`
	NiveauEtude      string `json:"niveauEtude"`
	NiveauExperience string `json:"niveauExperience"`
	TypePoste        string `json:"typePoste"`
	TypeTravail      string `json:"typeTravail"`
	Description      string `json:"description"`
	Responsabilite   Lines  `json:"responsabilite"`
	Experience       Lines  `json:"experience"`
	DatePublication  string `json:"datePublication"`
	DateExpiration   string `json:"dateExpiration"`
	Statut           string `json:"statut"` // urgent|normal
	Domaine          string `json:"domaine"`
}

func (o *Offer) UnmarshalJSON(b []byte) error {
	type alias Offer
	var aux struct {
		ID flexID `json:"id"`
		*alias
	}
	aux.alias = (*alias)(o)
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	o.ID = int64(aux.ID)
	return nil
}

// Summary renders the offer as plain text for question generation.
func (o Offer) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Poste de %s", o.Poste)
	if o.Societe != "" {
		fmt.Fprintf(&b, " chez %s", o.Societe)
	}
	b.WriteString(".")
	if o.Description != "" {
		b.WriteString(" " + strings.TrimSpace(o.Description))
	}
	if len(o.Responsabilite) > 0 {
		b.WriteString(" Responsabilités: " + strings.Join(o.Responsabilite, "; ") + ".")
	}
	if len(o.Experience) > 0 {
		b.WriteString(" Compétences: " + strings.Join(o.Experience, "; ") + ".")
	}
	return b.String()
}

func (c *Client) OfferDetail(ctx context.Context, id int64) (Offer, error) {
	body, err := c.get(ctx, "offer detail", "/api/offreDetail/"+strconv.FormatInt(id, 10))
	if err != nil {
		return Offer{}, err
	}
	var o Offer
	if err := json.Unmarshal(body, &o); err != nil {
		return Offer{}, fmt.Errorf("offer detail: decode: %w", err)
	}
	return o, nil
}

func (c *Client) OffersByDomain(ctx context.Context, domaine string) ([]Offer, error) {
	body, err := c.get(ctx, "offers by domain", "/api/offres_domaine/"+url.PathEscape(domaine))
	if err != nil {
		return nil, err
	}
	var out []Offer
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("offers by domain: decode: %w", err)
	}
	return out, nil
}

// RelatedOffers drops the current offer and keeps at most limit others.
func RelatedOffers(all []Offer, currentID int64, limit int) []Offer {
	out := make([]Offer, 0, limit)
	for _, o := range all {
		if len(out) == limit {
			break
		}
		if o.ID != currentID {
			out = append(out, o)
		}
	}
	return out
}
