// Package backend talks to the two external collaborators: the primary REST
// API that owns candidates, offers and scores, and the fallback question
// generation service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"
)

const maxBody = 4 << 20

var (
	ErrEmptyQuestionSet  = errors.New("backend: empty question set")
	ErrAlreadyApplied    = errors.New("backend: candidate already applied to this offer")
	ErrCandidateNotFound = errors.New("backend: no candidate id in response")
)

// alreadyAppliedMsg is the primary API's duplicate-application message.
const alreadyAppliedMsg = "Vous avez déjà postulé à cette offre."

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Op      string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.Code, e.Message)
}

type Config struct {
	BaseURL string
	// Optional client-credentials auth for the primary API.
	TokenURL     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client is the primary API client.
type Client struct {
	base string
	http *http.Client
	log  *zap.Logger
}

func New(cfg Config) *Client {
	h := cfg.HTTPClient
	if h == nil {
		if cfg.TokenURL != "" {
			cc := clientcredentials.Config{
				ClientID:     cfg.ClientID,
				ClientSecret: cfg.ClientSecret,
				TokenURL:     cfg.TokenURL,
			}
			h = cc.Client(context.Background())
		} else {
			h = &http.Client{}
		}
		if cfg.Timeout > 0 {
			h.Timeout = cfg.Timeout
		}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		base: strings.TrimSuffix(cfg.BaseURL, "/"),
		http: h,
		log:  log.Named("backend"),
	}
}

// do sends req and returns the body of a 2xx response.
func do(h *http.Client, op string, req *http.Request) ([]byte, error) {
	res, err := h.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", op, err)
	}
	if res.StatusCode/100 != 2 {
		return body, &StatusError{Op: op, Code: res.StatusCode, Message: errorMessage(body)}
	}
	return body, nil
}

func (c *Client) postJSON(ctx context.Context, op, path string, in any) ([]byte, error) {
	buf, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("%s: encode: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return do(c.http, op, req)
}

func (c *Client) get(ctx context.Context, op, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	return do(c.http, op, req)
}

const maxErrorMessage = 200

// errorMessage pulls "error" or "message" out of a JSON body, falling back
// to the raw text.
func errorMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorMessage {
		// back up to a rune start so the cut never splits a character
		n := maxErrorMessage
		for n > 0 && !utf8.RuneStart(s[n]) {
			n--
		}
		s = s[:n]
	}
	return s
}

// flexID accepts ids encoded as numbers or numeric strings.
type flexID int64

func (f *flexID) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		n = json.Number(strings.TrimSpace(s))
	}
	if n == "" {
		*f = 0
		return nil
	}
	v, err := n.Int64()
	if err != nil {
		return fmt.Errorf("id %q: %w", n, err)
	}
	*f = flexID(v)
	return nil
}
