package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mind-engage/hireflow/internal/rbac"
	"golang.org/x/crypto/bcrypt"
)

const (
	issuer         = "hireflow"
	staffTTL       = 8 * time.Hour
	candidateTTL   = 2 * time.Hour
	queryTokenName = "access_token"
)

type AuthService struct {
	hmac []byte
	now  func() time.Time
}

func NewAuthService(secret string) *AuthService {
	return &AuthService{hmac: []byte(secret), now: time.Now}
}

type Claims struct {
	Sub  string `json:"sub"`
	Role string `json:"role"` // candidate|recruiter|admin
	// Set on candidate tokens only; a candidate may only run the test of
	// the offer it applied to.
	CandidatID int64 `json:"cid,omitempty"`
	OffreID    int64 `json:"oid,omitempty"`
	jwt.RegisteredClaims
}

func (a *AuthService) issue(c *Claims, ttl time.Duration) (string, error) {
	now := a.now()
	c.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return t.SignedString(a.hmac)
}

func (a *AuthService) IssueJWT(sub, role string) (string, error) {
	return a.issue(&Claims{Sub: sub, Role: role}, staffTTL)
}

// IssueCandidateToken scopes a token to one candidate/offer pair.
func (a *AuthService) IssueCandidateToken(candidatID, offreID int64) (string, error) {
	return a.issue(&Claims{
		Sub:        "candidat:" + strconv.FormatInt(candidatID, 10),
		Role:       rbac.RoleCandidate,
		CandidatID: candidatID,
		OffreID:    offreID,
	}, candidateTTL)
}

func (a *AuthService) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.hmac, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	c, _ := token.Claims.(*Claims)
	return c, nil
}

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

// Account is a staff login. Accounts with an empty user or hash are skipped.
type Account struct {
	User     string
	PassHash string // bcrypt
	Role     string
}

// POST /auth/login  { "username": "...", "password": "..." }
//
// The token carries the role of the matching account.
func LoginHandler(a *AuthService, accounts ...Account) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		var acct *Account
		for i := range accounts {
			c := &accounts[i]
			if c.User != "" && c.PassHash != "" && c.User == req.Username {
				acct = c
				break
			}
		}
		if acct == nil || bcrypt.CompareHashAndPassword([]byte(acct.PassHash), []byte(req.Password)) != nil {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		tok, err := a.IssueJWT(req.Username, acct.Role)
		if err != nil {
			http.Error(w, "issue token", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": tok})
	}
}

// bearer reads the token from the Authorization header, or from the
// access_token query parameter for websocket upgrades.
func bearer(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get(queryTokenName)
}

// JWTMiddleware verifies the token and attaches subject, role and claims to
// the request context.
func JWTMiddleware(a *AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := bearer(r)
			if tok == "" {
				http.Error(w, "missing bearer", http.StatusUnauthorized)
				return
			}
			c, err := a.Parse(tok)
			if err != nil {
				http.Error(w, "bad token", http.StatusUnauthorized)
				return
			}
			ctx := WithSubject(r.Context(), c.Sub)
			ctx = rbac.WithRole(ctx, c.Role)
			ctx = WithClaims(ctx, c)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
