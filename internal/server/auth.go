// auth.go - Access gate: shared-secret exchange for opaque bearer tokens.
//
// The gate runs in one of two modes. Open: no secret is configured and
// every request proceeds. Guarded: POST /auth exchanges the shared
// secret for an opaque token; guarded endpoints then require the token
// as a bearer credential. Tokens live in an in-process TTL'd set, so a
// restart invalidates all of them. There is no rotation or revocation
// endpoint; this is a minimum viable policy for a LAN tool, not a
// security boundary.
package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/crypto/bcrypt"
)

const sessionCookieName = "ard_session"

// Gate authenticates clients and authorizes guarded requests.
// Multiple valid tokens coexist; the set is safe for concurrent use.
type Gate struct {
	password     string // plaintext shared secret (Guarded mode)
	passwordHash string // bcrypt hash; takes precedence over password
	tokenTTL     time.Duration

	tokens *ttlcache.Cache[string, time.Time]
}

// NewGate builds a gate. Empty password and passwordHash select Open
// mode.
func NewGate(password, passwordHash string, tokenTTL time.Duration) *Gate {
	if tokenTTL <= 0 {
		tokenTTL = 12 * time.Hour
	}

	tokens := ttlcache.New[string, time.Time](
		ttlcache.WithTTL[string, time.Time](tokenTTL),
		ttlcache.WithDisableTouchOnHit[string, time.Time](),
	)
	go tokens.Start()

	return &Gate{
		password:     password,
		passwordHash: passwordHash,
		tokenTTL:     tokenTTL,
		tokens:       tokens,
	}
}

// Guarded reports whether a shared secret is configured.
func (g *Gate) Guarded() bool {
	return g.password != "" || g.passwordHash != ""
}

// Authenticate compares the supplied secret against the configured one
// and, on success, issues a fresh token into the valid set. The
// comparison is constant time in both modes.
func (g *Gate) Authenticate(supplied string) (string, bool) {
	if !g.Guarded() {
		return "", false
	}

	var ok bool
	if g.passwordHash != "" {
		ok = bcrypt.CompareHashAndPassword([]byte(g.passwordHash), []byte(supplied)) == nil
	} else {
		suppliedSum := sha256.Sum256([]byte(supplied))
		wantSum := sha256.Sum256([]byte(g.password))
		ok = hmac.Equal(suppliedSum[:], wantSum[:])
	}
	if !ok {
		return "", false
	}

	tok := uuid.New().String()
	g.tokens.Set(tok, time.Now().UTC(), g.tokenTTL)
	return tok, true
}

// Authorize checks the bearer credential on r. Precedence:
// Authorization header, then the token query parameter, then the
// session cookie. Open mode always allows.
func (g *Gate) Authorize(r *http.Request) bool {
	if !g.Guarded() {
		return true
	}
	tok := bearerToken(r)
	if tok == "" {
		return false
	}
	return g.tokens.Get(tok) != nil
}

// bearerToken extracts the presented credential from the request.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if tok, found := strings.CutPrefix(h, "Bearer "); found {
			return strings.TrimSpace(tok)
		}
	}
	if tok := r.URL.Query().Get("token"); tok != "" {
		return tok
	}
	if c, err := r.Cookie(sessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

// requireAuth rejects unauthorized requests with the generic auth
// failure before the wrapped handler runs.
func (g *Gate) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Authorize(r) {
			authFailuresTotal.Inc()
			writeError(w, r, errUnauthenticated())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authHandler handles POST /auth: body {password}, success returns
// {success:true, token} and binds the token to a session cookie.
// Failures share one generic message regardless of cause.
func (g *Gate) authHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, r, errBadRequest("invalid request body"))
			return
		}

		tok, ok := g.Authenticate(body.Password)
		if !ok {
			authFailuresTotal.Inc()
			writeError(w, r, errUnauthenticated())
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookieName,
			Value:    tok,
			Path:     "/",
			Expires:  time.Now().Add(g.tokenTTL),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})

		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"token":   tok,
		})
	}
}
