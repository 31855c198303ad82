package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestGate_OpenMode(t *testing.T) {
	g := NewGate("", "", 0)

	if g.Guarded() {
		t.Error("gate with no secret reports guarded")
	}

	req := httptest.NewRequest(http.MethodPost, "/upload", nil)
	if !g.Authorize(req) {
		t.Error("open gate denied a request")
	}

	// Authentication is meaningless without a secret.
	if _, ok := g.Authenticate("anything"); ok {
		t.Error("open gate issued a token")
	}
}

func TestGate_Authenticate(t *testing.T) {
	g := NewGate("hunter2", "", time.Hour)

	if _, ok := g.Authenticate("wrong"); ok {
		t.Error("wrong password accepted")
	}

	tok, ok := g.Authenticate("hunter2")
	if !ok || tok == "" {
		t.Fatal("correct password rejected")
	}

	// Multiple tokens coexist.
	tok2, ok := g.Authenticate("hunter2")
	if !ok || tok2 == tok {
		t.Error("second authentication did not issue a distinct token")
	}

	req := httptest.NewRequest(http.MethodPost, "/upload", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	if !g.Authorize(req) {
		t.Error("first token rejected")
	}
	req.Header.Set("Authorization", "Bearer "+tok2)
	if !g.Authorize(req) {
		t.Error("second token rejected")
	}
}

func TestGate_BcryptMode(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	g := NewGate("", string(hash), time.Hour)

	if !g.Guarded() {
		t.Error("hash-configured gate reports open")
	}
	if _, ok := g.Authenticate("wrong"); ok {
		t.Error("wrong password accepted in bcrypt mode")
	}
	if _, ok := g.Authenticate("s3cret"); !ok {
		t.Error("correct password rejected in bcrypt mode")
	}
}

func TestGate_TokenPrecedence(t *testing.T) {
	g := NewGate("pw", "", time.Hour)
	valid, _ := g.Authenticate("pw")

	// Header wins over query: a bogus header must not fall through to
	// a valid query token.
	req := httptest.NewRequest(http.MethodPost, "/upload?token="+valid, nil)
	req.Header.Set("Authorization", "Bearer bogus")
	if g.Authorize(req) {
		t.Error("bogus header token authorized because of query fallback")
	}

	// Query wins over cookie.
	req = httptest.NewRequest(http.MethodPost, "/upload?token=bogus", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: valid})
	if g.Authorize(req) {
		t.Error("bogus query token authorized because of cookie fallback")
	}

	// Each channel works on its own.
	for _, build := range []func() *http.Request{
		func() *http.Request {
			r := httptest.NewRequest(http.MethodPost, "/upload", nil)
			r.Header.Set("Authorization", "Bearer "+valid)
			return r
		},
		func() *http.Request {
			return httptest.NewRequest(http.MethodPost, "/upload?token="+valid, nil)
		},
		func() *http.Request {
			r := httptest.NewRequest(http.MethodPost, "/upload", nil)
			r.AddCookie(&http.Cookie{Name: sessionCookieName, Value: valid})
			return r
		},
	} {
		if !g.Authorize(build()) {
			t.Error("valid token rejected on one of the channels")
		}
	}

	// No credential at all.
	if g.Authorize(httptest.NewRequest(http.MethodPost, "/upload", nil)) {
		t.Error("request without credential authorized")
	}
}

func TestGate_TokenExpiry(t *testing.T) {
	g := NewGate("pw", "", 30*time.Millisecond)
	tok, _ := g.Authenticate("pw")

	req := httptest.NewRequest(http.MethodPost, "/upload", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	if !g.Authorize(req) {
		t.Fatal("fresh token rejected")
	}

	time.Sleep(60 * time.Millisecond)
	if g.Authorize(req) {
		t.Error("expired token still authorized")
	}
}

func TestAuthHandler(t *testing.T) {
	g := NewGate("pw", "", time.Hour)
	h := g.authHandler()

	// Success returns a token and binds the session cookie.
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/auth", strings.NewReader(`{"password":"pw"}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var body struct {
		Success bool   `json:"success"`
		Token   string `json:"token"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if !body.Success || body.Token == "" {
		t.Errorf("body = %s", rr.Body.String())
	}
	cookieSet := false
	for _, c := range rr.Result().Cookies() {
		if c.Name == sessionCookieName && c.Value == body.Token {
			cookieSet = true
		}
	}
	if !cookieSet {
		t.Error("session cookie not bound to the issued token")
	}

	// Failure: one generic message, no hint at the cause.
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/auth", strings.NewReader(`{"password":"nope"}`)))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "unauthorized") {
		t.Errorf("unexpected failure body: %s", rr.Body.String())
	}

	// Malformed body.
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/auth", strings.NewReader(`{`)))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}
