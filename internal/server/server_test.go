package server

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// newTestServer builds a server over a temp data dir. The rate limit
// is set high so unrelated tests never trip it.
func newTestServer(t *testing.T, mutate ...func(*Config)) *Server {
	t.Helper()

	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.RateLimit = 1000
	cfg.RateWindow = time.Hour
	cfg.Policy = cfg.buildPolicy()

	for _, m := range mutate {
		m(&cfg)
	}

	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv
}

// multipartBody builds a multipart form with the given file parts,
// each a {field, filename, content} triple.
func multipartBody(t *testing.T, parts ...[3]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		fw, err := mw.CreateFormFile(p[0], p[1])
		if err != nil {
			t.Fatal(err)
		}
		if _, err := io.WriteString(fw, p[2]); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

// newFormWithFieldAndFile writes a plain form field followed by a file
// part into buf and returns the content type.
func newFormWithFieldAndFile(t *testing.T, buf *bytes.Buffer, field, value, fileField, filename, content string) string {
	t.Helper()

	mw := multipart.NewWriter(buf)
	if err := mw.WriteField(field, value); err != nil {
		t.Fatal(err)
	}
	fw, err := mw.CreateFormFile(fileField, filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(fw, content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return mw.FormDataContentType()
}

func doUpload(t *testing.T, srv *Server, body *bytes.Buffer, contentType string, decorate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	for _, d := range decorate {
		d(req)
	}
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	return rr
}
