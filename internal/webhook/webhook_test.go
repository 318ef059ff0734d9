package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestServeHTTPRejectsIncorrectSignature(t *testing.T) {
	var invoked bool
	r := New("/hooks/cortexos", "topsecret", func(id string, body []byte) error {
		invoked = true
		return nil
	})

	body := []byte(`{"x":1}`)
	req := httptest.NewRequest(http.MethodPost, "/hooks/cortexos", strings.NewReader(string(body)))
	req.Header.Set(signatureHeader, "sha256=deadbeef")
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, invoked, "handler must not run on a bad signature")
}

func TestServeHTTPAcceptsCorrectSignatureExactlyOnce(t *testing.T) {
	var calls int
	var gotBody []byte
	r := New("/hooks/cortexos", "topsecret", func(id string, body []byte) error {
		calls++
		gotBody = body
		require.NotEmpty(t, id)
		return nil
	})

	body := []byte(`{"x":1}`)
	req := httptest.NewRequest(http.MethodPost, "/hooks/cortexos", strings.NewReader(string(body)))
	req.Header.Set(signatureHeader, sign("topsecret", body))
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, calls, "handler must be invoked exactly once")
	assert.Equal(t, body, gotBody)
	assert.Contains(t, rec.Body.String(), `"accepted":true`)
}

func TestServeHTTPMissingSignatureRejected(t *testing.T) {
	r := New("/hooks/cortexos", "topsecret", func(id string, body []byte) error {
		t.Fatal("handler must not be invoked")
		return nil
	})

	req := httptest.NewRequest(http.MethodPost, "/hooks/cortexos", strings.NewReader(`{"x":1}`))
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServeHTTPUnknownPathReturns404(t *testing.T) {
	r := New("/hooks/cortexos", "topsecret", func(id string, body []byte) error { return nil })

	req := httptest.NewRequest(http.MethodPost, "/hooks/other", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeHTTPHandlerErrorSurfacesAs500(t *testing.T) {
	r := New("/hooks/cortexos", "topsecret", func(id string, body []byte) error {
		return assert.AnError
	})

	body := []byte(`{"x":1}`)
	req := httptest.NewRequest(http.MethodPost, "/hooks/cortexos", strings.NewReader(string(body)))
	req.Header.Set(signatureHeader, sign("topsecret", body))
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
