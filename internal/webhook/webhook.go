// Package webhook implements the peripheral HTTP receiver that injects
// requests into the engine from the outside (spec §6): a single path,
// HMAC-SHA256 body signing, and a handoff to a caller-supplied handler
// once the signature checks out.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/cortexos/cortexos/internal/clog"
)

const signatureHeader = "x-signature-256"

// Handler is invoked once a request's signature has been verified.
// body is the raw, already-read request body.
type Handler func(webhookID string, body []byte) error

// Receiver mounts one configured path and verifies every POST against
// Secret before calling Handle.
type Receiver struct {
	Path   string
	Secret string
	Handle Handler
	Logger clog.Logger // optional; defaults to clog.Noop{}
}

func New(path, secret string, handle Handler) *Receiver {
	return &Receiver{Path: path, Secret: secret, Handle: handle, Logger: clog.Noop{}}
}

// ServeHTTP implements the contract in spec §6: unknown path → 404,
// missing/mismatched signature → 401, accepted → 200 with
// {accepted:true, webhookId}.
func (r *Receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	logger := r.Logger
	if logger == nil {
		logger = clog.Noop{}
	}

	if req.URL.Path != r.Path {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if req.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if !r.verify(req.Header.Get(signatureHeader), body) {
		logger.Warnf("webhook: rejected request with invalid signature on %s", r.Path)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	webhookID := uuid.NewString()
	if err := r.Handle(webhookID, body); err != nil {
		logger.Errorf("webhook: handler failed for %s: %v", webhookID, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	logger.Event("webhook:accepted", webhookID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{"accepted": true, "webhookId": webhookID})
}

// verify checks header against the HMAC-SHA256 of body keyed by
// Secret, using constant-time comparison (spec §6).
func (r *Receiver) verify(header string, body []byte) bool {
	const prefix = "sha256="
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	got, err := hex.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(r.Secret))
	mac.Write(body)
	want := mac.Sum(nil)

	return hmac.Equal(got, want)
}
