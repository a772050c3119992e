// Package httpapi exposes the verifier orchestrator over HTTP: enroll,
// verify, delete, history, and a health probe, all under a versioned
// prefix.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/arcvoice/voiceverify/pkg/cohortstore"
	"github.com/arcvoice/voiceverify/pkg/verifier"
)

// EnrollTimeout and VerifyTimeout bound the per-request soft deadline
// applied to each operation; they're separate because enroll fans out
// over several clips while verify processes exactly one.
const (
	EnrollTimeout = 30 * time.Second
	VerifyTimeout = 10 * time.Second
)

// Options configures the server beyond the Verifier itself.
type Options struct {
	// Enabled gates the whole surface behind the VOICEPRINT_ENABLED
	// feature flag; when false every route responds ServiceDisabled
	// without touching the verifier or any of its dependencies.
	Enabled bool

	// XORKey, if non-empty, is applied to undo repeating-XOR transport
	// obfuscation on incoming audio payloads before decoding.
	XORKey []byte

	Logger *slog.Logger
}

// Server wires the Verifier into an http.Handler.
type Server struct {
	v      *verifier.Verifier
	cohort cohortstore.Store
	cohortCollection, enrolledCollection string
	opts   Options
}

// NewServer builds the HTTP handler tree. cohort is consulted only by the
// health probe.
func NewServer(v *verifier.Verifier, cohort cohortstore.Store, enrolledCollection, cohortCollection string, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{v: v, cohort: cohort, enrolledCollection: enrolledCollection, cohortCollection: cohortCollection, opts: opts}
}

// Handler returns the routed http.Handler, ready to pass to
// http.ListenAndServe.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /voiceprint/enroll", s.handleEnroll)
	mux.HandleFunc("POST /voiceprint/verify", s.handleVerify)
	mux.HandleFunc("DELETE /voiceprint/", s.handleDelete)
	mux.HandleFunc("GET /voiceprint/verify/{customer_id}/history", s.handleHistory)
	mux.HandleFunc("GET /voiceprint/health", s.handleHealth)
	return mux
}

// guard returns false and writes a ServiceDisabled response when the
// feature flag is off. Callers must return immediately when it does.
func (s *Server) guard(w http.ResponseWriter) bool {
	if s.opts.Enabled {
		return true
	}
	writeError(w, http.StatusServiceUnavailable, "ServiceDisabled", "voiceprint verification is disabled")
	return false
}

func (s *Server) withTimeout(r *http.Request, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), d)
}
