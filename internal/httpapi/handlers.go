package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/arcvoice/voiceverify/internal/verrors"
)

const maxUploadBytes = 32 << 20 // 32 MiB per request, covers MAX_ENROLLMENT_SAMPLES clips of speech audio.

type jsonMap = map[string]any

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, jsonMap{"status": "error", "code": code, "message": message})
}

// writeVerifierError translates a *verrors.Error (or a plain error) from
// the verifier into an HTTP response with the matching status code.
func writeVerifierError(w http.ResponseWriter, err error) {
	var code string
	var ve *verrors.Error
	if errors.As(err, &ve) {
		code = ve.Code.String()
	} else {
		code = verrors.Internal.String()
	}
	status := verrors.StatusFor(verrors.CodeOf(err))
	writeError(w, status, code, err.Error())
}

func (s *Server) xorDecodeIfEnabled(data []byte) []byte {
	if len(s.opts.XORKey) == 0 {
		return data
	}
	return xorDecode(data, s.opts.XORKey)
}

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w) {
		return
	}
	ctx, cancel := s.withTimeout(r, EnrollTimeout)
	defer cancel()

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, verrors.BadAudio.String(), "malformed multipart form: "+err.Error())
		return
	}
	customerID := r.FormValue("customer_id")
	deviceID := r.FormValue("device_id")
	if customerID == "" {
		writeError(w, http.StatusBadRequest, verrors.BadAudio.String(), "customer_id is required")
		return
	}

	files := r.MultipartForm.File["files[]"]
	clips := make([][]byte, 0, len(files))
	hints := make([]string, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, verrors.BadAudio.String(), "could not open uploaded file: "+err.Error())
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, verrors.BadAudio.String(), "could not read uploaded file: "+err.Error())
			return
		}
		clips = append(clips, s.xorDecodeIfEnabled(data))
		hints = append(hints, fh.Filename)
	}

	result, err := s.v.Enroll(ctx, customerID, clips, hints)
	if err != nil {
		writeVerifierError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, jsonMap{
		"status":      result.Status,
		"customer_id": result.CustomerID,
		"device_id":   deviceID,
		"message":     "enrollment successful",
		"num_samples": result.NumSamples,
	})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w) {
		return
	}
	ctx, cancel := s.withTimeout(r, VerifyTimeout)
	defer cancel()

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, verrors.BadAudio.String(), "malformed multipart form: "+err.Error())
		return
	}
	customerID := r.FormValue("customer_id")
	if customerID == "" {
		writeError(w, http.StatusBadRequest, verrors.BadAudio.String(), "customer_id is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, verrors.BadAudio.String(), "file is required: "+err.Error())
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, verrors.BadAudio.String(), "could not read uploaded file: "+err.Error())
		return
	}

	result, err := s.v.Verify(ctx, customerID, s.xorDecodeIfEnabled(data), header.Filename)
	if err != nil {
		writeVerifierError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w) {
		return
	}
	ctx, cancel := s.withTimeout(r, VerifyTimeout)
	defer cancel()

	var body struct {
		CustomerID string `json:"customer_id"`
	}
	if r.Header.Get("Content-Type") == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, verrors.BadAudio.String(), "malformed request body: "+err.Error())
			return
		}
	} else {
		body.CustomerID = r.FormValue("customer_id")
	}
	if body.CustomerID == "" {
		writeError(w, http.StatusBadRequest, verrors.BadAudio.String(), "customer_id is required")
		return
	}

	result, err := s.v.Delete(ctx, body.CustomerID)
	if err != nil {
		writeVerifierError(w, err)
		return
	}

	status := http.StatusOK
	if result.Status == "not_found" {
		status = http.StatusNotFound
	}
	writeJSON(w, status, result)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !s.guard(w) {
		return
	}
	ctx, cancel := s.withTimeout(r, VerifyTimeout)
	defer cancel()

	customerID := r.PathValue("customer_id")
	history, err := s.v.History(ctx, customerID)
	if err != nil {
		writeVerifierError(w, err)
		return
	}
	if len(history) == 0 {
		writeError(w, http.StatusNotFound, verrors.NotEnrolled.String(), "no verification history for this customer")
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.opts.Enabled {
		writeJSON(w, http.StatusServiceUnavailable, jsonMap{"status": "disabled"})
		return
	}
	ctx, cancel := s.withTimeout(r, VerifyTimeout)
	defer cancel()

	cohortConnected := true
	if _, err := s.cohort.TopK(ctx, s.cohortCollection, make([]float32, 0), 0); err != nil {
		cohortConnected = false
	}

	status := http.StatusOK
	if !cohortConnected {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, jsonMap{
		"status":           healthStatus(cohortConnected),
		"cohort_connected": cohortConnected,
		"collections":      []string{s.enrolledCollection, s.cohortCollection},
	})
}

func healthStatus(cohortConnected bool) string {
	if cohortConnected {
		return "ok"
	}
	return "degraded"
}
