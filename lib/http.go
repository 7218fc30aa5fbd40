package lib

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/fluxnode/fluxosd"
	"github.com/fluxnode/fluxosd/internal"
	"github.com/fluxnode/fluxosd/lib/challenge"
)

// apiResponse is the envelope every endpoint answers with, mirroring the
// daemon RPC response shape the rest of the node fleet already parses.
type apiResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

type apiError struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, lg *slog.Logger, code int, resp apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		lg.Error("can't encode response", "err", err)
	}
}

func writeSuccess(w http.ResponseWriter, lg *slog.Logger, code int, data any) {
	writeJSON(w, lg, code, apiResponse{Status: "success", Data: data})
}

func writeError(w http.ResponseWriter, lg *slog.Logger, code int, message string, errs []string) {
	writeJSON(w, lg, code, apiResponse{Status: "error", Data: apiError{Message: message, Errors: errs}})
}

// requesterIP resolves the client identity every pool is keyed by. The xff
// middleware in front of the server populates X-Real-Ip; the raw socket
// address is the fallback for direct connections.
func requesterIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-Ip"); ip != "" {
		return ip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// gate runs the checks shared by every administrative endpoint and returns
// the requester IP, or "" after answering the request itself.
func (s *Server) gate(w http.ResponseWriter, r *http.Request, lg *slog.Logger) string {
	if !s.opts.ArcaneMode {
		adminRejections.WithLabelValues("not_arcane_mode").Inc()
		writeError(w, lg, http.StatusNotImplemented, "Node is not running in arcane mode", nil)
		return ""
	}

	ip := requesterIP(r)
	if ip == "" || ip == "unknown" {
		adminRejections.WithLabelValues("no_ip").Inc()
		writeError(w, lg, http.StatusBadRequest, "Unable to determine requester IP", nil)
		return ""
	}

	if !s.allowed(ip) {
		adminRejections.WithLabelValues("not_allowed").Inc()
		lg.Warn("administrative request from outside the allowlist", "ip", ip)
		writeError(w, lg, http.StatusForbidden, "Requester IP may not administer this node", nil)
		return ""
	}

	return ip
}

// AuthChallenge issues a fresh challenge bound to the current chain height.
func (s *Server) AuthChallenge(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)

	ip := s.gate(w, r, lg)
	if ip == "" {
		return
	}

	height, err := s.opts.Heights.BlockCount(r.Context())
	if err != nil {
		lg.Error("can't determine chain height", "err", err)
		writeError(w, lg, http.StatusInternalServerError, "Can't determine chain height", nil)
		return
	}

	ch, err := s.opts.Keeper.Issue(ip, height)
	switch {
	case errors.Is(err, challenge.ErrInvalidOwner):
		writeError(w, lg, http.StatusBadRequest, "Unable to determine requester IP", nil)
		return
	case errors.Is(err, challenge.ErrRateLimited):
		lg.Info("challenge pool full", "ip", ip)
		writeError(w, lg, http.StatusTooManyRequests, fmt.Sprintf("Maximum %d challenges per IP", fluxosd.MaxChallengesPerIP), nil)
		return
	case err != nil:
		lg.Error("can't issue challenge", "err", err)
		writeError(w, lg, http.StatusInternalServerError, "Can't issue challenge", nil)
		return
	}

	lg.Debug("challenge issued", "expires_at", ch.ExpiresAt)
	writeSuccess(w, lg, http.StatusOK, ch)
}

type configSyncRequest struct {
	// Challenge and EncryptedChallenge decode as bare JSON values so the
	// validator can tell non-string junk apart from malformed strings.
	Challenge          any             `json:"challenge"`
	EncryptedChallenge any             `json:"encryptedChallenge"`
	ConfigData         json.RawMessage `json:"configData"`
}

// ConfigSync authenticates a challenge/proof pair and, on success, applies
// the submitted configuration payload.
func (s *Server) ConfigSync(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)

	ip := s.gate(w, r, lg)
	if ip == "" {
		return
	}

	// generous envelope cap; configData has its own tighter limit
	r.Body = http.MaxBytesReader(w, r.Body, 4*fluxosd.MaxConfigPayloadBytes)

	var req configSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, lg, http.StatusBadRequest, "Invalid request", []string{"Body must be a JSON object"})
		return
	}

	msgs := challenge.ValidateSubmission(req.Challenge, req.EncryptedChallenge)
	payload, payloadMsgs := s.opts.ConfigSync.Validate(req.ConfigData)
	msgs = append(msgs, payloadMsgs...)
	if len(msgs) != 0 {
		writeError(w, lg, http.StatusBadRequest, "Invalid request", msgs)
		return
	}

	result := s.opts.Verifier.Verify(r.Context(), ip, req.Challenge.(string), req.EncryptedChallenge.(string))
	if !result.Valid {
		lg.Info("config sync authentication failed", "reason", result.Reason)
		writeError(w, lg, http.StatusUnauthorized, result.Reason, nil)
		return
	}

	synced, err := s.opts.ConfigSync.Authorize(r.Context(), payload)
	if err != nil {
		lg.Error("can't apply configuration", "err", err)
		writeError(w, lg, http.StatusInternalServerError, "Can't apply configuration", nil)
		return
	}

	configSyncs.Inc()
	lg.Info("configuration synchronized", "keys", synced.ReceivedKeys)
	writeSuccess(w, lg, http.StatusOK, synced)
}

func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)

	writeSuccess(w, lg, http.StatusOK, map[string]string{
		"message": "OK",
		"version": fluxosd.Version,
	})
}
