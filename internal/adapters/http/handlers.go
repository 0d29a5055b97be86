package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/viralforge/identity-core/internal/application"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

func (h *Handler) readyz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ready")
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := bearerTokenFromHeader(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
			return
		}

		claims, err := h.service.ValidateToken(r.Context(), raw)
		if err != nil {
			status, code, msg, details := mapDomainError(w, err)
			writeErrorDetails(w, status, code, msg, details)
			return
		}

		ctx := r.Context()
		ctx = context.WithValue(ctx, ctxKeyTokenRaw, raw)
		ctx = context.WithValue(ctx, ctxKeyClaims, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	var req application.SignInRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "signin", err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeValidationError(r.Context(), w, "signin", err)
		return
	}

	if req.IPAddress == "" {
		req.IPAddress = readIP(r)
	}
	if req.UserAgent == "" {
		req.UserAgent = r.UserAgent()
	}

	res, err := h.service.SignIn(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "signin", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) mfaVerify(w http.ResponseWriter, r *http.Request) {
	var req application.MFAVerifyRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "mfa_verify", err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeValidationError(r.Context(), w, "mfa_verify", err)
		return
	}

	if req.IPAddress == "" {
		req.IPAddress = readIP(r)
	}
	if req.UserAgent == "" {
		req.UserAgent = r.UserAgent()
	}

	res, err := h.service.VerifyMFA(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "mfa_verify", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) mfaResend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChallengeToken string `json:"challenge_token"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "mfa_resend", err)
		return
	}
	if err := h.service.ResendSMSCode(r.Context(), req.ChallengeToken); err != nil {
		writeMappedError(r.Context(), w, "mfa_resend", err)
		return
	}
	writeMessage(w, http.StatusOK, "verification code sent")
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "refresh", err)
		return
	}

	res, err := h.service.RefreshToken(r.Context(), claims.SessionID, req.RefreshToken)
	if err != nil {
		writeMappedError(r.Context(), w, "refresh", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}
	if err := h.service.Logout(r.Context(), claims.UserID, claims.SessionID); err != nil {
		writeMappedError(r.Context(), w, "logout", err)
		return
	}
	writeMessage(w, http.StatusOK, "logged out successfully")
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}
	items, err := h.service.ListSessions(r.Context(), claims.UserID, claims.SessionID)
	if err != nil {
		writeMappedError(r.Context(), w, "list_sessions", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"sessions": items})
}

func (h *Handler) revokeSession(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}
	sessionID := strings.TrimSpace(chi.URLParam(r, "session_id"))
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid session_id")
		return
	}
	if err := h.service.RevokeSession(r.Context(), claims.UserID, sessionID); err != nil {
		writeMappedError(r.Context(), w, "revoke_session", err)
		return
	}
	writeMessage(w, http.StatusOK, "session revoked successfully")
}

func (h *Handler) listDevices(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}
	items, err := h.service.ListDevices(r.Context(), claims.UserID)
	if err != nil {
		writeMappedError(r.Context(), w, "list_devices", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"devices": items})
}

func (h *Handler) revokeDevice(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}
	trustID, err := uuid.Parse(chi.URLParam(r, "device_trust_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid device_trust_id")
		return
	}
	if err := h.service.RevokeDevice(r.Context(), claims.UserID, trustID); err != nil {
		writeMappedError(r.Context(), w, "revoke_device", err)
		return
	}
	writeMessage(w, http.StatusOK, "device trust revoked")
}

func (h *Handler) revokeAllDevices(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}
	n, err := h.service.RevokeAllDevices(r.Context(), claims.UserID)
	if err != nil {
		writeMappedError(r.Context(), w, "revoke_all_devices", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"revoked_count": n})
}

func writeMappedError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	status, code, msg, details := mapDomainError(w, err)
	logHTTPOperationError(ctx, operation, status, code, msg, err)
	writeErrorDetails(w, status, code, msg, details)
}

func writeValidationError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	logHTTPOperationError(ctx, operation, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), err)
	writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON value")
	}
	return nil
}

func readIP(r *http.Request) string {
	if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	host := strings.TrimSpace(r.RemoteAddr)
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}
