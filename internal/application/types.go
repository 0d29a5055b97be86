package application

import "time"

// SignInRequest carries one credential authentication attempt.
type SignInRequest struct {
	Email             string `json:"email" validate:"required,email"`
	Password          string `json:"password" validate:"required"`
	DeviceFingerprint string `json:"device_fingerprint,omitempty"`
	IPAddress         string `json:"ip_address,omitempty"`
	UserAgent         string `json:"user_agent,omitempty"`
	DeviceID          string `json:"device_id,omitempty"`
}

// Signin outcome markers returned in SignInResponse.Status.
const (
	SignInStatusSuccess     = "SUCCESS"
	SignInStatusMFARequired = "MFA_REQUIRED"
)

// SignInResponse is the terminal or intermediate signin outcome. On
// MFA_REQUIRED only ChallengeToken and Methods are set; no session exists
// yet.
type SignInResponse struct {
	Status         string   `json:"status"`
	AccessToken    string   `json:"access_token,omitempty"`
	RefreshToken   string   `json:"refresh_token,omitempty"`
	SessionID      string   `json:"session_id,omitempty"`
	ExpiresIn      int64    `json:"expires_in,omitempty"`
	ChallengeToken string   `json:"challenge_token,omitempty"`
	Methods        []string `json:"methods,omitempty"`
}

// MFAVerifyRequest completes a pending challenge.
type MFAVerifyRequest struct {
	ChallengeToken    string `json:"challenge_token" validate:"required"`
	Code              string `json:"code" validate:"required"`
	Method            string `json:"method,omitempty"`
	RememberDevice    bool   `json:"remember_device,omitempty"`
	DeviceFingerprint string `json:"device_fingerprint,omitempty"`
	IPAddress         string `json:"ip_address,omitempty"`
	UserAgent         string `json:"user_agent,omitempty"`
	DeviceID          string `json:"device_id,omitempty"`
}

// RefreshResponse is a rotated token pair within the same token family.
type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// SessionItem is the user-facing session listing shape.
type SessionItem struct {
	SessionID string    `json:"session_id"`
	DeviceID  string    `json:"device_id,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Current   bool      `json:"current"`
}

// DeviceItem is the user-facing trusted-device listing shape.
type DeviceItem struct {
	DeviceTrustID string    `json:"device_trust_id"`
	Fingerprint   string    `json:"fingerprint"`
	UserAgent     string    `json:"user_agent"`
	IPAddress     string    `json:"ip_address,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	LastUsedAt    time.Time `json:"last_used_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}
