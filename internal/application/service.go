package application

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/identity-core/internal/domain"
	"github.com/viralforge/identity-core/internal/ports"
)

// Config holds the tunable authentication policy.
type Config struct {
	MaxFailedAttempts    int
	LockoutDuration      time.Duration
	SessionTTL           time.Duration
	MaxSessionsPerUser   int
	TokenTTL             time.Duration
	ChallengeTTL         time.Duration
	ChallengeMaxAttempts int
	DeviceTrustTTL       time.Duration
	MaxDeviceTrusts      int
	SMSMaxSendsPerWindow int
	SMSSendWindow        time.Duration
	SMSResendCooldown    time.Duration
	CodeReplayTTL        time.Duration
}

// DefaultConfig returns the policy defaults the service ships with.
func DefaultConfig() Config {
	return Config{
		MaxFailedAttempts:    5,
		LockoutDuration:      15 * time.Minute,
		SessionTTL:           domain.DefaultSessionTTL,
		MaxSessionsPerUser:   5,
		TokenTTL:             15 * time.Minute,
		ChallengeTTL:         5 * time.Minute,
		ChallengeMaxAttempts: 3,
		DeviceTrustTTL:       domain.DefaultDeviceTrustTTL,
		MaxDeviceTrusts:      domain.MaxDeviceTrustsPerUser,
		SMSMaxSendsPerWindow: 3,
		SMSSendWindow:        time.Hour,
		SMSResendCooldown:    60 * time.Second,
		CodeReplayTTL:        90 * time.Second,
	}
}

// Service is the authentication orchestrator. It sequences credential
// verification, lockout transitions, MFA, device trust, and session
// lifecycle into one transactional flow per request.
type Service struct {
	cfg          Config
	users        ports.UserRepository
	events       ports.EventStore
	deviceTrusts ports.DeviceTrustRepository
	mfaSettings  ports.MFASettingsRepository
	sessions     ports.SessionStore
	challenges   ports.MFAChallengeStore
	smsLimits    ports.SMSRateLimitStore
	hasher       ports.PasswordHasher
	totp         ports.TOTPVerifier
	sms          ports.SMSSender
	tokenSigner  ports.TokenSigner
	nowFn        ports.Clock

	// Serializes per-user session-list read-modify-write so the concurrency
	// cap converges to at-most-N. Lockout counters rely on the row lock in
	// UserRepository.UpdateWithEvents instead.
	sessionLocks keyedMutex
}

type Dependencies struct {
	Config       Config
	Users        ports.UserRepository
	Events       ports.EventStore
	DeviceTrusts ports.DeviceTrustRepository
	MFASettings  ports.MFASettingsRepository
	Sessions     ports.SessionStore
	Challenges   ports.MFAChallengeStore
	SMSLimits    ports.SMSRateLimitStore
	Hasher       ports.PasswordHasher
	TOTP         ports.TOTPVerifier
	SMS          ports.SMSSender
	TokenSigner  ports.TokenSigner
	Now          ports.Clock
}

func NewService(deps Dependencies) *Service {
	nowFn := deps.Now
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		cfg:          deps.Config,
		users:        deps.Users,
		events:       deps.Events,
		deviceTrusts: deps.DeviceTrusts,
		mfaSettings:  deps.MFASettings,
		sessions:     deps.Sessions,
		challenges:   deps.Challenges,
		smsLimits:    deps.SMSLimits,
		hasher:       deps.Hasher,
		totp:         deps.TOTP,
		sms:          deps.SMS,
		tokenSigner:  deps.TokenSigner,
		nowFn:        nowFn,
	}
}

// keyedMutex provides a mutex per user id. Entries are retained for the
// process lifetime; the set is bounded by the active user population.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func (k *keyedMutex) lock(id uuid.UUID) *sync.Mutex {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[uuid.UUID]*sync.Mutex)
	}
	m, ok := k.locks[id]
	if !ok {
		m = &sync.Mutex{}
		k.locks[id] = m
	}
	k.mu.Unlock()
	m.Lock()
	return m
}

func normalizeEmail(email string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(email))
	if trimmed == "" {
		return "", fmt.Errorf("%w: email is required", domain.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(trimmed); err != nil {
		return "", fmt.Errorf("%w: invalid email", domain.ErrInvalidInput)
	}
	return trimmed, nil
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(code)))
	return hex.EncodeToString(sum[:])
}

func randomHex(bytesLen int) string {
	raw := make([]byte, bytesLen)
	_, _ = rand.Read(raw)
	return hex.EncodeToString(raw)
}

func randomDigits(size int) string {
	if size <= 0 {
		size = 6
	}
	max := 1
	for i := 0; i < size; i++ {
		max *= 10
	}
	nRaw := make([]byte, 4)
	_, _ = rand.Read(nRaw)
	n := int(nRaw[0])<<24 | int(nRaw[1])<<16 | int(nRaw[2])<<8 | int(nRaw[3])
	if n < 0 {
		n = -n
	}
	return fmt.Sprintf("%0*d", size, n%max)
}

func newSessionID() string { return "sess_" + randomHex(24) }

func newChallengeToken() string { return "mfa_" + randomHex(24) }

func newTokenFamily() string { return "fam_" + randomHex(16) }

func newRefreshToken() string { return "rft_" + randomHex(32) }
