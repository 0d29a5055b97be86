package security

import (
	"crypto/subtle"
	"time"

	"github.com/xlzd/gotp"
)

const totpStepSeconds = 30

// TOTPVerifier checks codes against the enrolled secret, accepting the
// previous and next time step to absorb clock skew between the server and
// the authenticator app.
type TOTPVerifier struct{}

func NewTOTPVerifier() *TOTPVerifier { return &TOTPVerifier{} }

func (v *TOTPVerifier) Verify(secret, code string, at time.Time) bool {
	if secret == "" || code == "" {
		return false
	}
	totp := gotp.NewDefaultTOTP(secret)
	ts := at.Unix()
	for _, offset := range []int64{0, -totpStepSeconds, totpStepSeconds} {
		expected := totp.At(ts + offset)
		if subtle.ConstantTimeCompare([]byte(expected), []byte(code)) == 1 {
			return true
		}
	}
	return false
}
