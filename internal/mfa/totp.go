package mfa

import (
	"time"

	"github.com/authcore-dev/authcore/params"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// validateTOTP checks a code against the secret, accepting the configured
// number of 30s steps of clock skew on either side.
func validateTOTP(token, secret string) bool {
	ok, err := totp.ValidateCustom(token, secret, time.Now(), totp.ValidateOpts{
		Period:    30,
		Skew:      params.TOTPSkewSteps,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
