package mfa

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/subtle"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"time"

	"github.com/authcore-dev/authcore/params"
	"github.com/golang-jwt/jwt/v5"
)

func randomChallenge(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func parseECPublicKey(pemData string) (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block", ErrAssertionInvalid)
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssertionInvalid, err)
	}
	ec, ok := key.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an EC key", ErrAssertionInvalid)
	}
	return ec, nil
}

func parseAssertion(assertion string, pub *ecdsa.PublicKey) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(assertion, claims, func(t *jwt.Token) (interface{}, error) {
		return pub, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssertionInvalid, err)
	}
	return claims, nil
}

// verifyAssertion checks an ES256 JWT signed with the device private key
// whose "challenge" claim matches the staged registration challenge.
func verifyAssertion(assertion string, publicKeyPEM string, challenge string) error {
	pub, err := parseECPublicKey(publicKeyPEM)
	if err != nil {
		return err
	}
	claims, err := parseAssertion(assertion, pub)
	if err != nil {
		return err
	}
	got, _ := claims["challenge"].(string)
	if subtle.ConstantTimeCompare([]byte(got), []byte(challenge)) != 1 {
		return fmt.Errorf("%w: challenge mismatch", ErrAssertionInvalid)
	}
	return nil
}

// verifyLoginAssertion checks an ES256 JWT against the registered device key.
// Replay is bounded by requiring a fresh iat claim.
func verifyLoginAssertion(assertion string, publicKeyPEM string, now time.Time) error {
	pub, err := parseECPublicKey(publicKeyPEM)
	if err != nil {
		return err
	}
	claims, err := parseAssertion(assertion, pub)
	if err != nil {
		return err
	}
	issuedAt, err := claims.GetIssuedAt()
	if err != nil || issuedAt == nil {
		return fmt.Errorf("%w: missing iat", ErrAssertionInvalid)
	}
	age := now.Sub(issuedAt.Time)
	if age < -params.BiometricChallengeMaxAge || age > params.BiometricChallengeMaxAge {
		return fmt.Errorf("%w: assertion too old", ErrAssertionInvalid)
	}
	return nil
}
