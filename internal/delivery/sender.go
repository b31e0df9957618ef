// Package delivery is the gateway for out-of-band code delivery. Senders
// return typed errors instead of panicking into the MFA flow; a failed
// dispatch fails the enrollment step but never corrupts state.
package delivery

import (
	"errors"
	"fmt"
)

// ErrDeliveryFailed wraps any transport-level dispatch failure.
var ErrDeliveryFailed = errors.New("delivery failed")

type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
	IsHTML  bool
}

type MailSender interface {
	Send(message *Message) error
}

// SMSSender dispatches a short verification code to a phone number.
type SMSSender interface {
	SendCode(phoneNumber string, code string) error
}

func deliveryError(cause error) error {
	return fmt.Errorf("%w: %v", ErrDeliveryFailed, cause)
}
