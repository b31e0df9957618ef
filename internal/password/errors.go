package password

import "errors"

var (
	ErrPasswordMismatch       = errors.New("passwords do not match")
	ErrCurrentPasswordInvalid = errors.New("current password is incorrect")
	ErrPasswordPolicyViolated = errors.New("password does not meet policy requirements")
	ErrGenerateLengthTooShort = errors.New("requested length cannot satisfy policy requirements")
)
