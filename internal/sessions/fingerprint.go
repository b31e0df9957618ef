package sessions

import "github.com/authcore-dev/authcore/internal/common"

// DeviceInfo is the set of client signals a device fingerprint is derived
// from. Raw signals are never persisted, only the keyed hash.
type DeviceInfo struct {
	UserAgent string `json:"userAgent"`
	Screen    string `json:"screen"`
	Timezone  string `json:"timezone"`
	Language  string `json:"language"`
}

// Fingerprinter derives stable device fingerprints keyed by the master key,
// so fingerprints cannot be reversed to or precomputed from raw signals.
type Fingerprinter struct {
	masterKey string
}

func NewFingerprinter(masterKey string) *Fingerprinter {
	return &Fingerprinter{masterKey: masterKey}
}

func (f *Fingerprinter) Fingerprint(info DeviceInfo) string {
	return common.CalculateHash(f.masterKey, info.UserAgent, info.Screen, info.Timezone, info.Language)
}
