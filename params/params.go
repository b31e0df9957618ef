package params

import "time"

const (
	ServerBodyLimit    = 1048576 // 1 MiB
	ServerIdleTimeout  = 30 * time.Second
	ServerReadTimeout  = 10 * time.Second
	ServerWriteTimeout = 10 * time.Second

	PendingFactorKeyPrefix = "pf:" // staged, unconfirmed factor secrets

	TOTPEnrollExpiration     = 15 * time.Minute // staged TOTP secret time to live
	SMSCodeExpiration        = 5 * time.Minute  // SMS verification code time to live
	EmailCodeExpiration      = 5 * time.Minute  // email verification code time to live
	BiometricChallengeMaxAge = 1 * time.Minute  // biometric registration challenge time to live
	TOTPSkewSteps            = 2                // accepted TOTP steps before/after the current window
	BackupCodeCount          = 10               // backup codes issued per enrollment
	BackupCodeLength         = 8                // backup code length in hex characters
	VerificationCodeLength   = 6                // SMS/email verification code digits

	SessionLookbackWindow = 24 * time.Hour  // recent session window for trust signals
	SessionLookbackLimit  = 20              // max recent sessions loaded per trust check
	LocationAnomalyWindow = 4 * time.Hour   // country change within this delta flags location_anomaly
	SessionSweepInterval  = 5 * time.Minute // expired session reconciliation interval

	PasswordExpiryDuration = 90 * 24 * time.Hour // password age before forced rotation

	RiskStaleLoginAge        = 30 * 24 * time.Hour // last verification older than this adds risk
	RiskSessionCountLimit    = 5                   // active sessions above this add risk
	AnomalySweepInterval     = 15 * time.Minute    // background anomaly detection interval
	AnomalyOffHoursStart     = 2                   // off-hours window start (local hour, inclusive)
	AnomalyOffHoursEnd       = 5                   // off-hours window end (local hour, exclusive)
	AnomalyNewDeviceLimit    = 3                   // distinct fingerprints per window before flagging
	AnomalyFailedLoginLimit  = 10                  // failed logins per window before flagging
	AnomalyTravelWindowHours = 6                   // country change within this many hours is impossible travel

	BreachCheckTimeout    = 3 * time.Second // breach range API request timeout
	HealthCheckServerAddr = ":3001"         // health check server address
)
