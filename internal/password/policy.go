package password

import "time"

// Policy is a named password policy preset.
type Policy struct {
	Name                 string
	MinLength            int
	MaxLength            int
	RequireLowercase     bool
	RequireUppercase     bool
	RequireDigit         bool
	RequireSpecial       bool
	MaxRepeatingChars    int // longest allowed run of one character
	MinUniqueChars       int
	RejectCommon         bool
	RejectUserInfo       bool
	RejectDictionary     bool
	MaxAge               time.Duration
	HistoryCount         int // recent history entries checked for reuse
	LockoutMaxAttempts   uint
	LockoutDuration      time.Duration
	SpecialChars         string
}

const defaultSpecialChars = "!@#$%^&*()-_=+[]{};:,.<>?"

var presets = map[string]Policy{
	"default": {
		Name:               "default",
		MinLength:          8,
		MaxLength:          128,
		RequireLowercase:   true,
		RequireUppercase:   true,
		RequireDigit:       true,
		RequireSpecial:     true,
		MaxRepeatingChars:  3,
		MinUniqueChars:     5,
		RejectCommon:       true,
		RejectUserInfo:     true,
		RejectDictionary:   false,
		MaxAge:             90 * 24 * time.Hour,
		HistoryCount:       5,
		LockoutMaxAttempts: 5,
		LockoutDuration:    15 * time.Minute,
		SpecialChars:       defaultSpecialChars,
	},
	"strict": {
		Name:               "strict",
		MinLength:          12,
		MaxLength:          128,
		RequireLowercase:   true,
		RequireUppercase:   true,
		RequireDigit:       true,
		RequireSpecial:     true,
		MaxRepeatingChars:  2,
		MinUniqueChars:     8,
		RejectCommon:       true,
		RejectUserInfo:     true,
		RejectDictionary:   true,
		MaxAge:             60 * 24 * time.Hour,
		HistoryCount:       10,
		LockoutMaxAttempts: 3,
		LockoutDuration:    30 * time.Minute,
		SpecialChars:       defaultSpecialChars,
	},
	"relaxed": {
		Name:               "relaxed",
		MinLength:          6,
		MaxLength:          128,
		RequireLowercase:   true,
		RequireUppercase:   false,
		RequireDigit:       true,
		RequireSpecial:     false,
		MaxRepeatingChars:  4,
		MinUniqueChars:     3,
		RejectCommon:       true,
		RejectUserInfo:     false,
		RejectDictionary:   false,
		MaxAge:             180 * 24 * time.Hour,
		HistoryCount:       3,
		LockoutMaxAttempts: 10,
		LockoutDuration:    5 * time.Minute,
		SpecialChars:       defaultSpecialChars,
	},
}

// GetPolicy resolves a preset by name, falling back to "default" for unknown
// names.
func GetPolicy(name string) Policy {
	if policy, ok := presets[name]; ok {
		return policy
	}
	return presets["default"]
}
