package password

import (
	"fmt"
	"math"
	"strings"
	"unicode"
)

// Strength bands, weakest to strongest. Any validation error forces VeryWeak
// regardless of the computed score.
const (
	StrengthVeryWeak   = "very-weak"
	StrengthWeak       = "weak"
	StrengthFair       = "fair"
	StrengthStrong     = "strong"
	StrengthVeryStrong = "very-strong"
)

// guessesPerSecond is the assumed offline attack rate for crack-time
// estimates.
const guessesPerSecond = 1e9

// UserInfo is the account context checked for credential leakage.
type UserInfo struct {
	Email    string
	Username string
	Name     string
}

// Result is the outcome of validating one candidate password. Identical
// inputs always produce identical results.
type Result struct {
	IsValid            bool     `json:"isValid"`
	Score              int      `json:"score"`
	Strength           string   `json:"strength"`
	Errors             []string `json:"errors"`
	Warnings           []string `json:"warnings"`
	Suggestions        []string `json:"suggestions"`
	Entropy            float64  `json:"entropy"`
	EstimatedCrackTime string   `json:"estimatedCrackTime"`
}

func (r *Result) addError(msg string) {
	r.Errors = append(r.Errors, msg)
}

func (r *Result) addWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

func (r *Result) suggest(msg string) {
	r.Suggestions = append(r.Suggestions, msg)
}

type charClasses struct {
	lower, upper, digit, special bool
}

func classify(password string) charClasses {
	var c charClasses
	for _, ch := range password {
		switch {
		case unicode.IsLower(ch):
			c.lower = true
		case unicode.IsUpper(ch):
			c.upper = true
		case unicode.IsDigit(ch):
			c.digit = true
		default:
			c.special = true
		}
	}
	return c
}

// charsetSize approximates the search space from the classes actually present:
// 26 lower + 26 upper + 10 digits + 32 specials.
func (c charClasses) charsetSize() int {
	size := 0
	if c.lower {
		size += 26
	}
	if c.upper {
		size += 26
	}
	if c.digit {
		size += 10
	}
	if c.special {
		size += 32
	}
	return size
}

// Entropy is log2(charsetSize^length) for the classes present in password.
func Entropy(password string) float64 {
	size := classify(password).charsetSize()
	if size == 0 || password == "" {
		return 0
	}
	return float64(len(password)) * math.Log2(float64(size))
}

// CrackTime renders the average time to guess a password of the given entropy
// at a fixed offline rate.
func CrackTime(entropy float64) string {
	// average case is half the keyspace
	seconds := math.Exp2(entropy) / 2 / guessesPerSecond
	switch {
	case seconds < 1:
		return "instantly"
	case seconds < 60:
		return fmt.Sprintf("%.0f seconds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%.0f minutes", seconds/60)
	case seconds < 86400:
		return fmt.Sprintf("%.0f hours", seconds/3600)
	case seconds < 86400*365:
		return fmt.Sprintf("%.0f days", seconds/86400)
	case seconds < 86400*365*1000:
		return fmt.Sprintf("%.0f years", seconds/(86400*365))
	default:
		return "centuries"
	}
}

func longestRun(password string) int {
	longest, run := 0, 0
	var prev rune
	for i, ch := range password {
		if i > 0 && ch == prev {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
		prev = ch
	}
	return longest
}

func uniqueChars(password string) int {
	seen := make(map[rune]struct{}, len(password))
	for _, ch := range password {
		seen[ch] = struct{}{}
	}
	return len(seen)
}

// userInfoTokens returns the lowercased account-derived strings (longer than
// two characters) that must not appear inside a password.
func userInfoTokens(info *UserInfo) []string {
	if info == nil {
		return nil
	}
	var tokens []string
	add := func(tok string) {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if len(tok) > 2 {
			tokens = append(tokens, tok)
		}
	}
	add(info.Username)
	if local, _, found := strings.Cut(info.Email, "@"); found {
		add(local)
	} else {
		add(info.Email)
	}
	for _, part := range strings.Fields(info.Name) {
		add(part)
	}
	return tokens
}

// checkLocal runs every check that needs no storage: length bounds, character
// classes, repeats, uniqueness, common-password and user-info rejection,
// dictionary words. History and breach checks are layered on by the Engine.
func checkLocal(password string, policy Policy, info *UserInfo) *Result {
	result := &Result{
		Errors:      []string{},
		Warnings:    []string{},
		Suggestions: []string{},
	}

	if len(password) < policy.MinLength {
		result.addError(fmt.Sprintf("Password must be at least %d characters long", policy.MinLength))
	} else {
		result.Score += min(len(password)*2, 30)
	}
	if policy.MaxLength > 0 && len(password) > policy.MaxLength {
		result.addError(fmt.Sprintf("Password must be at most %d characters long", policy.MaxLength))
	}

	classes := classify(password)
	classChecks := []struct {
		present  bool
		required bool
		name     string
	}{
		{classes.lower, policy.RequireLowercase, "lowercase letter"},
		{classes.upper, policy.RequireUppercase, "uppercase letter"},
		{classes.digit, policy.RequireDigit, "number"},
		{classes.special, policy.RequireSpecial, "special character"},
	}
	for _, check := range classChecks {
		if check.present {
			result.Score += 10
		} else if check.required {
			result.addError(fmt.Sprintf("Password must contain at least one %s", check.name))
			result.suggest(fmt.Sprintf("Add a %s", check.name))
		}
	}

	if policy.MaxRepeatingChars > 0 && longestRun(password) > policy.MaxRepeatingChars {
		result.addError(fmt.Sprintf("Password must not repeat a character more than %d times in a row", policy.MaxRepeatingChars))
	}

	if unique := uniqueChars(password); policy.MinUniqueChars > 0 && unique < policy.MinUniqueChars {
		result.addWarning(fmt.Sprintf("Password should contain at least %d unique characters", policy.MinUniqueChars))
		result.suggest("Use a wider variety of characters")
	} else if len(password) > 0 {
		result.Score += min(unique, 10)
	}

	lowered := strings.ToLower(password)
	if policy.RejectCommon {
		if _, found := commonPasswords[lowered]; found {
			result.addError("Password is too common")
			result.suggest("Avoid well-known passwords")
		}
	}

	if policy.RejectUserInfo {
		for _, token := range userInfoTokens(info) {
			if strings.Contains(lowered, token) {
				result.addError("Password must not contain your name, username or email")
				break
			}
		}
	}

	if policy.RejectDictionary {
		for _, word := range dictionaryWords {
			if strings.Contains(lowered, word) {
				result.addWarning("Password contains a dictionary word")
				result.suggest("Avoid everyday words")
				break
			}
		}
	}

	result.Entropy = Entropy(password)
	result.Score += min(int(result.Entropy/4), 20)
	result.EstimatedCrackTime = CrackTime(result.Entropy)
	return result
}

// finalize clamps the score, applies the error override and bands strength.
func (r *Result) finalize() {
	if r.Score > 100 {
		r.Score = 100
	}
	if r.Score < 0 {
		r.Score = 0
	}
	r.IsValid = len(r.Errors) == 0
	switch {
	case !r.IsValid:
		r.Strength = StrengthVeryWeak
	case r.Score < 20:
		r.Strength = StrengthVeryWeak
	case r.Score < 40:
		r.Strength = StrengthWeak
	case r.Score < 60:
		r.Strength = StrengthFair
	case r.Score < 80:
		r.Strength = StrengthStrong
	default:
		r.Strength = StrengthVeryStrong
	}
}
