package password

import (
	"reflect"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestCheckLocalDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		candidate := rapid.StringMatching(`[ -~]{0,40}`).Draw(t, "candidate")
		info := &UserInfo{
			Email:    rapid.StringMatching(`[a-z]{1,10}@[a-z]{1,10}\.com`).Draw(t, "email"),
			Username: rapid.StringMatching(`[a-z]{1,12}`).Draw(t, "username"),
		}
		policy := GetPolicy("default")

		first := checkLocal(candidate, policy, info)
		first.finalize()
		second := checkLocal(candidate, policy, info)
		second.finalize()

		if !reflect.DeepEqual(first, second) {
			t.Fatalf("validation not deterministic for %q: %+v vs %+v", candidate, first, second)
		}
	})
}

func TestCheckLocalMissingClasses(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  string
	}{
		{"no uppercase", "lowercase1!aa", "uppercase letter"},
		{"no lowercase", "UPPERCASE1!AA", "lowercase letter"},
		{"no digit", "NoDigitsHere!", "number"},
		{"no special", "NoSpecial12ab", "special character"},
		{"too short", "Ab1!", "at least 8 characters"},
	}
	policy := GetPolicy("default")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := checkLocal(tt.password, policy, nil)
			result.finalize()
			if result.IsValid {
				t.Fatalf("expected %q to be rejected", tt.password)
			}
			if result.Strength != StrengthVeryWeak {
				t.Errorf("errors must force very-weak, got %s", result.Strength)
			}
			found := false
			for _, e := range result.Errors {
				if strings.Contains(e, tt.wantErr) {
					found = true
				}
			}
			if !found {
				t.Errorf("expected an error mentioning %q, got %v", tt.wantErr, result.Errors)
			}
		})
	}
}

func TestCheckLocalAcceptsStrongPassword(t *testing.T) {
	result := checkLocal("Tr0ub4dor&3xyzQ", GetPolicy("default"), nil)
	result.finalize()
	if !result.IsValid {
		t.Fatalf("expected valid, got errors %v", result.Errors)
	}
	if result.Strength != StrengthStrong && result.Strength != StrengthVeryStrong {
		t.Errorf("expected strong or better, got %s (score %d)", result.Strength, result.Score)
	}
}

func TestCheckLocalRejectsCommonPassword(t *testing.T) {
	result := checkLocal("password", GetPolicy("relaxed"), nil)
	result.finalize()
	if result.IsValid {
		t.Fatal("expected common password to be rejected")
	}
}

func TestCheckLocalRejectsUserInfo(t *testing.T) {
	info := &UserInfo{Email: "alice@example.com", Username: "alice77", Name: "Alice Smith"}
	for _, candidate := range []string{"xAlice77zz1!Q", "xxSmith99!Qa", "aliceRocks1!Q"} {
		result := checkLocal(candidate, GetPolicy("default"), info)
		result.finalize()
		if result.IsValid {
			t.Errorf("expected %q to be rejected for containing account info", candidate)
		}
	}
}

func TestCheckLocalRepeatingRun(t *testing.T) {
	result := checkLocal("Aaaaa1!bcdef", GetPolicy("default"), nil)
	result.finalize()
	if result.IsValid {
		t.Fatal("expected run of repeated characters to be rejected")
	}
}

func TestEntropyGrowsWithLengthAndClasses(t *testing.T) {
	if Entropy("abcdefgh") >= Entropy("abcdefghij") {
		t.Error("longer password of the same charset must have higher entropy")
	}
	if Entropy("abcdefgh") >= Entropy("abcdefG1") {
		t.Error("wider charset must raise entropy at equal length")
	}
	if Entropy("") != 0 {
		t.Error("empty password must have zero entropy")
	}
}

func TestCrackTimeBands(t *testing.T) {
	if got := CrackTime(1); got != "instantly" {
		t.Errorf("tiny entropy should crack instantly, got %q", got)
	}
	if got := CrackTime(200); got != "centuries" {
		t.Errorf("huge entropy should report centuries, got %q", got)
	}
}

func TestGetPolicyFallsBackToDefault(t *testing.T) {
	got := GetPolicy("no-such-policy")
	if got.Name != "default" {
		t.Errorf("unknown policy should resolve to default, got %s", got.Name)
	}
}
