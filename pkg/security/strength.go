// Package security provides password strength evaluation and hygiene checks
// over decrypted vault credentials.
package security

import (
	"unicode/utf8"

	"github.com/nbutton23/zxcvbn-go"
)

// PasswordStrength represents the strength level of a password.
type PasswordStrength int

const (
	// PasswordWeak indicates an insecure password.
	PasswordWeak PasswordStrength = iota
	// PasswordFair indicates a minimally acceptable password.
	PasswordFair
	// PasswordGood indicates a good password.
	PasswordGood
	// PasswordStrong indicates a strong password.
	PasswordStrong
)

// String returns a human-readable representation of the password strength.
func (s PasswordStrength) String() string {
	switch s {
	case PasswordWeak:
		return "Weak"
	case PasswordFair:
		return "Fair"
	case PasswordGood:
		return "Good"
	case PasswordStrong:
		return "Strong"
	default:
		return "Unknown"
	}
}

// Evaluation is the result of EvaluatePassword.
type Evaluation struct {
	Strength  PasswordStrength
	Score     int    // zxcvbn score, 0 (guessable) to 4 (very unguessable)
	CrackTime string // zxcvbn offline crack time estimate
	Warnings  []string
}

// Acceptable reports whether the password may be used as a master password.
func (e Evaluation) Acceptable() bool {
	return e.Strength > PasswordWeak
}

// EvaluatePassword rates a master password. The length-first rating
// (NIST SP 800-63B style) is capped by the zxcvbn pattern score, so long but
// predictable passwords are still rated weak. userInputs are words the
// password should not be built from, such as the vault file name.
func EvaluatePassword(password string, userInputs []string) Evaluation {
	byLength := CalculateStrength(password)

	result := zxcvbn.PasswordStrength(password, userInputs)
	byPattern := strengthFromScore(result.Score)

	eval := Evaluation{
		Strength:  min(byLength, byPattern),
		Score:     result.Score,
		CrackTime: result.CrackTimeDisplay,
	}

	if utf8.RuneCountInString(password) < 14 {
		eval.Warnings = append(eval.Warnings, "Longer passwords (14+ characters) are more secure")
	}
	if byPattern < byLength {
		eval.Warnings = append(eval.Warnings,
			"Password follows a predictable pattern (estimated crack time: "+result.CrackTimeDisplay+")")
	}
	return eval
}

// CalculateStrength rates a human-chosen password by length alone.
// Length is the primary factor per NIST guidelines (composition rules discouraged).
func CalculateStrength(value string) PasswordStrength {
	length := utf8.RuneCountInString(value)

	switch {
	case length >= 20:
		return PasswordStrong
	case length >= 14:
		return PasswordGood
	case length >= 8:
		return PasswordFair
	default:
		return PasswordWeak
	}
}

func strengthFromScore(score int) PasswordStrength {
	switch {
	case score >= 4:
		return PasswordStrong
	case score == 3:
		return PasswordGood
	case score == 2:
		return PasswordFair
	default:
		return PasswordWeak
	}
}
