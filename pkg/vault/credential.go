package vault

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Input validation limits
const (
	MaxNameLength  = 256         // Maximum credential name length in bytes
	MaxSecretSize  = 64 * 1024   // Maximum secret size in bytes
	MaxTextSize    = 10 * 1024   // Maximum username/description size in bytes
	secondsPerDay  = 24 * 60 * 60
	legacyTimeForm = "2006-01-02 15:04:05"
)

// Credential is one stored credential.
type Credential struct {
	Name        string    // Unique lookup key, case-sensitive, NFC normalized
	Username    string    // May be empty
	Secret      string    // Protected value
	Description string    // May be empty
	Created     time.Time // First write of this name
	LastUpdated time.Time // Last write of this record
}

// Summary is the non-secret projection of a Credential used by list and search.
type Summary struct {
	Name            string
	Username        string
	Description     string
	LastUpdated     time.Time
	DaysSinceUpdate int
}

// String renders the credential without its secret.
func (c Credential) String() string {
	return fmt.Sprintf("%s (username=%q, description=%q, updated %s)",
		c.Name, c.Username, c.Description, c.LastUpdated.Format(time.RFC3339))
}

func (c Credential) summary(now time.Time) Summary {
	return Summary{
		Name:            c.Name,
		Username:        c.Username,
		Description:     c.Description,
		LastUpdated:     c.LastUpdated,
		DaysSinceUpdate: daysBetween(c.LastUpdated, now),
	}
}

// daysBetween returns the whole days elapsed from t to now, never negative.
func daysBetween(t, now time.Time) int {
	d := now.Sub(t)
	if d < 0 {
		return 0
	}
	return int(d / (secondsPerDay * time.Second))
}

// NormalizeName returns the canonical (NFC) form used to store and look up names.
func NormalizeName(name string) string {
	return norm.NFC.String(name)
}

// ValidateName checks a credential name after normalization.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: %d bytes exceeds maximum of %d", ErrInvalidName, len(name), MaxNameLength)
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("%w: not valid UTF-8", ErrInvalidName)
	}
	if strings.TrimSpace(name) != name {
		return fmt.Errorf("%w: leading or trailing whitespace", ErrInvalidName)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character %U", ErrInvalidName, r)
		}
	}
	return nil
}

// validateText checks a free-text field.
func validateText(field, value string, limit int) error {
	if !utf8.ValidString(value) {
		return fmt.Errorf("%w: %s is not valid UTF-8", ErrInvalidText, field)
	}
	if len(value) > limit {
		return fmt.Errorf("%w: %s is %d bytes, maximum %d", ErrInvalidText, field, len(value), limit)
	}
	return nil
}

func validateCredential(c Credential) error {
	if err := ValidateName(c.Name); err != nil {
		return err
	}
	if err := validateText("username", c.Username, MaxTextSize); err != nil {
		return err
	}
	if err := validateText("secret", c.Secret, MaxSecretSize); err != nil {
		return err
	}
	return validateText("description", c.Description, MaxTextSize)
}
