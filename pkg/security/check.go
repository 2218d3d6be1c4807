package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nieksand/pman/pkg/vault"
)

// IssueType identifies the type of security issue.
type IssueType string

const (
	// IssueWeakSecret indicates a secret with insufficient strength.
	IssueWeakSecret IssueType = "weak"
	// IssueDuplicateSecret indicates a secret reused across credentials.
	IssueDuplicateSecret IssueType = "duplicate"
	// IssueStaleSecret indicates a secret that has not been rotated for a long time.
	IssueStaleSecret IssueType = "stale"
	// IssueEmptySecret indicates a credential without a secret.
	IssueEmptySecret IssueType = "empty"
)

// Severity indicates the urgency of a security issue.
type Severity string

const (
	// SeverityCritical requires immediate attention.
	SeverityCritical Severity = "critical"
	// SeverityWarning should be addressed soon.
	SeverityWarning Severity = "warning"
	// SeverityInfo is informational only.
	SeverityInfo Severity = "info"
)

// Issue is a detected problem with one or more credentials.
type Issue struct {
	Type        IssueType `json:"type"`
	Severity    Severity  `json:"severity"`
	Names       []string  `json:"names"`
	Description string    `json:"description"`
}

// Report collects every issue found in a vault.
type Report struct {
	Checked int     `json:"checked"`
	Issues  []Issue `json:"issues"`
}

// Count returns the number of issues of the given type.
func (r Report) Count(t IssueType) int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Type == t {
			n++
		}
	}
	return n
}

// Checker runs hygiene checks over decrypted credentials.
type Checker struct {
	hmacKey []byte
}

// NewChecker creates a Checker with a fresh random key for comparing secrets.
func NewChecker() (*Checker, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("security: failed to generate comparison key: %w", err)
	}
	return &Checker{hmacKey: key}, nil
}

// Check runs every check. Credentials not updated within maxAge are stale;
// a zero maxAge disables the stale check.
func (c *Checker) Check(creds []vault.Credential, now time.Time, maxAge time.Duration) Report {
	report := Report{Checked: len(creds)}
	report.Issues = append(report.Issues, c.FindDuplicates(creds)...)
	report.Issues = append(report.Issues, c.FindWeak(creds)...)
	if maxAge > 0 {
		report.Issues = append(report.Issues, c.FindStale(creds, now, maxAge)...)
	}
	return report
}

// FindDuplicates groups credentials that share a secret. Secrets are compared
// through HMAC-SHA256 under the checker's key, never directly, and the
// hashes are not kept. Groups are ordered by size, largest first.
func (c *Checker) FindDuplicates(creds []vault.Credential) []Issue {
	groups := make(map[string][]string)
	for _, cred := range creds {
		value := normalizeValue(cred.Secret)
		if value == "" {
			continue
		}
		hash := c.computeValueHash(value)
		groups[hash] = append(groups[hash], cred.Name)
	}

	var issues []Issue
	for _, names := range groups {
		if len(names) <= 1 {
			continue
		}
		sort.Strings(names)
		issues = append(issues, Issue{
			Type:        IssueDuplicateSecret,
			Severity:    SeverityCritical,
			Names:       names,
			Description: fmt.Sprintf("%d credentials share the same secret", len(names)),
		})
	}

	sort.Slice(issues, func(i, j int) bool {
		if len(issues[i].Names) != len(issues[j].Names) {
			return len(issues[i].Names) > len(issues[j].Names)
		}
		return issues[i].Names[0] < issues[j].Names[0]
	})
	return issues
}

// FindWeak returns one issue per credential whose secret is weak or empty.
func (c *Checker) FindWeak(creds []vault.Credential) []Issue {
	var issues []Issue
	for _, cred := range creds {
		if cred.Secret == "" {
			issues = append(issues, Issue{
				Type:        IssueEmptySecret,
				Severity:    SeverityInfo,
				Names:       []string{cred.Name},
				Description: "Credential has no secret",
			})
			continue
		}
		if CalculateStrength(cred.Secret) == PasswordWeak {
			issues = append(issues, Issue{
				Type:        IssueWeakSecret,
				Severity:    SeverityWarning,
				Names:       []string{cred.Name},
				Description: "Secret is shorter than 8 characters",
			})
		}
	}
	return issues
}

// FindStale returns one issue per credential last updated more than maxAge before now.
func (c *Checker) FindStale(creds []vault.Credential, now time.Time, maxAge time.Duration) []Issue {
	var issues []Issue
	for _, cred := range creds {
		age := now.Sub(cred.LastUpdated)
		if age <= maxAge {
			continue
		}
		issues = append(issues, Issue{
			Type:        IssueStaleSecret,
			Severity:    SeverityInfo,
			Names:       []string{cred.Name},
			Description: fmt.Sprintf("Not updated for %d days", int(age.Hours()/24)),
		})
	}
	return issues
}

// computeValueHash computes HMAC-SHA256 of a value with the checker key.
func (c *Checker) computeValueHash(value string) string {
	h := hmac.New(sha256.New, c.hmacKey)
	h.Write([]byte(value))
	return hex.EncodeToString(h.Sum(nil))
}

// normalizeValue trims surrounding whitespace before comparison.
func normalizeValue(value string) string {
	return strings.TrimSpace(value)
}
