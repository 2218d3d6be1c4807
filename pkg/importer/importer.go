// Package importer converts exports of other password managers into pman
// credentials. Supported are 1Password CSV, Bitwarden JSON and LastPass CSV.
package importer

import (
	"fmt"
	"html"
	"net"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/text/unicode/norm"

	"github.com/nieksand/pman/pkg/vault"
)

// Source represents the source password manager format.
type Source string

const (
	Source1Password Source = "1password"
	SourceBitwarden Source = "bitwarden"
	SourceLastPass  Source = "lastpass"
)

// Result contains the results of parsing an export.
type Result struct {
	// Credentials are ready for vault.Vault.Set. Timestamps are left zero.
	Credentials []vault.Credential

	// Warnings are non-fatal issues encountered during parsing.
	Warnings []string

	// Skipped are items that carried nothing worth importing.
	Skipped []SkippedItem
}

// SkippedItem represents an item that was skipped during import.
type SkippedItem struct {
	OriginalName string
	Reason       string
}

// Parser is the interface for export format parsers.
type Parser interface {
	// Parse parses the export and returns credentials with unique names.
	Parse(data []byte) (*Result, error)

	// Source returns the source type for this parser.
	Source() Source
}

// GetParser returns a parser for the given source.
func GetParser(source Source) (Parser, error) {
	switch source {
	case Source1Password:
		return &OnePasswordParser{}, nil
	case SourceBitwarden:
		return &BitwardenParser{}, nil
	case SourceLastPass:
		return &LastPassParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported import source: %s", source)
	}
}

// ValidSources returns a list of valid source names.
func ValidSources() []string {
	return []string{
		string(Source1Password),
		string(SourceBitwarden),
		string(SourceLastPass),
	}
}

// CleanName turns an exported title into a valid credential name: NFC
// normalized, control characters dropped, surrounding whitespace trimmed
// and cut to vault.MaxNameLength bytes on a rune boundary.
func CleanName(name string) string {
	name = norm.NFC.String(name)
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)

	if len(name) > vault.MaxNameLength {
		cut := vault.MaxNameLength
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = strings.TrimSpace(name[:cut])
	}
	return name
}

// fallbackName names an untitled item after the registrable domain of its
// URL, or imported-item-N.
func fallbackName(rawURL string, counter int) string {
	if domain := siteName(rawURL); domain != "" {
		return domain
	}
	return fmt.Sprintf("imported-item-%d", counter)
}

// siteName returns the eTLD+1 of rawURL ("login.github.com" -> "github.com").
// IP addresses and single-label hosts are returned as they are.
func siteName(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" || net.ParseIP(host) != nil {
		return host
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}

// namer hands out credential names, resolving empty titles and duplicates.
type namer struct {
	seen    map[string]int
	counter int
}

func newNamer() *namer {
	return &namer{seen: make(map[string]int), counter: 1}
}

// name returns a unique name for an item titled title. Repeated names get
// " (2)", " (3)" and so on appended.
func (n *namer) name(title, rawURL string) string {
	base := CleanName(title)
	if base == "" {
		base = CleanName(fallbackName(rawURL, n.counter))
		n.counter++
	}

	count := n.seen[base]
	n.seen[base] = count + 1
	if count == 0 {
		return base
	}

	name := fmt.Sprintf("%s (%d)", base, count+1)
	for n.seen[name] > 0 {
		count++
		name = fmt.Sprintf("%s (%d)", base, count+1)
	}
	n.seen[name] = 1
	return name
}

// describe joins the non-empty parts of a description, one per line.
func describe(parts ...string) string {
	var lines []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			lines = append(lines, p)
		}
	}
	return strings.Join(lines, "\n")
}

// DecodeHTMLEntities decodes HTML entities found in LastPass exports.
func DecodeHTMLEntities(s string) string {
	return html.UnescapeString(s)
}

// importedCredential builds a credential. The URL and notes become the
// description; pman has no separate fields for them.
func importedCredential(name, username, secret, link, notes string) vault.Credential {
	return vault.Credential{
		Name:        name,
		Username:    username,
		Secret:      secret,
		Description: describe(link, notes),
	}
}
