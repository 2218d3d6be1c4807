package vault

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/nieksand/pman/pkg/crypto"
)

// Vault container layout: [salt][token].
const (
	// SaltLength is the size of the plaintext salt header.
	SaltLength = crypto.SaltLength

	// FormatVersion is the plaintext encoding written by Encrypt.
	FormatVersion = 2

	// formatLegacy is the name-keyed JSON object written by the first releases.
	formatLegacy = 1
)

// document is the plaintext encoding of a record set.
type document struct {
	Format  int          `json:"format"`
	Records []recordJSON `json:"records"`
}

type recordJSON struct {
	Name        string    `json:"name"`
	Username    string    `json:"username"`
	Secret      string    `json:"secret"`
	Description string    `json:"description"`
	Created     time.Time `json:"created"`
	Modified    time.Time `json:"modified"`
}

// legacyRecord is one value of the format 1 object. Unknown keys are dropped.
type legacyRecord struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	Description string `json:"description"`
	Created     string `json:"created"`
	Modified    string `json:"modified"`
}

// Encrypt serializes records and seals them under key, prefixed by salt.
func Encrypt(key, salt []byte, records []Credential) ([]byte, error) {
	if len(salt) != SaltLength {
		return nil, crypto.ErrInvalidSaltLength
	}

	plaintext, err := MarshalRecords(records)
	if err != nil {
		return nil, err
	}
	defer crypto.SecureWipe(plaintext)

	token, err := crypto.Seal(key, plaintext)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to seal records: %w", err)
	}

	blob := make([]byte, 0, len(salt)+len(token))
	blob = append(blob, salt...)
	return append(blob, token...), nil
}

// Decrypt authenticates the token in blob with key and deserializes the records.
//
// Any token failure returns ErrAuthentication and no data. A token that
// authenticates but does not hold a valid record set returns ErrFormat.
func Decrypt(key, blob []byte) ([]Credential, error) {
	_, token, err := SplitBlob(blob)
	if err != nil {
		return nil, err
	}

	plaintext, err := crypto.Open(key, token)
	if err != nil {
		if errors.Is(err, crypto.ErrDecryptionFailed) {
			return nil, ErrAuthentication
		}
		return nil, fmt.Errorf("vault: failed to open token: %w", err)
	}
	defer crypto.SecureWipe(plaintext)

	return UnmarshalRecords(plaintext)
}

// SplitBlob separates the salt header from the token.
func SplitBlob(blob []byte) (salt, token []byte, err error) {
	if len(blob) <= SaltLength {
		return nil, nil, fmt.Errorf("%w: container is %d bytes, too short", ErrFormat, len(blob))
	}
	return blob[:SaltLength], blob[SaltLength:], nil
}

// MarshalRecords encodes records as a format 2 document, sorted by name.
// Names must be valid and unique, and every field valid UTF-8: JSON would
// otherwise replace invalid bytes and the records would not round-trip.
func MarshalRecords(records []Credential) ([]byte, error) {
	doc := document{
		Format:  FormatVersion,
		Records: make([]recordJSON, 0, len(records)),
	}
	seen := make(map[string]struct{}, len(records))
	for _, c := range records {
		if err := ValidateName(c.Name); err != nil {
			return nil, err
		}
		if _, dup := seen[c.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrInvalidName, c.Name)
		}
		seen[c.Name] = struct{}{}
		for _, f := range []struct{ field, value string }{
			{"username", c.Username},
			{"secret", c.Secret},
			{"description", c.Description},
		} {
			if !utf8.ValidString(f.value) {
				return nil, fmt.Errorf("%w: %s of %q is not valid UTF-8", ErrInvalidText, f.field, c.Name)
			}
		}
		doc.Records = append(doc.Records, recordJSON{
			Name:        c.Name,
			Username:    c.Username,
			Secret:      c.Secret,
			Description: c.Description,
			Created:     c.Created.UTC(),
			Modified:    c.LastUpdated.UTC(),
		})
	}
	sort.Slice(doc.Records, func(i, j int) bool {
		return doc.Records[i].Name < doc.Records[j].Name
	})

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("vault: failed to encode records: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalRecords decodes a record set written by MarshalRecords or by the
// legacy format 1 writer. Records are returned sorted by name.
func UnmarshalRecords(data []byte) ([]Credential, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	var (
		records []Credential
		err     error
	)
	switch formatOf(probe) {
	case FormatVersion:
		records, err = decodeDocument(data)
	case formatLegacy:
		records, err = decodeLegacy(probe)
	default:
		return nil, fmt.Errorf("%w: unsupported format %s", ErrFormat, probe["format"])
	}
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	return records, nil
}

// formatOf reports the document format. A legacy vault may hold a credential
// named "format", but its value is always an object, never a number.
func formatOf(probe map[string]json.RawMessage) int {
	raw, ok := probe["format"]
	if !ok {
		return formatLegacy
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
			return formatLegacy
		}
		return -1
	}
	if n == formatLegacy {
		return -1
	}
	return n
}

func decodeDocument(data []byte) ([]Credential, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	seen := make(map[string]struct{}, len(doc.Records))
	records := make([]Credential, 0, len(doc.Records))
	for _, r := range doc.Records {
		name, err := decodedName(r.Name, seen)
		if err != nil {
			return nil, err
		}
		records = append(records, Credential{
			Name:        name,
			Username:    r.Username,
			Secret:      r.Secret,
			Description: r.Description,
			Created:     r.Created.UTC(),
			LastUpdated: r.Modified.UTC(),
		})
	}
	return records, nil
}

func decodeLegacy(probe map[string]json.RawMessage) ([]Credential, error) {
	seen := make(map[string]struct{}, len(probe))
	records := make([]Credential, 0, len(probe))
	for rawName, raw := range probe {
		name, err := decodedName(rawName, seen)
		if err != nil {
			return nil, err
		}
		var r legacyRecord
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("%w: record %q: %v", ErrFormat, name, err)
		}
		created, err := parseLegacyTime(r.Created)
		if err != nil {
			return nil, fmt.Errorf("%w: record %q: %v", ErrFormat, name, err)
		}
		modified, err := parseLegacyTime(r.Modified)
		if err != nil {
			return nil, fmt.Errorf("%w: record %q: %v", ErrFormat, name, err)
		}
		records = append(records, Credential{
			Name:        name,
			Username:    r.Username,
			Secret:      r.Password,
			Description: r.Description,
			Created:     created,
			LastUpdated: modified,
		})
	}
	return records, nil
}

// decodedName returns the NFC form of a stored name. Names that are invalid
// or collide with an earlier name once normalized are format errors.
func decodedName(raw string, seen map[string]struct{}) (string, error) {
	name := NormalizeName(raw)
	if err := ValidateName(name); err != nil {
		return "", fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if _, dup := seen[name]; dup {
		return "", fmt.Errorf("%w: duplicate record %q", ErrFormat, name)
	}
	seen[name] = struct{}{}
	return name, nil
}

// parseLegacyTime parses "YYYY-MM-DD hh:mm:ss" in UTC. Empty means unknown.
func parseLegacyTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(legacyTimeForm, s, time.UTC)
}
