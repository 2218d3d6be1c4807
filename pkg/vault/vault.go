// Package vault implements the pman credential vault: an in-memory set of
// named credentials that is persisted as a single password-encrypted blob.
//
// A blob is an 18-byte salt followed by a Fernet token holding the JSON
// encoded record set. Every operation opens the blob, works on the
// decrypted records and, if anything changed, seals a new blob. Nothing is
// kept open between operations.
package vault

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nieksand/pman/pkg/crypto"

	"golang.org/x/text/cases"
)

// Errors
var (
	ErrAuthentication = errors.New("vault: authentication failed: wrong password or corrupted vault")
	ErrFormat         = errors.New("vault: unrecognized vault format")
	ErrNotFound       = errors.New("vault: credential not found")
	ErrInvalidName    = errors.New("vault: invalid credential name")
	ErrInvalidText    = errors.New("vault: invalid credential field")
	ErrOtherVault     = errors.New("vault: second vault")
)

// Vault is the unlocked state of a vault: decrypted records plus the salt
// and key needed to seal them again. A Vault lives for one operation.
type Vault struct {
	salt    []byte
	key     []byte
	records map[string]Credential
	now     func() time.Time
}

func newVault(salt, key []byte, records []Credential, now func() time.Time) *Vault {
	v := &Vault{
		salt:    salt,
		key:     key,
		records: make(map[string]Credential, len(records)),
		now:     now,
	}
	for _, c := range records {
		v.records[c.Name] = c
	}
	return v
}

// Salt returns a copy of the vault salt.
func (v *Vault) Salt() []byte {
	return append([]byte(nil), v.salt...)
}

// Len returns the number of credentials.
func (v *Vault) Len() int {
	return len(v.records)
}

// Contains reports whether a credential with the given name exists.
func (v *Vault) Contains(name string) bool {
	_, ok := v.records[NormalizeName(name)]
	return ok
}

// Names returns all credential names in lexicographic order.
func (v *Vault) Names() []string {
	names := make([]string, 0, len(v.records))
	for name := range v.records {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Credentials returns copies of all credentials ordered by name.
func (v *Vault) Credentials() []Credential {
	out := make([]Credential, 0, len(v.records))
	for _, name := range v.Names() {
		out = append(out, v.records[name])
	}
	return out
}

// Get returns a copy of the credential stored under name.
func (v *Vault) Get(name string) (*Credential, error) {
	c, ok := v.records[NormalizeName(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return &c, nil
}

// List returns the summaries of all credentials ordered by name.
func (v *Vault) List() []Summary {
	return v.Search("")
}

// Search returns summaries of credentials whose name contains substr,
// ignoring case. An empty substr matches every credential.
func (v *Vault) Search(substr string) []Summary {
	fold := cases.Fold()
	needle := fold.String(NormalizeName(substr))
	now := v.now()

	out := []Summary{}
	for _, name := range v.Names() {
		if needle != "" && !strings.Contains(fold.String(name), needle) {
			continue
		}
		out = append(out, v.records[name].summary(now))
	}
	return out
}

// Set inserts or fully replaces the credential named c.Name and stamps its
// update time. Created is kept from the replaced record. The replaced
// record is returned, or nil if the name was new.
func (v *Vault) Set(c Credential) (*Credential, error) {
	c.Name = NormalizeName(c.Name)
	if err := validateCredential(c); err != nil {
		return nil, err
	}

	now := v.now().UTC()
	c.Created, c.LastUpdated = now, now

	prev, replaced := v.records[c.Name]
	if replaced && !prev.Created.IsZero() {
		c.Created = prev.Created
	}
	v.records[c.Name] = c

	if !replaced {
		return nil, nil
	}
	return &prev, nil
}

// Remove deletes the credential stored under name and returns it.
func (v *Vault) Remove(name string) (*Credential, error) {
	key := NormalizeName(name)
	c, ok := v.records[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	delete(v.records, key)
	return &c, nil
}

// Seal encrypts the current records under the vault key and salt.
func (v *Vault) Seal() ([]byte, error) {
	return Encrypt(v.key, v.salt, v.Credentials())
}

// Close wipes the key held by the vault. The vault cannot be sealed afterwards.
func (v *Vault) Close() {
	crypto.SecureWipe(v.key)
	v.key = nil
}

// rekey replaces the salt and key. Records are untouched.
func (v *Vault) rekey(salt, key []byte) {
	crypto.SecureWipe(v.key)
	v.salt, v.key = salt, key
}
