package vault

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/nieksand/pman/pkg/crypto"
)

// Store runs vault operations on encrypted blobs. Each call derives the key,
// decrypts, operates and, for mutations, returns a freshly sealed blob. The
// caller persists the blob; Store never touches the filesystem.
//
// Store does not coordinate concurrent writers. Two mutating calls on the
// same persisted blob race and the last write wins.
type Store struct {
	iterations int
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithIterations sets the PBKDF2 iteration count. It must match the count
// the vault was created with.
func WithIterations(n int) Option {
	return func(s *Store) { s.iterations = n }
}

// WithClock sets the time source used for timestamps and record ages.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger. Secrets and keys are never logged.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore creates a Store with DefaultIterations, the wall clock and a
// discarding logger unless overridden.
func NewStore(opts ...Option) *Store {
	s := &Store{
		iterations: crypto.DefaultIterations,
		now:        time.Now,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Iterations returns the configured PBKDF2 iteration count.
func (s *Store) Iterations() int {
	return s.iterations
}

func (s *Store) deriveKey(password, salt []byte) ([]byte, error) {
	start := time.Now()
	key, err := crypto.DeriveKey(password, salt, s.iterations)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to derive key: %w", err)
	}
	s.logger.Debug("derived vault key", "iterations", s.iterations, "elapsed", time.Since(start))
	return key, nil
}

// Create returns a new, empty unlocked vault with a fresh salt.
func (s *Store) Create(password []byte) (*Vault, error) {
	salt, err := crypto.GenerateSalt()
	if err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}
	key, err := s.deriveKey(password, salt)
	if err != nil {
		return nil, err
	}
	return newVault(salt, key, nil, s.now), nil
}

// Open decrypts blob with password and returns the unlocked vault.
// A wrong password and a tampered blob both return ErrAuthentication.
func (s *Store) Open(blob, password []byte) (*Vault, error) {
	salt, _, err := SplitBlob(blob)
	if err != nil {
		return nil, err
	}
	key, err := s.deriveKey(password, salt)
	if err != nil {
		return nil, err
	}
	records, err := Decrypt(key, blob)
	if err != nil {
		crypto.SecureWipe(key)
		return nil, err
	}
	s.logger.Debug("opened vault", "records", len(records))
	return newVault(append([]byte(nil), salt...), key, records, s.now), nil
}

// Init returns the blob of a new, empty vault protected by password.
func (s *Store) Init(password []byte) ([]byte, error) {
	v, err := s.Create(password)
	if err != nil {
		return nil, err
	}
	defer v.Close()
	return v.Seal()
}

// Get returns the credential stored under name.
func (s *Store) Get(blob, password []byte, name string) (*Credential, error) {
	v, err := s.Open(blob, password)
	if err != nil {
		return nil, err
	}
	defer v.Close()
	return v.Get(name)
}

// List returns summaries of every credential ordered by name.
func (s *Store) List(blob, password []byte) ([]Summary, error) {
	v, err := s.Open(blob, password)
	if err != nil {
		return nil, err
	}
	defer v.Close()
	return v.List(), nil
}

// Search returns summaries of credentials whose name contains substr, ignoring case.
func (s *Store) Search(blob, password []byte, substr string) ([]Summary, error) {
	v, err := s.Open(blob, password)
	if err != nil {
		return nil, err
	}
	defer v.Close()
	return v.Search(substr), nil
}

// Set inserts or replaces a credential and returns the new blob together
// with the replaced record, if any. Key and salt are unchanged.
func (s *Store) Set(blob, password []byte, c Credential) ([]byte, *Credential, error) {
	v, err := s.Open(blob, password)
	if err != nil {
		return nil, nil, err
	}
	defer v.Close()

	prev, err := v.Set(c)
	if err != nil {
		return nil, nil, err
	}
	out, err := v.Seal()
	if err != nil {
		return nil, nil, err
	}
	s.logger.Debug("set credential", "replaced", prev != nil)
	return out, prev, nil
}

// Remove deletes a credential and returns the new blob and the removed record.
func (s *Store) Remove(blob, password []byte, name string) ([]byte, *Credential, error) {
	v, err := s.Open(blob, password)
	if err != nil {
		return nil, nil, err
	}
	defer v.Close()

	removed, err := v.Remove(name)
	if err != nil {
		return nil, nil, err
	}
	out, err := v.Seal()
	if err != nil {
		return nil, nil, err
	}
	return out, removed, nil
}

// Rekey re-encrypts the records under newPassword with a brand-new salt.
func (s *Store) Rekey(blob, oldPassword, newPassword []byte) ([]byte, error) {
	v, err := s.Open(blob, oldPassword)
	if err != nil {
		return nil, err
	}
	defer v.Close()

	if err := s.ChangePassword(v, newPassword); err != nil {
		return nil, err
	}
	return v.Seal()
}

// ChangePassword gives an unlocked vault a new salt and a key derived from
// newPassword. The next Seal writes the vault under the new password.
func (s *Store) ChangePassword(v *Vault, newPassword []byte) error {
	salt, err := crypto.GenerateSalt()
	if err != nil {
		return fmt.Errorf("vault: %w", err)
	}
	key, err := s.deriveKey(newPassword, salt)
	if err != nil {
		return err
	}
	v.rekey(salt, key)
	s.logger.Debug("rekeyed vault", "records", v.Len())
	return nil
}

// Merge folds the credentials of otherBlob into blob and returns the new
// blob, sealed with the first vault's key and salt.
func (s *Store) Merge(blob, password, otherBlob, otherPassword []byte) ([]byte, MergeReport, error) {
	v, err := s.Open(blob, password)
	if err != nil {
		return nil, MergeReport{}, err
	}
	defer v.Close()

	other, err := s.Open(otherBlob, otherPassword)
	if err != nil {
		return nil, MergeReport{}, fmt.Errorf("%w: %w", ErrOtherVault, err)
	}
	defer other.Close()

	report := v.Merge(other)
	out, err := v.Seal()
	if err != nil {
		return nil, MergeReport{}, err
	}
	return out, report, nil
}
