package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nieksand/pman/internal/cli"
	"github.com/nieksand/pman/internal/config"
	"github.com/nieksand/pman/internal/vaultfile"
	"github.com/nieksand/pman/pkg/security"
	"github.com/nieksand/pman/pkg/vault"
)

const (
	masterPassword = "vK8#qL2!mZ7$wR4@tN9^"
	testIterations = 1000
)

// setupTest isolates a test from the user's config and environment and
// returns a scratch directory.
func setupTest(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.EnvConfig, filepath.Join(dir, "no-config.yaml"))
	t.Setenv(config.EnvVault, "")
	storeOptions = []vault.Option{vault.WithIterations(testIterations)}
	t.Cleanup(func() {
		storeOptions = nil
		prompter = nil
	})
	return dir
}

// run executes pman with args, answering prompts from input.
func run(t *testing.T, input string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	flagVault, flagConfig, flagDebug = "", "", false
	allowWeak, setForce, checkJSON = false, false, false
	importFrom, importOverwrite, importDryRun = "", false, false

	var out, errOut bytes.Buffer
	prompter = cli.New(strings.NewReader(input), &errOut)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err = rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func lines(answers ...string) string {
	return strings.Join(answers, "\n") + "\n"
}

// initVault creates a vault protected by masterPassword.
func initVault(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "test.pman")
	_, _, err := run(t, lines(masterPassword, masterPassword), "init", path)
	require.NoError(t, err)
	return path
}

func setCredential(t *testing.T, path, password, name, username, secret, description string) {
	t.Helper()
	_, _, err := run(t, lines(password, username, secret, secret, description), "--vault", path, "set", name)
	require.NoError(t, err)
}

func TestExampleScenario(t *testing.T) {
	dir := setupTest(t)
	path := initVault(t, dir)

	out, _, err := run(t, lines(masterPassword), "--vault", path, "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "github")

	setCredential(t, path, masterPassword, "github", "niek", "s3cr3t", "code host")

	out, _, err = run(t, lines(masterPassword), "--vault", path, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Vault contents")
	assert.Regexp(t, `github\s+- u=niek\s+d=code host\s+\(0 days\)`, out)
	assert.NotContains(t, out, "s3cr3t")

	out, _, err = run(t, lines(masterPassword), "--vault", path, "get", "github")
	require.NoError(t, err)
	assert.Contains(t, out, "u=niek p=s3cr3t d=code host")

	out, _, err = run(t, lines(masterPassword), "--vault", path, "remove", "github")
	require.NoError(t, err)
	assert.Contains(t, out, "removed: github")
	assert.NotContains(t, out, "s3cr3t")

	out, _, err = run(t, lines(masterPassword), "--vault", path, "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "github")
}

func TestInit(t *testing.T) {
	dir := setupTest(t)
	path := filepath.Join(dir, "new.pman")

	out, stderr, err := run(t, lines(masterPassword, masterPassword), "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "initialized new vault")
	assert.Contains(t, out, "export PMAN_VAULT=")
	assert.Contains(t, stderr, "Password strength: Strong")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, vaultfile.FileMode, info.Mode().Perm())

	blob, err := os.ReadFile(path)
	require.NoError(t, err)
	s := vault.NewStore(vault.WithIterations(testIterations))
	summaries, err := s.List(blob, []byte(masterPassword))
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestInit_Existing(t *testing.T) {
	dir := setupTest(t)
	path := initVault(t, dir)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	_, _, err = run(t, lines(masterPassword, masterPassword), "init", path)
	assert.ErrorIs(t, err, vaultfile.ErrExists)
	assert.Equal(t, "vault with that name already exists", userMessage(err))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestInit_WeakPassword(t *testing.T) {
	dir := setupTest(t)
	path := filepath.Join(dir, "weak.pman")

	_, stderr, err := run(t, lines("password", "password"), "init", path)
	assert.ErrorIs(t, err, errWeakPassword)
	assert.Contains(t, stderr, "Password strength: Weak")
	assert.NoFileExists(t, path)

	_, _, err = run(t, lines("password", "password"), "init", "--allow-weak", path)
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestInit_PasswordMismatch(t *testing.T) {
	dir := setupTest(t)
	path := filepath.Join(dir, "v.pman")

	_, stderr, err := run(t, lines("a", "b", "c", "d", "e", "f"), "init", path)
	assert.ErrorIs(t, err, cli.ErrPasswordMismatch)
	assert.Contains(t, stderr, "passwords do not match")
	assert.NoFileExists(t, path)
}

func TestWrongPassword(t *testing.T) {
	dir := setupTest(t)
	path := initVault(t, dir)
	setCredential(t, path, masterPassword, "github", "niek", "s3cr3t", "")
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	for _, args := range [][]string{
		{"get", "github"},
		{"list"},
		{"search", "git"},
		{"remove", "github"},
		{"check"},
	} {
		out, _, err := run(t, lines("wrong"), append([]string{"--vault", path}, args...)...)
		assert.ErrorIs(t, err, vault.ErrAuthentication, args[0])
		assert.Equal(t, "incorrect password or corrupted vault", userMessage(err))
		assert.NotContains(t, out, "s3cr3t")
	}

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestGet_NotFound(t *testing.T) {
	dir := setupTest(t)
	path := initVault(t, dir)

	_, _, err := run(t, lines(masterPassword), "--vault", path, "get", "missing")
	assert.ErrorIs(t, err, vault.ErrNotFound)
	assert.Equal(t, "credential not found", userMessage(err))
}

func TestSearch(t *testing.T) {
	dir := setupTest(t)
	path := initVault(t, dir)
	setCredential(t, path, masterPassword, "GitHub", "niek", "x", "")
	setCredential(t, path, masterPassword, "gitlab", "niek", "y", "")
	setCredential(t, path, masterPassword, "bank", "niek", "z", "")

	out, _, err := run(t, lines(masterPassword), "--vault", path, "search", "GIT")
	require.NoError(t, err)
	assert.Contains(t, out, "Search results")
	assert.Contains(t, out, "GitHub")
	assert.Contains(t, out, "gitlab")
	assert.NotContains(t, out, "bank")
	assert.Less(t, strings.Index(out, "GitHub"), strings.Index(out, "gitlab"))
}

func TestSet_PromptsForName(t *testing.T) {
	dir := setupTest(t)
	path := initVault(t, dir)

	out, _, err := run(t, lines(masterPassword, "email", "niek", "pw", "pw", "mail"), "--vault", path, "set")
	require.NoError(t, err)
	assert.Contains(t, out, "saved: email")

	out, _, err = run(t, lines(masterPassword), "--vault", path, "get", "email")
	require.NoError(t, err)
	assert.Contains(t, out, "u=niek p=pw d=mail")
}

func TestSet_InvalidName(t *testing.T) {
	dir := setupTest(t)
	path := initVault(t, dir)

	_, _, err := run(t, lines(masterPassword), "--vault", path, "set", " padded ")
	assert.ErrorIs(t, err, vault.ErrInvalidName)
}

func TestSet_Replace(t *testing.T) {
	dir := setupTest(t)
	path := initVault(t, dir)
	setCredential(t, path, masterPassword, "github", "niek", "old", "")

	t.Run("declined", func(t *testing.T) {
		out, _, err := run(t, lines(masterPassword, "n"), "--vault", path, "set", "github")
		assert.ErrorIs(t, err, errAborted)
		assert.Contains(t, out, "replacing: github")

		out, _, err = run(t, lines(masterPassword), "--vault", path, "get", "github")
		require.NoError(t, err)
		assert.Contains(t, out, "p=old")
	})

	t.Run("confirmed", func(t *testing.T) {
		_, _, err := run(t, lines(masterPassword, "y", "niek", "new", "new", ""), "--vault", path, "set", "github")
		require.NoError(t, err)

		out, _, err := run(t, lines(masterPassword), "--vault", path, "get", "github")
		require.NoError(t, err)
		assert.Contains(t, out, "p=new")
	})

	t.Run("forced", func(t *testing.T) {
		_, _, err := run(t, lines(masterPassword, "niek", "newer", "newer", ""), "--vault", path, "set", "--force", "github")
		require.NoError(t, err)

		out, _, err := run(t, lines(masterPassword), "--vault", path, "get", "github")
		require.NoError(t, err)
		assert.Contains(t, out, "p=newer")
	})
}

func TestSet_CancelledLeavesVault(t *testing.T) {
	dir := setupTest(t)
	path := initVault(t, dir)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	_, _, err = run(t, lines(masterPassword, "niek"), "--vault", path, "set", "github")
	assert.ErrorIs(t, err, cli.ErrCancelled)
	assert.Equal(t, "cancelled", userMessage(err))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRekey(t *testing.T) {
	dir := setupTest(t)
	path := initVault(t, dir)
	setCredential(t, path, masterPassword, "github", "niek", "s3cr3t", "")
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	out, _, err := run(t, lines(masterPassword, "new-password", "new-password"), "--vault", path, "rekey", "--allow-weak")
	require.NoError(t, err)
	assert.Contains(t, out, "vault key changed")

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, before[:vault.SaltLength], after[:vault.SaltLength])

	_, _, err = run(t, lines(masterPassword), "--vault", path, "get", "github")
	assert.ErrorIs(t, err, vault.ErrAuthentication)

	out, _, err = run(t, lines("new-password"), "--vault", path, "get", "github")
	require.NoError(t, err)
	assert.Contains(t, out, "p=s3cr3t")
}

func TestRekey_WrongOldPassword(t *testing.T) {
	dir := setupTest(t)
	path := initVault(t, dir)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	// the new password is never asked for
	_, stderr, err := run(t, lines("wrong"), "--vault", path, "rekey")
	assert.ErrorIs(t, err, vault.ErrAuthentication)
	assert.NotContains(t, stderr, "new vault password")

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestMerge(t *testing.T) {
	dir := setupTest(t)
	path := initVault(t, dir)
	otherPath := filepath.Join(dir, "other.pman")
	_, _, err := run(t, lines("other", "other"), "init", "--allow-weak", otherPath)
	require.NoError(t, err)

	setCredential(t, path, masterPassword, "shared", "niek", "mine", "")
	setCredential(t, otherPath, "other", "shared", "niek", "theirs", "")
	setCredential(t, otherPath, "other", "only-other", "niek", "o", "")
	setCredential(t, path, masterPassword, "only-mine", "niek", "m", "")

	otherBefore, err := os.ReadFile(otherPath)
	require.NoError(t, err)

	out, _, err := run(t, lines(masterPassword, "other"), "--vault", path, "merge", otherPath)
	require.NoError(t, err)
	assert.Contains(t, out, "add:  only-other")
	assert.Contains(t, out, "pull: shared")
	assert.Contains(t, out, "merged 1 added, 1 updated")

	out, _, err = run(t, lines(masterPassword), "--vault", path, "get", "shared")
	require.NoError(t, err)
	assert.Contains(t, out, "p=theirs")

	out, _, err = run(t, lines(masterPassword), "--vault", path, "list")
	require.NoError(t, err)
	for _, name := range []string{"only-mine", "only-other", "shared"} {
		assert.Contains(t, out, name)
	}

	otherAfter, err := os.ReadFile(otherPath)
	require.NoError(t, err)
	assert.Equal(t, otherBefore, otherAfter)

	// merging again finds nothing new
	out, _, err = run(t, lines(masterPassword, "other"), "--vault", path, "merge", otherPath)
	require.NoError(t, err)
	assert.Contains(t, out, "nothing to merge")
}

func TestMerge_WrongSecondPassword(t *testing.T) {
	dir := setupTest(t)
	path := initVault(t, dir)

	_, _, err := run(t, lines(masterPassword, "wrong"), "--vault", path, "merge", path)
	assert.ErrorIs(t, err, vault.ErrAuthentication)
	assert.Equal(t, "unable to load second vault: incorrect password or corrupted vault", userMessage(err))
}

func TestMerge_UnreadableSecondVault(t *testing.T) {
	dir := setupTest(t)
	path := initVault(t, dir)
	otherPath := filepath.Join(dir, "garbage.pman")
	require.NoError(t, os.WriteFile(otherPath, []byte("not a vault"), 0o600))

	_, _, err := run(t, lines(masterPassword, "other"), "--vault", path, "merge", otherPath)
	assert.ErrorIs(t, err, vault.ErrFormat)
	assert.Equal(t, "unable to load second vault: vault file is not in a recognized format", userMessage(err))
}

func TestCheck(t *testing.T) {
	dir := setupTest(t)
	path := initVault(t, dir)
	setCredential(t, path, masterPassword, "a", "", "short", "")
	setCredential(t, path, masterPassword, "b", "", "short", "")
	setCredential(t, path, masterPassword, "c", "", "long enough secret", "")

	out, _, err := run(t, lines(masterPassword), "--vault", path, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "Checked 3 credentials: 3 issues")
	assert.Contains(t, out, "[DUPLICATE] a, b")
	assert.NotContains(t, out, "long enough secret")

	out, _, err = run(t, lines(masterPassword), "--vault", path, "check", "--json")
	require.NoError(t, err)
	var report security.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 3, report.Checked)
	assert.Equal(t, 1, report.Count(security.IssueDuplicateSecret))
	assert.Equal(t, 2, report.Count(security.IssueWeakSecret))
	assert.Equal(t, 0, report.Count(security.IssueStaleSecret))
}

func TestVaultPathResolution(t *testing.T) {
	dir := setupTest(t)
	path := initVault(t, dir)

	t.Run("env", func(t *testing.T) {
		t.Setenv(config.EnvVault, path)
		_, _, err := run(t, lines(masterPassword), "list")
		require.NoError(t, err)
	})

	t.Run("config file", func(t *testing.T) {
		cfgPath := filepath.Join(dir, "config.yaml")
		content := fmt.Sprintf("version: 1\nvault: %s\nkdf_iterations: 600000\n", path)
		require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0600))
		_, _, err := run(t, lines(masterPassword), "--config", cfgPath, "list")
		require.NoError(t, err)
	})

	t.Run("none", func(t *testing.T) {
		_, _, err := run(t, lines(masterPassword), "list")
		assert.ErrorIs(t, err, config.ErrNoVaultPath)
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := run(t, lines(masterPassword), "--vault", filepath.Join(dir, "nope.pman"), "list")
		assert.ErrorIs(t, err, vaultfile.ErrNotFound)
		assert.Contains(t, userMessage(err), "pman init")
	})
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("wrapped: %w", vault.ErrAuthentication), "incorrect password or corrupted vault"},
		{vault.ErrFormat, "vault file is not in a recognized format"},
		{fmt.Errorf("%w: %w", vault.ErrOtherVault, vault.ErrFormat), "unable to load second vault: vault file is not in a recognized format"},
		{vault.ErrNotFound, "credential not found"},
		{cli.ErrCancelled, "cancelled"},
		{errors.New("something else"), "something else"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, userMessage(tt.err))
	}
}

func TestVersion(t *testing.T) {
	setupTest(t)
	out, _, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "pman dev\n", out)
}

func TestImport(t *testing.T) {
	dir := setupTest(t)
	path := initVault(t, dir)
	setCredential(t, path, masterPassword, "GitHub", "niek", "keep-me", "")

	export := filepath.Join(dir, "lastpass.csv")
	require.NoError(t, os.WriteFile(export, []byte(`url,username,password,totp,extra,name,grouping,fav
https://github.com,johndoe,imported,,,GitHub,,0
https://bank.com,me,p&amp;ss,,,Bank,,0
`), 0600))

	t.Run("dry run", func(t *testing.T) {
		before, err := os.ReadFile(path)
		require.NoError(t, err)

		out, _, err := run(t, lines(masterPassword), "--vault", path, "import", "--from", "lastpass", "--dry-run", export)
		require.NoError(t, err)
		assert.Contains(t, out, "dry run, vault unchanged")

		after, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("skips existing", func(t *testing.T) {
		out, _, err := run(t, lines(masterPassword), "--vault", path, "import", "--from", "lastpass", export)
		require.NoError(t, err)
		assert.Contains(t, out, "exists: GitHub")
		assert.Contains(t, out, "import: Bank")
		assert.Contains(t, out, "1 imported, 1 already present, 0 skipped")

		out, _, err = run(t, lines(masterPassword), "--vault", path, "get", "Bank")
		require.NoError(t, err)
		assert.Contains(t, out, "u=me p=p&ss d=https://bank.com")

		out, _, err = run(t, lines(masterPassword), "--vault", path, "get", "GitHub")
		require.NoError(t, err)
		assert.Contains(t, out, "p=keep-me")
	})

	t.Run("overwrite", func(t *testing.T) {
		_, _, err := run(t, lines(masterPassword), "--vault", path, "import", "--from", "lastpass", "--overwrite", export)
		require.NoError(t, err)

		out, _, err := run(t, lines(masterPassword), "--vault", path, "get", "GitHub")
		require.NoError(t, err)
		assert.Contains(t, out, "p=imported")
	})

	t.Run("unknown source", func(t *testing.T) {
		_, _, err := run(t, lines(masterPassword), "--vault", path, "import", "--from", "keepass", export)
		assert.ErrorContains(t, err, "unsupported import source")
	})
}
