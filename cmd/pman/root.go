package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"

	"github.com/nieksand/pman/internal/cli"
	"github.com/nieksand/pman/internal/config"
	"github.com/nieksand/pman/internal/vaultfile"
	"github.com/nieksand/pman/pkg/vault"
)

// Global flags
var (
	flagVault  string
	flagConfig string
	flagDebug  bool
)

// Set up by PersistentPreRunE for every command
var (
	cfg      *config.Config
	store    *vault.Store
	prompter *cli.Prompter
	logger   *slog.Logger

	// storeOptions are applied after the config derived options
	storeOptions []vault.Option
)

// passwordAttempts is how often a new password may be mistyped before giving up.
const passwordAttempts = 3

var rootCmd = &cobra.Command{
	Use:   "pman",
	Short: "pman is a local, file-based password manager",
	Long: `pman keeps named credentials in a single encrypted vault file.

Every command decrypts the whole vault with the master password, works on it
and, if something changed, writes a freshly encrypted vault back in one atomic
step. The vault file is chosen by --vault, then PMAN_VAULT, then the config
file.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	// PersistentPreRunE runs before every subcommand and wires config,
	// logging, the store and the prompter.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if flagDebug {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		c, err := config.Load(flagConfig)
		if err != nil {
			return err
		}
		cfg = c

		opts := []vault.Option{
			vault.WithIterations(cfg.KDFIterations),
			vault.WithLogger(logger),
		}
		store = vault.NewStore(append(opts, storeOptions...)...)

		if prompter == nil {
			prompter = cli.NewTerminal()
		}
		logger.Debug("starting command", "command", cmd.Name(), "iterations", store.Iterations())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagVault, "vault", "", "vault file (default: $PMAN_VAULT or the config file)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: $PMAN_CONFIG or <config dir>/pman/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging to stderr")
}

// vaultPath resolves the vault file for commands operating on an existing vault.
func vaultPath() (string, error) {
	return cfg.ResolveVaultPath(flagVault)
}

// unlockInput reads the vault file and the master password. The password
// buffer must be destroyed by the caller.
func unlockInput() (path string, blob []byte, password *memguard.LockedBuffer, err error) {
	path, err = vaultPath()
	if err != nil {
		return "", nil, nil, err
	}
	blob, err = vaultfile.Read(path)
	if err != nil {
		return "", nil, nil, err
	}
	password, err = prompter.Password("vault password: ")
	if err != nil {
		return "", nil, nil, err
	}
	logger.Debug("read vault file", "path", path, "bytes", len(blob))
	return path, blob, password, nil
}

// userMessage turns an error into the text shown to the user. Wrong
// passwords and corrupted files get the same message.
func userMessage(err error) string {
	prefix := ""
	if errors.Is(err, vault.ErrOtherVault) {
		prefix = "unable to load second vault: "
	}
	switch {
	case errors.Is(err, vault.ErrAuthentication):
		return prefix + "incorrect password or corrupted vault"
	case errors.Is(err, vault.ErrFormat):
		return prefix + "vault file is not in a recognized format"
	case errors.Is(err, vault.ErrNotFound):
		return "credential not found"
	case errors.Is(err, vaultfile.ErrNotFound):
		return fmt.Sprintf("%v (run 'pman init <path>' to create one)", err)
	case errors.Is(err, vaultfile.ErrExists):
		return "vault with that name already exists"
	case errors.Is(err, config.ErrNoVaultPath):
		return "no vault given: use --vault or point " + config.EnvVault + " at the vault file"
	case errors.Is(err, cli.ErrCancelled):
		return "cancelled"
	default:
		return err.Error()
	}
}

// execute runs the root command and returns the process exit code.
func execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\n%s\n\n", userMessage(err))
		return 1
	}
	return 0
}
