package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/pqmsg/pqmsg"
	"github.com/pqmsg/pqmsg/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	envHome       = "PQMSG_HOME"
	envRelay      = "PQMSG_RELAY"
	envPassphrase = "PQMSG_PASSPHRASE"

	configFile = "config.yaml"
	dbDir      = "db"
)

var errNoIdentity = errors.New("no identity found; run pqmsg init first")

// env holds flag values and the resources opened for one invocation.
type env struct {
	home       string
	passphrase string
	relayURL   string
	configPath string
	verbose    bool

	cfg    *pqmsg.FileConfig
	logger *logrus.Logger

	store     *store.Badger
	messenger *pqmsg.Messenger
}

// Execute runs the CLI with the process arguments.
func Execute() error {
	return run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	root, e := newRootCmd()
	defer e.close()

	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func newRootCmd() (*cobra.Command, *env) {
	e := &env{}
	root := &cobra.Command{
		Use:          "pqmsg",
		Short:        "Post-quantum end-to-end encrypted messaging",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.setup(cmd)
		},
	}

	root.PersistentFlags().StringVar(&e.home, "home", "", "data directory (default ~/.pqmsg)")
	root.PersistentFlags().StringVarP(&e.passphrase, "passphrase", "p", "", "passphrase sealing the stored identity")
	root.PersistentFlags().StringVar(&e.relayURL, "relay", "", "relay WebSocket URL (e.g. ws://127.0.0.1:8700/)")
	root.PersistentFlags().StringVar(&e.configPath, "config", "", "config file (default <home>/config.yaml)")
	root.PersistentFlags().BoolVarP(&e.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		initCmd(e),
		whoamiCmd(e),
		contactCmd(e),
		sealCmd(e),
		openCmd(e),
		sendCmd(e),
		listenCmd(e),
		historyCmd(e),
		relayCmd(e),
	)
	return root, e
}

func (e *env) setup(cmd *cobra.Command) error {
	// Load .env file if it exists (won't error if missing)
	_ = godotenv.Load()

	flags := cmd.Flags()
	fromEnv := func(flag, key string, dst *string) {
		if !flags.Changed(flag) {
			*dst = os.Getenv(key)
		}
	}
	fromEnv("home", envHome, &e.home)
	fromEnv("relay", envRelay, &e.relayURL)
	fromEnv("passphrase", envPassphrase, &e.passphrase)

	if e.home == "" {
		dir, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		e.home = filepath.Join(dir, ".pqmsg")
	}
	if err := os.MkdirAll(e.home, 0o700); err != nil {
		return err
	}

	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	e.cfg = cfg

	e.logger = cfg.Logger()
	e.logger.SetOutput(cmd.ErrOrStderr())
	switch {
	case e.verbose:
		e.logger.SetLevel(logrus.DebugLevel)
	case cfg.LogLevel == "":
		e.logger.SetLevel(logrus.WarnLevel)
	}
	return nil
}

func (e *env) loadConfig() (*pqmsg.FileConfig, error) {
	path := e.configPath
	if path == "" {
		path = filepath.Join(e.home, configFile)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return &pqmsg.FileConfig{}, nil
		}
	}
	return pqmsg.LoadConfig(path)
}

func (e *env) openStore() (*store.Badger, error) {
	if e.store != nil {
		return e.store, nil
	}
	st, err := store.OpenBadger(filepath.Join(e.home, dbDir), []byte(e.passphrase), e.logger)
	if err != nil {
		return nil, err
	}
	e.store = st
	return st, nil
}

// open returns the messenger for the home directory. Unless creating is set
// an identity must already be stored.
func (e *env) open(creating bool) (*pqmsg.Messenger, error) {
	if e.messenger != nil {
		return e.messenger, nil
	}
	st, err := e.openStore()
	if err != nil {
		return nil, err
	}
	if !creating {
		if _, err := st.GetCurrentIdentity(); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, errNoIdentity
			}
			return nil, fmt.Errorf("load identity: %w", err)
		}
	}

	opts := append(e.cfg.Options(), pqmsg.WithLogger(e.logger))
	if e.relayURL != "" {
		opts = append(opts, pqmsg.WithRelay(e.relayURL))
	}

	m, err := pqmsg.New(st, st, st, opts...)
	if err != nil {
		return nil, err
	}
	e.messenger = m
	return m, nil
}

func (e *env) close() {
	if e.messenger != nil {
		_ = e.messenger.Close()
		e.messenger = nil
	}
	if e.store != nil {
		_ = e.store.Close()
		e.store = nil
	}
}

// displayName returns the contact name for did, or did itself.
func displayName(m *pqmsg.Messenger, did string) string {
	if did == m.DID() {
		return "me"
	}
	if c, err := m.Contact(did); err == nil && c.Name != "" {
		return c.Name
	}
	return did
}

func printMessage(w io.Writer, m *pqmsg.Messenger, msg *pqmsg.Message) {
	fmt.Fprintf(w, "[%s] %s: %s\n", msg.Timestamp.Local().Format("2006-01-02 15:04:05"), displayName(m, msg.Sender), msg.Content)
}
