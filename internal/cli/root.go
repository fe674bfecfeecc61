package cli

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/me/cognilearn/internal/api"
	"github.com/me/cognilearn/internal/config"
	"github.com/me/cognilearn/internal/credstore"
	"github.com/me/cognilearn/internal/logging"
	"github.com/me/cognilearn/internal/nav"
	"github.com/me/cognilearn/internal/session"
)

// app holds the per-invocation wiring built by the root command.
type app struct {
	flagConfig    string
	flagEnvFile   string
	flagServer    string
	flagStore     string
	flagStorePath string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	in     *bufio.Reader
	cfg    config.ClientConfig
	logger *slog.Logger
	store  credstore.Store
	client *api.Client
	sess   *session.Manager
	gate   *nav.Gate
}

func defaultConfigPath() string {
	dir, err := config.Dir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// NewRootCmd creates the root cobra command for the cognilearn CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(os.Stdin)
}

func newRootCmd(in io.Reader) *cobra.Command {
	a := &app{in: bufio.NewReader(in)}

	root := &cobra.Command{
		Use:   "cognilearn",
		Short: "CogniLearn learning dashboard client",
		Long:  "cognilearn signs in to a CogniLearn backend and shows role-specific dashboards, lessons and reports.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flagConfig, "config", defaultConfigPath(), "Config file (YAML)")
	pf.StringVar(&a.flagEnvFile, "env-file", ".env", "Optional dotenv file")
	pf.StringVar(&a.flagServer, "server", "", "Backend URL (or COGNILEARN_SERVER env)")
	pf.StringVar(&a.flagStore, "store", "", "Credential store driver (file, sqlite, bolt, redis, memory)")
	pf.StringVar(&a.flagStorePath, "store-path", "", "Credential store path")
	pf.BoolVar(&a.flagDebug, "debug", false, "Enable debug logging")
	pf.StringVar(&a.flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&a.flagLogFormat, "log-format", "", "Log format (text, json)")

	root.AddCommand(
		newLoginCmd(a),
		newRegisterCmd(a),
		newDemoCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newScreensCmd(a),
		newDashboardCmd(a),
		newLearnCmd(a),
		newCognitiveCmd(a),
		newReportCmd(a),
	)

	return root
}

// setup loads configuration, opens the credential store and restores the
// stored session before any subcommand runs.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.flagConfig, a.flagEnvFile)
	if err != nil {
		return err
	}
	if a.flagServer != "" {
		cfg.Server = a.flagServer
	}
	if a.flagStore != "" {
		cfg.Store.Driver = a.flagStore
	}
	if a.flagStorePath != "" {
		cfg.Store.Path = a.flagStorePath
	}
	if a.flagLogLevel != "" {
		cfg.LogLevel = a.flagLogLevel
	}
	if a.flagLogFormat != "" {
		cfg.LogFormat = a.flagLogFormat
	}
	if a.flagDebug {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logging.NewLoggerWithWriter(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, cmd.ErrOrStderr())

	ctx := cmd.Context()
	a.store, err = credstore.Open(ctx, cfg.Store, a.logger)
	if err != nil {
		return fmt.Errorf("open credential store: %w", err)
	}
	a.client = api.New(cfg.Server, api.WithTimeout(cfg.Timeout), api.WithLogger(a.logger))
	a.sess = session.NewManager(a.store, a.client, a.logger)
	a.gate = nav.NewGate(a.sess, a.logger)
	a.sess.Hydrate(ctx)
	return nil
}

func (a *app) teardown() error {
	if a.gate != nil {
		a.gate.Close()
	}
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// readLine reads one trimmed line of input, printing prompt first.
func (a *app) readLine(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	line, err := a.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
