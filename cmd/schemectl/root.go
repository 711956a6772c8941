package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"scheme-admin/internal/adminapi"
	"scheme-admin/internal/apiclient"
	"scheme-admin/internal/config"
	"scheme-admin/internal/session"
)

// app holds what every subcommand needs once flags and environment are read.
type app struct {
	cfg   *config.ClientConfig
	log   *slog.Logger
	store session.Store
	api   *adminapi.Client
	out   io.Writer
}

type rootFlags struct {
	apiURL    string
	tokenFile string
	verbose   bool
}

func newRootCmd() *cobra.Command {
	var flags rootFlags
	a := &app{}

	root := &cobra.Command{
		Use:           "schemectl",
		Short:         "Manage government schemes from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd, flags)
		},
	}
	root.PersistentFlags().StringVar(&flags.apiURL, "api-url", "", "backend base URL (overrides SCHEME_ADMIN_API_URL)")
	root.PersistentFlags().StringVar(&flags.tokenFile, "token-file", "", "session file (overrides SCHEME_ADMIN_TOKEN_FILE)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging to stderr")

	root.AddCommand(
		newLoginCmd(a),
		newRegisterCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newWatchCmd(a),
		newCatalogCmd(a, "states", "List states"),
		newCatalogCmd(a, "categories", "List categories"),
		newSchemesCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command, flags rootFlags) error {
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}
	if flags.apiURL != "" {
		cfg.APIURL = flags.apiURL
	}
	if flags.tokenFile != "" {
		cfg.TokenFile = flags.tokenFile
	}
	level := cfg.LogLevel
	if flags.verbose {
		level = slog.LevelDebug
	}

	a.cfg = cfg
	a.out = cmd.OutOrStdout()
	a.log = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	switch {
	case strings.TrimSpace(cfg.Token) != "":
		a.store = session.NewMemory(cfg.Token)
	case cfg.TokenFile != "":
		a.store = session.NewFileStore(cfg.TokenFile)
	default:
		a.store = session.NewFileStore(session.DefaultPath())
	}

	client, err := apiclient.New(cfg.APIURL, a.store,
		apiclient.WithTimeout(cfg.HTTPTimeout),
		apiclient.WithLogger(a.log),
	)
	if err != nil {
		return fmt.Errorf("api client: %w", err)
	}
	a.api = adminapi.New(client, a.store)
	return nil
}

// requireSession fails early when no token is available for admin calls.
func (a *app) requireSession() error {
	if a.store.Token() == "" {
		return errors.New("not logged in; run schemectl login")
	}
	return nil
}

func envOr(value, key string) string {
	if value != "" {
		return value
	}
	return os.Getenv(key)
}
