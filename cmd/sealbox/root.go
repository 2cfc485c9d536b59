package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/alexjbarnes/sealbox/internal/api"
	"github.com/alexjbarnes/sealbox/internal/config"
	"github.com/alexjbarnes/sealbox/internal/crypto"
	"github.com/alexjbarnes/sealbox/internal/explorer"
	"github.com/alexjbarnes/sealbox/internal/logging"
	"github.com/alexjbarnes/sealbox/internal/payload"
	"github.com/alexjbarnes/sealbox/internal/state"
)

// Command annotations read by the root pre-run hook.
const (
	annotateApp   = "sealbox/app"
	annotateLogin = "sealbox/login"
)

// app holds everything a subcommand needs. It is opened lazily so help
// output works without configuration.
type app struct {
	cfg      *config.Config
	e        *explorer.Explorer
	state    *state.State
	logger   *slog.Logger
	out      io.Writer
	errOut   io.Writer
	password func() (string, error)

	closers []func()
}

// open loads configuration and builds the explorer over the HTTP client.
func (a *app) open() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.Environment, a.errOut)
	logger.Debug("sealbox starting",
		slog.String("version", Version),
		slog.String("api_url", cfg.APIURL),
	)

	appState, err := state.LoadAt(cfg.StatePath, cfg.HistoryLimit)
	if err != nil {
		return fmt.Errorf("loading state: %w", err)
	}

	client := api.NewClient(cfg.APIURL, cfg.APIToken, api.NewHTTPClient(cfg.HTTPTimeout))

	e := explorer.New(client, crypto.NewNative(), appState, explorer.Options{
		Logger:      logger,
		Development: !cfg.IsProduction(),
		Pipeline: payload.Options{
			MaxEncryptedSize: cfg.MaxEncryptedSize,
			HexChunkSize:     cfg.HexChunkSize,
		},
		DeleteConcurrency: cfg.DeleteConcurrency,
	})

	a.cfg = cfg
	a.logger = logger
	a.state = appState
	a.e = e
	a.closers = append(a.closers, func() { appState.Close() }, e.Close)

	return nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}

	a.closers = nil
}

// unlock derives the master key and opens the keypair. The preferred
// collection, if any, becomes active.
func (a *app) unlock(ctx context.Context) error {
	password := a.cfg.Password
	if password == "" {
		p, err := a.password()
		if err != nil {
			return err
		}

		password = p
	}

	return a.e.Login(ctx, a.cfg.Email, password)
}

// login unlocks and fails when no collection is selected.
func (a *app) login(ctx context.Context) error {
	if err := a.unlock(ctx); err != nil {
		return err
	}

	if a.e.ActiveCollection() == "" {
		return fmt.Errorf("no collection selected, run: sealbox use <collection-id>")
	}

	return nil
}

// needs marks cmd as requiring the opened app and, with login, an
// unlocked key hierarchy and an active collection.
func needs(cmd *cobra.Command, login bool) *cobra.Command {
	cmd.Annotations = map[string]string{annotateApp: "true"}
	if login {
		cmd.Annotations[annotateLogin] = "true"
	}

	return cmd
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "sealbox",
		Short: "sealbox - a client for an end-to-end encrypted file store",
		Long: `sealbox browses and edits collections on an end-to-end encrypted file
store. File contents are encrypted locally with per-collection keys; the
server only ever sees ciphertext.

Configuration is read from the environment and an optional .env file.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[annotateApp] == "" {
				return nil
			}

			if a.e == nil {
				if err := a.open(); err != nil {
					return err
				}
			}

			if cmd.Annotations[annotateLogin] == "" {
				return nil
			}

			return a.login(cmd.Context())
		},
	}

	root.SetOut(a.out)
	root.SetErr(a.errOut)

	root.AddCommand(
		needs(a.useCmd(), false),
		needs(a.treeCmd(), true),
		needs(a.mkdirCmd(), true),
		needs(a.uploadCmd(), true),
		needs(a.updateCmd(), true),
		needs(a.downloadCmd(), true),
		needs(a.renameCmd(), true),
		needs(a.rmCmd(), true),
		needs(a.watchCmd(), true),
		needs(a.serveCmd(), true),
		needs(a.historyCmd(), false),
		needs(a.logoutCmd(), false),
	)

	return root
}
