package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcpmux/mcpmux/pkg/apperr"
	"github.com/mcpmux/mcpmux/pkg/authserver"
	"github.com/mcpmux/mcpmux/pkg/config"
	"github.com/mcpmux/mcpmux/pkg/domain"
	"github.com/mcpmux/mcpmux/pkg/mcpgateway"
	"github.com/mcpmux/mcpmux/pkg/secretstore"
)

func newServeCommand() *cobra.Command {
	var stateDir string
	var logFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the mcpmuxd gateway daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if stateDir == "" {
				stateDir = filepath.Join(filepath.Dir(flagDBFile), "state")
			}
			if logFile == "" {
				logFile = filepath.Join(filepath.Dir(flagDBFile), "mcpmuxd.log")
			}
			return runServe(cmd.Context(), stateDir, logFile)
		},
	}

	cmd.Flags().StringVar(&stateDir, "state-dir", "", "directory for local-process server state (default: alongside --db)")
	cmd.Flags().StringVar(&logFile, "log-file", "", "path to the JSON log file (default: alongside --db)")

	return cmd
}

func runServe(ctx context.Context, stateDir, logFile string) error {
	app, err := newApp(flagDBFile, stateDir, logFile, flagVerbose)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	settings, err := config.Resolve(ctx, app.Settings)
	if err != nil {
		return fmt.Errorf("mcpmuxd: resolve settings: %w", err)
	}

	authSecret, err := secretstore.KeychainSecret(keychainService, "auth-signing-secret", authserver.MinSecretLength)
	if err != nil {
		return fmt.Errorf("mcpmuxd: obtain auth signing secret: %w", err)
	}

	issuer := fmt.Sprintf("http://127.0.0.1:%d", settings.GatewayPort)
	authConfig := authserver.Config{
		Issuer:       issuer,
		GlobalSecret: authSecret,
	}
	if err := authConfig.Validate(); err != nil {
		return fmt.Errorf("mcpmuxd: invalid auth server config: %w", err)
	}
	authSrv := authserver.New(authserver.Deps{
		Config:  authConfig,
		Clients: app.Clients,
		OAuth:   app.InboundOAuth,
		Clock:   domain.SystemClock{},
		Log:     app.Log,
	})

	gateway := mcpgateway.New(mcpgateway.Deps{
		Spaces:   app.Spacer,
		Grants:   app.Grants,
		Clients:  app.Clients,
		Feature:  app.Feature,
		Pool:     app.Pool,
		Prefixes: app.Prefixes,
		Events:   app.Events,
		Log:      app.Log,
	})

	router := gateway.Router(authSrv, authSrv.OAuthRouter(), authSrv.WellKnownHandler())

	srv := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", settings.GatewayPort),
		Handler: router,
	}

	go reconnectEnabledServers(ctx, app)

	app.Log.Infow("mcpmuxd listening", "addr", srv.Addr, "issuer", issuer)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		app.Log.Infow("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// reconnectEnabledServers auto-connects every enabled InstalledServer
// across every Space at startup, in auto mode (: a background
// reconnection never opens a browser; a server needing interactive OAuth
// simply lands in AwaitingOAuth and waits for a manual `server connect`).
func reconnectEnabledServers(ctx context.Context, app *App) {
	spaces, err := app.Spaces.List(ctx)
	if err != nil {
		app.Log.Warnw("listing spaces for startup reconnect", "error", err)
		return
	}
	for _, space := range spaces {
		installed, err := app.InstalledServers.ListForSpace(ctx, space.ID)
		if err != nil {
			app.Log.Warnw("listing installed servers for startup reconnect", "space", space.ID, "error", err)
			continue
		}
		for _, s := range installed {
			if !s.Enabled {
				continue
			}
			key := domain.Key{SpaceID: space.ID, ServerID: s.ServerID}
			go func() {
				if _, err := app.Pool.Connect(ctx, key, true); err != nil {
					if kind, ok := apperr.KindOf(err); !ok || kind != apperr.OAuthRequired {
						app.Log.Debugw("startup reconnect did not complete", "space", key.SpaceID, "server", key.ServerID, "error", err)
					}
				}
			}()
		}
	}
}
