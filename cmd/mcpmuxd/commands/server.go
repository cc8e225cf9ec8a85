package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mcpmux/mcpmux/pkg/domain"
)

func newServerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Manage installed MCP servers",
	}
	cmd.AddCommand(
		newServerInstallCommand(),
		newServerListCommand(),
		newServerUninstallCommand(),
		newServerEnableCommand(),
		newServerDisableCommand(),
		newServerConnectCommand(),
		newServerDisconnectCommand(),
		newServerLogoutCommand(),
	)
	return cmd
}

func newServerInstallCommand() *cobra.Command {
	var spaceID, alias, command string
	var argv, env, headers []string
	var url string
	var transportKind string
	var auth string

	cmd := &cobra.Command{
		Use:   "install <server-id>",
		Short: "Install a server definition into a space",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newOperatorApp()
			if err != nil {
				return err
			}
			defer app.Close()

			serverID := args[0]
			ctx := cmd.Context()

			space, err := resolveSpace(ctx, app, spaceID)
			if err != nil {
				return err
			}

			def := domain.ServerDefinition{
				ServerID: serverID,
				Alias:    alias,
				Command:  command,
			}
			switch domain.TransportKind(transportKind) {
			case domain.TransportHTTP:
				def.Transport = domain.TransportHTTP
				def.URLTemplate = url
				def.HeaderTemplate = splitKV(headers)
			default:
				def.Transport = domain.TransportLocalProcess
				def.ArgvTemplate = argv
				def.EnvTemplate = splitKV(env)
			}
			if auth != "" {
				def.Auth = domain.AuthKind(auth)
			} else {
				def.Auth = domain.AuthNone
			}

			installed, err := app.InstalledServers.Create(ctx, domain.InstalledServer{
				SpaceID:          space.ID,
				ServerID:         serverID,
				Enabled:          true,
				CachedDefinition: def,
			})
			if err != nil {
				return err
			}

			// A freshly installed server gets its own server_all FeatureSet
			// so a client can be granted "every tool this server has" without
			// naming them one by one.
			if _, err := app.FeatureSets.EnsureServerAll(ctx, space.ID, serverID); err != nil {
				return fmt.Errorf("mcpmuxd: ensure server_all feature set: %w", err)
			}

			fmt.Printf("installed %s into space %s\n", installed.ServerID, space.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&spaceID, "space", "", "space id (default: the default space)")
	cmd.Flags().StringVar(&alias, "alias", "", "short alias used for qualified-name prefix assignment")
	cmd.Flags().StringVar(&command, "command", "", "local-process command to run")
	cmd.Flags().StringArrayVar(&argv, "arg", nil, "argv entry (repeatable), may contain ${input:NAME}")
	cmd.Flags().StringArrayVar(&env, "env", nil, "KEY=VALUE environment entry (repeatable)")
	cmd.Flags().StringVar(&url, "url", "", "HTTP transport URL template, may contain ${input:NAME}")
	cmd.Flags().StringArrayVar(&headers, "header", nil, "KEY=VALUE HTTP header template entry (repeatable)")
	cmd.Flags().StringVar(&transportKind, "transport", "local_process", "local_process or http")
	cmd.Flags().StringVar(&auth, "auth", "", "none, api_key, optional_api_key, or oauth")

	return cmd
}

func newServerListCommand() *cobra.Command {
	var spaceID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List installed servers in a space",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newOperatorApp()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			space, err := resolveSpace(ctx, app, spaceID)
			if err != nil {
				return err
			}

			servers, err := app.InstalledServers.ListForSpace(ctx, space.ID)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
			defer w.Flush()
			fmt.Fprintln(w, "SERVER\tENABLED\tOAUTH CONNECTED\tSTATUS")
			for _, s := range servers {
				status := "disconnected"
				if inst, ok := app.Pool.Snapshot(domain.Key{SpaceID: space.ID, ServerID: s.ServerID}); ok {
					status = string(inst.Status)
				}
				fmt.Fprintf(w, "%s\t%v\t%v\t%s\n", s.ServerID, s.Enabled, s.OAuthConnected, status)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&spaceID, "space", "", "space id (default: the default space)")
	return cmd
}

func newServerUninstallCommand() *cobra.Command {
	var spaceID string
	cmd := &cobra.Command{
		Use:   "uninstall <server-id>",
		Short: "Uninstall a server from a space",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newOperatorApp()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			space, err := resolveSpace(ctx, app, spaceID)
			if err != nil {
				return err
			}
			return app.Pool.Uninstall(ctx, domain.Key{SpaceID: space.ID, ServerID: args[0]})
		},
	}
	cmd.Flags().StringVar(&spaceID, "space", "", "space id (default: the default space)")
	return cmd
}

func newServerEnableCommand() *cobra.Command {
	return newServerToggleCommand("enable", true)
}

func newServerDisableCommand() *cobra.Command {
	return newServerToggleCommand("disable", false)
}

func newServerToggleCommand(use string, enabled bool) *cobra.Command {
	var spaceID string
	cmd := &cobra.Command{
		Use:   use + " <server-id>",
		Short: use + " an installed server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newOperatorApp()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			space, err := resolveSpace(ctx, app, spaceID)
			if err != nil {
				return err
			}
			key := domain.Key{SpaceID: space.ID, ServerID: args[0]}
			installed, err := app.InstalledServers.Get(ctx, key)
			if err != nil {
				return err
			}
			installed.Enabled = enabled
			if err := app.InstalledServers.Update(ctx, installed); err != nil {
				return err
			}
			if !enabled {
				return app.Pool.Disconnect(ctx, key)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&spaceID, "space", "", "space id (default: the default space)")
	return cmd
}

func newServerConnectCommand() *cobra.Command {
	var spaceID string
	cmd := &cobra.Command{
		Use:   "connect <server-id>",
		Short: "Connect an installed server, completing interactive OAuth if needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newOperatorApp()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			space, err := resolveSpace(ctx, app, spaceID)
			if err != nil {
				return err
			}
			// Manual connects are never auto: a server needing interactive
			// OAuth opens the browser rather than landing in AwaitingOAuth.
			inst, err := app.Pool.Connect(ctx, domain.Key{SpaceID: space.ID, ServerID: args[0]}, false)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s\n", args[0], inst.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&spaceID, "space", "", "space id (default: the default space)")
	return cmd
}

func newServerDisconnectCommand() *cobra.Command {
	var spaceID string
	cmd := &cobra.Command{
		Use:   "disconnect <server-id>",
		Short: "Disconnect a connected server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newOperatorApp()
			if err != nil {
				return err
			}
			defer app.Close()
			ctx := cmd.Context()
			space, err := resolveSpace(ctx, app, spaceID)
			if err != nil {
				return err
			}
			return app.Pool.Disconnect(ctx, domain.Key{SpaceID: space.ID, ServerID: args[0]})
		},
	}
	cmd.Flags().StringVar(&spaceID, "space", "", "space id (default: the default space)")
	return cmd
}

func newServerLogoutCommand() *cobra.Command {
	var spaceID string
	cmd := &cobra.Command{
		Use:   "logout <server-id>",
		Short: "Clear stored OAuth tokens for a server without uninstalling it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newOperatorApp()
			if err != nil {
				return err
			}
			defer app.Close()
			ctx := cmd.Context()
			space, err := resolveSpace(ctx, app, spaceID)
			if err != nil {
				return err
			}
			return app.Pool.Logout(ctx, domain.Key{SpaceID: space.ID, ServerID: args[0]})
		},
	}
	cmd.Flags().StringVar(&spaceID, "space", "", "space id (default: the default space)")
	return cmd
}

// resolveSpace returns the space named by id, or the default space when id
// is empty — every operator subcommand that takes an optional --space flag
// shares this resolution.
func resolveSpace(ctx context.Context, app *App, id string) (domain.Space, error) {
	if id != "" {
		return app.Spaces.Get(ctx, id)
	}
	return app.Spaces.GetDefault(ctx)
}

func splitKV(entries []string) map[string]string {
	if len(entries) == 0 {
		return nil
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		k, v, ok := strings.Cut(e, "=")
		if !ok {
			continue
		}
		out[k] = v
	}
	return out
}
