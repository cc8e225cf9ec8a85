package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mcpmux/mcpmux/pkg/domain"
)

// newOAuthCommand gives operators a cross-space view of outbound OAuth
// state, grounded on the teacher's own `docker mcp oauth ls`. Everything
// else that command tree exposes (authorize/revoke/register) is per-server
// here and already lives under `server` (connect/disconnect/logout):
// mcpmuxd's outbound OAuth is DCR-only, so there is no standalone
// client-credential registration step to expose separately.
func newOAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oauth",
		Short: "Inspect outbound OAuth status across every space",
	}
	cmd.AddCommand(newOAuthListCommand())
	return cmd
}

func newOAuthListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List every oauth-capable installed server and its connection state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newOperatorApp()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			spaces, err := app.Spaces.List(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
			defer w.Flush()
			fmt.Fprintln(w, "SPACE\tSERVER\tCONNECTED\tDCR REGISTERED")
			for _, space := range spaces {
				servers, err := app.InstalledServers.ListForSpace(ctx, space.ID)
				if err != nil {
					return err
				}
				for _, s := range servers {
					if s.CachedDefinition.Auth != domain.AuthOAuth {
						continue
					}
					key := domain.Key{SpaceID: space.ID, ServerID: s.ServerID}
					_, registered, err := app.OAuthRegs.Get(ctx, key)
					if err != nil {
						return err
					}
					fmt.Fprintf(w, "%s\t%s\t%v\t%v\n", space.Name, s.ServerID, s.OAuthConnected, registered)
				}
			}
			return nil
		},
	}
	return cmd
}
