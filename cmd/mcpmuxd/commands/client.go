package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mcpmux/mcpmux/pkg/domain"
)

func newClientCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Manage registered inbound AI-assistant clients",
	}
	cmd.AddCommand(
		newClientRegisterCommand(),
		newClientListCommand(),
		newClientApproveCommand(),
		newClientGrantCommand(),
		newClientDeleteCommand(),
	)
	return cmd
}

func newClientRegisterCommand() *cobra.Command {
	var displayName, alias, connectionMode, lockedSpaceID string
	var approved bool

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Pre-register an inbound client outside of dynamic client registration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newOperatorApp()
			if err != nil {
				return err
			}
			defer app.Close()

			mode := domain.ConnectionMode(connectionMode)
			if mode == "" {
				mode = domain.ConnectionFollowActive
			}

			client, err := app.Clients.Create(cmd.Context(), domain.InboundClient{
				ClientID:         uuid.NewString(),
				RegistrationType: domain.ClientPreRegistered,
				DisplayName:      displayName,
				Alias:            alias,
				Approved:         approved,
				ConnectionMode:   mode,
				LockedSpaceID:    lockedSpaceID,
			})
			if err != nil {
				return err
			}

			fmt.Printf("registered client %s (%s)\n", client.DisplayName, client.ClientID)
			return nil
		},
	}

	cmd.Flags().StringVar(&displayName, "name", "", "display name")
	cmd.Flags().StringVar(&alias, "alias", "", "short alias")
	cmd.Flags().BoolVar(&approved, "approve", false, "approve immediately instead of requiring a later approve")
	cmd.Flags().StringVar(&connectionMode, "connection-mode", "", "locked, follow_active, or ask_on_change (default follow_active)")
	cmd.Flags().StringVar(&lockedSpaceID, "locked-space", "", "space id to lock to, required when --connection-mode=locked")

	return cmd
}

func newClientListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered clients",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newOperatorApp()
			if err != nil {
				return err
			}
			defer app.Close()

			clients, err := app.Clients.List(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
			defer w.Flush()
			fmt.Fprintln(w, "CLIENT ID\tNAME\tTYPE\tAPPROVED\tCONNECTION MODE")
			for _, c := range clients {
				fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\n", c.ClientID, c.DisplayName, c.RegistrationType, c.Approved, c.ConnectionMode)
			}
			return nil
		},
	}
}

func newClientApproveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <client-id>",
		Short: "Approve a client registered via dynamic client registration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newOperatorApp()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			client, ok, err := app.Clients.Get(ctx, args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("mcpmuxd: client %s not found", args[0])
			}
			client.Approved = true
			return app.Clients.Update(ctx, client)
		},
	}
}

func newClientGrantCommand() *cobra.Command {
	var spaceID string
	var featureSets []string

	cmd := &cobra.Command{
		Use:   "grant <client-id>",
		Short: "Set the feature sets a client is granted within a space",
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
			return app.Clients.SetGrants(ctx, args[0], space.ID, featureSets)
		},
	}

	cmd.Flags().StringVar(&spaceID, "space", "", "space id (default: the default space)")
	cmd.Flags().StringSliceVar(&featureSets, "feature-set", nil, "feature set id to grant (repeatable, or comma-separated)")

	return cmd
}

func newClientDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <client-id>",
		Short: "Remove a registered client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newOperatorApp()
			if err != nil {
				return err
			}
			defer app.Close()
			return app.Clients.Delete(cmd.Context(), args[0])
		},
	}
}
