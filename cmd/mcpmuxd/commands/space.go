package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mcpmux/mcpmux/pkg/domain"
)

func newSpaceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "space",
		Short: "Manage spaces",
	}
	cmd.AddCommand(
		newSpaceCreateCommand(),
		newSpaceListCommand(),
		newSpaceSetDefaultCommand(),
		newSpaceDeleteCommand(),
	)
	return cmd
}

func newSpaceCreateCommand() *cobra.Command {
	var icon, description string
	var setDefault bool

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new space",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newOperatorApp()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := cmd.Context()
			space, err := app.Spaces.Create(ctx, domain.Space{
				Name:        args[0],
				Icon:        icon,
				Description: description,
				IsDefault:   setDefault,
			})
			if err != nil {
				return err
			}
			if setDefault {
				if err := app.Spaces.SetDefault(ctx, space.ID); err != nil {
					return err
				}
			}
			// Every space gets the built-in "all" and "default" feature sets
			// the moment it exists (builtin FeatureSets), so a
			// server installed into it has somewhere to land by default.
			if err := app.FeatureSets.EnsureBuiltins(ctx, space.ID); err != nil {
				return fmt.Errorf("mcpmuxd: ensure builtin feature sets: %w", err)
			}

			fmt.Printf("created space %s (%s)\n", space.Name, space.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&icon, "icon", "", "icon identifier")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().BoolVar(&setDefault, "default", false, "make this the default space")

	return cmd
}

func newSpaceListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List spaces",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newOperatorApp()
			if err != nil {
				return err
			}
			defer app.Close()

			spaces, err := app.Spaces.List(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
			defer w.Flush()
			fmt.Fprintln(w, "ID\tNAME\tDEFAULT")
			for _, s := range spaces {
				fmt.Fprintf(w, "%s\t%s\t%v\n", s.ID, s.Name, s.IsDefault)
			}
			return nil
		},
	}
}

func newSpaceSetDefaultCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-default <space-id>",
		Short: "Make a space the default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newOperatorApp()
			if err != nil {
				return err
			}
			defer app.Close()
			return app.Spaces.SetDefault(cmd.Context(), args[0])
		},
	}
}

func newSpaceDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <space-id>",
		Short: "Delete a space",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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
			if len(spaces) <= 1 {
				return fmt.Errorf("mcpmuxd: cannot delete the last remaining space")
			}
			for _, s := range spaces {
				if s.ID == args[0] && s.IsDefault {
					return fmt.Errorf("mcpmuxd: cannot delete the default space; set another space as default first")
				}
			}
			return app.Spaces.Delete(ctx, args[0])
		},
	}
}
