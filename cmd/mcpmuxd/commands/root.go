// Package commands implements mcpmuxd's command tree: the long-lived
// `serve` daemon plus operator subcommands for managing spaces, installed
// servers, and inbound clients — root.go's Root() plus one file per noun,
// each holding that noun's verb subcommands.
package commands

import (
	"github.com/spf13/cobra"
)

// persistent flags, bound once on the root command; subcommands read these
// package variables directly.
var (
	flagDBFile  string
	flagVerbose bool
)

// Root returns mcpmuxd's root cobra command.
func Root() *cobra.Command {
	dataDir := defaultDataDir()

	root := &cobra.Command{
		Use:           "mcpmuxd",
		Short:         "mcpmuxd is a local MCP multiplexing gateway",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&flagDBFile, "db", dataDir+"/mcpmuxd.db", "path to the sqlite database file")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug-level logging")

	root.AddCommand(
		newServeCommand(),
		newSpaceCommand(),
		newServerCommand(),
		newClientCommand(),
		newOAuthCommand(),
	)

	return root
}
