// Command mcpmuxd is mcpmux's local MCP multiplexing gateway daemon.
package main

import (
	"fmt"
	"os"

	"github.com/mcpmux/mcpmux/cmd/mcpmuxd/commands"
)

func main() {
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
