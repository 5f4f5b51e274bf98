// Command docsyncd is a development server,
// serving in-memory docsync collections over http for remote.Collection
// clients.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docsyncd",
		Short: "docsync development server",
	}
	cmd.AddCommand(newServeCommand())
	return cmd
}
