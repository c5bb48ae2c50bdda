package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/hbadvisor/internal/server"
)

func newVersionCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// No config or store needed.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(c.stdout, "hbadvisor v%s\n", server.Version)
		},
	}
}
