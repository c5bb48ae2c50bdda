package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/hbadvisor/internal/config"
	"github.com/HendryAvila/hbadvisor/internal/server"
)

// cli carries state shared by every command once the root has loaded
// configuration.
type cli struct {
	stdout io.Writer
	stderr io.Writer
	cfg    config.Config
	log    *slog.Logger
}

// openApp opens the knowledge store and scheduler for a command.
func (c *cli) openApp() (*server.App, error) {
	return server.NewApp(c.cfg, c.log)
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "hbadvisor",
		Short:         "Hummingbird architecture advisor MCP server",
		Long:          "hbadvisor serves Hummingbird 2.x architecture guidance and violation detection over MCP and keeps its rules current from upstream release notes.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configFile, _ := cmd.Flags().GetString("config")
			v, err := config.New(configFile)
			if err != nil {
				return err
			}
			if err := config.BindFlags(v, cmd.Flags()); err != nil {
				return fmt.Errorf("binding flags: %w", err)
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.log = cfg.Logger()
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default ./hbadvisor.yaml or ~/.hbadvisor/hbadvisor.yaml)")
	pf.String("data-dir", "", "directory holding knowledge.db")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: pretty, text, json")

	root.AddCommand(
		newServeCmd(c),
		newRefreshCmd(c),
		newScanCmd(c),
		newRulesCmd(c),
		newExportCmd(c),
		newVersionCmd(c),
	)
	return root
}
