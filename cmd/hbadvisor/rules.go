package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/hbadvisor/internal/rules"
)

func newRulesCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List and review rules generated from release notes",
	}
	cmd.AddCommand(
		newRulesListCmd(c),
		newRulesReviewCmd(c, "approve", rules.StatusApproved),
		newRulesReviewCmd(c, "reject", rules.StatusRejected),
	)
	return cmd
}

func newRulesListCmd(c *cli) *cobra.Command {
	var (
		status string
		static bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List generated rules, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var st rules.ReviewStatus
			if status != "" {
				parsed, err := rules.ParseReviewStatus(status)
				if err != nil {
					return err
				}
				st = parsed
			}

			app, err := c.openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			if static {
				tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tSEVERITY\tKIND\tPATTERN")
				for _, r := range app.Store.StaticRules() {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Severity, r.PatternKind, r.Pattern)
				}
				return tw.Flush()
			}

			rs := app.Store.DynamicRules(st)
			if len(rs) == 0 {
				fmt.Fprintln(c.stdout, "No generated rules.")
				return nil
			}

			tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSEVERITY\tSTATUS\tPATTERN")
			for _, r := range rs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Severity, r.ReviewStatus, r.Pattern)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status: draft, approved, rejected")
	cmd.Flags().BoolVar(&static, "static", false, "list the built-in rule catalogue instead")
	cmd.MarkFlagsMutuallyExclusive("status", "static")
	return cmd
}

func newRulesReviewCmd(c *cli, verb string, status rules.ReviewStatus) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " ID...",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " generated rules",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			for _, id := range args {
				r, err := app.Store.SetReviewStatus(id, status)
				if err != nil {
					return fmt.Errorf("%s %s: %w", verb, id, err)
				}
				fmt.Fprintf(c.stdout, "%s: %s\n", r.ID, r.ReviewStatus)
			}
			return nil
		},
	}
}
