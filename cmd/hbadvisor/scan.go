package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/HendryAvila/hbadvisor/internal/detector"
	"github.com/HendryAvila/hbadvisor/internal/rules"
	"github.com/HendryAvila/hbadvisor/internal/tools"
)

// exitCritical is the status scan exits with when any violation at or above
// the --fail-on severity is found, so CI can gate on it.
const exitCritical = 2

type fileResult struct {
	File    string           `json:"file"`
	Matches []detector.Match `json:"matches"`
}

func newScanCmd(c *cli) *cobra.Command {
	var (
		asJSON bool
		failOn string
	)
	cmd := &cobra.Command{
		Use:   "scan FILE...",
		Short: "Scan source files for violations (use - for stdin)",
		Long:  "Scan source files against the static rules and approved generated rules. Exits with status 2 when any violation at or above --fail-on is found.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			threshold, err := rules.ParseSeverity(failOn)
			if err != nil {
				return err
			}

			app, err := c.openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			results := make([]fileResult, 0, len(args))
			failed := false
			for _, path := range args {
				text, hint, err := readSource(path, cmd.InOrStdin())
				if err != nil {
					return err
				}
				matches := app.Store.DetectViolations(text, hint)
				failed = failed || detector.AtLeast(matches, threshold)
				results = append(results, fileResult{File: path, Matches: matches})
			}

			if asJSON {
				enc := json.NewEncoder(c.stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(results); err != nil {
					return err
				}
			} else {
				for _, r := range results {
					fmt.Fprintln(c.stdout, tools.RenderViolations(r.Matches, r.File))
				}
			}

			if failed {
				return &exitError{code: exitCritical}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print matches as JSON")
	cmd.Flags().StringVar(&failOn, "fail-on", string(rules.SeverityCritical), "lowest severity that fails the scan: critical, error, warning")
	return cmd
}

// readSource returns the file text and the path hint for detection.
func readSource(path string, stdin io.Reader) (string, string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), path, nil
}
