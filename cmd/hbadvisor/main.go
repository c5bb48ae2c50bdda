// hbadvisor: Hummingbird architecture advisor MCP server.
//
// hbadvisor serves architecture guidance and violation detection for
// Hummingbird 2.x (Swift) projects to any MCP-capable AI coding tool, and
// keeps its rules current by turning deprecations in upstream release
// notes into draft rules for review.
//
// Usage:
//
//	hbadvisor serve          # Start the MCP server (stdio transport)
//	hbadvisor refresh        # Run one update cycle now
//	hbadvisor scan FILE...   # Scan files, exit 2 on critical violations
//	hbadvisor rules list     # Show generated rules
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// exitError ends the process with a specific status and no error message.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}
