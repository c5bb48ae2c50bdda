// Package server wires all components and creates the MCP server instance.
//
// This is the composition root: it creates the concrete store, upstream
// client and scheduler and injects them into the tools, prompts and
// resources that depend on interfaces. No business logic lives here.
package server

import (
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/hbadvisor/internal/config"
	"github.com/HendryAvila/hbadvisor/internal/detector"
	"github.com/HendryAvila/hbadvisor/internal/knowledge"
	"github.com/HendryAvila/hbadvisor/internal/prompts"
	"github.com/HendryAvila/hbadvisor/internal/resources"
	"github.com/HendryAvila/hbadvisor/internal/scheduler"
	"github.com/HendryAvila/hbadvisor/internal/tools"
	"github.com/HendryAvila/hbadvisor/internal/upstream"
)

// Version is set at build time via ldflags.
var Version = "dev"

// App holds the long-lived components shared by the MCP server and the CLI.
type App struct {
	Store     *knowledge.Store
	Scheduler *scheduler.Scheduler
	Log       *slog.Logger
}

// NewApp opens the knowledge store and builds the scheduler. Close must be
// called on shutdown.
func NewApp(cfg config.Config, log *slog.Logger) (*App, error) {
	det := detector.New(log.With("component", "detector"))

	store, err := knowledge.New(cfg.Knowledge(),
		knowledge.WithLogger(log.With("component", "knowledge")),
		knowledge.WithDetector(det),
	)
	if err != nil {
		return nil, fmt.Errorf("opening knowledge store: %w", err)
	}

	client := upstream.New(cfg.Upstream(Version))
	sched := scheduler.New(cfg.Scheduler(), client, store,
		scheduler.WithLogger(log.With("component", "scheduler")),
	)

	return &App{Store: store, Scheduler: sched, Log: log}, nil
}

// Close releases the knowledge store.
func (a *App) Close() {
	if err := a.Store.Close(); err != nil {
		a.Log.Warn("knowledge store close", "err", err)
	}
}

// New creates the MCP server with every tool, prompt and resource
// registered against app.
func New(app *App) *server.MCPServer {
	s := server.NewMCPServer(
		"hbadvisor",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Tools ---

	detect := tools.NewDetectTool(app.Store)
	s.AddTool(detect.Definition(), detect.Handle)

	getEntry := tools.NewGetEntryTool(app.Store)
	s.AddTool(getEntry.Definition(), getEntry.Handle)

	listEntries := tools.NewListEntriesTool(app.Store)
	s.AddTool(listEntries.Definition(), listEntries.Handle)

	pitfalls := tools.NewPitfallsTool(app.Store)
	s.AddTool(pitfalls.Definition(), pitfalls.Handle)

	listRules := tools.NewListRulesTool(app.Store)
	s.AddTool(listRules.Definition(), listRules.Handle)

	review := tools.NewReviewRuleTool(app.Store)
	s.AddTool(review.Definition(), review.Handle)

	refresh := tools.NewRefreshTool(app.Scheduler)
	s.AddTool(refresh.Definition(), refresh.Handle)

	// --- Prompts ---

	reviewPrompt := prompts.NewReviewCodePrompt()
	s.AddPrompt(reviewPrompt.Definition(), reviewPrompt.Handle)

	statusPrompt := prompts.NewStatusPrompt()
	s.AddPrompt(statusPrompt.Definition(), statusPrompt.Handle)

	// --- Resources ---

	res := resources.NewHandler(app.Store, app.Scheduler)
	s.AddResource(res.StatsResource(), res.HandleStats)
	s.AddResource(res.RulesResource(), res.HandleRules)

	return s
}

// serverInstructions tells the assistant how to use hbadvisor.
func serverInstructions() string {
	return `You have access to hbadvisor, an architecture advisor for Hummingbird 2.x,
the Swift server framework.

## WHEN TO USE hbadvisor

Use it whenever you write, modify or review Hummingbird code:
- Before writing: read hb_list_pitfalls and the relevant hb_list_entries layer.
- After writing: run hb_detect_violations on the code you produced.
- When reviewing user code: run hb_detect_violations and explain each finding.

Your training data is likely to contain Hummingbird 1.x examples (HBApplication,
HBRequest, EventLoopFuture handlers). Those APIs do not exist in 2.x.
hbadvisor's rules catch them.

## SEVERITY

- critical: the report starts with "BLOCKED". Do not present the code as usable
  until every critical violation is fixed.
- error: the code will not compile against 2.x or is broken at runtime. Fix it.
- warning: deprecated or discouraged. Fix it unless the user says otherwise.

## GENERATED RULES

hbadvisor watches Hummingbird releases and turns deprecations in the release notes
into draft rules. Drafts are NOT used for detection. They only become active when
approved with hb_review_rule. Never approve a rule without asking the user:
a wrong rule flags correct code on every scan.

## TOOLS

- hb_detect_violations(code, file_path?): scan code
- hb_get_entry(id): full guidance for an entry referenced by a violation
- hb_list_entries(layer?): browse patterns by layer
- hb_list_pitfalls(): common mistakes
- hb_list_rules(status?): generated rules
- hb_review_rule(id, decision): approve or reject a generated rule
- hb_refresh_knowledge(): check for a new release now (rate limited)`
}
