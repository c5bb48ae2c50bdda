// Package resources implements the hbadvisor MCP resources.
//
// Resources are read-only JSON documents addressed by hbadvisor:// URIs.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/hbadvisor/internal/knowledge"
	"github.com/HendryAvila/hbadvisor/internal/rules"
	"github.com/HendryAvila/hbadvisor/internal/scheduler"
)

const (
	StatsURI = "hbadvisor://knowledge/stats"
	RulesURI = "hbadvisor://rules/dynamic"
)

// Source is what the resources read from the knowledge store.
type Source interface {
	Stats() knowledge.Stats
	DynamicRules(status rules.ReviewStatus) []rules.ViolationRule
}

// UpdateStatus reports on the update scheduler.
type UpdateStatus interface {
	State() scheduler.State
	LastReport() (scheduler.Report, bool)
}

// Handler serves the hbadvisor resources.
type Handler struct {
	src     Source
	updates UpdateStatus // nil when no scheduler runs (CLI one-shots)
}

// NewHandler creates a resource Handler. updates may be nil.
func NewHandler(src Source, updates UpdateStatus) *Handler {
	return &Handler{src: src, updates: updates}
}

// StatsResource returns the MCP resource definition for store statistics.
func (h *Handler) StatsResource() mcp.Resource {
	return mcp.NewResource(
		StatsURI,
		"Knowledge Base Statistics",
		mcp.WithResourceDescription("Entry and rule counts, review backlog and last update cycle"),
		mcp.WithMIMEType("application/json"),
	)
}

// RulesResource returns the MCP resource definition for generated rules.
func (h *Handler) RulesResource() mcp.Resource {
	return mcp.NewResource(
		RulesURI,
		"Generated Rules",
		mcp.WithResourceDescription("Every rule generated from upstream release notes, newest first"),
		mcp.WithMIMEType("application/json"),
	)
}

type statsDoc struct {
	knowledge.Stats
	Scheduler  string            `json:"scheduler,omitempty"`
	LastUpdate *scheduler.Report `json:"last_update,omitempty"`
}

// HandleStats returns store statistics as JSON.
func (h *Handler) HandleStats(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	doc := statsDoc{Stats: h.src.Stats()}
	if h.updates != nil {
		doc.Scheduler = h.updates.State().String()
		if rep, ok := h.updates.LastReport(); ok {
			doc.LastUpdate = &rep
		}
	}
	return jsonResource(req.Params.URI, doc)
}

// HandleRules returns all generated rules as JSON.
func (h *Handler) HandleRules(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonResource(req.Params.URI, h.src.DynamicRules(""))
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
