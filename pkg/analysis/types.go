// Package analysis talks to the external prompt analysis service that proposes
// insights and widgets for a dashboard.
package analysis

import (
	"context"

	"github.com/goliatone/go-dashboard-builder/components/builder"
)

// Client analyzes a prompt against a dashboard.
type Client interface {
	Analyze(ctx context.Context, req Request) (Response, error)
}

// WidgetSummary describes a placed widget to the analysis service.
type WidgetSummary struct {
	ID         string             `json:"id"`
	Type       builder.WidgetType `json:"type"`
	Title      string             `json:"title"`
	SourceData string             `json:"sourceData,omitempty"`
}

// Request is the analysis payload.
type Request struct {
	Prompt      string          `json:"prompt"`
	DashboardID string          `json:"dashboardId,omitempty"`
	Widgets     []WidgetSummary `json:"widgets,omitempty"`
}

// Insight is one finding returned by the service.
type Insight struct {
	Title    string `json:"title"`
	Detail   string `json:"detail"`
	Severity string `json:"severity,omitempty"`
}

// Suggestion proposes a catalog entry.
type Suggestion struct {
	Type     string `json:"type"`
	SourceID string `json:"sourceId"`
	Reason   string `json:"reason,omitempty"`
}

// Response is the analysis result.
type Response struct {
	Summary     string       `json:"summary"`
	Insights    []Insight    `json:"insights"`
	Suggestions []Suggestion `json:"suggestions"`
}

// NewRequest summarizes doc for the given prompt.
func NewRequest(prompt string, doc builder.DashboardDocument) Request {
	req := Request{Prompt: prompt, DashboardID: doc.ID}
	for _, w := range doc.Widgets {
		req.Widgets = append(req.Widgets, WidgetSummary{
			ID:         w.ID,
			Type:       w.Type,
			Title:      w.Title,
			SourceData: w.SourceData,
		})
	}
	return req
}

// WidgetSuggestions converts suggestions for Controller.ApplySuggestions.
// Entries with an unknown widget type are dropped.
func (r Response) WidgetSuggestions() []builder.WidgetSuggestion {
	out := make([]builder.WidgetSuggestion, 0, len(r.Suggestions))
	for _, s := range r.Suggestions {
		t := builder.WidgetType(s.Type)
		if !t.Valid() || s.SourceID == "" {
			continue
		}
		out = append(out, builder.WidgetSuggestion{Type: t, SourceID: s.SourceID, Reason: s.Reason})
	}
	return out
}
