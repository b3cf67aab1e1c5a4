package analysis

import (
	"context"
	"fmt"
	"strings"
)

// MockRule maps prompt keywords to a suggestion.
type MockRule struct {
	Keywords   []string
	Suggestion Suggestion
	Insight    Insight
}

// MockClient answers deterministically from keyword rules, for local demos
// and tests.
type MockClient struct {
	rules []MockRule
}

// NewMockClient builds a mock client. No rules means DefaultMockRules.
func NewMockClient(rules ...MockRule) *MockClient {
	if len(rules) == 0 {
		rules = DefaultMockRules()
	}
	return &MockClient{rules: rules}
}

var _ Client = (*MockClient)(nil)

// DefaultMockRules covers the default engins catalog.
func DefaultMockRules() []MockRule {
	return []MockRule{
		{
			Keywords:   []string{"carburant", "fuel", "consommation"},
			Suggestion: Suggestion{Type: "chart", SourceID: "fuelConsumption", Reason: "suivi de la consommation"},
			Insight:    Insight{Title: "Consommation", Detail: "La consommation de carburant varie selon les mois.", Severity: "info"},
		},
		{
			Keywords:   []string{"maintenance", "entretien", "panne"},
			Suggestion: Suggestion{Type: "kpi", SourceID: "maintenanceDue", Reason: "engins à entretenir"},
			Insight:    Insight{Title: "Maintenance", Detail: "Des engins arrivent en échéance d'entretien.", Severity: "warning"},
		},
		{
			Keywords:   []string{"coût", "cout", "cost"},
			Suggestion: Suggestion{Type: "chart", SourceID: "maintenanceCosts", Reason: "répartition préventif et correctif"},
		},
		{
			Keywords:   []string{"utilisation", "usage", "heures"},
			Suggestion: Suggestion{Type: "chart", SourceID: "monthlyUsage", Reason: "heures d'utilisation mensuelles"},
		},
		{
			Keywords:   []string{"statut", "status", "disponibilité"},
			Suggestion: Suggestion{Type: "chart", SourceID: "statusDistribution", Reason: "répartition par statut"},
		},
	}
}

// Analyze matches the prompt against the rules. Entries already placed on the
// dashboard are not suggested again.
func (c *MockClient) Analyze(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	prompt := strings.ToLower(req.Prompt)
	if strings.TrimSpace(prompt) == "" {
		return Response{}, fmt.Errorf("analysis: prompt is required")
	}
	placed := map[string]bool{}
	for _, w := range req.Widgets {
		placed[w.SourceData] = true
	}
	resp := Response{}
	for _, rule := range c.rules {
		if !matches(prompt, rule.Keywords) {
			continue
		}
		if rule.Insight.Title != "" {
			resp.Insights = append(resp.Insights, rule.Insight)
		}
		if !placed[rule.Suggestion.SourceID] {
			resp.Suggestions = append(resp.Suggestions, rule.Suggestion)
			placed[rule.Suggestion.SourceID] = true
		}
	}
	if len(resp.Suggestions) == 0 && len(resp.Insights) == 0 {
		resp.Summary = "Aucune suggestion pour cette demande."
	} else {
		resp.Summary = fmt.Sprintf("%d suggestion(s), %d observation(s).", len(resp.Suggestions), len(resp.Insights))
	}
	return resp, nil
}

func matches(prompt string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(prompt, k) {
			return true
		}
	}
	return false
}
