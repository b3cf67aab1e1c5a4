// Package queries exposes read-only builder lookups as go-command queriers.
package queries

import (
	"context"
	"time"

	gocommand "github.com/goliatone/go-command"

	"github.com/goliatone/go-dashboard-builder/components/builder"
)

// ListDashboardsInput is the empty list request.
type ListDashboardsInput struct{}

// DashboardSummary is a lightweight listing row.
type DashboardSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	LastModified string `json:"lastModified"`
	Widgets      int    `json:"widgets"`
	Active       bool   `json:"active"`
}

type listService interface {
	List(ctx context.Context) []builder.DashboardDocument
	ActiveID() string
}

// ListDashboardsQuery lists stored dashboards.
type ListDashboardsQuery struct {
	service listService
}

// NewListDashboardsQuery builds the query.
func NewListDashboardsQuery(service listService) *ListDashboardsQuery {
	return &ListDashboardsQuery{service: service}
}

var _ gocommand.Querier[ListDashboardsInput, []DashboardSummary] = (*ListDashboardsQuery)(nil)

// Query returns one summary per dashboard in storage order.
func (q *ListDashboardsQuery) Query(ctx context.Context, _ ListDashboardsInput) ([]DashboardSummary, error) {
	active := q.service.ActiveID()
	docs := q.service.List(ctx)
	out := make([]DashboardSummary, 0, len(docs))
	for _, doc := range docs {
		out = append(out, DashboardSummary{
			ID:           doc.ID,
			Name:         doc.Name,
			LastModified: doc.LastModified.UTC().Format(time.RFC3339),
			Widgets:      len(doc.Widgets),
			Active:       doc.ID == active,
		})
	}
	return out, nil
}

// CurrentDashboardInput is the empty current request.
type CurrentDashboardInput struct{}

// CurrentDashboard is the active document with its edit mode.
type CurrentDashboard struct {
	Dashboard builder.DashboardDocument `json:"dashboard"`
	Mode      builder.Mode              `json:"mode"`
}

type currentService interface {
	Current(ctx context.Context) (builder.DashboardDocument, error)
	Mode() builder.Mode
}

// CurrentDashboardQuery resolves the active dashboard.
type CurrentDashboardQuery struct {
	service currentService
}

// NewCurrentDashboardQuery builds the query.
func NewCurrentDashboardQuery(service currentService) *CurrentDashboardQuery {
	return &CurrentDashboardQuery{service: service}
}

var _ gocommand.Querier[CurrentDashboardInput, CurrentDashboard] = (*CurrentDashboardQuery)(nil)

// Query returns the active dashboard, or its draft while editing.
func (q *CurrentDashboardQuery) Query(ctx context.Context, _ CurrentDashboardInput) (CurrentDashboard, error) {
	doc, err := q.service.Current(ctx)
	if err != nil {
		return CurrentDashboard{}, err
	}
	return CurrentDashboard{Dashboard: doc, Mode: q.service.Mode()}, nil
}
