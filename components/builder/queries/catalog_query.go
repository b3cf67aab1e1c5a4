package queries

import (
	"context"

	gocommand "github.com/goliatone/go-command"

	"github.com/goliatone/go-dashboard-builder/components/builder"
)

// CatalogInput optionally narrows the listing to one widget type.
type CatalogInput struct {
	Type builder.WidgetType `json:"type,omitempty"`
}

type catalogService interface {
	Catalog() (builder.CatalogListing, error)
}

// CatalogQuery lists the catalog entries users may place.
type CatalogQuery struct {
	service catalogService
}

// NewCatalogQuery builds the query.
func NewCatalogQuery(service catalogService) *CatalogQuery {
	return &CatalogQuery{service: service}
}

var _ gocommand.Querier[CatalogInput, builder.CatalogListing] = (*CatalogQuery)(nil)

// Query returns the listing, filtered by type when one is given.
func (q *CatalogQuery) Query(_ context.Context, in CatalogInput) (builder.CatalogListing, error) {
	listing, err := q.service.Catalog()
	if err != nil {
		return builder.CatalogListing{}, err
	}
	switch in.Type {
	case builder.WidgetKPI:
		listing.Charts = []builder.CatalogEntry{}
	case builder.WidgetChart:
		listing.KPI = []builder.CatalogEntry{}
	}
	return listing, nil
}
