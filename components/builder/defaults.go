package builder

import "time"

const (
	// StarterDashboardID is the id of the dashboard seeded into an empty store.
	StarterDashboardID = "default-dashboard"
	// StarterDashboardName is the fixed name of the seeded dashboard.
	StarterDashboardName = "Tableau de bord principal"
)

var (
	defaultKPIDefinitions = []CatalogEntry{
		{
			ID:    "totalEquipments",
			Title: "Total des engins",
			Content: KPIConfig{
				Value:       "2,845",
				Trend:       trend("+12.5%"),
				Description: "Engins suivis sur l'ensemble des sites",
			},
		},
		{
			ID:    "activeEquipments",
			Title: "Engins actifs",
			Content: KPIConfig{
				Value:       "2,134",
				Trend:       trend("+4.2%"),
				Description: "Engins en service ce mois-ci",
			},
		},
		{
			ID:    "maintenanceDue",
			Title: "Maintenances prévues",
			Content: KPIConfig{
				Value:       "187",
				Trend:       trend("-3.1%"),
				Description: "Interventions planifiées sous 30 jours",
			},
		},
		{
			ID:    "utilizationRate",
			Title: "Taux d'utilisation",
			Content: KPIConfig{
				Value:       "78%",
				Trend:       nil,
				Description: "Heures moteur sur heures disponibles",
			},
		},
	}

	defaultChartDefinitions = []CatalogEntry{
		{
			ID:    "equipmentByType",
			Title: "Engins par type",
			Content: ChartConfig{
				Type: ChartBar,
				Data: []ChartRecord{
					{"name": "Pelles", "value": 540.0},
					{"name": "Chargeuses", "value": 420.0},
					{"name": "Bulldozers", "value": 310.0},
					{"name": "Grues", "value": 185.0},
					{"name": "Tombereaux", "value": 390.0},
				},
				Colors: []string{"#2563eb"},
			},
		},
		{
			ID:    "monthlyUsage",
			Title: "Utilisation mensuelle",
			Content: ChartConfig{
				Type: ChartLine,
				Data: []ChartRecord{
					{"name": "Jan", "heures": 4200.0, "objectif": 4500.0},
					{"name": "Fév", "heures": 4650.0, "objectif": 4500.0},
					{"name": "Mar", "heures": 4900.0, "objectif": 4800.0},
					{"name": "Avr", "heures": 5100.0, "objectif": 4800.0},
					{"name": "Mai", "heures": 4780.0, "objectif": 5000.0},
					{"name": "Juin", "heures": 5320.0, "objectif": 5000.0},
				},
				Colors: []string{"#16a34a", "#9ca3af"},
			},
		},
		{
			ID:    "fuelConsumption",
			Title: "Consommation de carburant",
			Content: ChartConfig{
				Type: ChartArea,
				Data: []ChartRecord{
					{"name": "S1", "litres": 12400.0},
					{"name": "S2", "litres": 13150.0},
					{"name": "S3", "litres": 11870.0},
					{"name": "S4", "litres": 14020.0},
				},
				Colors: []string{"#f59e0b"},
			},
		},
		{
			ID:    "statusDistribution",
			Title: "Répartition par statut",
			Content: ChartConfig{
				Type: ChartPie,
				Data: []ChartRecord{
					{"name": "En service", "value": 2134.0},
					{"name": "En maintenance", "value": 412.0},
					{"name": "Hors service", "value": 299.0},
				},
				Colors: []string{"#16a34a", "#f59e0b", "#dc2626"},
			},
		},
		{
			ID:    "maintenanceCosts",
			Title: "Coûts de maintenance",
			Content: ChartConfig{
				Type: ChartComposed,
				Data: []ChartRecord{
					{"name": "T1", "preventif": 82000.0, "correctif": 41000.0},
					{"name": "T2", "preventif": 79000.0, "correctif": 52000.0},
					{"name": "T3", "preventif": 91000.0, "correctif": 38000.0},
					{"name": "T4", "preventif": 88000.0, "correctif": 45000.0},
				},
				Colors: []string{"#2563eb", "#dc2626"},
			},
		},
	}
)

// DefaultCatalogListing returns the engins catalog shipped with the builder.
func DefaultCatalogListing() CatalogListing {
	listing := CatalogListing{
		KPI:    make([]CatalogEntry, len(defaultKPIDefinitions)),
		Charts: make([]CatalogEntry, len(defaultChartDefinitions)),
	}
	for i, entry := range defaultKPIDefinitions {
		entry.Content = CloneContent(entry.Content)
		listing.KPI[i] = entry
	}
	for i, entry := range defaultChartDefinitions {
		entry.Content = CloneContent(entry.Content)
		listing.Charts[i] = entry
	}
	return listing
}

// StarterDashboard returns the fixed dashboard seeded into an empty store.
func StarterDashboard(now time.Time) DashboardDocument {
	listing := DefaultCatalogListing()
	seed := []struct {
		t  WidgetType
		id string
	}{
		{WidgetKPI, "totalEquipments"},
		{WidgetKPI, "activeEquipments"},
		{WidgetKPI, "maintenanceDue"},
		{WidgetChart, "equipmentByType"},
		{WidgetChart, "statusDistribution"},
	}
	doc := DashboardDocument{
		ID:           StarterDashboardID,
		Name:         StarterDashboardName,
		LastModified: now,
		Widgets:      make([]WidgetConfig, 0, len(seed)),
	}
	for i, item := range seed {
		entry, ok := listing.Find(item.t, item.id)
		if !ok {
			continue
		}
		w := widgetFromEntry("starter-"+item.id, item.t, entry)
		w.Position = Position{X: 0, Y: i}
		doc.Widgets = append(doc.Widgets, w)
	}
	return doc
}

func widgetFromEntry(id string, t WidgetType, entry CatalogEntry) WidgetConfig {
	return WidgetConfig{
		ID:         id,
		Type:       t,
		Title:      entry.Title,
		SourceData: entry.ID,
		Size:       DefaultSize(t),
		Config:     CloneContent(entry.Content),
	}
}

// DefaultSize returns the initial grid footprint for a widget type.
// Charts need more area to stay legible.
func DefaultSize(t WidgetType) Size {
	if t == WidgetChart {
		return Size{Columns: 2, Rows: 2}
	}
	return Size{Columns: 1, Rows: 1}
}

func trend(v string) *string { return &v }
