package builder

import "github.com/google/uuid"

// UUIDGenerator mints widget ids of the form widget-<uuid>.
type UUIDGenerator struct{}

// NewWidgetID implements IDGenerator.
func (UUIDGenerator) NewWidgetID(WidgetType) string {
	return "widget-" + uuid.NewString()
}

func newDashboardID() string {
	return "dashboard-" + uuid.NewString()
}
