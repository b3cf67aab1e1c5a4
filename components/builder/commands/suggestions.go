package commands

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"

	"github.com/goliatone/go-dashboard-builder/components/builder"
)

// ApplySuggestionsInput carries suggested widgets. Applied receives the count
// of widgets actually added.
type ApplySuggestionsInput struct {
	Suggestions []builder.WidgetSuggestion `json:"suggestions"`
	Applied     *int                       `json:"-"`
}

type suggestionService interface {
	ApplySuggestions(ctx context.Context, suggestions []builder.WidgetSuggestion) (builder.DashboardDocument, int, error)
}

// ApplySuggestionsCommand wraps Controller.ApplySuggestions.
type ApplySuggestionsCommand struct {
	service   suggestionService
	telemetry Telemetry
}

// NewApplySuggestionsCommand builds the command.
func NewApplySuggestionsCommand(service suggestionService, telemetry Telemetry) *ApplySuggestionsCommand {
	return &ApplySuggestionsCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[ApplySuggestionsInput] = (*ApplySuggestionsCommand)(nil)

// Execute adds the suggested widgets.
func (c *ApplySuggestionsCommand) Execute(ctx context.Context, msg ApplySuggestionsInput) error {
	if c.service == nil {
		return errors.New("suggestions command requires service")
	}
	doc, applied, err := c.service.ApplySuggestions(ctx, msg.Suggestions)
	if err != nil {
		return err
	}
	if msg.Applied != nil {
		*msg.Applied = applied
	}
	c.telemetry.Record(ctx, "builder.command.suggestions", map[string]any{
		"dashboard_id": doc.ID,
		"suggested":    len(msg.Suggestions),
		"applied":      applied,
	})
	return nil
}
