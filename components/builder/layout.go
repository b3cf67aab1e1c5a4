package builder

func moveWidget(widgets []WidgetConfig, from, to int) []WidgetConfig {
	if from == to {
		return widgets
	}
	moved := widgets[from]
	result := make([]WidgetConfig, 0, len(widgets))
	result = append(result, widgets[:from]...)
	result = append(result, widgets[from+1:]...)
	result = append(result[:to], append([]WidgetConfig{moved}, result[to:]...)...)
	return result
}

// stackColumn assigns [0,i] positions in list order.
func stackColumn(widgets []WidgetConfig) {
	for i := range widgets {
		widgets[i].Position = Position{X: 0, Y: i}
	}
}

// applyOrder returns widgets ordered by ids. Unknown ids are ignored and
// widgets missing from ids keep their relative order at the end.
func applyOrder(widgets []WidgetConfig, ids []string) []WidgetConfig {
	if len(ids) == 0 {
		return widgets
	}
	index := make(map[string]WidgetConfig, len(widgets))
	for _, w := range widgets {
		index[w.ID] = w
	}
	result := make([]WidgetConfig, 0, len(widgets))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		if w, ok := index[id]; ok {
			result = append(result, w)
			seen[id] = struct{}{}
		}
	}
	for _, w := range widgets {
		if _, ok := seen[w.ID]; !ok {
			result = append(result, w)
		}
	}
	return result
}
