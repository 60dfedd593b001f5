package generation

import (
	"encoding/json"

	"github.com/insightdeck/insightdeck/internal/apperr"
	"github.com/insightdeck/insightdeck/internal/jsonx"
)

// ChartConfig is one renderable chart option. The schema belongs to the
// charting library on the client; the backend only guarantees the keys
// the validation below checks.
type ChartConfig map[string]any

// Title digs out the chart title whether it is a plain string or an
// echarts-style {text: ...} object.
func (c ChartConfig) Title() string {
	switch t := c["title"].(type) {
	case string:
		return t
	case map[string]any:
		if s, ok := t["text"].(string); ok {
			return s
		}
	}
	return ""
}

// Type returns the first series type, or "map" for marker charts.
func (c ChartConfig) Type() string {
	if _, ok := c["markers"]; ok {
		return "map"
	}
	if series, ok := c["series"].([]any); ok && len(series) > 0 {
		if s0, ok := series[0].(map[string]any); ok {
			if t, ok := s0["type"].(string); ok {
				return t
			}
		}
	}
	if t, ok := c["chartType"].(string); ok {
		return t
	}
	return ""
}

func (c ChartConfig) valid() bool {
	if len(c) == 0 || c.Title() == "" {
		return false
	}
	_, hasSeries := c["series"]
	_, hasMarkers := c["markers"]
	return hasSeries || hasMarkers
}

type ChartResult struct {
	Charts []ChartConfig `json:"charts"`
}

type InsightResult struct {
	KeyInsights            []string       `json:"key_insights"`
	ImprovementSuggestions []string       `json:"improvement_suggestions"`
	RiskAnalysis           []string       `json:"risk_analysis"`
	PerformanceMetrics     map[string]any `json:"performance_metrics"`
	NextSteps              []string       `json:"next_steps"`
}

type PolicyResult struct {
	Policies            []map[string]any `json:"policies"`
	Recommendations     []string         `json:"recommendations"`
	ComplianceChecklist []string         `json:"compliance_checklist"`
	RegionalContext     map[string]any   `json:"regional_context"`
}

type ReportResult struct {
	Report string `json:"report"`
}

// ChatTurn is the structured assistant turn of the conversational path.
type ChatTurn struct {
	Response        string         `json:"response"`
	NeedsMoreInfo   bool           `json:"needsMoreInfo"`
	GenerateContent bool           `json:"generateContent"`
	Context         map[string]any `json:"context"`
}

// ParseChartResult extracts and validates a chart set from completion
// text. Accepts a bare array, a bare chart object, or {charts: [...]}.
func ParseChartResult(raw string) (ChartResult, error) {
	span, ok := jsonx.Extract(raw)
	if !ok {
		return ChartResult{}, apperr.Parse("charts", "no JSON payload in completion")
	}

	var res ChartResult
	if span[0] == '[' {
		if err := json.Unmarshal([]byte(span), &res.Charts); err != nil {
			return ChartResult{}, apperr.Parse("charts", err.Error())
		}
	} else {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(span), &obj); err != nil {
			return ChartResult{}, apperr.Parse("charts", err.Error())
		}
		if rawCharts, ok := obj["charts"]; ok {
			if err := json.Unmarshal(rawCharts, &res.Charts); err != nil {
				return ChartResult{}, apperr.Parse("charts", err.Error())
			}
		} else {
			var single ChartConfig
			if err := json.Unmarshal([]byte(span), &single); err != nil {
				return ChartResult{}, apperr.Parse("charts", err.Error())
			}
			res.Charts = []ChartConfig{single}
		}
	}

	if len(res.Charts) == 0 {
		return ChartResult{}, apperr.Parse("charts", "empty chart set")
	}
	for _, c := range res.Charts {
		if !c.valid() {
			return ChartResult{}, apperr.Parse("charts", "chart missing title or series/markers")
		}
	}
	return res, nil
}

// ParseSingleChart accepts exactly one chart object.
func ParseSingleChart(raw string) (ChartConfig, error) {
	res, err := ParseChartResult(raw)
	if err != nil {
		return nil, err
	}
	return res.Charts[0], nil
}

func ParseInsightResult(raw string) (InsightResult, error) {
	span, ok := jsonx.Extract(raw)
	if !ok {
		return InsightResult{}, apperr.Parse("insights", "no JSON payload in completion")
	}
	var res InsightResult
	if err := json.Unmarshal([]byte(span), &res); err != nil {
		return InsightResult{}, apperr.Parse("insights", err.Error())
	}
	if len(res.KeyInsights) == 0 {
		return InsightResult{}, apperr.Parse("insights", "key_insights is empty")
	}
	return res, nil
}

func ParsePolicyResult(raw string) (PolicyResult, error) {
	span, ok := jsonx.Extract(raw)
	if !ok {
		return PolicyResult{}, apperr.Parse("policies", "no JSON payload in completion")
	}
	var res PolicyResult
	if err := json.Unmarshal([]byte(span), &res); err != nil {
		return PolicyResult{}, apperr.Parse("policies", err.Error())
	}
	if len(res.Policies) == 0 {
		return PolicyResult{}, apperr.Parse("policies", "policies is empty")
	}
	return res, nil
}

// ParseReportResult tolerates plain prose: a report is free text, so a
// completion with no JSON span is used verbatim.
func ParseReportResult(raw string) (ReportResult, error) {
	if span, ok := jsonx.Extract(raw); ok {
		var res ReportResult
		if err := json.Unmarshal([]byte(span), &res); err == nil && res.Report != "" {
			return res, nil
		}
	}
	text := jsonx.StripFences(raw)
	if text == "" {
		return ReportResult{}, apperr.Parse("report", "empty completion")
	}
	return ReportResult{Report: text}, nil
}

// ParseChatTurn falls back to treating the whole completion as the
// assistant response when the intent JSON is missing.
func ParseChatTurn(raw string) ChatTurn {
	if span, ok := jsonx.Extract(raw); ok {
		var turn ChatTurn
		if err := json.Unmarshal([]byte(span), &turn); err == nil && turn.Response != "" {
			if turn.Context == nil {
				turn.Context = map[string]any{}
			}
			return turn
		}
	}
	return ChatTurn{Response: jsonx.StripFences(raw), Context: map[string]any{}}
}
