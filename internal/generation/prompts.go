package generation

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Persona reframes the narrative voice without changing orchestration.
func personaClause(persona string) string {
	switch strings.ToLower(strings.TrimSpace(persona)) {
	case "minister":
		return "Frame findings for a government minister: policy impact, national workforce outcomes, high-level trends."
	case "chro":
		return "Frame findings for a Chief Human Resources Officer: talent pipelines, skill gaps, hiring strategy."
	case "":
		return ""
	default:
		return fmt.Sprintf("Frame findings for a %s audience.", persona)
	}
}

func withKnowledge(base, kbContext string) string {
	if kbContext == "" {
		return base
	}
	return base + "\n\nUse the following uploaded reference material where relevant:\n" + kbContext
}

func chartSystemPrompt(numberOfCharts int, chartTypes []string, kbContext, persona string) string {
	var b strings.Builder
	b.WriteString("You are a data visualization assistant for a workforce and policy dashboard.\n")
	fmt.Fprintf(&b, "Generate exactly %d chart configuration(s) of these types in order: %s.\n",
		numberOfCharts, strings.Join(chartTypes, ", "))
	b.WriteString(`Respond with ONLY a JSON object of the form:
{"charts": [{"title": {"text": "..."}, "xAxis": {...}, "yAxis": {...}, "series": [{"type": "bar|line|treemap", "data": [...]}]}]}
For "map" charts use {"title": {"text": "..."}, "markers": [{"name": "...", "lat": 0, "lng": 0, "value": 0}]} instead of series.
Use realistic, plausible data. No prose, no markdown fences.`)
	if p := personaClause(persona); p != "" {
		b.WriteString("\n" + p)
	}
	return withKnowledge(b.String(), kbContext)
}

func insightSystemPrompt(kbContext, persona string) string {
	base := `You are an analytics assistant. Given a user prompt and chart data, respond with ONLY JSON:
{"key_insights": ["..."], "improvement_suggestions": ["..."], "risk_analysis": ["..."], "performance_metrics": {"...": "..."}, "next_steps": ["..."]}
key_insights must be non-empty. No prose outside the JSON.`
	if p := personaClause(persona); p != "" {
		base += "\n" + p
	}
	return withKnowledge(base, kbContext)
}

func policySystemPrompt(region, category string) string {
	return fmt.Sprintf(`You are a policy analyst covering %s. Produce %s policy guidance as ONLY JSON:
{"policies": [{"name": "...", "summary": "...", "status": "..."}], "recommendations": ["..."], "compliance_checklist": ["..."], "regional_context": {"region": "%s"}}
policies must be non-empty. No prose outside the JSON.`, region, category, region)
}

func reportSystemPrompt(persona string) string {
	base := `You are a senior analyst. Write a detailed narrative report synthesizing the provided charts and insights. Respond as JSON: {"report": "..."}.`
	if p := personaClause(persona); p != "" {
		base += "\n" + p
	}
	return base
}

func customizeSystemPrompt(current ChartConfig) string {
	b, _ := json.Marshal(current)
	return fmt.Sprintf(`You modify chart configurations. Current configuration:
%s
Apply the user's requested change and respond with ONLY the complete modified JSON configuration. Keep every key you are not asked to change.`, string(b))
}

const chatSystemPrompt = `You are a conversational assistant for a workforce analytics dashboard. Hold a short dialogue to pin down what the user wants visualized. Respond with ONLY JSON:
{"response": "your reply to the user", "needsMoreInfo": true|false, "generateContent": true|false, "context": {"region": "...", "domain": "..."}}
Set generateContent true once the request is specific enough to build charts. Omit context keys you cannot infer.`

func freeTextSystemPrompt(kbContext string) string {
	return withKnowledge("You are a helpful analyst. Answer the user's request concisely and factually.", kbContext)
}

func askSystemPrompt(generationResult, kbContext string) string {
	base := "You answer follow-up questions about a generated dashboard."
	if generationResult != "" {
		base += "\nThe dashboard content under discussion:\n" + generationResult
	}
	return withKnowledge(base, kbContext)
}

// chartUserPrompt renders the chart-task user message.
func chartUserPrompt(prompt string, contextMap map[string]any) string {
	if len(contextMap) == 0 {
		return prompt
	}
	b, _ := json.Marshal(contextMap)
	return fmt.Sprintf("%s\n\nConversation context: %s", prompt, string(b))
}

func insightUserPrompt(prompt string, chartData any) string {
	if chartData == nil {
		return prompt
	}
	b, _ := json.Marshal(chartData)
	return fmt.Sprintf("%s\n\nChart data: %s", prompt, string(b))
}

func reportUserPrompt(prompt string, charts []ChartConfig, insights InsightResult) string {
	cb, _ := json.Marshal(charts)
	ib, _ := json.Marshal(insights)
	return fmt.Sprintf("Original request: %s\n\nCharts: %s\n\nInsights: %s", prompt, string(cb), string(ib))
}
