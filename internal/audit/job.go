// Package audit persists generation inputs/outputs after the response is
// already on its way: chart-history rows, generated-content rows, and
// policy-cache upserts. Every write is independent and best-effort; a
// failed write is logged and never surfaced.
package audit

import (
	"github.com/insightdeck/insightdeck/internal/conversation"
	"github.com/insightdeck/insightdeck/internal/history"
)

const (
	KindChartHistory     = "chart_history"
	KindGeneratedContent = "generated_content"
	KindPolicyUpsert     = "policy_upsert"
)

type PolicyUpsert struct {
	Region      string `json:"region"`
	Category    string `json:"category"`
	Content     string `json:"content"`
	DataContext string `json:"data_context"`
}

// Job is one persistence unit, published to the queue and applied by the
// worker.
type Job struct {
	Kind             string                         `json:"kind"`
	ChartHistory     *history.Record                `json:"chart_history,omitempty"`
	GeneratedContent *conversation.GeneratedContent `json:"generated_content,omitempty"`
	Policy           *PolicyUpsert                  `json:"policy,omitempty"`
}
