package generation

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

const (
	MinCharts = 1
	MaxCharts = 5
)

// AdvancedRequest is one multi-task generation request, already
// authenticated and context-loaded.
type AdvancedRequest struct {
	Prompt         string
	NumberOfCharts int
	ChartTypes     []string
	KnowledgeCtx   string
	Persona        string
	Context        map[string]any
	WithReport     bool
	PolicyCategory string
}

type Diagnostics struct {
	ChartTypes []string       `json:"chartTypes"`
	Dimensions map[string]int `json:"dimensions"`
	Notes      string         `json:"notes"`
	Sources    []string       `json:"sources"`
}

// AdvancedResult is the combined payload. Fallback* flags record
// provenance for diagnostics and for callers that persist differently
// depending on whether content is real.
type AdvancedResult struct {
	Charts         []ChartConfig
	Insights       []string
	InsightDetail  *InsightResult
	DetailedReport string
	Policies       *PolicyResult
	Region         string
	Diagnostics    Diagnostics

	FallbackCharts   bool
	FallbackInsights bool
	FallbackReport   bool
}

// Orchestrator fans a request out to independent generation tasks,
// tolerates per-task failure, and reconciles one best-effort response.
// Once dispatch begins it never fails: every task has a substitution.
type Orchestrator struct {
	runner *Runner
	log    *logrus.Entry
}

func NewOrchestrator(runner *Runner) *Orchestrator {
	return &Orchestrator{
		runner: runner,
		log:    logrus.WithField("component", "orchestrator"),
	}
}

func (o *Orchestrator) Runner() *Runner { return o.runner }

// normalize clamps chart count into [MinCharts, MaxCharts] and pads the
// type list to one entry per slot.
func normalize(req *AdvancedRequest) {
	if req.NumberOfCharts < MinCharts {
		req.NumberOfCharts = MinCharts
	}
	if req.NumberOfCharts > MaxCharts {
		req.NumberOfCharts = MaxCharts
	}
	types := make([]string, req.NumberOfCharts)
	for i := range types {
		if i < len(req.ChartTypes) && strings.TrimSpace(req.ChartTypes[i]) != "" {
			types[i] = strings.ToLower(strings.TrimSpace(req.ChartTypes[i]))
		} else {
			types[i] = "bar"
		}
	}
	req.ChartTypes = types
}

// Run executes the dispatch/collect/reconcile/finalize state machine.
// Chart and insight tasks run concurrently; the policy task joins them
// when a region is detected; the report task is sequenced after charts
// and insights because it consumes their output.
func (o *Orchestrator) Run(ctx context.Context, req AdvancedRequest) AdvancedResult {
	normalize(&req)

	region := DetectRegion(req.Context, req.Prompt)

	var (
		wg sync.WaitGroup

		chartRes ChartResult
		chartErr error

		insRes InsightResult
		insErr error

		polRes PolicyResult
		polErr error
	)

	// Dispatch: sibling tasks each own their deadline through the
	// runner; one hanging or failing task never cancels the others.
	wg.Add(2)
	go func() {
		defer wg.Done()
		chartRes, chartErr = o.runner.Charts(ctx, ChartRequest{
			Prompt:         req.Prompt,
			NumberOfCharts: req.NumberOfCharts,
			ChartTypes:     req.ChartTypes,
			KnowledgeCtx:   req.KnowledgeCtx,
			Persona:        req.Persona,
			Context:        req.Context,
		})
	}()
	go func() {
		defer wg.Done()
		insRes, insErr = o.runner.Insights(ctx, req.Prompt, nil, req.KnowledgeCtx, req.Persona)
	}()

	policyRequested := region != ""
	if policyRequested {
		wg.Add(1)
		go func() {
			defer wg.Done()
			polRes, polErr = o.runner.Policies(ctx, region, req.PolicyCategory, req.Prompt)
		}()
	}

	// Collect: settle all, never short-circuit on the first failure.
	wg.Wait()

	// Reconcile.
	res := AdvancedResult{Region: region}

	switch {
	case chartErr != nil:
		o.log.WithError(chartErr).Warn("chart task failed, substituting fallback set")
		res.Charts = FallbackCharts(req.NumberOfCharts, req.ChartTypes, req.Prompt)
		res.FallbackCharts = true
	case len(chartRes.Charts) >= req.NumberOfCharts:
		res.Charts = chartRes.Charts[:req.NumberOfCharts]
	default:
		// Real but short: top up with canned charts for the missing
		// slots so the response always carries the requested count.
		res.Charts = chartRes.Charts
		for i := len(res.Charts); i < req.NumberOfCharts; i++ {
			res.Charts = append(res.Charts, FallbackChart(req.ChartTypes[i], req.Prompt))
		}
	}

	if insErr != nil {
		o.log.WithError(insErr).Warn("insight task failed, substituting generic insight")
		res.Insights = FallbackInsights(req.NumberOfCharts, req.Prompt)
		res.FallbackInsights = true
	} else {
		res.Insights = insRes.KeyInsights
		res.InsightDetail = &insRes
	}

	if policyRequested {
		if polErr != nil {
			// Purely additive: absence simply omits the field.
			o.log.WithError(polErr).Warn("policy task failed, omitting policies")
		} else {
			res.Policies = &polRes
		}
	}

	// Report depends on chart + insight output, so it runs after them.
	// It synthesizes what the response will actually carry, so on the
	// insight-fallback path it gets the substituted insights, not the
	// zero value of the failed task.
	if req.WithReport {
		repIns := insRes
		if res.FallbackInsights {
			repIns = InsightResult{KeyInsights: res.Insights}
		}
		rep, repErr := o.runner.Report(ctx, req.Prompt, res.Charts, repIns, req.Persona)
		if repErr != nil {
			o.log.WithError(repErr).Warn("report task failed, substituting placeholder")
			res.DetailedReport = FallbackReport
			res.FallbackReport = true
		} else {
			res.DetailedReport = rep.Report
		}
	}

	// Finalize.
	res.Diagnostics = o.diagnostics(req, &res)
	return res
}

func (o *Orchestrator) diagnostics(req AdvancedRequest, res *AdvancedResult) Diagnostics {
	notes := []string{}
	if res.FallbackCharts {
		notes = append(notes, "charts: deterministic fallback (generation failed)")
	} else {
		notes = append(notes, "charts: model-generated")
	}
	if res.FallbackInsights {
		notes = append(notes, "insights: generic fallback")
	} else {
		notes = append(notes, "insights: model-generated")
	}
	if req.WithReport {
		if res.FallbackReport {
			notes = append(notes, "report: placeholder")
		} else {
			notes = append(notes, "report: model-generated")
		}
	}
	if res.Region != "" {
		if res.Policies != nil {
			notes = append(notes, fmt.Sprintf("policies: generated for %s", res.Region))
		} else {
			notes = append(notes, "policies: omitted")
		}
	}

	sources := []string{"completion-model"}
	if req.KnowledgeCtx != "" {
		sources = append(sources, "knowledge-base")
	}

	return Diagnostics{
		ChartTypes: req.ChartTypes,
		Dimensions: map[string]int{
			"requested": req.NumberOfCharts,
			"generated": len(res.Charts),
		},
		Notes:   strings.Join(notes, "; "),
		Sources: sources,
	}
}
